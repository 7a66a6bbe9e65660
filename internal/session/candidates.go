package session

import (
	"github.com/pion/logging"

	"duocall/native/internal/domain"
)

// CandidateBuffer holds remote ICE candidates that arrive before the session
// is ready to apply them. The transport requires a local description before
// any remote candidate can be added, so candidates are queued until the
// negotiator reaches Connected and then released once, in arrival order.
//
// Like the Negotiator, it is driven from the controller's event loop only.
type CandidateBuffer struct {
	transport domain.Transport
	send      func(domain.Candidate)
	log       logging.LeveledLogger

	pending []domain.Candidate
	ready   bool
}

// NewCandidateBuffer creates an empty buffer. send forwards a locally
// gathered candidate to the signaling relay.
func NewCandidateBuffer(transport domain.Transport, send func(domain.Candidate), log logging.LeveledLogger) *CandidateBuffer {
	return &CandidateBuffer{transport: transport, send: send, log: log}
}

// EnqueueLocal forwards a locally gathered candidate for sending. Local
// candidates are never withheld: sending has no readiness precondition,
// only applying remote ones does.
func (b *CandidateBuffer) EnqueueLocal(c domain.Candidate) {
	b.send(c)
}

// EnqueueRemote applies the candidate immediately once the session is
// connected, and queues it otherwise. Duplicates are passed through
// unchanged; the transport treats re-application as idempotent.
func (b *CandidateBuffer) EnqueueRemote(c domain.Candidate) {
	if b.ready {
		b.transport.AddRemoteCandidate(c)
		return
	}
	b.pending = append(b.pending, c)
}

// Drain releases every buffered candidate in arrival order and switches the
// buffer to pass-through. Called by the Negotiator on reaching Connected;
// calling it again is a no-op.
func (b *CandidateBuffer) Drain() {
	b.ready = true
	if len(b.pending) == 0 {
		return
	}
	b.log.Debugf("applying %d buffered candidates", len(b.pending))
	for _, c := range b.pending {
		b.transport.AddRemoteCandidate(c)
	}
	b.pending = nil
}

// Pending returns the number of buffered candidates.
func (b *CandidateBuffer) Pending() int { return len(b.pending) }
