package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"duocall/native/internal/domain"
)

// Controller wires the negotiator and candidate buffer to the transport and
// signaling collaborators. Transport and relay callbacks arrive on arbitrary
// goroutines; the controller funnels them through a single event loop so the
// negotiator and buffer only ever run on one goroutine.
//
// It implements domain.Handler for the signaling relay.
type Controller struct {
	selfID    string
	transport domain.Transport
	signal    domain.Signaler
	neg       *Negotiator
	buffer    *CandidateBuffer
	log       logging.LeveledLogger

	events   chan func()
	done     chan struct{}
	endOnce  sync.Once
	failures chan error
	media    func(domain.RemoteMedia)
}

// New creates a Controller with a fresh participant identity. The identity
// is attached to every outgoing message and used to discard the relay's
// echoes of our own traffic. Call SetSignaler before Start to complete the
// circular dependency (Controller needs Signaler, the relay client needs
// Handler).
func New(transport domain.Transport, lf logging.LoggerFactory) *Controller {
	c := &Controller{
		selfID:    uuid.NewString(),
		transport: transport,
		log:       lf.NewLogger("session"),
		events:    make(chan func(), 32),
		done:      make(chan struct{}),
		failures:  make(chan error, 1),
		media:     func(domain.RemoteMedia) {},
	}
	c.buffer = NewCandidateBuffer(transport, c.sendLocalCandidate, lf.NewLogger("candidates"))
	c.neg = NewNegotiator(c.selfID, transport, c.buffer, lf.NewLogger("negotiator"),
		c.sendLocalDescription, c.surfaceFatal)
	return c
}

// ID returns the participant identity for this session.
func (c *Controller) ID() string { return c.selfID }

// SetSignaler injects the relay client. Must be called before Start.
func (c *Controller) SetSignaler(s domain.Signaler) {
	c.signal = s
}

// SetRemoteMediaSink registers the rendering-layer callback for incoming
// tracks. Tracks are forwarded untouched, outside the event loop. Must be
// called before Start.
func (c *Controller) SetRemoteMediaSink(fn func(domain.RemoteMedia)) {
	c.media = fn
}

// Failures delivers the single fatal error of a failed session. The
// application is expected to tear the session down and start over; the
// controller never retries.
func (c *Controller) Failures() <-chan error { return c.failures }

// Start registers the transport callbacks and starts the event loop.
func (c *Controller) Start() {
	c.transport.OnLocalDescription(func(desc domain.SessionDescription, err error) {
		c.post(func() {
			if err != nil {
				c.neg.HandleLocalDescriptionFailed(err)
				return
			}
			c.absorb("local description", c.neg.HandleLocalDescriptionReady(desc))
		})
	})
	c.transport.OnRemoteDescriptionDone(func(err error) {
		if err == nil {
			return
		}
		c.post(func() { c.neg.HandleRemoteDescriptionFailed(err) })
	})
	c.transport.OnLocalCandidate(func(cand domain.Candidate) {
		c.post(func() { c.buffer.EnqueueLocal(cand) })
	})
	c.transport.OnRemoteMedia(func(m domain.RemoteMedia) {
		c.media(m)
	})
	go c.run()
}

// Call starts the session as initiator. The session connects asynchronously;
// failures surface on Failures().
func (c *Controller) Call() {
	c.post(func() { c.absorb("start call", c.neg.StartAsInitiator()) })
}

// OnDescriptionReceived routes a relayed description by its kind, dropping
// echoes of our own messages.
func (c *Controller) OnDescriptionReceived(desc domain.SessionDescription, from string) {
	if from == c.selfID {
		c.log.Debugf("dropping self-echoed %s", desc.Kind)
		return
	}
	c.post(func() {
		switch desc.Kind {
		case domain.KindOffer:
			c.absorb("remote offer", c.neg.HandleRemoteOffer(desc, from))
		case domain.KindAnswer:
			c.absorb("remote answer", c.neg.HandleRemoteAnswer(desc))
		default:
			c.log.Warnf("unknown description kind %q from %s", desc.Kind, from)
		}
	})
}

// OnCandidateReceived buffers or applies a relayed candidate, dropping
// echoes of our own messages.
func (c *Controller) OnCandidateReceived(cand domain.Candidate, from string, role domain.Role) {
	if from == c.selfID {
		return
	}
	c.log.Debugf("candidate from %s (%s)", from, role)
	c.post(func() { c.buffer.EnqueueRemote(cand) })
}

// OnChannelFailure surfaces a dead relay connection as a fatal session
// failure.
func (c *Controller) OnChannelFailure(err error) {
	c.post(func() {
		c.neg.fail(&domain.TransportError{Op: "signaling channel", Err: err})
	})
}

// EndSession closes the negotiator, releases the transport and stops the
// relay listener. Idempotent, and safe even if the session never connected.
func (c *Controller) EndSession() {
	c.endOnce.Do(func() {
		c.log.Infof("ending session")
		close(c.done)
		c.transport.Close()
		if c.signal != nil {
			c.signal.Close()
		}
	})
}

// run executes posted events one at a time until the session ends.
func (c *Controller) run() {
	for {
		select {
		case fn := <-c.events:
			fn()
		case <-c.done:
			c.neg.Close()
			return
		}
	}
}

// post schedules fn on the event loop. Events arriving after EndSession are
// silently discarded.
func (c *Controller) post(fn func()) {
	select {
	case <-c.done:
	case c.events <- fn:
	}
}

// absorb logs an ordering anomaly without failing the session. Stale and
// duplicate relay messages are expected; only transport failures are fatal.
func (c *Controller) absorb(op string, err error) {
	if err != nil {
		c.log.Infof("%s ignored: %v", op, err)
	}
}

func (c *Controller) sendLocalDescription(desc domain.SessionDescription) {
	c.signal.SendDescription(desc, c.selfID)
}

func (c *Controller) sendLocalCandidate(cand domain.Candidate) {
	cand.Origin = c.selfID
	c.signal.SendCandidate(cand, c.selfID, c.neg.Role())
}

func (c *Controller) surfaceFatal(err error) {
	select {
	case c.failures <- err:
	default:
	}
}
