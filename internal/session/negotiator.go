// Package session implements the offer/answer negotiation core for a
// two-party call: the state machine, the candidate buffer, and the
// controller that wires both to the transport and signaling collaborators.
package session

import (
	"github.com/pion/logging"

	"duocall/native/internal/domain"
)

// Negotiator owns the negotiation state machine for one session and decides
// what the local side does next. It is not safe for concurrent use: the
// Controller serializes every call onto its event loop.
type Negotiator struct {
	selfID    string
	transport domain.Transport
	buffer    *CandidateBuffer
	log       logging.LeveledLogger

	state State
	role  domain.Role

	// sendDesc ships a locally generated description to the peer. onFatal
	// surfaces an unrecoverable failure to the owning layer. Both are
	// provided by the Controller.
	sendDesc func(domain.SessionDescription)
	onFatal  func(error)
}

// NewNegotiator creates a Negotiator in StateIdle with no role fixed.
func NewNegotiator(
	selfID string,
	transport domain.Transport,
	buffer *CandidateBuffer,
	log logging.LeveledLogger,
	sendDesc func(domain.SessionDescription),
	onFatal func(error),
) *Negotiator {
	return &Negotiator{
		selfID:    selfID,
		transport: transport,
		buffer:    buffer,
		log:       log,
		state:     StateIdle,
		role:      domain.RoleNone,
		sendDesc:  sendDesc,
		onFatal:   onFatal,
	}
}

// State returns the current negotiation state.
func (n *Negotiator) State() State { return n.state }

// Role returns the negotiated role; RoleNone until the session starts.
func (n *Negotiator) Role() domain.Role { return n.role }

func (n *Negotiator) setState(s State) {
	n.log.Debugf("state %s -> %s", n.state, s)
	n.state = s
}

// StartAsInitiator fixes the role to initiator and requests a local offer
// from the transport. The offer itself arrives later via
// HandleLocalDescriptionReady.
func (n *Negotiator) StartAsInitiator() error {
	if n.state != StateIdle {
		return domain.ErrInvalidTransition
	}
	n.role = domain.RoleInitiator
	n.setState(StateCreatingOffer)
	n.transport.CreateLocalDescription(domain.KindOffer)
	return nil
}

// HandleRemoteOffer processes an offer from the peer identified by from.
// On a fresh session it fixes the role to responder. If we are already
// initiating, both sides offered at once (glare): the side with the
// lexicographically greater identity yields, drops its own pending offer and
// answers the peer's instead; the other side ignores the incoming offer and
// waits for the peer to yield.
func (n *Negotiator) HandleRemoteOffer(desc domain.SessionDescription, from string) error {
	switch {
	case n.state.terminal():
		return nil // stale event after teardown

	case n.state == StateIdle:
		n.role = domain.RoleResponder

	case n.role == domain.RoleInitiator &&
		(n.state == StateCreatingOffer || n.state == StateOfferSent):
		if n.selfID <= from {
			n.log.Infof("glare with %s: holding our offer, peer yields", from)
			return nil
		}
		n.log.Infof("glare with %s: yielding, continuing as responder", from)
		n.role = domain.RoleResponder

	default:
		// Late duplicate: we already consumed an offer this session.
		return domain.ErrUnexpectedOffer
	}

	n.setState(StateOfferReceived)
	n.transport.SetRemoteDescription(desc)
	n.transport.CreateLocalDescription(domain.KindAnswer)
	return nil
}

// HandleRemoteAnswer processes the answer to our offer. On success the
// session is connected and buffered remote candidates are released.
func (n *Negotiator) HandleRemoteAnswer(desc domain.SessionDescription) error {
	if n.state.terminal() {
		return nil
	}
	if n.state != StateOfferSent {
		return domain.ErrUnexpectedAnswer
	}
	n.transport.SetRemoteDescription(desc)
	n.setState(StateConnected)
	n.buffer.Drain()
	return nil
}

// HandleLocalDescriptionReady is invoked once the transport has generated
// the local description and applied it locally. The initiator moves to
// OfferSent and waits for the answer; the responder sends its answer and is
// immediately connected, since its remote description was applied when the
// offer arrived.
func (n *Negotiator) HandleLocalDescriptionReady(desc domain.SessionDescription) error {
	switch {
	case n.state.terminal():
		return nil

	case n.role == domain.RoleInitiator && n.state == StateCreatingOffer && desc.Kind == domain.KindOffer:
		n.setState(StateOfferSent)
		n.sendDesc(desc)

	case n.role == domain.RoleResponder && n.state == StateOfferReceived && desc.Kind == domain.KindAnswer:
		n.setState(StateAnswerSent)
		n.sendDesc(desc)
		n.setState(StateConnected)
		n.buffer.Drain()

	default:
		// A local offer generated for a negotiation we have since abandoned
		// (glare yield) lands here and is dropped.
		return domain.ErrInvalidTransition
	}
	return nil
}

// HandleLocalDescriptionFailed records a fatal failure generating or
// applying the local description.
func (n *Negotiator) HandleLocalDescriptionFailed(err error) {
	n.fail(&domain.TransportError{Op: "create local description", Err: err})
}

// HandleRemoteDescriptionFailed records a fatal failure applying the remote
// description.
func (n *Negotiator) HandleRemoteDescriptionFailed(err error) {
	n.fail(&domain.TransportError{Op: "set remote description", Err: err})
}

func (n *Negotiator) fail(err error) {
	if n.state.terminal() {
		return
	}
	n.log.Errorf("%v", err)
	n.setState(StateFailed)
	n.onFatal(err)
}

// Close ends the session. Valid from any state; idempotent. After Close no
// event changes the state again.
func (n *Negotiator) Close() {
	if n.state == StateClosed {
		return
	}
	n.setState(StateClosed)
}
