package session

// State is the negotiation state of one session. Exactly one State exists per
// session; it is owned by the Negotiator and changes only through its
// transition methods.
type State int

const (
	// StateIdle: nothing has happened yet; the role is still open.
	StateIdle State = iota
	// StateCreatingOffer: initiator, waiting for the local offer to be
	// generated and applied.
	StateCreatingOffer
	// StateOfferSent: initiator, offer out, awaiting the answer.
	StateOfferSent
	// StateOfferReceived: responder, remote offer applied, local answer not
	// yet generated.
	StateOfferReceived
	// StateAnswerSent: responder, answer out. Transient: the responder moves
	// on to Connected in the same step, since its remote description was
	// already applied when the offer arrived.
	StateAnswerSent
	// StateConnected: remote description applied on this side; buffered
	// candidates have been released.
	StateConnected
	// StateClosed: session ended by the application.
	StateClosed
	// StateFailed: unrecoverable transport error; terminal.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCreatingOffer:
		return "creating-offer"
	case StateOfferSent:
		return "offer-sent"
	case StateOfferReceived:
		return "offer-received"
	case StateAnswerSent:
		return "answer-sent"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// terminal reports whether no further transitions are accepted.
func (s State) terminal() bool {
	return s == StateClosed || s == StateFailed
}
