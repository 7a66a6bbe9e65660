package domain

// Transport abstracts the media engine. Calls that produce a result are
// asynchronous: they return immediately and report completion through the
// callbacks registered below. Register all callbacks before the first
// operation; implementations execute operations in call order.
type Transport interface {
	// CreateLocalDescription creates an offer or answer and sets it as the
	// local description before reporting via OnLocalDescription. "Ready"
	// therefore always implies "applied locally".
	CreateLocalDescription(kind DescriptionKind)

	// SetRemoteDescription applies the peer's description. The outcome is
	// reported via OnRemoteDescriptionDone.
	SetRemoteDescription(desc SessionDescription)

	// AddRemoteCandidate is best-effort: re-adding an identical candidate
	// must not fail the session.
	AddRemoteCandidate(c Candidate)

	OnLocalDescription(fn func(desc SessionDescription, err error))
	OnRemoteDescriptionDone(fn func(err error))
	OnLocalCandidate(fn func(c Candidate))
	OnRemoteMedia(fn func(m RemoteMedia))

	// Close releases the engine and all media resources. Idempotent.
	Close()
}

// Signaler manages the connection to the signaling relay. Delivery is
// at-least-once and the relay may echo the sender's own messages back;
// receivers filter by origin.
type Signaler interface {
	Connect() error
	SendDescription(desc SessionDescription, from string)
	SendCandidate(c Candidate, from string, role Role)
	Close()
}

// Handler receives signaling events from the relay.
type Handler interface {
	OnDescriptionReceived(desc SessionDescription, from string)
	OnCandidateReceived(c Candidate, from string, role Role)
	// OnChannelFailure reports that the relay connection is gone for good;
	// transient errors are retried inside the Signaler and never reach here.
	OnChannelFailure(err error)
}
