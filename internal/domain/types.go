package domain

// Role fixes which side of the negotiation this participant plays.
// It is set exactly once, when the session starts: calling out makes us the
// initiator, receiving an offer while idle makes us the responder.
type Role string

const (
	RoleNone      Role = ""
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// DescriptionKind distinguishes an SDP offer from an answer.
type DescriptionKind string

const (
	KindOffer  DescriptionKind = "offer"
	KindAnswer DescriptionKind = "answer"
)

// SessionDescription is an immutable SDP blob plus its kind. The SDP payload
// is opaque to the session core; only the transport interprets it.
type SessionDescription struct {
	Kind DescriptionKind `json:"type"`
	SDP  string          `json:"sdp"`
}

// Candidate is a single ICE candidate. Candidates have no identity beyond
// their field values; the relay delivers at-least-once, so duplicates are
// possible and must be tolerated downstream.
type Candidate struct {
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
	Candidate     string `json:"candidate"`
	Origin        string `json:"origin"`
}

// RemoteMedia describes an incoming media track. Track is the transport
// engine's native handle, passed through to the rendering layer untouched.
type RemoteMedia struct {
	Kind  string
	Codec string
	Track any
}
