package domain

// RoomTicket holds the signaling endpoint and ICE configuration for one call
// room, as returned by the rendezvous API.
type RoomTicket struct {
	Room               string      `json:"room"`
	SignalServer       string      `json:"signalServer"`
	WebsocketPath      string      `json:"websocketPath"`
	SignalPingInterval int         `json:"signalPingInterval"`
	ICEServers         []ICEServer `json:"iceServers"`
	Time               int64       `json:"time"`
	ExpirationTime     int64       `json:"expirationTime"`
}

// ICEServer holds STUN/TURN server configuration.
type ICEServer struct {
	URL        string `json:"url"`
	Username   string `json:"username"`
	Credential string `json:"credential"`
}
