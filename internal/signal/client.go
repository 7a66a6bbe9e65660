// Package signal implements the WebSocket client for the signaling relay.
package signal

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/logging"

	"duocall/native/internal/domain"
)

// message is the JSON envelope exchanged with the relay. The relay fans a
// room's messages out to every participant, including the sender, so every
// message carries the sender's identity.
type message struct {
	Type          string `json:"type"` // "join", "description", "candidate"
	Room          string `json:"room,omitempty"`
	From          string `json:"from,omitempty"`
	Role          string `json:"role,omitempty"`
	SDPType       string `json:"sdpType,omitempty"`
	SDP           string `json:"sdp,omitempty"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex int    `json:"sdpMLineIndex,omitempty"`
	Candidate     string `json:"candidate,omitempty"`
}

const (
	msgTypeJoin        = "join"
	msgTypeDescription = "description"
	msgTypeCandidate   = "candidate"
)

// Client manages the WebSocket connection to the signaling relay and
// dispatches incoming messages to a domain.Handler. Messages for a room are
// delivered in relay order; the read loop preserves that order.
type Client struct {
	conn    *websocket.Conn
	ticket  *domain.RoomTicket
	selfID  string
	handler domain.Handler
	log     logging.LeveledLogger

	mu     sync.Mutex
	closed chan struct{}
}

// NewClient creates a relay client for the room named in the ticket. selfID
// is stamped on every outgoing message.
func NewClient(ticket *domain.RoomTicket, selfID string, handler domain.Handler, lf logging.LoggerFactory) *Client {
	return &Client{
		ticket:  ticket,
		selfID:  selfID,
		handler: handler,
		log:     lf.NewLogger("signal"),
		closed:  make(chan struct{}),
	}
}

// Connect dials the relay, joins the room and starts the read loop.
func (c *Client) Connect() error {
	u, err := url.Parse(c.ticket.SignalServer)
	if err != nil {
		return fmt.Errorf("parse signal server: %w", err)
	}
	if c.ticket.WebsocketPath != "" {
		u.Path = c.ticket.WebsocketPath
	}

	c.log.Infof("connecting to %s", u)

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn

	c.sendJSON(message{
		Type: msgTypeJoin,
		Room: c.ticket.Room,
		From: c.selfID,
	})

	go c.readLoop()
	go c.pingLoop()

	return nil
}

// Close shuts down the WebSocket connection. Idempotent.
func (c *Client) Close() {
	select {
	case <-c.closed:
		return
	default:
		close(c.closed)
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

// SendDescription publishes an offer or answer to the room.
func (c *Client) SendDescription(desc domain.SessionDescription, from string) {
	c.sendJSON(message{
		Type:    msgTypeDescription,
		Room:    c.ticket.Room,
		From:    from,
		SDPType: string(desc.Kind),
		SDP:     desc.SDP,
	})
}

// SendCandidate publishes a locally gathered ICE candidate to the room,
// tagged with the sender's role so the receiver can route it.
func (c *Client) SendCandidate(cand domain.Candidate, from string, role domain.Role) {
	c.sendJSON(message{
		Type:          msgTypeCandidate,
		Room:          c.ticket.Room,
		From:          from,
		Role:          string(role),
		SDPMid:        cand.SDPMid,
		SDPMLineIndex: cand.SDPMLineIndex,
		Candidate:     cand.Candidate,
	})
}

func (c *Client) sendJSON(msg message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.Warnf("write %s: %v", msg.Type, err)
	}
}

func (c *Client) readLoop() {
	defer c.Close()

	for {
		select {
		case <-c.closed:
			return
		default:
		}

		var msg message
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.closed:
			default:
				c.log.Errorf("read: %v", err)
				c.handler.OnChannelFailure(fmt.Errorf("signal read: %w", err))
			}
			return
		}

		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg message) {
	switch msg.Type {
	case msgTypeDescription:
		c.log.Debugf("description %s from %s", msg.SDPType, msg.From)
		c.handler.OnDescriptionReceived(domain.SessionDescription{
			Kind: domain.DescriptionKind(msg.SDPType),
			SDP:  msg.SDP,
		}, msg.From)

	case msgTypeCandidate:
		c.log.Debugf("candidate from %s", msg.From)
		c.handler.OnCandidateReceived(domain.Candidate{
			SDPMid:        msg.SDPMid,
			SDPMLineIndex: msg.SDPMLineIndex,
			Candidate:     msg.Candidate,
			Origin:        msg.From,
		}, msg.From, domain.Role(msg.Role))

	case msgTypeJoin:
		c.log.Infof("participant %s joined", msg.From)

	default:
		c.log.Warnf("unhandled message type: %s", msg.Type)
	}
}

func (c *Client) pingLoop() {
	interval := c.ticket.SignalPingInterval
	if interval <= 0 {
		interval = 30
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := c.conn.WriteControl(
				websocket.PingMessage,
				[]byte{},
				time.Now().Add(5*time.Second),
			)
			c.mu.Unlock()
			if err != nil {
				select {
				case <-c.closed:
				default:
					c.log.Warnf("ping: %v", err)
				}
				return
			}
		}
	}
}
