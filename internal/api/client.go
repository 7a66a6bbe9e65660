// Package api fetches room tickets from the rendezvous service.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"duocall/native/internal/domain"
)

type ticketRequest struct {
	Room string `json:"room"`
}

type ticketResponse struct {
	Result int               `json:"result"`
	Msg    string            `json:"msg"`
	Data   domain.RoomTicket `json:"data"`
}

// Client fetches room tickets carrying the signaling endpoint and ICE server
// configuration.
type Client struct {
	baseURL string
	token   string
}

// NewClient creates a rendezvous API client.
func NewClient(baseURL, token string) *Client {
	return &Client{baseURL: baseURL, token: token}
}

// FetchRoomTicket obtains the signaling endpoint and ICE servers for a room.
func (c *Client) FetchRoomTicket(room string) (*domain.RoomTicket, error) {
	body, err := json.Marshal(ticketRequest{Room: room})
	if err != nil {
		return nil, fmt.Errorf("marshal ticket request: %w", err)
	}

	httpReq, err := http.NewRequest("POST", c.baseURL+"/v1/rooms/ticket", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
	}

	var ticketResp ticketResponse
	if err := json.Unmarshal(respBody, &ticketResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if ticketResp.Result != 0 {
		return nil, fmt.Errorf("API error (result=%d): %s", ticketResp.Result, ticketResp.Msg)
	}

	if ticketResp.Data.Room == "" {
		ticketResp.Data.Room = room
	}
	return &ticketResp.Data, nil
}
