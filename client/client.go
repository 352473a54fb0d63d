// Package client provides a small typed websocket client for the chat
// protocol. It is used by the end-to-end tests and is handy for manual
// poking at a running server.
package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Envelope mirrors the server's frame format.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Client struct {
	conn *websocket.Conn
}

// Dial connects to a chat websocket endpoint, e.g. "ws://host:port/ws".
func Dial(url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Emit sends one protocol event with its payload.
func (c *Client) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.conn.WriteJSON(Envelope{Event: event, Data: data})
}

// Next blocks until the next frame arrives or the timeout elapses.
func (c *Client) Next(timeout time.Duration) (Envelope, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// WaitFor reads frames until one matches the wanted event name, discarding
// everything else. Useful when fan-out interleaves granular events and
// projection refreshes.
func (c *Client) WaitFor(event string, timeout time.Duration) (Envelope, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Envelope{}, fmt.Errorf("no %q event within %s", event, timeout)
		}
		env, err := c.Next(remaining)
		if err != nil {
			return Envelope{}, err
		}
		if env.Event == event {
			return env, nil
		}
	}
}

// Decode unmarshals the frame payload into out.
func (e Envelope) Decode(out any) error {
	return json.Unmarshal(e.Data, out)
}
