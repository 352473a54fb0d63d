package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	readLimit    = 1 << 20 // 1MB
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 5 * time.Second
)

// Conn owns one websocket: a read loop feeding the router and a single
// write pump draining the connection's sink, so no two goroutines ever
// write the socket concurrently.
type Conn struct {
	id   string
	ws   *websocket.Conn
	sink *Sink
	log  *slog.Logger
}

func newConn(id string, ws *websocket.Conn, sink *Sink, log *slog.Logger) *Conn {
	return &Conn{id: id, ws: ws, sink: sink, log: log}
}

// readLoop decodes inbound frames and hands them to the router. It returns
// when the peer disconnects or sends garbage; the caller cleans up.
func (c *Conn) readLoop(ctx context.Context, router *Router) {
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read failed", "conn_id", c.id, "error", err)
			}
			return
		}
		router.Handle(ctx, c.id, c.sink, env)
	}
}

// writePump serializes all outbound traffic: frames queued on the sink
// plus the keepalive pings.
func (c *Conn) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-c.sink.frames:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(env); err != nil {
				c.log.Debug("write failed", "conn_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
