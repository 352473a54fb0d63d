package ws

import (
	"log/slog"
	"net/http"

	"chat-relay/contract"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server upgrades HTTP requests to websocket connections and runs their
// read/write loops. Authentication happens after the upgrade, through the
// authenticate protocol event; an unauthenticated connection can only
// register, login or authenticate.
type Server struct {
	log        *slog.Logger
	router     *Router
	registry   contract.IRegistry
	bufferSize int
	upgrader   websocket.Upgrader
}

func NewServer(log *slog.Logger, router *Router, registry contract.IRegistry, bufferSize int) *Server {
	return &Server{
		log:        log,
		router:     router,
		registry:   registry,
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "error", err)
		return
	}

	connID := uuid.NewString()
	sink := NewSink(s.bufferSize)
	c := newConn(connID, conn, sink, s.log)
	s.log.Debug("connection opened", "conn_id", connID)

	// The write pump stops with the request context; the read loop stops
	// on disconnect. Releasing the binding only affects delivery, never
	// message state, and an in-flight mutation is not rolled back.
	go c.writePump(r.Context())
	c.readLoop(r.Context(), s.router)

	if userID, bound := s.registry.Release(connID); bound {
		s.log.Debug("connection closed", "conn_id", connID, "user_id", userID)
	} else {
		s.log.Debug("connection closed", "conn_id", connID)
	}
	_ = conn.Close()
}
