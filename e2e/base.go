// Package e2e exercises the full stack over a real websocket: storage,
// services, fan-out and protocol, with only the listener replaced by an
// in-process test server.
package e2e

import (
	"log/slog"
	"net/http/httptest"
	"strings"
	"time"

	"chat-relay/client"
	"chat-relay/projection"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
	"chat-relay/ws"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/suite"
)

const (
	password    = "Sup3r-Secret-Pass!"
	waitTimeout = 2 * time.Second
)

type BaseChatSuite struct {
	suite.Suite
	server *httptest.Server
	url    string
}

// SetupTest boots a fresh stack per test so scenarios never share state.
func (s *BaseChatSuite) SetupTest() {
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)

	messages, err := repositories.NewMessageRepository(db, log)
	s.Require().NoError(err)
	users := repositories.NewUserRepository(db)

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(s.T().TempDir()))
	s.Require().NoError(err)
	index := repositories.NewSearchIndex(writer, log)

	registry := runtime.NewRegistry()
	projector := projection.NewProjector(messages)
	fanout := runtime.NewFanout(log, registry, projector)

	authService := services.NewAuthService(users, time.Hour)
	messageService := services.NewMessageService(
		messages, users, index, projector, fanout, nil, log)

	router := ws.NewRouter(log, authService, messageService, registry)
	s.server = httptest.NewServer(ws.NewServer(log, router, registry, 64))
	s.url = "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"

	s.T().Cleanup(func() {
		s.server.Close()
		_ = messages.Close()
		_ = writer.Close()
		_ = db.Close()
	})
}

// Connect dials the test server, registers a new account and authenticates
// the connection, returning the client and the user id.
func (s *BaseChatSuite) Connect(username string) (*client.Client, string) {
	c, err := client.Dial(s.url)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = c.Close() })

	s.Require().NoError(c.Emit("register", map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": password,
	}))
	env, err := c.WaitFor("register_success", waitTimeout)
	s.Require().NoError(err)

	var registered struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	s.Require().NoError(env.Decode(&registered))

	s.Require().NoError(c.Emit("authenticate", map[string]any{"credential": registered.Token}))
	_, err = c.WaitFor("authenticated", waitTimeout)
	s.Require().NoError(err)

	return c, registered.User.ID
}

// Send emits a message and returns its id from the ack.
func (s *BaseChatSuite) Send(c *client.Client, receiverID, body string) uint64 {
	s.Require().NoError(c.Emit("send_message", map[string]any{
		"receiverId": receiverID,
		"message":    body,
	}))
	env, err := c.WaitFor("message_sent", waitTimeout)
	s.Require().NoError(err)

	var sent struct {
		ID uint64 `json:"id"`
	}
	s.Require().NoError(env.Decode(&sent))
	return sent.ID
}

type conversationView struct {
	User1ID  string `json:"user1Id"`
	User2ID  string `json:"user2Id"`
	Messages []struct {
		ID      uint64 `json:"id"`
		Message string `json:"message"`
		Read    bool   `json:"read"`
	} `json:"messages"`
}

// View requests the conversation with otherUserID and returns the refreshed
// projection delivered back on the same connection.
func (s *BaseChatSuite) View(c *client.Client, otherUserID string) conversationView {
	s.Require().NoError(c.Emit("get_conversation", map[string]any{"otherUserId": otherUserID}))
	env, err := c.WaitFor("conversation_updated", waitTimeout)
	s.Require().NoError(err)

	var view conversationView
	s.Require().NoError(env.Decode(&view))
	return view
}
