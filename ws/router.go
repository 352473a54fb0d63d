package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/services"
)

// Router validates inbound protocol events and dispatches them to the
// auth and message services. Everything except authenticate, register and
// login requires a bound session; the guard runs before any payload is
// even decoded, so an unauthenticated event never mutates state.
type Router struct {
	log            *slog.Logger
	authService    services.IAuthService
	messageService services.IMessageService
	registry       contract.IRegistry
}

func NewRouter(log *slog.Logger, authService services.IAuthService,
	messageService services.IMessageService, registry contract.IRegistry) *Router {
	return &Router{
		log:            log,
		authService:    authService,
		messageService: messageService,
		registry:       registry,
	}
}

// Handle processes one inbound envelope for the given connection. Every
// failure is reported back as a structured event; nothing escapes as a
// panic or a dropped error.
func (r *Router) Handle(ctx context.Context, connID string, sink *Sink, env Envelope) {
	switch env.Event {
	case "authenticate":
		r.authenticate(connID, sink, env.Data)
	case "register":
		r.register(sink, env.Data)
	case "login":
		r.login(sink, env.Data)
	default:
		userID, ok := r.registry.UserOf(connID)
		if !ok {
			r.reply(sink, "error", map[string]any{"message": "Not authenticated"})
			return
		}
		r.handleAuthenticated(ctx, userID, sink, env)
	}
}

func (r *Router) handleAuthenticated(ctx context.Context, userID string, sink *Sink, env Envelope) {
	switch env.Event {
	case "send_message":
		r.sendMessage(ctx, userID, sink, env.Data)
	case "get_conversation":
		r.getConversation(ctx, userID, sink, env.Data)
	case "mark_read":
		r.markRead(ctx, userID, sink, env.Data)
	case "mark_unread":
		r.markUnread(ctx, userID, sink, env.Data)
	case "mark_all_read":
		r.markAllRead(ctx, userID, sink, env.Data)
	case "delete_for_me":
		r.deleteForMe(ctx, userID, sink, env.Data)
	case "delete_for_all":
		r.deleteForAll(ctx, userID, sink, env.Data)
	case "search_messages":
		r.searchMessages(ctx, userID, sink, env.Data)
	default:
		r.reply(sink, "error", map[string]any{"message": "Unknown event: " + env.Event})
	}
}

func (r *Router) authenticate(connID string, sink *Sink, data json.RawMessage) {
	var payload authenticatePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Credential == "" {
		r.reply(sink, "auth_error", map[string]any{"message": "credential is required"})
		return
	}
	userID, err := r.authService.Verify(payload.Credential)
	if err != nil {
		r.reply(sink, "auth_error", map[string]any{"message": "Invalid token"})
		return
	}
	r.registry.Bind(connID, userID, sink)
	r.log.Debug("connection authenticated", "conn_id", connID, "user_id", userID)
	r.reply(sink, "authenticated", map[string]any{"userId": userID})
}

func (r *Router) register(sink *Sink, data json.RawMessage) {
	var payload registerPayload
	if err := json.Unmarshal(data, &payload); err != nil ||
		payload.Username == "" || payload.Email == "" || payload.Password == "" {
		r.reply(sink, "register_error", map[string]any{"message": "All fields are required."})
		return
	}
	session, err := r.authService.Register(payload.Username, payload.Email, payload.Password)
	switch {
	case err == nil:
		r.reply(sink, "register_success", map[string]any{
			"user":  wireUser{ID: session.UserID, Username: session.Username, Email: payload.Email},
			"token": session.Token,
		})
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		r.reply(sink, "register_error", map[string]any{"message": "Email already in use."})
	case stderrors.Is(err, errors.ErrValidation):
		r.reply(sink, "register_error", map[string]any{"message": err.Error()})
	default:
		r.log.Error("registration failed", "error", err)
		r.reply(sink, "register_error", map[string]any{"message": "Registration failed."})
	}
}

func (r *Router) login(sink *Sink, data json.RawMessage) {
	var payload loginPayload
	if err := json.Unmarshal(data, &payload); err != nil ||
		payload.Email == "" || payload.Password == "" {
		r.reply(sink, "login_error", map[string]any{"message": "Email and password are required."})
		return
	}
	session, err := r.authService.Login(payload.Email, payload.Password)
	switch {
	case err == nil:
		r.reply(sink, "login_success", map[string]any{
			"token": session.Token,
			"user":  wireUser{ID: session.UserID, Username: session.Username, Email: payload.Email},
		})
	case stderrors.Is(err, errors.ErrInvalidCredentials):
		r.reply(sink, "login_error", map[string]any{"message": "Invalid credentials."})
	default:
		r.log.Error("login failed", "error", err)
		r.reply(sink, "login_error", map[string]any{"message": "Login failed."})
	}
}

func (r *Router) sendMessage(ctx context.Context, userID string, sink *Sink, data json.RawMessage) {
	var payload sendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ReceiverID == "" {
		r.reply(sink, "error", map[string]any{"message": "receiverId is required"})
		return
	}
	msg, err := r.messageService.Send(ctx, userID, payload.ReceiverID, payload.Message)
	switch {
	case err == nil:
		r.reply(sink, "message_sent", map[string]any{"id": msg.ID, "success": true})
	case stderrors.Is(err, errors.ErrEmptyBody):
		r.reply(sink, "error", map[string]any{"message": "message is required"})
	case stderrors.Is(err, errors.ErrNotFound):
		r.reply(sink, "error", map[string]any{"message": "Receiver not found."})
	default:
		r.internal(sink, "Failed to send message", err)
	}
}

func (r *Router) getConversation(ctx context.Context, userID string, sink *Sink, data json.RawMessage) {
	var payload otherUserPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.OtherUserID == "" {
		r.reply(sink, "error", map[string]any{"message": "otherUserId is required"})
		return
	}
	err := r.messageService.GetConversation(ctx, userID, payload.OtherUserID)
	switch {
	case err == nil:
	case stderrors.Is(err, errors.ErrNotFound):
		r.reply(sink, "error", map[string]any{"message": "User not found"})
	default:
		r.internal(sink, "Failed to get conversation", err)
	}
}

func (r *Router) markRead(ctx context.Context, userID string, sink *Sink, data json.RawMessage) {
	id, ok := r.messageID(sink, data)
	if !ok {
		return
	}
	_, err := r.messageService.MarkRead(ctx, id, userID)
	r.replyMutationError(sink, err,
		"You can only mark as read messages you received from others.",
		"Failed to mark message as read")
}

func (r *Router) markUnread(ctx context.Context, userID string, sink *Sink, data json.RawMessage) {
	id, ok := r.messageID(sink, data)
	if !ok {
		return
	}
	_, err := r.messageService.MarkUnread(ctx, id, userID)
	r.replyMutationError(sink, err,
		"You can only mark as unread messages you received from others.",
		"Failed to mark message as unread")
}

func (r *Router) markAllRead(ctx context.Context, userID string, sink *Sink, data json.RawMessage) {
	var payload otherUserPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.OtherUserID == "" {
		r.reply(sink, "error", map[string]any{"message": "otherUserId is required"})
		return
	}
	count, err := r.messageService.MarkAllRead(ctx, userID, payload.OtherUserID)
	if err != nil {
		r.internal(sink, "Failed to mark all as read", err)
		return
	}
	r.reply(sink, "all_read", map[string]any{"otherUserId": payload.OtherUserID, "count": count})
}

func (r *Router) deleteForMe(ctx context.Context, userID string, sink *Sink, data json.RawMessage) {
	id, ok := r.messageID(sink, data)
	if !ok {
		return
	}
	_, err := r.messageService.DeleteForMe(ctx, id, userID)
	r.replyMutationError(sink, err,
		"You cannot delete this message for yourself.",
		"Failed to delete for me")
}

func (r *Router) deleteForAll(ctx context.Context, userID string, sink *Sink, data json.RawMessage) {
	id, ok := r.messageID(sink, data)
	if !ok {
		return
	}
	_, err := r.messageService.DeleteForAll(ctx, id, userID)
	r.replyMutationError(sink, err,
		"You can only delete for all your own messages",
		"Failed to delete for all")
}

func (r *Router) searchMessages(ctx context.Context, userID string, sink *Sink, data json.RawMessage) {
	var payload searchPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Query == "" {
		r.reply(sink, "error", map[string]any{"message": "query is required"})
		return
	}
	messages, err := r.messageService.Search(ctx, userID, payload.Query)
	if err != nil {
		r.internal(sink, "Search failed", err)
		return
	}
	r.reply(sink, "search_results", map[string]any{
		"query":    payload.Query,
		"messages": toWireMessages(messages),
	})
}

// messageID decodes the {messageId} payload shared by the per-message
// mutations; zero is treated as missing.
func (r *Router) messageID(sink *Sink, data json.RawMessage) (uint64, bool) {
	var payload messageIDPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.MessageID == 0 {
		r.reply(sink, "error", map[string]any{"message": "messageId is required"})
		return 0, false
	}
	return payload.MessageID, true
}

// replyMutationError maps a mutation outcome to the protocol: success sends
// nothing here (the fanout already delivered the granular event), Forbidden
// gets the operation-specific message, NotFound and internal failures get
// theirs.
func (r *Router) replyMutationError(sink *Sink, err error, forbiddenMsg, internalMsg string) {
	switch {
	case err == nil:
	case stderrors.Is(err, errors.ErrForbidden):
		r.reply(sink, "error", map[string]any{"message": forbiddenMsg})
	case stderrors.Is(err, errors.ErrNotFound):
		r.reply(sink, "error", map[string]any{"message": "Message not found"})
	default:
		r.internal(sink, internalMsg, err)
	}
}

func (r *Router) internal(sink *Sink, message string, err error) {
	r.log.Error(message, "error", err)
	r.reply(sink, "error", map[string]any{"message": message})
}

func (r *Router) reply(sink *Sink, eventName string, payload any) {
	env, err := newEnvelope(eventName, payload)
	if err != nil {
		r.log.Error("marshal reply", "event", eventName, "error", err)
		return
	}
	if !sink.push(env) {
		r.log.Debug("reply dropped, connection buffer full", "event", eventName)
	}
}
