// Package runtime owns the live connection state and the event fan-out.
// It moves bytes and events around; domain rules live in the services.
package runtime

import (
	"sync"

	"chat-relay/contract"
)

type Set map[string]struct{}

type session struct {
	userID string
	sink   contract.EventSink
}

// Registry is the single owner of the connection-to-user map. One logical
// channel exists per user id; many connections may share it. All access
// goes through the mutex, so authenticate and disconnect from concurrent
// connection handlers stay serialized.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]session // connection id -> bound session
	channels map[string]Set     // user id -> connection ids on their channel
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]session),
		channels: make(map[string]Set),
	}
}

// Bind attaches an authenticated connection to a user and subscribes it to
// that user's channel. Rebinding an already-bound connection moves it off
// its previous channel first.
func (r *Registry) Bind(connID, userID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.sessions[connID]; ok {
		r.dropFromChannel(prev.userID, connID)
	}
	r.sessions[connID] = session{userID: userID, sink: sink}

	if _, ok := r.channels[userID]; !ok {
		r.channels[userID] = make(Set)
	}
	r.channels[userID][connID] = struct{}{}
}

// Release removes a connection's binding, if any. Message state is never
// touched here; a disconnect only affects delivery.
func (r *Registry) Release(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connID]
	if !ok {
		return "", false
	}
	delete(r.sessions, connID)
	r.dropFromChannel(sess.userID, connID)
	return sess.userID, true
}

// SinksFor returns every live sink subscribed to a user's channel.
// Returns nil when the user has no connection: the event is simply lost.
func (r *Registry) SinksFor(userID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.channels[userID]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(members))
	for connID := range members {
		if sess, exists := r.sessions[connID]; exists {
			sinks = append(sinks, sess.sink)
		}
	}
	return sinks
}

// UserOf reports the user a connection is bound to.
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[connID]
	return sess.userID, ok
}

// Stats reports the number of live connections and distinct online users.
func (r *Registry) Stats() (connections, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), len(r.channels)
}

// dropFromChannel removes connID from a user's channel and deletes the
// channel entry entirely once empty, to avoid leaking sets over time.
// Caller holds the write lock.
func (r *Registry) dropFromChannel(userID, connID string) {
	if members, ok := r.channels[userID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.channels, userID)
		}
	}
}
