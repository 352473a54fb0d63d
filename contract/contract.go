//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-relay/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself; the supervisor recovers its panics.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// for logging and supervision, avoiding manual naming in the interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one live connection's inbox. Consume must not block the
// caller beyond ctx; a sink that cannot keep up loses events.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry binds live connections to authenticated users and resolves a
// user id to every sink currently subscribed to their channel.
type IRegistry interface {
	Bind(connID, userID string, sink EventSink)
	Release(connID string) (userID string, bound bool)
	SinksFor(userID string) []EventSink
	UserOf(connID string) (string, bool)
}

// IFanout pushes granular events and recomputed projections to the
// channels of the affected users. Both deliveries are best-effort.
type IFanout interface {
	Emit(ctx context.Context, e event.DomainEvent)
	RefreshConversation(ctx context.Context, user1ID, user2ID string)
}
