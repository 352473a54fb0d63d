package ws

import (
	"context"

	"chat-relay/domain/event"
)

// Sink adapts one connection's outbound frame channel to the fanout's
// EventSink contract. Delivery is best-effort: when the buffer is full the
// event is dropped and the client recovers on its next full fetch.
type Sink struct {
	frames chan Envelope
}

func NewSink(bufferSize int) *Sink {
	return &Sink{frames: make(chan Envelope, bufferSize)}
}

// Consume is called by the fanout; the connection's write pump drains the
// channel from the other side.
func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	env, err := toOutbound(e)
	if err != nil {
		return err
	}
	select {
	case s.frames <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Backpressure: the connection is not keeping up.
		return nil
	}
}

// push queues a direct reply on the same channel the fanout uses, so one
// writer owns the socket. Returns false when the frame was dropped.
func (s *Sink) push(env Envelope) bool {
	select {
	case s.frames <- env:
		return true
	default:
		return false
	}
}
