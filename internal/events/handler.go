// internal/events/handler.go
package events

import "context"

// Handler consumes events of one subscribed type. Handlers run on the
// bus's dispatch goroutines and should return quickly.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a bare function act as a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription detaches its handler from the bus.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id  string
	bus *Bus
	typ EventType
}

func (s *subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id, s.typ)
}
