package session

import (
	"context"
	"sync"
	"time"
)

// EventKind identifies an authentication-state change.
type EventKind string

const (
	EventLogin          EventKind = "auth:login"
	EventLogout         EventKind = "auth:logout"
	EventSessionExpired EventKind = "auth:sessionExpired"
)

// Event is delivered to subscribers when the session changes outside their
// direct call chain.
type Event struct {
	Kind EventKind
	At   time.Time
}

// broadcaster fan-outs events to all active subscribers.
type broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

// subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (b *broadcaster) subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// publish fan-outs the event to all subscribers.
func (b *broadcaster) publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
