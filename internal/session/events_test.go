package session

import (
	"context"
	"testing"
	"time"
)

func TestSubscribeClosesOnContextEnd(t *testing.T) {
	b := newBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	ch := b.subscribe(ctx)

	b.publish(Event{Kind: EventLogin, At: time.Now()})
	select {
	case evt := <-ch:
		if evt.Kind != EventLogin {
			t.Fatalf("unexpected event: %s", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatalf("event was not delivered")
	}

	cancel()
	select {
	case _, open := <-ch:
		if open {
			t.Fatalf("expected channel close, got another event")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel was not closed after context end")
	}

	// Publishing after unsubscription must not panic or block.
	b.publish(Event{Kind: EventLogout, At: time.Now()})
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	b := newBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = b.subscribe(ctx) // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.publish(Event{Kind: EventLogin, At: time.Now()})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}
}
