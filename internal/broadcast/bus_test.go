package broadcast

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/visiona/framecast/internal/capture"
)

func TestBasicPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub, err := bus.Subscribe("viewer")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	bus.Publish(capture.Frame{Seq: 1, Data: []byte("jpeg")})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	frame, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if frame.Seq != 1 {
		t.Errorf("expected seq 1, got %d", frame.Seq)
	}
}

func TestDuplicateSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	if _, err := bus.Subscribe("viewer"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := bus.Subscribe("viewer"); !errors.Is(err, ErrSubscriberExists) {
		t.Errorf("expected ErrSubscriberExists, got %v", err)
	}
}

// TestNonBlockingPublish verifies Publish returns immediately even when no
// subscriber is draining its mailbox.
func TestNonBlockingPublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub, _ := bus.Subscribe("slow")
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := uint64(1); i <= 100; i++ {
			bus.Publish(capture.Frame{Seq: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked (should be non-blocking)")
	}
}

// TestLatestWins verifies a pending frame is replaced by a newer one
// rather than queued behind it.
func TestLatestWins(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub, _ := bus.Subscribe("viewer")
	defer sub.Close()

	bus.Publish(capture.Frame{Seq: 1})
	bus.Publish(capture.Frame{Seq: 2})
	bus.Publish(capture.Frame{Seq: 3})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	frame, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if frame.Seq != 3 {
		t.Errorf("expected latest frame seq 3, got %d", frame.Seq)
	}

	stats := bus.Stats()
	viewer := stats.Subscribers["viewer"]
	if viewer.Replaced != 2 {
		t.Errorf("expected 2 replaced, got %d", viewer.Replaced)
	}
	if stats.Published != 3 {
		t.Errorf("expected 3 published, got %d", stats.Published)
	}
}

func TestNextHonorsContext(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub, _ := bus.Subscribe("viewer")
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := sub.Next(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCloseWithCauseWakesReceivers(t *testing.T) {
	bus := NewBus()
	sub, _ := bus.Subscribe("viewer")

	cause := fmt.Errorf("device unplugged")
	go func() {
		time.Sleep(20 * time.Millisecond)
		bus.CloseWithCause(cause)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := sub.Next(ctx)
	if !errors.Is(err, cause) {
		t.Errorf("expected terminal cause, got %v", err)
	}

	// Late subscribers are refused.
	if _, err := bus.Subscribe("late"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed for late subscriber, got %v", err)
	}
}

func TestUnsubscribeDoesNotDisturbOthers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	a, _ := bus.Subscribe("a")
	b, _ := bus.Subscribe("b")

	a.Close()
	bus.Publish(capture.Frame{Seq: 7})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	frame, err := b.Next(ctx)
	if err != nil {
		t.Fatalf("surviving subscriber should keep receiving: %v", err)
	}
	if frame.Seq != 7 {
		t.Errorf("expected seq 7, got %d", frame.Seq)
	}

	if bus.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", bus.SubscriberCount())
	}
}

func TestConcurrentSubscribeAndPublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := uint64(0); i < 200; i++ {
			bus.Publish(capture.Frame{Seq: i})
		}
	}()

	for i := 0; i < 50; i++ {
		sub, err := bus.Subscribe(fmt.Sprintf("viewer-%d", i))
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		if i%2 == 0 {
			sub.Close()
		}
	}
	<-done
}
