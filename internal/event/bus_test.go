package event

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestBus_PublishFanOut(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	ev := NewBidCreated(time.Now(), 1, "alice", decimal.NewFromInt(150))
	b.Publish(ev)

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case got := <-ch:
			if got.GetType() != TypeBidCreated {
				t.Errorf("subscriber %d: type = %s, want %s", i, got.GetType(), TypeBidCreated)
			}
			if got.GetID() == "" {
				t.Errorf("subscriber %d: event has no ID", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out waiting for event", i)
		}
	}
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, cancel := b.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected channel closed after cancel")
	}

	// Publishing after cancel must not panic.
	b.Publish(NewWithdrawBid(time.Now(), 1, "bob", decimal.NewFromInt(10)))
}

func TestBus_SlowSubscriberEvicted(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, _ := b.Subscribe()

	// Fill the buffer without draining, then overflow it once.
	for i := 0; i < 257; i++ {
		b.Publish(NewBidCreated(time.Now(), 1, "alice", decimal.NewFromInt(int64(i+1))))
	}

	// The channel was closed on eviction; drain until it reports closed.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("expected slow subscriber channel to be closed")
		}
	}
}

func TestBus_CloseIdempotent(t *testing.T) {
	b := NewBus()
	ch, _ := b.Subscribe()
	b.Close()
	b.Close()

	if _, ok := <-ch; ok {
		t.Error("expected channel closed after bus shutdown")
	}

	// Subscribe after close returns a closed channel.
	ch2, cancel := b.Subscribe()
	defer cancel()
	if _, ok := <-ch2; ok {
		t.Error("expected closed channel from Subscribe after Close")
	}
}
