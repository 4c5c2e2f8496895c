package eventbus

import (
	"sync"
	"testing"
	"time"
)

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	b := New(16)
	ch, cancel := b.Subscribe(4)
	defer cancel()

	b.Publish(KindAlert, "twr", "military traffic")

	select {
	case e := <-ch:
		if e.Kind != KindAlert || e.ChannelID != "twr" {
			t.Fatalf("unexpected event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishDropsOldestWhenSubscriberFull(t *testing.T) {
	b := New(16)
	ch, cancel := b.Subscribe(2)
	defer cancel()

	b.Publish(KindStatsUpdate, "", 1)
	b.Publish(KindStatsUpdate, "", 2)
	b.Publish(KindStatsUpdate, "", 3) // channel cap 2, forces a drop

	var received []int
	drain := time.After(200 * time.Millisecond)
loop:
	for {
		select {
		case e := <-ch:
			received = append(received, e.Payload.(int))
		case <-drain:
			break loop
		}
	}
	if len(received) != 2 {
		t.Fatalf("expected exactly 2 buffered events to survive, got %v", received)
	}
	if received[len(received)-1] != 3 {
		t.Fatalf("expected the newest event to survive, got %v", received)
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	b := New(16)
	_, cancel := b.Subscribe(4)
	if b.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.SubscriberCount())
	}
	cancel()
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after cancel, got %d", b.SubscriberCount())
	}
}

func TestReplaySinceReturnsEventsAfterGivenID(t *testing.T) {
	b := New(16)
	b.Publish(KindStatsUpdate, "", 1)
	all := b.ReplaySince("")
	if len(all) != 1 {
		t.Fatalf("expected 1 buffered event, got %d", len(all))
	}
	firstID := all[0].ID

	b.Publish(KindStatsUpdate, "", 2)
	b.Publish(KindStatsUpdate, "", 3)

	since := b.ReplaySince(firstID)
	if len(since) != 2 {
		t.Fatalf("expected 2 events after %q, got %d", firstID, len(since))
	}
}

func TestReplaySinceRingWraparound(t *testing.T) {
	b := New(3)
	for i := 0; i < 5; i++ {
		b.Publish(KindStatsUpdate, "", i)
	}
	all := b.ReplaySince("")
	if len(all) != 3 {
		t.Fatalf("expected ring to retain only the last 3 events, got %d", len(all))
	}
	if all[0].Payload.(int) != 2 || all[2].Payload.(int) != 4 {
		t.Fatalf("unexpected retained events: %+v", all)
	}
}

func TestBatcherFlushesOnMaxSize(t *testing.T) {
	flushed := make(chan []int, 1)
	b := NewBatcher(3, time.Hour, func(items []int) { flushed <- items })
	b.Add(1)
	b.Add(2)
	b.Add(3)

	select {
	case items := <-flushed:
		if len(items) != 3 {
			t.Fatalf("expected 3 items, got %v", items)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for size-triggered flush")
	}
}

func TestBatcherFlushesOnInterval(t *testing.T) {
	flushed := make(chan []int, 1)
	b := NewBatcher(100, 20*time.Millisecond, func(items []int) { flushed <- items })
	b.Add(1)

	select {
	case items := <-flushed:
		if len(items) != 1 {
			t.Fatalf("expected 1 item, got %v", items)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for interval-triggered flush")
	}
}

func TestBatcherStopFlushesRemaining(t *testing.T) {
	var mu sync.Mutex
	var got []int
	b := NewBatcher(100, time.Hour, func(items []int) {
		mu.Lock()
		got = append(got, items...)
		mu.Unlock()
	})
	b.Add(1)
	b.Add(2)
	b.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected 2 items flushed on stop, got %v", got)
	}
}
