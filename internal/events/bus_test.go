package events

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tunnelward/tunnelward/internal/model"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	b := NewBus(8)
	defer b.Close()

	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	b.Publish(model.ErrorEvent("boom", ""))

	for i, ch := range []<-chan model.Event{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Type != model.EventError || evt.Message != "boom" {
				t.Fatalf("subscriber %d got wrong event: %+v", i, evt)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the event", i)
		}
	}
}

func TestBusNeverBlocksOnSlowSubscriber(t *testing.T) {
	b := NewBus(2)
	defer b.Close()

	ch, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			b.Publish(model.ErrorEvent("flood", ""))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	if b.Dropped() == 0 {
		t.Fatal("expected dropped events for a lagged subscriber")
	}
	// The subscriber still sees recent events.
	select {
	case <-ch:
	default:
		t.Fatal("expected buffered events to remain readable")
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	b := NewBus(4)
	defer b.Close()

	ch, cancel := b.Subscribe()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
	// Publishing after a cancel must not panic.
	b.Publish(model.ErrorEvent("after-cancel", ""))
}

func TestJournalAppendRead(t *testing.T) {
	j := NewJournal(filepath.Join(t.TempDir(), "events.jsonl"))

	if err := j.Append(model.ConnectedEvent(uuid.New(), "vps")); err != nil {
		t.Fatal(err)
	}
	if err := j.Append(model.ErrorEvent("oops", "ctx")); err != nil {
		t.Fatal(err)
	}

	all, err := j.Read(Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}

	conns, err := j.Read(Query{Type: model.EventConnected})
	if err != nil {
		t.Fatal(err)
	}
	if len(conns) != 1 || conns[0].ProfileName != "vps" {
		t.Fatalf("unexpected filter result: %+v", conns)
	}
}
