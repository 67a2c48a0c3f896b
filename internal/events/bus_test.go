package events

import (
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe("t1", 4)
	defer cancel()

	bus.Publish(StatusEvent{TaskID: "t1", State: "running", Progress: 50})
	bus.Publish(StatusEvent{TaskID: "t2", State: "running"}) // different task

	select {
	case ev := <-ch:
		if ev.State != "running" || ev.Progress != 50 {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case ev := <-ch:
		t.Errorf("received event for another task: %+v", ev)
	default:
	}
}

func TestBusSeedDeliveredFirst(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	seed := StatusEvent{TaskID: "t1", State: "pending"}
	ch, cancel := bus.Subscribe("t1", 4, seed)
	defer cancel()

	bus.Publish(StatusEvent{TaskID: "t1", State: "running"})

	first := <-ch
	if first.State != "pending" {
		t.Errorf("first event = %+v, want seeded pending", first)
	}
	second := <-ch
	if second.State != "running" {
		t.Errorf("second event = %+v, want running", second)
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe("t1", 1)
	defer cancel()

	// Second publish must not block even though nobody is draining.
	done := make(chan struct{})
	go func() {
		bus.Publish(StatusEvent{TaskID: "t1", Progress: 1})
		bus.Publish(StatusEvent{TaskID: "t1", Progress: 2})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	ev := <-ch
	if ev.Progress != 1 {
		t.Errorf("buffered event progress = %d, want 1", ev.Progress)
	}
}

func TestBusCloseTopic(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe("t1", 4)
	defer cancel()

	bus.Publish(StatusEvent{TaskID: "t1", State: "completed", Progress: 100})
	bus.CloseTopic("t1")

	// Buffered terminal event drains, then the channel closes.
	ev, ok := <-ch
	if !ok || ev.State != "completed" {
		t.Errorf("event = %+v ok=%v, want buffered completed event", ev, ok)
	}
	if _, ok := <-ch; ok {
		t.Error("channel still open after CloseTopic")
	}

	// Cancel after CloseTopic must not panic.
	cancel()
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	ch, _ := bus.Subscribe("t1", 4)

	bus.Close()
	bus.Close() // idempotent

	if _, ok := <-ch; ok {
		t.Error("channel still open after Close")
	}

	// Subscribing after Close yields a closed channel.
	ch2, _ := bus.Subscribe("t2", 4)
	if _, ok := <-ch2; ok {
		t.Error("subscription after Close should be closed immediately")
	}
}
