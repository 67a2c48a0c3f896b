package events

import "sync"

// Bus is a channel-based pub-sub bus with one topic per task id.
// Each subscriber gets an independent buffered channel; delivery to a full
// subscriber drops the event for that subscriber rather than blocking.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]chan StatusEvent // task id -> subscriber channels
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]chan StatusEvent)}
}

// Subscribe creates an independent subscription to one task's events.
// bufSize determines the channel buffer (defaults to 16 if <= 0). Optional
// seed events are delivered before any published event, which lets the
// caller hand a new subscriber the task's current state first.
//
// The returned cancel function removes the subscription and closes the
// channel; it is safe to call after the topic has already been closed.
func (b *Bus) Subscribe(taskID string, bufSize int, seed ...StatusEvent) (<-chan StatusEvent, func()) {
	if bufSize <= 0 {
		bufSize = 16
	}
	if bufSize < len(seed) {
		bufSize = len(seed)
	}

	ch := make(chan StatusEvent, bufSize)
	for _, ev := range seed {
		ch <- ev
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[taskID] = append(b.subs[taskID], ch)

	cancel := func() { b.unsubscribe(taskID, ch) }
	return ch, cancel
}

// unsubscribe removes ch from the topic and closes it, once.
func (b *Bus) unsubscribe(taskID string, ch chan StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	channels := b.subs[taskID]
	for i, c := range channels {
		if c == ch {
			b.subs[taskID] = append(channels[:i], channels[i+1:]...)
			close(ch)
			return
		}
	}
	// Already removed by CloseTopic or Close.
}

// Publish sends ev to every subscriber of its task. Non-blocking: a
// subscriber whose buffer is full misses this event.
func (b *Bus) Publish(ev StatusEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs[ev.TaskID] {
		select {
		case ch <- ev:
		default:
			// Subscriber is not keeping up; the task record stays authoritative.
		}
	}
}

// CloseTopic closes every subscriber channel for one task and forgets the
// topic. Used when a task reaches a terminal state: subscribers drain any
// buffered events and then observe the closed channel.
func (b *Bus) CloseTopic(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[taskID] {
		close(ch)
	}
	delete(b.subs, taskID)
}

// Close shuts down the bus, closing all subscriber channels.
// Safe to call multiple times.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, channels := range b.subs {
		for _, ch := range channels {
			close(ch)
		}
	}
	b.subs = make(map[string][]chan StatusEvent)
}
