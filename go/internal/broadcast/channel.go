// Package broadcast fans out values to any number of subscribers.
package broadcast

import "sync"

// Channel delivers the latest broadcast value to every subscriber. Each
// subscriber channel holds one value; a slow reader sees only the most recent
// one and never blocks Broadcast.
type Channel[T any] struct {
	subscribers map[<-chan T]chan T
	mu          sync.RWMutex
}

func NewChannel[T any]() *Channel[T] {
	return &Channel[T]{
		subscribers: make(map[<-chan T]chan T),
	}
}

// Subscribe registers a new subscriber and returns its receive channel.
func (c *Channel[T]) Subscribe() <-chan T {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan T, 1)
	c.subscribers[ch] = ch
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (c *Channel[T]) Unsubscribe(ch <-chan T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if writeCh, exists := c.subscribers[ch]; exists {
		delete(c.subscribers, ch)
		close(writeCh)
	}
}

// UnsubscribeAll closes every subscriber channel.
func (c *Channel[T]) UnsubscribeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, writeCh := range c.subscribers {
		close(writeCh)
	}
	clear(c.subscribers)
}

// Broadcast replaces any undelivered value with message.
func (c *Channel[T]) Broadcast(message T) {
	// Full lock: the drain-then-send below must not interleave with another Broadcast.
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, writeCh := range c.subscribers {
		select {
		case writeCh <- message:
			continue
		default:
		}
		select {
		case <-writeCh:
		default:
		}
		select {
		case writeCh <- message:
		default:
		}
	}
}

func (c *Channel[T]) IsIdle() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscribers) == 0
}

func (c *Channel[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscribers)
}
