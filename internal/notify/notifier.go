// Package notify provides an in-process notification bus announcing
// committed writes to the local store.
package notify

import (
	"strings"
	"sync"

	"github.com/eventlake/eventlake/pkg/types"
)

// Notification announces one committed change.
type Notification struct {
	Kind types.OperationKind

	// Key is the user id of the changed event
	Key string

	// Seq is the change-feed sequence number of the write
	Seq int64

	// Timestamp is the commit time in Unix milliseconds
	Timestamp int64
}

// Subscriber represents a notification subscriber.
type Subscriber struct {
	ID      string
	Filters []string
	Ch      chan Notification
}

// Notifier fans notifications out to subscribers.
type Notifier struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	bufferSize  int
}

// NewNotifier creates a notifier whose subscriber channels hold bufferSize
// notifications.
func NewNotifier(bufferSize int) *Notifier {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Notifier{
		subscribers: make(map[string]*Subscriber),
		bufferSize:  bufferSize,
	}
}

// Publish sends a notification to all matching subscribers.
// Non-blocking: if a subscriber's channel is full, the notification is dropped.
func (n *Notifier) Publish(notif Notification) {
	if n == nil {
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, sub := range n.subscribers {
		if !matches(sub.Filters, notif.Key) {
			continue
		}
		select {
		case sub.Ch <- notif:
		default:
			// Channel full - drop notification, do NOT block
		}
	}
}

// Subscribe registers id for notifications whose key starts with one of
// filters. No filters receives everything. Subscribing an existing id
// replaces it.
func (n *Notifier) Subscribe(id string, filters ...string) *Subscriber {
	sub := &Subscriber{
		ID:      id,
		Filters: filters,
		Ch:      make(chan Notification, n.bufferSize),
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if old, ok := n.subscribers[id]; ok {
		close(old.Ch)
	}
	n.subscribers[id] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (n *Notifier) Unsubscribe(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if sub, ok := n.subscribers[id]; ok {
		delete(n.subscribers, id)
		close(sub.Ch)
	}
}

// Len returns the number of subscribers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subscribers)
}

func matches(filters []string, key string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f == "" || strings.HasPrefix(key, f) {
			return true
		}
	}
	return false
}
