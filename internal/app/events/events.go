// Package events carries domain change notifications from the services to
// in-process subscribers and the websocket feed. Clients that previously
// watched mutable state now observe the same changes as an ordered stream.
package events

import (
	"fmt"
	"sync"
	"time"
)

// Type classifies a domain event.
type Type string

const (
	TypeBalanceChanged Type = "ledger.balance_changed"

	TypeTaskCreated         Type = "task.created"
	TypeTaskClaimed         Type = "task.claimed"
	TypeTaskUnclaimed       Type = "task.unclaimed"
	TypeTaskPendingApproval Type = "task.pending_approval"
	TypeTaskCompleted       Type = "task.completed"
	TypeTaskApproved        Type = "task.approved"
	TypeTaskSpawned         Type = "task.spawned"

	TypeRewardRedeemed Type = "reward.redeemed"
	TypeRewardUsed     Type = "reward.used"

	TypeTreePlanted  Type = "tree.planted"
	TypeTreeWatered  Type = "tree.watered"
	TypeTreeGrown    Type = "tree.grown"
	TypeLevelChanged Type = "tree.level_changed"

	TypeFeatureToggled   Type = "feature.toggled"
	TypePresetApplied    Type = "feature.preset_applied"
	TypeFeatureRequested Type = "feature.requested"
	TypeFeatureResolved  Type = "feature.request_resolved"
)

// Event is one domain change. EntityID names the changed aggregate (task id,
// tree id, redemption id); AccountID is the member the change concerns, when
// there is one.
type Event struct {
	ID        string            `json:"id"`
	Type      Type              `json:"type"`
	FamilyID  string            `json:"familyId,omitempty"`
	AccountID string            `json:"accountId,omitempty"`
	EntityID  string            `json:"entityId,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Handler processes events as they are published.
type Handler func(Event)

// Filter decides whether a subscriber sees an event.
type Filter func(Event) bool

// Bus is a thread-safe publish/subscribe hub with a bounded replay buffer.
type Bus struct {
	mu       sync.RWMutex
	events   []Event
	size     int
	head     int
	count    int
	handlers []handlerEntry
	nextID   int64
	seq      int64
}

type handlerEntry struct {
	id      int64
	filter  Filter
	handler Handler
}

// NewBus creates a bus retaining the most recent size events.
func NewBus(size int) *Bus {
	if size <= 0 {
		size = 1000
	}
	return &Bus{
		events: make([]Event, size),
		size:   size,
	}
}

// Publish stores the event and notifies subscribers. Handlers run outside the
// lock, on the publisher's goroutine.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ID == "" {
		b.seq++
		event.ID = fmt.Sprintf("%s-%d", event.Timestamp.Format("20060102150405"), b.seq)
	}

	b.events[b.head] = event
	b.head = (b.head + 1) % b.size
	if b.count < b.size {
		b.count++
	}

	handlers := make([]handlerEntry, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.Unlock()

	for _, h := range handlers {
		if h.filter == nil || h.filter(event) {
			h.handler(event)
		}
	}
}

// Subscribe registers a handler for all events and returns its unsubscribe
// function.
func (b *Bus) Subscribe(handler Handler) func() {
	return b.SubscribeFiltered(nil, handler)
}

// SubscribeFiltered registers a handler that only sees events the filter
// accepts.
func (b *Bus) SubscribeFiltered(filter Filter, handler Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers = append(b.handlers, handlerEntry{id: id, filter: filter, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, h := range b.handlers {
			if h.id == id {
				b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
				return
			}
		}
	}
}

// Recent returns up to n buffered events, newest first.
func (b *Bus) Recent(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	result := make([]Event, n)
	for i := 0; i < n; i++ {
		idx := (b.head - 1 - i + b.size) % b.size
		result[i] = b.events[idx]
	}
	return result
}

// RecentByAccount returns up to n buffered events for one account, newest
// first.
func (b *Bus) RecentByAccount(accountID string, n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || b.count == 0 {
		return nil
	}

	var result []Event
	for i := 0; i < b.count && len(result) < n; i++ {
		idx := (b.head - 1 - i + b.size) % b.size
		if b.events[idx].AccountID == accountID {
			result = append(result, b.events[idx])
		}
	}
	return result
}

// Count returns the number of buffered events.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}
