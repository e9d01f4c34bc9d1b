package calendar

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jinzhu/copier"
)

// Cache is the local mapping of event identity to event record. A refresh
// replaces its contents wholesale; it never merges. All writes go through the
// engine's operations, never through direct mutation by callers.
type Cache struct {
	mu     sync.RWMutex
	events map[string]Event
}

func NewCache() *Cache {
	return &Cache{events: map[string]Event{}}
}

// Replace swaps the whole cache for the given remote listing. Events already
// present in the external calendar come back as synced, everything else as
// unsynced: any in-flight local status is deliberately dropped, the listing
// is the authority.
func (c *Cache) Replace(events []Event) {
	next := make(map[string]Event, len(events))
	for _, event := range events {
		if event.RemoteCalendarID != "" {
			event.SyncStatus = SyncStatusSynced
		} else {
			event.SyncStatus = SyncStatusUnsynced
		}
		next[event.ID] = event
	}

	c.mu.Lock()
	c.events = next
	c.mu.Unlock()
}

// Events returns a deep copy of the cache contents ordered by start time.
func (c *Cache) Events() []Event {
	c.mu.RLock()
	events := make([]Event, 0, len(c.events))
	for _, event := range c.events {
		copied := Event{}
		if err := copier.Copy(&copied, &event); err != nil {
			logger.Warn("failed to copy cached event", "error", err, "event_id", event.ID)
			continue
		}
		events = append(events, copied)
	}
	c.mu.RUnlock()

	sort.Slice(events, func(i, j int) bool {
		if events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].ID < events[j].ID
		}
		return events[i].StartTime.Before(events[j].StartTime)
	})
	return events
}

func (c *Cache) Event(id string) (Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	event, ok := c.events[id]
	return event, ok
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.events)
}

// Transition moves an event's sync status along the legal lifecycle. It fails
// without touching the cache when the event is missing or the transition is
// not allowed.
func (c *Cache) Transition(id string, next SyncStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	event, ok := c.events[id]
	if !ok {
		return fmt.Errorf("cannot transition %q: %w", id, ErrEventNotFound)
	}
	if !event.SyncStatus.canTransitionTo(next) {
		return fmt.Errorf("cannot transition %q from %s to %s: %w",
			id, event.SyncStatus, next, ErrIllegalTransition)
	}

	event.SyncStatus = next
	c.events[id] = event
	return nil
}
