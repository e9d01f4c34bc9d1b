package calendar

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrTitleRequired     = errors.New("event title is required")
	ErrEventNotFound     = errors.New("event not found")
	ErrIllegalTransition = errors.New("illegal sync status transition")
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type ReminderMethod string

const (
	ReminderEmail ReminderMethod = "email"
	ReminderPopup ReminderMethod = "popup"
)

// Reminder schedules a notification a fixed number of minutes before the
// event starts.
type Reminder struct {
	Method        ReminderMethod `json:"method"`
	MinutesBefore int            `json:"minutes_before"`
}

// SyncStatus tracks agreement between the local cache and the remote
// calendar store for a single event.
type SyncStatus string

const (
	SyncStatusUnsynced SyncStatus = "unsynced"
	SyncStatusSyncing  SyncStatus = "syncing"
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusFailed   SyncStatus = "failed"
)

// canTransitionTo encodes the status lifecycle: syncing is never skipped, a
// failed sync may be retried, and any local mutation resets to unsynced.
func (s SyncStatus) canTransitionTo(next SyncStatus) bool {
	switch next {
	case SyncStatusUnsynced:
		return true
	case SyncStatusSyncing:
		return s == SyncStatusUnsynced || s == SyncStatusFailed
	case SyncStatusSynced, SyncStatusFailed:
		return s == SyncStatusSyncing
	}
	return false
}

type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	Location    string     `json:"location,omitempty"`
	Attendees   []string   `json:"attendees"`
	Color       string     `json:"color,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	Category    string     `json:"category,omitempty"`
	Reminders   []Reminder `json:"reminders,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`

	// RemoteCalendarID is set once the event exists in the external
	// calendar; its presence is what survives a full cache refresh as
	// evidence of a completed sync.
	RemoteCalendarID string `json:"google_event_id,omitempty"`
	NotifyAttendees  bool   `json:"notify_attendees,omitempty"`

	SyncStatus SyncStatus `json:"-"`
}

const defaultEventColor = "#3b82f6"

// EventDraft is the client-side shape of a new event before submission.
type EventDraft struct {
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Location    string
	Attendees   []string
	Priority    Priority
	Category    string
	Color       string
	Reminders   []Reminder

	// SyncToRemote asks the store to push the event to the external
	// calendar immediately.
	SyncToRemote bool
	// SendInvites is only honored when at least one attendee is present.
	SendInvites bool
}

// Validate rejects drafts that must never be submitted.
func (d EventDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrTitleRequired
	}
	return nil
}

func (d EventDraft) normalized() EventDraft {
	if len(d.Attendees) == 0 {
		d.SendInvites = false
	}
	if d.Color == "" {
		d.Color = defaultEventColor
	}
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	return d
}
