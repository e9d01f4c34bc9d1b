package calendar

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Remote is the slice of the remote store the engine depends on.
type Remote interface {
	ListEvents(ctx context.Context) ([]Event, error)
	CallTool(ctx context.Context, tool string, params any) (*ToolResult, error)
	UpdateEvent(ctx context.Context, id string, changes EventChanges) (*Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Engine reconciles the local event cache against the remote store. It owns
// every write to the cache; callers read through Events/Event and mutate only
// through the operations below.
type Engine struct {
	remote Remote
	cache  *Cache

	onConfirmation func(text string)
	onNotice       func(text string)
	onRefreshed    func(events []Event)
}

type EngineOption func(*Engine)

// WithConfirmationCallback receives the conversational confirmation text for
// successful mutations, meant to be appended to a conversation log.
func WithConfirmationCallback(callback func(text string)) EngineOption {
	return func(e *Engine) {
		e.onConfirmation = callback
	}
}

// WithNoticeCallback receives transient status text for per-event action
// outcomes, success and failure alike.
func WithNoticeCallback(callback func(text string)) EngineOption {
	return func(e *Engine) {
		e.onNotice = callback
	}
}

// WithRefreshCallback receives the full event list after every completed
// refresh.
func WithRefreshCallback(callback func(events []Event)) EngineOption {
	return func(e *Engine) {
		e.onRefreshed = callback
	}
}

func NewEngine(remote Remote, opts ...EngineOption) *Engine {
	engine := &Engine{
		remote:         remote,
		cache:          NewCache(),
		onConfirmation: func(string) {},
		onNotice:       func(string) {},
		onRefreshed:    func([]Event) {},
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

func (e *Engine) Events() []Event {
	return e.cache.Events()
}

func (e *Engine) Event(id string) (Event, bool) {
	return e.cache.Event(id)
}

// Refresh fetches the full remote listing and replaces the cache wholesale.
// It is idempotent and safe to call concurrently with itself; when two
// refreshes overlap, whichever response arrives last is the one the cache
// ends up holding, regardless of which was issued first.
func (e *Engine) Refresh(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "refresh event cache")
	defer span.End()

	events, err := e.remote.ListEvents(ctx)
	if err != nil {
		err = fmt.Errorf("failed to refresh event cache: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	e.cache.Replace(events)
	span.SetAttributes(attribute.Int("cache.events", len(events)))
	e.onRefreshed(e.cache.Events())
	return nil
}

// CreateEvent submits a new event to the remote store. Drafts without a title
// are rejected locally and never submitted. Invitations are only requested
// when the draft has at least one attendee.
func (e *Engine) CreateEvent(ctx context.Context, draft EventDraft) (*Event, error) {
	ctx, span := tracer.Start(ctx, "create event")
	defer span.End()

	if err := draft.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	draft = draft.normalized()

	result, err := e.remote.CallTool(ctx, ToolCreateEvent, createEventParams{
		Title:           draft.Title,
		Description:     draft.Description,
		StartTime:       draft.StartTime.UTC().Format(time.RFC3339),
		EndTime:         draft.EndTime.UTC().Format(time.RFC3339),
		Location:        draft.Location,
		Attendees:       draft.Attendees,
		Color:           draft.Color,
		Priority:        draft.Priority,
		Category:        draft.Category,
		Reminders:       draft.Reminders,
		NotifyAttendees: draft.SendInvites,
		SyncToGoogle:    draft.SyncToRemote,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !result.Success {
		err := fmt.Errorf("event creation rejected: %s", result.failureText())
		span.RecordError(err)
		return nil, err
	}

	e.onConfirmation(fmt.Sprintf("Created event %q.", draft.Title))

	if err := e.Refresh(ctx); err != nil {
		logger.WarnContext(ctx, "refresh after event creation failed", "error", err)
	}

	return result.Event, nil
}

// SyncEvent pushes a cached event to the external calendar. The event moves
// through syncing and ends synced or failed; a failed event can be retried.
func (e *Engine) SyncEvent(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "sync event")
	defer span.End()
	span.SetAttributes(attribute.String("event.id", id))

	if err := e.cache.Transition(id, SyncStatusSyncing); err != nil {
		span.RecordError(err)
		return err
	}

	result, err := e.remote.CallTool(ctx, ToolSyncRemote, syncRemoteParams{EventID: id})
	if err == nil && !result.Success {
		err = fmt.Errorf("sync rejected: %s", result.failureText())
	}
	if err != nil {
		if transitionErr := e.cache.Transition(id, SyncStatusFailed); transitionErr != nil {
			logger.WarnContext(ctx, "failed to mark event sync as failed", "error", transitionErr)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.onNotice(fmt.Sprintf("Sync failed for event %s: %v", id, err))
		return fmt.Errorf("failed to sync event %s: %w", id, err)
	}

	if err := e.cache.Transition(id, SyncStatusSynced); err != nil {
		logger.WarnContext(ctx, "failed to mark event as synced", "error", err)
	}
	e.onNotice(fmt.Sprintf("Event %s synced.", id))

	if err := e.Refresh(ctx); err != nil {
		logger.WarnContext(ctx, "refresh after sync failed", "error", err)
	}
	return nil
}

// SendReminder triggers a remote reminder notification for the event. The
// outcome is surfaced as a transient notice; the event itself is untouched.
func (e *Engine) SendReminder(ctx context.Context, id string, recipient string) error {
	ctx, span := tracer.Start(ctx, "send event reminder")
	defer span.End()
	span.SetAttributes(attribute.String("event.id", id))

	result, err := e.remote.CallTool(ctx, ToolSendReminder, sendReminderParams{
		EventID:   id,
		Recipient: recipient,
	})
	if err == nil && !result.Success {
		err = fmt.Errorf("reminder rejected: %s", result.failureText())
	}
	if err != nil {
		span.RecordError(err)
		e.onNotice(fmt.Sprintf("Reminder failed for event %s: %v", id, err))
		return fmt.Errorf("failed to send reminder for event %s: %w", id, err)
	}

	e.onNotice(fmt.Sprintf("Reminder sent for event %s.", id))
	return nil
}

const defaultImportWindowDays = 30

// ImportRemote bulk-imports upcoming external events into the remote store
// and reports the imported count verbatim from the response.
func (e *Engine) ImportRemote(ctx context.Context, daysAhead int) (int, error) {
	ctx, span := tracer.Start(ctx, "import remote events")
	defer span.End()

	if daysAhead <= 0 {
		daysAhead = defaultImportWindowDays
	}
	span.SetAttributes(attribute.Int("request.days_ahead", daysAhead))

	result, err := e.remote.CallTool(ctx, ToolImportRemote, importRemoteParams{DaysAhead: daysAhead})
	if err == nil && !result.Success {
		err = fmt.Errorf("import rejected: %s", result.failureText())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.onNotice(fmt.Sprintf("Import failed: %v", err))
		return 0, fmt.Errorf("failed to import remote events: %w", err)
	}

	e.onNotice(fmt.Sprintf("Imported %d events.", result.ImportedCount))

	if err := e.Refresh(ctx); err != nil {
		logger.WarnContext(ctx, "refresh after import failed", "error", err)
	}
	return result.ImportedCount, nil
}

// UpdateEvent applies a partial update remotely. The cached event drops back
// to unsynced first: the local edit is provisional until the next refresh
// confirms it.
func (e *Engine) UpdateEvent(ctx context.Context, id string, changes EventChanges) (*Event, error) {
	ctx, span := tracer.Start(ctx, "update event")
	defer span.End()
	span.SetAttributes(attribute.String("event.id", id))

	if _, ok := e.cache.Event(id); !ok {
		return nil, fmt.Errorf("cannot update %q: %w", id, ErrEventNotFound)
	}
	if err := e.cache.Transition(id, SyncStatusUnsynced); err != nil {
		logger.WarnContext(ctx, "failed to mark event as unsynced", "error", err)
	}

	event, err := e.remote.UpdateEvent(ctx, id, changes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to update event %s: %w", id, err)
	}

	if err := e.Refresh(ctx); err != nil {
		logger.WarnContext(ctx, "refresh after update failed", "error", err)
	}
	return event, nil
}

func (e *Engine) DeleteEvent(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "delete event")
	defer span.End()
	span.SetAttributes(attribute.String("event.id", id))

	if err := e.remote.DeleteEvent(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}

	if err := e.Refresh(ctx); err != nil {
		logger.WarnContext(ctx, "refresh after delete failed", "error", err)
	}
	return nil
}

func (r *ToolResult) failureText() string {
	if r.Error != "" {
		return r.Error
	}
	if r.Message != "" {
		return r.Message
	}
	return "no reason given"
}
