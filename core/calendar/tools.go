package calendar

import (
	"reflect"

	"github.com/invopop/jsonschema"
)

// Tool ids exposed by the remote store's named-tool invocation endpoint.
const (
	ToolCreateEvent  = "calendar_create_event"
	ToolSendReminder = "calendar_send_reminder"
	ToolSyncRemote   = "calendar_sync_google"
	ToolImportRemote = "calendar_import_google"
)

type createEventParams struct {
	Title           string     `json:"title" jsonschema:"title=Title,description=Short name of the event"`
	Description     string     `json:"description,omitempty" jsonschema:"description=Free-form detail text"`
	StartTime       string     `json:"start_time" jsonschema:"description=Event start as an ISO 8601 timestamp"`
	EndTime         string     `json:"end_time" jsonschema:"description=Event end as an ISO 8601 timestamp"`
	Location        string     `json:"location,omitempty"`
	Attendees       []string   `json:"attendees,omitempty" jsonschema:"description=Email addresses to invite"`
	Color           string     `json:"color,omitempty"`
	Priority        Priority   `json:"priority,omitempty" jsonschema:"enum=low,enum=medium,enum=high"`
	Category        string     `json:"category,omitempty"`
	Reminders       []Reminder `json:"reminders,omitempty"`
	NotifyAttendees bool       `json:"notify_attendees,omitempty"`
	SyncToGoogle    bool       `json:"sync_to_google,omitempty"`
}

type sendReminderParams struct {
	EventID   string `json:"event_id" jsonschema:"description=Identity of the event to remind about"`
	Recipient string `json:"recipient" jsonschema:"description=Email address of the recipient"`
}

type syncRemoteParams struct {
	EventID string `json:"event_id" jsonschema:"description=Identity of the event to push to the external calendar"`
}

type importRemoteParams struct {
	DaysAhead int `json:"days_ahead,omitempty" jsonschema:"description=How many days of upcoming events to import"`
}

// ToolDescriptor describes one remote tool with a reflected input schema,
// suitable for advertising to an agent.
type ToolDescriptor struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

// ToolCatalog lists the calendar tools the remote store understands.
func ToolCatalog() []ToolDescriptor {
	return []ToolDescriptor{
		{
			Name:        ToolCreateEvent,
			Description: "Create a new calendar event with optional external sync and attendee invitations",
			InputSchema: reflectSchema(createEventParams{}),
		},
		{
			Name:        ToolSendReminder,
			Description: "Send an email reminder for an event",
			InputSchema: reflectSchema(sendReminderParams{}),
		},
		{
			Name:        ToolSyncRemote,
			Description: "Push an event to the external calendar",
			InputSchema: reflectSchema(syncRemoteParams{}),
		},
		{
			Name:        ToolImportRemote,
			Description: "Import upcoming events from the external calendar",
			InputSchema: reflectSchema(importRemoteParams{}),
		},
	}
}

func reflectSchema(params any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true}
	return reflector.ReflectFromType(reflect.TypeOf(params))
}
