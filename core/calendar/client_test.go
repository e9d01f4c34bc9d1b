package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestListEventsDecodesListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" || r.URL.Path != "/events" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`[{"id":"ev-1","title":"Standup","google_event_id":"goog-1"}]`))
	}))
	defer server.Close()

	client := NewRemoteClient(server.URL)
	events, err := client.ListEvents(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].ID != "ev-1" || events[0].RemoteCalendarID != "goog-1" {
		t.Fatalf("unexpected listing: %+v", events)
	}
}

func TestCallToolWrapsParamsInEnvelope(t *testing.T) {
	var received struct {
		Tool       string          `json:"tool"`
		Parameters json.RawMessage `json:"parameters"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/mcp/call" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Write([]byte(`{"success":true,"imported_count":3}`))
	}))
	defer server.Close()

	client := NewRemoteClient(server.URL)
	result, err := client.CallTool(context.Background(), ToolImportRemote, importRemoteParams{DaysAhead: 14})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if received.Tool != ToolImportRemote {
		t.Fatalf("expected tool %s in the envelope, got %s", ToolImportRemote, received.Tool)
	}
	if !strings.Contains(string(received.Parameters), `"days_ahead":14`) {
		t.Fatalf("expected params inside the envelope, got %s", received.Parameters)
	}
	if !result.Success || result.ImportedCount != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCallToolToolLevelFailureIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"event not found"}`))
	}))
	defer server.Close()

	client := NewRemoteClient(server.URL)
	result, err := client.CallTool(context.Background(), ToolSyncRemote, syncRemoteParams{EventID: "missing"})
	if err != nil {
		t.Fatalf("a tool-level failure must come back in the result, got error %v", err)
	}
	if result.Success || result.Error != "event not found" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRemoteClientSurfacesHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database offline", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewRemoteClient(server.URL)
	if _, err := client.ListEvents(context.Background()); err == nil || !strings.Contains(err.Error(), "database offline") {
		t.Fatalf("expected the error body in the failure, got %v", err)
	}
}

func TestUpdateEventSendsPartialChanges(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PUT" || r.URL.Path != "/events/ev-1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Write([]byte(`{"id":"ev-1","title":"Rescheduled"}`))
	}))
	defer server.Close()

	title := "Rescheduled"
	client := NewRemoteClient(server.URL)
	event, err := client.UpdateEvent(context.Background(), "ev-1", EventChanges{Title: &title})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Title != "Rescheduled" {
		t.Fatalf("unexpected updated event: %+v", event)
	}

	if body["title"] != "Rescheduled" {
		t.Fatalf("expected the changed field in the body, got %v", body)
	}
	if _, present := body["location"]; present {
		t.Fatalf("unset fields must be omitted from a partial update, got %v", body)
	}
}

func TestDeleteEventTargetsEventPath(t *testing.T) {
	deleted := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "DELETE" {
			t.Errorf("unexpected method %s", r.Method)
		}
		deleted = r.URL.Path
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	client := NewRemoteClient(server.URL)
	if err := client.DeleteEvent(context.Background(), "ev-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != "/events/ev-1" {
		t.Fatalf("unexpected delete path %s", deleted)
	}
}

func TestToolCatalogReflectsParameterSchemas(t *testing.T) {
	catalog := ToolCatalog()
	if len(catalog) != 4 {
		t.Fatalf("expected 4 tools, got %d", len(catalog))
	}

	byName := map[string]ToolDescriptor{}
	for _, descriptor := range catalog {
		if descriptor.InputSchema == nil {
			t.Fatalf("tool %s has no input schema", descriptor.Name)
		}
		byName[descriptor.Name] = descriptor
	}

	create, ok := byName[ToolCreateEvent]
	if !ok {
		t.Fatalf("catalog is missing %s", ToolCreateEvent)
	}
	if _, ok := create.InputSchema.Properties.Get("title"); !ok {
		t.Fatalf("create schema must describe the title parameter")
	}
}
