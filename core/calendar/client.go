package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RemoteClient talks to the remote event store: the authoritative system of
// record the local cache is reconciled against.
type RemoteClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRemoteClient(baseURL string) *RemoteClient {
	return &RemoteClient{
		baseURL: baseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
}

// ToolResult is the status-discriminator shape every tool invocation and
// per-event action responds with.
type ToolResult struct {
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	Message       string `json:"message,omitempty"`
	Event         *Event `json:"event,omitempty"`
	ImportedCount int    `json:"imported_count,omitempty"`
}

func (c *RemoteClient) ListEvents(ctx context.Context) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "list remote events")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/events", nil)
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return nil, err
	}

	body, err := c.do(ctx, span, req)
	if err != nil {
		return nil, err
	}

	events := []Event{}
	if err := json.Unmarshal(body, &events); err != nil {
		err = fmt.Errorf("error unmarshalling event listing: %w", err)
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("response.events", len(events)))
	return events, nil
}

// CallTool invokes a named tool on the remote store. A transport or status
// failure returns an error; a tool-level failure comes back in the result's
// status discriminator.
func (c *RemoteClient) CallTool(ctx context.Context, tool string, params any) (*ToolResult, error) {
	ctx, span := tracer.Start(ctx, "call calendar tool")
	defer span.End()
	span.SetAttributes(attribute.String("request.tool", tool))

	requestBodyBytes, err := json.Marshal(struct {
		Tool       string `json:"tool"`
		Parameters any    `json:"parameters"`
	}{Tool: tool, Parameters: params})
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/mcp/call", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(ctx, span, req)
	if err != nil {
		return nil, err
	}

	result := ToolResult{}
	if err := json.Unmarshal(body, &result); err != nil {
		err = fmt.Errorf("error unmarshalling tool result: %w", err)
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("response.success", result.Success))
	return &result, nil
}

// EventChanges carries a partial update; nil fields are left untouched by the
// remote store.
type EventChanges struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	StartTime   *string   `json:"start_time,omitempty"`
	EndTime     *string   `json:"end_time,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Attendees   *[]string `json:"attendees,omitempty"`
	Color       *string   `json:"color,omitempty"`
}

func (c *RemoteClient) UpdateEvent(ctx context.Context, id string, changes EventChanges) (*Event, error) {
	ctx, span := tracer.Start(ctx, "update remote event")
	defer span.End()
	span.SetAttributes(attribute.String("request.event_id", id))

	requestBodyBytes, err := json.Marshal(changes)
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "PUT", c.baseURL+"/events/"+id, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(ctx, span, req)
	if err != nil {
		return nil, err
	}

	event := Event{}
	if err := json.Unmarshal(body, &event); err != nil {
		err = fmt.Errorf("error unmarshalling updated event: %w", err)
		span.RecordError(err)
		return nil, err
	}

	return &event, nil
}

func (c *RemoteClient) DeleteEvent(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "delete remote event")
	defer span.End()
	span.SetAttributes(attribute.String("request.event_id", id))

	req, err := http.NewRequestWithContext(ctx, "DELETE", c.baseURL+"/events/"+id, nil)
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return err
	}

	if _, err := c.do(ctx, span, req); err != nil {
		return err
	}
	return nil
}

func (c *RemoteClient) do(_ context.Context, span trace.Span, req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("non-OK HTTP status: %s: %s", resp.Status, string(errorBody))
		span.RecordError(err)
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("error reading response body: %w", err)
		span.RecordError(err)
		return nil, err
	}

	return body, nil
}
