package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Client performs single-turn exchanges with the remote language agent. The
// agent's reasoning is opaque; one message string goes in, one reply string
// comes out.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
}

func (c *Client) Send(ctx context.Context, message string) (string, error) {
	ctx, span := tracer.Start(ctx, "prompt agent")
	defer span.End()
	span.SetAttributes(attribute.Int("request.message_length", len(message)))

	requestBodyBytes, err := json.Marshal(struct {
		Message string `json:"message"`
	}{Message: message})
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if errorBody, readErr := io.ReadAll(resp.Body); readErr == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	var parsedResp struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsedResp); err != nil {
		err = fmt.Errorf("error unmarshalling agent response: %w", err)
		span.RecordError(err)
		return "", err
	}

	return parsedResp.Response, nil
}

// Health reports the agent's own health probe: whether its language backend
// is reachable and which model it serves.
type Health struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	ctx, span := tracer.Start(ctx, "probe agent health")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		return nil, err
	}

	health := Health{}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("error unmarshalling health response: %w", err)
	}

	logger.InfoContext(ctx, "agent health probed", "status", health.Status, "model", health.Model)
	return &health, nil
}
