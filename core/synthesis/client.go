package synthesis

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

// Client requests synthesized speech for a reply string and reassembles the
// chunked newline-delimited response into one raw audio payload.
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

// Synthesize returns the decoded audio payload for text. A stream that
// completes without a single usable fragment returns (nil, nil): nothing to
// play, not an error. Request failures, non-success statuses and mid-stream
// transport errors are hard failures and no partial payload is returned.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	span.SetAttributes(attribute.Int("request.text_length", len(text)))

	requestBodyBytes, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/tts", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
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
		return nil, err
	}
	if resp.Body == http.NoBody {
		err := fmt.Errorf("synthesis response has no body")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	diagnostics := 0
	onDiagnostic := func(line []byte, err error) {
		diagnostics++
		logger.WarnContext(ctx, "skipping unparsable synthesis record",
			"error", err, "line_length", len(line))
	}

	fragments := []string{}
	decoder := NewRecordDecoder(resp.Body, WithDiagnosticCallback(onDiagnostic))
	for fragment, err := range decoder.Fragments() {
		if err != nil {
			err = fmt.Errorf("synthesis stream failed mid-transfer: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		fragments = append(fragments, fragment)
	}

	span.SetAttributes(
		attribute.Int("response.fragments", len(fragments)),
		attribute.Int("response.skipped_records", diagnostics),
	)

	if len(fragments) == 0 {
		return nil, nil
	}

	return AssembleFragments(fragments, onDiagnostic), nil
}
