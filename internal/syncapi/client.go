// Package syncapi talks to the expense backend's sync endpoint.
package syncapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"vet/internal/core"
)

// SyncPath is the endpoint that accepts unsynced records.
const SyncPath = "/api/sync"

var (
	errUnexpectedStatusCode = errors.New("unexpected http status code")
	errBasePathFormatting   = errors.New("error formatting sync base path")
	errBodyRead             = errors.New("error reading sync response body")
	errBodyUnmarshal        = errors.New("error unmarshalling sync response body")
)

// UnexpectedStatusCodeError wraps a non-2xx status from the backend.
func UnexpectedStatusCodeError(statusCode int) error {
	return fmt.Errorf("%w: %w, %d", core.ErrSyncFailed, errUnexpectedStatusCode, statusCode)
}

func bodyUnmarshalError(baseErr error) error {
	return fmt.Errorf("%w: %w, %w", core.ErrSyncFailed, errBodyUnmarshal, baseErr)
}

// Response is the decoded body of a successful sync call. Items carries one
// acknowledgement per record the backend accepted.
type Response struct {
	Saved int            `json:"saved"`
	Items []core.SyncAck `json:"items"`
}

// Client posts batches of records to the backend.
type Client struct {
	HTTPClient *http.Client
	BaseURL    *url.URL
}

// NewClient builds a Client. A nil httpClient falls back to a default one.
func NewClient(httpClient *http.Client, baseURL string) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w, %s: %w", errBasePathFormatting, baseURL, err)
	}
	return &Client{HTTPClient: httpClient, BaseURL: u}, nil
}

// Push sends records as a JSON array to the sync endpoint.
//
// Transport failures, non-2xx statuses and bodies that are not JSON all wrap
// core.ErrSyncFailed. A JSON body without an items array returns
// core.ErrMalformedResponse so the caller can fall back to flagging every
// submitted record.
func (c *Client) Push(ctx context.Context, records []core.Expense) (Response, error) {
	payload, err := json.Marshal(records)
	if err != nil {
		return Response{}, fmt.Errorf("marshal sync payload: %w", err)
	}

	endpoint := c.BaseURL.ResolveReference(&url.URL{Path: SyncPath})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: error sending request: %w", core.ErrSyncFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w, %w", core.ErrSyncFailed, errBodyRead, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		slog.WarnContext(ctx, "Sync endpoint rejected batch",
			"status", resp.StatusCode,
			"records", len(records))
		return Response{}, UnexpectedStatusCodeError(resp.StatusCode)
	}

	return DecodeResponse(body)
}

// DecodeResponse interprets a sync response body. Elements of items that are
// not objects with a non-empty id are skipped.
func DecodeResponse(body []byte) (Response, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Response{}, bodyUnmarshalError(err)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return Response{}, fmt.Errorf("%w: body is not an object", core.ErrMalformedResponse)
	}
	items, ok := obj["items"].([]any)
	if !ok {
		return Response{}, fmt.Errorf("%w: missing items array", core.ErrMalformedResponse)
	}

	out := Response{Items: make([]core.SyncAck, 0, len(items))}
	if saved, ok := obj["saved"].(float64); ok {
		out.Saved = int(saved)
	}
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := fields["id"].(string)
		if id == "" {
			continue
		}
		receipt, _ := fields["receiptData"].(string)
		out.Items = append(out.Items, core.SyncAck{ID: id, ReceiptData: receipt})
	}
	return out, nil
}
