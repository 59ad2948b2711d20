// Package portal implements the upstream.Fetcher contract against the
// citizen-request portal's HTTP API.
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/soloviev-m/civicdesk-backend/internal/config"
	"github.com/soloviev-m/civicdesk-backend/internal/domain"
	"github.com/soloviev-m/civicdesk-backend/internal/observe"
	"github.com/soloviev-m/civicdesk-backend/internal/upstream"
)

// RetryPolicy is the explicit retry configuration for portal calls:
// a fixed delay between attempts, not exponential.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// backOff turns the policy into a backoff strategy for one Fetch call.
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(p.MaxAttempts-1))
	return backoff.WithContext(b, ctx)
}

// Client fetches citizen-request records from the portal API.
type Client struct {
	baseURL    string
	token      string
	retry      RetryPolicy
	httpClient *http.Client
	sink       observe.Sink
	log        *slog.Logger
}

// NewClient creates a Client from UpstreamConfig.
func NewClient(cfg config.UpstreamConfig, sink observe.Sink, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		retry: RetryPolicy{
			MaxAttempts: cfg.RetryAttempts,
			Delay:       cfg.RetryDelay,
		},
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sink:       sink,
		log:        logger.With("adapter", "portal"),
	}
}

// Fetch returns all records updated within [from, to). A `to` beyond the
// current time is clamped to now. Transient failures (network errors, 5xx,
// 429) are retried per the policy; exhausting all attempts yields
// domain.ErrUpstreamUnavailable. Other 4xx responses are permanent and
// yield domain.ErrUpstreamRejected without retry.
func (c *Client) Fetch(ctx context.Context, from, to time.Time) ([]upstream.Record, error) {
	if now := time.Now(); to.After(now) {
		to = now
	}
	if !from.Before(to) {
		return nil, nil
	}

	reqURL := fmt.Sprintf("%s/requests?%s", c.baseURL, url.Values{
		"updated_from": {from.UTC().Format(time.RFC3339)},
		"updated_to":   {to.UTC().Format(time.RFC3339)},
	}.Encode())

	var (
		body    []byte
		attempt int
	)
	operation := func() error {
		attempt++
		c.sink.Record(ctx, observe.EventFetchAttempt, map[string]any{
			"attempt": attempt,
			"from":    from,
			"to":      to,
		})

		var err error
		body, err = c.doRequest(ctx, reqURL)
		if err != nil {
			c.log.WarnContext(ctx, "portal fetch attempt failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}
		return err
	}

	if err := backoff.Retry(operation, c.retry.backOff(ctx)); err != nil {
		c.sink.Record(ctx, observe.EventFetchFailed, map[string]any{
			"attempts": attempt,
			"error":    err.Error(),
		})
		if errors.Is(err, domain.ErrUpstreamRejected) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s (after %d attempts)", domain.ErrUpstreamUnavailable, err, attempt)
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("portal: %w", err)
	}

	c.sink.Record(ctx, observe.EventFetchOK, map[string]any{
		"attempts": attempt,
		"records":  len(records),
	})

	return records, nil
}

// doRequest performs one HTTP attempt. Permanent failures are wrapped in
// backoff.Permanent so the retry loop stops immediately.
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: create request: %s", domain.ErrUpstreamRejected, err))
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		// Transient: retried with the fixed delay.
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	default:
		// Other 4xx: permanent for this window, no retry.
		return nil, backoff.Permanent(fmt.Errorf("%w: status %d", domain.ErrUpstreamRejected, resp.StatusCode))
	}
}

// decodeRecords parses the response while retaining each verbatim object.
func decodeRecords(body []byte) ([]upstream.Record, error) {
	var rawItems []json.RawMessage
	if err := json.Unmarshal(body, &rawItems); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	records := make([]upstream.Record, 0, len(rawItems))
	for i, raw := range rawItems {
		var item apiRecord
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
		records = append(records, toRecord(item, raw))
	}
	return records, nil
}

// toRecord converts an API record into the neutral upstream.Record.
// Unparseable timestamps become zero/nil rather than errors; the mapper
// downstream substitutes safe defaults.
func toRecord(item apiRecord, raw json.RawMessage) upstream.Record {
	rec := upstream.Record{
		ExternalID:    item.ID,
		Text:          item.Text,
		Status:        item.Status,
		RequesterName: item.RequesterName,
		ContactInfo:   item.Contact,
		RequestType:   item.RequestType,
		Region:        item.Region,
		Category:      item.Category,
		Organization:  item.Organization,
		Overdue:       item.Overdue,
		Raw:           raw,
	}

	if t, err := time.Parse(time.RFC3339, item.CreatedAt); err == nil {
		rec.CreatedAt = t
	}
	if item.Deadline != nil {
		if t, err := time.Parse(time.RFC3339, *item.Deadline); err == nil {
			rec.Deadline = &t
		}
	}

	return rec
}
