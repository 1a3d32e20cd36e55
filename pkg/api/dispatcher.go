package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rmax-ai/netlord/pkg/store"
)

const (
	// CursorKey is the key in system_state holding the id of the last
	// delivered report.
	CursorKey = "webhook_dispatcher_cursor"
	// BatchSize is the number of reports to fetch per poll.
	BatchSize = 50
	// PollInterval is how often to check for new reports.
	PollInterval = 1 * time.Second
	// DefaultTimeout is the HTTP client timeout for webhook requests.
	DefaultTimeout = 5 * time.Second
	// MaxRetries is the number of delivery attempts.
	MaxRetries = 3
)

// DispatcherStore is the slice of the archive the dispatcher reads.
type DispatcherStore interface {
	ListReportsAfter(ctx context.Context, afterID int64, limit int) ([]*store.ReportRecord, error)
	ListWebhooks(ctx context.Context) ([]*store.WebhookConfig, error)
	GetSystemState(ctx context.Context, key string) (string, error)
	SetSystemState(ctx context.Context, key, value string) error
}

// Dispatcher delivers freshly archived reports to registered webhooks. The
// cursor survives restarts in system_state, so deliveries resume where the
// previous process stopped.
type Dispatcher struct {
	store      DispatcherStore
	client     *http.Client
	pollTicker *time.Ticker
}

// NewDispatcher creates a new webhook dispatcher.
func NewDispatcher(s DispatcherStore) *Dispatcher {
	return &Dispatcher{
		store: s,
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		pollTicker: time.NewTicker(PollInterval),
	}
}

// Start begins the report polling and dispatch loop.
// It blocks until the context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	slog.Info("starting webhook dispatcher")

	cursor, err := d.loadCursor(ctx)
	if err != nil {
		slog.Warn("failed to load dispatcher cursor, starting from 0", "error", err)
		cursor = 0
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping webhook dispatcher")
			d.pollTicker.Stop()
			return
		case <-d.pollTicker.C:
			newCursor, count, err := d.processBatch(ctx, cursor)
			if err != nil {
				slog.Error("error processing webhook batch", "error", err)
				continue
			}
			if count > 0 {
				cursor = newCursor
				if err := d.saveCursor(ctx, cursor); err != nil {
					slog.Error("failed to save dispatcher cursor", "error", err)
				}
			}
		}
	}
}

// processBatch fetches and delivers a batch of reports. Returns the id of the
// last processed report, the count, and any error.
func (d *Dispatcher) processBatch(ctx context.Context, afterID int64) (int64, int, error) {
	recs, err := d.store.ListReportsAfter(ctx, afterID, BatchSize)
	if err != nil {
		return afterID, 0, err
	}
	if len(recs) == 0 {
		return afterID, 0, nil
	}

	webhooks, err := d.store.ListWebhooks(ctx)
	if err != nil {
		return afterID, 0, fmt.Errorf("failed to list webhooks: %w", err)
	}

	var active []*store.WebhookConfig
	for _, w := range webhooks {
		if w.Active {
			active = append(active, w)
		}
	}

	if len(active) == 0 {
		// No listeners, just advance the cursor.
		return recs[len(recs)-1].ID, len(recs), nil
	}

	lastID := afterID
	for _, rec := range recs {
		for _, wh := range active {
			if err := d.send(ctx, wh, rec); err != nil {
				slog.Error("failed to deliver report", "report_id", rec.ID, "webhook_id", wh.WebhookID, "error", err)
			}
		}
		lastID = rec.ID
	}

	return lastID, len(recs), nil
}

// send performs the HTTP POST with retries. The body is the archived report
// payload, signed with the webhook's secret.
func (d *Dispatcher) send(ctx context.Context, wh *store.WebhookConfig, rec *store.ReportRecord) error {
	signature := signPayload(wh.Secret, rec.Payload)

	var lastErr error
	for i := 0; i < MaxRetries; i++ {
		if i > 0 {
			// Linear backoff: 1s, 2s
			time.Sleep(time.Duration(i) * time.Second)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(rec.Payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "netlord-dispatcher/1.0")
		req.Header.Set("X-Netlord-Report-ID", strconv.FormatInt(rec.ID, 10))
		req.Header.Set("X-Netlord-Version", strconv.FormatInt(rec.Version, 10))
		req.Header.Set("X-Netlord-Rule-Set", rec.RuleSet)
		req.Header.Set("X-Netlord-Signature", signature)

		resp, err := d.client.Do(req)
		if err != nil {
			lastErr = err
			continue // Retry on network error
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("webhook responded with status: %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return lastErr // Don't retry client errors
		}
	}

	return fmt.Errorf("max retries reached: %w", lastErr)
}

// signPayload computes the hex HMAC-SHA256 of the payload under the secret.
func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// loadCursor retrieves the last delivered report id from system_state.
func (d *Dispatcher) loadCursor(ctx context.Context) (int64, error) {
	val, err := d.store.GetSystemState(ctx, CursorKey)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

// saveCursor persists the last delivered report id.
func (d *Dispatcher) saveCursor(ctx context.Context, id int64) error {
	return d.store.SetSystemState(ctx, CursorKey, strconv.FormatInt(id, 10))
}
