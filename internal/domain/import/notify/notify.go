// Package notify delivers import events to the notification service.
// Delivery is best effort: failures are logged and dropped.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/movement-ingest/pkg/money"
)

const (
	movementsPath = "/api/events/movements"
	importedPath  = "/api/events/movements/imported"

	// DefaultFallbackURL is tried once when the main host does not resolve.
	DefaultFallbackURL = "http://localhost:8084"
	DefaultTimeout     = 5 * time.Second

	EventMovementCreated = "movement_created"
	EventImportCompleted = "import_completed"
)

// HTTPPublisher POSTs events as JSON. Each request carries an X-Event-Id
// header with a fresh ULID.
type HTTPPublisher struct {
	client      *http.Client
	baseURL     string
	fallbackURL string
	logger      *slog.Logger
	onFailure   func(event string)
}

// NewHTTPPublisher creates a publisher for baseURL. An empty fallbackURL
// uses DefaultFallbackURL and a zero timeout uses DefaultTimeout.
func NewHTTPPublisher(baseURL, fallbackURL string, timeout time.Duration, logger *slog.Logger) *HTTPPublisher {
	if fallbackURL == "" {
		fallbackURL = DefaultFallbackURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPPublisher{
		client:      &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		fallbackURL: strings.TrimRight(fallbackURL, "/"),
		logger:      logger,
	}
}

// WithTransport replaces the HTTP transport, keeping the client timeout.
func (p *HTTPPublisher) WithTransport(rt http.RoundTripper) *HTTPPublisher {
	p.client.Transport = rt
	return p
}

// WithFailureHook registers fn to be called with the event name whenever a
// delivery is dropped.
func (p *HTTPPublisher) WithFailureHook(fn func(event string)) *HTTPPublisher {
	p.onFailure = fn
	return p
}

func (p *HTTPPublisher) MovementCreated(ctx context.Context, ev model.MovementEvent) {
	p.publish(ctx, EventMovementCreated, movementsPath, ev)
}

func (p *HTTPPublisher) ImportCompleted(ctx context.Context, ev model.ImportEvent) {
	p.publish(ctx, EventImportCompleted, importedPath, ev)
}

func (p *HTTPPublisher) publish(ctx context.Context, event, path string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.drop(event, path, err)
		return
	}
	id := ulid.Make().String()

	err = p.post(ctx, p.baseURL+path, id, body)
	if err == nil {
		return
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && p.fallbackURL != p.baseURL {
		fallback := p.fallbackURL + path
		p.logger.Warn("notification host does not resolve, trying fallback", "host", dnsErr.Name, "fallback", fallback)
		ferr := p.post(ctx, fallback, id, body)
		if ferr == nil {
			return
		}
		err = fmt.Errorf("fallback also failed: %w", ferr)
	}
	p.drop(event, p.baseURL+path, err)
}

func (p *HTTPPublisher) post(ctx context.Context, url, id string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Id", id)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (p *HTTPPublisher) drop(event, url string, err error) {
	p.logger.Warn("could not publish event", "event", event, "url", url, "error", err)
	if p.onFailure != nil {
		p.onFailure(event)
	}
}

// LogPublisher only logs events. Used when no notification service is
// configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) MovementCreated(_ context.Context, ev model.MovementEvent) {
	p.logger.Info("movement created",
		"user_id", ev.UserID,
		"ref_id", ev.RefID,
		"amount", money.NewFromDecimal(ev.Amount, ev.Currency).String(),
	)
}

func (p *LogPublisher) ImportCompleted(_ context.Context, ev model.ImportEvent) {
	p.logger.Info("import completed",
		"user_id", ev.UserID,
		"import_id", ev.ImportID,
		"file_name", ev.FileName,
		"total_rows", ev.TotalRows,
	)
}
