// Package notify delivers typed rollout events to a webhook channel.
// Delivery is retried for transient failures; on exhaustion the full
// payload lands in the local audit log instead. Notification failure is
// never fatal and never blocks supervision progress.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"stagewatch/internal/auditlog"
	"stagewatch/internal/retry"
)

// DeliveryStatus reports how an event left the process.
type DeliveryStatus string

const (
	StatusSent           DeliveryStatus = "sent"
	StatusLoggedFallback DeliveryStatus = "logged_fallback"
)

const (
	defaultRequestTimeout  = 15 * time.Second
	defaultExtendedBackoff = 30 * time.Second
)

// Dispatcher posts events to a webhook with a local-log fallback.
type Dispatcher struct {
	WebhookURL string
	Fallback   *auditlog.Log

	// Retry wraps each delivery; zero value uses the executor defaults.
	Retry retry.Policy

	// ExtendedBackoff is the single long wait taken when the channel
	// keeps rate-limiting after normal retries. Default 30s.
	ExtendedBackoff time.Duration

	HTTP *http.Client

	// Sleep is a test seam for the extended backoff.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher returns a Dispatcher for the webhook URL. fallback must
// not be nil; it is the terminal destination for undeliverable events.
func NewDispatcher(webhookURL string, fallback *auditlog.Log) *Dispatcher {
	return &Dispatcher{
		WebhookURL:      webhookURL,
		Fallback:        fallback,
		ExtendedBackoff: defaultExtendedBackoff,
		HTTP:            &http.Client{Timeout: defaultRequestTimeout},
	}
}

type webhookError struct{ status int }

func (e *webhookError) Error() string { return fmt.Sprintf("notification webhook: HTTP %d", e.status) }

func (e *webhookError) Transient() bool {
	return e.status == 408 || e.status == 429 || e.status >= 500
}

// Send delivers one event. The returned status is Sent on webhook
// success and LoggedFallback otherwise; Send itself never fails the
// caller.
func (d *Dispatcher) Send(ctx context.Context, ev Event) DeliveryStatus {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("encode notification", "type", ev.Type, "err", err)
		return d.fallback(ev.typeLabel(), []byte(fmt.Sprintf("%+v", ev)))
	}
	if err := ev.Validate(); err != nil {
		slog.Error("invalid notification", "err", err)
		return d.fallback(ev.typeLabel(), payload)
	}
	if d.WebhookURL == "" {
		return d.fallback(ev.typeLabel(), payload)
	}

	post := func(ctx context.Context) error { return d.post(ctx, payload) }

	err = retry.Do(ctx, d.Retry, post)
	if err != nil && rateLimited(err) {
		// The channel is persistently throttling: one extended backoff,
		// then a final attempt before giving up.
		wait := d.ExtendedBackoff
		if wait <= 0 {
			wait = defaultExtendedBackoff
		}
		slog.Debug("notification rate limited, extended backoff", "type", ev.Type, "wait", wait)
		if serr := d.sleep(ctx, wait); serr == nil {
			err = post(ctx)
		}
	}
	if err != nil {
		slog.Warn("notification delivery failed, logging locally", "type", ev.Type, "err", err)
		return d.fallback(ev.typeLabel(), payload)
	}
	return StatusSent
}

func (d *Dispatcher) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := d.HTTP
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &webhookError{status: resp.StatusCode}
	}
	return nil
}

func (d *Dispatcher) fallback(label string, payload []byte) DeliveryStatus {
	if d.Fallback != nil {
		if err := d.Fallback.Appendf("notification fallback %s %s", label, payload); err != nil {
			slog.Error("notification fallback write failed", "type", label, "err", err)
		}
	}
	return StatusLoggedFallback
}

func (d *Dispatcher) sleep(ctx context.Context, wait time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, wait)
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e Event) typeLabel() string {
	if e.Type == "" {
		return "unknown"
	}
	return string(e.Type)
}

func rateLimited(err error) bool {
	var we *webhookError
	return errors.As(err, &we) && we.status == http.StatusTooManyRequests
}
