// Package notify delivers the daily trend report to humans. The only
// concrete sink is a Slack incoming webhook; everything upstream talks
// to the Sink interface so a run without a webhook configured simply
// gets a no-op.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hazyhaar/rankwatch/safeurl"
)

// Sink delivers one notification text.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// Slack posts messages to a Slack incoming webhook.
type Slack struct {
	webhookURL string
	client     *resty.Client
	logger     *slog.Logger
}

// NewSlack validates the webhook URL and returns a sink for it. The
// SSRF check matters here because the URL usually arrives from an
// environment variable, not from code.
func NewSlack(webhookURL string, logger *slog.Logger) (*Slack, error) {
	if err := safeurl.Validate(webhookURL); err != nil {
		return nil, fmt.Errorf("notify: webhook url: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	// Raw responses so error bodies can be read under a size cap.
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetDoNotParseResponse(true)
	return &Slack{webhookURL: webhookURL, client: client, logger: logger}, nil
}

// Send posts the text as a Slack message. Slack answers a webhook post
// with a 2xx and the literal body "ok"; anything else is a failure.
func (s *Slack) Send(ctx context.Context, text string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"text": text}).
		Post(s.webhookURL)
	if err != nil {
		return fmt.Errorf("notify: post webhook: %w", err)
	}
	body, readErr := safeurl.LimitedReadAll(resp.RawBody(), safeurl.MaxResponseBody)
	resp.RawBody().Close()
	if resp.StatusCode() >= 300 {
		if readErr != nil {
			return fmt.Errorf("notify: webhook returned %d (%v)", resp.StatusCode(), readErr)
		}
		return fmt.Errorf("notify: webhook returned %d: %s", resp.StatusCode(), strings.TrimSpace(string(body)))
	}
	s.logger.Debug("notify: message sent", "bytes", len(text))
	return nil
}

// Discard is a Sink that logs the message instead of delivering it.
// Used when no webhook is configured so runs stay observable.
type Discard struct {
	Logger *slog.Logger
}

func (d Discard) Send(ctx context.Context, text string) error {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("notify: no sink configured, dropping report", "preview", preview(text, 120))
	return nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
