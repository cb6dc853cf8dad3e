// Package notifications pushes review lifecycle events to ntfy.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"redact/internal/config"
)

const userAgent = "Redact-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyScanCompleted(ctx context.Context, talkTitle, documentName string, findings int) error
	NotifyScanFailed(ctx context.Context, talkTitle, documentName, hint string) error
	NotifyReviewComplete(ctx context.Context, talkTitle string) error
	NotifyTalkHalted(ctx context.Context, talkTitle, reason string) error
	NotifySanitizeCompleted(ctx context.Context, talkTitle string, documents int) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyScanCompleted(ctx context.Context, talkTitle, documentName string, findings int) error {
	talkTitle = strings.TrimSpace(talkTitle)
	documentName = strings.TrimSpace(documentName)
	data := payload{
		title:   "Redact - Scan Complete",
		message: fmt.Sprintf("Scanned %s (%s): %d findings", documentName, talkTitle, findings),
		tags:    []string{"redact", "scan", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyScanFailed(ctx context.Context, talkTitle, documentName, hint string) error {
	talkTitle = strings.TrimSpace(talkTitle)
	documentName = strings.TrimSpace(documentName)
	message := fmt.Sprintf("Scan failed: %s (%s)", documentName, talkTitle)
	if hint = strings.TrimSpace(hint); hint != "" {
		message = fmt.Sprintf("%s\n%s", message, hint)
	}
	data := payload{
		title:    "Redact - Scan Failed",
		message:  message,
		tags:     []string{"redact", "scan", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyReviewComplete(ctx context.Context, talkTitle string) error {
	talkTitle = strings.TrimSpace(talkTitle)
	data := payload{
		title:    "Redact - Review Complete",
		message:  fmt.Sprintf("All findings decided: %s\nReady to sanitize", talkTitle),
		tags:     []string{"redact", "review", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTalkHalted(ctx context.Context, talkTitle, reason string) error {
	talkTitle = strings.TrimSpace(talkTitle)
	message := fmt.Sprintf("Talk halted: %s\nManual resolution required", talkTitle)
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("%s\n%s", message, reason)
	}
	data := payload{
		title:    "Redact - Talk Halted",
		message:  message,
		tags:     []string{"redact", "conflict", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySanitizeCompleted(ctx context.Context, talkTitle string, documents int) error {
	talkTitle = strings.TrimSpace(talkTitle)
	data := payload{
		title:   "Redact - Sanitized",
		message: fmt.Sprintf("Sanitized %d documents: %s", documents, talkTitle),
		tags:    []string{"redact", "sanitize", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Redact - Error",
		message:  builder.String(),
		tags:     []string{"redact", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Redact - Test",
		message:  "Notification system test",
		tags:     []string{"redact", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyScanCompleted(context.Context, string, string, int) error { return nil }
func (noopService) NotifyScanFailed(context.Context, string, string, string) error { return nil }
func (noopService) NotifyReviewComplete(context.Context, string) error             { return nil }
func (noopService) NotifyTalkHalted(context.Context, string, string) error         { return nil }
func (noopService) NotifySanitizeCompleted(context.Context, string, int) error     { return nil }
func (noopService) NotifyError(context.Context, error, string) error               { return nil }
func (noopService) TestNotification(context.Context) error                         { return nil }
