package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scribe/internal/config"
)

const userAgent = "Scribe-Go/0.1.0"

// Event identifies a notification kind published by the workflow.
type Event string

const (
	EventJobQueued      Event = "job_queued"
	EventJobCompleted   Event = "job_completed"
	EventQueueStarted   Event = "queue_started"
	EventQueueCompleted Event = "queue_completed"
	EventError          Event = "error"
	EventTest           Event = "test"
)

// Payload carries event-specific values rendered into the notification body.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
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
		cfg:      cfg,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	cfg      *config.Config
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.eventEnabled(event) {
		return nil
	}
	msg, ok := renderMessage(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) eventEnabled(event Event) bool {
	if n.cfg == nil {
		return true
	}
	switch event {
	case EventJobQueued, EventQueueStarted:
		return n.cfg.Notifications.JobQueued
	case EventJobCompleted, EventQueueCompleted:
		return n.cfg.Notifications.JobCompleted
	case EventError:
		return n.cfg.Notifications.Errors
	default:
		return true
	}
}

func renderMessage(event Event, payload Payload) (message, bool) {
	switch event {
	case EventJobQueued:
		return message{
			title: "Scribe - Job Queued",
			body:  fmt.Sprintf("Queued for transcription: %s", payloadString(payload, "source")),
			tags:  []string{"scribe", "queue", "queued"},
		}, true
	case EventJobCompleted:
		body := fmt.Sprintf("Transcription complete: %s", payloadString(payload, "source"))
		if lang := payloadString(payload, "language"); lang != "" {
			body = fmt.Sprintf("%s (%s)", body, lang)
		}
		return message{
			title:    "Scribe - Complete",
			body:     body,
			tags:     []string{"scribe", "transcription", "completed"},
			priority: "high",
		}, true
	case EventQueueStarted:
		return message{
			title: "Scribe - Queue Started",
			body:  fmt.Sprintf("Started processing queue with %d jobs", payloadInt(payload, "count")),
			tags:  []string{"scribe", "queue", "started"},
		}, true
	case EventQueueCompleted:
		processed := payloadInt(payload, "processed")
		failed := payloadInt(payload, "failed")
		duration := payloadDuration(payload, "duration").Round(time.Second)
		if duration < 0 {
			duration = 0
		}
		var title, body string
		if failed == 0 {
			title = "Scribe - Queue Complete"
			body = fmt.Sprintf("Queue processing complete: %d jobs processed in %s", processed, duration)
		} else {
			title = "Scribe - Queue Complete (with errors)"
			body = fmt.Sprintf("Queue processing complete: %d succeeded, %d failed in %s", processed, failed, duration)
		}
		return message{
			title: title,
			body:  body,
			tags:  []string{"scribe", "queue", "completed"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("Error")
		if contextLabel := payloadString(payload, "context"); contextLabel != "" {
			builder.WriteString(" with ")
			builder.WriteString(contextLabel)
		}
		builder.WriteString(": ")
		if err, ok := payload["error"].(error); ok && err != nil {
			builder.WriteString(strings.TrimSpace(err.Error()))
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Scribe - Error",
			body:     builder.String(),
			tags:     []string{"scribe", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Scribe - Test",
			body:     "Notification system test",
			tags:     []string{"scribe", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	if value, ok := payload[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func payloadInt(payload Payload, key string) int {
	if payload == nil {
		return 0
	}
	switch value := payload[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	default:
		return 0
	}
}

func payloadDuration(payload Payload, key string) time.Duration {
	if payload == nil {
		return 0
	}
	if value, ok := payload[key].(time.Duration); ok {
		return value
	}
	return 0
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
