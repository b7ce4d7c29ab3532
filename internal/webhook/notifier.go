package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	EventPostPublished     = "post.published"
	EventPostFailed        = "post.failed"
	EventPostRateLimited   = "post.rate_limited"
	EventCampaignCompleted = "campaign.completed"
)

// Event is the wire shape delivered to the configured webhook receiver.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Notifier delivers events best-effort: a slow or failing receiver never
// blocks or aborts the publish pipeline.
type Notifier interface {
	Notify(eventType string, data interface{})
}

type notifier struct {
	url    string
	client *http.Client
}

func NewNotifier(url string) Notifier {
	return &notifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (n *notifier) Notify(eventType string, data interface{}) {
	if n.url == "" {
		return
	}

	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	go n.deliver(event)
}

func (n *notifier) deliver(event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		slog.Info(err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		slog.Info("webhook delivery failed: " + err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		slog.Info("webhook receiver returned status " + resp.Status)
	}
}
