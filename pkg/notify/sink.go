package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"teamfeed/pkg/logger"
	"teamfeed/pkg/models"
)

// Sink delivers a built notification to its destination. Implementations
// must be safe for concurrent use by multiple workers.
type Sink interface {
	Deliver(ctx context.Context, n models.Notification) error
}

// HTTPSink posts notifications as JSON to a downstream inbox.
type HTTPSink struct {
	url    string
	client *http.Client
}

func NewHTTPSink(url string, timeout time.Duration) *HTTPSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSink{url: url, client: &http.Client{Timeout: timeout}}
}

func (s *HTTPSink) Deliver(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("notification inbox returned %d", res.StatusCode)
	}
	return nil
}

// LogSink writes notifications to the log. Default when no inbox URL is
// configured; also used in tests.
type LogSink struct{}

func (LogSink) Deliver(_ context.Context, n models.Notification) error {
	logger.Info("notification",
		"title", n.Title,
		"type", n.Type,
		"scope", n.Scope.Key(),
		"recipients", len(n.Recipients),
	)
	return nil
}
