// Package notify delivers shutdown notifications for the wintrapd daemon.
// When a webhook URL is configured, the daemon POSTs a small JSON event to
// it on graceful shutdown so external monitoring can tell a clean exit from
// a crash.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Event is the JSON payload POSTed to the webhook.
type Event struct {
	// Daemon identifies the sender; always "wintrapd".
	Daemon string `json:"daemon"`
	// PID is the daemon's process ID.
	PID int `json:"pid"`
	// Reason describes why the daemon shut down, e.g. "ctrl-c" or
	// "control shutdown".
	Reason string `json:"reason"`
	// Time is when the shutdown began, RFC 3339.
	Time string `json:"time"`
}

// Notifier POSTs shutdown events to a webhook URL.
type Notifier struct {
	url    string
	client *retryablehttp.Client
}

// ///////////////////////////////////////////////
// Construction
// ///////////////////////////////////////////////

// New creates a Notifier for url. An empty url returns a nil Notifier,
// which discards events.
func New(url string, timeout time.Duration) *Notifier {
	if url == "" {
		return nil
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = timeout
	client.Logger = nil // suppress retryablehttp's default logging
	return &Notifier{url: url, client: client}
}

// ///////////////////////////////////////////////
// Delivery
// ///////////////////////////////////////////////

// Shutdown POSTs a shutdown event. Calling it on a nil Notifier is a no-op.
func (n *Notifier) Shutdown(pid int, reason string) error {
	if n == nil {
		return nil
	}

	evt := Event{
		Daemon: "wintrapd",
		PID:    pid,
		Reason: reason,
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode shutdown event: %w", err)
	}

	req, err := retryablehttp.NewRequest("POST", n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build shutdown request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver shutdown event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
