package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
)

const maxResponseBodyBytes = 1024

// Event is the JSON body posted to the receiver.
type Event struct {
	Name      string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Delivery describes one POST attempt.
type Delivery struct {
	Event        string
	Attempt      int
	StatusCode   int
	ResponseBody string
	Err          error
}

type Config struct {
	URL    string
	Secret string
	Clock  clockwork.Clock
	// OnDelivery observes every attempt. Defaults to a debug log line.
	OnDelivery func(Delivery)
}

// Client posts signed events to a single receiver with retries.
type Client struct {
	url         string
	secret      string
	http        *http.Client
	clock       clockwork.Clock
	retryDelays []time.Duration
	onDelivery  func(Delivery)
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook url is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.OnDelivery == nil {
		cfg.OnDelivery = logDelivery
	}
	return &Client{
		url:         cfg.URL,
		secret:      cfg.Secret,
		http:        &http.Client{Timeout: 10 * time.Second},
		clock:       cfg.Clock,
		retryDelays: []time.Duration{1 * time.Second, 4 * time.Second},
		onDelivery:  cfg.OnDelivery,
	}, nil
}

// SignPayload computes HMAC-SHA256 of the payload using the secret.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Dispatch sends an event with up to 3 attempts. Any 2xx ends the run.
func (c *Client) Dispatch(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	signature := SignPayload(c.secret, body)
	maxAttempts := 1 + len(c.retryDelays)
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		statusCode, respBody, err := c.doPost(ctx, body, signature)
		c.onDelivery(Delivery{
			Event:        event.Name,
			Attempt:      attempt,
			StatusCode:   statusCode,
			ResponseBody: respBody,
			Err:          err,
		})

		if err == nil && statusCode >= 200 && statusCode < 300 {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("webhook returned status %d", statusCode)
		}

		if attempt < maxAttempts {
			select {
			case <-c.clock.After(c.retryDelays[attempt-1]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return lastErr
}

func (c *Client) doPost(ctx context.Context, body []byte, signature string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, _ := io.ReadAll(io.LimitReader(resp.Body, int64(maxResponseBodyBytes)+1))
	respBody := string(respBytes)
	if len(respBody) > maxResponseBodyBytes {
		respBody = respBody[:maxResponseBodyBytes]
	}

	return resp.StatusCode, respBody, nil
}

func logDelivery(d Delivery) {
	if d.Err != nil {
		slog.Warn("webhook: delivery failed", "event", d.Event, "attempt", d.Attempt, "error", d.Err)
		return
	}
	slog.Debug("webhook: delivered", "event", d.Event, "attempt", d.Attempt, "status", d.StatusCode)
}
