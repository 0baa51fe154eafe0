package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"relayengine/internal/models"
)

// Sender posts notifications to a messaging API
type Sender struct {
	endpoint string
	client   *http.Client
}

// Config describes the messaging API. TokenURL and ClientID enable OAuth2 client credentials.
type Config struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// NewSender creates a sender. Without credentials requests are sent unauthenticated.
func NewSender(ctx context.Context, cfg Config) (*Sender, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("notify endpoint is not configured")
	}
	client := &http.Client{Timeout: 10 * time.Second}
	if cfg.ClientID != "" && cfg.TokenURL != "" {
		creds := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		client = creds.Client(ctx)
		client.Timeout = 10 * time.Second
	}
	return &Sender{endpoint: cfg.Endpoint, client: client}, nil
}

type message struct {
	Destination string `json:"destination"`
	Text        string `json:"text"`
	RuleID      string `json:"rule_id,omitempty"`
}

// Send delivers one notification. Any non-2xx response is an error.
func (s *Sender) Send(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(message{Destination: n.Destination, Text: n.Text, RuleID: n.RuleID})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification to %s: %w", n.Destination, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("send notification to %s: status %d: %s", n.Destination, res.StatusCode, bytes.TrimSpace(detail))
	}
	return nil
}
