// Package mailer sends transactional email through an HTTP send API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Message is a single outbound notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Config holds the send-API settings.
type Config struct {
	APIURL    string
	APIKey    string
	FromEmail string
	FromName  string
}

type Service struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) *Service {
	return &Service{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send delivers a message through the send API. A non-2xx response is
// an error so callers can distinguish delivery failure from success.
func (s *Service) Send(ctx context.Context, msg Message) error {
	reqBody := map[string]any{
		"from": map[string]string{
			"email": s.cfg.FromEmail,
			"name":  s.cfg.FromName,
		},
		"to": []map[string]string{
			{"email": msg.To},
		},
		"subject": msg.Subject,
		"text":    msg.Body,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling email request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody bytes.Buffer
		if _, readErr := errBody.ReadFrom(resp.Body); readErr == nil && errBody.Len() > 0 {
			return fmt.Errorf("mail API returned status %d: %s", resp.StatusCode, errBody.String())
		}
		return fmt.Errorf("mail API returned status %d", resp.StatusCode)
	}

	return nil
}
