// Package discord publishes digest payloads to a Discord webhook.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bakkerme/digestbot/internal/core"
)

const (
	defaultTimeout = 10 * time.Second
	// Discord rejects message content longer than this.
	maxContentRunes = 2000
	maxErrorBody    = 512
)

type Sink struct {
	webhookURL string
	username   string
	client     *http.Client
}

type Option func(*Sink)

// WithUsername overrides the webhook's display name.
func WithUsername(username string) Option {
	return func(s *Sink) { s.username = strings.TrimSpace(username) }
}

func WithHTTPClient(client *http.Client) Option {
	return func(s *Sink) {
		if client != nil {
			s.client = client
		}
	}
}

func New(webhookURL string, opts ...Option) *Sink {
	s := &Sink{
		webhookURL: strings.TrimSpace(webhookURL),
		client:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Name() string {
	return "discord"
}

func (s *Sink) Validate() error {
	if s.webhookURL == "" {
		return &core.ConfigurationError{Field: "discord webhook url", Reason: "is required"}
	}
	if !strings.HasPrefix(s.webhookURL, "http://") && !strings.HasPrefix(s.webhookURL, "https://") {
		return &core.ConfigurationError{Field: "discord webhook url", Reason: "must be an http(s) URL"}
	}
	return nil
}

type webhookPayload struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

func (s *Sink) Publish(ctx context.Context, req core.PublishRequest) error {
	body, err := json.Marshal(webhookPayload{
		Content:  truncateRunes(req.Content, maxContentRunes),
		Username: s.username,
	})
	if err != nil {
		return &core.PublishError{Link: req.Article.Link, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return &core.PublishError{Link: req.Article.Link, Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return &core.PublishError{Link: req.Article.Link, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &core.PublishError{
			Link:   req.Article.Link,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("webhook rejected message: %s", strings.TrimSpace(string(snippet))),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

var _ core.Sink = (*Sink)(nil)
