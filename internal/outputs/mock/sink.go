package mock

import (
	"context"
	"sync"

	"github.com/bakkerme/digestbot/internal/core"
)

// Sink records published payloads. ErrByLink fails specific articles;
// ValidateErr simulates an unconfigured destination.
type Sink struct {
	ErrByLink   map[string]error
	ValidateErr error

	mu       sync.Mutex
	requests []core.PublishRequest
	attempts []string
}

func (s *Sink) Name() string {
	return "mock"
}

func (s *Sink) Validate() error {
	return s.ValidateErr
}

func (s *Sink) Publish(ctx context.Context, req core.PublishRequest) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, req.Article.Link)
	if err, ok := s.ErrByLink[req.Article.Link]; ok {
		return &core.PublishError{Link: req.Article.Link, Err: err}
	}
	s.requests = append(s.requests, req)
	return nil
}

// Published returns the successfully published requests in order.
func (s *Sink) Published() []core.PublishRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.PublishRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// PublishedLinks returns the links of successfully published requests in order.
func (s *Sink) PublishedLinks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.requests))
	for _, req := range s.requests {
		out = append(out, req.Article.Link)
	}
	return out
}

// Attempts returns every link Publish was called with, including failures.
func (s *Sink) Attempts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.attempts))
	copy(out, s.attempts)
	return out
}
