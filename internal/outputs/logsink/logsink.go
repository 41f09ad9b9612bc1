// Package logsink provides a dry-run sink that only logs payloads.
package logsink

import (
	"context"
	"log/slog"

	"github.com/bakkerme/digestbot/internal/core"
)

type Sink struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Sink {
	return &Sink{logger: logger}
}

func (s *Sink) Name() string {
	return "dry-run"
}

func (s *Sink) Validate() error {
	return nil
}

func (s *Sink) Publish(ctx context.Context, req core.PublishRequest) error {
	logger := s.logger
	if logger == nil {
		logger = core.LoggerFromContext(ctx)
	}
	logger.Info("dry run: would publish", "link", req.Article.Link, "content", req.Content)
	return nil
}

var _ core.Sink = (*Sink)(nil)
