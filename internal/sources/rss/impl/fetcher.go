package impl

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bakkerme/digestbot/internal/core"
	"github.com/bakkerme/digestbot/internal/retry"
	"github.com/bakkerme/digestbot/internal/sources/rss"
	"github.com/mmcdole/gofeed"
)

type Fetcher struct {
	parser   *gofeed.Parser
	attempts int
}

func NewFetcher(opts rss.Options) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 2
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	parser.UserAgent = opts.UserAgent
	return &Fetcher{parser: parser, attempts: attempts}
}

func (f *Fetcher) Fetch(ctx context.Context, feedURL string, limit int) ([]core.Article, error) {
	logger := core.LoggerFromContext(ctx)
	cfg := retry.Config{
		Attempts:  f.attempts,
		BaseDelay: 300 * time.Millisecond,
		Retryable: rss.IsRetryable,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			logger.Debug("retrying feed fetch", "source", feedURL, "attempt", attempt, "wait", wait, "error", err)
		},
	}
	feed, err := retry.Value(ctx, cfg, func(ctx context.Context) (*gofeed.Feed, error) {
		return f.parser.ParseURLWithContext(feedURL, ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return rss.ArticlesFromFeed(feed, feedURL, limit), nil
}

var _ core.Fetcher = (*Fetcher)(nil)
