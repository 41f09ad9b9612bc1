// Package digest runs one fetch, filter, publish and persist cycle for a topic.
package digest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bakkerme/digestbot/internal/core"
)

const (
	DefaultFetchTimeout     = 15 * time.Second
	DefaultFetchConcurrency = 4
)

type Config struct {
	Topic    string
	Sources  []core.Source
	Keywords []string

	Sink    core.Sink
	Store   core.Store
	Fetcher core.Fetcher

	// MaxPostsPerRun caps successful publishes; 0 means unlimited.
	MaxPostsPerRun int
	// QuietHours, when it returns true for the current time, skips the run entirely.
	QuietHours       func(time.Time) bool
	PerSourceItemCap int
	// RecencyWindow drops articles older than now minus the window, and undated ones.
	RecencyWindow    time.Duration
	FetchTimeout     time.Duration
	FetchConcurrency int

	BlockedKeywords []string
	// Tickers, when set, additionally require a whole title token on this watchlist.
	Tickers     []string
	ExcludeRule string
	Captions    []string
	Order       Order

	Clock  func() time.Time
	Rand   *rand.Rand
	Logger *slog.Logger
}

type Pipeline struct {
	cfg      Config
	matcher  matcher
	rule     *Rule
	renderer *Renderer
}

// New validates static configuration and compiles the exclude rule.
// Sink, store and fetcher presence is checked on each Run, after the quiet-hours guard.
func New(cfg Config) (*Pipeline, error) {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = DefaultFetchConcurrency
	}
	if cfg.MaxPostsPerRun < 0 {
		cfg.MaxPostsPerRun = 0
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	order, ok := ParseOrder(string(cfg.Order))
	if !ok {
		return nil, &core.ConfigurationError{Field: "order", Reason: fmt.Sprintf("unknown order %q", cfg.Order)}
	}
	cfg.Order = order

	rule, err := CompileRule(cfg.ExcludeRule)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:      cfg,
		matcher:  newMatcher(cfg.Keywords, cfg.BlockedKeywords, cfg.Tickers, cfg.RecencyWindow),
		rule:     rule,
		renderer: NewRenderer(cfg.Captions, cfg.Rand),
	}, nil
}

func (p *Pipeline) Topic() string {
	return p.cfg.Topic
}

// Sink exposes the configured sink for one-off deliveries such as test posts.
func (p *Pipeline) Sink() core.Sink {
	return p.cfg.Sink
}

func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// Run executes one cycle. A non-nil error is either a *core.ConfigurationError
// (nothing happened) or a *core.StoreSaveError (the result is still populated).
func (p *Pipeline) Run(ctx context.Context) (*core.RunResult, error) {
	now := p.cfg.Clock()
	runID := uuid.NewString()
	result := &core.RunResult{RunID: runID, Topic: p.cfg.Topic, StartedAt: now}

	ctx, logger := core.WithRun(ctx, p.cfg.Logger, p.cfg.Topic, runID)

	tracer := otel.Tracer("digestbot/digest")
	ctx, span := tracer.Start(ctx, "digest.run")
	span.SetAttributes(
		attribute.String("digest.topic", p.cfg.Topic),
		attribute.String("digest.run_id", runID),
	)
	defer span.End()
	if p.rule != nil {
		span.SetAttributes(attribute.String("digest.exclude_rule", p.rule.String()))
	}
	logger.Debug("run starting",
		"sources", len(p.cfg.Sources),
		"keywords", len(p.cfg.Keywords),
		"tickers", len(p.cfg.Tickers),
		"exclude_rule", p.rule.String(),
	)

	if p.cfg.QuietHours != nil && p.cfg.QuietHours(now) {
		logger.Info("quiet hours, skipping run")
		result.Skipped = true
		result.CompletedAt = p.cfg.Clock()
		span.SetAttributes(attribute.Bool("digest.skipped", true))
		return result, nil
	}

	if err := p.checkConfigured(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	seen, err := p.cfg.Store.Load(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("no seen set yet, starting empty")
		} else {
			logger.Warn("seen set unreadable, starting empty", "error", err)
		}
		seen = core.NewSeenSet()
	}
	if seen == nil {
		seen = core.NewSeenSet()
	}

	pooled, failures := p.fetchAll(ctx)
	result.Fetched = len(pooled)
	result.SourceFailures = failures

	candidates := p.filter(ctx, pooled, seen, now)
	result.Matched = len(candidates)
	logger.Info("filtered articles", "fetched", result.Fetched, "matched", result.Matched)

	p.publish(ctx, candidates, seen, result)

	var runErr error
	if err := p.cfg.Store.Save(ctx, seen); err != nil {
		runErr = &core.StoreSaveError{Err: err}
		logger.Error("failed to persist seen set", "error", err)
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	} else {
		logger.Debug("persisted seen set", "links", len(seen))
	}

	result.CompletedAt = p.cfg.Clock()
	span.SetAttributes(
		attribute.Int("digest.fetched", result.Fetched),
		attribute.Int("digest.matched", result.Matched),
		attribute.Int("digest.published", result.Published),
		attribute.Int("digest.publish_failures", result.PublishFailures),
		attribute.Int("digest.source_failures", len(result.SourceFailures)),
	)
	logger.Info("run complete",
		"fetched", result.Fetched,
		"matched", result.Matched,
		"published", result.Published,
		"publish_failures", result.PublishFailures,
		"source_failures", len(result.SourceFailures),
		"duration", result.CompletedAt.Sub(result.StartedAt),
	)
	return result, runErr
}

func (p *Pipeline) checkConfigured() error {
	if p.cfg.Sink == nil {
		return &core.ConfigurationError{Field: "sink", Reason: "no sink configured"}
	}
	if err := p.cfg.Sink.Validate(); err != nil {
		var cfgErr *core.ConfigurationError
		if errors.As(err, &cfgErr) {
			return cfgErr
		}
		return &core.ConfigurationError{Field: "sink", Reason: err.Error()}
	}
	if p.cfg.Store == nil {
		return &core.ConfigurationError{Field: "store", Reason: "no store configured"}
	}
	if p.cfg.Fetcher == nil {
		return &core.ConfigurationError{Field: "fetcher", Reason: "no fetcher configured"}
	}
	return nil
}

type fetchResult struct {
	articles []core.Article
	err      error
}

// fetchAll fetches every source through a bounded worker pool. Results are
// slotted by source index so the pooled order matches configuration order.
func (p *Pipeline) fetchAll(ctx context.Context) ([]core.Article, []core.SourceFailure) {
	logger := core.LoggerFromContext(ctx)
	results := make([]fetchResult, len(p.cfg.Sources))

	workers := p.cfg.FetchConcurrency
	if workers > len(p.cfg.Sources) {
		workers = len(p.cfg.Sources)
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = p.fetchOne(ctx, p.cfg.Sources[idx])
			}
		}()
	}
	for idx := range p.cfg.Sources {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	var pooled []core.Article
	var failures []core.SourceFailure
	for idx, res := range results {
		src := p.cfg.Sources[idx]
		if res.err != nil {
			logger.Warn("source failed", "source", src.URL, "error", res.err)
			failures = append(failures, core.SourceFailure{
				Source: src.URL,
				Err:    &core.SourceFetchError{Source: src.URL, Err: res.err},
			})
			continue
		}
		for _, a := range res.articles {
			if a.Source == "" {
				a.Source = src.URL
			}
			pooled = append(pooled, a)
		}
	}
	if p.cfg.Order == OrderNewest {
		sortNewest(pooled)
	}
	return pooled, failures
}

func (p *Pipeline) fetchOne(ctx context.Context, src core.Source) fetchResult {
	logger := core.LoggerFromContext(ctx)
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	limit := sourceLimit(src.MaxItems, p.cfg.PerSourceItemCap)
	logger.Debug("fetching source", "source", src.URL, "limit", limit)
	articles, err := p.cfg.Fetcher.Fetch(fetchCtx, src.URL, limit)
	if err != nil {
		return fetchResult{err: err}
	}
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	logger.Info("fetched source", "source", src.URL, "items", len(articles), "duration", time.Since(start))
	return fetchResult{articles: articles}
}

// sourceLimit picks the tighter of the per-source and global caps; 0 means uncapped.
func sourceLimit(perSource, global int) int {
	switch {
	case perSource > 0 && global > 0:
		return min(perSource, global)
	case perSource > 0:
		return perSource
	case global > 0:
		return global
	default:
		return 0
	}
}

func (p *Pipeline) filter(ctx context.Context, pooled []core.Article, seen core.SeenSet, now time.Time) []core.Article {
	logger := core.LoggerFromContext(ctx)
	retained := make(map[string]struct{})
	out := make([]core.Article, 0, len(pooled))
	for _, a := range pooled {
		reason := p.matcher.check(a, seen, now)
		if reason == keep {
			if _, dup := retained[a.Link]; dup {
				reason = rejectDuplicate
			}
		}
		if reason == keep && p.rule != nil {
			excluded, err := p.rule.Excludes(a, now)
			if err != nil {
				logger.Warn("exclude rule failed, keeping article", "link", a.Link, "error", err)
			} else if excluded {
				reason = rejectRule
			}
		}
		if reason != keep {
			logger.Debug("article rejected", "link", a.Link, "reason", string(reason))
			continue
		}
		retained[a.Link] = struct{}{}
		out = append(out, a)
	}
	return out
}

func (p *Pipeline) publish(ctx context.Context, candidates []core.Article, seen core.SeenSet, result *core.RunResult) {
	logger := core.LoggerFromContext(ctx)
	for _, a := range candidates {
		if p.cfg.MaxPostsPerRun > 0 && result.Published >= p.cfg.MaxPostsPerRun {
			logger.Info("max posts per run reached", "max", p.cfg.MaxPostsPerRun)
			return
		}
		if err := ctx.Err(); err != nil {
			logger.Warn("run cancelled before publish finished", "error", err)
			return
		}
		req := core.PublishRequest{Content: p.renderer.Render(a), Article: a}
		if err := p.cfg.Sink.Publish(ctx, req); err != nil {
			result.PublishFailures++
			logger.Error("publish failed", "sink", p.cfg.Sink.Name(), "link", a.Link, "error", err)
			continue
		}
		seen.Add(a.Link)
		result.Published++
		result.PublishedLinks = append(result.PublishedLinks, a.Link)
		logger.Info("published", "sink", p.cfg.Sink.Name(), "link", a.Link, "title", a.Title)
	}
}
