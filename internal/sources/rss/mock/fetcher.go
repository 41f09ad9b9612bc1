package mock

import (
	"context"
	"sync"

	"github.com/bakkerme/digestbot/internal/core"
)

// Fetcher serves canned articles per feed URL. Safe for concurrent use.
type Fetcher struct {
	ArticlesByFeed map[string][]core.Article
	ErrByFeed      map[string]error
	// Block, when set for a feed, makes Fetch wait for ctx to be done.
	Block map[string]bool

	mu    sync.Mutex
	calls []string
}

func (f *Fetcher) Fetch(ctx context.Context, feedURL string, limit int) ([]core.Article, error) {
	f.mu.Lock()
	f.calls = append(f.calls, feedURL)
	f.mu.Unlock()

	if f.Block[feedURL] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err, ok := f.ErrByFeed[feedURL]; ok {
		return nil, err
	}
	articles := f.ArticlesByFeed[feedURL]
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	out := make([]core.Article, len(articles))
	copy(out, articles)
	for i := range out {
		if out[i].Source == "" {
			out[i].Source = feedURL
		}
	}
	return out, nil
}

// Calls returns the feed URLs requested so far.
func (f *Fetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}
