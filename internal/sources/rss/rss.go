package rss

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/bakkerme/digestbot/internal/core"
	"github.com/mmcdole/gofeed"
)

// Options controls how a feed is fetched.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Attempts  int
}

// ArticlesFromFeed converts parsed feed entries into articles, keeping feed order
// and stopping at limit when limit is positive.
func ArticlesFromFeed(feed *gofeed.Feed, feedURL string, limit int) []core.Article {
	if feed == nil {
		return nil
	}
	if limit <= 0 || limit > len(feed.Items) {
		limit = len(feed.Items)
	}
	articles := make([]core.Article, 0, limit)
	for _, item := range feed.Items {
		if len(articles) >= limit {
			break
		}
		if item == nil {
			continue
		}
		articles = append(articles, core.Article{
			Title:       strings.TrimSpace(item.Title),
			Link:        strings.TrimSpace(item.Link),
			Source:      feedURL,
			PublishedAt: publishedAt(item),
		})
	}
	return articles
}

// publishedAt prefers the published date, then the updated date. Entries without
// either stay zero so recency filters can exclude them.
func publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return time.Time{}
}

// IsRetryable reports whether a fetch error is worth another attempt:
// timeouts, 5xx and 429 responses. Parse errors and 4xx are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == 429
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
