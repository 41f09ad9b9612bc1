package digest

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/bakkerme/digestbot/internal/core"
)

// Order controls how pooled articles are arranged before publishing.
type Order string

const (
	OrderFeed   Order = "feed"
	OrderNewest Order = "newest"
)

func ParseOrder(raw string) (Order, bool) {
	switch Order(strings.ToLower(strings.TrimSpace(raw))) {
	case "", OrderFeed:
		return OrderFeed, true
	case OrderNewest:
		return OrderNewest, true
	default:
		return "", false
	}
}

// rejection names why an article was not retained; used for debug logging.
type rejection string

const (
	keep             rejection = ""
	rejectIncomplete rejection = "missing title or link"
	rejectSeen       rejection = "already published"
	rejectDuplicate  rejection = "duplicate in run"
	rejectKeyword    rejection = "no keyword match"
	rejectTicker     rejection = "no ticker match"
	rejectBlocked    rejection = "blocked keyword"
	rejectStale      rejection = "outside recency window"
	rejectRule       rejection = "exclude rule"
)

type matcher struct {
	keywords []string
	blocked  []string
	tickers  map[string]struct{}
	window   time.Duration
}

func newMatcher(keywords, blocked, tickers []string, window time.Duration) matcher {
	m := matcher{
		keywords: foldAll(keywords),
		blocked:  foldAll(blocked),
		window:   window,
	}
	for _, t := range tickers {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			if m.tickers == nil {
				m.tickers = map[string]struct{}{}
			}
			m.tickers[t] = struct{}{}
		}
	}
	return m
}

// check applies every filter except the exclude rule and the in-run duplicate guard.
func (m matcher) check(article core.Article, seen core.SeenSet, now time.Time) rejection {
	if strings.TrimSpace(article.Title) == "" || strings.TrimSpace(article.Link) == "" {
		return rejectIncomplete
	}
	if seen.Has(article.Link) {
		return rejectSeen
	}
	title := strings.ToLower(article.Title)
	if len(m.keywords) > 0 && !containsAny(title, m.keywords) {
		return rejectKeyword
	}
	if len(m.tickers) > 0 && m.ticker(article.Title) == "" {
		return rejectTicker
	}
	if containsAny(title, m.blocked) {
		return rejectBlocked
	}
	if m.window > 0 {
		if !article.HasDate() || article.PublishedAt.Before(now.Add(-m.window)) {
			return rejectStale
		}
	}
	return keep
}

// ticker returns the first title token that is on the watchlist. Tokens are
// whole words split on spaces and punctuation, so "AI" never matches "RAIL".
// Dots and hyphens stay inside tokens for symbols like BRK.B.
func (m matcher) ticker(title string) string {
	tokens := strings.FieldsFunc(title, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-')
	})
	for _, tok := range tokens {
		tok = strings.ToUpper(strings.Trim(tok, ".-"))
		if _, ok := m.tickers[tok]; ok {
			return tok
		}
	}
	return ""
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// sortNewest orders articles by PublishedAt descending; undated articles go last
// and ties keep pooled order.
func sortNewest(articles []core.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		a, b := articles[i], articles[j]
		if a.HasDate() != b.HasDate() {
			return a.HasDate()
		}
		return a.PublishedAt.After(b.PublishedAt)
	})
}
