package core

import (
	"sort"
	"time"
)

// Article is a single feed entry as it flows through a digest run.
// Title and Link may be empty; such articles are never published.
type Article struct {
	Title       string    `json:"title" yaml:"title"`
	Link        string    `json:"link" yaml:"link"`
	Source      string    `json:"source,omitempty" yaml:"source,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"` // zero when the feed carried no date
}

// HasDate reports whether the feed supplied a publication time.
func (a Article) HasDate() bool {
	return !a.PublishedAt.IsZero()
}

// Source is a configured feed endpoint.
type Source struct {
	URL      string `json:"url" yaml:"url"`
	MaxItems int    `json:"max_items,omitempty" yaml:"max_items,omitempty"`
}

// PublishRequest is a rendered payload for a Sink, along with the Article it was built from.
type PublishRequest struct {
	Content string
	Article Article
}

// SeenSet holds links that have already been published.
type SeenSet map[string]struct{}

func NewSeenSet(links ...string) SeenSet {
	s := make(SeenSet, len(links))
	for _, link := range links {
		s.Add(link)
	}
	return s
}

func (s SeenSet) Has(link string) bool {
	_, ok := s[link]
	return ok
}

func (s SeenSet) Add(link string) {
	if link == "" {
		return
	}
	s[link] = struct{}{}
}

// Links returns the set contents sorted, so persisted state diffs cleanly.
func (s SeenSet) Links() []string {
	out := make([]string, 0, len(s))
	for link := range s {
		out = append(out, link)
	}
	sort.Strings(out)
	return out
}

func (s SeenSet) Clone() SeenSet {
	out := make(SeenSet, len(s))
	for link := range s {
		out[link] = struct{}{}
	}
	return out
}
