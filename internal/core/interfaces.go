package core

import "context"

// Fetcher retrieves entries from a single feed, newest first as the feed orders them.
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string, limit int) ([]Article, error)
}

// Sink is an external publish target such as a chat webhook.
type Sink interface {
	// Name returns a short identifier used in logs.
	Name() string
	// Validate reports whether the sink has a usable destination.
	Validate() error
	// Publish delivers one rendered payload.
	Publish(ctx context.Context, req PublishRequest) error
}

// Store persists the SeenSet between runs.
type Store interface {
	// Load returns the persisted set. On error the returned set is still usable (empty).
	Load(ctx context.Context) (SeenSet, error)
	Save(ctx context.Context, seen SeenSet) error
}
