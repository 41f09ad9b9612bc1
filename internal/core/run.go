package core

import "time"

// SourceFailure records a feed that could not be fetched during a run.
type SourceFailure struct {
	Source string `json:"source"`
	Err    error  `json:"-"`
}

// RunResult summarises a single digest run.
type RunResult struct {
	RunID           string          `json:"run_id"`
	Topic           string          `json:"topic"`
	Skipped         bool            `json:"skipped"` // quiet hours
	Fetched         int             `json:"fetched"`
	Matched         int             `json:"matched"`
	Published       int             `json:"published"`
	PublishFailures int             `json:"publish_failures"`
	PublishedLinks  []string        `json:"published_links,omitempty"`
	SourceFailures  []SourceFailure `json:"source_failures,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     time.Time       `json:"completed_at"`
}
