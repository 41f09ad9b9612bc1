package core

import "fmt"

// ConfigurationError means a required destination or credential is missing.
// It is fatal to the run and raised before any side effect.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// SourceFetchError wraps a per-feed network or parse failure.
type SourceFetchError struct {
	Source string
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// PublishError wraps a per-article sink failure. Status is the HTTP status when known.
type PublishError struct {
	Link   string
	Status int
	Err    error
}

func (e *PublishError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("publish %s: status %d: %v", e.Link, e.Status, e.Err)
	}
	return fmt.Sprintf("publish %s: %v", e.Link, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// StoreLoadError means persisted state was missing or unreadable; callers continue with an empty set.
type StoreLoadError struct {
	Err error
}

func (e *StoreLoadError) Error() string {
	return fmt.Sprintf("load seen set: %v", e.Err)
}

func (e *StoreLoadError) Unwrap() error { return e.Err }

// StoreSaveError means updated state could not be persisted. Surfacing it matters:
// silently losing it causes duplicate posts on every later run.
type StoreSaveError struct {
	Err error
}

func (e *StoreSaveError) Error() string {
	return fmt.Sprintf("save seen set: %v", e.Err)
}

func (e *StoreSaveError) Unwrap() error { return e.Err }
