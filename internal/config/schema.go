package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"net/url"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/bakkerme/digestbot/internal/core"
)

const (
	DefaultMaxPostsPerRun   = 3
	DefaultPerSourceItemCap = 8
	DefaultQuietTimezone    = "America/New_York"
)

// Document represents the top-level structure of a digestbot.yaml file.
type Document struct {
	Topics []TopicConfig `yaml:"topics"`
}

// TopicConfig describes one independently scheduled digest.
type TopicConfig struct {
	Name            string       `yaml:"name"`
	Feeds           []FeedConfig `yaml:"feeds"`
	Keywords        []string     `yaml:"keywords,omitempty"`
	BlockedKeywords []string     `yaml:"blocked_keywords,omitempty"`
	Tickers         []string     `yaml:"tickers,omitempty"`
	ExcludeRule     string       `yaml:"exclude_rule,omitempty"`
	Captions        []string     `yaml:"captions,omitempty"`
	Order           string       `yaml:"order,omitempty"`

	// MaxPostsPerRun: 0 uses DefaultMaxPostsPerRun, negative means unlimited.
	MaxPostsPerRun int `yaml:"max_posts_per_run,omitempty"`
	// PerSourceItemCap: 0 uses DefaultPerSourceItemCap, negative means uncapped.
	PerSourceItemCap int      `yaml:"per_source_item_cap,omitempty"`
	RecencyWindow    Duration `yaml:"recency_window,omitempty"`

	QuietHours *QuietHoursConfig `yaml:"quiet_hours,omitempty"`
	Schedule   *ScheduleConfig   `yaml:"schedule,omitempty"`
	Sink       SinkConfig        `yaml:"sink"`
	Store      StoreConfig       `yaml:"store,omitempty"`
}

// FeedConfig accepts either a bare URL or a mapping with a per-feed item limit.
type FeedConfig struct {
	URL      string `yaml:"url"`
	MaxItems int    `yaml:"max_items,omitempty"`
}

func (f *FeedConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		f.URL = strings.TrimSpace(node.Value)
		return nil
	}
	type plain FeedConfig
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*f = FeedConfig(p)
	f.URL = strings.TrimSpace(f.URL)
	return nil
}

type QuietHoursConfig struct {
	CutoffHour int    `yaml:"cutoff_hour"`
	Timezone   string `yaml:"timezone,omitempty"`
}

// Location resolves the configured timezone, defaulting to DefaultQuietTimezone.
func (q *QuietHoursConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(q.Timezone)
	if tz == "" {
		tz = DefaultQuietTimezone
	}
	return time.LoadLocation(tz)
}

type ScheduleConfig struct {
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone,omitempty"`
}

type SinkConfig struct {
	Discord *DiscordSinkConfig `yaml:"discord,omitempty"`
	Email   *EmailSinkConfig   `yaml:"email,omitempty"`
	// DryRun logs payloads instead of delivering them.
	DryRun bool `yaml:"dry_run,omitempty"`
}

type DiscordSinkConfig struct {
	WebhookURL string `yaml:"webhook_url,omitempty"`
	// WebhookEnv names an environment variable holding the webhook URL.
	WebhookEnv string `yaml:"webhook_env,omitempty"`
	Username   string `yaml:"username,omitempty"`
}

// ResolveWebhookURL prefers the literal URL, then the named environment variable.
func (d *DiscordSinkConfig) ResolveWebhookURL() string {
	if d == nil {
		return ""
	}
	if u := strings.TrimSpace(d.WebhookURL); u != "" {
		return u
	}
	if d.WebhookEnv != "" {
		return strings.TrimSpace(os.Getenv(d.WebhookEnv))
	}
	return ""
}

type EmailSinkConfig struct {
	To            string `yaml:"to"`
	From          string `yaml:"from,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}

type StoreType string

const (
	StoreFile   StoreType = "file"
	StoreSQLite StoreType = "sqlite"
	StoreRedis  StoreType = "redis"
	StoreS3     StoreType = "s3"
	StoreBadger StoreType = "badger"
)

type StoreConfig struct {
	Type      StoreType `yaml:"type,omitempty"`
	Path      string    `yaml:"path,omitempty"`
	DSN       string    `yaml:"dsn,omitempty"`
	Table     string    `yaml:"table,omitempty"`
	TTL       Duration  `yaml:"ttl,omitempty"`
	Key       string    `yaml:"key,omitempty"`
	Bucket    string    `yaml:"bucket,omitempty"`
	ObjectKey string    `yaml:"object_key,omitempty"`
}

// Load reads and validates a document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes and validates a document. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, &core.ConfigurationError{Reason: fmt.Sprintf("parse yaml: %v", err)}
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate performs validation on the document. Errors are *core.ConfigurationError.
func (d *Document) Validate() error {
	if len(d.Topics) == 0 {
		return &core.ConfigurationError{Field: "topics", Reason: "at least one topic is required"}
	}
	names := make(map[string]struct{}, len(d.Topics))
	for i := range d.Topics {
		t := &d.Topics[i]
		label := fmt.Sprintf("topics[%d]", i)
		if strings.TrimSpace(t.Name) == "" {
			return &core.ConfigurationError{Field: label + ".name", Reason: "name is required"}
		}
		if _, dup := names[t.Name]; dup {
			return &core.ConfigurationError{Field: label + ".name", Reason: fmt.Sprintf("duplicate topic %q", t.Name)}
		}
		names[t.Name] = struct{}{}
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Topic returns the named topic.
func (d *Document) Topic(name string) (*TopicConfig, bool) {
	for i := range d.Topics {
		if d.Topics[i].Name == name {
			return &d.Topics[i], true
		}
	}
	return nil, false
}

func (t *TopicConfig) Validate() error {
	field := func(f string) string { return fmt.Sprintf("topic %s: %s", t.Name, f) }

	if len(t.Feeds) == 0 {
		return &core.ConfigurationError{Field: field("feeds"), Reason: "at least one feed is required"}
	}
	for i, feed := range t.Feeds {
		u, err := url.Parse(feed.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &core.ConfigurationError{Field: field(fmt.Sprintf("feeds[%d]", i)), Reason: fmt.Sprintf("invalid feed url %q", feed.URL)}
		}
		if feed.MaxItems < 0 {
			return &core.ConfigurationError{Field: field(fmt.Sprintf("feeds[%d].max_items", i)), Reason: "must not be negative"}
		}
	}

	switch strings.ToLower(strings.TrimSpace(t.Order)) {
	case "", "feed", "newest":
	default:
		return &core.ConfigurationError{Field: field("order"), Reason: "must be 'feed' or 'newest'"}
	}
	if t.RecencyWindow < 0 {
		return &core.ConfigurationError{Field: field("recency_window"), Reason: "must not be negative"}
	}

	if t.QuietHours != nil {
		if t.QuietHours.CutoffHour < 0 || t.QuietHours.CutoffHour > 23 {
			return &core.ConfigurationError{Field: field("quiet_hours.cutoff_hour"), Reason: "must be between 0 and 23"}
		}
		if _, err := t.QuietHours.Location(); err != nil {
			return &core.ConfigurationError{Field: field("quiet_hours.timezone"), Reason: err.Error()}
		}
	}

	if t.Schedule != nil {
		if strings.TrimSpace(t.Schedule.Cron) == "" {
			return &core.ConfigurationError{Field: field("schedule.cron"), Reason: "cron expression is required"}
		}
		if _, err := cron.ParseStandard(t.Schedule.Cron); err != nil {
			return &core.ConfigurationError{Field: field("schedule.cron"), Reason: err.Error()}
		}
		if tz := strings.TrimSpace(t.Schedule.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return &core.ConfigurationError{Field: field("schedule.timezone"), Reason: err.Error()}
			}
		}
	}

	if err := t.Sink.validate(field); err != nil {
		return err
	}
	return t.Store.validate(field)
}

func (s *SinkConfig) validate(field func(string) string) error {
	if s.Discord != nil && s.Email != nil {
		return &core.ConfigurationError{Field: field("sink"), Reason: "configure only one of discord or email"}
	}
	if s.Discord == nil && s.Email == nil && !s.DryRun {
		return &core.ConfigurationError{Field: field("sink"), Reason: "a discord or email sink is required"}
	}
	if s.Discord != nil && strings.TrimSpace(s.Discord.WebhookURL) == "" && strings.TrimSpace(s.Discord.WebhookEnv) == "" {
		return &core.ConfigurationError{Field: field("sink.discord"), Reason: "webhook_url or webhook_env is required"}
	}
	if s.Email != nil {
		if strings.TrimSpace(s.Email.To) == "" {
			return &core.ConfigurationError{Field: field("sink.email.to"), Reason: "recipient is required"}
		}
		if _, err := mail.ParseAddressList(s.Email.To); err != nil {
			return &core.ConfigurationError{Field: field("sink.email.to"), Reason: "invalid address list"}
		}
		if s.Email.From != "" { // From is optional, but if provided must be valid
			if _, err := mail.ParseAddress(s.Email.From); err != nil {
				return &core.ConfigurationError{Field: field("sink.email.from"), Reason: "invalid address"}
			}
		}
	}
	return nil
}

func (s *StoreConfig) validate(field func(string) string) error {
	switch s.Type {
	case "", StoreFile:
	case StoreSQLite:
		if strings.TrimSpace(s.DSN) == "" && strings.TrimSpace(s.Path) == "" {
			return &core.ConfigurationError{Field: field("store.dsn"), Reason: "sqlite store needs dsn or path"}
		}
	case StoreRedis:
	case StoreBadger:
		if strings.TrimSpace(s.Path) == "" {
			return &core.ConfigurationError{Field: field("store.path"), Reason: "badger store needs a directory path"}
		}
	case StoreS3:
		if strings.TrimSpace(s.Bucket) == "" {
			return &core.ConfigurationError{Field: field("store.bucket"), Reason: "s3 store needs a bucket"}
		}
	default:
		return &core.ConfigurationError{Field: field("store.type"), Reason: fmt.Sprintf("unknown store type %q", s.Type)}
	}
	if s.TTL < 0 {
		return &core.ConfigurationError{Field: field("store.ttl"), Reason: "must not be negative"}
	}
	return nil
}

// EffectiveMaxPosts maps the YAML value onto the pipeline convention (0 = unlimited).
func (t *TopicConfig) EffectiveMaxPosts() int {
	switch {
	case t.MaxPostsPerRun == 0:
		return DefaultMaxPostsPerRun
	case t.MaxPostsPerRun < 0:
		return 0
	default:
		return t.MaxPostsPerRun
	}
}

// EffectivePerSourceCap maps the YAML value onto the pipeline convention (0 = uncapped).
func (t *TopicConfig) EffectivePerSourceCap() int {
	switch {
	case t.PerSourceItemCap == 0:
		return DefaultPerSourceItemCap
	case t.PerSourceItemCap < 0:
		return 0
	default:
		return t.PerSourceItemCap
	}
}

// Sources converts feed entries to pipeline sources.
func (t *TopicConfig) Sources() []core.Source {
	out := make([]core.Source, 0, len(t.Feeds))
	for _, f := range t.Feeds {
		out = append(out, core.Source{URL: f.URL, MaxItems: f.MaxItems})
	}
	return out
}
