package config

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/bakkerme/digestbot/internal/core"
)

func TestLoadEnvDefaults(t *testing.T) {
	for _, key := range []string{"DIGEST_CONFIG", "MAX_POSTS_PER_RUN", "PER_SOURCE_ITEM_CAP", "FETCH_TIMEOUT", "QUIET_CUTOFF_HOUR", "DIGEST_CACHE_FILE", "DIGEST_FEEDS"} {
		t.Setenv(key, "")
	}
	env := LoadEnv()
	if env.ConfigPath != "digestbot.yaml" {
		t.Fatalf("config path = %q", env.ConfigPath)
	}
	if env.Digest.MaxPostsPerRun != 3 || env.Digest.PerSourceItemCap != 8 {
		t.Fatalf("unexpected limits: %+v", env.Digest)
	}
	if env.Fetch.Timeout != 15*time.Second || env.Fetch.Concurrency != 4 {
		t.Fatalf("unexpected fetch config: %+v", env.Fetch)
	}
	if env.Digest.QuietCutoffHour != -1 || env.Digest.CacheFile != ".digest_cache.json" {
		t.Fatalf("unexpected digest defaults: %+v", env.Digest)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DIGEST_FEEDS", "https://a.example.com/feed, https://b.example.com/rss ,")
	t.Setenv("DIGEST_KEYWORDS", "AI,chip")
	t.Setenv("RECENCY_WINDOW", "7d")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("QUIET_CUTOFF_HOUR", "22")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-token=abc, bad, y=")
	t.Setenv("DIGEST_LISTEN_ADDR", ":8080")
	t.Setenv("DIGEST_TICKERS", "NVDA, amd")

	env := LoadEnv()
	if !reflect.DeepEqual(env.Digest.Feeds, []string{"https://a.example.com/feed", "https://b.example.com/rss"}) {
		t.Fatalf("feeds = %v", env.Digest.Feeds)
	}
	if !reflect.DeepEqual(env.Digest.Keywords, []string{"AI", "chip"}) {
		t.Fatalf("keywords = %v", env.Digest.Keywords)
	}
	if env.Digest.RecencyWindow != 7*24*time.Hour || env.Fetch.Timeout != 5*time.Second {
		t.Fatalf("durations not parsed: %+v %+v", env.Digest, env.Fetch)
	}
	if !reflect.DeepEqual(env.Digest.Tickers, []string{"NVDA", "amd"}) {
		t.Fatalf("tickers = %v", env.Digest.Tickers)
	}
	if env.ListenAddr != ":8080" {
		t.Fatalf("listen addr = %q", env.ListenAddr)
	}
	if env.Digest.QuietCutoffHour != 22 {
		t.Fatalf("cutoff = %d", env.Digest.QuietCutoffHour)
	}
	if !reflect.DeepEqual(env.OTel.Headers, map[string]string{"x-token": "abc"}) {
		t.Fatalf("headers = %v", env.OTel.Headers)
	}
}

func TestTopicFromEnv(t *testing.T) {
	env := DigestEnvConfig{
		Feeds:            []string{"https://a.example.com/feed"},
		Keywords:         []string{"ai"},
		MaxPostsPerRun:   3,
		PerSourceItemCap: 0,
		QuietCutoffHour:  23,
		QuietTimezone:    "UTC",
		CacheFile:        "cache.json",
	}
	topic := TopicFromEnv(env)
	if topic.Sink.Discord == nil || topic.Sink.Discord.WebhookEnv != "DIGEST_WEBHOOK_URL" {
		t.Fatalf("expected discord sink bound to DIGEST_WEBHOOK_URL, got %+v", topic.Sink)
	}
	if topic.Store.Path != "cache.json" || topic.Store.Type != StoreFile {
		t.Fatalf("store = %+v", topic.Store)
	}
	if topic.EffectiveMaxPosts() != 3 || topic.EffectivePerSourceCap() != 0 {
		t.Fatalf("limits = %d %d", topic.EffectiveMaxPosts(), topic.EffectivePerSourceCap())
	}
	if topic.QuietHours == nil || topic.QuietHours.CutoffHour != 23 {
		t.Fatalf("quiet hours = %+v", topic.QuietHours)
	}

	env.QuietCutoffHour = -1
	env.DryRun = true
	topic = TopicFromEnv(env)
	if topic.QuietHours != nil || !topic.Sink.DryRun || topic.Sink.Discord != nil {
		t.Fatalf("unexpected topic: %+v", topic)
	}
}

func TestEnvDocumentRequiresFeeds(t *testing.T) {
	_, err := EnvDocument(DigestEnvConfig{QuietCutoffHour: -1})
	var cfgErr *core.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
