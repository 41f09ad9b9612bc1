package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/bakkerme/digestbot/internal/config"
	"github.com/bakkerme/digestbot/internal/core"
	"github.com/bakkerme/digestbot/internal/dedupe"
	"github.com/bakkerme/digestbot/internal/outputs/discord"
	"github.com/bakkerme/digestbot/internal/outputs/email"
	emailmock "github.com/bakkerme/digestbot/internal/outputs/email/mock"
	"github.com/bakkerme/digestbot/internal/outputs/logsink"
)

func testFactory() *Factory {
	return &Factory{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestNewSink(t *testing.T) {
	f := testFactory()
	f.EmailSender = &emailmock.Sender{}

	tests := []struct {
		name  string
		sink  config.SinkConfig
		check func(t *testing.T, s core.Sink)
	}{
		{name: "dry run wins", sink: config.SinkConfig{DryRun: true, Discord: &config.DiscordSinkConfig{WebhookURL: "https://x"}}, check: func(t *testing.T, s core.Sink) {
			if _, ok := s.(*logsink.Sink); !ok {
				t.Fatalf("got %T, want logsink", s)
			}
		}},
		{name: "discord", sink: config.SinkConfig{Discord: &config.DiscordSinkConfig{WebhookURL: "https://discord.example.com/api/webhooks/1"}}, check: func(t *testing.T, s core.Sink) {
			if _, ok := s.(*discord.Sink); !ok {
				t.Fatalf("got %T, want discord", s)
			}
			if err := s.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
		}},
		{name: "email", sink: config.SinkConfig{Email: &config.EmailSinkConfig{To: "reader@example.com"}}, check: func(t *testing.T, s core.Sink) {
			if _, ok := s.(*email.Sink); !ok {
				t.Fatalf("got %T, want email", s)
			}
			if err := s.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := f.NewSink(&config.TopicConfig{Name: "ai", Sink: tt.sink})
			if err != nil {
				t.Fatalf("NewSink: %v", err)
			}
			tt.check(t, s)
		})
	}
}

func TestNewSink_UnsetWebhookFailsValidation(t *testing.T) {
	t.Setenv("TEST_UNSET_WEBHOOK", "")
	s, err := testFactory().NewSink(&config.TopicConfig{
		Name: "ai",
		Sink: config.SinkConfig{Discord: &config.DiscordSinkConfig{WebhookEnv: "TEST_UNSET_WEBHOOK"}},
	})
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	var cfgErr *core.ConfigurationError
	if !errors.As(s.Validate(), &cfgErr) {
		t.Fatalf("expected ConfigurationError from Validate")
	}
}

func TestNewSink_EmailWithoutSMTPFailsValidation(t *testing.T) {
	s, err := testFactory().NewSink(&config.TopicConfig{
		Name: "ai",
		Sink: config.SinkConfig{Email: &config.EmailSinkConfig{To: "reader@example.com"}},
	})
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	if s.Validate() == nil {
		t.Fatalf("expected validation error without smtp host")
	}
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()
	f := testFactory()
	defer f.Close()

	fileStore, err := f.NewStore(context.Background(), &config.TopicConfig{Name: "ai"})
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	if fs, ok := fileStore.(*dedupe.FileStore); !ok || fs.Path() != ".digest_cache_ai.json" {
		t.Fatalf("unexpected default file store: %#v", fileStore)
	}

	sqliteStore, err := f.NewStore(context.Background(), &config.TopicConfig{
		Name:  "ai",
		Store: config.StoreConfig{Type: config.StoreSQLite, Path: filepath.Join(dir, "seen.db")},
	})
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	if err := sqliteStore.Save(context.Background(), core.NewSeenSet("https://example.com/a")); err != nil {
		t.Fatalf("sqlite save: %v", err)
	}
	seen, err := sqliteStore.Load(context.Background())
	if err != nil || !seen.Has("https://example.com/a") {
		t.Fatalf("sqlite load = %v, %v", seen, err)
	}

	badgerStore, err := f.NewStore(context.Background(), &config.TopicConfig{
		Name:  "ai",
		Store: config.StoreConfig{Type: config.StoreBadger, Path: filepath.Join(dir, "badger")},
	})
	if err != nil {
		t.Fatalf("badger store: %v", err)
	}
	if _, ok := badgerStore.(*dedupe.BadgerStore); !ok {
		t.Fatalf("got %T, want badger store", badgerStore)
	}

	redisStore, err := f.NewStore(context.Background(), &config.TopicConfig{
		Name:  "ai",
		Store: config.StoreConfig{Type: config.StoreRedis},
	})
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	if _, ok := redisStore.(*dedupe.RedisStore); !ok {
		t.Fatalf("got %T, want redis store", redisStore)
	}

	if _, err := f.NewStore(context.Background(), &config.TopicConfig{Name: "ai", Store: config.StoreConfig{Type: "etcd"}}); err == nil {
		t.Fatalf("expected unknown store type error")
	}
}

func TestNewPipelinesAndTriggers(t *testing.T) {
	dir := t.TempDir()
	doc := &config.Document{Topics: []config.TopicConfig{
		{
			Name:       "ai",
			Feeds:      []config.FeedConfig{{URL: "https://example.com/ai.xml"}},
			Sink:       config.SinkConfig{DryRun: true},
			Store:      config.StoreConfig{Path: filepath.Join(dir, "ai.json")},
			Schedule:   &config.ScheduleConfig{Cron: "*/30 * * * *"},
			QuietHours: &config.QuietHoursConfig{CutoffHour: 23, Timezone: "UTC"},
		},
		{
			Name:  "crypto",
			Feeds: []config.FeedConfig{{URL: "https://example.com/crypto.xml"}},
			Sink:  config.SinkConfig{DryRun: true},
			Store: config.StoreConfig{Path: filepath.Join(dir, "crypto.json")},
		},
	}}
	f := testFactory()
	pipelines, err := f.NewPipelines(context.Background(), doc)
	if err != nil {
		t.Fatalf("NewPipelines: %v", err)
	}
	if len(pipelines) != 2 || pipelines[0].Topic() != "ai" || pipelines[1].Topic() != "crypto" {
		t.Fatalf("unexpected pipelines")
	}
	triggers := f.NewTriggers(doc)
	if len(triggers) != 1 || triggers[0].Topic() != "ai" {
		t.Fatalf("unexpected triggers: %d", len(triggers))
	}
}

func TestNewPipeline_BadRuleIsConfigurationError(t *testing.T) {
	_, err := testFactory().NewPipeline(context.Background(), &config.TopicConfig{
		Name:        "ai",
		Feeds:       []config.FeedConfig{{URL: "https://example.com/ai.xml"}},
		Sink:        config.SinkConfig{DryRun: true},
		Store:       config.StoreConfig{Path: filepath.Join(t.TempDir(), "ai.json")},
		ExcludeRule: "title ==",
	})
	var cfgErr *core.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
