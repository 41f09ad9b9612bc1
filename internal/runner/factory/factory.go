// Package factory builds digest pipelines, sinks and stores from configuration.
package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bakkerme/digestbot/internal/config"
	"github.com/bakkerme/digestbot/internal/core"
	"github.com/bakkerme/digestbot/internal/dedupe"
	"github.com/bakkerme/digestbot/internal/digest"
	"github.com/bakkerme/digestbot/internal/outputs/discord"
	"github.com/bakkerme/digestbot/internal/outputs/email"
	"github.com/bakkerme/digestbot/internal/outputs/email/smtp"
	"github.com/bakkerme/digestbot/internal/outputs/logsink"
	"github.com/bakkerme/digestbot/internal/sources/rss"
	rssimpl "github.com/bakkerme/digestbot/internal/sources/rss/impl"
	"github.com/bakkerme/digestbot/internal/trigger"
)

type Factory struct {
	Logger  *slog.Logger
	Env     config.EnvConfig
	Fetcher core.Fetcher
	// EmailSender overrides the SMTP sender built from Env.SMTP.
	EmailSender email.Sender
	// S3Client overrides the client built from Env.S3 and the default AWS chain.
	S3Client dedupe.S3API
	// RedisClient overrides the client built from Env.Redis.
	RedisClient redis.UniversalClient
	HTTPClient  *http.Client
	Clock       func() time.Time
	Rand        *rand.Rand

	closers []io.Closer
}

func NewFromEnvConfig(logger *slog.Logger, env config.EnvConfig) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		Logger: logger,
		Env:    env,
		Fetcher: rssimpl.NewFetcher(rss.Options{
			Timeout:   env.Fetch.Timeout,
			UserAgent: env.Fetch.UserAgent,
			Attempts:  env.Fetch.Attempts,
		}),
	}
}

// NewPipelines builds one pipeline per topic in document order.
func (f *Factory) NewPipelines(ctx context.Context, doc *config.Document) ([]*digest.Pipeline, error) {
	out := make([]*digest.Pipeline, 0, len(doc.Topics))
	for i := range doc.Topics {
		p, err := f.NewPipeline(ctx, &doc.Topics[i])
		if err != nil {
			return nil, fmt.Errorf("topic %s: %w", doc.Topics[i].Name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *Factory) NewPipeline(ctx context.Context, topic *config.TopicConfig) (*digest.Pipeline, error) {
	sink, err := f.NewSink(topic)
	if err != nil {
		return nil, err
	}
	store, err := f.NewStore(ctx, topic)
	if err != nil {
		return nil, err
	}
	var quiet func(time.Time) bool
	if topic.QuietHours != nil {
		loc, err := topic.QuietHours.Location()
		if err != nil {
			return nil, &core.ConfigurationError{Field: "quiet_hours.timezone", Reason: err.Error()}
		}
		quiet = digest.QuietHoursAfter(topic.QuietHours.CutoffHour, loc)
	}
	order, _ := digest.ParseOrder(topic.Order)

	return digest.New(digest.Config{
		Topic:            topic.Name,
		Sources:          topic.Sources(),
		Keywords:         topic.Keywords,
		Sink:             sink,
		Store:            store,
		Fetcher:          f.Fetcher,
		MaxPostsPerRun:   topic.EffectiveMaxPosts(),
		QuietHours:       quiet,
		PerSourceItemCap: topic.EffectivePerSourceCap(),
		RecencyWindow:    topic.RecencyWindow.Std(),
		FetchTimeout:     f.Env.Fetch.Timeout,
		FetchConcurrency: f.Env.Fetch.Concurrency,
		BlockedKeywords:  topic.BlockedKeywords,
		Tickers:          topic.Tickers,
		ExcludeRule:      topic.ExcludeRule,
		Captions:         topic.Captions,
		Order:            order,
		Clock:            f.Clock,
		Rand:             f.Rand,
		Logger:           f.logger(),
	})
}

// NewSink never fails for a missing destination; that surfaces from the
// pipeline as a ConfigurationError once quiet hours have been checked.
func (f *Factory) NewSink(topic *config.TopicConfig) (core.Sink, error) {
	switch {
	case topic.Sink.DryRun:
		return logsink.New(f.logger().With("topic", topic.Name)), nil
	case topic.Sink.Discord != nil:
		opts := []discord.Option{}
		if topic.Sink.Discord.Username != "" {
			opts = append(opts, discord.WithUsername(topic.Sink.Discord.Username))
		}
		if f.HTTPClient != nil {
			opts = append(opts, discord.WithHTTPClient(f.HTTPClient))
		}
		return discord.New(topic.Sink.Discord.ResolveWebhookURL(), opts...), nil
	case topic.Sink.Email != nil:
		sender := f.EmailSender
		if sender == nil {
			s, err := smtp.NewSender(smtp.Config{
				Host:               f.Env.SMTP.Host,
				Port:               f.Env.SMTP.Port,
				Username:           f.Env.SMTP.User,
				Password:           f.Env.SMTP.Password,
				TLSMode:            f.Env.SMTP.TLSMode,
				InsecureSkipVerify: f.Env.SMTP.InsecureSkipVerify,
			})
			if err != nil {
				f.logger().Warn("smtp sender unavailable", "topic", topic.Name, "error", err)
			} else {
				sender = s
			}
		}
		return email.NewSink(email.SinkConfig{
			To:            topic.Sink.Email.To,
			From:          topic.Sink.Email.From,
			SubjectPrefix: topic.Sink.Email.SubjectPrefix,
		}, sender), nil
	default:
		return nil, &core.ConfigurationError{Field: "sink", Reason: "no sink configured"}
	}
}

func (f *Factory) NewStore(ctx context.Context, topic *config.TopicConfig) (core.Store, error) {
	sc := topic.Store
	switch sc.Type {
	case "", config.StoreFile:
		path := strings.TrimSpace(sc.Path)
		if path == "" {
			path = fmt.Sprintf(".digest_cache_%s.json", topic.Name)
		}
		return dedupe.NewFileStore(path)
	case config.StoreSQLite:
		dsn := strings.TrimSpace(sc.DSN)
		if dsn == "" {
			dsn = "file:" + strings.TrimSpace(sc.Path)
		}
		store, err := dedupe.NewSQLiteStore(dsn, sc.Table, sc.TTL.Std())
		if err != nil {
			return nil, err
		}
		f.closers = append(f.closers, store)
		return store, nil
	case config.StoreBadger:
		store, err := dedupe.NewBadgerStore(sc.Path, sc.TTL.Std())
		if err != nil {
			return nil, err
		}
		f.closers = append(f.closers, store)
		return store, nil
	case config.StoreRedis:
		key := strings.TrimSpace(sc.Key)
		if key == "" {
			key = "digestbot:seen:" + topic.Name
		}
		return dedupe.NewRedisStore(f.redisClient(), key, sc.TTL.Std())
	case config.StoreS3:
		client, err := f.s3Client(ctx)
		if err != nil {
			return nil, err
		}
		key := strings.TrimSpace(sc.ObjectKey)
		if key == "" {
			key = "digestbot/" + topic.Name + ".json"
		}
		return dedupe.NewS3Store(client, sc.Bucket, key)
	default:
		return nil, &core.ConfigurationError{Field: "store.type", Reason: fmt.Sprintf("unknown store type %q", sc.Type)}
	}
}

func (f *Factory) redisClient() redis.UniversalClient {
	if f.RedisClient == nil {
		client := dedupe.NewRedisClient(dedupe.RedisConfig{
			Addr:     f.Env.Redis.Addr,
			Password: f.Env.Redis.Password,
			DB:       f.Env.Redis.DB,
		})
		f.RedisClient = client
		f.closers = append(f.closers, client)
	}
	return f.RedisClient
}

func (f *Factory) s3Client(ctx context.Context) (dedupe.S3API, error) {
	if f.S3Client == nil {
		client, err := dedupe.NewS3Client(ctx, dedupe.S3Config{
			Region:       f.Env.S3.Region,
			Endpoint:     f.Env.S3.Endpoint,
			UsePathStyle: f.Env.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		f.S3Client = client
	}
	return f.S3Client, nil
}

// NewTriggers returns a cron trigger for every scheduled topic.
func (f *Factory) NewTriggers(doc *config.Document) []*trigger.Cron {
	var out []*trigger.Cron
	for _, t := range doc.Topics {
		if t.Schedule == nil {
			continue
		}
		out = append(out, trigger.NewCron(t.Name, t.Schedule.Cron, t.Schedule.Timezone))
	}
	return out
}

func (f *Factory) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

// Close releases store connections opened by the factory.
func (f *Factory) Close() error {
	var errs []error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.closers = nil
	return errors.Join(errs...)
}
