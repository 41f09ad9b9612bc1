package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bakkerme/digestbot/internal/config"
	"github.com/bakkerme/digestbot/internal/observability/otelx"
	"github.com/bakkerme/digestbot/internal/runner/factory"
)

// app bundles what every command needs after startup.
type app struct {
	env      config.EnvConfig
	doc      *config.Document
	logger   *slog.Logger
	factory  *factory.Factory
	shutdown otelx.ShutdownFunc
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	env := config.LoadEnv()
	level := env.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	logger := slog.New(slog.NewTextHandler(cmd.OutOrStdout(), &slog.HandlerOptions{Level: parseLevel(level)}))

	doc, err := loadDocument(logger, env, opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dryRun {
		for i := range doc.Topics {
			doc.Topics[i].Sink.DryRun = true
		}
	}

	shutdown, err := otelx.Init(cmd.Context(), logger, env.OTel)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}

	f := factory.NewFromEnvConfig(logger, env)
	return &app{env: env, doc: doc, logger: logger, factory: f, shutdown: shutdown}, nil
}

// loadDocument reads the YAML document. When no path was given and the default
// file is absent, it falls back to a single topic built from the environment.
func loadDocument(logger *slog.Logger, env config.EnvConfig, flagPath string) (*config.Document, error) {
	path := flagPath
	explicit := path != ""
	if !explicit {
		path = env.ConfigPath
		explicit = os.Getenv("DIGEST_CONFIG") != ""
	}
	doc, err := config.Load(path)
	if err == nil {
		logger.Debug("loaded config document", "path", path, "topics", len(doc.Topics))
		return doc, nil
	}
	if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	logger.Debug("no config document, using environment", "path", path)
	return config.EnvDocument(env.Digest)
}

func (a *app) close(ctx context.Context) {
	if err := a.factory.Close(); err != nil {
		a.logger.Warn("failed to close stores", "error", err)
	}
	if a.shutdown != nil {
		if err := a.shutdown(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("failed to flush traces", "error", err)
		}
	}
}
