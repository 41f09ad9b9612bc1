// Package cli provides the command-line interface for digestbot.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bakkerme/digestbot/internal/core"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

type rootOptions struct {
	configPath string
	logLevel   string
	dryRun     bool
}

// NewRootCmd builds the command tree. Each call returns independent flag state.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "digestbot",
		Short:         "Post keyword-matched feed articles to chat",
		Long:          "digestbot fetches RSS/Atom feeds, keeps articles whose titles match a topic's keywords, and posts the ones it has not posted before to a Discord webhook or email.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to digestbot.yaml (default $DIGEST_CONFIG or digestbot.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL or info)")
	root.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "log payloads instead of publishing them")

	root.AddCommand(
		newRunCmd(opts),
		newDaemonCmd(opts),
		newTestPostCmd(opts),
		newValidateCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "digestbot %s (%s)\n", Version, Commit)
		},
	}
}

// ExitCode maps an error to a process exit status: 2 for configuration
// problems, 3 when the seen set could not be saved, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cfgErr *core.ConfigurationError
	if errors.As(err, &cfgErr) {
		return 2
	}
	var saveErr *core.StoreSaveError
	if errors.As(err, &saveErr) {
		return 3
	}
	return 1
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
