package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bakkerme/digestbot/internal/api"
)

func newDaemonCmd(opts *rootOptions) *cobra.Command {
	var (
		historyDir string
		listenAddr string
		runNow     bool
	)
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run scheduled topics on their cron expressions until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			triggers := a.factory.NewTriggers(a.doc)
			if len(triggers) == 0 {
				return fmt.Errorf("no topic has a schedule; use 'digestbot run' instead")
			}
			r, err := a.newRunner(cmd, historyDir)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if runNow {
				if _, err := r.RunOnce(ctx); err != nil {
					a.logger.Error("initial run failed", "error", err)
				}
			}
			if err := r.Start(ctx, triggers); err != nil {
				return err
			}

			if listenAddr == "" {
				listenAddr = a.env.ListenAddr
			}
			serverErr := make(chan error, 1)
			var srv *api.Server
			if listenAddr != "" {
				srv = api.NewServer(a.logger, r, Version)
				go func() { serverErr <- srv.Start(listenAddr) }()
				a.logger.Info("status api listening", "addr", listenAddr)
			}

			a.logger.Info("daemon started", "scheduled_topics", len(triggers))
			select {
			case <-ctx.Done():
			case err := <-serverErr:
				if err != nil {
					return fmt.Errorf("status api: %w", err)
				}
			}
			a.logger.Info("daemon stopping")
			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.logger.Warn("status api shutdown failed", "error", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&historyDir, "history-dir", "", "write a JSON snapshot of each run into this directory (default $DIGEST_HISTORY_DIR)")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "serve the status API on this address, e.g. :8080 (default $DIGEST_LISTEN_ADDR)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "run every topic once before waiting for the schedule")
	return cmd
}
