package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bakkerme/digestbot/internal/trigger"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and build every topic without fetching",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			pipelines, err := a.factory.NewPipelines(cmd.Context(), a.doc)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var firstErr error
			for i, p := range pipelines {
				t := a.doc.Topics[i]
				status := "ok"
				if err := p.Sink().Validate(); err != nil {
					status = err.Error()
					if firstErr == nil {
						firstErr = err
					}
				}
				schedule := "manual"
				if t.Schedule != nil {
					schedule = t.Schedule.Cron
				}
				fmt.Fprintf(out, "%s: feeds=%d sink=%s schedule=%q status=%s\n", t.Name, len(t.Feeds), p.Sink().Name(), schedule, status)
				if t.Schedule != nil {
					next := trigger.NewCron(t.Name, t.Schedule.Cron, t.Schedule.Timezone).Next(time.Now())
					fmt.Fprintf(out, "  next run: %s\n", next.Format(time.RFC3339))
				}
			}
			return firstErr
		},
	}
}
