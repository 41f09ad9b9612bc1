package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bakkerme/digestbot/internal/core"
	"github.com/bakkerme/digestbot/internal/runner"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var historyDir string
	cmd := &cobra.Command{
		Use:   "run [topic...]",
		Short: "Run every topic (or the named ones) once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			r, err := a.newRunner(cmd, historyDir)
			if err != nil {
				return err
			}
			results, runErr := r.RunOnce(cmd.Context(), args...)
			for _, res := range results {
				printResult(cmd, res)
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&historyDir, "history-dir", "", "write a JSON snapshot of each run into this directory (default $DIGEST_HISTORY_DIR)")
	return cmd
}

func (a *app) newRunner(cmd *cobra.Command, historyDir string) (*runner.Runner, error) {
	pipelines, err := a.factory.NewPipelines(cmd.Context(), a.doc)
	if err != nil {
		return nil, err
	}
	ps := make([]runner.Pipeline, 0, len(pipelines))
	for _, p := range pipelines {
		ps = append(ps, p)
	}
	if historyDir == "" {
		historyDir = a.env.HistoryDir
	}
	var ropts []runner.Option
	if historyDir != "" {
		ropts = append(ropts, runner.WithHistoryDir(historyDir))
	}
	return runner.New(a.logger, ps, ropts...)
}

func printResult(cmd *cobra.Command, res *core.RunResult) {
	out := cmd.OutOrStdout()
	if res.Skipped {
		fmt.Fprintf(out, "%s: skipped (quiet hours)\n", res.Topic)
		return
	}
	fmt.Fprintf(out, "%s: fetched=%d matched=%d published=%d publish_failures=%d source_failures=%d\n",
		res.Topic, res.Fetched, res.Matched, res.Published, res.PublishFailures, len(res.SourceFailures))
	for _, link := range res.PublishedLinks {
		fmt.Fprintf(out, "  + %s\n", link)
	}
	for _, f := range res.SourceFailures {
		fmt.Fprintf(out, "  ! %s: %v\n", f.Source, f.Err)
	}
}
