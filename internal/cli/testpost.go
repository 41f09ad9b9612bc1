package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bakkerme/digestbot/internal/core"
)

func newTestPostCmd(opts *rootOptions) *cobra.Command {
	var (
		title string
		link  string
	)
	cmd := &cobra.Command{
		Use:   "test-post [topic]",
		Short: "Send a sample article through a topic's sink without touching the seen set",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			topic := &a.doc.Topics[0]
			if len(args) == 1 {
				t, ok := a.doc.Topic(args[0])
				if !ok {
					return &core.ConfigurationError{Field: "topic", Reason: fmt.Sprintf("unknown topic %q", args[0])}
				}
				topic = t
			}

			pipeline, err := a.factory.NewPipeline(cmd.Context(), topic)
			if err != nil {
				return err
			}
			sink := pipeline.Sink()
			if err := sink.Validate(); err != nil {
				return err
			}
			article := core.Article{
				Title:       title,
				Link:        link,
				Source:      "test-post",
				PublishedAt: time.Now().UTC(),
			}
			req := core.PublishRequest{Content: pipeline.Renderer().Render(article), Article: article}
			if err := sink.Publish(core.WithLogger(cmd.Context(), a.logger), req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: test post sent via %s\n", topic.Name, sink.Name())
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "digestbot test post", "title of the sample article")
	cmd.Flags().StringVar(&link, "link", "https://example.com/digestbot-test", "link of the sample article")
	return cmd
}
