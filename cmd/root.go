// Package cmd holds the blogpub command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"auto_blog_publisher/pipeline"
)

// errRunFailed marks a pipeline run that ended Failed; its summary has
// already been printed.
var errRunFailed = errors.New("run failed")

type rootOptions struct {
	configPath string
	dryRun     bool
	force      bool
	topic      string
	labels     []string
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "blogpub",
		Short: "Generate and publish today's blog post",
		Long: "Generates one post with the configured language model, adds a cover image, " +
			"publishes it to Blogger and records it in the post history.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableNoDescFlag:   true,
			DisableDescriptions: true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runPipeline(ctx, cmd, opts)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (default ./config.yaml when present)")
	rootCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "generate and render without publishing or recording")
	rootCmd.Flags().BoolVar(&opts.force, "force", false, "publish even if today's post already exists")
	rootCmd.Flags().StringVar(&opts.topic, "topic", "", "write about this topic instead of letting the model choose")
	rootCmd.Flags().StringSliceVar(&opts.labels, "labels", nil, "comma separated labels replacing the generated tags")

	rootCmd.AddCommand(NewServeCommand(opts))
	rootCmd.AddCommand(NewHistoryCommand(opts))
	return rootCmd
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}
	return 0
}

func runPipeline(ctx context.Context, cmd *cobra.Command, opts *rootOptions) error {
	a, err := newApp(opts.configPath, opts.dryRun)
	if err != nil {
		return err
	}
	defer a.close()

	if opts.force {
		a.cfg.Pipeline.MaxPostsPerDay = 0
	}
	a.topic = strings.Join(strings.Fields(opts.topic), " ")
	a.labels = cleanLabels(opts.labels)
	orch, _, err := a.orchestrator(ctx, !opts.dryRun)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.dryRun {
		p, err := orch.Preview(ctx)
		if err != nil {
			fmt.Fprintln(out, previewFailure(err))
			return errRunFailed
		}
		fmt.Fprintf(out, "Preview: %q topic=%q duplicate=%t image=%t\n", p.Post.Title, p.Draft.Topic, p.Duplicate, p.Image != nil)
		fmt.Fprintln(out, p.Post.HTML)
		return nil
	}

	res := orch.Run(ctx)
	fmt.Fprintln(out, res.Summary())
	if res.ExitCode() != 0 {
		return errRunFailed
	}
	return nil
}

// previewFailure formats a dry-run error like Result.Summary does.
func previewFailure(err error) string {
	reason, cause := pipeline.ReasonGeneration, err
	var step *pipeline.StepError
	if errors.As(err, &step) {
		reason, cause = step.Reason, step.Err
	}
	return fmt.Sprintf("Failed(%s): %v", reason, cause)
}

func cleanLabels(raw []string) []string {
	var out []string
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
