package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/snowman2/cimatrix/internal/app"
	"github.com/snowman2/cimatrix/internal/usecase"
)

// newHistoryCommand creates the history command.
func newHistoryCommand(c *app.Container) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"ls"},
		Short:   "List recorded builds",
		Long: `List recorded builds, oldest first.

Builds are stored in .cimatrix/builds.json, or as git refs under
refs/cimatrix when [store] type = "git".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uc := c.ListBuildsUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ListBuildsInput{Limit: limit})
			if err != nil {
				return err
			}
			if len(out.Builds) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No builds yet.")
				return nil
			}
			printBuildList(cmd.OutOrStdout(), out.Builds)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of most recent builds to list (0 = all)")

	return cmd
}

// newShowCommand creates the show command.
func newShowCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [build]",
		Short: "Show a build and its jobs",
		Long: `Show a recorded build with the state of each job.

Without an argument the most recent build is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var number int
			if len(args) == 1 {
				n, err := parseBuildNumber(args[0])
				if err != nil {
					return fmt.Errorf("invalid build number: %w", err)
				}
				number = n
			}

			uc := c.ShowBuildUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ShowBuildInput{Number: number})
			if err != nil {
				return err
			}

			b := out.Build
			w := cmd.OutOrStdout()
			printBuildHeader(w, b)
			_, _ = fmt.Fprintf(w, "File:    %s\n", b.File)
			if b.Branch != "" || b.Commit != "" {
				_, _ = fmt.Fprintf(w, "Commit:  %s (%s)\n", dash(shortCommit(b.Commit)), dash(b.Branch))
			}
			_, _ = fmt.Fprintf(w, "Started: %s\n", b.StartedAt.Local().Format("2006-01-02 15:04:05"))
			if b.FastFinish {
				_, _ = fmt.Fprintln(w, "Fast finish: yes")
			}
			_, _ = fmt.Fprintln(w)
			printResultTable(w, b.Jobs)
			return nil
		},
	}

	return cmd
}

// newLogsCommand creates the logs command.
func newLogsCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Lines       int
		Diagnostics bool
	}

	cmd := &cobra.Command{
		Use:   "logs <job>",
		Short: "Show the output of a job",
		Long: `Show the captured command output of a job, e.g. cimatrix logs 3.2.

With --diagnostics the runner's own log for the job is shown instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc := c.ShowLogsUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ShowLogsInput{
				Job:         args[0],
				Lines:       opts.Lines,
				Diagnostics: opts.Diagnostics,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), out.Content)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Lines, "lines", "n", 0, "Number of lines to show from the end (0 = all)")
	cmd.Flags().BoolVar(&opts.Diagnostics, "diagnostics", false, "Show the runner log instead of command output")

	return cmd
}

// parseBuildNumber parses a build number, with or without a leading #.
func parseBuildNumber(s string) (int, error) {
	s = strings.TrimPrefix(s, "#")
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("build number must be positive")
	}
	return n, nil
}
