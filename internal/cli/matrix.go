package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snowman2/cimatrix/internal/app"
	"github.com/snowman2/cimatrix/internal/domain"
	"github.com/snowman2/cimatrix/internal/usecase"
)

// newMatrixCommand creates the matrix command.
func newMatrixCommand(c *app.Container) *cobra.Command {
	var opts struct {
		File string
		OS   string
		Jobs []string
	}

	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Show the expanded build matrix",
		Long: `Show the jobs the next build would run.

Jobs are ordered OS first, then env entry, after exclusions and with
include entries appended. Job numbers use the number the next build will
get; nothing is reserved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uc := c.ShowMatrixUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ShowMatrixInput{
				File:   opts.File,
				Filter: domain.JobFilter{OS: opts.OS, Numbers: opts.Jobs},
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printWarnings(cmd.ErrOrStderr(), out.BuildFile.Warnings)
			_, _ = fmt.Fprintf(w, "Build #%d: %d job(s)", out.BuildNumber, len(out.Jobs))
			if out.FastFinish {
				_, _ = fmt.Fprint(w, ", fast_finish")
			}
			_, _ = fmt.Fprintln(w)
			_, _ = fmt.Fprintln(w)
			printJobTable(w, out.Jobs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Build file (default .travis.yml)")
	cmd.Flags().StringVar(&opts.OS, "os", "", "Only show jobs on this OS")
	cmd.Flags().StringArrayVar(&opts.Jobs, "job", nil, "Only show this job, by number or index; repeatable")

	return cmd
}

// newValidateCommand creates the validate command.
func newValidateCommand(c *app.Container) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a build file",
		Long: `Parse and validate a build file.

Unknown keys and ignored settings are reported as warnings. Problems such
as a missing script, unsupported OS or malformed env entry make the command
exit with status 1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uc := c.ValidateBuildFileUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ValidateBuildFileInput{File: file})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printWarnings(w, out.Warnings)
			if out.Valid() {
				_, _ = fmt.Fprintf(w, "%s: %s (%d job(s))\n", out.Path, styles.StatePassed.UnsetWidth().Render("valid"), out.Jobs)
				return nil
			}

			_, _ = fmt.Fprintf(w, "%s: %s\n", out.Path, styles.StateFailed.UnsetWidth().Render("invalid"))
			for _, p := range out.Problems {
				_, _ = fmt.Fprintf(w, "  - %v\n", p)
			}
			return &ExitError{Code: 1}
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Build file (default .travis.yml)")

	return cmd
}

// newCompileCommand creates the compile command.
func newCompileCommand(c *app.Container) *cobra.Command {
	var opts struct {
		File string
		Job  string
	}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Print a job as a standalone bash script",
		Long: `Print a bash script that runs one job the way cimatrix would.

The script exports the job environment and runs every phase with the same
rules: it exits 0 when the job passed, 1 when it failed and 2 when it
errored.

Examples:
  cimatrix compile --job 2 > job.sh
  bash job.sh`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uc := c.CompileJobUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.CompileJobInput{
				File: opts.File,
				Job:  opts.Job,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), out.Script)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Build file (default .travis.yml)")
	cmd.Flags().StringVar(&opts.Job, "job", "", "Job number (1.2) or index (2)")
	_ = cmd.MarkFlagRequired("job")

	return cmd
}
