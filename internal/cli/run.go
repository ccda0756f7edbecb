package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/snowman2/cimatrix/internal/app"
	"github.com/snowman2/cimatrix/internal/domain"
	"github.com/snowman2/cimatrix/internal/tui"
	"github.com/snowman2/cimatrix/internal/usecase"
)

// runTUIFunc runs a build behind the live view, allowing it to be mocked in tests.
var runTUIFunc = runWithTUI

// newRunCommand creates the run command.
func newRunCommand(c *app.Container) *cobra.Command {
	var opts struct {
		File         string
		Runtime      string
		OS           string
		Jobs         []string
		Parallel     int
		NoFastFinish bool
		TUI          bool
	}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the build matrix",
		Long: `Expand the build matrix and run its jobs.

Jobs run in parallel up to --jobs. With several parallel jobs inside a git
repository, each job gets its own worktree of HEAD (see [runner] isolate).
Command output is streamed with a [job] prefix and saved under
.cimatrix/logs.

Exit status is 0 when the build passed and 1 otherwise.

Examples:
  # Run every job
  cimatrix run

  # Run the second job of the matrix in a container
  cimatrix run --job 2 --runtime container

  # Run only the linux jobs, four at a time, with a live view
  cimatrix run --os linux --jobs 4 --tui`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			in := usecase.RunBuildInput{
				File:         opts.File,
				Runtime:      opts.Runtime,
				Filter:       domain.JobFilter{OS: opts.OS, Numbers: opts.Jobs},
				Jobs:         opts.Parallel,
				NoFastFinish: opts.NoFastFinish,
			}
			uc := c.RunBuildUseCase()

			var (
				out *usecase.RunBuildOutput
				err error
			)
			if opts.TUI {
				out, err = runTUIFunc(ctx, c, uc, in, cmd.OutOrStdout())
			} else {
				in.Output = cmd.OutOrStdout()
				in.OnEvent = newConsoleReporter(cmd.ErrOrStderr())
				out, err = uc.Execute(ctx, in)
			}
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printWarnings(cmd.ErrOrStderr(), out.Warnings)
			if out.Notify != nil {
				for _, nerr := range out.Notify.Errors {
					printWarnings(cmd.ErrOrStderr(), []string{"notification: " + nerr.Error()})
				}
			}
			_, _ = fmt.Fprintln(w)
			printResultTable(w, out.Build.Jobs)
			_, _ = fmt.Fprintln(w)
			printBuildHeader(w, out.Build)

			if out.Build.State != domain.BuildPassed {
				return &ExitError{Code: 1}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Build file (default .travis.yml)")
	cmd.Flags().StringVarP(&opts.Runtime, "runtime", "r", "", "Runtime: virtual, native or container")
	cmd.Flags().StringVar(&opts.OS, "os", "", "Only run jobs on this OS")
	cmd.Flags().StringArrayVar(&opts.Jobs, "job", nil, "Only run this job, by number (1.2) or index (2); repeatable")
	cmd.Flags().IntVarP(&opts.Parallel, "jobs", "j", 0, "Maximum parallel jobs (default from config)")
	cmd.Flags().BoolVar(&opts.NoFastFinish, "no-fast-finish", false, "Run every job even when fast_finish is set")
	cmd.Flags().BoolVar(&opts.TUI, "tui", false, "Show live job states instead of streaming output")

	return cmd
}

// newConsoleReporter prints job and build progress lines to w.
func newConsoleReporter(w io.Writer) domain.EventHandler {
	var mu sync.Mutex
	return func(e domain.Event) {
		var line string
		switch e.Kind {
		case domain.EventBuildStarted:
			line = fmt.Sprintf("==> Build #%d: %d job(s)", e.Build.Number, len(e.Build.Jobs))
		case domain.EventJobStarted:
			line = fmt.Sprintf("==> Job %s started: %s", e.Job.Number, e.Job.Label())
		case domain.EventJobFinished:
			line = fmt.Sprintf("==> Job %s %s", e.Job.Number,
				styles.JobStateStyle(e.Result.State).UnsetWidth().Render(string(e.Result.State)))
			if e.Result.Reason != "" && e.Result.State != domain.JobPassed {
				line += ": " + e.Result.Reason
			}
		default:
			return
		}
		mu.Lock()
		defer mu.Unlock()
		_, _ = fmt.Fprintln(w, line)
	}
}

// runWithTUI runs the build while a bubbletea program shows job states.
// Command output only goes to the job log files.
func runWithTUI(ctx context.Context, c *app.Container, uc *usecase.RunBuild, in usecase.RunBuildInput, w io.Writer) (*usecase.RunBuildOutput, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.New("cimatrix", c.Clock, cancel)
	p := tea.NewProgram(model, tea.WithOutput(w))

	in.OnEvent = func(e domain.Event) {
		p.Send(tui.NewMsgEvent(e))
	}

	var (
		out    *usecase.RunBuildOutput
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		out, runErr = uc.Execute(ctx, in)
		p.Send(tui.MsgBuildDone{Err: runErr})
	}()

	if _, err := p.Run(); err != nil && !model.Done() {
		// The view failed or was killed; stop the build but keep its result
		cancel()
		c.Logger.Debug("tui stopped", "error", err)
	}
	<-done
	return out, runErr
}
