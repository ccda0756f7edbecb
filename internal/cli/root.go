// Package cli provides the command-line interface for cimatrix.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snowman2/cimatrix/internal/app"
)

// Command group IDs.
const (
	groupBuild   = "build"
	groupHistory = "history"
	groupSetup   = "setup"
)

// ExitError reports a command outcome that maps to a process exit code.
// Message is printed by main when set.
type ExitError struct {
	Message string
	Code    int
}

func (e *ExitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewRootCommand creates the root command for cimatrix.
// It receives the container for dependency injection and version for display.
func NewRootCommand(c *app.Container, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "cimatrix",
		Short: "Run Travis CI build matrices locally",
		Long: `cimatrix runs the build matrix of a .travis.yml on your machine.

Every (os x env) combination becomes a job. Jobs run in parallel, each in
a shell session of the selected runtime (virtual, native or container),
with Travis phase semantics: setup failures error a job, script failures
fail it, and after_* phases never change the outcome.`,
		Version: version,
		// SilenceUsage prevents usage from being printed on errors
		SilenceUsage: true,
		// SilenceErrors prevents Cobra from printing errors (we handle it in main)
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip if container is nil (e.g. in tests)
			if c == nil {
				return nil
			}

			cfg, err := c.ConfigLoader.Load()
			if err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v (using defaults)\n", err)
				return nil
			}

			for _, w := range cfg.Warnings {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
			}
			return nil
		},
	}

	// Define command groups
	root.AddGroup(
		&cobra.Group{ID: groupBuild, Title: "Build Commands:"},
		&cobra.Group{ID: groupHistory, Title: "History Commands:"},
		&cobra.Group{ID: groupSetup, Title: "Setup Commands:"},
	)

	// Build commands
	runCmd := newRunCommand(c)
	runCmd.GroupID = groupBuild

	matrixCmd := newMatrixCommand(c)
	matrixCmd.GroupID = groupBuild

	validateCmd := newValidateCommand(c)
	validateCmd.GroupID = groupBuild

	compileCmd := newCompileCommand(c)
	compileCmd.GroupID = groupBuild

	// History commands
	historyCmd := newHistoryCommand(c)
	historyCmd.GroupID = groupHistory

	showCmd := newShowCommand(c)
	showCmd.GroupID = groupHistory

	logsCmd := newLogsCommand(c)
	logsCmd.GroupID = groupHistory

	// Setup commands
	configCmd := newConfigCommand(c)
	configCmd.GroupID = groupSetup

	root.AddCommand(
		runCmd,
		matrixCmd,
		validateCmd,
		compileCmd,
		historyCmd,
		showCmd,
		logsCmd,
		configCmd,
	)

	return root
}
