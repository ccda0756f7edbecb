package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/snowman2/cimatrix/internal/app"
	"github.com/snowman2/cimatrix/internal/domain"
	"github.com/snowman2/cimatrix/internal/infra/shell"
)

const testRepoConfig = `[runner]
runtime = "virtual"
jobs = 1

[cache]
disabled = true
`

// testBuildFile runs one job per env entry on the host OS.
// The job with A=2 fails its script.
func testBuildFile() string {
	return fmt.Sprintf(`language: python
os: %s
env:
  - A=1
  - A=2
script:
  - echo "value $A"
  - test "$A" = 1
`, shell.HostOS())
}

// newTestContainer creates an app.Container for a project directory holding
// the given build file. Global config is isolated from the user's.
func newTestContainer(t *testing.T, buildFile string) (*app.Container, string) {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	if buildFile != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, domain.DefaultBuildFile), []byte(buildFile), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.RepoConfigFileName), []byte(testRepoConfig), 0o644))

	c, err := app.New(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, dir
}

// execute runs cmd with args and returns stdout and stderr.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
