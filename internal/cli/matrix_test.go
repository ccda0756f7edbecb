package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowman2/cimatrix/internal/domain"
)

func TestMatrixCommand(t *testing.T) {
	// Setup
	c, _ := newTestContainer(t, `language: python
os:
  - linux
  - osx
env:
  - TRAVIS_PYTHON_VERSION="2.7"
  - TRAVIS_PYTHON_VERSION="3.5"
matrix:
  fast_finish: true
  allow_failures:
    - os: osx
script: nosetests
`)

	// Execute
	stdout, _, err := execute(newMatrixCommand(c))

	// Assert
	require.NoError(t, err)
	assert.Contains(t, stdout, "Build #1: 4 job(s), fast_finish")
	assert.Contains(t, stdout, "JOB")
	assert.Contains(t, stdout, "ALLOW FAILURE")
	assert.Regexp(t, `1\.1\s+linux\s+TRAVIS_PYTHON_VERSION="2\.7"\s+no`, stdout)
	assert.Regexp(t, `1\.4\s+osx\s+TRAVIS_PYTHON_VERSION="3\.5"\s+yes`, stdout)
}

func TestMatrixCommand_Filter(t *testing.T) {
	c, _ := newTestContainer(t, testBuildFile())

	stdout, _, err := execute(newMatrixCommand(c), "--job", "1.2")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Build #1: 1 job(s)")
	assert.Contains(t, stdout, "A=2")
	assert.NotContains(t, stdout, "A=1")
}

func TestValidateCommand_Valid(t *testing.T) {
	c, dir := newTestContainer(t, testBuildFile())

	stdout, _, err := execute(newValidateCommand(c))

	require.NoError(t, err)
	assert.Contains(t, stdout, filepath.Join(dir, domain.DefaultBuildFile)+": valid (2 job(s))")
}

func TestValidateCommand_Invalid(t *testing.T) {
	// Setup
	c, dir := newTestContainer(t, testBuildFile())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte(`os: beos
install: make
`), 0o644))

	// Execute
	stdout, _, err := execute(newValidateCommand(c), "--file", "broken.yml")

	// Assert
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, stdout, "invalid")
	assert.Contains(t, stdout, domain.ErrNoScript.Error())
	assert.Contains(t, stdout, domain.ErrUnsupportedOS.Error())
}

func TestCompileCommand(t *testing.T) {
	// Setup
	c, _ := newTestContainer(t, testBuildFile())

	// Execute
	stdout, _, err := execute(newCompileCommand(c), "--job", "2")

	// Assert
	require.NoError(t, err)
	assert.Contains(t, stdout, "#!/")
	assert.Contains(t, stdout, "export A=2")
	assert.Contains(t, stdout, `echo "value $A"`)
}

func TestCompileCommand_RequiresJob(t *testing.T) {
	c, _ := newTestContainer(t, testBuildFile())

	_, _, err := execute(newCompileCommand(c))

	assert.Error(t, err)
}
