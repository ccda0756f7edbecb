package travisfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowman2/cimatrix/internal/domain"
)

const autoRouteYAML = `language: c

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
    - env: TRAVIS_PYTHON_VERSION="3.5"

notifications:
  email: false

before_install:
  - if [[ "$TRAVIS_OS_NAME" == "osx" ]]; then OS_NAME=MacOSX; else OS_NAME=Linux; fi
  - wget "https://repo.continuum.io/miniconda/Miniconda${TRAVIS_PYTHON_VERSION:0:1}-latest-$OS_NAME-x86_64.sh" -O miniconda.sh
  - bash miniconda.sh -b -p $HOME/miniconda
  - export PATH="$HOME/miniconda/bin:$PATH"
  - conda create --yes -n autoroute python=$TRAVIS_PYTHON_VERSION
  - source activate autoroute
  - conda install --yes -c conda-forge nose rapidpy bcrypt pynacl pycrypto

install:
  - cd $TRAVIS_BUILD_DIR
  - python setup.py develop

script:
  - nosetests
`

func TestParseBuildFile_AutoRoute(t *testing.T) {
	// Execute
	bf, err := ParseBuildFile([]byte(autoRouteYAML), ".travis.yml")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "c", bf.Language)
	assert.Equal(t, []string{"linux", "osx"}, bf.OS)
	require.Len(t, bf.Env.Matrix, 2)
	assert.Equal(t, `TRAVIS_PYTHON_VERSION="2.7"`, bf.Env.Matrix[0].Raw)
	v, ok := bf.Env.Matrix[1].Lookup("TRAVIS_PYTHON_VERSION")
	require.True(t, ok)
	assert.Equal(t, "3.5", v)

	assert.True(t, bf.Matrix.FastFinish)
	require.Len(t, bf.Matrix.AllowFailures, 2)
	assert.Equal(t, "osx", bf.Matrix.AllowFailures[0].OS)
	assert.Equal(t, "TRAVIS_PYTHON_VERSION=3.5", bf.Matrix.AllowFailures[1].Env.Key())

	assert.False(t, bf.Notifications.Email.Enabled)
	assert.Len(t, bf.Commands(domain.PhaseBeforeInstall), 7)
	assert.Equal(t, "source activate autoroute", bf.Commands(domain.PhaseBeforeInstall)[5])
	assert.Equal(t, []string{"cd $TRAVIS_BUILD_DIR", "python setup.py develop"}, bf.Commands(domain.PhaseInstall))
	assert.Equal(t, []string{"nosetests"}, bf.Commands(domain.PhaseScript))
	assert.Empty(t, bf.Commands(domain.PhaseAfterSuccess))
	assert.Empty(t, bf.Warnings)
	assert.NoError(t, bf.Validate())

	jobs, err := domain.ExpandMatrix(bf, 1)
	require.NoError(t, err)
	require.Len(t, jobs, 4)
	allowed := 0
	for _, j := range jobs {
		if j.AllowFailure {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed)
	assert.False(t, jobs[0].AllowFailure)
}

func TestParseBuildFile_ScalarCoercion(t *testing.T) {
	src := `
os: osx
env: FOO=bar
script: make test
cache:
  directories: $HOME/.cache/pip
`
	bf, err := ParseBuildFile([]byte(src), "x.yml")

	require.NoError(t, err)
	assert.Equal(t, []string{"osx"}, bf.OS)
	require.Len(t, bf.Env.Matrix, 1)
	assert.Equal(t, "FOO=bar", bf.Env.Matrix[0].Key())
	assert.Equal(t, []string{"make test"}, bf.Commands(domain.PhaseScript))
	assert.Equal(t, []string{"$HOME/.cache/pip"}, bf.Cache.Directories)
}

func TestParseBuildFile_Defaults(t *testing.T) {
	bf, err := ParseBuildFile([]byte("script: true\n"), "x.yml")

	require.NoError(t, err)
	assert.Equal(t, []string{domain.OSLinux}, bf.OS)
	assert.True(t, bf.Notifications.Email.Enabled)
	assert.Equal(t, domain.NotifyChange, bf.Notifications.Email.OnSuccess)
	assert.Equal(t, domain.NotifyAlways, bf.Notifications.Webhooks.OnFailure)
}

func TestParseBuildFile_EnvMapping(t *testing.T) {
	src := `
env:
  global:
    - PROJECT=autoroute
    - secure: "abc"
  jobs:
    - PY=2.7
    - PY=3.5 EXTRA="a b"
script: nosetests
`
	bf, err := ParseBuildFile([]byte(src), "x.yml")

	require.NoError(t, err)
	require.Len(t, bf.Env.Global, 1)
	assert.Equal(t, "PROJECT=autoroute", bf.Env.Global[0].Key())
	require.Len(t, bf.Env.Matrix, 2)
	assert.Equal(t, "PY=3.5 EXTRA=a b", bf.Env.Matrix[1].Key())
	require.Len(t, bf.Warnings, 1)
	assert.Contains(t, bf.Warnings[0], "encrypted")
}

func TestParseBuildFile_JobsAliasAndRules(t *testing.T) {
	src := `
os: [linux, osx]
env: [A=1, A=2]
jobs:
  exclude:
    - os: osx
      env: A=1
  include:
    - os: linux
      env: A=3
      name: extra
script: make
`
	bf, err := ParseBuildFile([]byte(src), "x.yml")
	require.NoError(t, err)

	jobs, err := domain.ExpandMatrix(bf, 1)

	require.NoError(t, err)
	require.Len(t, jobs, 4)
	assert.Equal(t, "extra", jobs[3].Name)
	assert.Equal(t, "A=3", jobs[3].Env.Key())
}

func TestParseBuildFile_Notifications(t *testing.T) {
	src := `
script: make
notifications:
  email:
    recipients: [dev@example.com, ops@example.com]
    on_success: never
    on_failure: change
  webhooks:
    urls: https://hooks.example.com/ci
    on_success: change
`
	bf, err := ParseBuildFile([]byte(src), "x.yml")

	require.NoError(t, err)
	email := bf.Notifications.Email
	assert.True(t, email.Enabled)
	assert.Equal(t, []string{"dev@example.com", "ops@example.com"}, email.Recipients)
	assert.Equal(t, domain.NotifyNever, email.OnSuccess)
	assert.Equal(t, domain.NotifyChange, email.OnFailure)
	hooks := bf.Notifications.Webhooks
	assert.Equal(t, []string{"https://hooks.example.com/ci"}, hooks.URLs)
	assert.Equal(t, domain.NotifyChange, hooks.OnSuccess)
	assert.Equal(t, domain.NotifyAlways, hooks.OnFailure)
}

func TestParseBuildFile_Warnings(t *testing.T) {
	src := `
script: make
deploy:
  provider: pages
cache: pip
`
	bf, err := ParseBuildFile([]byte(src), "x.yml")

	require.NoError(t, err)
	require.Len(t, bf.Warnings, 2)
	assert.Contains(t, bf.Warnings[0], `"deploy"`)
	assert.Contains(t, bf.Warnings[1], "pip")
}

func TestParseBuildFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"not yaml", "script: [unclosed"},
		{"empty", ""},
		{"top level list", "- a\n- b\n"},
		{"bad env entry", "env: [echo hi]\nscript: make\n"},
		{"mapping command", "script:\n  - echo: hi\n"},
		{"bad rule env", "matrix:\n  allow_failures:\n    - env: 'not an assignment'\nscript: make\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBuildFile([]byte(tt.src), "x.yml")
			assert.ErrorIs(t, err, domain.ErrInvalidBuildFile)
		})
	}
}

func TestLoader_Load(t *testing.T) {
	// Setup
	dir := t.TempDir()
	path := filepath.Join(dir, ".travis.yml")
	require.NoError(t, os.WriteFile(path, []byte(autoRouteYAML), 0o600))
	loader := NewLoader()

	// Execute
	bf, err := loader.Load(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, path, bf.Path)

	_, err = loader.Load(filepath.Join(dir, "missing.yml"))
	assert.ErrorIs(t, err, domain.ErrBuildFileNotFound)
}
