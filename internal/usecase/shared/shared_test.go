package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowman2/cimatrix/internal/domain"
	"github.com/snowman2/cimatrix/internal/testutil"
)

func TestGetBuild_Success(t *testing.T) {
	repo := testutil.NewMockBuildRepository()
	repo.Builds[2] = &domain.Build{Number: 2, State: domain.BuildPassed}

	build, err := GetBuild(repo, 2)

	require.NoError(t, err)
	assert.Equal(t, 2, build.Number)
}

func TestGetBuild_NotFound(t *testing.T) {
	build, err := GetBuild(testutil.NewMockBuildRepository(), 9)

	assert.ErrorIs(t, err, domain.ErrBuildNotFound)
	assert.EqualError(t, err, "build not found: #9")
	assert.Nil(t, build)
}

func TestGetBuild_RepositoryError(t *testing.T) {
	repo := testutil.NewMockBuildRepository()
	repo.GetErr = errors.New("disk full")

	_, err := GetBuild(repo, 1)

	assert.EqualError(t, err, "get build: disk full")
}

func TestBuildFilePath(t *testing.T) {
	cfg := domain.NewDefaultConfig()
	cfg.Runner.File = "ci/travis.yml"

	tests := []struct {
		cfg  *domain.Config
		name string
		file string
		want string
	}{
		{name: "configured", cfg: cfg, want: "/src/p/ci/travis.yml"},
		{name: "flag wins", cfg: cfg, file: "other.yml", want: "/src/p/other.yml"},
		{name: "absolute", cfg: cfg, file: "/tmp/x.yml", want: "/tmp/x.yml"},
		{name: "default", cfg: nil, want: "/src/p/.travis.yml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildFilePath(tt.cfg, "/src/p", tt.file))
		})
	}
}

func TestLoadBuildFile_Invalid(t *testing.T) {
	loader := &testutil.MockBuildFileLoader{BuildFile: &domain.BuildFile{OS: []string{"linux"}}}

	_, err := LoadBuildFile(loader, nil, "/src/p", "")

	assert.ErrorIs(t, err, domain.ErrNoScript)
	assert.Equal(t, []string{"/src/p/.travis.yml"}, loader.Paths)
}

func TestNewJobContext(t *testing.T) {
	bf := &domain.BuildFile{Language: "c"}
	repo := &domain.RepoInfo{Branch: "master", Commit: "abc123", Message: "Fix tests"}

	jc := NewJobContext(bf, repo, "/work/job-1.1")

	assert.Equal(t, "/work/job-1.1", jc.BuildDir)
	assert.Equal(t, "c", jc.Language)
	assert.Equal(t, "master", jc.Branch)
	assert.Equal(t, "abc123", jc.Commit)
	assert.Equal(t, "Fix tests", jc.CommitMessage)
	assert.Len(t, jc.JobID, 36)

	bare := NewJobContext(bf, nil, "/src/p")
	assert.Empty(t, bare.Commit)
}
