package jsonstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowman2/cimatrix/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "builds.json"))
}

func finishedBuild(number int, state domain.BuildState) *domain.Build {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &domain.Build{
		Number:     number,
		State:      state,
		Branch:     "master",
		Commit:     "abc123",
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Jobs: []domain.JobResult{
			{
				Job:   domain.Job{Number: domain.JobName(number, 1), OS: domain.OSLinux, BuildNumber: number, Index: 1},
				State: domain.JobState(state),
			},
		},
	}
}

func TestStore_NextNumber(t *testing.T) {
	store := newTestStore(t)

	n1, err := store.NextNumber()
	require.NoError(t, err)
	n2, err := store.NextNumber()
	require.NoError(t, err)

	assert.Equal(t, 1, n1)
	assert.Equal(t, 2, n2)
}

func TestStore_NextNumber_Persists(t *testing.T) {
	// Setup
	path := filepath.Join(t.TempDir(), "builds.json")
	_, err := New(path).NextNumber()
	require.NoError(t, err)

	// Execute
	n, err := New(path).NextNumber()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_SaveAndGet(t *testing.T) {
	// Setup
	store := newTestStore(t)
	build := finishedBuild(1, domain.BuildPassed)

	// Execute
	require.NoError(t, store.Save(build))
	got, err := store.Get(1)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, build.Number, got.Number)
	assert.Equal(t, build.State, got.State)
	assert.Equal(t, build.Branch, got.Branch)
	assert.True(t, build.StartedAt.Equal(got.StartedAt))
	require.Len(t, got.Jobs, 1)
	assert.Equal(t, "1.1", got.Jobs[0].Job.Number)
}

func TestStore_Save_AdvancesNextNumber(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(finishedBuild(5, domain.BuildPassed)))

	n, err := store.NextNumber()

	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestStore_Get_NotFound(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get(42)

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_List(t *testing.T) {
	// Setup
	store := newTestStore(t)
	for _, n := range []int{3, 1, 2} {
		require.NoError(t, store.Save(finishedBuild(n, domain.BuildPassed)))
	}

	// Execute
	all, err := store.List(0)
	require.NoError(t, err)
	limited, err := store.List(2)
	require.NoError(t, err)

	// Assert
	numbers := func(builds []*domain.Build) []int {
		var out []int
		for _, b := range builds {
			out = append(out, b.Number)
		}
		return out
	}
	assert.Equal(t, []int{1, 2, 3}, numbers(all))
	assert.Equal(t, []int{2, 3}, numbers(limited))
}

func TestStore_Last(t *testing.T) {
	// Setup
	store := newTestStore(t)
	require.NoError(t, store.Save(finishedBuild(1, domain.BuildFailed)))
	running := finishedBuild(2, domain.BuildStarted)
	require.NoError(t, store.Save(running))

	// Execute
	last, err := store.Last()

	// Assert
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 1, last.Number)
	assert.Equal(t, domain.BuildFailed, last.State)
}

func TestStore_Last_SkipsCanceled(t *testing.T) {
	// Setup
	store := newTestStore(t)
	require.NoError(t, store.Save(finishedBuild(1, domain.BuildPassed)))
	require.NoError(t, store.Save(finishedBuild(2, domain.BuildCanceled)))

	// Execute
	last, err := store.Last()

	// Assert
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 1, last.Number)
}

func TestStore_Last_Empty(t *testing.T) {
	last, err := newTestStore(t).Last()

	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "builds.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := New(path).List(0)

	assert.ErrorContains(t, err, "parse store file")
}
