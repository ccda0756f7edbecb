package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envEntry(raw string, vars ...EnvVar) EnvEntry {
	return EnvEntry{Raw: raw, Vars: vars}
}

func pythonEnv(version string) EnvEntry {
	return envEntry(`TRAVIS_PYTHON_VERSION="`+version+`"`, EnvVar{Name: "TRAVIS_PYTHON_VERSION", Value: version, Expr: `"` + version + `"`})
}

// autoRouteBuildFile mirrors the AutoRoutePy .travis.yml.
func autoRouteBuildFile() *BuildFile {
	bf := &BuildFile{
		Language: "c",
		OS:       []string{OSLinux, OSMacOS},
		Env: EnvSpec{
			Matrix: []EnvEntry{pythonEnv("2.7"), pythonEnv("3.5")},
		},
		Matrix: MatrixSpec{
			FastFinish: true,
			AllowFailures: []MatrixRule{
				{OS: OSMacOS},
				{Env: envEntry("TRAVIS_PYTHON_VERSION=3.5", EnvVar{Name: "TRAVIS_PYTHON_VERSION", Value: "3.5", Expr: "3.5"})},
			},
		},
		Phases: map[Phase][]string{
			PhaseBeforeInstall: {"bash miniconda.sh -b -p $HOME/miniconda"},
			PhaseInstall:       {"python setup.py develop"},
			PhaseScript:        {"nosetests"},
		},
	}
	bf.ApplyDefaults()
	return bf
}

func TestExpandMatrix_AutoRoute(t *testing.T) {
	// Setup
	bf := autoRouteBuildFile()

	// Execute
	jobs, err := ExpandMatrix(bf, 7)

	// Assert
	require.NoError(t, err)
	require.Len(t, jobs, 4)

	want := []struct {
		number       string
		os           string
		python       string
		allowFailure bool
	}{
		{"7.1", OSLinux, "2.7", false},
		{"7.2", OSLinux, "3.5", true},
		{"7.3", OSMacOS, "2.7", true},
		{"7.4", OSMacOS, "3.5", true},
	}
	for i, w := range want {
		job := jobs[i]
		assert.Equal(t, w.number, job.Number)
		assert.Equal(t, i+1, job.Index)
		assert.Equal(t, 7, job.BuildNumber)
		assert.Equal(t, w.os, job.OS)
		v, ok := job.Env.Lookup("TRAVIS_PYTHON_VERSION")
		require.True(t, ok)
		assert.Equal(t, w.python, v)
		assert.Equal(t, w.allowFailure, job.AllowFailure, "job %s", job.Number)
	}
}

func TestExpandMatrix_EachAllowFailureRuleMatchesTwoJobs(t *testing.T) {
	bf := autoRouteBuildFile()
	jobs, err := ExpandMatrix(bf, 1)
	require.NoError(t, err)

	for _, rule := range bf.Matrix.AllowFailures {
		count := 0
		for _, j := range jobs {
			if rule.Matches(j) {
				count++
			}
		}
		assert.Equal(t, 2, count, "rule %s", rule)
	}
}

func TestExpandMatrix_NoEnv(t *testing.T) {
	bf := &BuildFile{OS: []string{OSLinux, OSMacOS}}

	jobs, err := ExpandMatrix(bf, 1)

	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.True(t, jobs[0].Env.IsEmpty())
	assert.Equal(t, OSMacOS, jobs[1].OS)
}

func TestExpandMatrix_DefaultOS(t *testing.T) {
	bf := &BuildFile{Env: EnvSpec{Matrix: []EnvEntry{pythonEnv("2.7")}}}

	jobs, err := ExpandMatrix(bf, 1)

	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, OSLinux, jobs[0].OS)
}

func TestExpandMatrix_ExcludeAndInclude(t *testing.T) {
	// Setup
	bf := autoRouteBuildFile()
	bf.Matrix.Exclude = []MatrixRule{{OS: OSMacOS, Env: pythonEnv("2.7")}}
	bf.Matrix.Include = []MatrixRule{{Env: pythonEnv("3.6"), Name: "latest"}}

	// Execute
	jobs, err := ExpandMatrix(bf, 2)

	// Assert
	require.NoError(t, err)
	require.Len(t, jobs, 4)
	assert.Equal(t, "2.3", jobs[2].Number)
	assert.Equal(t, OSMacOS, jobs[2].OS)
	assert.Equal(t, "2.4", jobs[3].Number)
	assert.Equal(t, OSLinux, jobs[3].OS, "include defaults to the first os")
	assert.Equal(t, "latest", jobs[3].Name)
	assert.False(t, jobs[3].AllowFailure)
}

func TestExpandMatrix_EverythingExcluded(t *testing.T) {
	bf := &BuildFile{
		OS:     []string{OSLinux},
		Matrix: MatrixSpec{Exclude: []MatrixRule{{OS: OSLinux}}},
	}

	_, err := ExpandMatrix(bf, 1)

	assert.ErrorIs(t, err, ErrEmptyMatrix)
}

func TestExpandMatrix_GlobalEnv(t *testing.T) {
	global := envEntry("A=1 B=2", EnvVar{Name: "A", Value: "1"}, EnvVar{Name: "B", Value: "2"})
	bf := &BuildFile{
		Env: EnvSpec{
			Global: []EnvEntry{global},
			Matrix: []EnvEntry{pythonEnv("2.7")},
		},
	}

	jobs, err := ExpandMatrix(bf, 1)
	require.NoError(t, err)

	names := make([]string, 0)
	for _, v := range jobs[0].DeclaredEnv() {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"A", "B", "TRAVIS_PYTHON_VERSION"}, names)
}

func TestMatrixRule_Matches(t *testing.T) {
	job := Job{OS: OSLinux, Env: pythonEnv("3.5"), Name: "py"}

	tests := []struct {
		name string
		rule MatrixRule
		want bool
	}{
		{"empty rule", MatrixRule{}, false},
		{"os match", MatrixRule{OS: OSLinux}, true},
		{"os mismatch", MatrixRule{OS: OSMacOS}, false},
		{"quoted env equals bare env", MatrixRule{Env: envEntry("TRAVIS_PYTHON_VERSION=3.5", EnvVar{Name: "TRAVIS_PYTHON_VERSION", Value: "3.5"})}, true},
		{"env mismatch", MatrixRule{Env: pythonEnv("2.7")}, false},
		{"all keys match", MatrixRule{OS: OSLinux, Env: pythonEnv("3.5"), Name: "py"}, true},
		{"one key mismatches", MatrixRule{OS: OSLinux, Name: "other"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Matches(job))
		})
	}
}

func TestJobFilter_Apply(t *testing.T) {
	jobs, err := ExpandMatrix(autoRouteBuildFile(), 3)
	require.NoError(t, err)

	tests := []struct {
		name    string
		filter  JobFilter
		want    []string
		wantErr error
	}{
		{"empty keeps all", JobFilter{}, []string{"3.1", "3.2", "3.3", "3.4"}, nil},
		{"by os", JobFilter{OS: OSMacOS}, []string{"3.3", "3.4"}, nil},
		{"by number", JobFilter{Numbers: []string{"3.2"}}, []string{"3.2"}, nil},
		{"by bare index", JobFilter{Numbers: []string{"4", "1"}}, []string{"3.1", "3.4"}, nil},
		{"os and number disjoint", JobFilter{OS: OSMacOS, Numbers: []string{"1"}}, nil, ErrEmptyMatrix},
		{"unknown number", JobFilter{Numbers: []string{"3.9"}}, nil, ErrJobNotFound},
		{"garbage", JobFilter{Numbers: []string{"x"}}, nil, ErrJobNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.filter.Apply(jobs)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			numbers := make([]string, 0, len(got))
			for _, j := range got {
				numbers = append(numbers, j.Number)
			}
			assert.Equal(t, tt.want, numbers)
		})
	}
}

func TestJob_Label(t *testing.T) {
	assert.Equal(t, "linux", Job{OS: OSLinux}.Label())
	assert.Equal(t, `osx TRAVIS_PYTHON_VERSION="3.5" (py)`, Job{OS: OSMacOS, Env: pythonEnv("3.5"), Name: "py"}.Label())
}
