package domain

import (
	"strconv"
)

// JobContext carries build-level facts exported to every job.
// Fields are ordered to minimize memory padding.
type JobContext struct {
	BuildDir      string
	Language      string
	Branch        string
	Commit        string
	CommitMessage string
	JobID         string
}

// CIEnvironment returns the variables every job sees before the build
// file's own env entries. Values are literal and never shell-expanded.
func CIEnvironment(job Job, jc JobContext) []EnvVar {
	vars := []EnvVar{
		{Name: "CI", Value: "true"},
		{Name: "TRAVIS", Value: "true"},
		{Name: "CONTINUOUS_INTEGRATION", Value: "true"},
		{Name: "HAS_JOSH_K_SEAL_OF_APPROVAL", Value: "true"},
		{Name: "TRAVIS_OS_NAME", Value: job.OS},
		{Name: "TRAVIS_BUILD_DIR", Value: jc.BuildDir},
		{Name: "TRAVIS_BUILD_NUMBER", Value: strconv.Itoa(job.BuildNumber)},
		{Name: "TRAVIS_JOB_NUMBER", Value: job.Number},
		{Name: "TRAVIS_JOB_ID", Value: jc.JobID},
		{Name: "TRAVIS_ALLOW_FAILURE", Value: strconv.FormatBool(job.AllowFailure)},
		{Name: "TRAVIS_LANGUAGE", Value: jc.Language},
	}
	if jc.Branch != "" {
		vars = append(vars, EnvVar{Name: "TRAVIS_BRANCH", Value: jc.Branch})
	}
	if jc.Commit != "" {
		vars = append(vars, EnvVar{Name: "TRAVIS_COMMIT", Value: jc.Commit})
	}
	if jc.CommitMessage != "" {
		vars = append(vars, EnvVar{Name: "TRAVIS_COMMIT_MESSAGE", Value: jc.CommitMessage})
	}
	return vars
}

// TestResultVar returns TRAVIS_TEST_RESULT for the after_* phases.
func TestResultVar(scriptPassed bool) EnvVar {
	v := EnvVar{Name: "TRAVIS_TEST_RESULT", Value: "1"}
	if scriptPassed {
		v.Value = "0"
	}
	return v
}

// EnvToSlice converts variables to NAME=VALUE strings using literal values.
func EnvToSlice(vars []EnvVar) []string {
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		out = append(out, v.Name+"="+v.Value)
	}
	return out
}
