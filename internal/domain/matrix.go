package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Job is one cell of the expanded build matrix.
// Fields are ordered to minimize memory padding.
type Job struct {
	Number       string     `json:"number" yaml:"number"` // <build>.<index>
	Name         string     `json:"name,omitempty" yaml:"name,omitempty"`
	OS           string     `json:"os" yaml:"os"`
	GlobalEnv    []EnvEntry `json:"global_env,omitempty" yaml:"global_env,omitempty"`
	Env          EnvEntry   `json:"env" yaml:"env"`
	BuildNumber  int        `json:"build" yaml:"build"`
	Index        int        `json:"index" yaml:"index"` // 1-based position in the matrix
	AllowFailure bool       `json:"allow_failure" yaml:"allow_failure"`
}

// Label returns a short human-readable description of the job.
func (j Job) Label() string {
	parts := []string{j.OS}
	if !j.Env.IsEmpty() {
		parts = append(parts, j.Env.Display())
	}
	if j.Name != "" {
		parts = append(parts, "("+j.Name+")")
	}
	return strings.Join(parts, " ")
}

// DeclaredEnv returns the variables the build file declares for the job,
// global entries first, in declaration order.
func (j Job) DeclaredEnv() []EnvVar {
	var vars []EnvVar
	for _, e := range j.GlobalEnv {
		vars = append(vars, e.Vars...)
	}
	return append(vars, j.Env.Vars...)
}

// ExpandMatrix expands a build file into jobs.
// The cross product is OS (outer) × matrix env entry (inner); an empty env
// list contributes one job per OS. Exclude rules drop jobs, include rules
// append jobs, and numbering happens last.
func ExpandMatrix(bf *BuildFile, buildNumber int) ([]Job, error) {
	osList := bf.OS
	if len(osList) == 0 {
		osList = []string{OSLinux}
	}
	envList := bf.Env.Matrix
	if len(envList) == 0 {
		envList = []EnvEntry{{}}
	}

	jobs := make([]Job, 0, len(osList)*len(envList)+len(bf.Matrix.Include))
	for _, os := range osList {
		for _, env := range envList {
			job := Job{OS: os, Env: env}
			if matchesAny(bf.Matrix.Exclude, job) {
				continue
			}
			jobs = append(jobs, job)
		}
	}

	for _, inc := range bf.Matrix.Include {
		job := Job{OS: inc.OS, Env: inc.Env, Name: inc.Name}
		if job.OS == "" {
			job.OS = osList[0]
		}
		jobs = append(jobs, job)
	}

	if len(jobs) == 0 {
		return nil, ErrEmptyMatrix
	}

	for i := range jobs {
		jobs[i].Index = i + 1
		jobs[i].BuildNumber = buildNumber
		jobs[i].Number = JobName(buildNumber, i+1)
		jobs[i].GlobalEnv = bf.Env.Global
		jobs[i].AllowFailure = matchesAny(bf.Matrix.AllowFailures, jobs[i])
	}
	return jobs, nil
}

func matchesAny(rules []MatrixRule, job Job) bool {
	for _, r := range rules {
		if r.Matches(job) {
			return true
		}
	}
	return false
}

// JobFilter restricts which jobs of a build run.
type JobFilter struct {
	OS      string   // Only jobs on this OS
	Numbers []string // Job numbers (1.2) or bare indexes (2)
}

// IsEmpty returns true if the filter keeps every job.
func (f JobFilter) IsEmpty() bool {
	return f.OS == "" && len(f.Numbers) == 0
}

// Apply returns the jobs kept by the filter, preserving order.
// Returns ErrJobNotFound if a requested number matches no job.
func (f JobFilter) Apply(jobs []Job) ([]Job, error) {
	if f.IsEmpty() {
		return jobs, nil
	}

	wanted := make(map[int]bool, len(f.Numbers))
	for _, n := range f.Numbers {
		idx, err := jobIndex(n)
		if err != nil {
			return nil, err
		}
		if !slices.ContainsFunc(jobs, func(j Job) bool { return j.Index == idx }) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, n)
		}
		wanted[idx] = true
	}

	var kept []Job
	for _, j := range jobs {
		if f.OS != "" && j.OS != f.OS {
			continue
		}
		if len(wanted) > 0 && !wanted[j.Index] {
			continue
		}
		kept = append(kept, j)
	}
	if len(kept) == 0 {
		return nil, ErrEmptyMatrix
	}
	return kept, nil
}

// jobIndex accepts "1.2" or "2" and returns the 1-based job index.
func jobIndex(s string) (int, error) {
	if _, idx, ok := ParseJobNumber(s); ok {
		return idx, nil
	}
	idx, err := strconv.Atoi(s)
	if err != nil || idx < 1 {
		return 0, fmt.Errorf("%w: %q is not a job number", ErrJobNotFound, s)
	}
	return idx, nil
}
