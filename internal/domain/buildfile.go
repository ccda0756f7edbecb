package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Phase names one command list of the build lifecycle.
type Phase string

const (
	PhaseBeforeInstall Phase = "before_install" // Provision toolchain
	PhaseInstall       Phase = "install"        // Install project dependencies
	PhaseBeforeScript  Phase = "before_script"  // Prepare the test run
	PhaseScript        Phase = "script"         // Run the tests
	PhaseAfterSuccess  Phase = "after_success"  // Runs when script passed
	PhaseAfterFailure  Phase = "after_failure"  // Runs when script failed
	PhaseAfterScript   Phase = "after_script"   // Always runs after script
)

// AllPhases returns every phase in execution order.
func AllPhases() []Phase {
	return []Phase{
		PhaseBeforeInstall,
		PhaseInstall,
		PhaseBeforeScript,
		PhaseScript,
		PhaseAfterSuccess,
		PhaseAfterFailure,
		PhaseAfterScript,
	}
}

// IsValid returns true if p is a known phase.
func (p Phase) IsValid() bool {
	return slices.Contains(AllPhases(), p)
}

// IsSetup returns true if a failing command in this phase errors the job.
func (p Phase) IsSetup() bool {
	return p == PhaseBeforeInstall || p == PhaseInstall || p == PhaseBeforeScript
}

// IsAfter returns true for phases whose exit codes never change the job state.
func (p Phase) IsAfter() bool {
	return p == PhaseAfterSuccess || p == PhaseAfterFailure || p == PhaseAfterScript
}

// Supported operating systems.
const (
	OSLinux   = "linux"
	OSMacOS   = "osx"
	OSWindows = "windows"
)

// SupportedOS returns all operating systems a build file may declare.
func SupportedOS() []string {
	return []string{OSLinux, OSMacOS, OSWindows}
}

// BuildFile is the parsed form of a .travis.yml file.
// Fields are ordered to minimize memory padding.
type BuildFile struct {
	Phases        map[Phase][]string
	Path          string
	Language      string
	Dist          string
	OS            []string
	Warnings      []string
	Env           EnvSpec
	Matrix        MatrixSpec
	Cache         CacheSpec
	Notifications Notifications
}

// EnvSpec holds the env declarations of a build file.
type EnvSpec struct {
	Global []EnvEntry // Exported in every job
	Matrix []EnvEntry // One job per entry and OS
}

// MatrixSpec holds the matrix section of a build file.
type MatrixSpec struct {
	AllowFailures []MatrixRule
	Exclude       []MatrixRule
	Include       []MatrixRule
	FastFinish    bool
}

// MatrixRule selects jobs by OS, env entry and name.
// Every key that is set must match; an empty rule matches nothing.
type MatrixRule struct {
	OS   string
	Name string
	Env  EnvEntry
}

// IsEmpty returns true if the rule names no key.
func (r MatrixRule) IsEmpty() bool {
	return r.OS == "" && r.Name == "" && r.Env.IsEmpty()
}

// Matches returns true if every key set on the rule equals the job's value.
func (r MatrixRule) Matches(job Job) bool {
	if r.IsEmpty() {
		return false
	}
	if r.OS != "" && r.OS != job.OS {
		return false
	}
	if r.Name != "" && r.Name != job.Name {
		return false
	}
	if !r.Env.IsEmpty() && r.Env.Key() != job.Env.Key() {
		return false
	}
	return true
}

// String returns a readable representation of the rule.
func (r MatrixRule) String() string {
	var parts []string
	if r.OS != "" {
		parts = append(parts, "os: "+r.OS)
	}
	if !r.Env.IsEmpty() {
		parts = append(parts, "env: "+r.Env.Display())
	}
	if r.Name != "" {
		parts = append(parts, "name: "+r.Name)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// CacheSpec holds the cache section of a build file.
type CacheSpec struct {
	Directories []string
	Disabled    bool
}

// Enabled returns true if there is anything to cache.
func (c CacheSpec) Enabled() bool {
	return !c.Disabled && len(c.Directories) > 0
}

// ExpandDirectories resolves the cache directories of a job.
// $HOME, ${HOME} and ~ expand to home; $TRAVIS_BUILD_DIR and
// ${TRAVIS_BUILD_DIR} expand to buildDir; relative paths are relative to
// buildDir.
func (c CacheSpec) ExpandDirectories(home, buildDir string) []string {
	dirs := make([]string, 0, len(c.Directories))
	for _, d := range c.Directories {
		dirs = append(dirs, expandCacheDir(d, home, buildDir))
	}
	return dirs
}

func expandCacheDir(dir, home, buildDir string) string {
	prefixes := []struct{ prefix, value string }{
		{"${TRAVIS_BUILD_DIR}", buildDir},
		{"$TRAVIS_BUILD_DIR", buildDir},
		{"${HOME}", home},
		{"$HOME", home},
		{"~", home},
	}
	for _, p := range prefixes {
		rest, ok := strings.CutPrefix(dir, p.prefix)
		if ok && (rest == "" || rest[0] == '/') {
			return filepath.Join(p.value, rest)
		}
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(buildDir, dir)
}

// Commands returns the commands of a phase in declaration order.
func (bf *BuildFile) Commands(p Phase) []string {
	if bf.Phases == nil {
		return nil
	}
	return bf.Phases[p]
}

// ApplyDefaults fills in values the build file may omit.
func (bf *BuildFile) ApplyDefaults() {
	if len(bf.OS) == 0 {
		bf.OS = []string{OSLinux}
	}
	if bf.Phases == nil {
		bf.Phases = make(map[Phase][]string)
	}
	bf.Notifications.applyDefaults()
}

// Validate checks the build file and returns every problem found, joined.
// Each problem wraps ErrInvalidBuildFile.
func (bf *BuildFile) Validate() error {
	var errs []error
	invalid := func(err error, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %w: %s", ErrInvalidBuildFile, err, fmt.Sprintf(format, args...)))
	}

	if _, ok := bf.Phases[PhaseScript]; !ok {
		invalid(ErrNoScript, "add a script section")
	}
	for _, phase := range AllPhases() {
		cmds, ok := bf.Phases[phase]
		if !ok {
			continue
		}
		if len(cmds) == 0 {
			invalid(ErrEmptyPhase, "%s", phase)
			continue
		}
		for i, c := range cmds {
			if strings.TrimSpace(c) == "" {
				invalid(ErrEmptyPhase, "%s[%d] is blank", phase, i)
			}
		}
	}

	for _, os := range bf.OS {
		if !slices.Contains(SupportedOS(), os) {
			invalid(ErrUnsupportedOS, "%q", os)
		}
	}

	for _, e := range append(append([]EnvEntry{}, bf.Env.Global...), bf.Env.Matrix...) {
		if len(e.Vars) == 0 {
			invalid(ErrInvalidEnvEntry, "%q declares no variable", e.Raw)
		}
	}

	checkRules := func(section string, rules []MatrixRule) {
		for i, r := range rules {
			if r.IsEmpty() {
				invalid(ErrEmptyRule, "matrix.%s[%d]", section, i)
			}
			if r.OS != "" && !slices.Contains(SupportedOS(), r.OS) {
				invalid(ErrUnsupportedOS, "matrix.%s[%d]: %q", section, i, r.OS)
			}
		}
	}
	checkRules("allow_failures", bf.Matrix.AllowFailures)
	checkRules("exclude", bf.Matrix.Exclude)
	checkRules("include", bf.Matrix.Include)

	if err := bf.Notifications.validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidBuildFile, err))
	}

	return errors.Join(errs...)
}
