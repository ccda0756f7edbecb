package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

// Well-known file and directory names.
const (
	StateDirName       = ".cimatrix"      // Per-project state directory (logs, cache, worktrees, history)
	DefaultBuildFile   = ".travis.yml"    // Build file read when --file is not given
	ConfigFileName     = "config.toml"    // Global config file name
	RepoConfigFileName = ".cimatrix.toml" // Config file name in the project root
	AppDirName         = "cimatrix"       // Directory name under XDG_CONFIG_HOME
)

// StateDir returns the state directory for a project.
func StateDir(buildDir string) string {
	return filepath.Join(buildDir, StateDirName)
}

// JobName returns the job number of a job in a build.
// Format: <build>.<index>
func JobName(buildNumber, index int) string {
	return fmt.Sprintf("%d.%d", buildNumber, index)
}

// JobLogPath returns the path to the log file of a job.
func JobLogPath(stateDir string, buildNumber int, jobNumber string) string {
	return filepath.Join(stateDir, "logs", fmt.Sprintf("build-%d", buildNumber), fmt.Sprintf("job-%s.log", jobNumber))
}

// JobOutputPath returns the path to the captured command output of a job.
func JobOutputPath(stateDir string, buildNumber int, jobNumber string) string {
	return filepath.Join(stateDir, "logs", fmt.Sprintf("build-%d", buildNumber), fmt.Sprintf("job-%s.out", jobNumber))
}

// GlobalLogPath returns the path to the global log file.
func GlobalLogPath(stateDir string) string {
	return filepath.Join(stateDir, "logs", "cimatrix.log")
}

// BuildsStorePath returns the path to the builds.json file.
func BuildsStorePath(stateDir string) string {
	return filepath.Join(stateDir, "builds.json")
}

// CacheDir returns the directory holding cache archives.
func CacheDir(stateDir string) string {
	return filepath.Join(stateDir, "cache")
}

// WorktreeDir returns the directory holding per-job worktrees.
func WorktreeDir(stateDir string) string {
	return filepath.Join(stateDir, "worktrees")
}

// WorktreePath returns the path to the worktree of a job.
func WorktreePath(stateDir, jobNumber string) string {
	return filepath.Join(WorktreeDir(stateDir), "job-"+jobNumber)
}

// RepoConfigPath returns the project config path.
func RepoConfigPath(buildDir string) string {
	return filepath.Join(buildDir, RepoConfigFileName)
}

// GlobalAppDir returns the global cimatrix directory path.
// configHome is typically XDG_CONFIG_HOME or ~/.config (resolved by caller).
func GlobalAppDir(configHome string) string {
	return filepath.Join(configHome, AppDirName)
}

// GlobalConfigPath returns the global config path.
func GlobalConfigPath(configHome string) string {
	return filepath.Join(GlobalAppDir(configHome), ConfigFileName)
}

// jobNumberPattern matches job numbers: <build>.<index>
var jobNumberPattern = regexp.MustCompile(`^(\d+)\.(\d+)$`)

// ParseJobNumber splits a job number into build number and job index.
// Returns false if the string is not a job number.
func ParseJobNumber(s string) (build, index int, ok bool) {
	matches := jobNumberPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, 0, false
	}
	b, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, 0, false
	}
	i, err := strconv.Atoi(matches[2])
	if err != nil || i == 0 {
		return 0, 0, false
	}
	return b, i, true
}
