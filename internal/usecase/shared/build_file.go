package shared

import (
	"fmt"
	"path/filepath"

	"github.com/snowman2/cimatrix/internal/domain"
)

// BuildFilePath resolves the build file to read.
// file overrides the configured path; relative paths are relative to buildDir.
func BuildFilePath(cfg *domain.Config, buildDir, file string) string {
	if file == "" && cfg != nil {
		file = cfg.Runner.File
	}
	if file == "" {
		file = domain.DefaultBuildFile
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(buildDir, file)
}

// LoadBuildFile loads and validates the build file.
func LoadBuildFile(loader domain.BuildFileLoader, cfg *domain.Config, buildDir, file string) (*domain.BuildFile, error) {
	path := BuildFilePath(cfg, buildDir, file)
	bf, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	if err := bf.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bf, nil
}
