package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/snowman2/cimatrix/internal/domain"
	"github.com/snowman2/cimatrix/internal/usecase/shared"
)

// ValidateBuildFileInput contains the parameters for validating a build file.
type ValidateBuildFileInput struct {
	File string // Build file path; empty uses the configured one
}

// ValidateBuildFileOutput contains the validation result.
// Fields are ordered to minimize memory padding.
type ValidateBuildFileOutput struct {
	Path     string
	Warnings []string
	Problems []error // Empty when the build file is valid
	Jobs     int     // Number of jobs the matrix expands to
}

// Valid returns true if no problem was found.
func (o *ValidateBuildFileOutput) Valid() bool {
	return len(o.Problems) == 0
}

// ValidateBuildFile is the use case for checking a build file.
type ValidateBuildFile struct {
	configLoader domain.ConfigLoader
	loader       domain.BuildFileLoader
	buildDir     string
}

// NewValidateBuildFile creates a new ValidateBuildFile use case.
func NewValidateBuildFile(configLoader domain.ConfigLoader, loader domain.BuildFileLoader, buildDir string) *ValidateBuildFile {
	return &ValidateBuildFile{
		configLoader: configLoader,
		loader:       loader,
		buildDir:     buildDir,
	}
}

// Execute parses and validates the build file.
// Problems in the content are reported in the output; the error is only
// set when the file cannot be read or parsed at all.
func (uc *ValidateBuildFile) Execute(_ context.Context, in ValidateBuildFileInput) (*ValidateBuildFileOutput, error) {
	cfg, err := uc.configLoader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	path := shared.BuildFilePath(cfg, uc.buildDir, in.File)
	bf, err := uc.loader.Load(path)
	if err != nil {
		return nil, err
	}

	out := &ValidateBuildFileOutput{Path: path, Warnings: bf.Warnings}
	if err := bf.Validate(); err != nil {
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			out.Problems = joined.Unwrap()
		} else {
			out.Problems = []error{err}
		}
		return out, nil
	}

	jobs, err := domain.ExpandMatrix(bf, 1)
	if err != nil {
		out.Problems = []error{err}
		return out, nil
	}
	out.Jobs = len(jobs)
	return out, nil
}
