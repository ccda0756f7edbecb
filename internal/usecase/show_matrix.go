package usecase

import (
	"context"
	"fmt"

	"github.com/snowman2/cimatrix/internal/domain"
	"github.com/snowman2/cimatrix/internal/usecase/shared"
)

// ShowMatrixInput contains the parameters for expanding the matrix.
type ShowMatrixInput struct {
	File   string // Build file path; empty uses the configured one
	Filter domain.JobFilter
}

// ShowMatrixOutput contains the expanded matrix.
// Fields are ordered to minimize memory padding.
type ShowMatrixOutput struct {
	BuildFile   *domain.BuildFile
	Jobs        []domain.Job
	BuildNumber int // Number the next build will get
	FastFinish  bool
}

// ShowMatrix is the use case for previewing the jobs of the next build.
type ShowMatrix struct {
	configLoader domain.ConfigLoader
	loader       domain.BuildFileLoader
	builds       domain.BuildRepository
	buildDir     string
}

// NewShowMatrix creates a new ShowMatrix use case.
func NewShowMatrix(
	configLoader domain.ConfigLoader,
	loader domain.BuildFileLoader,
	builds domain.BuildRepository,
	buildDir string,
) *ShowMatrix {
	return &ShowMatrix{
		configLoader: configLoader,
		loader:       loader,
		builds:       builds,
		buildDir:     buildDir,
	}
}

// Execute expands the matrix without allocating a build number.
func (uc *ShowMatrix) Execute(_ context.Context, in ShowMatrixInput) (*ShowMatrixOutput, error) {
	cfg, err := uc.configLoader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	bf, err := shared.LoadBuildFile(uc.loader, cfg, uc.buildDir, in.File)
	if err != nil {
		return nil, err
	}

	number, err := previewBuildNumber(uc.builds)
	if err != nil {
		return nil, err
	}
	jobs, err := domain.ExpandMatrix(bf, number)
	if err != nil {
		return nil, err
	}
	if jobs, err = in.Filter.Apply(jobs); err != nil {
		return nil, err
	}

	return &ShowMatrixOutput{
		BuildFile:   bf,
		Jobs:        jobs,
		BuildNumber: number,
		FastFinish:  bf.Matrix.FastFinish,
	}, nil
}

// previewBuildNumber guesses the next build number without reserving it.
func previewBuildNumber(builds domain.BuildRepository) (int, error) {
	last, err := builds.List(1)
	if err != nil {
		return 0, fmt.Errorf("list builds: %w", err)
	}
	if len(last) == 0 {
		return 1, nil
	}
	return last[0].Number + 1, nil
}
