package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/snowman2/cimatrix/internal/domain"
	"github.com/snowman2/cimatrix/internal/usecase/shared"
)

// CompileJobInput contains the parameters for compiling a job.
type CompileJobInput struct {
	File string // Build file path; empty uses the configured one
	Job  string // Job number (1.2) or index (2)
}

// CompileJobOutput contains the compiled script.
type CompileJobOutput struct {
	Script string
	Job    domain.Job
}

// CompileJob is the use case for rendering a job as a standalone bash script.
type CompileJob struct {
	configLoader domain.ConfigLoader
	loader       domain.BuildFileLoader
	builds       domain.BuildRepository
	repo         domain.RepoInspector
	buildDir     string
}

// NewCompileJob creates a new CompileJob use case.
func NewCompileJob(
	configLoader domain.ConfigLoader,
	loader domain.BuildFileLoader,
	builds domain.BuildRepository,
	repo domain.RepoInspector,
	buildDir string,
) *CompileJob {
	return &CompileJob{
		configLoader: configLoader,
		loader:       loader,
		builds:       builds,
		repo:         repo,
		buildDir:     buildDir,
	}
}

// Execute compiles the selected job.
func (uc *CompileJob) Execute(_ context.Context, in CompileJobInput) (*CompileJobOutput, error) {
	if in.Job == "" {
		return nil, fmt.Errorf("%w: no job selected", domain.ErrJobNotFound)
	}

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
	selected, err := domain.JobFilter{Numbers: []string{in.Job}}.Apply(jobs)
	if err != nil {
		return nil, err
	}
	job := selected[0]

	repo, err := uc.repo.Inspect(uc.buildDir)
	if err != nil && !errors.Is(err, domain.ErrNotGitRepository) {
		return nil, fmt.Errorf("inspect repository: %w", err)
	}
	jc := shared.NewJobContext(bf, repo, uc.buildDir)

	return &CompileJobOutput{
		Script: domain.CompileScript(bf, job, jc),
		Job:    job,
	}, nil
}
