package usecase

import (
	"context"
	"fmt"

	"github.com/snowman2/cimatrix/internal/domain"
	"github.com/snowman2/cimatrix/internal/usecase/shared"
)

// ShowBuildInput contains the parameters for showing a build.
type ShowBuildInput struct {
	Number int // Build number; 0 shows the most recent build
}

// ShowBuildOutput contains the build.
type ShowBuildOutput struct {
	Build *domain.Build
}

// ShowBuild is the use case for displaying one build.
type ShowBuild struct {
	builds domain.BuildRepository
}

// NewShowBuild creates a new ShowBuild use case.
func NewShowBuild(builds domain.BuildRepository) *ShowBuild {
	return &ShowBuild{builds: builds}
}

// Execute retrieves the build.
func (uc *ShowBuild) Execute(_ context.Context, in ShowBuildInput) (*ShowBuildOutput, error) {
	if in.Number > 0 {
		build, err := shared.GetBuild(uc.builds, in.Number)
		if err != nil {
			return nil, err
		}
		return &ShowBuildOutput{Build: build}, nil
	}

	builds, err := uc.builds.List(1)
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	if len(builds) == 0 {
		return nil, domain.ErrBuildNotFound
	}
	return &ShowBuildOutput{Build: builds[0]}, nil
}
