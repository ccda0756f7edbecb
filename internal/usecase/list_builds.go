package usecase

import (
	"context"
	"fmt"

	"github.com/snowman2/cimatrix/internal/domain"
)

// ListBuildsInput contains the parameters for listing builds.
type ListBuildsInput struct {
	Limit int // Most recent builds to return (0 = all)
}

// ListBuildsOutput contains the builds, oldest first.
type ListBuildsOutput struct {
	Builds []*domain.Build
}

// ListBuilds is the use case for listing build history.
type ListBuilds struct {
	builds domain.BuildRepository
}

// NewListBuilds creates a new ListBuilds use case.
func NewListBuilds(builds domain.BuildRepository) *ListBuilds {
	return &ListBuilds{builds: builds}
}

// Execute returns the build history.
func (uc *ListBuilds) Execute(_ context.Context, in ListBuildsInput) (*ListBuildsOutput, error) {
	builds, err := uc.builds.List(in.Limit)
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	return &ListBuildsOutput{Builds: builds}, nil
}
