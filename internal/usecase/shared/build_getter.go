package shared

import (
	"fmt"

	"github.com/snowman2/cimatrix/internal/domain"
)

// GetBuild retrieves a build by number and returns domain.ErrBuildNotFound if not found.
func GetBuild(repo domain.BuildRepository, number int) (*domain.Build, error) {
	build, err := repo.Get(number)
	if err != nil {
		return nil, fmt.Errorf("get build: %w", err)
	}
	if build == nil {
		return nil, fmt.Errorf("%w: #%d", domain.ErrBuildNotFound, number)
	}
	return build, nil
}
