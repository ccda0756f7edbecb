package shared

import (
	"github.com/google/uuid"

	"github.com/snowman2/cimatrix/internal/domain"
)

// NewJobContext returns the build-level facts exported to a job running
// in dir. repo may be nil outside a git repository.
func NewJobContext(bf *domain.BuildFile, repo *domain.RepoInfo, dir string) domain.JobContext {
	jc := domain.JobContext{
		BuildDir: dir,
		Language: bf.Language,
		JobID:    uuid.NewString(),
	}
	if repo != nil {
		jc.Branch = repo.Branch
		jc.Commit = repo.Commit
		jc.CommitMessage = repo.Message
	}
	return jc
}
