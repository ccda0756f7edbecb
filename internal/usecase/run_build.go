package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/gammazero/workerpool"

	"github.com/snowman2/cimatrix/internal/domain"
	"github.com/snowman2/cimatrix/internal/usecase/shared"
)

// RunBuildInput contains the parameters for running a build.
// Fields are ordered to minimize memory padding.
type RunBuildInput struct {
	Output       io.Writer // Console sink for job output (optional)
	OnEvent      domain.EventHandler
	File         string // Build file path; empty uses the configured one
	Runtime      string // Overrides [runner] runtime
	Filter       domain.JobFilter
	Jobs         int // Overrides [runner] jobs when positive
	NoFastFinish bool
}

// RunBuildOutput contains the result of a build.
// Fields are ordered to minimize memory padding.
type RunBuildOutput struct {
	Build    *domain.Build
	Notify   *NotifyBuildOutput
	Warnings []string
}

// RunBuild is the use case for expanding the matrix and running its jobs.
// Fields are ordered to minimize memory padding.
type RunBuild struct {
	configLoader domain.ConfigLoader
	loader       domain.BuildFileLoader
	builds       domain.BuildRepository
	repo         domain.RepoInspector
	workspaces   domain.WorkspaceManager // nil disables worktree isolation
	logger       domain.Logger
	clock        domain.Clock
	runJob       *RunJob
	notify       *NotifyBuild
	buildDir     string
}

// NewRunBuild creates a new RunBuild use case.
func NewRunBuild(
	configLoader domain.ConfigLoader,
	loader domain.BuildFileLoader,
	builds domain.BuildRepository,
	repo domain.RepoInspector,
	workspaces domain.WorkspaceManager,
	runJob *RunJob,
	notify *NotifyBuild,
	logger domain.Logger,
	clock domain.Clock,
	buildDir string,
) *RunBuild {
	return &RunBuild{
		configLoader: configLoader,
		loader:       loader,
		builds:       builds,
		repo:         repo,
		workspaces:   workspaces,
		runJob:       runJob,
		notify:       notify,
		logger:       logger,
		clock:        clock,
		buildDir:     buildDir,
	}
}

// buildPlan holds everything decided before the first job starts.
// Fields are ordered to minimize memory padding.
type buildPlan struct {
	bf          *domain.BuildFile
	repo        *domain.RepoInfo
	previous    *domain.Build
	runtime     string
	jobs        []domain.Job
	concurrency int
	isolate     bool
	fastFinish  bool
}

// Execute runs the build and records it in history.
// A build that does not pass is not an error; check Build.State.
func (uc *RunBuild) Execute(ctx context.Context, in RunBuildInput) (*RunBuildOutput, error) {
	out := &RunBuildOutput{}

	plan, build, err := uc.prepare(in, out)
	if err != nil {
		return nil, err
	}

	in.OnEvent.Emit(domain.Event{Kind: domain.EventBuildStarted, Time: build.StartedAt, Build: build})
	uc.logger.Info("", "build", fmt.Sprintf("build #%d started: %d job(s), %d parallel, runtime %s",
		build.Number, len(plan.jobs), plan.concurrency, plan.runtime))

	results, concluded := uc.runJobs(ctx, in, plan)

	build.Jobs = results
	build.State = domain.ConcludeBuild(results)
	if ctx.Err() != nil && !concluded {
		build.State = domain.BuildCanceled
	}
	build.FinishedAt = uc.clock.Now()
	if err := uc.builds.Save(build); err != nil {
		return nil, fmt.Errorf("save build: %w", err)
	}
	uc.logger.Info("", "build", fmt.Sprintf("build #%d %s in %s", build.Number, build.State, build.Duration()))
	in.OnEvent.Emit(domain.Event{Kind: domain.EventBuildFinished, Time: build.FinishedAt, Build: build})

	notifyIn := NotifyBuildInput{
		Build:         build,
		Previous:      plan.previous,
		Notifications: plan.bf.Notifications,
	}
	if plan.repo != nil {
		notifyIn.AuthorEmail = plan.repo.AuthorEmail
	}
	// The build may have concluded before an interrupt
	notified, err := uc.notify.Execute(context.WithoutCancel(ctx), notifyIn)
	if err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}
	out.Notify = notified
	out.Build = build
	return out, nil
}

// prepare loads everything the build needs and saves it as started.
func (uc *RunBuild) prepare(in RunBuildInput, out *RunBuildOutput) (*buildPlan, *domain.Build, error) {
	cfg, err := uc.configLoader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	bf, err := shared.LoadBuildFile(uc.loader, cfg, uc.buildDir, in.File)
	if err != nil {
		return nil, nil, err
	}
	out.Warnings = append(out.Warnings, bf.Warnings...)

	plan := &buildPlan{
		bf:          bf,
		runtime:     cfg.Runner.Runtime,
		concurrency: cfg.Runner.Jobs,
		fastFinish:  bf.Matrix.FastFinish && !in.NoFastFinish,
	}
	if in.Runtime != "" {
		plan.runtime = in.Runtime
	}
	if in.Jobs > 0 {
		plan.concurrency = in.Jobs
	}
	if plan.concurrency < 1 {
		plan.concurrency = 1
	}

	plan.repo, err = uc.repo.Inspect(uc.buildDir)
	if err != nil && !errors.Is(err, domain.ErrNotGitRepository) {
		return nil, nil, fmt.Errorf("inspect repository: %w", err)
	}

	number, err := uc.builds.NextNumber()
	if err != nil {
		return nil, nil, fmt.Errorf("allocate build number: %w", err)
	}
	jobs, err := domain.ExpandMatrix(bf, number)
	if err != nil {
		return nil, nil, err
	}
	if plan.jobs, err = in.Filter.Apply(jobs); err != nil {
		return nil, nil, err
	}

	if plan.isolate, err = uc.decideIsolation(cfg.Runner.Isolate, plan); err != nil {
		return nil, nil, err
	}
	if plan.isolate && plan.repo.Dirty {
		msg := "uncommitted changes are not visible to jobs running in worktrees"
		out.Warnings = append(out.Warnings, msg)
		uc.logger.Warn("", "workspace", msg)
	}

	// Read before saving, so the new build is never its own previous one
	if plan.previous, err = uc.builds.Last(); err != nil {
		return nil, nil, fmt.Errorf("read previous build: %w", err)
	}

	build := &domain.Build{
		Number:     number,
		State:      domain.BuildStarted,
		File:       bf.Path,
		StartedAt:  uc.clock.Now(),
		FastFinish: plan.fastFinish,
		Jobs:       make([]domain.JobResult, len(plan.jobs)),
	}
	if plan.repo != nil {
		build.Branch = plan.repo.Branch
		build.Commit = plan.repo.Commit
	}
	for i, job := range plan.jobs {
		build.Jobs[i] = domain.JobResult{Job: job, State: domain.JobCreated}
	}
	if err := uc.builds.Save(build); err != nil {
		return nil, nil, fmt.Errorf("save build: %w", err)
	}
	return plan, build, nil
}

// decideIsolation returns whether every job gets its own worktree.
func (uc *RunBuild) decideIsolation(mode string, plan *buildPlan) (bool, error) {
	available := uc.workspaces != nil && plan.repo != nil && plan.repo.Commit != ""
	switch mode {
	case domain.IsolateNone:
		return false, nil
	case domain.IsolateWorktree:
		if !available {
			return false, fmt.Errorf("worktree isolation needs a git repository with a commit: %w", domain.ErrNotGitRepository)
		}
		return true, nil
	default:
		return available && plan.concurrency > 1 && len(plan.jobs) > 1, nil
	}
}

// runJobs runs every job through a bounded worker pool.
// It returns the results in matrix order and whether the build concluded
// on its own before the context was canceled.
func (uc *RunBuild) runJobs(ctx context.Context, in RunBuildInput, plan *buildPlan) ([]domain.JobResult, bool) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]domain.JobResult, len(plan.jobs))
	for i, job := range plan.jobs {
		results[i] = domain.JobResult{Job: job, State: domain.JobCreated}
	}
	progress := domain.NewBuildProgress(plan.jobs, plan.fastFinish)
	parallel := plan.concurrency > 1 && len(plan.jobs) > 1

	var (
		mu        sync.Mutex // Guards results, progress and concluded
		outMu     sync.Mutex // Serializes console lines
		concluded bool
	)
	pool := workerpool.New(plan.concurrency)
	for i, job := range plan.jobs {
		pool.Submit(func() {
			var w io.Writer
			var pw *prefixWriter
			if in.Output != nil {
				w = in.Output
				if parallel {
					pw = newPrefixWriter(in.Output, &outMu, "["+job.Number+"] ")
					w = pw
				}
			}

			res := uc.runOne(runCtx, in, plan, job, w)
			if pw != nil {
				_ = pw.Flush()
			}

			mu.Lock()
			results[i] = res
			progress.Record(job.Number, res.State)
			done := progress.Concluded()
			if done && ctx.Err() == nil {
				concluded = true
			}
			pending := progress.Pending()
			mu.Unlock()

			if done {
				if len(pending) > 0 {
					uc.logger.Info("", "build", fmt.Sprintf("build concluded, canceling %v", pending))
				}
				cancel()
			}
		})
	}
	pool.StopWait()

	return results, concluded
}

// runOne runs a job in its workspace.
func (uc *RunBuild) runOne(ctx context.Context, in RunBuildInput, plan *buildPlan, job domain.Job, w io.Writer) domain.JobResult {
	dir := uc.buildDir
	if plan.isolate && ctx.Err() == nil {
		path, err := uc.workspaces.Prepare(job.Number)
		if err != nil {
			return uc.erroredJob(in, job, fmt.Sprintf("prepare worktree: %v", err))
		}
		defer func() {
			if err := uc.workspaces.Release(job.Number); err != nil {
				uc.logger.Warn(job.Number, "workspace", fmt.Sprintf("release worktree: %v", err))
			}
		}()
		dir = path
		// Keep the build dir's position when it is below the repository root
		if rel, err := filepath.Rel(plan.repo.Root, uc.buildDir); err == nil && rel != "." && isWithin(plan.repo.Root, uc.buildDir) {
			dir = filepath.Join(path, rel)
		}
	}

	out, err := uc.runJob.Execute(ctx, RunJobInput{
		Output:    w,
		BuildFile: plan.bf,
		OnEvent:   in.OnEvent,
		Runtime:   plan.runtime,
		Context:   shared.NewJobContext(plan.bf, plan.repo, dir),
		Job:       job,
	})
	if err != nil {
		return uc.erroredJob(in, job, err.Error())
	}
	return out.Result
}

// erroredJob reports a job that failed before its session could start.
func (uc *RunBuild) erroredJob(in RunBuildInput, job domain.Job, reason string) domain.JobResult {
	now := uc.clock.Now()
	res := domain.JobResult{
		Job:        job,
		State:      domain.JobErrored,
		Reason:     reason,
		StartedAt:  now,
		FinishedAt: now,
	}
	uc.logger.Error(job.Number, "job", reason)
	in.OnEvent.Emit(domain.Event{Kind: domain.EventJobFinished, Time: now, Job: job, Result: &res})
	return res
}
