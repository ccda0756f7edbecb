package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/snowman2/cimatrix/internal/domain"
)

// RunJobInput contains the parameters for running one job.
// Fields are ordered to minimize memory padding.
type RunJobInput struct {
	Output    io.Writer // Console sink for command output (optional)
	BuildFile *domain.BuildFile
	OnEvent   domain.EventHandler
	Runtime   string // Preferred runtime name
	Context   domain.JobContext
	Job       domain.Job
}

// RunJobOutput contains the result of running a job.
type RunJobOutput struct {
	Result domain.JobResult
}

// RunJob is the use case for executing the phases of one job in a
// persistent shell session.
// Fields are ordered to minimize memory padding.
type RunJob struct {
	runtimes domain.RuntimeSelector
	cache    domain.CacheStore // nil disables caching
	logger   domain.Logger
	clock    domain.Clock
	stateDir string
	home     string // Expands $HOME in cache directories
}

// NewRunJob creates a new RunJob use case.
func NewRunJob(
	runtimes domain.RuntimeSelector,
	cache domain.CacheStore,
	logger domain.Logger,
	clock domain.Clock,
	stateDir string,
	home string,
) *RunJob {
	return &RunJob{
		runtimes: runtimes,
		cache:    cache,
		logger:   logger,
		clock:    clock,
		stateDir: stateDir,
		home:     home,
	}
}

// jobRun holds the state of one Execute call.
type jobRun struct {
	session domain.Session
	out     io.Writer
	in      *RunJobInput
	result  *domain.JobResult
}

var (
	// errJobStopped signals that the job reached a final state early.
	errJobStopped = errors.New("job stopped")
	// errShellExited signals that a command ended the session. Its status
	// still counts, but no further command can run.
	errShellExited = errors.New("shell exited")
)

// Execute runs the job. Failures of the job itself are reported through
// the result state, not the error.
func (uc *RunJob) Execute(ctx context.Context, in RunJobInput) (*RunJobOutput, error) {
	if in.BuildFile == nil {
		return nil, fmt.Errorf("run job %s: %w", in.Job.Number, domain.ErrInvalidBuildFile)
	}

	job := in.Job
	result := domain.JobResult{
		Job:       job,
		State:     domain.JobStarted,
		StartedAt: uc.clock.Now(),
		LogPath:   domain.JobOutputPath(uc.stateDir, job.BuildNumber, job.Number),
	}
	run := &jobRun{in: &in, result: &result}
	if ctx.Err() != nil {
		// Canceled while queued: the job finishes without ever starting
		uc.finish(run, domain.JobCanceled, "canceled before start")
	} else {
		in.OnEvent.Emit(domain.Event{Kind: domain.EventJobStarted, Time: result.StartedAt, Job: job})
		uc.logger.Info(job.Number, "job", fmt.Sprintf("started %s", job.Label()))
		uc.execute(ctx, run)
	}

	result.FinishedAt = uc.clock.Now()
	if result.Reason != "" {
		uc.logger.Warn(job.Number, "job", fmt.Sprintf("%s: %s", result.State, result.Reason))
	}
	uc.logger.Info(job.Number, "job", fmt.Sprintf("finished %s in %s", result.State, result.Duration()))
	in.OnEvent.Emit(domain.Event{Kind: domain.EventJobFinished, Time: result.FinishedAt, Job: job, Result: &result})

	return &RunJobOutput{Result: result}, nil
}

func (uc *RunJob) execute(ctx context.Context, run *jobRun) {
	job := run.in.Job

	outFile, err := uc.openOutput(run.result.LogPath)
	if err != nil {
		uc.finish(run, domain.JobErrored, err.Error())
		return
	}
	defer func() { _ = outFile.Close() }()
	// Sessions write stdout and stderr from different goroutines
	run.out = &lockedWriter{w: outFile}
	if run.in.Output != nil {
		run.out = &lockedWriter{w: io.MultiWriter(outFile, run.in.Output)}
	}

	rt, err := uc.runtimes.Select(run.in.Runtime, job.OS)
	if err != nil {
		uc.finish(run, domain.JobErrored, err.Error())
		_, _ = fmt.Fprintln(run.out, err.Error())
		return
	}
	run.result.Runtime = rt.Name()
	uc.logger.Debug(job.Number, "runtime", fmt.Sprintf("using %s runtime in %s", rt.Name(), run.in.Context.BuildDir))

	session, err := rt.Open(ctx, domain.SessionOptions{
		Dir:       run.in.Context.BuildDir,
		OS:        job.OS,
		JobNumber: job.Number,
		Env:       domain.EnvToSlice(domain.CIEnvironment(job, run.in.Context)),
		Stdout:    run.out,
		Stderr:    run.out,
	})
	if err != nil {
		uc.finish(run, domain.JobErrored, fmt.Sprintf("open %s session: %v", rt.Name(), err))
		return
	}
	defer func() {
		if err := session.Close(); err != nil {
			uc.logger.Warn(job.Number, "runtime", fmt.Sprintf("close session: %v", err))
		}
	}()
	run.session = session

	cacheDirs := uc.cacheDirs(run.in.BuildFile, rt.Name(), run.in.Context.BuildDir)
	uc.restoreCache(run, cacheDirs)

	if err := uc.exportEnv(ctx, run, job.DeclaredEnv()); err != nil {
		return
	}

	scriptPassed, err := uc.runPhases(ctx, run)
	exited := errors.Is(err, errShellExited)
	if err != nil && !exited {
		return
	}

	state := domain.JobPassed
	if !scriptPassed {
		state = domain.JobFailed
	}

	if !exited {
		if err := uc.runAfterPhases(ctx, run, scriptPassed); err != nil && !errors.Is(err, errShellExited) {
			return
		}
	}

	if state == domain.JobPassed {
		uc.saveCache(run, cacheDirs)
	}
	uc.finish(run, state, "")
}

// runAfterPhases exports TRAVIS_TEST_RESULT and runs the after_* commands.
// Their exit codes never change the job state.
func (uc *RunJob) runAfterPhases(ctx context.Context, run *jobRun, scriptPassed bool) error {
	if err := uc.exportEnv(ctx, run, []domain.EnvVar{domain.TestResultVar(scriptPassed)}); err != nil {
		return err
	}
	after := []domain.Phase{domain.PhaseAfterFailure, domain.PhaseAfterScript}
	if scriptPassed {
		after[0] = domain.PhaseAfterSuccess
	}
	for _, phase := range after {
		for i, cmd := range run.in.BuildFile.Commands(phase) {
			if _, err := uc.runCommand(ctx, run, phase, i, cmd); err != nil {
				return err
			}
		}
	}
	return nil
}

// runPhases runs the setup and script phases.
// Returns whether every script command passed. errShellExited comes back
// with a valid result when a command ended the session.
func (uc *RunJob) runPhases(ctx context.Context, run *jobRun) (bool, error) {
	scriptPassed := true
	for _, phase := range domain.AllPhases() {
		if phase.IsAfter() {
			continue
		}
		for i, cmd := range run.in.BuildFile.Commands(phase) {
			code, err := uc.runCommand(ctx, run, phase, i, cmd)
			if err != nil && !errors.Is(err, errShellExited) {
				return false, err
			}
			if code != 0 {
				if phase.IsSetup() {
					uc.finish(run, domain.JobErrored, fmt.Sprintf("%s command %q exited with %d", phase, cmd, code))
					return false, errJobStopped
				}
				scriptPassed = false
			}
			if err != nil {
				uc.logger.Debug(run.in.Job.Number, string(phase), fmt.Sprintf("%q ended the shell", cmd))
				return scriptPassed, err
			}
		}
	}
	return scriptPassed, nil
}

// runCommand runs one phase command and records its result.
func (uc *RunJob) runCommand(ctx context.Context, run *jobRun, phase domain.Phase, index int, cmd string) (int, error) {
	job := run.in.Job
	cr := domain.CommandResult{Phase: phase, Index: index, Command: cmd}
	run.in.OnEvent.Emit(domain.Event{Kind: domain.EventCommandStarted, Time: uc.clock.Now(), Job: job, Command: &cr})
	uc.logger.Debug(job.Number, string(phase), cmd)

	_, _ = fmt.Fprintf(run.out, "$ %s\n", cmd)
	start := uc.clock.Now()
	code, err := run.session.Run(ctx, cmd)
	cr.Duration = uc.clock.Now().Sub(start)
	exited := errors.Is(err, domain.ErrShellExited)
	if err != nil && !exited {
		uc.sessionBroken(ctx, run, err)
		return -1, errJobStopped
	}
	_, _ = fmt.Fprintf(run.out, "The command \"%s\" exited with %d.\n\n", cmd, code)

	cr.ExitCode = code
	run.result.Commands = append(run.result.Commands, cr)
	run.in.OnEvent.Emit(domain.Event{Kind: domain.EventCommandFinished, Time: uc.clock.Now(), Job: job, Command: &cr})
	if exited {
		return code, errShellExited
	}
	return code, nil
}

// exportEnv exports variables through the session so references expand.
func (uc *RunJob) exportEnv(ctx context.Context, run *jobRun, vars []domain.EnvVar) error {
	for _, v := range vars {
		cmd := v.ExportCommand()
		_, _ = fmt.Fprintf(run.out, "$ %s\n", cmd)
		code, err := run.session.Run(ctx, cmd)
		if errors.Is(err, domain.ErrShellExited) {
			uc.finish(run, domain.JobErrored, fmt.Sprintf("export %s ended the shell with %d", v.Name, code))
			return errJobStopped
		}
		if err != nil {
			uc.sessionBroken(ctx, run, err)
			return errJobStopped
		}
		if code != 0 {
			uc.finish(run, domain.JobErrored, fmt.Sprintf("export %s exited with %d", v.Name, code))
			return errJobStopped
		}
	}
	return nil
}

// sessionBroken finishes the job after Run returned an error.
func (uc *RunJob) sessionBroken(ctx context.Context, run *jobRun, err error) {
	if ctx.Err() != nil {
		uc.finish(run, domain.JobCanceled, "canceled")
		return
	}
	uc.finish(run, domain.JobErrored, err.Error())
}

func (uc *RunJob) finish(run *jobRun, state domain.JobState, reason string) {
	run.result.State = state
	run.result.Reason = reason
}

func (uc *RunJob) openOutput(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create job output: %w", err)
	}
	return f, nil
}

// jobCache pairs the cache directories as declared with their paths in the
// job's build dir. The key comes from the declared form, so a job keeps its
// cache when it runs in a different checkout.
type jobCache struct {
	declared []string
	dirs     []string
}

// cacheDirs resolves the cache directories of the job.
// Containers only see the build dir, so anything outside it is dropped.
func (uc *RunJob) cacheDirs(bf *domain.BuildFile, runtime, buildDir string) jobCache {
	if uc.cache == nil || !bf.Cache.Enabled() {
		return jobCache{}
	}
	dirs := bf.Cache.ExpandDirectories(uc.home, buildDir)
	if runtime != domain.RuntimeContainer {
		return jobCache{declared: bf.Cache.Directories, dirs: dirs}
	}
	var jc jobCache
	for i, d := range dirs {
		if isWithin(buildDir, d) {
			jc.declared = append(jc.declared, bf.Cache.Directories[i])
			jc.dirs = append(jc.dirs, d)
		}
	}
	return jc
}

func (uc *RunJob) restoreCache(run *jobRun, jc jobCache) {
	if len(jc.dirs) == 0 {
		return
	}
	job := run.in.Job
	dirs := jc.dirs
	key := uc.cache.Key(job, jc.declared)
	restored, err := uc.cache.Restore(key, dirs)
	switch {
	case err != nil:
		uc.logger.Warn(job.Number, "cache", fmt.Sprintf("restore %s: %v", key, err))
		_, _ = fmt.Fprintf(run.out, "cache: restore failed: %v\n", err)
	case restored:
		uc.logger.Info(job.Number, "cache", "restored "+key)
		_, _ = fmt.Fprintf(run.out, "cache: restored %s\n", strings.Join(dirs, " "))
	default:
		uc.logger.Debug(job.Number, "cache", "miss "+key)
		_, _ = fmt.Fprintln(run.out, "cache: no archive yet")
	}
}

func (uc *RunJob) saveCache(run *jobRun, jc jobCache) {
	if len(jc.dirs) == 0 {
		return
	}
	job := run.in.Job
	key := uc.cache.Key(job, jc.declared)
	if err := uc.cache.Save(key, jc.dirs); err != nil {
		uc.logger.Warn(job.Number, "cache", fmt.Sprintf("save %s: %v", key, err))
		_, _ = fmt.Fprintf(run.out, "cache: save failed: %v\n", err)
		return
	}
	uc.logger.Info(job.Number, "cache", "saved "+key)
}

// isWithin reports whether path is dir or below it.
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, "../")
}
