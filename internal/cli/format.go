package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/snowman2/cimatrix/internal/domain"
	"github.com/snowman2/cimatrix/internal/tui"
)

var styles = tui.DefaultStyles()

// printJobTable prints the jobs of a matrix.
func printJobTable(w io.Writer, jobs []domain.Job) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	defer func() { _ = tw.Flush() }()

	_, _ = fmt.Fprintln(tw, "JOB\tOS\tENV\tALLOW FAILURE")
	for _, job := range jobs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			job.Number,
			job.OS,
			envColumn(job),
			yesNo(job.AllowFailure),
		)
	}
}

// printResultTable prints the job results of a build.
func printResultTable(w io.Writer, results []domain.JobResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	defer func() { _ = tw.Flush() }()

	_, _ = fmt.Fprintln(tw, "JOB\tSTATE\tDURATION\tOS\tENV\tREASON")
	for _, r := range results {
		state := string(r.State)
		if r.Job.AllowFailure {
			state += " (allowed)"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Job.Number,
			state,
			durationColumn(r),
			r.Job.OS,
			envColumn(r.Job),
			dash(r.Reason),
		)
	}
}

// printBuildList prints builds, one per line.
func printBuildList(w io.Writer, builds []*domain.Build) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	defer func() { _ = tw.Flush() }()

	_, _ = fmt.Fprintln(tw, "BUILD\tSTATE\tJOBS\tBRANCH\tCOMMIT\tSTARTED\tDURATION")
	for _, b := range builds {
		_, _ = fmt.Fprintf(tw, "#%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			b.Number,
			b.State,
			jobCounts(b.Jobs),
			dash(b.Branch),
			dash(shortCommit(b.Commit)),
			b.StartedAt.Local().Format("2006-01-02 15:04:05"),
			tui.FormatDuration(b.Duration()),
		)
	}
}

// printBuildHeader prints the build number and styled state.
func printBuildHeader(w io.Writer, b *domain.Build) {
	_, _ = fmt.Fprintf(w, "Build #%d %s", b.Number, styles.BuildStateStyle(b.State).UnsetWidth().Render(string(b.State)))
	if d := b.Duration(); d > 0 {
		_, _ = fmt.Fprintf(w, " in %s", tui.FormatDuration(d))
	}
	_, _ = fmt.Fprintln(w)
}

// jobCounts summarizes job states, e.g. "3/4 passed".
func jobCounts(results []domain.JobResult) string {
	passed := 0
	for _, r := range results {
		if r.State == domain.JobPassed {
			passed++
		}
	}
	return fmt.Sprintf("%d/%d passed", passed, len(results))
}

func durationColumn(r domain.JobResult) string {
	if r.StartedAt.IsZero() {
		return "-"
	}
	return tui.FormatDuration(r.Duration())
}

func envColumn(job domain.Job) string {
	env := job.Env.Display()
	if job.Name != "" {
		env = strings.TrimSpace(env + " (" + job.Name + ")")
	}
	return dash(env)
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// printWarnings prints warnings to w.
func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		_, _ = fmt.Fprintln(w, styles.Warning.Render("Warning: "+msg))
	}
}
