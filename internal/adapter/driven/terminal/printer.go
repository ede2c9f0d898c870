// Package terminal renders command output for a human reading a terminal.
package terminal

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cli/go-gh/v2/pkg/tableprinter"
	"github.com/fatih/color"
	"github.com/rivo/uniseg"

	"github.com/ericfisherdev/shub/internal/domain/model"
	"github.com/ericfisherdev/shub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DashboardPrinter = (*Printer)(nil)

// dashboardMargin is the number of spaces between the longest name and the
// status column.
const dashboardMargin = 2

// Printer writes dashboards and tables to a single writer.
type Printer struct {
	out      io.Writer
	isTTY    bool
	maxWidth int

	success    *color.Color
	inProgress *color.Color
	failure    *color.Color
	muted      *color.Color
}

// NewPrinter creates a Printer. When isTTY is false, output carries no color
// and tables are tab-separated for scripts.
func NewPrinter(out io.Writer, isTTY bool, maxWidth int) *Printer {
	p := &Printer{
		out:        out,
		isTTY:      isTTY,
		maxWidth:   maxWidth,
		success:    color.New(color.FgGreen),
		inProgress: color.New(color.FgYellow),
		failure:    color.New(color.FgRed, color.Bold),
		muted:      color.New(color.FgHiBlack),
	}

	for _, c := range []*color.Color{p.success, p.inProgress, p.failure, p.muted} {
		if isTTY {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return p
}

// PrintDashboard prints one line per repository: the name padded to the
// longest name plus a margin, then the status. Width is measured in grapheme
// clusters. Repositories without a status print an empty status.
func (p *Printer) PrintDashboard(repos []model.Repository) error {
	longest := 0
	for _, r := range repos {
		longest = max(longest, uniseg.GraphemeClusterCount(r.Name))
	}

	for _, r := range repos {
		padding := longest - uniseg.GraphemeClusterCount(r.Name) + dashboardMargin
		line := r.Name + strings.Repeat(" ", padding) + p.status(r.BuildStatus)
		if _, err := fmt.Fprintln(p.out, line); err != nil {
			return fmt.Errorf("write dashboard line: %w", err)
		}
	}

	return nil
}

// PrintRepositories prints a table of repository details.
func (p *Printer) PrintRepositories(repos []model.RepositoryDetail) error {
	tp := tableprinter.New(p.out, p.isTTY, p.maxWidth)
	tp.AddHeader([]string{"NAME", "VISIBILITY", "FLAGS", "PUSHED"})

	for _, r := range repos {
		tp.AddField(r.ID.String())
		tp.AddField(visibility(r))
		tp.AddField(flags(r), tableprinter.WithColor(p.mute))
		tp.AddField(formatTime(r.PushedAt))
		tp.EndRow()
	}

	return tp.Render()
}

// PrintStars prints starred repositories. Short output lists only names.
func (p *Printer) PrintStars(repos []model.RepositoryDetail, short bool) error {
	if short {
		for _, r := range repos {
			if _, err := fmt.Fprintln(p.out, r.ID.String()); err != nil {
				return fmt.Errorf("write star: %w", err)
			}
		}
		return nil
	}

	tp := tableprinter.New(p.out, p.isTTY, p.maxWidth)
	tp.AddHeader([]string{"NAME", "LANGUAGE", "DESCRIPTION"})

	for _, r := range repos {
		tp.AddField(r.ID.String())
		tp.AddField(r.Language)
		tp.AddField(r.Description, tableprinter.WithColor(p.mute))
		tp.EndRow()
	}

	return tp.Render()
}

// PrintCheckRuns prints the check runs of a commit followed by the reduced
// build status.
func (p *Printer) PrintCheckRuns(id model.RepoID, commit *model.Commit, runs []model.CheckRun, status model.BuildStatus) error {
	if commit == nil {
		_, err := fmt.Fprintf(p.out, "%s has no commits\n", id)
		return err
	}

	if _, err := fmt.Fprintf(p.out, "%s @ %s\n\n", id, shortSHA(commit.SHA)); err != nil {
		return err
	}

	tp := tableprinter.New(p.out, p.isTTY, p.maxWidth)
	tp.AddHeader([]string{"CHECK", "STATUS", "CONCLUSION", "STARTED"})

	for _, r := range runs {
		tp.AddField(r.Name)
		tp.AddField(r.Status)
		tp.AddField(r.Conclusion)
		tp.AddField(formatTime(r.StartedAt))
		tp.EndRow()
	}

	if err := tp.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(p.out, "\nbuild status: %s\n", p.status(status))
	return err
}

// PrintSettings prints the merge settings of a repository.
func (p *Printer) PrintSettings(id model.RepoID, s model.RepositorySettings) error {
	tp := tableprinter.New(p.out, p.isTTY, p.maxWidth)
	tp.AddHeader([]string{"SETTING", id.String()})

	rows := []struct {
		name  string
		value bool
	}{
		{"allow_rebase_merge", s.AllowRebaseMerge},
		{"allow_squash_merge", s.AllowSquashMerge},
		{"allow_auto_merge", s.AllowAutoMerge},
		{"delete_branch_on_merge", s.DeleteBranchOnMerge},
		{"allow_merge_commit", s.AllowMergeCommit},
	}
	for _, row := range rows {
		tp.AddField(row.name)
		tp.AddField(fmt.Sprintf("%t", row.value))
		tp.EndRow()
	}

	return tp.Render()
}

// Printf writes a formatted message line.
func (p *Printer) Printf(format string, args ...any) error {
	_, err := fmt.Fprintf(p.out, format+"\n", args...)
	return err
}

func (p *Printer) status(s model.BuildStatus) string {
	switch s {
	case model.BuildStatusSuccess:
		return p.success.Sprint(s.String())
	case model.BuildStatusInProgress:
		return p.inProgress.Sprint(s.String())
	case model.BuildStatusFailure:
		return p.failure.Sprint(s.String())
	default:
		return ""
	}
}

func (p *Printer) mute(s string) string {
	return p.muted.Sprint(s)
}

func visibility(r model.RepositoryDetail) string {
	if r.IsPrivate {
		return "private"
	}
	return "public"
}

func flags(r model.RepositoryDetail) string {
	var out []string
	if r.IsFork {
		out = append(out, "fork")
	}
	if r.IsArchived {
		out = append(out, "archived")
	}
	return strings.Join(out, ",")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
