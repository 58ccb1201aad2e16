package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/cookiewatch/cookiewatch/internal/model"
)

// TableFormatter formats output as a terminal table
type TableFormatter struct {
	// Now is the reference time for age columns; defaults to time.Now.
	Now func() time.Time
}

func (f *TableFormatter) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// FormatIssues outputs tracked issues as a table
func (f *TableFormatter) FormatIssues(issues []model.Issue, w io.Writer) error {
	if len(issues) == 0 {
		fmt.Fprintln(w, "No tracked issues.")
		return nil
	}

	const (
		colIssue    = 28
		colTitle    = 40
		colAssignee = 16
		colStatus   = 10
	)

	fmt.Fprintf(w, "%-*s  %-*s  %-*s  %-*s  %s\n",
		colIssue, "Issue",
		colTitle, "Title",
		colAssignee, "Assignee",
		colStatus, "Status",
		"Activity")
	fmt.Fprintln(w, strings.Repeat("-", colIssue+colTitle+colAssignee+colStatus+16))

	now := f.now()
	for _, issue := range issues {
		key := truncateToWidth(issue.Key(), colIssue)
		title := truncateToWidth(issue.Title, colTitle)
		assignee := issue.Assignee
		if assignee == "" {
			assignee = "-"
		}
		assignee = truncateToWidth(assignee, colAssignee)

		statusPlain := string(issue.Status)
		status := padRight(colorStatus(issue.Status), displayWidth(statusPlain), colStatus)

		age := "-"
		if !issue.LastActivityAt.IsZero() {
			age = formatAge(now.Sub(issue.LastActivityAt))
		}

		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			padRight(key, displayWidth(key), colIssue),
			padRight(title, displayWidth(title), colTitle),
			padRight(assignee, displayWidth(assignee), colAssignee),
			status,
			age)
	}

	printIssueSummary(issues, w)
	return nil
}

// FormatContributors outputs contributor trust snapshots as a table
func (f *TableFormatter) FormatContributors(contributors []model.Contributor, w io.Writer) error {
	if len(contributors) == 0 {
		fmt.Fprintln(w, "No contributors scored yet.")
		return nil
	}

	const (
		colUsername = 20
		colScore    = 7
	)

	fmt.Fprintf(w, "%-*s  %*s  %-s\n",
		colUsername, "Contributor",
		colScore, "Score",
		"Tag")
	fmt.Fprintln(w, strings.Repeat("-", colUsername+colScore+30))

	for _, c := range contributors {
		username := truncateToWidth(c.Username, colUsername)
		fmt.Fprintf(w, "%s  %*.1f  %s\n",
			padRight(username, displayWidth(username), colUsername),
			colScore, c.TrustScore,
			colorTag(c.Tag))
	}

	return nil
}

// printIssueSummary prints a footer with the counts that need attention.
func printIssueSummary(issues []model.Issue, w io.Writer) {
	var stale, reminded, released int
	for _, issue := range issues {
		switch issue.Status {
		case model.StatusStale:
			stale++
		case model.StatusReminded:
			reminded++
		case model.StatusReleased:
			released++
		}
	}

	if stale == 0 && reminded == 0 && released == 0 {
		return
	}

	fmt.Fprintln(w)
	if stale > 0 {
		fmt.Fprintf(w, "  %s %d stale issues\n", color.YellowString("●"), stale)
	}
	if reminded > 0 {
		fmt.Fprintf(w, "  %s %d assignees reminded\n", color.CyanString("○"), reminded)
	}
	if released > 0 {
		fmt.Fprintf(w, "  %s %d issues released\n", color.RedString("●"), released)
	}
}

func colorStatus(s model.IssueStatus) string {
	switch s {
	case model.StatusStale:
		return color.YellowString(string(s))
	case model.StatusReminded:
		return color.CyanString(string(s))
	case model.StatusReleased:
		return color.RedString(string(s))
	case model.StatusAssigned:
		return color.GreenString(string(s))
	default:
		return string(s)
	}
}

func colorTag(t model.Tag) string {
	switch t {
	case model.TagReliable:
		return color.GreenString(string(t))
	case model.TagActive:
		return color.CyanString(string(t))
	default:
		return color.YellowString(string(t))
	}
}

// displayWidth returns the visible width of a string in terminal columns
// accounting for wide characters like emojis (which take 2 columns)
func displayWidth(s string) int {
	return runewidth.StringWidth(s)
}

// truncateToWidth truncates a string to fit within maxWidth display columns
func truncateToWidth(s string, maxWidth int) string {
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}

	cutWidth := 0
	for i, r := range s {
		rw := runewidth.RuneWidth(r)
		if cutWidth+rw > maxWidth-3 { // Leave room for "..."
			return s[:i] + "..."
		}
		cutWidth += rw
	}
	return s
}

// padRight pads a string with spaces to reach the target visible width
func padRight(s string, visibleWidth, targetWidth int) string {
	if visibleWidth >= targetWidth {
		return s
	}
	return s + strings.Repeat(" ", targetWidth-visibleWidth)
}

func formatAge(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}
	weeks := days / 7
	if weeks < 4 {
		return fmt.Sprintf("%dw", weeks)
	}
	months := days / 30
	return fmt.Sprintf("%dmo", months)
}
