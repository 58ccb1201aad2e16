// Package output renders tracked issues and contributor trust snapshots
// for the terminal.
package output

import (
	"io"

	"github.com/cookiewatch/cookiewatch/internal/model"
)

// Format represents the output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// Formatter defines the interface for output formatters
type Formatter interface {
	FormatIssues(issues []model.Issue, w io.Writer) error
	FormatContributors(contributors []model.Contributor, w io.Writer) error
}

// NewFormatter creates a formatter for the specified format
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	default:
		return &TableFormatter{}
	}
}
