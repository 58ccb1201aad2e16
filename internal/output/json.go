package output

import (
	"encoding/json"
	"io"

	"github.com/cookiewatch/cookiewatch/internal/model"
)

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Pretty bool
}

// FormatIssues outputs tracked issues as JSON
func (f *JSONFormatter) FormatIssues(issues []model.Issue, w io.Writer) error {
	encoder := json.NewEncoder(w)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(issues)
}

// FormatContributors outputs contributor snapshots as JSON
func (f *JSONFormatter) FormatContributors(contributors []model.Contributor, w io.Writer) error {
	encoder := json.NewEncoder(w)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(contributors)
}
