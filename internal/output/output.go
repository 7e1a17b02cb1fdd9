// Package output renders solved-problem results for the CLI.
package output

import (
	"fmt"
	"strings"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// SolvedResult is one handle's solved slugs.
type SolvedResult struct {
	Handle string   `json:"handle" yaml:"handle"`
	Year   string   `json:"year,omitempty" yaml:"year,omitempty"`
	Month  string   `json:"month,omitempty" yaml:"month,omitempty"`
	Count  int      `json:"count" yaml:"count"`
	Slugs  []string `json:"slugs" yaml:"slugs"`
}

// NewSolvedResult builds a result, normalizing nil slugs to empty.
func NewSolvedResult(handle, year, month string, slugs []string) *SolvedResult {
	if slugs == nil {
		slugs = []string{}
	}
	return &SolvedResult{
		Handle: handle,
		Year:   year,
		Month:  month,
		Count:  len(slugs),
		Slugs:  slugs,
	}
}

// period describes the queried year/month for human-readable formats.
func (r *SolvedResult) period() string {
	switch {
	case r.Year == "" && r.Month == "":
		return "all time"
	case r.Month == "":
		return r.Year
	case r.Year == "":
		return "month " + r.Month
	default:
		return r.Year + "-" + r.Month
	}
}

// Formatter renders solved results.
type Formatter interface {
	FormatSolved(result *SolvedResult) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}
