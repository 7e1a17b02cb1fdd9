package output

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatTable},
		{"table", FormatTable},
		{"JSON", FormatJSON},
		{"yaml", FormatYAML},
		{"yml", FormatYAML},
		{" markdown ", FormatMarkdown},
		{"md", FormatMarkdown},
	}
	for _, tt := range tests {
		format, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, format, tt.in)
	}

	_, err := ParseFormat("csv")
	require.Error(t, err)
}

func TestNewSolvedResultNormalizesNil(t *testing.T) {
	result := NewSolvedResult("alice", "", "", nil)
	require.NotNil(t, result.Slugs)
	require.Zero(t, result.Count)
}

func TestJSONFormatter(t *testing.T) {
	result := NewSolvedResult("alice", "2024", "", []string{"lru-cache", "two-sum"})

	rendered, err := NewFormatter(FormatJSON).FormatSolved(result)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Equal(t, "alice", decoded["handle"])
	require.Equal(t, "2024", decoded["year"])
	require.NotContains(t, decoded, "month")
	require.Equal(t, float64(2), decoded["count"])
	require.Equal(t, []any{"lru-cache", "two-sum"}, decoded["slugs"])

	rendered, err = (&JSONFormatter{}).FormatSolved(NewSolvedResult("bob", "", "", nil))
	require.NoError(t, err)
	require.Contains(t, rendered, `"slugs":[]`)
}

func TestYAMLFormatter(t *testing.T) {
	rendered, err := NewFormatter(FormatYAML).FormatSolved(NewSolvedResult("alice", "", "5", []string{"two-sum"}))
	require.NoError(t, err)

	var decoded SolvedResult
	require.NoError(t, yaml.Unmarshal([]byte(rendered), &decoded))
	require.Equal(t, "alice", decoded.Handle)
	require.Equal(t, "5", decoded.Month)
	require.Equal(t, []string{"two-sum"}, decoded.Slugs)
}

func TestTableFormatter(t *testing.T) {
	rendered, err := NewFormatter(FormatTable).FormatSolved(NewSolvedResult("alice", "2024", "3", []string{"lru-cache", "two-sum"}))
	require.NoError(t, err)

	lower := strings.ToLower(rendered)
	require.Contains(t, lower, "alice (2024-3)")
	require.Contains(t, lower, "lru-cache")
	require.Contains(t, lower, "two-sum")
	require.Contains(t, lower, "2 solved")
}

func TestMarkdownFormatter(t *testing.T) {
	rendered, err := NewFormatter(FormatMarkdown).FormatSolved(NewSolvedResult("a_b", "", "", []string{"two-sum"}))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rendered, "## a\\_b solved problems (all time)"))
	require.Contains(t, rendered, "- `two-sum`")

	rendered, err = NewFormatter(FormatMarkdown).FormatSolved(NewSolvedResult("bob", "2023", "", nil))
	require.NoError(t, err)
	require.Contains(t, rendered, "(2023)")
	require.Contains(t, rendered, "_No solved problems._")
}

func TestFormattersHandleNil(t *testing.T) {
	for _, format := range []Format{FormatTable, FormatJSON, FormatYAML, FormatMarkdown} {
		rendered, err := NewFormatter(format).FormatSolved(nil)
		require.NoError(t, err)
		require.Empty(t, rendered)
	}
}
