package output

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders results as a markdown list.
type MarkdownFormatter struct{}

// FormatSolved renders a result as Markdown.
func (f *MarkdownFormatter) FormatSolved(result *SolvedResult) (string, error) {
	if result == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s solved problems (%s)\n\n", escapeMarkdown(result.Handle), result.period()))

	if len(result.Slugs) == 0 {
		sb.WriteString("_No solved problems._\n")
		return sb.String(), nil
	}

	for _, slug := range result.Slugs {
		sb.WriteString(fmt.Sprintf("- `%s`\n", slug))
	}
	sb.WriteString(fmt.Sprintf("\n**Total**: %d\n", result.Count))
	return sb.String(), nil
}

func escapeMarkdown(value string) string {
	replacer := strings.NewReplacer("|", "\\|", "*", "\\*", "_", "\\_", "`", "\\`")
	return replacer.Replace(value)
}
