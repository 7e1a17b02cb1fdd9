package gfg

import (
	"encoding/json"
	"sort"
	"strings"
)

type problem struct {
	Slug json.RawMessage `json:"slug"`
}

// FlattenSlugs walks result two levels deep (level -> problem) and collects
// each problem's slug. Non-object entries and slugs that are not non-empty
// strings are skipped. The returned slice is lowercase, unique, sorted and
// never nil.
func FlattenSlugs(result map[string]json.RawMessage) []string {
	seen := make(map[string]struct{})

	for _, rawLevel := range result {
		var level map[string]json.RawMessage
		if err := json.Unmarshal(rawLevel, &level); err != nil {
			continue
		}

		for _, rawProblem := range level {
			var p problem
			if err := json.Unmarshal(rawProblem, &p); err != nil {
				continue
			}

			var slug string
			if err := json.Unmarshal(p.Slug, &slug); err != nil || slug == "" {
				continue
			}
			seen[strings.ToLower(slug)] = struct{}{}
		}
	}

	slugs := make([]string, 0, len(seen))
	for slug := range seen {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}
