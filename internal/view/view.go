// Package view turns the entity store's records into the ordered, filtered
// sequence of rows the dashboard shows. Everything here is a pure function.
package view

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"projects-factory/internal/model"
)

// DateLayout is how timestamps appear in the table and in the filter haystack.
const DateLayout = "2006-01-02 15:04"

// Apply filters records by filterText and orders them by (key, dir). The input
// slice is not modified.
func Apply(records []model.Project, key model.SortKey, dir model.SortDir, filterText string) []model.Project {
	out := Filter(records, filterText)
	Sort(out, key, dir)
	return out
}

// Sort orders records in place. Direction only flips the primary comparison;
// ties always fall back to name (case-insensitive, ascending), then url.
func Sort(records []model.Project, key model.SortKey, dir model.SortDir) {
	// Collators keep internal buffers and are not safe for concurrent use.
	c := collate.New(language.Und, collate.IgnoreCase)

	primary := func(a, b model.Project) int {
		switch key {
		case model.SortByName:
			return c.CompareString(a.Name, b.Name)
		case model.SortByDescription:
			return c.CompareString(a.Description, b.Description)
		case model.SortByURL:
			return c.CompareString(a.URL, b.URL)
		case model.SortByKind:
			return cmpInt64(int64(a.KindRank()), int64(b.KindRank()))
		default:
			return cmpInt64(a.CreatedEpoch(), b.CreatedEpoch())
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if r := primary(a, b); r != 0 {
			if dir == model.Descending {
				return r > 0
			}
			return r < 0
		}
		if r := c.CompareString(a.Name, b.Name); r != 0 {
			return r < 0
		}
		if a.URL != b.URL {
			return a.URL < b.URL
		}
		return a.Name < b.Name
	})
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Tokens splits filter text into lower-cased, whitespace-separated tokens.
func Tokens(filterText string) []string {
	return strings.Fields(strings.ToLower(filterText))
}

// Filter keeps records whose haystack contains every token. An empty filter
// keeps everything. The result is always a fresh slice.
func Filter(records []model.Project, filterText string) []model.Project {
	tokens := Tokens(filterText)
	out := make([]model.Project, 0, len(records))
	for _, p := range records {
		if len(tokens) == 0 || matches(Haystack(p), tokens) {
			out = append(out, p)
		}
	}
	return out
}

func matches(haystack string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(haystack, tok) {
			return false
		}
	}
	return true
}

// Haystack is the lower-cased text a record is filtered against.
func Haystack(p model.Project) string {
	parts := []string{p.Name, p.Description, p.URL}
	if d := FormatDate(p); d != "" {
		parts = append(parts, d)
	}
	if l := p.PrivacyLabel(); l != "" {
		parts = append(parts, l)
	}
	parts = append(parts, p.KindLabel())
	return strings.ToLower(strings.Join(parts, " "))
}

// FormatDate renders CreatedAt with DateLayout, or "" when unparseable.
func FormatDate(p model.Project) string {
	t, ok := p.CreatedTime()
	if !ok {
		return ""
	}
	return t.Format(DateLayout)
}
