package model

import (
	"fmt"
	"strings"
)

type SortKey string

const (
	SortByName        SortKey = "name"
	SortByDescription SortKey = "description"
	SortByURL         SortKey = "url"
	SortByCreatedAt   SortKey = "createdAt"
	SortByKind        SortKey = "kind"
)

func SortKeys() []SortKey {
	return []SortKey{SortByName, SortByDescription, SortByURL, SortByCreatedAt, SortByKind}
}

func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name":
		return SortByName, nil
	case "description", "desc":
		return SortByDescription, nil
	case "url":
		return SortByURL, nil
	case "createdat", "created", "created_at", "date":
		return SortByCreatedAt, nil
	case "kind", "type":
		return SortByKind, nil
	default:
		return "", fmt.Errorf("unknown sort key: %q", s)
	}
}

type SortDir int

const (
	Ascending SortDir = iota
	Descending
)

func (d SortDir) Flip() SortDir {
	if d == Ascending {
		return Descending
	}
	return Ascending
}

func (d SortDir) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

func ParseSortDir(s string) (SortDir, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return Ascending, fmt.Errorf("unknown sort direction: %q", s)
	}
}

// ViewState is the presentation state the view pipeline and panel machine read.
type ViewState struct {
	SortKey SortKey `json:"sortKey"`
	SortDir SortDir `json:"sortDir"`
	Filter  string  `json:"filter,omitempty"`

	// Expanded is the key of the row whose action panel is open (zero when none).
	Expanded Key `json:"expanded"`
	// Launched is the most recently opened row; persisted across sessions.
	Launched Key `json:"launched"`

	Scroll int `json:"scroll,omitempty"`
}

// DefaultViewState orders by creation date, newest first.
func DefaultViewState() ViewState {
	return ViewState{SortKey: SortByCreatedAt, SortDir: Descending}
}
