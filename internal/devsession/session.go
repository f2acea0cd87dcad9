// Package devsession carries dashboard state across a live reload of the
// presentation files in --dev mode.
package devsession

import (
	"encoding/json"
	"fmt"
	"sort"

	"projects-factory/internal/model"
)

const sessionVersion = 1

// EditorState is an unsaved in-place edit buffer.
type EditorState struct {
	Key      model.Key `json:"key"`
	Field    string    `json:"field"`
	Value    string    `json:"value"`
	Original string    `json:"original"`
}

// Session is everything needed to put the dashboard back the way it was
// without a network load.
type Session struct {
	Version int             `json:"version"`
	Store   model.Snapshot  `json:"store"`
	View    model.ViewState `json:"view"`
	Editors []EditorState   `json:"editors,omitempty"`
}

// SortEditors orders editors by key so encoded sessions are stable.
func (s *Session) SortEditors() {
	sort.Slice(s.Editors, func(i, j int) bool {
		a, b := s.Editors[i].Key, s.Editors[j].Key
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.URL < b.URL
	})
}

func Encode(s Session) ([]byte, error) {
	s.Version = sessionVersion
	s.SortEditors()
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode dev session: %w", err)
	}
	return b, nil
}

func Decode(b []byte) (Session, error) {
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return Session{}, fmt.Errorf("decode dev session: %w", err)
	}
	if s.Version != sessionVersion {
		return Session{}, fmt.Errorf("decode dev session: unsupported version %d", s.Version)
	}
	return s, nil
}
