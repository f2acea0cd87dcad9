package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"projects-factory/internal/model"
)

const uiStateKey = "ui_state"

// UIState stores small, user-facing UI state for restoring the dashboard on relaunch.
//
// It is intentionally "best effort": callers should tolerate missing/invalid data.
type UIState struct {
	Version int `json:"version"`

	SortKey model.SortKey `json:"sortKey,omitempty"`
	SortDir string        `json:"sortDir,omitempty"`
	Filter  string        `json:"filter,omitempty"`

	// Launched is the most recently opened project; it seeds "launch next".
	Launched model.Key `json:"launched"`
}

// ApplyTo copies the persisted fields over v, ignoring anything unparseable.
func (st UIState) ApplyTo(v *model.ViewState) {
	if v == nil {
		return
	}
	if k, err := model.ParseSortKey(string(st.SortKey)); err == nil {
		v.SortKey = k
		if d, err := model.ParseSortDir(st.SortDir); err == nil {
			v.SortDir = d
		}
	}
	v.Filter = st.Filter
	v.Launched = st.Launched
}

func UIStateFromView(v model.ViewState) UIState {
	return UIState{
		Version:  1,
		SortKey:  v.SortKey,
		SortDir:  v.SortDir.String(),
		Filter:   v.Filter,
		Launched: v.Launched,
	}
}

func (s Store) LoadUIState(ctx context.Context) (*UIState, error) {
	if strings.TrimSpace(s.Dir) == "" {
		return &UIState{Version: 1}, nil
	}
	raw, ok, err := s.getMeta(ctx, uiStateKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &UIState{Version: 1}, nil
	}
	var st UIState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		// Best-effort; if corrupted, treat as missing.
		return &UIState{Version: 1}, nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	return &st, nil
}

func (s Store) SaveUIState(ctx context.Context, st *UIState) error {
	if st == nil || strings.TrimSpace(s.Dir) == "" {
		return nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.setMeta(ctx, uiStateKey, string(b), time.Now().UTC().UnixMilli())
}
