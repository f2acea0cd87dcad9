// Package panel holds the expand/collapse state of per-row action panels.
// At most one row is expanded at a time.
package panel

import "projects-factory/internal/model"

// Transition describes what a Toggle did. Closed and Opened are zero keys when
// nothing closed or opened.
type Transition struct {
	Closed model.Key
	Opened model.Key

	// LoadAux asks the caller to fetch the opened row's README and screenshots.
	LoadAux bool
}

type Machine struct {
	expanded model.Key
}

func (m *Machine) Expanded() model.Key { return m.expanded }

func (m *Machine) IsExpanded(key model.Key) bool {
	return !key.IsZero() && m.expanded == key
}

// Toggle collapses key when it is open; otherwise it closes whichever row is
// open and opens key, as one transition.
func (m *Machine) Toggle(key model.Key) Transition {
	if key.IsZero() {
		return Transition{}
	}
	if m.expanded == key {
		m.expanded = model.Key{}
		return Transition{Closed: key}
	}
	tr := Transition{Closed: m.expanded, Opened: key, LoadAux: true}
	m.expanded = key
	return tr
}

// Open expands key without toggling (used to restore state).
func (m *Machine) Open(key model.Key) {
	m.expanded = key
}

func (m *Machine) ClickOutside() Transition {
	return m.collapse()
}

// OnMutationSuccess collapses the panel when key is the expanded row.
func (m *Machine) OnMutationSuccess(key model.Key) bool {
	if !m.IsExpanded(key) {
		return false
	}
	m.collapse()
	return true
}

// Retarget follows a rename: the panel stays open under the new key.
func (m *Machine) Retarget(from, to model.Key) bool {
	if !m.IsExpanded(from) {
		return false
	}
	m.expanded = to
	return true
}

// Forget collapses when key is expanded but no longer exists.
func (m *Machine) Forget(key model.Key) bool {
	if !m.IsExpanded(key) {
		return false
	}
	m.collapse()
	return true
}

func (m *Machine) collapse() Transition {
	if m.expanded.IsZero() {
		return Transition{}
	}
	tr := Transition{Closed: m.expanded}
	m.expanded = model.Key{}
	return tr
}
