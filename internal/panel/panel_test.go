package panel

import (
	"testing"

	"projects-factory/internal/model"
)

var (
	keyA = model.Key{Name: "a", URL: "https://github.com/me/a"}
	keyB = model.Key{Name: "b", URL: "https://github.com/me/b"}
)

func TestToggle_OpenCloseAndSwitch(t *testing.T) {
	var m Machine

	tr := m.Toggle(keyA)
	if tr.Opened != keyA || !tr.Closed.IsZero() || !tr.LoadAux {
		t.Fatalf("unexpected transition opening a: %#v", tr)
	}

	tr = m.Toggle(keyB)
	if tr.Closed != keyA || tr.Opened != keyB {
		t.Fatalf("expected a single a->b transition; got %#v", tr)
	}
	if m.IsExpanded(keyA) || !m.IsExpanded(keyB) {
		t.Fatalf("expected only b expanded; got %v", m.Expanded())
	}

	tr = m.Toggle(keyB)
	if tr.Closed != keyB || !tr.Opened.IsZero() || tr.LoadAux {
		t.Fatalf("unexpected transition collapsing b: %#v", tr)
	}
	if !m.Expanded().IsZero() {
		t.Fatalf("expected nothing expanded")
	}
}

func TestClickOutside(t *testing.T) {
	var m Machine
	if tr := m.ClickOutside(); tr != (Transition{}) {
		t.Fatalf("expected no-op; got %#v", tr)
	}
	m.Toggle(keyA)
	if tr := m.ClickOutside(); tr.Closed != keyA {
		t.Fatalf("expected a closed; got %#v", tr)
	}
	if !m.Expanded().IsZero() {
		t.Fatalf("expected collapse")
	}
}

func TestOnMutationSuccess_OnlyCollapsesMatchingKey(t *testing.T) {
	var m Machine
	m.Toggle(keyA)
	if m.OnMutationSuccess(keyB) {
		t.Fatalf("expected other key to leave panel alone")
	}
	if !m.OnMutationSuccess(keyA) || !m.Expanded().IsZero() {
		t.Fatalf("expected a to collapse")
	}
}

func TestRetargetAndForget(t *testing.T) {
	var m Machine
	m.Toggle(keyA)
	renamed := model.Key{Name: "a2", URL: "https://github.com/me/a2"}
	if !m.Retarget(keyA, renamed) || !m.IsExpanded(renamed) {
		t.Fatalf("expected panel to follow rename")
	}
	if m.Forget(keyA) {
		t.Fatalf("old key is no longer expanded")
	}
	if !m.Forget(renamed) || !m.Expanded().IsZero() {
		t.Fatalf("expected forget to collapse")
	}
}
