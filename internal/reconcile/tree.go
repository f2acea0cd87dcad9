package reconcile

import "projects-factory/internal/model"

// Entry is everything a row's rendering depends on. Rows are repainted only
// when their Entry changes by value.
type Entry struct {
	Project   model.Project
	Installed bool
	Busy      bool
}

func (e Entry) Key() model.Key { return e.Project.Key() }

// Editor is an in-place edit buffer (rename/describe) attached to a row.
type Editor struct {
	Field    string
	Value    string
	Original string
}

// Aux is panel data fetched asynchronously after a row expands.
type Aux struct {
	Loading     bool
	Readme      string
	Screenshots []string
	Err         string
}

// Detail is the expanded action panel hanging off a row.
type Detail struct {
	Body string
	Aux  *Aux
}

// Row is a node of the visual tree. Its pointer identity is stable for as long
// as its key stays visible.
type Row struct {
	Key     model.Key
	Entry   Entry
	Content string

	Editor *Editor
	Detail *Detail
}

// Tree is the ordered list of row nodes currently on screen.
type Tree struct {
	children []*Row
}

func (t *Tree) Rows() []*Row {
	out := make([]*Row, len(t.children))
	copy(out, t.children)
	return out
}

func (t *Tree) Len() int { return len(t.children) }

func (t *Tree) Keys() []model.Key {
	out := make([]model.Key, len(t.children))
	for i, r := range t.children {
		out[i] = r.Key
	}
	return out
}

func (t *Tree) indexOf(r *Row) int {
	for i, c := range t.children {
		if c == r {
			return i
		}
	}
	return -1
}

// next returns the sibling after r, nil when r is last.
func (t *Tree) next(r *Row) *Row {
	i := t.indexOf(r)
	if i < 0 || i+1 >= len(t.children) {
		return nil
	}
	return t.children[i+1]
}

func (t *Tree) remove(r *Row) {
	i := t.indexOf(r)
	if i < 0 {
		return
	}
	t.children = append(t.children[:i], t.children[i+1:]...)
}

// insertBefore places r before anchor, or at the end when anchor is nil.
// r is detached first if it is already in the tree.
func (t *Tree) insertBefore(r, anchor *Row) {
	t.remove(r)
	i := len(t.children)
	if anchor != nil {
		if j := t.indexOf(anchor); j >= 0 {
			i = j
		}
	}
	t.children = append(t.children, nil)
	copy(t.children[i+1:], t.children[i:])
	t.children[i] = r
}
