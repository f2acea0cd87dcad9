// Package reconcile keeps the on-screen row tree in sync with the view
// pipeline's output without rebuilding rows that did not change.
package reconcile

import (
	"sort"
	"strconv"
	"strings"

	"projects-factory/internal/model"
)

// Renderer paints row content and the expanded detail panel.
type Renderer interface {
	RenderRow(e Entry) string
	RenderDetail(e Entry, aux *Aux) string
}

type Stats struct {
	Created int
	Patched int
	Removed int
	Moved   int
}

type Reconciler struct {
	tree     Tree
	nodes    map[model.Key]*Row
	renderer Renderer
}

// New returns an empty reconciler. A nil r falls back to TextRenderer.
func New(r Renderer) *Reconciler {
	if r == nil {
		r = TextRenderer{}
	}
	return &Reconciler{nodes: map[model.Key]*Row{}, renderer: r}
}

// TextRenderer paints rows as a single unstyled line. Headless callers such as
// the CLI use it; the TUI swaps in its template renderer.
type TextRenderer struct{}

func (TextRenderer) RenderRow(e Entry) string {
	p := e.Project
	parts := []string{strconv.Itoa(p.RowNumber), p.Name, p.KindLabel()}
	if e.Installed {
		parts = append(parts, "installed")
	}
	if e.Busy {
		parts = append(parts, "busy")
	}
	return strings.Join(parts, " ")
}

func (TextRenderer) RenderDetail(e Entry, aux *Aux) string {
	lines := []string{e.Project.URL}
	if d := strings.TrimSpace(e.Project.Description); d != "" {
		lines = append(lines, d)
	}
	if aux != nil && aux.Readme != "" {
		lines = append(lines, aux.Readme)
	}
	return strings.Join(lines, "\n")
}

func (rc *Reconciler) Tree() *Tree { return &rc.tree }

func (rc *Reconciler) Node(key model.Key) (*Row, bool) {
	r, ok := rc.nodes[key]
	return r, ok
}

// Reconcile brings the tree to exactly entries, in order. Rows are reused by key,
// repainted only when their Entry changed, and moved as little as possible.
// The row whose key equals expanded carries a Detail; every other row has none.
func (rc *Reconciler) Reconcile(entries []Entry, expanded model.Key) Stats {
	var st Stats

	want := make(map[model.Key]bool, len(entries))
	for _, e := range entries {
		want[e.Key()] = true
	}
	for _, r := range rc.tree.Rows() {
		if !want[r.Key] {
			rc.tree.remove(r)
			delete(rc.nodes, r.Key)
			st.Removed++
		}
	}

	desired := make([]*Row, 0, len(entries))
	fresh := make(map[*Row]bool)
	for _, e := range entries {
		key := e.Key()
		r, ok := rc.nodes[key]
		if !ok {
			r = &Row{Key: key, Entry: e, Content: rc.renderer.RenderRow(e)}
			rc.nodes[key] = r
			fresh[r] = true
			st.Created++
		} else if r.Entry != e {
			r.Entry = e
			r.Content = rc.renderer.RenderRow(e)
			st.Patched++
		}
		rc.syncDetail(r, key == expanded)
		desired = append(desired, r)
	}

	st.Moved = rc.reorder(desired, fresh)
	return st
}

// syncDetail attaches, regenerates, or drops r's panel. The Detail pointer is
// kept across regenerations so async aux data stays attached.
func (rc *Reconciler) syncDetail(r *Row, expanded bool) {
	if !expanded {
		r.Detail = nil
		return
	}
	if r.Detail == nil {
		r.Detail = &Detail{}
	}
	r.Detail.Body = rc.renderer.RenderDetail(r.Entry, r.Detail.Aux)
}

// reorder walks desired from the end, inserting fresh rows before the running
// anchor and moving existing rows only when they fall outside the longest run
// already in the right relative order.
func (rc *Reconciler) reorder(desired []*Row, fresh map[*Row]bool) int {
	pos := make(map[*Row]int, len(rc.tree.children))
	for i, r := range rc.tree.children {
		pos[r] = i
	}
	seq := make([]int, len(desired))
	for i, r := range desired {
		if fresh[r] {
			seq[i] = -1
		} else {
			seq[i] = pos[r]
		}
	}
	stable := longestIncreasing(seq)

	moves := 0
	var anchor *Row
	for i := len(desired) - 1; i >= 0; i-- {
		r := desired[i]
		switch {
		case fresh[r]:
			rc.tree.insertBefore(r, anchor)
		case stable[i]:
		case rc.tree.next(r) != anchor:
			rc.tree.insertBefore(r, anchor)
			moves++
		}
		anchor = r
	}
	return moves
}

// longestIncreasing marks the indices of one longest strictly increasing
// subsequence of seq, ignoring negative entries.
func longestIncreasing(seq []int) map[int]bool {
	var tails []int // indices into seq
	prev := make([]int, len(seq))
	for i, v := range seq {
		prev[i] = -1
		if v < 0 {
			continue
		}
		j := sort.Search(len(tails), func(k int) bool { return seq[tails[k]] >= v })
		if j > 0 {
			prev[i] = tails[j-1]
		}
		if j == len(tails) {
			tails = append(tails, i)
		} else {
			tails[j] = i
		}
	}
	out := make(map[int]bool, len(tails))
	if len(tails) == 0 {
		return out
	}
	for i := tails[len(tails)-1]; i >= 0; i = prev[i] {
		out[i] = true
	}
	return out
}

// Rekey moves a node to a new key in place (rename, publish). The next
// Reconcile patches its content from the renamed record.
func (rc *Reconciler) Rekey(from, to model.Key) bool {
	r, ok := rc.nodes[from]
	if !ok || from == to {
		return ok
	}
	if _, clash := rc.nodes[to]; clash {
		return false
	}
	delete(rc.nodes, from)
	r.Key = to
	rc.nodes[to] = r
	return true
}

// SetRenderer swaps the presentation and repaints every row and panel.
func (rc *Reconciler) SetRenderer(r Renderer) int {
	if r == nil {
		r = TextRenderer{}
	}
	rc.renderer = r
	return rc.Repaint()
}

// Repaint re-renders every row regardless of Entry equality.
func (rc *Reconciler) Repaint() int {
	for _, r := range rc.tree.children {
		r.Content = rc.renderer.RenderRow(r.Entry)
		if r.Detail != nil {
			r.Detail.Body = rc.renderer.RenderDetail(r.Entry, r.Detail.Aux)
		}
	}
	return len(rc.tree.children)
}

// SetAux stores asynchronously loaded panel data. It is dropped when the row
// has collapsed or disappeared in the meantime.
func (rc *Reconciler) SetAux(key model.Key, aux *Aux) bool {
	r, ok := rc.nodes[key]
	if !ok || r.Detail == nil {
		return false
	}
	r.Detail.Aux = aux
	r.Detail.Body = rc.renderer.RenderDetail(r.Entry, aux)
	return true
}

func (rc *Reconciler) SetEditor(key model.Key, ed *Editor) bool {
	r, ok := rc.nodes[key]
	if !ok {
		return false
	}
	r.Editor = ed
	return true
}

// DiscardEditor drops key's edit buffer so the row shows its record text again.
func (rc *Reconciler) DiscardEditor(key model.Key) {
	if r, ok := rc.nodes[key]; ok {
		r.Editor = nil
	}
}

// Editors returns every open edit buffer, for dev-session snapshots.
func (rc *Reconciler) Editors() map[model.Key]Editor {
	out := map[model.Key]Editor{}
	for k, r := range rc.nodes {
		if r.Editor != nil {
			out[k] = *r.Editor
		}
	}
	return out
}
