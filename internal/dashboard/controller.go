// Package dashboard owns the dashboard's mutable state: the entity store, the
// view state, the panel machine, the mutation coordinator and the reconciled
// row tree. Every method must be called from the goroutine that owns the
// Controller (the TUI update loop, or the caller in CLI commands and tests).
package dashboard

import (
	"context"
	"time"

	"projects-factory/internal/devsession"
	"projects-factory/internal/logging"
	"projects-factory/internal/model"
	"projects-factory/internal/mutate"
	"projects-factory/internal/panel"
	"projects-factory/internal/reconcile"
	"projects-factory/internal/remote"
	"projects-factory/internal/store"
	"projects-factory/internal/view"
)

const persistTimeout = 2 * time.Second

// Change is passed to subscribers after every render pass.
type Change struct {
	Reason string
	Stats  reconcile.Stats
}

type Hook func(Change)

type Options struct {
	Backend  remote.Backend
	Renderer reconcile.Renderer
	// State persists view state between sessions; nil disables persistence.
	State   *store.Store
	Metrics *mutate.Metrics
	Logger  *logging.Logger
}

type Controller struct {
	db      *store.DB
	view    model.ViewState
	panel   panel.Machine
	coord   *mutate.Coordinator
	rc      *reconcile.Reconciler
	backend remote.Backend
	state   *store.Store
	log     *logging.Logger

	hooks  []subscriber
	nextID int

	notice mutate.Notice
	loaded bool
}

func New(opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = logging.NopLogger()
	}
	db := store.NewDB()
	return &Controller{
		db:      db,
		view:    model.DefaultViewState(),
		coord:   mutate.NewCoordinator(db, opts.Metrics, log),
		rc:      reconcile.New(opts.Renderer),
		backend: opts.Backend,
		state:   opts.State,
		log:     log.With("component", "dashboard"),
	}
}

func (c *Controller) Backend() remote.Backend { return c.backend }

// DB exposes the entity store for read access.
func (c *Controller) DB() *store.DB { return c.db }

func (c *Controller) View() model.ViewState {
	v := c.view
	v.Expanded = c.panel.Expanded()
	return v
}

func (c *Controller) Loaded() bool { return c.loaded }

// Notice is the most recent action outcome.
func (c *Controller) Notice() mutate.Notice { return c.notice }

func (c *Controller) SetNotice(n mutate.Notice) { c.notice = n }

// Subscribe registers fn to run after each render pass and returns a function
// that removes it.
func (c *Controller) Subscribe(fn Hook) func() {
	id := c.nextID
	c.nextID++
	c.hooks = append(c.hooks, subscriber{id: id, fn: fn})
	return func() {
		for i, h := range c.hooks {
			if h.id == id {
				c.hooks = append(c.hooks[:i:i], c.hooks[i+1:]...)
				return
			}
		}
	}
}

// subscriber keeps hooks in registration order.
type subscriber struct {
	id int
	fn Hook
}

func (c *Controller) notify(ch Change) {
	for _, h := range c.hooks {
		h.fn(ch)
	}
}

// RestoreUIState applies persisted sort, filter and launched key. Missing or
// unreadable state leaves the defaults in place.
func (c *Controller) RestoreUIState(ctx context.Context) {
	if c.state == nil {
		return
	}
	st, err := c.state.LoadUIState(ctx)
	if err != nil {
		c.log.Warn("load ui state", "error", err)
		return
	}
	st.ApplyTo(&c.view)
}

func (c *Controller) persistUIState() {
	if c.state == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	st := store.UIStateFromView(c.view)
	if err := c.state.SaveUIState(ctx, &st); err != nil {
		c.log.Warn("save ui state", "error", err)
	}
}

// Load replaces the store with a fresh snapshot from the backend. On failure
// the previous records stay on screen and a failure notice is set.
func (c *Controller) Load(ctx context.Context) error {
	return c.LoadWith(ctx, c.backend)
}

// LoadWith is Load from an explicit loader, used when the snapshot was fetched
// off the owning goroutine.
func (c *Controller) LoadWith(ctx context.Context, l store.Loader) error {
	if err := c.db.Load(ctx, l); err != nil {
		c.notice = mutate.Notice{Level: mutate.LevelFailure, Text: "Load failed: " + remote.Detail(err)}
		c.log.Warn("load failed", "error", err)
		c.render("load-failed")
		return err
	}
	c.loaded = true
	c.forgetMissing()
	c.render("load")
	return nil
}

// VisibleRows is the view pipeline's output for the current state.
func (c *Controller) VisibleRows() []model.Project {
	return view.Apply(c.db.Projects, c.view.SortKey, c.view.SortDir, c.view.Filter)
}

// Rows returns the reconciled row nodes in display order.
func (c *Controller) Rows() []*reconcile.Row { return c.rc.Tree().Rows() }

func (c *Controller) Node(key model.Key) (*reconcile.Row, bool) { return c.rc.Node(key) }

type Header struct {
	Account        model.Account
	Counters       store.Counters
	Columns        []view.Column
	Filter         string
	InFlight       int
	DefaultMessage string
}

func (c *Controller) HeaderCounters() Header {
	return Header{
		Account:        c.db.Account,
		Counters:       c.db.Counters(),
		Columns:        view.Header(c.view),
		Filter:         c.view.Filter,
		InFlight:       c.coord.InFlightCount(),
		DefaultMessage: c.db.Account.DefaultMessage,
	}
}

func (c *Controller) entries() []reconcile.Entry {
	rows := c.VisibleRows()
	out := make([]reconcile.Entry, len(rows))
	for i, p := range rows {
		out[i] = reconcile.Entry{
			Project:   p,
			Installed: c.db.IsInstalled(p),
			Busy:      c.coord.InFlight(p.Key()),
		}
	}
	return out
}

// Render runs the view pipeline and reconciler, then notifies subscribers.
func (c *Controller) Render() reconcile.Stats { return c.render("render") }

func (c *Controller) render(reason string) reconcile.Stats {
	st := c.rc.Reconcile(c.entries(), c.panel.Expanded())
	c.log.Debug("reconciled", "reason", reason,
		"created", st.Created, "patched", st.Patched, "removed", st.Removed, "moved", st.Moved)
	c.notify(Change{Reason: reason, Stats: st})
	return st
}

// forgetMissing collapses the panel when its record no longer exists.
func (c *Controller) forgetMissing() {
	k := c.panel.Expanded()
	if k.IsZero() {
		return
	}
	if _, ok := c.db.FindProject(k); !ok {
		c.panel.Forget(k)
	}
}

// Toggle expands or collapses key's panel. A returned transition with LoadAux
// set asks the caller to fetch the row's details (see FetchAux).
func (c *Controller) Toggle(key model.Key) panel.Transition {
	if _, ok := c.db.FindProject(key); !ok {
		return panel.Transition{}
	}
	tr := c.panel.Toggle(key)
	c.render("toggle")
	if tr.LoadAux {
		c.rc.SetAux(key, &reconcile.Aux{Loading: true})
	}
	return tr
}

func (c *Controller) ClickOutside() panel.Transition {
	tr := c.panel.ClickOutside()
	if !tr.Closed.IsZero() {
		c.render("collapse")
	}
	return tr
}

// SetAux attaches fetched details to key's panel if it is still open.
func (c *Controller) SetAux(key model.Key, aux *reconcile.Aux) bool {
	if !c.panel.IsExpanded(key) {
		return false
	}
	ok := c.rc.SetAux(key, aux)
	if ok {
		c.notify(Change{Reason: "aux"})
	}
	return ok
}

func (c *Controller) SetSort(k model.SortKey, d model.SortDir) {
	if c.view.SortKey == k && c.view.SortDir == d {
		return
	}
	c.view.SortKey, c.view.SortDir = k, d
	c.persistUIState()
	c.render("sort")
}

// ToggleSort behaves like clicking k's column header.
func (c *Controller) ToggleSort(k model.SortKey) {
	c.SetSort(view.NextSort(c.view, k))
}

func (c *Controller) SetFilter(text string) {
	if c.view.Filter == text {
		return
	}
	c.view.Filter = text
	c.persistUIState()
	c.render("filter")
}

func (c *Controller) SetScroll(n int) {
	if n < 0 {
		n = 0
	}
	c.view.Scroll = n
}

// SetEditor attaches or replaces an in-place edit buffer on key's row.
func (c *Controller) SetEditor(key model.Key, ed *reconcile.Editor) bool {
	return c.rc.SetEditor(key, ed)
}

func (c *Controller) DiscardEditor(key model.Key) { c.rc.DiscardEditor(key) }

// NextLaunchable is the project after the most recently launched one.
func (c *Controller) NextLaunchable() (model.Project, bool) {
	after := 0
	if p, ok := c.db.FindProject(c.view.Launched); ok {
		after = p.RowNumber
	}
	return c.db.FindNextLaunchable(after)
}

// Dispatch validates and optimistically applies an action. The returned op must
// be run (off-loop is fine) and its outcome handed to Complete. On rejection a
// notice is set and the error returned; no state changed.
func (c *Controller) Dispatch(kind mutate.Kind, key model.Key, p mutate.Params) (*mutate.Op, error) {
	op, err := c.coord.Begin(kind, key, p)
	if err != nil {
		c.notice = mutate.NoticeForError(kind, err)
		c.log.Debug("action rejected", "kind", string(kind), "name", key.Name, "error", err)
		c.render("rejected")
		return nil, err
	}
	if op.Move != nil {
		c.applyMove(*op.Move)
	}
	c.forgetMissing()
	c.render("dispatch")
	return op, nil
}

func (c *Controller) applyMove(m mutate.KeyMove) {
	c.rc.Rekey(m.From, m.To)
	c.panel.Retarget(m.From, m.To)
	if c.view.Launched == m.From {
		c.view.Launched = m.To
		c.persistUIState()
	}
}

// Complete confirms or reverts op and updates presentation state. A result
// with Reload set should be followed by Load.
func (c *Controller) Complete(op *mutate.Op, out mutate.Outcome) mutate.Result {
	res := c.coord.Finish(op, out)
	c.notice = res.Notice

	if res.Move != nil {
		c.applyMove(*res.Move)
	}
	if res.DiscardEditor {
		c.rc.DiscardEditor(res.Key)
	}
	if res.Collapse {
		c.panel.OnMutationSuccess(res.Key)
	}
	if res.Launched {
		c.view.Launched = res.Key
		c.persistUIState()
	}
	c.forgetMissing()
	c.render("complete")
	return res
}

// Do runs an action synchronously, reloading when the result asks for it.
func (c *Controller) Do(ctx context.Context, kind mutate.Kind, key model.Key, p mutate.Params) (mutate.Result, error) {
	op, err := c.Dispatch(kind, key, p)
	if err != nil {
		return mutate.Result{Kind: kind, Key: key, Notice: c.notice}, err
	}
	res := c.Complete(op, op.Run(ctx, c.backend))
	if res.Reload {
		if err := c.Load(ctx); err != nil {
			return res, err
		}
		c.notice = res.Notice
	}
	return res, nil
}

// FetchAux loads the panel details for p. It only reads its arguments, so it
// may run off the owning goroutine.
func FetchAux(ctx context.Context, b remote.Backend, p model.Project) *reconcile.Aux {
	d, err := remote.RetryOnce(ctx, func(ctx context.Context) (remote.Details, error) {
		return b.Details(ctx, p.URL)
	})
	if err != nil {
		return &reconcile.Aux{Err: remote.Detail(err)}
	}
	aux := &reconcile.Aux{Readme: d.Readme}
	for _, s := range d.Screenshots {
		aux.Screenshots = append(aux.Screenshots, s.Name)
	}
	return aux
}

// Capture snapshots the state a presentation reload must not lose.
func (c *Controller) Capture() devsession.Session {
	s := devsession.Session{Store: c.db.Export(), View: c.View()}
	for k, ed := range c.rc.Editors() {
		s.Editors = append(s.Editors, devsession.EditorState{
			Key: k, Field: ed.Field, Value: ed.Value, Original: ed.Original,
		})
	}
	s.SortEditors()
	return s
}

// Restore puts a captured session back without a network load. It reports
// whether the restored expanded row needs its details fetched again.
func (c *Controller) Restore(s devsession.Session) bool {
	c.db.Restore(s.Store)
	expanded := s.View.Expanded
	c.view = s.View
	c.view.Expanded = model.Key{}
	c.panel.Open(model.Key{})
	if _, ok := c.db.FindProject(expanded); ok && !expanded.IsZero() {
		c.panel.Open(expanded)
	}
	c.loaded = true
	c.render("restore")
	for _, ed := range s.Editors {
		c.rc.SetEditor(ed.Key, &reconcile.Editor{Field: ed.Field, Value: ed.Value, Original: ed.Original})
	}
	if open := c.panel.Expanded(); !open.IsZero() {
		c.rc.SetAux(open, &reconcile.Aux{Loading: true})
		return true
	}
	return false
}

// SetRenderer swaps the presentation (dev reload) and repaints every row.
func (c *Controller) SetRenderer(r reconcile.Renderer) {
	n := c.rc.SetRenderer(r)
	c.log.Debug("repainted", "rows", n)
	c.notify(Change{Reason: "renderer"})
}
