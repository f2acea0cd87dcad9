package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"projects-factory/internal/dashboard"
	"projects-factory/internal/devsession"
	"projects-factory/internal/logging"
	"projects-factory/internal/model"
	"projects-factory/internal/mutate"
	"projects-factory/internal/reconcile"
	"projects-factory/internal/store"
)

const (
	minRendererWidth = 40
	devSaveTimeout   = 2 * time.Second
)

type mode int

const (
	modeList mode = iota
	modeFilter
	modeEdit
	modeChoice
)

const (
	fieldName        = "name"
	fieldDescription = "description"
)

type (
	snapshotMsg struct {
		snap model.Snapshot
		err  error
	}
	opDoneMsg struct {
		op  *mutate.Op
		out mutate.Outcome
	}
	auxMsg struct {
		key model.Key
		aux *reconcile.Aux
	}
	templatesChangedMsg struct{ files []string }
)

// Options configure the dashboard program.
type Options struct {
	Controller *dashboard.Controller
	// State holds dev snapshots; nil disables dev restore.
	State        *store.Store
	TemplatesDir string
	ThemeFile    string
	Dev          bool
	DevMaxAge    time.Duration
	Logger       *logging.Logger
	Now          func() time.Time
}

type appModel struct {
	ctx  context.Context
	ctrl *dashboard.Controller
	opts Options
	log  *logging.Logger

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	filter  textinput.Model
	editor  textinput.Model

	mode      mode
	modal     *choiceModal
	editKey   model.Key
	editField string
	editOrig  string

	cursor  int
	selKey  model.Key
	offset  int
	width   int
	height  int
	loading bool

	rendererWidth int
	watcher       *devsession.Watcher

	// Set when a dev session was restored; the first load is skipped.
	restored   bool
	restoreAux bool
}

func newAppModel(ctx context.Context, opts Options) (appModel, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := appModel{
		ctx:           ctx,
		ctrl:          opts.Controller,
		opts:          opts,
		log:           log.With("component", "tui"),
		keys:          defaultKeyMap(),
		help:          help.New(),
		spinner:       spinner.New(spinner.WithSpinner(spinner.MiniDot)),
		filter:        textinput.New(),
		editor:        textinput.New(),
		width:         100,
		height:        30,
		rendererWidth: 100 - 8,
	}
	m.filter.Prompt = ""
	m.filter.Placeholder = "name, description or url"
	m.editor.Prompt = ""
	m.editor.CharLimit = 200

	r, err := newRenderer(opts.TemplatesDir, m.rendererWidth)
	if err != nil {
		return m, err
	}
	m.ctrl.SetRenderer(r)

	if opts.Dev && opts.State != nil {
		sess, ok, err := devsession.LoadRecent(ctx, *opts.State, opts.DevMaxAge, opts.Now())
		switch {
		case err != nil:
			m.log.Warn("load dev snapshot", "error", err)
		case ok:
			m.restoreAux = m.ctrl.Restore(sess)
			m.restored = true
			m.offset = sess.View.Scroll
			m.ctrl.SetNotice(mutate.Notice{Level: mutate.LevelInfo, Text: "Restored dev session"})
		}
	}
	if opts.Dev && opts.TemplatesDir != "" {
		w, err := devsession.NewWatcher(opts.TemplatesDir, log)
		if err != nil {
			m.log.Warn("watch templates", "dir", opts.TemplatesDir, "error", err)
		} else {
			w.Start()
			m.watcher = w
		}
	}
	m.loading = !m.restored
	m.syncCursor()
	return m, nil
}

func (m appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if !m.restored {
		cmds = append(cmds, m.loadCmd())
	}
	if m.restoreAux {
		if p, ok := m.ctrl.DB().FindProject(m.ctrl.View().Expanded); ok {
			cmds = append(cmds, m.auxCmd(*p))
		}
	}
	if m.watcher != nil {
		cmds = append(cmds, waitForTemplates(m.watcher))
	}
	return tea.Batch(cmds...)
}

func (m appModel) loadCmd() tea.Cmd {
	b, ctx := m.ctrl.Backend(), m.ctx
	return func() tea.Msg {
		snap, err := b.LoadSnapshot(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m appModel) auxCmd(p model.Project) tea.Cmd {
	b, ctx := m.ctrl.Backend(), m.ctx
	return func() tea.Msg {
		return auxMsg{key: p.Key(), aux: dashboard.FetchAux(ctx, b, p)}
	}
}

func (m appModel) runCmd(op *mutate.Op) tea.Cmd {
	b, ctx := m.ctrl.Backend(), m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, out: op.Run(ctx, b)}
	}
}

func waitForTemplates(w *devsession.Watcher) tea.Cmd {
	return func() tea.Msg {
		files, ok := <-w.Changes()
		if !ok {
			return nil
		}
		return templatesChangedMsg{files: files}
	}
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		if w := m.width - 8; w >= minRendererWidth && w != m.rendererWidth {
			m.rendererWidth = w
			if r, err := newRenderer(m.opts.TemplatesDir, w); err == nil {
				m.ctrl.SetRenderer(r)
			}
		}
		m.syncCursor()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case snapshotMsg:
		m.loading = false
		snap, err := msg.snap, msg.err
		_ = m.ctrl.LoadWith(m.ctx, store.LoaderFunc(func(context.Context) (model.Snapshot, error) {
			return snap, err
		}))
		m.syncCursor()
		if k := m.ctrl.View().Expanded; !k.IsZero() && err == nil {
			if n, ok := m.ctrl.Node(k); ok && n.Detail != nil && n.Detail.Aux == nil {
				return m, m.auxCmd(n.Entry.Project)
			}
		}
		return m, nil

	case opDoneMsg:
		res := m.ctrl.Complete(msg.op, msg.out)
		if res.Move != nil && m.selKey == res.Move.From {
			m.selKey = res.Move.To
		}
		if res.Kind == mutate.KindCreate && res.OK && !res.Key.IsZero() {
			m.selKey = res.Key
		}
		m.syncCursor()
		if res.Reload {
			m.loading = true
			return m, m.loadCmd()
		}
		return m, nil

	case auxMsg:
		m.ctrl.SetAux(msg.key, msg.aux)
		return m, nil

	case templatesChangedMsg:
		m.reloadPresentation(msg.files)
		return m, waitForTemplates(m.watcher)

	case tea.KeyMsg:
		switch m.mode {
		case modeFilter:
			return m.updateFilter(msg)
		case modeEdit:
			return m.updateEditor(msg)
		case modeChoice:
			return m.updateChoice(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m appModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		m.shutdown("quit")
		return m, tea.Quit
	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, k.Up):
		m.moveCursor(-1)
		return m, nil
	case key.Matches(msg, k.Down):
		m.moveCursor(1)
		return m, nil
	case key.Matches(msg, k.PageUp):
		m.moveCursor(-m.pageSize())
		return m, nil
	case key.Matches(msg, k.PageDown):
		m.moveCursor(m.pageSize())
		return m, nil
	case key.Matches(msg, k.Collapse):
		m.ctrl.ClickOutside()
		return m, nil
	case key.Matches(msg, k.Filter):
		m.mode = modeFilter
		m.filter.SetValue(m.ctrl.View().Filter)
		m.filter.CursorEnd()
		return m, m.filter.Focus()
	case key.Matches(msg, k.SortName):
		return m.sortBy(model.SortByName)
	case key.Matches(msg, k.SortDescription):
		return m.sortBy(model.SortByDescription)
	case key.Matches(msg, k.SortURL):
		return m.sortBy(model.SortByURL)
	case key.Matches(msg, k.SortCreated):
		return m.sortBy(model.SortByCreatedAt)
	case key.Matches(msg, k.SortKind):
		return m.sortBy(model.SortByKind)
	case key.Matches(msg, k.Reload):
		m.loading = true
		return m, m.loadCmd()
	case key.Matches(msg, k.Refresh):
		return m.dispatch(mutate.KindRefresh, model.Key{}, mutate.Params{})
	case key.Matches(msg, k.Create):
		return m.dispatch(mutate.KindCreate, model.Key{}, mutate.Params{})
	case key.Matches(msg, k.LaunchNext):
		p, ok := m.ctrl.NextLaunchable()
		if !ok {
			m.ctrl.SetNotice(mutate.Notice{Level: mutate.LevelInfo, Text: "No projects to open"})
			return m, nil
		}
		m.selKey = p.Key()
		m.syncCursor()
		return m.dispatch(mutate.KindOpen, p.Key(), mutate.Params{})
	}

	p, ok := m.selected()
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(msg, k.Toggle):
		tr := m.ctrl.Toggle(p.Key())
		m.syncCursor()
		if tr.LoadAux {
			return m, m.auxCmd(p)
		}
	case key.Matches(msg, k.Install):
		return m.dispatch(mutate.KindInstall, p.Key(), mutate.Params{})
	case key.Matches(msg, k.Open):
		return m.dispatch(mutate.KindOpen, p.Key(), mutate.Params{})
	case key.Matches(msg, k.Delete):
		return m.openChoice(confirmDelete(p))
	case key.Matches(msg, k.DeleteRemote):
		return m.openChoice(confirmDeleteRemote(p))
	case key.Matches(msg, k.Publish):
		return m.openChoice(choosePublish(p))
	case key.Matches(msg, k.Push):
		return m.openChoice(choosePush(p))
	case key.Matches(msg, k.Rename):
		return m.startEdit(p, fieldName, p.Name)
	case key.Matches(msg, k.Describe):
		return m.startEdit(p, fieldDescription, p.Description)
	case key.Matches(msg, k.CopyURL):
		if err := copyToClipboard(p.URL); err != nil {
			m.ctrl.SetNotice(mutate.Notice{Level: mutate.LevelFailure, Text: "Copy failed: " + err.Error()})
		} else {
			m.ctrl.SetNotice(mutate.Notice{Level: mutate.LevelSuccess, Text: "Copied " + p.URL})
		}
	}
	return m, nil
}

func (m appModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.mode = modeList
		m.filter.Blur()
		return m, nil
	case tea.KeyEsc:
		m.mode = modeList
		m.filter.Blur()
		m.filter.SetValue("")
		m.ctrl.SetFilter("")
		m.syncCursor()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.ctrl.SetFilter(m.filter.Value())
	m.offset = 0
	m.syncCursor()
	return m, cmd
}

func (m appModel) startEdit(p model.Project, field, original string) (tea.Model, tea.Cmd) {
	value := original
	if n, ok := m.ctrl.Node(p.Key()); ok && n.Editor != nil && n.Editor.Field == field {
		value = n.Editor.Value
	}
	if !m.ctrl.SetEditor(p.Key(), &reconcile.Editor{Field: field, Value: value, Original: original}) {
		return m, nil
	}
	m.mode = modeEdit
	m.editKey, m.editField, m.editOrig = p.Key(), field, original
	m.editor.SetValue(value)
	m.editor.CursorEnd()
	return m, m.editor.Focus()
}

func (m appModel) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.ctrl.DiscardEditor(m.editKey)
		m.endEdit()
		return m, nil
	case tea.KeyEnter:
		k, field, value := m.editKey, m.editField, m.editor.Value()
		m.ctrl.DiscardEditor(k)
		m.endEdit()
		if field == fieldName {
			if strings.TrimSpace(value) == m.editOrig {
				return m, nil
			}
			return m.dispatch(mutate.KindRename, k, mutate.Params{NewName: strings.TrimSpace(value)})
		}
		if value == m.editOrig {
			return m, nil
		}
		return m.dispatch(mutate.KindDescribe, k, mutate.Params{Description: value})
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	m.ctrl.SetEditor(m.editKey, &reconcile.Editor{Field: m.editField, Value: m.editor.Value(), Original: m.editOrig})
	return m, cmd
}

func (m *appModel) endEdit() {
	m.mode = modeList
	m.editor.Blur()
	m.editKey, m.editField, m.editOrig = model.Key{}, "", ""
}

func (m appModel) openChoice(c choiceModal) (tea.Model, tea.Cmd) {
	m.modal = &c
	m.mode = modeChoice
	return m, nil
}

func (m appModel) updateChoice(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "right", "l":
		m.modal.next()
	case "shift+tab", "left", "h":
		m.modal.prev()
	case "esc", "q":
		m.modal, m.mode = nil, modeList
	case "enter", " ":
		c, k := m.modal.selected(), m.modal.Key
		m.modal, m.mode = nil, modeList
		if c.Kind != "" {
			return m.dispatch(c.Kind, k, c.Params)
		}
	}
	return m, nil
}

func (m appModel) dispatch(kind mutate.Kind, k model.Key, p mutate.Params) (tea.Model, tea.Cmd) {
	op, err := m.ctrl.Dispatch(kind, k, p)
	if err != nil {
		return m, nil
	}
	if op.Move != nil && m.selKey == op.Move.From {
		m.selKey = op.Move.To
	}
	m.syncCursor()
	return m, m.runCmd(op)
}

func (m appModel) sortBy(k model.SortKey) (tea.Model, tea.Cmd) {
	m.ctrl.ToggleSort(k)
	m.syncCursor()
	return m, nil
}

func (m appModel) selected() (model.Project, bool) {
	rows := m.ctrl.Rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return model.Project{}, false
	}
	return rows[m.cursor].Entry.Project, true
}

func (m *appModel) moveCursor(delta int) {
	rows := m.ctrl.Rows()
	if len(rows) == 0 {
		return
	}
	m.cursor = clamp(m.cursor+delta, 0, len(rows)-1)
	m.selKey = rows[m.cursor].Key
	m.scrollToCursor()
}

// syncCursor keeps the selection on the same record across re-renders, falling
// back to the same position when the record left the view.
func (m *appModel) syncCursor() {
	rows := m.ctrl.Rows()
	if len(rows) == 0 {
		m.cursor, m.offset = 0, 0
		return
	}
	found := false
	for i, r := range rows {
		if r.Key == m.selKey {
			m.cursor, found = i, true
			break
		}
	}
	if !found {
		m.cursor = clamp(m.cursor, 0, len(rows)-1)
		m.selKey = rows[m.cursor].Key
	}
	m.scrollToCursor()
}

func (m *appModel) scrollToCursor() {
	rows := m.ctrl.Rows()
	m.offset = clamp(m.offset, 0, max(len(rows)-1, 0))
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	avail := m.bodyHeight()
	for m.offset < m.cursor {
		used := 0
		for i := m.offset; i <= m.cursor; i++ {
			used += rowHeight(rows[i])
		}
		if used <= avail {
			break
		}
		m.offset++
	}
	m.ctrl.SetScroll(m.offset)
}

func (m appModel) pageSize() int { return max(m.bodyHeight()-1, 1) }

func (m appModel) bodyHeight() int {
	// header, columns, filter line, notice, help
	return max(m.height-5, 3)
}

func rowHeight(r *reconcile.Row) int {
	h := 1
	if r.Detail != nil {
		h += strings.Count(r.Detail.Body, "\n") + 1
	}
	return h
}

// reloadPresentation swaps templates and theme without touching records,
// saving a dev snapshot first so a broken reload can be recovered on restart.
func (m *appModel) reloadPresentation(files []string) {
	m.saveDevSession("reload")
	for _, f := range files {
		if filepath.Base(f) == themeFileName {
			p, err := loadTheme(f)
			if err != nil {
				m.ctrl.SetNotice(mutate.Notice{Level: mutate.LevelFailure, Text: "Theme reload failed: " + err.Error()})
				return
			}
			palette = p
		}
	}
	r, err := newRenderer(m.opts.TemplatesDir, m.rendererWidth)
	if err != nil {
		m.ctrl.SetNotice(mutate.Notice{Level: mutate.LevelFailure, Text: "Template reload failed: " + err.Error()})
		return
	}
	m.ctrl.SetRenderer(r)
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f)
	}
	m.ctrl.SetNotice(mutate.Notice{Level: mutate.LevelInfo, Text: "Reloaded " + strings.Join(names, ", ")})
}

func (m *appModel) saveDevSession(reason string) {
	if !m.opts.Dev || m.opts.State == nil || !m.ctrl.Loaded() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), devSaveTimeout)
	defer cancel()
	if err := devsession.Save(ctx, *m.opts.State, reason, m.ctrl.Capture(), m.opts.Now()); err != nil {
		m.log.Warn("save dev snapshot", "reason", reason, "error", err)
	}
}

func (m *appModel) shutdown(reason string) {
	m.saveDevSession(reason)
	if m.watcher != nil {
		m.watcher.Stop()
	}
}

func (m appModel) View() string {
	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.columnsView())
	b.WriteString("\n")
	b.WriteString(m.filterView())
	b.WriteString("\n")

	body := m.bodyView()
	if m.mode == modeChoice && m.modal != nil {
		body = lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center,
			renderChoiceModal(m.width, *m.modal))
	}
	b.WriteString(normalizePane(body, m.width, m.bodyHeight()))
	b.WriteString("\n")
	b.WriteString(fitLine(m.noticeView(), m.width))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m appModel) headerView() string {
	h := m.ctrl.HeaderCounters()
	user := h.Account.Username
	if user == "" {
		user = "-"
	}
	left := styleAccent().Render("projects-factory") + "  " + user
	counts := fmt.Sprintf("installed %d · local %d · total %d", h.Counters.Installed, h.Counters.LocalOnly, h.Counters.Total)
	parts := []string{left, styleMuted().Render(counts)}
	if h.DefaultMessage != "" {
		parts = append(parts, styleMuted().Render("next commit: "+h.DefaultMessage))
	}
	if m.loading || h.InFlight > 0 {
		busy := m.spinner.View()
		if h.InFlight > 0 {
			busy += fmt.Sprintf(" %d running", h.InFlight)
		}
		parts = append(parts, busy)
	}
	return fitLine(strings.Join(parts, "   "), m.width)
}

func (m appModel) columnsView() string {
	cols := m.ctrl.HeaderCounters().Columns
	parts := make([]string, 0, len(cols))
	for i, c := range cols {
		label := fmt.Sprintf("[%d] %s", i+1, c.Label)
		if c.Active {
			parts = append(parts, styleAccent().Render(label+" "+c.Indicator))
		} else {
			parts = append(parts, styleMuted().Render(label))
		}
	}
	return fitLine(strings.Join(parts, "  "), m.width)
}

func (m appModel) filterView() string {
	if m.mode == modeFilter {
		return renderInputLine(m.width, "filter: ", m.filter.View())
	}
	if f := m.ctrl.View().Filter; f != "" {
		return styleMuted().Render(fmt.Sprintf("filter: %s (%d shown)", f, len(m.ctrl.Rows())))
	}
	return ""
}

func (m appModel) bodyView() string {
	rows := m.ctrl.Rows()
	if len(rows) == 0 {
		switch {
		case m.loading:
			return styleMuted().Render("Loading projects" + glyphEllipsis())
		case m.ctrl.View().Filter != "":
			return styleMuted().Render("No projects match the filter.")
		default:
			return styleMuted().Render("No projects. Press c to create one.")
		}
	}
	avail := m.bodyHeight()
	var lines []string
	for i := m.offset; i < len(rows) && len(lines) < avail; i++ {
		lines = append(lines, strings.Split(m.rowView(i, rows[i]), "\n")...)
	}
	return strings.Join(lines, "\n")
}

func (m appModel) rowView(i int, r *reconcile.Row) string {
	line := glyphTwisty(r.Detail != nil) + " " + r.Content
	if r.Editor != nil {
		if m.mode == modeEdit && r.Key == m.editKey {
			line = renderInputLine(m.width, glyphTwisty(r.Detail != nil)+" "+r.Editor.Field+": ", m.editor.View())
		} else {
			line += "  " + styleWarning().Render("(editing "+r.Editor.Field+": "+r.Editor.Value+")")
		}
	}
	if i == m.cursor {
		line = styleSelected().Render(fitLine(line, m.width))
	}
	if r.Detail == nil {
		return line
	}
	edge := lipgloss.NewStyle().Foreground(palette.PanelEdge).Render("│ ")
	return line + "\n" + indentBlock(r.Detail.Body, "   "+edge)
}

func (m appModel) noticeView() string {
	n := m.ctrl.Notice()
	switch n.Level {
	case mutate.LevelSuccess:
		return styleSuccess().Render(n.Text)
	case mutate.LevelFailure:
		return styleFailure().Render(n.Text)
	default:
		return styleMuted().Render(n.Text)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
