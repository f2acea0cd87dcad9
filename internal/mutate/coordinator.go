// Package mutate applies dashboard actions optimistically against the entity
// store and confirms or reverts them when the collaborator answers.
//
// Begin and Finish must run on the goroutine that owns the store. Op.Run only
// reads values captured at Begin, so it may run anywhere.
package mutate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"projects-factory/internal/logging"
	"projects-factory/internal/model"
	"projects-factory/internal/remote"
	"projects-factory/internal/store"
)

// Patch is one half of an optimistic change.
type Patch func(db *store.DB)

// KeyMove tells the presentation layer that a row changed identity.
type KeyMove struct {
	From model.Key
	To   model.Key
}

// Op is an action between Begin and Finish.
type Op struct {
	ID      string
	Kind    Kind
	Key     model.Key
	Target  model.Key
	Params  Params
	Started time.Time

	// Move is set when Begin rekeyed the record (rename).
	Move *KeyMove

	project model.Project
	forward Patch
	reverse Patch
	locks   []model.Key
}

// Project is the record as it was before the forward patch.
func (op *Op) Project() model.Project { return op.project }

// Outcome is the collaborator's answer, produced off the owning goroutine.
type Outcome struct {
	OpID          string
	Err           error
	Message       string
	NewIdentifier string
	Created       remote.CreateResult
}

type Result struct {
	OpID   string
	Kind   Kind
	Key    model.Key
	OK     bool
	Notice Notice

	// Collapse asks the panel machine to close Key's panel.
	Collapse bool
	// Move is a rekey applied by Finish: publish success or rename rollback.
	Move *KeyMove
	// DiscardEditor drops Key's edit buffer so the record text shows again.
	DiscardEditor bool
	// ReloadRecommended marks failures that were not rolled back.
	ReloadRecommended bool
	// Reload asks the caller to perform a full load.
	Reload bool
	// Launched records Key as the most recently opened project.
	Launched bool
}

type Coordinator struct {
	db      *store.DB
	locks   map[model.Key]string
	metrics *Metrics
	log     *logging.Logger
	now     func() time.Time
}

func NewCoordinator(db *store.DB, m *Metrics, log *logging.Logger) *Coordinator {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Coordinator{db: db, locks: map[model.Key]string{}, metrics: m, log: log, now: time.Now}
}

// InFlight reports whether key has an unconfirmed action.
func (c *Coordinator) InFlight(key model.Key) bool {
	_, ok := c.locks[key]
	return ok
}

func (c *Coordinator) InFlightCount() int { return len(c.locks) }

// Begin validates the action, takes the entity lock, and applies the forward
// patch. Rejections leave the store untouched.
func (c *Coordinator) Begin(kind Kind, key model.Key, p Params) (*Op, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	op := &Op{
		ID:      uuid.NewString(),
		Kind:    kind,
		Key:     key,
		Target:  key,
		Params:  p,
		Started: c.now(),
	}
	if kind.targetsRecord() {
		rec, ok := c.db.FindProject(key)
		if !ok {
			c.metrics.rejected(kind, outcomePrecondition)
			return nil, NotFoundError{Kind: "project", ID: key.String()}
		}
		op.project = *rec
	}
	if kind.Locks() {
		if c.InFlight(key) {
			c.metrics.rejected(kind, outcomeInProgress)
			return nil, InProgressError{Kind: kind, Key: key}
		}
		op.locks = []model.Key{key}
	}
	if err := c.prepare(op); err != nil {
		outcome := outcomePrecondition
		if errors.Is(err, ErrInProgress) {
			outcome = outcomeInProgress
		}
		c.metrics.rejected(kind, outcome)
		return nil, err
	}

	for _, k := range op.locks {
		c.locks[k] = op.ID
	}
	if op.forward != nil {
		op.forward(c.db)
		c.db.RecomputeCounters()
	}
	c.metrics.begin()
	c.log.WithOp(op.ID).WithKind(string(kind)).WithProject(key.Name, key.URL).Debug("mutation started")
	return op, nil
}

func (c *Coordinator) prepare(op *Op) error {
	rec := op.project
	key := op.Key
	p := op.Params

	switch op.Kind {
	case KindInstall:
		if rec.IsLocalOnly {
			return PreconditionError{Kind: op.Kind, Reason: "local projects cannot be installed"}
		}
		if c.db.IsInstalled(rec) {
			return PreconditionError{Kind: op.Kind, Reason: "already installed"}
		}
		url := rec.URL
		op.forward = func(db *store.DB) { db.MarkInstalled(url) }
		op.reverse = func(db *store.DB) { db.UnmarkInstalled(url) }

	case KindDelete:
		if !p.Confirmed {
			return ErrConfirmationRequired
		}
		if rec.IsLocalOnly {
			// A local delete that fails is not undone; the caller recommends a reload.
			op.forward = func(db *store.DB) { db.Remove(key) }
			break
		}
		if !c.db.IsInstalled(rec) {
			return PreconditionError{Kind: op.Kind, Reason: "not installed"}
		}
		url := rec.URL
		op.forward = func(db *store.DB) { db.UnmarkInstalled(url) }
		op.reverse = func(db *store.DB) { db.MarkInstalled(url) }

	case KindRename:
		newName := strings.TrimSpace(p.NewName)
		switch {
		case newName == "":
			return PreconditionError{Kind: op.Kind, Reason: "name must not be empty"}
		case newName == rec.Name:
			return PreconditionError{Kind: op.Kind, Reason: "name unchanged"}
		case !model.SafeName(newName):
			return PreconditionError{Kind: op.Kind, Reason: fmt.Sprintf("invalid name %q", newName)}
		}
		target := model.Key{Name: newName, URL: model.ReplaceLastSegment(rec.URL, rec.Name, newName)}
		if _, clash := c.db.FindProject(target); clash {
			return PreconditionError{Kind: op.Kind, Reason: fmt.Sprintf("%q already exists", newName)}
		}
		if c.InFlight(target) {
			return InProgressError{Kind: op.Kind, Key: target}
		}
		op.Params.NewName = newName
		op.Target = target
		op.Move = &KeyMove{From: key, To: target}
		op.locks = append(op.locks, target)
		op.forward = func(db *store.DB) { _ = db.Rekey(key, target) }
		op.reverse = func(db *store.DB) { _ = db.Rekey(target, key) }

	case KindDescribe:
		if rec.IsLocalOnly {
			return PreconditionError{Kind: op.Kind, Reason: "local projects have no repository description"}
		}
		if p.Description == rec.Description {
			return PreconditionError{Kind: op.Kind, Reason: "description unchanged"}
		}
		next, prev := p.Description, rec.Description
		op.forward = func(db *store.DB) { db.Update(key, func(r *model.Project) { r.Description = next }) }
		op.reverse = func(db *store.DB) { db.Update(key, func(r *model.Project) { r.Description = prev }) }

	case KindPublish:
		if !rec.IsLocalOnly {
			return PreconditionError{Kind: op.Kind, Reason: "already published"}
		}
		if !model.SafeName(rec.Name) {
			return PreconditionError{Kind: op.Kind, Reason: fmt.Sprintf("invalid project name %q", rec.Name)}
		}
		vis, err := remote.ParseVisibility(string(p.Visibility))
		if err != nil {
			return PreconditionError{Kind: op.Kind, Reason: err.Error()}
		}
		op.Params.Visibility = vis
		if strings.TrimSpace(op.Params.Description) == "" {
			op.Params.Description = rec.Description
		}
		prevCanPublish, prevPrivate := rec.CanPublish, rec.IsPrivate
		op.forward = func(db *store.DB) {
			db.Update(key, func(r *model.Project) {
				r.IsLocalOnly = false
				r.CanPublish = false
				r.IsPrivate = vis == remote.Private
				r.PublishUnconfirmed = false
			})
		}
		// The remote side may have created the repository before failing, so the
		// restored record is flagged until the next full load settles it.
		op.reverse = func(db *store.DB) {
			db.Update(key, func(r *model.Project) {
				r.IsLocalOnly = true
				r.CanPublish = prevCanPublish
				r.IsPrivate = prevPrivate
				r.PublishUnconfirmed = true
			})
		}

	case KindPush:
		if !rec.CanPublish {
			return PreconditionError{Kind: op.Kind, Reason: "nothing to push"}
		}
		mode, err := remote.ParseVersionMode(string(p.VersionMode))
		if err != nil {
			return PreconditionError{Kind: op.Kind, Reason: err.Error()}
		}
		op.Params.VersionMode = mode
		op.forward = func(db *store.DB) { db.Update(key, func(r *model.Project) { r.CanPublish = false }) }
		op.reverse = func(db *store.DB) { db.Update(key, func(r *model.Project) { r.CanPublish = true }) }

	case KindDeleteRemote:
		if !p.Confirmed {
			return ErrConfirmationRequired
		}
		if rec.IsLocalOnly {
			return PreconditionError{Kind: op.Kind, Reason: "not published"}
		}
		var (
			removed model.Project
			idx     = -1
		)
		op.forward = func(db *store.DB) {
			if r, i, ok := db.Remove(key); ok {
				removed, idx = r, i
			}
		}
		op.reverse = func(db *store.DB) {
			if idx >= 0 {
				_ = db.Insert(idx, removed)
			}
		}
	}
	return nil
}

// Run performs the collaborator call. It must only read op.
func (op *Op) Run(ctx context.Context, b remote.Backend) Outcome {
	out := Outcome{OpID: op.ID}
	rec := op.project

	switch op.Kind {
	case KindInstall:
		res, err := b.Install(ctx, rec.URL)
		out.Err, out.Message = err, res.Message
	case KindDelete:
		out.Err = b.DeleteLocal(ctx, rec.Name)
	case KindRename:
		if rec.IsLocalOnly {
			out.Err = b.RenameLocal(ctx, rec.Name, op.Params.NewName)
		} else {
			out.Err = b.RenameRemote(ctx, rec.Name, op.Params.NewName)
		}
	case KindDescribe:
		out.Err = b.UpdateDescription(ctx, rec.Name, op.Params.Description)
	case KindPublish:
		res, err := b.Publish(ctx, rec.Name, op.Params.Description, op.Params.Visibility)
		out.Err, out.Message, out.NewIdentifier = err, res.Message, res.NewIdentifier
	case KindPush:
		res, err := b.Push(ctx, rec.URL, op.Params.VersionMode)
		out.Err, out.Message = err, res.Message
	case KindDeleteRemote:
		out.Err = b.DeleteRemote(ctx, rec.Name)
	case KindOpen:
		out.Err = remote.RetryOnceErr(ctx, func(ctx context.Context) error {
			return b.OpenInEditor(ctx, rec.URL)
		})
	case KindCreate:
		res, err := b.CreateProject(ctx)
		out.Err, out.Created, out.Message = err, res, res.Message
	case KindRefresh:
		out.Err = b.Refresh(ctx)
	default:
		out.Err = fmt.Errorf("unknown action: %q", op.Kind)
	}
	return out
}

// Finish confirms or reverts op and releases its locks.
func (c *Coordinator) Finish(op *Op, out Outcome) Result {
	defer c.release(op)

	res := Result{OpID: op.ID, Kind: op.Kind, Key: op.Target, OK: out.Err == nil}
	log := c.log.WithOp(op.ID).WithKind(string(op.Kind)).WithProject(op.Key.Name, op.Key.URL)
	took := c.now().Sub(op.Started)

	if out.Err != nil {
		if op.reverse != nil {
			op.reverse(c.db)
			c.db.RecomputeCounters()
		}
		res.Notice = failure(op.Kind, out.Err)
		switch op.Kind {
		case KindRename:
			res.Key = op.Key
			res.Move = &KeyMove{From: op.Target, To: op.Key}
			res.DiscardEditor = true
		case KindDelete:
			if op.project.IsLocalOnly {
				res.ReloadRecommended = true
				res.Notice.Text += " (reload recommended)"
			}
		}
		c.metrics.finish(op.Kind, outcomeFailure, took)
		log.Warn("mutation failed", "error", remote.Detail(out.Err), "transient", remote.IsTransient(out.Err))
		return res
	}

	res.Collapse = op.Kind.collapsesOnSuccess()
	name := op.Target.Name
	switch op.Kind {
	case KindInstall:
		res.Notice = success(firstNonEmpty(out.Message, "Installed "+name))
	case KindDelete:
		if op.project.IsLocalOnly {
			res.Notice = success("Deleted " + name)
		} else {
			res.Notice = success("Removed local copy of " + name)
		}
	case KindRename:
		res.Notice = success(fmt.Sprintf("Renamed %s to %s", op.Key.Name, name))
	case KindDescribe:
		res.Notice = success("Updated description of " + name)
	case KindPublish:
		id := strings.TrimSpace(out.NewIdentifier)
		to := model.Key{Name: op.Key.Name, URL: id}
		switch {
		case id == "":
			res.Reload = true
		case id == op.Key.URL:
			c.db.MarkInstalled(id)
		default:
			if err := c.db.Rekey(op.Key, to); err != nil {
				res.Reload = true
				log.Warn("publish rekey failed", "error", err)
				break
			}
			res.Key = to
			res.Move = &KeyMove{From: op.Key, To: to}
			c.db.MarkInstalled(id)
		}
		c.db.RecomputeCounters()
		res.Notice = success(firstNonEmpty(out.Message, "Published "+name))
	case KindPush:
		res.Notice = success(firstNonEmpty(out.Message, "Pushed "+name))
	case KindDeleteRemote:
		res.Notice = success("Deleted repository " + name)
	case KindOpen:
		res.Launched = true
		res.Notice = Notice{Level: LevelInfo, Text: "Opened " + name}
	case KindCreate:
		res.Notice = success(firstNonEmpty(out.Message, "Project created"))
		res.Key, res.Reload = c.addCreated(out.Created)
	case KindRefresh:
		res.Reload = true
		res.Notice = success(firstNonEmpty(out.Message, "Repositories refreshed"))
	}
	c.metrics.finish(op.Kind, outcomeSuccess, took)
	log.Info("mutation confirmed", "took_ms", took.Milliseconds())
	return res
}

// addCreated inserts a freshly created local project. Without a path the
// record's identity is unknown, so a full load is requested instead.
func (c *Coordinator) addCreated(cr remote.CreateResult) (model.Key, bool) {
	name, path := strings.TrimSpace(cr.FolderName), strings.TrimSpace(cr.Path)
	if name == "" || path == "" {
		return model.Key{}, true
	}
	p := model.Project{
		Name:        name,
		URL:         path,
		CreatedAt:   c.now().UTC().Format(time.RFC3339),
		IsLocalOnly: true,
	}
	if err := c.db.Add(p); err != nil {
		return model.Key{}, true
	}
	c.db.RecomputeCounters()
	return p.Key(), false
}

func (c *Coordinator) release(op *Op) {
	for _, k := range op.locks {
		if c.locks[k] == op.ID {
			delete(c.locks, k)
		}
	}
}

// Do runs an action synchronously on the caller's goroutine (CLI, tests).
func (c *Coordinator) Do(ctx context.Context, b remote.Backend, kind Kind, key model.Key, p Params) (Result, error) {
	op, err := c.Begin(kind, key, p)
	if err != nil {
		return Result{Kind: kind, Key: key, Notice: NoticeForError(kind, err)}, err
	}
	return c.Finish(op, op.Run(ctx, b)), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
