package mutate

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"projects-factory/internal/model"
	"projects-factory/internal/remote"
	"projects-factory/internal/remote/remotetest"
	"projects-factory/internal/store"
)

var (
	keyAlpha = model.Key{Name: "alpha", URL: "https://github.com/me/alpha"}
	keyBeta  = model.Key{Name: "beta", URL: "https://github.com/me/beta"}
	keyFoo   = model.Key{Name: "foo", URL: "/srv/pf/MY_REPOS/foo"}
	keyDraft = model.Key{Name: "draft", URL: "/srv/pf/NEW_PROJECTS/draft"}
)

func testSnapshot() model.Snapshot {
	return model.Snapshot{
		Account: model.Account{Username: "me"},
		Projects: []model.Project{
			{Name: "alpha", URL: keyAlpha.URL, CreatedAt: "2024-01-01T00:00:00Z", Description: "first"},
			{Name: "beta", URL: keyBeta.URL, CreatedAt: "2024-02-01T00:00:00Z", CanPublish: true},
			{Name: "foo", URL: keyFoo.URL, CreatedAt: "2024-03-01T00:00:00Z", IsLocalOnly: true},
			{Name: "draft", URL: keyDraft.URL, CreatedAt: "2024-04-01T00:00:00Z", IsLocalOnly: true, CanPublish: true},
		},
		InstalledURLs: []string{keyBeta.URL},
	}
}

type harness struct {
	db    *store.DB
	fake  *remotetest.Fake
	coord *Coordinator
	reg   *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := remotetest.New(testSnapshot())
	db := store.NewDB()
	if err := db.Load(context.Background(), fake); err != nil {
		t.Fatalf("Load: %v", err)
	}
	reg := prometheus.NewRegistry()
	return &harness{db: db, fake: fake, coord: NewCoordinator(db, NewMetrics(reg), nil), reg: reg}
}

func (h *harness) run(t *testing.T, kind Kind, key model.Key, p Params) Result {
	t.Helper()
	op, err := h.coord.Begin(kind, key, p)
	if err != nil {
		t.Fatalf("Begin(%s): %v", kind, err)
	}
	return h.coord.Finish(op, op.Run(context.Background(), h.fake))
}

func (h *harness) counter(kind Kind, outcome string) float64 {
	return testutil.ToFloat64(h.coord.metrics.mutations.WithLabelValues(string(kind), outcome))
}

func TestInstall_FailureRestoresStoreByValue(t *testing.T) {
	h := newHarness(t)
	before := h.db.Export()
	beforeCounters := h.db.Counters()

	op, err := h.coord.Begin(KindInstall, keyAlpha, Params{})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !h.db.HasInstalledURL(keyAlpha.URL) || h.db.Counters().Installed != beforeCounters.Installed+1 {
		t.Fatalf("expected optimistic install to be visible immediately")
	}
	if !h.coord.InFlight(keyAlpha) {
		t.Fatalf("expected lock to be held")
	}

	h.fake.FailNext(remotetest.OpInstall, remote.Reject("install", "clone failed: repository not found"))
	res := h.coord.Finish(op, op.Run(context.Background(), h.fake))

	if res.OK || res.Collapse {
		t.Fatalf("unexpected result: %#v", res)
	}
	if !strings.Contains(res.Notice.Text, "clone failed: repository not found") || res.Notice.Level != LevelFailure {
		t.Fatalf("expected failure notice with detail; got %#v", res.Notice)
	}
	if !reflect.DeepEqual(before, h.db.Export()) || h.db.Counters() != beforeCounters {
		t.Fatalf("store not restored by value")
	}
	if h.coord.InFlight(keyAlpha) || h.coord.InFlightCount() != 0 {
		t.Fatalf("expected lock released")
	}
	if got := h.counter(KindInstall, outcomeFailure); got != 1 {
		t.Fatalf("expected failure counter 1; got %v", got)
	}
	if got := testutil.ToFloat64(h.coord.metrics.inFlight); got != 0 {
		t.Fatalf("expected in-flight gauge back to 0; got %v", got)
	}
}

func TestInstall_SecondRequestRejectedWhileInFlight(t *testing.T) {
	h := newHarness(t)
	op, err := h.coord.Begin(KindInstall, keyAlpha, Params{})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	_, err = h.coord.Begin(KindInstall, keyAlpha, Params{})
	if !errors.Is(err, ErrInProgress) {
		t.Fatalf("expected ErrInProgress; got %v", err)
	}
	if n := NoticeForError(KindInstall, err); !strings.Contains(n.Text, "already in progress") {
		t.Fatalf("unexpected notice: %#v", n)
	}

	res := h.coord.Finish(op, op.Run(context.Background(), h.fake))
	if !res.OK || !res.Collapse || res.Notice.Text != "Installed alpha" {
		t.Fatalf("unexpected result: %#v", res)
	}
	if n := h.fake.CallCount(remotetest.OpInstall); n != 1 {
		t.Fatalf("expected exactly one remote call; got %d", n)
	}
	if got := h.counter(KindInstall, outcomeInProgress); got != 1 {
		t.Fatalf("expected in_progress counter 1; got %v", got)
	}
}

func TestInstall_Preconditions(t *testing.T) {
	h := newHarness(t)
	var pre PreconditionError
	if _, err := h.coord.Begin(KindInstall, keyBeta, Params{}); !errors.As(err, &pre) {
		t.Fatalf("expected already-installed precondition; got %v", err)
	}
	if _, err := h.coord.Begin(KindInstall, keyFoo, Params{}); !errors.As(err, &pre) {
		t.Fatalf("expected local-only precondition; got %v", err)
	}
	var nf NotFoundError
	if _, err := h.coord.Begin(KindInstall, model.Key{Name: "ghost"}, Params{}); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError; got %v", err)
	}
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	h := newHarness(t)
	before := h.db.Export()
	if _, err := h.coord.Begin(KindDelete, keyFoo, Params{}); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired; got %v", err)
	}
	if !reflect.DeepEqual(before, h.db.Export()) {
		t.Fatalf("unconfirmed delete changed state")
	}
}

func TestDelete_LocalOnlySuccessRemovesRecord(t *testing.T) {
	h := newHarness(t)
	res := h.run(t, KindDelete, keyFoo, Params{Confirmed: true})
	if !res.OK || !res.Collapse {
		t.Fatalf("unexpected result: %#v", res)
	}
	if _, ok := h.db.FindProject(keyFoo); ok {
		t.Fatalf("expected record removed")
	}
	seen := map[int]bool{}
	for _, p := range h.db.Projects {
		seen[p.RowNumber] = true
	}
	for i := 1; i <= len(h.db.Projects); i++ {
		if !seen[i] {
			t.Fatalf("row numbers not dense after delete: %v", seen)
		}
	}
}

func TestDelete_LocalOnlyFailureIsNotUndone(t *testing.T) {
	h := newHarness(t)
	h.fake.FailNext(remotetest.OpDeleteLocal, remote.Reject("delete", "permission denied"))
	res := h.run(t, KindDelete, keyFoo, Params{Confirmed: true})
	if res.OK || !res.ReloadRecommended {
		t.Fatalf("expected reload recommendation; got %#v", res)
	}
	if _, ok := h.db.FindProject(keyFoo); ok {
		t.Fatalf("local delete failure must not re-insert the record")
	}
}

func TestDelete_PublishedFailureRestoresInstalled(t *testing.T) {
	h := newHarness(t)
	op, err := h.coord.Begin(KindDelete, keyBeta, Params{Confirmed: true})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if h.db.HasInstalledURL(keyBeta.URL) {
		t.Fatalf("expected installed flag cleared optimistically")
	}
	if _, ok := h.db.FindProject(keyBeta); !ok {
		t.Fatalf("published records are never removed by a local delete")
	}
	h.fake.FailNext(remotetest.OpDeleteLocal, remote.Reject("delete", "busy"))
	h.coord.Finish(op, op.Run(context.Background(), h.fake))
	if !h.db.HasInstalledURL(keyBeta.URL) {
		t.Fatalf("expected installed flag restored")
	}
}

func TestRename_Preconditions(t *testing.T) {
	h := newHarness(t)
	before := h.db.Export()
	for _, name := range []string{"", "   ", "foo", "a/b", ".."} {
		if _, err := h.coord.Begin(KindRename, keyFoo, Params{NewName: name}); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
	var pre PreconditionError
	if _, err := h.coord.Begin(KindRename, keyAlpha, Params{NewName: "beta"}); !errors.As(err, &pre) {
		t.Fatalf("expected clash with existing beta; got %v", err)
	}
	if !reflect.DeepEqual(before, h.db.Export()) || h.coord.InFlightCount() != 0 {
		t.Fatalf("rejected renames changed state")
	}
}

func TestRename_SuccessUpdatesURLAndLocksBothKeys(t *testing.T) {
	h := newHarness(t)
	op, err := h.coord.Begin(KindRename, keyFoo, Params{NewName: " bar "})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	want := model.Key{Name: "bar", URL: "/srv/pf/MY_REPOS/bar"}
	if op.Move == nil || op.Move.From != keyFoo || op.Move.To != want {
		t.Fatalf("unexpected move: %#v", op.Move)
	}
	if !h.coord.InFlight(keyFoo) || !h.coord.InFlight(want) {
		t.Fatalf("expected both keys locked")
	}
	if _, ok := h.db.FindProject(want); !ok {
		t.Fatalf("expected optimistic rename in store")
	}

	res := h.coord.Finish(op, op.Run(context.Background(), h.fake))
	if !res.OK || res.Key != want || res.Move != nil {
		t.Fatalf("unexpected result: %#v", res)
	}
	calls := h.fake.Calls()
	last := calls[len(calls)-1]
	if last.Op != remotetest.OpRenameLocal || !reflect.DeepEqual(last.Args, []string{"foo", "bar"}) {
		t.Fatalf("expected local rename call; got %#v", last)
	}
	if h.coord.InFlightCount() != 0 {
		t.Fatalf("expected locks released")
	}
}

func TestRename_PublishedUsesRemoteAndFailureReverts(t *testing.T) {
	h := newHarness(t)
	before := h.db.Export()
	h.fake.FailNext(remotetest.OpRenameRemote, remote.Reject("rename remote", "name already exists on this account"))

	res := h.run(t, KindRename, keyBeta, Params{NewName: "gamma"})
	if res.OK || !res.DiscardEditor {
		t.Fatalf("unexpected result: %#v", res)
	}
	newKey := model.Key{Name: "gamma", URL: "https://github.com/me/gamma"}
	if res.Move == nil || res.Move.From != newKey || res.Move.To != keyBeta || res.Key != keyBeta {
		t.Fatalf("expected reverse move; got %#v", res.Move)
	}
	if !reflect.DeepEqual(before, h.db.Export()) {
		t.Fatalf("rename failure not fully reverted")
	}
	if h.fake.CallCount(remotetest.OpRenameRemote) != 1 {
		t.Fatalf("expected remote rename call")
	}
}

func TestPublish_SuccessRekeysAndMarksInstalled(t *testing.T) {
	h := newHarness(t)
	res := h.run(t, KindPublish, keyDraft, Params{Visibility: remote.Private})
	want := model.Key{Name: "draft", URL: "https://github.com/me/draft"}
	if !res.OK || res.Key != want || res.Move == nil || res.Move.To != want || !res.Collapse {
		t.Fatalf("unexpected result: %#v", res)
	}
	p, ok := h.db.FindProject(want)
	if !ok || p.IsLocalOnly || !p.IsPrivate || p.CanPublish {
		t.Fatalf("unexpected published record: %#v", p)
	}
	if !h.db.IsInstalled(*p) {
		t.Fatalf("expected published record to be installed")
	}
	if h.db.Counters().LocalOnly != 1 {
		t.Fatalf("expected one remaining local project; got %#v", h.db.Counters())
	}
}

func TestPublish_FailureReenablesAndFlags(t *testing.T) {
	h := newHarness(t)
	h.fake.FailNext(remotetest.OpPublish, remote.Reject("publish", "gh: repository creation failed"))
	res := h.run(t, KindPublish, keyDraft, Params{})
	if res.OK {
		t.Fatalf("expected failure")
	}
	p, _ := h.db.FindProject(keyDraft)
	if !p.IsLocalOnly || !p.CanPublish || p.IsPrivate || !p.PublishUnconfirmed {
		t.Fatalf("unexpected record after failed publish: %#v", p)
	}
}

func TestPush_FailureRestoresCanPublish(t *testing.T) {
	h := newHarness(t)
	op, err := h.coord.Begin(KindPush, keyBeta, Params{VersionMode: remote.VersionGenerate})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if p, _ := h.db.FindProject(keyBeta); p.CanPublish {
		t.Fatalf("expected optimistic clear")
	}
	h.fake.FailNext(remotetest.OpPush, remote.Reject("push", "rejected: non-fast-forward"))
	h.coord.Finish(op, op.Run(context.Background(), h.fake))
	if p, _ := h.db.FindProject(keyBeta); !p.CanPublish {
		t.Fatalf("expected canPublish restored")
	}
	if _, err := h.coord.Begin(KindPush, keyAlpha, Params{}); err == nil {
		t.Fatalf("expected nothing-to-push precondition")
	}
}

func TestDescribe_FailureRestores(t *testing.T) {
	h := newHarness(t)
	h.fake.FailNext(remotetest.OpDescribe, remote.Reject("update description", "GITHUB_TOKEN is not configured"))
	h.run(t, KindDescribe, keyAlpha, Params{Description: "second"})
	if p, _ := h.db.FindProject(keyAlpha); p.Description != "first" {
		t.Fatalf("expected description restored; got %q", p.Description)
	}
	if _, err := h.coord.Begin(KindDescribe, keyAlpha, Params{Description: "first"}); err == nil {
		t.Fatalf("expected unchanged description to be rejected")
	}
}

func TestDeleteRemote_FailureReinsertsInPlace(t *testing.T) {
	h := newHarness(t)
	before := h.db.Export()
	op, err := h.coord.Begin(KindDeleteRemote, keyAlpha, Params{Confirmed: true})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, ok := h.db.FindProject(keyAlpha); ok {
		t.Fatalf("expected optimistic removal")
	}
	h.fake.FailNext(remotetest.OpDeleteRemote, remote.Reject("delete remote", "GitHub API error 403"))
	h.coord.Finish(op, op.Run(context.Background(), h.fake))
	if !reflect.DeepEqual(before, h.db.Export()) {
		t.Fatalf("expected store restored after failed remote delete")
	}
}

func TestOpen_RetriesTransientOnceAndRecordsLaunch(t *testing.T) {
	h := newHarness(t)
	h.fake.FailNext(remotetest.OpOpen, &remote.Error{Op: "open", Class: remote.Transient, Detail: "bad gateway"})

	op, err := h.coord.Begin(KindOpen, keyAlpha, Params{})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if h.coord.InFlight(keyAlpha) {
		t.Fatalf("open must not lock the entity")
	}
	res := h.coord.Finish(op, op.Run(context.Background(), h.fake))
	if !res.OK || !res.Launched || res.Collapse {
		t.Fatalf("unexpected result: %#v", res)
	}
	if n := h.fake.CallCount(remotetest.OpOpen); n != 2 {
		t.Fatalf("expected one retry; got %d calls", n)
	}

	h.fake.FailNext(remotetest.OpOpen, remote.Reject("open", "Folder not found"))
	res = h.run(t, KindOpen, keyAlpha, Params{})
	if res.OK || h.fake.CallCount(remotetest.OpOpen) != 3 {
		t.Fatalf("rejected open must not be retried")
	}
}

func TestCreate_AddsLocalRecordOrRequestsReload(t *testing.T) {
	h := newHarness(t)
	h.fake.Created = remote.CreateResult{FolderName: "fresh", Path: "/srv/pf/NEW_PROJECTS/fresh"}
	res := h.run(t, KindCreate, model.Key{}, Params{})
	if !res.OK || res.Reload || res.Key.Name != "fresh" {
		t.Fatalf("unexpected result: %#v", res)
	}
	p, ok := h.db.FindProject(res.Key)
	if !ok || !p.IsLocalOnly || p.RowNumber != 1 {
		t.Fatalf("expected new local project ranked first; got %#v", p)
	}

	h.fake.Created = remote.CreateResult{FolderName: "other"}
	res = h.run(t, KindCreate, model.Key{}, Params{})
	if !res.Reload {
		t.Fatalf("expected reload when the path is unknown")
	}
}

func TestDistinctKeys_CompleteInAnyOrder(t *testing.T) {
	h := newHarness(t)
	opA, err := h.coord.Begin(KindInstall, keyAlpha, Params{})
	if err != nil {
		t.Fatalf("Begin alpha: %v", err)
	}
	opB, err := h.coord.Begin(KindPush, keyBeta, Params{})
	if err != nil {
		t.Fatalf("Begin beta: %v", err)
	}

	h.fake.FailNext(remotetest.OpInstall, remote.Reject("install", "nope"))
	outA := opA.Run(context.Background(), h.fake)
	outB := opB.Run(context.Background(), h.fake)

	h.coord.Finish(opB, outB)
	if !h.coord.InFlight(keyAlpha) {
		t.Fatalf("finishing beta must not release alpha")
	}
	h.coord.Finish(opA, outA)

	if h.db.HasInstalledURL(keyAlpha.URL) {
		t.Fatalf("alpha install should have rolled back")
	}
	if p, _ := h.db.FindProject(keyBeta); p.CanPublish {
		t.Fatalf("beta push should stay confirmed")
	}
}

func TestDo_ReturnsNoticeForRejection(t *testing.T) {
	h := newHarness(t)
	res, err := h.coord.Do(context.Background(), h.fake, KindRename, keyFoo, Params{NewName: "foo"})
	if err == nil || res.Notice.Level != LevelFailure || !strings.Contains(res.Notice.Text, "name unchanged") {
		t.Fatalf("unexpected: %#v %v", res, err)
	}
}
