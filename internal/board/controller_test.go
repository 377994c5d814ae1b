package board

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"bzboard/internal/bugzilla"
	"bzboard/internal/bugzilla/bugzillatest"
	"bzboard/internal/form"
	"bzboard/internal/model"
	"bzboard/internal/poll"
	"bzboard/internal/session"
	"bzboard/internal/store"
)

type fixture struct {
	srv    *bugzillatest.Server
	client *bugzilla.Client
	state  *store.State
	hook   *test.Hook
	ctrl   *Controller
	now    time.Time
}

func newFixture(t *testing.T, mutate func(*store.Options)) *fixture {
	t.Helper()
	t.Setenv("BZBOARD_READ_ONLY", "")
	srv := bugzillatest.New(t)
	srv.AddProduct(bugzillatest.Product{
		Name:           "Widget",
		Milestones:     []string{"1.0", "2.0"},
		Components:     []string{"core"},
		Versions:       []string{"unspecified"},
		HasUnconfirmed: true,
	})
	srv.AddUser(model.UserDetail{ID: 7, Name: "me@example.com", RealName: "Me", Email: "me@example.com"}, "secret")

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	client, err := bugzilla.NewClient(bugzilla.Config{Site: srv.URL, HTTPClient: srv.Client(), Logger: logger})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	st, err := store.OpenState(context.Background(), filepath.Join(t.TempDir(), "state.sqlite"))
	if err != nil {
		t.Fatalf("OpenState: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	opts := store.Default()
	opts.Site = srv.URL
	opts.AddCommentOnChange = false
	if mutate != nil {
		mutate(&opts)
	}
	now := time.Now().UTC().Truncate(time.Second)
	ctrl := NewController(opts, client, session.State{Product: "Widget"},
		WithStateStore(st), WithLogger(logger), WithClock(func() time.Time { return now }))
	return &fixture{srv: srv, client: client, state: st, hook: hook, ctrl: ctrl, now: now}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	if err := f.ctrl.Login(context.Background(), "me@example.com", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func (f *fixture) loadMeta(t *testing.T) {
	t.Helper()
	if err := f.ctrl.LoadMeta(context.Background()); err != nil {
		t.Fatalf("LoadMeta: %v", err)
	}
}

func (f *fixture) addBug(id int, milestone, status, summary, assignee string) {
	f.srv.AddBug(model.Bug{
		ID: id, Product: "Widget", Milestone: milestone, Status: status, Summary: summary,
		Priority: "P2", Severity: "major",
		AssignedToDetail: model.UserDetail{ID: 7, Name: assignee, RealName: "Me"},
		LastChangeTime:   f.now.Add(-time.Hour),
	})
}

func TestReload_UnsetMilestoneDoesNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.loadMeta(t)
	f.ctrl.Board().Place([]model.Bug{{ID: 99, Status: "CONFIRMED"}}, "")

	if err := f.ctrl.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if n := f.srv.Count("GET", "/bug"); n != 0 {
		t.Fatalf("expected no bug search, got %d", n)
	}
	if f.ctrl.Board().Store().Len() != 1 || f.ctrl.Generation() != 0 {
		t.Fatalf("board must be untouched")
	}
}

func TestReload_PlacesFetchedTickets(t *testing.T) {
	f := newFixture(t, nil)
	f.addBug(1, "1.0", "CONFIRMED", "network timeout", "me@example.com")
	f.addBug(2, "1.0", "IN_PROGRESS", "ui glitch", "me@example.com")
	f.addBug(3, "1.0", "RESOLVED", "network flake", "other@example.com")
	f.addBug(4, "2.0", "CONFIRMED", "later", "me@example.com")
	f.loadMeta(t)
	f.ctrl.SelectMilestone("1.0")

	if err := f.ctrl.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	b := f.ctrl.Board()
	if b.VisibleTotal() != 3 {
		t.Fatalf("expected 3 cards, got %d", b.VisibleTotal())
	}
	for _, id := range []int{1, 2, 3} {
		src, _ := f.srv.Bug(id)
		got, ok := b.Store().Get(id)
		if !ok || got.Status != src.Status || got.Priority != src.Priority || got.Severity != src.Severity {
			t.Fatalf("card #%d does not match the tracker: %+v", id, got)
		}
	}
	if got := len(b.Assignees()); got != 2 {
		t.Fatalf("expected 2 assignees, got %d", got)
	}

	f.ctrl.SetFilter("network")
	if b.VisibleTotal() != 2 || b.Visible(2) {
		t.Fatalf("filter must keep only network cards")
	}
	f.ctrl.SetFilter("")
	if b.VisibleTotal() != 3 {
		t.Fatalf("clearing the filter must restore all cards")
	}
}

func TestReload_StaleResultIsDiscarded(t *testing.T) {
	f := newFixture(t, nil)
	f.addBug(1, "1.0", "CONFIRMED", "from A", "me@example.com")
	f.addBug(2, "1.0", "CONFIRMED", "from A too", "me@example.com")
	f.addBug(3, "2.0", "IN_PROGRESS", "from B", "me@example.com")
	f.loadMeta(t)
	ctx := context.Background()

	release := f.srv.Gate("1.0")
	defer release()

	f.ctrl.SelectMilestone("1.0")
	ra, ok := f.ctrl.BeginReload()
	if !ok {
		t.Fatalf("expected reload A to start")
	}
	done := make(chan ReloadResult, 1)
	go func() {
		res, err := f.ctrl.FetchReload(ctx, ra)
		if err != nil {
			t.Errorf("FetchReload A: %v", err)
		}
		done <- res
	}()

	f.ctrl.SelectMilestone("2.0")
	rb, _ := f.ctrl.BeginReload()
	resB, err := f.ctrl.FetchReload(ctx, rb)
	if err != nil {
		t.Fatalf("FetchReload B: %v", err)
	}
	if !f.ctrl.ApplyReload(resB) {
		t.Fatalf("expected B to apply")
	}

	release()
	resA := <-done
	if f.ctrl.ApplyReload(resA) {
		t.Fatalf("stale reload A must be discarded")
	}
	b := f.ctrl.Board()
	if b.Store().Len() != 1 {
		t.Fatalf("expected only B's ticket, got %v", b.Store().IDs())
	}
	if col, _ := b.ColumnOf(3); col != "IN_PROGRESS" {
		t.Fatalf("expected #3 in IN_PROGRESS, got %q", col)
	}
}

func TestReload_FetchOrderTicketsBacklogUsers(t *testing.T) {
	f := newFixture(t, nil)
	f.addBug(1, "1.0", "CONFIRMED", "current", "me@example.com")
	f.addBug(2, model.NoMilestone, "CONFIRMED", "backlog", "me@example.com")
	f.login(t)
	f.loadMeta(t)
	f.ctrl.SelectMilestone("1.0")
	if !f.ctrl.ToggleBacklog() {
		t.Fatalf("showing an empty backlog must request a reload")
	}
	f.srv.ResetRequests()

	if err := f.ctrl.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	var seq []string
	for _, r := range f.srv.Requests() {
		switch r.Path {
		case "/bug":
			seq = append(seq, "bug:"+r.Query["target_milestone"][0])
		case "/user":
			seq = append(seq, "user")
		}
	}
	want := []string{"bug:1.0", "bug:---", "user"}
	if len(seq) != len(want) {
		t.Fatalf("unexpected request sequence %v", seq)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("unexpected request sequence %v", seq)
		}
	}
	b := f.ctrl.Board()
	if col, _ := b.ColumnOf(2); col != model.BacklogColumn {
		t.Fatalf("expected #2 in the backlog, got %q", col)
	}
	got, _ := b.Store().Get(1)
	if got.AssignedToDetail.Email != "me@example.com" {
		t.Fatalf("expected email enrichment, got %+v", got.AssignedToDetail)
	}
}

func TestBacklog_HiddenForNoMilestone(t *testing.T) {
	f := newFixture(t, nil)
	f.loadMeta(t)
	f.ctrl.SelectMilestone(model.NoMilestone)
	if f.ctrl.ToggleBacklog() || f.ctrl.Board().BacklogShown() {
		t.Fatalf("backlog cannot be shown for the --- milestone")
	}
}

func TestUserView_RequiresLoginAndKeepsRecentTickets(t *testing.T) {
	f := newFixture(t, nil)
	f.addBug(1, "1.0", "CONFIRMED", "recent", "me@example.com")
	f.srv.AddBug(model.Bug{
		ID: 2, Product: "Widget", Milestone: "1.0", Status: "CONFIRMED", Summary: "stale",
		AssignedToDetail: model.UserDetail{ID: 7, Name: "me@example.com"},
		LastChangeTime:   f.now.Add(-20 * 24 * time.Hour),
	})
	f.addBug(3, "1.0", "CONFIRMED", "someone else", "other@example.com")

	if err := f.ctrl.LoadUserView(context.Background(), ViewMine); !bugzilla.IsLoginRequired(err) {
		t.Fatalf("expected login required, got %v", err)
	}

	f.login(t)
	f.loadMeta(t)
	if err := f.ctrl.LoadUserView(context.Background(), ViewMine); err != nil {
		t.Fatalf("LoadUserView: %v", err)
	}
	ids := f.ctrl.Board().Store().IDs()
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected only the recent own ticket, got %v", ids)
	}
	if f.ctrl.View() != ViewMine {
		t.Fatalf("expected mine view, got %v", f.ctrl.View())
	}
}

func TestDropAndWrite_MovesCard(t *testing.T) {
	f := newFixture(t, nil)
	f.addBug(1, "1.0", "CONFIRMED", "fix me", "me@example.com")
	f.loadMeta(t)
	f.ctrl.SelectMilestone("1.0")
	ctx := context.Background()
	if err := f.ctrl.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if err := f.ctrl.StartDrag(1); !errors.Is(err, ErrEditDisabled) {
		t.Fatalf("expected edit disabled when logged out, got %v", err)
	}
	f.login(t)

	if err := f.ctrl.StartDrag(1); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	st, needsForm, err := f.ctrl.Drop("IN_PROGRESS")
	if err != nil || needsForm {
		t.Fatalf("Drop IN_PROGRESS: needsForm=%v err=%v", needsForm, err)
	}
	u, err := f.ctrl.DirectUpdate(st)
	if err != nil {
		t.Fatalf("DirectUpdate: %v", err)
	}
	if err := f.ctrl.WriteUpdate(ctx, u); err != nil {
		t.Fatalf("WriteUpdate: %v", err)
	}
	if err := f.ctrl.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if col, _ := f.ctrl.Board().ColumnOf(1); col != "IN_PROGRESS" {
		t.Fatalf("expected #1 in IN_PROGRESS, got %q", col)
	}

	_ = f.ctrl.StartDrag(1)
	st, needsForm, err = f.ctrl.Drop("RESOLVED")
	if err != nil || !needsForm {
		t.Fatalf("RESOLVED requires the form: needsForm=%v err=%v", needsForm, err)
	}
	if _, err := f.ctrl.PrepareUpdate(st, form.EditInput{}); err == nil {
		t.Fatalf("expected resolution to be required")
	}
	u, err = f.ctrl.PrepareUpdate(st, form.EditInput{Resolution: "FIXED", Comment: "done"})
	if err != nil {
		t.Fatalf("PrepareUpdate: %v", err)
	}
	if err := f.ctrl.WriteUpdate(ctx, u); err != nil {
		t.Fatalf("WriteUpdate: %v", err)
	}
	got, _ := f.srv.Bug(1)
	if got.Status != "RESOLVED" || got.Resolution != "FIXED" {
		t.Fatalf("tracker not updated: %+v", got)
	}
}

func TestPrepareNewBug_UsesProductDefaults(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t)
	f.loadMeta(t)
	f.ctrl.SelectMilestone("2.0")

	if _, err := f.ctrl.PrepareNewBug(form.CreateInput{}); err == nil {
		t.Fatalf("expected summary to be required")
	}
	nb, err := f.ctrl.PrepareNewBug(form.CreateInput{Summary: "crash on start", Description: "boom"})
	if err != nil {
		t.Fatalf("PrepareNewBug: %v", err)
	}
	if nb.Product != "Widget" || nb.Component != "core" || nb.Version != "unspecified" || nb.Milestone != "2.0" {
		t.Fatalf("unexpected new bug %+v", nb)
	}
	id, err := f.ctrl.WriteNewBug(context.Background(), nb)
	if err != nil || id <= 0 {
		t.Fatalf("WriteNewBug: id=%d err=%v", id, err)
	}
}

func TestHandleError_SessionExpiredSignsOut(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t)
	ctx := context.Background()

	out := f.ctrl.HandleError(ctx, &bugzilla.APIError{Status: 401, Code: bugzilla.CodeTokenExpired, Message: "expired"}, nil)
	if !out.SignedOut || out.Notice == "" || out.Kind != bugzilla.KindSessionExpired {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if f.ctrl.LoggedIn() || f.client.Token() != "" {
		t.Fatalf("expected the session to be cleared")
	}
	if _, ok, err := f.state.LoadAuth(ctx, f.srv.URL); err != nil || ok {
		t.Fatalf("expected stored auth to be removed: ok=%v err=%v", ok, err)
	}
}

func TestExpiryNotice_SurvivesReloadUntilLogin(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t)
	ctx := context.Background()
	f.ctrl.SelectMilestone("1.0")

	f.ctrl.HandleError(ctx, &bugzilla.APIError{Status: 401, Code: bugzilla.CodeTokenExpired, Message: "expired"}, nil)
	if _, ok := f.ctrl.BeginReload(); !ok {
		t.Fatalf("expected a reload")
	}
	if f.ctrl.Notice() == "" {
		t.Fatalf("the expiry notice must outlive a reload")
	}
	f.login(t)
	if f.ctrl.Notice() != "" {
		t.Fatalf("logging in must clear the expiry notice, got %q", f.ctrl.Notice())
	}

	f.ctrl.SetNotice("2 bugs changed")
	f.ctrl.BeginReload()
	if f.ctrl.Notice() != "" {
		t.Fatalf("a reload must clear change notices")
	}
}

func TestFetchMeta_UserFailureKeepsColumns(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t)
	f.srv.Fail("/user/7", bugzillatest.Failure{Status: 500, Code: 100500, Message: "user lookup broke"})

	m, err := f.ctrl.FetchMeta(context.Background(), "Widget", 7)
	if err == nil {
		t.Fatalf("expected the user lookup error")
	}
	if len(m.Statuses) == 0 || m.Product.Product != "Widget" || m.UserName != "" {
		t.Fatalf("expected statuses and product despite the failure, got %+v", m)
	}

	if err := f.ctrl.LoadMeta(context.Background()); err == nil {
		t.Fatalf("LoadMeta must still report the failure")
	}
	if len(f.ctrl.Meta().Statuses) == 0 || len(f.ctrl.Board().Statuses()) == 0 {
		t.Fatalf("the board must keep its columns")
	}
}

func TestHandleError_LoginRequiredOpensOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if out := f.ctrl.HandleError(ctx, bugzilla.ErrLoginRequired, nil); !out.OpenLogin {
		t.Fatalf("expected login to open")
	}
	if out := f.ctrl.HandleError(ctx, bugzilla.ErrLoginRequired, nil); out.OpenLogin {
		t.Fatalf("login must not open twice")
	}
}

func TestHandleError_TransportIsSilent(t *testing.T) {
	f := newFixture(t, func(o *store.Options) { o.ErrorPolicy = store.ErrorPolicyReport })
	called := false
	out := f.ctrl.HandleError(context.Background(), bugzilla.ErrNoResponse, func(error) { called = true })
	if called || out.Notice != "" || out.Kind != bugzilla.KindTransport {
		t.Fatalf("transport errors must be ignored: %+v called=%v", out, called)
	}
}

func TestHandleError_OtherFollowsPolicy(t *testing.T) {
	apiErr := &bugzilla.APIError{Status: 400, Code: "51", Message: "bad field"}
	ctx := context.Background()

	f := newFixture(t, nil)
	if out := f.ctrl.HandleError(ctx, apiErr, nil); out.Notice != "" {
		t.Fatalf("drop policy must not notify: %+v", out)
	}
	if len(f.hook.Entries) == 0 || f.hook.LastEntry().Level != logrus.ErrorLevel {
		t.Fatalf("drop policy must log the error")
	}

	f = newFixture(t, func(o *store.Options) { o.ErrorPolicy = store.ErrorPolicyReport })
	if out := f.ctrl.HandleError(ctx, apiErr, nil); out.Notice == "" {
		t.Fatalf("report policy must set a notice")
	}

	var got error
	f.ctrl.DismissNotice()
	f.ctrl.HandleError(ctx, apiErr, func(err error) { got = err })
	if !errors.Is(got, apiErr) || f.ctrl.Notice() != "" {
		t.Fatalf("custom handler must take over: got=%v notice=%q", got, f.ctrl.Notice())
	}
}

func TestUpdateChecker_CountsChangesSinceLoad(t *testing.T) {
	f := newFixture(t, nil)
	f.addBug(1, "1.0", "CONFIRMED", "old", "me@example.com")
	f.loadMeta(t)
	ctx := context.Background()

	if _, err := f.ctrl.UpdateChecker()(ctx); !errors.Is(err, poll.ErrStop) {
		t.Fatalf("expected ErrStop before the first load, got %v", err)
	}

	f.ctrl.SelectMilestone("1.0")
	if err := f.ctrl.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	check := f.ctrl.UpdateChecker()
	if n, err := check(ctx); err != nil || n != 0 {
		t.Fatalf("expected no changes, got n=%d err=%v", n, err)
	}
	f.srv.AddBug(model.Bug{ID: 1, Product: "Widget", Milestone: "1.0", Status: "IN_PROGRESS", LastChangeTime: f.now.Add(time.Minute)})
	f.srv.AddBug(model.Bug{ID: 5, Product: "Widget", Milestone: "2.0", Status: "CONFIRMED", LastChangeTime: f.now.Add(time.Minute)})
	if n, err := check(ctx); err != nil || n != 1 {
		t.Fatalf("expected 1 change in the loaded milestone, got n=%d err=%v", n, err)
	}
	res, err := poll.New(time.Minute, nil).Once(ctx, false, check)
	if err != nil || res.Action != poll.ActionNotify {
		t.Fatalf("expected a notify action, got %+v err=%v", res, err)
	}
}

func TestRestoreSession_LoadsAuthAndView(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t)
	f.ctrl.SelectMilestone("2.0")

	client, err := bugzilla.NewClient(bugzilla.Config{Site: f.srv.URL, HTTPClient: f.srv.Client()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	opts := f.ctrl.Options()
	ctrl := NewController(opts, client, session.State{}, WithStateStore(f.state))
	if err := ctrl.RestoreSession(context.Background()); err != nil {
		t.Fatalf("RestoreSession: %v", err)
	}
	if !ctrl.LoggedIn() || client.Token() == "" {
		t.Fatalf("expected restored login")
	}
	if s := ctrl.Session(); s.Product != "Widget" || s.Milestone != "2.0" {
		t.Fatalf("expected restored view, got %+v", s)
	}
}
