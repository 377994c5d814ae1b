package bugzilla_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"bzboard/internal/bugzilla"
	"bzboard/internal/bugzilla/bugzillatest"
	"bzboard/internal/model"
)

func newClient(t *testing.T, srv *httptest.Server, token string) (*bugzilla.Client, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	c, err := bugzilla.NewClient(bugzilla.Config{Site: srv.URL, Token: token, HTTPClient: srv.Client(), Logger: logger})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, hook
}

func TestNewClient_RejectsBadSite(t *testing.T) {
	for _, site := range []string{"", "ftp://example.com", "example.com"} {
		if _, err := bugzilla.NewClient(bugzilla.Config{Site: site}); err == nil {
			t.Fatalf("expected error for site %q", site)
		}
	}
}

func TestClient_SendsJSONHeadersAndToken(t *testing.T) {
	var gotAccept, gotContentType, gotToken, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotContentType = r.Header.Get("Content-Type")
		gotToken = r.URL.Query().Get("token")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"values":["NEW","RESOLVED"]}`))
	}))
	defer srv.Close()

	c, _ := newClient(t, srv, "")
	if _, err := c.StatusValues(context.Background()); err != nil {
		t.Fatalf("StatusValues: %v", err)
	}
	if gotAccept != "application/json" || gotContentType != "application/json" {
		t.Fatalf("unexpected headers accept=%q content-type=%q", gotAccept, gotContentType)
	}
	if gotToken != "" {
		t.Fatalf("expected no token before login, got %q", gotToken)
	}
	if gotPath != "/rest.cgi/field/bug/status/values" {
		t.Fatalf("unexpected path %q", gotPath)
	}

	c.SetToken("abc")
	if _, err := c.StatusValues(context.Background()); err != nil {
		t.Fatalf("StatusValues: %v", err)
	}
	if gotToken != "abc" {
		t.Fatalf("expected token on every call, got %q", gotToken)
	}
}

func TestClient_EmptyBodyIsSilentTransportError(t *testing.T) {
	srv := bugzillatest.New(t)
	srv.Fail("/bug", bugzillatest.Failure{Empty: true})
	c, hook := newClient(t, srv.Server, "")

	_, err := c.SearchBugs(context.Background(), bugzilla.BugQuery{Product: "Core"})
	if !errors.Is(err, bugzilla.ErrNoResponse) {
		t.Fatalf("expected ErrNoResponse, got %v", err)
	}
	if got := bugzilla.Classify(err); got != bugzilla.KindTransport {
		t.Fatalf("expected transport kind, got %v", got)
	}
	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected a warning to be logged")
	}
}

func TestClient_ErrorCodesClassify(t *testing.T) {
	cases := []struct {
		name string
		code any
		want bugzilla.Kind
	}{
		{"numeric expired", 32000, bugzilla.KindSessionExpired},
		{"string expired", "32000", bugzilla.KindSessionExpired},
		{"login required", "410", bugzilla.KindLoginRequired},
		{"numeric login required", 410, bugzilla.KindLoginRequired},
		{"other", 101, bugzilla.KindOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := bugzillatest.New(t)
			srv.Fail("/product", bugzillatest.Failure{Status: 401, Code: tc.code, Message: "nope"})
			c, _ := newClient(t, srv.Server, "")
			_, err := c.Products(context.Background())
			var apiErr *bugzilla.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Message != "nope" || apiErr.Status != 401 {
				t.Fatalf("unexpected error %+v", apiErr)
			}
			if got := bugzilla.Classify(err); got != tc.want {
				t.Fatalf("Classify = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClient_ExpiredTokenFromServer(t *testing.T) {
	srv := bugzillatest.New(t)
	c, _ := newClient(t, srv.Server, "stale")
	_, err := c.StatusValues(context.Background())
	if !bugzilla.IsSessionExpired(err) {
		t.Fatalf("expected session expired, got %v", err)
	}
}

func TestSearchBugs_QueryParameters(t *testing.T) {
	srv := bugzillatest.New(t)
	srv.AddBug(model.Bug{ID: 1, Product: "Core", Milestone: "1.0", Status: "CONFIRMED", Summary: "a"})
	srv.AddBug(model.Bug{ID: 2, Product: "Core", Milestone: "2.0", Status: "CONFIRMED", Summary: "b"})
	c, _ := newClient(t, srv.Server, "")

	since := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	bugs, err := c.SearchBugs(context.Background(), bugzilla.BugQuery{
		Product:      "Core",
		Milestone:    "1.0",
		Order:        "priority",
		ChangedSince: since,
	})
	if err != nil {
		t.Fatalf("SearchBugs: %v", err)
	}
	if len(bugs) != 1 || bugs[0].ID != 1 {
		t.Fatalf("unexpected bugs: %+v", bugs)
	}
	reqs := srv.Requests()
	q := reqs[len(reqs)-1].Query
	if q["product"][0] != "Core" || q["target_milestone"][0] != "1.0" || q["order"][0] != "priority" {
		t.Fatalf("unexpected query %v", q)
	}
	if q["last_change_time"][0] != "2020-01-02T03:04:05Z" {
		t.Fatalf("unexpected last_change_time %v", q["last_change_time"])
	}
	if _, ok := q["component"]; ok {
		t.Fatalf("empty component should not be sent")
	}
}

func TestCommentCount_ExcludesDescription(t *testing.T) {
	srv := bugzillatest.New(t)
	srv.AddComments(7, model.Comment{Text: "desc"}, model.Comment{Text: "one"}, model.Comment{Text: "two"})
	c, _ := newClient(t, srv.Server, "")
	n, err := c.CommentCount(context.Background(), 7)
	if err != nil {
		t.Fatalf("CommentCount: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
	cs, err := c.Comments(context.Background(), 7)
	if err != nil || len(cs) != 3 || cs[0].Text != "desc" {
		t.Fatalf("unexpected comments %+v err=%v", cs, err)
	}
}

func TestProductInfoAndFields(t *testing.T) {
	srv := bugzillatest.New(t)
	srv.AddProduct(bugzillatest.Product{
		Name: "Core", Milestones: []string{"---", "1.0"},
		Components: []string{"UI", "Engine"}, Versions: []string{"1"},
		HasUnconfirmed: true, DefaultMilestone: "1.0",
	})
	c, _ := newClient(t, srv.Server, "")
	ctx := context.Background()

	info, err := c.ProductInfo(ctx, "Core")
	if err != nil {
		t.Fatalf("ProductInfo: %v", err)
	}
	if !info.HasUnconfirmed || info.DefaultMilestone != "1.0" || len(info.Components) != 2 || info.Components[0] != "Engine" {
		t.Fatalf("unexpected info %+v", info)
	}
	ms, err := c.Milestones(ctx, "Core")
	if err != nil || len(ms) != 2 || ms[1] != "1.0" {
		t.Fatalf("unexpected milestones %v err=%v", ms, err)
	}
	res, err := c.FieldValues(ctx, "resolution")
	if err != nil {
		t.Fatalf("FieldValues: %v", err)
	}
	for _, r := range res {
		if r == "" {
			t.Fatalf("empty resolution should be skipped: %v", res)
		}
	}
	params, err := c.Parameters(ctx)
	if err != nil || params.DefaultPriority != "P3" {
		t.Fatalf("unexpected params %+v err=%v", params, err)
	}
}

func TestParameters_NoSuchMethodIsNotAnError(t *testing.T) {
	srv := bugzillatest.New(t)
	srv.Fail("/parameters", bugzillatest.Failure{Status: 200, Code: 32614, Message: "no such method"})
	c, _ := newClient(t, srv.Server, "")
	p, err := c.Parameters(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if p.DefaultPriority != "" {
		t.Fatalf("expected empty defaults, got %+v", p)
	}
}

func TestLoginCreateUpdate(t *testing.T) {
	srv := bugzillatest.New(t)
	srv.AddUser(model.UserDetail{ID: 9, Name: "dev@example.com", RealName: "Dev"}, "secret")
	srv.AddBug(model.Bug{ID: 5, Product: "Core", Milestone: "1.0", Status: "CONFIRMED", Summary: "x"})
	c, _ := newClient(t, srv.Server, "")
	ctx := context.Background()

	if _, err := c.Login(ctx, "dev@example.com", "wrong"); err == nil {
		t.Fatalf("expected login failure")
	}
	auth, err := c.Login(ctx, "dev@example.com", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if auth.UserID != 9 || auth.Token == "" {
		t.Fatalf("unexpected auth %+v", auth)
	}
	c.SetToken(auth.Token)

	u, err := c.User(ctx, 9)
	if err != nil || u.RealName != "Dev" {
		t.Fatalf("unexpected user %+v err=%v", u, err)
	}

	id, err := c.CreateBug(ctx, model.NewBug{Product: "Core", Summary: "new", OpSys: "ALL", Platform: "ALL", Milestone: "1.0"})
	if err != nil || id == 0 {
		t.Fatalf("CreateBug: id=%d err=%v", id, err)
	}

	if err := c.UpdateBug(ctx, model.BugUpdate{ID: 5, Status: "RESOLVED", Resolution: "FIXED"}); err != nil {
		t.Fatalf("UpdateBug: %v", err)
	}
	got, _ := srv.Bug(5)
	if got.Status != "RESOLVED" || got.Resolution != "FIXED" {
		t.Fatalf("update not applied: %+v", got)
	}
	if err := c.UpdateBug(ctx, model.BugUpdate{Status: "RESOLVED"}); err == nil {
		t.Fatalf("expected error for update without id")
	}
}

func TestBug_FetchesSingleBug(t *testing.T) {
	srv := bugzillatest.New(t)
	srv.AddBug(model.Bug{ID: 5, Product: "Core", Milestone: "1.0", Status: "CONFIRMED", Summary: "x", Priority: "P1"})
	c, _ := newClient(t, srv.Server, "")
	ctx := context.Background()

	b, err := c.Bug(ctx, 5)
	if err != nil {
		t.Fatalf("Bug: %v", err)
	}
	if b.ID != 5 || b.Summary != "x" || b.Priority != "P1" {
		t.Fatalf("unexpected bug %+v", b)
	}
	_, err = c.Bug(ctx, 6)
	var apiErr *bugzilla.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "101" {
		t.Fatalf("expected code 101, got %v", err)
	}
}
