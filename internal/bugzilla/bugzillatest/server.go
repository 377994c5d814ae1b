// Package bugzillatest runs an in-memory tracker behind httptest for tests.
package bugzillatest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"bzboard/internal/model"
)

type Product struct {
	Name             string
	Milestones       []string
	Components       []string
	Versions         []string
	HasUnconfirmed   bool
	DefaultMilestone string
}

// Failure is returned instead of the normal response for a path.
type Failure struct {
	Status  int
	Code    any
	Message string
	// Empty sends a 200 with no body.
	Empty bool
}

type Request struct {
	Method string
	Path   string
	Query  map[string][]string
	Body   []byte
}

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	bugs      map[int]model.Bug
	products  map[string]Product
	statuses  []string
	users     map[int]model.UserDetail
	comments  map[int][]model.Comment
	passwords map[string]int
	tokens    map[string]int
	params    map[string]string
	failures  map[string]Failure
	gates     map[string]chan struct{}
	requests  []Request
	nextID    int

	requireLogin bool
}

func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		bugs:      map[int]model.Bug{},
		products:  map[string]Product{},
		statuses:  []string{"UNCONFIRMED", "CONFIRMED", "IN_PROGRESS", "RESOLVED", "VERIFIED"},
		users:     map[int]model.UserDetail{},
		comments:  map[int][]model.Comment{},
		passwords: map[string]int{},
		tokens:    map[string]int{},
		params:    map[string]string{"defaultpriority": "P3", "defaultseverity": "normal"},
		failures:  map[string]Failure{},
		gates:     map[string]chan struct{}{},
		nextID:    1000,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) AddProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.Name] = p
}

func (s *Server) AddBug(b model.Bug) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.LastChangeTime.IsZero() {
		b.LastChangeTime = time.Now().UTC()
	}
	s.bugs[b.ID] = b
}

func (s *Server) Bug(id int) (model.Bug, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bugs[id]
	return b, ok
}

func (s *Server) AddUser(u model.UserDetail, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	if password != "" {
		s.passwords[u.Name+"\x00"+password] = u.ID
	}
}

func (s *Server) AddComments(id int, cs ...model.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[id] = append(s.comments[id], cs...)
}

func (s *Server) SetStatuses(st ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append([]string(nil), st...)
}

// IssueToken registers a token for userID without going through /login.
func (s *Server) IssueToken(userID int, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = userID
}

// RequireLogin makes every call except /login answer 410 without a valid token.
func (s *Server) RequireLogin(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireLogin = on
}

func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// Fail makes every request to path answer with f until cleared.
func (s *Server) Fail(path string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = f
}

func (s *Server) ClearFailure(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, path)
}

// Gate blocks bug searches for milestone until the returned func is called.
func (s *Server) Gate(milestone string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[milestone] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests hit method+path.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, _ := sonic.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/rest.cgi")
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: path, Query: r.URL.Query(), Body: body})
	f, failing := s.failures[path]
	tok := r.URL.Query().Get("token")
	_, validToken := s.tokens[tok]
	requireLogin := s.requireLogin
	s.mu.Unlock()

	if tok != "" && !validToken {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": true, "code": 32000, "message": "The token you provided has expired."})
		return
	}
	if requireLogin && tok == "" && path != "/login" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": true, "code": "410", "message": "You must log in before using this part of Bugzilla."})
		return
	}

	if failing {
		if f.Empty {
			w.WriteHeader(http.StatusOK)
			return
		}
		status := f.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]any{"error": true, "code": f.Code, "message": f.Message})
		return
	}

	q := r.URL.Query()
	switch {
	case r.Method == http.MethodGet && path == "/bug":
		s.searchBugs(w, q)
	case r.Method == http.MethodPost && path == "/bug":
		s.createBug(w, body)
	case r.Method == http.MethodPut && strings.HasPrefix(path, "/bug/"):
		s.updateBug(w, strings.TrimPrefix(path, "/bug/"), body)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/bug/") && strings.HasSuffix(path, "/comment"):
		s.listComments(w, strings.TrimSuffix(strings.TrimPrefix(path, "/bug/"), "/comment"))
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/bug/"):
		s.getBug(w, strings.TrimPrefix(path, "/bug/"))
	case path == "/product":
		s.listProducts(w, q)
	case strings.HasPrefix(path, "/product/"):
		s.productInfo(w, strings.TrimPrefix(path, "/product/"))
	case path == "/field/bug/status/values":
		s.mu.Lock()
		vals := append([]string(nil), s.statuses...)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"values": vals})
	case strings.HasPrefix(path, "/field/bug/"):
		s.fieldValues(w, strings.TrimPrefix(path, "/field/bug/"))
	case path == "/parameters":
		s.mu.Lock()
		p := s.params
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"parameters": p})
	case path == "/login":
		s.login(w, q)
	case path == "/user":
		s.listUsers(w, q["ids"])
	case strings.HasPrefix(path, "/user/"):
		s.listUsers(w, []string{strings.TrimPrefix(path, "/user/")})
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"error": true, "code": 32614, "message": "no such method"})
	}
}

func (s *Server) searchBugs(w http.ResponseWriter, q map[string][]string) {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	milestone := get("target_milestone")
	s.mu.Lock()
	gate := s.gates[milestone]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	var since time.Time
	if v := get("last_change_time"); v != "" {
		since, _ = time.Parse(time.RFC3339, v)
	}
	s.mu.Lock()
	out := make([]model.Bug, 0)
	for _, b := range s.bugs {
		if p := get("product"); p != "" && b.Product != p {
			continue
		}
		if milestone != "" && b.Milestone != milestone {
			continue
		}
		if res := get("resolution"); res != "" {
			cur := b.Resolution
			if cur == "" {
				cur = model.NoMilestone
			}
			if cur != res {
				continue
			}
		}
		if a := get("assigned_to"); a != "" && b.AssignedToDetail.Name != a {
			continue
		}
		if qa := get("qa_contact"); qa != "" && b.QAContact != qa {
			continue
		}
		if !since.IsZero() && b.LastChangeTime.Before(since) {
			continue
		}
		out = append(out, b)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{"bugs": out})
}

func (s *Server) createBug(w http.ResponseWriter, body []byte) {
	var nb model.NewBug
	if err := sonic.Unmarshal(body, &nb); err != nil || nb.Summary == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": true, "code": 50, "message": "summary required"})
		return
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.bugs[id] = model.Bug{
		ID: id, Summary: nb.Summary, Status: "CONFIRMED", Product: nb.Product,
		Milestone: nb.Milestone, Priority: s.params["defaultpriority"], Severity: s.params["defaultseverity"],
		LastChangeTime: time.Now().UTC(),
	}
	s.comments[id] = []model.Comment{{ID: 1, Text: nb.Description, Time: time.Now().UTC()}}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (s *Server) updateBug(w http.ResponseWriter, rawID string, body []byte) {
	id, _ := strconv.Atoi(rawID)
	var u model.BugUpdate
	if err := sonic.Unmarshal(body, &u); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": true, "code": 100, "message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bugs[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": true, "code": 101, "message": "Bug #" + rawID + " does not exist."})
		return
	}
	if u.Status != "" {
		b.Status = u.Status
	}
	if u.Milestone != "" {
		b.Milestone = u.Milestone
	}
	if u.Priority != "" {
		b.Priority = u.Priority
	}
	if u.Severity != "" {
		b.Severity = u.Severity
	}
	if u.Resolution != "" {
		b.Resolution = u.Resolution
	}
	if u.Summary != "" {
		b.Summary = u.Summary
	}
	if u.Comment != nil && u.Comment.Body != "" {
		s.comments[id] = append(s.comments[id], model.Comment{Text: u.Comment.Body, Time: time.Now().UTC()})
	}
	b.LastChangeTime = time.Now().UTC()
	s.bugs[id] = b
	writeJSON(w, http.StatusOK, map[string]any{"bugs": []map[string]any{{"id": id}}})
}

func (s *Server) getBug(w http.ResponseWriter, rawID string) {
	id, _ := strconv.Atoi(rawID)
	s.mu.Lock()
	b, ok := s.bugs[id]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": true, "code": 101, "message": "Bug #" + rawID + " does not exist."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bugs": []model.Bug{b}})
}

func (s *Server) listComments(w http.ResponseWriter, rawID string) {
	id, _ := strconv.Atoi(rawID)
	s.mu.Lock()
	cs := append([]model.Comment{}, s.comments[id]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"bugs": map[string]any{rawID: map[string]any{"comments": cs}},
	})
}

func named(names []string) []map[string]any {
	out := make([]map[string]any, 0, len(names))
	for _, n := range names {
		out = append(out, map[string]any{"name": n, "is_active": true})
	}
	return out
}

func (s *Server) listProducts(w http.ResponseWriter, q map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0)
	if names := q["names"]; len(names) > 0 {
		for _, n := range names {
			if p, ok := s.products[n]; ok {
				out = append(out, map[string]any{"name": p.Name, "milestones": named(p.Milestones)})
			}
		}
	} else {
		for _, p := range s.products {
			out = append(out, map[string]any{"name": p.Name})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": out})
}

func (s *Server) productInfo(w http.ResponseWriter, name string) {
	s.mu.Lock()
	p, ok := s.products[name]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"products": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": []map[string]any{{
		"name":              p.Name,
		"components":        named(p.Components),
		"versions":          named(p.Versions),
		"has_unconfirmed":   p.HasUnconfirmed,
		"default_milestone": p.DefaultMilestone,
	}}})
}

func (s *Server) fieldValues(w http.ResponseWriter, field string) {
	vals := map[string][]string{
		"resolution":   {"", "FIXED", "INVALID", "WONTFIX", "DUPLICATE"},
		"priority":     {"P1", "P2", "P3", "P4", "P5"},
		"bug_severity": {"blocker", "critical", "major", "normal", "minor"},
	}[field]
	out := make([]map[string]any, 0, len(vals))
	for _, v := range vals {
		out = append(out, map[string]any{"name": v})
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": []map[string]any{{"values": out}}})
}

func (s *Server) login(w http.ResponseWriter, q map[string][]string) {
	login, password := first(q["login"]), first(q["password"])
	s.mu.Lock()
	id, ok := s.passwords[login+"\x00"+password]
	if ok {
		s.tokens["tok-"+login] = id
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": true, "code": 300, "message": "The username or password you entered is not valid."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "token": "tok-" + login})
}

func (s *Server) listUsers(w http.ResponseWriter, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.UserDetail, 0, len(ids))
	for _, raw := range ids {
		id, _ := strconv.Atoi(raw)
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func first(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}
