package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"bzboard/internal/bugzilla"
	"bzboard/internal/form"
	"bzboard/internal/model"
	"bzboard/internal/perm"
	"bzboard/internal/poll"
	"bzboard/internal/session"
	"bzboard/internal/store"
)

// Tracker is the subset of the REST gateway the controller uses.
type Tracker interface {
	SearchBugs(ctx context.Context, q bugzilla.BugQuery) ([]model.Bug, error)
	Products(ctx context.Context) ([]string, error)
	Milestones(ctx context.Context, product string) ([]string, error)
	ProductInfo(ctx context.Context, product string) (model.ProductInfo, error)
	StatusValues(ctx context.Context) ([]string, error)
	FieldValues(ctx context.Context, field string) ([]string, error)
	Parameters(ctx context.Context) (bugzilla.Parameters, error)
	User(ctx context.Context, id int) (model.UserDetail, error)
	Users(ctx context.Context, ids []int) ([]model.UserDetail, error)
	Comments(ctx context.Context, id int) ([]model.Comment, error)
	CommentCount(ctx context.Context, id int) (int, error)
	CreateBug(ctx context.Context, nb model.NewBug) (int, error)
	UpdateBug(ctx context.Context, u model.BugUpdate) error
	Login(ctx context.Context, login, password string) (model.Auth, error)
	SetToken(token string)
}

// StateStore persists the login and last view per site.
type StateStore interface {
	LoadAuth(ctx context.Context, site string) (model.Auth, bool, error)
	SaveAuth(ctx context.Context, site string, auth model.Auth) error
	ClearAuth(ctx context.Context, site string) error
	LoadView(ctx context.Context, site string) (string, error)
	SaveView(ctx context.Context, site, query string) error
}

var ErrNotLoaded = errors.New("no board loaded")

// View selects what the board shows.
type View int

const (
	ViewMilestone View = iota
	// ViewMine shows tickets assigned to the user.
	ViewMine
	// ViewInterested shows tickets where the user is QA contact.
	ViewInterested
)

func (v View) String() string {
	switch v {
	case ViewMine:
		return "my bugs"
	case ViewInterested:
		return "interested"
	default:
		return "milestone"
	}
}

// Meta is the tracker metadata the board and forms need.
type Meta struct {
	Products        []string    `json:"products"`
	Statuses        []string    `json:"statuses"`
	Resolutions     []string    `json:"resolutions"`
	Priorities      []string    `json:"priorities"`
	Severities      []string    `json:"severities"`
	DefaultPriority string      `json:"defaultPriority"`
	DefaultSeverity string      `json:"defaultSeverity"`
	UserName        string      `json:"userName,omitempty"`
	UserRealName    string      `json:"userRealName,omitempty"`
	Product         ProductMeta `json:"product"`
}

// ProductMeta belongs to one product and is replaced on product change.
type ProductMeta struct {
	Product    string            `json:"product"`
	Milestones []string          `json:"milestones"`
	Info       model.ProductInfo `json:"info"`
}

// Reload is the immutable ticket for one board load.
type Reload struct {
	Gen          uint64
	View         View
	Query        bugzilla.BugQuery
	Backlog      *bugzilla.BugQuery
	UserID       int
	LoggedIn     bool
	LoadComments bool
}

type ReloadResult struct {
	Gen      uint64
	Bugs     []model.Bug
	Backlog  []model.Bug
	Users    []model.UserDetail
	Comments map[int]int
}

// Outcome tells the UI what an error turned into.
type Outcome struct {
	Kind      bugzilla.Kind
	Notice    string
	OpenLogin bool
	SignedOut bool
}

// Controller owns the session, the board and the gateway. It is not safe for
// concurrent use: mutate it from one goroutine and run Fetch* elsewhere.
type Controller struct {
	opts    store.Options
	tracker Tracker
	state   StateStore
	logger  *log.Logger
	now     func() time.Time

	sess  session.State
	board *Board
	meta  Meta
	auth  model.Auth
	view  View

	gen       uint64
	loadedAt  time.Time
	lastQuery *bugzilla.BugQuery
	notice    string
	sticky    bool // notice survives reloads until dismissed or a login
	loginOpen bool
}

type Option func(*Controller)

func WithStateStore(s StateStore) Option { return func(c *Controller) { c.state = s } }
func WithLogger(l *log.Logger) Option { return func(c *Controller) { c.logger = l } }
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

func NewController(opts store.Options, tracker Tracker, sess session.State, options ...Option) *Controller {
	c := &Controller{
		opts:    opts,
		tracker: tracker,
		logger:  log.StandardLogger(),
		now:     time.Now,
		sess:    sess,
		board:   New(),
	}
	if c.sess.Site == "" {
		c.sess.Site = opts.Site
	}
	for _, o := range options {
		o(c)
	}
	return c
}

func (c *Controller) Options() store.Options { return c.opts }
func (c *Controller) Session() session.State { return c.sess }
func (c *Controller) Board() *Board { return c.board }
func (c *Controller) Meta() Meta { return c.meta }
func (c *Controller) Auth() model.Auth { return c.auth }
func (c *Controller) View() View { return c.view }
func (c *Controller) Generation() uint64 { return c.gen }
func (c *Controller) LoadedAt() time.Time { return c.loadedAt }
func (c *Controller) Notice() string { return c.notice }
func (c *Controller) SetNotice(msg string) { c.notice, c.sticky = msg, false }
func (c *Controller) DismissNotice() { c.notice, c.sticky = "", false }

// clearNotice drops the notice a reload makes obsolete.
func (c *Controller) clearNotice() {
	if !c.sticky {
		c.notice = ""
	}
}
func (c *Controller) LoggedIn() bool { return c.auth.LoggedIn() }
func (c *Controller) CanEdit() bool { return perm.CanEditBugs(c.opts, c.auth) }
func (c *Controller) LoginOpen() bool { return c.loginOpen }
func (c *Controller) SetLoginOpen(open bool) { c.loginOpen = open }

func (c *Controller) site() string { return c.opts.Site }

// RestoreSession loads the stored login and, when sess has no selection,
// the last saved view.
func (c *Controller) RestoreSession(ctx context.Context) error {
	if c.state == nil {
		return nil
	}
	auth, ok, err := c.state.LoadAuth(ctx, c.site())
	if err != nil {
		return err
	}
	if ok {
		c.auth = auth
		c.tracker.SetToken(auth.Token)
	}
	if c.sess.Product == "" {
		q, err := c.state.LoadView(ctx, c.site())
		if err != nil {
			return err
		}
		if q != "" {
			if s, err := session.Parse(q, c.sess); err == nil {
				s.Site = c.sess.Site
				c.sess = s
			}
		}
	}
	return nil
}

func (c *Controller) saveView() {
	if c.state == nil {
		return
	}
	if err := c.state.SaveView(context.Background(), c.site(), c.sess.Encode()); err != nil {
		c.logger.WithError(err).Warn("saving view failed")
	}
}

// --- metadata ---

// FetchMeta loads global and product metadata in parallel. The status and
// field lookups form one group; the product and user lookups run beside it
// and their failures never discard the columns. On error the returned Meta
// still carries whatever did load, and Statuses is nil when the group failed.
func (c *Controller) FetchMeta(ctx context.Context, product string, userID int) (Meta, error) {
	var (
		m                   Meta
		productErr, userErr error
	)
	var side errgroup.Group
	if product != "" {
		side.Go(func() error {
			m.Product, productErr = c.FetchProduct(ctx, product)
			return nil
		})
	}
	if userID > 0 {
		side.Go(func() error {
			u, err := c.tracker.User(ctx, userID)
			if err != nil {
				userErr = fmt.Errorf("look up user %d: %w", userID, err)
				return nil
			}
			m.UserName, m.UserRealName = u.Name, u.RealName
			return nil
		})
	}

	var f Meta
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { f.Products, err = c.tracker.Products(gctx); return })
	g.Go(func() (err error) { f.Statuses, err = c.tracker.StatusValues(gctx); return })
	g.Go(func() (err error) { f.Resolutions, err = c.tracker.FieldValues(gctx, "resolution"); return })
	g.Go(func() (err error) { f.Priorities, err = c.tracker.FieldValues(gctx, "priority"); return })
	g.Go(func() (err error) { f.Severities, err = c.tracker.FieldValues(gctx, "bug_severity"); return })
	g.Go(func() error {
		p, err := c.tracker.Parameters(gctx)
		f.DefaultPriority, f.DefaultSeverity = p.DefaultPriority, p.DefaultSeverity
		return err
	})
	fieldsErr := g.Wait()
	_ = side.Wait()

	if fieldsErr == nil {
		m.Products, m.Statuses, m.Resolutions = f.Products, f.Statuses, f.Resolutions
		m.Priorities, m.Severities = f.Priorities, f.Severities
		m.DefaultPriority, m.DefaultSeverity = f.DefaultPriority, f.DefaultSeverity
	}
	return m, errors.Join(fieldsErr, productErr, userErr)
}

// ApplyMeta installs metadata. Columns are rebuilt when the statuses change.
func (c *Controller) ApplyMeta(m Meta) {
	if !equalStrings(c.board.Statuses(), m.Statuses) {
		c.board.SetStatuses(m.Statuses)
	}
	product := c.meta.Product
	c.meta = m
	if m.Product.Product == "" {
		c.meta.Product = product
	}
	c.applyProductVisibility()
}

// LoadMeta runs FetchMeta and applies the result when the statuses loaded.
func (c *Controller) LoadMeta(ctx context.Context) error {
	m, err := c.FetchMeta(ctx, c.sess.Product, c.auth.UserID)
	if m.Statuses != nil {
		c.ApplyMeta(m)
	}
	return err
}

// FetchProduct loads milestones and product info in parallel.
func (c *Controller) FetchProduct(ctx context.Context, product string) (ProductMeta, error) {
	pm := ProductMeta{Product: product}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { pm.Milestones, err = c.tracker.Milestones(gctx, product); return })
	g.Go(func() (err error) { pm.Info, err = c.tracker.ProductInfo(gctx, product); return })
	if err := g.Wait(); err != nil {
		return ProductMeta{}, err
	}
	return pm, nil
}

// ApplyProduct installs product metadata unless the product changed meanwhile.
func (c *Controller) ApplyProduct(pm ProductMeta) bool {
	if pm.Product != c.sess.Product {
		c.logger.WithField("product", pm.Product).Debug("dropping stale product metadata")
		return false
	}
	c.meta.Product = pm
	c.applyProductVisibility()
	return true
}

func (c *Controller) applyProductVisibility() {
	if c.meta.Product.Product == "" {
		c.board.SetUnconfirmedShown(true)
		return
	}
	c.board.SetUnconfirmedShown(c.meta.Product.Info.HasUnconfirmed)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- selection ---

// SelectProduct switches product. Milestone and assignee are reset; the board
// is left as is until a milestone is chosen.
func (c *Controller) SelectProduct(product string) bool {
	if product == c.sess.Product {
		return false
	}
	c.sess.SelectProduct(product)
	c.meta.Product = ProductMeta{}
	c.saveView()
	return true
}

func (c *Controller) SelectMilestone(milestone string) {
	c.sess.Milestone = milestone
	c.view = ViewMilestone
	c.saveView()
}

// SelectAssignee filters by assignee key ("" shows everyone).
func (c *Controller) SelectAssignee(key string) {
	c.sess.Assignee = key
	c.board.ApplyFilters(c.sess.Assignee, c.sess.Filter)
	c.saveView()
}

func (c *Controller) SetFilter(text string) {
	c.sess.Filter = text
	c.board.ApplyFilters(c.sess.Assignee, c.sess.Filter)
}

func (c *Controller) SetLoadComments(v bool) {
	c.sess.LoadComments = v
	c.saveView()
}

func (c *Controller) SetAutoRefresh(v bool) {
	c.sess.AutoRefresh = v
	c.saveView()
}

// ToggleBacklog shows or hides the backlog column. It returns true when the
// board needs a reload to fetch backlog tickets. The backlog cannot be shown
// for the "---" milestone.
func (c *Controller) ToggleBacklog() (needsReload bool) {
	if c.board.BacklogShown() {
		c.board.SetBacklogShown(false)
		return false
	}
	if c.sess.Milestone == model.NoMilestone || c.view != ViewMilestone {
		return false
	}
	c.board.SetBacklogShown(true)
	return len(c.board.columns[model.BacklogColumn]) == 0
}

// --- reload ---

// BeginReload starts a board load. It returns false, without touching the
// board, when product or milestone is unset.
func (c *Controller) BeginReload() (Reload, bool) {
	if !c.sess.Ready() {
		return Reload{}, false
	}
	c.view = ViewMilestone
	c.board.Clear()
	c.clearNotice()
	if c.sess.Milestone == model.NoMilestone {
		c.board.SetBacklogShown(false)
	}
	c.gen++
	c.loadedAt = c.now()

	q := bugzilla.BugQuery{
		Product:   c.sess.Product,
		Milestone: c.sess.Milestone,
		Order:     c.opts.Order,
	}
	c.lastQuery = &q
	r := Reload{
		Gen:          c.gen,
		View:         ViewMilestone,
		Query:        q,
		UserID:       c.auth.UserID,
		LoggedIn:     c.auth.LoggedIn(),
		LoadComments: c.sess.LoadComments,
	}
	if c.board.BacklogShown() {
		r.Backlog = &bugzilla.BugQuery{
			Product:    c.sess.Product,
			Milestone:  model.NoMilestone,
			Resolution: model.NoMilestone,
			Order:      c.opts.Order,
		}
	}
	return r, true
}

// BeginUserView starts loading the user's own tickets across products.
func (c *Controller) BeginUserView(v View) (Reload, error) {
	if v != ViewMine && v != ViewInterested {
		return Reload{}, fmt.Errorf("not a user view: %v", v)
	}
	if !c.auth.LoggedIn() {
		return Reload{}, bugzilla.ErrLoginRequired
	}
	c.view = v
	c.board.Clear()
	c.board.SetBacklogShown(false)
	c.clearNotice()
	c.gen++
	c.loadedAt = c.now()
	c.lastQuery = nil
	return Reload{
		Gen:          c.gen,
		View:         v,
		Query:        bugzilla.BugQuery{Order: c.opts.Order},
		UserID:       c.auth.UserID,
		LoggedIn:     true,
		LoadComments: c.sess.LoadComments,
	}, nil
}

// FetchReload performs the network part of a load. It only reads r and the
// tracker, so it may run on any goroutine. Tickets, backlog and assignee
// emails are fetched strictly in that order.
func (c *Controller) FetchReload(ctx context.Context, r Reload) (ReloadResult, error) {
	res := ReloadResult{Gen: r.Gen}
	q := r.Query
	if r.View != ViewMilestone {
		u, err := c.tracker.User(ctx, r.UserID)
		if err != nil {
			return res, err
		}
		if r.View == ViewMine {
			q.AssignedTo = u.Name
		} else {
			q.QAContact = u.Name
		}
	}
	bugs, err := c.tracker.SearchBugs(ctx, q)
	if err != nil {
		return res, err
	}
	res.Bugs = bugs

	if r.Backlog != nil {
		backlog, err := c.tracker.SearchBugs(ctx, *r.Backlog)
		if err != nil {
			return res, err
		}
		res.Backlog = backlog
	}

	if r.LoggedIn {
		ids := assigneeIDs(res.Bugs, res.Backlog)
		if len(ids) > 0 {
			users, err := c.tracker.Users(ctx, ids)
			if err != nil {
				return res, err
			}
			res.Users = users
		}
	}

	if r.LoadComments {
		counts, err := c.fetchCommentCounts(ctx, append(append([]model.Bug(nil), res.Bugs...), res.Backlog...))
		if err != nil {
			return res, err
		}
		res.Comments = counts
	}
	return res, nil
}

func assigneeIDs(lists ...[]model.Bug) []int {
	seen := map[int]bool{}
	var ids []int
	for _, l := range lists {
		for _, b := range l {
			id := b.AssignedToDetail.ID
			if id <= 0 || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

const commentFetchLimit = 8

func (c *Controller) fetchCommentCounts(ctx context.Context, bugs []model.Bug) (map[int]int, error) {
	counts := make([]int, len(bugs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(commentFetchLimit)
	for i, b := range bugs {
		g.Go(func() error {
			n, err := c.tracker.CommentCount(gctx, b.ID)
			counts[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[int]int, len(bugs))
	for i, b := range bugs {
		out[b.ID] = counts[i]
	}
	return out, nil
}

// ApplyReload installs a fetch result. Results from a superseded load are
// discarded and false is returned.
func (c *Controller) ApplyReload(res ReloadResult) bool {
	if res.Gen != c.gen {
		c.logger.WithFields(log.Fields{"gen": res.Gen, "current": c.gen}).Debug("discarding stale reload")
		return false
	}
	emails := map[string]string{}
	for _, u := range res.Users {
		if u.Email != "" {
			emails[u.Name] = u.Email
		}
	}
	enrich := func(bugs []model.Bug) []model.Bug {
		out := make([]model.Bug, 0, len(bugs))
		for _, b := range bugs {
			if e, ok := emails[b.AssignedToDetail.Name]; ok && b.AssignedToDetail.Email == "" {
				b.AssignedToDetail.Email = e
			}
			if n, ok := res.Comments[b.ID]; ok {
				b.CommentCount = n
			}
			out = append(out, b)
		}
		return out
	}
	bugs := enrich(res.Bugs)
	if c.view != ViewMilestone {
		bugs = c.recentOnly(bugs)
	}
	c.board.Place(bugs, "")
	if c.board.BacklogShown() {
		c.board.Place(enrich(res.Backlog), model.BacklogColumn)
	}
	c.board.RebuildAssignees()
	if c.sess.Assignee != "" {
		if _, ok := c.board.Assignee(c.sess.Assignee); !ok {
			c.logger.WithField("assignee", c.sess.Assignee).Info("no cards for selected assignee; showing all")
		}
	}
	c.board.ApplyFilters(c.sess.Assignee, c.sess.Filter)
	return true
}

func (c *Controller) recentOnly(bugs []model.Bug) []model.Bug {
	cutoff := c.now().Add(-c.opts.UserViewWindow)
	out := bugs[:0]
	for _, b := range bugs {
		if b.LastChangeTime.After(cutoff) {
			out = append(out, b)
		}
	}
	return out
}

// Reload runs a full load synchronously. It is a no-op when product or
// milestone is unset.
func (c *Controller) Reload(ctx context.Context) error {
	r, ok := c.BeginReload()
	if !ok {
		return nil
	}
	res, err := c.FetchReload(ctx, r)
	if err != nil {
		return err
	}
	c.ApplyReload(res)
	return nil
}

// LoadUserView runs BeginUserView, FetchReload and ApplyReload.
func (c *Controller) LoadUserView(ctx context.Context, v View) error {
	r, err := c.BeginUserView(v)
	if err != nil {
		return err
	}
	res, err := c.FetchReload(ctx, r)
	if err != nil {
		return err
	}
	c.ApplyReload(res)
	return nil
}

// --- polling ---

// UpdateChecker returns a checker counting tickets changed since the board was
// loaded. It captures the current query, so it is safe to run elsewhere.
func (c *Controller) UpdateChecker() poll.Checker {
	if c.lastQuery == nil || c.loadedAt.IsZero() || !c.opts.CheckForUpdates {
		return func(context.Context) (int, error) { return 0, poll.ErrStop }
	}
	q := *c.lastQuery
	q.ChangedSince = c.loadedAt
	q.IncludeFields = []string{"id"}
	tracker := c.tracker
	return func(ctx context.Context) (int, error) {
		bugs, err := tracker.SearchBugs(ctx, q)
		if err != nil {
			return 0, err
		}
		return len(bugs), nil
	}
}

// --- editing ---

func (c *Controller) StartDrag(id int) error {
	if !c.CanEdit() {
		return ErrEditDisabled
	}
	return c.board.StartDrag(id)
}

func (c *Controller) CancelDrag() { c.board.CancelDrag() }

// Drop stages the move of the dragged card onto column. needsForm is true when
// the change must go through the edit form before it is written.
func (c *Controller) Drop(column string) (st Staged, needsForm bool, err error) {
	st, err = c.board.Drop(DropTarget{
		Column:          column,
		Milestone:       c.sess.Milestone,
		BacklogStatus:   c.opts.BacklogDefaultStatus,
		DefaultPriority: c.meta.DefaultPriority,
	})
	if err != nil {
		return Staged{}, false, err
	}
	if c.view != ViewMilestone && column != model.BacklogColumn {
		st.Update.Milestone = ""
	}
	needsForm = c.opts.AddCommentOnChange || len(c.opts.RequiredFields(st.Update.Status)) > 0
	return st, needsForm, nil
}

// OpenCard stages an in-place edit of a card.
func (c *Controller) OpenCard(id int) (Staged, error) {
	if !c.board.Interactive(id) {
		return Staged{}, ErrDragInProgress
	}
	cur, ok := c.board.Store().Get(id)
	if !ok {
		return Staged{}, fmt.Errorf("card #%d is not on the board", id)
	}
	return Staged{Current: cur, Update: model.BugUpdate{ID: id, Status: cur.Status}, Opened: true}, nil
}

// PrepareUpdate validates form input against a staged change.
func (c *Controller) PrepareUpdate(st Staged, in form.EditInput) (model.BugUpdate, error) {
	if !c.CanEdit() {
		return model.BugUpdate{}, ErrEditDisabled
	}
	return form.BuildUpdate(c.opts, st.Current, st.Update, st.Opened, in)
}

// DirectUpdate is the staged change as-is, for moves that skip the form.
func (c *Controller) DirectUpdate(st Staged) (model.BugUpdate, error) {
	if !c.CanEdit() {
		return model.BugUpdate{}, ErrEditDisabled
	}
	return st.Update, nil
}

// WriteUpdate submits an update. Callers reload afterwards.
func (c *Controller) WriteUpdate(ctx context.Context, u model.BugUpdate) error {
	return c.tracker.UpdateBug(ctx, u)
}

// PrepareNewBug validates the create form for the current product and milestone.
func (c *Controller) PrepareNewBug(in form.CreateInput) (model.NewBug, error) {
	if !c.CanEdit() {
		return model.NewBug{}, ErrEditDisabled
	}
	info := c.meta.Product.Info
	if info.Name == "" {
		info.Name = c.sess.Product
	}
	return form.BuildNewBug(info, c.sess.Milestone, in)
}

func (c *Controller) WriteNewBug(ctx context.Context, nb model.NewBug) (int, error) {
	return c.tracker.CreateBug(ctx, nb)
}

// NewBugURL is the tracker's own filing page for the current selection, used
// when the user is not logged in.
func (c *Controller) NewBugURL() string {
	return model.EnterBugURL(c.site(), c.sess.Product, c.sess.Milestone)
}

func (c *Controller) BugURL(id int) string { return model.ShowBugURL(c.site(), id) }

func (c *Controller) FetchComments(ctx context.Context, id int) ([]model.Comment, error) {
	return c.tracker.Comments(ctx, id)
}

// --- session ---

// Login exchanges credentials and installs the session.
func (c *Controller) Login(ctx context.Context, login, password string) error {
	auth, err := c.tracker.Login(ctx, login, password)
	if err != nil {
		return err
	}
	return c.ApplyLogin(ctx, auth)
}

// FetchLogin exchanges credentials without touching controller state.
func (c *Controller) FetchLogin(ctx context.Context, login, password string) (model.Auth, error) {
	return c.tracker.Login(ctx, login, password)
}

func (c *Controller) ApplyLogin(ctx context.Context, auth model.Auth) error {
	c.auth = auth
	c.tracker.SetToken(auth.Token)
	c.loginOpen = false
	if c.sticky {
		c.DismissNotice()
	}
	if c.state != nil {
		return c.state.SaveAuth(ctx, c.site(), auth)
	}
	return nil
}

// SignOut forgets the session and its stored credentials.
func (c *Controller) SignOut(ctx context.Context) error {
	c.auth = model.Auth{}
	c.tracker.SetToken("")
	c.meta.UserName, c.meta.UserRealName = "", ""
	c.board.CancelDrag()
	if c.state != nil {
		return c.state.ClearAuth(ctx, c.site())
	}
	return nil
}

// HandleError dispatches a gateway error. Expired sessions sign out, missing
// logins open the login form once. onErr, when set, then receives the error;
// otherwise unclassified errors follow the configured error policy.
func (c *Controller) HandleError(ctx context.Context, err error, onErr func(error)) Outcome {
	kind := bugzilla.Classify(err)
	out := Outcome{Kind: kind}
	switch kind {
	case bugzilla.KindNone, bugzilla.KindTransport:
		return out
	case bugzilla.KindSessionExpired:
		if serr := c.SignOut(ctx); serr != nil {
			c.logger.WithError(serr).Warn("clearing stored credentials failed")
		}
		out.SignedOut = true
		c.notice, c.sticky = "Your session has expired. Log in again.", true
		out.Notice = c.notice
	case bugzilla.KindLoginRequired:
		if !c.loginOpen {
			c.loginOpen = true
			out.OpenLogin = true
		}
	}
	if onErr != nil {
		onErr(err)
		return out
	}
	if kind != bugzilla.KindOther {
		return out
	}
	switch c.opts.ErrorPolicy {
	case store.ErrorPolicyReport:
		c.notice, c.sticky = err.Error(), false
		out.Notice = c.notice
	default:
		c.logger.WithError(err).Error("unhandled tracker error")
	}
	return out
}
