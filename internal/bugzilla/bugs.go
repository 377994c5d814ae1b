package bugzilla

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bzboard/internal/model"
)

// DefaultBugFields is what the board needs to render and stage a card.
var DefaultBugFields = []string{
	"id", "summary", "status", "resolution", "severity", "priority",
	"assigned_to", "deadline", "target_milestone", "product", "last_change_time",
}

// BugQuery maps onto GET /bug search parameters. Empty fields are not sent.
type BugQuery struct {
	Product       string
	Milestone     string
	Component     string
	Priority      string
	Resolution    string
	AssignedTo    string
	QAContact     string
	Order         string
	IncludeFields []string
	// ChangedSince limits results to bugs changed at or after this time.
	ChangedSince time.Time
}

func (q BugQuery) values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if strings.TrimSpace(val) != "" {
			v.Set(k, val)
		}
	}
	set("product", q.Product)
	set("target_milestone", q.Milestone)
	set("component", q.Component)
	set("priority", q.Priority)
	set("resolution", q.Resolution)
	set("assigned_to", q.AssignedTo)
	set("qa_contact", q.QAContact)
	set("order", q.Order)
	fields := q.IncludeFields
	if len(fields) == 0 {
		fields = DefaultBugFields
	}
	v.Set("include_fields", strings.Join(fields, ","))
	if !q.ChangedSince.IsZero() {
		v.Set("last_change_time", q.ChangedSince.UTC().Format(time.RFC3339))
	}
	return v
}

func (c *Client) SearchBugs(ctx context.Context, q BugQuery) ([]model.Bug, error) {
	var resp struct {
		Bugs []model.Bug `json:"bugs"`
	}
	if err := c.get(ctx, "/bug", q.values(), &resp); err != nil {
		return nil, err
	}
	return resp.Bugs, nil
}

// ErrBugNotFound is returned by Bug when the id is unknown or hidden.
var ErrBugNotFound = errors.New("bugzilla: bug not found")

// Bug fetches a single bug by id.
func (c *Client) Bug(ctx context.Context, id int) (model.Bug, error) {
	var resp struct {
		Bugs []model.Bug `json:"bugs"`
	}
	q := url.Values{"include_fields": {strings.Join(DefaultBugFields, ",")}}
	if err := c.get(ctx, "/bug/"+strconv.Itoa(id), q, &resp); err != nil {
		return model.Bug{}, err
	}
	if len(resp.Bugs) == 0 {
		return model.Bug{}, fmt.Errorf("%w: #%d", ErrBugNotFound, id)
	}
	return resp.Bugs[0], nil
}

type commentsResponse struct {
	Bugs map[string]struct {
		Comments []model.Comment `json:"comments"`
	} `json:"bugs"`
}

// Comments returns every comment on a bug; the first is the description.
func (c *Client) Comments(ctx context.Context, id int) ([]model.Comment, error) {
	var resp commentsResponse
	q := url.Values{"include_fields": {"id,text,time,creator"}}
	if err := c.get(ctx, "/bug/"+strconv.Itoa(id)+"/comment", q, &resp); err != nil {
		return nil, err
	}
	return resp.Bugs[strconv.Itoa(id)].Comments, nil
}

// CommentCount is the number of comments excluding the description.
func (c *Client) CommentCount(ctx context.Context, id int) (int, error) {
	var resp commentsResponse
	q := url.Values{"include_fields": {"id"}}
	if err := c.get(ctx, "/bug/"+strconv.Itoa(id)+"/comment", q, &resp); err != nil {
		return 0, err
	}
	n := len(resp.Bugs[strconv.Itoa(id)].Comments) - 1
	if n < 0 {
		n = 0
	}
	return n, nil
}

func (c *Client) CreateBug(ctx context.Context, nb model.NewBug) (int, error) {
	var resp struct {
		ID int `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/bug", nil, nb, &resp); err != nil {
		return 0, err
	}
	if resp.ID == 0 {
		return 0, fmt.Errorf("bugzilla: create returned no id")
	}
	return resp.ID, nil
}

func (c *Client) UpdateBug(ctx context.Context, u model.BugUpdate) error {
	if u.ID <= 0 {
		return fmt.Errorf("bugzilla: update without bug id")
	}
	return c.do(ctx, http.MethodPut, "/bug/"+strconv.Itoa(u.ID), nil, u, nil)
}
