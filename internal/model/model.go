package model

import "time"

const (
	// BacklogColumn is the id of the synthetic column holding tickets outside the current milestone.
	BacklogColumn = "BACKLOG"
	// NoMilestone is the tracker's placeholder for "no target milestone" (and "no resolution").
	NoMilestone = "---"
)

type UserDetail struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
	Email    string `json:"email,omitempty"`
}

type Bug struct {
	ID               int        `json:"id"`
	Summary          string     `json:"summary"`
	Status           string     `json:"status"`
	Resolution       string     `json:"resolution,omitempty"`
	Priority         string     `json:"priority"`
	Severity         string     `json:"severity"`
	Product          string     `json:"product,omitempty"`
	Milestone        string     `json:"target_milestone,omitempty"`
	AssignedTo       string     `json:"assigned_to,omitempty"`
	AssignedToDetail UserDetail `json:"assigned_to_detail"`
	QAContact        string     `json:"qa_contact,omitempty"`
	Deadline         string     `json:"deadline,omitempty"`
	LastChangeTime   time.Time  `json:"last_change_time"`

	// CommentCount is filled client-side when comment loading is enabled.
	CommentCount int `json:"comment_count,omitempty"`
}

// Assignee is derived from the loaded tickets and only used to populate the assignee filter.
type Assignee struct {
	ID        int    `json:"id,omitempty"`
	Name      string `json:"name"`
	RealName  string `json:"realName"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// AssigneeOf returns the assignee record for b. Bugzilla 6 dropped email from
// bug info, so the login name stands in until the email fetch fills it.
func AssigneeOf(b Bug) Assignee {
	d := b.AssignedToDetail
	email := d.Email
	if email == "" {
		email = d.Name
	}
	name := d.RealName
	if name == "" {
		name = d.Name
	}
	a := Assignee{ID: d.ID, Name: d.Name, RealName: name, Email: email}
	if d.Email != "" {
		a.AvatarURL = AvatarURL(d.Email)
	}
	return a
}

// Key is the de-duplication key used by the assignee filter.
func (a Assignee) Key() string {
	if a.Email != "" {
		return a.Email
	}
	return a.Name
}

type CommentBody struct {
	Body string `json:"body"`
}

// BugUpdate is a staged mutation. Zero-valued fields are not sent.
type BugUpdate struct {
	ID             int          `json:"-"`
	Status         string       `json:"status,omitempty"`
	Milestone      string       `json:"target_milestone,omitempty"`
	Priority       string       `json:"priority,omitempty"`
	Severity       string       `json:"severity,omitempty"`
	Resolution     string       `json:"resolution,omitempty"`
	Summary        string       `json:"summary,omitempty"`
	Comment        *CommentBody `json:"comment,omitempty"`
	WorkTime       float64      `json:"work_time,omitempty"`
	ProductiveTime float64      `json:"productive_time,omitempty"`
}

type NewBug struct {
	Product     string `json:"product"`
	Component   string `json:"component"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Version     string `json:"version"`
	OpSys       string `json:"op_sys"`
	Platform    string `json:"platform"`
	Milestone   string `json:"target_milestone"`
}

type Comment struct {
	ID      int       `json:"id,omitempty"`
	Text    string    `json:"text"`
	Time    time.Time `json:"time"`
	Creator string    `json:"creator"`
}

type ProductInfo struct {
	Name             string   `json:"name"`
	Components       []string `json:"components"`
	Versions         []string `json:"versions"`
	HasUnconfirmed   bool     `json:"hasUnconfirmed"`
	DefaultMilestone string   `json:"defaultMilestone,omitempty"`
}

// Auth is the persisted login for one site.
type Auth struct {
	UserID int    `json:"userId"`
	Token  string `json:"token"`
}

func (a Auth) LoggedIn() bool { return a.Token != "" }
