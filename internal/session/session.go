// Package session holds the user's board selection and its query-string form.
package session

import (
	"net/url"
	"strconv"
	"strings"
)

// State is the client session. It is owned by one controller and never shared.
type State struct {
	Product      string `json:"product"`
	Milestone    string `json:"milestone"`
	Assignee     string `json:"assignee,omitempty"`
	Filter       string `json:"filter,omitempty"`
	LoadComments bool   `json:"comments"`
	AutoRefresh  bool   `json:"autorefresh"`
	Site         string `json:"site,omitempty"`
}

// Ready reports whether a board can be loaded.
func (s State) Ready() bool {
	return strings.TrimSpace(s.Product) != "" && strings.TrimSpace(s.Milestone) != ""
}

// SelectProduct switches product; milestone and assignee belong to the old
// product and are cleared.
func (s *State) SelectProduct(product string) {
	if s.Product == product {
		return
	}
	s.Product = product
	s.Milestone = ""
	s.Assignee = ""
}

// Parse reads state from a query string or a full URL. Keys that are absent
// keep the value from base.
func Parse(raw string, base State) (State, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return base, nil
	}
	query := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return base, err
		}
		query = u.RawQuery
	}
	query = strings.TrimPrefix(query, "?")
	vals, err := url.ParseQuery(query)
	if err != nil {
		return base, err
	}
	s := base
	str := func(key string, dst *string) {
		if _, ok := vals[key]; ok {
			*dst = vals.Get(key)
		}
	}
	flag := func(key string, dst *bool) {
		if _, ok := vals[key]; ok {
			// Only the literal "true" enables a flag.
			*dst = vals.Get(key) == "true"
		}
	}
	str("product", &s.Product)
	str("milestone", &s.Milestone)
	str("assignee", &s.Assignee)
	flag("comments", &s.LoadComments)
	flag("autorefresh", &s.AutoRefresh)
	str("site", &s.Site)
	return s, nil
}

// Encode writes the query string in a stable key order.
func (s State) Encode() string {
	pairs := []struct{ k, v string }{
		{"product", s.Product},
		{"milestone", s.Milestone},
		{"assignee", s.Assignee},
		{"comments", strconv.FormatBool(s.LoadComments)},
		{"autorefresh", strconv.FormatBool(s.AutoRefresh)},
		{"site", s.Site},
	}
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.v))
	}
	return b.String()
}
