package model

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type DeadlineState int

const (
	DeadlineNone DeadlineState = iota
	DeadlineLater
	DeadlineSoon
	DeadlineExpired
)

// Deadline classifies a YYYY-MM-DD deadline relative to now: today or within a
// week is "soon", any earlier day is "expired".
func Deadline(deadline string, now time.Time) (DeadlineState, time.Time) {
	deadline = strings.TrimSpace(deadline)
	if deadline == "" {
		return DeadlineNone, time.Time{}
	}
	d, err := time.ParseInLocation("2006-01-02", deadline, now.Location())
	if err != nil {
		return DeadlineNone, time.Time{}
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if d.Before(today) {
		return DeadlineExpired, d
	}
	if days := int(math.Round(d.Sub(today).Hours() / 24)); days <= 7 {
		return DeadlineSoon, d
	}
	return DeadlineLater, d
}

func FormatDeadline(d time.Time) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2 Jan 2006")
}

// CardText is the plain-text rendering of a card; the free-text filter matches against it.
func CardText(b Bug) string {
	parts := []string{
		b.Summary,
		"#" + strconv.Itoa(b.ID),
		b.Priority,
		b.Severity,
		AssigneeOf(b).RealName,
	}
	if _, d := Deadline(b.Deadline, time.Now()); !d.IsZero() {
		parts = append(parts, FormatDeadline(d))
	}
	if b.CommentCount > 0 {
		parts = append(parts, strconv.Itoa(b.CommentCount))
	}
	return strings.Join(parts, " ")
}

// AvatarURL returns the Gravatar identicon URL for an email.
func AvatarURL(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	sum := md5.Sum([]byte(email))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?s=20&d=identicon"
}

func ShowBugURL(site string, id int) string {
	return strings.TrimRight(site, "/") + "/show_bug.cgi?id=" + strconv.Itoa(id)
}

func EnterBugURL(site, product, milestone string) string {
	return fmt.Sprintf("%s/enter_bug.cgi?product=%s&target_milestone=%s",
		strings.TrimRight(site, "/"), url.QueryEscape(product), url.QueryEscape(milestone))
}
