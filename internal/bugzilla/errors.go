package bugzilla

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoResponse marks transport failures: empty or unparseable bodies and
// failed round trips. They are logged where they happen and otherwise ignored.
var ErrNoResponse = errors.New("bugzilla: no response")

// ErrLoginRequired is returned locally for operations that need a session.
var ErrLoginRequired error = &APIError{Status: 401, Code: CodeLoginRequired, Message: "You must log in first."}

const (
	// CodeTokenExpired is returned once the login token is no longer valid.
	CodeTokenExpired Code = "32000"
	// CodeLoginRequired is "You must log in before using this part of Bugzilla."
	CodeLoginRequired Code = "410"
)

// Code is the tracker's application error code. Installations differ in
// whether they send it as a number or a string.
type Code string

func (c *Code) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null" || s == "":
		*c = ""
	case strings.HasPrefix(s, `"`):
		v, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		*c = Code(v)
	default:
		*c = Code(s)
	}
	return nil
}

type APIError struct {
	Status  int
	Code    Code
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("bugzilla: %s (code %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("bugzilla: HTTP %d: %s", e.Status, e.Message)
}

// Kind classifies an error for dispatch.
type Kind int

const (
	KindNone Kind = iota
	// KindTransport is a silent no-op.
	KindTransport
	KindSessionExpired
	KindLoginRequired
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransport:
		return "transport"
	case KindSessionExpired:
		return "session-expired"
	case KindLoginRequired:
		return "login-required"
	default:
		return "other"
	}
}

func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrNoResponse) || errors.Is(err, context.Canceled) {
		return KindTransport
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case CodeTokenExpired:
			return KindSessionExpired
		case CodeLoginRequired:
			return KindLoginRequired
		}
	}
	return KindOther
}

func IsSessionExpired(err error) bool { return Classify(err) == KindSessionExpired }

func IsLoginRequired(err error) bool { return Classify(err) == KindLoginRequired }
