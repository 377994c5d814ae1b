package cli

import (
	"errors"
	"fmt"
)

var (
	errNotLoggedIn = errors.New("not logged in; run `bzboard login`")
	errNoBoard     = errors.New("no board selected; pass --product and --milestone (or --url)")
)

type badBugIDError struct {
	arg string
}

func (e badBugIDError) Error() string {
	return fmt.Sprintf("invalid bug id: %q", e.arg)
}

var errDoctorIssuesFound = errors.New("doctor found errors")
