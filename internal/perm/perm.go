package perm

import (
	"os"
	"strconv"
	"strings"

	"bzboard/internal/model"
	"bzboard/internal/store"
)

func readOnlyOverride() bool {
	// BZBOARD_READ_ONLY=1 forces a read-only board regardless of config.
	if s := strings.TrimSpace(os.Getenv("BZBOARD_READ_ONLY")); s != "" {
		if v, err := strconv.ParseBool(s); err == nil {
			return v
		}
	}
	return false
}

// CanEditBugs reports whether the user may move, edit and file tickets.
//
// Rules:
// - A logged-in session is required.
// - allow_edit_bugs must be set in the config.
// - BZBOARD_READ_ONLY overrides both.
func CanEditBugs(opts store.Options, auth model.Auth) bool {
	if readOnlyOverride() {
		return false
	}
	return auth.LoggedIn() && opts.AllowEditBugs
}
