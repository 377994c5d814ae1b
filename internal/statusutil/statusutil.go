package statusutil

import (
	"fmt"
	"strings"

	"bzboard/internal/model"
)

// NormalizeStatusID turns user input ("in progress", "resolved", "backlog")
// into a column id.
func NormalizeStatusID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("invalid status: empty")
	}
	id := strings.ToUpper(strings.Join(strings.Fields(s), "_"))
	switch id {
	case "BACKLOG", "NONE", model.NoMilestone:
		return model.BacklogColumn, nil
	}
	return id, nil
}

// ValidateStatusID reports whether id names a column on a board with the
// given workflow statuses.
func ValidateStatusID(statuses []string, id string) bool {
	id = strings.TrimSpace(id)
	if id == model.BacklogColumn {
		return true
	}
	for _, s := range statuses {
		if s == id {
			return true
		}
	}
	return false
}

func IsEndState(status string) bool {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "RESOLVED", "VERIFIED", "CLOSED":
		return true
	}
	return false
}

// Title renders a column id for display.
func Title(id string) string {
	return strings.ReplaceAll(id, "_", " ")
}
