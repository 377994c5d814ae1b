package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bzboard/internal/model"

	_ "modernc.org/sqlite"
)

const stateSchemaVersion = 1

// State is the local persisted state: one auth record and one last-used board
// view per site URL.
type State struct {
	db *sql.DB
}

func StatePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.sqlite"), nil
}

// OpenState opens (and migrates) the SQLite state file at path, or the default
// location when path is empty.
func OpenState(ctx context.Context, path string) (*State, error) {
	if path == "" {
		p, err := StatePath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL enables one writer + many readers; busy_timeout avoids "database is locked"
	// when the TUI and a CLI command run at the same time.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateState(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &State{db: db}, nil
}

func (s *State) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func migrateState(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (k TEXT PRIMARY KEY, v TEXT NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS auth (
			site TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			token TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS view_state (
			site TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	_, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO meta(k, v) VALUES('schema_version', ?)`, stateSchemaVersion)
	return err
}

func siteKey(site string) string {
	return strings.TrimRight(strings.TrimSpace(site), "/")
}

// LoadAuth returns the stored login for site. ok is false when none is stored.
func (s *State) LoadAuth(ctx context.Context, site string) (auth model.Auth, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT user_id, token FROM auth WHERE site = ?`, siteKey(site))
	if err := row.Scan(&auth.UserID, &auth.Token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Auth{}, false, nil
		}
		return model.Auth{}, false, err
	}
	return auth, true, nil
}

func (s *State) SaveAuth(ctx context.Context, site string, auth model.Auth) error {
	if strings.TrimSpace(auth.Token) == "" {
		return errors.New("refusing to store empty token")
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO auth(site, user_id, token, updated_at_unixms) VALUES(?, ?, ?, ?)`,
		siteKey(site), auth.UserID, auth.Token, time.Now().UTC().UnixMilli())
	return err
}

func (s *State) ClearAuth(ctx context.Context, site string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auth WHERE site = ?`, siteKey(site))
	return err
}

// LoadView returns the last saved board query string for site ("" if none).
func (s *State) LoadView(ctx context.Context, site string) (string, error) {
	var q string
	err := s.db.QueryRowContext(ctx, `SELECT query FROM view_state WHERE site = ?`, siteKey(site)).Scan(&q)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return q, err
}

func (s *State) SaveView(ctx context.Context, site, query string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO view_state(site, query, updated_at_unixms) VALUES(?, ?, ?)`,
		siteKey(site), query, time.Now().UTC().UnixMilli())
	return err
}
