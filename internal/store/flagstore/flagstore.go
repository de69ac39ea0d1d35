package flagstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const killSwitchFlag = "kill_switch"

// FlagStore persists operational flags in a standalone SQLite file, kept
// separate from the decision database so a halt survives even when the
// audit store is wedged. The kill switch is its only consumer today.
type FlagStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Status describes the kill switch as persisted.
type Status struct {
	Engaged  bool      `json:"engaged"`
	Reason   string    `json:"reason,omitempty"`
	SetBy    string    `json:"set_by,omitempty"`
	SetAt    time.Time `json:"set_at,omitempty"`
	ClearAt  time.Time `json:"cleared_at,omitempty"`
}

func New(path string) (*FlagStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("flag store: db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &FlagStore{db: db, path: path}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS flags (
		name TEXT PRIMARY KEY,
		engaged INTEGER NOT NULL DEFAULT 0,
		reason TEXT,
		set_by TEXT,
		set_at INTEGER,
		cleared_at INTEGER,
		updated_at INTEGER NOT NULL
	)`)
	return err
}

func (s *FlagStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Engaged reports whether the kill switch is set. Errors propagate to the
// caller, whose contract is to fail closed; a missing row means the switch
// was never touched and trading is permitted.
func (s *FlagStore) Engaged(ctx context.Context) (bool, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return false, fmt.Errorf("flag store not initialized")
	}
	var engaged int
	err := db.QueryRowContext(ctx,
		`SELECT engaged FROM flags WHERE name = ?`, killSwitchFlag).Scan(&engaged)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return engaged != 0, nil
}

// Engage sets the kill switch with a reason and author.
func (s *FlagStore) Engage(ctx context.Context, reason, setBy string) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("flag store not initialized")
	}
	now := time.Now().Unix()
	_, err := db.ExecContext(ctx, `INSERT INTO flags (name, engaged, reason, set_by, set_at, cleared_at, updated_at)
		VALUES (?, 1, ?, ?, ?, 0, ?)
		ON CONFLICT(name) DO UPDATE SET
			engaged = 1, reason = excluded.reason, set_by = excluded.set_by,
			set_at = excluded.set_at, cleared_at = 0, updated_at = excluded.updated_at`,
		killSwitchFlag, strings.TrimSpace(reason), strings.TrimSpace(setBy), now, now)
	return err
}

// Disengage clears the kill switch.
func (s *FlagStore) Disengage(ctx context.Context) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("flag store not initialized")
	}
	now := time.Now().Unix()
	_, err := db.ExecContext(ctx, `INSERT INTO flags (name, engaged, cleared_at, updated_at)
		VALUES (?, 0, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			engaged = 0, cleared_at = excluded.cleared_at, updated_at = excluded.updated_at`,
		killSwitchFlag, now, now)
	return err
}

// KillSwitchStatus returns the full persisted state for display.
func (s *FlagStore) KillSwitchStatus(ctx context.Context) (Status, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return Status{}, fmt.Errorf("flag store not initialized")
	}
	var (
		engaged         int
		reason, setBy   sql.NullString
		setAt, clearAt  sql.NullInt64
	)
	err := db.QueryRowContext(ctx,
		`SELECT engaged, reason, set_by, set_at, cleared_at FROM flags WHERE name = ?`, killSwitchFlag).
		Scan(&engaged, &reason, &setBy, &setAt, &clearAt)
	if err == sql.ErrNoRows {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}
	st := Status{
		Engaged: engaged != 0,
		Reason:  reason.String,
		SetBy:   setBy.String,
	}
	if setAt.Valid && setAt.Int64 > 0 {
		st.SetAt = time.Unix(setAt.Int64, 0)
	}
	if clearAt.Valid && clearAt.Int64 > 0 {
		st.ClearAt = time.Unix(clearAt.Int64, 0)
	}
	return st, nil
}
