// Package state keeps a local journal of reconciliation outcomes so an
// operator can see what past runs actually changed on which node.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"wgnest/pkg/model"
)

// DefaultPath is where the journal lives unless overridden.
const DefaultPath = "/var/lib/wgnest/state.db"

type Journal struct {
	db *sql.DB
}

// Open creates the journal database and schema if needed.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal mkdir: %w", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal ping: %w", err)
	}
	schema := `CREATE TABLE IF NOT EXISTS runs(node TEXT, role TEXT, action TEXT, detail TEXT, ts INTEGER);
CREATE INDEX IF NOT EXISTS idx_runs_node ON runs(node);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record appends one reconciliation outcome.
func (j *Journal) Record(e model.AuditEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs(node, role, action, detail, ts) VALUES(?,?,?,?,?)`,
		e.Node, string(e.Role), e.Action, e.Detail, e.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("journal record: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rows, err := j.db.QueryContext(ctx,
		`SELECT node, role, action, detail, ts FROM runs ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var role string
		var ts int64
		if err := rows.Scan(&e.Node, &role, &e.Action, &e.Detail, &ts); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.Role = model.Role(role)
		e.Timestamp = time.Unix(0, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
