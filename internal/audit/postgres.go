package audit

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultHistoryLimit caps Recent when no limit is given.
const DefaultHistoryLimit = 50

// DBTX is the subset of pgxpool.Pool used here.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS certgen_audit_log (
    id          UUID PRIMARY KEY,
    action      TEXT NOT NULL,
    severity    TEXT NOT NULL,
    session_id  TEXT NOT NULL,
    run_id      TEXT,
    row_count   INTEGER NOT NULL DEFAULT 0,
    doc_count   INTEGER NOT NULL DEFAULT 0,
    fail_count  INTEGER NOT NULL DEFAULT 0,
    detail      TEXT,
    ip_address  INET,
    user_agent  TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS certgen_audit_log_created_idx ON certgen_audit_log (created_at DESC);
`

const insertSQL = `
INSERT INTO certgen_audit_log
    (id, action, severity, session_id, run_id, row_count, doc_count, fail_count, detail, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, NULLIF($9, ''), $10, NULLIF($11, ''), $12)`

const recentSQL = `
SELECT id::text, action, severity, session_id, COALESCE(run_id, ''), row_count, doc_count, fail_count,
       COALESCE(detail, ''), COALESCE(host(ip_address), ''), COALESCE(user_agent, ''), created_at
FROM certgen_audit_log
ORDER BY created_at DESC
LIMIT $1`

// PGRecorder stores entries in PostgreSQL.
type PGRecorder struct {
	db DBTX
}

// NewPGRecorder wraps a pool or connection.
func NewPGRecorder(db DBTX) *PGRecorder {
	return &PGRecorder{db: db}
}

// EnsureSchema creates the audit table if it does not exist.
func (r *PGRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

func (r *PGRecorder) Record(ctx context.Context, e Entry) error {
	e.fill()

	// Leave the column NULL for addresses that do not parse.
	var ip *netip.Addr
	if addr, err := netip.ParseAddr(e.IPAddress); err == nil {
		ip = &addr
	}

	_, err := r.db.Exec(ctx, insertSQL,
		e.ID, string(e.Action), string(e.Severity), e.SessionID, e.RunID,
		e.Rows, e.Documents, e.Failed, e.Detail, ip, e.UserAgent, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (r *PGRecorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := r.db.Query(ctx, recentSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		var action, severity string
		err := row.Scan(&e.ID, &action, &severity, &e.SessionID, &e.RunID,
			&e.Rows, &e.Documents, &e.Failed, &e.Detail, &e.IPAddress, &e.UserAgent, &e.CreatedAt)
		e.Action = Action(action)
		e.Severity = Severity(severity)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}
	return entries, nil
}
