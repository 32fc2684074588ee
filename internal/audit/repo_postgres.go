package audit

import (
	"context"
	"database/sql"
	"fmt"

	"holdline/pkg/utils"
)

// PostgresRepo stores events in call_audit_events. Rows are INSERT-only.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS call_audit_events (
		id          UUID PRIMARY KEY,
		call_id     TEXT NOT NULL,
		user_id     TEXT NOT NULL DEFAULT '',
		type        TEXT NOT NULL,
		from_status TEXT NOT NULL DEFAULT '',
		to_status   TEXT NOT NULL DEFAULT '',
		input       TEXT NOT NULL DEFAULT '',
		prompt      TEXT NOT NULL DEFAULT '',
		message     TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS call_audit_events_call_id_idx ON call_audit_events (call_id, created_at)`,
}

// EnsureSchema creates the table and index if missing.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("audit: schema: %w", err)
			}
		}
		return nil
	})
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO call_audit_events (id, call_id, user_id, type, from_status, to_status, input, prompt, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.CallID, e.UserID, string(e.Type), e.FromStatus, e.ToStatus, e.Input, e.Prompt, e.Message, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ListByCall(ctx context.Context, callID string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, call_id, user_id, type, from_status, to_status, input, prompt, message, created_at
		 FROM call_audit_events WHERE call_id = $1 ORDER BY created_at, id`, callID)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(&e.ID, &e.CallID, &e.UserID, &typ, &e.FromStatus, &e.ToStatus, &e.Input, &e.Prompt, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
