package trail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// executor is the slice of pgxpool.Pool the sink needs, kept narrow so
// tests can stub it.
type executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

var _ executor = (*pgxpool.Pool)(nil)

// PostgresSink persists trail records to the audit_logs table.
type PostgresSink struct {
	db executor
}

// NewPostgresSink wraps an existing connection pool.
func NewPostgresSink(db *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{db: db}
}

// EnsureSchema creates the audit_logs table if it does not exist.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id BIGSERIAL PRIMARY KEY,
			request_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			payload_raw JSONB NOT NULL,
			payload_redacted JSONB NOT NULL,
			verdict TEXT NOT NULL,
			compliance_score DOUBLE PRECISION NOT NULL,
			reasoning TEXT NOT NULL DEFAULT '',
			has_sensitive_data BOOLEAN NOT NULL DEFAULT FALSE,
			metadata JSONB
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure audit_logs schema: %w", err)
	}
	return nil
}

// Append inserts one record.
func (s *PostgresSink) Append(ctx context.Context, rec *Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	raw, err := json.Marshal(rec.PayloadRaw)
	if err != nil {
		return fmt.Errorf("failed to encode raw payload: %w", err)
	}
	redacted, err := json.Marshal(rec.PayloadRedacted)
	if err != nil {
		return fmt.Errorf("failed to encode redacted payload: %w", err)
	}

	var metadata []byte
	if rec.Metadata != nil {
		metadata, err = json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode record metadata: %w", err)
		}
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO audit_logs (
			request_id, created_at, source, payload_raw, payload_redacted,
			verdict, compliance_score, reasoning, has_sensitive_data, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.RequestID, rec.Timestamp, rec.Source, raw, redacted,
		string(rec.Verdict), rec.ComplianceScore, rec.Reasoning, rec.HasSensitiveData, metadata)
	if err != nil {
		return fmt.Errorf("failed to insert trail record: %w", err)
	}
	return nil
}
