package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	pq "github.com/lib/pq"

	"github.com/jose-valero/group-guard-bot/internal/domain"
)

type AuditRepo struct{ db *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Record inserta una fila por resolución. Si la entrada no trae id se genera uno.
func (r *AuditRepo) Record(ctx context.Context, e domain.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO resolution_audit
  (id, group_id, operator_id, action, targets, approved, rejected, failures, reason, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO NOTHING
`,
		e.ID, e.GroupID, e.OperatorID, e.Action, pq.Array(nonNil(e.Targets)),
		e.Approved, e.Rejected, pq.Array(nonNil(e.Failures)), e.Reason, e.CreatedAt,
	)
	return err
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
