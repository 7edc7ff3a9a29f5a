package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jose-valero/group-guard-bot/internal/infra/storage"
)

// Limpieza programada (EventBridge): auditoría vieja e inbox ya procesado.

func retentionDays(k string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil && v > 0 {
		return v
	}
	return def
}

func prune(ctx context.Context, pool *pgxpool.Pool, auditDays, inboxDays int) (int64, int64, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	audit, err := pool.Exec(cctx, `
DELETE FROM resolution_audit
WHERE created_at < now() - make_interval(days => $1)`, auditDays)
	if err != nil {
		return 0, 0, fmt.Errorf("prune audit: %w", err)
	}
	inbox, err := pool.Exec(cctx, `
DELETE FROM onebot_inbox
WHERE processed_at IS NOT NULL
  AND processed_at < now() - make_interval(days => $1)`, inboxDays)
	if err != nil {
		return audit.RowsAffected(), 0, fmt.Errorf("prune inbox: %w", err)
	}
	return audit.RowsAffected(), inbox.RowsAffected(), nil
}

func handler(ctx context.Context) (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "no DATABASE_URL", nil
	}
	pool, err := storage.OpenPool(ctx, dsn, 2)
	if err != nil {
		return err.Error(), nil
	}
	defer pool.Close()

	a, i, err := prune(ctx, pool, retentionDays("AUDIT_RETENTION_DAYS", 90), retentionDays("INBOX_RETENTION_DAYS", 7))
	if err != nil {
		slog.Error("janitor", "err", err)
		return err.Error(), nil
	}
	slog.Info("janitor done", "audit_deleted", a, "inbox_deleted", i)
	return fmt.Sprintf("ok audit=%d inbox=%d", a, i), nil
}

func main() { lambda.Start(handler) }
