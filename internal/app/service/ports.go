package service

import (
	"context"

	"github.com/jose-valero/group-guard-bot/internal/domain"
)

// Lo implementa internal/adapters/onebot.Client
type Gateway interface {
	GetGroupMemberInfo(ctx context.Context, groupID, userID int64) (domain.MemberInfo, error)
	GetGroupInfo(ctx context.Context, groupID int64) (domain.GroupInfo, error)
	SendGroupMsg(ctx context.Context, groupID int64, text string) error
	SetGroupAddRequest(ctx context.Context, flag, subType string, approve bool, reason string) error
}

// Lo implementan internal/infra/storage.FileStore y storage.PostgresStore.
// Load devuelve storage.ErrNotFound si todavía no hay nada guardado.
type Store interface {
	Load(ctx context.Context) (domain.PersistedDocument, error)
	Save(ctx context.Context, doc domain.PersistedDocument) error
}

// Destino best-effort de auditoría (tabla en Postgres, canal de Discord).
type AuditSink interface {
	Record(ctx context.Context, e domain.AuditEntry) error
}
