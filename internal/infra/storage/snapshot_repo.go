package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jose-valero/group-guard-bot/internal/domain"
)

const defaultStateKey = "group_monitor"

// PostgresStore guarda el documento como jsonb en bot_state, una fila por clave.
type PostgresStore struct {
	db  *sql.DB
	key string
}

func NewPostgresStore(db *sql.DB, key string) *PostgresStore {
	if key == "" {
		key = defaultStateKey
	}
	return &PostgresStore{db: db, key: key}
}

func (r *PostgresStore) Load(ctx context.Context) (domain.PersistedDocument, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `
SELECT doc
  FROM bot_state
 WHERE state_key = $1
`, r.key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PersistedDocument{}, ErrNotFound
	}
	if err != nil {
		return domain.PersistedDocument{}, err
	}
	return decodeDocument(raw)
}

func (r *PostgresStore) Save(ctx context.Context, doc domain.PersistedDocument) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO bot_state (state_key, doc, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (state_key) DO UPDATE SET
  doc        = EXCLUDED.doc,
  updated_at = now()
`, r.key, string(data))
	return err
}
