package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/group-guard-bot/internal/domain"
)

func TestFileStore_MissingAndEmpty(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "state.json"))

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.WriteFile(s.Path(), []byte("  \n"), 0o600))
	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_SaveLoad(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nested", "state.json"))
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	doc := domain.NewDocument()
	doc.SavedAt = at
	doc.Stats.Global.Requests.Add = 3
	doc.Stats.Groups[1001] = domain.Counters{Join: domain.JoinCounters{Approve: 2}}
	doc.PendingRequests[1001] = []domain.JoinRequest{{GroupID: 1001, UserID: 5, Comment: "你好", CreatedAt: at, Token: "f5"}}

	require.NoError(t, s.Save(context.Background(), doc))
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStore_LegacyAndFutureVersions(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "state.json"))

	legacy := `{"stats":{"global":{"requests":{"add":2}}},"pendingRequests":{"7":[{"groupId":7,"userId":1,"token":"x"}]}}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(legacy), 0o600))
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentVersion, got.Version)
	assert.Equal(t, int64(2), got.Stats.Global.Requests.Add)
	assert.NotNil(t, got.Stats.Groups)
	assert.Equal(t, "x", got.PendingRequests[7][0].Token)

	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"version":99}`), 0o600))
	_, err = s.Load(context.Background())
	assert.ErrorContains(t, err, "not supported")

	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"version":`), 0o600))
	_, err = s.Load(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
