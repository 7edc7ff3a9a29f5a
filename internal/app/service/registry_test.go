package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/group-guard-bot/internal/domain"
)

func TestRegistry_AddAndFind(t *testing.T) {
	clk := newFakeClock()
	r := NewRegistry(clk.Now)

	r.Add(1, 10, "hi", "f10")
	clk.Advance(time.Minute)
	r.Add(1, 11, "", "f11")
	r.Add(2, 10, "other group", "f20")

	latest, ok := r.FindLatest(1)
	require.True(t, ok)
	assert.Equal(t, int64(11), latest.UserID)

	byUser, ok := r.FindByUser(2, 10)
	require.True(t, ok)
	assert.Equal(t, "other group", byUser.Comment)

	byToken, ok := r.FindByToken("f10")
	require.True(t, ok)
	assert.Equal(t, int64(1), byToken.GroupID)

	_, ok = r.FindLatest(3)
	assert.False(t, ok)
	_, ok = r.FindByUser(1, 99)
	assert.False(t, ok)
	assert.Equal(t, 2, r.Len(1))
	assert.Equal(t, 3, r.Total())
}

func TestRegistry_SameTimestampLaterInsertWins(t *testing.T) {
	clk := newFakeClock()
	r := NewRegistry(clk.Now)
	r.Add(1, 10, "", "a")
	r.Add(1, 11, "", "b")

	latest, ok := r.FindLatest(1)
	require.True(t, ok)
	assert.Equal(t, int64(11), latest.UserID)
}

func TestRegistry_DuplicateUserReplaces(t *testing.T) {
	clk := newFakeClock()
	r := NewRegistry(clk.Now)
	var replaced []domain.JoinRequest
	r.onReplace = func(old, _ domain.JoinRequest) { replaced = append(replaced, old) }

	r.Add(1, 10, "first", "old-flag")
	clk.Advance(time.Second)
	r.Add(1, 10, "second", "new-flag")

	assert.Equal(t, 1, r.Len(1))
	got, ok := r.FindByUser(1, 10)
	require.True(t, ok)
	assert.Equal(t, "second", got.Comment)
	_, ok = r.FindByToken("old-flag")
	assert.False(t, ok)
	require.Len(t, replaced, 1)
	assert.Equal(t, "old-flag", replaced[0].Token)
}

func TestRegistry_TakeRemoves(t *testing.T) {
	r := NewRegistry(nil)
	r.Add(1, 10, "", "a")
	r.Add(1, 11, "", "b")

	got, ok := r.TakeByUser(1, 10)
	require.True(t, ok)
	assert.Equal(t, "a", got.Token)
	_, ok = r.FindByUser(1, 10)
	assert.False(t, ok)
	_, ok = r.TakeByUser(1, 10)
	assert.False(t, ok)

	got, ok = r.TakeLatest(1)
	require.True(t, ok)
	assert.Equal(t, "b", got.Token)
	_, ok = r.TakeLatest(1)
	assert.False(t, ok)
	assert.Zero(t, r.Total())
}

func TestRegistry_DrainAll(t *testing.T) {
	clk := newFakeClock()
	r := NewRegistry(clk.Now)
	for i, uid := range []int64{30, 10, 20} {
		clk.Advance(time.Duration(i) * time.Second)
		r.Add(5, uid, "", "")
	}
	r.Add(6, 99, "", "keep")

	out := r.DrainAll(5)
	require.Len(t, out, 3)
	assert.Equal(t, []int64{30, 10, 20}, []int64{out[0].UserID, out[1].UserID, out[2].UserID})

	_, ok := r.FindLatest(5)
	assert.False(t, ok)
	assert.Equal(t, 1, r.Total())

	empty := r.DrainAll(5)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	r.Add(1, 10, "", "a")
	r.Remove(1, 10)
	r.Remove(1, 10)
	r.Remove(7, 7)
	assert.Zero(t, r.Total())
	_, ok := r.FindByToken("a")
	assert.False(t, ok)
}

func TestRegistry_SweepExpired(t *testing.T) {
	clk := newFakeClock()
	now := clk.Now()
	r := NewRegistry(clk.Now)
	r.Restore(map[int64][]domain.JoinRequest{
		1: {
			{UserID: 10, CreatedAt: now.Add(-25 * time.Hour), Token: "old"},
			{UserID: 11, CreatedAt: now.Add(-1 * time.Hour), Token: "fresh"},
			{UserID: 12, CreatedAt: now.Add(-24 * time.Hour), Token: "edge"},
		},
	})

	removed := r.SweepExpired(now, 24*time.Hour)
	assert.Equal(t, 1, removed)
	_, ok := r.FindByToken("old")
	assert.False(t, ok)
	_, ok = r.FindByToken("fresh")
	assert.True(t, ok)
	_, ok = r.FindByToken("edge")
	assert.True(t, ok, "exactly max age is not expired")
}

func TestRegistry_ListMostRecentFirst(t *testing.T) {
	clk := newFakeClock()
	r := NewRegistry(clk.Now)
	for uid := int64(1); uid <= 12; uid++ {
		r.Add(1, uid, "", "")
		clk.Advance(time.Minute)
	}

	got := r.List(1, 10)
	require.Len(t, got, 10)
	assert.Equal(t, int64(12), got[0].UserID)
	assert.Equal(t, int64(3), got[9].UserID)
	assert.Len(t, r.List(1, 0), 12)
	assert.Empty(t, r.List(2, 10))
}

func TestRegistry_SnapshotRestore(t *testing.T) {
	clk := newFakeClock()
	r := NewRegistry(clk.Now)
	r.Add(1, 10, "a", "fa")
	clk.Advance(time.Second)
	r.Add(1, 11, "b", "fb")
	r.Add(2, 12, "c", "fc")

	snap := r.Snapshot()
	require.Len(t, snap[1], 2)
	assert.Equal(t, int64(10), snap[1][0].UserID)

	r2 := NewRegistry(clk.Now)
	r2.Add(9, 9, "", "gone")
	assert.Equal(t, 3, r2.Restore(snap))
	_, ok := r2.FindByToken("gone")
	assert.False(t, ok)

	latest, ok := r2.FindLatest(1)
	require.True(t, ok)
	assert.Equal(t, "fb", latest.Token)
	assert.Equal(t, snap, r2.Snapshot())
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry(nil)
	r.Add(1, 10, "", "a")
	r.Add(2, 20, "", "b")
	r.Clear()
	assert.Zero(t, r.Total())
	assert.Zero(t, r.Len(1))
	assert.Empty(t, r.Snapshot())
}
