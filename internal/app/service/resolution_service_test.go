package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(gw *mockGateway) (*ResolutionService, *Registry, *Stats, *fakeClock) {
	clk := newFakeClock()
	reg := NewRegistry(clk.Now)
	stats := NewStats()
	return NewResolutionService(gw, reg, stats, &sync.Mutex{}, nil), reg, stats, clk
}

func TestResolve_ApproveUser(t *testing.T) {
	gw := &mockGateway{}
	rs, reg, stats, _ := newResolver(gw)
	reg.Add(1, 10, "", "f10")
	reg.Add(1, 11, "", "f11")

	out := rs.Resolve(context.Background(), Intent{Kind: ApproveUser, Target: 10}, 1, 99)

	assert.Equal(t, 1, out.Approved)
	assert.Empty(t, out.Failures)
	_, ok := reg.FindByUser(1, 10)
	assert.False(t, ok)
	_, ok = reg.FindByUser(1, 11)
	assert.True(t, ok)
	assert.Equal(t, int64(1), stats.Group(1).Requests.Approved)
	assert.Equal(t, int64(1), stats.Global().Requests.Approved)
	assert.Equal(t, []resolveCall{{Flag: "f10", SubType: "add", Approve: true}}, gw.Resolves())
}

func TestResolve_RejectLatestWithReason(t *testing.T) {
	gw := &mockGateway{}
	rs, reg, stats, clk := newResolver(gw)
	reg.Add(1, 10, "", "older")
	clk.Advance(time.Minute)
	reg.Add(1, 11, "", "newer")

	out := rs.Resolve(context.Background(), Intent{Kind: RejectLatest, Reason: "spam"}, 1, 99)

	assert.Equal(t, 1, out.Rejected)
	require.Len(t, out.Resolved, 1)
	assert.Equal(t, int64(11), out.Resolved[0].UserID)
	assert.Equal(t, []resolveCall{{Flag: "newer", SubType: "add", Approve: false, Reason: "spam"}}, gw.Resolves())
	assert.Equal(t, int64(1), stats.Global().Requests.Rejected)
	assert.Equal(t, 1, reg.Len(1))
}

func TestResolve_NotFound(t *testing.T) {
	gw := &mockGateway{}
	rs, reg, _, _ := newResolver(gw)
	reg.Add(1, 10, "", "f")

	out := rs.Resolve(context.Background(), Intent{Kind: ApproveUser, Target: 77}, 1, 99)
	assert.True(t, out.NotFound)
	assert.Zero(t, out.Attempted())

	out = rs.Resolve(context.Background(), Intent{Kind: ApproveLatest}, 2, 99)
	assert.True(t, out.NotFound)

	out = rs.Resolve(context.Background(), Intent{Kind: ApproveAll}, 2, 99)
	assert.True(t, out.NotFound)
	assert.Empty(t, gw.Resolves())
}

func TestResolve_ApproveAllPartialFailure(t *testing.T) {
	gw := &mockGateway{ResolveFn: func(flag string, _ bool) error {
		if flag == "f2" {
			return errors.New("gateway down")
		}
		return nil
	}}
	rs, reg, stats, clk := newResolver(gw)
	for i, uid := range []int64{1, 2, 3} {
		reg.Add(500, uid, "", []string{"f1", "f2", "f3"}[i])
		clk.Advance(time.Second)
	}

	out := rs.Resolve(context.Background(), Intent{Kind: ApproveAll}, 500, 99)

	assert.Equal(t, 2, out.Approved)
	assert.Equal(t, []int64{2}, out.Failures)
	assert.Equal(t, 3, out.Attempted())
	assert.Zero(t, reg.Len(500))
	assert.Equal(t, int64(2), stats.Group(500).Requests.Approved)
	assert.Equal(t, int64(2), stats.Global().Requests.Approved)

	calls := gw.Resolves()
	require.Len(t, calls, 3)
	assert.Equal(t, []string{"f1", "f2", "f3"}, []string{calls[0].Flag, calls[1].Flag, calls[2].Flag})
}

func TestResolve_FailedCallIsNotReinserted(t *testing.T) {
	gw := &mockGateway{ResolveFn: func(string, bool) error { return errors.New("timeout") }}
	rs, reg, stats, _ := newResolver(gw)
	reg.Add(1, 10, "", "f")

	out := rs.Resolve(context.Background(), Intent{Kind: RejectUser, Target: 10}, 1, 99)
	assert.Equal(t, []int64{10}, out.Failures)
	assert.Zero(t, out.Rejected)
	assert.Zero(t, reg.Total())
	assert.Zero(t, stats.Global().Requests.Rejected)
}

func TestResolve_ConcurrentAdminsResolveOnce(t *testing.T) {
	gw := &mockGateway{}
	rs, reg, stats, _ := newResolver(gw)
	reg.Add(1, 10, "", "only")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rs.Resolve(context.Background(), Intent{Kind: ApproveLatest}, 1, 99)
		}()
	}
	wg.Wait()

	assert.Len(t, gw.Resolves(), 1)
	assert.Equal(t, int64(1), stats.Global().Requests.Approved)
}
