package service

import (
	"context"
	"sync"
	"time"

	"github.com/jose-valero/group-guard-bot/internal/domain"
	"github.com/jose-valero/group-guard-bot/internal/infra/storage"
)

type resolveCall struct {
	Flag    string
	SubType string
	Approve bool
	Reason  string
}

type sentMsg struct {
	GroupID int64
	Text    string
}

// mockGateway registra llamadas; los Fn opcionales cambian la respuesta.
type mockGateway struct {
	mu sync.Mutex

	MemberInfoFn func(groupID, userID int64) (domain.MemberInfo, error)
	ResolveFn    func(flag string, approve bool) error
	SendFn       func(groupID int64, text string) error

	resolves []resolveCall
	sent     []sentMsg
}

func (g *mockGateway) GetGroupMemberInfo(_ context.Context, groupID, userID int64) (domain.MemberInfo, error) {
	if g.MemberInfoFn != nil {
		return g.MemberInfoFn(groupID, userID)
	}
	return domain.MemberInfo{GroupID: groupID, UserID: userID, Role: domain.RoleMember}, nil
}

func (g *mockGateway) GetGroupInfo(_ context.Context, groupID int64) (domain.GroupInfo, error) {
	return domain.GroupInfo{GroupID: groupID}, nil
}

func (g *mockGateway) SendGroupMsg(_ context.Context, groupID int64, text string) error {
	g.mu.Lock()
	g.sent = append(g.sent, sentMsg{groupID, text})
	g.mu.Unlock()
	if g.SendFn != nil {
		return g.SendFn(groupID, text)
	}
	return nil
}

func (g *mockGateway) SetGroupAddRequest(_ context.Context, flag, subType string, approve bool, reason string) error {
	g.mu.Lock()
	g.resolves = append(g.resolves, resolveCall{flag, subType, approve, reason})
	g.mu.Unlock()
	if g.ResolveFn != nil {
		return g.ResolveFn(flag, approve)
	}
	return nil
}

func (g *mockGateway) Resolves() []resolveCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]resolveCall(nil), g.resolves...)
}

func (g *mockGateway) Sent() []sentMsg {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentMsg(nil), g.sent...)
}

// adminsOnly: los ids dados son admin, el resto member.
func adminsOnly(ids ...int64) func(groupID, userID int64) (domain.MemberInfo, error) {
	return func(groupID, userID int64) (domain.MemberInfo, error) {
		role := domain.RoleMember
		for _, id := range ids {
			if id == userID {
				role = domain.RoleAdmin
			}
		}
		return domain.MemberInfo{GroupID: groupID, UserID: userID, Role: role}, nil
	}
}

type memStore struct {
	mu     sync.Mutex
	doc    *domain.PersistedDocument
	saves  int
	LoadFn func() (domain.PersistedDocument, error)
	SaveFn func(doc domain.PersistedDocument) error
}

func (s *memStore) Load(context.Context) (domain.PersistedDocument, error) {
	if s.LoadFn != nil {
		return s.LoadFn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return domain.PersistedDocument{}, storage.ErrNotFound
	}
	return *s.doc, nil
}

func (s *memStore) Save(_ context.Context, doc domain.PersistedDocument) error {
	if s.SaveFn != nil {
		if err := s.SaveFn(doc); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = &doc
	s.saves++
	return nil
}

func (s *memStore) Saved() (domain.PersistedDocument, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return domain.PersistedDocument{}, s.saves
	}
	return *s.doc, s.saves
}

type memAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *memAudit) Record(_ context.Context, e domain.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

// fakeClock avanza a mano.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
