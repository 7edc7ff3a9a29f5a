package service

import (
	"container/list"
	"sync"
	"time"

	"github.com/jose-valero/group-guard-bot/internal/domain"
)

type memberKey struct {
	groupID int64
	userID  int64
}

type slot struct {
	req  domain.JoinRequest
	elem *list.Element // posición en la lista del grupo
}

// Registry guarda las solicitudes pendientes por grupo. Los valores viven en un arena
// direccionado por id; la lista por grupo, el índice de token y el índice (grupo, usuario)
// apuntan a ese id, así borrar es O(1) desde cualquier camino.
type Registry struct {
	mu      sync.RWMutex
	seq     uint64
	arena   map[uint64]*slot
	byToken map[string]uint64
	byUser  map[memberKey]uint64
	groups  map[int64]*list.List // ids en orden de inserción
	now     func() time.Time

	// onReplace se llama (con el lock tomado) cuando un (grupo, usuario) pisa una solicitud previa.
	onReplace func(old, cur domain.JoinRequest)
}

func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		arena:   map[uint64]*slot{},
		byToken: map[string]uint64{},
		byUser:  map[memberKey]uint64{},
		groups:  map[int64]*list.List{},
		now:     now,
	}
}

// Add crea y guarda una solicitud. Si ya había una para el mismo (grupo, usuario) la reemplaza
// y su token deja de ser válido.
func (r *Registry) Add(groupID, userID int64, comment, token string) domain.JoinRequest {
	req := domain.JoinRequest{
		GroupID:   groupID,
		UserID:    userID,
		Comment:   comment,
		CreatedAt: r.now(),
		Token:     token,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(req)
	return req
}

func (r *Registry) insertLocked(req domain.JoinRequest) {
	k := memberKey{req.GroupID, req.UserID}
	if id, ok := r.byUser[k]; ok {
		old := r.arena[id].req
		r.removeLocked(id)
		if r.onReplace != nil {
			r.onReplace(old, req)
		}
	}
	// un token repetido (no debería pasar) también desplaza al anterior
	if id, ok := r.byToken[req.Token]; ok && req.Token != "" {
		r.removeLocked(id)
	}

	r.seq++
	id := r.seq
	l, ok := r.groups[req.GroupID]
	if !ok {
		l = list.New()
		r.groups[req.GroupID] = l
	}
	r.arena[id] = &slot{req: req, elem: l.PushBack(id)}
	r.byUser[k] = id
	if req.Token != "" {
		r.byToken[req.Token] = id
	}
}

func (r *Registry) removeLocked(id uint64) (domain.JoinRequest, bool) {
	s, ok := r.arena[id]
	if !ok {
		return domain.JoinRequest{}, false
	}
	delete(r.arena, id)
	delete(r.byUser, memberKey{s.req.GroupID, s.req.UserID})
	if cur, ok := r.byToken[s.req.Token]; ok && cur == id {
		delete(r.byToken, s.req.Token)
	}
	if l := r.groups[s.req.GroupID]; l != nil {
		l.Remove(s.elem)
		if l.Len() == 0 {
			delete(r.groups, s.req.GroupID)
		}
	}
	return s.req, true
}

// FindLatest devuelve la solicitud más reciente del grupo. Empates de CreatedAt los gana
// la insertada después.
func (r *Registry) FindLatest(groupID int64) (domain.JoinRequest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.latestLocked(groupID)
	if !ok {
		return domain.JoinRequest{}, false
	}
	return r.arena[id].req, true
}

func (r *Registry) latestLocked(groupID int64) (uint64, bool) {
	l := r.groups[groupID]
	if l == nil {
		return 0, false
	}
	var (
		best  uint64
		bestT time.Time
		found bool
	)
	for e := l.Front(); e != nil; e = e.Next() {
		id := e.Value.(uint64)
		t := r.arena[id].req.CreatedAt
		if !found || !t.Before(bestT) {
			best, bestT, found = id, t, true
		}
	}
	return best, found
}

func (r *Registry) FindByUser(groupID, userID int64) (domain.JoinRequest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUser[memberKey{groupID, userID}]
	if !ok {
		return domain.JoinRequest{}, false
	}
	return r.arena[id].req, true
}

func (r *Registry) FindByToken(token string) (domain.JoinRequest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byToken[token]
	if !ok {
		return domain.JoinRequest{}, false
	}
	return r.arena[id].req, true
}

// TakeLatest saca del registro la solicitud más reciente del grupo (lookup + remove atómico).
func (r *Registry) TakeLatest(groupID int64) (domain.JoinRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.latestLocked(groupID)
	if !ok {
		return domain.JoinRequest{}, false
	}
	return r.removeLocked(id)
}

// TakeByUser es FindByUser + Remove atómico.
func (r *Registry) TakeByUser(groupID, userID int64) (domain.JoinRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byUser[memberKey{groupID, userID}]
	if !ok {
		return domain.JoinRequest{}, false
	}
	return r.removeLocked(id)
}

// DrainAll saca todas las pendientes del grupo en orden de inserción.
func (r *Registry) DrainAll(groupID int64) []domain.JoinRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.groups[groupID]
	if l == nil {
		return []domain.JoinRequest{}
	}
	ids := make([]uint64, 0, l.Len())
	for e := l.Front(); e != nil; e = e.Next() {
		ids = append(ids, e.Value.(uint64))
	}
	out := make([]domain.JoinRequest, 0, len(ids))
	for _, id := range ids {
		if req, ok := r.removeLocked(id); ok {
			out = append(out, req)
		}
	}
	return out
}

// Remove es idempotente.
func (r *Registry) Remove(groupID, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byUser[memberKey{groupID, userID}]; ok {
		r.removeLocked(id)
	}
}

// SweepExpired borra toda solicitud con now-CreatedAt > maxAge y devuelve cuántas borró.
func (r *Registry) SweepExpired(now time.Time, maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []uint64
	for id, s := range r.arena {
		if now.Sub(s.req.CreatedAt) > maxAge {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		r.removeLocked(id)
	}
	return len(stale)
}

// List devuelve hasta limit pendientes del grupo, la más reciente primero. limit<=0 = todas.
func (r *Registry) List(groupID int64, limit int) []domain.JoinRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l := r.groups[groupID]
	if l == nil {
		return nil
	}
	out := make([]domain.JoinRequest, 0, l.Len())
	for e := l.Back(); e != nil; e = e.Prev() {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, r.arena[e.Value.(uint64)].req)
	}
	return out
}

func (r *Registry) Len(groupID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if l := r.groups[groupID]; l != nil {
		return l.Len()
	}
	return 0
}

func (r *Registry) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.arena)
}

func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arena = map[uint64]*slot{}
	r.byToken = map[string]uint64{}
	r.byUser = map[memberKey]uint64{}
	r.groups = map[int64]*list.List{}
}

// Snapshot copia las pendientes por grupo en orden de inserción.
func (r *Registry) Snapshot() map[int64][]domain.JoinRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int64][]domain.JoinRequest, len(r.groups))
	for gid, l := range r.groups {
		reqs := make([]domain.JoinRequest, 0, l.Len())
		for e := l.Front(); e != nil; e = e.Next() {
			reqs = append(reqs, r.arena[e.Value.(uint64)].req)
		}
		out[gid] = reqs
	}
	return out
}

// Restore reemplaza el contenido con lo persistido y reconstruye los índices. Devuelve
// cuántas solicitudes quedaron (duplicados por (grupo, usuario) se resuelven quedándose
// con la última).
func (r *Registry) Restore(pending map[int64][]domain.JoinRequest) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arena = map[uint64]*slot{}
	r.byToken = map[string]uint64{}
	r.byUser = map[memberKey]uint64{}
	r.groups = map[int64]*list.List{}
	for gid, reqs := range pending {
		for _, req := range reqs {
			req.GroupID = gid
			r.insertLocked(req)
		}
	}
	return len(r.arena)
}
