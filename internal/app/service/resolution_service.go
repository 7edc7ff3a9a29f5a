package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jose-valero/group-guard-bot/internal/domain"
)

// sub_type que manda el gateway para solicitudes de ingreso (las invitaciones son "invite").
const subTypeAdd = "add"

// Outcome resume lo que pasó al ejecutar un intent.
type Outcome struct {
	Kind     IntentKind
	Approved int
	Rejected int
	Failures []int64 // user ids cuya llamada al gateway falló
	NotFound bool    // no había solicitud que resolver (expiró, la canceló o la resolvió otro admin)
	Resolved []domain.JoinRequest
}

// Attempted = cuántas solicitudes salieron del registro en esta resolución.
func (o Outcome) Attempted() int { return len(o.Resolved) }

// ResolutionService es el único punto que saca solicitudes del registro para resolverlas,
// así registro, contadores y llamadas al gateway quedan consistentes.
type ResolutionService struct {
	gw    Gateway
	reg   *Registry
	stats *Stats
	guard sync.Locker
	log   *slog.Logger
}

func NewResolutionService(gw Gateway, reg *Registry, stats *Stats, guard sync.Locker, log *slog.Logger) *ResolutionService {
	if guard == nil {
		guard = &sync.Mutex{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &ResolutionService{gw: gw, reg: reg, stats: stats, guard: guard, log: log}
}

func (s *ResolutionService) Resolve(ctx context.Context, in Intent, groupID, operatorID int64) Outcome {
	out := Outcome{Kind: in.Kind}

	switch in.Kind {
	case ApproveLatest, RejectLatest:
		req, ok := s.take(func() (domain.JoinRequest, bool) { return s.reg.TakeLatest(groupID) })
		if !ok {
			out.NotFound = true
			return out
		}
		s.resolveOne(ctx, &out, req, in.Kind == ApproveLatest, in.Reason, operatorID)

	case ApproveUser, RejectUser:
		req, ok := s.take(func() (domain.JoinRequest, bool) { return s.reg.TakeByUser(groupID, in.Target) })
		if !ok {
			out.NotFound = true
			return out
		}
		s.resolveOne(ctx, &out, req, in.Kind == ApproveUser, in.Reason, operatorID)

	case ApproveAll:
		s.guard.Lock()
		reqs := s.reg.DrainAll(groupID)
		s.guard.Unlock()
		if len(reqs) == 0 {
			out.NotFound = true
			return out
		}
		// de a una: el gateway serializa las llamadas por cuenta
		for _, req := range reqs {
			s.resolveOne(ctx, &out, req, true, "", operatorID)
		}

	case NotACommand, ListPending, ShowStats, ResetGroupStats, ResetPlugin, ShowHelp:
		// no resuelven nada
	}
	return out
}

func (s *ResolutionService) take(fn func() (domain.JoinRequest, bool)) (domain.JoinRequest, bool) {
	s.guard.Lock()
	defer s.guard.Unlock()
	return fn()
}

// resolveOne llama al gateway con la solicitud ya fuera del registro. Si falla no se
// reinserta: el flag ya no sirve y el usuario tendrá que volver a pedir.
func (s *ResolutionService) resolveOne(ctx context.Context, out *Outcome, req domain.JoinRequest, approve bool, reason string, operatorID int64) {
	out.Resolved = append(out.Resolved, req)
	if err := s.gw.SetGroupAddRequest(ctx, req.Token, subTypeAdd, approve, reason); err != nil {
		s.log.Warn("[groupwatch] resolve failed",
			"group", req.GroupID, "user", req.UserID, "approve", approve, "operator", operatorID, "err", err)
		out.Failures = append(out.Failures, req.UserID)
		return
	}

	s.guard.Lock()
	if approve {
		s.stats.Increment(req.GroupID, domain.RequestsApproved)
		out.Approved++
	} else {
		s.stats.Increment(req.GroupID, domain.RequestsRejected)
		out.Rejected++
	}
	s.guard.Unlock()

	s.log.Info("[groupwatch] request resolved",
		"group", req.GroupID, "user", req.UserID, "approve", approve, "operator", operatorID)
}
