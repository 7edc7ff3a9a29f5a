package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/jose-valero/group-guard-bot/internal/domain"
	"github.com/jose-valero/group-guard-bot/internal/infra/storage"
)

const (
	DefaultRequestMaxAge = 24 * time.Hour
	DefaultSweepSchedule = "@every 1h"
	DefaultFlushSchedule = "@every 5m"

	flushTimeout = 10 * time.Second
)

// MembershipService es el dueño del registro de solicitudes, las estadísticas, los timers
// y la persistencia. Todas las mutaciones compuestas pasan por mu.
type MembershipService struct {
	gw       Gateway
	store    Store
	sinks    []AuditSink
	reg      *Registry
	stats    *Stats
	resolver *ResolutionService
	notifier *Notifier
	log      *slog.Logger
	now      func() time.Time

	maxAge     time.Duration
	sweepSpec  string
	flushSpec  string
	superusers map[int64]struct{}

	mu      sync.Mutex
	saveMu  sync.Mutex
	cron    *cron.Cron
	flushCh chan struct{}
	stop    chan struct{}
	stopped chan struct{}
}

type Option func(*MembershipService)

func WithClock(now func() time.Time) Option {
	return func(m *MembershipService) { m.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *MembershipService) { m.log = l }
}

func WithRequestMaxAge(d time.Duration) Option {
	return func(m *MembershipService) {
		if d > 0 {
			m.maxAge = d
		}
	}
}

// WithSchedules recibe specs de robfig/cron sin segundos ("@every 1h", "*/5 * * * *").
func WithSchedules(sweep, flush string) Option {
	return func(m *MembershipService) {
		if sweep != "" {
			m.sweepSpec = sweep
		}
		if flush != "" {
			m.flushSpec = flush
		}
	}
}

// WithSuperusers restringe .重置群监控 a estos ids (además de ser admin del grupo).
func WithSuperusers(ids ...int64) Option {
	return func(m *MembershipService) {
		for _, id := range ids {
			m.superusers[id] = struct{}{}
		}
	}
}

func WithAuditSinks(sinks ...AuditSink) Option {
	return func(m *MembershipService) {
		for _, s := range sinks {
			if s != nil {
				m.sinks = append(m.sinks, s)
			}
		}
	}
}

func NewMembershipService(gw Gateway, store Store, opts ...Option) *MembershipService {
	m := &MembershipService{
		gw:         gw,
		store:      store,
		log:        slog.Default(),
		now:        time.Now,
		maxAge:     DefaultRequestMaxAge,
		sweepSpec:  DefaultSweepSchedule,
		flushSpec:  DefaultFlushSchedule,
		superusers: map[int64]struct{}{},
		flushCh:    make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With("component", "groupwatch")
	m.reg = NewRegistry(m.now)
	m.reg.onReplace = func(old, cur domain.JoinRequest) {
		m.log.Info("[groupwatch] join request superseded",
			"group", cur.GroupID, "user", cur.UserID, "old_created_at", old.CreatedAt)
	}
	m.stats = NewStats()
	m.resolver = NewResolutionService(gw, m.reg, m.stats, &m.mu, m.log)
	m.notifier = NewNotifier(gw, m.log)
	return m
}

// Init carga el último snapshot. Sin snapshot se arranca vacío; un snapshot ilegible
// corta el arranque para no pisarlo en el próximo flush.
func (m *MembershipService) Init(ctx context.Context) error {
	doc, err := m.store.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		m.log.Info("[groupwatch] no snapshot yet, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	m.mu.Lock()
	n := m.reg.Restore(doc.PendingRequests)
	if doc.Stats.Groups == nil {
		doc.Stats.Groups = map[int64]domain.Counters{}
	}
	m.stats.Restore(doc.Stats)
	m.mu.Unlock()

	m.log.Info("[groupwatch] snapshot restored", "pending", n, "groups", len(doc.Stats.Groups), "saved_at", doc.SavedAt)
	return nil
}

// Start arranca los timers (barrido y flush) y el goroutine que escribe los snapshots.
func (m *MembershipService) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := c.AddFunc(m.sweepSpec, func() { m.Sweep(ctx) }); err != nil {
		return fmt.Errorf("sweep schedule %q: %w", m.sweepSpec, err)
	}
	if _, err := c.AddFunc(m.flushSpec, m.RequestFlush); err != nil {
		return fmt.Errorf("flush schedule %q: %w", m.flushSpec, err)
	}

	m.cron = c
	m.stop = make(chan struct{})
	m.stopped = make(chan struct{})
	go m.flushLoop()
	c.Start()
	m.log.Info("[groupwatch] started", "sweep", m.sweepSpec, "flush", m.flushSpec, "max_age", m.maxAge)
	return nil
}

// Shutdown para los timers, espera el flusher y hace un último flush.
func (m *MembershipService) Shutdown(ctx context.Context) error {
	if m.cron != nil {
		select {
		case <-m.cron.Stop().Done():
		case <-ctx.Done():
		}
	}
	if m.stop != nil {
		close(m.stop)
		select {
		case <-m.stopped:
		case <-ctx.Done():
		}
		m.stop = nil
	}
	return m.Flush(ctx)
}

// RequestFlush no bloquea: si ya hay un flush pendiente se junta con ese.
func (m *MembershipService) RequestFlush() {
	select {
	case m.flushCh <- struct{}{}:
	default:
	}
}

func (m *MembershipService) flushLoop() {
	defer close(m.stopped)
	for {
		select {
		case <-m.stop:
			return
		case <-m.flushCh:
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			_ = m.Flush(ctx)
			cancel()
		}
	}
}

// Flush escribe el estado actual. Un error se loguea y se devuelve, pero el estado en
// memoria sigue mandando.
func (m *MembershipService) Flush(ctx context.Context) error {
	doc := m.Snapshot()
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	if err := m.store.Save(ctx, doc); err != nil {
		m.log.Error("[groupwatch] persist failed", "err", err)
		return err
	}
	return nil
}

func (m *MembershipService) Snapshot() domain.PersistedDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := domain.NewDocument()
	doc.SavedAt = m.now().UTC()
	doc.Stats = m.stats.Snapshot()
	doc.PendingRequests = m.reg.Snapshot()
	return doc
}

// Sweep borra las solicitudes vencidas. Lo llama el cron, pero es seguro llamarlo a mano.
func (m *MembershipService) Sweep(ctx context.Context) int {
	m.mu.Lock()
	n := m.reg.SweepExpired(m.now(), m.maxAge)
	m.mu.Unlock()
	if n == 0 {
		return 0
	}
	m.log.Info("[groupwatch] expired requests swept", "removed", n, "max_age", m.maxAge)
	m.audit(ctx, domain.AuditEntry{Action: "sweep", Reason: fmt.Sprintf("expired:%d", n)})
	m.RequestFlush()
	return n
}

// HandleRequest registra una solicitud de ingreso y avisa a los admins en el grupo.
func (m *MembershipService) HandleRequest(ctx context.Context, ev domain.RequestEvent) {
	defer m.recoverEvent("request")
	if ev.RequestType != "group" || ev.SubType != subTypeAdd || ev.GroupID == 0 || ev.Flag == "" {
		return
	}

	m.mu.Lock()
	req := m.reg.Add(ev.GroupID, ev.UserID, ev.Comment, ev.Flag)
	m.stats.Increment(ev.GroupID, domain.RequestsAdd)
	pending := m.reg.Len(ev.GroupID)
	m.mu.Unlock()
	m.RequestFlush()

	m.log.Info("[groupwatch] join request", "group", ev.GroupID, "user", ev.UserID, "pending", pending)
	m.reply(ctx, ev.GroupID, formatNewRequest(req, pending))
}

// HandleNotice cuenta y avisa altas/bajas de miembros. No toca el registro.
func (m *MembershipService) HandleNotice(ctx context.Context, n domain.Notice) {
	defer m.recoverEvent("notice")
	mb := ClassifyNotice(n)
	switch mb.Kind {
	case Ignore:
		return
	case BotKicked:
		m.log.Warn("[groupwatch] bot removed from group", "group", mb.GroupID, "operator", mb.OperatorID)
		return
	}

	c, ok := mb.Counter()
	if !ok {
		return
	}
	m.mu.Lock()
	m.stats.Increment(mb.GroupID, c)
	m.mu.Unlock()
	m.RequestFlush()

	_ = m.notifier.Notify(ctx, mb)
}

// HandleGroupMessage interpreta comandos de admin. Quien no es admin no recibe respuesta
// alguna, así no se entera de si hay solicitudes pendientes.
func (m *MembershipService) HandleGroupMessage(ctx context.Context, ev domain.MessageEvent) {
	defer m.recoverEvent("message")
	in := ParseCommand(ev.Text)
	if in.Kind == NotACommand || ev.GroupID == 0 {
		return
	}

	if in.NeedsAdmin() {
		ok, err := m.canModerate(ctx, ev)
		if err != nil {
			m.log.Warn("[groupwatch] member info failed", "group", ev.GroupID, "user", ev.UserID, "err", err)
			m.reply(ctx, ev.GroupID, msgTryLater)
			return
		}
		if !ok {
			return
		}
		if in.Kind == ResetPlugin && !m.isSuperuser(ev.UserID) {
			return
		}
	}

	m.log.Info("[groupwatch] command", "intent", in.Kind.String(), "group", ev.GroupID, "by", ev.UserID)

	switch in.Kind {
	case ApproveLatest, RejectLatest, ApproveUser, RejectUser, ApproveAll:
		if m.reg.Len(ev.GroupID) == 0 {
			m.reply(ctx, ev.GroupID, msgNothingPending)
			return
		}
		out := m.resolver.Resolve(ctx, in, ev.GroupID, ev.UserID)
		if out.Attempted() > 0 {
			m.RequestFlush()
			m.audit(ctx, auditFromOutcome(out, ev.GroupID, ev.UserID, in.Reason))
		}
		m.reply(ctx, ev.GroupID, formatOutcome(out))

	case ListPending:
		reqs := m.reg.List(ev.GroupID, pendingListLimit)
		m.reply(ctx, ev.GroupID, formatPending(reqs, m.reg.Len(ev.GroupID), m.now()))

	case ShowStats:
		m.reply(ctx, ev.GroupID, formatStats(m.stats.Group(ev.GroupID), m.stats.Global()))

	case ResetGroupStats:
		m.mu.Lock()
		m.stats.ResetGroup(ev.GroupID)
		m.mu.Unlock()
		m.RequestFlush()
		m.audit(ctx, domain.AuditEntry{GroupID: ev.GroupID, OperatorID: ev.UserID, Action: "reset_group"})
		m.reply(ctx, ev.GroupID, msgGroupReset)

	case ResetPlugin:
		m.mu.Lock()
		m.stats.ResetAll()
		m.reg.Clear()
		m.mu.Unlock()
		m.RequestFlush()
		m.audit(ctx, domain.AuditEntry{GroupID: ev.GroupID, OperatorID: ev.UserID, Action: "reset_plugin"})
		m.reply(ctx, ev.GroupID, msgPluginReset)

	case ShowHelp:
		m.reply(ctx, ev.GroupID, helpText)

	case NotACommand:
	}
}

// canModerate pregunta el rol al gateway; si falla usa el rol que vino en el evento.
func (m *MembershipService) canModerate(ctx context.Context, ev domain.MessageEvent) (bool, error) {
	info, err := m.gw.GetGroupMemberInfo(ctx, ev.GroupID, ev.UserID)
	if err != nil {
		if ev.Role != "" {
			return ev.Role.CanModerate(), nil
		}
		return false, err
	}
	return info.Role.CanModerate(), nil
}

func (m *MembershipService) isSuperuser(userID int64) bool {
	if len(m.superusers) == 0 {
		return true
	}
	_, ok := m.superusers[userID]
	return ok
}

func (m *MembershipService) reply(ctx context.Context, groupID int64, text string) {
	if err := m.gw.SendGroupMsg(ctx, groupID, text); err != nil {
		m.log.Warn("[groupwatch] reply failed", "group", groupID, "err", err)
	}
}

func (m *MembershipService) audit(ctx context.Context, e domain.AuditEntry) {
	if len(m.sinks) == 0 {
		return
	}
	e.ID = uuid.NewString()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now().UTC()
	}
	for _, s := range m.sinks {
		if err := s.Record(ctx, e); err != nil {
			m.log.Warn("[groupwatch] audit failed", "action", e.Action, "err", err)
		}
	}
}

func (m *MembershipService) recoverEvent(kind string) {
	if rec := recover(); rec != nil {
		m.log.Error("[groupwatch] panic handling event", "kind", kind, "panic", rec)
	}
}

func auditFromOutcome(o Outcome, groupID, operatorID int64, reason string) domain.AuditEntry {
	action := "approve"
	switch o.Kind {
	case RejectLatest, RejectUser:
		action = "reject"
	case ApproveAll:
		action = "approve_all"
	}
	targets := make([]int64, 0, len(o.Resolved))
	for _, r := range o.Resolved {
		targets = append(targets, r.UserID)
	}
	return domain.AuditEntry{
		GroupID:    groupID,
		OperatorID: operatorID,
		Action:     action,
		Targets:    targets,
		Approved:   o.Approved,
		Rejected:   o.Rejected,
		Failures:   o.Failures,
		Reason:     reason,
	}
}
