package onebot

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jose-valero/group-guard-bot/internal/domain"
)

// Handler es lo que el router necesita del servicio de miembros.
type Handler interface {
	HandleGroupMessage(ctx context.Context, ev domain.MessageEvent)
	HandleNotice(ctx context.Context, n domain.Notice)
	HandleRequest(ctx context.Context, ev domain.RequestEvent)
}

const defaultQueueSize = 1024

// Router decodifica frames y los entrega al Handler de a uno, en orden de llegada.
// Dispatch nunca bloquea al lector del socket: con la cola llena el frame se descarta.
type Router struct {
	h     Handler
	log   *slog.Logger
	queue chan []byte
	cmds  *userLimiter
}

type RouterOption func(*Router)

func WithQueueSize(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.queue = make(chan []byte, n)
		}
	}
}

// WithCommandCooldown descarta comandos del mismo usuario que lleguen antes de d.
func WithCommandCooldown(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.cmds = newUserLimiter(d)
		}
	}
}

func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) { r.log = l }
}

func NewRouter(h Handler, opts ...RouterOption) *Router {
	r := &Router{h: h, log: slog.Default(), queue: make(chan []byte, defaultQueueSize)}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Dispatch encola un frame crudo. Devuelve false si se descartó.
func (r *Router) Dispatch(raw []byte) bool {
	select {
	case r.queue <- raw:
		return true
	default:
		r.log.Warn("[router] queue full, dropping event", "size", cap(r.queue))
		return false
	}
}

// Run consume la cola hasta que ctx termine.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw := <-r.queue:
			r.Handle(ctx, raw)
		}
	}
}

// Handle procesa un frame en la goroutine actual.
func (r *Router) Handle(ctx context.Context, raw []byte) {
	ev, err := DecodeEvent(raw)
	if err != nil {
		r.log.Warn("[router] bad event", "err", err)
		return
	}

	switch ev.Kind {
	case EventGroupMessage:
		m := ev.Message
		if m.SelfID != 0 && m.UserID == m.SelfID {
			return
		}
		if isCommand(m.Text) && r.cmds != nil && !r.cmds.Allow(m.GroupID, m.UserID) {
			r.log.Debug("[router] command throttled", "group", m.GroupID, "user", m.UserID)
			return
		}
		defer r.step("message", m.GroupID)()
		r.h.HandleGroupMessage(ctx, m)
	case EventNotice:
		defer r.step("notice."+ev.Notice.NoticeType, ev.Notice.GroupID)()
		r.h.HandleNotice(ctx, ev.Notice)
	case EventRequest:
		defer r.step("request."+ev.Request.RequestType, ev.Request.GroupID)()
		r.h.HandleRequest(ctx, ev.Request)
	}
}

func (r *Router) step(label string, groupID int64) func() {
	start := time.Now()
	return func() {
		r.log.Debug("[trace] "+label, "group", groupID, "dur", time.Since(start))
	}
}

func isCommand(text string) bool {
	t := strings.TrimSpace(text)
	return strings.HasPrefix(t, ".") || strings.HasPrefix(t, "。")
}

// userLimiter: una ventana por (grupo, usuario).
type userLimiter struct {
	mu   sync.Mutex
	next map[string]time.Time
	win  time.Duration
	now  func() time.Time
}

func newUserLimiter(window time.Duration) *userLimiter {
	return &userLimiter{next: map[string]time.Time{}, win: window, now: time.Now}
}

func (l *userLimiter) Allow(groupID, userID int64) bool {
	key := strconv.FormatInt(groupID, 10) + ":" + strconv.FormatInt(userID, 10)
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if until, ok := l.next[key]; ok && now.Before(until) {
		return false
	}
	l.next[key] = now.Add(l.win)
	// purga de vencidos cuando el mapa crece
	if len(l.next) > 4096 {
		for k, t := range l.next {
			if now.After(t) {
				delete(l.next, k)
			}
		}
	}
	return true
}
