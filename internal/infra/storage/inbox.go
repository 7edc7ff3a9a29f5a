package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InboxChannel es el canal de pg_notify; el payload es el id de la fila.
const InboxChannel = "onebot_inbox"

// OpenPool abre un pool pgx (lo usan el listener del inbox, el webhook y el janitor).
func OpenPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("pgx parse: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgx ping: %w", err)
	}
	return pool, nil
}

// Inbox es la cola de eventos OneBot en Postgres: el webhook inserta y notifica, el bot
// escucha y reclama cada fila una sola vez.
type Inbox struct {
	pool  *pgxpool.Pool
	log   *slog.Logger
	retry time.Duration
}

func NewInbox(pool *pgxpool.Pool, log *slog.Logger) *Inbox {
	if log == nil {
		log = slog.Default()
	}
	return &Inbox{pool: pool, log: log, retry: 5 * time.Second}
}

// Insert guarda el payload crudo y avisa por pg_notify. Devuelve el id de la fila.
func (i *Inbox) Insert(ctx context.Context, postType string, payload []byte) (int64, error) {
	if postType == "" {
		postType = "unknown"
	}
	var id int64
	err := i.pool.QueryRow(ctx,
		`INSERT INTO onebot_inbox (post_type, payload) VALUES ($1, $2::jsonb) RETURNING id`,
		postType, string(payload),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inbox insert: %w", err)
	}
	if _, err := i.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, InboxChannel, strconv.FormatInt(id, 10)); err != nil {
		// la fila queda; el bot la levanta en el próximo drain
		return id, fmt.Errorf("inbox notify: %w", err)
	}
	return id, nil
}

// Run escucha el canal hasta que ctx termine. Cada fila reclamada se entrega a dispatch; si
// dispatch la rechaza se libera para el próximo drain.
func (i *Inbox) Run(ctx context.Context, dispatch func([]byte) bool) error {
	for {
		err := i.listen(ctx, dispatch)
		if ctx.Err() != nil {
			return nil
		}
		i.log.Warn("[inbox] listener stopped, retrying", "err", err, "in", i.retry)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(i.retry):
		}
	}
}

func (i *Inbox) listen(ctx context.Context, dispatch func([]byte) bool) error {
	conn, err := i.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{InboxChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	i.log.Info("[inbox] listening", "channel", InboxChannel)

	// backlog: lo que llegó mientras el bot no escuchaba
	if n, err := i.Drain(ctx, dispatch); err != nil {
		return err
	} else if n > 0 {
		i.log.Info("[inbox] backlog drained", "events", n)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(n.Payload, 10, 64)
		if err != nil {
			i.log.Warn("[inbox] bad notification payload", "payload", n.Payload)
			continue
		}
		if _, err := i.claim(ctx, id, dispatch); err != nil {
			return err
		}
	}
}

// Drain reclama en orden todas las filas pendientes.
func (i *Inbox) Drain(ctx context.Context, dispatch func([]byte) bool) (int, error) {
	rows, err := i.pool.Query(ctx, `SELECT id FROM onebot_inbox WHERE processed_at IS NULL ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("inbox pending: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, fmt.Errorf("inbox pending: %w", err)
	}

	done := 0
	for _, id := range ids {
		ok, err := i.claim(ctx, id, dispatch)
		if err != nil {
			return done, err
		}
		if !ok {
			break
		}
		done++
	}
	return done, nil
}

// claim devuelve false sólo si dispatch rechazó la fila; una fila ya tomada cuenta como hecha.
func (i *Inbox) claim(ctx context.Context, id int64, dispatch func([]byte) bool) (bool, error) {
	var payload []byte
	err := i.pool.QueryRow(ctx, `
UPDATE onebot_inbox
   SET processed_at = now()
 WHERE id = $1 AND processed_at IS NULL
RETURNING payload
`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("inbox claim %d: %w", id, err)
	}
	if dispatch(payload) {
		return true, nil
	}
	if _, err := i.pool.Exec(ctx, `UPDATE onebot_inbox SET processed_at = NULL WHERE id = $1`, id); err != nil {
		return false, fmt.Errorf("inbox release %d: %w", id, err)
	}
	return false, nil
}
