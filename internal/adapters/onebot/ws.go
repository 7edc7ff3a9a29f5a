package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// WSConn es la conexión WebSocket directa con el gateway. Por el mismo socket llegan los
// eventos y las respuestas a nuestras acciones; las respuestas se reparten por "echo".
type WSConn struct {
	url     string
	opts    options
	onEvent func([]byte)

	mu   sync.Mutex
	conn *websocket.Conn

	writeMu sync.Mutex
	waitMu  sync.Mutex
	waiters map[string]chan Response
	echoSeq atomic.Int64
}

// NewWS no conecta; Run abre la conexión y la mantiene. onEvent recibe cada frame que no es
// respuesta (puede ser nil).
func NewWS(url string, onEvent func([]byte), opts ...Option) *WSConn {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &WSConn{url: url, opts: o, onEvent: onEvent, waiters: map[string]chan Response{}}
}

// Run conecta y escucha hasta que ctx termine, reconectando cada opts.reconnect.
func (c *WSConn) Run(ctx context.Context) error {
	log := c.opts.log
	for {
		if err := c.connect(ctx); err != nil {
			log.Warn("[onebot] ws connect failed", "url", c.url, "err", err)
		} else {
			log.Info("[onebot] ws connected", "url", c.url)
			c.listen(ctx)
		}

		select {
		case <-ctx.Done():
			c.Close()
			return nil
		case <-time.After(c.opts.reconnect):
			log.Info("[onebot] ws reconnecting")
		}
	}
}

func (c *WSConn) connect(ctx context.Context) error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	header := http.Header{}
	if c.opts.accessToken != "" {
		header.Set("Authorization", "Bearer "+c.opts.accessToken)
	}
	conn, _, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// Close corta la conexión actual; Run vuelve a conectar salvo que su ctx haya terminado.
func (c *WSConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *WSConn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *WSConn) listen(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	// ReadMessage no mira el ctx; cerrar el socket lo destraba
	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.opts.log.Warn("[onebot] ws read error", "err", err)
			}
			c.mu.Lock()
			if c.conn == conn {
				_ = conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()
			return
		}

		if echo := gjson.GetBytes(msg, "echo"); echo.Exists() && echo.String() != "" {
			c.dispatchResponse(echo.String(), msg)
			continue
		}
		if c.onEvent != nil {
			c.onEvent(msg)
		}
	}
}

func (c *WSConn) dispatchResponse(echo string, payload []byte) {
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		c.opts.log.Warn("[onebot] bad api response", "echo", echo, "err", err)
		return
	}
	resp.Echo = echo

	c.waitMu.Lock()
	waiter := c.waiters[echo]
	c.waitMu.Unlock()
	if waiter == nil {
		return
	}
	select {
	case waiter <- resp:
	default:
	}
}

func (c *WSConn) nextEcho(action string) string {
	return fmt.Sprintf("%s_%d", action, c.echoSeq.Add(1))
}

func (c *WSConn) Call(ctx context.Context, action string, params any) (*Response, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.callTimeout)
		defer cancel()
	}

	echo := c.nextEcho(action)
	waiter := make(chan Response, 1)
	c.waitMu.Lock()
	c.waiters[echo] = waiter
	c.waitMu.Unlock()
	defer func() {
		c.waitMu.Lock()
		delete(c.waiters, echo)
		c.waitMu.Unlock()
	}()

	payload, err := json.Marshal(apiRequest{Action: action, Params: params, Echo: echo})
	if err != nil {
		return nil, fmt.Errorf("onebot %s: marshal: %w", action, err)
	}
	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onebot %s: write: %w", action, err)
	}

	select {
	case resp := <-waiter:
		return &resp, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: action=%s", ErrTimeout, action)
		}
		return nil, ctx.Err()
	}
}
