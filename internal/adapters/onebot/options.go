package onebot

import (
	"log/slog"
	"net/http"
	"time"
)

type Option func(*options)

type options struct {
	http        *http.Client
	accessToken string
	callTimeout time.Duration
	reconnect   time.Duration
	log         *slog.Logger
}

func defaultOptions() options {
	return options{
		http:        &http.Client{Timeout: 10 * time.Second},
		callTimeout: 8 * time.Second,
		reconnect:   5 * time.Second,
		log:         slog.Default(),
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(o *options) { o.http = h }
}

// WithAccessToken manda "Authorization: Bearer <token>" en cada llamada / handshake.
func WithAccessToken(t string) Option {
	return func(o *options) { o.accessToken = t }
}

// WithCallTimeout aplica cuando el ctx de la llamada no trae deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.callTimeout = d
		}
	}
}

func WithReconnectInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.reconnect = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}
