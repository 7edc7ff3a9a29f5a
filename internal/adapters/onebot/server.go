package onebot

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Server recibe eventos por HTTP POST (modo "http" del gateway) y los pasa a Dispatch.
type Server struct {
	secret   string
	dispatch func([]byte) bool
	mux      *http.ServeMux
	log      *slog.Logger
}

// NewServer: si secret no está vacío, cada POST debe traer X-Signature: sha1=<hmac del body>.
func NewServer(secret string, dispatch func([]byte) bool, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{secret: secret, dispatch: dispatch, mux: http.NewServeMux(), log: log}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	s.mux.HandleFunc("/onebot/event", s.handleEvent)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	_ = r.Body.Close()
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if s.secret != "" && !ValidSignature(s.secret, body, r.Header.Get("X-Signature")) {
		s.log.Warn("[http] bad signature", "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if !s.dispatch(body) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
		return
	}
	// 204: sin quick operation
	w.WriteHeader(http.StatusNoContent)
}

// ValidSignature verifica "sha1=<hex hmac-sha1(secret, body)>".
func ValidSignature(secret string, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha1=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// ListenAndServe corre hasta que ctx termine y luego apaga con gracia.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("[http] listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
