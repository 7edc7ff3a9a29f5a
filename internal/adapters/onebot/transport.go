package onebot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Caller ejecuta una acción OneBot y devuelve el sobre de respuesta tal cual. Lo implementan
// HTTPTransport y WSConn.
type Caller interface {
	Call(ctx context.Context, action string, params any) (*Response, error)
}

// HTTPTransport habla con la API HTTP de OneBot: POST <base>/<action> con los params en JSON.
type HTTPTransport struct {
	baseURL string
	opts    options
}

func NewHTTPTransport(baseURL string, opts ...Option) *HTTPTransport {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &HTTPTransport{baseURL: strings.TrimRight(baseURL, "/"), opts: o}
}

func (t *HTTPTransport) Call(ctx context.Context, action string, params any) (*Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.callTimeout)
		defer cancel()
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("onebot %s: marshal params: %w", action, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/"+action, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("onebot %s: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if t.opts.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.opts.accessToken)
	}

	res, err := t.opts.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("onebot http: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, &APIError{Action: action, HTTP: res.StatusCode, Message: strings.TrimSpace(string(b))}
	}

	var out Response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("onebot %s: decode: %w", action, err)
	}
	return &out, nil
}
