package onebot

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected = errors.New("onebot: not connected")
	ErrTimeout      = errors.New("onebot: api timeout")
)

// APIError es una respuesta del gateway con status != ok (o HTTP no-2xx).
type APIError struct {
	Action  string
	Status  string
	RetCode int64
	Message string
	HTTP    int // sólo transporte HTTP
}

func (e *APIError) Error() string {
	if e.HTTP != 0 {
		return fmt.Sprintf("onebot %s: http %d: %s", e.Action, e.HTTP, e.Message)
	}
	return fmt.Sprintf("onebot %s: status=%s retcode=%d: %s", e.Action, e.Status, e.RetCode, e.Message)
}
