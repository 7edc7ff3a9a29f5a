package onebot

import "encoding/json"

type apiRequest struct {
	Action string `json:"action"`
	Params any    `json:"params"`
	Echo   string `json:"echo,omitempty"`
}

// Response es el sobre común de todas las acciones.
type Response struct {
	Status  string          `json:"status"`
	RetCode int64           `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Wording string          `json:"wording"`
	Echo    string          `json:"echo"`
}

// ok: algunas implementaciones mandan "async" para acciones encoladas.
func (r *Response) ok() bool {
	return (r.Status == "ok" || r.Status == "async") && r.RetCode == 0
}

func (r *Response) err(action string) error {
	msg := r.Wording
	if msg == "" {
		msg = r.Message
	}
	return &APIError{Action: action, Status: r.Status, RetCode: r.RetCode, Message: msg}
}

// --- params ---

type sendGroupMsgParams struct {
	GroupID int64  `json:"group_id"`
	Message string `json:"message"`
}

type memberInfoParams struct {
	GroupID int64 `json:"group_id"`
	UserID  int64 `json:"user_id"`
	NoCache bool  `json:"no_cache"`
}

type groupInfoParams struct {
	GroupID int64 `json:"group_id"`
	NoCache bool  `json:"no_cache"`
}

type setGroupAddRequestParams struct {
	Flag    string `json:"flag"`
	SubType string `json:"sub_type"`
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

// --- data ---

type memberInfoDTO struct {
	GroupID  int64  `json:"group_id"`
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card"`
	Role     string `json:"role"`
}

type groupInfoDTO struct {
	GroupID     int64  `json:"group_id"`
	GroupName   string `json:"group_name"`
	MemberCount int    `json:"member_count"`
}
