package onebot

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/jose-valero/group-guard-bot/internal/domain"
)

type EventKind int

const (
	EventUnknown EventKind = iota
	EventGroupMessage
	EventNotice
	EventRequest
	EventMeta
)

// Event es un frame ya decodificado; sólo uno de Message/Notice/Request viene lleno según Kind.
type Event struct {
	Kind    EventKind
	Message domain.MessageEvent
	Notice  domain.Notice
	Request domain.RequestEvent
}

// DecodeEvent lee un frame de evento OneBot v11. Mensajes privados y tipos desconocidos
// salen como EventUnknown sin error; sólo el JSON inválido es error.
func DecodeEvent(raw []byte) (Event, error) {
	if !gjson.ValidBytes(raw) {
		return Event{}, fmt.Errorf("onebot: invalid event json")
	}
	r := gjson.ParseBytes(raw)
	selfID := r.Get("self_id").Int()
	at := eventTime(r.Get("time"))

	switch r.Get("post_type").String() {
	case "message", "message_sent":
		if r.Get("message_type").String() != "group" {
			return Event{}, nil
		}
		return Event{Kind: EventGroupMessage, Message: domain.MessageEvent{
			SelfID:    selfID,
			GroupID:   r.Get("group_id").Int(),
			UserID:    r.Get("user_id").Int(),
			MessageID: r.Get("message_id").String(),
			Text:      messageText(r),
			Nickname:  r.Get("sender.nickname").String(),
			Role:      domain.Role(r.Get("sender.role").String()),
			Time:      at,
		}}, nil

	case "notice":
		return Event{Kind: EventNotice, Notice: domain.Notice{
			SelfID:     selfID,
			NoticeType: r.Get("notice_type").String(),
			SubType:    r.Get("sub_type").String(),
			GroupID:    r.Get("group_id").Int(),
			UserID:     r.Get("user_id").Int(),
			OperatorID: r.Get("operator_id").Int(),
			Time:       at,
		}}, nil

	case "request":
		return Event{Kind: EventRequest, Request: domain.RequestEvent{
			SelfID:      selfID,
			RequestType: r.Get("request_type").String(),
			SubType:     r.Get("sub_type").String(),
			GroupID:     r.Get("group_id").Int(),
			UserID:      r.Get("user_id").Int(),
			Comment:     r.Get("comment").String(),
			Flag:        r.Get("flag").String(),
			Time:        at,
		}}, nil

	case "meta_event":
		return Event{Kind: EventMeta}, nil
	}
	return Event{}, nil
}

func eventTime(v gjson.Result) time.Time {
	if !v.Exists() || v.Int() <= 0 {
		return time.Now()
	}
	return time.Unix(v.Int(), 0)
}

// messageText prefiere raw_message (formato CQ); si no viene, arma el texto desde
// "message", que puede ser string o arreglo de segmentos.
func messageText(r gjson.Result) string {
	if s := r.Get("raw_message").String(); s != "" {
		return s
	}
	msg := r.Get("message")
	if !msg.IsArray() {
		return msg.String()
	}
	var b strings.Builder
	msg.ForEach(func(_, seg gjson.Result) bool {
		switch seg.Get("type").String() {
		case "text":
			b.WriteString(seg.Get("data.text").String())
		case "at":
			fmt.Fprintf(&b, "[CQ:at,qq=%s]", seg.Get("data.qq").String())
		}
		return true
	})
	return b.String()
}
