package onebot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/group-guard-bot/internal/domain"
)

func TestDecodeEvent_GroupMessage(t *testing.T) {
	raw := []byte(`{"post_type":"message","message_type":"group","self_id":10,"group_id":200,"user_id":300,
		"message_id":77,"raw_message":".是 [CQ:at,qq=400]","time":1700000000,
		"sender":{"nickname":"Ana","role":"admin"}}`)

	ev, err := DecodeEvent(raw)
	require.NoError(t, err)
	require.Equal(t, EventGroupMessage, ev.Kind)
	m := ev.Message
	assert.Equal(t, int64(10), m.SelfID)
	assert.Equal(t, int64(200), m.GroupID)
	assert.Equal(t, int64(300), m.UserID)
	assert.Equal(t, "77", m.MessageID)
	assert.Equal(t, ".是 [CQ:at,qq=400]", m.Text)
	assert.Equal(t, domain.RoleAdmin, m.Role)
	assert.Equal(t, int64(1700000000), m.Time.Unix())
}

func TestDecodeEvent_SegmentArray(t *testing.T) {
	raw := []byte(`{"post_type":"message","message_type":"group","group_id":1,"user_id":2,
		"message":[{"type":"text","data":{"text":".否 "}},{"type":"at","data":{"qq":"99"}},
		{"type":"image","data":{"file":"x.png"}},{"type":"text","data":{"text":" spam"}}]}`)

	ev, err := DecodeEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, ".否 [CQ:at,qq=99] spam", ev.Message.Text)
}

func TestDecodeEvent_PrivateMessageIgnored(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"post_type":"message","message_type":"private","user_id":2,"raw_message":".是"}`))
	require.NoError(t, err)
	assert.Equal(t, EventUnknown, ev.Kind)
}

func TestDecodeEvent_Notice(t *testing.T) {
	raw := []byte(`{"post_type":"notice","notice_type":"group_decrease","sub_type":"kick",
		"self_id":10,"group_id":200,"user_id":300,"operator_id":400}`)

	ev, err := DecodeEvent(raw)
	require.NoError(t, err)
	require.Equal(t, EventNotice, ev.Kind)
	assert.Equal(t, domain.Notice{
		SelfID: 10, NoticeType: "group_decrease", SubType: "kick",
		GroupID: 200, UserID: 300, OperatorID: 400, Time: ev.Notice.Time,
	}, ev.Notice)
}

func TestDecodeEvent_Request(t *testing.T) {
	raw := []byte(`{"post_type":"request","request_type":"group","sub_type":"add","group_id":200,
		"user_id":300,"comment":"我是学生","flag":"f-1"}`)

	ev, err := DecodeEvent(raw)
	require.NoError(t, err)
	require.Equal(t, EventRequest, ev.Kind)
	assert.Equal(t, "f-1", ev.Request.Flag)
	assert.Equal(t, "add", ev.Request.SubType)
	assert.Equal(t, "我是学生", ev.Request.Comment)
	assert.False(t, ev.Request.Time.IsZero())
}

func TestDecodeEvent_Invalid(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"post_type":`))
	assert.Error(t, err)

	ev, err := DecodeEvent([]byte(`{"post_type":"meta_event","meta_event_type":"heartbeat"}`))
	require.NoError(t, err)
	assert.Equal(t, EventMeta, ev.Kind)
}
