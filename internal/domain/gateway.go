package domain

import "time"

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// CanModerate: admin u owner pueden resolver solicitudes y resetear estadísticas.
func (r Role) CanModerate() bool { return r == RoleAdmin || r == RoleOwner }

type MemberInfo struct {
	GroupID  int64
	UserID   int64
	Nickname string
	Card     string
	Role     Role
}

// DisplayName prefiere la tarjeta de grupo sobre el nick.
func (m MemberInfo) DisplayName() string {
	if m.Card != "" {
		return m.Card
	}
	return m.Nickname
}

type GroupInfo struct {
	GroupID     int64
	Name        string
	MemberCount int
}

// MessageEvent es un mensaje de grupo ya normalizado por el adapter.
type MessageEvent struct {
	SelfID    int64
	GroupID   int64
	UserID    int64
	MessageID string
	Text      string
	Nickname  string
	Role      Role // rol que trae el sender; puede venir vacío
	Time      time.Time
}

// Notice es un aviso del gateway (notice_type/sub_type de OneBot).
type Notice struct {
	SelfID     int64
	NoticeType string
	SubType    string
	GroupID    int64
	UserID     int64
	OperatorID int64
	Time       time.Time
}

// RequestEvent es una solicitud (request_type=group) pendiente de resolución.
type RequestEvent struct {
	SelfID      int64
	RequestType string
	SubType     string // "add" o "invite"
	GroupID     int64
	UserID      int64
	Comment     string
	Flag        string
	Time        time.Time
}
