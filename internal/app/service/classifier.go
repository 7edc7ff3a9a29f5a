package service

import "github.com/jose-valero/group-guard-bot/internal/domain"

type MembershipKind int

const (
	Ignore MembershipKind = iota
	UserJoinedDirect
	UserJoinedByInvite
	UserLeftVoluntarily
	UserKicked
	BotKicked
)

func (k MembershipKind) String() string {
	switch k {
	case UserJoinedDirect:
		return "joined_direct"
	case UserJoinedByInvite:
		return "joined_invite"
	case UserLeftVoluntarily:
		return "left"
	case UserKicked:
		return "kicked"
	case BotKicked:
		return "bot_kicked"
	}
	return "ignore"
}

// Membership es un cambio de miembros ya clasificado. OperatorID es quien invitó o expulsó.
type Membership struct {
	Kind       MembershipKind
	GroupID    int64
	UserID     int64
	OperatorID int64
}

// Counter devuelve el contador a incrementar y false si el cambio no se cuenta.
func (m Membership) Counter() (domain.Counter, bool) {
	switch m.Kind {
	case UserJoinedDirect:
		return domain.JoinApprove, true
	case UserJoinedByInvite:
		return domain.JoinInvite, true
	case UserLeftVoluntarily:
		return domain.LeaveActive, true
	case UserKicked:
		return domain.LeaveKick, true
	}
	return 0, false
}

// ClassifyNotice traduce un aviso group_increase/group_decrease. Todo lo demás es Ignore.
func ClassifyNotice(n domain.Notice) Membership {
	m := Membership{GroupID: n.GroupID, UserID: n.UserID, OperatorID: n.OperatorID}
	if n.GroupID == 0 || n.UserID == 0 {
		return m
	}
	switch n.NoticeType {
	case "group_increase":
		if n.SelfID != 0 && n.UserID == n.SelfID {
			// el bot entrando a un grupo nuevo no es un miembro más
			return m
		}
		switch n.SubType {
		case "invite":
			m.Kind = UserJoinedByInvite
		default:
			m.Kind = UserJoinedDirect
		}
	case "group_decrease":
		switch {
		case n.SubType == "kick_me" || (n.SelfID != 0 && n.UserID == n.SelfID):
			m.Kind = BotKicked
		case n.SubType == "kick":
			m.Kind = UserKicked
		case n.SubType == "leave":
			m.Kind = UserLeftVoluntarily
		}
	}
	return m
}
