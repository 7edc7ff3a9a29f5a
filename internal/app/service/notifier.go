package service

import (
	"context"
	"fmt"
	"log/slog"

)

// Notifier avisa en el grupo los cambios de miembros. No guarda estado.
type Notifier struct {
	gw  Gateway
	log *slog.Logger
}

func NewNotifier(gw Gateway, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{gw: gw, log: log}
}

// Notify manda un mensaje por cada cambio contable; BotKicked e Ignore no mandan nada.
func (n *Notifier) Notify(ctx context.Context, m Membership) error {
	text, ok := n.render(ctx, m)
	if !ok {
		return nil
	}
	if err := n.gw.SendGroupMsg(ctx, m.GroupID, text); err != nil {
		n.log.Warn("[notifier] send failed", "group", m.GroupID, "kind", m.Kind.String(), "err", err)
		return err
	}
	return nil
}

func (n *Notifier) render(ctx context.Context, m Membership) (string, bool) {
	switch m.Kind {
	case UserJoinedDirect:
		return fmt.Sprintf("🎉 欢迎 %s 加入本群！", n.memberName(ctx, m.GroupID, m.UserID)), true
	case UserJoinedByInvite:
		return fmt.Sprintf("🎉 欢迎 %s 加入本群（由 %s 邀请）！",
			n.memberName(ctx, m.GroupID, m.UserID), n.memberName(ctx, m.GroupID, m.OperatorID)), true
	case UserLeftVoluntarily:
		// ya no es miembro, no hay info que consultar
		return fmt.Sprintf("👋 %d 退出了本群。", m.UserID), true
	case UserKicked:
		return fmt.Sprintf("🚪 %d 被 %s 移出了本群。", m.UserID, n.memberName(ctx, m.GroupID, m.OperatorID)), true
	}
	return "", false
}

// memberName cae al id si el gateway no responde.
func (n *Notifier) memberName(ctx context.Context, groupID, userID int64) string {
	if userID == 0 {
		return "未知用户"
	}
	info, err := n.gw.GetGroupMemberInfo(ctx, groupID, userID)
	if err != nil || info.DisplayName() == "" {
		return fmt.Sprint(userID)
	}
	return fmt.Sprintf("%s(%d)", info.DisplayName(), userID)
}
