package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/jose-valero/group-guard-bot/internal/domain"
)

// textos que ve la gente en el grupo

const (
	msgNothingPending = "ℹ️ 当前没有待处理的入群申请。"
	msgNotFound       = "ℹ️ 未找到该申请，可能已被处理、撤回或已过期。"
	msgTryLater       = "⚠️ 操作失败，请稍后再试。"
	msgGroupReset     = "✅ 本群统计已重置。"
	msgPluginReset    = "✅ 群监控已重置：所有统计与待处理申请均已清空。"
	pendingListLimit  = 10
)

const helpText = `📖 群监控指令
.是 —— 同意最新的入群申请
.是 <QQ号> —— 同意指定用户的申请
.是 全部 —— 同意本群所有待处理申请
.否 [QQ号] [理由] —— 拒绝最新或指定用户的申请
.查看申请 —— 查看最近 10 条待处理申请
.群统计 / .成员统计 —— 查看本群与全局统计
.重置统计 —— 重置本群统计
.重置群监控 —— 清空所有统计与待处理申请
.群监控帮助 —— 显示本帮助`

func formatNewRequest(req domain.JoinRequest, pending int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📨 新的入群申请\n申请人：%d\n", req.UserID)
	if c := strings.TrimSpace(req.Comment); c != "" {
		fmt.Fprintf(&b, "验证信息：%s\n", c)
	}
	fmt.Fprintf(&b, "待处理：%d 条\n", pending)
	b.WriteString("管理员回复 .是 同意 / .否 [理由] 拒绝")
	return b.String()
}

func formatOutcome(o Outcome) string {
	if o.NotFound {
		if o.Kind == ApproveAll {
			return msgNothingPending
		}
		return msgNotFound
	}
	if o.Kind == ApproveAll {
		s := fmt.Sprintf("✅ 批量同意完成：成功 %d 条", o.Approved)
		if len(o.Failures) > 0 {
			s += fmt.Sprintf("，失败 %d 条（%s）", len(o.Failures), joinIDs(o.Failures))
		}
		return s
	}
	if len(o.Failures) > 0 {
		return fmt.Sprintf("⚠️ 处理 %s 的申请失败，该申请已失效，请稍后再试或让其重新申请。", joinIDs(o.Failures))
	}
	if len(o.Resolved) == 0 {
		return msgNotFound
	}
	req := o.Resolved[0]
	if o.Approved > 0 {
		return fmt.Sprintf("✅ 已同意 %d 的入群申请。", req.UserID)
	}
	return fmt.Sprintf("🚫 已拒绝 %d 的入群申请。", req.UserID)
}

func formatPending(reqs []domain.JoinRequest, total int, now time.Time) string {
	if len(reqs) == 0 {
		return msgNothingPending
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 待处理申请（共 %d 条，显示最近 %d 条）\n", total, len(reqs))
	for i, r := range reqs {
		fmt.Fprintf(&b, "%d) %d · %s", i+1, r.UserID, fmtAgo(r.Age(now)))
		if c := strings.TrimSpace(r.Comment); c != "" {
			fmt.Fprintf(&b, " · %s", c)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatStats(group, global domain.Counters) string {
	var b strings.Builder
	b.WriteString("📊 本群统计\n")
	writeCounters(&b, group)
	b.WriteString("\n🌐 全局统计\n")
	writeCounters(&b, global)
	return strings.TrimRight(b.String(), "\n")
}

func writeCounters(b *strings.Builder, c domain.Counters) {
	fmt.Fprintf(b, "入群：%d（审核 %d / 邀请 %d）\n", c.Joined(), c.Join.Approve, c.Join.Invite)
	fmt.Fprintf(b, "退群：%d（主动 %d / 被踢 %d）\n", c.Left(), c.Leave.Active, c.Leave.Kick)
	fmt.Fprintf(b, "净增长：%+d\n", c.NetGrowth())
	fmt.Fprintf(b, "申请：%d（同意 %d / 拒绝 %d）", c.Requests.Add, c.Requests.Approved, c.Requests.Rejected)
	if rate, ok := c.ApprovalRate(); ok {
		fmt.Fprintf(b, " · 通过率 %.1f%%", rate*100)
	}
	b.WriteString("\n")
}

func fmtAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "刚刚"
	case d < time.Hour:
		return fmt.Sprintf("%d分钟前", int(d.Minutes()))
	default:
		return fmt.Sprintf("%d小时前", int(d.Hours()))
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, "、")
}
