package service

import (
	"regexp"
	"strconv"
	"strings"
)

type IntentKind int

const (
	NotACommand IntentKind = iota
	ApproveLatest
	RejectLatest
	ApproveUser
	RejectUser
	ApproveAll
	ListPending
	ShowStats
	ResetGroupStats
	ResetPlugin
	ShowHelp
)

func (k IntentKind) String() string {
	switch k {
	case ApproveLatest:
		return "approve_latest"
	case RejectLatest:
		return "reject_latest"
	case ApproveUser:
		return "approve_user"
	case RejectUser:
		return "reject_user"
	case ApproveAll:
		return "approve_all"
	case ListPending:
		return "list_pending"
	case ShowStats:
		return "show_stats"
	case ResetGroupStats:
		return "reset_group_stats"
	case ResetPlugin:
		return "reset_plugin"
	case ShowHelp:
		return "show_help"
	}
	return "not_a_command"
}

// Intent es lo que pidió el admin. Target sólo vale para ApproveUser/RejectUser.
type Intent struct {
	Kind   IntentKind
	Target int64
	Reason string
}

// Resolves indica si el intent aprueba o rechaza solicitudes.
func (i Intent) Resolves() bool {
	switch i.Kind {
	case ApproveLatest, RejectLatest, ApproveUser, RejectUser, ApproveAll:
		return true
	}
	return false
}

// NeedsAdmin: todo lo que resuelve, lista o resetea. Estadísticas y ayuda son públicas.
func (i Intent) NeedsAdmin() bool {
	switch i.Kind {
	case ListPending, ResetGroupStats, ResetPlugin:
		return true
	}
	return i.Resolves()
}

const allToken = "全部"

var exactCommands = map[string]IntentKind{
	"查看申请":  ListPending,
	"群统计":   ShowStats,
	"成员统计":  ShowStats,
	"重置统计":  ResetGroupStats,
	"重置群监控": ResetPlugin,
	"群监控帮助": ShowHelp,
}

var reAtTarget = regexp.MustCompile(`^\[CQ:at,qq=(\d+)[^\]]*\]$`)

// ParseCommand traduce el texto de un mensaje a un Intent. No consulta permisos ni estado.
func ParseCommand(text string) Intent {
	body, ok := stripDot(strings.TrimSpace(text))
	if !ok {
		return Intent{Kind: NotACommand}
	}

	if k, ok := exactCommands[body]; ok {
		return Intent{Kind: k}
	}

	var approve bool
	var rest string
	switch {
	case hasVerb(body, "是"):
		approve, rest = true, body[len("是"):]
	case hasVerb(body, "否"):
		approve, rest = false, body[len("否"):]
	default:
		return Intent{Kind: NotACommand}
	}

	fields := strings.Fields(rest)
	if len(fields) == 1 && fields[0] == allToken {
		if approve {
			return Intent{Kind: ApproveAll}
		}
		// no hay rechazo masivo
		return Intent{Kind: ShowHelp}
	}

	if len(fields) > 0 {
		if id, ok := parseTarget(fields[0]); ok {
			reason := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), fields[0]))
			if approve {
				return Intent{Kind: ApproveUser, Target: id, Reason: reason}
			}
			return Intent{Kind: RejectUser, Target: id, Reason: reason}
		}
	}

	reason := strings.Join(fields, " ")
	if approve {
		return Intent{Kind: ApproveLatest, Reason: reason}
	}
	return Intent{Kind: RejectLatest, Reason: reason}
}

// stripDot acepta "." o el punto de ancho completo "。" como prefijo.
func stripDot(s string) (string, bool) {
	for _, p := range []string{".", "。"} {
		if strings.HasPrefix(s, p) {
			return s[len(p):], true
		}
	}
	return "", false
}

// hasVerb: el verbo tiene que ir solo o seguido de espacio (".是否" no es ".是").
func hasVerb(body, verb string) bool {
	if !strings.HasPrefix(body, verb) {
		return false
	}
	rest := body[len(verb):]
	return rest == "" || strings.ContainsRune(" \t\r\n", rune(rest[0])) || strings.HasPrefix(rest, "　")
}

// parseTarget acepta un id numérico pelado o una mención [CQ:at,qq=123].
func parseTarget(tok string) (int64, bool) {
	if m := reAtTarget.FindStringSubmatch(tok); len(m) == 2 {
		tok = m[1]
	}
	if tok == "" {
		return 0, false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(tok, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
