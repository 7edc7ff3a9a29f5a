package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/group-guard-bot/internal/domain"
)

// Sender es la parte de *discordgo.Session que usa el espejo.
type Sender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Mirror copia cada entrada de auditoría a un canal de Discord para los moderadores.
type Mirror struct {
	s         Sender
	channelID string
	log       *slog.Logger
}

func NewMirror(s Sender, channelID string, log *slog.Logger) *Mirror {
	if log == nil {
		log = slog.Default()
	}
	return &Mirror{s: s, channelID: channelID, log: log}
}

// Open arma la sesión REST con el token del bot. No abre el gateway de Discord: el espejo sólo
// escribe.
func Open(token string) (*discordgo.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("discord: empty token")
	}
	if !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}
	return discordgo.New(token)
}

func (m *Mirror) Record(ctx context.Context, e domain.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := m.s.ChannelMessageSendEmbed(m.channelID, auditEmbed(e), discordgo.WithContext(ctx))
	if err != nil {
		m.log.Warn("[discord] mirror send failed", "channel", m.channelID, "action", e.Action, "err", err)
		return fmt.Errorf("discord mirror: %w", err)
	}
	return nil
}

const (
	colorOK      = 0x2ecc71
	colorPartial = 0xf1c40f
	colorReject  = 0xe74c3c
	colorInfo    = 0x3498db
)

func auditEmbed(e domain.AuditEntry) *discordgo.MessageEmbed {
	em := &discordgo.MessageEmbed{
		Title:     actionTitle(e.Action),
		Color:     actionColor(e),
		Timestamp: e.CreatedAt.UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Grupo", Value: fmt.Sprint(e.GroupID), Inline: true},
			{Name: "Operador", Value: operator(e.OperatorID), Inline: true},
		},
	}
	if e.Approved > 0 || e.Rejected > 0 {
		em.Fields = append(em.Fields, &discordgo.MessageEmbedField{
			Name: "Resultado", Value: fmt.Sprintf("✅ %d · 🚫 %d", e.Approved, e.Rejected), Inline: true,
		})
	}
	if len(e.Targets) > 0 {
		em.Fields = append(em.Fields, &discordgo.MessageEmbedField{Name: "Usuarios", Value: idList(e.Targets, 20)})
	}
	if len(e.Failures) > 0 {
		em.Fields = append(em.Fields, &discordgo.MessageEmbedField{Name: "Fallaron", Value: idList(e.Failures, 20)})
	}
	if r := strings.TrimSpace(e.Reason); r != "" {
		em.Fields = append(em.Fields, &discordgo.MessageEmbedField{Name: "Motivo", Value: r})
	}
	if e.ID != "" {
		em.Footer = &discordgo.MessageEmbedFooter{Text: e.ID}
	}
	return em
}

func actionTitle(action string) string {
	switch action {
	case "approve":
		return "Solicitud aprobada"
	case "reject":
		return "Solicitud rechazada"
	case "approve_all":
		return "Aprobación masiva"
	case "sweep":
		return "Solicitudes vencidas"
	case "reset_group":
		return "Estadísticas del grupo reseteadas"
	case "reset_plugin":
		return "Monitor reseteado"
	}
	return action
}

func actionColor(e domain.AuditEntry) int {
	switch {
	case len(e.Failures) > 0:
		return colorPartial
	case e.Action == "reject":
		return colorReject
	case e.Action == "approve" || e.Action == "approve_all":
		return colorOK
	}
	return colorInfo
}

func operator(id int64) string {
	if id == 0 {
		return "sistema"
	}
	return fmt.Sprint(id)
}

// idList corta en max y agrega "+N".
func idList(ids []int64, max int) string {
	parts := make([]string, 0, len(ids))
	for i, id := range ids {
		if i == max {
			parts = append(parts, fmt.Sprintf("+%d", len(ids)-max))
			break
		}
		parts = append(parts, fmt.Sprint(id))
	}
	return strings.Join(parts, ", ")
}
