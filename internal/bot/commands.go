// internal/bot/commands.go
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"intake-bot/internal/messages"
	"intake-bot/internal/models"
)

// handleCommand routes slash commands. Admin commands are gated on the
// review channel; applicant commands are served in private chats only.
func (d *Dispatcher) handleCommand(ctx context.Context, msg *models.Message, cmd string, args []string) error {
	switch cmd {
	case "/stats", "/broadcast", "/ban", "/unban", "/clear", "/delete":
		if msg.Chat.ID != d.adminGroupID {
			d.send(ctx, msg.Chat.ID, messages.Get(messages.AdminOnly))
			return nil
		}
		// A fresh command abandons any broadcast the admin had in flight.
		d.clearPendingBroadcast(msg.From.ID)
		return d.handleAdminCommand(ctx, msg, cmd, args)
	}

	if msg.Chat.ID == d.adminGroupID {
		// Applicant commands are meaningless in the review channel.
		return nil
	}

	switch cmd {
	case "/start":
		return d.conversation.Start(ctx, msg.From, msg.Chat.ID)
	case "/menu":
		d.send(ctx, msg.Chat.ID, messages.Get(messages.Menu))
	case "/help":
		d.send(ctx, msg.Chat.ID, messages.Get(messages.Help))
	case "/status":
		d.handleStatus(ctx, msg)
	case "/cancel":
		return d.conversation.Cancel(ctx, msg.From, msg.Chat.ID)
	default:
		d.send(ctx, msg.Chat.ID, messages.Get(messages.Unknown))
	}
	return nil
}

// handleStatus answers /status with the applicant's stored history, newest
// first, including the review verdict where one was recorded.
func (d *Dispatcher) handleStatus(ctx context.Context, msg *models.Message) {
	status, ok := d.store.UserStatus(msg.From.ID)
	if !ok || status.TotalApplications == 0 {
		d.send(ctx, msg.Chat.ID, messages.Get(messages.StatusEmpty))
		return
	}

	d.send(ctx, msg.Chat.ID, messages.Render(messages.Status, map[string]string{
		"user_name":          status.Name,
		"user_id":            strconv.FormatInt(status.UserID, 10),
		"total_applications": strconv.Itoa(status.TotalApplications),
		"applications_list":  applicationsList(status.Applications),
	}))
}

func applicationsList(apps []models.Application) string {
	var b strings.Builder
	for i, app := range apps {
		fmt.Fprintf(&b, "%d. <b>%s</b>\n", i+1, app.TeamName)
		fmt.Fprintf(&b, "   %s\n", statusMarker(app.Status))
		fmt.Fprintf(&b, "   📅 %s\n\n", models.DisplayTimestamp(app.Timestamp))
	}
	return b.String()
}

func statusMarker(status string) string {
	switch status {
	case models.StatusAccepted:
		return "✅ مقبول"
	case models.StatusRejected:
		return "❌ مرفوض"
	default:
		return "⏳ قيد المراجعة"
	}
}

// parseCommand splits a slash command into its name and arguments. Commands
// issued inside groups arrive as /stats@botname; the mention is stripped.
func parseCommand(text string) (string, []string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", nil, false
	}

	fields := strings.Fields(trimmed)
	cmd := strings.ToLower(fields[0])
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return cmd, fields[1:], true
}
