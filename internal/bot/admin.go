// internal/bot/admin.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"intake-bot/internal/broadcast"
	"intake-bot/internal/messages"
	"intake-bot/internal/models"
)

// Fanout runs one broadcast and reports delivery counts.
type Fanout interface {
	Run(ctx context.Context, content broadcast.Content) (models.BroadcastReport, error)
}

type broadcastMode int

const (
	broadcastModeText broadcastMode = iota + 1
	broadcastModeImage
)

// ==========================
// Admin commands
// ==========================

func (d *Dispatcher) handleAdminCommand(ctx context.Context, msg *models.Message, cmd string, args []string) error {
	switch cmd {
	case "/stats":
		d.handleStats(ctx, msg)
	case "/broadcast":
		d.handleBroadcastPrompt(ctx, msg)
	case "/ban":
		return d.handleBan(ctx, msg, args)
	case "/unban":
		return d.handleUnban(ctx, msg, args)
	case "/clear":
		d.handleClear(ctx, msg)
	case "/delete":
		d.handleDelete(ctx, msg, args)
	}
	return nil
}

func (d *Dispatcher) handleStats(ctx context.Context, msg *models.Message) {
	stats := d.store.Statistics()
	if stats.TotalApplications == 0 {
		d.send(ctx, msg.Chat.ID, messages.Get(messages.NoApplicationsYet))
		return
	}

	d.send(ctx, msg.Chat.ID, messages.Render(messages.StatsReport, map[string]string{
		"total_applications":  strconv.Itoa(stats.TotalApplications),
		"total_users":         strconv.Itoa(stats.TotalUsers),
		"recent_applications": strconv.Itoa(stats.RecentApplications),
		"active_users":        strconv.Itoa(stats.ActiveUsers),
		"team_lines":          d.teamLines(stats),
	}))
}

// teamLines renders per-team counts, registry teams first in registry order,
// then decommissioned teams still present in old records.
func (d *Dispatcher) teamLines(stats models.Stats) string {
	var lines []string
	seen := make(map[string]bool)
	for _, teamID := range d.teams.IDs() {
		seen[teamID] = true
		count := stats.TeamCounts[teamID]
		if count == 0 {
			continue
		}
		name, _ := d.teams.DisplayName(teamID)
		lines = append(lines, teamLine(name, count, stats.TotalApplications))
	}

	var leftovers []string
	for teamID := range stats.TeamCounts {
		if !seen[teamID] {
			leftovers = append(leftovers, teamID)
		}
	}
	sort.Strings(leftovers)
	for _, teamID := range leftovers {
		lines = append(lines, teamLine(teamID, stats.TeamCounts[teamID], stats.TotalApplications))
	}
	return strings.Join(lines, "\n")
}

func teamLine(name string, count, total int) string {
	percentage := 0.0
	if total > 0 {
		percentage = float64(count) * 100 / float64(total)
	}
	return messages.Render(messages.StatsTeamLine, map[string]string{
		"team_name":  name,
		"count":      strconv.Itoa(count),
		"percentage": fmt.Sprintf("%.1f", percentage),
	})
}

func (d *Dispatcher) handleBan(ctx context.Context, msg *models.Message, args []string) error {
	userID, ok := parseUserIDArg(args)
	if !ok {
		d.send(ctx, msg.Chat.ID, messages.Get(messages.BanUsage))
		return nil
	}

	banned, err := d.store.Ban(userID)
	if err != nil {
		return err
	}

	key := messages.BanSuccess
	if !banned {
		key = messages.BanAlready
	}
	d.send(ctx, msg.Chat.ID, messages.Render(key, map[string]string{
		"user_id": strconv.FormatInt(userID, 10),
	}))
	return nil
}

func (d *Dispatcher) handleUnban(ctx context.Context, msg *models.Message, args []string) error {
	userID, ok := parseUserIDArg(args)
	if !ok {
		d.send(ctx, msg.Chat.ID, messages.Get(messages.UnbanUsage))
		return nil
	}

	unbanned, err := d.store.Unban(userID)
	if err != nil {
		return err
	}

	key := messages.UnbanSuccess
	if !unbanned {
		key = messages.UnbanNotBanned
	}
	d.send(ctx, msg.Chat.ID, messages.Render(key, map[string]string{
		"user_id": strconv.FormatInt(userID, 10),
	}))
	return nil
}

func (d *Dispatcher) handleClear(ctx context.Context, msg *models.Message) {
	if err := d.store.ClearAll(); err != nil {
		d.logger.Error("failed to clear collections", map[string]interface{}{
			"error": err.Error(),
		})
		d.send(ctx, msg.Chat.ID, messages.Get(messages.ClearFailed))
		return
	}
	d.send(ctx, msg.Chat.ID, messages.Get(messages.ClearSuccess))
}

func (d *Dispatcher) handleDelete(ctx context.Context, msg *models.Message, args []string) {
	if len(args) == 0 {
		d.send(ctx, msg.Chat.ID, messages.Get(messages.DeleteUsage))
		return
	}
	applicationID := args[0]

	found, err := d.store.DeleteApplication(applicationID)
	if err != nil {
		d.logger.Error("failed to delete application", map[string]interface{}{
			"applicationId": applicationID,
			"error":         err.Error(),
		})
		d.send(ctx, msg.Chat.ID, messages.Get(messages.DeleteFailed))
		return
	}

	key := messages.DeleteSuccess
	if !found {
		key = messages.DeleteNotFound
	}
	d.send(ctx, msg.Chat.ID, messages.Render(key, map[string]string{
		"application_id": applicationID,
	}))
}

func parseUserIDArg(args []string) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0, false
	}
	return userID, true
}

// rejectCallback answers a review-channel button pressed outside it.
func (d *Dispatcher) rejectCallback(ctx context.Context, callback *models.CallbackQuery) {
	err := d.transport.AnswerCallback(ctx, models.CallbackAnswer{
		CallbackID: callback.ID,
		Text:       messages.Get(messages.AdminOnlyAlert),
		ShowAlert:  true,
	})
	if err != nil {
		d.logger.Debug("failed to answer rejected callback", map[string]interface{}{
			"callbackId": callback.ID,
			"error":      err.Error(),
		})
	}
}

// ==========================
// Broadcast flow
// ==========================

// handleBroadcastPrompt opens the two-step broadcast flow with the type
// selection keyboard.
func (d *Dispatcher) handleBroadcastPrompt(ctx context.Context, msg *models.Message) {
	buttons := [][]models.InlineButton{
		{{Text: messages.ButtonBroadcastText, Data: BroadcastCallbackPrefix + "text"}},
		{{Text: messages.ButtonBroadcastImage, Data: BroadcastCallbackPrefix + "image"}},
	}
	_, err := d.transport.SendMessage(ctx, models.OutboundMessage{
		ChatID:  msg.Chat.ID,
		Text:    messages.Get(messages.BroadcastPrompt),
		Buttons: buttons,
	})
	if err != nil {
		d.logger.Error("failed to send broadcast prompt", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// handleBroadcastChoice arms the pending slot for the admin who picked a
// broadcast type and swaps the prompt in place.
func (d *Dispatcher) handleBroadcastChoice(ctx context.Context, callback *models.CallbackQuery) error {
	d.answerCallback(ctx, callback.ID, "")

	var mode broadcastMode
	var promptKey string
	switch strings.TrimPrefix(callback.Data, BroadcastCallbackPrefix) {
	case "text":
		mode, promptKey = broadcastModeText, messages.BroadcastAskText
	case "image":
		mode, promptKey = broadcastModeImage, messages.BroadcastAskImage
	default:
		d.logger.Warn("unknown broadcast choice", map[string]interface{}{
			"data": callback.Data,
		})
		return nil
	}

	d.setPendingBroadcast(callback.From.ID, mode)

	prompt := messages.Get(promptKey)
	if callback.Message != nil {
		err := d.transport.EditMessage(ctx, models.MessageEdit{
			ChatID:    callback.Message.Chat.ID,
			MessageID: callback.Message.ID,
			Text:      prompt,
		})
		if err == nil {
			return nil
		}
		d.logger.Warn("failed to edit broadcast prompt", map[string]interface{}{
			"error": err.Error(),
		})
	}
	d.send(ctx, d.adminGroupID, prompt)
	return nil
}

// consumePendingBroadcast turns the next review-channel message from an
// armed admin into broadcast content. The fan-out itself runs in the
// background so a long run does not stall dispatching.
func (d *Dispatcher) consumePendingBroadcast(ctx context.Context, msg *models.Message) bool {
	mode, ok := d.takePendingBroadcast(msg.From.ID)
	if !ok {
		return false
	}

	var content broadcast.Content
	switch mode {
	case broadcastModeText:
		if strings.TrimSpace(msg.Text) == "" {
			d.setPendingBroadcast(msg.From.ID, mode)
			d.send(ctx, msg.Chat.ID, messages.Get(messages.BroadcastAskText))
			return true
		}
		content = broadcast.Content{Text: msg.Text}
	case broadcastModeImage:
		if msg.Media == nil || msg.Media.Kind != models.MediaPhoto {
			d.setPendingBroadcast(msg.From.ID, mode)
			d.send(ctx, msg.Chat.ID, messages.Get(messages.BroadcastAskImage))
			return true
		}
		content = broadcast.Content{Text: msg.Media.Caption, PhotoFileID: msg.Media.FileID}
	}

	d.broadcastWait.Add(1)
	go func() {
		defer d.broadcastWait.Done()
		d.runBroadcast(ctx, msg.From.ID, msg.Chat.ID, mode, content)
	}()
	return true
}

func (d *Dispatcher) runBroadcast(ctx context.Context, adminID, chatID int64, mode broadcastMode, content broadcast.Content) {
	report, err := d.fanout.Run(ctx, content)
	switch {
	case errors.Is(err, broadcast.ErrMessageTooShort):
		// Redeemable, the admin keeps the pending slot and can resend.
		d.setPendingBroadcast(adminID, mode)
		d.send(ctx, chatID, messages.Get(messages.BroadcastTooShort))
		return
	case errors.Is(err, broadcast.ErrNoRecipients):
		d.send(ctx, chatID, messages.Get(messages.BroadcastNoUsers))
		return
	case err != nil:
		d.logger.Error("broadcast run failed", map[string]interface{}{
			"runId": report.RunID,
			"error": err.Error(),
		})
		d.send(ctx, chatID, messages.Get(messages.Error))
		return
	}

	d.send(ctx, chatID, messages.Render(messages.BroadcastSentReport, map[string]string{
		"sent_count":   strconv.Itoa(report.Sent),
		"failed_count": strconv.Itoa(report.Failed),
		"timestamp":    report.Timestamp,
	}))
}

// ==========================
// Pending slot bookkeeping
// ==========================

func (d *Dispatcher) setPendingBroadcast(adminID int64, mode broadcastMode) {
	d.pendingMu.Lock()
	d.pendingBroadcasts[adminID] = mode
	d.pendingMu.Unlock()
}

func (d *Dispatcher) takePendingBroadcast(adminID int64) (broadcastMode, bool) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	mode, ok := d.pendingBroadcasts[adminID]
	if ok {
		delete(d.pendingBroadcasts, adminID)
	}
	return mode, ok
}

func (d *Dispatcher) clearPendingBroadcast(adminID int64) {
	d.pendingMu.Lock()
	delete(d.pendingBroadcasts, adminID)
	d.pendingMu.Unlock()
}
