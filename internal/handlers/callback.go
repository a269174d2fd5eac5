package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tg-guard-bot-go/internal/i18n"
	"github.com/tg-guard-bot-go/internal/models"
)

// spamSettingsKeyboard builds the inline settings menu. Callback data is
// "spam:<action>:<chat_id>" with an optional ":<user_id>" for per-user
// actions.
func spamSettingsKeyboard(chatID int64, group *models.GroupSetting) tgbotapi.InlineKeyboardMarkup {
	linkLabel := "🔴 Link blocking"
	if group.LinkSpamEnabled {
		linkLabel = "🟢 Link blocking"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Message limit", fmt.Sprintf("spam:spam_limit:%d", chatID)),
			tgbotapi.NewInlineKeyboardButtonData("Interval", fmt.Sprintf("spam:spam_interval:%d", chatID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(linkLabel, fmt.Sprintf("spam:toggle_links:%d", chatID)),
			tgbotapi.NewInlineKeyboardButtonData("Link limit", fmt.Sprintf("spam:link_spam_limit:%d", chatID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Banned users", fmt.Sprintf("spam:show_banned:%d", chatID)),
		),
	)
}

// bannedListKeyboard renders one unban button per active ban.
func bannedListKeyboard(chatID int64, bans []models.ActiveBan) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(bans))
	for _, ban := range bans {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("Unban %d", ban.UserID),
				fmt.Sprintf("spam:unban_user:%d:%d", chatID, ban.UserID),
			),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// HandleCallbackQuery processes inline-button presses from the settings
// menu.
func (h *CommandHandler) HandleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query.Data == "" || query.From == nil {
		return nil
	}

	// Acknowledge first so the client stops its spinner.
	if _, err := h.bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		h.logger.WithError(err).Debug("Failed to answer callback query")
	}

	parts := strings.Split(query.Data, ":")
	if len(parts) < 3 || parts[0] != "spam" {
		return nil
	}
	action := parts[1]
	chatID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil
	}

	member, err := h.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: query.From.ID,
		},
	})
	if err != nil || !(member.IsAdministrator() || member.IsCreator()) {
		return nil
	}

	switch action {
	case "toggle_links":
		err := h.groups.UpdateSettings(ctx, chatID, func(group *models.GroupSetting) {
			group.LinkSpamEnabled = !group.LinkSpamEnabled
		})
		if err != nil {
			h.logger.WithError(err).Error("Failed to toggle link blocking")
			return h.send(ctx, chatID, h.localizer.Get(h.lang(), i18n.MsgError, nil))
		}
		return h.send(ctx, chatID, h.localizer.Get(h.lang(), i18n.MsgSettingUpdated, nil))

	case "show_banned":
		return h.showBanned(ctx, chatID)

	case "unban_user":
		if len(parts) != 4 {
			return nil
		}
		userID, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil {
			return nil
		}
		key := models.ChatUserKey{ChatID: chatID, UserID: userID}
		if err := h.guard.Unban(ctx, key); err != nil {
			return h.send(ctx, chatID, h.localizer.Get(h.lang(), i18n.MsgRestrictFailed, nil))
		}
		return h.send(ctx, chatID, h.localizer.Get(h.lang(), i18n.MsgUnbanned, map[string]interface{}{
			"UserID": userID,
		}))

	case "spam_limit", "spam_interval", "link_spam_limit":
		pending := fmt.Sprintf("%s:%d", action, chatID)
		if err := h.sessions.SetState(ctx, query.From.ID, pendingSettingKey, pending); err != nil {
			h.logger.WithError(err).Error("Failed to store pending setting")
			return h.send(ctx, chatID, h.localizer.Get(h.lang(), i18n.MsgError, nil))
		}
		return h.send(ctx, chatID, h.localizer.Get(h.lang(), i18n.MsgSettingPrompt, nil))
	}
	return nil
}

// showBanned lists active bans with one unban button per user.
func (h *CommandHandler) showBanned(ctx context.Context, chatID int64) error {
	bans := h.guard.ListActiveBans(&chatID)
	if len(bans) == 0 {
		return h.send(ctx, chatID, h.localizer.Get(h.lang(), i18n.MsgBanListEmpty, nil))
	}

	var b strings.Builder
	b.WriteString(h.localizer.Get(h.lang(), i18n.MsgBanListHeader, nil))
	for _, ban := range bans {
		b.WriteString("\n")
		b.WriteString(h.localizer.Get(h.lang(), i18n.MsgBanListEntry, map[string]interface{}{
			"UserID": ban.UserID,
			"Until":  ban.BanUntil.Format(time.RFC3339),
			"Count":  ban.BanCount,
		}))
	}

	if err := h.throttle.Wait(ctx, chatID); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, b.String())
	msg.ReplyMarkup = bannedListKeyboard(chatID, bans)
	if _, err := h.bot.Send(msg); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	return nil
}

func (h *CommandHandler) send(ctx context.Context, chatID int64, text string) error {
	if err := h.throttle.Wait(ctx, chatID); err != nil {
		return err
	}
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	return nil
}
