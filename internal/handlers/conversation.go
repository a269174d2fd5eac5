package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tg-guard-bot-go/internal/i18n"
	"github.com/tg-guard-bot-go/internal/models"
)

// pendingSettingKey is the session-state slot holding "<field>:<chat_id>"
// after an admin pressed a settings button.
const pendingSettingKey = "pending_setting"

// continueSession advances an open add-keyword dialog. Returns true when
// the message was consumed by the dialog.
func (h *MessageHandler) continueSession(ctx context.Context, message *tgbotapi.Message) (bool, error) {
	if message.From == nil {
		return false, nil
	}

	sess, err := h.sessions.GetSession(ctx, message.From.ID)
	if err != nil || sess == nil {
		return false, err
	}
	if sess.ChatID != message.Chat.ID {
		return false, nil
	}

	switch sess.Step {
	case models.SessionStepPhrase:
		if message.Text == "" {
			return true, h.replyText(ctx, message, h.localizer.Get(h.lang(), i18n.MsgKeywordPhrase, nil))
		}
		sess.Phrase = message.Text
		sess.Step = models.SessionStepOptions
		if err := h.sessions.SaveSession(ctx, sess); err != nil {
			return true, err
		}
		return true, h.replyText(ctx, message, h.localizer.Get(h.lang(), i18n.MsgKeywordOptions, nil))

	case models.SessionStepOptions:
		sess.Rule = models.Keyword{Phrase: sess.Phrase, Lang: h.lang()}
		for _, opt := range strings.Split(strings.ToLower(message.Text), ",") {
			switch strings.TrimSpace(opt) {
			case "pattern":
				sess.Rule.IsPattern = true
			case "case":
				sess.Rule.CaseSensitive = true
			case "translit":
				sess.Rule.TransliterateEnabled = true
			case "fuzzy":
				sess.Rule.FuzzyEnabled = true
			}
		}
		sess.Step = models.SessionStepResponse
		if err := h.sessions.SaveSession(ctx, sess); err != nil {
			return true, err
		}
		return true, h.replyText(ctx, message, h.localizer.Get(h.lang(), i18n.MsgKeywordResponse, nil))

	case models.SessionStepResponse:
		rule := sess.Rule
		switch {
		case len(message.Photo) > 0:
			rule.ResponseFileID = message.Photo[len(message.Photo)-1].FileID
			rule.ResponseFileType = models.FileTypePhoto
		case message.Video != nil:
			rule.ResponseFileID = message.Video.FileID
			rule.ResponseFileType = models.FileTypeVideo
		case message.Document != nil:
			rule.ResponseFileID = message.Document.FileID
			rule.ResponseFileType = models.FileTypeDocument
		case message.Text != "":
			rule.ResponseText = message.Text
		default:
			return true, h.replyText(ctx, message, h.localizer.Get(h.lang(), i18n.MsgKeywordResponse, nil))
		}

		group, err := h.groups.Ensure(ctx, sess.ChatID)
		if err != nil {
			h.logger.WithError(err).Error("Failed to ensure group")
			return true, h.replyText(ctx, message, h.localizer.Get(h.lang(), i18n.MsgError, nil))
		}
		rule.GroupID = group.ID

		if err := h.keywords.Create(ctx, &rule); err != nil {
			h.logger.WithError(err).Error("Failed to create keyword")
			return true, h.replyText(ctx, message, h.localizer.Get(h.lang(), i18n.MsgError, nil))
		}
		if rule.HasMediaResponse() {
			h.fileCache.Set(rule.ResponseFileID, rule.ResponseFileType)
		}

		if err := h.sessions.DeleteSession(ctx, sess.AdminID); err != nil {
			h.logger.WithError(err).Warn("Failed to delete keyword session")
		}
		return true, h.replyText(ctx, message, h.localizer.Get(h.lang(), i18n.MsgKeywordAdded, map[string]interface{}{
			"Phrase": rule.Phrase,
		}))
	}

	// Unknown step: drop the stale session.
	if err := h.sessions.DeleteSession(ctx, sess.AdminID); err != nil {
		h.logger.WithError(err).Warn("Failed to delete keyword session")
	}
	return true, h.replyText(ctx, message, h.localizer.Get(h.lang(), i18n.MsgSessionExpired, nil))
}

// continuePendingSetting applies a numeric value an admin was prompted
// for by the settings menu.
func (h *MessageHandler) continuePendingSetting(ctx context.Context, message *tgbotapi.Message) (bool, error) {
	if message.From == nil {
		return false, nil
	}

	pending, err := h.sessions.GetState(ctx, message.From.ID, pendingSettingKey)
	if err != nil || pending == "" {
		return false, err
	}

	parts := strings.SplitN(pending, ":", 2)
	if len(parts) != 2 {
		return false, nil
	}
	field := parts[0]
	chatID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || chatID != message.Chat.ID {
		return false, nil
	}

	value, err := strconv.Atoi(strings.TrimSpace(message.Text))
	if err != nil || value < 1 {
		return true, h.replyText(ctx, message, h.localizer.Get(h.lang(), i18n.MsgInvalidValue, nil))
	}

	err = h.groups.UpdateSettings(ctx, chatID, func(group *models.GroupSetting) {
		switch field {
		case "spam_limit":
			group.SpamLimit = value
		case "spam_interval":
			group.SpamInterval = value
		case "link_spam_limit":
			group.LinkSpamLimit = value
		}
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to update group settings")
		return true, h.replyText(ctx, message, h.localizer.Get(h.lang(), i18n.MsgError, nil))
	}

	if err := h.sessions.DeleteState(ctx, message.From.ID, pendingSettingKey); err != nil {
		h.logger.WithError(err).Warn("Failed to clear pending setting")
	}
	return true, h.replyText(ctx, message, h.localizer.Get(h.lang(), i18n.MsgSettingUpdated, nil))
}

func (h *MessageHandler) lang() string {
	return h.config.I18n.DefaultLanguage
}

func (h *MessageHandler) replyText(ctx context.Context, message *tgbotapi.Message, text string) error {
	if err := h.throttle.Wait(ctx, message.Chat.ID); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyToMessageID = message.MessageID
	if _, err := h.bot.Send(msg); err != nil {
		return fmt.Errorf("send reply failed: %w", err)
	}
	return nil
}
