package handlers

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/tg-guard-bot-go/internal/antispam"
	"github.com/tg-guard-bot-go/internal/i18n"
	"github.com/tg-guard-bot-go/internal/middleware"
	"github.com/tg-guard-bot-go/internal/models"
)

// TelegramModerator implements antispam.PrivilegeChecker and
// antispam.Enforcer on top of the bot API.
type TelegramModerator struct {
	bot       *tgbotapi.BotAPI
	throttle  middleware.SendThrottle
	localizer *i18n.Localizer
	lang      string
	logger    *logrus.Logger
}

func NewTelegramModerator(
	bot *tgbotapi.BotAPI,
	throttle middleware.SendThrottle,
	localizer *i18n.Localizer,
	lang string,
	logger *logrus.Logger,
) *TelegramModerator {
	return &TelegramModerator{
		bot:       bot,
		throttle:  throttle,
		localizer: localizer,
		lang:      lang,
		logger:    logger,
	}
}

// IsExempt reports whether the user is an administrator or the owner of
// the chat. Errors propagate so the caller can fail closed.
func (m *TelegramModerator) IsExempt(ctx context.Context, key models.ChatUserKey) (bool, error) {
	member, err := m.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: key.ChatID,
			UserID: key.UserID,
		},
	})
	if err != nil {
		return false, fmt.Errorf("get chat member failed: %w", err)
	}
	return member.IsAdministrator() || member.IsCreator(), nil
}

// Restrict disallows sending messages until the given time.
func (m *TelegramModerator) Restrict(ctx context.Context, key models.ChatUserKey, until time.Time) error {
	restrict := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: key.ChatID,
			UserID: key.UserID,
		},
		UntilDate: until.Unix(),
		Permissions: &tgbotapi.ChatPermissions{
			CanSendMessages: false,
		},
	}
	if _, err := m.bot.Request(restrict); err != nil {
		return fmt.Errorf("restrict chat member failed: %w", err)
	}
	return nil
}

// RestoreDefaults reissues the default member permission set. Admin-only
// permissions stay off.
func (m *TelegramModerator) RestoreDefaults(ctx context.Context, key models.ChatUserKey) error {
	restrict := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: key.ChatID,
			UserID: key.UserID,
		},
		Permissions: &tgbotapi.ChatPermissions{
			CanSendMessages:       true,
			CanSendMediaMessages:  true,
			CanSendPolls:          true,
			CanSendOtherMessages:  true,
			CanAddWebPagePreviews: true,
			CanInviteUsers:        true,
			CanChangeInfo:         false,
			CanPinMessages:        false,
		},
	}
	if _, err := m.bot.Request(restrict); err != nil {
		return fmt.Errorf("unrestrict chat member failed: %w", err)
	}
	return nil
}

// NotifyMuted posts a localized notice naming the offender and the
// human-readable mute duration.
func (m *TelegramModerator) NotifyMuted(ctx context.Context, key models.ChatUserKey, duration time.Duration, reason antispam.Reason) {
	user := m.displayName(key)
	durationText := m.localizer.HumanDuration(m.lang, int(duration.Seconds()))

	messageID := i18n.MsgMutedFlood
	if reason == antispam.ReasonLinks {
		messageID = i18n.MsgMutedLinks
	}

	text := m.localizer.Get(m.lang, messageID, map[string]interface{}{
		"User":     user,
		"Duration": durationText,
	})
	m.send(ctx, key.ChatID, text)
}

// NotifyRestrictFailed tells the chat that enforcement did not go through
// (usually missing admin rights).
func (m *TelegramModerator) NotifyRestrictFailed(ctx context.Context, chatID int64) {
	m.send(ctx, chatID, m.localizer.Get(m.lang, i18n.MsgRestrictFailed, nil))
}

func (m *TelegramModerator) displayName(key models.ChatUserKey) string {
	member, err := m.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: key.ChatID,
			UserID: key.UserID,
		},
	})
	if err != nil || member.User == nil {
		return fmt.Sprintf("%d", key.UserID)
	}

	name := member.User.FirstName
	if member.User.UserName != "" {
		name += fmt.Sprintf(" (@%s)", member.User.UserName)
	}
	return name
}

func (m *TelegramModerator) send(ctx context.Context, chatID int64, text string) {
	if err := m.throttle.Wait(ctx, chatID); err != nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := m.bot.Send(msg); err != nil {
		m.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to send moderation notice")
	}
}
