package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/tg-guard-bot-go/internal/antispam"
	"github.com/tg-guard-bot-go/internal/config"
	"github.com/tg-guard-bot-go/internal/i18n"
	"github.com/tg-guard-bot-go/internal/middleware"
	"github.com/tg-guard-bot-go/internal/models"
	"github.com/tg-guard-bot-go/internal/services/session"
	"github.com/tg-guard-bot-go/internal/store"
)

// CommandHandler handles bot commands
type CommandHandler struct {
	config    *config.Config
	bot       *tgbotapi.BotAPI
	guard     *antispam.Guard
	groups    *store.GroupRepository
	keywords  *store.KeywordRepository
	sessions  *session.Manager
	throttle  middleware.SendThrottle
	localizer *i18n.Localizer
	metrics   *middleware.Metrics
	logger    *logrus.Logger
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(
	cfg *config.Config,
	bot *tgbotapi.BotAPI,
	guard *antispam.Guard,
	groups *store.GroupRepository,
	keywords *store.KeywordRepository,
	sessions *session.Manager,
	throttle middleware.SendThrottle,
	localizer *i18n.Localizer,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
) *CommandHandler {
	return &CommandHandler{
		config:    cfg,
		bot:       bot,
		guard:     guard,
		groups:    groups,
		keywords:  keywords,
		sessions:  sessions,
		throttle:  throttle,
		localizer: localizer,
		metrics:   metrics,
		logger:    logger,
	}
}

func (h *CommandHandler) lang() string {
	return h.config.I18n.DefaultLanguage
}

// HandleCommand dispatches a command message.
func (h *CommandHandler) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	command := message.Command()
	args := strings.TrimSpace(message.CommandArguments())

	switch command {
	case "start":
		return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgWelcome, nil))
	case "help":
		return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgHelp, nil))
	case "unban":
		return h.handleUnban(ctx, message, args)
	case "banlist":
		return h.handleBanList(ctx, message)
	case "keywords":
		return h.handleKeywordList(ctx, message)
	case "addkeyword":
		return h.handleAddKeyword(ctx, message)
	case "delkeyword":
		return h.handleDelKeyword(ctx, message, args)
	case "spamsettings":
		return h.handleSpamSettings(ctx, message)
	default:
		return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgUnknownCommand, nil))
	}
}

// requireAdmin checks that the issuer administers the chat. A failed
// lookup denies access.
func (h *CommandHandler) requireAdmin(ctx context.Context, message *tgbotapi.Message) bool {
	if message.From == nil {
		return false
	}
	member, err := h.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: message.Chat.ID,
			UserID: message.From.ID,
		},
	})
	if err != nil {
		h.logger.WithError(err).Warn("Admin check failed")
		return false
	}
	return member.IsAdministrator() || member.IsCreator()
}

func (h *CommandHandler) handleUnban(ctx context.Context, message *tgbotapi.Message, args string) error {
	if !h.requireAdmin(ctx, message) {
		return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgNotAdmin, nil))
	}

	userID, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgUnbanUsage, nil))
	}

	key := models.ChatUserKey{ChatID: message.Chat.ID, UserID: userID}
	if err := h.guard.Unban(ctx, key); err != nil {
		return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgRestrictFailed, nil))
	}

	return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgUnbanned, map[string]interface{}{
		"UserID": userID,
	}))
}

func (h *CommandHandler) handleBanList(ctx context.Context, message *tgbotapi.Message) error {
	if !h.requireAdmin(ctx, message) {
		return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgNotAdmin, nil))
	}

	chatID := message.Chat.ID
	bans := h.guard.ListActiveBans(&chatID)
	if len(bans) == 0 {
		return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgBanListEmpty, nil))
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
	return h.reply(ctx, message, b.String())
}

func (h *CommandHandler) handleKeywordList(ctx context.Context, message *tgbotapi.Message) error {
	rules, err := h.keywords.ListByChatID(ctx, message.Chat.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list keywords")
		return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgError, nil))
	}
	if len(rules) == 0 {
		return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgKeywordEmpty, nil))
	}

	var b strings.Builder
	b.WriteString(h.localizer.Get(h.lang(), i18n.MsgKeywordList, nil))
	for _, rule := range rules {
		b.WriteString(fmt.Sprintf("\n%d. %s", rule.ID, rule.Phrase))
		var flags []string
		if rule.IsPattern {
			flags = append(flags, "pattern")
		}
		if rule.CaseSensitive {
			flags = append(flags, "case")
		}
		if rule.TransliterateEnabled {
			flags = append(flags, "translit")
		}
		if rule.FuzzyEnabled {
			flags = append(flags, "fuzzy")
		}
		if len(flags) > 0 {
			b.WriteString(" [" + strings.Join(flags, ", ") + "]")
		}
	}
	return h.reply(ctx, message, b.String())
}

func (h *CommandHandler) handleAddKeyword(ctx context.Context, message *tgbotapi.Message) error {
	if !h.requireAdmin(ctx, message) {
		return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgNotAdmin, nil))
	}

	sess := &models.KeywordSession{
		AdminID:   message.From.ID,
		ChatID:    message.Chat.ID,
		MessageID: message.MessageID,
		Step:      models.SessionStepPhrase,
		StartedAt: time.Now(),
	}
	if err := h.sessions.SaveSession(ctx, sess); err != nil {
		h.logger.WithError(err).Error("Failed to save keyword session")
		return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgError, nil))
	}

	return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgKeywordPhrase, nil))
}

func (h *CommandHandler) handleDelKeyword(ctx context.Context, message *tgbotapi.Message, args string) error {
	if !h.requireAdmin(ctx, message) {
		return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgNotAdmin, nil))
	}

	id, err := strconv.ParseUint(args, 10, 64)
	if err != nil {
		return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgInvalidValue, nil))
	}

	if err := h.keywords.Delete(ctx, message.Chat.ID, uint(id)); err != nil {
		h.logger.WithError(err).Warn("Failed to delete keyword")
		return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgError, nil))
	}
	return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgKeywordDeleted, nil))
}

func (h *CommandHandler) handleSpamSettings(ctx context.Context, message *tgbotapi.Message) error {
	if !h.requireAdmin(ctx, message) {
		return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgNotAdmin, nil))
	}

	group, err := h.groups.Ensure(ctx, message.Chat.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load group settings")
		return h.reply(ctx, message, h.localizer.Get(h.lang(), i18n.MsgError, nil))
	}

	text := h.localizer.Get(h.lang(), i18n.MsgSpamSettings, map[string]interface{}{
		"SpamLimit":       group.SpamLimit,
		"SpamInterval":    group.SpamInterval,
		"LinkSpamEnabled": group.LinkSpamEnabled,
		"LinkSpamLimit":   group.LinkSpamLimit,
	})

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = spamSettingsKeyboard(message.Chat.ID, group)

	if err := h.throttle.Wait(ctx, message.Chat.ID); err != nil {
		return err
	}
	_, err = h.bot.Send(msg)
	return err
}

func (h *CommandHandler) reply(ctx context.Context, message *tgbotapi.Message, text string) error {
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
