package handlers

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/tg-guard-bot-go/internal/antispam"
	"github.com/tg-guard-bot-go/internal/config"
	"github.com/tg-guard-bot-go/internal/i18n"
	"github.com/tg-guard-bot-go/internal/middleware"
	"github.com/tg-guard-bot-go/internal/models"
	"github.com/tg-guard-bot-go/internal/resolver"
	"github.com/tg-guard-bot-go/internal/services/filecache"
	"github.com/tg-guard-bot-go/internal/services/session"
	"github.com/tg-guard-bot-go/internal/store"
	"github.com/tg-guard-bot-go/pkg/markdown"
)

// MessageHandler runs the moderation pipeline for regular messages:
// spam check, keyword resolution, response dispatch.
type MessageHandler struct {
	config    *config.Config
	bot       *tgbotapi.BotAPI
	guard     *antispam.Guard
	groups    *store.GroupRepository
	keywords  *store.KeywordRepository
	resolver  *resolver.Resolver
	fileCache filecache.Service
	sessions  *session.Manager
	throttle  middleware.SendThrottle
	localizer *i18n.Localizer
	metrics   *middleware.Metrics
	logger    *logrus.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(
	cfg *config.Config,
	bot *tgbotapi.BotAPI,
	guard *antispam.Guard,
	groups *store.GroupRepository,
	keywords *store.KeywordRepository,
	res *resolver.Resolver,
	fileCache filecache.Service,
	sessions *session.Manager,
	throttle middleware.SendThrottle,
	localizer *i18n.Localizer,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
) *MessageHandler {
	return &MessageHandler{
		config:    cfg,
		bot:       bot,
		guard:     guard,
		groups:    groups,
		keywords:  keywords,
		resolver:  res,
		fileCache: fileCache,
		sessions:  sessions,
		throttle:  throttle,
		localizer: localizer,
		metrics:   metrics,
		logger:    logger,
	}
}

// HandleMessage processes one non-command message.
func (h *MessageHandler) HandleMessage(ctx context.Context, update *tgbotapi.Update) error {
	if update.Message == nil || update.Message.IsCommand() {
		return nil
	}
	if update.Message.From == nil || update.Message.From.ID == h.bot.Self.ID {
		return nil
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	text := update.Message.Text
	if text == "" {
		text = update.Message.Caption
	}

	// An open admin dialog consumes the message before moderation.
	if handled, err := h.continueSession(ctx, update.Message); handled {
		return err
	}

	if update.Message.Chat.IsPrivate() {
		return nil
	}

	// A pending settings prompt consumes the next message from the admin.
	if handled, err := h.continuePendingSetting(ctx, update.Message); handled {
		return err
	}

	group, err := h.groups.GetByChatID(ctx, chatID)
	if err != nil {
		h.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to load group settings")
		// Fall back to global defaults rather than skipping moderation.
	}

	limits := h.effectiveLimits(group)
	key := models.ChatUserKey{ChatID: chatID, UserID: userID}

	verdict := h.guard.CheckAndRecord(ctx, key, text, limits)
	if verdict.Blocked {
		if verdict.Reason != "" {
			h.metrics.RecordSpamBlock(string(verdict.Reason))
		}
		return nil
	}

	if text == "" {
		return nil
	}

	rules, err := h.keywords.ListByChatID(ctx, chatID)
	if err != nil {
		h.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to load keywords")
		return err
	}

	start := time.Now()
	rule, ok := h.resolver.Resolve(ctx, text, rules)
	h.metrics.ObserveResolverDuration(time.Since(start))
	if !ok {
		return nil
	}

	h.metrics.RecordKeywordMatch()
	h.logger.WithFields(logrus.Fields{
		"chat_id": chatID,
		"rule_id": rule.ID,
		"phrase":  rule.Phrase,
	}).Debug("Keyword matched")

	return h.respond(ctx, update.Message, rule)
}

// effectiveLimits merges per-group overrides over global defaults.
func (h *MessageHandler) effectiveLimits(group *models.GroupSetting) models.SpamLimits {
	defaults := h.config.AntiSpam
	if group == nil {
		return models.SpamLimits{
			SpamLimit:       defaults.SpamLimit,
			SpamInterval:    defaults.SpamInterval,
			LinkSpamLimit:   defaults.LinkSpamLimit,
			LinkSpamEnabled: defaults.LinkSpamEnabled,
		}
	}
	return models.SpamLimits{
		SpamLimit:       group.SpamLimit,
		SpamInterval:    time.Duration(group.SpamInterval) * time.Second,
		LinkSpamLimit:   group.LinkSpamLimit,
		LinkSpamEnabled: group.LinkSpamEnabled,
	}
}

// respond dispatches the rule's stored response as a reply.
func (h *MessageHandler) respond(ctx context.Context, msg *tgbotapi.Message, rule *models.Keyword) error {
	if err := h.throttle.Wait(ctx, msg.Chat.ID); err != nil {
		return err
	}

	if rule.ResponseText != "" {
		reply := tgbotapi.NewMessage(msg.Chat.ID, markdown.ToTelegramHTML(rule.ResponseText))
		reply.ParseMode = tgbotapi.ModeHTML
		reply.ReplyToMessageID = msg.MessageID
		if _, err := h.bot.Send(reply); err != nil {
			h.logger.WithError(err).Warn("Failed to send keyword response")
		}
		return nil
	}

	if !rule.HasMediaResponse() {
		return nil
	}

	var media tgbotapi.Chattable
	fileID := tgbotapi.FileID(rule.ResponseFileID)
	switch rule.ResponseFileType {
	case models.FileTypePhoto:
		photo := tgbotapi.NewPhoto(msg.Chat.ID, fileID)
		photo.ReplyToMessageID = msg.MessageID
		media = photo
	case models.FileTypeVideo:
		video := tgbotapi.NewVideo(msg.Chat.ID, fileID)
		video.ReplyToMessageID = msg.MessageID
		media = video
	case models.FileTypeDocument:
		doc := tgbotapi.NewDocument(msg.Chat.ID, fileID)
		doc.ReplyToMessageID = msg.MessageID
		media = doc
	default:
		h.logger.WithField("file_type", rule.ResponseFileType).Warn("Unknown response file type")
		return nil
	}

	if _, err := h.bot.Send(media); err != nil {
		h.logger.WithError(err).Warn("Failed to send media response")
		return nil
	}

	h.fileCache.Set(rule.ResponseFileID, rule.ResponseFileType)
	return nil
}
