package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/tg-guard-bot-go/internal/models"
)

// GroupStore is the group-settings persistence the lifecycle handler
// needs.
type GroupStore interface {
	Ensure(ctx context.Context, chatID int64) (*models.GroupSetting, error)
	Delete(ctx context.Context, chatID int64) error
}

// GroupEventHandler keeps group settings rows in sync with the bot's own
// membership: a row is created when the bot joins a group and dropped,
// with its keywords, when the bot is removed.
type GroupEventHandler struct {
	store  GroupStore
	selfID int64
	logger *logrus.Logger
}

func NewGroupEventHandler(store GroupStore, selfID int64, logger *logrus.Logger) *GroupEventHandler {
	return &GroupEventHandler{
		store:  store,
		selfID: selfID,
		logger: logger,
	}
}

// HandleMyChatMember processes a status change of the bot itself in a
// chat.
func (h *GroupEventHandler) HandleMyChatMember(ctx context.Context, event *tgbotapi.ChatMemberUpdated) error {
	if event == nil {
		return nil
	}
	chat := event.Chat
	if !chat.IsGroup() && !chat.IsSuperGroup() {
		return nil
	}
	member := event.NewChatMember
	if member.User != nil && member.User.ID != h.selfID {
		return nil
	}

	log := h.logger.WithFields(logrus.Fields{
		"chat_id":    chat.ID,
		"old_status": event.OldChatMember.Status,
		"new_status": member.Status,
	})

	switch {
	case member.Status == "member" || member.IsAdministrator():
		log.Info("Bot joined or was promoted, ensuring group settings")
		_, err := h.store.Ensure(ctx, chat.ID)
		return err
	case member.HasLeft() || member.WasKicked():
		log.Info("Bot removed from group, dropping settings and keywords")
		return h.store.Delete(ctx, chat.ID)
	}
	return nil
}
