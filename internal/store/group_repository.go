package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tg-guard-bot-go/internal/models"
)

// GroupRepository provides access to per-chat moderation settings.
type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *DB) *GroupRepository {
	return &GroupRepository{db: db.DB}
}

// GetByChatID returns the settings row for a chat, or nil when the chat
// has no overrides yet.
func (r *GroupRepository) GetByChatID(ctx context.Context, chatID int64) (*models.GroupSetting, error) {
	group := new(models.GroupSetting)
	err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("group lookup failed: %w", err)
	}
	return group, nil
}

// Ensure returns the settings row for a chat, creating it with defaults
// on first contact.
func (r *GroupRepository) Ensure(ctx context.Context, chatID int64) (*models.GroupSetting, error) {
	group, err := r.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if group != nil {
		return group, nil
	}

	group = &models.GroupSetting{
		ChatID:          chatID,
		SpamLimit:       5,
		SpamInterval:    10,
		RepeatLimit:     3,
		RepeatInterval:  10,
		LinkSpamLimit:   3,
		LinkSpamEnabled: true,
	}
	if err := r.db.WithContext(ctx).Create(group).Error; err != nil {
		return nil, fmt.Errorf("group create failed: %w", err)
	}
	return group, nil
}

// UpdateSettings applies a mutation inside a transaction; any error rolls
// back and leaves prior state intact.
func (r *GroupRepository) UpdateSettings(ctx context.Context, chatID int64, mutate func(*models.GroupSetting)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group := new(models.GroupSetting)
		if err := tx.Where("chat_id = ?", chatID).First(group).Error; err != nil {
			return fmt.Errorf("group lookup failed: %w", err)
		}
		mutate(group)
		if err := tx.Save(group).Error; err != nil {
			return fmt.Errorf("group update failed: %w", err)
		}
		return nil
	})
}

// Delete removes a group; its keywords cascade.
func (r *GroupRepository) Delete(ctx context.Context, chatID int64) error {
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Delete(&models.GroupSetting{}).Error
	if err != nil {
		return fmt.Errorf("group delete failed: %w", err)
	}
	return nil
}
