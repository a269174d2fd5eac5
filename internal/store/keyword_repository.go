package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tg-guard-bot-go/internal/models"
)

// KeywordRepository provides access to keyword rules.
type KeywordRepository struct {
	db *gorm.DB
}

func NewKeywordRepository(db *DB) *KeywordRepository {
	return &KeywordRepository{db: db.DB}
}

// ListByChatID returns all rules of a chat in primary-key order. The
// resolver treats this order as the rule iteration order.
func (r *KeywordRepository) ListByChatID(ctx context.Context, chatID int64) ([]models.Keyword, error) {
	var keywords []models.Keyword
	err := r.db.WithContext(ctx).
		Joins("JOIN group_settings ON group_settings.id = keywords.group_id").
		Where("group_settings.chat_id = ?", chatID).
		Order("keywords.id").
		Find(&keywords).Error
	if err != nil {
		return nil, fmt.Errorf("keyword list failed: %w", err)
	}
	return keywords, nil
}

// Create validates and stores a new rule. Exactly one response payload
// must be set.
func (r *KeywordRepository) Create(ctx context.Context, keyword *models.Keyword) error {
	hasText := keyword.ResponseText != ""
	hasFile := keyword.HasMediaResponse()
	if hasText == hasFile {
		return fmt.Errorf("keyword must have exactly one of text or media response")
	}
	if keyword.Phrase == "" {
		return fmt.Errorf("keyword phrase is required")
	}
	if err := r.db.WithContext(ctx).Create(keyword).Error; err != nil {
		return fmt.Errorf("keyword create failed: %w", err)
	}
	return nil
}

// Delete removes one rule by id, scoped to the given chat so admins
// cannot delete another group's rules by id-guessing.
func (r *KeywordRepository) Delete(ctx context.Context, chatID int64, id uint) error {
	groupIDs := r.db.Model(&models.GroupSetting{}).Select("id").Where("chat_id = ?", chatID)
	result := r.db.WithContext(ctx).
		Where("id = ? AND group_id IN (?)", id, groupIDs).
		Delete(&models.Keyword{})
	if result.Error != nil {
		return fmt.Errorf("keyword delete failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("keyword %d not found", id)
	}
	return nil
}
