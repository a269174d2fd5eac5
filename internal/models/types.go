package models

import (
	"time"
)

// ChatUserKey identifies a rate-limit/ban subject within a chat.
type ChatUserKey struct {
	ChatID int64
	UserID int64
}

// BanRecord tracks an active or expired mute for one ChatUserKey.
// BanCount survives BanUntil expiry so repeated offenses escalate;
// the whole record is dropped by the cache TTL after 24h of inactivity.
type BanRecord struct {
	BanUntil time.Time
	BanCount int
}

// Active reports whether the mute window is still open.
func (r BanRecord) Active(now time.Time) bool {
	return now.Before(r.BanUntil)
}

// ActiveBan is the read-only view returned by ListActiveBans.
type ActiveBan struct {
	UserID   int64     `json:"user_id"`
	ChatID   int64     `json:"chat_id"`
	BanUntil time.Time `json:"ban_until"`
	BanCount int       `json:"ban_count"`
}

// SpamLimits is the effective per-group anti-spam configuration after
// group overrides have been applied on top of global defaults.
type SpamLimits struct {
	SpamLimit       int
	SpamInterval    time.Duration
	LinkSpamLimit   int
	LinkSpamEnabled bool
}

// GroupSetting holds per-chat moderation overrides. One group owns many
// keywords; deleting the group cascades to them.
type GroupSetting struct {
	ID     uint  `gorm:"primaryKey;autoIncrement"`
	ChatID int64 `gorm:"uniqueIndex"`

	SpamLimit       int  `gorm:"default:5"`
	SpamInterval    int  `gorm:"default:10"` // seconds
	RepeatLimit     int  `gorm:"default:3"`  // reserved
	RepeatInterval  int  `gorm:"default:10"` // reserved
	LinkSpamLimit   int  `gorm:"default:3"`
	LinkSpamEnabled bool `gorm:"default:true"`

	Keywords []Keyword `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}

// ResponseFileType values for Keyword.
const (
	FileTypePhoto    = "photo"
	FileTypeVideo    = "video"
	FileTypeDocument = "document"
)

// Keyword is an administrator-configured trigger rule. Exactly one of
// ResponseText or ResponseFileID+ResponseFileType is set.
type Keyword struct {
	ID      uint `gorm:"primaryKey;autoIncrement"`
	GroupID uint `gorm:"index"`

	Phrase           string `gorm:"size:255;index"`
	ResponseText     string `gorm:"type:text"`
	ResponseFileID   string `gorm:"size:255"`
	ResponseFileType string `gorm:"size:20"`
	Lang             string `gorm:"size:5;default:ru"`

	IsPattern            bool `gorm:"default:false"`
	CaseSensitive        bool `gorm:"default:false"`
	TransliterateEnabled bool `gorm:"default:false"`
	FuzzyEnabled         bool `gorm:"default:false"`
}

// HasMediaResponse reports whether the rule answers with a stored media
// handle rather than inline text.
func (k *Keyword) HasMediaResponse() bool {
	return k.ResponseFileID != "" && k.ResponseFileType != ""
}

// KeywordSession tracks a multi-step add-keyword conversation with an
// administrator in a private chat.
type KeywordSession struct {
	AdminID   int64     `json:"admin_id"`
	ChatID    int64     `json:"chat_id"`
	MessageID int       `json:"message_id"`
	Step      string    `json:"step"`
	Phrase    string    `json:"phrase"`
	Rule      Keyword   `json:"rule"`
	StartedAt time.Time `json:"started_at"`
}

// KeywordSession steps.
const (
	SessionStepPhrase   = "phrase"
	SessionStepOptions  = "options"
	SessionStepResponse = "response"
)
