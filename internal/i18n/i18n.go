package i18n

import (
	"encoding/json"
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/tg-guard-bot-go/internal/config"
)

// Localizer manages internationalization
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.Russian)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, lang := range cfg.Languages {
		if _, err := bundle.LoadMessageFile(fmt.Sprintf("configs/i18n/%s.json", lang)); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range cfg.Languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: cfg.DefaultLanguage,
		localizers:      localizers,
	}, nil
}

// Get returns localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}

	return msg
}

// GetPlural returns a localized message with plural handling
func (l *Localizer) GetPlural(lang, messageID string, count int, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	if data == nil {
		data = map[string]interface{}{}
	}
	data["Count"] = count

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		PluralCount:  count,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}

	return msg
}

// Message IDs
const (
	MsgWelcome         = "welcome"
	MsgHelp            = "help"
	MsgMutedFlood      = "muted_flood"
	MsgMutedLinks      = "muted_links"
	MsgRestrictFailed  = "restrict_failed"
	MsgUnbanned        = "unbanned"
	MsgUnbanUsage      = "unban_usage"
	MsgBanListHeader   = "ban_list_header"
	MsgBanListEntry    = "ban_list_entry"
	MsgBanListEmpty    = "ban_list_empty"
	MsgNotAdmin        = "not_admin"
	MsgDurationMinutes = "duration_minutes"
	MsgDurationHours   = "duration_hours"
	MsgKeywordAdded    = "keyword_added"
	MsgKeywordDeleted  = "keyword_deleted"
	MsgKeywordList     = "keyword_list"
	MsgKeywordEmpty    = "keyword_empty"
	MsgKeywordPhrase   = "keyword_phrase_prompt"
	MsgKeywordOptions  = "keyword_options_prompt"
	MsgKeywordResponse = "keyword_response_prompt"
	MsgSessionExpired  = "session_expired"
	MsgSpamSettings    = "spam_settings"
	MsgSettingPrompt   = "setting_prompt"
	MsgSettingUpdated  = "setting_updated"
	MsgInvalidValue    = "invalid_value"
	MsgUnknownCommand  = "unknown_command"
	MsgError           = "error"
)

// HumanDuration renders a mute duration in localized units, minutes below
// one hour and hours otherwise.
func (l *Localizer) HumanDuration(lang string, seconds int) string {
	if seconds < 3600 {
		return l.GetPlural(lang, MsgDurationMinutes, seconds/60, nil)
	}
	return l.GetPlural(lang, MsgDurationHours, seconds/3600, nil)
}
