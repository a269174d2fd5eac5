package antispam

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/tg-guard-bot-go/internal/models"
)

// banDurations is the escalation table: mute time grows with each
// consecutive violation and saturates at the last tier.
var banDurations = [...]time.Duration{
	time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	time.Hour,
	6 * time.Hour,
}

// DurationForLevel returns the mute duration for an escalation level
// (level starts at 1).
func DurationForLevel(level int) time.Duration {
	idx := level - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(banDurations) {
		idx = len(banDurations) - 1
	}
	return banDurations[idx]
}

func banKey(key models.ChatUserKey) string {
	return fmt.Sprintf("%d:%d", key.ChatID, key.UserID)
}

// lookupBan reads and normalizes a ban record. A record missing its count
// (legacy shape) is treated as a single prior violation.
func (g *Guard) lookupBan(key models.ChatUserKey) (models.BanRecord, bool) {
	val, found := g.bans.Get(banKey(key))
	if !found {
		return models.BanRecord{}, false
	}
	entry, ok := val.(banEntry)
	if !ok {
		return models.BanRecord{}, false
	}
	record := entry.Record
	if record.BanCount < 1 {
		record.BanCount = 1
	}
	return record, true
}

func (g *Guard) storeBan(key models.ChatUserKey, record models.BanRecord) {
	g.bans.Set(banKey(key), banEntry{Key: key, Record: record}, cache.DefaultExpiration)
}

// escalate bumps the escalation level for the key, stores the new ban
// record and applies the platform restriction. A failed restriction call
// is logged and reported to the chat but never retried.
func (g *Guard) escalate(ctx context.Context, key models.ChatUserKey, reason Reason) {
	now := g.now()

	g.mu.Lock()
	level := 1
	if record, ok := g.lookupBan(key); ok {
		// Another goroutine muted the same user between the over-limit
		// check and this point; the mute it issued stands.
		if record.Active(now) {
			g.mu.Unlock()
			return
		}
		level = record.BanCount + 1
	}
	duration := DurationForLevel(level)
	until := now.Add(duration)
	g.storeBan(key, models.BanRecord{BanUntil: until, BanCount: level})
	g.mu.Unlock()

	g.logger.WithFields(logrus.Fields{
		"chat_id":  key.ChatID,
		"user_id":  key.UserID,
		"level":    level,
		"duration": duration,
		"reason":   reason,
	}).Info("Muting user")

	if g.onBan != nil {
		g.onBan(level)
	}

	if err := g.enforcer.Restrict(ctx, key, until); err != nil {
		g.logger.WithError(err).WithFields(logrus.Fields{
			"chat_id": key.ChatID,
			"user_id": key.UserID,
		}).Error("Failed to restrict user")
		g.enforcer.NotifyRestrictFailed(ctx, key.ChatID)
		return
	}

	g.enforcer.NotifyMuted(ctx, key, duration, reason)
}

// Unban fully resets the identity to clean: ban record, message history
// and link history are dropped and default permissions are restored.
// Idempotent.
func (g *Guard) Unban(ctx context.Context, key models.ChatUserKey) error {
	g.mu.Lock()
	if record, ok := g.lookupBan(key); ok {
		g.logger.WithFields(logrus.Fields{
			"chat_id":   key.ChatID,
			"user_id":   key.UserID,
			"ban_count": record.BanCount,
		}).Info("Removing ban record")
	}
	g.bans.Delete(banKey(key))
	delete(g.messages, key)
	delete(g.links, key)
	g.mu.Unlock()

	if err := g.enforcer.RestoreDefaults(ctx, key); err != nil {
		g.logger.WithError(err).WithFields(logrus.Fields{
			"chat_id": key.ChatID,
			"user_id": key.UserID,
		}).Error("Failed to lift restrictions")
		return err
	}
	return nil
}

// ListActiveBans returns currently-active bans, optionally filtered to
// one chat. Expired records (count retained for escalation) are skipped.
func (g *Guard) ListActiveBans(chatID *int64) []models.ActiveBan {
	now := g.now()
	var active []models.ActiveBan

	for _, item := range g.bans.Items() {
		entry, ok := item.Object.(banEntry)
		if !ok {
			continue
		}
		record := entry.Record
		if record.BanCount < 1 {
			record.BanCount = 1
		}
		if !record.Active(now) {
			continue
		}
		if chatID != nil && entry.Key.ChatID != *chatID {
			continue
		}
		active = append(active, models.ActiveBan{
			UserID:   entry.Key.UserID,
			ChatID:   entry.Key.ChatID,
			BanUntil: record.BanUntil,
			BanCount: record.BanCount,
		})
	}
	return active
}
