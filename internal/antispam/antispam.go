// Package antispam implements the per-chat/user sliding-window rate
// limiter and the escalating mute engine. All state is in-memory and
// scoped to the Guard instance; loss on restart is accepted.
package antispam

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/tg-guard-bot-go/internal/models"
)

const (
	messageHistoryCap = 20
	linkHistoryCap    = 100

	// Ban records idle out after 24h, which also resets escalation.
	banRecordTTL = 24 * time.Hour
)

var linkPattern = regexp.MustCompile(`(?i)https?://\S+|www\.\S+|t\.me/\S+|@\w+`)

// Reason classifies why a user was muted.
type Reason string

const (
	ReasonFlood Reason = "flood"
	ReasonLinks Reason = "links"
)

// Verdict is the outcome of a spam check.
type Verdict struct {
	Blocked bool
	Reason  Reason
}

// PrivilegeChecker reports whether a user is exempt from spam checks
// (chat administrators and owners are).
type PrivilegeChecker interface {
	IsExempt(ctx context.Context, key models.ChatUserKey) (bool, error)
}

// Enforcer applies platform-level restrictions and posts moderation
// notices. Implementations must treat failures as non-fatal.
type Enforcer interface {
	Restrict(ctx context.Context, key models.ChatUserKey, until time.Time) error
	RestoreDefaults(ctx context.Context, key models.ChatUserKey) error
	NotifyMuted(ctx context.Context, key models.ChatUserKey, duration time.Duration, reason Reason)
	NotifyRestrictFailed(ctx context.Context, chatID int64)
}

// Guard owns the sliding-window histories and the ban cache for one bot
// instance. Safe for concurrent use.
type Guard struct {
	mu       sync.Mutex
	messages map[models.ChatUserKey][]time.Time
	links    map[models.ChatUserKey][]time.Time
	bans     *cache.Cache

	privileges PrivilegeChecker
	enforcer   Enforcer
	logger     *logrus.Logger
	now        func() time.Time
	onBan      func(level int)
}

// OnBan registers a callback invoked after each escalation; hook for
// metrics.
func (g *Guard) OnBan(fn func(level int)) {
	g.onBan = fn
}

type banEntry struct {
	Key    models.ChatUserKey
	Record models.BanRecord
}

// NewGuard creates a Guard with empty state.
func NewGuard(privileges PrivilegeChecker, enforcer Enforcer, logger *logrus.Logger) *Guard {
	return &Guard{
		messages:   make(map[models.ChatUserKey][]time.Time),
		links:      make(map[models.ChatUserKey][]time.Time),
		bans:       cache.New(banRecordTTL, time.Hour),
		privileges: privileges,
		enforcer:   enforcer,
		logger:     logger,
		now:        time.Now,
	}
}

// CheckAndRecord runs the full spam check for one inbound message and
// records it in the history windows. An already-active ban short-circuits
// without touching history. A failed privilege lookup does NOT exempt the
// user: the check continues.
func (g *Guard) CheckAndRecord(ctx context.Context, key models.ChatUserKey, text string, limits models.SpamLimits) Verdict {
	exempt, err := g.privileges.IsExempt(ctx, key)
	if err != nil {
		g.logger.WithError(err).WithFields(logrus.Fields{
			"chat_id": key.ChatID,
			"user_id": key.UserID,
		}).Warn("Privilege check failed, continuing spam check")
	} else if exempt {
		return Verdict{}
	}

	now := g.now()

	g.mu.Lock()
	if record, ok := g.lookupBan(key); ok {
		if record.Active(now) {
			g.mu.Unlock()
			return Verdict{Blocked: true}
		}
		// Mute expired: keep the count so the next violation escalates.
		g.logger.WithFields(logrus.Fields{
			"chat_id":   key.ChatID,
			"user_id":   key.UserID,
			"ban_count": record.BanCount,
		}).Info("Ban expired, escalation count retained")
		g.storeBan(key, models.BanRecord{BanCount: record.BanCount})
	}

	history := appendBounded(g.messages[key], now, messageHistoryCap)
	history = prune(history, now, limits.SpamInterval)
	g.messages[key] = history

	if len(history) > limits.SpamLimit {
		g.mu.Unlock()
		g.escalate(ctx, key, ReasonFlood)
		return Verdict{Blocked: true, Reason: ReasonFlood}
	}

	if limits.LinkSpamEnabled && linkPattern.MatchString(text) {
		linkHistory := appendBounded(g.links[key], now, linkHistoryCap)
		linkHistory = prune(linkHistory, now, limits.SpamInterval)
		g.links[key] = linkHistory

		if len(linkHistory) >= limits.LinkSpamLimit {
			g.mu.Unlock()
			g.escalate(ctx, key, ReasonLinks)
			return Verdict{Blocked: true, Reason: ReasonLinks}
		}
	}

	g.mu.Unlock()
	return Verdict{}
}

// appendBounded appends ts, evicting the oldest entries past limit.
func appendBounded(history []time.Time, ts time.Time, limit int) []time.Time {
	history = append(history, ts)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

// prune drops entries older than interval relative to now.
func prune(history []time.Time, now time.Time, interval time.Duration) []time.Time {
	cutoff := 0
	for cutoff < len(history) && now.Sub(history[cutoff]) > interval {
		cutoff++
	}
	return history[cutoff:]
}
