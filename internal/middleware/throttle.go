package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tg-guard-bot-go/internal/config"
)

// SendThrottle limits outbound platform calls per chat so the bot stays
// under Telegram's flood limits.
type SendThrottle interface {
	Wait(ctx context.Context, chatID int64) error
}

// ChatSendThrottle implements per-chat send throttling.
type ChatSendThrottle struct {
	enabled         bool
	limiters        map[int64]*rate.Limiter
	mu              sync.RWMutex
	mpm             int
	burst           int
	logger          *logrus.Logger
	cleanupInterval time.Duration
}

// NewSendThrottle creates a send throttle from config.
func NewSendThrottle(cfg *config.Config, logger *logrus.Logger) SendThrottle {
	if !cfg.Throttle.Enabled {
		return &ChatSendThrottle{enabled: false}
	}

	t := &ChatSendThrottle{
		enabled:         true,
		limiters:        make(map[int64]*rate.Limiter),
		mpm:             cfg.Throttle.MessagesPerMinute,
		burst:           cfg.Throttle.Burst,
		logger:          logger,
		cleanupInterval: time.Hour,
	}

	go t.cleanup()

	return t
}

// Wait blocks until the chat's limiter permits another send, or the
// context is cancelled.
func (t *ChatSendThrottle) Wait(ctx context.Context, chatID int64) error {
	if !t.enabled {
		return nil
	}
	return t.getLimiter(chatID).Wait(ctx)
}

func (t *ChatSendThrottle) getLimiter(chatID int64) *rate.Limiter {
	t.mu.RLock()
	limiter, exists := t.limiters[chatID]
	t.mu.RUnlock()

	if exists {
		return limiter
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if limiter, exists := t.limiters[chatID]; exists {
		return limiter
	}

	rps := float64(t.mpm) / 60.0
	limiter = rate.NewLimiter(rate.Limit(rps), t.burst)
	t.limiters[chatID] = limiter

	return limiter
}

func (t *ChatSendThrottle) cleanup() {
	ticker := time.NewTicker(t.cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		t.mu.Lock()
		if len(t.limiters) > 10000 {
			t.logger.Warn("Send throttle map size exceeded threshold, clearing")
			t.limiters = make(map[int64]*rate.Limiter)
		}
		t.mu.Unlock()
	}
}
