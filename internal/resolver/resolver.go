// Package resolver selects the best matching keyword rule for an inbound
// message, combining the normalizer and the pattern matcher under a
// bounded time budget.
package resolver

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tg-guard-bot-go/internal/matcher"
	"github.com/tg-guard-bot-go/internal/models"
	"github.com/tg-guard-bot-go/internal/textnorm"
)

// Resolver scans a group's rules against message text.
type Resolver struct {
	budget    time.Duration
	threshold float64
	logger    *logrus.Logger

	// onTimeout is invoked when the budgeted scan is cancelled; hook for
	// metrics.
	onTimeout func()
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeoutHook registers a callback fired when the scan falls back to
// the cheap pass.
func WithTimeoutHook(fn func()) Option {
	return func(r *Resolver) { r.onTimeout = fn }
}

// New creates a resolver. budget bounds a full scan over one message;
// threshold is the fuzzy similarity ratio.
func New(budget time.Duration, threshold float64, logger *logrus.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		budget:    budget,
		threshold: threshold,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the first rule reaching full confidence, scanning rules
// in the order given. Callers must not rely on any tie-break beyond
// "first encountered". If the time budget is exhausted the expensive scan
// is abandoned and a literal-containment pass over the same rules
// guarantees forward progress.
func (r *Resolver) Resolve(ctx context.Context, text string, rules []models.Keyword) (*models.Keyword, bool) {
	if len(rules) == 0 || text == "" {
		return nil, false
	}

	scanCtx, cancel := context.WithTimeout(ctx, r.budget)
	defer cancel()

	type result struct {
		rule *models.Keyword
		ok   bool
	}
	done := make(chan result, 1)

	go func() {
		rule, ok := r.scan(scanCtx, text, rules)
		done <- result{rule, ok}
	}()

	select {
	case res := <-done:
		if res.ok || scanCtx.Err() == nil {
			return res.rule, res.ok
		}
	case <-scanCtx.Done():
	}

	// Budget exceeded: the goroutine observes the cancelled context and
	// stops on its own; fall through to the cheap pass.
	r.logger.WithField("rules", len(rules)).Warn("Keyword scan exceeded time budget, using containment fallback")
	if r.onTimeout != nil {
		r.onTimeout()
	}
	return r.cheapScan(text, rules)
}

// scan runs the full per-rule cascade, bailing out between rules when the
// context is cancelled.
func (r *Resolver) scan(ctx context.Context, text string, rules []models.Keyword) (*models.Keyword, bool) {
	for i := range rules {
		if ctx.Err() != nil {
			return nil, false
		}
		if r.matchRule(ctx, text, &rules[i]) {
			// All positive signals report full confidence, so the first
			// hit is already the best possible and the scan stops.
			return &rules[i], true
		}
	}
	return nil, false
}

// matchRule tests one rule: containment, then glob pattern, then
// transliteration in both directions, then fuzzy with and without
// transliteration. Short-circuits on the first positive signal.
func (r *Resolver) matchRule(ctx context.Context, text string, rule *models.Keyword) bool {
	phrase := textnorm.Normalize(rule.Phrase, rule.CaseSensitive)
	normalized := textnorm.Normalize(text, rule.CaseSensitive)

	if matcher.Match(normalized, phrase, matcher.ModeSubstring) {
		return true
	}

	if rule.IsPattern && matcher.MatchGlob(normalized, phrase) {
		return true
	}

	var transEn, transRu string
	if rule.TransliterateEnabled {
		transEn = textnorm.TransliterateRuToEn(normalized)
		transRu = textnorm.TransliterateEnToRu(normalized)
		if matcher.Match(transEn, phrase, matcher.ModeSubstring) ||
			matcher.Match(transRu, phrase, matcher.ModeSubstring) {
			return true
		}
	}

	if rule.FuzzyEnabled {
		if ctx.Err() != nil {
			return false
		}
		if matcher.MatchFuzzy(normalized, phrase, r.threshold) {
			return true
		}
		if rule.TransliterateEnabled {
			if matcher.MatchFuzzy(transEn, phrase, r.threshold) ||
				matcher.MatchFuzzy(transRu, phrase, r.threshold) {
				return true
			}
		}
	}

	return false
}

// cheapScan checks literal containment only, skipping pattern, fuzzy and
// transliteration work.
func (r *Resolver) cheapScan(text string, rules []models.Keyword) (*models.Keyword, bool) {
	for i := range rules {
		rule := &rules[i]
		phrase := textnorm.Normalize(rule.Phrase, rule.CaseSensitive)
		normalized := textnorm.Normalize(text, rule.CaseSensitive)
		if matcher.Match(normalized, phrase, matcher.ModeSubstring) {
			return rule, true
		}
	}
	return nil, false
}
