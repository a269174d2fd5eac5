package resolver

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tg-guard-bot-go/internal/models"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestResolveContainment(t *testing.T) {
	r := New(2*time.Second, 0.9, testLogger())
	rules := []models.Keyword{
		{Phrase: "договор", ResponseText: "ответ"},
	}

	rule, ok := r.Resolve(context.Background(), "Хочу заключить ДОГОВОР сегодня", rules)
	require.True(t, ok)
	assert.Equal(t, "договор", rule.Phrase)
}

func TestResolveNoRules(t *testing.T) {
	r := New(2*time.Second, 0.9, testLogger())

	rule, ok := r.Resolve(context.Background(), "any text", nil)
	assert.False(t, ok)
	assert.Nil(t, rule)

	rule, ok = r.Resolve(context.Background(), "", []models.Keyword{{Phrase: "x"}})
	assert.False(t, ok)
	assert.Nil(t, rule)
}

func TestResolveNoMatch(t *testing.T) {
	r := New(2*time.Second, 0.9, testLogger())
	rules := []models.Keyword{
		{Phrase: "договор"},
		{Phrase: "price*", IsPattern: true},
	}

	rule, ok := r.Resolve(context.Background(), "совершенно о другом", rules)
	assert.False(t, ok)
	assert.Nil(t, rule)
}

func TestResolveTransliteratedInput(t *testing.T) {
	r := New(2*time.Second, 0.9, testLogger())
	rules := []models.Keyword{
		{Phrase: "привет", TransliterateEnabled: true},
	}

	rule, ok := r.Resolve(context.Background(), "privet vsem", rules)
	require.True(t, ok)
	assert.Equal(t, "привет", rule.Phrase)

	// Same input with transliteration disabled stays unmatched.
	rules[0].TransliterateEnabled = false
	_, ok = r.Resolve(context.Background(), "privet vsem", rules)
	assert.False(t, ok)
}

func TestResolveGlobPattern(t *testing.T) {
	r := New(2*time.Second, 0.9, testLogger())
	rules := []models.Keyword{
		{Phrase: "куп* кварт*", IsPattern: true},
	}

	rule, ok := r.Resolve(context.Background(), "куплю квартиру", rules)
	require.True(t, ok)
	assert.Equal(t, "куп* кварт*", rule.Phrase)

	// Without the pattern flag the same phrase is literal and misses.
	rules[0].IsPattern = false
	_, ok = r.Resolve(context.Background(), "куплю квартиру", rules)
	assert.False(t, ok)
}

func TestResolveFuzzy(t *testing.T) {
	r := New(2*time.Second, 0.9, testLogger())
	rules := []models.Keyword{
		{Phrase: "hello there", FuzzyEnabled: true},
	}

	rule, ok := r.Resolve(context.Background(), "well hello thre world", rules)
	require.True(t, ok)
	assert.Equal(t, "hello there", rule.Phrase)

	rules[0].FuzzyEnabled = false
	_, ok = r.Resolve(context.Background(), "well hello thre world", rules)
	assert.False(t, ok)
}

func TestResolveFirstMatchWins(t *testing.T) {
	r := New(2*time.Second, 0.9, testLogger())
	rules := []models.Keyword{
		{Phrase: "доставка", ResponseText: "first"},
		{Phrase: "доставка по городу", ResponseText: "second"},
	}

	rule, ok := r.Resolve(context.Background(), "есть доставка по городу?", rules)
	require.True(t, ok)
	assert.Equal(t, "first", rule.ResponseText)
}

func TestResolveCaseSensitivity(t *testing.T) {
	r := New(2*time.Second, 0.9, testLogger())

	rules := []models.Keyword{{Phrase: "VIP", CaseSensitive: true}}
	_, ok := r.Resolve(context.Background(), "vip access", rules)
	assert.False(t, ok)

	rule, ok := r.Resolve(context.Background(), "VIP access", rules)
	require.True(t, ok)
	assert.Equal(t, "VIP", rule.Phrase)
}

func TestResolveTimeoutFallsBackToContainment(t *testing.T) {
	timeouts := 0
	r := New(1*time.Nanosecond, 0.9, testLogger(), WithTimeoutHook(func() { timeouts++ }))
	rules := []models.Keyword{
		{Phrase: "hello there", FuzzyEnabled: true},
		{Phrase: "spam", ResponseText: "literal"},
	}

	// The fuzzy rule would match under a real budget, but the cheap pass
	// only sees literal containment and lands on the second rule.
	rule, ok := r.Resolve(context.Background(), "well hello thre, spam ahead", rules)
	require.True(t, ok)
	assert.Equal(t, "literal", rule.ResponseText)
	assert.Equal(t, 1, timeouts)
}

func TestResolveTimeoutNoCheapMatch(t *testing.T) {
	r := New(1*time.Nanosecond, 0.9, testLogger())
	rules := []models.Keyword{
		{Phrase: "hello there", FuzzyEnabled: true},
	}

	rule, ok := r.Resolve(context.Background(), "well hello thre world", rules)
	assert.False(t, ok)
	assert.Nil(t, rule)
}
