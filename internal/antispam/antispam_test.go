package antispam

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tg-guard-bot-go/internal/models"
)

type fakePrivileges struct {
	exempt bool
	err    error
}

func (f *fakePrivileges) IsExempt(ctx context.Context, key models.ChatUserKey) (bool, error) {
	return f.exempt, f.err
}

type restrictCall struct {
	key   models.ChatUserKey
	until time.Time
}

type mutedCall struct {
	key      models.ChatUserKey
	duration time.Duration
	reason   Reason
}

type fakeEnforcer struct {
	mu          sync.Mutex
	restrictErr error
	restoreErr  error

	restricts   []restrictCall
	restores    []models.ChatUserKey
	muted       []mutedCall
	failNotices []int64
}

func (f *fakeEnforcer) Restrict(ctx context.Context, key models.ChatUserKey, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restricts = append(f.restricts, restrictCall{key, until})
	return f.restrictErr
}

func (f *fakeEnforcer) RestoreDefaults(ctx context.Context, key models.ChatUserKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restores = append(f.restores, key)
	return f.restoreErr
}

func (f *fakeEnforcer) NotifyMuted(ctx context.Context, key models.ChatUserKey, duration time.Duration, reason Reason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = append(f.muted, mutedCall{key, duration, reason})
}

func (f *fakeEnforcer) NotifyRestrictFailed(ctx context.Context, chatID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNotices = append(f.failNotices, chatID)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestGuard returns a guard with a controllable clock. Advance time by
// mutating *clock.
func newTestGuard(priv *fakePrivileges, enf *fakeEnforcer) (*Guard, *time.Time) {
	g := NewGuard(priv, enf, testLogger())
	clock := new(time.Time)
	*clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return *clock }
	return g, clock
}

var testLimits = models.SpamLimits{
	SpamLimit:       5,
	SpamInterval:    10 * time.Second,
	LinkSpamLimit:   3,
	LinkSpamEnabled: true,
}

var testKey = models.ChatUserKey{ChatID: -100123, UserID: 42}

func TestDurationForLevel(t *testing.T) {
	assert.Equal(t, time.Minute, DurationForLevel(1))
	assert.Equal(t, 5*time.Minute, DurationForLevel(2))
	assert.Equal(t, 30*time.Minute, DurationForLevel(3))
	assert.Equal(t, time.Hour, DurationForLevel(4))
	assert.Equal(t, 6*time.Hour, DurationForLevel(5))
	// Saturates at the last tier.
	assert.Equal(t, 6*time.Hour, DurationForLevel(6))
	assert.Equal(t, 6*time.Hour, DurationForLevel(100))
	// Degenerate levels clamp to the first tier.
	assert.Equal(t, time.Minute, DurationForLevel(0))
	assert.Equal(t, time.Minute, DurationForLevel(-3))
}

func TestFloodTriggersMute(t *testing.T) {
	enf := &fakeEnforcer{}
	g, clock := newTestGuard(&fakePrivileges{}, enf)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		v := g.CheckAndRecord(ctx, testKey, "msg", testLimits)
		assert.False(t, v.Blocked, "message %d", i+1)
		*clock = clock.Add(500 * time.Millisecond)
	}

	v := g.CheckAndRecord(ctx, testKey, "msg", testLimits)
	require.True(t, v.Blocked)
	assert.Equal(t, ReasonFlood, v.Reason)

	require.Len(t, enf.restricts, 1)
	assert.Equal(t, testKey, enf.restricts[0].key)
	assert.Equal(t, clock.Add(time.Minute), enf.restricts[0].until)

	require.Len(t, enf.muted, 1)
	assert.Equal(t, time.Minute, enf.muted[0].duration)
	assert.Equal(t, ReasonFlood, enf.muted[0].reason)

	record, ok := g.lookupBan(testKey)
	require.True(t, ok)
	assert.Equal(t, 1, record.BanCount)
	assert.True(t, record.Active(*clock))
}

func TestActiveBanShortCircuits(t *testing.T) {
	enf := &fakeEnforcer{}
	g, clock := newTestGuard(&fakePrivileges{}, enf)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		g.CheckAndRecord(ctx, testKey, "msg", testLimits)
	}
	require.Len(t, enf.restricts, 1)
	historyLen := len(g.messages[testKey])

	*clock = clock.Add(5 * time.Second)
	for i := 0; i < 3; i++ {
		v := g.CheckAndRecord(ctx, testKey, "still muted", testLimits)
		assert.True(t, v.Blocked)
		assert.Empty(t, v.Reason)
	}

	// Messages during a mute must not re-escalate or grow the history.
	assert.Len(t, enf.restricts, 1)
	assert.Len(t, enf.muted, 1)
	assert.Equal(t, historyLen, len(g.messages[testKey]))
}

func TestEscalationAfterExpiry(t *testing.T) {
	enf := &fakeEnforcer{}
	g, clock := newTestGuard(&fakePrivileges{}, enf)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		g.CheckAndRecord(ctx, testKey, "msg", testLimits)
	}
	require.Len(t, enf.muted, 1)
	assert.Equal(t, time.Minute, enf.muted[0].duration)

	// Past the first mute the count is retained, not the restriction.
	*clock = clock.Add(time.Minute + time.Second)
	v := g.CheckAndRecord(ctx, testKey, "back again", testLimits)
	assert.False(t, v.Blocked)

	record, ok := g.lookupBan(testKey)
	require.True(t, ok)
	assert.False(t, record.Active(*clock))
	assert.Equal(t, 1, record.BanCount)

	for i := 0; i < 5; i++ {
		v = g.CheckAndRecord(ctx, testKey, "flood", testLimits)
	}
	require.True(t, v.Blocked)
	require.Len(t, enf.muted, 2)
	assert.Equal(t, 5*time.Minute, enf.muted[1].duration)

	record, ok = g.lookupBan(testKey)
	require.True(t, ok)
	assert.Equal(t, 2, record.BanCount)
	assert.Equal(t, clock.Add(5*time.Minute), record.BanUntil)
}

func TestLinkSpam(t *testing.T) {
	enf := &fakeEnforcer{}
	g, _ := newTestGuard(&fakePrivileges{}, enf)
	ctx := context.Background()
	limits := testLimits
	limits.SpamLimit = 10

	v := g.CheckAndRecord(ctx, testKey, "see https://example.com/offer", limits)
	assert.False(t, v.Blocked)
	v = g.CheckAndRecord(ctx, testKey, "join t.me/spamchannel", limits)
	assert.False(t, v.Blocked)

	// Plain text does not advance the link window.
	v = g.CheckAndRecord(ctx, testKey, "no links here", limits)
	assert.False(t, v.Blocked)
	assert.Len(t, g.links[testKey], 2)

	v = g.CheckAndRecord(ctx, testKey, "ping @spammer_bot", limits)
	require.True(t, v.Blocked)
	assert.Equal(t, ReasonLinks, v.Reason)
	require.Len(t, enf.muted, 1)
	assert.Equal(t, ReasonLinks, enf.muted[0].reason)
}

func TestLinkSpamDisabled(t *testing.T) {
	enf := &fakeEnforcer{}
	g, _ := newTestGuard(&fakePrivileges{}, enf)
	ctx := context.Background()
	limits := testLimits
	limits.SpamLimit = 10
	limits.LinkSpamEnabled = false

	for i := 0; i < 5; i++ {
		v := g.CheckAndRecord(ctx, testKey, "buy now www.scam.example", limits)
		assert.False(t, v.Blocked)
	}
	assert.Empty(t, g.links[testKey])
	assert.Empty(t, enf.restricts)
}

func TestAdminExempt(t *testing.T) {
	enf := &fakeEnforcer{}
	g, _ := newTestGuard(&fakePrivileges{exempt: true}, enf)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		v := g.CheckAndRecord(ctx, testKey, "https://example.com", testLimits)
		assert.False(t, v.Blocked)
	}
	assert.Empty(t, g.messages[testKey])
	assert.Empty(t, enf.restricts)
}

func TestPrivilegeErrorDoesNotExempt(t *testing.T) {
	enf := &fakeEnforcer{}
	g, _ := newTestGuard(&fakePrivileges{err: errors.New("api down")}, enf)
	ctx := context.Background()

	var v Verdict
	for i := 0; i < 6; i++ {
		v = g.CheckAndRecord(ctx, testKey, "msg", testLimits)
	}
	require.True(t, v.Blocked)
	assert.Equal(t, ReasonFlood, v.Reason)
}

func TestRestrictFailureNotifiesChat(t *testing.T) {
	enf := &fakeEnforcer{restrictErr: errors.New("not enough rights")}
	g, _ := newTestGuard(&fakePrivileges{}, enf)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		g.CheckAndRecord(ctx, testKey, "msg", testLimits)
	}
	require.Len(t, enf.failNotices, 1)
	assert.Equal(t, testKey.ChatID, enf.failNotices[0])
	assert.Empty(t, enf.muted)
}

func TestOnBanHook(t *testing.T) {
	enf := &fakeEnforcer{}
	g, clock := newTestGuard(&fakePrivileges{}, enf)
	ctx := context.Background()

	var levels []int
	g.OnBan(func(level int) { levels = append(levels, level) })

	for i := 0; i < 6; i++ {
		g.CheckAndRecord(ctx, testKey, "msg", testLimits)
	}
	*clock = clock.Add(2 * time.Minute)
	for i := 0; i < 6; i++ {
		g.CheckAndRecord(ctx, testKey, "msg", testLimits)
	}

	assert.Equal(t, []int{1, 2}, levels)
}

func TestUnban(t *testing.T) {
	enf := &fakeEnforcer{}
	g, _ := newTestGuard(&fakePrivileges{}, enf)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		g.CheckAndRecord(ctx, testKey, "msg", testLimits)
	}
	require.NotEmpty(t, g.ListActiveBans(nil))

	require.NoError(t, g.Unban(ctx, testKey))
	assert.Empty(t, g.ListActiveBans(nil))
	assert.Empty(t, g.messages[testKey])
	assert.Empty(t, g.links[testKey])
	require.Len(t, enf.restores, 1)

	// A second unban of a clean user is a no-op that still succeeds.
	require.NoError(t, g.Unban(ctx, testKey))
	assert.Len(t, enf.restores, 2)

	// Escalation starts over from the first tier after a manual unban.
	for i := 0; i < 6; i++ {
		g.CheckAndRecord(ctx, testKey, "msg", testLimits)
	}
	require.Len(t, enf.muted, 2)
	assert.Equal(t, time.Minute, enf.muted[1].duration)
}

func TestUnbanRestoreError(t *testing.T) {
	enf := &fakeEnforcer{restoreErr: errors.New("api down")}
	g, _ := newTestGuard(&fakePrivileges{}, enf)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		g.CheckAndRecord(ctx, testKey, "msg", testLimits)
	}

	// The local record is dropped even when the platform call fails.
	assert.Error(t, g.Unban(ctx, testKey))
	assert.Empty(t, g.ListActiveBans(nil))
}

func TestListActiveBans(t *testing.T) {
	enf := &fakeEnforcer{}
	g, clock := newTestGuard(&fakePrivileges{}, enf)

	keyA := models.ChatUserKey{ChatID: -1, UserID: 10}
	keyB := models.ChatUserKey{ChatID: -2, UserID: 20}
	keyC := models.ChatUserKey{ChatID: -1, UserID: 30}

	g.storeBan(keyA, models.BanRecord{BanUntil: clock.Add(time.Hour), BanCount: 2})
	g.storeBan(keyB, models.BanRecord{BanUntil: clock.Add(time.Minute), BanCount: 1})
	// Expired record: count retained but not listed.
	g.storeBan(keyC, models.BanRecord{BanCount: 3})

	all := g.ListActiveBans(nil)
	assert.Len(t, all, 2)

	chatA := int64(-1)
	filtered := g.ListActiveBans(&chatA)
	require.Len(t, filtered, 1)
	assert.Equal(t, keyA.UserID, filtered[0].UserID)
	assert.Equal(t, 2, filtered[0].BanCount)
}

func TestLegacyBanRecordNormalized(t *testing.T) {
	enf := &fakeEnforcer{}
	g, clock := newTestGuard(&fakePrivileges{}, enf)

	g.storeBan(testKey, models.BanRecord{BanUntil: clock.Add(time.Hour)})

	record, ok := g.lookupBan(testKey)
	require.True(t, ok)
	assert.Equal(t, 1, record.BanCount)

	bans := g.ListActiveBans(nil)
	require.Len(t, bans, 1)
	assert.Equal(t, 1, bans[0].BanCount)
}

func TestEscalateSkipsActiveMute(t *testing.T) {
	enf := &fakeEnforcer{}
	g, clock := newTestGuard(&fakePrivileges{}, enf)
	ctx := context.Background()

	// Two over-limit verdicts racing past the history check must yield a
	// single mute at level 1.
	g.escalate(ctx, testKey, ReasonFlood)
	g.escalate(ctx, testKey, ReasonFlood)

	require.Len(t, enf.restricts, 1)
	record, ok := g.lookupBan(testKey)
	require.True(t, ok)
	assert.Equal(t, 1, record.BanCount)

	// Once the mute lapses the next violation escalates as usual.
	*clock = clock.Add(2 * time.Minute)
	g.escalate(ctx, testKey, ReasonFlood)
	require.Len(t, enf.restricts, 2)
	record, _ = g.lookupBan(testKey)
	assert.Equal(t, 2, record.BanCount)
}

func TestConcurrentBurstMutesOnce(t *testing.T) {
	enf := &fakeEnforcer{}
	g, _ := newTestGuard(&fakePrivileges{}, enf)
	ctx := context.Background()

	// Fill the window right up to the limit, then fire a burst of
	// concurrent over-limit messages.
	for i := 0; i < testLimits.SpamLimit; i++ {
		g.CheckAndRecord(ctx, testKey, "msg", testLimits)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.CheckAndRecord(ctx, testKey, "msg", testLimits)
		}()
	}
	wg.Wait()

	assert.Len(t, enf.restricts, 1)
	record, ok := g.lookupBan(testKey)
	require.True(t, ok)
	assert.Equal(t, 1, record.BanCount)
}

func TestSlidingWindowPrunes(t *testing.T) {
	enf := &fakeEnforcer{}
	g, clock := newTestGuard(&fakePrivileges{}, enf)
	ctx := context.Background()

	// Five messages, then a quiet stretch longer than the interval: the
	// window empties and the next burst starts from scratch.
	for i := 0; i < 5; i++ {
		v := g.CheckAndRecord(ctx, testKey, "msg", testLimits)
		assert.False(t, v.Blocked)
	}
	*clock = clock.Add(testLimits.SpamInterval + time.Second)

	for i := 0; i < 5; i++ {
		v := g.CheckAndRecord(ctx, testKey, "msg", testLimits)
		assert.False(t, v.Blocked)
	}
	assert.Empty(t, enf.restricts)
}
