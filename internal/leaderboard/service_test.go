package leaderboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type capturePublisher struct {
	mu      sync.Mutex
	updates []Update
}

func (p *capturePublisher) Publish(_ context.Context, u Update) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, u)
	return nil
}

func newTestLedger(opts LedgerOptions) (*Ledger, *stepClock) {
	clock := &stepClock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	opts.Clock = clock.Now
	return NewLedger(NewMemoryStore(), zerolog.Nop(), opts), clock
}

func names(scores []HighScore) []string {
	out := make([]string, len(scores))
	for i, hs := range scores {
		out[i] = hs.Name
	}
	return out
}

func TestWeeklyTopExcludesChampion(t *testing.T) {
	ledger, clock := newTestLedger(LedgerOptions{})
	ctx := context.Background()

	a, err := ledger.Record(ctx, "A", 49, 50, ModeExam)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = ledger.Record(ctx, "B", 45, 50, ModeExam)
	require.NoError(t, err)

	champ, err := ledger.AllTimeHigh(ctx, ModeExam)
	require.NoError(t, err)
	require.NotNil(t, champ)
	assert.Equal(t, a.ID, champ.ID)

	top, err := ledger.WeeklyTop(ctx, ModeExam, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, names(top))
}

func TestWeeklyTopOrdering(t *testing.T) {
	ledger, clock := newTestLedger(LedgerOptions{})
	ctx := context.Background()

	record := func(name string, score, total int) {
		_, err := ledger.Record(ctx, name, score, total, ModeExam)
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}
	record("champ", 50, 50)
	record("eighty-old", 40, 50)
	record("ninety", 45, 50)
	record("eighty-new", 8, 10)
	record("sixty", 30, 50)

	top, err := ledger.WeeklyTop(ctx, ModeExam, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"ninety", "eighty-new", "eighty-old", "sixty"}, names(top))

	top, err = ledger.WeeklyTop(ctx, ModeExam, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"ninety", "eighty-new"}, names(top))
}

func TestWeeklyTopWindow(t *testing.T) {
	ledger, clock := newTestLedger(LedgerOptions{})
	ctx := context.Background()

	_, err := ledger.Record(ctx, "champ", 50, 50, ModeScenario)
	require.NoError(t, err)
	_, err = ledger.Record(ctx, "old", 40, 50, ModeScenario)
	require.NoError(t, err)

	clock.Advance(6 * 24 * time.Hour)
	_, err = ledger.Record(ctx, "recent", 35, 50, ModeScenario)
	require.NoError(t, err)

	top, err := ledger.WeeklyTop(ctx, ModeScenario, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "recent"}, names(top))

	clock.Advance(2 * 24 * time.Hour)
	top, err = ledger.WeeklyTop(ctx, ModeScenario, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"recent"}, names(top))

	champ, err := ledger.AllTimeHigh(ctx, ModeScenario)
	require.NoError(t, err)
	assert.Equal(t, "champ", champ.Name, "the champion outlives the weekly window")
}

func TestChampionTieKeepsFirstRecorded(t *testing.T) {
	ledger, clock := newTestLedger(LedgerOptions{})
	ctx := context.Background()

	first, err := ledger.Record(ctx, "first", 40, 50, ModeExam)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = ledger.Record(ctx, "same-percent", 8, 10, ModeExam)
	require.NoError(t, err)

	champ, err := ledger.AllTimeHigh(ctx, ModeExam)
	require.NoError(t, err)
	assert.Equal(t, first.ID, champ.ID)
}

func TestModesAreIndependent(t *testing.T) {
	ledger, _ := newTestLedger(LedgerOptions{})
	ctx := context.Background()

	_, err := ledger.Record(ctx, "exam", 45, 50, ModeExam)
	require.NoError(t, err)

	champ, err := ledger.AllTimeHigh(ctx, ModeScenario)
	require.NoError(t, err)
	assert.Nil(t, champ)

	top, err := ledger.WeeklyTop(ctx, ModeScenario, 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestZeroTotalCountsAsZeroPercent(t *testing.T) {
	ledger, _ := newTestLedger(LedgerOptions{})
	ctx := context.Background()

	_, err := ledger.Record(ctx, "broken", 5, 0, ModeExam)
	require.NoError(t, err)
	real, err := ledger.Record(ctx, "real", 1, 50, ModeExam)
	require.NoError(t, err)

	champ, err := ledger.AllTimeHigh(ctx, ModeExam)
	require.NoError(t, err)
	assert.Equal(t, real.ID, champ.ID)
}

func TestRecordPublishesUpdate(t *testing.T) {
	pub := &capturePublisher{}
	ledger, _ := newTestLedger(LedgerOptions{Publisher: pub})
	ctx := context.Background()

	_, err := ledger.Record(ctx, "A", 49, 50, ModeExam)
	require.NoError(t, err)
	b, err := ledger.Record(ctx, "B", 45, 50, ModeExam)
	require.NoError(t, err)

	require.Len(t, pub.updates, 2)
	last := pub.updates[1]
	assert.Equal(t, ModeExam, last.Mode)
	assert.Equal(t, b.ID, last.RecordedID)
	require.NotNil(t, last.Champion)
	assert.Equal(t, "A", last.Champion.Name)
	assert.Equal(t, []string{"B"}, names(last.Top))
}

func TestWeeklyCacheIsInvalidatedOnRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cache := NewCache(rdb, "test", time.Minute)
	ledger, _ := newTestLedger(LedgerOptions{Cache: cache})
	ctx := context.Background()

	_, err := ledger.Record(ctx, "champ", 50, 50, ModeExam)
	require.NoError(t, err)
	_, err = ledger.Record(ctx, "B", 40, 50, ModeExam)
	require.NoError(t, err)

	top, err := ledger.WeeklyTop(ctx, ModeExam, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, names(top))
	gen, err := mr.Get("test:weekly:exam:gen")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:weekly:exam:"+gen))

	_, err = ledger.Record(ctx, "C", 45, 50, ModeExam)
	require.NoError(t, err)
	next, err := mr.Get("test:weekly:exam:gen")
	require.NoError(t, err)
	assert.NotEqual(t, gen, next)

	top, err = ledger.WeeklyTop(ctx, ModeExam, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B"}, names(top))
}

// slowReadStore runs afterSince once, after the weekly rows were loaded but
// before the ledger ranks them.
type slowReadStore struct {
	Store
	once       sync.Once
	afterSince func()
}

func (s *slowReadStore) Since(ctx context.Context, mode Mode, since time.Time) ([]HighScore, error) {
	rows, err := s.Store.Since(ctx, mode, since)
	if s.afterSince != nil {
		s.once.Do(s.afterSince)
	}
	return rows, err
}

func TestWeeklyCacheIgnoresBoardRankedBeforeRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := &slowReadStore{Store: NewMemoryStore()}
	clock := &stepClock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	ledger := NewLedger(store, zerolog.Nop(), LedgerOptions{
		Cache: NewCache(rdb, "test", time.Hour),
		Clock: clock.Now,
	})
	ctx := context.Background()

	_, err := ledger.Record(ctx, "A", 49, 50, ModeExam)
	require.NoError(t, err)
	_, err = ledger.Record(ctx, "B", 40, 50, ModeExam)
	require.NoError(t, err)

	store.afterSince = func() {
		clock.Advance(time.Second)
		_, err := ledger.Record(ctx, "C", 45, 50, ModeExam)
		require.NoError(t, err)
	}

	top, err := ledger.WeeklyTop(ctx, ModeExam, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, names(top), "the overlapping read still sees its own snapshot")

	top, err = ledger.WeeklyTop(ctx, ModeExam, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B"}, names(top))
}

func TestCachedBoardDropsExpiredEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ledger, clock := newTestLedger(LedgerOptions{Cache: NewCache(rdb, "test", time.Hour)})
	ctx := context.Background()

	_, err := ledger.Record(ctx, "champ", 50, 50, ModeExam)
	require.NoError(t, err)
	_, err = ledger.Record(ctx, "ageing", 40, 50, ModeExam)
	require.NoError(t, err)

	top, err := ledger.WeeklyTop(ctx, ModeExam, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)

	// miniredis time is not advanced, so the cached board is still served.
	clock.Advance(8 * 24 * time.Hour)
	top, err = ledger.WeeklyTop(ctx, ModeExam, 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestParseLeaderboardMode(t *testing.T) {
	m, err := ParseMode("SCENARIO")
	require.NoError(t, err)
	assert.Equal(t, ModeScenario, m)

	_, err = ParseMode("practice")
	assert.ErrorIs(t, err, ErrUnknownMode)
}
