package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/likelovehate/internal/adapter/metrics"
	"github.com/pscheid92/likelovehate/internal/domain"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	s, err := Open(filepath.Join(t.TempDir(), "reactions.json"), clock, nil)
	require.NoError(t, err)
	return s, clock
}

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Equal(t, 0, s.Len())

	all, err := s.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "reactions.json")
	_, err := Open(path, clockwork.NewFakeClock(), nil)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSetReaction_ThenGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.SetReaction(ctx, "item1", "user1", domain.ReactionLove, "Alice"))

	r, ok, err := s.GetReaction(ctx, "item1", "user1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.ReactionLove, r.Kind)
	assert.Equal(t, "Alice", r.UserName)
	assert.Equal(t, epoch, r.Timestamp)
}

func TestGetReaction_Absent(t *testing.T) {
	s, _ := newTestStore(t)
	_, ok, err := s.GetReaction(context.Background(), "item1", "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetReaction_Overwrites(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	require.NoError(t, s.SetReaction(ctx, "item1", "user1", domain.ReactionLike, "Alice"))
	clock.Advance(time.Minute)
	require.NoError(t, s.SetReaction(ctx, "item1", "user1", domain.ReactionHate, "Alice B."))

	assert.Equal(t, 1, s.Len())
	r, ok, err := s.GetReaction(ctx, "item1", "user1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.ReactionHate, r.Kind)
	assert.Equal(t, "Alice B.", r.UserName)
	assert.Equal(t, epoch.Add(time.Minute), r.Timestamp)

	stats, err := s.StatsForItem(ctx, "item1")
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Hates: 1, Total: 1}, stats)
}

func TestDeleteReaction_Idempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	require.NoError(t, s.SetReaction(ctx, "item1", "user1", domain.ReactionLike, "Alice"))

	require.NoError(t, s.DeleteReaction(ctx, "item1", "user1"))
	require.NoError(t, s.DeleteReaction(ctx, "item1", "user1"))
	require.NoError(t, s.DeleteReaction(ctx, "never", "existed"))

	_, ok, err := s.GetReaction(ctx, "item1", "user1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestListForItem_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	require.NoError(t, s.SetReaction(ctx, "item1", "u1", domain.ReactionLike, "A"))
	clock.Advance(time.Second)
	require.NoError(t, s.SetReaction(ctx, "item1", "u2", domain.ReactionLove, "B"))
	clock.Advance(time.Second)
	require.NoError(t, s.SetReaction(ctx, "item2", "u3", domain.ReactionHate, "C"))
	clock.Advance(time.Second)
	require.NoError(t, s.SetReaction(ctx, "item1", "u3", domain.ReactionHate, "C"))

	reactions, err := s.ListForItem(ctx, "item1")
	require.NoError(t, err)
	require.Len(t, reactions, 3)
	assert.Equal(t, []string{"u3", "u2", "u1"}, []string{reactions[0].UserID, reactions[1].UserID, reactions[2].UserID})

	none, err := s.ListForItem(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStatsForItem_MatchesList(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.SetReaction(ctx, "item1", "u1", domain.ReactionLike, "A"))
	require.NoError(t, s.SetReaction(ctx, "item1", "u2", domain.ReactionLike, "B"))
	require.NoError(t, s.SetReaction(ctx, "item1", "u3", domain.ReactionLove, "C"))
	require.NoError(t, s.SetReaction(ctx, "item2", "u1", domain.ReactionHate, "A"))

	stats, err := s.StatsForItem(ctx, "item1")
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Likes: 2, Loves: 1, Total: 3}, stats)

	list, err := s.ListForItem(ctx, "item1")
	require.NoError(t, err)
	assert.Equal(t, stats.Total, len(list))
	assert.Equal(t, stats.Likes+stats.Loves+stats.Hates, stats.Total)
}

func TestListAll_OrderedByItemThenNewest(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	require.NoError(t, s.SetReaction(ctx, "b", "u1", domain.ReactionLike, "A"))
	clock.Advance(time.Second)
	require.NoError(t, s.SetReaction(ctx, "a", "u1", domain.ReactionLike, "A"))
	clock.Advance(time.Second)
	require.NoError(t, s.SetReaction(ctx, "a", "u2", domain.ReactionLove, "B"))

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a_u2", all[0].Key())
	assert.Equal(t, "a_u1", all[1].Key())
	assert.Equal(t, "b_u1", all[2].Key())
}

func TestPersist_ReloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	require.NoError(t, s.SetReaction(ctx, "item1", "u1", domain.ReactionLike, "Alice"))
	clock.Advance(time.Hour)
	require.NoError(t, s.SetReaction(ctx, "item1", "u2", domain.ReactionHate, "Bob"))
	require.NoError(t, s.SetReaction(ctx, "item2", "u1", domain.ReactionLove, "Alice"))
	require.NoError(t, s.DeleteReaction(ctx, "item2", "u1"))

	before, err := s.ListAll(ctx)
	require.NoError(t, err)

	reopened, err := Open(s.Path(), clockwork.NewFakeClock(), nil)
	require.NoError(t, err)
	after, err := reopened.ListAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.Equal(t, 0, reopened.Dropped())
}

func TestPersist_DocumentLayout(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	require.NoError(t, s.SetReaction(ctx, "item1", "user1", domain.ReactionLove, "Alice"))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Contains(t, doc, "item1_user1")

	entry := doc["item1_user1"]
	assert.Equal(t, "item1", entry["ItemId"])
	assert.Equal(t, "user1", entry["UserId"])
	assert.InDelta(t, 2, entry["Reaction"], 0)
	assert.Equal(t, "2025-03-01T12:00:00Z", entry["Timestamp"])
	assert.Equal(t, "Alice", entry["UserName"])
	assert.Contains(t, string(data), "\n  \"item1_user1\"", "document should be indented")

	_, err = os.Stat(s.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestOpen_LoadsLegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reactions.json")
	legacy := `{
  "42_abc": {
    "ItemId": "42",
    "UserId": "abc",
    "Reaction": 3,
    "Timestamp": "2024-11-05T18:22:41.1234567Z",
    "UserName": "jellyfan"
  },
  "43_abc": {
    "ItemId": "43",
    "UserId": "abc",
    "Reaction": 1,
    "Timestamp": "2024-11-05T18:25:00.5",
    "UserName": "jellyfan"
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	s, err := Open(path, clockwork.NewFakeClock(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	r, ok, err := s.GetReaction(context.Background(), "42", "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.ReactionHate, r.Kind)
	assert.Equal(t, 2024, r.Timestamp.Year())

	r, ok, err = s.GetReaction(context.Background(), "43", "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.UTC, r.Timestamp.Location())
}

func TestOpen_UnparseableDocumentStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reactions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"truncated": {"ItemId": "1",`), 0o644))

	s, err := Open(path, clockwork.NewFakeClock(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Error(t, s.LoadErr())

	preserved, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, `{"truncated": {"ItemId": "1",`, string(preserved))

	// Still usable, and the next mutation replaces the broken document.
	require.NoError(t, s.SetReaction(context.Background(), "1", "u", domain.ReactionLike, "x"))
	assert.NoError(t, s.LoadErr())
	reopened, err := Open(path, clockwork.NewFakeClock(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())
}

func TestRepair_RefusesUnreadableDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reactions.json")
	truncated := `{"a_u": {"ItemId": "a", "UserId": "u", "Reaction": 1, "Timest`
	require.NoError(t, os.WriteFile(path, []byte(truncated), 0o644))

	s, err := Open(path, clockwork.NewFakeClock(), nil)
	require.NoError(t, err)

	_, err = s.Repair(context.Background(), false)
	require.ErrorIs(t, err, ErrUnreadableDocument)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, truncated, string(data), "document must be left alone")

	report, err := s.Repair(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, path+".bak", report.Backup)
	backupData, err := os.ReadFile(report.Backup)
	require.NoError(t, err)
	assert.Equal(t, truncated, string(backupData))
}

func TestUnderscoreIdentifiersDoNotCollide(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.SetReaction(ctx, "a_b", "c", domain.ReactionLike, "first"))
	require.NoError(t, s.SetReaction(ctx, "a", "b_c", domain.ReactionHate, "second"))
	assert.Equal(t, 2, s.Len())

	r, ok, err := s.GetReaction(ctx, "a_b", "c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a_b", r.ItemID)
	assert.Equal(t, "c", r.UserID)
	assert.Equal(t, domain.ReactionLike, r.Kind)

	stats, err := s.StatsForItem(ctx, "a_b")
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Likes: 1, Total: 1}, stats)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "b_c", doc["a_b_c"]["UserId"])
	assert.Equal(t, "c", doc["a_b_c#2"]["UserId"])

	// Both survive a reload even though their plain document keys are equal.
	reopened, err := Open(s.Path(), clockwork.NewFakeClock(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())
	assert.Equal(t, 0, reopened.Dropped())
	r, ok, err = reopened.GetReaction(ctx, "a", "b_c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.ReactionHate, r.Kind)

	require.NoError(t, s.DeleteReaction(ctx, "a", "b_c"))
	_, ok, err = s.GetReaction(ctx, "a_b", "c")
	require.NoError(t, err)
	assert.True(t, ok, "deleting one pair must not touch the other")
}

func TestOpen_SalvagesPartiallyCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reactions.json")
	doc := `{
  "good_1":      {"ItemId": "good", "UserId": "1", "Reaction": 1, "Timestamp": "2025-01-01T00:00:00Z", "UserName": "A"},
  "wrongkey":    {"ItemId": "good", "UserId": "2", "Reaction": 2, "Timestamp": "2025-01-02T00:00:00Z", "UserName": ""},
  "bad_kind":    {"ItemId": "bad", "UserId": "kind", "Reaction": 7, "Timestamp": "2025-01-01T00:00:00Z"},
  "bad_none":    {"ItemId": "bad", "UserId": "none", "Reaction": 0, "Timestamp": "2025-01-01T00:00:00Z"},
  "missing_ids": {"Reaction": 1, "Timestamp": "2025-01-01T00:00:00Z"},
  "bad_time":    {"ItemId": "bad", "UserId": "time", "Reaction": 1, "Timestamp": "yesterday"},
  "not_object":  "hello"
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	reg := prometheus.NewRegistry()
	m := metrics.NewStoreMetrics(reg)
	s, err := Open(path, clockwork.NewFakeClock(), m)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 5, s.Dropped())
	assert.InDelta(t, 5, testutil.ToFloat64(m.DroppedEntries), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Records), 0)

	r, ok, err := s.GetReaction(context.Background(), "good", "2")
	require.NoError(t, err)
	require.True(t, ok, "entry under a non-canonical key is re-keyed")
	assert.Equal(t, domain.DefaultUserName, r.UserName)
}

func TestRepair_RewritesSalvagedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reactions.json")
	doc := `{
  "x_1": {"ItemId": "x", "UserId": "1", "Reaction": 2, "Timestamp": "2025-01-01T00:00:00Z", "UserName": "A"},
  "x_2": {"ItemId": "x", "UserId": "2", "Reaction": 9, "Timestamp": "2025-01-01T00:00:00Z", "UserName": "B"}
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s, err := Open(path, clockwork.NewFakeClock(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, s.Dropped())

	report, err := s.Repair(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, RepairReport{Kept: 1, Dropped: 1, Backup: path + ".bak"}, report)
	assert.Equal(t, 0, s.Dropped())

	reopened, err := Open(path, clockwork.NewFakeClock(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())
	assert.Equal(t, 0, reopened.Dropped())
}

func TestSaveFailure_KeepsInMemoryState(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := metrics.NewStoreMetrics(reg)
	path := filepath.Join(t.TempDir(), "reactions.json")
	s, err := Open(path, clockwork.NewFakeClock(), m)
	require.NoError(t, err)

	// A directory squatting on the temp path makes every write fail.
	require.NoError(t, os.Mkdir(path+".tmp", 0o755))

	require.NoError(t, s.SetReaction(ctx, "item1", "user1", domain.ReactionLike, "Alice"))

	r, ok, err := s.GetReaction(ctx, "item1", "user1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.ReactionLike, r.Kind)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PersistFailures), 0)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = s.Repair(ctx, false)
	assert.Error(t, err, "repair surfaces the write error")
}

func TestHealthCheck(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.HealthCheck(context.Background()))

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Empty(t, entries, "health probe file is cleaned up")
}

func TestScenario_LikeThenLoveThenDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.SetReaction(ctx, "A", "U", domain.ReactionLike, "u"))
	stats, err := s.StatsForItem(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Likes: 1, Total: 1}, stats)

	require.NoError(t, s.SetReaction(ctx, "A", "U", domain.ReactionLove, "u"))
	stats, err = s.StatsForItem(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Loves: 1, Total: 1}, stats)

	require.NoError(t, s.DeleteReaction(ctx, "A", "U"))
	stats, err = s.StatsForItem(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{}, stats)
}

func TestScenario_TwoUsersHate(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.SetReaction(ctx, "A", "U1", domain.ReactionHate, "one"))
	require.NoError(t, s.SetReaction(ctx, "A", "U2", domain.ReactionHate, "two"))

	stats, err := s.StatsForItem(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Hates: 2, Total: 2}, stats)

	list, err := s.ListForItem(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			userID := string(rune('a' + i))
			_ = s.SetReaction(ctx, "item", userID, domain.ReactionKind(i%3+1), "n")
			_, _, _ = s.GetReaction(ctx, "item", userID)
		}()
	}
	wg.Wait()

	stats, err := s.StatsForItem(ctx, "item")
	require.NoError(t, err)
	assert.Equal(t, 20, stats.Total)

	reopened, err := Open(s.Path(), clockwork.NewFakeClock(), nil)
	require.NoError(t, err)
	assert.Equal(t, 20, reopened.Len())
}
