// Package filestore is the default ReactionStore: every reaction lives in an
// in-memory map that is rewritten in full to a single JSON document after
// each mutation.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/likelovehate/internal/adapter/metrics"
	"github.com/pscheid92/likelovehate/internal/domain"
)

var _ domain.ReactionStore = (*Store)(nil)

// ErrUnreadableDocument is returned by Repair when the document could not be
// loaded at all and force was not given.
var ErrUnreadableDocument = errors.New("data file could not be loaded")

// RepairReport describes a completed Repair.
type RepairReport struct {
	Kept    int
	Dropped int
	// Backup is the copy of the previous document, empty when there was none.
	Backup string
}

type Store struct {
	mu        sync.Mutex
	path      string
	clock     clockwork.Clock
	metrics   *metrics.StoreMetrics
	reactions map[domain.PairID]domain.Reaction
	dropped   int
	loadErr   error
}

// Open loads the document at path and returns a ready store. A missing or
// unreadable document yields an empty store; only failing to create the
// parent directory is an error. An unreadable document is copied to
// <path>.corrupt first so the next write does not destroy it. m may be nil.
func Open(path string, clock clockwork.Clock, m *metrics.StoreMetrics) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	reactions, dropped, loadErr := load(path)
	if loadErr != nil {
		slog.Warn("Failed to load reaction data, starting empty", "path", path, "error", loadErr)
		if _, err := backup(path, path+".corrupt"); err != nil {
			slog.Error("Failed to preserve unreadable reaction data", "path", path, "error", err)
		}
		reactions, dropped = map[domain.PairID]domain.Reaction{}, 0
	}
	if dropped > 0 {
		slog.Warn("Dropped malformed entries while loading reaction data",
			"path", path, "dropped", dropped, "kept", len(reactions))
	}
	m.Dropped(dropped)
	m.SetRecords(len(reactions))

	return &Store{
		path:      path,
		clock:     clock,
		metrics:   m,
		reactions: reactions,
		dropped:   dropped,
		loadErr:   loadErr,
	}, nil
}

func (s *Store) Path() string { return s.path }

// Len is the number of records currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reactions)
}

// Dropped is the number of malformed entries discarded at load.
func (s *Store) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// LoadErr reports why the document could not be loaded, nil when it was.
func (s *Store) LoadErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

func (s *Store) SetReaction(ctx context.Context, itemID, userID string, kind domain.ReactionKind, userName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := domain.Reaction{
		ItemID:    itemID,
		UserID:    userID,
		Kind:      kind,
		Timestamp: s.clock.Now().UTC(),
		UserName:  userName,
	}
	s.reactions[r.ID()] = r
	s.persistLocked(ctx)
	return nil
}

func (s *Store) GetReaction(_ context.Context, itemID, userID string) (domain.Reaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reactions[domain.PairID{ItemID: itemID, UserID: userID}]
	return r, ok, nil
}

func (s *Store) DeleteReaction(ctx context.Context, itemID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.PairID{ItemID: itemID, UserID: userID}
	if _, ok := s.reactions[key]; !ok {
		return nil
	}
	delete(s.reactions, key)
	s.persistLocked(ctx)
	return nil
}

func (s *Store) ListForItem(_ context.Context, itemID string) ([]domain.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reactions := s.forItemLocked(itemID)
	domain.SortNewestFirst(reactions)
	return reactions, nil
}

func (s *Store) StatsForItem(_ context.Context, itemID string) (domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.ComputeStats(s.forItemLocked(itemID)), nil
}

func (s *Store) ListAll(_ context.Context) ([]domain.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reactions := make([]domain.Reaction, 0, len(s.reactions))
	for _, r := range s.reactions {
		reactions = append(reactions, r)
	}
	domain.SortForExport(reactions)
	return reactions, nil
}

// Repair rewrites the document from the in-memory state, which drops any
// entries that were discarded at load. The previous document is copied to
// <path>.bak first. When the document could not be loaded at all, Repair
// refuses with ErrUnreadableDocument unless force is set. Unlike mutations,
// the write error is returned.
func (s *Store) Repair(_ context.Context, force bool) (RepairReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadErr != nil && !force {
		return RepairReport{}, fmt.Errorf("%w: %w", ErrUnreadableDocument, s.loadErr)
	}

	report := RepairReport{Kept: len(s.reactions), Dropped: s.dropped}
	saved, err := backup(s.path, s.path+".bak")
	if err != nil {
		return RepairReport{}, err
	}
	if saved {
		report.Backup = s.path + ".bak"
	}

	start := time.Now()
	err = save(s.path, s.reactions)
	s.metrics.ObservePersist(start, err)
	if err != nil {
		return RepairReport{}, fmt.Errorf("failed to rewrite %s: %w", s.path, err)
	}
	s.dropped = 0
	s.loadErr = nil
	return report, nil
}

// HealthCheck verifies the data directory still accepts writes.
func (s *Store) HealthCheck(_ context.Context) error {
	f, err := os.CreateTemp(filepath.Dir(s.path), ".healthcheck-*")
	if err != nil {
		return fmt.Errorf("data directory not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func (s *Store) forItemLocked(itemID string) []domain.Reaction {
	var reactions []domain.Reaction
	for _, r := range s.reactions {
		if r.ItemID == itemID {
			reactions = append(reactions, r)
		}
	}
	return reactions
}

// persistLocked writes the full document. Failures are logged and counted;
// the in-memory change stands.
func (s *Store) persistLocked(ctx context.Context) {
	start := time.Now()
	err := save(s.path, s.reactions)
	s.metrics.ObservePersist(start, err)
	s.metrics.SetRecords(len(s.reactions))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to persist reaction data", "path", s.path, "error", err)
		return
	}
	s.loadErr = nil
}
