package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/likelovehate/internal/domain"
)

var _ domain.ReactionStore = (*ReactionStore)(nil)

const reactionColumns = "item_id, user_id, reaction, user_name, reacted_at"

type ReactionStore struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

func NewReactionStore(pool *pgxpool.Pool, clock clockwork.Clock) *ReactionStore {
	return &ReactionStore{pool: pool, clock: clock}
}

type reactionRow struct {
	ItemID    string    `db:"item_id"`
	UserID    string    `db:"user_id"`
	Reaction  int16     `db:"reaction"`
	UserName  string    `db:"user_name"`
	ReactedAt time.Time `db:"reacted_at"`
}

func (r reactionRow) toDomain() domain.Reaction {
	return domain.Reaction{
		ItemID:    r.ItemID,
		UserID:    r.UserID,
		Kind:      domain.ReactionKind(r.Reaction),
		Timestamp: r.ReactedAt.UTC(),
		UserName:  r.UserName,
	}
}

func (s *ReactionStore) SetReaction(ctx context.Context, itemID, userID string, kind domain.ReactionKind, userName string) error {
	// timestamptz keeps microseconds; truncate so callers see what a reload returns.
	now := s.clock.Now().UTC().Truncate(time.Microsecond)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reactions (`+reactionColumns+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id, user_id) DO UPDATE
		SET reaction = EXCLUDED.reaction,
		    user_name = EXCLUDED.user_name,
		    reacted_at = EXCLUDED.reacted_at`,
		itemID, userID, int16(kind), userName, now)
	if err != nil {
		return fmt.Errorf("failed to upsert reaction: %w", err)
	}
	return nil
}

func (s *ReactionStore) GetReaction(ctx context.Context, itemID, userID string) (domain.Reaction, bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reactionColumns+` FROM reactions WHERE item_id = $1 AND user_id = $2`,
		itemID, userID)
	if err != nil {
		return domain.Reaction{}, false, fmt.Errorf("failed to get reaction: %w", err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[reactionRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Reaction{}, false, nil
	}
	if err != nil {
		return domain.Reaction{}, false, fmt.Errorf("failed to scan reaction: %w", err)
	}
	return row.toDomain(), true, nil
}

func (s *ReactionStore) DeleteReaction(ctx context.Context, itemID, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM reactions WHERE item_id = $1 AND user_id = $2`, itemID, userID); err != nil {
		return fmt.Errorf("failed to delete reaction: %w", err)
	}
	return nil
}

func (s *ReactionStore) ListForItem(ctx context.Context, itemID string) ([]domain.Reaction, error) {
	return s.list(ctx,
		`SELECT `+reactionColumns+` FROM reactions WHERE item_id = $1 ORDER BY reacted_at DESC, user_id COLLATE "C"`,
		itemID)
}

func (s *ReactionStore) StatsForItem(ctx context.Context, itemID string) (domain.Stats, error) {
	var stats domain.Stats
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FILTER (WHERE reaction = 1),
		       count(*) FILTER (WHERE reaction = 2),
		       count(*) FILTER (WHERE reaction = 3),
		       count(*)
		FROM reactions WHERE item_id = $1`, itemID).
		Scan(&stats.Likes, &stats.Loves, &stats.Hates, &stats.Total)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("failed to aggregate reactions: %w", err)
	}
	return stats, nil
}

func (s *ReactionStore) ListAll(ctx context.Context) ([]domain.Reaction, error) {
	return s.list(ctx,
		`SELECT `+reactionColumns+` FROM reactions ORDER BY item_id COLLATE "C", reacted_at DESC, user_id COLLATE "C"`)
}

func (s *ReactionStore) list(ctx context.Context, sql string, args ...any) ([]domain.Reaction, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reactions: %w", err)
	}
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[reactionRow])
	if err != nil {
		return nil, fmt.Errorf("failed to scan reactions: %w", err)
	}

	reactions := make([]domain.Reaction, 0, len(collected))
	for _, row := range collected {
		reactions = append(reactions, row.toDomain())
	}
	return reactions, nil
}

// HealthCheck pings the pool.
func (s *ReactionStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
