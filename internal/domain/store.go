package domain

import "context"

// ReactionStore owns the mapping from (item, user) to Reaction.
// Implementations: JSON file (default), PostgreSQL, Redis.
type ReactionStore interface {
	SetReaction(ctx context.Context, itemID, userID string, kind ReactionKind, userName string) error
	// GetReaction reports false when the user has no reaction on the item.
	GetReaction(ctx context.Context, itemID, userID string) (Reaction, bool, error)
	// DeleteReaction is a no-op when nothing is stored for the pair.
	DeleteReaction(ctx context.Context, itemID, userID string) error
	ListForItem(ctx context.Context, itemID string) ([]Reaction, error)
	StatsForItem(ctx context.Context, itemID string) (Stats, error)
	ListAll(ctx context.Context) ([]Reaction, error)
}
