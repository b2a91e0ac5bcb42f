package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/likelovehate/internal/domain"
)

var _ domain.ReactionStore = (*ReactionStore)(nil)

const (
	itemKeyPrefix = "llh:item:"
	itemsKey      = "llh:items"
)

func itemKey(itemID string) string {
	return itemKeyPrefix + itemID
}

// deleteScript removes a user's field and drops the item from the index once
// its hash is empty. Running it server-side keeps the index consistent with a
// concurrent SetReaction.
var deleteScript = goredis.NewScript(`
redis.call('HDEL', KEYS[1], ARGV[1])
if redis.call('HLEN', KEYS[1]) == 0 then
  redis.call('SREM', KEYS[2], ARGV[2])
end
return 1
`)

type ReactionStore struct {
	rdb   *goredis.Client
	clock clockwork.Clock
}

func NewReactionStore(rdb *goredis.Client, clock clockwork.Clock) *ReactionStore {
	return &ReactionStore{rdb: rdb, clock: clock}
}

func (s *ReactionStore) SetReaction(ctx context.Context, itemID, userID string, kind domain.ReactionKind, userName string) error {
	data, err := json.Marshal(domain.Reaction{
		ItemID:    itemID,
		UserID:    userID,
		Kind:      kind,
		Timestamp: s.clock.Now().UTC(),
		UserName:  userName,
	})
	if err != nil {
		return fmt.Errorf("failed to encode reaction: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, itemKey(itemID), userID, data)
		pipe.SAdd(ctx, itemsKey, itemID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store reaction: %w", err)
	}
	return nil
}

func (s *ReactionStore) GetReaction(ctx context.Context, itemID, userID string) (domain.Reaction, bool, error) {
	data, err := s.rdb.HGet(ctx, itemKey(itemID), userID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Reaction{}, false, nil
	}
	if err != nil {
		return domain.Reaction{}, false, fmt.Errorf("failed to get reaction: %w", err)
	}

	var r domain.Reaction
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.Reaction{}, false, fmt.Errorf("failed to decode reaction %s: %w", domain.ReactionKey(itemID, userID), err)
	}
	return r, true, nil
}

func (s *ReactionStore) DeleteReaction(ctx context.Context, itemID, userID string) error {
	err := deleteScript.Run(ctx, s.rdb, []string{itemKey(itemID), itemsKey}, userID, itemID).Err()
	if err != nil {
		return fmt.Errorf("failed to delete reaction: %w", err)
	}
	return nil
}

func (s *ReactionStore) ListForItem(ctx context.Context, itemID string) ([]domain.Reaction, error) {
	values, err := s.rdb.HVals(ctx, itemKey(itemID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list reactions: %w", err)
	}

	reactions, err := decodeAll(values)
	if err != nil {
		return nil, err
	}
	domain.SortNewestFirst(reactions)
	return reactions, nil
}

func (s *ReactionStore) StatsForItem(ctx context.Context, itemID string) (domain.Stats, error) {
	reactions, err := s.ListForItem(ctx, itemID)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.ComputeStats(reactions), nil
}

func (s *ReactionStore) ListAll(ctx context.Context) ([]domain.Reaction, error) {
	itemIDs, err := s.rdb.SMembers(ctx, itemsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	if len(itemIDs) == 0 {
		return []domain.Reaction{}, nil
	}

	cmds := make([]*goredis.StringSliceCmd, len(itemIDs))
	_, err = s.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, itemID := range itemIDs {
			cmds[i] = pipe.HVals(ctx, itemKey(itemID))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reactions: %w", err)
	}

	var reactions []domain.Reaction
	for _, cmd := range cmds {
		decoded, err := decodeAll(cmd.Val())
		if err != nil {
			return nil, err
		}
		reactions = append(reactions, decoded...)
	}
	domain.SortForExport(reactions)
	return reactions, nil
}

// HealthCheck pings the server.
func (s *ReactionStore) HealthCheck(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func decodeAll(values []string) ([]domain.Reaction, error) {
	reactions := make([]domain.Reaction, 0, len(values))
	for _, v := range values {
		var r domain.Reaction
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, fmt.Errorf("failed to decode reaction: %w", err)
		}
		reactions = append(reactions, r)
	}
	return reactions, nil
}
