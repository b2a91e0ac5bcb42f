package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/likelovehate/internal/adapter/metrics"
	"github.com/pscheid92/likelovehate/internal/domain"
)

// sharedReadTimeout bounds a collapsed item read, which no longer follows any
// single caller's context.
const sharedReadTimeout = 10 * time.Second

// ReactRequest is a set-reaction call as received from a client. Reaction is
// the raw wire code and is validated here.
type ReactRequest struct {
	ItemID   string
	UserID   string
	Reaction int
	UserName string
}

type Service struct {
	store       domain.ReactionStore
	colors      domain.ReactionColors
	activityLog bool
	metrics     *metrics.ReactionMetrics

	itemReads singleflight.Group
}

// NewService wires the service. m may be nil.
func NewService(store domain.ReactionStore, colors domain.ReactionColors, activityLog bool, m *metrics.ReactionMetrics) *Service {
	return &Service{
		store:       store,
		colors:      colors,
		activityLog: activityLog,
		metrics:     m,
	}
}

// React creates or replaces the caller's reaction on an item.
func (s *Service) React(ctx context.Context, req ReactRequest) error {
	if req.ItemID == "" || req.UserID == "" {
		return domain.ErrMissingIdentifier
	}
	kind, err := domain.ParseReactionKind(req.Reaction)
	if err != nil {
		return err
	}
	userName := req.UserName
	if userName == "" {
		userName = domain.DefaultUserName
	}

	if err := s.store.SetReaction(ctx, req.ItemID, req.UserID, kind, userName); err != nil {
		return fmt.Errorf("failed to save reaction: %w", err)
	}
	s.itemReads.Forget(req.ItemID)

	s.metrics.Set(kind)
	if s.activityLog {
		slog.InfoContext(ctx, "Reaction saved",
			"user_name", userName,
			"user_id", req.UserID,
			"action", kind.Verb(),
			"item_id", req.ItemID)
	}
	return nil
}

// GetItemReactions returns all reactions on an item, newest first, with
// counts. An unknown item yields an empty list and zero counts.
// Concurrent reads of the same item share one store call; callers must not
// mutate the result. A read never joins a call that started before a
// completed React or DeleteReaction on the same item.
func (s *Service) GetItemReactions(ctx context.Context, itemID string) (*domain.ItemReactions, error) {
	v, err, _ := s.itemReads.Do(itemID, func() (any, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()

		reactions, err := s.store.ListForItem(readCtx, itemID)
		if err != nil {
			return nil, err
		}
		if reactions == nil {
			reactions = []domain.Reaction{}
		}
		return &domain.ItemReactions{
			ItemID:    itemID,
			Reactions: reactions,
			Stats:     domain.ComputeStats(reactions),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reactions: %w", err)
	}
	return v.(*domain.ItemReactions), nil
}

// GetMyReaction looks up one user's reaction. false means no reaction.
func (s *Service) GetMyReaction(ctx context.Context, itemID, userID string) (domain.Reaction, bool, error) {
	if itemID == "" || userID == "" {
		return domain.Reaction{}, false, domain.ErrMissingIdentifier
	}
	r, ok, err := s.store.GetReaction(ctx, itemID, userID)
	if err != nil {
		return domain.Reaction{}, false, fmt.Errorf("failed to get reaction: %w", err)
	}
	return r, ok, nil
}

// DeleteReaction removes the user's reaction; succeeds whether or not one existed.
func (s *Service) DeleteReaction(ctx context.Context, itemID, userID string) error {
	if itemID == "" || userID == "" {
		return domain.ErrMissingIdentifier
	}
	if err := s.store.DeleteReaction(ctx, itemID, userID); err != nil {
		return fmt.Errorf("failed to delete reaction: %w", err)
	}
	s.itemReads.Forget(itemID)

	s.metrics.Deleted()
	if s.activityLog {
		slog.InfoContext(ctx, "Reaction removed", "user_id", userID, "item_id", itemID)
	}
	return nil
}

// ExportAll renders every stored reaction as an indented JSON array.
func (s *Service) ExportAll(ctx context.Context) ([]byte, error) {
	reactions, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list reactions: %w", err)
	}
	if reactions == nil {
		reactions = []domain.Reaction{}
	}
	data, err := json.MarshalIndent(reactions, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return data, nil
}

func (s *Service) Colors() domain.ReactionColors {
	return s.colors
}
