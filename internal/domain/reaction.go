package domain

import (
	"cmp"
	"slices"
	"time"
)

// ReactionKind is the sentiment a user attached to an item.
// The zero value is not a valid kind and is never persisted.
type ReactionKind int

const (
	ReactionLike ReactionKind = iota + 1
	ReactionLove
	ReactionHate
)

// DefaultUserName is stored when the caller supplies no display name.
const DefaultUserName = "Unknown"

// ParseReactionKind converts the wire code (1=Like, 2=Love, 3=Hate) to a ReactionKind.
func ParseReactionKind(code int) (ReactionKind, error) {
	kind := ReactionKind(code)
	if !kind.Valid() {
		return 0, ErrInvalidReaction
	}
	return kind, nil
}

func (k ReactionKind) Valid() bool {
	return k >= ReactionLike && k <= ReactionHate
}

func (k ReactionKind) String() string {
	switch k {
	case ReactionLike:
		return "Like"
	case ReactionLove:
		return "Love"
	case ReactionHate:
		return "Hate"
	default:
		return "None"
	}
}

// Verb is the past-tense action used in activity log lines.
func (k ReactionKind) Verb() string {
	switch k {
	case ReactionLike:
		return "liked"
	case ReactionLove:
		return "loved"
	case ReactionHate:
		return "disliked"
	default:
		return "reacted to"
	}
}

// Reaction is one user's reaction to one item.
// JSON field names match the persisted document layout.
type Reaction struct {
	ItemID    string       `json:"ItemId"`
	UserID    string       `json:"UserId"`
	Kind      ReactionKind `json:"Reaction"`
	Timestamp time.Time    `json:"Timestamp"`
	UserName  string       `json:"UserName"`
}

// PairID identifies the single reaction a user may hold on an item.
type PairID struct {
	ItemID string
	UserID string
}

// ID returns the (item, user) identity of the reaction.
func (r Reaction) ID() PairID {
	return PairID{ItemID: r.ItemID, UserID: r.UserID}
}

// Key returns the document key of the reaction.
func (r Reaction) Key() string {
	return ReactionKey(r.ItemID, r.UserID)
}

// ReactionKey derives the "<itemId>_<userId>" document key. It is not unique
// when ids contain underscores; use PairID for identity.
func ReactionKey(itemID, userID string) string {
	return itemID + "_" + userID
}

// Stats are per-item counts, recomputed from the live records on every read.
type Stats struct {
	Likes int `json:"likes"`
	Loves int `json:"loves"`
	Hates int `json:"hates"`
	Total int `json:"total"`
}

// ItemReactions is the aggregate view of a single item.
type ItemReactions struct {
	ItemID    string
	Reactions []Reaction
	Stats     Stats
}

// ComputeStats counts the kinds in reactions. Total is the record count.
func ComputeStats(reactions []Reaction) Stats {
	var stats Stats
	for _, r := range reactions {
		switch r.Kind {
		case ReactionLike:
			stats.Likes++
		case ReactionLove:
			stats.Loves++
		case ReactionHate:
			stats.Hates++
		}
	}
	stats.Total = len(reactions)
	return stats
}

// SortNewestFirst orders reactions by timestamp descending, ties by user ID.
func SortNewestFirst(reactions []Reaction) {
	slices.SortStableFunc(reactions, func(a, b Reaction) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
}

// SortForExport orders reactions by item, then newest first within an item.
func SortForExport(reactions []Reaction) {
	slices.SortStableFunc(reactions, func(a, b Reaction) int {
		if c := cmp.Compare(a.ItemID, b.ItemID); c != 0 {
			return c
		}
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
}

// ReactionColors are the presentation colors handed to the web client.
type ReactionColors struct {
	Like string `json:"likeColor"`
	Love string `json:"loveColor"`
	Hate string `json:"hateColor"`
}
