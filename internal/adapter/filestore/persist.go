package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pscheid92/likelovehate/internal/domain"
)

// record mirrors one value of the on-disk document. Timestamp stays a string
// so entries written without a zone offset still load.
type record struct {
	ItemID    string `json:"ItemId"`
	UserID    string `json:"UserId"`
	Reaction  int    `json:"Reaction"`
	Timestamp string `json:"Timestamp"`
	UserName  string `json:"UserName"`
}

// zoneless layouts are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
}

// load reads the document at path. A missing file is an empty store. An
// unparseable top-level document is an error. Entries that do not decode to
// a valid reaction are skipped and counted in dropped.
func load(path string) (reactions map[domain.PairID]domain.Reaction, dropped int, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[domain.PairID]domain.Reaction{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read data file: %w", err)
	}
	if len(data) == 0 {
		return map[domain.PairID]domain.Reaction{}, 0, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("failed to parse data file: %w", err)
	}

	reactions = make(map[domain.PairID]domain.Reaction, len(raw))
	for _, value := range raw {
		r, ok := decodeRecord(value)
		if !ok {
			dropped++
			continue
		}
		// Re-keying may collide when a stale key pointed at another pair; newest wins.
		if existing, found := reactions[r.ID()]; found && existing.Timestamp.After(r.Timestamp) {
			continue
		}
		reactions[r.ID()] = r
	}
	return reactions, dropped, nil
}

func decodeRecord(value json.RawMessage) (domain.Reaction, bool) {
	var rec record
	if err := json.Unmarshal(value, &rec); err != nil {
		return domain.Reaction{}, false
	}
	if rec.ItemID == "" || rec.UserID == "" {
		return domain.Reaction{}, false
	}
	kind, err := domain.ParseReactionKind(rec.Reaction)
	if err != nil {
		return domain.Reaction{}, false
	}
	ts, ok := parseTimestamp(rec.Timestamp)
	if !ok {
		return domain.Reaction{}, false
	}
	if rec.UserName == "" {
		rec.UserName = domain.DefaultUserName
	}
	return domain.Reaction{
		ItemID:    rec.ItemID,
		UserID:    rec.UserID,
		Kind:      kind,
		Timestamp: ts,
		UserName:  rec.UserName,
	}, true
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// save writes the document next to the target and renames it into place, so
// a crash mid-write leaves the previous document intact.
func save(path string, reactions map[domain.PairID]domain.Reaction) error {
	data, err := json.MarshalIndent(document(reactions), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode reactions: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}

// document keys every reaction as "<itemId>_<userId>". Pairs whose keys
// collide (ids containing underscores) get a "#n" suffix; load ignores keys
// and re-derives identity from the entry fields.
func document(reactions map[domain.PairID]domain.Reaction) map[string]domain.Reaction {
	ids := make([]domain.PairID, 0, len(reactions))
	for id := range reactions {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b domain.PairID) int {
		if c := strings.Compare(a.ItemID, b.ItemID); c != 0 {
			return c
		}
		return strings.Compare(a.UserID, b.UserID)
	})

	doc := make(map[string]domain.Reaction, len(reactions))
	for _, id := range ids {
		key := domain.ReactionKey(id.ItemID, id.UserID)
		for n := 2; ; n++ {
			if _, taken := doc[key]; !taken {
				break
			}
			key = domain.ReactionKey(id.ItemID, id.UserID) + "#" + strconv.Itoa(n)
		}
		doc[key] = reactions[id]
	}
	return doc
}

// backup copies the document at path to dst. A missing document is not an error.
func backup(path, dst string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read data file: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return false, fmt.Errorf("failed to write backup: %w", err)
	}
	return true, nil
}
