// Package leaderboard maintains the ordered spend index derived from member
// records.
package leaderboard

import (
	"sort"
	"sync"

	"github.com/VanityClub/membership_layer/internal/app/domain/member"
)

// Index is an in-process ordered view over member records, ranked by
// cumulative spend descending with earlier-updated entries winning ties.
// Upserts are applied atomically with respect to readers.
type Index struct {
	mu      sync.RWMutex
	entries []member.LeaderboardEntry
	pos     map[string]int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{pos: make(map[string]int)}
}

// Reload replaces the index contents from a full set of records.
func (i *Index) Reload(records []member.Record) {
	entries := make([]member.LeaderboardEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, member.EntryOf(rec))
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries = entries
	i.resortLocked()
}

// Upsert replaces or inserts the entry for its user and re-sorts.
func (i *Index) Upsert(entry member.LeaderboardEntry) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if idx, ok := i.pos[entry.UserRef]; ok {
		i.entries[idx] = entry
	} else {
		i.entries = append(i.entries, entry)
	}
	i.resortLocked()
}

// Page returns the entries at [offset, offset+limit), ranks filled in.
func (i *Index) Page(offset, limit int) []member.LeaderboardEntry {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(i.entries) || limit <= 0 {
		return []member.LeaderboardEntry{}
	}
	end := offset + limit
	if end > len(i.entries) {
		end = len(i.entries)
	}

	out := make([]member.LeaderboardEntry, end-offset)
	copy(out, i.entries[offset:end])
	return out
}

// RankOf returns the 1-based rank of a user, or 0 when absent.
func (i *Index) RankOf(userRef string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if idx, ok := i.pos[userRef]; ok {
		return idx + 1
	}
	return 0
}

// Entry returns the ranked entry for a user.
func (i *Index) Entry(userRef string) (member.LeaderboardEntry, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	idx, ok := i.pos[userRef]
	if !ok {
		return member.LeaderboardEntry{}, false
	}
	return i.entries[idx], true
}

// Len returns the number of ranked users.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

func (i *Index) resortLocked() {
	sort.SliceStable(i.entries, func(a, b int) bool {
		ea, eb := i.entries[a], i.entries[b]
		if ea.CumulativeSpendMinorUnits != eb.CumulativeSpendMinorUnits {
			return ea.CumulativeSpendMinorUnits > eb.CumulativeSpendMinorUnits
		}
		if !ea.UpdatedAt.Equal(eb.UpdatedAt) {
			return ea.UpdatedAt.Before(eb.UpdatedAt)
		}
		return ea.UserRef < eb.UserRef
	})

	i.pos = make(map[string]int, len(i.entries))
	for idx := range i.entries {
		i.entries[idx].Rank = idx + 1
		i.pos[i.entries[idx].UserRef] = idx
	}
}
