package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"eve-marketscan/internal/logger"
)

// HistoryLedger keeps, per type ID, the most recent snapshots (datapoints)
// oldest first. It outlives any single PriceStore and is persisted between runs.
type HistoryLedger struct {
	max    int
	points map[int32][]Snapshot
}

// NewHistoryLedger creates an empty ledger keeping at most max datapoints per item.
func NewHistoryLedger(max int) *HistoryLedger {
	if max < 1 {
		max = 1
	}
	return &HistoryLedger{max: max, points: make(map[int32][]Snapshot)}
}

// Max returns the datapoint limit per item.
func (l *HistoryLedger) Max() int { return l.max }

// Len returns the number of items with history.
func (l *HistoryLedger) Len() int { return len(l.points) }

// Append adds snap at the tail of typeID's history, first evicting from the
// head until there is room. Loaded histories may be longer than the current
// limit, hence the loop.
func (l *HistoryLedger) Append(typeID int32, snap Snapshot) {
	seq, ok := l.points[typeID]
	if !ok {
		l.points[typeID] = []Snapshot{snap.Clone()}
		return
	}
	for len(seq) >= l.max {
		seq = seq[1:]
	}
	next := make([]Snapshot, len(seq), len(seq)+1)
	copy(next, seq)
	l.points[typeID] = append(next, snap.Clone())
}

// AppendCurrent adds every snapshot in store as a new datapoint and returns how many were added.
func (l *HistoryLedger) AppendCurrent(store *PriceStore) int {
	if store == nil {
		return 0
	}
	for typeID, snap := range store.items {
		l.Append(typeID, snap)
	}
	return len(store.items)
}

// History returns a copy of typeID's datapoints, oldest first.
func (l *HistoryLedger) History(typeID int32) []Snapshot {
	seq := l.points[typeID]
	out := make([]Snapshot, len(seq))
	for i, s := range seq {
		out[i] = s.Clone()
	}
	return out
}

// LatestSnapshot returns the newest datapoint for typeID.
func (l *HistoryLedger) LatestSnapshot(typeID int32) (Snapshot, bool) {
	seq := l.points[typeID]
	if len(seq) == 0 {
		return Snapshot{}, false
	}
	return seq[len(seq)-1].Clone(), true
}

// LatestStore rebuilds a PriceStore from the newest datapoint of every item,
// for runs that skip the live fetch.
func (l *HistoryLedger) LatestStore(locationID int64, locationName string) *PriceStore {
	raw := make(map[int32]Snapshot, len(l.points))
	for typeID, seq := range l.points {
		if len(seq) > 0 {
			raw[typeID] = seq[len(seq)-1]
		}
	}
	return NewPriceStore(locationID, locationName, raw)
}

// TypeIDs returns the items with history in ascending order.
func (l *HistoryLedger) TypeIDs() []int32 {
	ids := make([]int32, 0, len(l.points))
	for id := range l.points {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SaveLedger writes the ledger as indented JSON with sorted keys. The file is
// replaced atomically.
func SaveLedger(path string, l *HistoryLedger) error {
	logger.Info("LEDGER", "Saving datapoints...")
	data, err := json.MarshalIndent(l.points, "", "    ")
	if err != nil {
		return fmt.Errorf("encode datapoints: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create datapoint dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write datapoints: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace datapoints: %w", err)
	}
	logger.Success("LEDGER", fmt.Sprintf("Saved datapoints for %d items", len(l.points)))
	return nil
}

// LoadLedger reads a ledger saved by SaveLedger. A missing, unreadable or
// corrupt file yields an empty ledger and ok=false so the caller can decide
// to fetch live data instead.
func LoadLedger(path string, max int) (*HistoryLedger, bool) {
	l := NewHistoryLedger(max)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("LEDGER", fmt.Sprintf("Cannot read datapoints %s: %v", path, err))
		return l, false
	}
	points := make(map[int32][]Snapshot)
	if err := json.Unmarshal(data, &points); err != nil {
		logger.Warn("LEDGER", fmt.Sprintf("Corrupt datapoints %s: %v", path, err))
		return l, false
	}
	for typeID, seq := range points {
		if len(seq) > 0 {
			l.points[typeID] = seq
		}
	}
	logger.Success("LEDGER", fmt.Sprintf("Loaded datapoints for %d items", len(l.points)))
	return l, true
}
