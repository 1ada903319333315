package engine

import (
	"math"
	"sort"
)

// PriceStore is the validated set of current snapshots for one location and
// one collection cycle. It is never mutated after construction.
type PriceStore struct {
	locationID   int64
	locationName string
	items        map[int32]Snapshot
}

// NewPriceStore filters raw snapshots and builds a store from the survivors.
func NewPriceStore(locationID int64, locationName string, raw map[int32]Snapshot) *PriceStore {
	items := make(map[int32]Snapshot, len(raw))
	for typeID, snap := range raw {
		if !ValidSnapshot(snap) {
			continue
		}
		items[typeID] = snap.Clone()
	}
	return &PriceStore{
		locationID:   locationID,
		locationName: locationName,
		items:        items,
	}
}

// ValidSnapshot reports whether a snapshot may enter a PriceStore.
//
// Aggregate snapshots need both sides: they are rejected when neither side has
// volume, and when the best bid or best ask is zero. Quote snapshots have no
// depth figures, so only the prices of the sides they report are checked.
func ValidSnapshot(s Snapshot) bool {
	if !sideFinite(s.Buy) || !sideFinite(s.Sell) {
		return false
	}
	if s.Source == SourceQuote {
		if s.Buy == nil && s.Sell == nil {
			return false
		}
		if s.Buy != nil && s.Buy.Max == 0 {
			return false
		}
		if s.Sell != nil && s.Sell.Min == 0 {
			return false
		}
		return true
	}

	var buy, sell Side
	if s.Buy != nil {
		buy = *s.Buy
	}
	if s.Sell != nil {
		sell = *s.Sell
	}
	if buy.Volume == 0 && sell.Volume == 0 {
		return false
	}
	if buy.Max == 0 || sell.Min == 0 {
		return false
	}
	return true
}

func sideFinite(s *Side) bool {
	if s == nil {
		return true
	}
	for _, v := range [...]float64{s.Max, s.Min, s.Median, s.Volume, s.OrderCount} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return true
}

// LocationID returns the location the store was collected for.
func (p *PriceStore) LocationID() int64 { return p.locationID }

// LocationName returns the display name of the location.
func (p *PriceStore) LocationName() string { return p.locationName }

// Len returns the number of retained items.
func (p *PriceStore) Len() int { return len(p.items) }

// Get returns the snapshot for typeID.
func (p *PriceStore) Get(typeID int32) (Snapshot, bool) {
	s, ok := p.items[typeID]
	if !ok {
		return Snapshot{}, false
	}
	return s.Clone(), true
}

// All returns a copy of every retained snapshot.
func (p *PriceStore) All() map[int32]Snapshot {
	out := make(map[int32]Snapshot, len(p.items))
	for id, s := range p.items {
		out[id] = s.Clone()
	}
	return out
}

// TypeIDs returns the retained type IDs in ascending order.
func (p *PriceStore) TypeIDs() []int32 {
	ids := make([]int32, 0, len(p.items))
	for id := range p.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
