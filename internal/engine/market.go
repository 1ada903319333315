package engine

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultDatapointMax is used when a ledger is created without a configured limit.
const DefaultDatapointMax = 10

// Location identifies a trading location (station or region).
type Location struct {
	ID   int64
	Name string
}

// String returns the name, falling back to the numeric ID.
func (l Location) String() string {
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("%d", l.ID)
}

// StationMarket owns the current PriceStore and the HistoryLedger of one location.
type StationMarket struct {
	loc    Location
	store  *PriceStore
	ledger *HistoryLedger
}

// NewStationMarket creates a market with an empty store. A nil ledger is
// replaced by an empty one with the default limit.
func NewStationMarket(loc Location, ledger *HistoryLedger) *StationMarket {
	if ledger == nil {
		ledger = NewHistoryLedger(DefaultDatapointMax)
	}
	return &StationMarket{
		loc:    loc,
		store:  NewPriceStore(loc.ID, loc.String(), nil),
		ledger: ledger,
	}
}

func (m *StationMarket) Location() Location     { return m.loc }
func (m *StationMarket) Store() *PriceStore     { return m.store }
func (m *StationMarket) Ledger() *HistoryLedger { return m.ledger }

// SetItems replaces the current store with the valid subset of raw and
// returns the number of retained items.
func (m *StationMarket) SetItems(raw map[int32]Snapshot) int {
	m.store = NewPriceStore(m.loc.ID, m.loc.String(), raw)
	return m.store.Len()
}

// LoadFromDatapoints rebuilds the current store from the newest datapoints.
// It reports false when the ledger has nothing to offer.
func (m *StationMarket) LoadFromDatapoints() bool {
	if m.ledger.Len() == 0 {
		return false
	}
	m.store = m.ledger.LatestStore(m.loc.ID, m.loc.String())
	return true
}

// AddCurrentToDatapoints appends the current store to the ledger.
func (m *StationMarket) AddCurrentToDatapoints() int {
	return m.ledger.AppendCurrent(m.store)
}

// CompareMarket returns arbitrage records between this market and other.
func (m *StationMarket) CompareMarket(other *StationMarket, anomalyFactor float64) []ArbitrageRecord {
	return FindArbitrage(m.store, other.store, anomalyFactor)
}

// Margins ranks the current store for same-station trading.
func (m *StationMarket) Margins(fees Fees) []MarginCandidate {
	return RankMargins(m.store, fees)
}

// LedgerPath derives a per-location datapoint file from base by inserting
// the location ID before the extension: saves/datapoints.save → saves/datapoints-60003760.save.
func LedgerPath(base string, locationID int64) string {
	if base == "" {
		return ""
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s-%d%s", stem, locationID, ext)
}
