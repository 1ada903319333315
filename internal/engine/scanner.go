package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"eve-marketscan/internal/logger"
)

const (
	// DefaultMaxResults is the default number of results returned when not specified.
	DefaultMaxResults = 100
)

// EffectiveMaxResults returns the max results limit, using defaultVal if v <= 0.
func EffectiveMaxResults(v int, defaultVal int) int {
	if v <= 0 {
		return defaultVal
	}
	return v
}

// CollectOptions controls how a location's data is obtained and persisted.
type CollectOptions struct {
	LedgerBase          string // base datapoint path; "" disables ledger persistence
	DatapointMax        int
	LoadDatapoints      bool // load the saved ledger before collecting; when false the ledger is never saved
	ItemsFromDatapoints bool // skip the live fetch when the saved ledger loaded
}

// Collection is the outcome of collecting one location.
type Collection struct {
	Market         *StationMarket
	Fetch          FetchResult
	LedgerLoaded   bool
	FromDatapoints bool
	LedgerPath     string

	// ledgerRead is set when the saved ledger was loaded or does not exist yet.
	ledgerRead bool
}

// Persist appends the current store to the ledger and saves it. Stores rebuilt
// from datapoints are not appended again. A ledger that was never read from
// LedgerPath is not saved.
func (c *Collection) Persist() error {
	if c.LedgerPath == "" {
		return nil
	}
	if !c.ledgerRead {
		logger.Warn("LEDGER", fmt.Sprintf("%s: datapoints not loaded, leaving %s untouched", c.Market.Location(), c.LedgerPath))
		return nil
	}
	if !c.FromDatapoints {
		n := c.Market.AddCurrentToDatapoints()
		logger.Info("LEDGER", fmt.Sprintf("Added datapoint for %d items at %s", n, c.Market.Location()))
	}
	return SaveLedger(c.LedgerPath, c.Market.Ledger())
}

// Scanner orchestrates collection across locations. Concurrent requests for
// the same location within one Scanner share a single collection.
type Scanner struct {
	Fetcher *BulkFetcher
	TypeIDs []int32
	Options CollectOptions

	group       singleflight.Group
	mu          sync.Mutex
	collections map[int64]*Collection
}

// NewScanner creates a Scanner over the given type ID universe.
func NewScanner(fetcher *BulkFetcher, typeIDs []int32, opts CollectOptions) *Scanner {
	if opts.DatapointMax <= 0 {
		opts.DatapointMax = DefaultDatapointMax
	}
	return &Scanner{
		Fetcher:     fetcher,
		TypeIDs:     typeIDs,
		Options:     opts,
		collections: make(map[int64]*Collection),
	}
}

// Collect returns the collection for loc, fetching it on first use.
func (s *Scanner) Collect(ctx context.Context, loc Location, progress func(string)) *Collection {
	key := strconv.FormatInt(loc.ID, 10)
	v, _, _ := s.group.Do(key, func() (interface{}, error) {
		s.mu.Lock()
		if c, ok := s.collections[loc.ID]; ok {
			s.mu.Unlock()
			return c, nil
		}
		s.mu.Unlock()

		started := time.Now()
		c := s.collect(ctx, loc, progress)
		logger.Timed("SCAN", fmt.Sprintf("Collect %s", loc), started)

		s.mu.Lock()
		s.collections[loc.ID] = c
		s.mu.Unlock()
		return c, nil
	})
	return v.(*Collection)
}

func (s *Scanner) collect(ctx context.Context, loc Location, progress func(string)) *Collection {
	if progress == nil {
		progress = func(string) {}
	}
	c := &Collection{LedgerPath: LedgerPath(s.Options.LedgerBase, loc.ID)}

	ledger := NewHistoryLedger(s.Options.DatapointMax)
	if s.Options.LoadDatapoints && c.LedgerPath != "" {
		ledger, c.LedgerLoaded = LoadLedger(c.LedgerPath, s.Options.DatapointMax)
		c.ledgerRead = c.LedgerLoaded || ledgerMissing(c.LedgerPath)
	}
	c.Market = NewStationMarket(loc, ledger)

	if s.Options.ItemsFromDatapoints {
		if c.LedgerLoaded && c.Market.LoadFromDatapoints() {
			c.FromDatapoints = true
			logger.Info("SCAN", fmt.Sprintf("%s: rebuilt %d items from datapoints", loc, c.Market.Store().Len()))
			return c
		}
		logger.Warn("SCAN", fmt.Sprintf("%s: no usable datapoints, fetching live prices", loc))
	}

	progress(fmt.Sprintf("Collecting prices for %s...", loc))
	c.Fetch = s.Fetcher.Fetch(ctx, loc.ID, s.TypeIDs, progress)
	n := c.Market.SetItems(c.Fetch.Items)
	logger.Success("SCAN", fmt.Sprintf("%s: collected valid price data for %d items (%d raw, %d requests, %s)",
		loc, n, len(c.Fetch.Items), c.Fetch.Chunks, c.Fetch.Duration.Round(time.Millisecond)))
	return c
}

// Sweep collects self and every other location concurrently and returns the
// arbitrage records of self against each other location.
func (s *Scanner) Sweep(ctx context.Context, self Location, others []Location, anomalyFactor float64, progress func(string)) ([]ArbitrageRecord, []*Collection) {
	locs := append([]Location{self}, others...)
	cols := make([]*Collection, len(locs))

	var g errgroup.Group
	for i, loc := range locs {
		g.Go(func() error {
			cols[i] = s.Collect(ctx, loc, progress)
			return nil
		})
	}
	g.Wait()

	records := []ArbitrageRecord{}
	home := cols[0].Market
	seen := map[int64]bool{self.ID: true}
	for _, c := range cols[1:] {
		id := c.Market.Location().ID
		if seen[id] {
			continue
		}
		seen[id] = true
		found := home.CompareMarket(c.Market, anomalyFactor)
		logger.Info("SCAN", fmt.Sprintf("%s ↔ %s: %d opportunities", self, c.Market.Location(), len(found)))
		records = append(records, found...)
	}
	return records, cols
}

func ledgerMissing(path string) bool {
	_, err := os.Stat(path)
	return errors.Is(err, fs.ErrNotExist)
}

// sanitizeFloat replaces NaN/Inf with 0 so derived figures always sort and encode.
func sanitizeFloat(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
