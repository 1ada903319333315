package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"eve-marketscan/internal/config"
	"eve-marketscan/internal/db"
	"eve-marketscan/internal/engine"
	"eve-marketscan/internal/logger"
	"eve-marketscan/internal/marketapi"
	"eve-marketscan/internal/metrics"
	"eve-marketscan/internal/sde"
)

const (
	sourceAggregates = "aggregates"
	sourceQuotes     = "quotes"
)

// app holds everything a price command needs for one invocation.
type app struct {
	cfg       *config.Config
	source    string
	types     *sde.Types
	locations *sde.Locations
	db        *db.DB
	metrics   *metrics.FetchCollector
	scanner   *engine.Scanner
	server    *http.Server
}

// loadConfig reads the configuration and applies the log level.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.LogLevel)
	if opts.verbose {
		logger.SetLevel("debug")
	}
	return cfg, nil
}

// newPriceSource selects the endpoint variant named by source.
func newPriceSource(source string, client *marketapi.Client) (engine.PriceSource, error) {
	switch source {
	case sourceAggregates:
		return marketapi.Aggregates{Client: client}, nil
	case sourceQuotes:
		return marketapi.Quotes{Client: client}, nil
	default:
		return nil, fmt.Errorf("unknown source %q (want %s or %s)", source, sourceAggregates, sourceQuotes)
	}
}

// newApp loads configuration and directories, opens the run archive and
// builds the scanner.
func newApp(opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	client := marketapi.NewClient(marketapi.Options{
		AggregatesURL:     cfg.AggregatesURL,
		QuotesURL:         cfg.QuotesURL,
		CharName:          cfg.CharName,
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	source, err := newPriceSource(opts.source, client)
	if err != nil {
		return nil, err
	}

	data, err := sde.Load(cfg.TypeIDsPath, cfg.LocationsPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		source:    opts.source,
		types:     data.Types,
		locations: data.Locations,
		metrics:   metrics.NewFetchCollector(),
	}

	if cfg.DatabasePath != "" {
		database, err := db.Open(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		a.db = database
	}

	if opts.metricsAddr != "" {
		a.server = &http.Server{Addr: opts.metricsAddr, Handler: a.metrics.Handler()}
		go func() {
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("METRICS", fmt.Sprintf("Server failed: %v", err))
			}
		}()
		logger.Info("METRICS", fmt.Sprintf("Serving fetch metrics on %s/metrics", opts.metricsAddr))
	}

	fetcher := engine.NewBulkFetcher(source, engine.FetchOptions{
		ChunkSize: cfg.ChunkSize(),
		Workers:   cfg.ProcessCount,
		Retries:   cfg.RequestRetryCount,
		Timeout:   cfg.RequestTimeout,
		MaxChunks: cfg.ChunkLimit(),
	}, a.metrics)
	if cfg.RequestDebug {
		logger.Warn("FETCH", fmt.Sprintf("Request debug mode: %d ids per request, first %d requests only", cfg.ChunkSize(), cfg.ChunkLimit()))
	}

	a.scanner = engine.NewScanner(fetcher, a.types.IDList(), engine.CollectOptions{
		LedgerBase:          cfg.DatapointFile,
		DatapointMax:        cfg.DatapointMax,
		LoadDatapoints:      cfg.LoadDatapoints,
		ItemsFromDatapoints: cfg.LoadItemsFromDatapoints,
	})
	return a, nil
}

// close logs the fetch summary and releases the archive and metrics server.
func (a *app) close() {
	if s, err := a.metrics.Summary(); err == nil && s.Total() > 0 {
		logger.Section("Fetch Statistics")
		logger.Stats("Requests", s.Total())
		for _, outcome := range []string{engine.OutcomeOK, engine.OutcomeTimeout, engine.OutcomeError} {
			if n := s.Requests[outcome]; n > 0 {
				logger.Stats("  "+outcome, n)
			}
		}
		logger.Stats("Retries", s.Retries)
		logger.Stats("Dropped chunks", s.DroppedChunks)
		logger.Stats("Mean latency", s.MeanLatency.Round(time.Millisecond))
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.server.Shutdown(ctx); err != nil {
			logger.Warn("METRICS", fmt.Sprintf("Shutdown: %v", err))
		}
		cancel()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warn("DB", fmt.Sprintf("Close: %v", err))
		}
	}
}

func (a *app) fees() engine.Fees {
	return engine.Fees{BrokersFee: a.cfg.BrokersFee, SalesTax: a.cfg.SalesTax}
}

func progress(msg string) {
	logger.Debug("PROGRESS", msg)
}

// resolveLocation turns a hub name, a location directory name or a numeric
// ID into a Location. Names are matched case-insensitively.
func resolveLocation(cfg *config.Config, locations *sde.Locations, name string) (engine.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return engine.Location{}, errors.New("empty location")
	}

	for hub, id := range cfg.Hubs {
		if strings.EqualFold(hub, name) {
			return engine.Location{ID: id, Name: displayName(cfg, locations, id, hub)}, nil
		}
	}
	if id := locations.IDByName(name); id != sde.NotFound {
		return engine.Location{ID: id, Name: locations.Name(id)}, nil
	}
	if id, err := strconv.ParseInt(name, 10, 64); err == nil && id > 0 {
		return engine.Location{ID: id, Name: displayName(cfg, locations, id, "")}, nil
	}
	return engine.Location{}, fmt.Errorf("unknown location %q: not a configured hub, a known location name or a numeric id", name)
}

// displayName prefers the location directory, then the hub table, then fallback.
func displayName(cfg *config.Config, locations *sde.Locations, id int64, fallback string) string {
	if n := locations.Name(id); n != "" {
		return n
	}
	for hub, hubID := range cfg.Hubs {
		if hubID == id && len(hub) > 0 {
			return strings.ToUpper(hub[:1]) + hub[1:]
		}
	}
	return fallback
}

func (a *app) location(name string) (engine.Location, error) {
	return resolveLocation(a.cfg, a.locations, name)
}

// persist appends the collection to its ledger and saves it.
func (a *app) persist(c *engine.Collection) {
	if err := c.Persist(); err != nil {
		logger.Error("LEDGER", fmt.Sprintf("%s: %v", c.Market.Location(), err))
	}
}

// recordRun archives a collection and returns the run ID, or "" when the
// archive is disabled or the insert failed.
func (a *app) recordRun(command string, c *engine.Collection) string {
	if a.db == nil {
		return ""
	}
	loc := c.Market.Location()
	id, err := a.db.InsertRun(db.Run{
		Command:        command,
		Source:         a.source,
		LocationID:     loc.ID,
		LocationName:   loc.String(),
		Items:          c.Market.Store().Len(),
		RawItems:       len(c.Fetch.Items),
		Chunks:         c.Fetch.Chunks,
		FailedChunks:   c.Fetch.FailedChunks,
		FromDatapoints: c.FromDatapoints,
		DurationMs:     c.Fetch.Duration.Milliseconds(),
	})
	if err != nil {
		logger.Warn("DB", err.Error())
		return ""
	}
	return id
}
