package config

import "time"

// Config holds all run-time tunables. It is built once at startup and passed
// explicitly to the components that need it.
type Config struct {
	// Bulk collection.
	IDsPerRequest     int           `mapstructure:"ids_per_request" json:"ids_per_request" validate:"min=1"`
	ProcessCount      int           `mapstructure:"process_count" json:"process_count" validate:"min=1"`
	RequestRetryCount int           `mapstructure:"request_retry_count" json:"request_retry_count" validate:"min=0"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" json:"request_timeout" validate:"gt=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" json:"requests_per_second" validate:"gt=0"`
	RequestDebug      bool          `mapstructure:"request_debug" json:"request_debug"` // 2 ids per chunk, first 5 chunks only

	// History.
	DatapointMax            int    `mapstructure:"datapoint_max" json:"datapoint_max" validate:"min=1"`
	DatapointFile           string `mapstructure:"datapoint_file" json:"datapoint_file" validate:"required"`
	LoadDatapoints          bool   `mapstructure:"load_datapoints" json:"load_datapoints"`
	LoadItemsFromDatapoints bool   `mapstructure:"load_items_from_datapoints" json:"load_items_from_datapoints"`

	// Signal detection.
	AnomalyFactor float64 `mapstructure:"anomaly_factor" json:"anomaly_factor" validate:"gte=0"`
	BrokersFee    float64 `mapstructure:"brokers_fee" json:"brokers_fee" validate:"gte=0,lt=1"`
	SalesTax      float64 `mapstructure:"sales_tax" json:"sales_tax" validate:"gte=0,lt=1"`

	// Remote price API.
	AggregatesURL string `mapstructure:"aggregates_url" json:"aggregates_url" validate:"required,url"`
	QuotesURL     string `mapstructure:"quotes_url" json:"quotes_url" validate:"required,url"`
	CharName      string `mapstructure:"char_name" json:"char_name"`
	UserAgent     string `mapstructure:"user_agent" json:"user_agent" validate:"required"`

	// Static directories and storage.
	TypeIDsPath   string `mapstructure:"type_ids_path" json:"type_ids_path" validate:"required"`
	LocationsPath string `mapstructure:"locations_path" json:"locations_path"`
	DatabasePath  string `mapstructure:"database_path" json:"database_path"`

	LogLevel string           `mapstructure:"log_level" json:"log_level" validate:"oneof=debug info warn error"`
	Hubs     map[string]int64 `mapstructure:"hubs" json:"hubs"`
}

// DefaultHubs are the main NPC trade hub stations.
var DefaultHubs = map[string]int64{
	"Jita":    60003760,
	"Amarr":   60008494,
	"Dodixie": 60011866,
	"Rens":    60004588,
	"Hek":     60005686,
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	hubs := make(map[string]int64, len(DefaultHubs))
	for name, id := range DefaultHubs {
		hubs[name] = id
	}
	return &Config{
		IDsPerRequest:     1000,
		ProcessCount:      8,
		RequestRetryCount: 3,
		RequestTimeout:    30 * time.Second,
		RequestsPerSecond: 20,

		DatapointMax:   10,
		DatapointFile:  "saves/datapoints.save",
		LoadDatapoints: true,

		AnomalyFactor: 0.2,
		BrokersFee:    0.028,
		SalesTax:      0.02,

		AggregatesURL: "https://market.fuzzwork.co.uk/aggregates/",
		QuotesURL:     "https://api.eve-marketdata.com/api/item_prices2.xml",
		CharName:      "none",
		UserAgent:     "eve-marketscan/1.0 (github.com)",

		TypeIDsPath:   "data/typeIDs.json",
		LocationsPath: "data/solarsystemIDs.json",
		DatabasePath:  "marketscan.db",

		LogLevel: "info",
		Hubs:     hubs,
	}
}

// ChunkSize returns the effective number of ids per request.
func (c *Config) ChunkSize() int {
	if c.RequestDebug {
		return 2
	}
	return c.IDsPerRequest
}

// ChunkLimit returns the maximum number of chunks to request; 0 = no limit.
func (c *Config) ChunkLimit() int {
	if c.RequestDebug {
		return 5
	}
	return 0
}
