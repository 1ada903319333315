package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. MARKETSCAN_PROCESS_COUNT.
const EnvPrefix = "MARKETSCAN"

// Load builds a Config from, in increasing priority: defaults, the YAML file at
// path (or ./marketscan.yaml when path is empty; a missing file is fine), a .env
// file, and MARKETSCAN_* environment variables.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	registerDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("marketscan")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Hubs) == 0 {
		cfg.Hubs = Default().Hubs
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func registerDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("ids_per_request", d.IDsPerRequest)
	v.SetDefault("process_count", d.ProcessCount)
	v.SetDefault("request_retry_count", d.RequestRetryCount)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("requests_per_second", d.RequestsPerSecond)
	v.SetDefault("request_debug", d.RequestDebug)
	v.SetDefault("datapoint_max", d.DatapointMax)
	v.SetDefault("datapoint_file", d.DatapointFile)
	v.SetDefault("load_datapoints", d.LoadDatapoints)
	v.SetDefault("load_items_from_datapoints", d.LoadItemsFromDatapoints)
	v.SetDefault("anomaly_factor", d.AnomalyFactor)
	v.SetDefault("brokers_fee", d.BrokersFee)
	v.SetDefault("sales_tax", d.SalesTax)
	v.SetDefault("aggregates_url", d.AggregatesURL)
	v.SetDefault("quotes_url", d.QuotesURL)
	v.SetDefault("char_name", d.CharName)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("type_ids_path", d.TypeIDsPath)
	v.SetDefault("locations_path", d.LocationsPath)
	v.SetDefault("database_path", d.DatabasePath)
	v.SetDefault("log_level", d.LogLevel)
}

// Validate checks field constraints declared in the struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed validation: %s (value: '%v')", e.Field(), e.Tag(), e.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}
