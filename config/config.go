// Package config loads runtime settings from an optional YAML file, falling
// back to built-in defaults. The ExchangeRate-API key always comes from the
// environment, never from the file.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const apiKeyEnv = "EXCHANGERATE_API_KEY"

// Config is the resolved runtime configuration.
type Config struct {
	// Data file locations.
	UsersPath      string
	PortfoliosPath string
	RatesPath      string
	HistoryPath    string
	SessionPath    string
	TradeLogDir    string

	// Rate pipeline settings.
	BaseCurrency   string
	FiatCodes      []string
	CryptoCodes    []string
	CryptoIDs      map[string]string
	BinanceSymbols map[string]string
	Sources        []string

	CacheTTL       time.Duration
	FetchTimeout   time.Duration
	UpdateInterval time.Duration

	ExchangeRateAPIKey string
}

type configTmp struct {
	DataDir        string   `yaml:"data_dir,omitempty"`
	BaseCurrency   string   `yaml:"base_currency,omitempty"`
	FiatCodes      []string `yaml:"fiat_codes,omitempty"`
	CryptoCodes    []string `yaml:"crypto_codes,omitempty"`
	Sources        []string `yaml:"sources,omitempty"`
	CacheTTL       string   `yaml:"cache_ttl,omitempty"`
	FetchTimeout   string   `yaml:"fetch_timeout,omitempty"`
	UpdateInterval string   `yaml:"update_interval,omitempty"`
}

// Default returns the built-in configuration rooted at dataDir.
func Default(dataDir string) Config {
	if dataDir == "" {
		dataDir = "data"
	}
	return Config{
		UsersPath:      dataDir + "/users.json",
		PortfoliosPath: dataDir + "/portfolios.json",
		RatesPath:      dataDir + "/rates.json",
		HistoryPath:    dataDir + "/exchange_rates.json",
		SessionPath:    dataDir + "/session.json",
		TradeLogDir:    dataDir + "/trades",

		BaseCurrency: "USD",
		FiatCodes:    []string{"EUR", "GBP", "RUB"},
		CryptoCodes:  []string{"BTC", "ETH", "SOL"},
		CryptoIDs: map[string]string{
			"BTC": "bitcoin",
			"ETH": "ethereum",
			"SOL": "solana",
		},
		BinanceSymbols: map[string]string{
			"BTCUSDT": "BTC_USD",
			"ETHUSDT": "ETH_USD",
			"SOLUSDT": "SOL_USD",
		},
		Sources: []string{"coingecko", "exchangerate", "binance"},

		CacheTTL:       5 * time.Minute,
		FetchTimeout:   10 * time.Second,
		UpdateInterval: 5 * time.Minute,

		ExchangeRateAPIKey: os.Getenv(apiKeyEnv),
	}
}

// Load resolves the configuration: defaults, overridden by the YAML file at
// path when given. An empty path means defaults only.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(""), nil
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	var tmp configTmp
	if err := yaml.Unmarshal(payload, &tmp); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}

	cfg := Default(tmp.DataDir)
	if tmp.BaseCurrency != "" {
		cfg.BaseCurrency = tmp.BaseCurrency
	}
	if len(tmp.FiatCodes) > 0 {
		cfg.FiatCodes = tmp.FiatCodes
	}
	if len(tmp.CryptoCodes) > 0 {
		cfg.CryptoCodes = tmp.CryptoCodes
	}
	if len(tmp.Sources) > 0 {
		cfg.Sources = tmp.Sources
	}

	if cfg.CacheTTL, err = overrideDuration(cfg.CacheTTL, tmp.CacheTTL, "cache_ttl"); err != nil {
		return Config{}, err
	}
	if cfg.FetchTimeout, err = overrideDuration(cfg.FetchTimeout, tmp.FetchTimeout, "fetch_timeout"); err != nil {
		return Config{}, err
	}
	if cfg.UpdateInterval, err = overrideDuration(cfg.UpdateInterval, tmp.UpdateInterval, "update_interval"); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overrideDuration(current time.Duration, raw, field string) (time.Duration, error) {
	if raw == "" {
		return current, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "incorrect %q param in yaml config", field)
	}
	if d <= 0 {
		return 0, errors.Errorf("%q must be positive", field)
	}
	return d, nil
}
