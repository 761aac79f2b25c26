package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type LedgerConfig struct {
	StoreDriver        string
	MaxTxAttempts      int
	RetryBackoff       time.Duration
	DailyRewardAmount  int64
	AccessEventTimeout time.Duration
	IdempotencyTTL     time.Duration
	DefaultPageSize    int
	MaxPageSize        int
}

// LoadLedgerConfig reads ledger tunables from viper, applying defaults first
func LoadLedgerConfig() *LedgerConfig {
	viper.SetDefault("store.driver", StoreDriverPostgres)
	viper.SetDefault("ledger.max_tx_attempts", 5)
	viper.SetDefault("ledger.retry_backoff", 10*time.Millisecond)
	viper.SetDefault("ledger.daily_reward_amount", 10)
	viper.SetDefault("ledger.access_event_timeout", 2*time.Second)
	viper.SetDefault("ledger.idempotency_ttl", 24*time.Hour)
	viper.SetDefault("api.default_page_size", 50)
	viper.SetDefault("api.max_page_size", 200)

	cfg := &LedgerConfig{
		StoreDriver:        viper.GetString("store.driver"),
		MaxTxAttempts:      viper.GetInt("ledger.max_tx_attempts"),
		RetryBackoff:       viper.GetDuration("ledger.retry_backoff"),
		DailyRewardAmount:  viper.GetInt64("ledger.daily_reward_amount"),
		AccessEventTimeout: viper.GetDuration("ledger.access_event_timeout"),
		IdempotencyTTL:     viper.GetDuration("ledger.idempotency_ttl"),
		DefaultPageSize:    viper.GetInt("api.default_page_size"),
		MaxPageSize:        viper.GetInt("api.max_page_size"),
	}

	if cfg.MaxTxAttempts < 1 {
		cfg.MaxTxAttempts = 1
	}
	if cfg.DefaultPageSize < 1 {
		cfg.DefaultPageSize = 50
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	return cfg
}

// BindEnv maps environment variables onto the viper keys read by this package
func BindEnv() {
	viper.BindEnv("store.driver", "STORE_DRIVER")
	viper.BindEnv("ledger.max_tx_attempts", "LEDGER_MAX_TX_ATTEMPTS")
	viper.BindEnv("ledger.retry_backoff", "LEDGER_RETRY_BACKOFF")
	viper.BindEnv("ledger.daily_reward_amount", "LEDGER_DAILY_REWARD_AMOUNT")
	viper.BindEnv("ledger.access_event_timeout", "ACCESS_EVENT_TIMEOUT")
	viper.BindEnv("ledger.idempotency_ttl", "LEDGER_IDEMPOTENCY_TTL")
	viper.BindEnv("api.default_page_size", "API_DEFAULT_PAGE_SIZE")
	viper.BindEnv("api.max_page_size", "API_MAX_PAGE_SIZE")
}
