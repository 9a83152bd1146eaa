// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	RPCList          []string `mapstructure:"rpc_list"`
	ReceivingAddress string   `mapstructure:"receiving_address"`
	TelegramToken    string   `mapstructure:"telegram_token"`
	OperatorChatID   int64    `mapstructure:"operator_chat_id"`
	PostgresURL      string   `mapstructure:"postgres_url"`
	PollInterval     int      `mapstructure:"poll_interval"`    // seconds between ledger polls
	PublishInterval  int      `mapstructure:"publish_interval"` // seconds between publish batches
	PublishBatchSize int      `mapstructure:"publish_batch_size"`
	PaymentTTL       int      `mapstructure:"payment_ttl"`     // minutes until a payment request expires
	LookbackWindow   int      `mapstructure:"lookback_window"` // minutes of ledger history considered
	AmountTolerance  float64  `mapstructure:"amount_tolerance"` // SOL
	DebugLogging     bool     `mapstructure:"debug_logging"`
	MetricsAddr      string   `mapstructure:"metrics_addr"`
}

const (
	DefaultPollInterval     = 30
	DefaultPublishInterval  = 60
	DefaultPublishBatchSize = 10
	DefaultPaymentTTL       = 20
	DefaultLookbackWindow   = 30
	DefaultAmountTolerance  = 0.01
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"poll_interval":      DefaultPollInterval,
		"publish_interval":   DefaultPublishInterval,
		"publish_batch_size": DefaultPublishBatchSize,
		"payment_ttl":        DefaultPaymentTTL,
		"lookback_window":    DefaultLookbackWindow,
		"amount_tolerance":   DefaultAmountTolerance,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

// PollDuration returns the ledger polling interval.
func (c *Config) PollDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// PublishDuration returns the publish batch interval.
func (c *Config) PublishDuration() time.Duration {
	return time.Duration(c.PublishInterval) * time.Second
}

// PaymentTTLDuration returns the payment request time-to-live.
func (c *Config) PaymentTTLDuration() time.Duration {
	return time.Duration(c.PaymentTTL) * time.Minute
}

// LookbackDuration returns how far back ledger transactions are considered.
func (c *Config) LookbackDuration() time.Duration {
	return time.Duration(c.LookbackWindow) * time.Minute
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	if cfg.ReceivingAddress == "" {
		return errors.New("missing receiving_address in configuration")
	}
	if cfg.TelegramToken == "" {
		return errors.New("missing telegram_token in configuration")
	}
	if cfg.PostgresURL == "" {
		return errors.New("missing postgres_url in configuration")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.PollInterval <= 0 {
		return errors.New("invalid poll_interval")
	}
	if cfg.PublishInterval <= 0 {
		return errors.New("invalid publish_interval")
	}
	if cfg.PublishBatchSize <= 0 {
		return errors.New("invalid publish_batch_size")
	}
	if cfg.PaymentTTL <= 0 {
		return errors.New("invalid payment_ttl")
	}
	if cfg.LookbackWindow <= 0 {
		return errors.New("invalid lookback_window")
	}
	if cfg.AmountTolerance <= 0 {
		return errors.New("invalid amount_tolerance")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("ADS_BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		cfg.TelegramToken = token
	}
	if pgURL := v.GetString("POSTGRES_URL"); pgURL != "" {
		cfg.PostgresURL = pgURL
	}

	envRPCList := v.GetString("RPC_LIST")
	if envRPCList != "" {
		rpcs := strings.Split(envRPCList, ",")
		var cleanRPCs []string
		for _, rpc := range rpcs {
			clean := strings.TrimSpace(rpc)
			if clean != "" {
				cleanRPCs = append(cleanRPCs, clean)
			}
		}
		if len(cleanRPCs) > 0 {
			cfg.RPCList = cleanRPCs
		}
	}
	return nil
}
