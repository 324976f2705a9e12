package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type Config struct {
	HTTPAddr            string        `yaml:"http_addr"`
	DatabaseURL         string        `yaml:"database_url"`
	LogLevel            string        `yaml:"log_level"`
	SupportedCurrencies []string      `yaml:"supported_currencies"`
	FeeAccountID        string        `yaml:"fee_account_id"`
	Fees                FeeConfig     `yaml:"fees"`
	MarketOrders        MarketConfig  `yaml:"market_orders"`
	Kafka               KafkaConfig   `yaml:"kafka"`
	Journal             JournalConfig `yaml:"journal"`

	// Parsed from the string fields above by Load.
	FeeAccount    uuid.UUID       `yaml:"-"`
	BuyFeeRate    decimal.Decimal `yaml:"-"`
	SellFeeRate   decimal.Decimal `yaml:"-"`
	ReserveBuffer decimal.Decimal `yaml:"-"`
	MaxSlippage   decimal.Decimal `yaml:"-"`
}

type FeeConfig struct {
	BuyRate  string `yaml:"buy_rate"`
	SellRate string `yaml:"sell_rate"`
}

type MarketConfig struct {
	ReserveBuffer string `yaml:"reserve_buffer"`
	MaxSlippage   string `yaml:"max_slippage"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type JournalConfig struct {
	Path string `yaml:"path"`
}

// Default runs everything in memory with no fees and no event sinks.
func Default() *Config {
	cfg := &Config{
		HTTPAddr:            ":8000",
		LogLevel:            "info",
		SupportedCurrencies: []string{"USD", "NGN", "EUR", "GBP"},
		FeeAccountID:        "00000000-0000-0000-0000-00000000fee0",
		Fees:                FeeConfig{BuyRate: "0", SellRate: "0"},
		MarketOrders:        MarketConfig{ReserveBuffer: "0.05", MaxSlippage: "0"},
		Kafka:               KafkaConfig{Topic: "fxmatch.events"},
	}
	if err := cfg.parse(); err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the YAML file on top of the defaults, then a .env file next to
// it, then the environment. Environment values win.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		// A missing .env is fine.
		_ = godotenv.Load(filepath.Join(filepath.Dir(filename), ".env"))

		raw, err := os.ReadFile(filename)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrap(err, "failed to decode config file")
		}
	} else {
		_ = godotenv.Load()
	}

	cfg.applyEnv()
	if err := cfg.parse(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
}

func (c *Config) parse() error {
	var err error
	if c.FeeAccount, err = uuid.Parse(c.FeeAccountID); err != nil {
		return errors.Wrap(err, "fee_account_id")
	}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"fees.buy_rate", c.Fees.BuyRate, &c.BuyFeeRate},
		{"fees.sell_rate", c.Fees.SellRate, &c.SellFeeRate},
		{"market_orders.reserve_buffer", c.MarketOrders.ReserveBuffer, &c.ReserveBuffer},
		{"market_orders.max_slippage", c.MarketOrders.MaxSlippage, &c.MaxSlippage},
	}
	for _, f := range fields {
		v := decimal.Zero
		if f.raw != "" {
			if v, err = decimal.NewFromString(f.raw); err != nil {
				return errors.Wrap(err, f.name)
			}
		}
		if v.IsNegative() {
			return errors.Errorf("%s must not be negative", f.name)
		}
		*f.dst = v
	}

	if len(c.SupportedCurrencies) < 2 {
		return errors.New("supported_currencies needs at least two codes")
	}
	for i, code := range c.SupportedCurrencies {
		c.SupportedCurrencies[i] = strings.ToUpper(strings.TrimSpace(code))
	}
	for i, b := range c.Kafka.Brokers {
		c.Kafka.Brokers[i] = strings.TrimSpace(b)
	}
	return nil
}
