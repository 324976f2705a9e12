package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.HTTPAddr != ":8000" || cfg.DatabaseURL != "" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if !cfg.ReserveBuffer.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("expected reserve buffer 0.05, got %s", cfg.ReserveBuffer)
	}
}

func TestLoadFileWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
http_addr: ":9000"
log_level: debug
supported_currencies: [usd, ngn]
fee_account_id: 2f1f3c36-8d0c-4b8e-9a0a-6c2c1f4e5b10
fees:
  buy_rate: "0.002"
  sell_rate: "0.001"
market_orders:
  reserve_buffer: "0.1"
  max_slippage: "0.05"
kafka:
  topic: trades
journal:
  path: /tmp/journal
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("KAFKA_BROKERS=k1:9092, k2:9092\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HTTP_ADDR", ":7000")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Errorf("expected env to win for http_addr, got %s", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "debug" || cfg.Journal.Path != "/tmp/journal" || cfg.Kafka.Topic != "trades" {
		t.Errorf("unexpected file values %+v", cfg)
	}
	if len(cfg.SupportedCurrencies) != 2 || cfg.SupportedCurrencies[0] != "USD" {
		t.Errorf("expected normalized currencies, got %v", cfg.SupportedCurrencies)
	}
	if !cfg.BuyFeeRate.Equal(decimal.RequireFromString("0.002")) || !cfg.MaxSlippage.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("unexpected parsed decimals %s %s", cfg.BuyFeeRate, cfg.MaxSlippage)
	}
	if cfg.FeeAccount.String() != "2f1f3c36-8d0c-4b8e-9a0a-6c2c1f4e5b10" {
		t.Errorf("unexpected fee account %s", cfg.FeeAccount)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "negative rate", body: "fees:\n  buy_rate: \"-0.1\"\n"},
		{name: "bad decimal", body: "market_orders:\n  max_slippage: lots\n"},
		{name: "bad fee account", body: "fee_account_id: nope\n"},
		{name: "single currency", body: "supported_currencies: [USD]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}
