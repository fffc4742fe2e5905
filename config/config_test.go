package config

import (
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	if cfg.TradingConfig.CycleSeconds != 180 {
		t.Errorf("expected cycle of 180s, got %d", cfg.TradingConfig.CycleSeconds)
	}
	if cfg.TradingConfig.MinConfidence != 0.65 {
		t.Errorf("expected min confidence 0.65, got %.2f", cfg.TradingConfig.MinConfidence)
	}
	if cfg.RiskConfig.MaxExposure != 0.80 {
		t.Errorf("expected max exposure 0.80, got %.2f", cfg.RiskConfig.MaxExposure)
	}
	if cfg.RiskConfig.EmergencyStopDrawdown != 0.15 {
		t.Errorf("expected emergency stop 0.15, got %.2f", cfg.RiskConfig.EmergencyStopDrawdown)
	}
	if cfg.IndicatorConfig.CacheTTL != 3*time.Minute {
		t.Errorf("expected 3m cache TTL, got %v", cfg.IndicatorConfig.CacheTTL)
	}
}

func TestMinConfidenceLoosensForLargeDeposits(t *testing.T) {
	cfg := &Config{}
	cfg.TradingConfig.DepositUSD = 3000
	applyDefaults(cfg)

	if cfg.TradingConfig.MinConfidence != 0.60 {
		t.Errorf("expected min confidence 0.60 for $3000 deposit, got %.2f", cfg.TradingConfig.MinConfidence)
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.BinanceConfig.MockMode = true
		applyDefaults(cfg)
		return cfg
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg = base()
	cfg.TradingConfig.MinConfidence = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for min_confidence > 1")
	}

	cfg = base()
	cfg.RiskConfig.MaxDrawdown = 0.20
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for max_drawdown above emergency stop")
	}

	cfg = base()
	cfg.RiskConfig.MinPositionSize = 0.50
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for min position size above max")
	}
}

func TestStrategyForDeposit(t *testing.T) {
	tests := []struct {
		deposit  float64
		name     string
		maxPairs int
	}{
		{50, "conservative-100", 4},
		{100, "conservative-100", 4},
		{999, "conservative-100", 4},
		{1000, "balanced-1000", 5},
		{2999, "balanced-1000", 5},
		{3000, "aggressive-3000", 6},
		{6000, "professional-6000", 7},
		{25000, "professional-6000", 7},
	}
	for _, tt := range tests {
		s := StrategyForDeposit(tt.deposit)
		if s.Name != tt.name {
			t.Errorf("deposit %.0f: expected strategy %s, got %s", tt.deposit, tt.name, s.Name)
		}
		if s.MaxTradePairs != tt.maxPairs {
			t.Errorf("deposit %.0f: expected %d max pairs, got %d", tt.deposit, tt.maxPairs, s.MaxTradePairs)
		}
	}
}
