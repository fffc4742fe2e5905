package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the immutable application configuration. It is built once at
// startup by Load and passed by pointer into every component; nothing
// mutates it after Validate has passed.
type Config struct {
	BinanceConfig      BinanceConfig      `json:"binance"`
	TradingConfig      TradingConfig      `json:"trading"`
	RiskConfig         RiskConfig         `json:"risk"`
	IndicatorConfig    IndicatorConfig    `json:"indicators"`
	PumpConfig         PumpConfig         `json:"pump"`
	AIConfig           AIConfig           `json:"ai"`
	LoggingConfig      LoggingConfig      `json:"logging"`
	NotificationConfig NotificationConfig `json:"notification"`
	ServerConfig       ServerConfig       `json:"server"`
	AuthConfig         AuthConfig         `json:"auth"`
	VaultConfig        VaultConfig        `json:"vault"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`

	// Strategy is the deposit-tier profile resolved from
	// TradingConfig.DepositUSD during Load.
	Strategy Strategy `json:"-"`
}

type BinanceConfig struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	BaseURL   string `json:"base_url"`
	TestNet   bool   `json:"testnet"`
	MockMode  bool   `json:"mock_mode"` // Use simulated data when Binance API is unavailable
}

type TradingConfig struct {
	Symbols           []string `json:"symbols"`
	DepositUSD        float64  `json:"deposit_usd"`
	CycleSeconds      int      `json:"cycle_seconds"`       // Seconds between trading cycles
	MinConfidence     float64  `json:"min_confidence"`      // Floor for advisory confidence
	MinRiskReward     float64  `json:"min_risk_reward"`     // Minimum reward/risk ratio
	DefaultStopLoss   float64  `json:"default_stop_loss"`   // Fraction, e.g. 0.03
	DefaultTakeProfit float64  `json:"default_take_profit"` // Fraction, e.g. 0.06
	MaxOpenPositions  int      `json:"max_open_positions"`
	MaxTradesPerHour  int      `json:"max_trades_per_hour"`
	DryRun            bool     `json:"dry_run"` // Test mode without real orders
}

type RiskConfig struct {
	MaxPositionSize        float64 `json:"max_position_size"`        // Fraction of portfolio per trade
	MinPositionSize        float64 `json:"min_position_size"`        // Sizing floor after adjustments
	MaxExposure            float64 `json:"max_exposure"`             // Total exposure cap, fraction
	MaxDrawdown            float64 `json:"max_drawdown"`             // Invalidate new trades at this drawdown
	EmergencyStopDrawdown  float64 `json:"emergency_stop_drawdown"`  // Halt all new trades
	MaxCorrelationExposure float64 `json:"max_correlation_exposure"` // BTC-cluster cap, fraction
	VolatilityThreshold    float64 `json:"volatility_threshold"`     // 24h change fraction
	MinFreeBalanceRatio    float64 `json:"min_free_balance_ratio"`   // Keep this share of portfolio free
	MinBalanceUSD          float64 `json:"min_balance_usd"`          // Absolute trading floor
	KellyFraction          float64 `json:"kelly_fraction"`           // Fraction of full Kelly
	KellyMin               float64 `json:"kelly_min"`                // Kelly clamp lower bound
	KellyMax               float64 `json:"kelly_max"`                // Kelly clamp upper bound
	KellyMinTrades         int     `json:"kelly_min_trades"`         // History required before Kelly applies
}

type IndicatorConfig struct {
	RSIPeriod     int           `json:"rsi_period"`
	RSIOverbought float64       `json:"rsi_overbought"`
	RSIOversold   float64       `json:"rsi_oversold"`
	MACDFast      int           `json:"macd_fast"`
	MACDSlow      int           `json:"macd_slow"`
	MACDSignal    int           `json:"macd_signal"`
	BBPeriod      int           `json:"bb_period"`
	BBStdDev      float64       `json:"bb_std_dev"`
	CacheTTL      time.Duration `json:"cache_ttl"`
}

type PumpConfig struct {
	WindowSeconds      int     `json:"window_seconds"` // Rolling history span
	MinDataPoints      int     `json:"min_data_points"`
	PriceThreshold     float64 `json:"price_threshold"` // Change vs previous sample, fraction
	VolumeMultiplier   float64 `json:"volume_multiplier"`   // Trailing-average multiple
	ImbalanceThreshold float64 `json:"imbalance_threshold"` // Bid share of book
	OrderBookDepth     int     `json:"order_book_depth"`
	MinConfidence      float64 `json:"min_confidence"`
	MaxPerSymbol       int     `json:"max_per_symbol"`    // Per 30-minute window
	SanityJumpLimit    float64 `json:"sanity_jump_limit"` // Reject jumps at or above this
}

type AIConfig struct {
	Enabled          bool          `json:"enabled"`
	LLMProvider      string        `json:"llm_provider"` // claude, openai, deepseek
	LLMModel         string        `json:"llm_model"`
	ClaudeAPIKey     string        `json:"claude_api_key"`
	OpenAIAPIKey     string        `json:"openai_api_key"`
	DeepSeekAPIKey   string        `json:"deepseek_api_key"`
	RequestTimeout   time.Duration `json:"request_timeout"`
	MLEnabled        bool          `json:"ml_enabled"`
	SentimentEnabled bool          `json:"sentiment_enabled"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Output     string `json:"output"` // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type ServerConfig struct {
	Enabled         bool   `json:"enabled"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`  // Seconds
	WriteTimeout    int    `json:"write_timeout"` // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

type AuthConfig struct {
	Enabled             bool          `json:"enabled"`
	JWTSecret           string        `json:"jwt_secret"`
	AccessTokenDuration time.Duration `json:"access_token_duration"`
	AdminUsername       string        `json:"admin_username"`
	AdminPasswordHash   string        `json:"admin_password_hash"` // bcrypt hash
}

type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	SecretPath string `json:"secret_path"`
}

type DatabaseConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Load builds the configuration from config.json (if present) with
// environment variable overrides, fills defaults, resolves the strategy
// tier, and validates the result.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	cfg.Strategy = StrategyForDeposit(cfg.TradingConfig.DepositUSD)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.BinanceConfig.APIKey = getEnvOrDefault("BINANCE_API_KEY", cfg.BinanceConfig.APIKey)
	cfg.BinanceConfig.SecretKey = getEnvOrDefault("BINANCE_SECRET_KEY", cfg.BinanceConfig.SecretKey)
	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.BinanceConfig.BaseURL)
	cfg.BinanceConfig.TestNet = getEnvBoolOrDefault("BINANCE_TESTNET", cfg.BinanceConfig.TestNet)
	cfg.BinanceConfig.MockMode = getEnvBoolOrDefault("MOCK_MODE", cfg.BinanceConfig.MockMode)

	cfg.TradingConfig.DryRun = getEnvBoolOrDefault("TRADING_DRY_RUN", cfg.TradingConfig.DryRun)
	cfg.TradingConfig.DepositUSD = getEnvFloatOrDefault("TRADING_DEPOSIT_USD", cfg.TradingConfig.DepositUSD)

	cfg.AIConfig.Enabled = getEnvBoolOrDefault("AI_ENABLED", cfg.AIConfig.Enabled)
	cfg.AIConfig.LLMProvider = getEnvOrDefault("AI_LLM_PROVIDER", cfg.AIConfig.LLMProvider)
	cfg.AIConfig.LLMModel = getEnvOrDefault("AI_LLM_MODEL", cfg.AIConfig.LLMModel)
	cfg.AIConfig.ClaudeAPIKey = getEnvOrDefault("AI_CLAUDE_API_KEY", cfg.AIConfig.ClaudeAPIKey)
	cfg.AIConfig.OpenAIAPIKey = getEnvOrDefault("AI_OPENAI_API_KEY", cfg.AIConfig.OpenAIAPIKey)
	cfg.AIConfig.DeepSeekAPIKey = getEnvOrDefault("AI_DEEPSEEK_API_KEY", cfg.AIConfig.DeepSeekAPIKey)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.LoggingConfig.JSONFormat)

	cfg.NotificationConfig.Enabled = getEnvBoolOrDefault("NOTIFICATIONS_ENABLED", cfg.NotificationConfig.Enabled)
	cfg.NotificationConfig.Telegram.Enabled = getEnvBoolOrDefault("TELEGRAM_ENABLED", cfg.NotificationConfig.Telegram.Enabled)
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.Enabled = getEnvBoolOrDefault("DISCORD_ENABLED", cfg.NotificationConfig.Discord.Enabled)
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)

	cfg.ServerConfig.Enabled = getEnvBoolOrDefault("WEB_ENABLED", cfg.ServerConfig.Enabled)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)

	cfg.AuthConfig.Enabled = getEnvBoolOrDefault("AUTH_ENABLED", cfg.AuthConfig.Enabled)
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AdminUsername = getEnvOrDefault("AUTH_ADMIN_USERNAME", cfg.AuthConfig.AdminUsername)
	cfg.AuthConfig.AdminPasswordHash = getEnvOrDefault("AUTH_ADMIN_PASSWORD_HASH", cfg.AuthConfig.AdminPasswordHash)

	cfg.VaultConfig.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.VaultConfig.Enabled)
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)

	cfg.DatabaseConfig.Enabled = getEnvBoolOrDefault("DATABASE_ENABLED", cfg.DatabaseConfig.Enabled)
	cfg.DatabaseConfig.URL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseConfig.URL)

	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Addr = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Addr)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
}

func applyDefaults(cfg *Config) {
	if cfg.BinanceConfig.BaseURL == "" {
		cfg.BinanceConfig.BaseURL = "https://api.binance.com"
	}

	if len(cfg.TradingConfig.Symbols) == 0 {
		cfg.TradingConfig.Symbols = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT"}
	}
	if cfg.TradingConfig.DepositUSD == 0 {
		cfg.TradingConfig.DepositUSD = 1000
	}
	if cfg.TradingConfig.CycleSeconds == 0 {
		cfg.TradingConfig.CycleSeconds = 180
	}
	if cfg.TradingConfig.MinConfidence == 0 {
		// Larger accounts can afford slightly weaker setups.
		if cfg.TradingConfig.DepositUSD >= 3000 {
			cfg.TradingConfig.MinConfidence = 0.60
		} else {
			cfg.TradingConfig.MinConfidence = 0.65
		}
	}
	if cfg.TradingConfig.MinRiskReward == 0 {
		cfg.TradingConfig.MinRiskReward = 1.5
	}
	if cfg.TradingConfig.DefaultStopLoss == 0 {
		cfg.TradingConfig.DefaultStopLoss = 0.03
	}
	if cfg.TradingConfig.DefaultTakeProfit == 0 {
		cfg.TradingConfig.DefaultTakeProfit = 0.06
	}
	if cfg.TradingConfig.MaxOpenPositions == 0 {
		cfg.TradingConfig.MaxOpenPositions = 5
	}
	if cfg.TradingConfig.MaxTradesPerHour == 0 {
		cfg.TradingConfig.MaxTradesPerHour = 10
	}

	if cfg.RiskConfig.MaxPositionSize == 0 {
		cfg.RiskConfig.MaxPositionSize = 0.20
	}
	if cfg.RiskConfig.MinPositionSize == 0 {
		cfg.RiskConfig.MinPositionSize = 0.08
	}
	if cfg.RiskConfig.MaxExposure == 0 {
		cfg.RiskConfig.MaxExposure = 0.80
	}
	if cfg.RiskConfig.MaxDrawdown == 0 {
		cfg.RiskConfig.MaxDrawdown = 0.10
	}
	if cfg.RiskConfig.EmergencyStopDrawdown == 0 {
		cfg.RiskConfig.EmergencyStopDrawdown = 0.15
	}
	if cfg.RiskConfig.MaxCorrelationExposure == 0 {
		cfg.RiskConfig.MaxCorrelationExposure = 0.40
	}
	if cfg.RiskConfig.VolatilityThreshold == 0 {
		cfg.RiskConfig.VolatilityThreshold = 0.05
	}
	if cfg.RiskConfig.MinFreeBalanceRatio == 0 {
		cfg.RiskConfig.MinFreeBalanceRatio = 0.30
	}
	if cfg.RiskConfig.MinBalanceUSD == 0 {
		cfg.RiskConfig.MinBalanceUSD = 100
	}
	if cfg.RiskConfig.KellyFraction == 0 {
		cfg.RiskConfig.KellyFraction = 0.25
	}
	if cfg.RiskConfig.KellyMin == 0 {
		cfg.RiskConfig.KellyMin = 0.05
	}
	if cfg.RiskConfig.KellyMax == 0 {
		cfg.RiskConfig.KellyMax = 0.25
	}
	if cfg.RiskConfig.KellyMinTrades == 0 {
		cfg.RiskConfig.KellyMinTrades = 10
	}

	if cfg.IndicatorConfig.RSIPeriod == 0 {
		cfg.IndicatorConfig.RSIPeriod = 14
	}
	if cfg.IndicatorConfig.RSIOverbought == 0 {
		cfg.IndicatorConfig.RSIOverbought = 70
	}
	if cfg.IndicatorConfig.RSIOversold == 0 {
		cfg.IndicatorConfig.RSIOversold = 30
	}
	if cfg.IndicatorConfig.MACDFast == 0 {
		cfg.IndicatorConfig.MACDFast = 12
	}
	if cfg.IndicatorConfig.MACDSlow == 0 {
		cfg.IndicatorConfig.MACDSlow = 26
	}
	if cfg.IndicatorConfig.MACDSignal == 0 {
		cfg.IndicatorConfig.MACDSignal = 9
	}
	if cfg.IndicatorConfig.BBPeriod == 0 {
		cfg.IndicatorConfig.BBPeriod = 20
	}
	if cfg.IndicatorConfig.BBStdDev == 0 {
		cfg.IndicatorConfig.BBStdDev = 2
	}
	if cfg.IndicatorConfig.CacheTTL == 0 {
		cfg.IndicatorConfig.CacheTTL = 3 * time.Minute
	}

	if cfg.PumpConfig.WindowSeconds == 0 {
		cfg.PumpConfig.WindowSeconds = 300
	}
	if cfg.PumpConfig.MinDataPoints == 0 {
		cfg.PumpConfig.MinDataPoints = 3
	}
	if cfg.PumpConfig.PriceThreshold == 0 {
		cfg.PumpConfig.PriceThreshold = 0.03
	}
	if cfg.PumpConfig.VolumeMultiplier == 0 {
		cfg.PumpConfig.VolumeMultiplier = 3.0
	}
	if cfg.PumpConfig.ImbalanceThreshold == 0 {
		cfg.PumpConfig.ImbalanceThreshold = 0.65
	}
	if cfg.PumpConfig.OrderBookDepth == 0 {
		cfg.PumpConfig.OrderBookDepth = 20
	}
	if cfg.PumpConfig.MinConfidence == 0 {
		cfg.PumpConfig.MinConfidence = 0.6
	}
	if cfg.PumpConfig.MaxPerSymbol == 0 {
		cfg.PumpConfig.MaxPerSymbol = 3
	}
	if cfg.PumpConfig.SanityJumpLimit == 0 {
		cfg.PumpConfig.SanityJumpLimit = 0.50
	}

	if cfg.AIConfig.LLMProvider == "" {
		cfg.AIConfig.LLMProvider = "deepseek"
	}
	if cfg.AIConfig.LLMModel == "" {
		cfg.AIConfig.LLMModel = "deepseek-chat"
	}
	if cfg.AIConfig.RequestTimeout == 0 {
		cfg.AIConfig.RequestTimeout = 30 * time.Second
	}

	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
	if cfg.LoggingConfig.Output == "" {
		cfg.LoggingConfig.Output = "stdout"
	}

	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.AllowedOrigins == "" {
		cfg.ServerConfig.AllowedOrigins = "*"
	}
	if cfg.ServerConfig.ReadTimeout == 0 {
		cfg.ServerConfig.ReadTimeout = 30
	}
	if cfg.ServerConfig.WriteTimeout == 0 {
		cfg.ServerConfig.WriteTimeout = 30
	}
	if cfg.ServerConfig.ShutdownTimeout == 0 {
		cfg.ServerConfig.ShutdownTimeout = 10
	}

	if cfg.AuthConfig.AccessTokenDuration == 0 {
		cfg.AuthConfig.AccessTokenDuration = 15 * time.Minute
	}

	if cfg.RedisConfig.Addr == "" {
		cfg.RedisConfig.Addr = "localhost:6379"
	}
}

// Validate fails fast on configuration that would make the risk checks
// meaningless. Only genuine config errors halt the process; everything else
// degrades at runtime.
func (c *Config) Validate() error {
	if !c.BinanceConfig.MockMode && !c.TradingConfig.DryRun {
		if c.BinanceConfig.APIKey == "" || c.BinanceConfig.SecretKey == "" {
			if !c.VaultConfig.Enabled {
				return fmt.Errorf("binance credentials missing: set BINANCE_API_KEY/BINANCE_SECRET_KEY or enable vault")
			}
		}
	}
	if c.TradingConfig.MinConfidence <= 0 || c.TradingConfig.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in (0, 1], got %.2f", c.TradingConfig.MinConfidence)
	}
	if c.TradingConfig.MinRiskReward < 1 {
		return fmt.Errorf("min_risk_reward must be >= 1, got %.2f", c.TradingConfig.MinRiskReward)
	}
	if c.RiskConfig.MaxPositionSize <= 0 || c.RiskConfig.MaxPositionSize > 1 {
		return fmt.Errorf("max_position_size must be in (0, 1], got %.2f", c.RiskConfig.MaxPositionSize)
	}
	if c.RiskConfig.MinPositionSize > c.RiskConfig.MaxPositionSize {
		return fmt.Errorf("min_position_size %.2f exceeds max_position_size %.2f",
			c.RiskConfig.MinPositionSize, c.RiskConfig.MaxPositionSize)
	}
	if c.RiskConfig.MaxDrawdown >= c.RiskConfig.EmergencyStopDrawdown {
		return fmt.Errorf("max_drawdown %.2f must be below emergency_stop_drawdown %.2f",
			c.RiskConfig.MaxDrawdown, c.RiskConfig.EmergencyStopDrawdown)
	}
	if c.RiskConfig.KellyMin > c.RiskConfig.KellyMax {
		return fmt.Errorf("kelly_min %.2f exceeds kelly_max %.2f", c.RiskConfig.KellyMin, c.RiskConfig.KellyMax)
	}
	if c.AuthConfig.Enabled && c.AuthConfig.JWTSecret == "" {
		return fmt.Errorf("auth enabled but AUTH_JWT_SECRET is not set")
	}
	if c.DatabaseConfig.Enabled && c.DatabaseConfig.URL == "" {
		return fmt.Errorf("database enabled but DATABASE_URL is not set")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
