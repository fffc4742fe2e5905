package config

// Strategy is a deposit-tier trading profile. One of the four tiers below is
// selected at startup based on the configured deposit; read-only afterwards.
type Strategy struct {
	Name       string  `json:"name"`
	DepositUSD float64 `json:"deposit_usd"`

	// Capital management
	MinBalancePercent   float64 `json:"min_balance_percent"`   // Free-balance share to keep, percent
	PositionSizePercent float64 `json:"position_size_percent"` // Max position size, percent

	// Entry conditions
	MinOrderMultiplier float64 `json:"min_order_multiplier"`
	MinPriceUSD        float64 `json:"min_price_usd"`
	MinDailyPercent    float64 `json:"min_daily_percent"` // Buy dips below this 24h change
	DailyPercent       float64 `json:"daily_percent"`     // Target daily profit, percent

	// Volume and limits
	MinValueUSD   float64 `json:"min_value_usd"` // Minimum 24h quote volume
	SellUpPercent float64 `json:"sell_up_percent"`
	MaxTradePairs int     `json:"max_trade_pairs"`

	// Averaging (adding to a losing position)
	BuyDownPercent         float64 `json:"buy_down_percent"`
	QuantityAverMultiplier float64 `json:"quantity_aver_multiplier"`
	AveragePercent         float64 `json:"average_percent"`
	MaxAveraging           int     `json:"max_averaging"`
	StepAverPercent        float64 `json:"step_aver_percent"`

	// Trailing stop
	UseTrailingStop     bool    `json:"use_trailing_stop"`
	TrailingPercent     float64 `json:"trailing_percent"`
	TrailingPartPercent float64 `json:"trailing_part_percent"`
	TrailingValueUSD    float64 `json:"trailing_value_usd"`

	// Pump detector
	UsePumpDetector     bool    `json:"use_pump_detector"`
	PumpOrderMultiplier float64 `json:"pump_order_multiplier"`
	PumpUpPercent       float64 `json:"pump_up_percent"` // Target gain fraction after a pump entry
	MaxPumpPairs        int     `json:"max_pump_pairs"`
	TrailingPump        bool    `json:"trailing_pump"`

	// Extras
	ReinvestPosition bool `json:"reinvest_position"`
	NewListing       bool `json:"new_listing"`
}

// The four deposit tiers. Values beyond the tier boundaries fall back to the
// nearest tier (small accounts get the conservative profile, large accounts
// the professional one).
var (
	strategy100 = Strategy{
		Name:                   "conservative-100",
		DepositUSD:             100,
		MinBalancePercent:      30.0,
		PositionSizePercent:    18.0,
		MinOrderMultiplier:     1.5,
		MinPriceUSD:            0.02,
		MinDailyPercent:        -7.0,
		DailyPercent:           5.0,
		MinValueUSD:            20000.0,
		SellUpPercent:          5.0,
		MaxTradePairs:          4,
		BuyDownPercent:         4.0,
		QuantityAverMultiplier: 1.2,
		AveragePercent:         8.0,
		MaxAveraging:           4,
		StepAverPercent:        1.35,
		UseTrailingStop:        true,
		TrailingPercent:        1.0,
		TrailingPartPercent:    5.0,
		TrailingValueUSD:       50.0,
		UsePumpDetector:        true,
		PumpOrderMultiplier:    2.5,
		PumpUpPercent:          0.3,
		MaxPumpPairs:           5,
	}

	strategy1000 = Strategy{
		Name:                   "balanced-1000",
		DepositUSD:             1000,
		MinBalancePercent:      30.0,
		PositionSizePercent:    20.0,
		MinOrderMultiplier:     1.5,
		MinPriceUSD:            0.02,
		MinDailyPercent:        -5.0,
		DailyPercent:           7.0,
		MinValueUSD:            10000.0,
		SellUpPercent:          5.0,
		MaxTradePairs:          5,
		BuyDownPercent:         4.0,
		QuantityAverMultiplier: 1.3,
		AveragePercent:         8.0,
		MaxAveraging:           4,
		StepAverPercent:        1.35,
		UseTrailingStop:        true,
		TrailingPercent:        1.0,
		TrailingPartPercent:    5.0,
		TrailingValueUSD:       50.0,
		UsePumpDetector:        true,
		PumpOrderMultiplier:    2.5,
		PumpUpPercent:          0.3,
		MaxPumpPairs:           8,
	}

	strategy3000 = Strategy{
		Name:                   "aggressive-3000",
		DepositUSD:             3000,
		MinBalancePercent:      30.0,
		PositionSizePercent:    20.0,
		MinOrderMultiplier:     1.5,
		MinPriceUSD:            0.02,
		MinDailyPercent:        -5.0,
		DailyPercent:           7.0,
		MinValueUSD:            20000.0,
		SellUpPercent:          5.0,
		MaxTradePairs:          6,
		BuyDownPercent:         4.0,
		QuantityAverMultiplier: 1.4,
		AveragePercent:         8.0,
		MaxAveraging:           5,
		StepAverPercent:        1.35,
		UseTrailingStop:        true,
		TrailingPercent:        1.0,
		TrailingPartPercent:    5.0,
		TrailingValueUSD:       50.0,
		UsePumpDetector:        true,
		PumpOrderMultiplier:    3.0,
		PumpUpPercent:          0.3,
		MaxPumpPairs:           10,
		TrailingPump:           true,
		ReinvestPosition:       true,
	}

	strategy6000 = Strategy{
		Name:                   "professional-6000",
		DepositUSD:             6000,
		MinBalancePercent:      30.0,
		PositionSizePercent:    20.0,
		MinOrderMultiplier:     1.5,
		MinPriceUSD:            0.02,
		MinDailyPercent:        -5.0,
		DailyPercent:           7.0,
		MinValueUSD:            30000.0,
		SellUpPercent:          5.0,
		MaxTradePairs:          7,
		BuyDownPercent:         4.0,
		QuantityAverMultiplier: 1.5,
		AveragePercent:         8.0,
		MaxAveraging:           5,
		StepAverPercent:        1.35,
		UseTrailingStop:        true,
		TrailingPercent:        1.0,
		TrailingPartPercent:    5.0,
		TrailingValueUSD:       50.0,
		UsePumpDetector:        true,
		PumpOrderMultiplier:    3.5,
		PumpUpPercent:          0.3,
		MaxPumpPairs:           12,
		TrailingPump:           true,
		ReinvestPosition:       true,
		NewListing:             true,
	}
)

// StrategyForDeposit selects the tier matching the deposit size.
func StrategyForDeposit(depositUSD float64) Strategy {
	switch {
	case depositUSD >= 6000:
		return strategy6000
	case depositUSD >= 3000:
		return strategy3000
	case depositUSD >= 1000:
		return strategy1000
	default:
		return strategy100
	}
}
