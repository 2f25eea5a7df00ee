package risk

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	MaxDailyTrades      int     `envconfig:"MAX_DAILY_TRADES" default:"10"`
	MaxPositionPct      float64 `envconfig:"MAX_POSITION_PCT" default:"0.05"`
	MaxTotalExposurePct float64 `envconfig:"MAX_TOTAL_EXPOSURE_PCT" default:"0.30"`
	StopLossPct         float64 `envconfig:"STOP_LOSS_PCT" default:"0.08"`
	TakeProfitPct       float64 `envconfig:"TAKE_PROFIT_PCT" default:"0.20"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
