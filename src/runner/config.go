package runner

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	CheckInterval        time.Duration `envconfig:"CHECK_INTERVAL" default:"60s"`
	PendingLookback      time.Duration `envconfig:"PENDING_LOOKBACK" default:"24h"`
	StaleProcessingAfter time.Duration `envconfig:"STALE_PROCESSING_AFTER" default:"15m"`
	SignalTimeout        time.Duration `envconfig:"SIGNAL_TIMEOUT" default:"2m"`
	InterSignalDelay     time.Duration `envconfig:"INTER_SIGNAL_DELAY" default:"2s"`
	MaxConsecutiveErrors int           `envconfig:"MAX_CONSECUTIVE_ERRORS" default:"5"`
	ErrorPause           time.Duration `envconfig:"ERROR_PAUSE" default:"10s"`
	StatusPort           string        `envconfig:"STATUS_PORT"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
