package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	UpbitAccessKey    string        `envconfig:"UPBIT_ACCESS_KEY"`
	UpbitSecretKey    string        `envconfig:"UPBIT_SECRET_KEY"`
	UpbitAccessKeyEnc string        `envconfig:"UPBIT_ACCESS_KEY_ENC"`
	UpbitSecretKeyEnc string        `envconfig:"UPBIT_SECRET_KEY_ENC"`
	BaseURL           string        `envconfig:"UPBIT_BASE_URL" default:"https://api.upbit.com"`
	OrderRetryAttempts int          `envconfig:"ORDER_RETRY_ATTEMPTS" default:"3"`
	OrderRetryDelay   time.Duration `envconfig:"ORDER_RETRY_DELAY" default:"500ms"`
	SellPortion       float64       `envconfig:"SELL_PORTION" default:"0.5"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
