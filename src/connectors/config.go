package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DhanBaseURL string `envconfig:"DHAN_BASE_URL" default:"https://api.dhan.co/v2"`

	// Read calls carry a shorter budget than mutating calls.
	ReadTimeout  time.Duration `envconfig:"DHAN_READ_TIMEOUT" default:"10s"`
	TradeTimeout time.Duration `envconfig:"DHAN_TRADE_TIMEOUT" default:"20s"`

	// Retries apply to read calls only. Mutating calls are never retried:
	// a replayed place could double-submit.
	ReadRetryCount int `envconfig:"DHAN_READ_RETRY_COUNT" default:"2"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
