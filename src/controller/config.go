package controller

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// MaxConcurrentOrders bounds in-flight dispatch workers so a large
	// batch cannot exhaust outbound connections.
	MaxConcurrentOrders int `envconfig:"MAX_CONCURRENT_ORDERS" default:"16"`
	MaxConcurrentReads  int `envconfig:"MAX_CONCURRENT_READS" default:"8"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
