package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	MarkToMarketPeriod time.Duration `envconfig:"MARK_TO_MARKET_PERIOD" default:"1m"`
	QuotePollPeriod    time.Duration `envconfig:"QUOTE_POLL_PERIOD" default:"15s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
