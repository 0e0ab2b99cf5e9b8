package trading

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// QuoteMaxAge is the age after which a cached quote no longer prices orders.
	QuoteMaxAge time.Duration `envconfig:"QUOTE_MAX_AGE" default:"5m"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
