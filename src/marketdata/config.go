package marketdata

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	ProviderBinance = "binance"
	ProviderHTTP    = "http"
)

type Config struct {
	Provider        string        `envconfig:"QUOTE_PROVIDER" default:"binance"`
	FeedURL         string        `envconfig:"QUOTE_FEED_URL"`
	BinanceEndpoint string        `envconfig:"BINANCE_ENDPOINT" default:"https://api.binance.com"`
	Symbols         []string      `envconfig:"QUOTE_SYMBOLS" default:"BTC_USDT,ETH_USDT"`
	PollPeriod      time.Duration `envconfig:"QUOTE_POLL_PERIOD" default:"15s"`
	Timeout         time.Duration `envconfig:"QUOTE_HTTP_TIMEOUT" default:"10s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
