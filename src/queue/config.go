package queue

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Tick        time.Duration `envconfig:"QUEUE_TICK" default:"2s"`
	BatchSize   int           `envconfig:"QUEUE_BATCH_SIZE" default:"5"`
	BatchPause  time.Duration `envconfig:"QUEUE_BATCH_PAUSE" default:"1s"`
	BaseBackoff time.Duration `envconfig:"QUEUE_BASE_BACKOFF" default:"5s"`
	MaxBackoff  time.Duration `envconfig:"QUEUE_MAX_BACKOFF" default:"1m"`
	MaxAttempts int           `envconfig:"QUEUE_MAX_ATTEMPTS" default:"5"`
}

// DefaultConfig mirrors the envconfig defaults.
func DefaultConfig() Config {
	return Config{
		Tick:        2 * time.Second,
		BatchSize:   5,
		BatchPause:  time.Second,
		BaseBackoff: 5 * time.Second,
		MaxBackoff:  time.Minute,
		MaxAttempts: 5,
	}
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
