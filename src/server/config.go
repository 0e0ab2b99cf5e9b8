package server

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port string `envconfig:"PORT" default:"9898"`
	// EnableBackgroundJobs runs the quote poller and mark-to-market loop in-process.
	EnableBackgroundJobs bool   `envconfig:"ENABLE_BACKGROUND_JOBS" default:"false"`
	AllowedOrigin        string `envconfig:"ALLOWED_ORIGIN" default:"*"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
