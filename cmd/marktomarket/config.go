package marktomarket

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// UserID and Symbols narrow the run; empty means every open position.
	UserID  string   `envconfig:"MARK_USER_ID"`
	Symbols []string `envconfig:"MARK_SYMBOLS"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	for i, s := range config.Symbols {
		config.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	return &config
}
