package submitter

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	APIBaseURL string        `envconfig:"API_BASE_URL" default:"http://localhost:9898"`
	APIToken   string        `envconfig:"API_TOKEN" required:"true"`
	Timeout    time.Duration `envconfig:"API_TIMEOUT" default:"10s"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
