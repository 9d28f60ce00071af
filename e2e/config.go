package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_DUMP_MESSAGES dumps decoded conversation feeds between steps
	DumpMessages bool   `envconfig:"E2E_DUMP_MESSAGES" default:"false"`
	LogLevel     string `envconfig:"E2E_LOG_LEVEL" default:"ERROR"`
	// Key stretching rounds are kept low here so the suite stays fast;
	// the production value lives in the server configuration.
	CodecIterations int      `envconfig:"E2E_CODEC_ITERATIONS" default:"4096"`
	Operators       []string `envconfig:"E2E_OPERATORS" default:"root"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
