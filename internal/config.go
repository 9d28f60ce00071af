package internal

import (
	"fmt"
	"time"
)

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`
	Debug          bool   `env:"DEBUG"`
	DebugPort      int    `env:"DEBUG_PORT,default=8089"`

	CodecPassphrase string `env:"CODEC_PASSPHRASE,required=true"`
	CodecSalt       string `env:"CODEC_SALT,required=true"`
	CodecIterations int    `env:"CODEC_ITERATIONS,default=100000"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	Operators         []string      `env:"OPERATORS"`

	CensoredWords   []string `env:"CENSORED_WORDS"`
	CharReplacement string   `env:"CHARACTER_REPLACEMENT,default=*"`

	TypingActiveThreshold time.Duration `env:"TYPING_ACTIVE_THRESHOLD,default=3s"`
	TypingStaleThreshold  time.Duration `env:"TYPING_STALE_THRESHOLD,default=10s"`

	ConversationPollInterval time.Duration `env:"CONVERSATION_POLL_INTERVAL,default=1s"`
	TypingPollInterval       time.Duration `env:"TYPING_POLL_INTERVAL,default=1s"`
	PresencePollInterval     time.Duration `env:"PRESENCE_POLL_INTERVAL,default=30s"`
	LivenessInterval         time.Duration `env:"LIVENESS_INTERVAL,default=60s"`
	MetricInterval           time.Duration `env:"METRIC_INTERVAL,default=30s"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	// SessionLogin and SessionPassword identify the local account the
	// client process runs as. Optional, the process starts without a
	// session when unset.
	SessionLogin    string `env:"SESSION_LOGIN"`
	SessionPassword string `env:"SESSION_PASSWORD"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
