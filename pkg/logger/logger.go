// Package logx configures the process-wide zerolog logger.
package logx

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Level is one of trace, debug, info, warn, error. Unknown values
	// fall back to info.
	Level        string `default:"info"`
	PrettyFormat bool   `split_words:"true" default:"false"`
}

func Init(opts ...Config) {
	conf := Config{Level: "info"}
	if len(opts) > 0 {
		conf = opts[0]
	}

	var base zerolog.Logger
	if conf.PrettyFormat {
		base = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		base = zerolog.New(os.Stderr)
	}

	log.Logger = base.With().
		Timestamp().
		Caller().
		Logger().
		Level(parseLevel(conf.Level))
}

// With returns a logger tagged with the originating component.
func With(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
