package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const EnvDevelopment = "development"

// New builds the process logger. Development gets debug level and a console
// writer; every other environment logs JSON at info level.
func New(env, service string) zerolog.Logger {
	return NewWithWriter(os.Stdout, env, service)
}

func NewWithWriter(w io.Writer, env, service string) zerolog.Logger {
	dev := strings.EqualFold(strings.TrimSpace(env), EnvDevelopment)

	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	out := w
	if dev {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if service != "" {
		ctx = ctx.Str("service", service)
	}
	return ctx.Logger()
}
