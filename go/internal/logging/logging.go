// Package logging configures the global zerolog logger for the binaries.
package logging

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Setup points log.Logger at stdout. LOG_FORMAT=console selects the human
// readable writer, anything else emits JSON. LOG_LEVEL defaults to info.
func Setup(service string) {
	Configure(os.Stdout, os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL"), service)
}

// Configure is Setup with explicit inputs.
func Configure(out io.Writer, format, level, service string) {
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	log.Logger = zerolog.New(out).With().Timestamp().Str("service", service).Logger()
}

// AccessLog wraps next with request id and access logging.
func AccessLog(next http.Handler) http.Handler {
	h := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(next)
	h = hlog.RemoteAddrHandler("remote_addr")(h)
	h = hlog.RequestIDHandler("request_id", "X-Request-ID")(h)
	return hlog.NewHandler(log.Logger)(h)
}
