// Package sysutil holds process bootstrap helpers for the server binary:
// global logger setup and build version lookup.
package sysutil

import (
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetLogLevel sets the global zerolog level. Unknown or empty values mean info.
func SetLogLevel(lvl string) {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(lvl)))
	switch {
	case strings.EqualFold(strings.TrimSpace(lvl), "warning"):
		l = zerolog.WarnLevel
	case err != nil || l == zerolog.NoLevel || l < zerolog.DebugLevel || l > zerolog.PanicLevel:
		l = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(l)
}

// SetupLogger configures the global zerolog logger to write to w (stderr when
// nil) with RFC3339 millisecond timestamps, optionally through a console
// writer for local runs.
func SetupLogger(level string, pretty bool, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	SetLogLevel(level)
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000Z07:00"
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// Version reports the running build: APP_VERSION when set, then the main
// module version from build info, then "dev".
func Version() string {
	var mod string
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "(devel)" {
		mod = bi.Main.Version
	}
	return FirstNonEmpty(os.Getenv("APP_VERSION"), mod, "dev")
}

// FirstNonEmpty returns the first argument that is not blank, or "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
