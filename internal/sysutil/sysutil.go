// Package sysutil holds process-level helpers shared by the entrypoint,
// configuration and integrations.
package sysutil

import (
	"strings"

	"github.com/rs/zerolog"
)

// ParseLogLevel maps LOG_LEVEL onto a zerolog level. "warning" is accepted as
// an alias; empty, unknown and disabling values ("disabled", "trace") fall
// back to info.
func ParseLogLevel(lvl string) zerolog.Level {
	s := strings.ToLower(strings.TrimSpace(lvl))
	if s == "warning" {
		s = "warn"
	}
	l, err := zerolog.ParseLevel(s)
	if err != nil || l == zerolog.NoLevel || l == zerolog.Disabled || l == zerolog.TraceLevel {
		return zerolog.InfoLevel
	}
	return l
}

// SetLogLevel applies ParseLogLevel(lvl) globally and returns the result.
func SetLogLevel(lvl string) zerolog.Level {
	l := ParseLogLevel(lvl)
	zerolog.SetGlobalLevel(l)
	return l
}

// ParseBool reads the usual environment spellings of a boolean. ok is false
// when v is none of them.
func ParseBool(v string) (val, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	}
	return false, false
}

// IsTruthy reports whether v spells true.
func IsTruthy(v string) bool {
	b, _ := ParseBool(v)
	return b
}

// FirstNonEmpty returns the first value that is not blank, unmodified.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
