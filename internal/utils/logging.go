package utils

import (
	"log"
	"strings"
	"sync/atomic"
)

var debug atomic.Bool

// InitLogging sets log flags and the verbosity. Only "debug" enables Debugf output.
func InitLogging(level string) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	debug.Store(strings.EqualFold(strings.TrimSpace(level), "debug"))
}

// DebugEnabled reports whether debug logging is on
func DebugEnabled() bool {
	return debug.Load()
}

// Debugf logs only when the level is debug
func Debugf(format string, args ...interface{}) {
	if debug.Load() {
		log.Printf(format, args...)
	}
}
