// Package flowlog provides the debug-output toggle the engine's config
// recognizes (spec "debug output toggle"): diagnostic messages from
// topology construction and lifecycle transitions, gated behind a single
// package-level logger instance.
package flowlog

import (
	"os"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	airbrake "gopkg.in/gemnasium/logrus-airbrake-hook.v2"
)

var (
	mu  sync.RWMutex
	log = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	if debugEnabled() {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

func debugEnabled() bool {
	v, err := strconv.ParseBool(os.Getenv("FLOWGRAPH_DEBUG"))
	if err != nil {
		return false
	}
	return v
}

// SetDebug toggles debug-level logging at runtime, mirroring the engine's
// `debug output toggle` configuration option.
func SetDebug(on bool) {
	mu.Lock()
	defer mu.Unlock()
	if on {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// WithAirbrakeReporting attaches an Airbrake hook so block runtime
// failures are additionally reported to an external error tracker, on top
// of the diagnostic line the engine always logs. Safe to call more than
// once; each call adds another hook.
func WithAirbrakeReporting(projectID int64, apiKey, environment string) {
	mu.Lock()
	defer mu.Unlock()
	log.AddHook(airbrake.NewHook(projectID, apiKey, environment))
}

// Debugf logs at debug level.
func Debugf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Debugf(format, args...)
}

// Infof logs at info level.
func Infof(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Infof(format, args...)
}

// Warnf logs at warn level.
func Warnf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Warnf(format, args...)
}

// Errorf logs at error level.
func Errorf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Errorf(format, args...)
}

// WithField returns a logrus entry with one field set, for call sites that
// want to log a naming block/pipe id alongside a message.
func WithField(key string, value interface{}) *logrus.Entry {
	mu.RLock()
	defer mu.RUnlock()
	return log.WithField(key, value)
}
