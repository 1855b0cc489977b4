// Package log gives every component a small tagged Logger
// (`logger log.Logger`, `log.NewLogger(self)`, `logger.Debug(fmt, args...)`),
// backed by github.com/inconshreveable/log15 instead of a hand-rolled
// implementation.
package log

import (
	"fmt"
	"sync"

	log15 "github.com/inconshreveable/log15"
)

// Level is the DEBUG/INFO/WARN/ERROR severity tier.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var (
	mu      sync.RWMutex
	current = INFO
	root    = log15.New()
)

// SetLogLevel changes the process-wide minimum level. Loggers read it on
// every call, so it can be adjusted at runtime.
func SetLogLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

func enabled(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= current
}

// Logger is the interface every stateful component holds a field of,
// tagged with the type name of the value that owns it.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

type logger struct {
	tag string
	h   log15.Logger
}

// NewLogger tags every line with the Go type name of owner, the way the
// teacher tags with the owning struct value.
func NewLogger(owner interface{}) Logger {
	tag := fmt.Sprintf("%T", owner)
	return &logger{tag: tag, h: root.New("component", tag)}
}

func (l *logger) Debug(format string, args ...interface{}) {
	if enabled(DEBUG) {
		l.h.Debug(fmt.Sprintf(format, args...))
	}
}

func (l *logger) Info(format string, args ...interface{}) {
	if enabled(INFO) {
		l.h.Info(fmt.Sprintf(format, args...))
	}
}

func (l *logger) Warn(format string, args ...interface{}) {
	if enabled(WARN) {
		l.h.Warn(fmt.Sprintf(format, args...))
	}
}

func (l *logger) Error(format string, args ...interface{}) {
	if enabled(ERROR) {
		l.h.Error(fmt.Sprintf(format, args...))
	}
}
