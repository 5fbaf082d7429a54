/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package log is the VM-wide leveled logger. The calling convention
// (Log(msg, level)) matches the teacher's homegrown logger, but the
// backend is a zap SugaredLogger so formatting, sampling, and output
// encoding all come from a real structured-logging library rather than
// a hand-rolled stdlib wrapper.
package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors the six levels the VM's tracing calls use.
type Level int

const (
	FINEST Level = iota
	FINE
	INFO
	WARNING
	SEVERE
	ERROR
)

var levelNames = map[Level]string{
	FINEST:  "FINEST",
	FINE:    "FINE",
	INFO:    "INFO",
	WARNING: "WARNING",
	SEVERE:  "SEVERE",
	ERROR:   "ERROR",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return "UNKNOWN"
}

const ringSize = 256

var (
	mu       sync.Mutex
	sugar    *zap.SugaredLogger
	minLevel = WARNING
	ring     [ringSize]string
	ringNext int
	ringLen  int
)

// Init builds the backing zap logger. Safe to call more than once (e.g.
// across tests); each call replaces the previous logger.
func Init() {
	mu.Lock()
	defer mu.Unlock()

	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	sugar = logger.Sugar()
	ringNext, ringLen = 0, 0
}

// SetLogLevel changes the minimum level that reaches the zap backend.
// Levels below this are not passed to the backend; the in-memory ring
// buffer still records every level (see Recent).
func SetLogLevel(l Level) error {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
	return nil
}

// Log records msg at the given level, returning it unchanged so callers
// can write `_ = log.Log(msg, log.SEVERE)` in the teacher's style.
func Log(msg string, level Level) string {
	mu.Lock()
	defer mu.Unlock()

	ring[ringNext] = "[" + level.String() + "] " + msg
	ringNext = (ringNext + 1) % ringSize
	if ringLen < ringSize {
		ringLen++
	}

	if level < minLevel || sugar == nil {
		return msg
	}

	switch {
	case level >= ERROR:
		sugar.Error(msg)
	case level >= SEVERE:
		sugar.Error(msg)
	case level >= WARNING:
		sugar.Warn(msg)
	case level >= INFO:
		sugar.Info(msg)
	default:
		sugar.Debug(msg)
	}
	return msg
}

// Recent returns up to n of the most recently logged lines, oldest
// first, regardless of the configured minimum level.
func Recent(n int) []string {
	mu.Lock()
	defer mu.Unlock()

	if n <= 0 || n > ringLen {
		n = ringLen
	}
	out := make([]string, 0, n)
	start := (ringNext - ringLen + ringSize) % ringSize
	for i := 0; i < n; i++ {
		out = append(out, ring[(start+i)%ringSize])
	}
	return out
}
