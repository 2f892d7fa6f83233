// Package logutil owns the process logger. Components take named
// children ("dh.layer", "rpc.layer", ...) so log output can be filtered
// by subsystem.
package logutil

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	root = zap.Must(zap.NewProduction())
)

// SetRoot replaces the process logger, e.g. with a test observer.
func SetRoot(l *zap.Logger) {
	mu.Lock()
	root = l
	mu.Unlock()
}

// Init builds a production logger at the given level and installs it.
func Init(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	SetRoot(l)
	return nil
}

// L returns the named category logger.
func L(category string) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(category)
}
