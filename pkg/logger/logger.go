// Package logger provides the process-wide zap logger.
package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu       sync.Mutex
	instance *zap.Logger
)

// Init initializes the global logger with the production configuration.
func Init() error {
	mu.Lock()
	defer mu.Unlock()

	l, err := zap.NewProduction()
	if err != nil {
		return err
	}
	instance = l
	return nil
}

// Get returns the global logger, creating a default one if Init was not called.
func Get() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()

	if instance == nil {
		instance, _ = zap.NewProduction()
	}
	return instance
}

// Sync flushes buffered log entries. Safe to call on shutdown.
func Sync() {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		_ = instance.Sync()
	}
}
