// Package inject defines the synthetic-input capability the player drives.
package inject

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Injector synthesizes OS-level input. Implementations wrap a platform
// automation library; the engine only depends on this interface.
type Injector interface {
	InjectClick(x, y int) error
	InjectKeyPress(key string) error
	InjectText(text string) error
}

// Locked serializes every call to the wrapped injector. The injector is a
// single process-wide resource, so every player shares one Locked value.
type Locked struct {
	mu    sync.Mutex
	inner Injector
}

// NewLocked wraps inner.
func NewLocked(inner Injector) *Locked {
	if l, ok := inner.(*Locked); ok {
		return l
	}
	return &Locked{inner: inner}
}

func (l *Locked) InjectClick(x, y int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.InjectClick(x, y)
}

func (l *Locked) InjectKeyPress(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.InjectKeyPress(key)
}

func (l *Locked) InjectText(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.InjectText(text)
}

// Log is a dry-run injector that only logs what it would do.
type Log struct{}

func (Log) InjectClick(x, y int) error {
	log.Info().Int("x", x).Int("y", y).Msg("Inject click")
	return nil
}

func (Log) InjectKeyPress(key string) error {
	log.Info().Str("key", key).Msg("Inject key press")
	return nil
}

func (Log) InjectText(text string) error {
	log.Info().Str("text", text).Msg("Inject text")
	return nil
}
