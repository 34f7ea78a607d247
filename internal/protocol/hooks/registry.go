// Package hooks holds custom decoder hooks: functions that turn the raw bytes
// of one field into an arbitrary value.
package hooks

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownHook   = errors.New("hooks: unknown decoder")
	ErrDuplicateHook = errors.New("hooks: decoder already registered")
	ErrInvalidHook   = errors.New("hooks: invalid decoder")
)

// Hook converts the raw window of a field into a value. The hook owns input
// length validation; it receives a private copy of the bytes.
type Hook func(raw []byte) (any, error)

// Resolver looks a hook up by name. Schemas resolve their hooks once at build
// time through a Resolver.
type Resolver interface {
	Lookup(name string) (Hook, bool)
}

// Registry is a named set of hooks, safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	hooks map[string]Hook
}

func NewRegistry() *Registry {
	return &Registry{hooks: map[string]Hook{}}
}

// Register adds h under name. Names are trimmed and must be unique.
func (r *Registry) Register(name string, h Hook) error {
	name = strings.TrimSpace(name)
	if name == "" || h == nil {
		return fmt.Errorf("%w: name=%q", ErrInvalidHook, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hooks[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHook, name)
	}
	r.hooks[name] = h
	return nil
}

// MustRegister is like Register but panics on error. Intended for init-time
// wiring of hooks that are part of the program.
func (r *Registry) MustRegister(name string, h Hook) {
	if err := r.Register(name, h); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(name string) (Hook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hooks[strings.TrimSpace(name)]
	return h, ok
}

// Resolve is Lookup with an error naming the missing decoder.
func (r *Registry) Resolve(name string) (Hook, error) {
	h, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHook, name)
	}
	return h, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Chain resolves names against each resolver in turn.
type Chain []Resolver

func (c Chain) Lookup(name string) (Hook, bool) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if h, ok := r.Lookup(name); ok {
			return h, true
		}
	}
	return nil, false
}

var defaultRegistry = newDefaultRegistry()

// Default returns the process-wide registry pre-loaded with the built-in
// decoders.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a hook to the default registry.
func Register(name string, h Hook) error {
	if err := defaultRegistry.Register(name, h); err != nil {
		return err
	}
	log.Debug().Str("decoder", strings.TrimSpace(name)).Msg("hooks.Register")
	return nil
}
