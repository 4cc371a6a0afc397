package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type LoadFunc func(ctx context.Context) (Handle, error)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Loader initializes the engine once per process and hands out the loaded
// handle. There is no reload: a failed load stays failed.
type Loader struct {
	load LoadFunc
	once sync.Once
	done chan struct{}

	loading  atomic.Bool
	handle   Handle
	err      error
	loadedIn time.Duration
}

func NewLoader(load LoadFunc) *Loader {
	return &Loader{
		load: load,
		done: make(chan struct{}),
	}
}

// Load runs the one-time initialization, or waits for the one in progress.
func (l *Loader) Load(ctx context.Context) (Handle, error) {
	l.once.Do(func() {
		l.loading.Store(true)
		start := time.Now()
		handle, err := l.load(ctx)
		if err == nil && handle == nil {
			err = ErrBinaryNotFound
		}
		if err != nil {
			l.err = &LoadError{cause: err}
		} else {
			l.handle = handle
		}
		l.loadedIn = time.Since(start)
		l.loading.Store(false)
		close(l.done)
	})
	return l.handle, l.err
}

func (l *Loader) Ready() bool {
	select {
	case <-l.done:
		return l.err == nil
	default:
		return false
	}
}

// Handle returns the ready engine, ErrNotReady while loading or the LoadError.
func (l *Loader) Handle() (Handle, error) {
	select {
	case <-l.done:
		return l.handle, l.err
	default:
		return nil, ErrNotReady
	}
}

// Wait blocks until loading has finished or ctx is done.
func (l *Loader) Wait(ctx context.Context) (Handle, error) {
	select {
	case <-l.done:
		return l.handle, l.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loader) State() State {
	select {
	case <-l.done:
		if l.err != nil {
			return StateFailed
		}
		return StateReady
	default:
		if l.loading.Load() {
			return StateLoading
		}
		return StateIdle
	}
}
