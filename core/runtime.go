package orchestration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// sessionRuntime owns the goroutine that takes perceptions off the queue and
// runs their turns one at a time.
type sessionRuntime struct {
	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	endOnce   sync.Once

	started atomic.Bool
}

func newSessionRuntime() *sessionRuntime {
	return &sessionRuntime{
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// start runs process in a loop until it fails or the runtime is ended.
func (runtime *sessionRuntime) start(ctx context.Context, process func(context.Context) error) (started bool) {
	if runtime == nil || runtime.isClosed() {
		return false
	}

	runtime.startOnce.Do(func() {
		if runtime.isClosed() {
			return
		}

		started = true
		runtime.started.Store(true)
		go func() {
			defer close(runtime.done)

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				select {
				case <-runtime.closeCh:
					cancel()
				case <-ctx.Done():
				}
			}()

			run := panicSafeNamedWorker("session", process)
			for {
				if err := run(ctx); err != nil {
					if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
						logger.Error("session stopped", "error", err)
					}
					if ctx.Err() != nil {
						return
					}
				}
			}
		}()
	})

	return started
}

func (runtime *sessionRuntime) end() {
	if runtime == nil {
		return
	}

	runtime.endOnce.Do(func() {
		close(runtime.closeCh)
	})
}

func (runtime *sessionRuntime) waitUntilEnded() {
	if runtime == nil {
		return
	}

	if runtime.started.Load() {
		<-runtime.done
	}
}

func (runtime *sessionRuntime) isClosed() bool {
	if runtime == nil {
		return false
	}

	select {
	case <-runtime.closeCh:
		return true
	default:
		return false
	}
}
