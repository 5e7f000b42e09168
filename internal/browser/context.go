// internal/browser/context.go
package browser

import (
	"context"
	"time"
)

// CombineContext returns a context carrying ctx1's values (the tab and its CDP
// connection) that is canceled when either ctx1 or ctx2 is done. ctx2 is the
// operational context holding the caller's deadline.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// valueOnlyContext keeps its parent's values but drops its deadline and
// cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that inherits values from ctx but is not canceled
// when ctx is. Cookie saving and tab teardown use it so they outlive an
// interrupted run.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
