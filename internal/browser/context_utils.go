// internal/browser/context_utils.go
package browser

import (
	"context"
	"time"
)

// CombineContext derives from primary (keeping its values, which for chromedp
// carry the CDP target) and is also canceled when secondary is done.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}

// valueOnlyContext keeps the parent's values but never expires.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that inherits values from ctx but is not canceled
// when ctx is. Used for cleanup that must outlive a canceled run.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
