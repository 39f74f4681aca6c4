package safe

import (
	"runtime/debug"

	"github.com/harbor-im/harbor/logger"
)

// Go starts a goroutine that recovers from panics, so a fault in one
// connection's handler cannot take down the whole gateway.
func Go(name string, f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[panic] %s: %v\n%s", name, r, debug.Stack())
			}
		}()
		f()
	}()
}
