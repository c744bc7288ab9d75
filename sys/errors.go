package sys

import (
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"github.com/decorstore/cachekit/logger"
)

// PanicError converts a recovered value into an error.
func PanicError(r any) error {
	if err, ok := r.(error); ok {
		return errors.Wrap(err, "panic")
	}
	return errors.Newf("panic: %v", r)
}

// RecoverPanic logs a recovered panic with its stack. Use it deferred at the top of
// goroutines whose failure must not crash the process.
func RecoverPanic(log logger.Logger) {
	if r := recover(); r != nil {
		log.Error("recovered from panic: %s\n%s", PanicError(r), debug.Stack())
	}
}

// Go runs fn in a new goroutine guarded by RecoverPanic.
func Go(log logger.Logger, fn func()) {
	go func() {
		defer RecoverPanic(log)
		fn()
	}()
}
