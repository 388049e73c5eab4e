package safe

import (
	"lchat/logger"
)

// Go starts a goroutine that recovers from panics so a single
// misbehaving handler cannot take the whole gateway down.
func Go(name string, f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] %s panic recovered: %v", name, r)
			}
		}()
		f()
	}()
}

// Run invokes f synchronously with panic recovery, returning whether it
// completed without panicking. The poll workers rely on this so a
// panicking cycle still releases its single-flight flag.
func Run(name string, f func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[safe.Run] %s panic recovered: %v", name, r)
			ok = false
		}
	}()
	f()
	return true
}
