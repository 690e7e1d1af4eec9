package errs

import "fmt"

// RecoverFn runs fn and converts a panic into an error instead of
// letting it unwind past the dispatch boundary.
func RecoverFn(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	return fn()
}
