// Package ioutil holds small I/O helpers shared by the codec packages.
package ioutil

import "io"

// CloseAll closes every non-nil closer, even after a failure, and returns
// the first error.
func CloseAll(closers ...io.Closer) error {
	var firstErr error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CloseWhileHandling closes every closer and discards their errors.
// Use it on a failure path where the original error must win.
func CloseWhileHandling(closers ...io.Closer) {
	for _, c := range closers {
		if c != nil {
			_ = c.Close()
		}
	}
}
