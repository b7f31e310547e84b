package runtime

import "errors"

// ErrStopped is returned when submitting to a loop that is not running.
var ErrStopped = errors.New("runtime: loop stopped")
