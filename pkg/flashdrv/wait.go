package flashdrv

import (
	"time"
)

//waitAtLeast blocks until at least ival has elapsed since checkpoint. time.Since
// uses the monotonic clock reading carried by checkpoint, so wall clock steps
// cannot shorten the wait. Sleep may oversleep; only the lower bound matters.
func waitAtLeast(checkpoint time.Time, ival time.Duration) {
	for {
		remaining := ival - time.Since(checkpoint)
		if remaining <= 0 {
			return
		}
		time.Sleep(remaining)
	}
}
