package badger

import "sync/atomic"

// logSequence disambiguates log keys written within the same nanosecond
var logSequence uint64

func nextLogSequence() uint64 {
	return atomic.AddUint64(&logSequence, 1)
}
