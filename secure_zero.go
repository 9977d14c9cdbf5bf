package noise

import "runtime"

// secureZero zeroes the provided byte slice so sensitive data does not
// remain in memory. runtime.KeepAlive stops the compiler from optimizing
// the zeroing away.
func secureZero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// secureZeroAll zeroes every listed slice. Nil slices are skipped.
func secureZeroAll(bufs ...[]byte) {
	for _, b := range bufs {
		secureZero(b)
	}
}
