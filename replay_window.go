package noise

import "fmt"

const replayWindowWords = ReplayWindowSize / 64

// replayWindow tracks which extracted-nonce counters have been accepted,
// using a sliding bitmap anchored at the highest counter seen so far. Bit d
// of the bitmap records counter highest-d, so the window covers the
// ReplayWindowSize most recent counter values.
type replayWindow struct {
	highest uint64
	bitmap  [replayWindowWords]uint64
}

// check reports whether counter may still be accepted. Counters more than
// ReplayWindowSize-1 behind the highest accepted one are too old to track;
// counters whose bit is already set were delivered before.
func (w *replayWindow) check(counter uint64) error {
	if counter > w.highest {
		return nil
	}
	diff := w.highest - counter
	if diff >= ReplayWindowSize {
		return fmt.Errorf("%w: counter %d is behind the window", ErrReplayDetected, counter)
	}
	if w.bitmap[diff/64]&(1<<(diff%64)) != 0 {
		return fmt.Errorf("%w: counter %d already accepted", ErrReplayDetected, counter)
	}
	return nil
}

// accept marks counter as seen. A counter ahead of the window shifts the
// bitmap forward, clearing it entirely when the jump spans a full window.
// accept must only be called for counters check has approved.
func (w *replayWindow) accept(counter uint64) {
	if counter > w.highest {
		w.shift(counter - w.highest)
		w.highest = counter
		w.bitmap[0] |= 1
		return
	}
	diff := w.highest - counter
	w.bitmap[diff/64] |= 1 << (diff % 64)
}

// shift slides the bitmap n positions toward older counters.
func (w *replayWindow) shift(n uint64) {
	if n >= ReplayWindowSize {
		w.bitmap = [replayWindowWords]uint64{}
		return
	}
	words := int(n / 64)
	bits := n % 64
	if words > 0 {
		for i := replayWindowWords - 1; i >= 0; i-- {
			if i >= words {
				w.bitmap[i] = w.bitmap[i-words]
			} else {
				w.bitmap[i] = 0
			}
		}
	}
	if bits > 0 {
		for i := replayWindowWords - 1; i > 0; i-- {
			w.bitmap[i] = w.bitmap[i]<<bits | w.bitmap[i-1]>>(64-bits)
		}
		w.bitmap[0] <<= bits
	}
}

func (w *replayWindow) reset() {
	w.highest = 0
	w.bitmap = [replayWindowWords]uint64{}
}
