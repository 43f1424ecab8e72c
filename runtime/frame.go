package runtime

import (
	"github.com/glossopoeia/rexxcore/object"
)

// Entries on an activity's frame stack. The set of frame kinds is closed:
// interpreter activations, native bridge frames, and markers separating
// independent call-ins on the same activity.
type Frame interface {
	isFrame()
}

func (*Activation) isFrame()       {}
func (*NativeActivation) isFrame() {}
func (*stackMarker) isFrame()      {}

// Separates a fresh top-level invocation from whatever the activity was
// already running. Unwinding stops at a marker.
type stackMarker struct {
	name string
}

const frameSegmentSize = 1024

// A frameStack hands out the evaluation stack and local variable slots of the
// activations running on one activity. Allocation and release are LIFO, in
// segments that never move, so slices handed out stay valid.
type frameStack struct {
	segments [][]object.Value
	used     []int
}

func (f *frameStack) allocate(size int) []object.Value {
	if n := len(f.segments); n > 0 && f.used[n-1]+size <= len(f.segments[n-1]) {
		start := f.used[n-1]
		f.used[n-1] += size
		return f.segments[n-1][start : start+size : start+size]
	}
	seg := make([]object.Value, max(size, frameSegmentSize))
	f.segments = append(f.segments, seg)
	f.used = append(f.used, size)
	return seg[:size:size]
}

// Give back the most recent allocation.
func (f *frameStack) release(slots []object.Value) {
	n := len(f.segments) - 1
	if n < 0 || f.used[n] < len(slots) {
		panic("Frame stack underflow detected.")
	}
	clear(slots)
	f.used[n] -= len(slots)
	if f.used[n] == 0 && n > 0 {
		f.segments = f.segments[:n]
		f.used = f.used[:n]
	}
}

// Copy slots allocated elsewhere onto this frame stack.
func (f *frameStack) migrate(slots []object.Value) []object.Value {
	res := f.allocate(len(slots))
	copy(res, slots)
	return res
}

// The number of slots currently allocated.
func (f *frameStack) size() int {
	total := 0
	for _, u := range f.used {
		total += u
	}
	return total
}
