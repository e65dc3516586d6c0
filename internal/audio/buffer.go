// Package audio provides the inbound framing primitives for the relay:
// burst accumulation of telephony media and the bounded pre-roll queue used
// while the agent session is not yet ready.
package audio

// FrameBuffer accumulates arbitrarily sized chunks and drains them into
// frames of exactly frameBytes each. Any remainder is retained for the
// next push; a short frame is never emitted.
type FrameBuffer struct {
	frameBytes int
	buf        []byte
}

// NewFrameBuffer creates a buffer emitting frames of frameBytes bytes.
func NewFrameBuffer(frameBytes int) *FrameBuffer {
	if frameBytes <= 0 {
		frameBytes = 1
	}
	return &FrameBuffer{frameBytes: frameBytes}
}

// Push appends a chunk and returns zero or more complete frames in receipt
// order. Returned slices are copies and safe to retain.
func (b *FrameBuffer) Push(p []byte) [][]byte {
	b.buf = append(b.buf, p...)
	var frames [][]byte
	for len(b.buf) >= b.frameBytes {
		frame := make([]byte, b.frameBytes)
		copy(frame, b.buf[:b.frameBytes])
		frames = append(frames, frame)
		b.buf = b.buf[b.frameBytes:]
	}
	return frames
}

// Pending returns the number of buffered bytes not yet forming a frame.
func (b *FrameBuffer) Pending() int { return len(b.buf) }

// PrerollQueue is a capped FIFO of frames. When full, the oldest frame is
// evicted to admit the newest: stale pre-roll audio has no conversational
// value, so bounded staleness beats backpressure.
type PrerollQueue struct {
	max     int
	frames  [][]byte
	dropped int
}

// NewPrerollQueue creates a queue holding at most max frames.
func NewPrerollQueue(max int) *PrerollQueue {
	if max <= 0 {
		max = 1
	}
	return &PrerollQueue{max: max}
}

// Push enqueues a frame, evicting the oldest when at capacity.
func (q *PrerollQueue) Push(frame []byte) {
	if len(q.frames) >= q.max {
		q.frames = q.frames[1:]
		q.dropped++
	}
	q.frames = append(q.frames, frame)
}

// Drain returns all queued frames in original order and empties the queue.
func (q *PrerollQueue) Drain() [][]byte {
	out := q.frames
	q.frames = nil
	return out
}

// Len returns the number of queued frames.
func (q *PrerollQueue) Len() int { return len(q.frames) }

// Dropped returns how many frames were evicted due to overflow.
func (q *PrerollQueue) Dropped() int { return q.dropped }
