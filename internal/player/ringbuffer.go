package player

import "sync"

// RingBuffer is a fixed-capacity buffer of interleaved stereo frames
// bridging the decode goroutine and the output callback. The producer
// blocks while the buffer is full; the consumer never blocks and pads
// short reads with silence.
type RingBuffer struct {
	mu     sync.Mutex
	notFul sync.Cond
	frames [][2]float64
	head   int
	tail   int
	length int
	closed bool
}

// NewRingBuffer creates a buffer holding up to capacity frames.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	b := &RingBuffer{frames: make([][2]float64, capacity)}
	b.notFul.L = &b.mu
	return b
}

// Cap returns the buffer's fixed capacity in frames.
func (b *RingBuffer) Cap() int { return len(b.frames) }

// Len returns the number of buffered frames.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// Write appends frames, blocking while the buffer is full. It returns
// the number of frames written, which is short only when the buffer
// has been closed.
func (b *RingBuffer) Write(frames [][2]float64) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	written := 0
	for written < len(frames) {
		for b.length == len(b.frames) && !b.closed {
			b.notFul.Wait()
		}
		if b.closed {
			return written
		}
		for written < len(frames) && b.length < len(b.frames) {
			b.frames[b.tail] = frames[written]
			b.tail = (b.tail + 1) % len(b.frames)
			b.length++
			written++
		}
	}
	return written
}

// Read copies up to len(frames) buffered frames into frames and fills
// the remainder with silence. It never blocks. The return value is the
// number of real frames copied; frames[n:] is all zeros.
func (b *RingBuffer) Read(frames [][2]float64) int {
	b.mu.Lock()
	n := 0
	for n < len(frames) && b.length > 0 {
		frames[n] = b.frames[b.head]
		b.head = (b.head + 1) % len(b.frames)
		b.length--
		n++
	}
	if n > 0 {
		b.notFul.Broadcast()
	}
	b.mu.Unlock()

	for i := n; i < len(frames); i++ {
		frames[i] = [2]float64{}
	}
	return n
}

// Flush discards all buffered frames and wakes a blocked producer.
func (b *RingBuffer) Flush() {
	b.mu.Lock()
	b.head, b.tail, b.length = 0, 0, 0
	b.notFul.Broadcast()
	b.mu.Unlock()
}

// Close marks the buffer closed. Blocked and future writes return
// short; buffered frames remain readable.
func (b *RingBuffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.notFul.Broadcast()
	b.mu.Unlock()
}
