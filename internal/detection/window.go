package detection

import (
	"sync"
	"time"
)

// ring is a fixed-size circular sample buffer. start indexes the oldest sample.
type ring struct {
	samples []int16
	start   int
	n       int
}

func (r *ring) write(pcm []int16) {
	capacity := len(r.samples)
	if len(pcm) >= capacity {
		copy(r.samples, pcm[len(pcm)-capacity:])
		r.start, r.n = 0, capacity
		return
	}
	end := (r.start + r.n) % capacity
	written := copy(r.samples[end:], pcm)
	copy(r.samples, pcm[written:])

	r.n += len(pcm)
	if over := r.n - capacity; over > 0 {
		r.start = (r.start + over) % capacity
		r.n = capacity
	}
}

func (r *ring) snapshot() []int16 {
	out := make([]int16, r.n)
	head := copy(out, r.samples[r.start:min(r.start+r.n, len(r.samples))])
	copy(out[head:], r.samples[:r.n-head])
	return out
}

// WindowBuffer keeps the most recent audio per call.
// It is fed by the media stream and read when classification is triggered.
type WindowBuffer struct {
	mu       sync.Mutex
	capacity int
	calls    map[string]*ring
}

// NewWindowBuffer keeps window worth of audio at sampleRate.
func NewWindowBuffer(window time.Duration, sampleRate int) *WindowBuffer {
	capacity := int(window.Seconds() * float64(sampleRate))
	if capacity <= 0 {
		capacity = 3 * TelephonySampleRate
	}
	return &WindowBuffer{capacity: capacity, calls: make(map[string]*ring)}
}

// Push appends samples, overwriting the oldest beyond capacity.
func (b *WindowBuffer) Push(callID string, pcm []int16) {
	if len(pcm) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.calls[callID]
	if !ok {
		r = &ring{samples: make([]int16, b.capacity)}
		b.calls[callID] = r
	}
	r.write(pcm)
}

// Window returns a copy of the buffered audio, oldest first, or nil if none.
func (b *WindowBuffer) Window(callID string) []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.calls[callID]
	if !ok || r.n == 0 {
		return nil
	}
	return r.snapshot()
}

func (b *WindowBuffer) Forget(callID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.calls, callID)
}

// Len reports how many calls currently hold audio.
func (b *WindowBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}
