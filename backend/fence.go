package backend

import "time"

// fence mirrors a Vulkan-style fence: a single-slot, resettable signal used
// to bound how long the frame state machine waits for a frame-in-flight
// slot to become free. wgpu itself synchronizes submissions internally,
// so this is the shim that keeps the explicit wait-with-timeout semantics
// instead of silently relying on wgpu's implicit ordering.
type fence struct {
	ch chan struct{}
}

// newFence creates a fence, optionally pre-signaled so the first frame
// does not block on a slot that was never submitted.
func newFence(signaled bool) *fence {
	f := &fence{ch: make(chan struct{}, 1)}
	if signaled {
		f.ch <- struct{}{}
	}
	return f
}

// signal marks the fence signaled. Signaling an already-signaled fence is
// a no-op.
func (f *fence) signal() {
	select {
	case f.ch <- struct{}{}:
	default:
	}
}

// wait blocks until the fence signals or timeout elapses, returning false
// on timeout. The fence remains
// signaled after a successful wait; callers call reset explicitly.
func (f *fence) wait(timeout time.Duration) bool {
	select {
	case v := <-f.ch:
		f.ch <- v
		return true
	case <-time.After(timeout):
		return false
	}
}

// reset clears the fence back to unsignaled.
func (f *fence) reset() {
	select {
	case <-f.ch:
	default:
	}
}

// semaphore is a synthetic stand-in for a Vulkan binary semaphore. wgpu
// orders GPU-side work for us, so this type carries no real synchronization
// weight; it exists purely so the frame state machine can name and log the
// wait/signal edges (transfer-finished, render-finished, image-available)
// without losing that structure in translation.
type semaphore struct {
	name string
}

func newSemaphore(name string) *semaphore {
	return &semaphore{name: name}
}
