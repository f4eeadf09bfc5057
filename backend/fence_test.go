package backend

import (
	"testing"
	"time"
)

func TestFenceStartsSignaledWhenRequested(t *testing.T) {
	f := newFence(true)
	if !f.wait(10 * time.Millisecond) {
		t.Fatalf("wait() on pre-signaled fence timed out")
	}
}

func TestFenceResetThenWaitTimesOut(t *testing.T) {
	f := newFence(true)
	f.reset()
	if f.wait(20 * time.Millisecond) {
		t.Fatalf("wait() on reset fence should time out")
	}
}

func TestFenceSignalWakesWaiter(t *testing.T) {
	f := newFence(false)
	done := make(chan bool, 1)
	go func() {
		done <- f.wait(time.Second)
	}()
	time.Sleep(10 * time.Millisecond)
	f.signal()
	if !<-done {
		t.Fatalf("wait() did not observe signal")
	}
}

func TestFenceDoubleSignalDoesNotBlock(t *testing.T) {
	f := newFence(false)
	f.signal()
	f.signal()
	if !f.wait(10 * time.Millisecond) {
		t.Fatalf("wait() should succeed after double signal")
	}
}
