package backend

import "testing"

func TestGetRequiredWindowFlagsIncludesWebGPU(t *testing.T) {
	flags := GetRequiredWindowFlags()
	found := false
	for _, f := range flags {
		if f == "supports-webgpu-surface" {
			found = true
		}
	}
	if !found {
		t.Fatalf("GetRequiredWindowFlags() = %v, missing supports-webgpu-surface", flags)
	}
}

func TestNewWithDisableRenderSkipsInstance(t *testing.T) {
	s := New(Config{DisableRender: true})
	if s.renderEnabled {
		t.Fatalf("renderEnabled = true, want false when DisableRender set")
	}
	if _, err := s.GetSupportedDevices(); err == nil {
		t.Fatalf("GetSupportedDevices() should fail when render disabled")
	}
}

func TestConfigDefaultsFillTimeouts(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.FenceWaitTimeout == 0 {
		t.Fatalf("FenceWaitTimeout not defaulted")
	}
	if cfg.ImageWaitTimeout == 0 {
		t.Fatalf("ImageWaitTimeout not defaulted")
	}
}

func TestShutdownNoopWhenNeverSelected(t *testing.T) {
	s := New(Config{DisableRender: true})
	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown() on never-selected session returned error: %v", err)
	}
}
