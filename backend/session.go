// Package backend implements the render backend session: device selection,
// frame pacing, synchronization, swap-chain lifecycle, and submission
// ordering on top of github.com/cogentcore/webgpu/wgpu. wgpu's
// instance/adapter/device/queue/surface map onto the Vulkan-style
// instance/physical-device/logical-device/queue/surface lifecycle, and
// wgpu's automatic resource-state tracking stands in for explicit
// image-memory barriers — see DESIGN.md for that adaptation.
package backend

import (
	"fmt"
	"time"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/KonstantinTomashevich/Kan-sub006/descarena"
	"github.com/KonstantinTomashevich/Kan-sub006/gpuhandle"
	"github.com/KonstantinTomashevich/Kan-sub006/kanlog"
	"github.com/KonstantinTomashevich/Kan-sub006/paramset"
)

// FramesInFlight is the compile-time frame-in-flight slot count.
const FramesInFlight = 3

// DeviceType classifies a physical device.
type DeviceType int

const (
	DeviceTypeUnknown DeviceType = iota
	DeviceTypeIntegrated
	DeviceTypeDiscrete
	DeviceTypeVirtual
	DeviceTypeCPU
)

// MemoryType classifies a device's memory architecture, inferred from the
// adapter type (see memoryTypeFromAdapter).
type MemoryType int

const (
	MemoryTypeSeparate MemoryType = iota
	MemoryTypeUnified
	MemoryTypeUnifiedCoherent
)

// DeviceInfo describes one enumerated physical device.
type DeviceInfo struct {
	ID         gpuhandle.Handle
	Name       string
	Type       DeviceType
	MemoryType MemoryType

	adapter *wgpu.Adapter
}

// Config configures session initialization.
type Config struct {
	ApplicationName     string
	Major, Minor, Patch int
	DisableRender       bool
	PreferVSync         bool

	FenceWaitTimeout time.Duration
	ImageWaitTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.FenceWaitTimeout == 0 {
		c.FenceWaitTimeout = 2 * time.Second
	}
	if c.ImageWaitTimeout == 0 {
		c.ImageWaitTimeout = 2 * time.Second
	}
	return c
}

// FrameState tracks where the frame loop currently stands.
type FrameState int

const (
	FrameIdle FrameState = iota
	FrameAcquired
	FrameTransferRecorded
	FrameGraphicsRecorded
	FramePresented
)

// frameSlot holds the synchronization primitives and accumulated work for
// one frame-in-flight index.
type frameSlot struct {
	transferFinished *semaphore
	renderFinished   *semaphore
	inFlightFence    *fence

	transferCommands []func(*wgpu.CommandEncoder)
	graphicsCommands []func(*wgpu.RenderPassEncoder)

	started bool // a frame has begun at this index but not yet been submitted
}

// Session owns the device, queues, instance, descriptor arena, per-frame
// command state, and the surface list. It is not safe for
// concurrent use from multiple goroutines; the render frontend's
// single-logical-flow mutator model serializes access to it.
type Session struct {
	config Config

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	selectedDevice *DeviceInfo
	devices        []DeviceInfo

	arena  *descarena.Arena
	params *paramset.Engine

	surfaces         []*Surface
	currentFrameSlot int
	slots            [FramesInFlight]*frameSlot
	state            FrameState

	renderEnabled bool
}

// New creates a session but does not yet select a device or enable
// rendering. When cfg.DisableRender is true the session still supports
// enumeration.
func New(cfg Config) *Session {
	cfg = cfg.withDefaults()
	s := &Session{config: cfg}
	if cfg.DisableRender {
		return s
	}

	s.instance = wgpu.CreateInstance(nil)
	s.renderEnabled = true
	return s
}

// GetSupportedDevices enumerates adapters by requesting both the
// high-performance and low-power power preferences — wgpu does not expose
// raw physical-device enumeration the way Vulkan does, so the session
// probes the two power preferences wgpu does support and deduplicates by
// adapter name.
func (s *Session) GetSupportedDevices() ([]DeviceInfo, error) {
	if !s.renderEnabled {
		return nil, fmt.Errorf("backend: render disabled, device enumeration unavailable")
	}
	if s.devices != nil {
		return s.devices, nil
	}

	seen := map[string]bool{}
	var out []DeviceInfo
	for _, pref := range []wgpu.PowerPreference{wgpu.PowerPreferenceHighPerformance, wgpu.PowerPreferenceLowPower} {
		a, err := s.instance.RequestAdapter(&wgpu.RequestAdapterOptions{PowerPreference: pref})
		if err != nil {
			continue
		}
		info := a.GetInfo()
		if seen[info.Name] {
			continue
		}
		seen[info.Name] = true

		di := DeviceInfo{
			ID:         gpuhandle.Next(),
			Name:       info.Name,
			Type:       deviceTypeFromAdapter(info),
			MemoryType: memoryTypeFromAdapter(a),
			adapter:    a,
		}
		out = append(out, di)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("backend: no adapters available")
	}
	s.devices = out
	return out, nil
}

// deviceTypeFromAdapter maps wgpu's adapter type to DeviceType.
func deviceTypeFromAdapter(info wgpu.AdapterInfo) DeviceType {
	switch info.AdapterType {
	case wgpu.AdapterTypeIntegratedGPU:
		return DeviceTypeIntegrated
	case wgpu.AdapterTypeDiscreteGPU:
		return DeviceTypeDiscrete
	case wgpu.AdapterTypeVirtualGPU:
		return DeviceTypeVirtual
	case wgpu.AdapterTypeCPU:
		return DeviceTypeCPU
	default:
		return DeviceTypeUnknown
	}
}

// memoryTypeFromAdapter infers the memory-type classification from the
// adapter type: wgpu does not surface raw heap visibility flags, so this
// uses the adapter type as the closest available proxy — integrated and
// CPU adapters are treated as unified-coherent (shared system memory),
// discrete adapters as separate. See DESIGN.md for this adaptation.
func memoryTypeFromAdapter(a *wgpu.Adapter) MemoryType {
	info := a.GetInfo()
	switch info.AdapterType {
	case wgpu.AdapterTypeIntegratedGPU, wgpu.AdapterTypeCPU:
		return MemoryTypeUnifiedCoherent
	case wgpu.AdapterTypeDiscreteGPU:
		return MemoryTypeSeparate
	default:
		return MemoryTypeUnified
	}
}

// SelectDevice performs device selection: finds the queue,
// creates the logical device, the descriptor arena, and the per-frame
// synchronization slots. Any failure rolls back prior steps and returns
// false; the session remains usable for enumeration.
func (s *Session) SelectDevice(id gpuhandle.Handle) bool {
	if _, err := s.GetSupportedDevices(); err != nil {
		kanlog.Logger().Error("backend: SelectDevice: enumeration failed", "err", err)
		return false
	}

	var chosen *DeviceInfo
	for i := range s.devices {
		if s.devices[i].ID == id {
			chosen = &s.devices[i]
			break
		}
	}
	if chosen == nil {
		kanlog.Logger().Error("backend: SelectDevice: unknown device id", "id", id)
		return false
	}

	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 8
	device, err := chosen.adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          s.config.ApplicationName,
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		kanlog.Logger().Error("backend: SelectDevice: RequestDevice failed", "err", err)
		return false
	}

	s.adapter = chosen.adapter
	s.device = device
	s.queue = device.GetQueue()
	s.selectedDevice = chosen
	s.arena = descarena.New(device)
	s.params = paramset.New(s.arena, device)

	for i := 0; i < FramesInFlight; i++ {
		s.slots[i] = &frameSlot{
			transferFinished: newSemaphore("transfer-finished"),
			renderFinished:   newSemaphore("render-finished"),
			inFlightFence:    newFence(true),
		}
	}
	s.state = FrameIdle
	return true
}

// Arena returns the session's descriptor-set arena.
func (s *Session) Arena() *descarena.Arena {
	return s.arena
}

// Params returns the session's parameter-set engine.
func (s *Session) Params() *paramset.Engine {
	return s.params
}

// Device returns the selected logical device, or nil if none is selected.
func (s *Session) Device() *wgpu.Device {
	return s.device
}

// Queue returns the selected device's queue.
func (s *Session) Queue() *wgpu.Queue {
	return s.queue
}

// CurrentFrameInFlightIndex returns the frame-in-flight slot currently in
// use.
func (s *Session) CurrentFrameInFlightIndex() int {
	return s.currentFrameSlot
}

// GetRequiredWindowFlags reports the window-system capability flags a host
// window toolkit must provide — always includes WebGPU
// surface support, the module's stand-in for "supports-vulkan".
func GetRequiredWindowFlags() []string {
	return []string{"supports-webgpu-surface"}
}
