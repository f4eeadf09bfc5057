package backend

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/KonstantinTomashevich/Kan-sub006/gpuhandle"
	"github.com/KonstantinTomashevich/Kan-sub006/kanlog"
)

// Window is the external collaborator contract a host window toolkit must
// satisfy to register a surface with the session.
type Window interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// Surface tracks one swap-chain-backed presentation target.
type Surface struct {
	Handle       gpuhandle.Handle
	TrackingName string

	window Window
	raw    *wgpu.Surface
	format wgpu.TextureFormat

	imageAvailable [FramesInFlight]*semaphore
	acquiredFrame  int // frame-in-flight index this surface last acquired for, -1 if none

	needsRecreate bool
	width, height int

	frameTexture *wgpu.Texture
	frameView    *wgpu.TextureView
	gotOutput    bool // true once this frame's render pass touched this surface
}

// CreateSurface creates a surface attached to window and links it into the
// session's surface list. Returns an invalid handle (a
// permanent rendering failure) if surface or swap-chain creation
// fails; the session continues operating on its remaining surfaces.
func (s *Session) CreateSurface(window Window, trackingName string) (*Surface, bool) {
	if !s.renderEnabled || s.device == nil {
		return nil, false
	}

	raw := s.instance.CreateSurface(window.SurfaceDescriptor())
	if raw == nil {
		kanlog.Logger().Error("backend: CreateSurface: platform surface creation failed", "name", trackingName)
		return nil, false
	}

	surf := &Surface{
		Handle:        gpuhandle.Next(),
		TrackingName:  trackingName,
		window:        window,
		raw:           raw,
		acquiredFrame: -1,
	}
	for i := range surf.imageAvailable {
		surf.imageAvailable[i] = newSemaphore("image-available")
	}

	if err := s.buildSwapChain(surf); err != nil {
		kanlog.Logger().Error("backend: CreateSurface: swap chain construction failed", "name", trackingName, "err", err)
		return nil, false
	}

	s.surfaces = append(s.surfaces, surf)
	return surf, true
}

// buildSwapChain performs swap-chain construction: pick
// BGRA8_SRGB/SRGB_NONLINEAR if offered (else the capabilities' first
// format), pick FIFO when prefer_vsync else IMMEDIATE, raise the window
// size to at least 1x1 (see clampToCapabilities), and configure the
// surface.
func (s *Session) buildSwapChain(surf *Surface) error {
	caps := surf.raw.GetCapabilities(s.adapter)
	if len(caps.Formats) == 0 {
		return fmt.Errorf("surface reports no supported formats")
	}

	format := caps.Formats[0]
	for _, f := range caps.Formats {
		if f == wgpu.TextureFormatBGRA8UnormSrgb {
			format = f
			break
		}
	}
	surf.format = format

	presentMode := wgpu.PresentModeImmediate
	if s.config.PreferVSync {
		presentMode = wgpu.PresentModeFifo
	}
	for _, m := range caps.PresentModes {
		if m == presentMode {
			presentMode = m
			break
		}
	}

	width, height := clampToCapabilities(surf.window.Width(), surf.window.Height(), caps)
	surf.width, surf.height = width, height

	alphaMode := wgpu.CompositeAlphaModeAuto
	if len(caps.AlphaModes) > 0 {
		alphaMode = caps.AlphaModes[0]
	}

	surf.raw.Configure(s.adapter, s.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: presentMode,
		AlphaMode:   alphaMode,
	})
	surf.needsRecreate = false
	return nil
}

// clampToCapabilities raises a requested width/height to at least 1x1.
// caps is not consulted: no upper or lower extent bound from the surface
// capabilities is applied.
func clampToCapabilities(width, height int, caps wgpu.SurfaceCapabilities) (int, int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return width, height
}

// DestroySurface waits device-idle, tears down the swap chain, unlinks the
// surface from the session, and releases it.
func (s *Session) DestroySurface(surf *Surface) {
	if surf == nil {
		return
	}
	if s.device != nil {
		s.device.Poll(true, nil)
	}
	if surf.frameView != nil {
		surf.frameView.Release()
	}
	if surf.raw != nil {
		surf.raw.Unconfigure()
		surf.raw.Release()
	}

	for i, candidate := range s.surfaces {
		if candidate == surf {
			s.surfaces = append(s.surfaces[:i], s.surfaces[i+1:]...)
			break
		}
	}
}

// MarkNeedsRecreate flags a surface for swap-chain recreation, e.g. in
// response to a window resize callback.
func (s *Surface) MarkNeedsRecreate() {
	s.needsRecreate = true
}
