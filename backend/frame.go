package backend

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/KonstantinTomashevich/Kan-sub006/kanlog"
)

// EnqueueTransferCommand accumulates one transfer-queue command recorded
// against the current frame's primary transfer encoder, submitted during
// the next NextFrame call.
func (s *Session) EnqueueTransferCommand(fn func(*wgpu.CommandEncoder)) {
	slot := s.slots[s.currentFrameSlot]
	slot.transferCommands = append(slot.transferCommands, fn)
}

// EnqueueGraphicsCommand accumulates one graphics-queue render-pass command
// for the current frame.
func (s *Session) EnqueueGraphicsCommand(fn func(*wgpu.RenderPassEncoder)) {
	slot := s.slots[s.currentFrameSlot]
	slot.graphicsCommands = append(slot.graphicsCommands, fn)
}

// NextFrame advances the frame state machine. It submits any
// started-but-unsubmitted prior frame, waits on the current slot's fence,
// acquires swap-chain images for every surface, and resets per-frame
// state. Returns false on fence timeout or swap-chain recreation — a
// transient acquire failure — in which case the caller should
// skip the frame.
func (s *Session) NextFrame() bool {
	if !s.renderEnabled || s.device == nil {
		return false
	}

	slot := s.slots[s.currentFrameSlot]
	if slot.started {
		s.submit()
		slot = s.slots[s.currentFrameSlot]
	}

	if s.params != nil {
		s.params.AdvanceFrame(s.currentFrameSlot)
	}

	if !slot.inFlightFence.wait(s.config.FenceWaitTimeout) {
		kanlog.Logger().Warn("backend: NextFrame: in-flight fence timeout, skipping frame", "slot", s.currentFrameSlot)
		return false
	}

	needsRecreate := false
	for _, surf := range s.surfaces {
		if surf.needsRecreate || surf.width != surf.window.Width() || surf.height != surf.window.Height() {
			surf.needsRecreate = true
			needsRecreate = true
		}
	}
	if needsRecreate {
		s.device.Poll(true, nil)
		for _, surf := range s.surfaces {
			if surf.needsRecreate {
				if err := s.buildSwapChain(surf); err != nil {
					kanlog.Logger().Error("backend: NextFrame: swap chain recreation failed", "name", surf.TrackingName, "err", err)
				}
			}
		}
		return false
	}

	for _, surf := range s.surfaces {
		if surf.acquiredFrame == s.currentFrameSlot {
			continue
		}
		texture, err := surf.raw.GetCurrentTexture()
		if err != nil {
			kanlog.Logger().Warn("backend: NextFrame: acquire failed, marking for recreation", "name", surf.TrackingName, "err", err)
			surf.needsRecreate = true
			continue
		}
		view, err := texture.CreateView(nil)
		if err != nil {
			kanlog.Logger().Warn("backend: NextFrame: CreateView failed", "name", surf.TrackingName, "err", err)
			surf.needsRecreate = true
			continue
		}
		surf.frameTexture = texture
		surf.frameView = view
		surf.acquiredFrame = s.currentFrameSlot
		surf.gotOutput = false
	}

	slot.inFlightFence.reset()
	if s.params != nil {
		s.params.RunDeferred(s.currentFrameSlot)
	}
	slot.transferCommands = slot.transferCommands[:0]
	slot.graphicsCommands = slot.graphicsCommands[:0]
	slot.started = true
	s.state = FrameAcquired
	return true
}

// Submit forces the transfer then graphics submission paths to run
// immediately for the current frame, rather than waiting for the next
// NextFrame call to do it implicitly.
func (s *Session) Submit() {
	slot := s.slots[s.currentFrameSlot]
	if slot.started {
		s.submit()
	}
}

// submit runs the transfer and graphics submission paths
// and advances the frame-in-flight index.
func (s *Session) submit() {
	slot := s.slots[s.currentFrameSlot]

	s.recordAndSubmitTransfer(slot)
	s.state = FrameTransferRecorded

	s.recordAndSubmitGraphics(slot)
	s.state = FrameGraphicsRecorded

	s.present()
	s.state = FramePresented

	slot.inFlightFence.signal()
	slot.started = false
	for _, surf := range s.surfaces {
		if surf.acquiredFrame == s.currentFrameSlot {
			surf.acquiredFrame = -1
		}
	}

	s.currentFrameSlot = (s.currentFrameSlot + 1) % FramesInFlight
	s.state = FrameIdle
}

// recordAndSubmitTransfer records accumulated transfer commands into a
// primary transfer encoder and submits it, signaling transfer-finished.
func (s *Session) recordAndSubmitTransfer(slot *frameSlot) {
	encoder, err := s.device.CreateCommandEncoder(nil)
	if err != nil {
		kanlog.Logger().Error("backend: transfer encoder creation failed", "err", err)
		return
	}
	for _, fn := range slot.transferCommands {
		fn(encoder)
	}
	cmd, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		kanlog.Logger().Error("backend: transfer encoder finish failed", "err", err)
		return
	}
	s.queue.Submit(cmd)
	cmd.Release()
	encoder.Release()
	slot.transferFinished.name = "transfer-finished" // logical signal point; wgpu orders this for us
}

// recordAndSubmitGraphics records accumulated graphics commands into a
// primary graphics encoder, submits it, and marks render-finished; the
// in-flight fence is signaled afterwards by submit. Surfaces
// that received no graphics output this frame get an empty render pass
// that loads and stores their contents, rather than an explicit barrier: wgpu
// tracks the PRESENT_SRC transition automatically on Surface.Present, so
// no UNDEFINED→PRESENT_SRC_KHR barrier needs recording here (see
// DESIGN.md).
func (s *Session) recordAndSubmitGraphics(slot *frameSlot) {
	encoder, err := s.device.CreateCommandEncoder(nil)
	if err != nil {
		kanlog.Logger().Error("backend: graphics encoder creation failed", "err", err)
		return
	}

	// Accumulated graphics commands render into the first acquired
	// surface; a pass cannot begin without a color attachment.
	if len(slot.graphicsCommands) > 0 {
		if target := s.firstAcquiredSurface(); target != nil {
			pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
				ColorAttachments: []wgpu.RenderPassColorAttachment{{
					View:       target.frameView,
					LoadOp:     wgpu.LoadOpClear,
					StoreOp:    wgpu.StoreOpStore,
					ClearValue: wgpu.Color{},
				}},
			})
			for _, fn := range slot.graphicsCommands {
				fn(pass)
			}
			pass.End()
			target.gotOutput = true
		} else {
			kanlog.Logger().Warn("backend: graphics commands dropped, no acquired surface to render into")
		}
	}

	for _, surf := range s.surfaces {
		if surf.frameView == nil || surf.gotOutput {
			continue
		}
		pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
			ColorAttachments: []wgpu.RenderPassColorAttachment{{
				View:    surf.frameView,
				LoadOp:  wgpu.LoadOpLoad,
				StoreOp: wgpu.StoreOpStore,
			}},
		})
		pass.End()
		surf.gotOutput = true
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		kanlog.Logger().Error("backend: graphics encoder finish failed", "err", err)
		return
	}
	s.queue.Submit(cmd)
	cmd.Release()
	encoder.Release()
	slot.renderFinished.name = "render-finished"
}

// firstAcquiredSurface returns the first surface holding an acquired
// swap-chain view this frame, or nil when none is available.
func (s *Session) firstAcquiredSurface() *Surface {
	for _, surf := range s.surfaces {
		if surf.frameView != nil {
			return surf
		}
	}
	return nil
}

// present builds the list of healthy surfaces and presents them.
func (s *Session) present() {
	for _, surf := range s.surfaces {
		if surf.frameView == nil {
			continue
		}
		surf.raw.Present()
		surf.frameView.Release()
		surf.frameTexture.Release()
		surf.frameView = nil
		surf.frameTexture = nil
	}
}

// State returns the current frame state machine state.
func (s *Session) State() FrameState {
	return s.state
}

// Shutdown waits device-idle and tears down the device, instance, and
// arena. It asserts no surfaces remain — callers must
// destroy every surface (owned by the external window system) before
// calling Shutdown.
func (s *Session) Shutdown() error {
	if !s.renderEnabled || s.device == nil {
		return nil
	}
	if len(s.surfaces) != 0 {
		return errShutdownSurfacesRemain
	}
	s.device.Poll(true, nil)
	s.device.Release()
	if s.instance != nil {
		s.instance.Release()
	}
	s.device = nil
	s.queue = nil
	s.arena = nil
	return nil
}
