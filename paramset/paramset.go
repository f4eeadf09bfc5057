// Package paramset implements the parameter set engine: creation,
// copy-on-write update, and deferred destruction of stable and unstable
// descriptor-set-backed parameter sets, plus the weak back-reference
// bookkeeping between parameter sets and the render-target images bound to
// them.
package paramset

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/KonstantinTomashevich/Kan-sub006/descarena"
	"github.com/KonstantinTomashevich/Kan-sub006/gpuhandle"
	"github.com/KonstantinTomashevich/Kan-sub006/kanlog"
)

// FramesInFlight mirrors backend.FramesInFlight; kept as a local constant
// (rather than importing package backend) so paramset depends only on
// descarena.
const FramesInFlight = 3

// BindingVariantKind discriminates the union in a binding update.
type BindingVariantKind int

const (
	VariantBuffer BindingVariantKind = iota
	VariantSampler
	VariantImage
)

// BindingUpdate is one entry of an Update call's bindings[].
type BindingUpdate struct {
	Binding int
	Kind    BindingVariantKind

	// Buffer variant.
	Buffer       *wgpu.Buffer
	BufferOffset uint64
	BufferSize   uint64

	// Sampler variant.
	Sampler *wgpu.Sampler

	// Image variant.
	Image       *Image
	ArrayIndex  uint32
	LayerOffset uint32
	LayerCount  uint32
}

// boundBinding is what a ParamSet actually holds for one binding slot
// after Update has run: the live wgpu entry plus, for image bindings, the
// owned view that must be destroyed (deferred) on rebind or destruction.
type boundBinding struct {
	entry wgpu.BindGroupEntry
	view  *wgpu.TextureView
	image *Image // non-nil when this binding is a render-target attachment
}

// slot is one allocation of a ParamSet: its descriptor set plus the
// per-binding state currently written into it. Stable sets have exactly
// one slot; unstable sets have FramesInFlight slots.
type slot struct {
	alloc    *descarena.Allocation
	bindings map[int]boundBinding
}

// ParamSet is either stable (one descriptor set, copy-on-write on update)
// or unstable (one descriptor set per frame-in-flight, copy-forward from
// the last-accessed slot).
type ParamSet struct {
	Handle       gpuhandle.Handle
	TrackingName string
	Stable       bool
	Layout       *descarena.Layout

	slots            []*slot // len 1 for stable, FramesInFlight for unstable
	submitted        bool    // stable sets only: has this set's current allocation been submitted
	lastAccessedSlot int     // unstable sets only
}

// Engine owns every live ParamSet and Image, and the deferred-destruction
// schedule that lets object teardown respect in-flight submissions.
type Engine struct {
	arena  *descarena.Arena
	device descarena.BindGroupCreator

	sets   map[gpuhandle.Handle]*ParamSet
	images map[gpuhandle.Handle]*Image

	deferred     [FramesInFlight][]func()
	currentFrame int
}

// New creates a parameter-set engine backed by arena. device is used only
// to rebuild bind groups on update, since wgpu bind groups (unlike Vulkan
// descriptor sets) cannot be patched in place.
func New(arena *descarena.Arena, device descarena.BindGroupCreator) *Engine {
	return &Engine{
		arena:  arena,
		device: device,
		sets:   make(map[gpuhandle.Handle]*ParamSet),
		images: make(map[gpuhandle.Handle]*Image),
	}
}

// RegisterImage adopts img into the engine's image registry so it may
// later be attached to parameter sets as a render target.
func (e *Engine) RegisterImage(img *Image) {
	e.images[img.Handle] = img
}

// Create allocates a stable (single) or unstable (one per frame-in-flight)
// parameter set from the descriptor arena. Returns nil on allocation
// failure after releasing any partial allocations; the caller may retry
// next frame.
func (e *Engine) Create(layout *descarena.Layout, stable bool, initial []BindingUpdate, trackingName string) *ParamSet {
	ps := &ParamSet{
		Handle:           gpuhandle.Next(),
		TrackingName:     trackingName,
		Stable:           stable,
		Layout:           layout,
		lastAccessedSlot: -1,
	}

	count := 1
	if !stable {
		count = FramesInFlight
	}
	for i := 0; i < count; i++ {
		alloc, ok := e.arena.Allocate(layout, nil)
		if !ok {
			for _, s := range ps.slots {
				e.arena.Free(s.alloc)
			}
			kanlog.Logger().Warn("paramset: Create: allocation failed", "name", trackingName)
			return nil
		}
		ps.slots = append(ps.slots, &slot{alloc: alloc, bindings: make(map[int]boundBinding)})
	}

	e.sets[ps.Handle] = ps
	if len(initial) > 0 {
		e.Update(ps, initial, 0)
	}
	return ps
}

// frameSlotFor resolves which slot index is written for this update: 0 for
// stable sets, frameInFlightIndex for unstable sets.
func (ps *ParamSet) frameSlotFor(frameInFlightIndex int) int {
	if ps.Stable {
		return 0
	}
	return frameInFlightIndex
}

// Update performs a copy-on-write descriptor-set update.
// frameInFlightIndex selects the target slot for unstable sets and is
// ignored for stable sets.
func (e *Engine) Update(ps *ParamSet, updates []BindingUpdate, frameInFlightIndex int) {
	// Step 1: detach render-target attachments whose binding is retargeted
	// to a different image by this update.
	for _, u := range updates {
		if u.Kind != VariantImage {
			continue
		}
		for _, s := range ps.slots {
			if bb, ok := s.bindings[u.Binding]; ok && bb.image != nil && bb.image != u.Image {
				bb.image.detach(ps.Handle, u.Binding)
			}
		}
	}

	// Step 2: select source and target slots.
	var source, target *slot
	targetIdx := ps.frameSlotFor(frameInFlightIndex)

	if ps.Stable {
		// "has no allocation yet" never applies here:
		// Create always allocates the single stable slot up front.
		if ps.submitted {
			oldSlot := ps.slots[0]
			newAlloc, ok := e.arena.Allocate(ps.Layout, nil)
			if !ok {
				kanlog.Logger().Warn("paramset: Update: reallocation failed for stable set", "name", ps.TrackingName)
				return
			}
			newSlot := &slot{alloc: newAlloc, bindings: make(map[int]boundBinding)}
			source = oldSlot
			ps.slots[0] = newSlot
			target = newSlot
			e.scheduleDeferred(func() {
				e.arena.Free(oldSlot.alloc)
			})
			ps.submitted = false
		} else {
			source = ps.slots[0]
			target = ps.slots[0]
		}
	} else {
		lastIdx := ps.lastAccessedSlot
		if lastIdx < 0 {
			lastIdx = targetIdx
		}
		source = ps.slots[lastIdx]
		target = ps.slots[targetIdx]
		ps.lastAccessedSlot = targetIdx
	}

	// Step 3: copy-on-write transfer of bindings not present in this update.
	updated := make(map[int]bool, len(updates))
	for _, u := range updates {
		updated[u.Binding] = true
	}
	if source != target {
		for binding, bb := range source.bindings {
			if !updated[binding] {
				target.bindings[binding] = bb
			}
		}
	}

	// Step 4: apply updates.
	var entries []wgpu.BindGroupEntry
	for _, u := range updates {
		bb := e.applyUpdate(ps, target, u)
		target.bindings[u.Binding] = bb
		entries = append(entries, bb.entry)
	}

	// Step 5: submit one combined write — here represented as re-creating
	// the bind group from the slot's full binding set, since wgpu bind
	// groups are immutable once created (unlike a Vulkan descriptor set
	// that supports vkUpdateDescriptorSets in place). See DESIGN.md.
	e.rewriteBindGroup(ps, target)

	// Step 6: attach new render-target bindings bidirectionally.
	for _, u := range updates {
		if u.Kind == VariantImage && u.Image != nil && u.Image.Desc.RenderTarget {
			u.Image.attach(ps.Handle, u.Binding)
		}
	}
}

// applyUpdate classifies one binding update by the layout's declared type
// and constructs the corresponding wgpu bind-group entry, destroying any
// previously bound image view on a deferred schedule.
func (e *Engine) applyUpdate(ps *ParamSet, target *slot, u BindingUpdate) boundBinding {
	if prior, ok := target.bindings[u.Binding]; ok && prior.view != nil {
		oldView := prior.view
		e.scheduleDeferred(func() { oldView.Release() })
	}

	switch u.Kind {
	case VariantBuffer:
		return boundBinding{entry: wgpu.BindGroupEntry{
			Binding: uint32(u.Binding),
			Buffer:  u.Buffer,
			Offset:  u.BufferOffset,
			Size:    u.BufferSize,
		}}
	case VariantSampler:
		return boundBinding{entry: wgpu.BindGroupEntry{
			Binding: uint32(u.Binding),
			Sampler: u.Sampler,
		}}
	case VariantImage:
		view := createImageView(u.Image, u.LayerOffset, u.LayerCount)
		return boundBinding{
			entry: wgpu.BindGroupEntry{Binding: uint32(u.Binding), TextureView: view},
			view:  view,
			image: u.Image,
		}
	default:
		return boundBinding{}
	}
}

// createImageView creates a fresh identity-swizzle view over img, with
// aspect derived from the image's format and mip count taken from the
// image, sliced to the requested layer range.
func createImageView(img *Image, layerOffset, layerCount uint32) *wgpu.TextureView {
	if img == nil || img.Texture == nil {
		return nil
	}
	if layerCount == 0 {
		layerCount = 1
	}
	view, err := img.Texture.CreateView(&wgpu.TextureViewDescriptor{
		Format:          img.Desc.Format,
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    0,
		MipLevelCount:   img.Desc.MipCount,
		BaseArrayLayer:  layerOffset,
		ArrayLayerCount: layerCount,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		kanlog.Logger().Warn("paramset: createImageView failed", "err", err)
		return nil
	}
	return view
}

// rewriteBindGroup rebuilds the wgpu bind group for target from its full
// set of current bindings. wgpu bind groups cannot be mutated in place, so
// this module creates a new one on every Update and releases the old one,
// where a Vulkan descriptor set would be patched in place with
// vkUpdateDescriptorSets; the set's identity (ParamSet.Handle) and
// descriptor-set-pool allocation are otherwise unaffected. See DESIGN.md.
func (e *Engine) rewriteBindGroup(ps *ParamSet, target *slot) {
	if e.device == nil || target.alloc == nil || target.alloc.Set == nil {
		return
	}
	entries := make([]wgpu.BindGroupEntry, 0, len(target.bindings))
	for _, bb := range target.bindings {
		entries = append(entries, bb.entry)
	}
	next, err := e.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   ps.TrackingName,
		Layout:  ps.Layout.Backend,
		Entries: entries,
	})
	if err != nil {
		kanlog.Logger().Warn("paramset: rewriteBindGroup failed", "name", ps.TrackingName, "err", err)
		return
	}
	old := target.alloc.Set
	target.alloc.Set = next
	e.scheduleDeferred(func() {
		if old != nil {
			old.Release()
		}
	})
}

// scheduleDeferred defers fn until the current frame-in-flight slot's
// fence has signaled. The orchestrator calls RunDeferred once per
// frame after confirming the slot is free.
func (e *Engine) scheduleDeferred(fn func()) {
	e.deferred[e.currentFrame] = append(e.deferred[e.currentFrame], fn)
}

// AdvanceFrame tells the engine which frame-in-flight index is now current
// so that subsequently scheduled deferred destructions are attached to the
// right slot. The backend session calls this at the start of NextFrame.
func (e *Engine) AdvanceFrame(frameInFlightIndex int) {
	e.currentFrame = frameInFlightIndex % FramesInFlight
}

// RunDeferred executes and clears every closure scheduled against
// frameInFlightIndex. Call this once per frame, after the backend
// session's fence wait confirms the slot is free to reuse.
func (e *Engine) RunDeferred(frameInFlightIndex int) {
	idx := frameInFlightIndex % FramesInFlight
	for _, fn := range e.deferred[idx] {
		fn()
	}
	e.deferred[idx] = e.deferred[idx][:0]
}

// MarkSubmitted flags a stable parameter set as having been submitted at
// least once, making its descriptor set immutable until the next Update
// allocates a fresh one.
func (ps *ParamSet) MarkSubmitted() {
	if ps.Stable {
		ps.submitted = true
	}
}

// BindGroup returns the current bind group for the given frame-in-flight
// index (ignored for stable sets).
func (ps *ParamSet) BindGroup(frameInFlightIndex int) *wgpu.BindGroup {
	idx := ps.frameSlotFor(frameInFlightIndex)
	if idx >= len(ps.slots) {
		return nil
	}
	return ps.slots[idx].alloc.Set
}

// Destroy schedules ps for deferred destruction: all
// frame-in-flight slot allocations are released, all bound image views
// destroyed, the set is detached from every render-target image it was
// bound to, and the record is freed.
func (e *Engine) Destroy(ps *ParamSet) {
	delete(e.sets, ps.Handle)
	e.scheduleDeferred(func() {
		for _, s := range ps.slots {
			for binding, bb := range s.bindings {
				if bb.view != nil {
					bb.view.Release()
				}
				if bb.image != nil {
					bb.image.detach(ps.Handle, binding)
				}
			}
			e.arena.Free(s.alloc)
		}
	})
}
