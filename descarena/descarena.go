// Package descarena implements the descriptor-set arena: a pool of GPU
// descriptor-set pools that grows on demand and releases pools once they
// are empty again, wrapping github.com/cogentcore/webgpu/wgpu bind-group
// layouts as the concrete descriptor-set-layout backend.
package descarena

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/KonstantinTomashevich/Kan-sub006/gpuhandle"
	"github.com/KonstantinTomashevich/Kan-sub006/kanlog"
)

// BindingType enumerates the kinds of descriptor bindings a layout may
// declare.
type BindingType int

const (
	BindingUniformBuffer BindingType = iota
	BindingStorageBuffer
	BindingCombinedImageSampler
)

// Binding describes one entry of a descriptor-set layout.
type Binding struct {
	Index         int
	Type          BindingType
	StableBinding bool
	Visibility    wgpu.ShaderStage
}

// Layout is an ordered list of bindings plus the compiled wgpu bind-group
// layout backing it. Layouts are created once per pipeline family / pass
// and shared by every descriptor set allocated against them.
type Layout struct {
	Bindings []Binding
	Backend  *wgpu.BindGroupLayout
}

// countByType returns how many bindings of each BindingType this layout
// declares, used to grow pool capacities.
func (l *Layout) countByType() map[BindingType]int {
	out := map[BindingType]int{}
	for _, b := range l.Bindings {
		out[b.Type]++
	}
	return out
}

// Allocation is a single descriptor-set allocation returned by the arena.
// Set is the concrete wgpu bind group; Handle identifies the allocation to
// Free. pool is the owning pool, kept private so callers cannot bypass
// arena bookkeeping when releasing it.
type Allocation struct {
	Handle gpuhandle.Handle
	Set    *wgpu.BindGroup
	pool   *pool
}

// pool is one fixed-capacity descriptor pool. Pools are linked into a
// doubly-linked list by the arena (container/list gives us that for free,
// giving the arena its doubly-linked pool list for free).
type pool struct {
	maxSets          int
	perTypeCapacity  map[BindingType]int
	activeAllocCount int
	element          *list.Element
}

// Stats aggregates allocation counters across the arena's lifetime, used to
// feed the new-pool capacity heuristic.
type Stats struct {
	TotalAllocations             uint64
	UniformBufferBindings        uint64
	StorageBufferBindings        uint64
	CombinedImageSamplerBindings uint64
}

// DefaultCapacities is the per-type descriptor capacity used for the very
// first pool the arena ever creates, before any allocation history exists.
type DefaultCapacities struct {
	MaxSets               int
	UniformBuffers        int
	StorageBuffers        int
	CombinedImageSamplers int
}

// bindGroupBackend is the subset of *wgpu.Device the arena needs to create
// and release bind groups. Extracting it lets tests exercise pool-growth
// and allocation bookkeeping with a fake backend, the way the production
// arena exercises a real GPU device.
type bindGroupBackend = BindGroupCreator

// BindGroupCreator is the subset of *wgpu.Device the arena needs. It is
// exported so other packages' tests can supply a fake backend via
// NewCustom instead of standing up a real GPU device.
type BindGroupCreator interface {
	CreateBindGroup(*wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error)
}

// Arena pools descriptor sets for a given device. One Arena typically
// backs one backend session; a single mutex guards all resource
// management.
type Arena struct {
	mu       sync.Mutex
	device   bindGroupBackend
	pools    *list.List // of *pool
	defaults DefaultCapacities
	stats    Stats

	// allocations maps a minted handle back to its allocation so Free can
	// locate the owning pool without the caller needing to remember it.
	allocations map[gpuhandle.Handle]*Allocation
}

// Option configures an Arena at construction time.
type Option func(*Arena)

// WithDefaultCapacities overrides the capacities used for the arena's very
// first pool, before any workload history has accumulated.
func WithDefaultCapacities(d DefaultCapacities) Option {
	return func(a *Arena) { a.defaults = d }
}

// New creates a descriptor-set arena bound to device.
func New(device *wgpu.Device, options ...Option) *Arena {
	return newArena(device, options...)
}

// NewCustom creates an arena bound to any BindGroupCreator, primarily so
// other packages' tests can exercise the arena against a fake backend.
func NewCustom(backend BindGroupCreator, options ...Option) *Arena {
	return newArena(backend, options...)
}

func newArena(device bindGroupBackend, options ...Option) *Arena {
	a := &Arena{
		device: device,
		pools:  list.New(),
		defaults: DefaultCapacities{
			MaxSets:               64,
			UniformBuffers:        64,
			StorageBuffers:        32,
			CombinedImageSamplers: 64,
		},
		allocations: make(map[gpuhandle.Handle]*Allocation),
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// Allocate walks existing pools attempting to satisfy layout from one of
// them; on failure from every pool it grows a new pool sized from
// observed workload (or configured defaults when no history exists) and
// allocates from that. Returns (nil, false) only when the device itself
// refuses to create a new pool/bind group — a transient failure the
// caller may retry next frame.
func (a *Arena) Allocate(layout *Layout, entries []wgpu.BindGroupEntry) (*Allocation, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for e := a.pools.Front(); e != nil; e = e.Next() {
		p := e.Value.(*pool)
		if alloc, ok := a.allocateFrom(p, layout, entries); ok {
			return alloc, true
		}
	}

	p := a.growPool(layout)
	alloc, ok := a.allocateFrom(p, layout, entries)
	if !ok {
		kanlog.Logger().Warn("descarena: new pool still failed to allocate", "maxSets", p.maxSets)
		return nil, false
	}
	return alloc, true
}

// allocateFrom attempts one allocation against an existing pool, returning
// false (without mutating pool state) when the pool has no remaining
// capacity for this layout.
func (a *Arena) allocateFrom(p *pool, layout *Layout, entries []wgpu.BindGroupEntry) (*Allocation, bool) {
	if p.activeAllocCount >= p.maxSets {
		return nil, false
	}
	for t, need := range layout.countByType() {
		if p.perTypeCapacity[t] < need {
			return nil, false
		}
	}

	bg, err := a.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout:  layout.Backend,
		Entries: entries,
	})
	if err != nil {
		kanlog.Logger().Debug("descarena: CreateBindGroup failed", "err", err)
		return nil, false
	}

	p.activeAllocCount++
	for t, n := range layout.countByType() {
		p.perTypeCapacity[t] -= n
		switch t {
		case BindingUniformBuffer:
			a.stats.UniformBufferBindings += uint64(n)
		case BindingStorageBuffer:
			a.stats.StorageBufferBindings += uint64(n)
		case BindingCombinedImageSampler:
			a.stats.CombinedImageSamplerBindings += uint64(n)
		}
	}
	a.stats.TotalAllocations++

	alloc := &Allocation{Handle: gpuhandle.Next(), Set: bg, pool: p}
	a.allocations[alloc.Handle] = alloc
	return alloc, true
}

// growPool creates a new pool sized from observed workload when history
// exists, or from configured defaults otherwise, and links it into the
// arena's pool list.
func (a *Arena) growPool(layout *Layout) *pool {
	p := &pool{perTypeCapacity: map[BindingType]int{}}

	if a.stats.TotalAllocations == 0 {
		p.maxSets = a.defaults.MaxSets
		p.perTypeCapacity[BindingUniformBuffer] = a.defaults.UniformBuffers
		p.perTypeCapacity[BindingStorageBuffer] = a.defaults.StorageBuffers
		p.perTypeCapacity[BindingCombinedImageSampler] = a.defaults.CombinedImageSamplers
	} else {
		p.maxSets = a.defaults.MaxSets
		p.perTypeCapacity[BindingUniformBuffer] = roundDiv(a.stats.UniformBufferBindings, a.stats.TotalAllocations)
		p.perTypeCapacity[BindingStorageBuffer] = roundDiv(a.stats.StorageBufferBindings, a.stats.TotalAllocations)
		p.perTypeCapacity[BindingCombinedImageSampler] = roundDiv(a.stats.CombinedImageSamplerBindings, a.stats.TotalAllocations)
	}

	// Ensure the new pool can hold at least this allocation's own bindings.
	for t, need := range layout.countByType() {
		if p.perTypeCapacity[t] < need {
			p.perTypeCapacity[t] = need
		}
	}

	p.element = a.pools.PushBack(p)
	kanlog.Logger().Debug("descarena: grew pool", "maxSets", p.maxSets, "perType", p.perTypeCapacity)
	return p
}

// roundDiv rounds total/count to the nearest integer.
func roundDiv(total, count uint64) int {
	if count == 0 {
		return 0
	}
	return int((total + count/2) / count)
}

// Free returns an allocation to its source pool. When the pool's active
// count reaches zero the pool is destroyed and unlinked from the arena.
func (a *Arena) Free(alloc *Allocation) error {
	if alloc == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.allocations[alloc.Handle]; !ok {
		return fmt.Errorf("descarena: free of unknown allocation %d", alloc.Handle)
	}
	delete(a.allocations, alloc.Handle)

	if alloc.Set != nil {
		alloc.Set.Release()
	}

	p := alloc.pool
	p.activeAllocCount--
	if p.activeAllocCount <= 0 {
		a.pools.Remove(p.element)
	}
	return nil
}

// StatsSnapshot returns a copy of the arena's lifetime allocation counters.
func (a *Arena) StatsSnapshot() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// PoolCount returns the number of live pools, mostly useful for tests and
// diagnostics.
func (a *Arena) PoolCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pools.Len()
}
