package descarena

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

// fakeBackend always succeeds and never touches a real GPU, letting these
// tests exercise pool growth and the capacity heuristic in isolation.
type fakeBackend struct {
	created int
}

func (f *fakeBackend) CreateBindGroup(*wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error) {
	f.created++
	return &wgpu.BindGroup{}, nil
}

func uniformLayout(n int) *Layout {
	l := &Layout{}
	for i := 0; i < n; i++ {
		l.Bindings = append(l.Bindings, Binding{Index: i, Type: BindingUniformBuffer})
	}
	return l
}

func TestAllocateGrowsPoolOnFirstUse(t *testing.T) {
	a := newArena(&fakeBackend{}, WithDefaultCapacities(DefaultCapacities{MaxSets: 2, UniformBuffers: 2}))
	layout := uniformLayout(1)

	if a.PoolCount() != 0 {
		t.Fatalf("PoolCount() = %d before any allocation, want 0", a.PoolCount())
	}
	alloc, ok := a.Allocate(layout, nil)
	if !ok || alloc == nil {
		t.Fatalf("Allocate() failed on empty arena")
	}
	if a.PoolCount() != 1 {
		t.Fatalf("PoolCount() = %d after first allocation, want 1", a.PoolCount())
	}
}

func TestAllocateReusesPoolUntilExhausted(t *testing.T) {
	a := newArena(&fakeBackend{}, WithDefaultCapacities(DefaultCapacities{MaxSets: 2, UniformBuffers: 10}))
	layout := uniformLayout(1)

	first, _ := a.Allocate(layout, nil)
	second, _ := a.Allocate(layout, nil)
	if a.PoolCount() != 1 {
		t.Fatalf("PoolCount() = %d after two allocations within capacity, want 1", a.PoolCount())
	}

	third, ok := a.Allocate(layout, nil)
	if !ok {
		t.Fatalf("Allocate() failed instead of growing a new pool")
	}
	if a.PoolCount() != 2 {
		t.Fatalf("PoolCount() = %d after exceeding first pool's maxSets, want 2", a.PoolCount())
	}

	_ = first
	_ = second
	_ = third
}

func TestFreeDestroysEmptyPool(t *testing.T) {
	a := newArena(&fakeBackend{}, WithDefaultCapacities(DefaultCapacities{MaxSets: 4, UniformBuffers: 4}))
	layout := uniformLayout(1)

	alloc, _ := a.Allocate(layout, nil)
	if a.PoolCount() != 1 {
		t.Fatalf("PoolCount() = %d, want 1", a.PoolCount())
	}
	if err := a.Free(alloc); err != nil {
		t.Fatalf("Free() returned error: %v", err)
	}
	if a.PoolCount() != 0 {
		t.Fatalf("PoolCount() = %d after freeing only allocation, want 0", a.PoolCount())
	}
}

func TestFreeUnknownAllocationErrors(t *testing.T) {
	a := newArena(&fakeBackend{})
	err := a.Free(&Allocation{Handle: 12345})
	if err == nil {
		t.Fatalf("Free() of unknown allocation returned nil error")
	}
}

func TestCapacityHeuristicTracksObservedWorkload(t *testing.T) {
	a := newArena(&fakeBackend{}, WithDefaultCapacities(DefaultCapacities{MaxSets: 1, UniformBuffers: 3}))
	layout := uniformLayout(3)

	// Exhaust the first pool (maxSets=1) so the second pool is sized from
	// history: 3 uniform bindings / 1 allocation = 3 per new pool.
	if _, ok := a.Allocate(layout, nil); !ok {
		t.Fatalf("first Allocate() failed")
	}
	if _, ok := a.Allocate(layout, nil); !ok {
		t.Fatalf("second Allocate() (triggering growth) failed")
	}
	stats := a.StatsSnapshot()
	if stats.TotalAllocations != 2 {
		t.Fatalf("TotalAllocations = %d, want 2", stats.TotalAllocations)
	}
	if stats.UniformBufferBindings != 6 {
		t.Fatalf("UniformBufferBindings = %d, want 6", stats.UniformBufferBindings)
	}
}
