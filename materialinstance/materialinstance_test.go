package materialinstance

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/KonstantinTomashevich/Kan-sub006/descarena"
	"github.com/KonstantinTomashevich/Kan-sub006/gpuhandle"
	"github.com/KonstantinTomashevich/Kan-sub006/idgen"
	"github.com/KonstantinTomashevich/Kan-sub006/paramset"
	"github.com/KonstantinTomashevich/Kan-sub006/resource"
)

type fakeArenaBackend struct{}

func (fakeArenaBackend) CreateBindGroup(*wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error) {
	return &wgpu.BindGroup{}, nil
}

type fakeDevice struct{ buffersCreated int }

func (f *fakeDevice) CreateBuffer(d *wgpu.BufferDescriptor) (*wgpu.Buffer, error) {
	f.buffersCreated++
	return &wgpu.Buffer{}, nil
}

func (f *fakeDevice) CreateSampler(*wgpu.SamplerDescriptor) (*wgpu.Sampler, error) {
	return &wgpu.Sampler{}, nil
}

type fakeQueue struct {
	lastWrite []byte
}

func (f *fakeQueue) WriteBuffer(buffer *wgpu.Buffer, offset uint64, data []byte) {
	f.lastWrite = append([]byte(nil), data...)
}

type fakeTextures struct {
	loaded map[string]TextureBinding
	mips   map[idgen.ID][2]int
}

func newFakeTextures() *fakeTextures {
	return &fakeTextures{loaded: map[string]TextureBinding{}, mips: map[idgen.ID][2]int{}}
}

func (f *fakeTextures) Loaded(name string) (TextureBinding, bool) {
	b, ok := f.loaded[name]
	return b, ok
}

func (f *fakeTextures) CreateUsage(name string, id idgen.ID, best, worst int) {
	f.mips[id] = [2]int{best, worst}
}

func (f *fakeTextures) UpdateUsageMips(id idgen.ID, best, worst int) {
	f.mips[id] = [2]int{best, worst}
}

func (f *fakeTextures) DeleteUsage(id idgen.ID) {
	delete(f.mips, id)
}

func newTestEngine() (*Engine, *fakeDevice, *fakeQueue, *fakeTextures) {
	backend := fakeArenaBackend{}
	arena := descarena.NewCustom(backend, descarena.WithDefaultCapacities(descarena.DefaultCapacities{
		MaxSets: 8, UniformBuffers: 8, StorageBuffers: 8, CombinedImageSamplers: 8,
	}))
	params := paramset.New(arena, backend)
	device := &fakeDevice{}
	queue := &fakeQueue{}
	textures := newFakeTextures()
	e := New(nil, textures, params, device, queue)
	return e, device, queue, textures
}

func TestOnUsageInsertedEmitsRequestOnce(t *testing.T) {
	e, _, _, _ := newTestEngine()
	var requested int
	e.OnRequestMaterialInstanceData = func(name string, id idgen.ID) { requested++ }

	e.OnUsageInserted(idgen.ID(1), "grass", 0, 3)
	e.OnUsageInserted(idgen.ID(2), "grass", 0, 3)
	if requested != 1 {
		t.Fatalf("requested = %d, want 1 (request issued once per instance)", requested)
	}
	names := e.TrackedInstanceNames()
	if len(names) != 1 || names[0] != "grass" {
		t.Fatalf("TrackedInstanceNames() = %v, want [grass]", names)
	}
}

func TestOnUsageDeletedDestroysAtZeroRefcount(t *testing.T) {
	e, _, _, _ := newTestEngine()
	e.OnUsageInserted(idgen.ID(1), "grass", 0, 3)
	e.OnUsageInserted(idgen.ID(2), "grass", 0, 3)

	e.OnUsageDeleted(idgen.ID(1), "grass")
	if len(e.TrackedInstanceNames()) != 1 {
		t.Fatalf("instance destroyed too early after partial decrement")
	}
	e.OnUsageDeleted(idgen.ID(2), "grass")
	if len(e.TrackedInstanceNames()) != 0 {
		t.Fatalf("instance survived reference count reaching zero")
	}
}

func TestInspectStaticStagesBufferBytes(t *testing.T) {
	e, _, queue, _ := newTestEngine()

	setMeta := resource.SetBindingsMeta{
		Buffers: []resource.BufferBindingMeta{
			{
				Name:    "material_ubo",
				Binding: 0,
				Kind:    resource.BufferKindUniform,
				MainParameters: []resource.ParameterMeta{
					{Name: "tint", Offset: 0, Type: resource.ParamF4},
				},
			},
		},
	}
	data := resource.CompiledMaterialInstanceStatic{
		Material: "grass_mat",
		Parameters: []resource.ParameterValue{
			{BufferName: "material_ubo", Name: "tint", Type: resource.ParamF4, Float: [16]float32{1, 0.5, 0.25, 1}},
		},
	}
	layout := &descarena.Layout{Bindings: []descarena.Binding{{Index: 0, Type: descarena.BindingUniformBuffer}}}

	if err := e.InspectStatic("grass_static", data, setMeta, layout); err != nil {
		t.Fatalf("InspectStatic() error = %v", err)
	}
	if len(queue.lastWrite) != 16 {
		t.Fatalf("staged buffer length = %d, want 16 bytes for one vec4", len(queue.lastWrite))
	}

	st := e.statics["grass_static"]
	if st == nil || st.parameterSet == nil {
		t.Fatalf("InspectStatic() did not create a parameter set")
	}
	if st.parameterSet.Handle == gpuhandle.Invalid {
		t.Fatalf("created parameter set has an invalid handle")
	}
}

func TestInspectStaticIsIdempotentForSameMaterial(t *testing.T) {
	e, device, _, _ := newTestEngine()
	setMeta := resource.SetBindingsMeta{
		Buffers: []resource.BufferBindingMeta{
			{Name: "material_ubo", Binding: 0, Kind: resource.BufferKindUniform, MainParameters: []resource.ParameterMeta{
				{Name: "tint", Offset: 0, Type: resource.ParamF4},
			}},
		},
	}
	data := resource.CompiledMaterialInstanceStatic{Material: "grass_mat"}
	layout := &descarena.Layout{}

	_ = e.InspectStatic("grass_static", data, setMeta, layout)
	created := device.buffersCreated
	_ = e.InspectStatic("grass_static", data, setMeta, layout)
	if device.buffersCreated != created {
		t.Fatalf("InspectStatic() re-staged buffers on an already-loaded static with unchanged material")
	}
}

func TestRecomputeStaticMipsAggregatesAcrossInstances(t *testing.T) {
	e, _, _, textures := newTestEngine()
	e.OnUsageInserted(idgen.ID(1), "inst-a", 1, 4)
	e.OnUsageInserted(idgen.ID(2), "inst-b", 0, 2)

	setMeta := resource.SetBindingsMeta{Images: []resource.ImageBindingMeta{{Name: "albedo", Binding: 0}}}
	data := resource.CompiledMaterialInstanceStatic{
		Material: "grass_mat",
		Images:   []resource.ImageValue{{Name: "albedo", TextureName: "grass_albedo"}},
	}
	if err := e.InspectStatic("grass_static", data, setMeta, &descarena.Layout{}); err != nil {
		t.Fatalf("InspectStatic() error = %v", err)
	}

	e.InspectInstance("inst-a", "grass_static", "grass_mat", nil)
	e.InspectInstance("inst-b", "grass_static", "grass_mat", nil)
	e.RecomputeStaticMips("grass_static")

	st := e.statics["grass_static"]
	if st.bestMip != 0 || st.worstMip != 4 {
		t.Fatalf("static mips = (%d, %d), want (0, 4)", st.bestMip, st.worstMip)
	}
	for id := range textures.mips {
		if got := textures.mips[id]; got != [2]int{0, 4} {
			t.Fatalf("texture usage %d mips = %v, want [0 4]", id, got)
		}
	}
}

func TestInspectInstanceServesLoadedRecordOnceStaticReady(t *testing.T) {
	e, _, _, _ := newTestEngine()
	setMeta := resource.SetBindingsMeta{}
	data := resource.CompiledMaterialInstanceStatic{Material: "grass_mat"}
	if err := e.InspectStatic("grass_static", data, setMeta, &descarena.Layout{}); err != nil {
		t.Fatalf("InspectStatic() error = %v", err)
	}

	e.InspectInstance("blade_01", "grass_static", "grass_mat", []byte{1, 2, 3, 4})
	loaded := e.Loaded("blade_01")
	if loaded == nil {
		t.Fatalf("Loaded() = nil after static finished instantiating")
	}
	if loaded.MaterialName != "grass_mat" || len(loaded.InstancedData) != 4 {
		t.Fatalf("Loaded() = %+v, unexpected content", loaded)
	}
}

func TestInspectInstanceSkipsWhenStaticNotReady(t *testing.T) {
	e, _, _, _ := newTestEngine()
	e.InspectInstance("blade_01", "grass_static", "grass_mat", nil)
	if loaded := e.Loaded("blade_01"); loaded != nil {
		t.Fatalf("Loaded() = %+v, want nil before static finishes instantiating", loaded)
	}
}
