package material

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/require"

	"github.com/KonstantinTomashevich/Kan-sub006/descarena"
	"github.com/KonstantinTomashevich/Kan-sub006/idgen"
	"github.com/KonstantinTomashevich/Kan-sub006/pipelinestore"
	"github.com/KonstantinTomashevich/Kan-sub006/resource"
)

// fakePasses is a PassRenderContext over a fixed pass set.
type fakePasses map[string]bool

func (f fakePasses) PassExists(name string) bool { return f[name] }

func (f fakePasses) PassLayout(string, int) *descarena.Layout { return &descarena.Layout{} }

func newTestEngine() (*Engine, *pipelinestore.Store, *[]string) {
	store := pipelinestore.New(nil)
	e := New(store)
	requests := &[]string{}
	e.OnRequestMaterialInfo = func(name string, _ idgen.ID) {
		*requests = append(*requests, name)
	}
	return e, store, requests
}

func compiledM(family string, variants ...resource.PassVariantRef) resource.CompiledMaterial {
	return resource.CompiledMaterial{PipelineFamily: family, PassVariants: variants}
}

func TestUsageRefcounting(t *testing.T) {
	e, _, requests := newTestEngine()

	e.OnUsageInserted("M")
	e.OnUsageInserted("M")
	require.Equal(t, []string{"M"}, *requests, "request issued once per material")

	e.OnUsageDeleted("M")
	require.Equal(t, []string{"M"}, e.TrackedNames())

	e.OnUsageDeleted("M")
	require.Empty(t, e.TrackedNames(), "state destroyed when refcount reaches zero")
}

func TestUsageChangeMovesReference(t *testing.T) {
	e, _, _ := newTestEngine()

	e.OnUsageInserted("A")
	e.OnUsageChanged("A", "B")
	require.Equal(t, []string{"B"}, e.TrackedNames())
}

func TestInspectMaterialAttachesVariants(t *testing.T) {
	e, store, _ := newTestEngine()
	passes := fakePasses{"opaque": true, "shadow": true}

	e.OnUsageInserted("M")
	e.InspectMaterial("M", compiledM("F",
		resource.PassVariantRef{Pass: "opaque", VariantIndex: 0, Pipeline: "P"},
		resource.PassVariantRef{Pass: "shadow", VariantIndex: 0, Pipeline: "P"},
	), passes)

	require.Equal(t, 1, store.Family("F").Refcount)
	key := pipelinestore.PassVariantKey{PipelineName: "P", PassName: "opaque", VariantIndex: 0}
	require.Equal(t, 1, store.PassVariant(key).Refcount)
	require.Equal(t, 2, store.Pipeline("P", "F").Refcount, "one reference per pass-variant")
}

func TestInspectMaterialDropsOrphanedVariants(t *testing.T) {
	e, store, _ := newTestEngine()
	passes := fakePasses{"opaque": true, "shadow": true}

	e.OnUsageInserted("M")
	e.InspectMaterial("M", compiledM("F",
		resource.PassVariantRef{Pass: "opaque", VariantIndex: 0, Pipeline: "P"},
		resource.PassVariantRef{Pass: "shadow", VariantIndex: 0, Pipeline: "P"},
	), passes)

	// New data no longer references the shadow variant; since it was never
	// passed to loaded data it is deleted outright.
	e.InspectMaterial("M", compiledM("F",
		resource.PassVariantRef{Pass: "opaque", VariantIndex: 0, Pipeline: "P"},
	), passes)

	require.Equal(t, 1, store.Pipeline("P", "F").Refcount)
	require.Len(t, store.AllPassVariantKeys(), 1)
}

func TestFinalizeFamilyLoadBuildsSortedLoadedRecord(t *testing.T) {
	e, _, _ := newTestEngine()
	passes := fakePasses{"opaque": true, "shadow": true}

	var updated []string
	e.OnMaterialUpdated = func(name string) { updated = append(updated, name) }

	e.OnUsageInserted("M")
	e.InspectMaterial("M", compiledM("F",
		resource.PassVariantRef{Pass: "shadow", VariantIndex: 1, Pipeline: "P"},
		resource.PassVariantRef{Pass: "opaque", VariantIndex: 0, Pipeline: "P"},
		resource.PassVariantRef{Pass: "opaque", VariantIndex: 1, Pipeline: "P"},
	), passes)

	family := resource.CompiledPipelineFamily{PushConstantSize: 16}
	e.FinalizeFamilyLoad("F", 1, family, nil, passes, func(resource.CompiledPipeline) (*wgpu.ShaderModule, bool) {
		return nil, false
	})

	require.Equal(t, []string{"M"}, updated, "material-updated emitted exactly once per reload")

	loaded := e.Loaded("M")
	require.NotNil(t, loaded)
	require.Equal(t, uint32(16), loaded.PushConstantSize)
	require.Equal(t, []pipelinestore.PassVariantKey{
		{PipelineName: "P", PassName: "opaque", VariantIndex: 0},
		{PipelineName: "P", PassName: "opaque", VariantIndex: 1},
		{PipelineName: "P", PassName: "shadow", VariantIndex: 1},
	}, loaded.Pipelines, "pipelines sorted by (pass-name, variant-index)")
}

func TestPassDeletedRemovesPipelinesFromLoadedRecord(t *testing.T) {
	e, _, _ := newTestEngine()
	passes := fakePasses{"opaque": true, "shadow": true}

	e.OnUsageInserted("M")
	e.InspectMaterial("M", compiledM("F",
		resource.PassVariantRef{Pass: "opaque", VariantIndex: 0, Pipeline: "P"},
		resource.PassVariantRef{Pass: "shadow", VariantIndex: 0, Pipeline: "P"},
	), passes)
	e.FinalizeFamilyLoad("F", 1, resource.CompiledPipelineFamily{}, nil, passes, func(resource.CompiledPipeline) (*wgpu.ShaderModule, bool) {
		return nil, false
	})

	e.OnPassDeleted("shadow")

	loaded := e.Loaded("M")
	require.NotNil(t, loaded)
	for _, key := range loaded.Pipelines {
		require.NotEqual(t, "shadow", key.PassName)
	}
}

func TestPreloadTogglesPipelinePriority(t *testing.T) {
	store := pipelinestore.New(nil)
	e := New(store, WithPreloadMaterials(true))
	passes := fakePasses{"opaque": true}

	e.OnNativeEntryInserted("M", NativeEntryCompiled)
	e.OnUsageInserted("M")
	e.InspectMaterial("M", compiledM("F",
		resource.PassVariantRef{Pass: "opaque", VariantIndex: 0, Pipeline: "P"},
	), passes)

	// Compilation leaves variants at cache priority; the usage inserted
	// before inspection could not promote anything yet.
	key := pipelinestore.PassVariantKey{PipelineName: "P", PassName: "opaque", VariantIndex: 0}
	require.Equal(t, pipelinestore.PriorityCache, store.PassVariant(key).Priority)

	// The preload native entry keeps the state alive at refcount zero,
	// demoted to cache; the next usage promotes its pipelines to active.
	e.OnUsageDeleted("M")
	require.Equal(t, pipelinestore.PriorityCache, store.PassVariant(key).Priority)

	e.OnUsageInserted("M")
	require.Equal(t, pipelinestore.PriorityActive, store.PassVariant(key).Priority)
}

func TestFamilySwitchReleasesOldFamily(t *testing.T) {
	e, store, _ := newTestEngine()
	passes := fakePasses{"opaque": true}

	e.OnUsageInserted("M")
	e.InspectMaterial("M", compiledM("F1",
		resource.PassVariantRef{Pass: "opaque", VariantIndex: 0, Pipeline: "P"},
	), passes)
	require.Equal(t, 1, store.Family("F1").Refcount)

	e.InspectMaterial("M", compiledM("F2",
		resource.PassVariantRef{Pass: "opaque", VariantIndex: 0, Pipeline: "P"},
	), passes)
	require.Equal(t, 1, store.Family("F2").Refcount)
	require.Zero(t, store.Family("F1").Refcount, "old family released when never loaded")
}
