// Package material implements the material management engine: usage
// reference counting, pipeline-family/pipeline inspection dispatch, and
// the loaded-material record consumed by user rendering systems.
package material

import (
	"sort"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/KonstantinTomashevich/Kan-sub006/descarena"
	"github.com/KonstantinTomashevich/Kan-sub006/idgen"
	"github.com/KonstantinTomashevich/Kan-sub006/kanlog"
	"github.com/KonstantinTomashevich/Kan-sub006/pipelinestore"
	"github.com/KonstantinTomashevich/Kan-sub006/resource"
)

// NativeEntryType distinguishes the two native-entry kinds preload mode
// reacts to.
type NativeEntryType int

const (
	NativeEntryCompiled NativeEntryType = iota
	NativeEntryRaw
)

// PassVariant tracks one (pass, variant) slot of a material's compiled
// data plus the reconciliation flags inspection matrices over.
type PassVariant struct {
	Pass               string
	VariantIndex       int
	Pipeline           string
	FoundInNewData     bool
	PassedToLoadedData bool
	attached           bool
}

// LoadedMaterial is the read-only record external rendering systems query
// once a material's pipeline family and pipelines have finished loading.
type LoadedMaterial struct {
	Name           string
	PipelineFamily string
	SetMaterial    *descarena.Layout
	SetObject      *descarena.Layout
	SetShared      *descarena.Layout
	// SetMaterialBindingsMeta carries the named buffer/sampler/image
	// metadata for set_material,
	// consumed by the material-instance engine to resolve parameters by
	// name during static GPU object instantiation.
	SetMaterialBindingsMeta     resource.SetBindingsMeta
	SetObjectBindingsMeta       resource.SetBindingsMeta
	SetSharedBindingsMeta       resource.SetBindingsMeta
	Pipelines                   []pipelinestore.PassVariantKey
	VertexAttributeSources      []resource.VertexAttributeSource
	HasInstancedAttributeSource bool
	InstancedAttributeSource    resource.VertexAttributeSource
	PushConstantSize            uint32
}

// state is one material's full internal bookkeeping.
type state struct {
	name                      string
	referenceCount            int
	requestID                 idgen.ID
	preload                   bool
	hasNativeEntry            bool
	currentPipelineFamilyName string
	lastLoadedFamilyName      string
	passVariants              []*PassVariant
	loaded                    *LoadedMaterial
}

// Engine owns every tracked material's usage state and drives pipeline-
// family/pipeline/material inspection in reaction to resource-request and
// render-pass events.
type Engine struct {
	mu sync.Mutex

	pipelines *pipelinestore.Store
	requests  idgen.Generator

	preloadMaterials bool
	materials        map[string]*state

	// OnMaterialUpdated is invoked (outside the engine's lock) whenever a
	// loaded record is rebuilt. Replaceable by tests and by the wiring
	// layer.
	OnMaterialUpdated func(name string)

	// OnRequestMaterialInfo/OnRequestMaterialData issue resource requests
	// at the named priority. The resource provider itself is
	// an external collaborator; these hooks let this engine stay
	// decoupled from it.
	OnRequestMaterialInfo func(name string, id idgen.ID)
	OnRequestMaterialData func(name string, id idgen.ID)
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithPreloadMaterials enables preload-materials mode.
func WithPreloadMaterials(enabled bool) Option {
	return func(e *Engine) { e.preloadMaterials = enabled }
}

// New creates a Material Management Engine backed by store.
func New(store *pipelinestore.Store, options ...Option) *Engine {
	e := &Engine{
		pipelines: store,
		materials: make(map[string]*state),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *Engine) findOrCreate(name string) *state {
	s, ok := e.materials[name]
	if !ok {
		s = &state{name: name, requestID: idgen.Invalid}
		e.materials[name] = s
	}
	return s
}

// OnUsageInserted applies insert semantics for a newly recorded
// material-usage(name).
func (e *Engine) OnUsageInserted(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.insertLocked(name)
}

func (e *Engine) insertLocked(name string) {
	s := e.findOrCreate(name)
	s.referenceCount++
	if s.referenceCount == 1 && e.preloadMaterials {
		e.setLoadedPipelinePriority(s, pipelinestore.PriorityActive)
	}
	if s.requestID == idgen.Invalid {
		s.requestID = e.requests.Next()
		if e.OnRequestMaterialInfo != nil {
			e.OnRequestMaterialInfo(name, s.requestID)
		}
	}
}

// OnUsageChanged applies insert semantics to newName and decrement
// semantics to oldName.
func (e *Engine) OnUsageChanged(oldName, newName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.insertLocked(newName)
	e.decrementLocked(oldName)
}

// OnUsageDeleted applies decrement semantics for a removed material-usage
// record.
func (e *Engine) OnUsageDeleted(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.decrementLocked(name)
}

func (e *Engine) decrementLocked(name string) {
	s, ok := e.materials[name]
	if !ok {
		return
	}
	s.referenceCount--
	if s.referenceCount <= 0 {
		if !e.preloadMaterials || !s.hasNativeEntry {
			e.destroyLocked(s)
			return
		}
		e.setLoadedPipelinePriority(s, pipelinestore.PriorityCache)
	}
}

func (e *Engine) destroyLocked(s *state) {
	for _, pv := range s.passVariants {
		e.detachPassVariantLocked(pv)
	}
	delete(e.materials, s.name)
}

// setLoadedPipelinePriority raises or lowers every attached pass-variant
// of s between cache and active priority: the first usage of a preloaded
// material promotes its compiled pipelines, the last usage demotes them
// back to cache.
func (e *Engine) setLoadedPipelinePriority(s *state, priority pipelinestore.Priority) {
	for _, pv := range s.passVariants {
		if !pv.attached {
			continue
		}
		e.pipelines.SetPassVariantPriority(pipelinestore.PassVariantKey{
			PipelineName: pv.Pipeline,
			PassName:     pv.Pass,
			VariantIndex: pv.VariantIndex,
		}, priority)
	}
	kanlog.Logger().Debug("material: pipeline priority changed", "material", s.name, "priority", priority)
}

// OnNativeEntryInserted reacts to a native-entry insert event while preload
// mode is enabled, creating a zero-refcount preload state for compiled or
// raw material types.
func (e *Engine) OnNativeEntryInserted(name string, _ NativeEntryType) {
	if !e.preloadMaterials {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.findOrCreate(name)
	s.hasNativeEntry = true
}

// InspectMaterial runs material inspection against a freshly
// read compiled-material resource. passes resolves whether a given pass is
// currently registered, used when deciding whether to eagerly attach new
// pass-variants.
func (e *Engine) InspectMaterial(name string, compiled resource.CompiledMaterial, passes pipelinestore.PassRenderContext) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.findOrCreate(name)

	if s.currentPipelineFamilyName != compiled.PipelineFamily {
		if s.currentPipelineFamilyName != "" && s.lastLoadedFamilyName != s.currentPipelineFamilyName {
			e.pipelines.ReleaseFamily(s.currentPipelineFamilyName)
		}
		s.currentPipelineFamilyName = compiled.PipelineFamily
		fam := e.pipelines.Family(compiled.PipelineFamily)
		fam.Refcount++
		fam.RequestID = idgen.Invalid
	}

	for _, pv := range s.passVariants {
		pv.FoundInNewData = false
	}

	for _, ref := range compiled.PassVariants {
		pv := e.findOrInsertPassVariant(s, ref)
		pv.FoundInNewData = true
		if !pv.attached && passes != nil && passes.PassExists(ref.Pass) {
			e.attachPassVariantLocked(s, pv)
		}
	}

	remaining := s.passVariants[:0]
	for _, pv := range s.passVariants {
		switch {
		case pv.FoundInNewData && pv.PassedToLoadedData:
			remaining = append(remaining, pv)
		case pv.FoundInNewData && !pv.PassedToLoadedData:
			remaining = append(remaining, pv)
		case !pv.FoundInNewData && pv.PassedToLoadedData:
			e.detachPipelineOnlyLocked(pv)
			remaining = append(remaining, pv)
		default:
			e.detachPassVariantLocked(pv)
		}
	}
	s.passVariants = remaining
}

func (e *Engine) findOrInsertPassVariant(s *state, ref resource.PassVariantRef) *PassVariant {
	for _, pv := range s.passVariants {
		if pv.Pass == ref.Pass && pv.VariantIndex == ref.VariantIndex {
			pv.Pipeline = ref.Pipeline
			return pv
		}
	}
	pv := &PassVariant{Pass: ref.Pass, VariantIndex: ref.VariantIndex, Pipeline: ref.Pipeline}
	s.passVariants = append(s.passVariants, pv)
	return pv
}

// attachPassVariantLocked find-or-inserts the pipeline-
// pass-variant and pipeline-state, incrementing both refcounts.
func (e *Engine) attachPassVariantLocked(_ *state, pv *PassVariant) {
	key := pipelinestore.PassVariantKey{PipelineName: pv.Pipeline, PassName: pv.Pass, VariantIndex: pv.VariantIndex}
	pvState := e.pipelines.PassVariant(key)
	pvState.Refcount++

	pState := e.pipelines.Pipeline(pv.Pipeline, "")
	wasShared := pState.Refcount > 0
	pState.Refcount++
	if wasShared {
		pState.RequestID = idgen.Invalid
	}
	pv.attached = true
}

func (e *Engine) detachPipelineOnlyLocked(pv *PassVariant) {
	if !pv.attached {
		return
	}
	key := pipelinestore.PassVariantKey{PipelineName: pv.Pipeline, PassName: pv.Pass, VariantIndex: pv.VariantIndex}
	e.pipelines.ReleasePassVariant(key)
	e.pipelines.ReleasePipeline(pv.Pipeline)
	pv.attached = false
}

func (e *Engine) detachPassVariantLocked(pv *PassVariant) {
	e.detachPipelineOnlyLocked(pv)
}

// OnPassUpdated reacts to a render pass being replaced: every compiled
// variant for it is dropped so the next family load recompiles them.
func (e *Engine) OnPassUpdated(passName string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, key := range e.pipelines.AllPassVariantKeys() {
		if key.PassName == passName {
			e.pipelines.ReleasePassVariant(key)
		}
	}
	for _, s := range e.materials {
		filtered := s.passVariants[:0]
		for _, pv := range s.passVariants {
			if pv.Pass == passName {
				e.detachPassVariantLocked(pv)
				continue
			}
			filtered = append(filtered, pv)
		}
		s.passVariants = filtered
		if s.loaded != nil {
			kept := s.loaded.Pipelines[:0]
			for _, k := range s.loaded.Pipelines {
				if k.PassName != passName {
					kept = append(kept, k)
				}
			}
			s.loaded.Pipelines = kept
		}
	}
}

// OnPassDeleted reacts to a render pass being removed entirely.
func (e *Engine) OnPassDeleted(passName string) {
	e.OnPassUpdated(passName)
}

// FinalizeFamilyLoad runs pipeline-family
// reconstruction via the pipeline store, then rebuilds every loaded record
// that depends on familyName.
func (e *Engine) FinalizeFamilyLoad(
	familyName string,
	t int64,
	family resource.CompiledPipelineFamily,
	pipelines map[string]resource.CompiledPipeline,
	passes pipelinestore.PassRenderContext,
	codeModuleFor func(resource.CompiledPipeline) (*wgpu.ShaderModule, bool),
) {
	e.pipelines.Reconstruct(familyName, t, family, pipelines, passes, codeModuleFor)

	e.mu.Lock()
	var updated []string
	for _, s := range e.materials {
		if s.currentPipelineFamilyName != familyName {
			continue
		}
		e.rebuildLoadedLocked(s, family)
		updated = append(updated, s.name)
	}
	e.mu.Unlock()

	sort.Strings(updated)
	if e.OnMaterialUpdated != nil {
		for _, name := range updated {
			e.OnMaterialUpdated(name)
		}
	}
}

func (e *Engine) rebuildLoadedLocked(s *state, family resource.CompiledPipelineFamily) {
	fam := e.pipelines.Family(s.currentPipelineFamilyName)

	loaded := &LoadedMaterial{
		Name:                        s.name,
		PipelineFamily:              s.currentPipelineFamilyName,
		SetMaterial:                 fam.SetMaterial,
		SetObject:                   fam.SetObject,
		SetShared:                   fam.SetShared,
		SetMaterialBindingsMeta:     family.SetMaterial,
		SetObjectBindingsMeta:       family.SetObject,
		SetSharedBindingsMeta:       family.SetShared,
		VertexAttributeSources:      family.VertexAttributeSources,
		HasInstancedAttributeSource: family.HasInstancedAttributeSource,
		InstancedAttributeSource:    family.InstancedAttributeSource,
		PushConstantSize:            family.PushConstantSize,
	}

	var keys []pipelinestore.PassVariantKey
	for _, pv := range s.passVariants {
		if !pv.FoundInNewData {
			continue
		}
		pv.PassedToLoadedData = true
		keys = append(keys, pipelinestore.PassVariantKey{PipelineName: pv.Pipeline, PassName: pv.Pass, VariantIndex: pv.VariantIndex})
	}
	pipelinestore.SortPassVariantKeys(keys)
	loaded.Pipelines = keys

	if s.currentPipelineFamilyName != s.lastLoadedFamilyName {
		if s.lastLoadedFamilyName != "" {
			e.pipelines.ReleaseFamily(s.lastLoadedFamilyName)
		}
		s.lastLoadedFamilyName = s.currentPipelineFamilyName
	}

	s.loaded = loaded
}

// Loaded returns the current loaded record for name, or nil if the
// material has not finished loading yet.
func (e *Engine) Loaded(name string) *LoadedMaterial {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.materials[name]
	if !ok || s.loaded == nil {
		return nil
	}
	cp := *s.loaded
	cp.Pipelines = append([]pipelinestore.PassVariantKey(nil), s.loaded.Pipelines...)
	return &cp
}

// TrackedNames returns every currently tracked material name, sorted for
// deterministic iteration in tests and diagnostics.
func (e *Engine) TrackedNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.materials))
	for n := range e.materials {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
