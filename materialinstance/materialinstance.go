// Package materialinstance implements the material instance engine:
// reference-counted material-instance-usage tracking, mip-advisory
// aggregation, and translation of compiled-material-instance resources
// into populated parameter sets with texture/sampler/image usages.
package materialinstance

import (
	"sync"

	"github.com/KonstantinTomashevich/Kan-sub006/descarena"
	"github.com/KonstantinTomashevich/Kan-sub006/idgen"
	"github.com/KonstantinTomashevich/Kan-sub006/kanlog"
	"github.com/KonstantinTomashevich/Kan-sub006/material"
	"github.com/KonstantinTomashevich/Kan-sub006/paramset"
	"github.com/KonstantinTomashevich/Kan-sub006/resource"
)

// LoadedMaterialInstance is the read-only record external rendering
// systems query once a material instance's static portion has finished
// loading.
type LoadedMaterialInstance struct {
	Name          string
	MaterialName  string
	ParameterSet  *paramset.ParamSet
	InstancedData []byte
}

// CustomLoadedMaterialInstance is a per-usage override of the shared
// loaded record, populated when a usage carries custom instanced
// parameters.
type CustomLoadedMaterialInstance struct {
	UsageID          idgen.ID
	LastInspectionNs int64
	MaterialName     string
	ParameterSet     *paramset.ParamSet
	InstancedData    []byte
}

// staticImage is one material-instance-static image binding.
type staticImage struct {
	textureName  string
	textureUsage idgen.ID
}

// instanceState is one material-instance's full bookkeeping.
type instanceState struct {
	name              string
	referenceCount    int
	requestID         idgen.ID
	currentStaticName string
	loadedStaticName  string
	lastInspectionNs  int64
	imageBestMip      int
	imageWorstMip     int

	usages map[idgen.ID]usageAdvisory

	loaded *LoadedMaterialInstance
}

// usageAdvisory is one usage's recorded mip advisory.
type usageAdvisory struct {
	bestAdvisedMip  int
	worstAdvisedMip int
}

// staticState is one material-instance-static's full bookkeeping.
type staticState struct {
	name                 string
	referenceCount       int
	requestID            idgen.ID
	loadedMaterialName   string
	loadingMaterialName  string
	currentMaterialUsage idgen.ID
	keptMaterialUsage    idgen.ID
	parameterSet         *paramset.ParamSet
	parameterBuffers     map[string]*gpuStagingBuffer
	images               map[string]staticImage
	setMeta              resource.SetBindingsMeta
	layout               *descarena.Layout
	bestMip              int
	worstMip             int
	mipUpdateNeeded      bool
	lastInspectionNs     int64

	// instances is the set of material-instance names currently bound to
	// this static via currentStaticName, used to drive static-level mip
	// aggregation and loaded-record fan-out.
	instances map[string]struct{}
}

// TextureBinding is the backend-owned image a texture name resolves to,
// supplied by the texture resource provider (an external collaborator).
type TextureBinding struct {
	Image *paramset.Image
}

// TextureProvider resolves texture names to their loaded GPU image and
// drives the material-usage-style refcounting on texture-usage ids. It is
// supplied by the resource provider.
type TextureProvider interface {
	// Loaded reports whether textureName has finished loading and, if so,
	// its bound image.
	Loaded(textureName string) (TextureBinding, bool)
	// CreateUsage mints a texture-usage for textureName with the given
	// advised mip range.
	CreateUsage(textureName string, id idgen.ID, bestAdvisedMip, worstAdvisedMip int)
	// UpdateUsageMips updates an existing texture-usage's advised mips
	UpdateUsageMips(id idgen.ID, bestAdvisedMip, worstAdvisedMip int)
	// DeleteUsage releases a texture-usage.
	DeleteUsage(id idgen.ID)
}

// Engine owns every tracked material-instance and material-instance-static
// state and drives inspection in reaction to resource-request and
// material-updated/texture-updated events.
type Engine struct {
	mu sync.Mutex

	materials     *material.Engine
	textures      TextureProvider
	paramsEngine  *paramset.Engine
	device        Device
	queue         Queue
	requests      idgen.Generator
	textureUsages idgen.Generator

	hotReloadPossible bool

	instances map[string]*instanceState
	statics   map[string]*staticState
	customs   map[idgen.ID]*CustomLoadedMaterialInstance

	// customSyncMarkerNs timestamps the last custom-sync pass so custom
	// records can be checked for consistency with the main engine.
	customSyncMarkerNs int64

	// OnRequestMaterialInstanceData/OnRequestMaterialInstanceStaticData
	// issue resource requests for a compiled-material-instance or
	// compiled-material-instance-static resource.
	OnRequestMaterialInstanceData       func(name string, id idgen.ID)
	OnRequestMaterialInstanceStaticData func(name string, id idgen.ID)

	// OnDeleteRequest asks the resource provider to deferred-delete the
	// request tied to id.
	OnDeleteRequest func(id idgen.ID)
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithHotReload enables hot-reload-possible mode: when disabled, static and
// instance resource requests are deleted immediately after their data has
// been consumed.
func WithHotReload(possible bool) Option {
	return func(e *Engine) { e.hotReloadPossible = possible }
}

// New creates a Material Instance Engine bound to materials (for loaded-
// material lookups), textures (for texture-usage and image resolution),
// paramsEngine (for static parameter-set creation/update), and device/queue
// (for static GPU buffer and sampler creation).
func New(materials *material.Engine, textures TextureProvider, paramsEngine *paramset.Engine, device Device, queue Queue, options ...Option) *Engine {
	e := &Engine{
		materials:    materials,
		textures:     textures,
		paramsEngine: paramsEngine,
		device:       device,
		queue:        queue,
		instances:    make(map[string]*instanceState),
		statics:      make(map[string]*staticState),
		customs:      make(map[idgen.ID]*CustomLoadedMaterialInstance),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *Engine) findOrCreateInstance(name string) *instanceState {
	s, ok := e.instances[name]
	if !ok {
		s = &instanceState{name: name, requestID: idgen.Invalid, usages: map[idgen.ID]usageAdvisory{}}
		e.instances[name] = s
	}
	return s
}

func (e *Engine) findOrCreateStatic(name string) *staticState {
	s, ok := e.statics[name]
	if !ok {
		s = &staticState{
			name:             name,
			requestID:        idgen.Invalid,
			parameterBuffers: map[string]*gpuStagingBuffer{},
			instances:        map[string]struct{}{},
		}
		e.statics[name] = s
	}
	return s
}

// OnUsageInserted applies insert semantics for a newly recorded
// material-instance-usage(usageID, name, bestMip, worstMip) record.
func (e *Engine) OnUsageInserted(usageID idgen.ID, name string, bestAdvisedMip, worstAdvisedMip int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.findOrCreateInstance(name)
	s.referenceCount++
	s.usages[usageID] = usageAdvisory{bestAdvisedMip, worstAdvisedMip}
	if s.requestID == idgen.Invalid {
		s.requestID = e.requests.Next()
		if e.OnRequestMaterialInstanceData != nil {
			e.OnRequestMaterialInstanceData(name, s.requestID)
		}
	}
}

// OnUsageMipsChanged updates a live usage's advised mip range without
// touching reference counts.
func (e *Engine) OnUsageMipsChanged(usageID idgen.ID, name string, bestAdvisedMip, worstAdvisedMip int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.instances[name]
	if !ok {
		return
	}
	s.usages[usageID] = usageAdvisory{bestAdvisedMip, worstAdvisedMip}
}

// OnUsageDeleted applies decrement/cascade semantics for a removed
// material-instance-usage record.
func (e *Engine) OnUsageDeleted(usageID idgen.ID, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.instances[name]
	if !ok {
		return
	}
	delete(s.usages, usageID)
	delete(e.customs, usageID)
	s.referenceCount--
	if s.referenceCount <= 0 {
		e.destroyInstanceLocked(s)
	}
}

// destroyInstanceLocked implements HELPER_UNLINK_STATIC_STATE_DATA for a
// whole instance going away: cascades into the static it is bound to,
// decrementing its refcount and, on zero, scheduling its request for
// deletion and releasing every static image's texture-usage.
func (e *Engine) destroyInstanceLocked(s *instanceState) {
	if s.currentStaticName != "" {
		e.unlinkStaticLocked(s.currentStaticName, s.name)
	}
	delete(e.instances, s.name)
}

// unlinkStaticLocked decrements staticName's refcount on behalf of
// instanceName, and when the static's refcount reaches zero, schedules its
// request for deletion and releases all of its static images and their
// texture-usages.
func (e *Engine) unlinkStaticLocked(staticName, instanceName string) {
	st, ok := e.statics[staticName]
	if !ok {
		return
	}
	delete(st.instances, instanceName)
	st.referenceCount--
	if st.referenceCount > 0 {
		st.mipUpdateNeeded = true
		return
	}

	if e.OnDeleteRequest != nil && st.requestID != idgen.Invalid {
		e.OnDeleteRequest(st.requestID)
	}
	for _, img := range st.images {
		if e.textures != nil {
			e.textures.DeleteUsage(img.textureUsage)
		}
	}
	if st.parameterSet != nil && e.paramsEngine != nil {
		e.paramsEngine.Destroy(st.parameterSet)
	}
	delete(e.statics, staticName)
}

// TrackedInstanceNames returns every currently tracked material-instance
// name, useful for diagnostics and tests.
func (e *Engine) TrackedInstanceNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.instances))
	for n := range e.instances {
		names = append(names, n)
	}
	return names
}

// Loaded returns the current loaded record for name, or nil if the
// material instance has not finished loading yet.
func (e *Engine) Loaded(name string) *LoadedMaterialInstance {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.instances[name]
	if !ok || s.loaded == nil {
		return nil
	}
	cp := *s.loaded
	cp.InstancedData = append([]byte(nil), s.loaded.InstancedData...)
	return &cp
}

func logUnreadySkip(component, name string) {
	kanlog.Logger().Debug("materialinstance: resource not ready, will re-inspect on next update", "component", component, "name", name)
}
