// Package pipelinestore implements the pipeline family / pipeline /
// pass-variant store: reference-counted maps from family name to shared
// descriptor-set layouts, from pipeline name to its family, and from
// (pipeline, pass, variant) to compiled graphics pipeline.
package pipelinestore

import (
	"sort"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/KonstantinTomashevich/Kan-sub006/descarena"
	"github.com/KonstantinTomashevich/Kan-sub006/idgen"
	"github.com/KonstantinTomashevich/Kan-sub006/kanlog"
	"github.com/KonstantinTomashevich/Kan-sub006/resource"
)

// FamilyState tracks one pipeline family's current layouts and
// inspection bookkeeping.
type FamilyState struct {
	Name             string
	RequestID        idgen.ID
	SetMaterial      *descarena.Layout
	SetObject        *descarena.Layout
	SetShared        *descarena.Layout
	Refcount         int
	LastInspectionNs int64

	// vertexLayouts is rebuilt from the family's vertex attribute sources
	// on every reconstruction and shared by all of the family's compiled
	// pipelines.
	vertexLayouts []wgpu.VertexBufferLayout
}

// PipelineState tracks one pipeline name's sharing across passes.
type PipelineState struct {
	PipelineName string
	FamilyName   string
	RequestID    idgen.ID
	Refcount     int
}

// PassVariantKey identifies one compiled graphics pipeline instantiation.
type PassVariantKey struct {
	PipelineName string
	PassName     string
	VariantIndex int
}

// Priority ranks a compiled pipeline's importance: cache pipelines are kept
// compiled for later use, active pipelines belong to a material currently
// in use. Recompilation always starts at PriorityCache; the material engine
// raises loaded pipelines to PriorityActive while any usage references
// them.
type Priority int

const (
	PriorityCache Priority = iota
	PriorityActive
)

// PassVariantState tracks one compiled (pipeline, pass, variant) triplet.
type PassVariantState struct {
	Key      PassVariantKey
	Refcount int
	Priority Priority
	Compiled *wgpu.RenderPipeline
}

// Store owns every family, pipeline, and pass-variant state, and the
// device used to (re)compile graphics pipelines.
type Store struct {
	device *wgpu.Device

	families     map[string]*FamilyState
	pipelines    map[string]*PipelineState
	passVariants map[PassVariantKey]*PassVariantState
}

// New creates an empty pipeline/pass-variant store bound to device.
func New(device *wgpu.Device) *Store {
	return &Store{
		device:       device,
		families:     make(map[string]*FamilyState),
		pipelines:    make(map[string]*PipelineState),
		passVariants: make(map[PassVariantKey]*PassVariantState),
	}
}

// Family returns the family state for name, creating a zero-refcount one
// if it does not yet exist.
func (s *Store) Family(name string) *FamilyState {
	f, ok := s.families[name]
	if !ok {
		f = &FamilyState{Name: name}
		s.families[name] = f
	}
	return f
}

// Pipeline returns the pipeline state for name, creating a zero-refcount
// one tied to familyName if it does not yet exist.
func (s *Store) Pipeline(name, familyName string) *PipelineState {
	p, ok := s.pipelines[name]
	if !ok {
		p = &PipelineState{PipelineName: name, FamilyName: familyName}
		s.pipelines[name] = p
	}
	return p
}

// PassVariant returns the pass-variant state for key, creating a
// zero-refcount one if it does not yet exist.
func (s *Store) PassVariant(key PassVariantKey) *PassVariantState {
	pv, ok := s.passVariants[key]
	if !ok {
		pv = &PassVariantState{Key: key}
		s.passVariants[key] = pv
	}
	return pv
}

// ReleasePassVariant decrements a pass-variant's refcount, destroying its
// compiled pipeline and deleting the record when it reaches zero.
func (s *Store) ReleasePassVariant(key PassVariantKey) {
	pv, ok := s.passVariants[key]
	if !ok {
		return
	}
	pv.Refcount--
	if pv.Refcount <= 0 {
		if pv.Compiled != nil {
			pv.Compiled.Release()
		}
		delete(s.passVariants, key)
	}
}

// ReleasePipeline decrements a pipeline's refcount, deleting the record
// when it reaches zero.
func (s *Store) ReleasePipeline(name string) {
	p, ok := s.pipelines[name]
	if !ok {
		return
	}
	p.Refcount--
	if p.Refcount <= 0 {
		delete(s.pipelines, name)
	}
}

// ReleaseFamily decrements a family's refcount, destroying its layouts and
// deleting the record when it reaches zero.
func (s *Store) ReleaseFamily(name string) {
	f, ok := s.families[name]
	if !ok {
		return
	}
	f.Refcount--
	if f.Refcount <= 0 {
		releaseLayout(f.SetMaterial)
		releaseLayout(f.SetObject)
		releaseLayout(f.SetShared)
		delete(s.families, name)
	}
}

func releaseLayout(l *descarena.Layout) {
	if l != nil && l.Backend != nil {
		l.Backend.Release()
	}
}

// PassRenderContext resolves, for a given pass name, whether that pass is
// present and what (if any) variant-specific parameter-set layout it
// contributes. It is supplied by the
// caller (the render-pass registry is an external collaborator) rather
// than owned by this store.
type PassRenderContext interface {
	PassExists(name string) bool
	PassLayout(name string, variantIndex int) *descarena.Layout
}

// Reconstruct rebuilds a family's layouts and every dependent pipeline's
// compiled graphics pipelines at inspection time T. It skips
// work if already inspected at T. codeModuleFor resolves a pipeline's
// shader bytecode into a wgpu shader module; passes is the render-pass
// context used to resolve per-pass layouts.
func (s *Store) Reconstruct(
	name string,
	t int64,
	family resource.CompiledPipelineFamily,
	pipelines map[string]resource.CompiledPipeline,
	passes PassRenderContext,
	codeModuleFor func(resource.CompiledPipeline) (*wgpu.ShaderModule, bool),
) {
	f := s.Family(name)
	if f.LastInspectionNs == t && t != 0 {
		return
	}
	f.LastInspectionNs = t

	releaseLayout(f.SetMaterial)
	releaseLayout(f.SetObject)
	releaseLayout(f.SetShared)
	f.SetMaterial = buildLayout(s.device, family.SetMaterial)
	f.SetObject = buildLayout(s.device, family.SetObject)
	f.SetShared = buildLayout(s.device, family.SetShared)
	f.vertexLayouts = buildVertexLayouts(family)

	for pipelineName, compiled := range pipelines {
		module, ok := codeModuleFor(compiled)
		if !ok {
			kanlog.Logger().Warn("pipelinestore: unsupported code format, skipping pipeline", "pipeline", pipelineName)
			continue
		}

		for key, pv := range s.passVariants {
			if key.PipelineName != pipelineName {
				continue
			}
			if pv.Compiled != nil {
				pv.Compiled.Release()
				pv.Compiled = nil
			}
			if !passes.PassExists(key.PassName) {
				continue
			}
			passLayout := passes.PassLayout(key.PassName, key.VariantIndex)
			pv.Compiled = compileGraphicsPipeline(s.device, module, compiled, passLayout, f)
			pv.Priority = PriorityCache
		}
		if module != nil {
			module.Release()
		}
	}
}

// buildLayout translates a resource.SetBindingsMeta into a descarena
// Layout backed by a freshly created wgpu bind-group layout.
func buildLayout(device *wgpu.Device, meta resource.SetBindingsMeta) *descarena.Layout {
	if device == nil {
		return &descarena.Layout{}
	}
	var entries []wgpu.BindGroupLayoutEntry
	var bindings []descarena.Binding

	for _, b := range meta.Buffers {
		bufferType := wgpu.BufferBindingTypeUniform
		bt := descarena.BindingUniformBuffer
		if b.Kind == resource.BufferKindStorage {
			bufferType = wgpu.BufferBindingTypeStorage
			bt = descarena.BindingStorageBuffer
		}
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    uint32(b.Binding),
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer:     wgpu.BufferBindingLayout{Type: bufferType},
		})
		bindings = append(bindings, descarena.Binding{Index: b.Binding, Type: bt})
	}
	for _, img := range meta.Images {
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    uint32(img.Binding),
			Visibility: wgpu.ShaderStageFragment,
			Texture:    wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeFloat},
		})
		bindings = append(bindings, descarena.Binding{Index: img.Binding, Type: descarena.BindingCombinedImageSampler})
	}

	layout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{Entries: entries})
	if err != nil {
		kanlog.Logger().Error("pipelinestore: CreateBindGroupLayout failed", "err", err)
		return &descarena.Layout{Bindings: bindings}
	}
	return &descarena.Layout{Bindings: bindings, Backend: layout}
}

// buildVertexLayouts translates a family's vertex attribute sources into
// wgpu vertex buffer layouts, appending a per-instance layout when the
// family declares an instanced attribute source.
func buildVertexLayouts(family resource.CompiledPipelineFamily) []wgpu.VertexBufferLayout {
	layouts := make([]wgpu.VertexBufferLayout, 0, len(family.VertexAttributeSources)+1)
	for _, src := range family.VertexAttributeSources {
		layouts = append(layouts, vertexLayoutFor(src, wgpu.VertexStepModeVertex))
	}
	if family.HasInstancedAttributeSource {
		layouts = append(layouts, vertexLayoutFor(family.InstancedAttributeSource, wgpu.VertexStepModeInstance))
	}
	return layouts
}

// vertexLayoutFor converts one attribute source's class/item-format pairs
// into wgpu vertex attributes. Matrix classes expand into one attribute
// per column, consuming consecutive shader locations the way their GLSL
// declarations do. Unsupported class/format combinations are logged and
// skipped.
func vertexLayoutFor(src resource.VertexAttributeSource, step wgpu.VertexStepMode) wgpu.VertexBufferLayout {
	var attrs []wgpu.VertexAttribute
	for _, a := range src.Attributes {
		columns, rows := 1, componentsOf(a.Class)
		switch a.Class {
		case resource.ClassMat3x3:
			columns, rows = 3, 3
		case resource.ClassMat4x4:
			columns, rows = 4, 4
		}

		format, ok := vertexFormatFor(rows, a.Format)
		if !ok {
			kanlog.Logger().Error("pipelinestore: unsupported vertex attribute class/format, skipping",
				"location", a.Location, "class", a.Class, "format", a.Format)
			continue
		}
		columnSize := uint64(rows) * uint64(elementFormatSize(a.Format))
		for c := 0; c < columns; c++ {
			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         format,
				Offset:         uint64(a.Offset) + uint64(c)*columnSize,
				ShaderLocation: uint32(a.Location + c),
			})
		}
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: uint64(src.Stride),
		StepMode:    step,
		Attributes:  attrs,
	}
}

func componentsOf(class resource.AttributeClass) int {
	switch class {
	case resource.ClassVec2:
		return 2
	case resource.ClassVec3:
		return 3
	case resource.ClassVec4:
		return 4
	default:
		return 1
	}
}

func elementFormatSize(f resource.ElementFormat) uint32 {
	switch f {
	case resource.FormatUnorm8, resource.FormatSnorm8, resource.FormatUint8, resource.FormatSint8:
		return 1
	case resource.FormatFloat16, resource.FormatUnorm16, resource.FormatSnorm16, resource.FormatUint16, resource.FormatSint16:
		return 2
	default:
		return 4
	}
}

// vertexFormatFor maps a component count and element format to the wgpu
// vertex format. 8- and 16-bit formats only exist in 2- and 4-component
// widths, so 1- and 3-component requests for them report false.
func vertexFormatFor(components int, format resource.ElementFormat) (wgpu.VertexFormat, bool) {
	switch format {
	case resource.FormatFloat32:
		switch components {
		case 1:
			return wgpu.VertexFormatFloat32, true
		case 2:
			return wgpu.VertexFormatFloat32x2, true
		case 3:
			return wgpu.VertexFormatFloat32x3, true
		case 4:
			return wgpu.VertexFormatFloat32x4, true
		}
	case resource.FormatUint32:
		switch components {
		case 1:
			return wgpu.VertexFormatUint32, true
		case 2:
			return wgpu.VertexFormatUint32x2, true
		case 3:
			return wgpu.VertexFormatUint32x3, true
		case 4:
			return wgpu.VertexFormatUint32x4, true
		}
	case resource.FormatSint32:
		switch components {
		case 1:
			return wgpu.VertexFormatSint32, true
		case 2:
			return wgpu.VertexFormatSint32x2, true
		case 3:
			return wgpu.VertexFormatSint32x3, true
		case 4:
			return wgpu.VertexFormatSint32x4, true
		}
	case resource.FormatFloat16:
		switch components {
		case 2:
			return wgpu.VertexFormatFloat16x2, true
		case 4:
			return wgpu.VertexFormatFloat16x4, true
		}
	case resource.FormatUnorm8:
		switch components {
		case 2:
			return wgpu.VertexFormatUnorm8x2, true
		case 4:
			return wgpu.VertexFormatUnorm8x4, true
		}
	case resource.FormatSnorm8:
		switch components {
		case 2:
			return wgpu.VertexFormatSnorm8x2, true
		case 4:
			return wgpu.VertexFormatSnorm8x4, true
		}
	case resource.FormatUint8:
		switch components {
		case 2:
			return wgpu.VertexFormatUint8x2, true
		case 4:
			return wgpu.VertexFormatUint8x4, true
		}
	case resource.FormatSint8:
		switch components {
		case 2:
			return wgpu.VertexFormatSint8x2, true
		case 4:
			return wgpu.VertexFormatSint8x4, true
		}
	case resource.FormatUnorm16:
		switch components {
		case 2:
			return wgpu.VertexFormatUnorm16x2, true
		case 4:
			return wgpu.VertexFormatUnorm16x4, true
		}
	case resource.FormatSnorm16:
		switch components {
		case 2:
			return wgpu.VertexFormatSnorm16x2, true
		case 4:
			return wgpu.VertexFormatSnorm16x4, true
		}
	case resource.FormatUint16:
		switch components {
		case 2:
			return wgpu.VertexFormatUint16x2, true
		case 4:
			return wgpu.VertexFormatUint16x4, true
		}
	case resource.FormatSint16:
		switch components {
		case 2:
			return wgpu.VertexFormatSint16x2, true
		case 4:
			return wgpu.VertexFormatSint16x4, true
		}
	}
	return wgpu.VertexFormatFloat32, false
}

// compileGraphicsPipeline assembles and creates the wgpu render pipeline
// for one (pipeline, pass, variant), translating the resource-level
// pipeline-settings enums to their wgpu equivalents.
func compileGraphicsPipeline(
	device *wgpu.Device,
	module *wgpu.ShaderModule,
	compiled resource.CompiledPipeline,
	passLayout *descarena.Layout,
	f *FamilyState,
) *wgpu.RenderPipeline {
	if device == nil || module == nil {
		return nil
	}

	var bindGroupLayouts []*wgpu.BindGroupLayout
	for _, l := range []*descarena.Layout{passLayout, f.SetMaterial, f.SetObject, f.SetShared} {
		if l != nil && l.Backend != nil {
			bindGroupLayouts = append(bindGroupLayouts, l.Backend)
		}
	}
	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{BindGroupLayouts: bindGroupLayouts})
	if err != nil {
		kanlog.Logger().Error("pipelinestore: CreatePipelineLayout failed", "err", err)
		return nil
	}
	defer pipelineLayout.Release()

	cullMode := wgpu.CullModeNone
	switch compiled.PipelineSettings.CullMode {
	case resource.CullBack:
		cullMode = wgpu.CullModeBack
	case resource.CullFront:
		cullMode = wgpu.CullModeFront
	}

	targets := make([]wgpu.ColorTargetState, 0, len(compiled.ColorOutputs))
	for _, out := range compiled.ColorOutputs {
		state := wgpu.ColorTargetState{
			Format:    wgpu.TextureFormatBGRA8UnormSrgb,
			WriteMask: wgpu.ColorWriteMaskAll,
		}
		if out.BlendEnabled {
			state.Blend = &wgpu.BlendState{
				Color: wgpu.BlendComponent{
					SrcFactor: blendFactor(out.SourceColorBlendFactor),
					DstFactor: blendFactor(out.DestColorBlendFactor),
					Operation: blendOp(out.ColorBlendOp),
				},
				Alpha: wgpu.BlendComponent{
					SrcFactor: blendFactor(out.SourceAlphaBlendFactor),
					DstFactor: blendFactor(out.DestAlphaBlendFactor),
					Operation: blendOp(out.AlphaBlendOp),
				},
			}
		}
		targets = append(targets, state)
	}

	depthCompare := wgpu.CompareFunctionAlways
	if compiled.PipelineSettings.DepthTestEnabled {
		depthCompare = compareOp(compiled.PipelineSettings.DepthCompareOperation)
	}

	// Stencil state applies identically to both faces; the resource
	// contract carries a single operation set rather than per-face ones.
	stencil := wgpu.StencilFaceState{
		Compare:     wgpu.CompareFunctionAlways,
		FailOp:      wgpu.StencilOperationKeep,
		DepthFailOp: wgpu.StencilOperationKeep,
		PassOp:      wgpu.StencilOperationKeep,
	}
	if compiled.PipelineSettings.StencilTestEnabled {
		stencil = wgpu.StencilFaceState{
			Compare:     compareOp(compiled.PipelineSettings.StencilCompareOperation),
			FailOp:      stencilOp(compiled.PipelineSettings.StencilFailOperation),
			DepthFailOp: stencilOp(compiled.PipelineSettings.StencilDepthFailOperation),
			PassOp:      stencilOp(compiled.PipelineSettings.StencilPassOperation),
		}
	}

	desc := &wgpu.RenderPipelineDescriptor{
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: entryPointFor(compiled, "vertex"),
			Buffers:    f.vertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: entryPointFor(compiled, "fragment"),
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology: topologyFor(compiled.PipelineSettings.PolygonMode),
			CullMode: cullMode,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: compiled.PipelineSettings.DepthWriteEnabled,
			DepthCompare:      depthCompare,
			StencilFront:      stencil,
			StencilBack:       stencil,
			StencilReadMask:   0xFFFFFFFF,
			StencilWriteMask:  0xFFFFFFFF,
		},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	}

	pipeline, err := device.CreateRenderPipeline(desc)
	if err != nil {
		kanlog.Logger().Error("pipelinestore: CreateRenderPipeline failed", "err", err)
		return nil
	}
	return pipeline
}

func entryPointFor(compiled resource.CompiledPipeline, stage string) string {
	for _, e := range compiled.EntryPoints {
		if e.Stage == stage {
			return e.FunctionName
		}
	}
	return stage
}

// compareOp maps compare operations 1:1 to wgpu.
func compareOp(op resource.CompareOperation) wgpu.CompareFunction {
	switch op {
	case resource.CompareNever:
		return wgpu.CompareFunctionNever
	case resource.CompareAlways:
		return wgpu.CompareFunctionAlways
	case resource.CompareEqual:
		return wgpu.CompareFunctionEqual
	case resource.CompareNotEqual:
		return wgpu.CompareFunctionNotEqual
	case resource.CompareLess:
		return wgpu.CompareFunctionLess
	case resource.CompareLessOrEqual:
		return wgpu.CompareFunctionLessEqual
	case resource.CompareGreater:
		return wgpu.CompareFunctionGreater
	case resource.CompareGreaterOrEqual:
		return wgpu.CompareFunctionGreaterEqual
	default:
		return wgpu.CompareFunctionAlways
	}
}

// stencilOp maps stencil result operations 1:1 to wgpu.
func stencilOp(op resource.StencilOperation) wgpu.StencilOperation {
	switch op {
	case resource.StencilZero:
		return wgpu.StencilOperationZero
	case resource.StencilReplace:
		return wgpu.StencilOperationReplace
	case resource.StencilIncrementAndClamp:
		return wgpu.StencilOperationIncrementClamp
	case resource.StencilDecrementAndClamp:
		return wgpu.StencilOperationDecrementClamp
	case resource.StencilInvert:
		return wgpu.StencilOperationInvert
	case resource.StencilIncrementAndWrap:
		return wgpu.StencilOperationIncrementWrap
	case resource.StencilDecrementAndWrap:
		return wgpu.StencilOperationDecrementWrap
	default:
		return wgpu.StencilOperationKeep
	}
}

// topologyFor converts the rasterizer polygon mode. wgpu has no native
// wireframe fill mode, so wireframe pipelines render their triangles as
// line lists — the closest available image; see DESIGN.md.
func topologyFor(mode resource.PolygonMode) wgpu.PrimitiveTopology {
	if mode == resource.PolygonWireframe {
		return wgpu.PrimitiveTopologyLineList
	}
	return wgpu.PrimitiveTopologyTriangleList
}

// blendFactor maps blend factors 1:1 to wgpu. wgpu has no distinct
// constant-alpha factors, so those collapse onto the constant-color ones.
func blendFactor(f resource.BlendFactor) wgpu.BlendFactor {
	switch f {
	case resource.BlendOne:
		return wgpu.BlendFactorOne
	case resource.BlendSourceColor:
		return wgpu.BlendFactorSrc
	case resource.BlendOneMinusSourceColor:
		return wgpu.BlendFactorOneMinusSrc
	case resource.BlendDestColor:
		return wgpu.BlendFactorDst
	case resource.BlendOneMinusDestColor:
		return wgpu.BlendFactorOneMinusDst
	case resource.BlendSourceAlpha:
		return wgpu.BlendFactorSrcAlpha
	case resource.BlendOneMinusSourceAlpha:
		return wgpu.BlendFactorOneMinusSrcAlpha
	case resource.BlendDestAlpha:
		return wgpu.BlendFactorDstAlpha
	case resource.BlendOneMinusDestAlpha:
		return wgpu.BlendFactorOneMinusDstAlpha
	case resource.BlendConstantColor:
		return wgpu.BlendFactorConstant
	case resource.BlendOneMinusConstantColor:
		return wgpu.BlendFactorOneMinusConstant
	case resource.BlendConstantAlpha:
		return wgpu.BlendFactorConstant
	case resource.BlendOneMinusConstantAlpha:
		return wgpu.BlendFactorOneMinusConstant
	case resource.BlendSourceAlphaSaturate:
		return wgpu.BlendFactorSrcAlphaSaturated
	default:
		return wgpu.BlendFactorZero
	}
}

// blendOp maps blend operations 1:1 to wgpu.
func blendOp(op resource.BlendOperation) wgpu.BlendOperation {
	switch op {
	case resource.BlendOpSubtract:
		return wgpu.BlendOperationSubtract
	case resource.BlendOpReverseSubtract:
		return wgpu.BlendOperationReverseSubtract
	case resource.BlendOpMin:
		return wgpu.BlendOperationMin
	case resource.BlendOpMax:
		return wgpu.BlendOperationMax
	default:
		return wgpu.BlendOperationAdd
	}
}

// SetPassVariantPriority moves one compiled pass-variant between cache and
// active priority. Unknown keys are ignored.
func (s *Store) SetPassVariantPriority(key PassVariantKey, priority Priority) {
	if pv, ok := s.passVariants[key]; ok {
		pv.Priority = priority
	}
}

// AllPassVariantKeys returns a snapshot of every tracked pass-variant key,
// safe to iterate while individual variants are released.
func (s *Store) AllPassVariantKeys() []PassVariantKey {
	keys := make([]PassVariantKey, 0, len(s.passVariants))
	for key := range s.passVariants {
		keys = append(keys, key)
	}
	return keys
}

// SortPassVariantKeys orders keys by (pass-name, variant-index),
// keeping a loaded material's pipelines list deterministic for lookup.
func SortPassVariantKeys(keys []PassVariantKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].PassName != keys[j].PassName {
			return keys[i].PassName < keys[j].PassName
		}
		return keys[i].VariantIndex < keys[j].VariantIndex
	})
}
