// Package resource defines the contract types consumed from the external
// resource provider: the compiled-material, compiled-pipeline-
// family, compiled-pipeline, compiled-material-instance, and compiled-
// material-instance-static shapes, plus the request/event plumbing the
// material and material-instance engines drive. The provider itself —
// discovery, compilation, on-disk native entries — is an external
// collaborator and is not implemented here.
package resource

import "github.com/KonstantinTomashevich/Kan-sub006/idgen"

// Priority orders resource-request urgency.
type Priority int

const (
	PriorityCache Priority = iota
	PriorityMaterialInfo
	PriorityMaterialData
)

// Type tags what kind of resource a Request refers to.
type Type int

const (
	TypeCompiledMaterial Type = iota
	TypeCompiledPipelineFamily
	TypeCompiledPipeline
	TypeCompiledMaterialInstance
	TypeCompiledMaterialInstanceStatic
)

// Request tracks one outstanding ask to the resource provider.
type Request struct {
	ID                  idgen.ID
	Type                Type
	Name                string
	Priority            Priority
	ProvidedContainerID idgen.ID
	ExpectingNewData    bool
	Sleeping            bool
}

// ElementFormat enumerates the per-element item formats used by vertex
// attribute sources and instanced attribute sources.
type ElementFormat int

const (
	FormatFloat16 ElementFormat = iota
	FormatFloat32
	FormatUnorm8
	FormatUnorm16
	FormatSnorm8
	FormatSnorm16
	FormatUint8
	FormatUint16
	FormatUint32
	FormatSint8
	FormatSint16
	FormatSint32
)

// AttributeClass enumerates the vector/matrix shape of one vertex
// attribute.
type AttributeClass int

const (
	ClassVec1 AttributeClass = iota
	ClassVec2
	ClassVec3
	ClassVec4
	ClassMat3x3
	ClassMat4x4
)

// Attribute describes one vertex attribute within a source.
type Attribute struct {
	Location int
	Class    AttributeClass
	Format   ElementFormat
	Offset   uint32
}

// VertexAttributeSource describes one vertex-buffer binding's stride and
// the attributes pulled from it.
type VertexAttributeSource struct {
	Stride     uint32
	Attributes []Attribute
}

// BufferBindingMeta describes one buffer binding of a set, including its
// GPU buffer kind and the named parameters a material/material-instance
// may write into it.
type BufferBindingMeta struct {
	Name               string
	Binding            int
	Kind               BufferKind
	MainParameters     []ParameterMeta
	TailSets           []TailSetMeta
	TailItemSize       uint32
	TailItemParameters []ParameterMeta
}

// BufferKind is the GPU buffer kind a binding resolves to.
type BufferKind int

const (
	BufferKindUniform BufferKind = iota
	BufferKindStorage
)

// ParameterType enumerates the scalar/vector/matrix types a named
// parameter may declare.
type ParameterType int

const (
	ParamF1 ParameterType = iota
	ParamF2
	ParamF3
	ParamF4
	ParamU1
	ParamU2
	ParamU3
	ParamU4
	ParamS1
	ParamS2
	ParamS3
	ParamS4
	ParamF3x3
	ParamF4x4
)

// ParameterMeta describes one named parameter's offset and type within a
// buffer binding's staging layout.
type ParameterMeta struct {
	Name           string
	Offset         uint32
	Type           ParameterType
	TotalItemCount int
}

// TailSetMeta names one tail-array slot family within a buffer binding
type TailSetMeta struct {
	TailName string
	Index    int
}

// SamplerBindingMeta names one sampler binding of a set.
type SamplerBindingMeta struct {
	Name    string
	Binding int
}

// ImageBindingMeta names one combined-image-sampler binding of a set.
type ImageBindingMeta struct {
	Name    string
	Binding int
}

// SetBindingsMeta describes one descriptor set's full binding layout
type SetBindingsMeta struct {
	Buffers  []BufferBindingMeta
	Samplers []SamplerBindingMeta
	Images   []ImageBindingMeta
}

// CompiledPipelineFamily is the resource shape for a pipeline family
type CompiledPipelineFamily struct {
	VertexAttributeSources      []VertexAttributeSource
	HasInstancedAttributeSource bool
	InstancedAttributeSource    VertexAttributeSource
	PushConstantSize            uint32
	SetMaterial                 SetBindingsMeta
	SetObject                   SetBindingsMeta
	SetShared                   SetBindingsMeta
}

// PassVariantRef names one (pass, variant, pipeline) triplet a compiled
// material references.
type PassVariantRef struct {
	Pass         string
	VariantIndex int
	Pipeline     string
}

// CompiledMaterial is the resource shape for a material.
type CompiledMaterial struct {
	PipelineFamily string
	PassVariants   []PassVariantRef
}

// CompareOperation enumerates depth/stencil compare functions.
type CompareOperation int

const (
	CompareNever CompareOperation = iota
	CompareAlways
	CompareEqual
	CompareNotEqual
	CompareLess
	CompareLessOrEqual
	CompareGreater
	CompareGreaterOrEqual
)

// StencilOperation enumerates stencil result operations.
type StencilOperation int

const (
	StencilKeep StencilOperation = iota
	StencilZero
	StencilReplace
	StencilIncrementAndClamp
	StencilDecrementAndClamp
	StencilInvert
	StencilIncrementAndWrap
	StencilDecrementAndWrap
)

// BlendFactor enumerates color-blend factors.
type BlendFactor int

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSourceColor
	BlendOneMinusSourceColor
	BlendDestColor
	BlendOneMinusDestColor
	BlendSourceAlpha
	BlendOneMinusSourceAlpha
	BlendDestAlpha
	BlendOneMinusDestAlpha
	BlendConstantColor
	BlendOneMinusConstantColor
	BlendConstantAlpha
	BlendOneMinusConstantAlpha
	BlendSourceAlphaSaturate
)

// BlendOperation enumerates color-blend operations.
type BlendOperation int

const (
	BlendOpAdd BlendOperation = iota
	BlendOpSubtract
	BlendOpReverseSubtract
	BlendOpMin
	BlendOpMax
)

// PolygonMode selects fill vs. wireframe rasterization.
type PolygonMode int

const (
	PolygonFill PolygonMode = iota
	PolygonWireframe
)

// CullMode selects back-face culling behavior.
type CullMode int

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// ColorOutput describes one color attachment's blend setup.
type ColorOutput struct {
	SourceColorBlendFactor BlendFactor
	DestColorBlendFactor   BlendFactor
	ColorBlendOp           BlendOperation
	SourceAlphaBlendFactor BlendFactor
	DestAlphaBlendFactor   BlendFactor
	AlphaBlendOp           BlendOperation
	BlendEnabled           bool
}

// EntryPoint names one shader stage's entry function.
type EntryPoint struct {
	Stage        string
	FunctionName string
}

// PipelineSettings groups the rasterizer/depth-stencil settings a compiled
// pipeline declares.
type PipelineSettings struct {
	PolygonMode               PolygonMode
	CullMode                  CullMode
	DepthTestEnabled          bool
	DepthWriteEnabled         bool
	DepthCompareOperation     CompareOperation
	StencilTestEnabled        bool
	StencilFailOperation      StencilOperation
	StencilPassOperation      StencilOperation
	StencilDepthFailOperation StencilOperation
	StencilCompareOperation   CompareOperation
}

// CompiledPipeline is the resource shape for one graphics pipeline
type CompiledPipeline struct {
	PipelineSettings    PipelineSettings
	ColorOutputs        []ColorOutput
	ColorBlendConstants [4]float32
	Code                []byte
	CodeFormat          string
	EntryPoints         []EntryPoint
}

// CompiledMaterialInstanceStatic is the resource shape for a material-
// instance's shared static portion.
type CompiledMaterialInstanceStatic struct {
	Material   string
	Parameters []ParameterValue
	Samplers   []SamplerValue
	Images     []ImageValue
	TailSet    []TailSetValue
	TailAppend []TailAppendValue
}

// ParameterValue is one named parameter write, resolved against a buffer
// binding's ParameterMeta.
type ParameterValue struct {
	BufferName string
	Name       string
	Type       ParameterType
	Float      [16]float32
	Uint       [4]uint32
	Sint       [4]int32
}

// SamplerValue names one sampler assignment by name.
type SamplerValue struct {
	Name                                     string
	AddressModeU, AddressModeV, AddressModeW int
	MagFilter, MinFilter                     int
}

// ImageValue names one static image binding by texture name.
type ImageValue struct {
	Name        string
	TextureName string
}

// TailSetValue is one indexed tail-array element's parameter writes.
type TailSetValue struct {
	BufferName string
	TailName   string
	Index      int
	Parameters []ParameterValue
}

// TailAppendValue appends one more tail-array element past the static
// tail_set entries.
type TailAppendValue struct {
	BufferName string
	TailName   string
	Parameters []ParameterValue
}

// CompiledMaterialInstance is the resource shape for a material instance
type CompiledMaterialInstance struct {
	StaticData          string
	InstancedParameters []ParameterValue
}
