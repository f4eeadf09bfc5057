package materialinstance

import (
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/KonstantinTomashevich/Kan-sub006/descarena"
	"github.com/KonstantinTomashevich/Kan-sub006/kanlog"
	"github.com/KonstantinTomashevich/Kan-sub006/paramset"
	"github.com/KonstantinTomashevich/Kan-sub006/resource"
)

// Device is the subset of *wgpu.Device the material-instance engine needs
// to stage static GPU buffers and samplers.
type Device interface {
	CreateBuffer(descriptor *wgpu.BufferDescriptor) (*wgpu.Buffer, error)
	CreateSampler(descriptor *wgpu.SamplerDescriptor) (*wgpu.Sampler, error)
}

// Queue is the subset of *wgpu.Queue needed to seed a freshly created
// buffer with its staged bytes.
type Queue interface {
	WriteBuffer(buffer *wgpu.Buffer, bufferOffset uint64, data []byte)
}

// gpuStagingBuffer is one named buffer binding's CPU-side byte mirror plus
// its backing wgpu.Buffer, kept around so tail_append can
// grow the buffer and re-stage it wholesale.
type gpuStagingBuffer struct {
	name     string
	binding  int
	kind     resource.BufferKind
	bytes    []byte
	mainSize uint32
	tail     resource.BufferBindingMeta
	buffer   *wgpu.Buffer
}

func typeSize(t resource.ParameterType) uint32 {
	switch t {
	case resource.ParamF1, resource.ParamU1, resource.ParamS1:
		return 4
	case resource.ParamF2, resource.ParamU2, resource.ParamS2:
		return 8
	case resource.ParamF3, resource.ParamU3, resource.ParamS3:
		return 12
	case resource.ParamF4, resource.ParamU4, resource.ParamS4:
		return 16
	case resource.ParamF3x3:
		return 36
	case resource.ParamF4x4:
		return 64
	default:
		return 0
	}
}

// writeParameterBytes writes pv's typed payload into dst at offset,
// growing dst if necessary.
func writeParameterBytes(dst []byte, offset uint32, pv resource.ParameterValue) []byte {
	size := typeSize(pv.Type)
	need := int(offset + size)
	if need > len(dst) {
		grown := make([]byte, need)
		copy(grown, dst)
		dst = grown
	}

	putFloat32 := func(at uint32, v float32) {
		bits := math.Float32bits(v)
		dst[at+0] = byte(bits)
		dst[at+1] = byte(bits >> 8)
		dst[at+2] = byte(bits >> 16)
		dst[at+3] = byte(bits >> 24)
	}
	putUint32 := func(at uint32, v uint32) {
		dst[at+0] = byte(v)
		dst[at+1] = byte(v >> 8)
		dst[at+2] = byte(v >> 16)
		dst[at+3] = byte(v >> 24)
	}

	switch pv.Type {
	case resource.ParamF1, resource.ParamF2, resource.ParamF3, resource.ParamF4:
		n := size / 4
		for i := uint32(0); i < n; i++ {
			putFloat32(offset+i*4, pv.Float[i])
		}
	case resource.ParamU1, resource.ParamU2, resource.ParamU3, resource.ParamU4:
		n := size / 4
		for i := uint32(0); i < n; i++ {
			putUint32(offset+i*4, pv.Uint[i])
		}
	case resource.ParamS1, resource.ParamS2, resource.ParamS3, resource.ParamS4:
		n := size / 4
		for i := uint32(0); i < n; i++ {
			putUint32(offset+i*4, uint32(pv.Sint[i]))
		}
	case resource.ParamF3x3:
		for i := uint32(0); i < 9; i++ {
			putFloat32(offset+i*4, pv.Float[i])
		}
	case resource.ParamF4x4:
		for i := uint32(0); i < 16; i++ {
			putFloat32(offset+i*4, pv.Float[i])
		}
	}
	return dst
}

// findParameterMeta resolves a named parameter within one buffer's main
// parameters; tail-item parameters are resolved by
// findTailItemParameterMeta.
func findParameterMeta(meta resource.BufferBindingMeta, name string) (resource.ParameterMeta, bool) {
	for _, p := range meta.MainParameters {
		if p.Name == name {
			return p, true
		}
	}
	return resource.ParameterMeta{}, false
}

func findTailItemParameterMeta(meta resource.BufferBindingMeta, name string) (resource.ParameterMeta, bool) {
	for _, p := range meta.TailItemParameters {
		if p.Name == name {
			return p, true
		}
	}
	return resource.ParameterMeta{}, false
}

func findTailSetIndex(meta resource.BufferBindingMeta, tailName string) (int, bool) {
	for _, t := range meta.TailSets {
		if t.TailName == tailName {
			return t.Index, true
		}
	}
	return 0, false
}

// buildStagingBuffers lays out one gpuStagingBuffer per buffer binding
// named in meta, sized to its main parameters plus every tail_set/
// tail_append element seen in data.
func buildStagingBuffers(meta resource.SetBindingsMeta, data resource.CompiledMaterialInstanceStatic) map[string]*gpuStagingBuffer {
	buffers := make(map[string]*gpuStagingBuffer, len(meta.Buffers))
	for _, b := range meta.Buffers {
		mainSize := uint32(0)
		for _, p := range b.MainParameters {
			end := p.Offset + typeSize(p.Type)
			if end > mainSize {
				mainSize = end
			}
		}
		buffers[b.Name] = &gpuStagingBuffer{
			name:     b.Name,
			binding:  b.Binding,
			kind:     b.Kind,
			bytes:    make([]byte, mainSize),
			mainSize: mainSize,
			tail:     b,
		}
	}

	for _, pv := range data.Parameters {
		buf, ok := buffers[pv.BufferName]
		if !ok {
			kanlog.Logger().Warn("materialinstance: parameter references unknown buffer", "buffer", pv.BufferName, "parameter", pv.Name)
			continue
		}
		meta, ok := findParameterMeta(buf.tail, pv.Name)
		if !ok {
			kanlog.Logger().Warn("materialinstance: parameter name not found in buffer metadata", "buffer", pv.BufferName, "parameter", pv.Name)
			continue
		}
		buf.bytes = writeParameterBytes(buf.bytes, meta.Offset, pv)
	}

	for _, ts := range data.TailSet {
		buf, ok := buffers[ts.BufferName]
		if !ok {
			continue
		}
		// Only one tail array family per buffer is supported today (the
		// buffer's tail region starts immediately after its main
		// parameters); findTailSetIndex validates the name is declared.
		if _, ok := findTailSetIndex(buf.tail, ts.TailName); !ok {
			kanlog.Logger().Warn("materialinstance: tail_set references unknown tail array", "buffer", ts.BufferName, "tail", ts.TailName)
			continue
		}
		elementOffset := uint32(ts.Index)*buf.tail.TailItemSize + buf.mainSize
		if need := int(elementOffset + buf.tail.TailItemSize); need > len(buf.bytes) {
			grown := make([]byte, need)
			copy(grown, buf.bytes)
			buf.bytes = grown
		}
		for _, pv := range ts.Parameters {
			pm, ok := findTailItemParameterMeta(buf.tail, pv.Name)
			if !ok {
				continue
			}
			buf.bytes = writeParameterBytes(buf.bytes, elementOffset+pm.Offset, pv)
		}
	}

	for _, ta := range data.TailAppend {
		buf, ok := buffers[ta.BufferName]
		if !ok {
			continue
		}
		appendOffset := uint32(len(buf.bytes))
		grown := make([]byte, appendOffset+buf.tail.TailItemSize)
		copy(grown, buf.bytes)
		buf.bytes = grown
		for _, pv := range ta.Parameters {
			pm, ok := findTailItemParameterMeta(buf.tail, pv.Name)
			if !ok {
				continue
			}
			buf.bytes = writeParameterBytes(buf.bytes, appendOffset+pm.Offset, pv)
		}
	}

	return buffers
}

// createGPUBuffers creates and seeds a wgpu.Buffer for every staging
// buffer: CreateBuffer with MappedAtCreation false, followed by a single
// WriteBuffer of the whole staged payload.
func createGPUBuffers(device Device, queue Queue, trackingName string, buffers map[string]*gpuStagingBuffer) error {
	for name, buf := range buffers {
		usage := wgpu.BufferUsageCopyDst
		switch buf.kind {
		case resource.BufferKindUniform:
			usage |= wgpu.BufferUsageUniform
		case resource.BufferKindStorage:
			usage |= wgpu.BufferUsageStorage
		}
		gpuBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
			Label:            fmt.Sprintf("%s/%s", trackingName, name),
			Size:             uint64(len(buf.bytes)),
			Usage:            usage,
			MappedAtCreation: false,
		})
		if err != nil {
			return fmt.Errorf("materialinstance: create buffer %q: %w", name, err)
		}
		queue.WriteBuffer(gpuBuf, 0, buf.bytes)
		buf.buffer = gpuBuf
	}
	return nil
}

// samplerAddressMode/samplerFilterMode treat resource.SamplerValue's raw
// ints as already-resolved wgpu enum ordinals (the resource provider
// compiles them from whatever format string the authoring tool uses), with
// zero meaning "not specified" and mapped to the wgpu default.
func samplerAddressMode(v int) wgpu.AddressMode {
	if v == 0 {
		return wgpu.AddressModeRepeat
	}
	return wgpu.AddressMode(v)
}

func samplerFilterMode(v int) wgpu.FilterMode {
	if v == 0 {
		return wgpu.FilterModeLinear
	}
	return wgpu.FilterMode(v)
}

// createSamplers creates one wgpu.Sampler per named sampler value, with
// unspecified address/filter modes coalesced to the wgpu defaults.
func createSamplers(device Device, values []resource.SamplerValue) (map[string]*wgpu.Sampler, error) {
	samplers := make(map[string]*wgpu.Sampler, len(values))
	for _, sv := range values {
		s, err := device.CreateSampler(&wgpu.SamplerDescriptor{
			AddressModeU: samplerAddressMode(sv.AddressModeU),
			AddressModeV: samplerAddressMode(sv.AddressModeV),
			AddressModeW: samplerAddressMode(sv.AddressModeW),
			MagFilter:    samplerFilterMode(sv.MagFilter),
			MinFilter:    samplerFilterMode(sv.MinFilter),
			MipmapFilter: wgpu.MipmapFilterModeLinear,
		})
		if err != nil {
			return nil, fmt.Errorf("materialinstance: create sampler %q: %w", sv.Name, err)
		}
		samplers[sv.Name] = s
	}
	return samplers, nil
}

// bindingUpdatesFor assembles the parameter-set BindingUpdate slice for one
// descriptor set from its staged buffers, samplers, and resolved images,
// matching named values against meta's binding indices.
func bindingUpdatesFor(meta resource.SetBindingsMeta, buffers map[string]*gpuStagingBuffer, samplers map[string]*wgpu.Sampler, images map[string]staticImage, textures TextureProvider) []paramset.BindingUpdate {
	var updates []paramset.BindingUpdate
	for _, b := range meta.Buffers {
		buf, ok := buffers[b.Name]
		if !ok || buf.buffer == nil {
			continue
		}
		updates = append(updates, paramset.BindingUpdate{
			Binding:      b.Binding,
			Kind:         paramset.VariantBuffer,
			Buffer:       buf.buffer,
			BufferOffset: 0,
			BufferSize:   uint64(len(buf.bytes)),
		})
	}
	for _, s := range meta.Samplers {
		samp, ok := samplers[s.Name]
		if !ok {
			continue
		}
		updates = append(updates, paramset.BindingUpdate{Binding: s.Binding, Kind: paramset.VariantSampler, Sampler: samp})
	}
	for _, img := range meta.Images {
		si, ok := images[img.Name]
		if !ok || textures == nil {
			continue
		}
		binding, loaded := textures.Loaded(si.textureName)
		if !loaded || binding.Image == nil {
			continue
		}
		updates = append(updates, paramset.BindingUpdate{Binding: img.Binding, Kind: paramset.VariantImage, Image: binding.Image})
	}
	return updates
}

// InspectStatic drives one static-inspection pass for staticName: resolving
// its compiled-material-instance-static resource once
// available, staging its buffers, resolving its samplers and image texture
// usages, and creating its stable parameter set. Once the static has a
// parameter set, calling it again with the same data.Material is a no-op,
// whatever else in data differs.
func (e *Engine) InspectStatic(staticName string, data resource.CompiledMaterialInstanceStatic, setMeta resource.SetBindingsMeta, layout *descarena.Layout) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.findOrCreateStatic(staticName)
	if st.parameterSet != nil && st.loadedMaterialName == data.Material {
		return nil
	}

	buffers := buildStagingBuffers(setMeta, data)
	if e.device != nil && e.queue != nil {
		if err := createGPUBuffers(e.device, e.queue, staticName, buffers); err != nil {
			return err
		}
	}
	var samplers map[string]*wgpu.Sampler
	if e.device != nil {
		var err error
		samplers, err = createSamplers(e.device, data.Samplers)
		if err != nil {
			return err
		}
	}

	images := make(map[string]staticImage, len(data.Images))
	for _, iv := range data.Images {
		usageID := e.textureUsages.Next()
		si := staticImage{textureName: iv.TextureName, textureUsage: usageID}
		images[iv.Name] = si
		if e.textures != nil {
			e.textures.CreateUsage(iv.TextureName, usageID, st.bestMip, st.worstMip)
		}
	}

	updates := bindingUpdatesFor(setMeta, buffers, samplers, images, e.textures)
	if e.paramsEngine != nil && layout != nil {
		st.parameterSet = e.paramsEngine.Create(layout, true, updates, staticName)
	}
	st.parameterBuffers = buffers
	st.images = images
	st.setMeta = setMeta
	st.layout = layout
	st.loadedMaterialName = data.Material
	return nil
}

// refreshStaticImages rebuilds only the image bindings of st's parameter
// set against its current texture resolutions; buffers and samplers are left untouched.
func (e *Engine) refreshStaticImages(st *staticState) {
	if st.parameterSet == nil || e.paramsEngine == nil || e.textures == nil {
		return
	}
	var updates []paramset.BindingUpdate
	for _, imgMeta := range st.setMeta.Images {
		si, ok := st.images[imgMeta.Name]
		if !ok {
			continue
		}
		binding, loaded := e.textures.Loaded(si.textureName)
		if !loaded || binding.Image == nil {
			continue
		}
		updates = append(updates, paramset.BindingUpdate{Binding: imgMeta.Binding, Kind: paramset.VariantImage, Image: binding.Image})
	}
	if len(updates) > 0 {
		e.paramsEngine.Update(st.parameterSet, updates, 0)
	}
}
