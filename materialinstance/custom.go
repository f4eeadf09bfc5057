package materialinstance

import (
	"github.com/KonstantinTomashevich/Kan-sub006/idgen"
	"github.com/KonstantinTomashevich/Kan-sub006/kanlog"
	"github.com/KonstantinTomashevich/Kan-sub006/resource"
)

// BuildInstancedData writes a material instance's instanced-attribute
// parameters into a tightly packed byte buffer following source's
// per-element layout, logging and skipping (rather than failing) any
// parameter whose offset falls outside the declared source stride — the
// Open Question on instanced-attribute mismatch handling is resolved in
// favor of "log and skip" (see DESIGN.md).
func BuildInstancedData(source resource.VertexAttributeSource, values []resource.ParameterValue, byName map[string]resource.Attribute) []byte {
	data := make([]byte, source.Stride)
	for _, pv := range values {
		attr, ok := byName[pv.Name]
		if !ok {
			kanlog.Logger().Warn("materialinstance: instanced parameter not found in attribute source", "name", pv.Name)
			continue
		}
		size := attributeByteSize(attr)
		if attr.Offset+size > source.Stride {
			kanlog.Logger().Warn("materialinstance: instanced parameter exceeds source stride, skipping", "name", pv.Name, "offset", attr.Offset, "stride", source.Stride)
			continue
		}
		data = writeParameterBytes(data, attr.Offset, pv)
	}
	return data
}

func attributeByteSize(a resource.Attribute) uint32 {
	perElement := elementFormatSize(a.Format)
	switch a.Class {
	case resource.ClassVec1:
		return perElement
	case resource.ClassVec2:
		return perElement * 2
	case resource.ClassVec3:
		return perElement * 3
	case resource.ClassVec4:
		return perElement * 4
	case resource.ClassMat3x3:
		return perElement * 9
	case resource.ClassMat4x4:
		return perElement * 16
	default:
		return 0
	}
}

func elementFormatSize(f resource.ElementFormat) uint32 {
	switch f {
	case resource.FormatUnorm8, resource.FormatSnorm8, resource.FormatUint8, resource.FormatSint8:
		return 1
	case resource.FormatFloat16, resource.FormatUnorm16, resource.FormatSnorm16, resource.FormatUint16, resource.FormatSint16:
		return 2
	case resource.FormatFloat32, resource.FormatUint32, resource.FormatSint32:
		return 4
	default:
		return 4
	}
}

// OnUsageCustomData recomputes one usage's custom record from scratch: it
// inherits the shared loaded record's material name and parameter set,
// rebuilds the instanced bytes, and overlays each custom parameter. The
// overlay is kept separate from the shared instance loaded record so that
// usages without custom data keep sharing one record. Passing no
// parameters deletes the usage's custom record.
func (e *Engine) OnUsageCustomData(usageID idgen.ID, instanceName string, instancedParameters []resource.ParameterValue, source resource.VertexAttributeSource, attributesByName map[string]resource.Attribute) *CustomLoadedMaterialInstance {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(instancedParameters) == 0 {
		delete(e.customs, usageID)
		return nil
	}

	inst, ok := e.instances[instanceName]
	if !ok || inst.loaded == nil {
		return nil
	}

	data := append([]byte(nil), inst.loaded.InstancedData...)
	if len(data) == 0 {
		data = BuildInstancedData(source, nil, attributesByName)
	}
	for _, pv := range instancedParameters {
		attr, ok := attributesByName[pv.Name]
		if !ok {
			kanlog.Logger().Warn("materialinstance: custom parameter not found in attribute source", "name", pv.Name)
			continue
		}
		size := attributeByteSize(attr)
		if attr.Offset+size > uint32(len(data)) {
			kanlog.Logger().Warn("materialinstance: custom parameter exceeds instanced data, skipping", "name", pv.Name)
			continue
		}
		data = writeParameterBytes(data, attr.Offset, pv)
	}

	custom := &CustomLoadedMaterialInstance{
		UsageID:          usageID,
		LastInspectionNs: e.customSyncMarkerNs,
		MaterialName:     inst.loaded.MaterialName,
		ParameterSet:     inst.loaded.ParameterSet,
		InstancedData:    data,
	}
	e.customs[usageID] = custom
	return custom
}

// CustomLoaded returns the custom record for usageID, or nil when the
// usage carries no custom parameters.
func (e *Engine) CustomLoaded(usageID idgen.ID) *CustomLoadedMaterialInstance {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.customs[usageID]
	if !ok {
		return nil
	}
	cp := *c
	cp.InstancedData = append([]byte(nil), c.InstancedData...)
	return &cp
}

// MarkCustomSync stamps the custom-sync consistency marker. The custom-sync
// mutator runs in its own phase; the marker lets readers confirm custom
// records were produced against the same inspection pass as the shared
// loaded records.
func (e *Engine) MarkCustomSync(nowNs int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.customSyncMarkerNs = nowNs
}

// CustomSyncMarker returns the last recorded custom-sync timestamp.
func (e *Engine) CustomSyncMarker() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.customSyncMarkerNs
}
