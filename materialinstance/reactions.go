package materialinstance

import (
	"github.com/KonstantinTomashevich/Kan-sub006/idgen"
	"github.com/KonstantinTomashevich/Kan-sub006/kanlog"
)

// minMax folds a (best, worst) pair: best uses min (sharper detail wins),
// worst uses max.
func minMax(accBest, accWorst, candidateBest, candidateWorst int, first bool) (int, int) {
	if first {
		return candidateBest, candidateWorst
	}
	best := accBest
	if candidateBest < best {
		best = candidateBest
	}
	worst := accWorst
	if candidateWorst > worst {
		worst = candidateWorst
	}
	return best, worst
}

// RecomputeInstanceMips aggregates the best/worst advised mip across every
// usage currently bound to a material instance. Returns whether the aggregate changed.
func (e *Engine) RecomputeInstanceMips(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.instances[name]
	if !ok {
		return false
	}
	return e.recomputeInstanceMipsLocked(s)
}

func (e *Engine) recomputeInstanceMipsLocked(s *instanceState) bool {
	best, worst := 0, 0
	first := true
	for _, adv := range s.usages {
		best, worst = minMax(best, worst, adv.bestAdvisedMip, adv.worstAdvisedMip, first)
		first = false
	}
	changed := best != s.imageBestMip || worst != s.imageWorstMip
	s.imageBestMip = best
	s.imageWorstMip = worst
	return changed
}

// RecomputeStaticMips aggregates the best/worst advised mip across every
// material instance currently bound to a static, and, if the aggregate moved,
// pushes the new advisory down to every texture usage the static owns.
func (e *Engine) RecomputeStaticMips(staticName string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.statics[staticName]
	if !ok {
		return
	}
	best, worst := 0, 0
	first := true
	for instName := range st.instances {
		inst, ok := e.instances[instName]
		if !ok {
			continue
		}
		e.recomputeInstanceMipsLocked(inst)
		best, worst = minMax(best, worst, inst.imageBestMip, inst.imageWorstMip, first)
		first = false
	}
	if best == st.bestMip && worst == st.worstMip && !st.mipUpdateNeeded {
		return
	}
	st.bestMip, st.worstMip = best, worst
	st.mipUpdateNeeded = false

	if e.textures == nil {
		return
	}
	for _, img := range st.images {
		e.textures.UpdateUsageMips(img.textureUsage, best, worst)
	}
}

// OnMaterialUpdated reacts to the material engine's material-updated event
// for materialName: every static currently loading or loaded
// against that material is marked for re-inspection so its parameter set
// is rebuilt against the new pipeline-family layout.
func (e *Engine) OnMaterialUpdated(materialName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name, st := range e.statics {
		if st.loadedMaterialName != materialName && st.loadingMaterialName != materialName {
			continue
		}
		st.loadedMaterialName = ""
		kanlog.Logger().Debug("materialinstance: static marked for re-inspection after material update", "static", name, "material", materialName)
	}
}

// OnTextureUpdated reacts to a texture finishing (re)load:
// every static referencing textureName gets its image-only bindings
// rewritten, in groups of at most batchSize statics with the engine lock
// released between groups. Every group is processed before
// OnTextureUpdated returns.
func (e *Engine) OnTextureUpdated(textureName string, batchSize int) {
	e.mu.Lock()
	var affected []*staticState
	for _, st := range e.statics {
		for _, img := range st.images {
			if img.textureName == textureName {
				affected = append(affected, st)
				break
			}
		}
	}
	e.mu.Unlock()

	if batchSize <= 0 {
		batchSize = len(affected)
	}
	for i := 0; i < len(affected) && batchSize > 0; i += batchSize {
		end := i + batchSize
		if end > len(affected) {
			end = len(affected)
		}
		e.mu.Lock()
		for _, st := range affected[i:end] {
			e.refreshStaticImages(st)
		}
		e.mu.Unlock()
	}
}

// InspectInstance drives one material-instance inspection pass: once the
// owning static has a loaded parameter set, the instance's loaded record
// is set to materialName, the static's shared parameter set and
// instancedData, so Loaded() can serve it. Per-usage custom records are
// not touched here; they are built only by OnUsageCustomData.
func (e *Engine) InspectInstance(name, staticName, materialName string, instancedData []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst := e.findOrCreateInstance(name)
	if inst.currentStaticName != staticName {
		if inst.currentStaticName != "" {
			e.unlinkStaticLocked(inst.currentStaticName, name)
		}
		st := e.findOrCreateStatic(staticName)
		st.instances[name] = struct{}{}
		st.referenceCount++
		if st.requestID == idgen.Invalid {
			st.requestID = e.requests.Next()
			if e.OnRequestMaterialInstanceStaticData != nil {
				e.OnRequestMaterialInstanceStaticData(staticName, st.requestID)
			}
		}
		inst.currentStaticName = staticName
	}

	st, ok := e.statics[staticName]
	if !ok || st.parameterSet == nil {
		logUnreadySkip("static", staticName)
		return
	}

	inst.loadedStaticName = staticName
	inst.loaded = &LoadedMaterialInstance{
		Name:          name,
		MaterialName:  materialName,
		ParameterSet:  st.parameterSet,
		InstancedData: instancedData,
	}
}
