package paramset

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/KonstantinTomashevich/Kan-sub006/gpuhandle"
)

// ImageDescriptor describes a backend image. Invariant:
// LayerCount >= 1, MipCount >= 1.
type ImageDescriptor struct {
	Format           wgpu.TextureFormat
	Width, Height    uint32
	Depth            uint32
	LayerCount       uint32
	MipCount         uint32
	RenderTarget     bool
	SupportsSampling bool
	AlwaysLayered    bool
}

// attachmentRef names one {set, binding} edge of the cyclic image↔set
// back-reference graph needed so image destruction can reach the sets
// still holding it. The graph is stored as handle-indexed vectors rather
// than raw pointers: an Image's attachments list the sets bound to it, a
// ParamSet's renderTargetImages lists the images it is bound to, and the
// Engine — which owns both registries — is the only place that walks both
// directions during cleanup.
type attachmentRef struct {
	Set     gpuhandle.Handle
	Binding int
}

// Image is a backend-owned image that may additionally serve as a
// render-target attachment for one or more parameter sets.
type Image struct {
	Handle gpuhandle.Handle
	Desc   ImageDescriptor

	Texture *wgpu.Texture

	// attachments lists every {set, binding} pair currently bound to this
	// image as a combined-image-sampler render target.
	attachments []attachmentRef
}

// attach records that set/binding is now bound to img, unless already
// present.
func (img *Image) attach(set gpuhandle.Handle, binding int) {
	for _, a := range img.attachments {
		if a.Set == set && a.Binding == binding {
			return
		}
	}
	img.attachments = append(img.attachments, attachmentRef{Set: set, Binding: binding})
}

// detach removes the {set, binding} edge, if present.
func (img *Image) detach(set gpuhandle.Handle, binding int) {
	for i, a := range img.attachments {
		if a.Set == set && a.Binding == binding {
			img.attachments = append(img.attachments[:i], img.attachments[i+1:]...)
			return
		}
	}
}
