package text

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/KonstantinTomashevich/Kan-sub006/kanlog"
)

// AtlasConfig configures a SDF atlas.
type AtlasConfig struct {
	Width, Height int
	// InitialLayers is the layer count the atlas starts with.
	InitialLayers int
	// LayerGrowthStep is the fixed number of layers added each time the
	// atlas overflows.
	LayerGrowthStep int
	// Border is the padding kept between packed glyphs within a row and
	// between rows.
	Border int
}

func (c AtlasConfig) withDefaults() AtlasConfig {
	if c.Width == 0 {
		c.Width = 1024
	}
	if c.Height == 0 {
		c.Height = 1024
	}
	if c.InitialLayers == 0 {
		c.InitialLayers = 1
	}
	if c.LayerGrowthStep == 0 {
		c.LayerGrowthStep = 4
	}
	return c
}

// AtlasDevice is the subset of *wgpu.Device needed to (re)allocate the
// atlas's backing texture.
type AtlasDevice interface {
	CreateTexture(*wgpu.TextureDescriptor) (*wgpu.Texture, error)
}

// AtlasQueue is the subset of *wgpu.Queue needed to upload glyph bitmaps.
type AtlasQueue interface {
	WriteTexture(*wgpu.ImageCopyTexture, []byte, *wgpu.TextureDataLayout, *wgpu.Extent3D)
}

// Atlas packs rasterized glyph bitmaps into a 2D-array R8_UNORM image,
// row-by-row, advancing layers on row overflow and growing the layer
// count on atlas overflow. Packing keeps only the current row's x/y/height
// bookkeeping; closed rows are never revisited, so no shelf list is
// retained.
type Atlas struct {
	mu sync.Mutex

	device AtlasDevice
	queue  AtlasQueue
	cfg    AtlasConfig

	layerCount   int
	currentLayer int
	rowX         int
	rowY         int
	rowMaxHeight int

	texture *wgpu.Texture
	// pixels mirrors the full GPU texture contents on the CPU so that
	// layer growth can copy existing layers into the replacement
	// image without a GPU-side readback.
	pixels []byte
}

// NewAtlas creates and GPU-allocates a W×H×InitialLayers atlas image,
// cleared per layer.
func NewAtlas(device AtlasDevice, queue AtlasQueue, cfg AtlasConfig) (*Atlas, error) {
	cfg = cfg.withDefaults()
	a := &Atlas{device: device, queue: queue, cfg: cfg}
	if err := a.allocate(cfg.InitialLayers); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Atlas) allocate(layers int) error {
	tex, err := a.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "text-sdf-atlas",
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatR8Unorm,
		MipLevelCount: 1,
		SampleCount:   1,
		Size: wgpu.Extent3D{
			Width:              uint32(a.cfg.Width),
			Height:             uint32(a.cfg.Height),
			DepthOrArrayLayers: uint32(layers),
		},
	})
	if err != nil {
		return fmt.Errorf("text: atlas texture creation failed: %w", err)
	}

	prev := a.pixels
	a.pixels = make([]byte, a.cfg.Width*a.cfg.Height*layers)
	copy(a.pixels, prev) // existing layers carried forward byte-for-byte; new layers stay zero

	if a.texture != nil {
		a.texture.Release()
	}
	a.texture = tex
	a.layerCount = layers

	a.queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: tex, MipLevel: 0, Aspect: wgpu.TextureAspectAll},
		a.pixels,
		&wgpu.TextureDataLayout{BytesPerRow: uint32(a.cfg.Width), RowsPerImage: uint32(a.cfg.Height)},
		&wgpu.Extent3D{Width: uint32(a.cfg.Width), Height: uint32(a.cfg.Height), DepthOrArrayLayers: uint32(layers)},
	)
	return nil
}

// Texture returns the atlas's current backing GPU texture. It changes
// identity across layer growth, so callers must re-fetch it rather than
// caching the pointer across a Reserve call that may have grown the atlas.
func (a *Atlas) Texture() *wgpu.Texture {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.texture
}

// Width, Height, and LayerCount report the atlas's current dimensions,
// used to normalize UV coordinates.
func (a *Atlas) Width() int  { return a.cfg.Width }
func (a *Atlas) Height() int { return a.cfg.Height }
func (a *Atlas) LayerCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.layerCount
}

// Reserve finds row-packed space for a w×h glyph bitmap, advancing rows,
// layers, and (if needed) growing the atlas image, in that order. It
// returns false only when growth itself fails.
func (a *Atlas) Reserve(w, h int) (x, y, layer int, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for {
		if a.rowX+w >= a.cfg.Width {
			a.rowX = 0
			a.rowY += a.rowMaxHeight + a.cfg.Border
			a.rowMaxHeight = 0
		}
		if a.rowY+h >= a.cfg.Height {
			a.rowX, a.rowY, a.rowMaxHeight = 0, 0, 0
			a.currentLayer++
		}
		if a.currentLayer < a.layerCount {
			break
		}
		if err := a.allocate(a.layerCount + a.cfg.LayerGrowthStep); err != nil {
			kanlog.Logger().Error("text: atlas growth failed", "err", err)
			return 0, 0, 0, false
		}
		kanlog.Logger().Debug("text: atlas grew", "layers", a.layerCount)
	}

	x, y, layer = a.rowX, a.rowY, a.currentLayer
	a.rowX += w + a.cfg.Border
	if h > a.rowMaxHeight {
		a.rowMaxHeight = h
	}
	return x, y, layer, true
}

// Upload writes a rasterized glyph's bitmap into the atlas at (x, y,
// layer), mirroring it into the CPU-side copy so later growth can carry
// it forward.
func (a *Atlas) Upload(x, y, layer, w, h int, pixels []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	base := layer * a.cfg.Width * a.cfg.Height
	for row := 0; row < h; row++ {
		dstOff := base + (y+row)*a.cfg.Width + x
		srcOff := row * w
		copy(a.pixels[dstOff:dstOff+w], pixels[srcOff:srcOff+w])
	}

	a.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  a.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: uint32(x), Y: uint32(y), Z: uint32(layer)},
			Aspect:   wgpu.TextureAspectAll,
		},
		pixels,
		&wgpu.TextureDataLayout{BytesPerRow: uint32(w), RowsPerImage: uint32(h)},
		&wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
}

// Destroy releases the atlas's GPU texture.
func (a *Atlas) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.texture != nil {
		a.texture.Release()
		a.texture = nil
	}
}
