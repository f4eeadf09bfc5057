package text

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

type fakeAtlasDevice struct{ created int }

func (f *fakeAtlasDevice) CreateTexture(*wgpu.TextureDescriptor) (*wgpu.Texture, error) {
	f.created++
	return &wgpu.Texture{}, nil
}

type fakeAtlasQueue struct{ writes int }

func (f *fakeAtlasQueue) WriteTexture(*wgpu.ImageCopyTexture, []byte, *wgpu.TextureDataLayout, *wgpu.Extent3D) {
	f.writes++
}

func newTestAtlas(t *testing.T, cfg AtlasConfig) (*Atlas, *fakeAtlasDevice, *fakeAtlasQueue) {
	t.Helper()
	dev := &fakeAtlasDevice{}
	queue := &fakeAtlasQueue{}
	a, err := NewAtlas(dev, queue, cfg)
	if err != nil {
		t.Fatalf("NewAtlas: %v", err)
	}
	return a, dev, queue
}

func TestAtlas_RowPackingNoOverlap(t *testing.T) {
	a, _, _ := newTestAtlas(t, AtlasConfig{Width: 64, Height: 64, InitialLayers: 1, Border: 1})

	type rect struct{ x, y, layer, w, h int }
	var rects []rect
	for i := 0; i < 10; i++ {
		x, y, layer, ok := a.Reserve(8, 8)
		if !ok {
			t.Fatalf("reservation %d failed unexpectedly", i)
		}
		rects = append(rects, rect{x, y, layer, 8, 8})
	}

	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			ri, rj := rects[i], rects[j]
			if ri.layer != rj.layer {
				continue
			}
			overlapX := ri.x < rj.x+rj.w+a.cfg.Border && rj.x < ri.x+ri.w+a.cfg.Border
			overlapY := ri.y < rj.y+rj.h+a.cfg.Border && rj.y < ri.y+ri.h+a.cfg.Border
			if overlapX && overlapY {
				t.Fatalf("glyph %d and %d overlap: %+v vs %+v", i, j, ri, rj)
			}
		}
	}
}

func TestAtlas_GrowsOnLayerOverflow(t *testing.T) {
	a, dev, _ := newTestAtlas(t, AtlasConfig{Width: 16, Height: 16, InitialLayers: 1, LayerGrowthStep: 2, Border: 0})

	// Fill the single initial layer until it overflows into growth.
	var lastLayer int
	for i := 0; i < 6; i++ {
		_, _, layer, ok := a.Reserve(10, 10)
		if !ok {
			t.Fatalf("reservation %d failed", i)
		}
		lastLayer = layer
	}

	if a.LayerCount() <= 1 {
		t.Fatalf("expected atlas to have grown past 1 layer, got %d", a.LayerCount())
	}
	if dev.created <= 1 {
		t.Fatalf("expected texture to be recreated on growth, created=%d", dev.created)
	}
	if lastLayer >= a.LayerCount() {
		t.Fatalf("last assigned layer %d out of bounds for layer count %d", lastLayer, a.LayerCount())
	}
}

func TestAtlas_UploadMirrorsIntoCPUBuffer(t *testing.T) {
	a, _, queue := newTestAtlas(t, AtlasConfig{Width: 8, Height: 8, InitialLayers: 1})
	x, y, layer, ok := a.Reserve(2, 2)
	if !ok {
		t.Fatalf("reserve failed")
	}
	a.Upload(x, y, layer, 2, 2, []byte{1, 2, 3, 4})
	if queue.writes < 2 { // one for initial allocate, one for this upload
		t.Fatalf("expected at least 2 writes, got %d", queue.writes)
	}
	off := layer*a.cfg.Width*a.cfg.Height + y*a.cfg.Width + x
	if a.pixels[off] != 1 || a.pixels[off+1] != 2 {
		t.Fatalf("CPU mirror not updated at reserved rect")
	}
}
