package text

import (
	"image"
	"math"

	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// sdfStandardSize is the atlas-standard em-square size (pixels) glyphs are
// rasterized at before being scaled for a requested render size.
const sdfStandardSize = 48

// sdfSpread is the distance-field search radius, in pixels, padded around
// each glyph's rasterized outline.
const sdfSpread = 6

// rasterResult is one glyph's rasterized SDF bitmap plus the bearing and
// size metadata recorded alongside it for later quad construction.
type rasterResult struct {
	empty                 bool
	width, height         int
	pixels                []byte // single channel, row-major, width*height
	bitmapLeft, bitmapTop int    // pixels, freetype-slot-equivalent bearings
}

// rasterizeGlyphSDF loads gi's outline from f at the atlas-standard size
// and produces a signed distance field via a rasterized coverage mask plus
// an 8-points signed sequential Euclidean distance transform (8SSEDT).
// The atlas is single-channel R8_UNORM, so a plain scalar field is enough;
// multi-channel edge-colored fields would buy nothing here.
func rasterizeGlyphSDF(f *sfnt.Font, buf *sfnt.Buffer, gi sfnt.GlyphIndex) (rasterResult, error) {
	ppem := fixed.I(sdfStandardSize)
	segs, err := f.LoadGlyph(buf, gi, ppem, nil)
	if err != nil {
		return rasterResult{}, err
	}
	if len(segs) == 0 {
		return rasterResult{empty: true}, nil
	}

	minX, minY, maxX, maxY := segs[0].Args[0].X, segs[0].Args[0].Y, segs[0].Args[0].X, segs[0].Args[0].Y
	for _, seg := range segs {
		for _, p := range seg.Args {
			if p.X < minX {
				minX = p.X
			}
			if p.X > maxX {
				maxX = p.X
			}
			if p.Y < minY {
				minY = p.Y
			}
			if p.Y > maxY {
				maxY = p.Y
			}
		}
	}

	glyphW := int(math.Ceil(fixed26ToFloat(maxX-minX))) + 1
	glyphH := int(math.Ceil(fixed26ToFloat(maxY-minY))) + 1
	if glyphW <= 0 || glyphH <= 0 {
		return rasterResult{empty: true}, nil
	}

	w := glyphW + 2*sdfSpread
	h := glyphH + 2*sdfSpread

	toX := func(p fixed.Point26_6) float32 {
		return float32(fixed26ToFloat(p.X-minX) + sdfSpread)
	}
	toY := func(p fixed.Point26_6) float32 {
		return float32(fixed26ToFloat(maxY-p.Y) + sdfSpread) // flip: font Y-up to bitmap Y-down
	}

	rast := vector.NewRasterizer(w, h)
	for _, seg := range segs {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			rast.MoveTo(toX(seg.Args[0]), toY(seg.Args[0]))
		case sfnt.SegmentOpLineTo:
			rast.LineTo(toX(seg.Args[0]), toY(seg.Args[0]))
		case sfnt.SegmentOpQuadTo:
			rast.QuadTo(toX(seg.Args[0]), toY(seg.Args[0]), toX(seg.Args[1]), toY(seg.Args[1]))
		case sfnt.SegmentOpCubeTo:
			rast.CubeTo(toX(seg.Args[0]), toY(seg.Args[0]), toX(seg.Args[1]), toY(seg.Args[1]), toX(seg.Args[2]), toY(seg.Args[2]))
		}
	}

	dst := image.NewAlpha(image.Rect(0, 0, w, h))
	rast.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})

	mask := make([]bool, w*h)
	for i, v := range dst.Pix {
		mask[i] = v > 127
	}

	pixels := computeSDF(mask, w, h, sdfSpread)

	return rasterResult{
		width:      w,
		height:     h,
		pixels:     pixels,
		bitmapLeft: int(math.Floor(fixed26ToFloat(minX))) - sdfSpread,
		bitmapTop:  int(math.Ceil(fixed26ToFloat(maxY))) + sdfSpread,
	}, nil
}

func fixed26ToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// edtPoint tracks, per pixel, the offset to the nearest seed pixel found so
// far during the 8SSEDT sweep.
type edtPoint struct{ dx, dy int }

var edtInf = edtPoint{1 << 20, 1 << 20}

func (p edtPoint) distSq() int { return p.dx*p.dx + p.dy*p.dy }

// computeEDT runs the classic two-pass 8SSEDT, returning for every pixel
// the offset to the nearest pixel where seed is true.
func computeEDT(seed []bool, w, h int) []edtPoint {
	grid := make([]edtPoint, w*h)
	for i, s := range seed {
		if s {
			grid[i] = edtPoint{0, 0}
		} else {
			grid[i] = edtInf
		}
	}

	at := func(x, y int) edtPoint {
		if x < 0 || x >= w || y < 0 || y >= h {
			return edtInf
		}
		return grid[y*w+x]
	}
	compare := func(x, y, ox, oy int) {
		if x < 0 || x >= w || y < 0 || y >= h {
			return
		}
		cand := at(x+ox, y+oy)
		cand.dx += ox
		cand.dy += oy
		if cand.distSq() < grid[y*w+x].distSq() {
			grid[y*w+x] = cand
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			compare(x, y, -1, 0)
			compare(x, y, 0, -1)
			compare(x, y, -1, -1)
			compare(x, y, 1, -1)
		}
		for x := w - 1; x >= 0; x-- {
			compare(x, y, 1, 0)
		}
	}
	for y := h - 1; y >= 0; y-- {
		for x := w - 1; x >= 0; x-- {
			compare(x, y, 1, 0)
			compare(x, y, 0, 1)
			compare(x, y, 1, 1)
			compare(x, y, -1, 1)
		}
		for x := 0; x < w; x++ {
			compare(x, y, -1, 0)
		}
	}
	return grid
}

// computeSDF derives a single-channel signed distance field from a binary
// coverage mask: the field is 0.5 at the glyph edge, approaching 1 deep
// inside and 0 far outside, clamped to the given spread in pixels.
func computeSDF(mask []bool, w, h int, spread int) []byte {
	outside := computeEDT(mask, w, h)

	notMask := make([]bool, len(mask))
	for i, m := range mask {
		notMask[i] = !m
	}
	inside := computeEDT(notMask, w, h)

	out := make([]byte, len(mask))
	sp := float64(spread)
	for i := range out {
		d := math.Sqrt(float64(outside[i].distSq())) - math.Sqrt(float64(inside[i].distSq()))
		v := 0.5 - d/(2*sp)
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		out[i] = byte(v * 255)
	}
	return out
}
