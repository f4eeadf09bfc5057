package text

import (
	"bytes"
	"fmt"
	"sync"

	gotext "github.com/go-text/typesetting/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// VariableAxis is one design-space coordinate applied to a variable font.
// Application is recorded as metadata rather than instanced: see the
// newFontCategory doc comment.
type VariableAxis struct {
	Tag   string
	Value float64
}

// FontSource holds one parsed font file in both forms the engine needs: the
// go-text Font used for shaping (shape.go) and the sfnt.Font used for
// metrics and outline extraction (sdf.go).
type FontSource struct {
	data []byte

	// shapingFont is read-only and safe for concurrent use; font.Face is
	// not, so ShapingFace mints a fresh one per shaping call.
	shapingFont *gotext.Font
	metricsFont *sfnt.Font

	sfntBufMu sync.Mutex
	sfntBuf   sfnt.Buffer
}

// NewFontSource parses raw font bytes into both representations needed by
// the shaping and atlas paths.
func NewFontSource(data []byte) (*FontSource, error) {
	shapingFace, err := gotext.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: shaping parse: %v", ErrFaceParse, err)
	}

	metricsFont, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: metrics parse: %v", ErrFaceParse, err)
	}

	return &FontSource{
		data:        data,
		shapingFont: shapingFace.Font,
		metricsFont: metricsFont,
	}, nil
}

// ShapingFace returns a fresh go-text face over the cached font, used as
// shaping.Input.Face. Faces are cheap wrappers and not safe for concurrent
// use, so each shaping call gets its own.
func (f *FontSource) ShapingFace() *gotext.Face { return gotext.NewFace(f.shapingFont) }

// GlyphIndex maps a rune to the font's internal glyph index for outline
// extraction (sdf.go), mirroring sfnt.Font.GlyphIndex's direct cmap lookup.
func (f *FontSource) GlyphIndex(r rune) (sfnt.GlyphIndex, error) {
	f.sfntBufMu.Lock()
	defer f.sfntBufMu.Unlock()
	return f.metricsFont.GlyphIndex(&f.sfntBuf, r)
}

// Rasterize produces gi's SDF bitmap at the atlas-standard size.
func (f *FontSource) Rasterize(gi sfnt.GlyphIndex) (rasterResult, error) {
	f.sfntBufMu.Lock()
	defer f.sfntBufMu.Unlock()
	return rasterizeGlyphSDF(f.metricsFont, &f.sfntBuf, gi)
}

// FaceMetrics is the subset of sfnt.Metrics the line-layout pass needs,
// expressed in 26.6 fixed point at the atlas-standard size.
type FaceMetrics struct {
	Ascent  fixed.Int26_6
	Descent fixed.Int26_6
	// LineGap approximates the gap between successive baselines beyond
	// ascent+descent. sfnt.Metrics has no explicit line-gap field, so it
	// is derived as Height - (Ascent+Descent).
	LineGap fixed.Int26_6
}

// Metrics loads f's font metrics at the atlas-standard size.
func (f *FontSource) Metrics() (FaceMetrics, error) {
	f.sfntBufMu.Lock()
	defer f.sfntBufMu.Unlock()
	m, err := f.metricsFont.Metrics(&f.sfntBuf, fixed.I(sdfStandardSize), 0)
	if err != nil {
		return FaceMetrics{}, fmt.Errorf("text: loading font metrics: %w", err)
	}
	lineGap := m.Height - m.Ascent - m.Descent
	if lineGap < 0 {
		lineGap = 0
	}
	return FaceMetrics{Ascent: m.Ascent, Descent: m.Descent, LineGap: lineGap}, nil
}

// FontCategory is one entry of the font library's (script, style, face)
// index with its own glyph cache.
type FontCategory struct {
	Script Script
	Style  int

	Source *FontSource
	Axes   []VariableAxis

	cache *glyphCache
}

// newFontCategory builds a category over an already-parsed source. Variable
// axis values are recorded on the category for callers that need to report
// them (e.g. diagnostics); derived variation instancing is not applied.
func newFontCategory(script Script, style int, source *FontSource, axes []VariableAxis) *FontCategory {
	return &FontCategory{
		Script: script,
		Style:  style,
		Source: source,
		Axes:   axes,
		cache:  newGlyphCache(),
	}
}
