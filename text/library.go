package text

import (
	"sync"

	"golang.org/x/image/font/sfnt"

	"github.com/KonstantinTomashevich/Kan-sub006/kanlog"
)

// categoryKey indexes FontLibrary's categories by (script, style).
type categoryKey struct {
	Script Script
	Style  int
}

// FontLibrary owns the SDF atlas and the set of registered font categories,
// resolving glyphs into atlas placements on demand during shaping.
type FontLibrary struct {
	mu sync.RWMutex

	atlas      *Atlas
	categories map[categoryKey]*FontCategory
}

// NewFontLibrary creates an empty library backed by atlas.
func NewFontLibrary(atlas *Atlas) *FontLibrary {
	return &FontLibrary{atlas: atlas, categories: make(map[categoryKey]*FontCategory)}
}

// Atlas returns the library's backing SDF atlas.
func (l *FontLibrary) Atlas() *Atlas { return l.atlas }

// AddCategory registers source as the face used to shape and render
// (script, style) text, replacing any prior registration for that key.
func (l *FontLibrary) AddCategory(script Script, style int, source *FontSource, axes []VariableAxis) *FontCategory {
	l.mu.Lock()
	defer l.mu.Unlock()
	cat := newFontCategory(script, style, source, axes)
	l.categories[categoryKey{Script: script, Style: style}] = cat
	kanlog.Logger().Debug("text: font category registered", "script", script, "style", style)
	return cat
}

// lookupCategory resolves (script, style) to a registered category, falling
// back to style 0 for the same script before giving up.
func (l *FontLibrary) lookupCategory(script Script, style int) (*FontCategory, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if cat, ok := l.categories[categoryKey{Script: script, Style: style}]; ok {
		return cat, nil
	}
	if cat, ok := l.categories[categoryKey{Script: script, Style: 0}]; ok {
		return cat, nil
	}
	return nil, ErrNoCategory
}

// resolveGlyph maps a glyph index to its rasterized, atlas-placed render
// data for cat, consulting cat's glyph cache first and rasterizing and
// uploading only on miss.
func (l *FontLibrary) resolveGlyph(cat *FontCategory, gi sfnt.GlyphIndex) (renderedGlyph, error) {
	if g, ok := cat.cache.get(gi); ok {
		return g, nil
	}

	raster, err := cat.Source.Rasterize(gi)
	if err != nil {
		kanlog.Logger().Warn("text: glyph rasterization failed", "glyph", gi, "err", err)
		return renderedGlyph{}, err
	}
	if raster.empty {
		g := renderedGlyph{empty: true}
		cat.cache.put(gi, g)
		return g, nil
	}

	x, y, layer, ok := l.atlas.Reserve(raster.width, raster.height)
	if !ok {
		return renderedGlyph{}, ErrAtlasFull
	}
	l.atlas.Upload(x, y, layer, raster.width, raster.height, raster.pixels)

	g := renderedGlyph{
		atlasX:     x,
		atlasY:     y,
		atlasLayer: layer,
		width:      raster.width,
		height:     raster.height,
		bitmapLeft: raster.bitmapLeft,
		bitmapTop:  raster.bitmapTop,
	}
	cat.cache.put(gi, g)
	return g, nil
}

// Destroy releases the library's atlas.
func (l *FontLibrary) Destroy() {
	l.atlas.Destroy()
}
