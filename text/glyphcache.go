package text

import (
	"sync"

	"golang.org/x/image/font/sfnt"
)

// renderedGlyph is the atlas-placed rasterization result cached per glyph
// index.
type renderedGlyph struct {
	empty                      bool
	atlasX, atlasY, atlasLayer int
	width, height              int
	bitmapLeft, bitmapTop      int
}

// glyphCache is one font category's glyph-index -> rendered-glyph-info
// cache. Lookups take the read lock and put takes the write lock only to
// insert; a miss is rasterized and uploaded outside the cache lock, so two
// callers missing the same glyph may both rasterize and upload it. Each
// category has its own cache, so shaping against other categories
// proceeds concurrently.
type glyphCache struct {
	mu      sync.RWMutex
	byGlyph map[sfnt.GlyphIndex]renderedGlyph
}

func newGlyphCache() *glyphCache {
	return &glyphCache{byGlyph: make(map[sfnt.GlyphIndex]renderedGlyph)}
}

func (c *glyphCache) get(gi sfnt.GlyphIndex) (renderedGlyph, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.byGlyph[gi]
	return g, ok
}

func (c *glyphCache) put(gi sfnt.GlyphIndex, g renderedGlyph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.byGlyph[gi]; ok {
		// Another caller inserted this glyph after our miss; keep the entry
		// that landed first so later lookups observe one atlas placement.
		// The losing caller still uses its own upload for its current call.
		_ = existing
		return
	}
	c.byGlyph[gi] = g
}
