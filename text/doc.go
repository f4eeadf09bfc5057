// Package text implements Unicode script segmentation, line breaking,
// per-script font selection, glyph rasterization into a signed-distance-
// field atlas, and shaped geometry production.
//
// Shaping rides github.com/go-text/typesetting/shaping (HarfBuzz-level
// OpenType shaping), line breaking uses typesetting/segmenter's UAX#14
// iterator, and rasterization produces a single-channel signed distance
// field from glyph outlines via golang.org/x/image/font/sfnt and
// golang.org/x/image/vector. The atlas is an R8_UNORM 2D-array texture
// packed row by row.
package text
