package text

import "errors"

// Sentinel errors for conditions callers may want to test with errors.Is.
var (
	// ErrAtlasFull is returned when the atlas cannot grow any further and
	// a new glyph cannot be packed at all.
	ErrAtlasFull = errors.New("text: atlas cannot grow further")

	// ErrFaceParse is returned when a font source fails to parse as a
	// valid SFNT/OpenType face.
	ErrFaceParse = errors.New("text: failed to parse font face")

	// ErrNoCategory is returned when a (script, style) pair has no
	// registered font category and no fallback category exists either.
	ErrNoCategory = errors.New("text: no font category for script/style")
)
