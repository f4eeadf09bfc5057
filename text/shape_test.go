package text

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KonstantinTomashevich/Kan-sub006/internal/fixedpt"
)

// fixedI converts whole pixels to 26.6 for test readability.
func fixedI(v int) fixedpt.T { return fixedpt.T(v << 6) }

// solidResolver returns a 10x12 glyph placed at a fixed atlas spot for
// every glyph ID.
func solidResolver(g renderedGlyph) glyphResolver {
	return func(uint32) (renderedGlyph, error) { return g, nil }
}

var testRender = renderedGlyph{
	atlasX: 4, atlasY: 8, atlasLayer: 0,
	width: 10, height: 12,
	bitmapLeft: 1, bitmapTop: 10,
}

// runOf builds N glyphs with the given advance and sequential clusters.
func runOf(n int, advance fixedpt.T) []shapedGlyphInfo {
	glyphs := make([]shapedGlyphInfo, n)
	for i := range glyphs {
		glyphs[i] = shapedGlyphInfo{glyphID: uint32(i + 1), cluster: i, xAdvance: advance}
	}
	return glyphs
}

func newTestLayout(limit float64, dir ReadingDirection, align Alignment) *layoutState {
	return newLayoutState(ShapeRequest{
		FontSize:         sdfStandardSize,
		Direction:        dir,
		Alignment:        align,
		PrimaryAxisLimit: limit,
	})
}

func TestLayout_SingleSequenceWithinLimit(t *testing.T) {
	st := newTestLayout(240, DirectionLTR, AlignLeft)
	glyphs := runOf(5, fixedI(10))
	breaks := []lineBreak{{end: 5}}

	require.NoError(t, st.grabGlyphs(glyphs, breaks, fixedI(16), solidResolver(testRender), 1))
	require.Len(t, st.sequences, 1)
	require.Equal(t, fixedI(50), st.sequences[0].length)

	out := st.finish(64, 64)
	require.Len(t, out.Glyphs, 5)
	require.LessOrEqual(t, out.MaxX-out.MinX, 240.0)
}

func TestLayout_SoftBreakWrapsOnOverflow(t *testing.T) {
	st := newTestLayout(35, DirectionLTR, AlignLeft)
	// Two 3-glyph words of 10px glyphs with a soft break between them:
	// the second word cannot fit within 35px and wraps.
	glyphs := runOf(6, fixedI(10))
	breaks := []lineBreak{{end: 3}, {end: 6}}

	require.NoError(t, st.grabGlyphs(glyphs, breaks, fixedI(16), solidResolver(testRender), 1))
	require.Len(t, st.sequences, 2)
	require.Equal(t, fixedI(30), st.sequences[0].length)
	require.Equal(t, fixedI(30), st.sequences[1].length)
	require.Equal(t, 3, st.sequences[1].firstGlyph)

	out := st.finish(64, 64)
	// Second line glyphs sit one line space below the first.
	require.Equal(t, out.Glyphs[0].MinY+16, out.Glyphs[3].MinY)
}

func TestLayout_HardBreakForcesNewSequence(t *testing.T) {
	st := newTestLayout(1000, DirectionLTR, AlignLeft)
	glyphs := runOf(4, fixedI(10))
	breaks := []lineBreak{{end: 2, hard: true}, {end: 4}}

	require.NoError(t, st.grabGlyphs(glyphs, breaks, fixedI(16), solidResolver(testRender), 1))
	require.Len(t, st.sequences, 2)
	require.Equal(t, 2, st.sequences[1].firstGlyph)
}

func TestLayout_TrailingBreakAddsNoEmptySequence(t *testing.T) {
	st := newTestLayout(1000, DirectionLTR, AlignLeft)
	glyphs := runOf(3, fixedI(10))
	// End-of-text is always a mandatory break position; it must not
	// produce a trailing empty sequence.
	breaks := []lineBreak{{end: 3, hard: true}}

	require.NoError(t, st.grabGlyphs(glyphs, breaks, fixedI(16), solidResolver(testRender), 1))
	require.Len(t, st.sequences, 1)
}

func TestLayout_ZeroAdvanceGlyphsAlwaysGrab(t *testing.T) {
	st := newTestLayout(20, DirectionLTR, AlignLeft)
	glyphs := []shapedGlyphInfo{
		{glyphID: 1, cluster: 0, xAdvance: fixedI(20)},
		{glyphID: 2, cluster: 1, xAdvance: 0}, // combining mark
		{glyphID: 3, cluster: 2, xAdvance: fixedI(20)},
	}
	breaks := []lineBreak{{end: 1}, {end: 2}, {end: 3}}

	require.NoError(t, st.grabGlyphs(glyphs, breaks, fixedI(16), solidResolver(testRender), 1))
	require.Len(t, st.sequences, 2)
	// The zero-advance glyph stayed with the first sequence.
	require.Equal(t, 2, st.sequences[1].firstGlyph)
}

func TestLayout_RTLAnchorsToLimit(t *testing.T) {
	st := newTestLayout(100, DirectionRTL, AlignRight)
	glyphs := runOf(3, fixedI(10))
	require.NoError(t, st.grabGlyphs(glyphs, nil, fixedI(16), solidResolver(testRender), 1))

	// First logical glyph occupies the rightmost cell: origin 100-10=90.
	require.Equal(t, fixedI(90), st.glyphs[0].originX)
	require.Equal(t, fixedI(80), st.glyphs[1].originX)
	require.Equal(t, fixedI(70), st.glyphs[2].originX)

	out := st.finish(64, 64)
	require.LessOrEqual(t, out.MaxX, 100.0+float64(testRender.bitmapLeft)+float64(testRender.width))
}

func TestLayout_CenterAlignment(t *testing.T) {
	st := newTestLayout(100, DirectionLTR, AlignCenter)
	glyphs := runOf(4, fixedI(10))
	require.NoError(t, st.grabGlyphs(glyphs, nil, fixedI(16), solidResolver(testRender), 1))

	out := st.finish(64, 64)
	// 60px free, so the first glyph's origin shifts by 30 plus its bearing.
	require.InDelta(t, 30+float64(testRender.bitmapLeft), out.Glyphs[0].MinX, 0.01)
}

func TestLayout_IconFlushesAndRounds(t *testing.T) {
	st := newTestLayout(25, DirectionLTR, AlignLeft)
	glyphs := runOf(2, fixedI(10))
	require.NoError(t, st.grabGlyphs(glyphs, nil, fixedI(16), solidResolver(testRender), 1))

	// A 10px icon would exceed the 25px limit at length 20: new sequence.
	st.grabIcon(7, testRender, 1, 1, fixedI(16))
	require.Len(t, st.sequences, 2)

	out := st.finish(64, 64)
	require.Len(t, out.Icons, 1)
	require.Equal(t, 7, out.Icons[0].IconIndex)
	require.Equal(t, out.Icons[0].MaxX-out.Icons[0].MinX, testRender.width)
}

func TestLayout_OutputInvariants(t *testing.T) {
	st := newTestLayout(64, DirectionLTR, AlignLeft)
	glyphs := runOf(9, fixedI(9))
	breaks := []lineBreak{{end: 3}, {end: 6}, {end: 9}}
	require.NoError(t, st.grabGlyphs(glyphs, breaks, fixedI(14), solidResolver(testRender), 1))

	out := st.finish(64, 64)
	require.Len(t, out.Glyphs, 9)
	for _, g := range out.Glyphs {
		require.LessOrEqual(t, g.UVMinX, g.UVMaxX)
		require.LessOrEqual(t, g.UVMinY, g.UVMaxY)
		require.LessOrEqual(t, g.MinX, g.MaxX)
		require.LessOrEqual(t, g.MinY, g.MaxY)
		require.GreaterOrEqual(t, g.UVMinX, 0.0)
		require.LessOrEqual(t, g.UVMaxX, 1.0)
	}
}

func TestLayout_EmptyGlyphsKeepDegenerateBounds(t *testing.T) {
	st := newTestLayout(100, DirectionLTR, AlignLeft)
	resolver := func(id uint32) (renderedGlyph, error) {
		if id == 2 {
			return renderedGlyph{empty: true}, nil
		}
		return testRender, nil
	}
	glyphs := runOf(3, fixedI(10))
	require.NoError(t, st.grabGlyphs(glyphs, nil, fixedI(16), resolver, 1))

	out := st.finish(64, 64)
	require.Len(t, out.Glyphs, 3)
	g := out.Glyphs[1]
	require.Equal(t, g.MinX, g.MaxX)
	require.Equal(t, g.MinY, g.MaxY)
	require.Zero(t, g.UVMaxX)
}

func TestLayout_UnlimitedPrimaryAxis(t *testing.T) {
	st := newTestLayout(0, DirectionLTR, AlignRight)
	glyphs := runOf(50, fixedI(10))
	breaks := []lineBreak{{end: 50}}
	require.NoError(t, st.grabGlyphs(glyphs, breaks, fixedI(16), solidResolver(testRender), 1))
	require.Len(t, st.sequences, 1)

	// Alignment is a no-op without a finite limit.
	require.Equal(t, fixedpt.T(0), st.alignmentOffset(&st.sequences[0]))
}

func TestLayout_VerticalUsesYAdvance(t *testing.T) {
	st := newLayoutState(ShapeRequest{
		FontSize:         sdfStandardSize,
		Orientation:      OrientationVertical,
		PrimaryAxisLimit: 100,
	})
	glyphs := []shapedGlyphInfo{
		{glyphID: 1, cluster: 0, yAdvance: -fixedI(20)},
		{glyphID: 2, cluster: 1, yAdvance: -fixedI(20)},
	}
	require.NoError(t, st.grabGlyphs(glyphs, nil, fixedI(24), solidResolver(testRender), 1))
	require.Equal(t, fixedI(40), st.sequences[0].length)
	require.Equal(t, fixedI(20), st.glyphs[1].originY)
}

func TestScale26_RoundsToNearest(t *testing.T) {
	require.Equal(t, fixedI(5), scale26(fixedI(10), 0.5))
	require.Equal(t, fixedI(10), scale26(fixedI(10), 1))
	if got := scale26(fixedI(3), 1.0/3.0); math.Abs(fixedpt.ToFloat(got)-1) > 0.02 {
		t.Fatalf("scale26(3, 1/3) = %v", fixedpt.ToFloat(got))
	}
}
