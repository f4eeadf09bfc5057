package text

import (
	"math"
	"sync"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/segmenter"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/text/unicode/bidi"

	"github.com/KonstantinTomashevich/Kan-sub006/internal/fixedpt"
	"github.com/KonstantinTomashevich/Kan-sub006/kanlog"
)

// Orientation selects the primary layout axis.
type Orientation int

const (
	OrientationHorizontal Orientation = iota
	OrientationVertical
)

// ReadingDirection selects the order glyphs advance along the primary axis.
type ReadingDirection int

const (
	DirectionLTR ReadingDirection = iota
	DirectionRTL
)

// Alignment positions each finished sequence within the primary-axis limit.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// RenderFormat selects the glyph render data a shaping request resolves
// against. Only the single-channel signed-distance-field atlas format is
// produced by this library.
type RenderFormat int

const (
	RenderSDF RenderFormat = iota
)

// ShapeRequest carries one shaping invocation's inputs.
type ShapeRequest struct {
	Text        *Text
	FontSize    float64
	Orientation Orientation
	Direction   ReadingDirection
	Alignment   Alignment
	// PrimaryAxisLimit bounds sequence length in pixels. Zero or negative
	// means unlimited.
	PrimaryAxisLimit float64
	Format           RenderFormat
}

// ShapedGlyph is one output glyph quad. Coordinates are pixels, UVs are
// normalized to [0, 1] against the atlas dimensions.
type ShapedGlyph struct {
	MinX, MinY float64
	MaxX, MaxY float64

	UVMinX, UVMinY float64
	UVMaxX, UVMaxY float64
	Layer          int
}

// ShapedIcon is one output icon quad. Icon coordinates round to whole
// pixels.
type ShapedIcon struct {
	IconIndex  int
	MinX, MinY int
	MaxX, MaxY int
}

// ShapedData is the finished shaping output: the glyph and icon quads plus
// their bounding envelope.
type ShapedData struct {
	MinX, MinY float64
	MaxX, MaxY float64

	Glyphs []ShapedGlyph
	Icons  []ShapedIcon
}

// shapedGlyphInfo is the subset of a harfbuzz output glyph the layout pass
// consumes, kept separate from shaping.Glyph so the grab/alignment logic
// can be exercised with synthetic data.
type shapedGlyphInfo struct {
	glyphID  uint32
	cluster  int
	xAdvance fixedpt.T
	yAdvance fixedpt.T
	xOffset  fixedpt.T
	yOffset  fixedpt.T
}

// lineBreak is one permissible break position produced by the line-break
// segmenter: the rune offset just past the breakable chunk and whether the
// break is mandatory.
type lineBreak struct {
	end  int
	hard bool
}

// glyphResolver maps a glyph ID to its atlas render data. The font library
// supplies a category-bound closure; tests supply synthetic data.
type glyphResolver func(glyphID uint32) (renderedGlyph, error)

// pendingGlyph is a grabbed glyph waiting for the post-processing pass:
// its origin within the sequence in 26.6 units plus resolved render data.
type pendingGlyph struct {
	originX, originY fixedpt.T
	render           renderedGlyph
	renderScale      float64
}

// pendingIcon mirrors pendingGlyph for icon nodes. Extents are already
// scaled; only alignment, baseline, and pixel rounding remain.
type pendingIcon struct {
	iconIndex              int
	minX, minY, maxX, maxY fixedpt.T
}

// sequence is one maximal run of glyphs and icons laid out along the
// primary axis: a line for horizontal orientation, a column for vertical.
type sequence struct {
	firstGlyph       int
	firstIcon        int
	length           fixedpt.T
	biggestLineSpace fixedpt.T
}

// layoutState accumulates sequences, glyphs, and icons while nodes are
// walked, then resolves alignment and baselines in finish.
type layoutState struct {
	orientation Orientation
	direction   ReadingDirection
	alignment   Alignment
	limit       fixedpt.T

	sequences []sequence
	glyphs    []pendingGlyph
	icons     []pendingIcon
}

func newLayoutState(req ShapeRequest) *layoutState {
	limit := fixedpt.T(math.MaxInt32)
	if req.PrimaryAxisLimit > 0 {
		limit = fixedpt.FromFloat(req.PrimaryAxisLimit)
	}
	return &layoutState{
		orientation: req.Orientation,
		direction:   req.Direction,
		alignment:   req.Alignment,
		limit:       limit,
	}
}

// current returns the open sequence, creating the first one lazily so that
// texts never produce a leading empty sequence.
func (st *layoutState) current() *sequence {
	if len(st.sequences) == 0 {
		st.newSequence()
	}
	return &st.sequences[len(st.sequences)-1]
}

func (st *layoutState) newSequence() {
	st.sequences = append(st.sequences, sequence{
		firstGlyph: len(st.glyphs),
		firstIcon:  len(st.icons),
	})
}

// breakSequence closes the current sequence unless it is still empty, in
// which case breaking would only create a zero-length line.
func (st *layoutState) breakSequence() {
	if len(st.sequences) == 0 {
		return
	}
	cur := &st.sequences[len(st.sequences)-1]
	if len(st.glyphs) == cur.firstGlyph && len(st.icons) == cur.firstIcon {
		return
	}
	st.newSequence()
}

// grabGlyphs walks one shaped node's glyphs through the grab cursor:
// glyphs accumulate into the current sequence, starting a new one when a
// permissible break position is reached and the next advance would
// overflow the primary-axis limit, or unconditionally on a hard break.
// Zero-advance glyphs always grab.
func (st *layoutState) grabGlyphs(glyphs []shapedGlyphInfo, breaks []lineBreak, lineSpace fixedpt.T, resolve glyphResolver, renderScale float64) error {
	if len(breaks) == 0 {
		// Breaking is not permitted for this node: grab it whole,
		// moving to a fresh sequence first when it cannot fit.
		var total fixedpt.T
		for _, g := range glyphs {
			total += st.advanceOf(g)
		}
		cur := st.current()
		if cur.length > 0 && cur.length+total > st.limit {
			st.breakSequence()
		}
		for _, g := range glyphs {
			if err := st.grabOne(g, lineSpace, resolve, renderScale); err != nil {
				return err
			}
		}
		return nil
	}

	breakIdx := 0
	for _, g := range glyphs {
		for breakIdx < len(breaks) && g.cluster >= breaks[breakIdx].end {
			cur := st.current()
			adv := st.advanceOf(g)
			switch {
			case breaks[breakIdx].hard:
				st.breakSequence()
			case adv > 0 && cur.length+adv > st.limit:
				st.breakSequence()
			}
			breakIdx++
		}
		if err := st.grabOne(g, lineSpace, resolve, renderScale); err != nil {
			return err
		}
	}
	return nil
}

func (st *layoutState) advanceOf(g shapedGlyphInfo) fixedpt.T {
	if st.orientation == OrientationVertical {
		adv := g.yAdvance
		if adv < 0 {
			adv = -adv
		}
		return adv
	}
	return g.xAdvance
}

// grabOne appends one glyph at its sequence-local origin and advances the
// sequence length.
func (st *layoutState) grabOne(g shapedGlyphInfo, lineSpace fixedpt.T, resolve glyphResolver, renderScale float64) error {
	cur := st.current()
	adv := st.advanceOf(g)

	var originX, originY fixedpt.T
	switch {
	case st.orientation == OrientationVertical:
		originX = g.xOffset
		originY = cur.length + g.yOffset
	case st.direction == DirectionRTL:
		originX = st.limit - cur.length - g.xAdvance + g.xOffset
		originY = g.yOffset
	default:
		originX = cur.length + g.xOffset
		originY = g.yOffset
	}
	cur.length += adv
	if lineSpace > cur.biggestLineSpace {
		cur.biggestLineSpace = lineSpace
	}

	render, err := resolve(g.glyphID)
	if err != nil {
		return err
	}
	st.glyphs = append(st.glyphs, pendingGlyph{
		originX:     originX,
		originY:     originY,
		render:      render,
		renderScale: renderScale,
	})
	return nil
}

// grabIcon appends one icon quad, flushing the current sequence first when
// the icon's advance would overflow the primary-axis limit.
func (st *layoutState) grabIcon(iconIndex int, render renderedGlyph, scaleX, scaleY float64, lineSpace fixedpt.T) {
	w := fixedpt.FromFloat(float64(render.width) * scaleX)
	h := fixedpt.FromFloat(float64(render.height) * scaleY)
	bearingX := fixedpt.FromFloat(float64(render.bitmapLeft) * scaleX)
	bearingY := fixedpt.FromFloat(float64(render.bitmapTop) * scaleY)

	adv := w
	if st.orientation == OrientationVertical {
		adv = h
	}

	cur := st.current()
	if cur.length > 0 && cur.length+adv > st.limit {
		st.breakSequence()
		cur = st.current()
	}

	var originX, originY fixedpt.T
	switch {
	case st.orientation == OrientationVertical:
		originY = cur.length
	case st.direction == DirectionRTL:
		originX = st.limit - cur.length - adv
	default:
		originX = cur.length
	}
	cur.length += adv
	if lineSpace > cur.biggestLineSpace {
		cur.biggestLineSpace = lineSpace
	}

	minX := originX + bearingX
	minY := originY - bearingY
	st.icons = append(st.icons, pendingIcon{
		iconIndex: iconIndex,
		minX:      minX,
		minY:      minY,
		maxX:      minX + w,
		maxY:      minY + h,
	})
}

// alignmentOffset computes a sequence's primary-axis shift from the free
// space left within the limit. Right-to-left sequences are laid out
// anchored to the limit's far edge, so their shifts run the opposite way.
func (st *layoutState) alignmentOffset(seq *sequence) fixedpt.T {
	if st.limit == fixedpt.T(math.MaxInt32) {
		return 0
	}
	free := st.limit - seq.length
	if free < 0 {
		free = 0
	}
	rtl := st.orientation == OrientationHorizontal && st.direction == DirectionRTL
	switch st.alignment {
	case AlignCenter:
		if rtl {
			return -free / 2
		}
		return free / 2
	case AlignRight:
		if rtl {
			return 0
		}
		return free
	default:
		if rtl {
			return -free
		}
		return 0
	}
}

// finish runs the post-processing pass: per sequence, apply render data to
// each grabbed glyph, shift by the alignment offset on the primary axis
// and the running baseline on the secondary axis, convert 26.6 to pixels,
// and track the output bounds envelope.
func (st *layoutState) finish(atlasW, atlasH int) *ShapedData {
	out := &ShapedData{}
	var baseline fixedpt.T
	haveBounds := false

	extend := func(minX, minY, maxX, maxY float64) {
		if !haveBounds {
			out.MinX, out.MinY, out.MaxX, out.MaxY = minX, minY, maxX, maxY
			haveBounds = true
			return
		}
		out.MinX = math.Min(out.MinX, minX)
		out.MinY = math.Min(out.MinY, minY)
		out.MaxX = math.Max(out.MaxX, maxX)
		out.MaxY = math.Max(out.MaxY, maxY)
	}

	for si := range st.sequences {
		seq := &st.sequences[si]
		align := st.alignmentOffset(seq)

		glyphEnd := len(st.glyphs)
		iconEnd := len(st.icons)
		if si+1 < len(st.sequences) {
			glyphEnd = st.sequences[si+1].firstGlyph
			iconEnd = st.sequences[si+1].firstIcon
		}

		for gi := seq.firstGlyph; gi < glyphEnd; gi++ {
			pg := &st.glyphs[gi]

			bearingX := scale26(fixedpt.T(pg.render.bitmapLeft)<<6, pg.renderScale)
			bearingY := scale26(fixedpt.T(pg.render.bitmapTop)<<6, pg.renderScale)
			w := scale26(fixedpt.T(pg.render.width)<<6, pg.renderScale)
			h := scale26(fixedpt.T(pg.render.height)<<6, pg.renderScale)

			minX := pg.originX + bearingX
			minY := pg.originY - bearingY
			maxX := minX + w
			maxY := minY + h
			if pg.render.empty {
				minX, maxX = pg.originX, pg.originX
				minY, maxY = pg.originY, pg.originY
			}

			minX, minY = st.place(minX, minY, align, baseline)
			maxX, maxY = st.place(maxX, maxY, align, baseline)

			sg := ShapedGlyph{
				MinX:  fixedpt.ToFloat(minX),
				MinY:  fixedpt.ToFloat(minY),
				MaxX:  fixedpt.ToFloat(maxX),
				MaxY:  fixedpt.ToFloat(maxY),
				Layer: pg.render.atlasLayer,
			}
			if !pg.render.empty && atlasW > 0 && atlasH > 0 {
				sg.UVMinX = float64(pg.render.atlasX) / float64(atlasW)
				sg.UVMinY = float64(pg.render.atlasY) / float64(atlasH)
				sg.UVMaxX = float64(pg.render.atlasX+pg.render.width) / float64(atlasW)
				sg.UVMaxY = float64(pg.render.atlasY+pg.render.height) / float64(atlasH)
			}
			out.Glyphs = append(out.Glyphs, sg)
			extend(sg.MinX, sg.MinY, sg.MaxX, sg.MaxY)
		}

		for ii := seq.firstIcon; ii < iconEnd; ii++ {
			pi := &st.icons[ii]
			minX, minY := st.place(pi.minX, pi.minY, align, baseline)
			maxX, maxY := st.place(pi.maxX, pi.maxY, align, baseline)

			icon := ShapedIcon{
				IconIndex: pi.iconIndex,
				MinX:      fixedpt.ToInt(minX),
				MinY:      fixedpt.ToInt(minY),
				MaxX:      fixedpt.ToInt(maxX),
				MaxY:      fixedpt.ToInt(maxY),
			}
			out.Icons = append(out.Icons, icon)
			extend(float64(icon.MinX), float64(icon.MinY), float64(icon.MaxX), float64(icon.MaxY))
		}

		baseline += seq.biggestLineSpace
	}
	return out
}

// place shifts one point by the alignment offset on the primary axis and
// the baseline on the secondary axis.
func (st *layoutState) place(x, y, align, baseline fixedpt.T) (fixedpt.T, fixedpt.T) {
	if st.orientation == OrientationVertical {
		return x + baseline, y + align
	}
	return x + align, y + baseline
}

// scale26 multiplies a 26.6 value by a floating-point factor, rounding to
// the nearest representable value.
func scale26(v fixedpt.T, f float64) fixedpt.T {
	if f == 1 {
		return v
	}
	return fixedpt.T(math.Round(float64(v) * f))
}

// shaperPool pools HarfbuzzShaper instances: each carries internal buffers
// and is not safe for concurrent use, but reuse across calls avoids
// reallocating them per node.
var shaperPool = sync.Pool{
	New: func() any { return &shaping.HarfbuzzShaper{} },
}

// Shape lays out text into positioned glyph and icon quads. Nodes are
// shaped per script with the font category registered for (script, style),
// wrapped at Unicode line-break opportunities when the reading direction
// agrees with the script's natural direction, and packed into sequences
// bounded by the primary-axis limit.
//
// Glyphs missing a registered category are skipped with an error log;
// shaping proceeds with partial output. ErrAtlasFull is the only error
// returned: it means the glyph atlas can no longer grow and the caller
// cannot make progress.
func (l *FontLibrary) Shape(req ShapeRequest) (*ShapedData, error) {
	st := newLayoutState(req)
	renderScale := req.FontSize / sdfStandardSize

	hbShaper := shaperPool.Get().(*shaping.HarfbuzzShaper)
	defer shaperPool.Put(hbShaper)
	var seg segmenter.Segmenter

	style := 0
	for n := req.Text.Nodes(); n != nil; n = n.Next() {
		switch n.Kind {
		case NodeStyle:
			style = n.Style

		case NodeIcon:
			if err := l.shapeIconNode(st, n, style, renderScale); err != nil {
				return nil, err
			}

		case NodeUTF8:
			if err := l.shapeUTF8Node(st, hbShaper, &seg, n, style, req, renderScale); err != nil {
				return nil, err
			}
		}
	}

	return st.finish(l.atlas.Width(), l.atlas.Height()), nil
}

func (l *FontLibrary) shapeUTF8Node(st *layoutState, hbShaper *shaping.HarfbuzzShaper, seg *segmenter.Segmenter, n *Node, style int, req ShapeRequest, renderScale float64) error {
	cat, err := l.lookupCategory(n.Script, style)
	if err != nil {
		kanlog.Logger().Error("text: no font category for node", "script", n.Script, "style", style)
		return nil
	}

	runes := []rune(string(n.Bytes))
	if len(runes) == 0 {
		return nil
	}

	var breaks []lineBreak
	if breaksPermitted(req.Direction, runes) {
		seg.Init(runes)
		iter := seg.LineIterator()
		for iter.Next() {
			line := iter.Line()
			breaks = append(breaks, lineBreak{
				end:  line.Offset + len(line.Text),
				hard: line.IsMandatoryBreak,
			})
		}
	}

	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: shapingDirection(req.Orientation, req.Direction),
		Face:      cat.Source.ShapingFace(),
		Size:      fixedpt.FromFloat(req.FontSize),
		Script:    detectShapingScript(runes),
		Language:  language.NewLanguage("en"),
	}
	output := hbShaper.Shape(input)

	glyphs := make([]shapedGlyphInfo, 0, len(output.Glyphs))
	reverse := req.Orientation == OrientationHorizontal && req.Direction == DirectionRTL
	for i := range output.Glyphs {
		idx := i
		if reverse {
			// Right-to-left output arrives in visual order; walk it
			// back-to-front so the grab cursor sees logical order.
			idx = len(output.Glyphs) - 1 - i
		}
		g := output.Glyphs[idx]
		glyphs = append(glyphs, shapedGlyphInfo{
			glyphID:  uint32(g.GlyphID),
			cluster:  g.ClusterIndex,
			xAdvance: g.XAdvance,
			yAdvance: g.YAdvance,
			xOffset:  g.XOffset,
			yOffset:  g.YOffset,
		})
	}

	lineSpace, err := l.lineSpaceOf(cat, renderScale)
	if err != nil {
		return nil
	}

	resolve := func(glyphID uint32) (renderedGlyph, error) {
		g, err := l.resolveGlyph(cat, sfnt.GlyphIndex(glyphID))
		if err == ErrAtlasFull {
			return renderedGlyph{}, err
		}
		if err != nil {
			return renderedGlyph{empty: true}, nil
		}
		return g, nil
	}
	return st.grabGlyphs(glyphs, breaks, lineSpace, resolve, renderScale)
}

func (l *FontLibrary) shapeIconNode(st *layoutState, n *Node, style int, renderScale float64) error {
	cat, err := l.lookupCategory(ScriptCommon, style)
	if err != nil {
		cat = l.anyCategory()
	}
	if cat == nil {
		kanlog.Logger().Error("text: no font category usable for icon", "icon", n.IconIndex)
		return nil
	}

	// The base codepoint is passed straight through as the glyph index.
	// Extents lookup actually expects a glyph index here, not a
	// codepoint; callers relying on this pick fonts whose glyph order
	// matches their icon codepoints.
	render, err := l.resolveGlyph(cat, sfnt.GlyphIndex(n.BaseCodepoint))
	if err == ErrAtlasFull {
		return err
	}
	if err != nil {
		kanlog.Logger().Warn("text: icon base glyph lookup failed", "icon", n.IconIndex, "codepoint", n.BaseCodepoint, "err", err)
		return nil
	}

	lineSpace, err := l.lineSpaceOf(cat, renderScale)
	if err != nil {
		lineSpace = 0
	}
	st.grabIcon(n.IconIndex, render, renderScale*n.ScaleX, renderScale*n.ScaleY, lineSpace)
	return nil
}

// lineSpaceOf computes a category's line space (ascent + descent + line
// gap) scaled from the atlas-standard size to the requested size.
func (l *FontLibrary) lineSpaceOf(cat *FontCategory, renderScale float64) (fixedpt.T, error) {
	m, err := cat.Source.Metrics()
	if err != nil {
		return 0, err
	}
	return scale26(m.Ascent+m.Descent+m.LineGap, renderScale), nil
}

// anyCategory returns an arbitrary registered category, used as the last
// fallback for icon nodes.
func (l *FontLibrary) anyCategory() *FontCategory {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var best *FontCategory
	for _, cat := range l.categories {
		if best == nil || cat.Script < best.Script || (cat.Script == best.Script && cat.Style < best.Style) {
			best = cat
		}
	}
	return best
}

// breaksPermitted reports whether line breaks may be taken within a run:
// only when the requested reading direction agrees with the text's natural
// horizontal direction, so that wrap positions stay meaningful.
func breaksPermitted(dir ReadingDirection, runes []rune) bool {
	var p bidi.Paragraph
	if _, err := p.SetString(string(runes)); err != nil {
		return dir == DirectionLTR
	}
	ordering, err := p.Order()
	if err != nil {
		return dir == DirectionLTR
	}
	naturalRTL := ordering.Direction() == bidi.RightToLeft
	return (dir == DirectionRTL) == naturalRTL
}

// shapingDirection maps orientation and reading direction onto the shaping
// input direction.
func shapingDirection(o Orientation, d ReadingDirection) di.Direction {
	if o == OrientationVertical {
		return di.DirectionTTB
	}
	if d == DirectionRTL {
		return di.DirectionRTL
	}
	return di.DirectionLTR
}

// detectShapingScript picks the shaping script from the first non-space
// rune, matching the per-node script homogeneity Create already enforced.
func detectShapingScript(runes []rune) language.Script {
	for _, r := range runes {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}
