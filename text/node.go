package text

import "unicode/utf8"

// NodeKind tags which variant of the text-node sum type a Node holds.
type NodeKind int

const (
	NodeUTF8 NodeKind = iota
	NodeIcon
	NodeStyle
)

// Node is one entry of the immutable singly-linked list text-create
// builds. Only the fields matching Kind are meaningful.
type Node struct {
	Kind NodeKind

	// NodeUTF8
	Script Script
	Bytes  []byte

	// NodeIcon
	IconIndex     int
	BaseCodepoint rune
	ScaleX        float64
	ScaleY        float64

	// NodeStyle
	Style     int
	MarkIndex int

	next *Node
}

// Next returns the following node in the list, or nil at the tail.
func (n *Node) Next() *Node {
	if n == nil {
		return nil
	}
	return n.next
}

// ItemKind tags one input item to Create.
type ItemKind int

const (
	ItemEmpty ItemKind = iota
	ItemUTF8
	ItemIcon
	ItemStyle
)

// Item is one element of the slice passed to Create.
type Item struct {
	Kind ItemKind

	UTF8 []byte

	IconIndex     int
	BaseCodepoint rune
	ScaleX        float64
	ScaleY        float64

	Style     int
	MarkIndex int
}

// Text is the built, immutable node list returned by Create. The caller
// owns it; Create performs no allocation beyond the node list itself.
type Text struct {
	head *Node
}

// Nodes returns the head of the node list, or nil for an empty Text.
func (t *Text) Nodes() *Node {
	if t == nil {
		return nil
	}
	return t.head
}

// builder accumulates Create's streaming pass over items.
type builder struct {
	head, tail *Node

	pending       []byte
	pendingScript Script
	havePending   bool

	haveStyle bool
	lastStyle int
	lastMark  int
}

func (b *builder) append(n *Node) {
	if b.head == nil {
		b.head = n
	} else {
		b.tail.next = n
	}
	b.tail = n
}

// flushUTF8 finalizes the pending run, if any, into a Node.
func (b *builder) flushUTF8() {
	if !b.havePending {
		return
	}
	b.append(&Node{Kind: NodeUTF8, Script: b.pendingScript, Bytes: b.pending})
	b.pending = nil
	b.havePending = false
}

// appendUTF8 streams data's codepoints into the pending run, finalizing it
// at every script transition that leaves {common, inherited, unknown}
func (b *builder) appendUTF8(data []byte) {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		sc := scriptOf(r)

		switch {
		case !b.havePending:
			b.havePending = true
			b.pendingScript = sc
		case sc.isNeutral() || sc == b.pendingScript:
			// absorbed into the current run without a transition
		default:
			b.flushUTF8()
			b.havePending = true
			b.pendingScript = sc
		}
		b.pending = append(b.pending, data[i:i+size]...)
		i += size
	}
}

// Create builds a Text from a stream of items.
func Create(items []Item) *Text {
	b := &builder{}
	for _, it := range items {
		switch it.Kind {
		case ItemEmpty:
			continue
		case ItemUTF8:
			b.appendUTF8(it.UTF8)
		case ItemIcon:
			b.flushUTF8()
			b.pendingScript = ""
			b.append(&Node{
				Kind:          NodeIcon,
				IconIndex:     it.IconIndex,
				BaseCodepoint: it.BaseCodepoint,
				ScaleX:        it.ScaleX,
				ScaleY:        it.ScaleY,
			})
		case ItemStyle:
			if b.haveStyle && b.lastStyle == it.Style && b.lastMark == it.MarkIndex {
				continue // unchanged (style, mark-index): no flush, no node
			}
			b.flushUTF8()
			b.append(&Node{Kind: NodeStyle, Style: it.Style, MarkIndex: it.MarkIndex})
			b.haveStyle = true
			b.lastStyle = it.Style
			b.lastMark = it.MarkIndex
		}
	}
	b.flushUTF8()
	return &Text{head: b.head}
}
