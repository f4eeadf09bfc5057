package text

import "testing"

func collectUTF8(t *Text) []string {
	var out []string
	for n := t.Nodes(); n != nil; n = n.Next() {
		if n.Kind == NodeUTF8 {
			out = append(out, string(n.Bytes))
		}
	}
	return out
}

func countKind(t *Text, k NodeKind) int {
	count := 0
	for n := t.Nodes(); n != nil; n = n.Next() {
		if n.Kind == k {
			count++
		}
	}
	return count
}

func TestCreate_ScriptTransitionSplitsUTF8Node(t *testing.T) {
	txt := Create([]Item{{Kind: ItemUTF8, UTF8: []byte("hello мир")}})
	if got := countKind(txt, NodeUTF8); got != 2 {
		t.Fatalf("expected 2 utf8 nodes across a Latin/Cyrillic transition, got %d", got)
	}
}

func TestCreate_CommonScriptDoesNotSplit(t *testing.T) {
	// Digits and punctuation are Common and must not force a boundary
	// inside a single-script run.
	txt := Create([]Item{{Kind: ItemUTF8, UTF8: []byte("abc 123 def!")}})
	if got := countKind(txt, NodeUTF8); got != 1 {
		t.Fatalf("expected 1 utf8 node, got %d", got)
	}
}

// Two style items carrying the same (style, mark-index) collapse to a
// single style node, since style items only flush when (style, mark-index)
// actually changes: the first application is a change from "no style set
// yet", so it alone flushes the pending utf8 run and emits a node; the
// second, unchanged, application does neither. All utf8 bytes survive
// across the collapsed item.
func TestCreate_RepeatedStyleCollapses(t *testing.T) {
	const style = 7
	txt := Create([]Item{
		{Kind: ItemUTF8, UTF8: []byte("abc")},
		{Kind: ItemStyle, Style: style, MarkIndex: 0},
		{Kind: ItemUTF8, UTF8: []byte("abc")},
		{Kind: ItemStyle, Style: style, MarkIndex: 0},
		{Kind: ItemUTF8, UTF8: []byte("def")},
	})

	if got := countKind(txt, NodeStyle); got != 1 {
		t.Fatalf("expected exactly one style node, got %d", got)
	}

	var all string
	for _, s := range collectUTF8(txt) {
		all += s
	}
	if all != "abcabcdef" {
		t.Fatalf("expected concatenated utf8 content %q, got %q", "abcabcdef", all)
	}
}

func TestCreate_IconFlushesPendingRun(t *testing.T) {
	txt := Create([]Item{
		{Kind: ItemUTF8, UTF8: []byte("abc")},
		{Kind: ItemIcon, IconIndex: 3, BaseCodepoint: 0xE000, ScaleX: 1, ScaleY: 1},
		{Kind: ItemUTF8, UTF8: []byte("def")},
	})

	var kinds []NodeKind
	for n := txt.Nodes(); n != nil; n = n.Next() {
		kinds = append(kinds, n.Kind)
	}
	want := []NodeKind{NodeUTF8, NodeIcon, NodeUTF8}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, kinds)
		}
	}
}

func TestCreate_EmptyItemsSkipped(t *testing.T) {
	txt := Create([]Item{{Kind: ItemEmpty}, {Kind: ItemUTF8, UTF8: []byte("x")}})
	if txt.Nodes() == nil || txt.Nodes().Kind != NodeUTF8 {
		t.Fatalf("expected a single utf8 node")
	}
}
