package cfgnode

import (
	"strings"
	"testing"
)

func firstValue(n *Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, v := range n.Values {
		if v.Name == key {
			return v.Value, true
		}
	}
	return "", false
}

func TestMarshalParseRoundTrip(t *testing.T) {
	root := New("")
	game := root.AddNode("GAME")
	game.AddValue("version", "1.12.5")
	yard := game.AddNode("Scrapyard.Scrapyard")
	parts := yard.AddNode("PARTS")
	parts.AddValue("fuelTank", "3")
	parts.AddValue("fuelTank,2x", "1")
	yard.AddNode("RESOURCES").AddValue("LiquidFuel", "45.5")

	text := Marshal(root)
	back, err := Parse(strings.NewReader(string(text)))
	if err != nil {
		t.Fatalf("parse: %v\n%s", err, text)
	}
	g := back.GetNode("GAME")
	if g == nil {
		t.Fatalf("missing GAME node:\n%s", text)
	}
	if v, _ := firstValue(g, "version"); v != "1.12.5" {
		t.Fatalf("version=%q", v)
	}
	p := g.GetNode("Scrapyard.Scrapyard").GetNode("PARTS")
	if p == nil || len(p.Values) != 2 {
		t.Fatalf("bad PARTS node: %#v", p)
	}
	if p.Values[1].Name != "fuelTank,2x" || p.Values[1].Value != "1" {
		t.Fatalf("scaled entry lost: %#v", p.Values[1])
	}
	if string(Marshal(back)) != string(text) {
		t.Fatalf("re-marshal differs:\n%s\n---\n%s", Marshal(back), text)
	}
}

func TestParseInlineBracesAndComments(t *testing.T) {
	src := `
// header comment
A { x = 1 } // trailing
B
{
	y = two words
	C { }
}
`
	root, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(root.Nodes) != 2 {
		t.Fatalf("expected 2 top-level nodes, got %d", len(root.Nodes))
	}
	if v, ok := firstValue(root.GetNode("A"), "x"); !ok || v != "1" {
		t.Fatalf("A.x=%q ok=%v", v, ok)
	}
	b := root.GetNode("B")
	if v, _ := firstValue(b, "y"); v != "two words" {
		t.Fatalf("B.y=%q", v)
	}
	if b.GetNode("C") == nil {
		t.Fatalf("expected nested C")
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"A\n{\n",
		"}\n",
		"A\nB\n{\n}\n",
		"A\n",
	}
	for _, c := range cases {
		if _, err := ParseString(c); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}

func TestRemoveNodes(t *testing.T) {
	n := New("ROOT")
	n.AddNode("X")
	n.AddNode("Y")
	n.AddNode("X")
	if got := n.RemoveNodes("X"); got != 2 {
		t.Fatalf("removed=%d", got)
	}
	if len(n.Nodes) != 1 || n.Nodes[0].Name != "Y" {
		t.Fatalf("unexpected children: %#v", n.Nodes)
	}
}
