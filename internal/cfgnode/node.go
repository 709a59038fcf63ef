// Package cfgnode models the host game's save-file node tree: a named node
// holding an ordered list of key/value pairs and an ordered list of child
// nodes. Keys are not unique.
package cfgnode

type Value struct {
	Name  string
	Value string
}

type Node struct {
	Name   string
	Values []Value
	Nodes  []*Node
}

func New(name string) *Node {
	return &Node{Name: name}
}

// AddNode appends a new child and returns it.
func (n *Node) AddNode(name string) *Node {
	c := New(name)
	n.Nodes = append(n.Nodes, c)
	return c
}

func (n *Node) AddValue(name, value string) {
	n.Values = append(n.Values, Value{Name: name, Value: value})
}

// GetNode returns the first child with the given name, or nil.
func (n *Node) GetNode(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Nodes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// RemoveNodes drops every child with the given name and reports how many were
// removed.
func (n *Node) RemoveNodes(name string) int {
	kept := n.Nodes[:0]
	removed := 0
	for _, c := range n.Nodes {
		if c.Name == name {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(n.Nodes); i++ {
		n.Nodes[i] = nil
	}
	n.Nodes = kept
	return removed
}
