package cfgnode

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Marshal renders n in the host's textual form:
//
//	NAME
//	{
//		key = value
//		CHILD
//		{
//		}
//	}
//
// A node with an empty name is treated as an anonymous container and only its
// contents are written.
func Marshal(n *Node) []byte {
	var buf bytes.Buffer
	if n == nil {
		return nil
	}
	if n.Name == "" {
		writeBody(&buf, n, 0)
		return buf.Bytes()
	}
	writeNode(&buf, n, 0)
	return buf.Bytes()
}

func writeNode(buf *bytes.Buffer, n *Node, depth int) {
	indent := strings.Repeat("\t", depth)
	buf.WriteString(indent)
	buf.WriteString(n.Name)
	buf.WriteByte('\n')
	buf.WriteString(indent)
	buf.WriteString("{\n")
	writeBody(buf, n, depth+1)
	buf.WriteString(indent)
	buf.WriteString("}\n")
}

func writeBody(buf *bytes.Buffer, n *Node, depth int) {
	indent := strings.Repeat("\t", depth)
	for _, v := range n.Values {
		fmt.Fprintf(buf, "%s%s = %s\n", indent, v.Name, v.Value)
	}
	for _, c := range n.Nodes {
		writeNode(buf, c, depth)
	}
}

// Parse reads the textual form back into an anonymous root node whose
// children are the top-level nodes of the input. Comments start with "//".
func Parse(r io.Reader) (*Node, error) {
	root := New("")
	stack := []*Node{root}
	pending := ""
	hasPending := false

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		for line != "" {
			cur := stack[len(stack)-1]
			switch {
			case line[0] == '{':
				name := ""
				if hasPending {
					name = pending
				}
				stack = append(stack, cur.AddNode(name))
				pending, hasPending = "", false
				line = strings.TrimSpace(line[1:])
			case line[0] == '}':
				if hasPending {
					return nil, fmt.Errorf("line %d: dangling name %q", lineNo, pending)
				}
				if len(stack) == 1 {
					return nil, fmt.Errorf("line %d: unexpected '}'", lineNo)
				}
				stack = stack[:len(stack)-1]
				line = strings.TrimSpace(line[1:])
			default:
				if hasPending {
					return nil, fmt.Errorf("line %d: expected '{' after %q", lineNo, pending)
				}
				end := strings.IndexAny(line, "{}")
				token := line
				rest := ""
				if end >= 0 {
					token, rest = line[:end], line[end:]
				}
				if eq := strings.IndexByte(token, '='); eq >= 0 {
					cur.AddValue(strings.TrimSpace(token[:eq]), strings.TrimSpace(token[eq+1:]))
				} else {
					pending, hasPending = strings.TrimSpace(token), true
				}
				line = strings.TrimSpace(rest)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if hasPending {
		return nil, fmt.Errorf("unexpected end of input after %q", pending)
	}
	if len(stack) != 1 {
		return nil, fmt.Errorf("unexpected end of input: %d unclosed node(s)", len(stack)-1)
	}
	return root, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (*Node, error) {
	return Parse(strings.NewReader(s))
}
