package parser

import (
	"encoding/xml"
	"strings"
)

// node is a schema-agnostic XML element. Both wire formats decode into a tree
// of nodes and are walked by local name, so namespace prefixes never matter.
type node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []node     `xml:",any"`
}

func (n *node) name() string { return n.XMLName.Local }

func (n *node) leaf() bool { return len(n.Nodes) == 0 }

func (n *node) text() string { return strings.TrimSpace(n.Text) }

// attr returns the value of the attribute with the given local name.
func (n *node) attr(local string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// child returns the first direct child with the given local name.
func (n *node) child(local string) *node {
	for i := range n.Nodes {
		if n.Nodes[i].name() == local {
			return &n.Nodes[i]
		}
	}
	return nil
}

// children returns every direct child with the given local name.
func (n *node) children(local string) []*node {
	var out []*node
	for i := range n.Nodes {
		if n.Nodes[i].name() == local {
			out = append(out, &n.Nodes[i])
		}
	}
	return out
}

// childText returns the trimmed text of the first matching direct child.
func (n *node) childText(local string) string {
	if c := n.child(local); c != nil {
		return c.text()
	}
	return ""
}

// find returns the first descendant, depth first, with the given local name.
func (n *node) find(local string) *node {
	for i := range n.Nodes {
		c := &n.Nodes[i]
		if c.name() == local {
			return c
		}
		if found := c.find(local); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every descendant with the given local name, document order.
func (n *node) findAll(local string) []*node {
	var out []*node
	for i := range n.Nodes {
		c := &n.Nodes[i]
		if c.name() == local {
			out = append(out, c)
		}
		out = append(out, c.findAll(local)...)
	}
	return out
}

// findText returns the trimmed text of the first matching descendant.
func (n *node) findText(local string) string {
	if c := n.find(local); c != nil {
		return c.text()
	}
	return ""
}
