// Package uitree models a window's view hierarchy and the searches the
// executor runs against it.
package uitree

import "strings"

// Node is one element of a view hierarchy.
type Node struct {
	Text        string  `yaml:"text" json:"text,omitempty"`
	Description string  `yaml:"desc" json:"desc,omitempty"`
	ViewID      string  `yaml:"view_id" json:"view_id,omitempty"`
	Class       string  `yaml:"class" json:"class,omitempty"`
	Clickable   bool    `yaml:"clickable" json:"clickable,omitempty"`
	Editable    bool    `yaml:"editable" json:"editable,omitempty"`
	Scrollable  bool    `yaml:"scrollable" json:"scrollable,omitempty"`
	Focused     bool    `yaml:"focused" json:"focused,omitempty"`
	Children    []*Node `yaml:"children" json:"children,omitempty"`

	Parent *Node `yaml:"-" json:"-"`
}

// Link sets Parent on every descendant of n and returns n.
func (n *Node) Link() *Node {
	for _, c := range n.Children {
		c.Parent = n
		c.Link()
	}
	return n
}

// Label is the most human-readable identification of the node.
func (n *Node) Label() string {
	switch {
	case n.Text != "":
		return n.Text
	case n.Description != "":
		return n.Description
	default:
		return n.ViewID
	}
}

// Walk visits the tree breadth-first and stops when fn returns false.
func Walk(root *Node, fn func(*Node) bool) {
	if root == nil {
		return
	}
	queue := []*Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if !fn(n) {
			return
		}
		queue = append(queue, n.Children...)
	}
}

// FindAll returns every node matching pred in breadth-first order.
func FindAll(root *Node, pred func(*Node) bool) []*Node {
	var out []*Node
	Walk(root, func(n *Node) bool {
		if pred(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// First returns the first node matching pred in breadth-first order.
func First(root *Node, pred func(*Node) bool) *Node {
	var found *Node
	Walk(root, func(n *Node) bool {
		if pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindByText returns nodes whose text equals text exactly.
func FindByText(root *Node, text string) []*Node {
	return FindAll(root, func(n *Node) bool { return n.Text == text })
}

// FindByDescription returns the first node whose content description
// contains sub, ignoring case.
func FindByDescription(root *Node, sub string) *Node {
	needle := strings.ToLower(sub)
	if needle == "" {
		return nil
	}
	return First(root, func(n *Node) bool {
		return strings.Contains(strings.ToLower(n.Description), needle)
	})
}

// FindByViewID returns nodes with the given view identifier.
func FindByViewID(root *Node, id string) []*Node {
	return FindAll(root, func(n *Node) bool { return n.ViewID == id })
}

// ClickableAncestor returns n itself when clickable, otherwise the nearest
// clickable ancestor, or nil.
func ClickableAncestor(n *Node) *Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Clickable {
			return cur
		}
	}
	return nil
}

// LastSegment returns the part of a view identifier after its final '/'.
func LastSegment(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}
