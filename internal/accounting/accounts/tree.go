package accounts

import "sort"

// Tree indexes a tenant's accounts by id with parent and child links.
type Tree struct {
	nodes    map[int64]Account
	children map[int64][]int64
	roots    []int64
}

// NewTree builds the index. Children are ordered by code.
func NewTree(accounts []Account) *Tree {
	t := &Tree{
		nodes:    make(map[int64]Account, len(accounts)),
		children: make(map[int64][]int64),
	}
	sorted := append([]Account(nil), accounts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })
	for _, a := range sorted {
		t.nodes[a.ID] = a
	}
	for _, a := range sorted {
		if a.ParentID != nil {
			if _, ok := t.nodes[*a.ParentID]; ok {
				t.children[*a.ParentID] = append(t.children[*a.ParentID], a.ID)
				continue
			}
		}
		t.roots = append(t.roots, a.ID)
	}
	return t
}

// Get returns the account with id.
func (t *Tree) Get(id int64) (Account, bool) {
	a, ok := t.nodes[id]
	return a, ok
}

// Children returns the direct children of id.
func (t *Tree) Children(id int64) []Account {
	ids := t.children[id]
	out := make([]Account, 0, len(ids))
	for _, child := range ids {
		out = append(out, t.nodes[child])
	}
	return out
}

// Ancestors returns the parent chain of id, nearest first. A corrupt chain stops at
// the first repeated node.
func (t *Tree) Ancestors(id int64) []int64 {
	var out []int64
	seen := map[int64]bool{id: true}
	current, ok := t.nodes[id]
	for ok && current.ParentID != nil {
		parent := *current.ParentID
		if seen[parent] {
			break
		}
		seen[parent] = true
		out = append(out, parent)
		current, ok = t.nodes[parent]
	}
	return out
}

// WouldCycle reports whether placing id under parent makes id its own ancestor.
func (t *Tree) WouldCycle(id, parent int64) bool {
	if id == parent {
		return true
	}
	for _, ancestor := range t.Ancestors(parent) {
		if ancestor == id {
			return true
		}
	}
	return false
}

// Node is an account with its nested children, used for rendering the chart.
type Node struct {
	Account
	Children []Node `json:"children,omitempty"`
}

// Nested returns the chart as nested nodes.
func (t *Tree) Nested() []Node {
	out := make([]Node, 0, len(t.roots))
	for _, id := range t.roots {
		out = append(out, t.nest(id, map[int64]bool{}))
	}
	return out
}

func (t *Tree) nest(id int64, visiting map[int64]bool) Node {
	visiting[id] = true
	node := Node{Account: t.nodes[id]}
	for _, child := range t.children[id] {
		if visiting[child] {
			continue
		}
		node.Children = append(node.Children, t.nest(child, visiting))
	}
	return node
}
