package domain

// Node is one entry of the test tree, tagged by Kind.
// Suites carry ordered children; tests never do.
type Node struct {
	Kind     Kind
	ID       string
	Label    string
	State    State
	Message  string
	Location *Location
	Children []*Node
}

// NewSuite creates a pending suite node. loc may be nil for synthetic suites.
func NewSuite(id, label string, loc *Location) *Node {
	return &Node{
		Kind:     KindSuite,
		ID:       id,
		Label:    label,
		State:    StatePending,
		Location: loc,
		Children: []*Node{},
	}
}

// NewTest creates a pending test node.
func NewTest(id, label string, loc *Location) *Node {
	return &Node{
		Kind:     KindTest,
		ID:       id,
		Label:    label,
		State:    StatePending,
		Location: loc,
	}
}

// IsSuite reports whether the node is a suite.
func (n *Node) IsSuite() bool {
	return n.Kind == KindSuite
}

// AddChild appends child to a suite. It reports false for tests, which never have children.
func (n *Node) AddChild(child *Node) bool {
	if !n.IsSuite() {
		return false
	}
	n.Children = append(n.Children, child)
	return true
}

// File returns the node's source file, or "" when it has no location.
func (n *Node) File() string {
	if n.Location == nil {
		return ""
	}
	return n.Location.File
}

// Walk visits the node and its descendants depth-first in child order.
// Returning false from visitor skips the node's children.
func (n *Node) Walk(visitor func(*Node) bool) {
	if !visitor(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(visitor)
	}
}

// Find returns the first node with the given id in a depth-first search rooted at n.
func (n *Node) Find(id string) *Node {
	if n.ID == id {
		return n
	}
	for _, child := range n.Children {
		if found := child.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// Tests returns the test leaves under n in depth-first order.
// A test node returns itself.
func (n *Node) Tests() []*Node {
	var tests []*Node
	n.Walk(func(node *Node) bool {
		if node.Kind == KindTest {
			tests = append(tests, node)
		}
		return true
	})
	return tests
}

// CountTests returns the number of test leaves under n.
func (n *Node) CountTests() int {
	return len(n.Tests())
}

// Reset sets the state of n and every descendant to state and clears their messages.
func (n *Node) Reset(state State) {
	n.Walk(func(node *Node) bool {
		node.State = state
		node.Message = ""
		return true
	})
}
