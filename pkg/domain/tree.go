package domain

// RootLabel is the label of the synthetic root suite.
const RootLabel = "PHPUnit tests"

// Tree is one discovery pass worth of nodes.
// A tree is never edited structurally after it is built; rediscovery produces a new Tree.
type Tree struct {
	Root *Node
}

// NewTree returns a tree with an empty synthetic root.
// The root id is empty: running it means running everything.
func NewTree() *Tree {
	return &Tree{Root: NewSuite("", RootLabel, nil)}
}

// IsRoot reports whether node is the synthetic root of t.
func (t *Tree) IsRoot(node *Node) bool {
	return node == t.Root
}

// Find resolves id to a node. The empty id resolves to the root.
func (t *Tree) Find(id string) *Node {
	if t == nil || t.Root == nil {
		return nil
	}
	return t.Root.Find(id)
}

// Suites returns the direct children of the root.
func (t *Tree) Suites() []*Node {
	return t.Root.Children
}

// CountTests returns the number of tests in the tree.
func (t *Tree) CountTests() int {
	return t.Root.CountTests()
}
