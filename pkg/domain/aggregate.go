package domain

type tally struct {
	tests   int
	failed  int
	pending int
	running int
}

func (t *tally) add(o tally) {
	t.tests += o.tests
	t.failed += o.failed
	t.pending += o.pending
	t.running += o.running
}

func (t tally) suiteState() State {
	switch {
	case t.failed > 0:
		return StateErrored
	case t.tests > 0 && t.pending == 0 && t.running == 0:
		return StateCompleted
	case t.running > 0:
		return StateRunning
	default:
		return StatePending
	}
}

// Aggregate recomputes every suite state under root from its test descendants
// in a single bottom-up pass. Test states are left untouched.
// It returns the suites whose state changed, deepest first.
func Aggregate(root *Node) []*Node {
	var changed []*Node
	aggregate(root, &changed)
	return changed
}

func aggregate(n *Node, changed *[]*Node) tally {
	if n.Kind == KindTest {
		t := tally{tests: 1}
		switch n.State {
		case StateFailed:
			t.failed = 1
		case StateRunning:
			t.running = 1
		case StatePassed:
		default:
			t.pending = 1
		}
		return t
	}

	var t tally
	for _, child := range n.Children {
		t.add(aggregate(child, changed))
	}

	if state := t.suiteState(); state != n.State {
		n.State = state
		*changed = append(*changed, n)
	}
	return t
}
