package graph

// Direction selects which edges a walk follows.
type Direction int

const (
	// Forward follows DependsOn: prerequisites are emitted before the node (create order).
	Forward Direction = iota
	// Reverse follows Dependents: referencing objects are emitted before the node (drop order).
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

func (d Direction) neighbours(n *Node) []*Node {
	if d == Reverse {
		return n.dependents
	}
	return n.dependsOn
}

// Pass holds the visited set of one traversal pass. A Pass is not safe for
// concurrent use; concurrent walkers each use their own.
type Pass struct {
	visited map[*Node]struct{}
}

// NewPass returns a pass with nothing visited.
func NewPass() *Pass {
	return &Pass{visited: make(map[*Node]struct{})}
}

// Reset clears the visited set so the graph can be walked again.
func (p *Pass) Reset() {
	clear(p.visited)
}

// Visited reports whether n was marked during this pass.
func (p *Pass) Visited(n *Node) bool {
	_, ok := p.visited[n]
	return ok
}

// Len returns the number of nodes marked during this pass.
func (p *Pass) Len() int { return len(p.visited) }

// Walk emits n after everything reachable from it in direction dir.
//
// accept decides whether a node is eligible at all. A rejected node is left
// unmarked and acts as an opaque leaf: nothing is pulled in through it.
// Accepted nodes are marked before their neighbours are walked, which is what
// keeps cycles from recursing forever; a node is emitted at most once per pass.
// The first emit error stops the walk and is returned.
func (p *Pass) Walk(n *Node, dir Direction, accept func(*Node) bool, emit func(*Node) error) error {
	if n == nil || p.Visited(n) {
		return nil
	}
	if accept != nil && !accept(n) {
		return nil
	}

	p.visited[n] = struct{}{}

	for _, next := range dir.neighbours(n) {
		if next == n || p.Visited(next) {
			continue
		}
		if err := p.Walk(next, dir, accept, emit); err != nil {
			return err
		}
	}

	return emit(n)
}
