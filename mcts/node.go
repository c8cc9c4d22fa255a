// Package mcts implements a batched Monte Carlo Tree Search engine driven by
// an external policy/value evaluator, in the style of AlphaZero self-play.
//
// The tree itself (Search) and the evaluator-batching protocol (BatchDriver)
// are generic over the game being played: GameState and Move are supplied by
// the caller and never inspected by this package beyond being stored and
// handed back out.
package mcts

// node is one position in a Search's game tree. It is intrusive and
// arena-allocated: parent/firstChild/nextSibling are plain pointers into the
// same Search's pool, and nodes are recycled through a freelist threaded
// through nextSibling rather than released to the garbage collector.
//
// A node is expanded once n_visits > 0, and terminal once expanded with no
// children.
type node[S any, M any] struct {
	move  M
	state S
	prior float64

	parent      *node[S, M]
	firstChild  *node[S, M]
	nextSibling *node[S, M]

	visits  int
	totalAV float64
}

func (n *node[S, M]) expanded() bool {
	return n.visits > 0
}

func (n *node[S, M]) terminal() bool {
	return n.expanded() && n.firstChild == nil
}

// nodePool is a per-Search arena: alloc recycles from a freelist before
// falling back to a fresh allocation, and freeSubtree returns an entire
// subtree to that freelist in one pass.
//
// Nodes handed out by alloc are not zero-valued; callers populate every
// field they rely on before the node becomes reachable from root.
type nodePool[S any, M any] struct {
	freelist *node[S, M]
}

func (p *nodePool[S, M]) alloc() *node[S, M] {
	if p.freelist != nil {
		n := p.freelist
		p.freelist = n.nextSibling
		return n
	}
	return &node[S, M]{}
}

func (p *nodePool[S, M]) free(n *node[S, M]) {
	n.nextSibling = p.freelist
	p.freelist = n
}

// freeSubtree returns n and every descendant of n to the freelist. Unlike a
// naive single-child recursion, it walks the full sibling chain at every
// level so multi-child subtrees are reclaimed in one pass instead of leaking
// all but the leftmost spine.
func (p *nodePool[S, M]) freeSubtree(n *node[S, M]) {
	if n == nil {
		return
	}
	for c := n.firstChild; c != nil; {
		next := c.nextSibling
		p.freeSubtree(c)
		c = next
	}
	p.free(n)
}
