package cfgexpr

// Reduced-ordered binary decision diagram used to put a BExpr into a
// canonical, minimized form: two logically equivalent expressions (over
// the same atom universe) always simplify to syntactically identical
// trees, which is what lets callers disjoin repeated predicates without
// the result growing without bound.

const (
	falseNode = 0
	trueNode  = 1
)

type bddNode struct {
	atom      string
	low, high int
}

type bdd struct {
	atomIndex map[string]int // atom id -> variable rank (0 = first in order)
	atoms     []Atom         // variable rank -> Atom
	nodes     []bddNode
	unique    map[bddNode]int
}

func newBDD(atoms []Atom) *bdd {
	b := &bdd{
		atomIndex: make(map[string]int, len(atoms)),
		atoms:     atoms,
		nodes:     []bddNode{{atom: ""}, {atom: ""}}, // 0=false, 1=true placeholders
		unique:    make(map[bddNode]int),
	}
	for i, a := range atoms {
		b.atomIndex[a.id()] = i
	}
	return b
}

func (b *bdd) mk(rank int, low, high int) int {
	if low == high {
		return low
	}
	n := bddNode{atom: b.atoms[rank].id(), low: low, high: high}
	if idx, ok := b.unique[n]; ok {
		return idx
	}
	b.nodes = append(b.nodes, n)
	idx := len(b.nodes) - 1
	b.unique[n] = idx
	return idx
}

func (b *bdd) rankOf(atomID string) int { return b.atomIndex[atomID] }

// build converts a BExpr into a BDD node index.
func (b *bdd) build(e *BExpr) int {
	switch e.Kind {
	case KindConst:
		if e.Constant {
			return trueNode
		}
		return falseNode
	case KindAtom:
		r := b.rankOf(e.Atom.id())
		return b.mk(r, falseNode, trueNode)
	case KindNot:
		return b.not(b.build(e.Operand))
	case KindAnd:
		acc := trueNode
		for _, o := range e.Operands {
			acc = b.and(acc, b.build(o))
		}
		return acc
	case KindOr:
		acc := falseNode
		for _, o := range e.Operands {
			acc = b.or(acc, b.build(o))
		}
		return acc
	}
	return trueNode
}

func (b *bdd) isTerminal(n int) bool { return n == falseNode || n == trueNode }

func (b *bdd) not(n int) int {
	if n == falseNode {
		return trueNode
	}
	if n == trueNode {
		return falseNode
	}
	node := b.nodes[n]
	r := b.atomIndex[node.atom]
	return b.mk(r, b.not(node.low), b.not(node.high))
}

func (b *bdd) topRank(x, y int) (int, bool, bool) {
	rx, rxOK := -1, false
	ry, ryOK := -1, false
	if !b.isTerminal(x) {
		rx, rxOK = b.atomIndex[b.nodes[x].atom], true
	}
	if !b.isTerminal(y) {
		ry, ryOK = b.atomIndex[b.nodes[y].atom], true
	}
	switch {
	case rxOK && ryOK:
		if rx <= ry {
			return rx, true, rx == ry
		}
		return ry, false, false
	case rxOK:
		return rx, true, false
	case ryOK:
		return ry, false, false
	default:
		return -1, false, false
	}
}

func (b *bdd) and(x, y int) int {
	if x == falseNode || y == falseNode {
		return falseNode
	}
	if x == trueNode {
		return y
	}
	if y == trueNode {
		return x
	}
	if x == y {
		return x
	}
	rank, useX, both := b.topRank(x, y)
	var xlow, xhigh, ylow, yhigh int
	if both || useX {
		xlow, xhigh = b.nodes[x].low, b.nodes[x].high
	} else {
		xlow, xhigh = x, x
	}
	if both || !useX {
		ylow, yhigh = b.nodes[y].low, b.nodes[y].high
	} else {
		ylow, yhigh = y, y
	}
	return b.mk(rank, b.and(xlow, ylow), b.and(xhigh, yhigh))
}

func (b *bdd) or(x, y int) int {
	if x == trueNode || y == trueNode {
		return trueNode
	}
	if x == falseNode {
		return y
	}
	if y == falseNode {
		return x
	}
	if x == y {
		return x
	}
	rank, useX, both := b.topRank(x, y)
	var xlow, xhigh, ylow, yhigh int
	if both || useX {
		xlow, xhigh = b.nodes[x].low, b.nodes[x].high
	} else {
		xlow, xhigh = x, x
	}
	if both || !useX {
		ylow, yhigh = b.nodes[y].low, b.nodes[y].high
	} else {
		ylow, yhigh = y, y
	}
	return b.mk(rank, b.or(xlow, ylow), b.or(xhigh, yhigh))
}

// readback reconstructs a canonical BExpr from a BDD node by following
// every path to the true terminal and OR-ing together the AND of
// literals along each path (sum of products), then collapsing trivial
// single-term/single-literal cases.
func (b *bdd) readback(n int) *BExpr {
	if n == falseNode {
		return NewConst(false)
	}
	if n == trueNode {
		return NewConst(true)
	}
	var terms []*BExpr
	var walk func(n int, lits []*BExpr)
	walk = func(n int, lits []*BExpr) {
		if n == falseNode {
			return
		}
		if n == trueNode {
			if len(lits) == 0 {
				terms = append(terms, NewConst(true))
			} else if len(lits) == 1 {
				terms = append(terms, lits[0])
			} else {
				cp := append([]*BExpr{}, lits...)
				terms = append(terms, NewAnd(cp...))
			}
			return
		}
		node := b.nodes[n]
		atom := b.atoms[b.atomIndex[node.atom]]
		walk(node.low, append(lits, NewNot(NewAtom(atom))))
		walk(node.high, append(lits, NewAtom(atom)))
	}
	walk(n, nil)
	if len(terms) == 0 {
		return NewConst(false)
	}
	if len(terms) == 1 {
		return terms[0]
	}
	return NewOr(terms...)
}

// Simplify puts e into a canonical minimized form: logically equivalent
// expressions (same truth table over their shared atom universe) always
// produce structurally identical results.
func Simplify(e *BExpr) *BExpr {
	if e == nil {
		return NewConst(true)
	}
	atoms := Atoms(e)
	if len(atoms) == 0 {
		return NewConst(Eval(e, nil))
	}
	b := newBDD(atoms)
	n := b.build(e)
	return b.readback(n)
}
