package autograd

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"
)

func TestBackward_EndToEndNeuron(t *testing.T) {
	x1 := New(2.0).Named("x1")
	w1 := New(0.5).Named("w1")
	x2 := New(1.25).Named("x2")
	w2 := New(0.75).Named("w2")
	b := New(-0.5).Named("b")

	pre := x1.Mul(w1).Add(x2.Mul(w2)).Add(b)
	// 2*0.5 + 1.25*0.75 - 0.5
	if pre.Data() != 1.4375 {
		t.Fatalf("expected pre-activation 1.4375, got %v", pre.Data())
	}
	L := pre.Sigmoid().Named("L")
	want := 1 / (1 + math.Exp(-1.4375))
	if !near(L.Data(), want, tol) || !near(L.Data(), 0.80807, 1e-5) {
		t.Fatalf("expected L ~ %v, got %v", want, L.Data())
	}

	backward(t, L)

	local := L.Data() * (1 - L.Data())
	if !near(w1.Grad(), x1.Data()*local, tol) {
		t.Fatalf("w1: expected %v, got %v", x1.Data()*local, w1.Grad())
	}
	if !near(w1.Grad(), 0.31019, 1e-5) {
		t.Fatalf("w1: expected ~0.31019, got %v", w1.Grad())
	}
	if !near(x1.Grad(), w1.Data()*local, tol) {
		t.Fatalf("x1: expected %v, got %v", w1.Data()*local, x1.Grad())
	}
	if !near(w2.Grad(), x2.Data()*local, tol) {
		t.Fatalf("w2: expected %v, got %v", x2.Data()*local, w2.Grad())
	}
	if !near(b.Grad(), local, tol) {
		t.Fatalf("b: expected %v, got %v", local, b.Grad())
	}
	if L.Grad() != 1 {
		t.Fatalf("expected terminal seeded with 1, got %v", L.Grad())
	}
}

func TestBackward_DiamondFanOut(t *testing.T) {
	// a feeds b and c, both feed d: d = (2a) * (a+3).
	a := New(2)
	b := a.MulScalar(2)
	c := a.AddScalar(3)
	d := b.Mul(c)
	backward(t, d)
	// dd/da = 2(a+3) + 2a = 4a + 6
	if a.Grad() != 14 {
		t.Fatalf("expected 14, got %v", a.Grad())
	}
}

func TestBackward_DoesNotChangeValues(t *testing.T) {
	a, b := New(1.5), New(-2)
	y := a.Mul(b).Tanh().Add(a.Exp())
	before := []float64{a.Data(), b.Data(), y.Data()}
	backward(t, y)
	after := []float64{a.Data(), b.Data(), y.Data()}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("value %d changed: %v -> %v", i, before[i], after[i])
		}
	}
}

func TestBackward_AccumulatesAcrossPasses(t *testing.T) {
	a, b := New(3), New(4)
	y := a.Mul(b)
	backward(t, y)
	backward(t, y)
	if a.Grad() != 8 {
		t.Fatalf("expected stale gradients to accumulate to 8, got %v", a.Grad())
	}

	if err := ResetGradients(y); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if a.Grad() != 0 || b.Grad() != 0 || y.Grad() != 0 {
		t.Fatalf("expected zeroed graph, got a=%v b=%v y=%v", a.Grad(), b.Grad(), y.Grad())
	}
	backward(t, y)
	if a.Grad() != 4 {
		t.Fatalf("expected 4 after reset, got %v", a.Grad())
	}
}

func TestBackward_WithSeed(t *testing.T) {
	a := New(3)
	y := a.MulScalar(5)
	if err := Backward(y, WithSeed(0.5)); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if a.Grad() != 2.5 {
		t.Fatalf("expected 2.5, got %v", a.Grad())
	}
}

func TestBackward_LeafTerminal(t *testing.T) {
	a := New(3)
	backward(t, a)
	if a.Grad() != 1 {
		t.Fatalf("expected 1, got %v", a.Grad())
	}
}

func TestBackward_NilTerminal(t *testing.T) {
	err := Backward(nil)
	if !errors.Is(err, ErrNilValue) {
		t.Fatalf("expected ErrNilValue, got %v", err)
	}
}

// randomGraph builds a random DAG over a few leaves and returns its terminal.
func randomGraph(rng *rand.Rand, leaves, ops int) *Value {
	pool := make([]*Value, 0, leaves+ops)
	for i := 0; i < leaves; i++ {
		pool = append(pool, New(rng.Float64()+0.5))
	}
	for i := 0; i < ops; i++ {
		a := pool[rng.Intn(len(pool))]
		b := pool[rng.Intn(len(pool))]
		var n *Value
		switch rng.Intn(6) {
		case 0:
			n = a.Add(b)
		case 1:
			n = a.Mul(b)
		case 2:
			n = a.Tanh()
		case 3:
			n = a.Sigmoid()
		case 4:
			n = a.Sub(b)
		default:
			n = a.ReLU()
		}
		pool = append(pool, n)
	}
	return Sum(pool...)
}

func TestBackward_ChildrenRunBeforeParents(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		terminal := randomGraph(rng, 4, 30)

		pos := map[*Value]int{}
		err := Backward(terminal, WithVisitor(func(v *Value) {
			if _, dup := pos[v]; dup {
				t.Fatalf("node visited twice")
			}
			pos[v] = len(pos)
		}))
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}

		for child, ci := range pos {
			for _, parent := range child.Parents() {
				pi, ok := pos[parent]
				if !ok {
					t.Fatalf("parent never visited")
				}
				if ci >= pi {
					t.Fatalf("trial %d: child at %d ran after parent at %d", trial, ci, pi)
				}
			}
		}
	}
}

func TestTopologicalOrder_ParentsFirstAndUnique(t *testing.T) {
	a := New(1)
	b := a.Add(a)
	c := b.Mul(a)
	topo, err := TopologicalOrder(c)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(topo) != 3 {
		t.Fatalf("expected 3 unique nodes, got %d", len(topo))
	}
	if topo[0] != a || topo[2] != c {
		t.Fatalf("unexpected order: %v", topo)
	}
}

func TestTopologicalOrder_DetectsCycle(t *testing.T) {
	a := New(1).Named("a")
	b := a.MulScalar(2).Named("b")
	c := b.AddScalar(1).Named("c")
	// Only reachable from inside the package: wire a back-edge c -> a.
	a.parents = append(a.parents, c)

	_, err := TopologicalOrder(c)
	if !errors.Is(err, ErrCycleFound) {
		t.Fatalf("expected ErrCycleFound, got %v", err)
	}
	var gerr *GraphError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *GraphError, got %T", err)
	}
	for _, name := range []string{"a", "b", "c"} {
		if !strings.Contains(gerr.Msg, name) {
			t.Fatalf("expected %q in cycle path %q", name, gerr.Msg)
		}
	}

	c.SetGrad(42)
	if err := c.Backward(); !errors.Is(err, ErrCycleFound) {
		t.Fatalf("expected ErrCycleFound from Backward, got %v", err)
	}
	if c.Grad() != 42 {
		t.Fatalf("expected no mutation on cycle, got grad %v", c.Grad())
	}
	if err := ResetGradients(c); !errors.Is(err, ErrCycleFound) {
		t.Fatalf("expected ErrCycleFound from ResetGradients, got %v", err)
	}
}

func TestBackward_NaNPropagates(t *testing.T) {
	a := New(-1)
	y := a.PowScalar(0.5).Mul(New(2))
	if !math.IsNaN(y.Data()) {
		t.Fatalf("expected NaN, got %v", y.Data())
	}
	backward(t, y)
	if !math.IsNaN(a.Grad()) {
		t.Fatalf("expected NaN gradient, got %v", a.Grad())
	}
}

func TestExport(t *testing.T) {
	x := New(2).Named("x")
	y := x.Mul(x).Named("y")
	backward(t, y)

	g, err := Export(y)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(g.Nodes) != 2 || g.Terminal != 1 {
		t.Fatalf("unexpected graph: %+v", g)
	}
	if g.Nodes[0].Label != "x" || g.Nodes[0].Grad != 4 || g.Nodes[0].Op != "leaf" {
		t.Fatalf("unexpected leaf node: %+v", g.Nodes[0])
	}
	if g.Nodes[1].Op != "*" || len(g.Nodes[1].Parents) != 1 || g.Nodes[1].Parents[0] != 0 {
		t.Fatalf("unexpected terminal node: %+v", g.Nodes[1])
	}
	if g.Edges() != 1 {
		t.Fatalf("expected 1 edge, got %d", g.Edges())
	}
}
