// Package autograd is a tiny reverse-mode automatic differentiation engine
// over scalar values.
//
// Every operation applied to a *Value returns a new *Value that remembers the
// operands it was built from and which local derivative rule applies. Calling
// Backward on the final value walks that history in reverse and accumulates
// d(terminal)/d(node) into each node's gradient.
//
// A graph is single-writer: nothing here is safe for concurrent use on values
// that share ancestors.
package autograd

import "fmt"

// Value is a "number with memory".
//
//   - data is the number used in calculations.
//   - grad is how much the terminal changes if data changes a little.
//   - parents are the distinct nodes this value was computed from.
//   - op and operands say which local derivative rule to apply and to what.
type Value struct {
	data     float64
	grad     float64
	op       Op
	operands [2]*Value
	parents  []*Value
	label    string
}

// New creates a leaf node (a plain number with no parents).
func New(data float64) *Value {
	return &Value{data: data}
}

// Const is New for values that are not meant to be trained.
func Const(data float64) *Value {
	return New(data)
}

// NewWithParents creates a node linked to the given parents with a no-op
// backward rule. Duplicate and nil parents are dropped.
func NewWithParents(data float64, parents ...*Value) *Value {
	v := &Value{data: data}
	v.parents = dedupe(parents...)
	return v
}

// newOp builds the result of a primitive. Parents are the operands with
// duplicates removed; operands keep the original positions for the rule.
func newOp(data float64, op Op, a, b *Value) *Value {
	return &Value{
		data:     data,
		op:       op,
		operands: [2]*Value{a, b},
		parents:  dedupe(a, b),
	}
}

func dedupe(vs ...*Value) []*Value {
	out := make([]*Value, 0, len(vs))
	for _, v := range vs {
		if v == nil {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == v {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}

// Data returns the current scalar value.
func (v *Value) Data() float64 { return v.data }

// Grad returns the accumulated gradient.
func (v *Value) Grad() float64 { return v.grad }

// SetData overwrites the value. Only parameter updates should call it.
func (v *Value) SetData(d float64) { v.data = d }

// SetGrad overwrites (does not accumulate) the gradient.
func (v *Value) SetGrad(g float64) { v.grad = g }

// Op reports which primitive produced v.
func (v *Value) Op() Op { return v.op }

// Parents returns a copy of the distinct nodes v was computed from.
func (v *Value) Parents() []*Value {
	out := make([]*Value, len(v.parents))
	copy(out, v.parents)
	return out
}

// IsLeaf reports whether v has no parents.
func (v *Value) IsLeaf() bool { return len(v.parents) == 0 }

// Label returns the debugging label, if any.
func (v *Value) Label() string { return v.label }

// SetLabel attaches a debugging label. It has no effect on computation.
func (v *Value) SetLabel(label string) { v.label = label }

// Named sets the label and returns v, for use inside expressions.
func (v *Value) Named(label string) *Value {
	v.label = label
	return v
}

// String renders data, grad and label for debugging.
func (v *Value) String() string {
	if v.label == "" {
		return fmt.Sprintf("Value(data=%g, grad=%g)", v.data, v.grad)
	}
	return fmt.Sprintf("Value(data=%g, grad=%g, label=%s)", v.data, v.grad, v.label)
}

// name is used in error messages and exports.
func (v *Value) name() string {
	if v.label != "" {
		return v.label
	}
	return fmt.Sprintf("%s@%p", v.op, v)
}
