package autograd

import "math"

// Op identifies the primitive that produced a value. Leaves and nodes built
// with NewWithParents carry OpLeaf and have no backward rule.
type Op uint8

// Primitive tags, one per backward rule.
const (
	OpLeaf Op = iota
	OpAdd
	OpMul
	OpPow
	OpReLU
	OpTanh
	OpSigmoid
	OpExp
	OpLog
)

var opNames = [...]string{
	OpLeaf:    "leaf",
	OpAdd:     "+",
	OpMul:     "*",
	OpPow:     "^",
	OpReLU:    "relu",
	OpTanh:    "tanh",
	OpSigmoid: "sigmoid",
	OpExp:     "exp",
	OpLog:     "log",
}

// String returns the operator symbol or function name.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// Add creates node z = x + y.
// Local derivatives: dz/dx = 1, dz/dy = 1.
func (v *Value) Add(other *Value) *Value {
	return newOp(v.data+other.data, OpAdd, v, other)
}

// Mul creates node z = x * y.
// Local derivatives: dz/dx = y, dz/dy = x.
func (v *Value) Mul(other *Value) *Value {
	return newOp(v.data*other.data, OpMul, v, other)
}

// Pow creates node z = x^p where p is itself a node.
// Local derivative: dz/dx = p * x^(p-1).
//
// The exponent receives no gradient even when it is trainable; dz/dp is
// never accumulated.
func (v *Value) Pow(exponent *Value) *Value {
	return newOp(math.Pow(v.data, exponent.data), OpPow, v, exponent)
}

// Neg returns -v, built as v * (-1).
func (v *Value) Neg() *Value {
	return v.Mul(Const(-1))
}

// Sub returns v - other, built as v + (-other).
func (v *Value) Sub(other *Value) *Value {
	return v.Add(other.Neg())
}

// Div returns v / other, built as v * other^(-1). Division by zero is not
// guarded and yields Inf or NaN.
func (v *Value) Div(other *Value) *Value {
	return v.Mul(other.Pow(Const(-1)))
}

// ReLU applies max(0, x).
// Local derivative: 1 when the output is positive, otherwise 0 (including x == 0).
func (v *Value) ReLU() *Value {
	data := v.data
	if data < 0 {
		data = 0
	}
	return newOp(data, OpReLU, v, nil)
}

// Tanh applies the hyperbolic tangent through (e^2x - 1) / (e^2x + 1).
// Local derivative: 1 - tanh(x)^2.
func (v *Value) Tanh() *Value {
	e := math.Exp(2 * v.data)
	return newOp((e-1)/(e+1), OpTanh, v, nil)
}

// Sigmoid applies 1 / (1 + e^-x).
// Local derivative: s * (1 - s).
func (v *Value) Sigmoid() *Value {
	return newOp(1/(1+math.Exp(-v.data)), OpSigmoid, v, nil)
}

// Exp creates node z = e^x.
// Local derivative: dz/dx = e^x.
func (v *Value) Exp() *Value {
	return newOp(math.Exp(v.data), OpExp, v, nil)
}

// Log creates node z = ln(x).
// Local derivative: dz/dx = 1/x.
func (v *Value) Log() *Value {
	return newOp(math.Log(v.data), OpLog, v, nil)
}

// AddScalar returns v + s with s as a constant node.
func (v *Value) AddScalar(s float64) *Value {
	return v.Add(Const(s))
}

// MulScalar returns v * s with s as a constant node.
func (v *Value) MulScalar(s float64) *Value {
	return v.Mul(Const(s))
}

// PowScalar returns v^p with p as a constant node.
func (v *Value) PowScalar(p float64) *Value {
	return v.Pow(Const(p))
}

// Sum adds values left to right starting from a zero constant.
func Sum(vs ...*Value) *Value {
	total := Const(0)
	for _, v := range vs {
		total = total.Add(v)
	}
	return total
}

// Dot returns sum_i a[i]*b[i]. It panics if the lengths differ.
func Dot(a, b []*Value) *Value {
	if len(a) != len(b) {
		panic("autograd: Dot length mismatch")
	}
	total := Const(0)
	for i := range a {
		total = total.Add(a[i].Mul(b[i]))
	}
	return total
}

// RunBackwardRule applies v's local derivative once, adding into the
// gradients of its operands. Calling it twice double-counts.
//
// Rules only read v.grad, v.data and operand data, and only ever add to
// operand gradients.
func (v *Value) RunBackwardRule() {
	a, b := v.operands[0], v.operands[1]
	g := v.grad
	switch v.op {
	case OpAdd:
		a.grad += g
		b.grad += g
	case OpMul:
		a.grad += b.data * g
		b.grad += a.data * g
	case OpPow:
		a.grad += b.data * math.Pow(a.data, b.data-1) * g
	case OpReLU:
		step := 0.0
		if v.data > 0 {
			step = 1
		}
		a.grad += step * g
	case OpTanh:
		a.grad += (1 - v.data*v.data) * g
	case OpSigmoid:
		a.grad += v.data * (1 - v.data) * g
	case OpExp:
		a.grad += v.data * g
	case OpLog:
		a.grad += g / a.data
	}
}
