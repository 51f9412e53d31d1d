package symbol

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ============================================================
// Binary Operators
// ============================================================

// BinaryOp selects the operation of a Binary node.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpPower
	OpMatMul
	OpMinimum
	OpMaximum
)

var binaryOpNames = [...]string{"+", "-", "*", "/", "**", "@", "minimum", "maximum"}

func (o BinaryOp) String() string { return binaryOpNames[o] }

func (o BinaryOp) apply(a, b float64) float64 {
	switch o {
	case OpAdd:
		return a + b
	case OpSubtract:
		return a - b
	case OpMultiply:
		return a * b
	case OpDivide:
		return a / b
	case OpPower:
		return math.Pow(a, b)
	case OpMinimum:
		return math.Min(a, b)
	case OpMaximum:
		return math.Max(a, b)
	}
	return math.NaN()
}

// Binary is an elementwise arithmetic node or a matrix product.
type Binary struct {
	base
	op BinaryOp
}

// NewBinary builds a Binary node without any simplification. Its domains are
// those of the first child with a non-empty domain.
func NewBinary(op BinaryOp, left, right Expr) *Binary {
	d := left.Domains()
	if d.IsEmpty() {
		d = right.Domains()
	}
	return &Binary{base: newBase(op.String(), d, left, right), op: op}
}

func (b *Binary) Kind() Kind   { return KindBinary }
func (b *Binary) Op() BinaryOp { return b.op }
func (b *Binary) Left() Expr   { return b.children[0] }
func (b *Binary) Right() Expr  { return b.children[1] }
func (b *Binary) clone() Expr  { c := *b; c.id = newID(); return &c }

func (b *Binary) String() string {
	if b.op == OpMinimum || b.op == OpMaximum {
		return fmt.Sprintf("%s(%s, %s)", b.op, b.Left(), b.Right())
	}
	return fmt.Sprintf("(%s %s %s)", b.Left(), b.op, b.Right())
}

func (b *Binary) evaluate(env *Env) (*mat.Dense, error) {
	l, err := b.Left().evaluate(env)
	if err != nil {
		return nil, err
	}
	r, err := b.Right().evaluate(env)
	if err != nil {
		return nil, err
	}
	if b.op == OpMatMul {
		return matMul(l, r)
	}
	return broadcastApply(l, r, b.op.apply)
}

// ============================================================
// Unary Operators
// ============================================================

// UnaryOp selects the operation of a Unary node.
type UnaryOp int

const (
	OpNegate UnaryOp = iota
	OpAbs
	OpSign
	OpFloor
	OpCeiling
)

var unaryOpNames = [...]string{"-", "abs", "sign", "floor", "ceil"}

func (o UnaryOp) String() string { return unaryOpNames[o] }

// Unary is an elementwise operator with one child.
type Unary struct {
	base
	op UnaryOp
}

func NewUnary(op UnaryOp, child Expr) *Unary {
	return &Unary{base: newBase(op.String(), child.Domains(), child), op: op}
}

func (u *Unary) Kind() Kind  { return KindUnary }
func (u *Unary) Op() UnaryOp { return u.op }
func (u *Unary) Child() Expr { return u.children[0] }
func (u *Unary) clone() Expr { c := *u; c.id = newID(); return &c }

func (u *Unary) String() string {
	if u.op == OpNegate {
		return "-" + u.Child().String()
	}
	return fmt.Sprintf("%s(%s)", u.op, u.Child())
}

func (u *Unary) evaluate(env *Env) (*mat.Dense, error) {
	v, err := u.Child().evaluate(env)
	if err != nil {
		return nil, err
	}
	var f func(float64) float64
	switch u.op {
	case OpNegate:
		f = func(x float64) float64 { return -x }
	case OpAbs:
		f = math.Abs
	case OpSign:
		f = sign
	case OpFloor:
		f = math.Floor
	case OpCeiling:
		f = math.Ceil
	}
	return applyElementwise(v, f), nil
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// ============================================================
// Functions
// ============================================================

var functionTable = map[string]func(float64) float64{
	"exp":     math.Exp,
	"log":     math.Log,
	"sin":     math.Sin,
	"cos":     math.Cos,
	"tan":     math.Tan,
	"sinh":    math.Sinh,
	"cosh":    math.Cosh,
	"tanh":    math.Tanh,
	"arcsinh": math.Asinh,
	"sqrt":    math.Sqrt,
}

// IsFunctionName reports whether name is a known elementwise function.
func IsFunctionName(name string) bool {
	_, ok := functionTable[name]
	return ok
}

// FunctionNames returns the known elementwise function names, sorted.
func FunctionNames() []string {
	names := make([]string, 0, len(functionTable))
	for name := range functionTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Function applies a named elementwise function to its child.
type Function struct {
	base
	fn func(float64) float64
}

// FunctionOf applies the named function to arg. Constant scalar arguments are
// folded. It panics for an unknown name; use IsFunctionName to check first.
func FunctionOf(name string, arg Expr) Expr {
	fn, ok := functionTable[name]
	if !ok {
		panic("symbol: unknown function " + name)
	}
	if s, ok := arg.(*Scalar); ok {
		return NewScalar(fn(s.value))
	}
	return &Function{base: newBase(name, arg.Domains(), arg), fn: fn}
}

func ExpOf(x Expr) Expr  { return FunctionOf("exp", x) }
func LogOf(x Expr) Expr  { return FunctionOf("log", x) }
func SqrtOf(x Expr) Expr { return FunctionOf("sqrt", x) }
func TanhOf(x Expr) Expr { return FunctionOf("tanh", x) }

func (f *Function) Kind() Kind     { return KindFunction }
func (f *Function) Child() Expr    { return f.children[0] }
func (f *Function) String() string { return fmt.Sprintf("%s(%s)", f.name, f.Child()) }
func (f *Function) clone() Expr    { c := *f; c.id = newID(); return &c }

func (f *Function) evaluate(env *Env) (*mat.Dense, error) {
	v, err := f.Child().evaluate(env)
	if err != nil {
		return nil, err
	}
	return applyElementwise(v, f.fn), nil
}

// ============================================================
// Index
// ============================================================

// Index selects rows [start, end) of its child.
type Index struct {
	base
	start, end int
}

func IndexOf(child Expr, start, end int) *Index {
	return &Index{base: newBase(fmt.Sprintf("index[%d:%d]", start, end), Domains{}, child), start: start, end: end}
}

func (i *Index) Kind() Kind              { return KindIndex }
func (i *Index) Child() Expr             { return i.children[0] }
func (i *Index) Range() (start, end int) { return i.start, i.end }
func (i *Index) clone() Expr             { c := *i; c.id = newID(); return &c }

func (i *Index) String() string {
	return fmt.Sprintf("%s[%d:%d]", i.Child(), i.start, i.end)
}

func (i *Index) evaluate(env *Env) (*mat.Dense, error) {
	v, err := i.Child().evaluate(env)
	if err != nil {
		return nil, err
	}
	r, c := v.Dims()
	if i.start < 0 || i.end > r || i.start >= i.end {
		return nil, fmt.Errorf("%w: index %d:%d out of range for %d rows", ErrShape, i.start, i.end, r)
	}
	return mat.DenseCopyOf(v.Slice(i.start, i.end, 0, c)), nil
}

// ============================================================
// Builders
// ============================================================

// AddOf returns left + right, dropping zero terms and folding scalars.
func AddOf(left, right Expr) Expr {
	switch {
	case isScalarValue(left, 0):
		return right
	case isScalarValue(right, 0):
		return left
	}
	return fold(NewBinary(OpAdd, left, right))
}

// SubOf returns left - right.
func SubOf(left, right Expr) Expr {
	switch {
	case isScalarValue(right, 0):
		return left
	case isScalarValue(left, 0):
		return NegOf(right)
	}
	return fold(NewBinary(OpSubtract, left, right))
}

// MulOf returns left * right, dropping unit factors and folding scalars.
func MulOf(left, right Expr) Expr {
	switch {
	case isScalarValue(left, 1):
		return right
	case isScalarValue(right, 1):
		return left
	}
	return fold(NewBinary(OpMultiply, left, right))
}

// DivOf returns left / right.
func DivOf(left, right Expr) Expr {
	if isScalarValue(right, 1) {
		return left
	}
	return fold(NewBinary(OpDivide, left, right))
}

// PowOf returns base ** exp.
func PowOf(b, exp Expr) Expr {
	if isScalarValue(exp, 1) {
		return b
	}
	return fold(NewBinary(OpPower, b, exp))
}

// MatMulOf returns the matrix product left @ right.
func MatMulOf(left, right Expr) Expr { return NewBinary(OpMatMul, left, right) }

func MinOf(left, right Expr) Expr { return fold(NewBinary(OpMinimum, left, right)) }
func MaxOf(left, right Expr) Expr { return fold(NewBinary(OpMaximum, left, right)) }

// NegOf returns -x.
func NegOf(x Expr) Expr {
	switch v := x.(type) {
	case *Scalar:
		return NewScalar(-v.value)
	case *Unary:
		if v.op == OpNegate {
			return v.Child()
		}
	}
	return NewUnary(OpNegate, x)
}

func AbsOf(x Expr) Expr { return NewUnary(OpAbs, x) }

// fold replaces a binary node of two scalars by its value.
func fold(b *Binary) Expr {
	l, lok := b.Left().(*Scalar)
	r, rok := b.Right().(*Scalar)
	if lok && rok {
		return NewScalar(b.op.apply(l.value, r.value))
	}
	return b
}

func isScalarValue(e Expr, v float64) bool {
	s, ok := e.(*Scalar)
	return ok && s.value == v
}

// BinaryOf builds op over left and right through the matching builder.
func BinaryOf(op BinaryOp, left, right Expr) Expr {
	switch op {
	case OpAdd:
		return AddOf(left, right)
	case OpSubtract:
		return SubOf(left, right)
	case OpMultiply:
		return MulOf(left, right)
	case OpDivide:
		return DivOf(left, right)
	case OpPower:
		return PowOf(left, right)
	case OpMatMul:
		return MatMulOf(left, right)
	case OpMinimum:
		return MinOf(left, right)
	case OpMaximum:
		return MaxOf(left, right)
	}
	return NewBinary(op, left, right)
}
