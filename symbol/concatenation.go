package symbol

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ============================================================
// Concatenations
// ============================================================

// Concatenation joins expressions on adjacent subdomains. It is continuous;
// a spatial method turns it into a DomainConcatenation.
type Concatenation struct{ base }

func ConcatenationOf(children ...Expr) *Concatenation {
	return &Concatenation{base: newBase("concatenation", unionDomains(children), children...)}
}

func (c *Concatenation) Kind() Kind     { return KindConcatenation }
func (c *Concatenation) String() string { return joinChildren("concatenation", c.children) }
func (c *Concatenation) clone() Expr    { d := *c; d.id = newID(); return &d }
func (c *Concatenation) evaluate(*Env) (*mat.Dense, error) {
	return nil, notDiscretised(c)
}

// NumpyConcatenation stacks its children's values vertically.
type NumpyConcatenation struct{ base }

func NumpyConcatenationOf(children ...Expr) *NumpyConcatenation {
	return &NumpyConcatenation{base: newBase("numpy concatenation", Domains{}, children...)}
}

func (c *NumpyConcatenation) Kind() Kind     { return KindNumpyConcatenation }
func (c *NumpyConcatenation) String() string { return joinChildren("numpy_concatenation", c.children) }
func (c *NumpyConcatenation) clone() Expr    { d := *c; d.id = newID(); return &d }

func (c *NumpyConcatenation) evaluate(env *Env) (*mat.Dense, error) {
	parts := make([]*mat.Dense, 0, len(c.children))
	for _, ch := range c.children {
		v, err := ch.evaluate(env)
		if err != nil {
			return nil, err
		}
		parts = append(parts, v)
	}
	return vstack(parts)
}

// DomainConcatenation interleaves its children block by block: for each of
// Repeats auxiliary points, it takes BlockSizes[i] rows from child i in turn.
type DomainConcatenation struct {
	base
	blockSizes []int
	repeats    int
}

// NewDomainConcatenation joins discretised children on adjacent subdomains.
// blockSizes[i] is the number of rows child i contributes per repeat.
func NewDomainConcatenation(children []Expr, blockSizes []int, repeats int) *DomainConcatenation {
	if len(blockSizes) != len(children) {
		panic("symbol: NewDomainConcatenation needs one block size per child")
	}
	if repeats < 1 {
		repeats = 1
	}
	return &DomainConcatenation{
		base:       newBase("domain concatenation", unionDomains(children), children...),
		blockSizes: append([]int(nil), blockSizes...),
		repeats:    repeats,
	}
}

func (c *DomainConcatenation) Kind() Kind        { return KindDomainConcatenation }
func (c *DomainConcatenation) BlockSizes() []int { return c.blockSizes }
func (c *DomainConcatenation) Repeats() int      { return c.repeats }
func (c *DomainConcatenation) clone() Expr       { d := *c; d.id = newID(); return &d }
func (c *DomainConcatenation) String() string {
	return joinChildren("domain_concatenation", c.children)
}

// Size is the total number of rows.
func (c *DomainConcatenation) Size() int {
	n := 0
	for _, b := range c.blockSizes {
		n += b
	}
	return n * c.repeats
}

func (c *DomainConcatenation) evaluate(env *Env) (*mat.Dense, error) {
	vals := make([]*mat.Dense, len(c.children))
	for i, ch := range c.children {
		v, err := ch.evaluate(env)
		if err != nil {
			return nil, err
		}
		if r, _ := v.Dims(); r != c.blockSizes[i]*c.repeats {
			return nil, fmt.Errorf("%w: %s child %d has %d rows, want %d", ErrShape, c.name, i, r, c.blockSizes[i]*c.repeats)
		}
		vals[i] = v
	}
	out := make([]float64, 0, c.Size())
	for k := 0; k < c.repeats; k++ {
		for i, v := range vals {
			b := c.blockSizes[i]
			for row := k * b; row < (k+1)*b; row++ {
				out = append(out, v.At(row, 0))
			}
		}
	}
	return mat.NewDense(len(out), 1, out), nil
}

// ============================================================
// Explicit Time Integral
// ============================================================

// ExplicitTimeIntegral stands for the time integral of rhs starting from
// initial. It replaces a state variable that no other equation depends on,
// so the value can be computed after the solve.
type ExplicitTimeIntegral struct{ base }

func NewExplicitTimeIntegral(rhs, initial Expr) *ExplicitTimeIntegral {
	return &ExplicitTimeIntegral{base: newBase("explicit time integral", rhs.Domains(), rhs, initial)}
}

func (e *ExplicitTimeIntegral) Kind() Kind    { return KindExplicitTimeIntegral }
func (e *ExplicitTimeIntegral) RHS() Expr     { return e.children[0] }
func (e *ExplicitTimeIntegral) Initial() Expr { return e.children[1] }
func (e *ExplicitTimeIntegral) clone() Expr   { c := *e; c.id = newID(); return &c }
func (e *ExplicitTimeIntegral) String() string {
	return fmt.Sprintf("explicit_time_integral(%s, %s)", e.RHS(), e.Initial())
}

// evaluate returns the initial value in shape tests; otherwise the value is
// only known after integration.
func (e *ExplicitTimeIntegral) evaluate(env *Env) (*mat.Dense, error) {
	if env.ShapeTest {
		return e.Initial().evaluate(env)
	}
	return nil, fmt.Errorf("%w: explicit time integral is computed after the solve", ErrNotDiscretised)
}

func joinChildren(name string, children []Expr) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}
