package spatial

import (
	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/godisc/symbol"
)

// ZeroDimensional is the method for point domains such as a lumped current
// collector. Integrals and boundary values are the identity.
type ZeroDimensional struct {
	Base
}

func NewZeroDimensional() *ZeroDimensional { return &ZeroDimensional{} }

var _ Method = (*ZeroDimensional)(nil)

func (z *ZeroDimensional) Integral(_, disc symbol.Expr, _ *symbol.Integral) (symbol.Expr, error) {
	return disc, nil
}

// IndefiniteIntegral is the identity forward and its negation backward.
func (z *ZeroDimensional) IndefiniteIntegral(_, disc symbol.Expr, backward bool) (symbol.Expr, error) {
	if backward {
		return symbol.NegOf(disc), nil
	}
	return disc, nil
}

func (z *ZeroDimensional) BoundaryValueOrFlux(_ *symbol.BoundaryOperator, disc symbol.Expr, _ *symbol.BoundaryConditions) (symbol.Expr, error) {
	return disc, nil
}

func (z *ZeroDimensional) MassMatrix(symbol.Expr, *symbol.BoundaryConditions) (symbol.Expr, error) {
	return symbol.NewMatrix(mat.NewDense(1, 1, []float64{1})), nil
}
