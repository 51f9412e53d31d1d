package discretisation

import (
	"github.com/njchilds90/godisc/model"
	"github.com/njchilds90/godisc/symbol"
)

// CheckModel checks a discretised model: initial conditions must be numeric,
// within bounds and shaped like their equations, and outputs named after an
// rhs variable must be shaped like its equation.
func (d *Discretisation) CheckModel(m *model.Model) error {
	if err := checkInitialConditions(m); err != nil {
		return err
	}
	return checkVariables(m)
}

func checkInitialConditions(m *model.Model) error {
	for _, k := range m.InitialConditions.Keys() {
		eq, _ := m.InitialConditions.Get(k.ID())
		v, err := symbol.Evaluate(eq, &symbol.Env{InputsForShape: true})
		if err != nil {
			return model.Errorf(k.Name(), "initial conditions must be numeric after discretisation: %v", err)
		}
		if symbol.HasKind(eq, symbol.KindInputParameter) {
			continue
		}
		lo, hi := k.Bounds()
		r, c := v.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if x := v.At(i, j); !(lo <= x && x <= hi) {
					return model.Errorf(k.Name(), "initial condition is outside of variable bounds [%g, %g]: %g", lo, hi, x)
				}
			}
		}
	}

	for _, pair := range []struct {
		name string
		eqs  *model.Equations
	}{{"rhs", m.RHS}, {"algebraic", m.Algebraic}} {
		for _, k := range pair.eqs.Keys() {
			eq, _ := pair.eqs.Get(k.ID())
			ic, ok := m.InitialConditions.Get(k.ID())
			if !ok {
				return model.Errorf(k.Name(), "no initial condition given")
			}
			er, ec, err := symbol.Shape(eq)
			if err != nil {
				return err
			}
			ir, icc, err := symbol.Shape(ic)
			if err != nil {
				return err
			}
			if er != ir || ec != icc {
				return model.Errorf(k.Name(), "%s and initial conditions must have the same shape after discretisation but %s is (%d, %d) and initial conditions are (%d, %d)", pair.name, pair.name, er, ec, ir, icc)
			}
		}
	}
	return nil
}

// checkVariables compares each output that shares its name with an rhs
// variable against that variable's equation. Concatenations and products
// with a vector of ones may differ in shape.
func checkVariables(m *model.Model) error {
	for _, k := range m.RHS.Keys() {
		out, ok := m.Variables.Get(k.Name())
		if !ok {
			continue
		}
		eq, _ := m.RHS.Get(k.ID())
		er, ec, err := symbol.Shape(eq)
		if err != nil {
			return err
		}
		or, oc, err := symbol.Shape(out)
		if err != nil {
			return err
		}
		if (er == or && ec == oc) || isConcatenation(out) || isOnesProduct(out) {
			continue
		}
		return model.Errorf(k.Name(), "variable and its equation must have the same shape after discretisation but the variable is (%d, %d) and rhs is (%d, %d)", or, oc, er, ec)
	}
	return nil
}

func isConcatenation(e symbol.Expr) bool {
	switch e.Kind() {
	case symbol.KindConcatenation, symbol.KindNumpyConcatenation, symbol.KindDomainConcatenation:
		return true
	}
	return false
}

// isOnesProduct reports whether e multiplies by a matrix of ones, as a
// discretised broadcast does.
func isOnesProduct(e symbol.Expr) bool {
	bin, ok := e.(*symbol.Binary)
	if !ok || (bin.Op() != symbol.OpMultiply && bin.Op() != symbol.OpMatMul) {
		return false
	}
	return isOnes(bin.Left()) || isOnes(bin.Right())
}

func isOnes(e symbol.Expr) bool {
	switch v := e.(type) {
	case *symbol.Scalar:
		return v.Value() == 1
	case *symbol.Array:
		r, c := v.Data().Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if v.Data().At(i, j) != 1 {
					return false
				}
			}
		}
		return true
	}
	return false
}
