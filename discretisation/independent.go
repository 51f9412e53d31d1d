package discretisation

import (
	"context"

	"github.com/njchilds90/godisc/internal/ctxlog"
	"github.com/njchilds90/godisc/model"
	"github.com/njchilds90/godisc/symbol"
)

// RemoveIndependentVariablesFromRHS drops from the rhs every domainless
// variable that no equation, boundary condition or output depends on. Its
// outputs become an explicit time integral of its rate, so the value is still
// reported without a state entry. At least one rhs equation is always kept.
func (d *Discretisation) RemoveIndependentVariablesFromRHS(ctx context.Context, m *model.Model) {
	log := ctxlog.FromContext(ctx)

	eqns := append(m.RHS.Values(), m.Algebraic.Values()...)
	for _, owner := range m.BoundaryConditions.Owners() {
		sides, _ := m.BoundaryConditions.Get(owner.ID())
		for _, side := range sides.Sides() {
			eqns = append(eqns, sides[side].Expr)
		}
	}
	for _, name := range m.Variables.Names() {
		out, _ := m.Variables.Get(name)
		eqns = append(eqns, out.Children()...)
	}
	used := map[string]bool{}
	for _, name := range symbol.VariableNames(eqns...) {
		used[name] = true
	}

	for _, k := range m.RHS.Keys() {
		v, ok := k.(*symbol.Variable)
		if !ok || used[v.Name()] || !v.Domains().IsEmpty() {
			continue
		}
		if _, ok := d.slices[v.ID()]; ok {
			continue
		}
		if _, ok := d.cache[v.ID()]; ok {
			continue
		}
		if m.RHS.Len() == 1 {
			break
		}

		log.Info("Remove independent variable from rhs", "variable", v.Name())
		rhs, _ := m.RHS.Get(v.ID())
		ic, _ := m.InitialConditions.Get(v.ID())
		integral := symbol.NewExplicitTimeIntegral(rhs, ic)
		for _, name := range m.Variables.Names() {
			if out, _ := m.Variables.Get(name); out.ID() == v.ID() {
				m.Variables.Set(name, integral)
			}
		}
		m.Variables.Set(v.Name(), integral)
		m.RHS.Delete(v.ID())
		m.InitialConditions.Delete(v.ID())
	}
}
