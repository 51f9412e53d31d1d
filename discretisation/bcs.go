package discretisation

import (
	"context"
	"fmt"
	"strings"

	"github.com/njchilds90/godisc/internal/ctxlog"
	"github.com/njchilds90/godisc/mesh"
	"github.com/njchilds90/godisc/model"
	"github.com/njchilds90/godisc/symbol"
)

// CurrentCollector is the only domain that accepts tab boundary conditions.
const CurrentCollector = "current collector"

// processBoundaryConditions discretises the expression of every boundary
// condition of m, keeping the type. Tab conditions are moved to left and
// right on 1D meshes.
func (d *Discretisation) processBoundaryConditions(ctx context.Context, m *model.Model) (*symbol.BoundaryConditions, error) {
	log := ctxlog.FromContext(ctx)
	external := map[symbol.ID]bool{}
	for _, v := range m.ExternalVariables {
		external[v.ID()] = true
	}

	out := symbol.NewBoundaryConditions()
	for _, owner := range m.BoundaryConditions.Owners() {
		sides, _ := m.BoundaryConditions.Get(owner.ID())
		if !external[owner.ID()] {
			if err := d.checkSphericalOrigin(owner, sides); err != nil {
				return nil, err
			}
		}
		if hasTabSide(sides) {
			var err error
			if sides, err = d.checkTabConditions(owner, sides); err != nil {
				return nil, err
			}
		}

		processed := symbol.SideConditions{}
		for _, side := range sides.Sides() {
			bc := sides[side]
			log.Debug("Discretise boundary condition", "variable", owner.Name(), "side", side, "type", bc.Type)
			disc, err := d.ProcessSymbol(bc.Expr)
			if err != nil {
				return nil, fmt.Errorf("%s boundary condition of %q: %w", side, owner.Name(), err)
			}
			processed[side] = symbol.BoundaryCondition{Expr: disc, Type: bc.Type}
		}
		out.Set(owner, processed)
	}
	return out, nil
}

// checkSphericalOrigin requires a homogeneous Neumann condition on the left
// of every spherical polar subdomain of owner.
func (d *Discretisation) checkSphericalOrigin(owner symbol.Expr, sides symbol.SideConditions) error {
	left, ok := sides[symbol.SideLeft]
	if !ok {
		return nil
	}
	for _, name := range owner.Domains().Primary {
		sub, err := d.mesh.Get(name)
		if err != nil {
			return err
		}
		if sub.CoordSys != mesh.SphericalPolar {
			continue
		}
		s, isScalar := left.Expr.(*symbol.Scalar)
		if !isScalar || s.Value() != 0 || left.Type != symbol.Neumann {
			return model.Errorf(owner.Name(), "boundary condition at r = 0 must be a homogeneous Neumann condition for %s coordinates", sub.CoordSys)
		}
	}
	return nil
}

func hasTabSide(sides symbol.SideConditions) bool {
	for side := range sides {
		if strings.Contains(side, "tab") {
			return true
		}
	}
	return false
}

// checkTabConditions moves conditions set on "negative tab" and "positive
// tab" to the side where the 1D mesh records each tab. The side left
// uncovered takes the "no tab" condition. Tabs on other meshes are kept.
func (d *Discretisation) checkTabConditions(owner symbol.Expr, sides symbol.SideConditions) (symbol.SideConditions, error) {
	dom := owner.Domains()
	if dom.IsEmpty() || dom.Primary[0] != CurrentCollector {
		return nil, model.Errorf(owner.Name(), "boundary conditions can only be applied on the tabs in the domain %q, but %s has domain %v", CurrentCollector, owner, dom.Primary)
	}
	sub, err := d.mesh.Get(CurrentCollector)
	if err != nil {
		return nil, err
	}
	if sub.Dimension != 1 {
		return sides, nil
	}

	out := symbol.SideConditions{}
	for side, bc := range sides {
		out[side] = bc
	}
	for _, tab := range []string{symbol.SideNegativeTab, symbol.SidePositiveTab} {
		bc, ok := out[tab]
		if !ok {
			continue
		}
		target, ok := sub.Tabs[tab]
		if !ok {
			return nil, fmt.Errorf("%w: current collector mesh records no %s", mesh.ErrMesh, tab)
		}
		delete(out, tab)
		out[target] = bc
	}
	_, hasLeft := out[symbol.SideLeft]
	_, hasRight := out[symbol.SideRight]
	if hasLeft && hasRight {
		delete(out, symbol.SideNoTab)
		return out, nil
	}
	noTab, ok := out[symbol.SideNoTab]
	if !ok {
		return nil, model.Errorf(owner.Name(), "a %q condition is needed for the side without a tab", symbol.SideNoTab)
	}
	delete(out, symbol.SideNoTab)
	if hasLeft {
		out[symbol.SideRight] = noTab
	} else {
		out[symbol.SideLeft] = noTab
	}
	return out, nil
}

// remapTabs relabels, in the discretised table, the tab conditions of every
// owner on e's primary domain. Relabelling clears the rewrite cache.
func (d *Discretisation) remapTabs(e symbol.Expr) error {
	changed := false
	for _, owner := range d.bcs.Owners() {
		sides, _ := d.bcs.Get(owner.ID())
		if !hasTabSide(sides) || !sameDomain(owner.Domains().Primary, e.Domains().Primary) {
			continue
		}
		remapped, err := d.checkTabConditions(owner, sides)
		if err != nil {
			return err
		}
		if hasTabSide(remapped) {
			continue
		}
		d.bcs.Set(owner, remapped)
		changed = true
	}
	if changed {
		d.resetCache()
	}
	return nil
}

func sameDomain(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// setInternalBoundaryConditions adds, for every concatenated owner, a pair
// of conditions to each piece: the outer conditions at the ends and the
// gradient across each junction in between. Pieces with conditions of their
// own are left alone.
func (d *Discretisation) setInternalBoundaryConditions(ctx context.Context, m *model.Model) error {
	log := ctxlog.FromContext(ctx)
	explicit := map[symbol.ID]bool{}
	for _, owner := range d.bcs.Owners() {
		explicit[owner.ID()] = true
	}

	internal := symbol.NewBoundaryConditions()
	for _, owner := range m.BoundaryConditions.Owners() {
		switch owner.Kind() {
		case symbol.KindConcatenation, symbol.KindConcatenationVariable:
		default:
			continue
		}
		children := owner.Children()
		if len(children) < 2 {
			continue
		}
		outer, _ := d.bcs.Get(owner.ID())
		left, ok := outer[symbol.SideLeft]
		if !ok {
			return model.Errorf(owner.Name(), "no left boundary condition for concatenated variable")
		}
		right, ok := outer[symbol.SideRight]
		if !ok {
			return model.Errorf(owner.Name(), "no right boundary condition for concatenated variable")
		}

		lbc := left
		for i, child := range children {
			rbc := right
			if i < len(children)-1 {
				log.Debug("Calculate boundary gradient", "left", child.Name(), "right", children[i+1].Name())
				g, err := d.junctionGradient(child, children[i+1])
				if err != nil {
					return err
				}
				rbc = symbol.BoundaryCondition{Expr: g, Type: symbol.Neumann}
			}
			if !explicit[child.ID()] {
				internal.Set(child, symbol.SideConditions{symbol.SideLeft: lbc, symbol.SideRight: rbc})
			}
			lbc = rbc
		}
	}

	if internal.Len() == 0 {
		return nil
	}
	for _, owner := range internal.Owners() {
		sides, _ := internal.Get(owner.ID())
		d.bcs.Set(owner, sides)
	}
	d.resetCache()
	return nil
}

// junctionGradient is the gradient between the last node of left and the
// first node of right, computed by left's spatial method.
func (d *Discretisation) junctionGradient(left, right symbol.Expr) (symbol.Expr, error) {
	method, err := d.methodOf(left)
	if err != nil {
		return nil, err
	}
	leftMesh, err := d.mesh.Get(left.Domains().Primary[0])
	if err != nil {
		return nil, err
	}
	rightMesh, err := d.mesh.Get(right.Domains().Primary[0])
	if err != nil {
		return nil, err
	}
	leftDisc, err := d.ProcessSymbol(left)
	if err != nil {
		return nil, err
	}
	rightDisc, err := d.ProcessSymbol(right)
	if err != nil {
		return nil, err
	}
	return method.InternalNeumannCondition(leftDisc, rightDisc, leftMesh, rightMesh)
}
