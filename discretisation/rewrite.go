package discretisation

import (
	"fmt"

	"github.com/njchilds90/godisc/model"
	"github.com/njchilds90/godisc/spatial"
	"github.com/njchilds90/godisc/symbol"
)

// ProcessSymbol returns the discretised form of e. Results are cached by
// node ID, so discretising the same node twice returns the same value until
// the slices or boundary conditions change. Every result passes a shape check
// and is tagged with the meshes of e's primary and secondary domains.
func (d *Discretisation) ProcessSymbol(e symbol.Expr) (symbol.Expr, error) {
	if out, ok := d.cache[e.ID()]; ok {
		return out, nil
	}
	out, err := d.rewrite(e)
	if err != nil {
		return nil, err
	}
	if err := symbol.TestShape(out); err != nil {
		return nil, fmt.Errorf("discretising %s: %w", e, err)
	}
	primary, err := d.mesh.Lookup(e.Domains().Primary)
	if err != nil {
		return nil, err
	}
	secondary, err := d.mesh.Lookup(e.Domains().Secondary)
	if err != nil {
		return nil, err
	}
	out.SetMeshes(primary, secondary)
	d.cache[e.ID()] = out
	return out, nil
}

// rewriteRule discretises one kind of node.
type rewriteRule func(d *Discretisation, e symbol.Expr) (symbol.Expr, error)

var rules map[symbol.Kind]rewriteRule

func init() {
	rules = map[symbol.Kind]rewriteRule{
		symbol.KindScalar:              passThrough,
		symbol.KindArray:               passThrough,
		symbol.KindTime:                passThrough,
		symbol.KindParameter:           passThrough,
		symbol.KindStateVector:         passThrough,
		symbol.KindStateVectorDot:      passThrough,
		symbol.KindExternalVariable:    passThrough,
		symbol.KindDomainConcatenation: passThrough,

		symbol.KindBinary:               rewriteBinary,
		symbol.KindUnary:                rewriteStructural,
		symbol.KindFunction:             rewriteStructural,
		symbol.KindIndex:                rewriteStructural,
		symbol.KindNumpyConcatenation:   rewriteStructural,
		symbol.KindExplicitTimeIntegral: rewriteStructural,

		symbol.KindAverage:                rewriteAverage,
		symbol.KindSpatialOperator:        rewriteSpatialOperator,
		symbol.KindIntegral:               rewriteIntegral,
		symbol.KindIndefiniteIntegral:     rewriteIndefiniteIntegral,
		symbol.KindDefiniteIntegralVector: rewriteDefiniteIntegralVector,
		symbol.KindBoundaryIntegral:       rewriteBoundaryIntegral,
		symbol.KindBroadcast:              rewriteBroadcast,
		symbol.KindDeltaFunction:          rewriteDeltaFunction,
		symbol.KindBoundaryOperator:       rewriteBoundaryOperator,

		symbol.KindVariableDot:           rewriteVariableDot,
		symbol.KindVariable:              rewriteVariable,
		symbol.KindSpatialVariable:       rewriteSpatialVariable,
		symbol.KindConcatenationVariable: rewriteConcatenationVariable,
		symbol.KindConcatenation:         rewriteConcatenation,
		symbol.KindInputParameter:        rewriteInputParameter,
	}
}

func (d *Discretisation) rewrite(e symbol.Expr) (symbol.Expr, error) {
	if !e.Domains().IsEmpty() {
		if _, err := d.methodOf(e); err != nil {
			return nil, err
		}
		if err := d.remapTabs(e); err != nil {
			return nil, err
		}
	}
	rule, ok := rules[e.Kind()]
	if !ok {
		return nil, fmt.Errorf("%w: no rewrite rule for %s node %s", ErrDiscretisation, e.Kind(), e)
	}
	return rule(d, e)
}

func (d *Discretisation) processAll(exprs []symbol.Expr) ([]symbol.Expr, error) {
	out := make([]symbol.Expr, len(exprs))
	for i, c := range exprs {
		disc, err := d.ProcessSymbol(c)
		if err != nil {
			return nil, err
		}
		out[i] = disc
	}
	return out, nil
}

// affine applies a state variable's map reference + scale*x.
func affine(v symbol.StateVariable, x symbol.Expr) symbol.Expr {
	return symbol.AddOf(v.Reference(), symbol.MulOf(v.Scale(), x))
}

// ============================================================
// Structural Rules
// ============================================================

// passThrough keeps leaves that need no discretisation.
func passThrough(_ *Discretisation, e symbol.Expr) (symbol.Expr, error) { return e, nil }

// rewriteStructural rebuilds e over its discretised children.
func rewriteStructural(d *Discretisation, e symbol.Expr) (symbol.Expr, error) {
	children, err := d.processAll(e.Children())
	if err != nil {
		return nil, err
	}
	return symbol.WithChildren(e, children...), nil
}

// rewriteBinary folds the rebuilt operator when e has no domain and
// otherwise lets the spatial method combine the operands.
func rewriteBinary(d *Discretisation, e symbol.Expr) (symbol.Expr, error) {
	bin := e.(*symbol.Binary)
	left, err := d.ProcessSymbol(bin.Left())
	if err != nil {
		return nil, err
	}
	right, err := d.ProcessSymbol(bin.Right())
	if err != nil {
		return nil, err
	}
	if bin.Domains().IsEmpty() {
		return symbol.SimplifyIfConstant(symbol.BinaryOf(bin.Op(), left, right)), nil
	}
	method, err := d.methodOf(bin)
	if err != nil {
		return nil, err
	}
	return method.ProcessBinaryOperators(bin, bin.Left(), bin.Right(), left, right)
}

// ============================================================
// Spatial Operator Rules
// ============================================================

// rewriteAverage turns an average into a ratio of integrals and
// discretises that.
func rewriteAverage(d *Discretisation, e symbol.Expr) (symbol.Expr, error) {
	avg := e.(*symbol.Average)
	child := avg.Child()
	vars := avg.IntegrationVariables()
	var ratio symbol.Expr
	if avg.IsSizeAverage() {
		w := avg.Weight()
		ratio = symbol.DivOf(symbol.IntegralOf(symbol.MulOf(w, child), vars...), symbol.IntegralOf(w, vars...))
	} else {
		var ones symbol.Expr = symbol.NewScalar(1)
		if !child.Domains().IsEmpty() {
			ones = symbol.FullBroadcast(ones, child.Domains())
		}
		ratio = symbol.DivOf(symbol.IntegralOf(child, vars...), symbol.IntegralOf(ones, vars...))
	}
	return d.ProcessSymbol(ratio)
}

// childAndMethod discretises the only child of e and returns the spatial
// method of the child's domain.
func (d *Discretisation) childAndMethod(child symbol.Expr) (symbol.Expr, spatial.Method, error) {
	disc, err := d.ProcessSymbol(child)
	if err != nil {
		return nil, nil, err
	}
	method, err := d.methodOf(child)
	if err != nil {
		return nil, nil, err
	}
	return disc, method, nil
}

func rewriteSpatialOperator(d *Discretisation, e symbol.Expr) (symbol.Expr, error) {
	op := e.(*symbol.SpatialOperator)
	child := op.Child()
	if op.Op() == symbol.OpNotConstant {
		return d.ProcessSymbol(child)
	}
	disc, method, err := d.childAndMethod(child)
	if err != nil {
		return nil, err
	}
	switch op.Op() {
	case symbol.OpGradient:
		return method.Gradient(child, disc, d.bcs)
	case symbol.OpDivergence:
		return method.Divergence(child, disc, d.bcs)
	case symbol.OpLaplacian:
		return method.Laplacian(child, disc, d.bcs)
	case symbol.OpGradientSquared:
		return method.GradientSquared(child, disc, d.bcs)
	case symbol.OpMass:
		return method.MassMatrix(child, d.bcs)
	case symbol.OpBoundaryMass:
		return method.BoundaryMassMatrix(child, d.bcs)
	case symbol.OpUpwind, symbol.OpDownwind:
		own, err := d.methodOf(op)
		if err != nil {
			return nil, err
		}
		return own.UpwindOrDownwind(child, disc, d.bcs, op.Op())
	}
	return nil, fmt.Errorf("%w: unknown spatial operator %s", ErrDiscretisation, op.Op())
}

// rewriteIntegral uses the method of the integration variable's domain and
// gives the result the integral's domains.
func rewriteIntegral(d *Discretisation, e symbol.Expr) (symbol.Expr, error) {
	in := e.(*symbol.Integral)
	child := in.Child()
	disc, err := d.ProcessSymbol(child)
	if err != nil {
		return nil, err
	}
	var method spatial.Method
	if vars := in.IntegrationVariables(); len(vars) > 0 {
		method, err = d.methodOf(vars[0])
	} else {
		method, err = d.methodOf(child)
	}
	if err != nil {
		return nil, err
	}
	out, err := method.Integral(child, disc, in)
	if err != nil {
		return nil, err
	}
	return symbol.WithDomains(out, in.Domains()), nil
}

func rewriteIndefiniteIntegral(d *Discretisation, e symbol.Expr) (symbol.Expr, error) {
	in := e.(*symbol.IndefiniteIntegral)
	disc, method, err := d.childAndMethod(in.Child())
	if err != nil {
		return nil, err
	}
	return method.IndefiniteIntegral(in.Child(), disc, in.Backward())
}

func rewriteDefiniteIntegralVector(d *Discretisation, e symbol.Expr) (symbol.Expr, error) {
	v := e.(*symbol.DefiniteIntegralVector)
	_, method, err := d.childAndMethod(v.Child())
	if err != nil {
		return nil, err
	}
	return method.DefiniteIntegralMatrix(v.Child(), v.VectorType())
}

func rewriteBoundaryIntegral(d *Discretisation, e symbol.Expr) (symbol.Expr, error) {
	b := e.(*symbol.BoundaryIntegral)
	disc, method, err := d.childAndMethod(b.Child())
	if err != nil {
		return nil, err
	}
	return method.BoundaryIntegral(b.Child(), disc, b.Region())
}

// rewriteBroadcast uses the method of the broadcast's own domain, which may
// differ from the child's.
func rewriteBroadcast(d *Discretisation, e symbol.Expr) (symbol.Expr, error) {
	b := e.(*symbol.Broadcast)
	disc, err := d.ProcessSymbol(b.Child())
	if err != nil {
		return nil, err
	}
	method, err := d.methodOf(b)
	if err != nil {
		return nil, err
	}
	return method.Broadcast(disc, b.Domains(), b.BroadcastKind())
}

func rewriteDeltaFunction(d *Discretisation, e symbol.Expr) (symbol.Expr, error) {
	df := e.(*symbol.DeltaFunction)
	disc, err := d.ProcessSymbol(df.Child())
	if err != nil {
		return nil, err
	}
	method, err := d.methodOf(df)
	if err != nil {
		return nil, err
	}
	return method.DeltaFunction(df, disc)
}

// rewriteBoundaryOperator reads tab sides as left or right on 1D meshes.
func rewriteBoundaryOperator(d *Discretisation, e symbol.Expr) (symbol.Expr, error) {
	op := e.(*symbol.BoundaryOperator)
	child := op.Child()
	disc, method, err := d.childAndMethod(child)
	if err != nil {
		return nil, err
	}
	if side := op.Side(); side == symbol.SideNegativeTab || side == symbol.SidePositiveTab {
		sub, err := d.mesh.Get(child.Domains().Primary[0])
		if err != nil {
			return nil, err
		}
		if sub.Dimension == 1 {
			target, ok := sub.Tabs[side]
			if !ok {
				return nil, model.Errorf(child.Name(), "mesh of %v records no %s", child.Domains().Primary, side)
			}
			op = op.WithSide(target)
		}
	}
	return method.BoundaryValueOrFlux(op, disc, d.bcs)
}

// ============================================================
// Variable Rules
// ============================================================

// stateVector returns the raw entries of v: the external placeholder when v
// is registered as external, else the state vector over v's slices.
func (d *Discretisation) stateVector(v *symbol.Variable) (symbol.Expr, error) {
	if ext, ok := d.external(v.ID()); ok {
		return d.processExternal(ext)
	}
	slices, ok := d.slices[v.ID()]
	if !ok {
		return nil, model.Errorf(v.Name(), "no key set for variable; make sure it is included in either rhs, algebraic or external variables in an unmodified form (e.g. not broadcasted)")
	}
	return symbol.NewStateVector(v.Name(), v.Domains(), slices...), nil
}

// rewriteVariable maps a state variable to reference + scale*y[slices]. An
// external variable becomes its placeholder, unscaled.
func rewriteVariable(d *Discretisation, e symbol.Expr) (symbol.Expr, error) {
	v := e.(*symbol.Variable)
	sv, err := d.stateVector(v)
	if err != nil {
		return nil, err
	}
	if _, ok := d.external(v.ID()); ok {
		return sv, nil
	}
	return affine(v, sv), nil
}

func rewriteVariableDot(d *Discretisation, e symbol.Expr) (symbol.Expr, error) {
	v := e.(*symbol.VariableDot).Variable()
	slices, ok := d.slices[v.ID()]
	if !ok {
		return nil, model.Errorf(v.Name(), "no key set for the time derivative of the variable")
	}
	return affine(v, symbol.NewStateVectorDot(e.Name(), e.Domains(), slices...)), nil
}

func rewriteSpatialVariable(d *Discretisation, e symbol.Expr) (symbol.Expr, error) {
	method, err := d.methodOf(e)
	if err != nil {
		return nil, err
	}
	return method.SpatialVariable(e.(*symbol.SpatialVariable))
}

// rewriteConcatenationVariable joins the raw entries of the pieces and
// applies the parent's affine map once to the whole.
func rewriteConcatenationVariable(d *Discretisation, e symbol.Expr) (symbol.Expr, error) {
	cv := e.(*symbol.ConcatenationVariable)
	pieces := make([]symbol.Expr, len(cv.Variables()))
	for i, child := range cv.Variables() {
		sv, err := d.stateVector(child)
		if err != nil {
			return nil, err
		}
		pieces[i] = sv
	}
	method, err := d.methodOf(cv)
	if err != nil {
		return nil, err
	}
	joined, err := method.Concatenation(pieces)
	if err != nil {
		return nil, err
	}
	return affine(cv, joined), nil
}

func rewriteConcatenation(d *Discretisation, e symbol.Expr) (symbol.Expr, error) {
	children, err := d.processAll(e.Children())
	if err != nil {
		return nil, err
	}
	method, err := d.methodOf(e)
	if err != nil {
		return nil, err
	}
	return method.Concatenation(children)
}

// rewriteInputParameter records how many values a parameter with a domain
// expects, then returns a copy.
func rewriteInputParameter(d *Discretisation, e symbol.Expr) (symbol.Expr, error) {
	p := e.(*symbol.InputParameter)
	if !p.Domains().IsEmpty() && p.ExpectedSize() <= 1 {
		n, err := d.variableSize(p)
		if err != nil {
			return nil, err
		}
		p.SetExpectedSize(n)
	}
	return symbol.Copy(p), nil
}
