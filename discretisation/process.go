package discretisation

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/godisc/internal/ctxlog"
	"github.com/njchilds90/godisc/model"
	"github.com/njchilds90/godisc/symbol"
)

// Options controls ProcessModel.
type Options struct {
	// Inplace discretises the given model. Otherwise a copy is discretised
	// and the given model is left untouched, so it can be discretised again.
	Inplace bool
	// CheckModel runs the initial condition and output shape checks.
	CheckModel bool
	// RemoveIndependentVariables moves rate equations nothing depends on out
	// of the state vector before slices are allocated.
	RemoveIndependentVariables bool
}

// DefaultOptions discretises in place with every check and the dead
// variable pass enabled.
func DefaultOptions() Options {
	return Options{Inplace: true, CheckModel: true, RemoveIndependentVariables: true}
}

// ProcessModel discretises m and returns the discretised model, which is m
// itself when opts.Inplace is set.
func (d *Discretisation) ProcessModel(ctx context.Context, m *model.Model, opts Options) (*model.Model, error) {
	log := ctxlog.FromContext(ctx).With("model", m.Name)

	if m.IsDiscretised() {
		return nil, &model.Error{Reason: "cannot re-discretise a model; discretise it with Inplace unset to be able to discretise it again"}
	}
	log.Info("Start discretising")

	if m.IsEmpty() {
		return nil, &model.Error{Reason: "cannot discretise empty model"}
	}
	if err := m.CheckWellPosedness(); err != nil {
		return nil, err
	}

	target := m
	if !opts.Inplace {
		target = m.NewCopy()
	}
	if opts.RemoveIndependentVariables {
		d.RemoveIndependentVariablesFromRHS(ctx, target)
	}

	vars := append(target.RHS.Keys(), target.Algebraic.Keys()...)
	if len(d.methods) == 0 {
		for _, v := range vars {
			if !v.Domains().IsEmpty() {
				return nil, fmt.Errorf("%w: spatial method has not been given for variable %q with domain %v", ErrDiscretisation, v.Name(), v.Domains().Primary)
			}
		}
	}

	log.Debug("Set variable slices")
	if err := d.SetVariableSlices(vars); err != nil {
		return nil, err
	}

	if err := d.preprocessExternalVariables(target); err != nil {
		return nil, err
	}
	if err := d.setExternalVariables(target); err != nil {
		return nil, err
	}

	log.Debug("Discretise boundary conditions")
	bcs, err := d.processBoundaryConditions(ctx, target)
	if err != nil {
		return nil, err
	}
	d.SetBoundaryConditions(bcs)
	log.Debug("Set internal boundary conditions")
	if err := d.setInternalBoundaryConditions(ctx, target); err != nil {
		return nil, err
	}

	log.Debug("Discretise initial conditions")
	ics, err := d.processEquations(ctx, target.InitialConditions, func(k symbol.StateVariable, v symbol.Expr) symbol.Expr {
		return symbol.DivOf(symbol.SubOf(v, k.Reference()), k.Scale())
	})
	if err != nil {
		return nil, err
	}

	log.Debug("Discretise model equations")
	unscale := func(k symbol.StateVariable, v symbol.Expr) symbol.Expr { return symbol.DivOf(v, k.Scale()) }
	rhs, err := d.processEquations(ctx, target.RHS, unscale)
	if err != nil {
		return nil, err
	}
	algebraic, err := d.processEquations(ctx, target.Algebraic, unscale)
	if err != nil {
		return nil, err
	}

	log.Debug("Discretise events")
	events := make([]model.Event, len(target.Events))
	for i, ev := range target.Events {
		log.Debug("Discretise event", "event", ev.Name)
		disc, err := d.ProcessSymbol(ev.Expression)
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", ev.Name, err)
		}
		events[i] = model.Event{Name: ev.Name, Expression: disc, Type: ev.Type}
	}

	externals := make([]symbol.Expr, len(target.ExternalVariables))
	for i, v := range target.ExternalVariables {
		disc, err := d.ProcessSymbol(v)
		if err != nil {
			return nil, err
		}
		externals[i] = disc
	}

	lengthScales := make(map[string]symbol.Expr, len(target.LengthScales))
	for domain, scale := range target.LengthScales {
		disc, err := d.ProcessSymbol(scale)
		if err != nil {
			return nil, fmt.Errorf("length scale of %q: %w", domain, err)
		}
		if arr, ok := disc.(*symbol.Array); ok && arr.Size() == 1 {
			disc = symbol.NewScalar(arr.Data().At(0, 0))
		}
		lengthScales[domain] = disc
	}

	log.Debug("Discretise output variables")
	outputs := model.NewOutputs()
	for _, name := range target.Variables.Names() {
		v, _ := target.Variables.Get(name)
		disc, err := d.ProcessSymbol(v)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}
		outputs.Set(name, disc)
	}

	payload := &model.Discretised{
		Slices:            d.slices,
		SliceOwners:       d.sliceOwners,
		Bounds:            d.bounds,
		ExternalNames:     d.ExternalNames(),
		ExternalVariables: externals,
	}
	if payload.ConcatenatedRHS, err = d.ConcatenateInOrder(rhs, false); err != nil {
		return nil, err
	}
	if payload.ConcatenatedAlgebraic, err = d.ConcatenateInOrder(algebraic, false); err != nil {
		return nil, err
	}
	if payload.ConcatenatedInitialConditions, err = d.ConcatenateInOrder(ics, true); err != nil {
		return nil, err
	}
	if payload.MassMatrix, err = d.massMatrix(rhs); err != nil {
		return nil, err
	}

	target.RHS = rhs
	target.Algebraic = algebraic
	target.InitialConditions = ics
	target.BoundaryConditions = d.bcs
	target.Variables = outputs
	target.Events = events
	target.LengthScales = lengthScales
	target.SetDiscretised(payload)

	if opts.CheckModel {
		log.Debug("Perform model checks")
		if err := d.CheckModel(target); err != nil {
			return nil, err
		}
	}
	log.Info("Finish discretising", "states", payload.Size())
	return target, nil
}

// processEquations discretises every equation of eqs and applies scale. An
// equation with a single entry is first broadcast to its key: multiplied by
// a one-entry vector for keys without a domain, fully broadcast otherwise.
func (d *Discretisation) processEquations(ctx context.Context, eqs *model.Equations, scale func(symbol.StateVariable, symbol.Expr) symbol.Expr) (*model.Equations, error) {
	log := ctxlog.FromContext(ctx)
	out := model.NewEquations()
	for _, k := range eqs.Keys() {
		eq, _ := eqs.Get(k.ID())
		if n, err := symbol.Size(eq); err == nil && n == 1 {
			if k.Domains().IsEmpty() {
				eq = symbol.MulOf(eq, symbol.NewVector(1))
			} else {
				eq = symbol.FullBroadcast(eq, k.Domains())
			}
		}
		log.Debug("Discretise equation", "variable", k.Name())
		disc, err := d.ProcessSymbol(eq)
		if err != nil {
			return nil, fmt.Errorf("equation of %q: %w", k.Name(), err)
		}
		out.Set(k, scale(k, disc))
	}
	return out, nil
}

// ConcatenateInOrder stacks the equations of eqs in state vector order. With
// checkComplete the keys, counting the pieces of concatenation variables,
// must cover every variable with a slice apart from external ones. An empty
// set of equations gives nil.
func (d *Discretisation) ConcatenateInOrder(eqs *model.Equations, checkComplete bool) (symbol.Expr, error) {
	type entry struct {
		start int
		eq    symbol.Expr
	}
	var entries []entry
	given := map[symbol.ID]bool{}
	for _, k := range eqs.Keys() {
		given[k.ID()] = true
		if cv, ok := k.(*symbol.ConcatenationVariable); ok {
			for _, c := range cv.Variables() {
				given[c.ID()] = true
			}
		}
		slices, ok := d.slices[k.ID()]
		if !ok || len(slices) == 0 {
			return nil, model.Errorf(k.Name(), "no slice for equation key")
		}
		eq, _ := eqs.Get(k.ID())
		entries = append(entries, entry{start: slices[0].Start, eq: eq})
	}

	if checkComplete && !d.coversSlices(given) {
		names := make([]string, 0, eqs.Len())
		for _, k := range eqs.Keys() {
			names = append(names, k.Name())
		}
		return nil, &model.Error{Reason: fmt.Sprintf("initial conditions are insufficient; only provided for %v", names)}
	}

	if len(entries) == 0 {
		return nil, nil
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].start < entries[j].start })
	parts := make([]symbol.Expr, len(entries))
	for i, e := range entries {
		parts[i] = e.eq
	}
	return symbol.NumpyConcatenationOf(parts...), nil
}

// coversSlices reports whether given holds exactly the variables with a
// slice, leaving out external variables and their pieces.
func (d *Discretisation) coversSlices(given map[symbol.ID]bool) bool {
	want := 0
	for id := range d.slices {
		if d.isExternal(id) {
			continue
		}
		if !given[id] {
			return false
		}
		want++
	}
	return want == len(given)
}

// massMatrix is block diagonal over the state vector: the spatial mass
// matrix of each rhs variable and zeros for the algebraic ones.
func (d *Discretisation) massMatrix(rhs *model.Equations) (*mat.Dense, error) {
	n := len(d.bounds.Lower)
	if n == 0 {
		return nil, nil
	}
	out := mat.NewDense(n, n, nil)
	for _, k := range rhs.Keys() {
		slices := d.slices[k.ID()]
		start, end := slices[0].Start, slices[len(slices)-1].End
		width := end - start
		if k.Domains().IsEmpty() {
			for i := start; i < end; i++ {
				out.Set(i, i, 1)
			}
			continue
		}
		method, err := d.methodOf(k)
		if err != nil {
			return nil, err
		}
		m, err := method.MassMatrix(k, d.bcs)
		if err != nil {
			return nil, fmt.Errorf("mass matrix of %q: %w", k.Name(), err)
		}
		v, err := symbol.Evaluate(m, nil)
		if err != nil {
			return nil, err
		}
		if r, c := v.Dims(); r != width || c != width {
			return nil, model.Errorf(k.Name(), "mass matrix is %dx%d, want %dx%d", r, c, width, width)
		}
		out.Slice(start, end, start, end).(*mat.Dense).Copy(v)
	}
	return out, nil
}
