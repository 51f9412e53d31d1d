package discretisation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/godisc/discretisation"
	"github.com/njchilds90/godisc/internal/ctxlog"
	"github.com/njchilds90/godisc/model"
	"github.com/njchilds90/godisc/symbol"
)

func quietContext() context.Context {
	return ctxlog.WithLogger(context.Background(), ctxlog.Discard())
}

func neumann(v float64) symbol.BoundaryCondition {
	return symbol.BoundaryCondition{Expr: symbol.NewScalar(v), Type: symbol.Neumann}
}

func dirichlet(v float64) symbol.BoundaryCondition {
	return symbol.BoundaryCondition{Expr: symbol.NewScalar(v), Type: symbol.Dirichlet}
}

// diffusionModel is dc/dt = div(grad(c)) on x with no flux at either end.
func diffusionModel() (*model.Model, *symbol.Variable) {
	c := symbol.NewVariable("c", symbol.D("x"))
	m := model.New("diffusion")
	m.RHS.Set(c, symbol.Div(symbol.Grad(c)))
	m.InitialConditions.Set(c, symbol.NewScalar(1))
	m.BoundaryConditions.Set(c, symbol.SideConditions{
		symbol.SideLeft:  neumann(0),
		symbol.SideRight: neumann(0),
	})
	m.Variables.Set("c", c)
	return m, c
}

// ============================================================
// Whole model
// ============================================================

func TestProcessModel_Diffusion(t *testing.T) {
	d := newDisc(t, uniform(t, "x", 0, 1, 10, ""))
	m, c := diffusionModel()

	out, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.NoError(t, err)
	assert.Same(t, m, out)
	require.True(t, m.IsDiscretised())

	rhs, _ := m.RHS.Get(c.ID())
	r, cols, err := symbol.Shape(rhs)
	require.NoError(t, err)
	assert.Equal(t, [2]int{10, 1}, [2]int{r, cols})
	ic, _ := m.InitialConditions.Get(c.ID())
	r, cols, err = symbol.Shape(ic)
	require.NoError(t, err)
	assert.Equal(t, [2]int{10, 1}, [2]int{r, cols})

	sides, ok := d.BoundaryConditions().Get(c.ID())
	require.True(t, ok)
	assert.Equal(t, []string{symbol.SideLeft, symbol.SideRight}, sides.Sides())

	payload := m.Discretised()
	assert.Equal(t, []symbol.Slice{{Start: 0, End: 10}}, payload.Slices[c.ID()])
	assert.Equal(t, 10, payload.Size())

	y := make([]float64, 10)
	for i := range y {
		y[i] = 2
	}
	assert.InDeltaSlice(t, make([]float64, 10), evalCol(t, payload.ConcatenatedRHS, &symbol.Env{Y: y}), 1e-12)
	ones := evalCol(t, payload.ConcatenatedInitialConditions, nil)
	for _, v := range ones {
		assert.Equal(t, 1.0, v)
	}
	assert.Nil(t, payload.ConcatenatedAlgebraic)

	eye := mat.NewDense(10, 10, nil)
	for i := 0; i < 10; i++ {
		eye.Set(i, i, 1)
	}
	assert.True(t, mat.Equal(eye, payload.MassMatrix))

	disc, ok := m.Variables.Get("c")
	require.True(t, ok)
	assert.Equal(t, y, evalCol(t, disc, &symbol.Env{Y: y}))
}

func TestProcessModel_CopyLeavesInputUntouched(t *testing.T) {
	d := newDisc(t, uniform(t, "x", 0, 1, 5, ""))
	m, c := diffusionModel()

	out, err := d.ProcessModel(quietContext(), m, discretisation.Options{CheckModel: true})
	require.NoError(t, err)
	assert.NotSame(t, m, out)
	assert.False(t, m.IsDiscretised())
	assert.True(t, out.IsDiscretised())
	eq, _ := m.RHS.Get(c.ID())
	assert.Equal(t, symbol.KindSpatialOperator, eq.Kind())

	_, err = d.ProcessModel(quietContext(), m, discretisation.Options{})
	assert.NoError(t, err)
}

func TestProcessModel_RefusesSecondPass(t *testing.T) {
	d := newDisc(t, uniform(t, "x", 0, 1, 5, ""))
	m, _ := diffusionModel()

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.NoError(t, err)
	_, err = d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.ErrorIs(t, err, model.ErrModel)
	assert.Contains(t, err.Error(), "re-discretise")
}

func TestProcessModel_RejectsEmptyModel(t *testing.T) {
	d := newDisc(t)
	_, err := d.ProcessModel(quietContext(), model.New("empty"), discretisation.DefaultOptions())
	require.ErrorIs(t, err, model.ErrModel)
	assert.Contains(t, err.Error(), "empty")
}

func TestProcessModel_RequiresMethodsForSpatialVariables(t *testing.T) {
	d := newDisc(t)
	m, _ := diffusionModel()
	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	assert.ErrorIs(t, err, discretisation.ErrDiscretisation)
}

func TestProcessModel_WithoutDomains(t *testing.T) {
	d := newDisc(t)
	a := symbol.NewVariable("a", symbol.D())
	b := symbol.NewVariable("b", symbol.D())
	m := model.New("ode")
	m.RHS.Set(a, symbol.NegOf(a))
	m.Algebraic.Set(b, symbol.SubOf(b, symbol.MulOf(symbol.NewScalar(2), a)))
	m.InitialConditions.Set(a, symbol.NewScalar(1))
	m.InitialConditions.Set(b, symbol.NewScalar(2))

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.NoError(t, err)

	payload := m.Discretised()
	y := []float64{3, 5}
	assert.Equal(t, []float64{-3}, evalCol(t, payload.ConcatenatedRHS, &symbol.Env{Y: y}))
	assert.Equal(t, []float64{-1}, evalCol(t, payload.ConcatenatedAlgebraic, &symbol.Env{Y: y}))
	assert.Equal(t, []float64{1, 2}, evalCol(t, payload.ConcatenatedInitialConditions, nil))
	assert.True(t, mat.Equal(mat.NewDense(2, 2, []float64{1, 0, 0, 0}), payload.MassMatrix))
}

func TestProcessModel_ScalesEquations(t *testing.T) {
	d := newDisc(t)
	v := symbol.NewVariable("v", symbol.D(), symbol.WithScale(symbol.NewScalar(2)), symbol.WithReference(symbol.NewScalar(1)))
	m := model.New("scaled")
	m.RHS.Set(v, symbol.NewScalar(4))
	m.InitialConditions.Set(v, symbol.NewScalar(5))

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.NoError(t, err)

	payload := m.Discretised()
	assert.Equal(t, []float64{2}, evalCol(t, payload.ConcatenatedRHS, &symbol.Env{Y: []float64{0}}))
	assert.Equal(t, []float64{2}, evalCol(t, payload.ConcatenatedInitialConditions, nil))
}

// ============================================================
// Checks
// ============================================================

func TestProcessModel_ChecksBounds(t *testing.T) {
	d := newDisc(t)
	v := symbol.NewVariable("v", symbol.D(), symbol.WithBounds(0, 1))
	m := model.New("bounded")
	m.RHS.Set(v, symbol.NegOf(v))
	m.InitialConditions.Set(v, symbol.NewScalar(2))

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.ErrorIs(t, err, model.ErrModel)
	assert.Contains(t, err.Error(), "bounds")

	m2 := model.New("bounded")
	m2.RHS.Set(v, symbol.NegOf(v))
	m2.InitialConditions.Set(v, symbol.NewScalar(2))
	_, err = d.ProcessModel(quietContext(), m2, discretisation.Options{Inplace: true})
	assert.NoError(t, err)
}

func TestProcessModel_SkipsBoundsForInputs(t *testing.T) {
	d := newDisc(t)
	v := symbol.NewVariable("v", symbol.D(), symbol.WithBounds(0, 1))
	m := model.New("input")
	m.RHS.Set(v, symbol.NegOf(v))
	m.InitialConditions.Set(v, symbol.NewInputParameter("v0", symbol.D()))

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	assert.NoError(t, err)
}

func TestProcessModel_ChecksVariableShapes(t *testing.T) {
	d := newDisc(t, uniform(t, "x", 0, 1, 4, ""))
	m, c := diffusionModel()
	m.Variables.Set("c", symbol.IntegralOf(c, symbol.NewSpatialVariable("x", symbol.D("x"), "cartesian")))

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.ErrorIs(t, err, model.ErrModel)
	assert.Contains(t, err.Error(), "same shape")
}

func TestProcessModel_RequiresHomogeneousNeumannAtOrigin(t *testing.T) {
	d := newDisc(t, uniform(t, "r", 0, 1, 5, "spherical polar"))
	cs := symbol.NewVariable("c_s", symbol.D("r"))
	m := model.New("particle")
	m.RHS.Set(cs, symbol.Div(symbol.Grad(cs)))
	m.InitialConditions.Set(cs, symbol.NewScalar(1))
	m.BoundaryConditions.Set(cs, symbol.SideConditions{
		symbol.SideLeft:  dirichlet(0),
		symbol.SideRight: neumann(-1),
	})

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.ErrorIs(t, err, model.ErrModel)
	assert.Contains(t, err.Error(), "homogeneous Neumann")

	m.BoundaryConditions.SetSide(cs, symbol.SideLeft, neumann(0))
	_, err = d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	assert.NoError(t, err)
}

// ============================================================
// Boundary conditions
// ============================================================

func TestProcessModel_MovesTabsToSides(t *testing.T) {
	cc := uniform(t, discretisation.CurrentCollector, 0, 1, 4, "")
	cc.sub.WithTabs(symbol.SideLeft, symbol.SideRight)
	d := newDisc(t, cc)

	phi := symbol.NewVariable("phi", symbol.D(discretisation.CurrentCollector))
	m := model.New("current collector")
	m.RHS.Set(phi, symbol.Laplacian(phi))
	m.InitialConditions.Set(phi, symbol.NewScalar(0))
	m.BoundaryConditions.Set(phi, symbol.SideConditions{
		symbol.SideNegativeTab: dirichlet(0),
		symbol.SidePositiveTab: neumann(1),
		symbol.SideNoTab:       neumann(0),
	})

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.NoError(t, err)
	sides, ok := d.BoundaryConditions().Get(phi.ID())
	require.True(t, ok)
	assert.Equal(t, []string{symbol.SideLeft, symbol.SideRight}, sides.Sides())
	assert.Equal(t, symbol.Dirichlet, sides[symbol.SideLeft].Type)
	assert.Equal(t, symbol.Neumann, sides[symbol.SideRight].Type)
}

func TestProcessModel_FillsUncoveredSideWithNoTab(t *testing.T) {
	cc := uniform(t, discretisation.CurrentCollector, 0, 1, 4, "")
	cc.sub.WithTabs(symbol.SideLeft, symbol.SideRight)
	d := newDisc(t, cc)

	phi := symbol.NewVariable("phi", symbol.D(discretisation.CurrentCollector))
	m := model.New("current collector")
	m.RHS.Set(phi, symbol.Laplacian(phi))
	m.InitialConditions.Set(phi, symbol.NewScalar(0))
	m.BoundaryConditions.Set(phi, symbol.SideConditions{
		symbol.SideNegativeTab: dirichlet(0),
		symbol.SideNoTab:       neumann(3),
	})

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.NoError(t, err)
	sides, _ := d.BoundaryConditions().Get(phi.ID())
	assert.Equal(t, []string{symbol.SideLeft, symbol.SideRight}, sides.Sides())
	assert.Equal(t, symbol.Neumann, sides[symbol.SideRight].Type)
}

func TestProcessModel_RejectsTabsOutsideCurrentCollector(t *testing.T) {
	d := newDisc(t, uniform(t, "x", 0, 1, 4, ""))
	c := symbol.NewVariable("c", symbol.D("x"))
	m := model.New("tabs")
	m.RHS.Set(c, symbol.Laplacian(c))
	m.InitialConditions.Set(c, symbol.NewScalar(0))
	m.BoundaryConditions.Set(c, symbol.SideConditions{symbol.SideNegativeTab: dirichlet(0)})

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.ErrorIs(t, err, model.ErrModel)
	assert.Contains(t, err.Error(), discretisation.CurrentCollector)
}

func TestProcessModel_SetsInternalBoundaryConditions(t *testing.T) {
	d := newDisc(t,
		uniform(t, "n", 0, 1, 3, ""),
		uniform(t, "s", 1, 2, 2, ""),
		uniform(t, "p", 2, 3, 3, ""),
	)
	a := symbol.NewVariable("c_n", symbol.D("n"))
	b := symbol.NewVariable("c_s", symbol.D("s"))
	c := symbol.NewVariable("c_p", symbol.D("p"))
	cv := symbol.NewConcatenationVariable("c", []*symbol.Variable{a, b, c})

	m := model.New("layers")
	m.RHS.Set(cv, symbol.NewScalar(0))
	m.InitialConditions.Set(cv, symbol.NewScalar(1))
	m.BoundaryConditions.Set(cv, symbol.SideConditions{
		symbol.SideLeft:  dirichlet(0),
		symbol.SideRight: dirichlet(1),
	})
	m.BoundaryConditions.Set(b, symbol.SideConditions{
		symbol.SideLeft:  neumann(5),
		symbol.SideRight: neumann(5),
	})

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.NoError(t, err)

	bcs := d.BoundaryConditions()
	outer, _ := bcs.Get(cv.ID())
	left, ok := bcs.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, outer[symbol.SideLeft].Expr, left[symbol.SideLeft].Expr)
	assert.Equal(t, symbol.Neumann, left[symbol.SideRight].Type)

	right, ok := bcs.Get(c.ID())
	require.True(t, ok)
	assert.Equal(t, symbol.Neumann, right[symbol.SideLeft].Type)
	assert.Same(t, outer[symbol.SideRight].Expr, right[symbol.SideRight].Expr)

	middle, ok := bcs.Get(b.ID())
	require.True(t, ok)
	assert.Equal(t, []float64{5}, evalCol(t, middle[symbol.SideLeft].Expr, nil))

	assert.Equal(t, []symbol.Slice{{Start: 0, End: 3}}, m.Discretised().Slices[a.ID()])
	assert.Equal(t, 8, m.Discretised().Size())
}

// ============================================================
// External variables
// ============================================================

func TestProcessModel_ExternalVariable(t *testing.T) {
	d := newDisc(t)
	c := symbol.NewVariable("c", symbol.D())
	e := symbol.NewVariable("e", symbol.D())
	m := model.New("external")
	m.RHS.Set(c, e)
	m.InitialConditions.Set(c, symbol.NewScalar(0))
	m.Variables.Set("e", e)
	m.ExternalVariables = []symbol.StateVariable{e}

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.NoError(t, err)

	payload := m.Discretised()
	assert.Equal(t, []string{"e"}, payload.ExternalNames)
	assert.NotContains(t, payload.Slices, e.ID())
	require.Len(t, payload.ExternalVariables, 1)
	assert.Equal(t, symbol.KindExternalVariable, payload.ExternalVariables[0].Kind())

	env := &symbol.Env{Y: []float64{0}, External: map[string][]float64{"e": {3}}}
	assert.Equal(t, []float64{3}, evalCol(t, payload.ConcatenatedRHS, env))
}

func TestProcessModel_ExternalVariableMustBeOutput(t *testing.T) {
	d := newDisc(t)
	c := symbol.NewVariable("c", symbol.D())
	e := symbol.NewVariable("e", symbol.D())
	m := model.New("external")
	m.RHS.Set(c, e)
	m.InitialConditions.Set(c, symbol.NewScalar(0))
	m.ExternalVariables = []symbol.StateVariable{e}

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.ErrorIs(t, err, model.ErrModel)
	assert.Contains(t, err.Error(), "model variables")
}

func TestProcessModel_ExternalVariableGetsExtrapolatedFluxes(t *testing.T) {
	d := newDisc(t, uniform(t, "x", 0, 1, 4, ""))
	c := symbol.NewVariable("c", symbol.D("x"))
	temp := symbol.NewVariable("T", symbol.D("x"))
	m := model.New("external flux")
	m.RHS.Set(c, symbol.MulOf(symbol.NewScalar(2), temp))
	m.InitialConditions.Set(c, symbol.NewScalar(0))
	m.Variables.Set("T", temp)
	m.ExternalVariables = []symbol.StateVariable{temp}

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.NoError(t, err)

	sides, ok := d.BoundaryConditions().Get(temp.ID())
	require.True(t, ok)
	assert.Equal(t, []string{symbol.SideLeft, symbol.SideRight}, sides.Sides())
	env := &symbol.Env{Y: make([]float64, 4), External: map[string][]float64{"T": {1, 2, 3, 4}}}
	for _, side := range sides.Sides() {
		assert.Equal(t, symbol.Neumann, sides[side].Type)
		assert.InDeltaSlice(t, []float64{4}, evalCol(t, sides[side].Expr, env), 1e-12, side)
	}
	assert.Equal(t, []float64{2, 4, 6, 8}, evalCol(t, m.Discretised().ConcatenatedRHS, env))
}

func TestProcessModel_ConcatenatedExternalVariableReadsPieces(t *testing.T) {
	d := newDisc(t,
		uniform(t, "n", 0, 1, 3, ""),
		uniform(t, "p", 1, 2, 3, ""),
	)
	tempN := symbol.NewVariable("T_n", symbol.D("n"))
	tempP := symbol.NewVariable("T_p", symbol.D("p"))
	temp := symbol.NewConcatenationVariable("T", []*symbol.Variable{tempN, tempP})
	c := symbol.NewVariable("c", symbol.D("p"))
	m := model.New("concatenated external")
	m.RHS.Set(c, symbol.MulOf(symbol.NewScalar(2), tempP))
	m.InitialConditions.Set(c, symbol.NewScalar(0))
	m.Variables.Set("Temperature", temp)
	m.ExternalVariables = []symbol.StateVariable{temp}

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.NoError(t, err)

	payload := m.Discretised()
	assert.Equal(t, []string{"Temperature"}, payload.ExternalNames)
	env := &symbol.Env{Y: make([]float64, 3), External: map[string][]float64{"Temperature": {1, 2, 3, 4, 5, 6}}}
	assert.Equal(t, []float64{8, 10, 12}, evalCol(t, payload.ConcatenatedRHS, env))

	out, ok := m.Variables.Get("Temperature")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, evalCol(t, out, env))
}

// ============================================================
// Independent variables
// ============================================================

func TestProcessModel_RemovesIndependentVariables(t *testing.T) {
	d := newDisc(t)
	a := symbol.NewVariable("a", symbol.D())
	b := symbol.NewVariable("b", symbol.D())
	m := model.New("counter")
	m.RHS.Set(a, symbol.NewScalar(1))
	m.RHS.Set(b, symbol.NegOf(b))
	m.InitialConditions.Set(a, symbol.NewScalar(0))
	m.InitialConditions.Set(b, symbol.NewScalar(1))
	m.Variables.Set("a", a)

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, m.RHS.Len())
	assert.False(t, m.RHS.Has(a.ID()))
	assert.False(t, m.InitialConditions.Has(a.ID()))
	assert.NotContains(t, m.Discretised().Slices, a.ID())
	out, ok := m.Variables.Get("a")
	require.True(t, ok)
	assert.Equal(t, symbol.KindExplicitTimeIntegral, out.Kind())
}

func TestProcessModel_KeepsLastRateEquation(t *testing.T) {
	d := newDisc(t)
	a := symbol.NewVariable("a", symbol.D())
	m := model.New("counter")
	m.RHS.Set(a, symbol.NewScalar(1))
	m.InitialConditions.Set(a, symbol.NewScalar(0))

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, m.RHS.Has(a.ID()))
	assert.Contains(t, m.Discretised().Slices, a.ID())
}

func TestProcessModel_KeepsIndependentVariablesWhenAsked(t *testing.T) {
	d := newDisc(t)
	a := symbol.NewVariable("a", symbol.D())
	b := symbol.NewVariable("b", symbol.D())
	m := model.New("counter")
	m.RHS.Set(a, symbol.NewScalar(1))
	m.RHS.Set(b, symbol.NegOf(b))
	m.InitialConditions.Set(a, symbol.NewScalar(0))
	m.InitialConditions.Set(b, symbol.NewScalar(1))

	_, err := d.ProcessModel(quietContext(), m, discretisation.Options{Inplace: true, CheckModel: true})
	require.NoError(t, err)
	assert.Equal(t, 2, m.RHS.Len())
	assert.Equal(t, 2, m.Discretised().Size())
}

// ============================================================
// Events and length scales
// ============================================================

func TestProcessModel_DiscretisesEventsAndLengthScales(t *testing.T) {
	d := newDisc(t)
	a := symbol.NewVariable("a", symbol.D())
	m := model.New("events")
	m.RHS.Set(a, symbol.NegOf(a))
	m.InitialConditions.Set(a, symbol.NewScalar(1))
	m.Events = []model.Event{{Name: "a below half", Expression: symbol.SubOf(a, symbol.NewScalar(0.5)), Type: model.EventTermination}}
	m.LengthScales["x"] = symbol.NewVector(2)

	_, err := d.ProcessModel(quietContext(), m, discretisation.DefaultOptions())
	require.NoError(t, err)

	require.Len(t, m.Events, 1)
	assert.Equal(t, []float64{0.25}, evalCol(t, m.Events[0].Expression, &symbol.Env{Y: []float64{0.75}}))
	assert.Equal(t, model.EventTermination, m.Events[0].Type)
	assert.Equal(t, symbol.KindScalar, m.LengthScales["x"].Kind())
}
