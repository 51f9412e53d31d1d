package discretisation_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/godisc/discretisation"
	"github.com/njchilds90/godisc/mesh"
	"github.com/njchilds90/godisc/model"
	"github.com/njchilds90/godisc/spatial"
	"github.com/njchilds90/godisc/symbol"
)

// domain is one named submesh of a test mesh.
type domain struct {
	name string
	sub  *mesh.SubMesh
}

func uniform(t *testing.T, name string, lo, hi float64, n int, coordSys string) domain {
	t.Helper()
	sub, err := mesh.Uniform1D(lo, hi, n, coordSys)
	require.NoError(t, err)
	return domain{name: name, sub: sub}
}

// newDisc binds one finite volume method to every domain.
func newDisc(t *testing.T, domains ...domain) *discretisation.Discretisation {
	t.Helper()
	m := mesh.New()
	fv := spatial.NewFiniteVolume()
	methods := map[string]spatial.Method{}
	for _, d := range domains {
		m.Add(d.name, d.sub)
		methods[d.name] = fv
	}
	disc, err := discretisation.New(m, methods)
	require.NoError(t, err)
	return disc
}

func evalCol(t *testing.T, e symbol.Expr, env *symbol.Env) []float64 {
	t.Helper()
	v, err := symbol.Evaluate(e, env)
	require.NoError(t, err)
	return mat.Col(nil, 0, v)
}

// ============================================================
// Construction
// ============================================================

func TestNew_ExpandsMacroscale(t *testing.T) {
	m := mesh.New()
	for i, name := range []string{"negative electrode", "separator", "positive electrode"} {
		sub, err := mesh.Uniform1D(float64(i), float64(i+1), 2, "")
		require.NoError(t, err)
		m.Add(name, sub)
	}
	d, err := discretisation.New(m, map[string]spatial.Method{discretisation.Macroscale: spatial.NewFiniteVolume()})
	require.NoError(t, err)

	v := symbol.NewVariable("phi", symbol.D("separator"))
	require.NoError(t, d.SetVariableSlices([]symbol.StateVariable{v}))
	disc, err := d.ProcessSymbol(v)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5}, evalCol(t, disc, &symbol.Env{Y: []float64{4, 5}}))
}

func TestNew_RejectsZeroDimensionalMethodOnLine(t *testing.T) {
	sub, err := mesh.Uniform1D(0, 1, 4, "")
	require.NoError(t, err)
	_, err = discretisation.New(mesh.New().Add("x", sub), map[string]spatial.Method{"x": spatial.NewZeroDimensional()})
	assert.ErrorIs(t, err, discretisation.ErrDiscretisation)
}

func TestNew_AcceptsZeroDimensionalMethodOnPoint(t *testing.T) {
	_, err := discretisation.New(mesh.New().Add("tab", mesh.Point(1)), map[string]spatial.Method{"tab": spatial.NewZeroDimensional()})
	assert.NoError(t, err)
}

// ============================================================
// Slices
// ============================================================

func TestSetVariableSlices_PartitionsStateVector(t *testing.T) {
	d := newDisc(t, uniform(t, "x", 0, 1, 10, ""))
	a := symbol.NewVariable("a", symbol.D())
	c := symbol.NewVariable("c", symbol.D("x"), symbol.WithBounds(0, 5))
	T := symbol.NewVariable("T", symbol.D())

	require.NoError(t, d.SetVariableSlices([]symbol.StateVariable{a, c, T}))

	want := model.SliceMap{
		a.ID(): {{Start: 0, End: 1}},
		c.ID(): {{Start: 1, End: 11}},
		T.ID(): {{Start: 11, End: 12}},
	}
	if diff := cmp.Diff(want, d.Slices()); diff != "" {
		t.Errorf("slices mismatch (-want +got):\n%s", diff)
	}
	b := d.Bounds()
	require.Len(t, b.Lower, 12)
	require.Len(t, b.Upper, 12)
	for i := 1; i < 11; i++ {
		assert.Equal(t, 0.0, b.Lower[i])
		assert.Equal(t, 5.0, b.Upper[i])
	}
}

func TestSetVariableSlices_SplitsConcatenationPerRepeat(t *testing.T) {
	d := newDisc(t,
		uniform(t, "n", 0, 1, 3, ""),
		uniform(t, "s", 1, 2, 2, ""),
		uniform(t, "r", 0, 1, 2, ""),
	)
	a := symbol.NewVariable("c_n", symbol.Domains{Primary: []string{"n"}, Secondary: []string{"r"}})
	b := symbol.NewVariable("c_s", symbol.Domains{Primary: []string{"s"}, Secondary: []string{"r"}})
	cv := symbol.NewConcatenationVariable("c", []*symbol.Variable{a, b})

	require.NoError(t, d.SetVariableSlices([]symbol.StateVariable{cv}))

	want := model.SliceMap{
		cv.ID(): {{Start: 0, End: 10}},
		a.ID():  {{Start: 0, End: 3}, {Start: 5, End: 8}},
		b.ID():  {{Start: 3, End: 5}, {Start: 8, End: 10}},
	}
	if diff := cmp.Diff(want, d.Slices()); diff != "" {
		t.Errorf("slices mismatch (-want +got):\n%s", diff)
	}
}

func TestCopyWithDiscretisedSymbols_IsIndependent(t *testing.T) {
	d := newDisc(t, uniform(t, "x", 0, 1, 4, ""))
	a := symbol.NewVariable("a", symbol.D("x"))
	b := symbol.NewVariable("b", symbol.D())
	require.NoError(t, d.SetVariableSlices([]symbol.StateVariable{a}))

	c := d.CopyWithDiscretisedSymbols()
	require.NoError(t, c.SetVariableSlices([]symbol.StateVariable{b}))

	assert.Contains(t, d.Slices(), a.ID())
	assert.NotContains(t, d.Slices(), b.ID())
	assert.Contains(t, c.Slices(), b.ID())
	assert.Len(t, d.Bounds().Lower, 4)
	assert.Same(t, d.Mesh(), c.Mesh())
}

// ============================================================
// ProcessSymbol
// ============================================================

func TestProcessSymbol_IsMemoised(t *testing.T) {
	d := newDisc(t, uniform(t, "x", 0, 1, 4, ""))
	c := symbol.NewVariable("c", symbol.D("x"))
	require.NoError(t, d.SetVariableSlices([]symbol.StateVariable{c}))

	first, err := d.ProcessSymbol(c)
	require.NoError(t, err)
	second, err := d.ProcessSymbol(c)
	require.NoError(t, err)
	assert.Same(t, first, second)

	d.SetBoundaryConditions(nil)
	third, err := d.ProcessSymbol(c)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestProcessSymbol_AppliesAffineMap(t *testing.T) {
	d := newDisc(t)
	v := symbol.NewVariable("v", symbol.D(), symbol.WithScale(symbol.NewScalar(2)), symbol.WithReference(symbol.NewScalar(1)))
	require.NoError(t, d.SetVariableSlices([]symbol.StateVariable{v}))

	disc, err := d.ProcessSymbol(v)
	require.NoError(t, err)
	assert.Equal(t, []float64{7}, evalCol(t, disc, &symbol.Env{Y: []float64{3}}))
}

func TestProcessSymbol_ConcatenationVariableReadsPieces(t *testing.T) {
	d := newDisc(t,
		uniform(t, "n", 0, 1, 2, ""),
		uniform(t, "s", 1, 2, 3, ""),
	)
	a := symbol.NewVariable("c_n", symbol.D("n"))
	b := symbol.NewVariable("c_s", symbol.D("s"))
	cv := symbol.NewConcatenationVariable("c", []*symbol.Variable{a, b}, symbol.WithScale(symbol.NewScalar(10)))
	require.NoError(t, d.SetVariableSlices([]symbol.StateVariable{cv}))

	disc, err := d.ProcessSymbol(cv)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30, 40, 50}, evalCol(t, disc, &symbol.Env{Y: []float64{1, 2, 3, 4, 5}}))
}

func TestProcessSymbol_AverageIsIntegralRatio(t *testing.T) {
	d := newDisc(t, uniform(t, "x", 0, 1, 4, ""))
	c := symbol.NewVariable("c", symbol.D("x"))
	x := symbol.NewSpatialVariable("x", symbol.D("x"), "")
	require.NoError(t, d.SetVariableSlices([]symbol.StateVariable{c}))

	disc, err := d.ProcessSymbol(symbol.AverageOf(c, x))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.5}, evalCol(t, disc, &symbol.Env{Y: []float64{1, 2, 3, 4}}), 1e-12)
}

func TestProcessSymbol_RelabelsTabsLazily(t *testing.T) {
	cc := uniform(t, discretisation.CurrentCollector, 0, 1, 4, "")
	cc.sub.WithTabs(symbol.SideLeft, symbol.SideRight)
	d := newDisc(t, cc)
	phi := symbol.NewVariable("phi", symbol.D(discretisation.CurrentCollector))
	require.NoError(t, d.SetVariableSlices([]symbol.StateVariable{phi}))

	bcs := symbol.NewBoundaryConditions()
	bcs.Set(phi, symbol.SideConditions{
		symbol.SideNegativeTab: {Expr: symbol.NewScalar(0), Type: symbol.Dirichlet},
		symbol.SideNoTab:       {Expr: symbol.NewScalar(1), Type: symbol.Neumann},
	})
	d.SetBoundaryConditions(bcs)

	disc, err := d.ProcessSymbol(symbol.Laplacian(phi))
	require.NoError(t, err)
	sides, ok := d.BoundaryConditions().Get(phi.ID())
	require.True(t, ok)
	assert.Equal(t, []string{symbol.SideLeft, symbol.SideRight}, sides.Sides())
	assert.Equal(t, symbol.Dirichlet, sides[symbol.SideLeft].Type)
	assert.Equal(t, symbol.Neumann, sides[symbol.SideRight].Type)

	// Unit flux through the right edge of the last quarter cell.
	got := evalCol(t, disc, &symbol.Env{Y: make([]float64, 4)})
	assert.InDeltaSlice(t, []float64{0, 0, 0, 4}, got, 1e-12)
}

func TestProcessSymbol_TagsMeshes(t *testing.T) {
	x := uniform(t, "x", 0, 1, 4, "")
	d := newDisc(t, x)
	c := symbol.NewVariable("c", symbol.D("x"))
	require.NoError(t, d.SetVariableSlices([]symbol.StateVariable{c}))

	disc, err := d.ProcessSymbol(c)
	require.NoError(t, err)
	assert.Same(t, x.sub, disc.Mesh())
	assert.Nil(t, disc.SecondaryMesh())
}

func TestProcessSymbol_WithoutSliceFails(t *testing.T) {
	d := newDisc(t, uniform(t, "x", 0, 1, 4, ""))
	c := symbol.NewVariable("c", symbol.D("x"))

	_, err := d.ProcessSymbol(c)
	require.ErrorIs(t, err, model.ErrModel)
	assert.Contains(t, err.Error(), "no key set for variable")
}

func TestProcessSymbol_WithoutMethodFails(t *testing.T) {
	d := newDisc(t, uniform(t, "x", 0, 1, 4, ""))
	v := symbol.NewVariable("v", symbol.D("y"))

	_, err := d.ProcessSymbol(v)
	assert.ErrorIs(t, err, discretisation.ErrDiscretisation)
}

func TestProcessSymbol_StampsInputParameterSize(t *testing.T) {
	d := newDisc(t, uniform(t, "x", 0, 1, 6, ""))
	p := symbol.NewInputParameter("k", symbol.D("x"))

	disc, err := d.ProcessSymbol(p)
	require.NoError(t, err)
	assert.Equal(t, 6, p.ExpectedSize())
	n, err := symbol.Size(disc)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestProcessSymbol_NotConstantIsErased(t *testing.T) {
	d := newDisc(t)
	v := symbol.NewVariable("v", symbol.D())
	require.NoError(t, d.SetVariableSlices([]symbol.StateVariable{v}))

	disc, err := d.ProcessSymbol(symbol.NotConstantOf(v))
	require.NoError(t, err)
	assert.Equal(t, symbol.KindStateVector, disc.Kind())
}

// ============================================================
// Concatenation in order
// ============================================================

func TestConcatenateInOrder_FollowsSlices(t *testing.T) {
	d := newDisc(t)
	a := symbol.NewVariable("a", symbol.D())
	b := symbol.NewVariable("b", symbol.D())
	require.NoError(t, d.SetVariableSlices([]symbol.StateVariable{a, b}))

	eqs := model.NewEquations()
	eqs.Set(b, symbol.NewVector(2))
	eqs.Set(a, symbol.NewVector(1))

	out, err := d.ConcatenateInOrder(eqs, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, evalCol(t, out, nil))
}

func TestConcatenateInOrder_DetectsMissingInitialConditions(t *testing.T) {
	d := newDisc(t)
	a := symbol.NewVariable("a", symbol.D())
	b := symbol.NewVariable("b", symbol.D())
	require.NoError(t, d.SetVariableSlices([]symbol.StateVariable{a, b}))

	eqs := model.NewEquations()
	eqs.Set(a, symbol.NewVector(1))

	_, err := d.ConcatenateInOrder(eqs, true)
	require.ErrorIs(t, err, model.ErrModel)
	assert.Contains(t, err.Error(), "initial conditions are insufficient")

	_, err = d.ConcatenateInOrder(eqs, false)
	assert.NoError(t, err)
}

func TestConcatenateInOrder_Empty(t *testing.T) {
	d := newDisc(t)
	out, err := d.ConcatenateInOrder(model.NewEquations(), false)
	require.NoError(t, err)
	assert.Nil(t, out)
}
