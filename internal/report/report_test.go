package report_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/godisc/discretisation"
	"github.com/njchilds90/godisc/internal/ctxlog"
	"github.com/njchilds90/godisc/internal/report"
	"github.com/njchilds90/godisc/mesh"
	"github.com/njchilds90/godisc/model"
	"github.com/njchilds90/godisc/spatial"
	"github.com/njchilds90/godisc/symbol"
)

// discretisedODE is da/dt = -a with the algebraic constraint b = 2a.
func discretisedODE(t *testing.T) *model.Model {
	t.Helper()
	a := symbol.NewVariable("a", symbol.D())
	b := symbol.NewVariable("b", symbol.D(), symbol.WithBounds(0, 10))
	m := model.New("ode")
	m.RHS.Set(a, symbol.NegOf(a))
	m.Algebraic.Set(b, symbol.SubOf(b, symbol.MulOf(symbol.NewScalar(2), a)))
	m.InitialConditions.Set(a, symbol.NewScalar(1))
	m.InitialConditions.Set(b, symbol.NewScalar(2))
	m.Variables.Set("a", a)
	m.Events = []model.Event{{Name: "a below half", Expression: symbol.SubOf(a, symbol.NewScalar(0.5)), Type: model.EventTermination}}

	d, err := discretisation.New(mesh.New(), map[string]spatial.Method{})
	require.NoError(t, err)
	ctx := ctxlog.WithLogger(context.Background(), ctxlog.Discard())
	_, err = d.ProcessModel(ctx, m, discretisation.DefaultOptions())
	require.NoError(t, err)
	return m
}

func TestBuild_SummarisesStateVector(t *testing.T) {
	s, err := report.Build(discretisedODE(t))
	require.NoError(t, err)

	assert.Equal(t, "ode", s.Model)
	assert.Equal(t, 2, s.StateSize)

	lower, upper := 0.0, 10.0
	want := []report.State{
		{Name: "a", Equation: "rhs", Slices: []report.Range{{Start: 0, End: 1}}},
		{Name: "b", Equation: "algebraic", Slices: []report.Range{{Start: 1, End: 2}}, Lower: &lower, Upper: &upper},
	}
	if diff := cmp.Diff(want, s.States); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []float64{1, 2}, s.InitialConditions)
	require.Len(t, s.Outputs, 1)
	assert.Equal(t, "a", s.Outputs[0].Name)
	assert.Equal(t, []int{1, 1}, s.Outputs[0].Shape)
	assert.Equal(t, []report.Event{{Name: "a below half", Type: "termination"}}, s.Events)
	assert.Equal(t, report.MassMatrix{Rows: 2, Cols: 2, NonZeros: 1}, s.MassMatrix)
}

func TestBuild_RejectsUndiscretisedModel(t *testing.T) {
	_, err := report.Build(model.New("raw"))
	assert.ErrorIs(t, err, report.ErrNotDiscretised)
}

func TestEncode(t *testing.T) {
	s, err := report.Build(discretisedODE(t))
	require.NoError(t, err)

	var js bytes.Buffer
	require.NoError(t, report.Encode(&js, s, report.FormatJSON))
	assert.Contains(t, js.String(), `"state_size": 2`)
	assert.Contains(t, js.String(), `"equation": "algebraic"`)
	assert.NotContains(t, js.String(), `"external"`)

	var ym bytes.Buffer
	require.NoError(t, report.Encode(&ym, s, report.FormatYAML))
	assert.Contains(t, ym.String(), "model: ode\n")
	assert.Contains(t, ym.String(), "state_size: 2\n")
	assert.Contains(t, ym.String(), "identity: false\n")

	err = report.Encode(&bytes.Buffer{}, s, "xml")
	assert.ErrorIs(t, err, report.ErrFormat)
}
