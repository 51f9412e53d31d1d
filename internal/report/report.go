// Package report summarises a discretised model for people and scripts: the
// layout of the state vector, the outputs and events, and the mass matrix.
package report

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/njchilds90/godisc/model"
	"github.com/njchilds90/godisc/symbol"
)

var (
	// ErrNotDiscretised is returned by Build for a model that was never
	// discretised.
	ErrNotDiscretised = errors.New("report: model is not discretised")
	// ErrFormat is returned by Encode for an unknown format.
	ErrFormat = errors.New("report: unknown format")
)

// Encodings accepted by Encode.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Summary describes a discretised model.
type Summary struct {
	Model     string `json:"model" yaml:"model"`
	StateSize int    `json:"state_size" yaml:"state_size"`

	States            []State    `json:"states" yaml:"states"`
	InitialConditions []float64  `json:"initial_conditions,omitempty" yaml:"initial_conditions,omitempty"`
	Outputs           []Output   `json:"outputs" yaml:"outputs"`
	Events            []Event    `json:"events,omitempty" yaml:"events,omitempty"`
	External          []string   `json:"external,omitempty" yaml:"external,omitempty"`
	MassMatrix        MassMatrix `json:"mass_matrix" yaml:"mass_matrix"`
}

// State is one variable of the state vector.
type State struct {
	Name string `json:"name" yaml:"name"`
	// Equation is "rhs" or "algebraic".
	Equation string  `json:"equation" yaml:"equation"`
	Slices   []Range `json:"slices" yaml:"slices"`
	// Lower and Upper are omitted when unbounded.
	Lower *float64 `json:"lower,omitempty" yaml:"lower,omitempty"`
	Upper *float64 `json:"upper,omitempty" yaml:"upper,omitempty"`
}

// Range is a half-open range of state vector entries.
type Range struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Output is a named model output and the shape of its value.
type Output struct {
	Name  string `json:"name" yaml:"name"`
	Kind  string `json:"kind" yaml:"kind"`
	Shape []int  `json:"shape,omitempty" yaml:"shape,omitempty"`
}

type Event struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// MassMatrix describes the mass matrix without listing its entries.
type MassMatrix struct {
	Rows     int  `json:"rows" yaml:"rows"`
	Cols     int  `json:"cols" yaml:"cols"`
	NonZeros int  `json:"non_zeros" yaml:"non_zeros"`
	Identity bool `json:"identity" yaml:"identity"`
}

// Build summarises m, which must have been discretised.
func Build(m *model.Model) (*Summary, error) {
	payload := m.Discretised()
	if payload == nil {
		return nil, ErrNotDiscretised
	}

	s := &Summary{
		Model:     m.Name,
		StateSize: payload.Size(),
		External:  payload.ExternalNames,
	}
	for _, k := range m.RHS.Keys() {
		s.States = append(s.States, newState(k, "rhs", payload))
	}
	for _, k := range m.Algebraic.Keys() {
		s.States = append(s.States, newState(k, "algebraic", payload))
	}

	if ic := payload.ConcatenatedInitialConditions; ic != nil {
		if v, err := symbol.Evaluate(ic, nil); err == nil {
			if col := mat.Col(nil, 0, v); finite(col) {
				s.InitialConditions = col
			}
		}
	}

	for _, name := range m.Variables.Names() {
		e, _ := m.Variables.Get(name)
		out := Output{Name: name, Kind: e.Kind().String()}
		if r, c, err := symbol.Shape(e); err == nil {
			out.Shape = []int{r, c}
		}
		s.Outputs = append(s.Outputs, out)
	}

	for _, ev := range m.Events {
		s.Events = append(s.Events, Event{Name: ev.Name, Type: string(ev.Type)})
	}

	if mm := payload.MassMatrix; mm != nil {
		r, c := mm.Dims()
		s.MassMatrix = MassMatrix{Rows: r, Cols: c, Identity: r == c}
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				v := mm.At(i, j)
				if v != 0 {
					s.MassMatrix.NonZeros++
				}
				if (i == j && v != 1) || (i != j && v != 0) {
					s.MassMatrix.Identity = false
				}
			}
		}
	}
	return s, nil
}

func newState(v symbol.StateVariable, equation string, payload *model.Discretised) State {
	st := State{Name: v.Name(), Equation: equation}
	for _, sl := range payload.Slices[v.ID()] {
		st.Slices = append(st.Slices, Range{Start: sl.Start, End: sl.End})
	}
	lower, upper := v.Bounds()
	if !math.IsInf(lower, 0) {
		st.Lower = &lower
	}
	if !math.IsInf(upper, 0) {
		st.Upper = &upper
	}
	return st
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Encode writes s to w as YAML or indented JSON.
func Encode(w io.Writer, s *Summary, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w %q", ErrFormat, format)
}
