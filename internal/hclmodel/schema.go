package hclmodel

import (
	"sort"

	"github.com/hashicorp/hcl/v2"

	"github.com/njchilds90/godisc/symbol"
)

// fileRoot is decoded from the body of a model file.
type fileRoot struct {
	Name     string   `hcl:"name"`
	External []string `hcl:"external,optional"`

	Meshes         []*meshBlock          `hcl:"mesh,block"`
	Methods        []*methodBlock        `hcl:"method,block"`
	Variables      []*variableBlock      `hcl:"variable,block"`
	Concatenations []*concatenationBlock `hcl:"concatenation,block"`
	SpatialVars    []*spatialBlock       `hcl:"spatial_variable,block"`
	Inputs         []*inputBlock         `hcl:"input,block"`
	RHS            []*equationBlock      `hcl:"rhs,block"`
	Algebraic      []*equationBlock      `hcl:"algebraic,block"`
	Initial        []*equationBlock      `hcl:"initial,block"`
	Boundaries     []*boundaryBlock      `hcl:"boundary,block"`
	Outputs        []*equationBlock      `hcl:"output,block"`
	Events         []*eventBlock         `hcl:"event,block"`
	LengthScales   []*equationBlock      `hcl:"length_scale,block"`
}

// meshBlock is a 1D submesh given by its edges or by a uniform split of
// [min, max], or a point when point is set.
type meshBlock struct {
	Domain      string    `hcl:"domain,label"`
	CoordSys    string    `hcl:"coord_sys,optional"`
	Min         *float64  `hcl:"min,optional"`
	Max         *float64  `hcl:"max,optional"`
	Cells       *int      `hcl:"cells,optional"`
	Edges       []float64 `hcl:"edges,optional"`
	Point       *float64  `hcl:"point,optional"`
	NegativeTab string    `hcl:"negative_tab,optional"`
	PositiveTab string    `hcl:"positive_tab,optional"`
}

type methodBlock struct {
	Domain string `hcl:"domain,label"`
	Type   string `hcl:"type"`
	UseBCs bool   `hcl:"use_bcs,optional"`
}

type variableBlock struct {
	Name      string    `hcl:"name,label"`
	Domain    []string  `hcl:"domain,optional"`
	Secondary []string  `hcl:"secondary,optional"`
	Bounds    []float64 `hcl:"bounds,optional"`
	Scale     *float64  `hcl:"scale,optional"`
	Reference *float64  `hcl:"reference,optional"`
}

type concatenationBlock struct {
	Name  string   `hcl:"name,label"`
	Parts []string `hcl:"parts"`
}

type spatialBlock struct {
	Name     string   `hcl:"name,label"`
	Domain   []string `hcl:"domain"`
	CoordSys string   `hcl:"coord_sys,optional"`
}

type inputBlock struct {
	Name   string   `hcl:"name,label"`
	Domain []string `hcl:"domain,optional"`
}

// equationBlock binds an expression to a name: a state variable for rhs,
// algebraic and initial blocks, an output name or a domain otherwise.
type equationBlock struct {
	Name  string         `hcl:"name,label"`
	Value hcl.Expression `hcl:"value"`
}

type boundaryBlock struct {
	Name  string       `hcl:"name,label"`
	Sides []*sideBlock `hcl:"side,block"`
}

type sideBlock struct {
	Side  string         `hcl:"side,label"`
	Type  string         `hcl:"type"`
	Value hcl.Expression `hcl:"value"`
}

type eventBlock struct {
	Name       string         `hcl:"name,label"`
	Type       string         `hcl:"type,optional"`
	Expression hcl.Expression `hcl:"expression"`
}

// Format describes what a model file may contain.
type Format struct {
	Blocks    []string `json:"blocks"`
	Methods   []string `json:"methods"`
	Functions []string `json:"functions"`
}

// Describe lists the blocks, method types and functions a model file may use.
func Describe() Format {
	fns := append([]string{"abs", "average", "backward_indefinite", "boundary_integral", "delta", "dt", "indefinite", "integral"}, symbol.FunctionNames()...)
	for name := range spatialOperators {
		fns = append(fns, name)
	}
	for name := range boundaryOperators {
		fns = append(fns, name)
	}
	for name := range broadcasts {
		fns = append(fns, name)
	}
	for name := range binaryFunctions {
		fns = append(fns, name)
	}
	sort.Strings(fns)
	return Format{
		Blocks: []string{
			"mesh", "method", "variable", "concatenation", "spatial_variable", "input",
			"rhs", "algebraic", "initial", "boundary", "output", "event", "length_scale",
		},
		Methods:   []string{FiniteVolume, ZeroDimensional},
		Functions: fns,
	}
}
