// Package hclmodel reads model files. A model file declares the meshes, the
// spatial method of each domain, the variables and the equations of a model.
// Equations are HCL expressions over the declared names.
package hclmodel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/njchilds90/godisc/discretisation"
	"github.com/njchilds90/godisc/internal/ctxlog"
	"github.com/njchilds90/godisc/mesh"
	"github.com/njchilds90/godisc/model"
	"github.com/njchilds90/godisc/spatial"
	"github.com/njchilds90/godisc/symbol"
)

// ErrModelFile is wrapped by every error about the content of a model file.
var ErrModelFile = errors.New("model file error")

// Method types accepted by a method block.
const (
	FiniteVolume    = "finite_volume"
	ZeroDimensional = "zero_dimensional"
)

// timeName is the name expressions use for the simulation time.
const timeName = "t"

// Spec is everything a model file declares.
type Spec struct {
	Model   *model.Model
	Mesh    *mesh.Mesh
	Methods map[string]spatial.Method
}

// Discretisation returns a discretisation over the declared mesh and methods.
func (s *Spec) Discretisation() (*discretisation.Discretisation, error) {
	return discretisation.New(s.Mesh, s.Methods)
}

// Load reads the model file at path.
func Load(ctx context.Context, path string) (*Spec, error) {
	ctxlog.FromContext(ctx).Debug("Loading model file.", "path", path)

	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to parse model file %s: %w", ErrModelFile, path, diags)
	}
	return decode(ctx, file, path)
}

// Parse reads a model file held in memory. filename only labels diagnostics.
func Parse(ctx context.Context, src []byte, filename string) (*Spec, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to parse model file %s: %w", ErrModelFile, filename, diags)
	}
	return decode(ctx, file, filename)
}

func decode(ctx context.Context, file *hcl.File, filename string) (*Spec, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to decode model file %s: %w", ErrModelFile, filename, diags)
	}

	b := &builder{
		log:    ctxlog.FromContext(ctx).With("model", root.Name),
		scope:  map[string]symbol.Expr{timeName: symbol.NewTime()},
		states: map[string]symbol.StateVariable{},
	}
	spec, err := b.build(&root)
	if err != nil {
		return nil, err
	}
	b.log.Debug("Model file loaded.",
		"domains", len(spec.Mesh.Domains()),
		"rhs", spec.Model.RHS.Len(),
		"algebraic", spec.Model.Algebraic.Len(),
		"outputs", spec.Model.Variables.Len(),
	)
	return spec, nil
}

func errorAt(rng hcl.Range, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", ErrModelFile, rng, fmt.Sprintf(format, args...))
}

func errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrModelFile, fmt.Sprintf(format, args...))
}

// builder turns decoded blocks into model values. scope holds every name an
// expression may refer to.
type builder struct {
	log    *slog.Logger
	mesh   *mesh.Mesh
	scope  map[string]symbol.Expr
	states map[string]symbol.StateVariable
}

func (b *builder) build(root *fileRoot) (*Spec, error) {
	spec := &Spec{Model: model.New(root.Name)}

	var err error
	if spec.Mesh, err = b.buildMesh(root.Meshes); err != nil {
		return nil, err
	}
	b.mesh = spec.Mesh
	if spec.Methods, err = buildMethods(root.Methods); err != nil {
		return nil, err
	}
	if err := b.declare(root); err != nil {
		return nil, err
	}
	if err := b.equations(spec.Model, root); err != nil {
		return nil, err
	}
	for _, name := range root.External {
		v, ok := b.states[name]
		if !ok {
			return nil, errorf("external variable %q is not a declared variable", name)
		}
		spec.Model.ExternalVariables = append(spec.Model.ExternalVariables, v)
	}
	return spec, nil
}

// ============================================================
// Meshes and methods
// ============================================================

func (b *builder) buildMesh(blocks []*meshBlock) (*mesh.Mesh, error) {
	m := mesh.New()
	seen := map[string]bool{}
	for _, blk := range blocks {
		if seen[blk.Domain] {
			return nil, errorf("mesh for domain %q declared twice", blk.Domain)
		}
		seen[blk.Domain] = true

		sub, err := subMesh(blk)
		if err != nil {
			return nil, fmt.Errorf("mesh %q: %w", blk.Domain, err)
		}
		if blk.NegativeTab != "" || blk.PositiveTab != "" {
			sub.WithTabs(blk.NegativeTab, blk.PositiveTab)
		}
		b.log.Debug("Built submesh.", "domain", blk.Domain, "points", sub.Npts())
		m.Add(blk.Domain, sub)
	}
	return m, nil
}

func subMesh(blk *meshBlock) (*mesh.SubMesh, error) {
	switch {
	case blk.Point != nil:
		return mesh.Point(*blk.Point), nil
	case len(blk.Edges) > 0:
		return mesh.FromEdges(blk.Edges, blk.CoordSys)
	case blk.Min != nil && blk.Max != nil && blk.Cells != nil:
		return mesh.Uniform1D(*blk.Min, *blk.Max, *blk.Cells, blk.CoordSys)
	}
	return nil, errorf("set point, edges, or min, max and cells")
}

func buildMethods(blocks []*methodBlock) (map[string]spatial.Method, error) {
	methods := make(map[string]spatial.Method, len(blocks))
	for _, blk := range blocks {
		switch blk.Type {
		case FiniteVolume:
			fv := spatial.NewFiniteVolume()
			fv.UseBCs = blk.UseBCs
			methods[blk.Domain] = fv
		case ZeroDimensional:
			methods[blk.Domain] = spatial.NewZeroDimensional()
		default:
			return nil, errorf("unknown method type %q for domain %q", blk.Type, blk.Domain)
		}
	}
	return methods, nil
}

// ============================================================
// Declarations
// ============================================================

func (b *builder) bind(name string, e symbol.Expr) error {
	if _, ok := b.scope[name]; ok {
		return errorf("name %q declared twice", name)
	}
	b.scope[name] = e
	return nil
}

func (b *builder) declare(root *fileRoot) error {
	vars := map[string]*symbol.Variable{}
	for _, blk := range root.Variables {
		var opts []symbol.VariableOption
		if blk.Bounds != nil {
			if len(blk.Bounds) != 2 || blk.Bounds[0] > blk.Bounds[1] {
				return errorf("variable %q: bounds must be [lower, upper]", blk.Name)
			}
			opts = append(opts, symbol.WithBounds(blk.Bounds[0], blk.Bounds[1]))
		}
		if blk.Scale != nil {
			opts = append(opts, symbol.WithScale(symbol.NewScalar(*blk.Scale)))
		}
		if blk.Reference != nil {
			opts = append(opts, symbol.WithReference(symbol.NewScalar(*blk.Reference)))
		}
		v := symbol.NewVariable(blk.Name, symbol.Domains{Primary: blk.Domain, Secondary: blk.Secondary}, opts...)
		if err := b.bind(blk.Name, v); err != nil {
			return err
		}
		vars[blk.Name] = v
		b.states[blk.Name] = v
	}

	for _, blk := range root.Concatenations {
		parts := make([]*symbol.Variable, len(blk.Parts))
		for i, name := range blk.Parts {
			v, ok := vars[name]
			if !ok {
				return errorf("concatenation %q: %q is not a declared variable", blk.Name, name)
			}
			parts[i] = v
		}
		cv := symbol.NewConcatenationVariable(blk.Name, parts)
		if err := b.bind(blk.Name, cv); err != nil {
			return err
		}
		b.states[blk.Name] = cv
	}

	for _, blk := range root.SpatialVars {
		coordSys := blk.CoordSys
		if coordSys == "" && len(blk.Domain) > 0 {
			if sub, err := b.mesh.Get(blk.Domain[0]); err == nil {
				coordSys = sub.CoordSys
			}
		}
		if err := b.bind(blk.Name, symbol.NewSpatialVariable(blk.Name, symbol.D(blk.Domain...), coordSys)); err != nil {
			return err
		}
	}

	for _, blk := range root.Inputs {
		if err := b.bind(blk.Name, symbol.NewInputParameter(blk.Name, symbol.D(blk.Domain...))); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================
// Equations
// ============================================================

func (b *builder) state(blk *equationBlock, kind string) (symbol.StateVariable, error) {
	v, ok := b.states[blk.Name]
	if !ok {
		return nil, errorAt(blk.Value.Range(), "%s equation for undeclared variable %q", kind, blk.Name)
	}
	return v, nil
}

func (b *builder) keyed(dst *model.Equations, blocks []*equationBlock, kind string) error {
	for _, blk := range blocks {
		v, err := b.state(blk, kind)
		if err != nil {
			return err
		}
		if dst.Has(v.ID()) {
			return errorAt(blk.Value.Range(), "%s equation for %q given twice", kind, blk.Name)
		}
		e, err := b.expr(blk.Value)
		if err != nil {
			return err
		}
		dst.Set(v, e)
	}
	return nil
}

func (b *builder) equations(m *model.Model, root *fileRoot) error {
	if err := b.keyed(m.RHS, root.RHS, "rhs"); err != nil {
		return err
	}
	if err := b.keyed(m.Algebraic, root.Algebraic, "algebraic"); err != nil {
		return err
	}
	if err := b.keyed(m.InitialConditions, root.Initial, "initial"); err != nil {
		return err
	}

	for _, blk := range root.Boundaries {
		owner, ok := b.scope[blk.Name]
		if !ok {
			return errorf("boundary conditions for undeclared name %q", blk.Name)
		}
		sides := symbol.SideConditions{}
		for _, side := range blk.Sides {
			typ, err := symbol.ParseBCType(side.Type)
			if err != nil {
				return errorAt(side.Value.Range(), "boundary %q side %q: %v", blk.Name, side.Side, err)
			}
			e, err := b.expr(side.Value)
			if err != nil {
				return err
			}
			sides[side.Side] = symbol.BoundaryCondition{Expr: e, Type: typ}
		}
		m.BoundaryConditions.Set(owner, sides)
	}

	for _, blk := range root.Outputs {
		e, err := b.expr(blk.Value)
		if err != nil {
			return err
		}
		m.Variables.Set(blk.Name, e)
	}

	for _, blk := range root.Events {
		typ := model.EventTermination
		switch model.EventType(blk.Type) {
		case "":
		case model.EventTermination, model.EventDiscontinuity, model.EventSwitch:
			typ = model.EventType(blk.Type)
		default:
			return errorAt(blk.Expression.Range(), "event %q has unknown type %q", blk.Name, blk.Type)
		}
		e, err := b.expr(blk.Expression)
		if err != nil {
			return err
		}
		m.Events = append(m.Events, model.Event{Name: blk.Name, Expression: e, Type: typ})
	}

	for _, blk := range root.LengthScales {
		e, err := b.expr(blk.Value)
		if err != nil {
			return err
		}
		m.LengthScales[blk.Name] = e
	}
	return nil
}
