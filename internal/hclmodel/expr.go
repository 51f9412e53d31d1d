package hclmodel

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/njchilds90/godisc/symbol"
)

var spatialOperators = map[string]func(symbol.Expr) *symbol.SpatialOperator{
	"grad":         symbol.Grad,
	"div":          symbol.Div,
	"laplacian":    symbol.Laplacian,
	"grad_squared": symbol.GradSquared,
	"upwind":       symbol.Upwind,
	"downwind":     symbol.Downwind,
	"not_constant": symbol.NotConstantOf,
}

var boundaryOperators = map[string]func(symbol.Expr, string) *symbol.BoundaryOperator{
	"boundary_value":    symbol.BoundaryValue,
	"boundary_gradient": symbol.BoundaryGradient,
}

var broadcasts = map[string]func(symbol.Expr, ...string) *symbol.Broadcast{
	"broadcast":           symbol.PrimaryBroadcast,
	"secondary_broadcast": symbol.SecondaryBroadcast,
	"full_broadcast": func(child symbol.Expr, domain ...string) *symbol.Broadcast {
		return symbol.FullBroadcast(child, symbol.D(domain...))
	},
}

var binaryFunctions = map[string]func(symbol.Expr, symbol.Expr) symbol.Expr{
	"min": symbol.MinOf,
	"max": symbol.MaxOf,
	"pow": symbol.PowOf,
}

// expr translates an HCL expression into a symbol tree.
func (b *builder) expr(e hcl.Expression) (symbol.Expr, error) {
	switch v := e.(type) {
	case *hclsyntax.LiteralValueExpr:
		f, err := number(v.Val, v.SrcRange)
		if err != nil {
			return nil, err
		}
		return symbol.NewScalar(f), nil

	case *hclsyntax.ScopeTraversalExpr:
		if len(v.Traversal) != 1 {
			return nil, errorAt(v.SrcRange, "attribute and index access are not supported")
		}
		name := v.Traversal.RootName()
		s, ok := b.scope[name]
		if !ok {
			return nil, errorAt(v.SrcRange, "unknown name %q", name)
		}
		return s, nil

	case *hclsyntax.ParenthesesExpr:
		return b.expr(v.Expression)

	case *hclsyntax.UnaryOpExpr:
		if v.Op != hclsyntax.OpNegate {
			return nil, errorAt(v.SrcRange, "unsupported unary operator")
		}
		x, err := b.expr(v.Val)
		if err != nil {
			return nil, err
		}
		return symbol.NegOf(x), nil

	case *hclsyntax.BinaryOpExpr:
		return b.binary(v)

	case *hclsyntax.TupleConsExpr:
		values := make([]float64, len(v.Exprs))
		for i, item := range v.Exprs {
			x, err := b.expr(item)
			if err != nil {
				return nil, err
			}
			s, ok := x.(*symbol.Scalar)
			if !ok {
				return nil, errorAt(item.Range(), "vector entries must be numbers")
			}
			values[i] = s.Value()
		}
		if len(values) == 0 {
			return nil, errorAt(v.SrcRange, "empty vector")
		}
		return symbol.NewVector(values...), nil

	case *hclsyntax.FunctionCallExpr:
		return b.call(v)
	}
	return nil, errorAt(e.Range(), "unsupported expression")
}

func (b *builder) binary(v *hclsyntax.BinaryOpExpr) (symbol.Expr, error) {
	var build func(symbol.Expr, symbol.Expr) symbol.Expr
	switch v.Op {
	case hclsyntax.OpAdd:
		build = symbol.AddOf
	case hclsyntax.OpSubtract:
		build = symbol.SubOf
	case hclsyntax.OpMultiply:
		build = symbol.MulOf
	case hclsyntax.OpDivide:
		build = symbol.DivOf
	default:
		return nil, errorAt(v.SrcRange, "unsupported binary operator")
	}
	left, err := b.expr(v.LHS)
	if err != nil {
		return nil, err
	}
	right, err := b.expr(v.RHS)
	if err != nil {
		return nil, err
	}
	return build(left, right), nil
}

func (b *builder) call(v *hclsyntax.FunctionCallExpr) (symbol.Expr, error) {
	name := v.Name
	if len(v.Args) == 0 {
		return nil, errorAt(v.NameRange, "%s needs at least one argument", name)
	}
	child, err := b.expr(v.Args[0])
	if err != nil {
		return nil, err
	}
	rest := v.Args[1:]

	if op, ok := spatialOperators[name]; ok {
		if err := arity(v, 1); err != nil {
			return nil, err
		}
		return op(child), nil
	}
	if op, ok := boundaryOperators[name]; ok {
		if err := arity(v, 2); err != nil {
			return nil, err
		}
		side, err := str(rest[0])
		if err != nil {
			return nil, err
		}
		return op(child, side), nil
	}
	if op, ok := broadcasts[name]; ok {
		domain, err := strs(rest)
		if err != nil {
			return nil, err
		}
		if len(domain) == 0 {
			return nil, errorAt(v.NameRange, "%s needs a domain", name)
		}
		return op(child, domain...), nil
	}
	if op, ok := binaryFunctions[name]; ok {
		if err := arity(v, 2); err != nil {
			return nil, err
		}
		other, err := b.expr(rest[0])
		if err != nil {
			return nil, err
		}
		return op(child, other), nil
	}
	if symbol.IsFunctionName(name) {
		if err := arity(v, 1); err != nil {
			return nil, err
		}
		return symbol.FunctionOf(name, child), nil
	}

	switch name {
	case "abs":
		if err := arity(v, 1); err != nil {
			return nil, err
		}
		return symbol.AbsOf(child), nil

	case "dt":
		if err := arity(v, 1); err != nil {
			return nil, err
		}
		x, ok := child.(*symbol.Variable)
		if !ok {
			return nil, errorAt(v.Args[0].Range(), "dt needs a variable")
		}
		return symbol.Dt(x), nil

	case "integral", "average":
		vars, err := b.spatialVariables(rest)
		if err != nil {
			return nil, err
		}
		if len(vars) == 0 {
			return nil, errorAt(v.NameRange, "%s needs a spatial variable", name)
		}
		if name == "average" {
			return symbol.AverageOf(child, vars...), nil
		}
		return symbol.IntegralOf(child, vars...), nil

	case "indefinite", "backward_indefinite":
		if err := arity(v, 2); err != nil {
			return nil, err
		}
		vars, err := b.spatialVariables(rest)
		if err != nil {
			return nil, err
		}
		if name == "backward_indefinite" {
			return symbol.BackwardIndefinite(child, vars[0]), nil
		}
		return symbol.Indefinite(child, vars[0]), nil

	case "boundary_integral":
		if err := arity(v, 2); err != nil {
			return nil, err
		}
		region, err := str(rest[0])
		if err != nil {
			return nil, err
		}
		return symbol.NewBoundaryIntegral(child, region), nil

	case "delta":
		if err := arity(v, 3); err != nil {
			return nil, err
		}
		args, err := strs(rest)
		if err != nil {
			return nil, err
		}
		return symbol.DeltaFunctionOf(child, args[0], args[1]), nil
	}
	return nil, errorAt(v.NameRange, "unknown function %q", name)
}

func (b *builder) spatialVariables(args []hclsyntax.Expression) ([]*symbol.SpatialVariable, error) {
	out := make([]*symbol.SpatialVariable, len(args))
	for i, arg := range args {
		x, err := b.expr(arg)
		if err != nil {
			return nil, err
		}
		sv, ok := x.(*symbol.SpatialVariable)
		if !ok {
			return nil, errorAt(arg.Range(), "expected a spatial variable")
		}
		out[i] = sv
	}
	return out, nil
}

func arity(v *hclsyntax.FunctionCallExpr, n int) error {
	if len(v.Args) != n {
		return errorAt(v.NameRange, "%s takes %d arguments, got %d", v.Name, n, len(v.Args))
	}
	return nil
}

func number(val cty.Value, rng hcl.Range) (float64, error) {
	if !val.Type().Equals(cty.Number) {
		return 0, errorAt(rng, "expected a number, got %s", val.Type().FriendlyName())
	}
	var f float64
	if err := gocty.FromCtyValue(val, &f); err != nil {
		return 0, errorAt(rng, "%v", err)
	}
	return f, nil
}

// str evaluates a constant string argument such as a side or domain name.
func str(e hclsyntax.Expression) (string, error) {
	val, diags := e.Value(nil)
	if diags.HasErrors() {
		return "", errorAt(e.Range(), "%s", diags.Error())
	}
	if !val.Type().Equals(cty.String) {
		return "", errorAt(e.Range(), "expected a string, got %s", val.Type().FriendlyName())
	}
	var s string
	if err := gocty.FromCtyValue(val, &s); err != nil {
		return "", errorAt(e.Range(), "%v", err)
	}
	return s, nil
}

func strs(args []hclsyntax.Expression) ([]string, error) {
	out := make([]string, len(args))
	for i, arg := range args {
		s, err := str(arg)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
