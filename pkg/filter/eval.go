package filter

import "fmt"

// Limits bounds the cost of evaluating an expression tree.
type Limits struct {
	MaxDepth int
	MaxNodes int
}

// DefaultLimits returns the engine's default depth and node-count caps.
func DefaultLimits() Limits {
	return Limits{MaxDepth: MaxDepth, MaxNodes: MaxNodes}
}

// EvalError marks a failure that maps onto ErrorKind.FilterFailed:
// parse errors, evaluation errors, and resource-limit violations all
// surface through this type.
type EvalError struct {
	Msg string
}

func (e *EvalError) Error() string { return e.Msg }

func evalErrorf(format string, args ...any) *EvalError {
	return &EvalError{Msg: fmt.Sprintf(format, args...)}
}

// Eval runs node against input under the given parameter bindings and
// cost limits. The evaluator is pure: no I/O, no reflection over
// arbitrary Go values, no host access — only the JSON value shapes
// produced by encoding/json (nil, bool, float64, string, []any,
// map[string]any).
func Eval(node *Node, input any, params map[string]Param, limits Limits) (any, error) {
	if limits.MaxDepth <= 0 {
		limits.MaxDepth = MaxDepth
	}
	if limits.MaxNodes <= 0 {
		limits.MaxNodes = MaxNodes
	}
	if d := node.Depth(); d > limits.MaxDepth {
		return nil, evalErrorf("expression depth %d exceeds limit %d", d, limits.MaxDepth)
	}
	if c := node.NodeCount(); c > limits.MaxNodes {
		return nil, evalErrorf("expression node count %d exceeds limit %d", c, limits.MaxNodes)
	}
	e := &evaluator{params: params}
	return e.eval(node, input)
}

type evaluator struct {
	params map[string]Param
}

func (e *evaluator) eval(n *Node, input any) (any, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case KindNumber:
		return n.Num, nil
	case KindString:
		return n.Str, nil
	case KindBool:
		return n.Bool, nil
	case KindNull:
		return nil, nil
	case KindIdentity:
		return input, nil
	case KindParam:
		p, ok := e.params[n.Name]
		if !ok {
			return nil, evalErrorf("unknown parameter $%s", n.Name)
		}
		return p.toValue(), nil
	case KindAccessor:
		base, err := e.eval(n.Target, input)
		if err != nil {
			return nil, err
		}
		v, err := accessField(base, n.Field)
		if err != nil {
			return nil, &EvalError{Msg: err.Error()}
		}
		return v, nil
	case KindPipe:
		left, err := e.eval(n.Left, input)
		if err != nil {
			return nil, err
		}
		return e.eval(n.Right, left)
	case KindNot:
		v, err := e.eval(n.Target, input)
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	case KindUnary:
		v, err := e.eval(n.Target, input)
		if err != nil {
			return nil, err
		}
		num, err := toNumber(v)
		if err != nil {
			return nil, &EvalError{Msg: err.Error()}
		}
		return -num, nil
	case KindArray:
		out := make([]any, len(n.Elems))
		for i, el := range n.Elems {
			v, err := e.eval(el, input)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case KindObject:
		out := make(map[string]any, len(n.Pairs))
		for _, p := range n.Pairs {
			v, err := e.eval(p.Value, input)
			if err != nil {
				return nil, err
			}
			out[p.Key] = v
		}
		return out, nil
	case KindBinary:
		return e.evalBinary(n, input)
	case KindCall:
		return e.callBuiltin(n.Name, n.Args, input)
	default:
		return nil, evalErrorf("unhandled node kind %s", n.Kind)
	}
}

func (e *evaluator) evalBinary(n *Node, input any) (any, error) {
	if n.Op == "and" {
		left, err := e.eval(n.Left, input)
		if err != nil {
			return nil, err
		}
		if !truthy(left) {
			return false, nil
		}
		right, err := e.eval(n.Right, input)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	}
	if n.Op == "or" {
		left, err := e.eval(n.Left, input)
		if err != nil {
			return nil, err
		}
		if truthy(left) {
			return true, nil
		}
		right, err := e.eval(n.Right, input)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	}

	left, err := e.eval(n.Left, input)
	if err != nil {
		return nil, err
	}
	right, err := e.eval(n.Right, input)
	if err != nil {
		return nil, err
	}
	return applyBinaryOp(n.Op, left, right)
}

func applyBinaryOp(op string, left, right any) (any, error) {
	switch op {
	case "==":
		return deepEqual(left, right), nil
	case "!=":
		return !deepEqual(left, right), nil
	case ">":
		if typeClass(left) != typeClass(right) {
			return false, nil
		}
		return lessValues(right, left), nil
	case "<":
		if typeClass(left) != typeClass(right) {
			return false, nil
		}
		return lessValues(left, right), nil
	case ">=":
		if typeClass(left) != typeClass(right) {
			return false, nil
		}
		return !lessValues(left, right), nil
	case "<=":
		if typeClass(left) != typeClass(right) {
			return false, nil
		}
		return !lessValues(right, left), nil
	case "in":
		arr, err := asArray(right)
		if err != nil {
			return nil, &EvalError{Msg: err.Error()}
		}
		for _, v := range arr {
			if deepEqual(v, left) {
				return true, nil
			}
		}
		return false, nil
	case "not in":
		arr, err := asArray(right)
		if err != nil {
			return nil, &EvalError{Msg: err.Error()}
		}
		for _, v := range arr {
			if deepEqual(v, left) {
				return false, nil
			}
		}
		return true, nil
	case "+", "-", "*", "/", "%", "^":
		return arithmetic(op, left, right)
	default:
		return nil, evalErrorf("unknown operator %q", op)
	}
}
