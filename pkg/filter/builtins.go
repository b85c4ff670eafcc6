package filter

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

func arithmetic(op string, left, right any) (any, error) {
	if op == "+" {
		if ls, ok := left.(string); ok {
			if rs, ok := right.(string); ok {
				return ls + rs, nil
			}
		}
	}
	l, err := toNumber(left)
	if err != nil {
		return nil, &EvalError{Msg: err.Error()}
	}
	r, err := toNumber(right)
	if err != nil {
		return nil, &EvalError{Msg: err.Error()}
	}
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return nil, evalErrorf("division by zero")
		}
		return l / r, nil
	case "%":
		if r == 0 {
			return nil, evalErrorf("modulo by zero")
		}
		return math.Mod(l, r), nil
	case "^":
		return math.Pow(l, r), nil
	default:
		return nil, evalErrorf("unknown arithmetic operator %q", op)
	}
}

// callBuiltin dispatches a function call. Most builtins evaluate every
// argument eagerly against the current input; the higher-order ones
// (filter, map, sort, groupBy, keyBy, uniqBy, mapKeys, mapValues,
// mapObject) instead evaluate an argument expression once per element,
// closing over that element as the nested input.
func (e *evaluator) callBuiltin(name string, args []*Node, input any) (any, error) {
	switch name {
	case "get":
		key, err := e.evalString(args, 0, input)
		if err != nil {
			return nil, err
		}
		v, err := accessField(input, key)
		if err != nil {
			return nil, &EvalError{Msg: err.Error()}
		}
		return v, nil

	case "pipe":
		cur := input
		for _, a := range args {
			v, err := e.eval(a, cur)
			if err != nil {
				return nil, err
			}
			cur = v
		}
		return cur, nil

	case "object":
		out := map[string]any{}
		for i := 0; i+1 < len(args); i += 2 {
			k, err := e.eval(args[i], input)
			if err != nil {
				return nil, err
			}
			v, err := e.eval(args[i+1], input)
			if err != nil {
				return nil, err
			}
			out[toStringValue(k)] = v
		}
		return out, nil

	case "array":
		out := make([]any, len(args))
		for i, a := range args {
			v, err := e.eval(a, input)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case "filter":
		arr, err := e.evalArrayArg(input)
		if err != nil {
			return nil, err
		}
		if len(args) < 1 {
			return nil, evalErrorf("filter requires a predicate argument")
		}
		var out []any
		for _, el := range arr {
			v, err := e.eval(args[0], el)
			if err != nil {
				return nil, err
			}
			if truthy(v) {
				out = append(out, el)
			}
		}
		return out, nil

	case "map":
		arr, err := e.evalArrayArg(input)
		if err != nil {
			return nil, err
		}
		if len(args) < 1 {
			return nil, evalErrorf("map requires a transform argument")
		}
		out := make([]any, len(arr))
		for i, el := range arr {
			v, err := e.eval(args[0], el)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case "mapObject":
		obj, err := asObject(input)
		if err != nil {
			return nil, &EvalError{Msg: err.Error()}
		}
		if len(args) < 1 {
			return nil, evalErrorf("mapObject requires a transform argument")
		}
		out := map[string]any{}
		for _, k := range sortedKeys(obj) {
			entry := map[string]any{"key": k, "value": obj[k]}
			v, err := e.eval(args[0], entry)
			if err != nil {
				return nil, err
			}
			pair, err := asObject(v)
			if err != nil {
				return nil, evalErrorf("mapObject transform must return {key,value}: %v", err)
			}
			out[toStringValue(pair["key"])] = pair["value"]
		}
		return out, nil

	case "mapKeys":
		obj, err := asObject(input)
		if err != nil {
			return nil, &EvalError{Msg: err.Error()}
		}
		if len(args) < 1 {
			return nil, evalErrorf("mapKeys requires a transform argument")
		}
		out := map[string]any{}
		for _, k := range sortedKeys(obj) {
			nk, err := e.eval(args[0], k)
			if err != nil {
				return nil, err
			}
			out[toStringValue(nk)] = obj[k]
		}
		return out, nil

	case "mapValues":
		obj, err := asObject(input)
		if err != nil {
			return nil, &EvalError{Msg: err.Error()}
		}
		if len(args) < 1 {
			return nil, evalErrorf("mapValues requires a transform argument")
		}
		out := map[string]any{}
		for k, v := range obj {
			nv, err := e.eval(args[0], v)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil

	case "groupBy":
		arr, err := e.evalArrayArg(input)
		if err != nil {
			return nil, err
		}
		if len(args) < 1 {
			return nil, evalErrorf("groupBy requires a key expression")
		}
		out := map[string]any{}
		for _, el := range arr {
			key, err := e.eval(args[0], el)
			if err != nil {
				return nil, err
			}
			ks := toStringValue(key)
			group, _ := out[ks].([]any)
			out[ks] = append(group, el)
		}
		return out, nil

	case "keyBy":
		arr, err := e.evalArrayArg(input)
		if err != nil {
			return nil, err
		}
		if len(args) < 1 {
			return nil, evalErrorf("keyBy requires a key expression")
		}
		out := map[string]any{}
		for _, el := range arr {
			key, err := e.eval(args[0], el)
			if err != nil {
				return nil, err
			}
			out[toStringValue(key)] = el
		}
		return out, nil

	case "keys":
		obj, err := asObject(input)
		if err != nil {
			return nil, &EvalError{Msg: err.Error()}
		}
		ks := sortedKeys(obj)
		out := make([]any, len(ks))
		for i, k := range ks {
			out[i] = k
		}
		return out, nil

	case "values":
		obj, err := asObject(input)
		if err != nil {
			return nil, &EvalError{Msg: err.Error()}
		}
		ks := sortedKeys(obj)
		out := make([]any, len(ks))
		for i, k := range ks {
			out[i] = obj[k]
		}
		return out, nil

	case "flatten":
		arr, err := e.evalArrayArg(input)
		if err != nil {
			return nil, err
		}
		var out []any
		for _, el := range arr {
			if sub, ok := el.([]any); ok {
				out = append(out, sub...)
			} else {
				out = append(out, el)
			}
		}
		return out, nil

	case "join":
		arr, err := e.evalArrayArg(input)
		if err != nil {
			return nil, err
		}
		sep, err := e.evalString(args, 0, input)
		if err != nil {
			return nil, err
		}
		parts := make([]string, len(arr))
		for i, el := range arr {
			parts[i] = toStringValue(el)
		}
		return strings.Join(parts, sep), nil

	case "split":
		s, ok := input.(string)
		if !ok {
			return nil, evalErrorf("split requires a string input, got %T", input)
		}
		sep, err := e.evalString(args, 0, input)
		if err != nil {
			return nil, err
		}
		parts := strings.Split(s, sep)
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil

	case "substring":
		s, ok := input.(string)
		if !ok {
			return nil, evalErrorf("substring requires a string input, got %T", input)
		}
		runes := []rune(s)
		start, err := e.evalNumber(args, 0, input)
		if err != nil {
			return nil, err
		}
		end := float64(len(runes))
		if len(args) > 1 {
			end, err = e.evalNumber(args, 1, input)
			if err != nil {
				return nil, err
			}
		}
		si, ei := clampRange(int(start), int(end), len(runes))
		return string(runes[si:ei]), nil

	case "uniq":
		arr, err := e.evalArrayArg(input)
		if err != nil {
			return nil, err
		}
		return uniqueBy(arr, func(v any) any { return v }), nil

	case "uniqBy":
		arr, err := e.evalArrayArg(input)
		if err != nil {
			return nil, err
		}
		if len(args) < 1 {
			return nil, evalErrorf("uniqBy requires a key expression")
		}
		keys := make([]any, len(arr))
		for i, el := range arr {
			k, err := e.eval(args[0], el)
			if err != nil {
				return nil, err
			}
			keys[i] = k
		}
		var out []any
		var seen []any
		for i, k := range keys {
			dup := false
			for _, s := range seen {
				if deepEqual(s, k) {
					dup = true
					break
				}
			}
			if !dup {
				seen = append(seen, k)
				out = append(out, arr[i])
			}
		}
		return out, nil

	case "limit":
		arr, err := e.evalArrayArg(input)
		if err != nil {
			return nil, err
		}
		n, err := e.evalNumber(args, 0, input)
		if err != nil {
			return nil, err
		}
		ni := int(n)
		if ni < 0 {
			ni = 0
		}
		if ni > len(arr) {
			ni = len(arr)
		}
		return arr[:ni], nil

	case "size":
		switch t := input.(type) {
		case []any:
			return float64(len(t)), nil
		case map[string]any:
			return float64(len(t)), nil
		case string:
			return float64(len([]rune(t))), nil
		case nil:
			return float64(0), nil
		default:
			return nil, evalErrorf("size not defined for %T", input)
		}

	case "sum", "prod", "average":
		arr, err := e.evalArrayArg(input)
		if err != nil {
			return nil, err
		}
		return reduceNumeric(name, arr)

	case "min", "max":
		arr, err := e.evalArrayArg(input)
		if err != nil {
			return nil, err
		}
		if len(arr) == 0 {
			return nil, nil
		}
		best := arr[0]
		for _, v := range arr[1:] {
			if (name == "min" && lessValues(v, best)) || (name == "max" && lessValues(best, v)) {
				best = v
			}
		}
		return best, nil

	case "sort":
		arr, err := e.evalArrayArg(input)
		if err != nil {
			return nil, err
		}
		out := append([]any(nil), arr...)
		dir := "asc"
		if len(args) > 1 {
			d, err := e.evalString(args, 1, input)
			if err != nil {
				return nil, err
			}
			dir = d
		}
		var sortErr error
		sort.SliceStable(out, func(i, j int) bool {
			ki, kj := out[i], out[j]
			if len(args) > 0 {
				ki, sortErr = e.eval(args[0], out[i])
				kj2, err2 := e.eval(args[0], out[j])
				if err2 != nil {
					sortErr = err2
				}
				kj = kj2
			}
			if dir == "desc" {
				return lessValues(kj, ki)
			}
			return lessValues(ki, kj)
		})
		if sortErr != nil {
			return nil, sortErr
		}
		return out, nil

	case "reverse":
		arr, err := e.evalArrayArg(input)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(arr))
		for i, v := range arr {
			out[len(arr)-1-i] = v
		}
		return out, nil

	case "pick":
		obj, err := asObject(input)
		if err != nil {
			return nil, &EvalError{Msg: err.Error()}
		}
		out := map[string]any{}
		for _, a := range args {
			k, err := e.eval(a, input)
			if err != nil {
				return nil, err
			}
			ks := toStringValue(k)
			if v, ok := obj[ks]; ok {
				out[ks] = v
			}
		}
		return out, nil

	case "eq", "ne", "gt", "gte", "lt", "lte":
		l, r, err := e.evalTwo(args, input)
		if err != nil {
			return nil, err
		}
		return applyBinaryOp(comparisonAlias[name], l, r)

	case "and":
		for _, a := range args {
			v, err := e.eval(a, input)
			if err != nil {
				return nil, err
			}
			if !truthy(v) {
				return false, nil
			}
		}
		return true, nil

	case "or":
		for _, a := range args {
			v, err := e.eval(a, input)
			if err != nil {
				return nil, err
			}
			if truthy(v) {
				return true, nil
			}
		}
		return false, nil

	case "not":
		v, err := e.eval(args[0], input)
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil

	case "exists":
		target := args
		if len(target) == 0 {
			return input != nil, nil
		}
		v, err := e.eval(target[0], input)
		if err != nil {
			return false, nil
		}
		return v != nil, nil

	case "if":
		if len(args) < 2 {
			return nil, evalErrorf("if requires (cond, then, else?)")
		}
		cond, err := e.eval(args[0], input)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return e.eval(args[1], input)
		}
		if len(args) > 2 {
			return e.eval(args[2], input)
		}
		return nil, nil

	case "in", "not in":
		l, r, err := e.evalTwo(args, input)
		if err != nil {
			return nil, err
		}
		return applyBinaryOp(name, l, r)

	case "regex":
		text, err := e.evalString(args, 0, input)
		if err != nil {
			return nil, err
		}
		pattern, err := e.evalString(args, 1, input)
		if err != nil {
			return nil, err
		}
		flags := ""
		if len(args) > 2 {
			flags, err = e.evalString(args, 2, input)
			if err != nil {
				return nil, err
			}
		}
		if strings.Contains(flags, "i") {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, evalErrorf("invalid regex pattern: %v", err)
		}
		return re.MatchString(text), nil

	case "add", "sub", "mul", "div", "pow", "mod":
		l, r, err := e.evalTwo(args, input)
		if err != nil {
			return nil, err
		}
		return arithmetic(arithAlias[name], l, r)

	case "abs":
		n, err := e.evalNumber(args, 0, input)
		if err != nil {
			return nil, err
		}
		return math.Abs(n), nil

	case "round":
		n, err := e.evalNumber(args, 0, input)
		if err != nil {
			return nil, err
		}
		digits := 0.0
		if len(args) > 1 {
			digits, err = e.evalNumber(args, 1, input)
			if err != nil {
				return nil, err
			}
		}
		scale := math.Pow(10, digits)
		return math.Round(n*scale) / scale, nil

	case "number":
		v, err := e.eval(args[0], input)
		if err != nil {
			return nil, err
		}
		n, err := toNumber(v)
		if err != nil {
			return nil, &EvalError{Msg: err.Error()}
		}
		return n, nil

	case "string":
		v, err := e.eval(args[0], input)
		if err != nil {
			return nil, err
		}
		return toStringValue(v), nil

	default:
		return nil, evalErrorf("unknown function %q", name)
	}
}

var comparisonAlias = map[string]string{
	"eq": "==", "ne": "!=", "gt": ">", "gte": ">=", "lt": "<", "lte": "<=",
}

var arithAlias = map[string]string{
	"add": "+", "sub": "-", "mul": "*", "div": "/", "pow": "^", "mod": "%",
}

func (e *evaluator) evalArrayArg(input any) ([]any, error) {
	arr, err := asArray(input)
	if err != nil {
		return nil, &EvalError{Msg: err.Error()}
	}
	return arr, nil
}

func (e *evaluator) evalString(args []*Node, idx int, input any) (string, error) {
	if idx >= len(args) {
		return "", evalErrorf("missing argument %d", idx)
	}
	v, err := e.eval(args[idx], input)
	if err != nil {
		return "", err
	}
	return toStringValue(v), nil
}

func (e *evaluator) evalNumber(args []*Node, idx int, input any) (float64, error) {
	if idx >= len(args) {
		return 0, evalErrorf("missing argument %d", idx)
	}
	v, err := e.eval(args[idx], input)
	if err != nil {
		return 0, err
	}
	n, err := toNumber(v)
	if err != nil {
		return 0, &EvalError{Msg: err.Error()}
	}
	return n, nil
}

func (e *evaluator) evalTwo(args []*Node, input any) (any, any, error) {
	if len(args) < 2 {
		return nil, nil, evalErrorf("expected 2 arguments, got %d", len(args))
	}
	l, err := e.eval(args[0], input)
	if err != nil {
		return nil, nil, err
	}
	r, err := e.eval(args[1], input)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func clampRange(start, end, n int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start > n {
		start = n
	}
	if end < start {
		end = start
	}
	return start, end
}

func uniqueBy(arr []any, key func(any) any) []any {
	var out []any
	var seen []any
	for _, v := range arr {
		k := key(v)
		dup := false
		for _, s := range seen {
			if deepEqual(s, k) {
				dup = true
				break
			}
		}
		if !dup {
			seen = append(seen, k)
			out = append(out, v)
		}
	}
	return out
}

func reduceNumeric(kind string, arr []any) (any, error) {
	if kind == "average" && len(arr) == 0 {
		return 0.0, nil
	}
	acc := 0.0
	if kind == "prod" {
		acc = 1.0
	}
	for _, v := range arr {
		n, err := toNumber(v)
		if err != nil {
			return nil, &EvalError{Msg: err.Error()}
		}
		switch kind {
		case "sum", "average":
			acc += n
		case "prod":
			acc *= n
		}
	}
	if kind == "average" {
		return acc / float64(len(arr)), nil
	}
	return acc, nil
}
