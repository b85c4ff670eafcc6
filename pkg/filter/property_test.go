//go:build property
// +build property

package filter

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// buildExpr constructs a small well-formed expression over a fixed set of
// fields and operators: a bare field access when depth <= 0, otherwise a
// single parenthesized binary expression whose field, operator and
// integer operand are picked by depth. The generator therefore never
// produces syntax the parser rejects.
func buildExpr(depth int, fields, ops []string) string {
	if depth <= 0 {
		return "." + fields[0]
	}
	return fmt.Sprintf("(.%s %s %d)", fields[depth%len(fields)], ops[depth%len(ops)], depth)
}

// TestFilterParserRoundTrip checks invariant 3: for every accepted
// expression, parse(print(ast)) is deep-equal to ast.
func TestFilterParserRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	fields := []string{"a", "b", "c"}
	ops := []string{"+", "-", "*"}

	properties.Property("parse(print(ast)) == ast", prop.ForAll(
		func(depth int) bool {
			src := buildExpr(depth%6, fields, ops)
			n, err := Parse(src)
			if err != nil {
				return false
			}
			printed := Print(n)
			n2, err := Parse(printed)
			if err != nil {
				return false
			}
			return nodesEqual(n, n2)
		},
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}

// TestFilterChainEquivalence checks invariant 4: applying a chain
// [f1..fk] to x is equivalent to fk(...f1(x)...).
func TestFilterChainEquivalence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("chain equals nested application", prop.ForAll(
		func(n float64) bool {
			input := map[string]any{"n": n}
			step1, _ := Parse(`{n: .n + 1}`)
			step2, _ := Parse(`{n: .n * 2}`)

			var chained any = input
			for _, node := range []*Node{step1, step2} {
				out, err := Eval(node, chained, nil, DefaultLimits())
				if err != nil {
					return false
				}
				chained = out
			}

			nested, err1 := Eval(step1, input, nil, DefaultLimits())
			if err1 != nil {
				return false
			}
			nested, err2 := Eval(step2, nested, nil, DefaultLimits())
			if err2 != nil {
				return false
			}

			return nodesEqualAny(chained, nested)
		},
		gen.Float64Range(-1000, 1000),
	))

	properties.TestingRun(t)
}

func nodesEqual(a, b *Node) bool {
	return reflect.DeepEqual(a, b)
}

func nodesEqualAny(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
