package jsonlogic

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/rafaeljc/superposition/internal/apperr"
)

// AndOperator is the only compound operator understood at the root.
const AndOperator = "and"

const hint = "Ensure the context provided obeys the rules of JSON logic"

// Parse decodes raw JSON into the generic representation used by this package.
// Numbers are kept as json.Number so override and context values round-trip exactly.
func Parse(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, apperr.Wrap(apperr.KindBadArgument, err, "context is not valid JSON")
	}
	return v, nil
}

// Extract decomposes a context into its dimensions.
//
// Conditions are visited in order; within a condition, operators are visited
// in sorted key order. A name seen twice keeps its first position and takes
// the later value.
func Extract(context any) (*Dimensions, error) {
	root, ok := context.(map[string]any)
	if !ok {
		return nil, apperr.BadArgument("error extracting dimensions, context is not a valid JSON object. Provide a valid JSON context")
	}

	conditions, err := Conditions(root)
	if err != nil {
		return nil, err
	}

	dims := NewDimensions()
	for _, condition := range conditions {
		obj, ok := condition.(map[string]any)
		if !ok {
			return nil, apperr.BadArgument("failed to parse condition as an object. %s", hint)
		}

		for _, operator := range sortedKeys(obj) {
			operands, ok := obj[operator].([]any)
			if !ok {
				return nil, apperr.BadArgument("failed to parse operands of %q as an array. %s", operator, hint)
			}

			name, value, err := VariableNameAndValue(operands)
			if err != nil {
				return nil, err
			}
			dims.Set(name, value)
		}
	}

	return dims, nil
}

// Conditions returns the flat list of conditions of a context:
// the "and" array if present, otherwise the root itself.
func Conditions(root map[string]any) ([]any, error) {
	raw, ok := root[AndOperator]
	if !ok {
		return []any{root}, nil
	}
	conditions, ok := raw.([]any)
	if !ok {
		return nil, apperr.BadArgument("error extracting dimensions, failed parsing conditions as an array. %s", hint)
	}
	return conditions, nil
}

// VariableNameAndValue applies the positional-complement rule to a
// two-element operand list: one element must be {"var": "<name>"} and the
// other element is the value.
func VariableNameAndValue(operands []any) (string, any, error) {
	if len(operands) != 2 {
		return "", nil, apperr.BadArgument("expected exactly 2 operands, got %d. %s", len(operands), hint)
	}

	varPos := -1
	for i, operand := range operands {
		if isVarReference(operand) {
			if varPos >= 0 {
				return "", nil, apperr.BadArgument("both operands are variable references. %s", hint)
			}
			varPos = i
		}
	}
	if varPos < 0 {
		return "", nil, apperr.BadArgument("failed to get variable name from operands list. %s", hint)
	}

	name, ok := operands[varPos].(map[string]any)["var"].(string)
	if !ok {
		return "", nil, apperr.BadArgument("failed to get variable name as string. %s", hint)
	}

	// A literal null is a legitimate value; the length check above already
	// rejects a missing value operand.
	return name, operands[(varPos+1)%2], nil
}

func isVarReference(operand any) bool {
	obj, ok := operand.(map[string]any)
	if !ok {
		return false
	}
	_, ok = obj["var"]
	return ok
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
