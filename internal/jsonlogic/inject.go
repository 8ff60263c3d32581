package jsonlogic

import "github.com/rafaeljc/superposition/internal/apperr"

// EqualsOperator is the operator used for injected dimensions.
const EqualsOperator = "=="

// Equals builds the condition {"==": [{"var": name}, value]}.
func Equals(name string, value any) map[string]any {
	return map[string]any{
		EqualsOperator: []any{map[string]any{"var": name}, value},
	}
}

// WithDimension returns a new context that also requires name == value.
//
// An empty context becomes the bare condition, a context with an "and" list
// gets the condition appended, and any other object is wrapped as
// {"and": [context, condition]}. The input is never mutated.
func WithDimension(context any, name string, value any) (map[string]any, error) {
	root, ok := context.(map[string]any)
	if !ok {
		return nil, apperr.BadArgument("context should be a map of key value pairs")
	}

	condition := Equals(name, value)
	if len(root) == 0 {
		return condition, nil
	}

	existing, err := Conditions(root)
	if err != nil {
		return nil, err
	}

	conditions := make([]any, 0, len(existing)+1)
	conditions = append(conditions, existing...)
	conditions = append(conditions, condition)

	return map[string]any{AndOperator: conditions}, nil
}
