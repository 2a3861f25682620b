package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ConditionOperator is one of the closed set of comparison operators a
// workflow condition may use. Unknown operators are rejected when the
// workflow is constructed, not when it first fires.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorContains    ConditionOperator = "contains"
	OperatorNotContains ConditionOperator = "not_contains"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorIsEmpty     ConditionOperator = "is_empty"
	OperatorIsNotEmpty  ConditionOperator = "is_not_empty"
	OperatorIn          ConditionOperator = "in"
	OperatorNotIn       ConditionOperator = "not_in"
)

// ParseOperator validates an operator name from a stored workflow definition.
func ParseOperator(s string) (ConditionOperator, error) {
	switch op := ConditionOperator(s); op {
	case OperatorEquals, OperatorNotEquals,
		OperatorContains, OperatorNotContains,
		OperatorGreaterThan, OperatorLessThan,
		OperatorIsEmpty, OperatorIsNotEmpty,
		OperatorIn, OperatorNotIn:
		return op, nil
	default:
		return "", fmt.Errorf("unknown condition operator %q", s)
	}
}

// ConditionLogic joins a workflow's conditions: "and" requires all to pass,
// "or" requires any.
type ConditionLogic string

const (
	ConditionLogicAnd ConditionLogic = "and"
	ConditionLogicOr  ConditionLogic = "or"
)

// Condition compares one field of the flattened entity view against a value.
type Condition struct {
	Field    string            `json:"field"    validate:"required"`
	Operator ConditionOperator `json:"operator" validate:"required"`
	Value    any               `json:"value"`
}

// Evaluate applies the condition to the flattened entity view. A missing
// field is treated as empty rather than an error so that conditions over
// optional custom fields behave predictably.
func (c Condition) Evaluate(view map[string]any) (bool, error) {
	actual, ok := view[c.Field]

	switch c.Operator {
	case OperatorIsEmpty:
		return !ok || isEmptyValue(actual), nil
	case OperatorIsNotEmpty:
		return ok && !isEmptyValue(actual), nil
	case OperatorEquals:
		return ok && looseEqual(actual, c.Value), nil
	case OperatorNotEquals:
		return !ok || !looseEqual(actual, c.Value), nil
	case OperatorContains:
		return ok && strings.Contains(stringify(actual), stringify(c.Value)), nil
	case OperatorNotContains:
		return !ok || !strings.Contains(stringify(actual), stringify(c.Value)), nil
	case OperatorGreaterThan:
		if !ok {
			return false, nil
		}

		return compareNumeric(actual, c.Value, func(a, b float64) bool { return a > b })
	case OperatorLessThan:
		if !ok {
			return false, nil
		}

		return compareNumeric(actual, c.Value, func(a, b float64) bool { return a < b })
	case OperatorIn:
		return ok && valueInList(actual, c.Value), nil
	case OperatorNotIn:
		return !ok || !valueInList(actual, c.Value), nil
	default:
		return false, fmt.Errorf("unknown condition operator %q", c.Operator)
	}
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

// looseEqual compares via string representation so that JSON-decoded numbers
// (always float64) still match integer configuration values.
func looseEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)

	if aok && bok {
		return af == bf
	}

	return stringify(a) == stringify(b)
}

func compareNumeric(a, b any, cmp func(a, b float64) bool) (bool, error) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)

	if !aok || !bok {
		return false, fmt.Errorf("cannot compare %T with %T numerically", a, b)
	}

	return cmp(af, bf), nil
}

func valueInList(actual, list any) bool {
	items, ok := list.([]any)
	if !ok {
		return false
	}

	for _, item := range items {
		if looseEqual(actual, item) {
			return true
		}
	}

	return false
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)

		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", v)
}
