package retriever

import (
	"fmt"
	"strings"

	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

// ConstraintType names a property predicate applied to pattern nodes.
type ConstraintType string

const (
	ConstraintEquals             ConstraintType = "EQUALS"
	ConstraintNotEquals          ConstraintType = "NOT_EQUALS"
	ConstraintGreaterThan        ConstraintType = "GREATER_THAN"
	ConstraintGreaterThanOrEqual ConstraintType = "GREATER_THAN_OR_EQUAL"
	ConstraintLessThan           ConstraintType = "LESS_THAN"
	ConstraintLessThanOrEqual    ConstraintType = "LESS_THAN_OR_EQUAL"
	ConstraintContains           ConstraintType = "CONTAINS"
	ConstraintStartsWith         ConstraintType = "STARTS_WITH"
	ConstraintEndsWith           ConstraintType = "ENDS_WITH"
	ConstraintIn                 ConstraintType = "IN"
	ConstraintExists             ConstraintType = "EXISTS"
)

// Valid reports whether t is a recognized constraint type.
func (t ConstraintType) Valid() bool {
	switch t {
	case ConstraintEquals, ConstraintNotEquals,
		ConstraintGreaterThan, ConstraintGreaterThanOrEqual,
		ConstraintLessThan, ConstraintLessThanOrEqual,
		ConstraintContains, ConstraintStartsWith, ConstraintEndsWith,
		ConstraintIn, ConstraintExists:
		return true
	}
	return false
}

// Constraint restricts the nodes a pattern may bind: every node in a
// matched path whose label equals Label must satisfy the predicate.
type Constraint struct {
	Label    string         `json:"label"`
	Property string         `json:"property"`
	Type     ConstraintType `json:"type"`
	Value    any            `json:"value,omitempty"`
}

// Validate checks the constraint definition.
func (c Constraint) Validate() error {
	if c.Label == "" {
		return types.NewError(types.VALIDATION_FAILED, "constraint label must not be empty")
	}
	if c.Property == "" {
		return types.NewError(types.VALIDATION_FAILED, "constraint property must not be empty")
	}
	if !c.Type.Valid() {
		return types.NewErrorf(types.VALIDATION_FAILED, "unknown constraint type %q", c.Type)
	}
	if c.Type != ConstraintExists && c.Value == nil {
		return types.NewErrorf(types.VALIDATION_FAILED, "constraint %s requires a value", c.Type)
	}
	return nil
}

func (c Constraint) clone() Constraint {
	out := c
	if values, ok := c.Value.([]any); ok {
		out.Value = append([]any(nil), values...)
	}
	return out
}

// appliesTo reports whether the constraint targets the node's label.
func (c Constraint) appliesTo(node *knowledge.Node) bool {
	return node.Label == c.Label
}

// Satisfied evaluates the predicate against the node's properties.
// Missing properties fail every predicate except NOT_EQUALS.
func (c Constraint) Satisfied(node *knowledge.Node) bool {
	value, ok := node.LookupProperty(c.Property)
	if !ok {
		return c.Type == ConstraintNotEquals
	}

	switch c.Type {
	case ConstraintExists:
		return true
	case ConstraintEquals:
		return valuesEqual(value, c.Value)
	case ConstraintNotEquals:
		return !valuesEqual(value, c.Value)
	case ConstraintGreaterThan, ConstraintGreaterThanOrEqual,
		ConstraintLessThan, ConstraintLessThanOrEqual:
		return compareNumeric(c.Type, value, c.Value)
	case ConstraintContains:
		return strings.Contains(asString(value), asString(c.Value))
	case ConstraintStartsWith:
		return strings.HasPrefix(asString(value), asString(c.Value))
	case ConstraintEndsWith:
		return strings.HasSuffix(asString(value), asString(c.Value))
	case ConstraintIn:
		values, ok := c.Value.([]any)
		if !ok {
			return false
		}
		for _, candidate := range values {
			if valuesEqual(value, candidate) {
				return true
			}
		}
		return false
	}
	return false
}

// valuesEqual compares property values, treating all numeric types as
// equal when their float64 forms match so values survive a JSON round
// trip.
func valuesEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func compareNumeric(op ConstraintType, a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false
	}
	switch op {
	case ConstraintGreaterThan:
		return af > bf
	case ConstraintGreaterThanOrEqual:
		return af >= bf
	case ConstraintLessThan:
		return af < bf
	case ConstraintLessThanOrEqual:
		return af <= bf
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
