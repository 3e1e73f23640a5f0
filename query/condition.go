package query

import (
	"cmp"
	"fmt"
	"reflect"
	"time"
)

// Op is a condition operator.
type Op string

const (
	OpEq Op = "eq"
	OpNe Op = "ne"
	OpIn Op = "in"
)

// Condition constrains one field.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Eq matches rows where field equals v. A nil v matches NULL.
func Eq(field string, v any) Condition {
	return Condition{Field: field, Op: OpEq, Value: v}
}

// Ne matches rows where field differs from v.
func Ne(field string, v any) Condition {
	return Condition{Field: field, Op: OpNe, Value: v}
}

// In matches rows where field is one of values. An empty list matches nothing.
func In(field string, values ...any) Condition {
	return Condition{Field: field, Op: OpIn, Value: values}
}

// Where builds a conjunction of equality conditions from pairs of field and value.
func Where(pairs map[string]any) []Condition {
	out := make([]Condition, 0, len(pairs))
	for k, v := range pairs {
		out = append(out, Eq(k, v))
	}
	return out
}

// Match reports whether r satisfies every condition.
func Match(r Record, where []Condition) bool {
	for _, c := range where {
		if !c.Matches(r) {
			return false
		}
	}
	return true
}

// Matches reports whether r satisfies c.
func (c Condition) Matches(r Record) bool {
	v := r[c.Field]
	switch c.Op {
	case OpEq:
		return Equal(v, c.Value)
	case OpNe:
		return !Equal(v, c.Value)
	case OpIn:
		values, _ := c.Value.([]any)
		for _, candidate := range values {
			if Equal(v, candidate) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Equal compares field values. Numbers of different Go types compare by value.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) == reflect.TypeOf(b) && reflect.TypeOf(a).Comparable() {
		return a == b
	}
	if isNumber(a) && isNumber(b) {
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
	return reflect.DeepEqual(a, b)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// Compare orders two field values for OrderBy: nil first, times by instant,
// numbers by value whatever their Go type, booleans false before true, and
// anything else by its printed form.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case string:
		if y, ok := b.(string); ok {
			return cmp.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			return cmp.Compare(boolRank(x), boolRank(y))
		}
	}
	if isNumber(a) && isNumber(b) {
		return cmp.Compare(toFloat(a), toFloat(b))
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func toFloat(v any) float64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	default:
		return rv.Float()
	}
}
