package tables

import (
	"fmt"
	"strings"
)

// ValueType is the discriminant byte stored alongside each property row.
// A row's value must be read through the column its type tag selects.
type ValueType uint8

const (
	ValueString ValueType = iota
	ValueReal
	ValueInt
	ValueBool
)

func (v ValueType) String() string {
	switch v {
	case ValueString:
		return "string"
	case ValueReal:
		return "real"
	case ValueInt:
		return "int"
	case ValueBool:
		return "bool"
	}
	return "unknown"
}

// Value is a decoded tagged property value. Only the field selected by
// Type carries meaning.
type Value struct {
	Type ValueType
	str  string
	real float64
	num  int64
	flag bool
}

func stringVal(s string) Value { return Value{Type: ValueString, str: s} }
func realVal(f float64) Value  { return Value{Type: ValueReal, real: f} }
func intVal(i int64) Value     { return Value{Type: ValueInt, num: i} }
func boolVal(b bool) Value     { return Value{Type: ValueBool, flag: b} }

// AsString returns the string reading of the value.
func (v Value) AsString() (string, bool) { return v.str, v.Type == ValueString }

// AsBool returns the boolean reading of the value.
func (v Value) AsBool() (bool, bool) { return v.flag, v.Type == ValueBool }

// AsFloat returns the numeric reading. Both real and int rows are
// numeric; strings and bools are not (no implicit coercion).
func (v Value) AsFloat() (float64, bool) {
	switch v.Type {
	case ValueReal:
		return v.real, true
	case ValueInt:
		return float64(v.num), true
	}
	return 0, false
}

// AsInt returns the integer reading of the value.
func (v Value) AsInt() (int64, bool) { return v.num, v.Type == ValueInt }

// Display renders the value for human-facing output.
func (v Value) Display() string {
	switch v.Type {
	case ValueString:
		return v.str
	case ValueReal:
		return fmt.Sprintf("%g", v.real)
	case ValueInt:
		return fmt.Sprintf("%d", v.num)
	case ValueBool:
		return fmt.Sprintf("%t", v.flag)
	}
	return ""
}

// CompareOp is a filter operator for FindByProperty.
type CompareOp uint8

const (
	OpEq CompareOp = iota
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
	OpContains
	OpStartsWith
)

// ParseCompareOp maps an operator literal to its CompareOp.
func ParseCompareOp(s string) (CompareOp, error) {
	switch s {
	case "=", "==":
		return OpEq, nil
	case "!=":
		return OpNe, nil
	case ">":
		return OpGt, nil
	case ">=":
		return OpGe, nil
	case "<":
		return OpLt, nil
	case "<=":
		return OpLe, nil
	case "contains":
		return OpContains, nil
	case "startsWith":
		return OpStartsWith, nil
	}
	return 0, fmt.Errorf("unknown compare operator %q", s)
}

// matches applies op between a row value and a query operand. Numeric
// comparisons require both operands numeric, string comparisons both
// strings; mismatched types never match.
func matches(v Value, op CompareOp, operand any) bool {
	switch q := operand.(type) {
	case string:
		s, ok := v.AsString()
		if !ok {
			return false
		}
		switch op {
		case OpEq:
			return s == q
		case OpNe:
			return s != q
		case OpGt:
			return s > q
		case OpGe:
			return s >= q
		case OpLt:
			return s < q
		case OpLe:
			return s <= q
		case OpContains:
			return strings.Contains(s, q)
		case OpStartsWith:
			return strings.HasPrefix(s, q)
		}
	case bool:
		b, ok := v.AsBool()
		if !ok {
			return false
		}
		switch op {
		case OpEq:
			return b == q
		case OpNe:
			return b != q
		}
	default:
		f, ok := numericOperand(operand)
		if !ok {
			return false
		}
		rv, ok := v.AsFloat()
		if !ok {
			return false
		}
		switch op {
		case OpEq:
			return rv == f
		case OpNe:
			return rv != f
		case OpGt:
			return rv > f
		case OpGe:
			return rv >= f
		case OpLt:
			return rv < f
		case OpLe:
			return rv <= f
		}
	}
	return false
}

func numericOperand(operand any) (float64, bool) {
	switch n := operand.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	}
	return 0, false
}
