package store

import "fmt"

// ValueType identifies which variant a Value holds.
type ValueType int

const (
	TypeNull ValueType = iota
	TypeBoolean
	TypeInteger
	TypeReal
	TypeText
)

func (t ValueType) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeInteger:
		return "INTEGER"
	case TypeReal:
		return "REAL"
	case TypeText:
		return "TEXT"
	default:
		return fmt.Sprintf("ValueType(%d)", int(t))
	}
}

// Value is a single column value: one of NULL, boolean, 64-bit integer,
// double-precision real, or text. The variant is fixed at construction.
type Value struct {
	typ ValueType
	i   int64
	r   float64
	s   string
}

func NullValue() Value           { return Value{typ: TypeNull} }
func TextValue(s string) Value   { return Value{typ: TypeText, s: s} }
func IntegerValue(i int64) Value { return Value{typ: TypeInteger, i: i} }
func RealValue(r float64) Value  { return Value{typ: TypeReal, r: r} }

func BooleanValue(b bool) Value {
	v := Value{typ: TypeBoolean}
	if b {
		v.i = 1
	}
	return v
}

// Type returns the variant tag.
func (v Value) Type() ValueType { return v.typ }

// IsNull reports whether the value is the NULL variant.
func (v Value) IsNull() bool { return v.typ == TypeNull }

// AsText extracts the text variant. Extracting any other variant is an error;
// values are never silently reinterpreted.
func (v Value) AsText() (string, error) {
	if v.typ != TypeText {
		return "", typeMismatch(TypeText, v.typ)
	}
	return v.s, nil
}

// AsInteger extracts the integer variant.
func (v Value) AsInteger() (int64, error) {
	if v.typ != TypeInteger {
		return 0, typeMismatch(TypeInteger, v.typ)
	}
	return v.i, nil
}

// AsReal extracts the real variant.
func (v Value) AsReal() (float64, error) {
	if v.typ != TypeReal {
		return 0, typeMismatch(TypeReal, v.typ)
	}
	return v.r, nil
}

// AsBoolean extracts the boolean variant.
func (v Value) AsBoolean() (bool, error) {
	if v.typ != TypeBoolean {
		return false, typeMismatch(TypeBoolean, v.typ)
	}
	return v.i != 0, nil
}

// Equal reports whether two values hold the same variant and content.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case TypeNull:
		return true
	case TypeText:
		return v.s == other.s
	case TypeReal:
		return v.r == other.r
	default:
		return v.i == other.i
	}
}

func (v Value) String() string {
	switch v.typ {
	case TypeNull:
		return "NULL"
	case TypeBoolean:
		if v.i != 0 {
			return "TRUE"
		}
		return "FALSE"
	case TypeInteger:
		return fmt.Sprintf("%d", v.i)
	case TypeReal:
		return fmt.Sprintf("%g", v.r)
	case TypeText:
		return v.s
	default:
		return "?"
	}
}

func typeMismatch(want, got ValueType) error {
	return &Error{
		Kind:    KindTypeMismatch,
		Message: fmt.Sprintf("value holds %s, not %s", got, want),
	}
}
