package command

import "github.com/myuser/memberstore/internal/store"

// WireValue is the JSON form of a store.Value. The variant tag travels
// explicitly so NULL, FALSE, 0, and "" stay distinguishable on the wire.
type WireValue struct {
	T string  `json:"t"`
	B bool    `json:"b,omitempty"`
	I int64   `json:"i,omitempty"`
	R float64 `json:"r,omitempty"`
	S string  `json:"s,omitempty"`
}

const (
	wireNull    = "null"
	wireBoolean = "bool"
	wireInteger = "int"
	wireReal    = "real"
	wireText    = "text"
)

// FromValue converts a store value to its wire form.
func FromValue(value store.Value) WireValue {
	switch value.Type() {
	case store.TypeBoolean:
		b, _ := value.AsBoolean()
		return WireValue{T: wireBoolean, B: b}
	case store.TypeInteger:
		i, _ := value.AsInteger()
		return WireValue{T: wireInteger, I: i}
	case store.TypeReal:
		r, _ := value.AsReal()
		return WireValue{T: wireReal, R: r}
	case store.TypeText:
		s, _ := value.AsText()
		return WireValue{T: wireText, S: s}
	default:
		return WireValue{T: wireNull}
	}
}

// Value converts the wire form back to a store value. Unknown tags decode
// as NULL rather than failing the whole log entry.
func (w WireValue) Value() store.Value {
	switch w.T {
	case wireBoolean:
		return store.BooleanValue(w.B)
	case wireInteger:
		return store.IntegerValue(w.I)
	case wireReal:
		return store.RealValue(w.R)
	case wireText:
		return store.TextValue(w.S)
	default:
		return store.NullValue()
	}
}
