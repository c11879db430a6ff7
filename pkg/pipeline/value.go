package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// ValueType tags the variant held by a Value
type ValueType int

const (
	NumberValue ValueType = iota
	StringValue
	TupleValue
)

// Value is a transform parameter literal: a number (integer or float), a
// string, or a tuple of values. Integer and float numbers stay distinct so
// that exported configs keep the representation the client sent.
type Value struct {
	Type ValueType

	// Num is the numeric value; for integers beyond 2^53 it is the
	// nearest float
	Num   float64
	IsInt bool

	// Digits is the exact decimal text of an integer literal
	Digits string

	Str   string
	Items []Value
}

// Int returns an integer literal
func Int(n int64) Value {
	return Value{Type: NumberValue, Num: float64(n), IsInt: true, Digits: strconv.FormatInt(n, 10)}
}

// bigInt returns an integer literal too large for int64, keeping its
// digits
func bigInt(n *big.Int) Value {
	f, _ := new(big.Float).SetInt(n).Float64()
	return Value{Type: NumberValue, Num: f, IsInt: true, Digits: n.String()}
}

// digits is the exact integer text of v
func (v Value) digits() string {
	if v.Digits == "" {
		return strconv.FormatInt(int64(v.Num), 10)
	}
	return v.Digits
}

// Float returns a float literal
func Float(f float64) Value {
	return Value{Type: NumberValue, Num: f}
}

// String returns a string literal
func String(s string) Value {
	return Value{Type: StringValue, Str: s}
}

// Tuple returns a tuple of the given items
func Tuple(items ...Value) Value {
	return Value{Type: TupleValue, Items: items}
}

// IsNumber reports whether v is a number literal
func (v Value) IsNumber() bool { return v.Type == NumberValue }

// AsFloat coerces a number literal to float, the way the export does for
// probability and noise fields
func (v Value) AsFloat() Value {
	if v.Type != NumberValue {
		return v
	}
	return Float(v.Num)
}

// Equal compares two literals structurally
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case NumberValue:
		if v.IsInt || o.IsInt {
			return v.IsInt == o.IsInt && v.digits() == o.digits()
		}
		return v.Num == o.Num
	case StringValue:
		return v.Str == o.Str
	default:
		if len(v.Items) != len(o.Items) {
			return false
		}
		for i := range v.Items {
			if !v.Items[i].Equal(o.Items[i]) {
				return false
			}
		}
		return true
	}
}

// Repr renders v as a Python literal: tuples with a trailing comma for a
// single item, floats always with a decimal point or exponent, strings
// single-quoted
func (v Value) Repr() string {
	switch v.Type {
	case NumberValue:
		if v.IsInt {
			return v.digits()
		}
		return formatFloat(v.Num)
	case StringValue:
		r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\t", `\t`, "\r", `\r`)
		return "'" + r.Replace(v.Str) + "'"
	default:
		parts := make([]string, len(v.Items))
		for i, item := range v.Items {
			parts[i] = item.Repr()
		}
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
}

func (v Value) String() string { return v.Repr() }

// formatFloat follows Python's float repr: positional notation between
// 1e-4 and 1e16, exponent notation outside it
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// MarshalJSON writes numbers as JSON numbers (integers without a decimal
// point), strings as strings and tuples as arrays
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.Type {
	case NumberValue:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return fmt.Errorf("cannot encode %v as JSON", v.Num)
		}
		if v.IsInt {
			buf.WriteString(v.digits())
		} else {
			buf.WriteString(formatFloat(v.Num))
		}
	case StringValue:
		b, err := json.Marshal(v.Str)
		if err != nil {
			return err
		}
		buf.Write(b)
	default:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}
	return nil
}

// UnmarshalJSON accepts numbers, strings and arrays of them
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, ok := ValueOf(raw)
	if !ok {
		return fmt.Errorf("unsupported parameter literal %s", string(data))
	}
	*v = parsed
	return nil
}

// ValueOf converts a decoded JSON value into a literal. Objects, booleans
// and null are not literals.
func ValueOf(raw any) (Value, bool) {
	switch t := raw.(type) {
	case Value:
		return t, true
	case json.Number:
		return numberValue(t.String())
	case float64:
		return Float(t), true
	case int:
		return Int(int64(t)), true
	case int64:
		return Int(t), true
	case string:
		return String(t), true
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			iv, ok := ValueOf(item)
			if !ok {
				return Value{}, false
			}
			items = append(items, iv)
		}
		return Tuple(items...), true
	case []Value:
		return Tuple(t...), true
	}
	return Value{}, false
}

// numberValue parses number text; anything with a fraction or exponent is
// a float
func numberValue(s string) (Value, bool) {
	if !strings.ContainsAny(s, ".eE") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(n), true
		}
		if n, ok := new(big.Int).SetString(s, 10); ok {
			return bigInt(n), true
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, false
	}
	return Float(f), true
}
