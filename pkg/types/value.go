package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which member of a Value is populated.
type Kind string

// Value kinds.
const (
	KindNull   Kind = "null"
	KindString Kind = "string"
	KindNumber Kind = "number"
	// KindInteger holds an exact int64. Decoders produce it for integer
	// literals so that 64-bit identifiers keep distinct identities.
	KindInteger Kind = "integer"
	KindBool   Kind = "bool"
	KindDate   Kind = "date"
	KindList   Kind = "list"
	KindMap    Kind = "map"
)

// Value is a single field value in a Record. Exactly one member matches Kind.
// The zero Value is Null.
type Value struct {
	kind Kind
	str  string
	num  float64
	i    int64
	b    bool
	date time.Time
	list []Value
	m    map[string]Value
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Integer returns an exact integer Value.
func Integer(n int64) Value { return Value{kind: KindInteger, i: n} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Date returns a date Value. The time is stored in UTC.
func Date(t time.Time) Value { return Value{kind: KindDate, date: t.UTC()} }

// List returns a list Value holding the given items.
func List(items ...Value) Value {
	l := make([]Value, len(items))
	copy(l, items)
	return Value{kind: KindList, list: l}
}

// Map returns a nested structure Value.
func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

// Kind reports the kind of the value.
func (v Value) Kind() Kind {
	if v.kind == "" {
		return KindNull
	}
	return v.kind
}

// IsNull reports whether v holds no value.
func (v Value) IsNull() bool { return v.Kind() == KindNull }

// Str returns the string member and whether v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Num returns the value as a float64 and whether v is numeric. Integers
// beyond 2^53 are rounded.
func (v Value) Num() (float64, bool) {
	if v.kind == KindInteger {
		return float64(v.i), true
	}
	return v.num, v.kind == KindNumber
}

// Int returns the integer member and whether v is an integer.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInteger }

// Boolean returns the boolean member and whether v is a bool.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// Time returns the date member and whether v is a date.
func (v Value) Time() (time.Time, bool) { return v.date, v.kind == KindDate }

// Items returns a copy of the list member and whether v is a list.
func (v Value) Items() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	out := make([]Value, len(v.list))
	copy(out, v.list)
	return out, true
}

// Fields returns a copy of the map member and whether v is a map.
func (v Value) Fields() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	out := make(map[string]Value, len(v.m))
	for k, f := range v.m {
		out[k] = f
	}
	return out, true
}

// Key returns the canonical string form used to compare identities.
// Strings are returned verbatim, numbers in shortest decimal form, integers
// exactly, dates in RFC 3339. Lists and maps fall back to their JSON encoding.
func (v Value) Key() string {
	switch v.Kind() {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.date.Format(time.RFC3339Nano)
	case KindNull:
		return ""
	default:
		data, _ := json.Marshal(v.Interface())
		return string(data)
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	return v.Key()
}

// Equal reports whether two values have the same kind and content. An
// integer equals a number holding exactly the same integral value.
func (v Value) Equal(o Value) bool {
	if v.Kind() == KindInteger && o.Kind() == KindNumber {
		return integralEqual(v.i, o.num)
	}
	if v.Kind() == KindNumber && o.Kind() == KindInteger {
		return integralEqual(o.i, v.num)
	}
	if v.Kind() != o.Kind() {
		return false
	}
	switch v.Kind() {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindInteger:
		return v.i == o.i
	case KindBool:
		return v.b == o.b
	case KindDate:
		return v.date.Equal(o.date)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, a := range v.m {
			b, ok := o.m[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	}
	return false
}

func integralEqual(i int64, f float64) bool {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return false
	}
	return int64(f) == i
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		l := make([]Value, len(v.list))
		for i, item := range v.list {
			l[i] = item.Clone()
		}
		return Value{kind: KindList, list: l}
	case KindMap:
		m := make(map[string]Value, len(v.m))
		for k, f := range v.m {
			m[k] = f.Clone()
		}
		return Value{kind: KindMap, m: m}
	default:
		return v
	}
}

// Interface converts v to plain Go values (string, float64, int64, bool,
// time.Time, []any, map[string]any, nil).
func (v Value) Interface() any {
	switch v.Kind() {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindInteger:
		return v.i
	case KindBool:
		return v.b
	case KindDate:
		return v.date
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, f := range v.m {
			out[k] = f.Interface()
		}
		return out
	default:
		return nil
	}
}

// FromInterface converts decoded Go values into a Value. Integer types and
// integral json.Number literals become exact integers; an unsigned value above
// math.MaxInt64 is rejected rather than rounded. []byte becomes a string, and
// maps with non-string keys are keyed by their fmt representation.
func FromInterface(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case []byte:
		return String(string(t)), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Integer(int64(t)), nil
	case int8:
		return Integer(int64(t)), nil
	case int16:
		return Integer(int64(t)), nil
	case int32:
		return Integer(int64(t)), nil
	case int64:
		return Integer(t), nil
	case uint:
		return unsigned(uint64(t))
	case uint8:
		return Integer(int64(t)), nil
	case uint16:
		return Integer(int64(t)), nil
	case uint32:
		return Integer(int64(t)), nil
	case uint64:
		return unsigned(t)
	case json.Number:
		return fromJSONNumber(t)
	case time.Time:
		return Date(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			iv, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = iv
		}
		return Value{kind: KindList, list: items}, nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, f := range t {
			fv, err := FromInterface(f)
			if err != nil {
				return Value{}, err
			}
			m[k] = fv
		}
		return Value{kind: KindMap, m: m}, nil
	case map[any]any:
		m := make(map[string]Value, len(t))
		for k, f := range t {
			fv, err := FromInterface(f)
			if err != nil {
				return Value{}, err
			}
			m[fmt.Sprint(k)] = fv
		}
		return Value{kind: KindMap, m: m}, nil
	default:
		return Value{}, fmt.Errorf("unsupported value %T: %w", x, ErrTypeMismatch)
	}
}

func unsigned(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, fmt.Errorf("integer %d out of range: %w", u, ErrTypeMismatch)
	}
	return Integer(int64(u)), nil
}

// fromJSONNumber keeps integer literals exact. Literals with a fraction or
// exponent become numbers.
func fromJSONNumber(n json.Number) (Value, error) {
	if !strings.ContainsAny(string(n), ".eE") {
		i, err := n.Int64()
		if err != nil {
			return Value{}, fmt.Errorf("integer %s out of range: %w", n, ErrTypeMismatch)
		}
		return Integer(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, fmt.Errorf("number %q: %w", n, ErrTypeMismatch)
	}
	return Number(f), nil
}

// wireValue is the JSON envelope for a Value. Dates are RFC 3339 strings.
type wireValue struct {
	T Kind            `json:"t"`
	V json.RawMessage `json:"v,omitempty"`
}

// MarshalJSON encodes v as {"t":kind,"v":payload}.
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Kind() {
	case KindNull:
		return json.Marshal(wireValue{T: KindNull})
	case KindString:
		payload = v.str
	case KindNumber:
		payload = v.num
	case KindInteger:
		payload = v.i
	case KindBool:
		payload = v.b
	case KindDate:
		payload = v.date.Format(time.RFC3339Nano)
	case KindList:
		payload = v.list
	case KindMap:
		payload = v.m
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireValue{T: v.Kind(), V: raw})
}

// UnmarshalJSON decodes the envelope written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.T {
	case KindNull, "":
		*v = Value{}
	case KindString:
		var s string
		if err := json.Unmarshal(w.V, &s); err != nil {
			return err
		}
		*v = String(s)
	case KindNumber:
		var n float64
		if err := json.Unmarshal(w.V, &n); err != nil {
			return err
		}
		*v = Number(n)
	case KindInteger:
		var n int64
		if err := json.Unmarshal(w.V, &n); err != nil {
			return err
		}
		*v = Integer(n)
	case KindBool:
		var b bool
		if err := json.Unmarshal(w.V, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case KindDate:
		var s string
		if err := json.Unmarshal(w.V, &s); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parsing date value: %w", err)
		}
		*v = Date(t)
	case KindList:
		var l []Value
		if err := json.Unmarshal(w.V, &l); err != nil {
			return err
		}
		*v = Value{kind: KindList, list: l}
	case KindMap:
		var m map[string]Value
		if err := json.Unmarshal(w.V, &m); err != nil {
			return err
		}
		*v = Value{kind: KindMap, m: m}
	default:
		return fmt.Errorf("value kind %q: %w", w.T, ErrTypeMismatch)
	}
	return nil
}
