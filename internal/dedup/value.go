// internal/dedup/value.go
package dedup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies which primitive a Value carries.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Value is a primitive record value: string, number, bool or null.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

func String(s string) Value { return Value{kind: KindString, str: s} }

func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Null() Value { return Value{} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// String returns the form used for similarity comparison. Numbers use the
// shortest decimal representation so 1234 and 1234.0 compare equal.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if math.IsInf(v.num, 0) || math.IsNaN(v.num) {
			return ""
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsInf(v.num, 0) || math.IsNaN(v.num) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty record value")
	}

	switch data[0] {
	case 'n':
		*v = Null()
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
		return nil
	case '{', '[':
		return fmt.Errorf("unsupported record value %.32s: only primitive values are allowed", data)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = Number(n)
		return nil
	}
}

// Record maps field names to primitive values. Two records being compared
// do not need to share a schema.
type Record map[string]Value

// Get returns the value for field when it is present and not null.
func (r Record) Get(field string) (Value, bool) {
	v, ok := r[field]
	if !ok || v.IsNull() {
		return Value{}, false
	}
	return v, true
}

// Has reports whether field is present with a non-null value.
func (r Record) Has(field string) bool {
	_, ok := r.Get(field)
	return ok
}

func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RecordFromMap converts decoded JSON (as produced by encoding/json into
// interface{}) into a Record. Nested objects and arrays are rejected.
func RecordFromMap(m map[string]interface{}) (Record, error) {
	out := make(Record, len(m))
	for field, raw := range m {
		v, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		out[field] = v
	}
	return out, nil
}

// ValueOf converts a Go primitive into a Value.
func ValueOf(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return Number(n), nil
	case Value:
		return t, nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}

// ToMap is the inverse of RecordFromMap, used when handing records to
// job variables or JSON encoders that expect plain maps.
func (r Record) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(r))
	for k, v := range r {
		switch v.kind {
		case KindString:
			out[k] = v.str
		case KindNumber:
			out[k] = v.num
		case KindBool:
			out[k] = v.b
		default:
			out[k] = nil
		}
	}
	return out
}
