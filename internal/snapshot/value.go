// Package snapshot implements the canonical, comparable, serializable value
// model that every viewer-visible piece of state is reduced to before it is
// diffed, cached, or hashed.
package snapshot

import (
	"fmt"
	"reflect"
	"sort"
)

// Kind tags the variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindDouble
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a tagged sum over null, bool, int64, double, string, an ordered
// array of values, and a string-keyed object of values. It is the only
// representation that ever crosses a policy boundary: once state is reduced
// to a Value it carries no type information beyond this set.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

func Null() Value { return Value{kind: KindNull} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Int(i int64) Value { return Value{kind: KindInt, i: i} }

func Double(f float64) Value { return Value{kind: KindDouble, f: f} }

func String(s string) Value { return Value{kind: KindString, s: s} }

// Array builds an ordered array value. The slice is copied so later mutation
// of items by the caller cannot retroactively change an already-built Value.
func Array(items ...Value) Value {
	copied := make([]Value, len(items))
	copy(copied, items)
	return Value{kind: KindArray, arr: copied}
}

// Object builds a string-keyed object value from m. The map is copied.
func Object(m map[string]Value) Value {
	copied := make(map[string]Value, len(m))
	for k, v := range m {
		copied[k] = v
	}
	return Value{kind: KindObject, obj: copied}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() bool { return v.b }

func (v Value) Int() int64 { return v.i }

func (v Value) Double() float64 { return v.f }

func (v Value) String_() string { return v.s }

// Items returns the underlying slice. Callers must not mutate it.
func (v Value) Items() []Value { return v.arr }

// Keys returns the object's keys in sorted order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Field looks up a key in an object value.
func (v Value) Field(key string) (Value, bool) {
	val, ok := v.obj[key]
	return val, ok
}

// Len reports the number of keys (objects) or elements (arrays).
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	default:
		return 0
	}
}

// UnsupportedTypeError reports that a Go value could not be reduced to a
// Value. It corresponds to the engine's unsupported_type error kind.
type UnsupportedTypeError struct {
	GoType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported_type: cannot represent %s as a snapshot value", e.GoType)
}

// MakeFrom reduces an arbitrary Go value to a Value. Supported shapes:
// nil, bool, any integer kind, any float kind, string, fmt.Stringer (used as
// a string), slices/arrays (-> array, element-wise), and maps keyed by string
// or fmt.Stringer (-> object). Anything else fails with UnsupportedTypeError.
func MakeFrom(v any) (Value, error) {
	if v == nil {
		return Null(), nil
	}
	if val, ok := v.(Value); ok {
		return val, nil
	}

	rv := reflect.ValueOf(v)
	return makeFromReflect(rv)
}

func makeFromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Invalid:
		return Null(), nil
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return makeFromReflect(rv.Elem())
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int(int64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Double(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Array(), nil
		}
		items := make([]Value, rv.Len())
		for i := range items {
			item, err := makeFromReflect(rv.Index(i))
			if err != nil {
				return Value{}, err
			}
			items[i] = item
		}
		return Array(items...), nil
	case reflect.Map:
		if rv.IsNil() {
			return Object(nil), nil
		}
		out := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, err := mapKeyToString(iter.Key())
			if err != nil {
				return Value{}, err
			}
			val, err := makeFromReflect(iter.Value())
			if err != nil {
				return Value{}, err
			}
			out[key] = val
		}
		return Object(out), nil
	default:
		if stringer, ok := rv.Interface().(fmt.Stringer); ok {
			return String(stringer.String()), nil
		}
		return Value{}, &UnsupportedTypeError{GoType: rv.Type().String()}
	}
}

func mapKeyToString(key reflect.Value) (string, error) {
	if key.Kind() == reflect.String {
		return key.String(), nil
	}
	if stringer, ok := key.Interface().(fmt.Stringer); ok {
		return stringer.String(), nil
	}
	return "", &UnsupportedTypeError{GoType: "map key " + key.Type().String()}
}
