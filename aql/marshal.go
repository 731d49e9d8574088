package aql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// maxValueDepth bounds the nesting of serialized values.
const maxValueDepth = 512

// Marshal encodes v as an AQL literal.
//
// Scalars use the JSON literal syntax (which is also AQL's), slices and arrays become
// AQL arrays and maps become AQL objects with their keys sorted. A [Doc] keeps its key order.
// [Expr] values are emitted verbatim, wherever they are on the tree.
// Values implementing [json.Marshaler] are emitted using their JSON encoding.
//
// Marshal works in two passes. The first one normalizes the tree, replacing every
// [Expr] with a slot referencing a registry of raw fragments. The second one emits the
// normalized tree, writing the registry entries back where the slots are. Since slots are
// not strings, no user data can ever be mistaken for a raw fragment.
func Marshal(v any) (string, error) {
	var s serializer
	node, err := s.prepare(v, "$", 0)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	s.emit(&b, node)
	return b.String(), nil
}

type (
	serializer struct {
		raw []string
	}

	// normalized tree nodes.
	literal []byte
	slot    int
	array   []any
	object  []member
	member  struct {
		key literal
		val any
	}
)

func (s *serializer) prepare(v any, path string, depth int) (any, error) {
	if depth > maxValueDepth {
		return nil, &SerializationError{Path: path, Type: fmt.Sprintf("%T", v), Err: ErrConditionTooDeep}
	}
	switch v := v.(type) {
	case nil:
		return literal("null"), nil
	case Expr:
		s.raw = append(s.raw, v.text)
		return slot(len(s.raw) - 1), nil
	case *Query:
		return nil, &SerializationError{Path: path, Type: "*aql.Query"}
	case Doc:
		obj := make(object, 0, len(v))
		for _, kv := range v {
			val, err := s.prepare(kv.Value, path+"."+kv.Key, depth+1)
			if err != nil {
				return nil, err
			}
			obj = append(obj, member{quote(kv.Key), val})
		}
		return obj, nil
	case map[string]any:
		obj := make(object, 0, len(v))
		for _, k := range slices.Sorted(maps.Keys(v)) {
			val, err := s.prepare(v[k], path+"."+k, depth+1)
			if err != nil {
				return nil, err
			}
			obj = append(obj, member{quote(k), val})
		}
		return obj, nil
	case []any:
		arr := make(array, 0, len(v))
		for i, e := range v {
			val, err := s.prepare(e, path+"["+strconv.Itoa(i)+"]", depth+1)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		return arr, nil
	case json.Marshaler:
		return marshalJSON(v, path)
	}
	return s.prepareReflect(reflect.ValueOf(v), path, depth)
}

func (s *serializer) prepareReflect(rv reflect.Value, path string, depth int) (any, error) {
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return marshalJSON(rv.Interface(), path)
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &SerializationError{Path: path, Type: rv.Type().String(), Err: fmt.Errorf("%v has no literal form", f)}
		}
		return marshalJSON(rv.Interface(), path)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return literal("null"), nil
		}
		return s.prepare(rv.Elem().Interface(), path, depth+1)
	case reflect.Slice, reflect.Array:
		arr := make(array, 0, rv.Len())
		for i := range rv.Len() {
			val, err := s.prepare(rv.Index(i).Interface(), path+"["+strconv.Itoa(i)+"]", depth+1)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		return arr, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, &SerializationError{Path: path, Type: rv.Type().String()}
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		slices.Sort(keys)
		obj := make(object, 0, len(keys))
		for _, k := range keys {
			val, err := s.prepare(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface(), path+"."+k, depth+1)
			if err != nil {
				return nil, err
			}
			obj = append(obj, member{quote(k), val})
		}
		return obj, nil
	case reflect.Struct:
		// Structs have no raw expression support, they are opaque JSON documents.
		return marshalJSON(rv.Interface(), path)
	}
	return nil, &SerializationError{Path: path, Type: rv.Type().String()}
}

func (s *serializer) emit(b *strings.Builder, node any) {
	switch n := node.(type) {
	case literal:
		b.Write(n)
	case slot:
		b.WriteString(s.raw[n])
	case array:
		b.WriteByte('[')
		for i, e := range n {
			if i > 0 {
				b.WriteByte(',')
			}
			s.emit(b, e)
		}
		b.WriteByte(']')
	case object:
		b.WriteByte('{')
		for i, m := range n {
			if i > 0 {
				b.WriteByte(',')
			}
			b.Write(m.key)
			b.WriteByte(':')
			s.emit(b, m.val)
		}
		b.WriteByte('}')
	}
}

func marshalJSON(v any, path string) (literal, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, &SerializationError{Path: path, Type: fmt.Sprintf("%T", v), Err: err}
	}
	return literal(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// quote returns s as a double quoted AQL string literal.
func quote(s string) literal {
	// Encoding a string never fails.
	l, _ := marshalJSON(s, "")
	return l
}
