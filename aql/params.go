package aql

import (
	"errors"
	"maps"
	"reflect"
	"slices"
	"strconv"
)

// ParamPrefix is the prefix of the generated bind parameter names.
const ParamPrefix = "qp"

// Params is a bind variables table: bind parameter name (without the leading "@") to value.
type Params map[string]any

// MergeParams copies every entry of src into dst.
// If both tables have the same name bound to different values a [*DuplicateParamError]
// is returned for each of them and dst is left untouched. Names bound to identical values
// on both sides are accepted.
func MergeParams(dst, src Params) error {
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(src)) {
		if cur, ok := dst[name]; ok && !reflect.DeepEqual(cur, src[name]) {
			errs = append(errs, &DuplicateParamError{Name: name})
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	maps.Copy(dst, src)
	return nil
}

// binder allocates bind parameters for a single statement.
// Names are generated from a counter that is never reset, names already present on
// the table (supplied by the caller) are skipped.
type binder struct {
	params Params
	seq    int
}

func newBinder() *binder {
	return &binder{params: Params{}}
}

// bind stores v on a new bind parameter and returns its reference ("@qpN").
func (b *binder) bind(v any) string {
	for {
		name := ParamPrefix + strconv.Itoa(b.seq)
		b.seq++
		if _, ok := b.params[name]; ok {
			continue
		}
		b.params[name] = v
		return "@" + name
	}
}

// value returns the AQL text that represents v on a statement.
// Scalars are bound as parameters, composites are inlined as literals, [Expr] is
// inlined verbatim and nil is the null literal.
func (b *binder) value(v any, path string) (string, error) {
	if isNil(v) {
		return "null", nil
	}
	if e, ok := v.(Expr); ok {
		return e.text, nil
	}
	if isComposite(v) {
		return Marshal(v)
	}
	if err := checkScalar(v, path); err != nil {
		return "", err
	}
	return b.bind(v), nil
}

// isNil reports whether v is nil or a nil pointer or interface, like a (*int)(nil).
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func isComposite(v any) bool {
	switch v.(type) {
	case Doc, map[string]any, []any:
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

// checkScalar ensures the executor will be able to encode v.
func checkScalar(v any, path string) error {
	var s serializer
	_, err := s.prepare(v, path, 0)
	return err
}
