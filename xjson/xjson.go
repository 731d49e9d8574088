// Package xjson extends Go's [json] for streams of values of the same type,
// like JSON lines files of query specs or the rows of a query cursor.
package xjson

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"
)

type (
	// Decoder specializes the [json.Decoder] for streams of values of the same type,
	// leveraging parametric types and iterators to make things easier.
	Decoder[T any] struct {
		d   *json.Decoder
		n   int
		err error
	}

	// Encoder writes values of the same type as JSON lines.
	Encoder[T any] struct {
		e *json.Encoder
	}

	// UnmarshalError is returned when a value can't be unmarshalled.
	UnmarshalError struct {
		// Err is the error returned by [json.Unmarshal].
		Err error
		// Data is the data that caused the error, useful for debugging.
		Data string
		// Index is the position of the value on a stream or list, starting at 0.
		Index int
	}
)

// UnmarshalFile calls [Unmarshal] with the opened file (closing it afterwards) and returns the unmarshalled value.
func UnmarshalFile[T any](path string) (T, error) {
	var z T
	f, err := os.Open(path)
	if err != nil {
		return z, fmt.Errorf("opening file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Unmarshal[T](f)
}

// Unmarshal calls [json.Unmarshal] after reading the given reader into memory
// and returns the unmarshalled value.
// If you need the data that was read when an unmarshalling error happened:
//
//	var errDetails UnmarshalError
//	if errors.As(err, &errDetails) {
//	    fmt.Println(errDetails.Data)
//	}
func Unmarshal[T any](v io.Reader) (T, error) {
	var r T
	d, err := io.ReadAll(v)
	if err != nil {
		return r, fmt.Errorf("reading stream: %w", err)
	}
	if err := json.Unmarshal(d, &r); err != nil {
		return r, UnmarshalError{Err: err, Data: string(d)}
	}
	return r, nil
}

// UnmarshalAll unmarshals every raw value of the list, like the rows of a cursor.
func UnmarshalAll[T any](raws []json.RawMessage) ([]T, error) {
	res := make([]T, len(raws))
	for i, raw := range raws {
		if err := json.Unmarshal(raw, &res[i]); err != nil {
			return nil, UnmarshalError{Err: err, Data: string(raw), Index: i}
		}
	}
	return res, nil
}

// NewDecoder creates a new decoder for type T.
func NewDecoder[T any](r io.Reader) *Decoder[T] {
	return &Decoder[T]{d: json.NewDecoder(r)}
}

// All returns a single-use iterator for the stream.
// Iteration stops on the first error, see [Decoder.Error].
func (d *Decoder[T]) All() iter.Seq[T] {
	return func(yield func(v T) bool) {
		for _, v := range d.Indexed() {
			if !yield(v) {
				return
			}
		}
	}
}

// Indexed is like [Decoder.All] but also yields the position of each value on the stream.
func (d *Decoder[T]) Indexed() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for d.err == nil && d.d.More() {
			var v T
			if err := d.d.Decode(&v); err != nil {
				d.err = UnmarshalError{Err: err, Index: d.n}
				return
			}
			i := d.n
			d.n++
			if !yield(i, v) {
				return
			}
		}
	}
}

// Error returns the error that interrupted iteration or nil if no error happened.
func (d *Decoder[T]) Error() error {
	return d.err
}

// NewEncoder creates a new encoder for type T. HTML characters are not escaped.
func NewEncoder[T any](w io.Writer) *Encoder[T] {
	e := json.NewEncoder(w)
	e.SetEscapeHTML(false)
	return &Encoder[T]{e: e}
}

// Encode writes v followed by a newline.
func (e *Encoder[T]) Encode(v T) error {
	return e.e.Encode(v)
}

func (e UnmarshalError) Error() string {
	return fmt.Sprintf("value %d: %v", e.Index, e.Err)
}

func (e UnmarshalError) Unwrap() error {
	return e.Err
}
