package aql

import (
	"errors"
	"fmt"
)

// Sentinel errors. All typed errors of this package match one of them with [errors.Is].
var (
	ErrArity               = errors.New("wrong number of operands")
	ErrUnknownOperator     = errors.New("unknown operator")
	ErrUnsupportedOperator = errors.New("operator not supported")
	ErrDuplicateParam      = errors.New("duplicated bind parameter")
	ErrSerialization       = errors.New("value can't be serialized")
	ErrInvalidOperand      = errors.New("invalid operand")
	ErrConditionTooDeep    = errors.New("condition nesting is too deep")
	ErrMissingCollection   = errors.New("collection is not provided")
	ErrInvalidProjection   = errors.New("invalid projection")
	ErrInvalidKind         = errors.New("invalid statement kind")
)

type (
	// ArityError is returned when an operator is given the wrong number of operands.
	ArityError struct {
		Operator string
		Want     string
		Got      int
	}

	// UnknownOperatorError is returned when compiling an operator the compiler doesn't know.
	UnknownOperatorError struct {
		Operator string
	}

	// UnsupportedOperatorError is returned by the FilterWhere family when the condition
	// has an operator that can't be filtered. It happens before any parameter binding.
	UnsupportedOperatorError struct {
		Operator string
	}

	// DuplicateParamError is returned when merging bind parameters that have the same
	// name but different values.
	DuplicateParamError struct {
		Name string
	}

	// SerializationError is returned when a value has a type that has no AQL literal form.
	SerializationError struct {
		// Path locates the value inside the serialized tree, like "$.tags[2]".
		Path string
		Type string
		Err  error
	}
)

func (e *ArityError) Error() string {
	return fmt.Sprintf("operator %q requires %s, got %d", e.Operator, e.Want, e.Got)
}

// Is reports whether target is [ErrArity].
func (e *ArityError) Is(target error) bool {
	return target == ErrArity
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("found unknown operator in query: %s", e.Operator)
}

// Is reports whether target is [ErrUnknownOperator].
func (e *UnknownOperatorError) Is(target error) bool {
	return target == ErrUnknownOperator
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("operator not supported: %s", e.Operator)
}

// Is reports whether target is [ErrUnsupportedOperator].
func (e *UnsupportedOperatorError) Is(target error) bool {
	return target == ErrUnsupportedOperator
}

func (e *DuplicateParamError) Error() string {
	return fmt.Sprintf("bind parameter %q is already bound to a different value", e.Name)
}

// Is reports whether target is [ErrDuplicateParam].
func (e *DuplicateParamError) Is(target error) bool {
	return target == ErrDuplicateParam
}

func (e *SerializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("serializing %s: type %s: %v", e.Path, e.Type, e.Err)
	}
	return fmt.Sprintf("serializing %s: unsupported type %s", e.Path, e.Type)
}

// Is reports whether target is [ErrSerialization].
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerialization
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
