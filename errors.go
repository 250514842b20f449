package zipbed

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFilterKey is returned when a filter key is not a known field.
	ErrInvalidFilterKey = errors.New("invalid filter key")
	// ErrMissingCoordinatePair is returned when only one of latitude/longitude is given.
	ErrMissingCoordinatePair = errors.New("missing coordinate pair")
	// ErrEmptyInput is returned when a single-criterion search gets no value.
	ErrEmptyInput = errors.New("empty input")
)

// ErrorKind discriminates query failures.
type ErrorKind uint8

const (
	InvalidFilterKey ErrorKind = iota + 1
	MissingCoordinatePair
	EmptyInput
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidFilterKey:
		return "InvalidFilterKey"
	case MissingCoordinatePair:
		return "MissingCoordinatePair"
	case EmptyInput:
		return "EmptyInput"
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// QueryError reports a rejected query. It is returned before any record is examined.
//
// errors.Is matches it against the sentinel for its Kind.
type QueryError struct {
	Kind  ErrorKind
	Key   string // offending filter key, if any
	Value string // offending value, if any

	// wrapper is set when a single-criterion search rejected its arguments itself.
	wrapper bool
}

func (e *QueryError) Error() string {
	switch e.Kind {
	case InvalidFilterKey:
		return fmt.Sprintf("cannot filter with key (%s)", e.Key)
	case MissingCoordinatePair:
		if e.wrapper {
			return "you must supply both latitude and longitude to this function"
		}
		return "you must supply both latitude and longitude when searching via geo coordinates"
	case EmptyInput:
		return "input cannot be empty"
	}
	return "invalid query"
}

func (e *QueryError) Unwrap() error {
	switch e.Kind {
	case InvalidFilterKey:
		return ErrInvalidFilterKey
	case MissingCoordinatePair:
		return ErrMissingCoordinatePair
	case EmptyInput:
		return ErrEmptyInput
	}
	return nil
}
