// Package errors provides a minimal wrapped-error chain with JSON
// marshalling, used throughout the gateway instead of bare fmt.Errorf so
// that error causes survive across log lines and HTTP responses.
package errors

import (
	"encoding/json"
	"reflect"
)

// Error extends the standard error interface with JSON marshalling, so a
// wrapped chain can be serialized as {"error": "<cause>", "message": "<msg>"}.
type Error interface {
	error
	MarshalJSON() ([]byte, error)
}

type customError struct {
	msg string
	err error
}

var _ Error = (*customError)(nil)

// New returns an Error with the given message and no wrapped cause.
func New(text string) error {
	return &customError{msg: text}
}

func (ce *customError) Error() string {
	if ce == nil {
		return ""
	}
	if ce.err == nil {
		return ce.msg
	}
	return ce.msg + " : " + ce.err.Error()
}

func (ce *customError) MarshalJSON() ([]byte, error) {
	var cause string
	if ce.err != nil {
		if inner, ok := ce.err.(*customError); ok {
			cause = inner.msg
		} else {
			cause = ce.err.Error()
		}
	}
	return json.Marshal(&struct {
		Err string `json:"error"`
		Msg string `json:"message"`
	}{
		Err: cause,
		Msg: ce.msg,
	})
}

// Wrap returns an error that wraps wrapped with the message carried by
// wrapper. If wrapper is nil, Wrap returns nil. If wrapped is nil, Wrap
// returns wrapper unchanged, since there is nothing to attach.
func Wrap(wrapper, wrapped error) error {
	if wrapper == nil {
		return nil
	}
	if wrapped == nil {
		return wrapper
	}
	if w, ok := wrapper.(*customError); ok {
		return &customError{msg: w.msg, err: wrapped}
	}
	return &customError{msg: wrapper.Error(), err: wrapped}
}

// Contains reports whether contained appears anywhere in container's
// wrap chain, including container itself.
func Contains(container, contained error) bool {
	if container == nil && contained == nil {
		return true
	}
	if container == nil || contained == nil {
		return false
	}
	for {
		ce, ok := container.(*customError)
		if !ok {
			return reflect.DeepEqual(container, contained)
		}
		if reflect.DeepEqual(&customError{msg: ce.msg}, contained) {
			return true
		}
		if ce.err == nil {
			return false
		}
		container = ce.err
	}
}

// Unwrap splits err into its outer wrapper (with no further cause) and
// the error it wraps. If err carries no cause of its own, wrapper is nil
// and wrapped is err itself.
func Unwrap(err error) (error, error) {
	if err == nil {
		return nil, nil
	}
	ce, ok := err.(*customError)
	if !ok || ce.err == nil {
		return nil, err
	}
	return &customError{msg: ce.msg}, ce.err
}
