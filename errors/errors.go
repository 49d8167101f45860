// Package errors defines the error taxonomy of the clientele engine.
//
// Every error produced by the engine itself carries a gRPC status code,
// convertible to an HTTP status with HttpCode. Errors coming from the
// transport or from the schema-validation layer are propagated by the
// engine verbatim and are not represented here.
package errors

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
)

// HttpError is implemented by errors that map to an HTTP status code.
type HttpError interface {
	HttpCode() int
}

// DeclarationError reports a malformed operation declaration. It is used
// as a panic value at registration time: a process whose declarations are
// wrong must fail before any traffic is possible.
type DeclarationError struct {
	// Op identifies the declaration, e.g. "GET /users/{user_id}".
	Op string

	// Reason describes what is wrong with the declaration.
	Reason string
}

func (e *DeclarationError) Error() string {
	return fmt.Sprintf("clientele: invalid declaration %s: %s", e.Op, e.Reason)
}

func (e *DeclarationError) GRPCCode() codes.Code { return codes.FailedPrecondition }

func (e *DeclarationError) HttpCode() int { return runtime.HTTPStatusFromCode(e.GRPCCode()) }

// Declaration panics with a DeclarationError. Used by the descriptor
// builder for fail-fast validation.
func Declaration(op, format string, a ...interface{}) {
	panic(&DeclarationError{Op: op, Reason: fmt.Sprintf(format, a...)})
}

// BindingError reports that a path placeholder could not be resolved from
// the call's arguments. It is returned before any network I/O happens.
type BindingError struct {
	// Placeholder is the unresolved {name}.
	Placeholder string

	// Path is the operation's path template.
	Path string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("clientele: cannot resolve path placeholder {%s} in %q", e.Placeholder, e.Path)
}

func (e *BindingError) GRPCCode() codes.Code { return codes.InvalidArgument }

func (e *BindingError) HttpCode() int { return runtime.HTTPStatusFromCode(e.GRPCCode()) }

// TypeError reports a payload whose shape does not fit the declared type:
// a request body for a structural type that is not a key/value structure,
// or a response payload that is not an object where an object is required.
type TypeError struct {
	// Type is the name of the offending declared type.
	Type string

	// Reason describes the mismatch.
	Reason string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("clientele: payload does not fit type %s: %s", e.Type, e.Reason)
}

func (e *TypeError) GRPCCode() codes.Code { return codes.InvalidArgument }

func (e *TypeError) HttpCode() int { return runtime.HTTPStatusFromCode(e.GRPCCode()) }

// ProtocolError reports a response status that the operation did not
// declare. Expected holds the declared status codes in ascending order.
// Expected is empty when the operation declares no status map and the
// failure is a non-success status on a streaming call.
type ProtocolError struct {
	// Status is the observed HTTP status code.
	Status int

	// Expected holds the declared status codes, ascending.
	Expected []int

	// Body is a prefix of the response body, kept for diagnostics.
	Body string
}

func (e *ProtocolError) Error() string {
	if len(e.Expected) == 0 {
		if e.Body == "" {
			return fmt.Sprintf("clientele: unexpected HTTP status %d", e.Status)
		}
		return fmt.Sprintf("clientele: unexpected HTTP status %d: %s", e.Status, e.Body)
	}
	expected := make([]string, len(e.Expected))
	for i, code := range e.Expected {
		expected[i] = strconv.Itoa(code)
	}
	return fmt.Sprintf("clientele: unexpected HTTP status %d, declared statuses are {%s}",
		e.Status, strings.Join(expected, ", "))
}

// HttpCode returns the observed status itself.
func (e *ProtocolError) HttpCode() int { return e.Status }

func (e *ProtocolError) GRPCCode() codes.Code {
	switch {
	case e.Status == 401:
		return codes.Unauthenticated
	case e.Status == 403:
		return codes.PermissionDenied
	case e.Status == 404:
		return codes.NotFound
	case e.Status == 429:
		return codes.ResourceExhausted
	case e.Status >= 500:
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}
