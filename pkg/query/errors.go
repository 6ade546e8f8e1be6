package query

import (
	"errors"
	"fmt"
)

// ErrSchema is the root of every compile-time error. Compilation stops at the
// first one and nothing is emitted for the entity.
var ErrSchema = errors.New("query: schema error")

// Schema errors
var (
	ErrNoType          = fmt.Errorf("%w: entity has no type", ErrSchema)
	ErrNoLabel         = fmt.Errorf("%w: entity has no label", ErrSchema)
	ErrNoID            = fmt.Errorf("%w: entity has no id", ErrSchema)
	ErrNoEndpoint      = fmt.Errorf("%w: edge endpoint is not set", ErrSchema)
	ErrInvalidEndpoint = fmt.Errorf("%w: edge endpoint is not a vertex", ErrSchema)
)

// ErrUniquenessViolation is reported when a statement configured to fail on
// existing elements finds one.
var ErrUniquenessViolation = errors.New("query: uniqueness violation")

// NonUniqueMarker is the message of the server-side exception raised by
// statements in error mode. Executors look for it in server errors.
const NonUniqueMarker = "gizmo_non_unique"
