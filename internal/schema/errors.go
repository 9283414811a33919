package schema

import "errors"

var (
	// ErrInvalidArgument is returned for non-positive counts and unusable names.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnsupportedType is returned for a column type outside the supported set.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrInvalidSchema is returned when a schema document is malformed.
	ErrInvalidSchema = errors.New("invalid schema")
)
