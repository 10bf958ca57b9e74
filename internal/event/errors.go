package event

import "errors"

var (
	// ErrInvalidInput reports a timestamp that is missing, malformed, or an
	// interval whose end precedes its start.
	ErrInvalidInput = errors.New("invalid event input")

	// ErrAttributeParse reports a description attribute whose value cannot be
	// converted to the type a consumer requires (e.g. non-numeric Pages).
	ErrAttributeParse = errors.New("attribute parse error")
)
