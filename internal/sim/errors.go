package sim

import "errors"

var (
	// ErrUnknownCondition is returned when a condition grade outside A-D or X
	// is parsed.
	ErrUnknownCondition = errors.New("unknown bridge condition")

	// ErrNoCollapseProbability is returned when a bridge is built with a
	// condition that has no configured collapse probability.
	ErrNoCollapseProbability = errors.New("no collapse probability for condition")

	// ErrUnknownSegment is returned when a segment lookup misses the registry.
	ErrUnknownSegment = errors.New("unknown segment")

	// ErrDuplicateSegment is returned when two segments register under the
	// same id.
	ErrDuplicateSegment = errors.New("duplicate segment id")

	// ErrNoRoute is returned by route providers when no route leaves an
	// origin.
	ErrNoRoute = errors.New("no route from origin")

	// ErrRouteExhausted is returned when a vehicle runs off the end of its
	// route without reaching a sink.
	ErrRouteExhausted = errors.New("route exhausted before reaching a sink")
)
