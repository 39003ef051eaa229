package domain

import "errors"

var (
	// ErrFetchFailure marks a transport failure or an unparsable response body.
	ErrFetchFailure = errors.New("fetch failure")

	// ErrMalformedProduct marks a detail payload missing id, slug or name.
	ErrMalformedProduct = errors.New("malformed product")
)
