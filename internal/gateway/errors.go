package gateway

import "errors"

var (
	// ErrNotFound describes a key that no mirror, the object store, or
	// any origin could resolve. Exists, Fetch and the resolvers do not
	// return it; they report that case through their found result.
	ErrNotFound = errors.New("gateway: key not found")

	// ErrTooManyRedirects is returned when an origin probe follows more
	// redirects than the configured maximum.
	ErrTooManyRedirects = errors.New("gateway: too many redirects")

	// ErrUpstreamStatus is returned when an upstream responded outside
	// the 2xx range.
	ErrUpstreamStatus = errors.New("gateway: unexpected upstream status")
)
