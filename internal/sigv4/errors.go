package sigv4

import "errors"

// ErrMissingHost is returned when a request or URL to sign carries no host,
// since the host is required both on the wire and in the canonical request.
var ErrMissingHost = errors.New("sigv4: request has no host")

// ErrMissingScheme is returned by SignURL when the URL to presign has no
// scheme, which would otherwise produce a broken presigned link.
var ErrMissingScheme = errors.New("sigv4: url has no scheme")
