// Package sigv4 implements AWS Signature Version 4 request and URL signing
// for outbound requests to an S3-compatible object store.
//
// Unlike a verifier, this package only ever produces signatures: it signs
// requests the gateway itself makes (HEAD/PUT/DELETE against the object
// store) and mints presigned GET URLs handed to clients.
package sigv4

import "time"

const (
	// Algorithm is the SigV4 algorithm identifier.
	Algorithm = "AWS4-HMAC-SHA256"

	// AmzDateFormat is the timestamp format carried in x-amz-date / X-Amz-Date.
	AmzDateFormat = "20060102T150405Z"

	// DateScopeFormat is the short date used in the credential scope.
	DateScopeFormat = "20060102"

	// ServiceS3 is the only service this signer is used for.
	ServiceS3 = "s3"

	// AWS4Request is the fixed termination string of the credential scope.
	AWS4Request = "aws4_request"

	// UnsignedPayload marks a streamed body whose bytes are not hashed.
	UnsignedPayload = "UNSIGNED-PAYLOAD"

	// EmptyStringSHA256 is the hex SHA-256 digest of the empty string.
	EmptyStringSHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

const (
	headerAuthorization  = "Authorization"
	headerAmzDate        = "x-amz-date"
	headerAmzContentSHA  = "x-amz-content-sha256"
	headerHost           = "host"
	queryAlgorithm       = "X-Amz-Algorithm"
	queryCredential      = "X-Amz-Credential"
	queryDate            = "X-Amz-Date"
	queryExpires         = "X-Amz-Expires"
	querySignedHeaders   = "X-Amz-SignedHeaders"
	querySignature       = "X-Amz-Signature"
	signedHeadersForURL  = "host"
)

// DefaultExpiry is used by callers that do not have a more specific duration
// in mind for a presigned GET URL.
const DefaultExpiry = 15 * time.Minute
