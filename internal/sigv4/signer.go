package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Signer produces AWS Signature Version 4 signatures for outbound requests
// and presigned GET URLs against an S3-compatible object store. It never
// verifies incoming signatures; the gateway is the party holding the
// credentials, not validating someone else's.
type Signer struct {
	accessKeyID string
	accessKey   []byte // "AWS4" + secret, pre-computed once
	region      string
	service     string
	now         func() time.Time
}

// New constructs a Signer bound to the given credentials, region and
// service. service is almost always ServiceS3.
func New(accessKeyID, accessKeySecret, region, service string) *Signer {
	return &Signer{
		accessKeyID: accessKeyID,
		accessKey:   []byte("AWS4" + accessKeySecret),
		region:      region,
		service:     service,
		now:         time.Now,
	}
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func (s *Signer) signingKey(dateScope string) []byte {
	kDate := hmacSHA256(s.accessKey, dateScope)
	kRegion := hmacSHA256(kDate, s.region)
	kService := hmacSHA256(kRegion, s.service)
	return hmacSHA256(kService, AWS4Request)
}

func (s *Signer) scope(dateScope string) CredentialScope {
	return CredentialScope{Date: dateScope, Region: s.region, Service: s.service}
}

// hostHeader returns the Host header value AWS expects: "host[:port]" with
// the port included only when the URL carries one explicitly.
func hostHeader(u *url.URL) (string, error) {
	if u.Host == "" {
		return "", ErrMissingHost
	}
	return u.Host, nil
}

// canonicalQueryString builds the sorted, percent-encoded "k=v&k=v..."
// query string used both inside the canonical request and, for SignURL,
// as the literal query string appended to the presigned URL. Using one
// function for both guarantees they can never drift apart.
func canonicalQueryString(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		vs := append([]string(nil), values[k]...)
		sort.Strings(vs)
		ek := percentEncode(k)
		for _, v := range vs {
			pairs = append(pairs, ek+"="+percentEncode(v))
		}
	}
	return strings.Join(pairs, "&")
}

func canonicalHeaders(headers map[string][]string) (signedHeaders, canonical string) {
	lower := make(map[string]string, len(headers))
	for k, vs := range headers {
		if len(vs) == 0 {
			continue
		}
		lower[strings.ToLower(k)] = strings.TrimSpace(vs[0])
	}
	keys := make([]string, 0, len(lower))
	for k := range lower {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		lines = append(lines, k+":"+lower[k])
	}
	return strings.Join(keys, ";"), strings.Join(lines, "\n")
}

func canonicalPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		return "/"
	}
	return p
}

func canonicalRequest(method, path, query, canonHeaders, signedHeaders, payloadHash string) string {
	return strings.Join([]string{
		method,
		path,
		query,
		canonHeaders,
		"",
		signedHeaders,
		payloadHash,
	}, "\n")
}

func stringToSign(amzDate string, scope CredentialScope, canonicalHash string) string {
	return strings.Join([]string{
		Algorithm,
		amzDate,
		scope.String(),
		canonicalHash,
	}, "\n")
}

func sha256Hex(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// payloadHash implements the spec's three-way rule: no body hashes to the
// empty string's digest, an in-memory body is hashed in full, and a
// streaming body (one GetBody cannot replay without consuming) is left
// unsigned so it can be read exactly once by the transport.
func payloadHash(req *http.Request) (string, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return EmptyStringSHA256, nil
	}
	if req.GetBody == nil {
		return UnsignedPayload, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return "", err
	}
	defer body.Close()
	h := sha256.New()
	if _, err := io.Copy(h, body); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Sign signs req in place, adding x-amz-date, x-amz-content-sha256, a
// synthesized Host header if one is missing, and a final Authorization
// header. It must be called after the request body and all other headers
// that should be covered by the signature are set.
func (s *Signer) Sign(req *http.Request) error {
	now := s.now().UTC()
	amzDate := now.Format(AmzDateFormat)
	dateScope := now.Format(DateScopeFormat)

	hash, err := payloadHash(req)
	if err != nil {
		return err
	}

	req.Header.Set(headerAmzContentSHA, hash)
	req.Header.Set(headerAmzDate, amzDate)

	if req.Header.Get(headerHost) == "" && req.Host == "" {
		host, err := hostHeader(req.URL)
		if err != nil {
			return err
		}
		req.Host = host
	}

	host := req.Host
	if host == "" {
		host = req.Header.Get(headerHost)
	}

	headers := make(map[string][]string, len(req.Header)+1)
	for k, v := range req.Header {
		headers[k] = v
	}
	headers[headerHost] = []string{host}

	signedHeaders, canonHeaders := canonicalHeaders(headers)
	query := canonicalQueryString(req.URL.Query())
	path := canonicalPath(req.URL)

	creq := canonicalRequest(req.Method, path, query, canonHeaders, signedHeaders, hash)
	scope := s.scope(dateScope)
	sts := stringToSign(amzDate, scope, sha256Hex(creq))

	signature := hex.EncodeToString(hmacSHA256(s.signingKey(dateScope), sts))

	cred := Credential{AccessKeyID: s.accessKeyID, Scope: scope}
	auth := Algorithm + " Credential=" + cred.String() +
		",SignedHeaders=" + signedHeaders +
		",Signature=" + signature
	req.Header.Set(headerAuthorization, auth)
	return nil
}

// SignURL returns rawURL rewritten into a presigned GET URL valid for
// expiry. The payload is always treated as unsigned, and the only signed
// header is Host, matching a browser-followable link with no custom
// headers attached.
func (s *Signer) SignURL(rawURL string, expiry time.Duration) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		return "", ErrMissingScheme
	}
	host, err := hostHeader(u)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	amzDate := now.Format(AmzDateFormat)
	dateScope := now.Format(DateScopeFormat)
	scope := s.scope(dateScope)
	cred := Credential{AccessKeyID: s.accessKeyID, Scope: scope}

	q := u.Query()
	q.Set(queryAlgorithm, Algorithm)
	q.Set(queryCredential, cred.String())
	q.Set(queryDate, amzDate)
	q.Set(queryExpires, strconv.FormatInt(int64(expiry/time.Second), 10))
	q.Set(querySignedHeaders, signedHeadersForURL)
	u.RawQuery = canonicalQueryString(q)

	_, canonHeaders := canonicalHeaders(map[string][]string{headerHost: {host}})

	creq := canonicalRequest("GET", canonicalPath(u), u.RawQuery, canonHeaders, signedHeadersForURL, UnsignedPayload)
	sts := stringToSign(amzDate, scope, sha256Hex(creq))
	signature := hex.EncodeToString(hmacSHA256(s.signingKey(dateScope), sts))

	q = u.Query()
	q.Set(querySignature, signature)
	u.RawQuery = canonicalQueryString(q)

	return u.String(), nil
}
