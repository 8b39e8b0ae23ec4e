package sigv4

import "strings"

// charset of bytes that must be percent-encoded when building the
// canonical query string. This mirrors the byte set used by the upstream
// reference implementation rather than net/url's QueryEscape, which does
// not encode the same way AWS expects in a canonical request (notably it
// turns a space into "+" instead of "%20").
const escapeSet = " /:,?#[]{}|@!$&'()*+;=%<>\"^`\\"

func mustEscape(b byte) bool {
	if b < 0x20 || b == 0x7f {
		return true
	}
	return strings.IndexByte(escapeSet, b) >= 0
}

// percentEncode escapes s for use as a query-string key or value in a
// canonical request, matching the AWS SigV4 percent-encoding rules.
func percentEncode(s string) string {
	var needsEscape bool
	for i := 0; i < len(s); i++ {
		if mustEscape(s[i]) {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + len(s)/2)
	const hex = "0123456789ABCDEF"
	for i := 0; i < len(s); i++ {
		c := s[i]
		if mustEscape(c) {
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0xf])
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}
