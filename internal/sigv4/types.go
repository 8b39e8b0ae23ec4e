package sigv4

import "fmt"

// CredentialScope identifies the date, region and service a signature is
// bound to, in the form "<date>/<region>/<service>/aws4_request".
type CredentialScope struct {
	Date    string
	Region  string
	Service string
}

func (c CredentialScope) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", c.Date, c.Region, c.Service, AWS4Request)
}

// Credential is the access key plus the scope it is bound to, as it appears
// in both the Authorization header and the X-Amz-Credential query param.
type Credential struct {
	AccessKeyID string
	Scope       CredentialScope
}

func (c Credential) String() string {
	return fmt.Sprintf("%s/%s", c.AccessKeyID, c.Scope)
}
