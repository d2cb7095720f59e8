package signer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedCredentials is returned when a connection descriptor has no account to sign for.
var ErrMalformedCredentials = errors.New("malformed storage credentials")

const defaultEndpointSuffix = "core.windows.net"

// Credentials is the parsed form of a storage connection descriptor such as
// "DefaultEndpointsProtocol=https;AccountName=acct;AccountKey=...;EndpointSuffix=core.windows.net".
type Credentials struct {
	AccountName  string
	AccountKey   string
	BlobEndpoint string
	SASToken     string
}

// String never includes the account key or SAS token.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{AccountName:%s, BlobEndpoint:%s}", c.AccountName, c.BlobEndpoint)
}

// CanSign reports whether the pair needed for shared-key signing is present.
func (c Credentials) CanSign() bool {
	return c.AccountName != "" && c.AccountKey != ""
}

// ParseConnectionString splits a semicolon separated descriptor into Credentials.
func ParseConnectionString(s string) (Credentials, error) {
	fields := map[string]string{}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return Credentials{}, fmt.Errorf("%w: segment without '='", ErrMalformedCredentials)
		}
		fields[strings.ToLower(k)] = v
	}

	creds := Credentials{
		AccountName:  fields["accountname"],
		AccountKey:   fields["accountkey"],
		BlobEndpoint: strings.TrimRight(fields["blobendpoint"], "/"),
		SASToken:     fields["sharedaccesssignature"],
	}

	if creds.BlobEndpoint == "" {
		if creds.AccountName == "" {
			return Credentials{}, fmt.Errorf("%w: neither AccountName nor BlobEndpoint set", ErrMalformedCredentials)
		}
		protocol := fields["defaultendpointsprotocol"]
		if protocol == "" {
			protocol = "https"
		}
		suffix := fields["endpointsuffix"]
		if suffix == "" {
			suffix = defaultEndpointSuffix
		}
		creds.BlobEndpoint = fmt.Sprintf("%s://%s.blob.%s", protocol, creds.AccountName, suffix)
	}

	return creds, nil
}
