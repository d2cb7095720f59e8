// Package signer issues time-bounded, read-only access URLs for stored photo objects.
package signer

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Kind tags whether an AccessURL carries a signature.
type Kind int

const (
	// Unsigned URLs point straight at the object and only work if the container is otherwise readable.
	Unsigned Kind = iota
	// Signed URLs carry a time-bounded read token.
	Signed
)

func (k Kind) String() string {
	if k == Signed {
		return "signed"
	}
	return "unsigned"
}

// ReadPermission is the only permission ever granted.
const ReadPermission = "r"

// Policy controls the validity window of every grant.
type Policy struct {
	// ClockSkew backdates the start of the window.
	ClockSkew time.Duration
	// Lifetime is measured from issuance.
	Lifetime time.Duration
}

// DefaultPolicy starts grants five minutes in the past and expires them after 24 hours.
func DefaultPolicy() Policy {
	return Policy{
		ClockSkew: 5 * time.Minute,
		Lifetime:  24 * time.Hour,
	}
}

// Grant is the access window encoded into a signed URL. It is computed per request and never stored.
type Grant struct {
	ObjectKey   string
	ValidFrom   time.Time
	ValidUntil  time.Time
	Permissions string
}

// Window is ValidUntil minus ValidFrom.
func (g Grant) Window() time.Duration {
	return g.ValidUntil.Sub(g.ValidFrom)
}

// NewGrant applies the policy at issuance time now.
func (p Policy) NewGrant(objectKey string, now time.Time) Grant {
	return Grant{
		ObjectKey:   objectKey,
		ValidFrom:   now.Add(-p.ClockSkew),
		ValidUntil:  now.Add(p.Lifetime),
		Permissions: ReadPermission,
	}
}

// NewUnskewedGrant is NewGrant for signers that cannot backdate the token start, such as GCS V4 and
// S3 SigV4. ValidFrom is the signing time; ValidUntil is unchanged.
func (p Policy) NewUnskewedGrant(objectKey string, now time.Time) Grant {
	g := p.NewGrant(objectKey, now)
	g.ValidFrom = now
	return g
}

// AccessURL is the result of an issuance.
type AccessURL struct {
	URL   string
	Kind  Kind
	Grant Grant
}

// IsSigned reports whether the URL carries a token.
func (a AccessURL) IsSigned() bool {
	return a.Kind == Signed
}

// SignedURL wraps a token-bearing URL.
func SignedURL(u string, g Grant) AccessURL {
	return AccessURL{URL: u, Kind: Signed, Grant: g}
}

// UnsignedURL wraps a plain object URL.
func UnsignedURL(u string) AccessURL {
	return AccessURL{URL: u, Kind: Unsigned}
}

// Issuer produces an access URL for exactly one object.
type Issuer interface {
	Issue(ctx context.Context, objectKey string) AccessURL
}

// ObjectURL joins a container URL and an object key, escaping each key segment.
func ObjectURL(containerURL, objectKey string) string {
	segments := strings.Split(objectKey, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(containerURL, "/") + "/" + strings.Join(segments, "/")
}
