package signer

import (
	"context"
	"net/url"
	"path"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/rs/zerolog/log"
)

// SharedKeyIssuer signs blob URLs with the storage account's shared key (HMAC-SHA256 service SAS).
// When the descriptor cannot produce a shared-key credential it degrades to unsigned URLs.
type SharedKeyIssuer struct {
	containerURL string
	container    string
	cred         *azblob.SharedKeyCredential
	policy       Policy
	now          func() time.Time
}

// Option configures a SharedKeyIssuer.
type Option func(*SharedKeyIssuer)

// WithClock overrides the issuance clock.
func WithClock(now func() time.Time) Option {
	return func(i *SharedKeyIssuer) {
		i.now = now
	}
}

// WithPolicy overrides the validity window.
func WithPolicy(p Policy) Option {
	return func(i *SharedKeyIssuer) {
		i.policy = p
	}
}

// NewSharedKeyIssuer builds an issuer for the container at containerURL. The connection descriptor is
// only used to derive the signing credential; if that fails the issuer serves unsigned URLs.
func NewSharedKeyIssuer(containerURL, connectionString string, opts ...Option) *SharedKeyIssuer {
	i := &SharedKeyIssuer{
		containerURL: containerURL,
		container:    containerName(containerURL),
		policy:       DefaultPolicy(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}

	creds, err := ParseConnectionString(connectionString)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("container", i.container).Msg("Storage credentials unparseable, issuing unsigned URLs")
	case !creds.CanSign():
		log.Warn().Str("account", creds.AccountName).Str("container", i.container).Msg("No account key in storage credentials, issuing unsigned URLs")
	default:
		cred, err := azblob.NewSharedKeyCredential(creds.AccountName, creds.AccountKey)
		if err != nil {
			log.Warn().Err(err).Str("account", creds.AccountName).Msg("Account key rejected, issuing unsigned URLs")
			break
		}
		i.cred = cred
	}

	return i
}

// CanSign reports whether the issuer holds a signing credential.
func (i *SharedKeyIssuer) CanSign() bool {
	return i.cred != nil
}

// Issue returns a read-only SAS URL for objectKey, or the plain object URL in degraded mode.
func (i *SharedKeyIssuer) Issue(_ context.Context, objectKey string) AccessURL {
	objectURL := ObjectURL(i.containerURL, objectKey)
	if i.cred == nil {
		log.Debug().Str("objectKey", objectKey).Msg("Issuing unsigned URL")
		return UnsignedURL(objectURL)
	}

	grant := i.policy.NewGrant(objectKey, i.now().UTC())
	qp, err := sas.BlobSignatureValues{
		StartTime:     grant.ValidFrom,
		ExpiryTime:    grant.ValidUntil,
		Permissions:   (&sas.BlobPermissions{Read: true}).String(),
		ContainerName: i.container,
		BlobName:      objectKey,
	}.SignWithSharedKey(i.cred)
	if err != nil {
		log.Error().Err(err).Str("objectKey", objectKey).Msg("Failed to sign URL, issuing unsigned URL")
		return UnsignedURL(objectURL)
	}

	return SignedURL(objectURL+"?"+qp.Encode(), grant)
}

func containerName(containerURL string) string {
	u, err := url.Parse(containerURL)
	if err != nil {
		return ""
	}
	return path.Base(path.Clean("/" + u.Path))
}
