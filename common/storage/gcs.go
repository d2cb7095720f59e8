package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/signer"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const gcsPublicHost = "https://storage.googleapis.com"

// GCSConfig represents the configuration for GCS
type GCSConfig struct {
	ProjectID       string
	CredentialsFile string
	Bucket          string
}

// GCSStorage implements ObjectStore and signer.Issuer for Google Cloud Storage
type GCSStorage struct {
	client *storage.Client
	config GCSConfig

	// signing material from the service-account file; empty means unsigned URLs
	accessID   string
	privateKey []byte
	policy     signer.Policy
	now        func() time.Time
}

// NewGCSStorage creates a new GCS storage service
func NewGCSStorage(ctx context.Context, config GCSConfig) (*GCSStorage, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is empty")
	}

	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}
	storageClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	g := &GCSStorage{
		client: storageClient,
		config: config,
		policy: signer.DefaultPolicy(),
		now:    time.Now,
	}

	accessID, privateKey, err := readSigningKey(config.CredentialsFile)
	if err != nil {
		log.Warn().Err(err).Str("bucket", config.Bucket).Msg("GCS signing key unavailable, issuing unsigned URLs")
	} else {
		g.accessID = accessID
		g.privateKey = privateKey
	}

	return g, nil
}

func readSigningKey(credentialsFile string) (string, []byte, error) {
	type credentials struct {
		PrivateKey  string `json:"private_key"`
		ClientEmail string `json:"client_email"`
	}

	if credentialsFile == "" {
		return "", nil, errors.New("no credentials file configured")
	}

	credsFile, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds credentials
	if err := json.Unmarshal(credsFile, &creds); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		return "", nil, errors.New("credentials file has no client_email/private_key pair")
	}
	return creds.ClientEmail, []byte(creds.PrivateKey), nil
}

// Put uploads data to the bucket
func (g *GCSStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	wc := g.client.Bucket(g.config.Bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer for object %s: %w", key, err)
	}
	return nil
}

// List iterates objects under prefix
func (g *GCSStorage) List(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		it := g.client.Bucket(g.config.Bucket).Objects(ctx, &storage.Query{Prefix: prefix})
		for {
			attrs, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield(ObjectInfo{}, fmt.Errorf("failed to list objects with prefix %s in bucket %s: %w", prefix, g.config.Bucket, err))
				return
			}
			info := ObjectInfo{
				Key:         attrs.Name,
				ContentType: attrs.ContentType,
				Size:        attrs.Size,
				CreatedAt:   attrs.Created,
			}
			if !yield(info, nil) {
				return
			}
		}
	}
}

// Exists reads the object attributes
func (g *GCSStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.client.Bucket(g.config.Bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read attributes of object %s: %w", key, err)
	}
	return true, nil
}

// Delete deletes a file from GCS
func (g *GCSStorage) Delete(ctx context.Context, key string) error {
	if err := g.client.Bucket(g.config.Bucket).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete object %s from bucket %s: %w", key, g.config.Bucket, err)
	}
	return nil
}

// ContainerURL is the public XML API base for the bucket
func (g *GCSStorage) ContainerURL() string {
	return gcsPublicHost + "/" + g.config.Bucket
}

// Ping reads the bucket attributes
func (g *GCSStorage) Ping(ctx context.Context) error {
	if _, err := g.client.Bucket(g.config.Bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", g.config.Bucket, err)
	}
	return nil
}

// Close releases the client
func (g *GCSStorage) Close() error {
	return g.client.Close()
}

// Issue gets a V4 signed URL for key. GCS tokens start at signing time, so the grant does too.
func (g *GCSStorage) Issue(_ context.Context, key string) signer.AccessURL {
	objectURL := signer.ObjectURL(g.ContainerURL(), key)
	if g.accessID == "" {
		return signer.UnsignedURL(objectURL)
	}

	grant := g.policy.NewUnskewedGrant(key, g.now())
	u, err := storage.SignedURL(g.config.Bucket, key, &storage.SignedURLOptions{
		GoogleAccessID: g.accessID,
		PrivateKey:     g.privateKey,
		Method:         "GET",
		Expires:        grant.ValidUntil,
		Scheme:         storage.SigningSchemeV4,
	})
	if err != nil {
		log.Error().Err(err).Str("objectKey", key).Msg("Failed to sign GCS URL, issuing unsigned URL")
		return signer.UnsignedURL(objectURL)
	}
	return signer.SignedURL(u, grant)
}
