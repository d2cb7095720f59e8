package storage

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/signer"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinioConfig configures any S3-compatible endpoint (MinIO, AWS S3, ArvanCloud).
type MinioConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	UseSSL       bool
	CreateBucket bool
}

// MinioStorage implements ObjectStore and signer.Issuer on an S3 bucket
type MinioStorage struct {
	client  *minio.Client
	bucket  string
	canSign bool
	policy  signer.Policy
	now     func() time.Time
}

// NewMinioStorage creates the client and, when asked, the bucket. Without an access key pair the
// client is anonymous and issued URLs are unsigned.
func NewMinioStorage(ctx context.Context, config MinioConfig) (*MinioStorage, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket name is empty")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	if config.CreateBucket {
		exists, err := client.BucketExists(ctx, config.Bucket)
		if err != nil {
			return nil, fmt.Errorf("check bucket existence: %w", err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{Region: config.Region}); err != nil {
				return nil, fmt.Errorf("create bucket %q: %w", config.Bucket, err)
			}
			log.Info().Str("bucket", config.Bucket).Msg("Created bucket")
		}
	}

	canSign := config.AccessKey != "" && config.SecretKey != ""
	if !canSign {
		log.Warn().Str("bucket", config.Bucket).Msg("No S3 access key pair, issuing unsigned URLs")
	}

	return &MinioStorage{
		client:  client,
		bucket:  config.Bucket,
		canSign: canSign,
		policy:  signer.DefaultPolicy(),
		now:     time.Now,
	}, nil
}

// Put streams data to the bucket under key
func (m *MinioStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// List walks the recursive listing under prefix. The listing goroutine inside minio-go is stopped
// through a derived context when the consumer stops early.
func (m *MinioStorage) List(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		listCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		for obj := range m.client.ListObjects(listCtx, m.bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}) {
			if obj.Err != nil {
				yield(ObjectInfo{}, fmt.Errorf("list objects with prefix %q: %w", prefix, obj.Err))
				return
			}
			info := ObjectInfo{
				Key:         obj.Key,
				ContentType: obj.ContentType,
				Size:        obj.Size,
				CreatedAt:   obj.LastModified,
			}
			if !yield(info, nil) {
				return
			}
		}
	}
}

// Exists stats key
func (m *MinioStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("stat object %q: %w", key, err)
}

// Delete removes the object at key. S3 deletes succeed for absent keys, so absence is not detected here.
func (m *MinioStorage) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

// ContainerURL is the path-style bucket URL
func (m *MinioStorage) ContainerURL() string {
	return strings.TrimRight(m.client.EndpointURL().String(), "/") + "/" + m.bucket
}

// Ping checks the bucket exists
func (m *MinioStorage) Ping(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", m.bucket)
	}
	return nil
}

// Issue presigns a GET for key. SigV4 tokens start at signing time, so the grant does too, and last
// policy.Lifetime.
func (m *MinioStorage) Issue(ctx context.Context, key string) signer.AccessURL {
	objectURL := signer.ObjectURL(m.ContainerURL(), key)
	if !m.canSign {
		return signer.UnsignedURL(objectURL)
	}

	grant := m.policy.NewUnskewedGrant(key, m.now())
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.policy.Lifetime, nil)
	if err != nil {
		log.Error().Err(err).Str("objectKey", key).Msg("Failed to presign URL, issuing unsigned URL")
		return signer.UnsignedURL(objectURL)
	}
	return signer.SignedURL(u.String(), grant)
}
