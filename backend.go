package main

import (
	"context"
	"fmt"
	"io"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/config"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/gateway"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/secrets"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/signer"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/storage"
	"github.com/rs/zerolog/log"
)

// backend pairs an object store with the issuer that signs its URLs
type backend struct {
	store  storage.ObjectStore
	issuer signer.Issuer
	closer io.Closer
}

func (b backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// setupSecretSource picks where the storage connection descriptor comes from
func setupSecretSource(ctx context.Context, cfg config.Config) (secrets.Source, io.Closer, error) {
	switch cfg.Secrets.Source {
	case config.SecretSourceRedis:
		src, err := secrets.NewRedisSource(ctx, secrets.RedisConfig{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Secrets.RedisKey)
		if err != nil {
			return nil, nil, err
		}
		return src, src, nil
	default:
		return secrets.NewEnvSource(cfg.Secrets.EnvVar), nil, nil
	}
}

// setupBackend builds the configured object store. A descriptor the backend client cannot use
// aborts start-up; a descriptor that only lacks signing material degrades to unsigned URLs.
func setupBackend(ctx context.Context, cfg config.Config, src secrets.Source) (backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendAzure:
		connStr, err := src.ConnectionString(ctx)
		if err != nil {
			return backend{}, err
		}
		store, err := storage.NewAzureStorage(ctx, storage.AzureConfig{
			ConnectionString: connStr,
			Container:        cfg.Storage.Container,
			CreateContainer:  cfg.Storage.CreateContainer,
		})
		if err != nil {
			return backend{}, fmt.Errorf("%w: %w", gateway.ErrConfiguration, err)
		}
		return backend{
			store:  store,
			issuer: signer.NewSharedKeyIssuer(store.ContainerURL(), connStr),
		}, nil

	case config.BackendGCS:
		store, err := storage.NewGCSStorage(ctx, storage.GCSConfig{
			ProjectID:       cfg.GCS.ProjectID,
			CredentialsFile: cfg.GCS.CredentialsFile,
			Bucket:          cfg.GCS.Bucket,
		})
		if err != nil {
			return backend{}, fmt.Errorf("%w: %w", gateway.ErrConfiguration, err)
		}
		return backend{store: store, issuer: store, closer: store}, nil

	case config.BackendS3:
		store, err := storage.NewMinioStorage(ctx, storage.MinioConfig{
			Endpoint:     cfg.S3.Endpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			UseSSL:       cfg.S3.UseSSL,
			CreateBucket: cfg.Storage.CreateContainer,
		})
		if err != nil {
			return backend{}, fmt.Errorf("%w: %w", gateway.ErrConfiguration, err)
		}
		return backend{store: store, issuer: store}, nil

	case config.BackendMemory:
		// signing is optional here, so a missing descriptor only means unsigned URLs
		connStr, err := src.ConnectionString(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("No connection string for the memory backend")
		}
		store := storage.NewMemoryStorage(cfg.Storage.MemoryBaseURL)
		return backend{
			store:  store,
			issuer: signer.NewSharedKeyIssuer(store.ContainerURL(), connStr),
		}, nil

	default:
		return backend{}, fmt.Errorf("%w: unknown storage backend %q", gateway.ErrConfiguration, cfg.Storage.Backend)
	}
}
