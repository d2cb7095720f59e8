package main

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/config"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/gateway"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/signer"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	value string
	err   error
}

func (s staticSource) ConnectionString(context.Context) (string, error) {
	return s.value, s.err
}

func TestSetupBackendMemory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = config.BackendMemory
	cfg.Storage.MemoryBaseURL = "http://localhost:8080/objects/"

	connStr := "AccountName=dev;AccountKey=" + base64.StdEncoding.EncodeToString([]byte("dev-key"))
	b, err := setupBackend(context.Background(), cfg, staticSource{value: connStr})
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &storage.MemoryStorage{}, b.store)
	assert.Equal(t, "http://localhost:8080/objects", b.store.ContainerURL())
	access := b.issuer.Issue(context.Background(), "c1/1-room.jpg")
	assert.Equal(t, signer.Signed, access.Kind)
}

func TestSetupBackendMemoryWithoutSecretIsUnsigned(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = config.BackendMemory

	b, err := setupBackend(context.Background(), cfg, staticSource{err: gateway.ErrConfiguration})
	require.NoError(t, err)
	assert.Equal(t, signer.Unsigned, b.issuer.Issue(context.Background(), "c1/1-room.jpg").Kind)
}

func TestSetupBackendAzureNeedsSecret(t *testing.T) {
	cfg := config.DefaultConfig()
	missing := errors.New("missing")

	_, err := setupBackend(context.Background(), cfg, staticSource{err: missing})
	assert.ErrorIs(t, err, missing)

	_, err = setupBackend(context.Background(), cfg, staticSource{value: "not a connection string"})
	assert.ErrorIs(t, err, gateway.ErrConfiguration)
}

func TestSetupBackendUnknown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = "tape"

	_, err := setupBackend(context.Background(), cfg, staticSource{})
	assert.ErrorIs(t, err, gateway.ErrConfiguration)
}

func TestSetupSecretSourceEnv(t *testing.T) {
	t.Setenv("PHOTO_TEST_CONN", "AccountName=a;AccountKey=b")
	cfg := config.DefaultConfig()
	cfg.Secrets.EnvVar = "PHOTO_TEST_CONN"

	src, closer, err := setupSecretSource(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, closer)

	value, err := src.ConnectionString(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AccountName=a;AccountKey=b", value)
}
