package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/gateway"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvSource(t *testing.T) {
	t.Setenv("TEST_STORAGE_CONNECTION_STRING", "  AccountName=acct;AccountKey=a2V5  ")

	value, err := NewEnvSource("TEST_STORAGE_CONNECTION_STRING").ConnectionString(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AccountName=acct;AccountKey=a2V5", value)
}

func TestEnvSourceMissing(t *testing.T) {
	src := &EnvSource{Name: "NOPE", lookup: func(string) (string, bool) { return "", false }}
	_, err := src.ConnectionString(context.Background())
	assert.ErrorIs(t, err, gateway.ErrConfiguration)

	src.lookup = func(string) (string, bool) { return "   ", true }
	_, err = src.ConnectionString(context.Background())
	assert.ErrorIs(t, err, gateway.ErrConfiguration)
}

type fakeGetter struct {
	value string
	err   error
}

func (f fakeGetter) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	cmd.SetVal(f.value)
	return cmd
}

func TestRedisSource(t *testing.T) {
	tests := []struct {
		name    string
		getter  fakeGetter
		want    string
		wantErr bool
	}{
		{"value", fakeGetter{value: "AccountName=acct;AccountKey=a2V5"}, "AccountName=acct;AccountKey=a2V5", false},
		{"missing key", fakeGetter{err: redis.Nil}, "", true},
		{"empty value", fakeGetter{value: " "}, "", true},
		{"connection failure", fakeGetter{err: errors.New("connection refused")}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &RedisSource{client: tt.getter, key: "secrets:storage"}
			got, err := src.ConnectionString(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, gateway.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRedisSourceCloseWithoutClient(t *testing.T) {
	assert.NoError(t, (&RedisSource{}).Close())
}
