// Package secrets loads the storage connection descriptor at start-up.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/gateway"
)

// Source yields the storage connection descriptor.
type Source interface {
	ConnectionString(ctx context.Context) (string, error)
}

// EnvSource reads the descriptor from an environment variable.
type EnvSource struct {
	Name   string
	lookup func(string) (string, bool)
}

func NewEnvSource(name string) *EnvSource {
	return &EnvSource{Name: name, lookup: os.LookupEnv}
}

func (s *EnvSource) ConnectionString(context.Context) (string, error) {
	value, ok := s.lookup(s.Name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%w: %s is not set", gateway.ErrConfiguration, s.Name)
	}
	return strings.TrimSpace(value), nil
}
