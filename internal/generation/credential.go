package generation

import (
	"context"
	"strings"
)

const minKeyLength = 32

// CredentialSource yields the API key to use for a call. Keys may change
// between calls.
type CredentialSource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticKey is a fixed key, typically from configuration.
type StaticKey string

func (k StaticKey) APIKey(context.Context) (string, error) {
	return string(k), nil
}

// CheckKey applies the shape check: an "sk-" prefix and at least 32
// characters. It does not contact the API.
func CheckKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrMissingCredential
	}
	if !strings.HasPrefix(key, "sk-") || len(key) < minKeyLength {
		return ErrMalformedCredential
	}
	return nil
}
