package app

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const jwtSecretBytes = 48

// runtimeSecret is a config value that may be generated at startup when left empty.
type runtimeSecret struct {
	key   string
	bytes int
	field func(*Config) *string
}

var runtimeSecrets = []runtimeSecret{
	{key: "auth.jwt.secret", bytes: jwtSecretBytes, field: func(c *Config) *string { return &c.Auth.JWT.Secret }},
}

// ApplyRuntimeDefaults fills empty secrets with random values and returns the keys it generated.
// A generated JWT secret only verifies tokens minted by this process, so it is meant for local runs.
func ApplyRuntimeDefaults(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	var generated []string
	for _, secret := range runtimeSecrets {
		target := secret.field(cfg)
		if strings.TrimSpace(*target) != "" {
			continue
		}
		value, err := generateHexKey(secret.bytes)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", secret.key, err)
		}
		*target = value
		generated = append(generated, secret.key)
	}
	return generated, nil
}

func generateHexKey(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("key length must be positive")
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
