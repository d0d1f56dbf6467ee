package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyRuntimeDefaults(t *testing.T) {
	t.Run("fills blank secret", func(t *testing.T) {
		cfg := &Config{}
		cfg.Auth.JWT.Secret = "   "

		generated, err := ApplyRuntimeDefaults(cfg)
		require.NoError(t, err)
		require.Equal(t, []string{"auth.jwt.secret"}, generated)
		require.Len(t, cfg.Auth.JWT.Secret, jwtSecretBytes*2)
	})

	t.Run("keeps configured secret", func(t *testing.T) {
		cfg := &Config{}
		cfg.Auth.JWT.Secret = "configured-by-operator"

		generated, err := ApplyRuntimeDefaults(cfg)
		require.NoError(t, err)
		require.Empty(t, generated)
		require.Equal(t, "configured-by-operator", cfg.Auth.JWT.Secret)
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := ApplyRuntimeDefaults(nil)
		require.EqualError(t, err, "config is nil")
	})
}

func TestGenerateHexKeyIsRandom(t *testing.T) {
	a, err := generateHexKey(16)
	require.NoError(t, err)
	b, err := generateHexKey(16)
	require.NoError(t, err)
	require.Len(t, a, 32)
	require.NotEqual(t, a, b)

	_, err = generateHexKey(0)
	require.Error(t, err)
}
