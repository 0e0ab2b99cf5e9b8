package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompareToken(t *testing.T) {
	hash, err := HashToken("cron-secret")
	require.NoError(t, err)
	require.NotEqual(t, "cron-secret", hash)

	require.True(t, CompareToken(hash, "cron-secret"))
	require.False(t, CompareToken(hash, "cron-secret2"))
	require.False(t, CompareToken(hash, ""))
	require.False(t, CompareToken("", "cron-secret"))
}

func TestHashTokenRejectsEmpty(t *testing.T) {
	_, err := HashToken("")
	require.ErrorIs(t, err, ErrEmptyToken)
}
