package keys

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHash(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Hash(&buf, "s3cret"))

	line := strings.TrimSpace(buf.String())
	require.True(t, strings.HasPrefix(line, "ORACLE_API_KEY_HASH="))
	hash := strings.TrimPrefix(line, "ORACLE_API_KEY_HASH=")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestHashFallsBackToEnv(t *testing.T) {
	t.Setenv("ORACLE_UPDATE_API_KEY", "from-env")
	var buf bytes.Buffer
	require.NoError(t, Hash(&buf, ""))
	assert.Contains(t, buf.String(), "ORACLE_API_KEY_HASH=$2")

	t.Setenv("ORACLE_UPDATE_API_KEY", "")
	assert.ErrorIs(t, Hash(&buf, ""), ErrNoKey)
}
