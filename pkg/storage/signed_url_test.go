package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, expires, err := signer.Generate("job-1", "reports/job-1.csv")
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	jobID, relPath, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "reports/job-1.csv", relPath)
	assert.Equal(t, expires.Unix(), parsedExpiry.Unix())
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, _, err := signer.Generate("job-1", "reports/job-1.csv")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 4)

	// Swap in another job ID without re-signing.
	forged := strings.Join([]string{"job-2", parts[1], parts[2], parts[3]}, ".")
	_, _, _, err = signer.Parse(forged, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature")
}

func TestSignedURLRejectsForeignSecret(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	other := NewSignedURLSigner("other-secret", time.Hour)

	token, _, err := signer.Generate("job-1", "reports/job-1.csv")
	require.NoError(t, err)

	_, _, _, err = other.Parse(token, false)
	require.Error(t, err)
}

func TestSignedURLExpiry(t *testing.T) {
	signer := NewSignedURLSigner("secret", -time.Hour)
	// Negative TTL falls back to the 24h default.
	_, expires, err := signer.Generate("job-1", "reports/job-1.csv")
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now().Add(23*time.Hour)))

	// A signer with a negative TTL set directly produces already-expired
	// tokens, which exercises the allowExpired escape hatch.
	short := &SignedURLSigner{secret: []byte("secret"), ttl: -2 * time.Minute}
	token, _, err := short.Generate("job-1", "reports/job-1.csv")
	require.NoError(t, err)

	_, _, _, err = short.Parse(token, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")

	jobID, _, _, err := short.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
}

func TestSignedURLRejectsMalformedToken(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	_, _, _, err := signer.Parse("not-a-token", false)
	require.Error(t, err)
}

func TestGenerateRequiresArguments(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	_, _, err := signer.Generate("", "reports/file.csv")
	require.Error(t, err)
	_, _, err = signer.Generate("job-1", "")
	require.Error(t, err)
}
