package keys

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Generate(t *testing.T) {
	t.Parallel()

	m, err := Generate()
	require.NoError(t, err, "key generation should not fail")
	require.NotEmpty(t, m.KeyID(), "key id should be assigned")
	require.NotNil(t, m.Signer(), "private key should be available to the signer")

	info, err := m.PublicKeyInfo()
	require.NoError(t, err)
	require.Equal(t, "RS256", info.Algorithm)
	require.Equal(t, m.KeyID(), info.KeyID)
	require.Contains(t, info.PublicKeyPEM, "BEGIN PUBLIC KEY")

	t.Run("public key round trip", func(t *testing.T) {
		parsed, err := ParsePublicKey([]byte(info.PublicKeyPEM))
		require.NoError(t, err, "served PEM should parse back")
		require.True(t, parsed.Equal(&m.Signer().PublicKey), "round-tripped key should equal the signing key's public half")
	})

	t.Run("key id stable for process lifetime", func(t *testing.T) {
		again, err := m.PublicKeyInfo()
		require.NoError(t, err)
		require.Equal(t, info.KeyID, again.KeyID)
		require.Equal(t, info.PublicKeyPEM, again.PublicKeyPEM)
	})
}

func Test_PrivateKeyRoundTrip(t *testing.T) {
	t.Parallel()

	m, err := Generate()
	require.NoError(t, err)

	pemBytes, err := EncodePrivateKey(m.Signer())
	require.NoError(t, err)
	require.Contains(t, string(pemBytes), "BEGIN PRIVATE KEY")

	loaded, err := Load(pemBytes)
	require.NoError(t, err, "encoded private key should load back")
	require.True(t, loaded.Signer().Equal(m.Signer()), "loaded key should equal the original")
}

func Test_ParsePublicKey_Garbage(t *testing.T) {
	t.Parallel()

	_, err := ParsePublicKey([]byte("not a pem at all"))
	require.Error(t, err)

	_, err = ParsePublicKey([]byte("-----BEGIN PUBLIC KEY-----\nZm9v\n-----END PUBLIC KEY-----\n"))
	require.Error(t, err, "valid PEM with garbage DER should fail")
}
