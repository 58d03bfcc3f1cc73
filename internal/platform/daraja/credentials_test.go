package daraja

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTestCert(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test-gateway"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "gateway.cer")
	out, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(out, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, out.Close())

	return path, key
}

func TestCredentialGeneratorRoundTrip(t *testing.T) {
	certPath, key := writeTestCert(t)

	gen, err := newCredentialGenerator(certPath)
	require.NoError(t, err)

	credential, err := gen.Encrypt("initiator-password")
	require.NoError(t, err)

	ciphertext, err := base64.StdEncoding.DecodeString(credential)
	require.NoError(t, err)

	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, key, ciphertext)
	require.NoError(t, err)
	require.Equal(t, "initiator-password", string(plaintext))
}

func TestCredentialGeneratorMissingCert(t *testing.T) {
	_, err := newCredentialGenerator(filepath.Join(t.TempDir(), "absent.cer"))
	require.ErrorIs(t, err, ErrCredentialEncryption)
}
