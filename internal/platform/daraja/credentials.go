package daraja

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
)

// credentialGenerator encrypts the initiator password with the gateway's
// published public certificate, as required for the B2C SecurityCredential.
type credentialGenerator struct {
	pub *rsa.PublicKey
}

func newCredentialGenerator(certPath string) (*credentialGenerator, error) {
	data, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialEncryption, err)
	}
	pub, err := parseCertificatePublicKey(data)
	if err != nil {
		return nil, err
	}
	return &credentialGenerator{pub: pub}, nil
}

// parseCertificatePublicKey accepts the certificate in either PEM or raw DER
// form; Safaricom distributes it as PEM-wrapped .cer.
func parseCertificatePublicKey(data []byte) (*rsa.PublicKey, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parse certificate: %v", ErrCredentialEncryption, err)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: certificate does not carry an RSA public key", ErrCredentialEncryption)
	}
	return pub, nil
}

// Encrypt returns base64(RSA-PKCS1v15(password)).
func (g *credentialGenerator) Encrypt(password string) (string, error) {
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, g.pub, []byte(password))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCredentialEncryption, err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
