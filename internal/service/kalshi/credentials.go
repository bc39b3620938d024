package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strconv"
	"time"
)

// SignedCredentials signs requests with an RSA-PSS key per the Kalshi
// trade API scheme: the signature covers timestamp + method + path.
type SignedCredentials struct {
	keyID string
	key   *rsa.PrivateKey
	now   func() time.Time
}

// NewSignedCredentials loads a PEM-encoded RSA private key from disk.
func NewSignedCredentials(keyID, privateKeyPath string) (*SignedCredentials, error) {
	raw, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("private key %s: no PEM block", privateKeyPath)
	}
	key, err := parseRSAKey(block)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &SignedCredentials{keyID: keyID, key: key, now: time.Now}, nil
}

func parseRSAKey(block *pem.Block) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA key")
	}
	return key, nil
}

func (c *SignedCredentials) Headers(_ context.Context, method, path string) (map[string]string, error) {
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	digest := sha256.Sum256([]byte(ts + method + path))
	sig, err := rsa.SignPSS(rand.Reader, c.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	return map[string]string{
		"KALSHI-ACCESS-KEY":       c.keyID,
		"KALSHI-ACCESS-SIGNATURE": base64.StdEncoding.EncodeToString(sig),
		"KALSHI-ACCESS-TIMESTAMP": ts,
	}, nil
}

// AnonymousCredentials sends no auth headers. Public market data
// endpoints accept unauthenticated requests.
type AnonymousCredentials struct{}

func (AnonymousCredentials) Headers(context.Context, string, string) (map[string]string, error) {
	return nil, nil
}
