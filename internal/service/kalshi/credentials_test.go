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
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func writeTestKey(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.pem")
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path, key
}

func TestSignedCredentialsHeaders(t *testing.T) {
	path, key := writeTestKey(t)
	creds, err := NewSignedCredentials("key-1", path)
	if err != nil {
		t.Fatalf("load credentials: %v", err)
	}
	fixed := time.UnixMilli(1700000000000)
	creds.now = func() time.Time { return fixed }

	headers, err := creds.Headers(context.Background(), "GET", "/trade-api/v2/events")
	if err != nil {
		t.Fatalf("headers: %v", err)
	}
	if headers["KALSHI-ACCESS-KEY"] != "key-1" {
		t.Errorf("access key = %q", headers["KALSHI-ACCESS-KEY"])
	}
	ts := headers["KALSHI-ACCESS-TIMESTAMP"]
	if ts != strconv.FormatInt(fixed.UnixMilli(), 10) {
		t.Errorf("timestamp = %q", ts)
	}

	sig, err := base64.StdEncoding.DecodeString(headers["KALSHI-ACCESS-SIGNATURE"])
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	digest := sha256.Sum256([]byte(ts + "GET" + "/trade-api/v2/events"))
	if err := rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	}); err != nil {
		t.Errorf("signature does not verify: %v", err)
	}
}

func TestNewSignedCredentialsBadInput(t *testing.T) {
	if _, err := NewSignedCredentials("key-1", filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Error("missing file: want error")
	}

	path := filepath.Join(t.TempDir(), "junk.pem")
	if err := os.WriteFile(path, []byte("not a pem"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSignedCredentials("key-1", path); err == nil {
		t.Error("junk file: want error")
	}
}

func TestAnonymousCredentials(t *testing.T) {
	headers, err := AnonymousCredentials{}.Headers(context.Background(), "GET", "/events")
	if err != nil {
		t.Fatalf("headers: %v", err)
	}
	if len(headers) != 0 {
		t.Errorf("headers = %v, want none", headers)
	}
}
