package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// selfSignedCertPEM produces a PEM certificate wrapping the given key, the
// shape the provider's certs endpoint publishes.
func selfSignedCertPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test-signer"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating test certificate: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func TestCertSource_FetchAndCache(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}
	certPEM := selfSignedCertPEM(t, key)

	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.Header().Set("Cache-Control", "public, max-age=3600")
		json.NewEncoder(w).Encode(map[string]string{"kid-a": certPEM})
	}))
	defer srv.Close()

	source := NewCertSource(srv.URL, srv.Client())

	got, err := source.Key(context.Background(), "kid-a")
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	pub, ok := got.(*rsa.PublicKey)
	if !ok {
		t.Fatalf("Key() returned %T, want *rsa.PublicKey", got)
	}
	if pub.N.Cmp(key.PublicKey.N) != 0 {
		t.Error("Key() returned a different public key than the served certificate")
	}

	// Second lookup within max-age must hit the cache, not the server.
	if _, err := source.Key(context.Background(), "kid-a"); err != nil {
		t.Fatalf("Key() second call error = %v", err)
	}
	if fetches != 1 {
		t.Errorf("certs endpoint fetched %d times, want 1 (cached)", fetches)
	}
}

func TestCertSource_UnknownKidTriggersRefresh(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	certPEM := selfSignedCertPEM(t, key)

	// First response serves kid-old, second serves kid-new — simulates a
	// provider key rotation between lookups.
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		kid := "kid-old"
		if fetches > 1 {
			kid = "kid-new"
		}
		json.NewEncoder(w).Encode(map[string]string{kid: certPEM})
	}))
	defer srv.Close()

	source := NewCertSource(srv.URL, srv.Client())

	if _, err := source.Key(context.Background(), "kid-old"); err != nil {
		t.Fatalf("Key(kid-old) error = %v", err)
	}
	if _, err := source.Key(context.Background(), "kid-new"); err != nil {
		t.Fatalf("Key(kid-new) after rotation error = %v", err)
	}
	if fetches != 2 {
		t.Errorf("certs endpoint fetched %d times, want 2", fetches)
	}
}

func TestCertSource_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	source := NewCertSource(srv.URL, srv.Client())

	if _, err := source.Key(context.Background(), "any"); err == nil {
		t.Error("Key() should fail when the certs endpoint errors")
	}
}

func TestCertTTL(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"public, max-age=3600, must-revalidate", time.Hour},
		{"max-age=60", time.Minute},
		{"", defaultCertTTL},
		{"no-cache", defaultCertTTL},
	}
	for _, tt := range tests {
		if got := certTTL(tt.header); got != tt.want {
			t.Errorf("certTTL(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
