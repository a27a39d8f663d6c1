package identity

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CertSource fetches the provider's published signing certificates and
// serves them as verification keys, keyed by kid.
//
// The provider publishes a JSON object mapping key IDs to PEM-encoded X.509
// certificates at a well-known URL, and rotates them regularly. We cache
// the set for the duration the response's Cache-Control max-age allows,
// falling back to a fixed interval when the header is absent.
//
// Safe for concurrent use: Verify runs on every authenticated request and
// many requests share one CertSource.
type CertSource struct {
	url    string
	client *http.Client

	mu      sync.Mutex
	keys    map[string]any // kid → *rsa.PublicKey
	expires time.Time
}

const defaultCertTTL = 5 * time.Minute

// NewCertSource creates a CertSource for the given certificate URL.
// A nil client falls back to a client with a 10s timeout — never the
// zero-timeout http.DefaultClient on a request path.
func NewCertSource(url string, client *http.Client) *CertSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &CertSource{url: url, client: client}
}

// Key returns the public key for the given kid, refreshing the cached
// certificate set if it has expired or does not contain the kid (which
// happens right after the provider rotates keys).
func (c *CertSource) Key(ctx context.Context, kid string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().Before(c.expires) {
		if key, ok := c.keys[kid]; ok {
			return key, nil
		}
	}

	if err := c.refreshLocked(ctx); err != nil {
		return nil, err
	}

	key, ok := c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("identity: no certificate for key ID %q", kid)
	}
	return key, nil
}

// refreshLocked re-fetches the certificate set. Caller holds c.mu.
func (c *CertSource) refreshLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("identity: building certs request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("identity: fetching signing certs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity: certs endpoint returned status %d", resp.StatusCode)
	}

	var pemByKid map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&pemByKid); err != nil {
		return fmt.Errorf("identity: decoding certs response: %w", err)
	}

	keys := make(map[string]any, len(pemByKid))
	for kid, certPEM := range pemByKid {
		key, err := publicKeyFromCertPEM(certPEM)
		if err != nil {
			return fmt.Errorf("identity: parsing cert for kid %q: %w", kid, err)
		}
		keys[kid] = key
	}
	if len(keys) == 0 {
		return errors.New("identity: certs endpoint returned no keys")
	}

	c.keys = keys
	c.expires = time.Now().Add(certTTL(resp.Header.Get("Cache-Control")))
	return nil
}

func publicKeyFromCertPEM(certPEM string) (any, error) {
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}
	return cert.PublicKey, nil
}

// certTTL extracts max-age from a Cache-Control header value.
func certTTL(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		if v, ok := strings.CutPrefix(directive, "max-age="); ok {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return defaultCertTTL
}
