// Package provider is the client for the external identity provider's
// admin API: the full-user-list endpoint that drives bulk backfill, and
// the per-user endpoint that carries the token-revocation watermark.
//
// The admin API is a server-to-server surface. We authenticate with OAuth2
// client credentials — the token source transparently fetches and refreshes
// the access token, and the returned *http.Client attaches it to every
// request.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/RahulSriwastaw/backend/internal/identity"
)

// DefaultPageSize is the maximum identities requested per list page.
// The provider caps pages at 1000; asking for more is silently clamped.
const DefaultPageSize = 1000

// User is one identity as the provider's admin API reports it.
type User struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	PhotoURL      string `json:"photoUrl"`
	EmailVerified bool   `json:"emailVerified"`
	PhoneNumber   string `json:"phoneNumber"`
	// ValidSince is the revocation watermark in unix seconds: tokens
	// issued before it are revoked. Zero means never revoked.
	ValidSince int64 `json:"validSince"`
}

// Claims converts a listed identity into the claim set the reconciliation
// engine consumes. Backfill entries never carry caller overrides, so this
// is a straight field mapping.
func (u *User) Claims() *identity.Claims {
	return &identity.Claims{
		ExternalUID:   u.UID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
		EmailVerified: u.EmailVerified,
		PhoneNumber:   u.PhoneNumber,
	}
}

// UserPage is one page of the provider's full identity list. NextPageToken
// is opaque; an empty token means the listing is exhausted.
type UserPage struct {
	Users         []User `json:"users"`
	NextPageToken string `json:"nextPageToken"`
}

// Client talks to the provider admin API.
type Client struct {
	baseURL  string
	http     *http.Client
	pageSize int
}

// NewClient builds a Client authenticating with the given client
// credentials. creds.TokenURL points at the provider's token endpoint.
func NewClient(baseURL string, creds *clientcredentials.Config) *Client {
	return &Client{
		baseURL:  baseURL,
		http:     creds.Client(context.Background()),
		pageSize: DefaultPageSize,
	}
}

// NewClientWithHTTP builds a Client over a pre-built *http.Client.
// Used by tests and by deployments that terminate auth elsewhere.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient, pageSize: DefaultPageSize}
}

// ListUsers fetches one page of the provider's identity list. Pass "" for
// the first page; pass the previous response's NextPageToken afterwards.
func (c *Client) ListUsers(ctx context.Context, pageToken string) (*UserPage, error) {
	q := url.Values{}
	q.Set("maxResults", strconv.Itoa(c.pageSize))
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	var page UserPage
	if err := c.getJSON(ctx, "/v1/accounts?"+q.Encode(), &page); err != nil {
		return nil, fmt.Errorf("provider: listing users (pageToken=%q): %w", pageToken, err)
	}
	return &page, nil
}

// GetUser fetches a single identity by provider UID.
func (c *Client) GetUser(ctx context.Context, uid string) (*User, error) {
	if uid == "" {
		return nil, fmt.Errorf("provider: uid must not be empty")
	}

	var user User
	if err := c.getJSON(ctx, "/v1/accounts/"+url.PathEscape(uid), &user); err != nil {
		return nil, fmt.Errorf("provider: getting user %s: %w", uid, err)
	}
	return &user, nil
}

// TokensValidAfter implements identity.WatermarkSource so the verifier can
// run revocation checks against live provider state.
func (c *Client) TokensValidAfter(ctx context.Context, uid string) (time.Time, error) {
	user, err := c.GetUser(ctx, uid)
	if err != nil {
		return time.Time{}, err
	}
	if user.ValidSince == 0 {
		return time.Time{}, nil
	}
	return time.Unix(user.ValidSince, 0), nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling admin API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("admin API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding admin API response: %w", err)
	}
	return nil
}
