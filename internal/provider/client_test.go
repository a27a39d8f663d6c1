package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestListUsers_Pagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		switch r.URL.Query().Get("pageToken") {
		case "":
			json.NewEncoder(w).Encode(UserPage{
				Users:         []User{{UID: "u1", Email: "a@x.com"}, {UID: "u2", Email: "b@x.com"}},
				NextPageToken: "tok-2",
			})
		case "tok-2":
			json.NewEncoder(w).Encode(UserPage{
				Users: []User{{UID: "u3"}},
			})
		default:
			t.Errorf("unexpected pageToken %q", r.URL.Query().Get("pageToken"))
		}
	}))
	defer srv.Close()

	c := NewClientWithHTTP(srv.URL, srv.Client())

	page1, err := c.ListUsers(context.Background(), "")
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(page1.Users) != 2 || page1.NextPageToken != "tok-2" {
		t.Errorf("page1 = %+v, want 2 users and token tok-2", page1)
	}

	page2, err := c.ListUsers(context.Background(), page1.NextPageToken)
	if err != nil {
		t.Fatalf("ListUsers(tok-2) error = %v", err)
	}
	if len(page2.Users) != 1 || page2.NextPageToken != "" {
		t.Errorf("page2 = %+v, want 1 user and empty token", page2)
	}
}

func TestGetUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts/uid-9" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(User{
			UID:        "uid-9",
			Email:      "nine@x.com",
			ValidSince: 1700000000,
		})
	}))
	defer srv.Close()

	c := NewClientWithHTTP(srv.URL, srv.Client())

	user, err := c.GetUser(context.Background(), "uid-9")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user.Email != "nine@x.com" {
		t.Errorf("Email = %q, want %q", user.Email, "nine@x.com")
	}

	wm, err := c.TokensValidAfter(context.Background(), "uid-9")
	if err != nil {
		t.Fatalf("TokensValidAfter() error = %v", err)
	}
	if !wm.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("TokensValidAfter() = %v, want %v", wm, time.Unix(1700000000, 0))
	}
}

func TestGetUser_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClientWithHTTP(srv.URL, srv.Client())

	if _, err := c.GetUser(context.Background(), "uid-9"); err == nil {
		t.Error("GetUser() should fail on a non-200 response")
	}
}

func TestUserClaims_Mapping(t *testing.T) {
	u := &User{
		UID:           "uid-1",
		Email:         "a@x.com",
		DisplayName:   "Aye",
		PhotoURL:      "https://example.com/a.png",
		EmailVerified: true,
		PhoneNumber:   "+15550001",
	}

	claims := u.Claims()
	if claims.ExternalUID != "uid-1" || claims.Email != "a@x.com" ||
		claims.DisplayName != "Aye" || !claims.EmailVerified ||
		claims.PhotoURL != "https://example.com/a.png" || claims.PhoneNumber != "+15550001" {
		t.Errorf("Claims() = %+v, fields not mapped faithfully", claims)
	}
}
