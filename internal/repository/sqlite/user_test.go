package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/RahulSriwastaw/backend/internal/apperror"
	"github.com/RahulSriwastaw/backend/internal/model"
)

// createTestUser inserts a user and fails the test on error.
func createTestUser(t *testing.T, db *DB, email, externalUID, username string) *model.User {
	t.Helper()
	user := &model.User{
		ExternalUID:   externalUID,
		Email:         email,
		Username:      username,
		FullName:      "Test " + username,
		Role:          model.RoleUser,
		Status:        model.StatusActive,
		PointsBalance: model.WelcomePointsGrant,
	}
	if err := db.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user %s: %v", email, err)
	}
	return user
}

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		Email:    "Test@Example.com",
		Username: "test_123456",
		Role:     model.RoleUser,
		Status:   model.StatusActive,
	}
	if err := db.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}
	if user.MemberSince.IsZero() {
		t.Error("Create() did not set user.MemberSince")
	}
	if user.Email != "test@example.com" {
		t.Errorf("Create() stored email %q, want lower-cased", user.Email)
	}
}

func TestUserCreate_DuplicateEmailCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "dupe@example.com", "", "first_user")

	duplicate := &model.User{
		Email:    "DUPE@example.com", // same address, different case
		Username: "second_user",
	}
	err := db.Create(context.Background(), duplicate)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Create() error = %v, want ErrConflict", err)
	}
	if field := apperror.ConflictField(err); field != "email" {
		t.Errorf("ConflictField() = %q, want %q", field, "email")
	}
}

func TestUserCreate_DuplicateExternalUID(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "a@example.com", "uid-1", "user_a")

	duplicate := &model.User{
		Email:       "b@example.com",
		ExternalUID: "uid-1",
		Username:    "user_b",
	}
	err := db.Create(context.Background(), duplicate)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Create() error = %v, want ErrConflict", err)
	}
	if field := apperror.ConflictField(err); field != "external_uid" {
		t.Errorf("ConflictField() = %q, want %q", field, "external_uid")
	}
}

func TestUserCreate_UnlinkedAccountsDontCollide(t *testing.T) {
	db := newTestDB(t)

	// Empty external UID is stored as NULL, so the unique index must not
	// treat two password-only accounts as duplicates.
	createTestUser(t, db, "one@example.com", "", "user_one")
	createTestUser(t, db, "two@example.com", "", "user_two")
}

func TestFindByIdentityKeys(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "match@example.com", "uid-42", "match_user")

	tests := []struct {
		name        string
		externalUID string
		email       string
		wantHit     bool
	}{
		{"by external uid", "uid-42", "other@example.com", true},
		{"by email", "uid-unknown", "match@example.com", true},
		{"by email different case", "", "MATCH@EXAMPLE.COM", true},
		{"by both", "uid-42", "match@example.com", true},
		{"neither", "uid-unknown", "nobody@example.com", false},
		{"empty uid must not match unlinked rows", "", "nobody@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.FindByIdentityKeys(context.Background(), tt.externalUID, tt.email)
			if err != nil {
				t.Fatalf("FindByIdentityKeys() error = %v", err)
			}
			if !tt.wantHit {
				if got != nil {
					t.Fatalf("FindByIdentityKeys() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("FindByIdentityKeys() = nil, want a record")
			}
			if got.ID != created.ID {
				t.Errorf("FindByIdentityKeys() ID = %q, want %q", got.ID, created.ID)
			}
		})
	}
}

func TestFindByIdentityKeys_EmptyUIDAgainstUnlinkedRow(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "pw-only@example.com", "", "pw_user")

	// A lookup with an empty UID must match only on email — never on the
	// shared "no UID" value.
	got, err := db.FindByIdentityKeys(context.Background(), "", "someone-else@example.com")
	if err != nil {
		t.Fatalf("FindByIdentityKeys() error = %v", err)
	}
	if got != nil {
		t.Errorf("FindByIdentityKeys() matched an unrelated unlinked row: %+v", got)
	}
}

func TestFindByEmail(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "mail@example.com", "uid-7", "mail_user")

	got, err := db.FindByEmail(context.Background(), "Mail@Example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if got == nil || got.ID != created.ID {
		t.Fatalf("FindByEmail() = %+v, want record %s", got, created.ID)
	}

	miss, err := db.FindByEmail(context.Background(), "absent@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if miss != nil {
		t.Errorf("FindByEmail() for absent address = %+v, want nil", miss)
	}
}

func TestFindByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.FindByID(context.Background(), "no-such-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FindByID() error = %v, want ErrNotFound", err)
	}
}

func TestUserUpdate_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "update@example.com", "", "update_user")

	user.ExternalUID = "uid-linked"
	user.FullName = "Updated Name"
	user.IsVerified = true
	user.PasswordHash = "$2a$04$somethingsomething"
	if err := db.Update(context.Background(), user); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := db.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.ExternalUID != "uid-linked" {
		t.Errorf("ExternalUID = %q, want %q", got.ExternalUID, "uid-linked")
	}
	if got.FullName != "Updated Name" {
		t.Errorf("FullName = %q, want %q", got.FullName, "Updated Name")
	}
	if !got.IsVerified {
		t.Error("IsVerified should persist as true")
	}
	if got.PasswordHash == "" {
		t.Error("PasswordHash should persist")
	}
}

func TestUserUpdate_MissingRecord(t *testing.T) {
	db := newTestDB(t)

	ghost := &model.User{ID: "ghost", Email: "ghost@example.com", Username: "ghost"}
	if err := db.Update(context.Background(), ghost); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestUserUpdate_EmailConflict(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "taken@example.com", "", "taken_user")
	user := createTestUser(t, db, "free@example.com", "", "free_user")

	user.Email = "taken@example.com"
	if err := db.Update(context.Background(), user); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Update() error = %v, want ErrConflict", err)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
