package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// TABLE-DRIVEN TESTS:
// One slice of cases, one assertion loop. Every case gets a name that shows
// up in test output, and adding a case is adding one struct literal.

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("user", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("email", "email is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "DuplicateKey wraps ErrConflict",
			err:       DuplicateKey("email"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("invalid credentials"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "Unavailable wraps ErrUnavailable",
			err:       Unavailable("database not reachable"),
			target:    ErrUnavailable,
			wantMatch: true,
		},
		{
			name:      "DuplicateKey does not match ErrNotFound",
			err:       DuplicateKey("email"),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorsIs_ThroughWrapping(t *testing.T) {
	// Services wrap repository errors with fmt.Errorf("...: %w", err).
	// errors.Is must still see the sentinel through the extra layer.
	wrapped := fmt.Errorf("creating user: %w", DuplicateKey("external_uid"))

	if !errors.Is(wrapped, ErrConflict) {
		t.Error("errors.Is should match ErrConflict through fmt.Errorf wrapping")
	}
}

func TestConflictField(t *testing.T) {
	wrapped := fmt.Errorf("creating user: %w", DuplicateKey("username"))

	if got := ConflictField(wrapped); got != "username" {
		t.Errorf("ConflictField() = %q, want %q", got, "username")
	}
	if got := ConflictField(NotFound("user", "x")); got != "" {
		t.Errorf("ConflictField() on non-conflict = %q, want empty", got)
	}
}

func TestAppErrorMessage(t *testing.T) {
	err := DuplicateKey("email")
	want := "user with this email already exists"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
