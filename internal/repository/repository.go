// Package repository declares the storage interfaces the service layer
// programs against. The sqlite subpackage implements them; tests use
// in-memory fakes.
package repository

import (
	"context"

	"github.com/RahulSriwastaw/backend/internal/model"
)

// UserRepository is the user record store.
//
// Lookup conventions: FindByIdentityKeys and FindByEmail return (nil, nil)
// when no record matches — absence there is the normal create path, not an
// error. FindByID returns apperror.NotFound, since a dangling internal ID
// is exceptional.
//
// Create surfaces a uniqueness race as apperror.DuplicateKey(field) so the
// caller can retry as an update; it must never be swallowed.
type UserRepository interface {
	// FindByIdentityKeys matches if EITHER unique key matches an existing
	// record: the provider UID (ignored when empty) or the lower-cased
	// email. This dual-key OR lookup is what lets a password-registered
	// user later log in federated with the same email and end up with one
	// record instead of two.
	FindByIdentityKeys(ctx context.Context, externalUID, email string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	// Update is a full-record save; no partial-patch semantics.
	Update(ctx context.Context, user *model.User) error
	// Ping reports whether the store is reachable. Callers that need a
	// health answer ask for one; nobody consults a module-level
	// "connected" flag.
	Ping(ctx context.Context) error
}

// TemplateRepository serves the read-only template catalog.
type TemplateRepository interface {
	ListApproved(ctx context.Context) ([]model.Template, error)
	GetByID(ctx context.Context, id string) (*model.Template, error)
}
