// Package service contains the business logic layer of the application.
//
//	Handler (HTTP)      → parses requests, writes responses
//	Service (this)      → validates, enforces rules, orchestrates
//	Repository (data)   → reads/writes the store
//
// AccountService is the reconciliation engine: it maps every incoming
// identity assertion — a verified provider token, a password registration,
// or a backfill entry — onto exactly one persistent user record, creating
// it if absent. Handlers never touch the store, and the service never
// touches HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/RahulSriwastaw/backend/internal/apperror"
	"github.com/RahulSriwastaw/backend/internal/identity"
	"github.com/RahulSriwastaw/backend/internal/metrics"
	"github.com/RahulSriwastaw/backend/internal/model"
	"github.com/RahulSriwastaw/backend/internal/repository"
)

// MinPasswordLength applies at registration only; existing hashes are
// grandfathered.
const MinPasswordLength = 6

// Overrides are caller-supplied profile fields that take precedence over
// the token's claims during reconciliation (the client may collect a
// fuller name or phone than the provider has).
type Overrides struct {
	FullName string
	Phone    string
}

// AuthResult bundles the user record and the issued session token so the
// handler can respond in one step.
type AuthResult struct {
	User      *model.User
	Token     string
	IsNewUser bool
}

// RegisterInput is the payload of a local registration. Password is
// optional — clients registering on behalf of a federated identity send
// the external UID instead.
type RegisterInput struct {
	Email       string
	Password    string
	FullName    string
	Phone       string
	PhotoURL    string
	ExternalUID string
}

// AccountService reconciles identities into user records and owns the
// password login path.
type AccountService struct {
	users     repository.UserRepository
	passwords *identity.PasswordService
	tokens    *identity.TokenService
	collector *metrics.Collector // nil-safe
	logger    *slog.Logger
}

// NewAccountService creates an AccountService with all dependencies.
// collector may be nil when metrics are not wired.
func NewAccountService(
	users repository.UserRepository,
	passwords *identity.PasswordService,
	tokens *identity.TokenService,
	collector *metrics.Collector,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		collector: collector,
		logger:    logger,
	}
}

// Reconcile maps verified claims onto exactly one user record and reports
// whether it created the record.
//
// The flow:
//
//  1. Normalize the claim email; no email is a validation failure — the
//     engine never invents one.
//  2. Dual-key OR lookup (provider UID, email). A hit takes the update
//     path: the record adopts the provider UID and email, refreshes
//     profile fields by precedence, and bumps last-active.
//  3. A miss takes the create path. If the INSERT loses a uniqueness race
//     against a concurrent first login, re-run the lookup once and fall
//     through to the update path; if even the re-lookup misses, the
//     duplicate-key error propagates.
//
// That create→conflict→re-read→update sequence is the only concurrency
// mechanism here. There is no lock: the store's unique constraints are
// atomic, so concurrent calls for the same identity converge on a single
// winning record.
func (s *AccountService) Reconcile(ctx context.Context, claims *identity.Claims, ov Overrides) (*model.User, bool, error) {
	if claims == nil {
		return nil, false, fmt.Errorf("service/account: claims must not be nil")
	}

	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return nil, false, fmt.Errorf("service/account: %w",
			apperror.ValidationFailed("email", "email is required from the identity token"))
	}

	user, err := s.users.FindByIdentityKeys(ctx, claims.ExternalUID, email)
	if err != nil {
		return nil, false, fmt.Errorf("service/account: looking up identity (uid=%s): %w", claims.ExternalUID, err)
	}

	if user != nil {
		if err := s.merge(ctx, user, claims, ov, email); err != nil {
			s.collector.RecordReconciliation(metrics.OutcomeFailed)
			return nil, false, err
		}
		s.collector.RecordReconciliation(metrics.OutcomeMerged)
		return user, false, nil
	}

	draft := s.draftFromClaims(claims, ov, email)
	err = s.users.Create(ctx, draft)
	if err == nil {
		s.collector.RecordReconciliation(metrics.OutcomeCreated)
		s.logger.Info("user created by reconciliation",
			slog.String("userID", draft.ID),
			slog.String("externalUID", draft.ExternalUID),
		)
		return draft, true, nil
	}

	if !errors.Is(err, apperror.ErrConflict) {
		s.collector.RecordReconciliation(metrics.OutcomeFailed)
		return nil, false, fmt.Errorf("service/account: creating user (uid=%s): %w", claims.ExternalUID, err)
	}

	// Lost a create race. The winning record must now be visible through
	// the same lookup; merge into it exactly once.
	user, lookupErr := s.users.FindByIdentityKeys(ctx, claims.ExternalUID, email)
	if lookupErr != nil {
		s.collector.RecordReconciliation(metrics.OutcomeFailed)
		return nil, false, fmt.Errorf("service/account: re-reading after duplicate key: %w", lookupErr)
	}
	if user == nil {
		// The conflict was not ours to recover (e.g. a username collision
		// with an unrelated identity). Surface the duplicate.
		s.collector.RecordReconciliation(metrics.OutcomeFailed)
		return nil, false, fmt.Errorf("service/account: creating user (uid=%s): %w", claims.ExternalUID, err)
	}

	s.logger.Info("create race converged to existing record",
		slog.String("userID", user.ID),
		slog.String("field", apperror.ConflictField(err)),
	)
	if err := s.merge(ctx, user, claims, ov, email); err != nil {
		s.collector.RecordReconciliation(metrics.OutcomeFailed)
		return nil, false, err
	}
	s.collector.RecordReconciliation(metrics.OutcomeMerged)
	return user, false, nil
}

// merge applies the update-path field precedence to an existing record and
// persists it.
//
// What merge never touches: PointsBalance (set once at creation),
// PasswordHash (a federated login must not erase a password account's
// credential), TotalGenerations, Role, Status.
func (s *AccountService) merge(ctx context.Context, user *model.User, claims *identity.Claims, ov Overrides, email string) error {
	// Adopt or repair the provider link. Empty claims (a password
	// registration routed here) must not sever an existing link.
	if claims.ExternalUID != "" {
		user.ExternalUID = claims.ExternalUID
	}

	// Once linked, the federated identity is authoritative for email.
	user.Email = email

	switch {
	case ov.FullName != "":
		user.FullName = ov.FullName
	case claims.DisplayName != "":
		user.FullName = claims.DisplayName
	}

	user.LastActive = time.Now().UTC()

	// Only write a photo that is present and actually new.
	if claims.PhotoURL != "" && claims.PhotoURL != user.ProfileImage {
		user.ProfileImage = claims.PhotoURL
	}

	phone := ov.Phone
	if phone == "" {
		phone = claims.PhoneNumber
	}
	if phone != "" && phone != user.Phone {
		user.Phone = phone
	}

	// Verification is monotonic: claims can grant it, never revoke it.
	if claims.EmailVerified && !user.IsVerified {
		user.IsVerified = true
	}

	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("service/account: updating user %s: %w", user.ID, err)
	}

	return nil
}

// draftFromClaims builds the create-path record.
func (s *AccountService) draftFromClaims(claims *identity.Claims, ov Overrides, email string) *model.User {
	fullName := ov.FullName
	if fullName == "" {
		fullName = claims.DisplayName
	}
	if fullName == "" {
		fullName = localPart(email)
	}

	phone := ov.Phone
	if phone == "" {
		phone = claims.PhoneNumber
	}

	now := time.Now().UTC()
	return &model.User{
		ExternalUID:   claims.ExternalUID,
		Email:         email,
		Username:      deriveUsername(email),
		FullName:      fullName,
		Phone:         phone,
		ProfileImage:  claims.PhotoURL,
		Role:          model.RoleUser,
		IsCreator:     false,
		IsVerified:    claims.EmailVerified,
		PointsBalance: model.WelcomePointsGrant,
		Status:        model.StatusActive,
		LastActive:    now,
		MemberSince:   now,
	}
}

// FederatedLogin reconciles verified claims and issues a session token.
func (s *AccountService) FederatedLogin(ctx context.Context, claims *identity.Claims, ov Overrides) (*AuthResult, error) {
	user, isNew, err := s.Reconcile(ctx, claims, ov)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token, IsNewUser: isNew}, nil
}

// Register handles local registration.
//
// If the email (or supplied external UID) already belongs to a record, the
// call is routed through the update path and reports IsNewUser=false —
// re-registration returns the merged record rather than a rejection,
// matching how clients use this endpoint after a provider-side login.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("service/account: %w",
			apperror.ValidationFailed("email", "a valid email is required"))
	}
	if in.FullName == "" {
		return nil, fmt.Errorf("service/account: %w",
			apperror.ValidationFailed("fullName", "full name is required"))
	}
	if in.Password != "" && len(in.Password) < MinPasswordLength {
		return nil, fmt.Errorf("service/account: %w",
			apperror.ValidationFailed("password",
				fmt.Sprintf("password must be at least %d characters", MinPasswordLength)))
	}

	// Registration is reconciliation with locally-sourced claims: the
	// dual-key lookup and the race handling behave identically whether
	// the identity assertion arrived in a token or a request body.
	claims := &identity.Claims{
		ExternalUID: in.ExternalUID,
		Email:       email,
		PhotoURL:    in.PhotoURL,
	}

	user, isNew, err := s.Reconcile(ctx, claims, Overrides{FullName: in.FullName, Phone: in.Phone})
	if err != nil {
		return nil, err
	}

	if isNew && in.Password != "" {
		hash, err := s.passwords.Hash(in.Password)
		if err != nil {
			return nil, fmt.Errorf("service/account: %w", err)
		}
		user.PasswordHash = hash
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("service/account: storing password hash for %s: %w", user.ID, err)
		}
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("registration reconciled",
		slog.String("userID", user.ID),
		slog.Bool("isNewUser", isNew),
	)

	return &AuthResult{User: user, Token: token, IsNewUser: isNew}, nil
}

// Login is the local password path: email-only lookup, bcrypt compare,
// last-active bump.
//
// The same apperror.Unauthorized with the same message covers "no such
// user", "federated-only account", and "wrong password" — response shape
// and kind must not reveal which addresses have accounts.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	invalid := func() (*AuthResult, error) {
		s.collector.RecordLogin(false)
		return nil, fmt.Errorf("service/account: %w", apperror.Unauthorized("invalid credentials"))
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return invalid()
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("service/account: looking up login email: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return invalid()
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return invalid()
	}

	user.LastActive = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/account: bumping last active for %s: %w", user.ID, err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: generating token for user %s: %w", user.ID, err)
	}

	s.collector.RecordLogin(true)
	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID. Used by /api/me
// after the middleware extracts the subject from the session token.
func (s *AccountService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/account: user ID must not be empty")
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/account: fetching user %s: %w", id, err)
	}

	return user, nil
}

// deriveUsername builds a deterministic-but-collision-resistant username
// from the email local-part plus a time-derived fragment, e.g.
// "rahul_847291". A true collision still surfaces as a duplicate-key
// error from the store; this only has to avoid colliding under reasonable
// concurrent creation load.
func deriveUsername(email string) string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return localPart(email) + "_" + ts[len(ts)-6:]
}

func localPart(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return "user"
	}
	return local
}
