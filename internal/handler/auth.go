package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/RahulSriwastaw/backend/internal/identity"
	"github.com/RahulSriwastaw/backend/internal/model"
	"github.com/RahulSriwastaw/backend/internal/service"
)

// AuthHandler owns the account endpoints.
//
//   - HandleRegister       → local registration (password optional)
//   - HandleLogin          → email + password login
//   - HandleFederatedLogin → verify a provider ID token, reconcile, issue session
//   - HandleSync           → same flow as federated login; kept as a separate
//     route because clients call it after profile edits
//   - HandleSyncAll        → bulk backfill of the provider directory (admin)
//   - HandleMe             → current user's profile
type AuthHandler struct {
	verifier TokenVerifier
	accounts *service.AccountService
	backfill *service.BackfillService
	logger   *slog.Logger
}

// TokenVerifier checks a provider ID token and returns its claims.
// *identity.Verifier implements it; tests substitute a fake.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*identity.Claims, error)
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(
	verifier TokenVerifier,
	accounts *service.AccountService,
	backfill *service.BackfillService,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		verifier: verifier,
		accounts: accounts,
		backfill: backfill,
		logger:   logger,
	}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"fullName"`
	Phone       string `json:"phone"`
	PhotoURL    string `json:"photoURL"`
	ExternalUID string `json:"externalUid"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type federatedLoginRequest struct {
	IDToken  string `json:"idToken"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
}

// authResponse is the body of every endpoint that establishes a session.
type authResponse struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	IsNewUser bool        `json:"isNewUser"`
}

// HandleRegister creates or refreshes an account from a registration form.
//
// HTTP: POST /api/auth/register
//
// A request for an email that already has an account is not an error: it
// merges into the existing record and answers 200, where a fresh account
// answers 201. Clients re-submit this form after provider-side logins and
// must not see a conflict for their own account.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	result, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FullName:    req.FullName,
		Phone:       req.Phone,
		PhotoURL:    req.PhotoURL,
		ExternalUID: req.ExternalUID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if result.IsNewUser {
		status = http.StatusCreated
	}
	writeJSON(w, status, authResponse{
		User:      result.User,
		Token:     result.Token,
		IsNewUser: result.IsNewUser,
	})
}

// HandleLogin authenticates with email and password.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		User:  result.User,
		Token: result.Token,
	})
}

// HandleFederatedLogin verifies a provider ID token, reconciles the
// identity into the store, and issues a session token.
//
// HTTP: POST /api/auth/federated-login
//
// 201 when the reconciliation created the account, 200 when it merged into
// an existing one.
func (h *AuthHandler) HandleFederatedLogin(w http.ResponseWriter, r *http.Request) {
	h.federatedFlow(w, r)
}

// HandleSync re-runs reconciliation for the caller's provider token.
//
// HTTP: POST /api/auth/sync
//
// Identical semantics to federated login. Kept as its own route because
// clients call it to push profile changes (name, phone) after the fact.
func (h *AuthHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	h.federatedFlow(w, r)
}

func (h *AuthHandler) federatedFlow(w http.ResponseWriter, r *http.Request) {
	var req federatedLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}
	if req.IDToken == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "idToken is required",
		})
		return
	}

	claims, err := h.verifier.Verify(r.Context(), req.IDToken)
	if err != nil {
		h.writeTokenError(w, err)
		return
	}

	result, err := h.accounts.FederatedLogin(r.Context(), claims, service.Overrides{
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if result.IsNewUser {
		status = http.StatusCreated
	}
	writeJSON(w, status, authResponse{
		User:      result.User,
		Token:     result.Token,
		IsNewUser: result.IsNewUser,
	})
}

// writeTokenError maps verifier failures to 401. Expiry and revocation get
// distinct machine-readable types so clients know to refresh versus
// re-authenticate; everything else collapses to a generic invalid token.
func (h *AuthHandler) writeTokenError(w http.ResponseWriter, err error) {
	errorType := "invalid_token"
	message := "identity token is invalid"
	switch {
	case errors.Is(err, identity.ErrExpiredToken):
		errorType = "token_expired"
		message = "identity token has expired"
	case errors.Is(err, identity.ErrRevokedToken):
		errorType = "token_revoked"
		message = "identity token has been revoked"
	}

	h.logger.Info("identity token rejected", slog.String("reason", errorType))
	writeJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:   errorType,
		Message: message,
	})
}

// HandleSyncAll backfills every provider account into the store.
//
// HTTP: POST /api/auth/sync-all
// Auth: required, super_admin only
//
// Always answers 200 when the run completes, even with per-entry failures;
// the body carries the counts and a bounded error list.
func (h *AuthHandler) HandleSyncAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "authentication required",
		})
		return
	}

	caller, err := h.accounts.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if caller.Role != model.RoleSuperAdmin {
		writeJSON(w, http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "super admin role required",
		})
		return
	}

	result, err := h.backfill.SyncAll(r.Context())
	if err != nil {
		h.logger.Error("backfill run aborted", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/auth/me
// Auth: Required (RequireAuth middleware sets userID in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	// Auth middleware has already validated the session token, so the
	// lookup should always succeed on this route.
	userID, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "authentication required",
		})
		return
	}

	user, err := h.accounts.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("me lookup failed", slog.String("userID", userID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
