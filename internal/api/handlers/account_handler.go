package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/ender-accounts/internal/auth"
	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/isdelr/ender-accounts/internal/services"
	"github.com/rs/zerolog/log"
)

// AccountHandler handles HTTP requests for account management.
type AccountHandler struct {
	service         services.AccountServiceProvider
	issuer          *auth.TokenIssuer
	defaultPageSize int
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(service services.AccountServiceProvider, issuer *auth.TokenIssuer, defaultPageSize int) *AccountHandler {
	if defaultPageSize <= 0 {
		defaultPageSize = 10
	}
	return &AccountHandler{service: service, issuer: issuer, defaultPageSize: defaultPageSize}
}

// SignUpPayload defines the structure for signup requests. There is no role
// field: every signup creates a standard account.
type SignUpPayload struct {
	LoginName   string `json:"loginName" validate:"required,max=64"`
	Password    string `json:"password" validate:"required,max=72"`
	DisplayName string `json:"displayName" validate:"max=128"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"omitempty,max=32"`
}

// LoginPayload defines the structure for login requests.
type LoginPayload struct {
	LoginName string `json:"loginName" validate:"required"`
	Password  string `json:"password" validate:"required"`
}

// UpdatePasswordPayload defines the structure for password change requests.
type UpdatePasswordPayload struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,max=72"`
}

// UpdateProfilePayload only has slots for profile fields; anything else in
// the body (role, loginName, id) is dropped by the decoder.
type UpdateProfilePayload struct {
	DisplayName *string `json:"displayName" validate:"omitempty,max=128"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Phone       *string `json:"phone" validate:"omitempty,max=32"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Token   string         `json:"token"`
	Account models.Account `json:"account"`
}

// SignUp handles new account registration.
func (h *AccountHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var payload SignUpPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := ValidateRequest(payload); errs != nil {
		respondWithValidationError(w, errs)
		return
	}

	p := auth.PrincipalFromContext(r.Context())
	account, err := h.service.SignUp(r.Context(), p, payload.LoginName, payload.Password, models.Profile{
		DisplayName: payload.DisplayName,
		Email:       payload.Email,
		Phone:       payload.Phone,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to sign up")
		return
	}

	h.respondWithToken(w, r, http.StatusCreated, account)
}

// Login handles authentication and JWT generation.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := ValidateRequest(payload); errs != nil {
		respondWithValidationError(w, errs)
		return
	}

	account, err := h.service.Login(r.Context(), payload.LoginName, payload.Password)
	if err != nil {
		respondWithServiceError(w, err, "Failed to log in")
		return
	}

	h.respondWithToken(w, r, http.StatusOK, account)
}

func (h *AccountHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, account models.Account) {
	token, err := h.issuer.GenerateJWT(account)
	if err != nil {
		log.Error().Err(err).Str("account_id", account.ID).Msg("Failed to generate JWT")
		respondWithError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Expires:  time.Now().Add(h.issuer.TTL()),
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})

	respondJSON(w, status, AuthResponse{Token: token, Account: account.Sanitized()})
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

// GetMe retrieves the account of the calling principal.
func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	account, err := h.service.GetByID(r.Context(), p, p.ID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get current account")
		return
	}
	respondJSON(w, http.StatusOK, account)
}

// Get handles retrieving an account by its ID.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	account, err := h.service.GetByID(r.Context(), auth.PrincipalFromContext(r.Context()), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get account")
		return
	}
	respondJSON(w, http.StatusOK, account)
}

// List handles the paginated account listing.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(w, r, "page", 1)
	if !ok {
		return
	}
	pageSize, ok := queryInt(w, r, "pageSize", h.defaultPageSize)
	if !ok {
		return
	}

	result, err := h.service.ListAll(r.Context(), auth.PrincipalFromContext(r.Context()), page, pageSize)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list accounts")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// NumPages reports pagination metadata for the account listing.
func (h *AccountHandler) NumPages(w http.ResponseWriter, r *http.Request) {
	pageSize, ok := queryInt(w, r, "pageSize", h.defaultPageSize)
	if !ok {
		return
	}

	info, err := h.service.PaginationMetadata(r.Context(), auth.PrincipalFromContext(r.Context()), pageSize)
	if err != nil {
		respondWithServiceError(w, err, "Failed to compute pagination metadata")
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// UpdatePassword handles changing an account's password.
func (h *AccountHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var payload UpdatePasswordPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := ValidateRequest(payload); errs != nil {
		respondWithValidationError(w, errs)
		return
	}

	p := auth.PrincipalFromContext(r.Context())
	if err := h.service.UpdatePassword(r.Context(), p, id, payload.CurrentPassword, payload.NewPassword); err != nil {
		respondWithServiceError(w, err, "Failed to change password")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

// UpdateProfile handles updating an account's profile information.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var payload UpdateProfilePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := ValidateRequest(payload); errs != nil {
		respondWithValidationError(w, errs)
		return
	}

	patch := models.ProfilePatch{
		DisplayName: payload.DisplayName,
		Email:       payload.Email,
		Phone:       payload.Phone,
	}
	account, err := h.service.UpdateProfile(r.Context(), auth.PrincipalFromContext(r.Context()), id, patch)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update profile")
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func queryInt(w http.ResponseWriter, r *http.Request, key string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Query parameter "+key+" must be an integer")
		return 0, false
	}
	return n, true
}
