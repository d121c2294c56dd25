package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/isdelr/ender-accounts/internal/policy"
	"github.com/isdelr/ender-accounts/internal/store"
	"github.com/rs/zerolog/log"
)

// CredentialCodec hashes and verifies secrets.
type CredentialCodec interface {
	Hash(secret []byte) (string, error)
	Verify(secret []byte, hash string) (bool, error)
}

// Authorizer decides whether a principal may perform an operation.
type Authorizer interface {
	Authorize(p models.Principal, op policy.Operation, targetID string) policy.Decision
}

// AccountCache is an optional read-through cache of sanitized accounts.
type AccountCache interface {
	Get(ctx context.Context, id string) (*models.Account, bool)
	Set(ctx context.Context, account *models.Account)
	Delete(ctx context.Context, id string)
}

// AuditRecorder records audit events.
type AuditRecorder interface {
	Record(ctx context.Context, eventType, level, message string, accountID *string) error
}

// Page is one slice of the account listing.
type Page struct {
	Accounts      []models.Account `json:"accounts"`
	Page          int              `json:"page"`
	PageSize      int              `json:"pageSize"`
	TotalPages    int              `json:"totalPages"`
	TotalAccounts int              `json:"totalAccounts"`
}

// PageInfo describes the pagination of the account listing.
type PageInfo struct {
	PageSize      int `json:"pageSize"`
	TotalPages    int `json:"totalPages"`
	TotalAccounts int `json:"totalAccounts"`
}

// AccountServiceProvider defines the interface for account services.
type AccountServiceProvider interface {
	Authorize(p models.Principal, op policy.Operation, targetID string) policy.Decision
	SignUp(ctx context.Context, p models.Principal, loginName, secret string, profile models.Profile) (models.Account, error)
	Login(ctx context.Context, loginName, secret string) (models.Account, error)
	GetByID(ctx context.Context, p models.Principal, id string) (models.Account, error)
	ListAll(ctx context.Context, p models.Principal, page, pageSize int) (Page, error)
	PaginationMetadata(ctx context.Context, p models.Principal, pageSize int) (PageInfo, error)
	UpdatePassword(ctx context.Context, p models.Principal, targetID, oldSecret, newSecret string) error
	UpdateProfile(ctx context.Context, p models.Principal, targetID string, patch models.ProfilePatch) (models.Account, error)
}

// AccountService implements the account lifecycle on top of a store.
type AccountService struct {
	store       store.AccountStore
	codec       CredentialCodec
	authz       Authorizer
	audit       AuditRecorder
	cache       AccountCache
	maxPageSize int
	now         func() time.Time

	decoyOnce sync.Once
	decoyHash string
}

// NewAccountService creates a new AccountService. audit and cache may be nil;
// a non-positive maxPageSize disables the upper bound on page sizes.
func NewAccountService(st store.AccountStore, codec CredentialCodec, authz Authorizer, audit AuditRecorder, cache AccountCache, maxPageSize int) *AccountService {
	return &AccountService{
		store:       st,
		codec:       codec,
		authz:       authz,
		audit:       audit,
		cache:       cache,
		maxPageSize: maxPageSize,
		now:         time.Now,
	}
}

// NormalizeLogin trims and lower-cases a login name.
func NormalizeLogin(loginName string) string {
	return strings.ToLower(strings.TrimSpace(loginName))
}

// Authorize exposes the policy decision to callers that gate operations themselves.
func (s *AccountService) Authorize(p models.Principal, op policy.Operation, targetID string) policy.Decision {
	return s.authz.Authorize(p, op, targetID)
}

func (s *AccountService) authorize(ctx context.Context, p models.Principal, op policy.Operation, targetID string) error {
	d := s.authz.Authorize(p, op, targetID)
	if d.Allowed {
		return nil
	}
	log.Warn().Str("operation", string(op)).Str("principal_id", p.ID).Str("target_id", targetID).
		Str("reason", string(d.Reason)).Msg("Access denied")
	var actor *string
	if !p.IsAnonymous() {
		actor = &p.ID
	}
	s.record(ctx, EventAccessDenied, LevelWarn, fmt.Sprintf("%s denied: %s", op, d.Reason), actor)
	return &ForbiddenError{Operation: op, Reason: d.Reason}
}

// SignUp creates a standard account. The role is never taken from the caller.
func (s *AccountService) SignUp(ctx context.Context, p models.Principal, loginName, secret string, profile models.Profile) (models.Account, error) {
	if err := s.authorize(ctx, p, policy.OpSignUp, ""); err != nil {
		return models.Account{}, err
	}
	return s.create(ctx, loginName, secret, profile, models.RoleStandard)
}

// EnsureManager creates a manager account unless the login already exists.
// It is the only path that assigns a non-default role and is reserved for
// process bootstrap.
func (s *AccountService) EnsureManager(ctx context.Context, loginName, secret string) (models.Account, error) {
	existing, err := s.store.FindByLogin(ctx, NormalizeLogin(loginName))
	if err == nil {
		if existing.Role != models.RoleManager {
			log.Warn().Str("account_id", existing.ID).Msg("Bootstrap login exists without manager role; leaving it unchanged")
		}
		return existing.Sanitized(), nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.Account{}, err
	}
	return s.create(ctx, loginName, secret, models.Profile{}, models.RoleManager)
}

func (s *AccountService) create(ctx context.Context, loginName, secret string, profile models.Profile, role models.Role) (models.Account, error) {
	login := NormalizeLogin(loginName)
	if login == "" || secret == "" {
		return models.Account{}, fmt.Errorf("%w: login name and secret are required", ErrInvalidArgument)
	}

	hash, err := s.codec.Hash([]byte(secret))
	if err != nil {
		return models.Account{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	now := s.now().UTC()
	account := models.Account{
		ID:             newAccountID(),
		LoginName:      login,
		CredentialHash: hash,
		Role:           role,
		Profile:        profile,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created, err := s.store.Insert(ctx, account)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			log.Info().Str("login_name", login).Msg("Signup rejected: login already taken")
			return models.Account{}, &ConflictError{Reason: ReasonDuplicateLogin}
		}
		return models.Account{}, fmt.Errorf("failed to create account: %w", err)
	}

	log.Info().Str("account_id", created.ID).Str("role", string(role)).Msg("Account created")
	s.record(ctx, EventAccountCreated, LevelInfo, "Account "+created.LoginName+" created", &created.ID)
	return created.Sanitized(), nil
}

// Login verifies a login/secret pair. Unknown logins and wrong secrets both
// yield an *AuthError matching ErrAuthFailure.
func (s *AccountService) Login(ctx context.Context, loginName, secret string) (models.Account, error) {
	login := NormalizeLogin(loginName)

	account, err := s.store.FindByLogin(ctx, login)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return models.Account{}, fmt.Errorf("failed to look up account: %w", err)
		}
		// Spend the same verification cost as for a known login.
		s.verifyDecoy(secret)
		log.Warn().Str("login_name", login).Msg("Failed authentication attempt")
		s.record(ctx, EventAuthFailed, LevelWarn, "Authentication failed for "+login, nil)
		return models.Account{}, &AuthError{Reason: ReasonUnknownLogin}
	}

	ok, err := s.verify(ctx, account, secret)
	if err != nil {
		return models.Account{}, err
	}
	if !ok {
		log.Warn().Str("account_id", account.ID).Msg("Failed authentication attempt")
		s.record(ctx, EventAuthFailed, LevelWarn, "Authentication failed for "+login, &account.ID)
		return models.Account{}, &AuthError{Reason: ReasonBadCredential}
	}

	s.record(ctx, EventAuthSucceeded, LevelInfo, "Authenticated "+login, &account.ID)
	return account.Sanitized(), nil
}

// GetByID returns an account without its credential hash.
func (s *AccountService) GetByID(ctx context.Context, p models.Principal, id string) (models.Account, error) {
	if err := s.authorize(ctx, p, policy.OpViewByID, id); err != nil {
		return models.Account{}, err
	}
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, id); ok {
			return cached.Sanitized(), nil
		}
	}

	account, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, fmt.Errorf("failed to get account: %w", err)
	}

	view := account.Sanitized()
	if s.cache != nil {
		s.cache.Set(ctx, &view)
	}
	return view, nil
}

// ListAll returns one page of accounts ordered by id. page is 1-indexed;
// pages past the end are empty rather than an error.
func (s *AccountService) ListAll(ctx context.Context, p models.Principal, page, pageSize int) (Page, error) {
	if err := s.authorize(ctx, p, policy.OpListAll, ""); err != nil {
		return Page{}, err
	}
	if err := s.checkPageSize(pageSize); err != nil {
		return Page{}, err
	}
	if page < 1 {
		return Page{}, fmt.Errorf("%w: page must be at least 1", ErrInvalidArgument)
	}

	total, err := s.store.CountAll(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("failed to count accounts: %w", err)
	}

	result := Page{
		Accounts:      []models.Account{},
		Page:          page,
		PageSize:      pageSize,
		TotalPages:    totalPages(total, pageSize),
		TotalAccounts: total,
	}
	if page > result.TotalPages {
		return result, nil
	}

	accounts, err := s.store.ListPage(ctx, (page-1)*pageSize, pageSize, store.OrderByIDAsc)
	if err != nil {
		return Page{}, fmt.Errorf("failed to list accounts: %w", err)
	}
	for _, a := range accounts {
		result.Accounts = append(result.Accounts, a.Sanitized())
	}
	return result, nil
}

// PaginationMetadata reports the page count for pageSize at call time.
func (s *AccountService) PaginationMetadata(ctx context.Context, p models.Principal, pageSize int) (PageInfo, error) {
	if err := s.authorize(ctx, p, policy.OpPaginationMetadata, ""); err != nil {
		return PageInfo{}, err
	}
	if err := s.checkPageSize(pageSize); err != nil {
		return PageInfo{}, err
	}
	total, err := s.store.CountAll(ctx)
	if err != nil {
		return PageInfo{}, fmt.Errorf("failed to count accounts: %w", err)
	}
	return PageInfo{PageSize: pageSize, TotalPages: totalPages(total, pageSize), TotalAccounts: total}, nil
}

// UpdatePassword replaces the credential after re-verifying the old secret,
// even for the account owner. The write is conditional on the hash that was
// verified, so a concurrent change makes this call fail instead of winning.
func (s *AccountService) UpdatePassword(ctx context.Context, p models.Principal, targetID, oldSecret, newSecret string) error {
	if err := s.authorize(ctx, p, policy.OpUpdatePassword, targetID); err != nil {
		return err
	}

	account, err := s.store.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get account: %w", err)
	}

	ok, err := s.verify(ctx, account, oldSecret)
	if err != nil {
		return err
	}
	if !ok {
		log.Warn().Str("account_id", account.ID).Msg("Password change rejected: current password is incorrect")
		s.record(ctx, EventAuthFailed, LevelWarn, "Password change rejected for "+account.LoginName, &account.ID)
		return &AuthError{Reason: ReasonBadCredential}
	}

	if newSecret == "" {
		return fmt.Errorf("%w: new secret is required", ErrInvalidArgument)
	}
	newHash, err := s.codec.Hash([]byte(newSecret))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	updated, err := s.store.UpdateFields(ctx, targetID, store.Patch{
		CredentialHash:       &newHash,
		ExpectCredentialHash: &account.CredentialHash,
		UpdatedAt:            s.now().UTC(),
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrStale):
			return &AuthError{Reason: ReasonStaleCredential}
		case errors.Is(err, store.ErrNotFound):
			return ErrNotFound
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.evictCache(ctx, targetID)
	log.Info().Str("account_id", targetID).Msg("Password changed")
	s.record(ctx, EventPasswordChanged, LevelInfo, "Password changed for "+updated.LoginName, &updated.ID)
	return nil
}

// UpdateProfile merges patch into the profile. Only profile fields can be
// written here; the patch type has no slot for anything else.
func (s *AccountService) UpdateProfile(ctx context.Context, p models.Principal, targetID string, patch models.ProfilePatch) (models.Account, error) {
	if err := s.authorize(ctx, p, policy.OpUpdateProfile, targetID); err != nil {
		return models.Account{}, err
	}

	updated, err := s.store.UpdateFields(ctx, targetID, store.Patch{
		Profile:   &patch,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, fmt.Errorf("failed to update profile: %w", err)
	}

	s.refreshCache(ctx, updated)
	if !patch.Empty() {
		s.record(ctx, EventProfileUpdated, LevelInfo, "Profile updated for "+updated.LoginName, &updated.ID)
	}
	return updated.Sanitized(), nil
}

func (s *AccountService) verify(ctx context.Context, account models.Account, secret string) (bool, error) {
	ok, err := s.codec.Verify([]byte(secret), account.CredentialHash)
	if err != nil {
		log.Error().Err(err).Str("account_id", account.ID).Msg("Stored credential is corrupt")
		s.record(ctx, EventCredentialCorrupt, LevelError, "Stored credential is unreadable", &account.ID)
		return false, fmt.Errorf("account %s: %w", account.ID, ErrCorruptCredential)
	}
	return ok, nil
}

func (s *AccountService) verifyDecoy(secret string) {
	s.decoyOnce.Do(func() {
		h, err := s.codec.Hash([]byte(uuid.NewString()))
		if err != nil {
			log.Error().Err(err).Msg("Failed to prepare decoy credential")
			return
		}
		s.decoyHash = h
	})
	if s.decoyHash != "" {
		_, _ = s.codec.Verify([]byte(secret), s.decoyHash)
	}
}

func (s *AccountService) checkPageSize(pageSize int) error {
	if pageSize <= 0 {
		return fmt.Errorf("%w: page size must be positive", ErrInvalidArgument)
	}
	if s.maxPageSize > 0 && pageSize > s.maxPageSize {
		return fmt.Errorf("%w: page size must not exceed %d", ErrInvalidArgument, s.maxPageSize)
	}
	return nil
}

func (s *AccountService) refreshCache(ctx context.Context, account models.Account) {
	if s.cache == nil {
		return
	}
	view := account.Sanitized()
	s.cache.Set(ctx, &view)
}

func (s *AccountService) evictCache(ctx context.Context, id string) {
	if s.cache != nil {
		s.cache.Delete(ctx, id)
	}
}

// record never fails the calling operation.
func (s *AccountService) record(ctx context.Context, eventType, level, message string, accountID *string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, eventType, level, message, accountID); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("Failed to record audit event")
	}
}

// totalPages is ceil(total/pageSize) without overflowing for huge page sizes.
func totalPages(total, pageSize int) int {
	if total <= 0 {
		return 0
	}
	return (total-1)/pageSize + 1
}

// newAccountID returns a time-ordered UUID so id order follows creation order.
func newAccountID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
