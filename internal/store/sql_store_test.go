package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/ender-accounts/internal/database"
	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := database.New(database.DriverSQLite, filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.DriverSQLite))
	return NewSQLStore(db, database.DriverSQLite)
}

func testAccount(id, login string) models.Account {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return models.Account{
		ID:             id,
		LoginName:      login,
		CredentialHash: "hash-" + id,
		Role:           models.RoleStandard,
		Profile:        models.Profile{DisplayName: "User " + id, Email: login + "@example.com"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func strPtr(s string) *string { return &s }

func assertSameAccount(t *testing.T, want, got models.Account) {
	t.Helper()
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", want.CreatedAt, got.CreatedAt)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated_at %v != %v", want.UpdatedAt, got.UpdatedAt)
	want.CreatedAt, want.UpdatedAt = time.Time{}, time.Time{}
	got.CreatedAt, got.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, want, got)
}

func TestInsertAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := testAccount("a1", "alice")
	_, err := s.Insert(ctx, in)
	require.NoError(t, err)

	byID, err := s.FindByID(ctx, "a1")
	require.NoError(t, err)
	assertSameAccount(t, in, byID)

	byLogin, err := s.FindByLogin(ctx, "alice")
	require.NoError(t, err)
	assertSameAccount(t, in, byLogin)

	_, err = s.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsert_DuplicateLoginIsConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, testAccount("a1", "alice"))
	require.NoError(t, err)

	dup := testAccount("a2", "alice")
	dup.CredentialHash = "other"
	_, err = s.Insert(ctx, dup)
	assert.ErrorIs(t, err, ErrConflict)

	got, err := s.FindByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash-a1", got.CredentialHash)

	_, err = s.Insert(ctx, testAccount("a1", "bob"))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestInsert_ConcurrentSameLogin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Insert(ctx, testAccount(fmt.Sprintf("id-%02d", i), "same"))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.Equal(t, 1, ok)

	total, err := s.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestUpdateFields_ProfileOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Insert(ctx, testAccount("a1", "alice"))
	require.NoError(t, err)

	later := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	got, err := s.UpdateFields(ctx, "a1", Patch{
		Profile:   &models.ProfilePatch{Phone: strPtr("+4412345")},
		UpdatedAt: later,
	})
	require.NoError(t, err)
	assert.Equal(t, "+4412345", got.Profile.Phone)
	assert.Equal(t, "User a1", got.Profile.DisplayName)
	assert.Equal(t, "alice@example.com", got.Profile.Email)
	assert.Equal(t, "hash-a1", got.CredentialHash)
	assert.Equal(t, models.RoleStandard, got.Role)
	assert.Equal(t, "alice", got.LoginName)
	assert.True(t, later.Equal(got.UpdatedAt))
}

func TestUpdateFields_ConditionalCredential(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Insert(ctx, testAccount("a1", "alice"))
	require.NoError(t, err)

	_, err = s.UpdateFields(ctx, "a1", Patch{
		CredentialHash:       strPtr("new"),
		ExpectCredentialHash: strPtr("not-current"),
		UpdatedAt:            time.Now(),
	})
	assert.ErrorIs(t, err, ErrStale)

	got, err := s.UpdateFields(ctx, "a1", Patch{
		CredentialHash:       strPtr("new"),
		ExpectCredentialHash: strPtr("hash-a1"),
		UpdatedAt:            time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, "new", got.CredentialHash)
}

func TestUpdateFields_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateFields(ctx, "ghost", Patch{CredentialHash: strPtr("x"), UpdatedAt: time.Now()})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.UpdateFields(ctx, "ghost", Patch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountAndListPage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "e", "b", "d"} {
		_, err := s.Insert(ctx, testAccount(id, "login-"+id))
		require.NoError(t, err)
	}

	total, err := s.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	ids := func(accounts []models.Account) []string {
		out := make([]string, 0, len(accounts))
		for _, a := range accounts {
			out = append(out, a.ID)
		}
		return out
	}

	first, err := s.ListPage(ctx, 0, 2, OrderByIDAsc)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(first))

	last, err := s.ListPage(ctx, 4, 2, OrderByIDAsc)
	require.NoError(t, err)
	assert.Equal(t, []string{"e"}, ids(last))

	beyond, err := s.ListPage(ctx, 10, 2, OrderByIDAsc)
	require.NoError(t, err)
	assert.Empty(t, beyond)

	again, err := s.ListPage(ctx, 0, 2, OrderByIDAsc)
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(again))

	all, err := s.ListPage(ctx, 0, math.MaxInt, OrderByIDAsc)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(all))

	_, err = s.ListPage(ctx, 0, 2, Order(42))
	assert.Error(t, err)
}
