package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/isdelr/ender-accounts/internal/database"
	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const accountColumns = "id, login_name, credential_hash, role, display_name, email, phone, created_at, updated_at"

// SQLStore implements AccountStore on database/sql.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore creates a store over db. driver selects the placeholder style.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) q(query string) string {
	return database.Rebind(s.driver, query)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (models.Account, error) {
	var a models.Account
	var role string
	err := row.Scan(&a.ID, &a.LoginName, &a.CredentialHash, &role,
		&a.Profile.DisplayName, &a.Profile.Email, &a.Profile.Phone,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return models.Account{}, err
	}
	a.Role = models.Role(role)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func findOne(ctx context.Context, db database.DBTX, query string, arg any) (models.Account, error) {
	a, err := scanAccount(db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// FindByLogin retrieves an account, including its credential hash, by login name.
func (s *SQLStore) FindByLogin(ctx context.Context, loginName string) (models.Account, error) {
	return findOne(ctx, s.db, s.q("SELECT "+accountColumns+" FROM accounts WHERE login_name = ?"), loginName)
}

// FindByID retrieves an account, including its credential hash, by id.
func (s *SQLStore) FindByID(ctx context.Context, id string) (models.Account, error) {
	return findOne(ctx, s.db, s.q("SELECT "+accountColumns+" FROM accounts WHERE id = ?"), id)
}

// Insert relies on the UNIQUE constraint on login_name, so concurrent
// inserts of the same login cannot both succeed.
func (s *SQLStore) Insert(ctx context.Context, a models.Account) (models.Account, error) {
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.LoginName, a.CredentialHash, string(a.Role),
		a.Profile.DisplayName, a.Profile.Email, a.Profile.Phone,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Account{}, ErrConflict
		}
		return models.Account{}, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// UpdateFields applies patch in one UPDATE statement and returns the
// resulting record. Columns not named by the patch are never written.
func (s *SQLStore) UpdateFields(ctx context.Context, id string, patch Patch) (models.Account, error) {
	if patch.empty() {
		return s.FindByID(ctx, id)
	}

	var sets []string
	var args []any
	if p := patch.Profile; p != nil {
		if p.DisplayName != nil {
			sets = append(sets, "display_name = ?")
			args = append(args, *p.DisplayName)
		}
		if p.Email != nil {
			sets = append(sets, "email = ?")
			args = append(args, *p.Email)
		}
		if p.Phone != nil {
			sets = append(sets, "phone = ?")
			args = append(args, *p.Phone)
		}
	}
	if patch.CredentialHash != nil {
		sets = append(sets, "credential_hash = ?")
		args = append(args, *patch.CredentialHash)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, patch.UpdatedAt.UTC())

	query := "UPDATE accounts SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)
	if patch.ExpectCredentialHash != nil {
		query += " AND credential_hash = ?"
		args = append(args, *patch.ExpectCredentialHash)
	}

	var updated models.Account
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx database.DBTX) error {
		res, err := tx.ExecContext(ctx, s.q(query), args...)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		byID := s.q("SELECT " + accountColumns + " FROM accounts WHERE id = ?")
		if n == 0 {
			if _, err := findOne(ctx, tx, byID, id); err != nil {
				return err
			}
			return ErrStale
		}
		updated, err = findOne(ctx, tx, byID, id)
		return err
	})
	if err != nil {
		return models.Account{}, err
	}
	return updated, nil
}

// CountAll returns the number of stored accounts.
func (s *SQLStore) CountAll(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// ListPage returns up to limit accounts starting at offset in the given order.
func (s *SQLStore) ListPage(ctx context.Context, offset, limit int, order Order) ([]models.Account, error) {
	var orderBy string
	switch order {
	case OrderByIDAsc:
		orderBy = "id ASC"
	default:
		return nil, fmt.Errorf("unsupported order %d", order)
	}

	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT "+accountColumns+" FROM accounts ORDER BY "+orderBy+" LIMIT ? OFFSET ?"),
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	accounts := make([]models.Account, 0, min(limit, 64))
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return accounts, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch code := liteErr.Code(); code {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		default:
			// Primary result code only, when extended codes are off.
			return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}
