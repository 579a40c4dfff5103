package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts-be/internal/models"
)

// DBTX is the subset of *sql.DB and *sql.Tx used by SQLStore.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const accountColumns = "id, username, email, password_hash, is_admin, created_at, updated_at"

// SQLStore implements AccountStore on top of database/sql.
type SQLStore struct {
	db      DBTX
	dialect Dialect
	now     func() time.Time
}

// NewSQLStore creates a new SQLStore for the given dialect.
func NewSQLStore(db DBTX, dialect Dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&account.IsAdmin,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *SQLStore) findOne(ctx context.Context, operation, column, value string) (*models.Account, error) {
	query := s.dialect.rebind("SELECT " + accountColumns + " FROM accounts WHERE " + column + " = ?")
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeErr(operation, err)
	}
	return account, nil
}

// FindByEmail retrieves a single account by its email, including the password hash.
func (s *SQLStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findOne(ctx, "find by email", "email", normalizeEmail(email))
}

// FindByID retrieves a single account by its ID.
func (s *SQLStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return s.findOne(ctx, "find by id", "id", id)
}

// Insert stores a new account, assigning its ID and timestamps.
func (s *SQLStore) Insert(ctx context.Context, account *models.Account) (*models.Account, error) {
	created := *account
	created.ID = uuid.New().String()
	created.Email = normalizeEmail(created.Email)
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt

	query := s.dialect.rebind(`
		INSERT INTO accounts (` + accountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		created.ID, created.Username, created.Email, created.PasswordHash,
		created.IsAdmin, created.CreatedAt, created.UpdatedAt)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, storeErr("insert", err)
	}
	return &created, nil
}

// Save persists mutations to an existing account.
func (s *SQLStore) Save(ctx context.Context, account *models.Account) (*models.Account, error) {
	saved := *account
	saved.Email = normalizeEmail(saved.Email)
	saved.UpdatedAt = s.now()

	query := s.dialect.rebind(`
		UPDATE accounts
		SET username = ?, email = ?, password_hash = ?, is_admin = ?, updated_at = ?
		WHERE id = ?
	`)
	res, err := s.db.ExecContext(ctx, query,
		saved.Username, saved.Email, saved.PasswordHash, saved.IsAdmin, saved.UpdatedAt, saved.ID)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, storeErr("save", err)
	}
	if err := requireAffected(res, "save"); err != nil {
		return nil, err
	}
	return &saved, nil
}

// Delete removes an account.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind("DELETE FROM accounts WHERE id = ?"), id)
	if err != nil {
		return storeErr("delete", err)
	}
	return requireAffected(res, "delete")
}

// ListAll returns every account ordered by creation time.
func (s *SQLStore) ListAll(ctx context.Context) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY created_at, id")
	if err != nil {
		return nil, storeErr("list", err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, storeErr("list", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list", err)
	}
	return accounts, nil
}

func requireAffected(res sql.Result, operation string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(operation, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Emails compare case-insensitively, so they are stored lowercased.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
