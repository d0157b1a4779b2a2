package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shopfront/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account with this email already exists")
	ErrVIPNumberTaken       = errors.New("vip number already assigned")
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ListCustomers(ctx context.Context) ([]*domain.Account, error)
	SetVIPNumber(ctx context.Context, id uuid.UUID, number string) error
	VIPNumberExists(ctx context.Context, number string) (bool, error)
}

type accountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new instance of AccountRepository
func NewAccountRepository(db *sql.DB) AccountRepository {
	return &accountRepository{db: db}
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	return false
}

// Create inserts a new account using parameterized queries
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, name, role, vip_number, vip_approved_orders, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Name,
		account.Role,
		account.VIPNumber,
		account.VIPApprovedOrders,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err, "accounts_email_key") {
			return ErrAccountAlreadyExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// FindByEmail retrieves an account by email
func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `
		SELECT id, email, password_hash, name, role, vip_number, vip_approved_orders, created_at, updated_at
		FROM accounts
		WHERE email = $1
	`

	return r.scanAccount(r.db.QueryRowContext(ctx, query, email))
}

// FindByID retrieves an account by ID
func (r *accountRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT id, email, password_hash, name, role, vip_number, vip_approved_orders, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	return r.scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *accountRepository) scanAccount(row *sql.Row) (*domain.Account, error) {
	account := &domain.Account{}
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Name,
		&account.Role,
		&account.VIPNumber,
		&account.VIPApprovedOrders,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	return account, nil
}

// ListCustomers retrieves all customer accounts, newest first
func (r *accountRepository) ListCustomers(ctx context.Context) ([]*domain.Account, error) {
	query := `
		SELECT id, email, password_hash, name, role, vip_number, vip_approved_orders, created_at, updated_at
		FROM accounts
		WHERE role = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, domain.RoleCustomer)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	accounts := []*domain.Account{}
	for rows.Next() {
		account := &domain.Account{}
		err := rows.Scan(
			&account.ID,
			&account.Email,
			&account.PasswordHash,
			&account.Name,
			&account.Role,
			&account.VIPNumber,
			&account.VIPApprovedOrders,
			&account.CreatedAt,
			&account.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating customers: %w", err)
	}

	return accounts, nil
}

// SetVIPNumber assigns a membership number to an account that does not yet
// hold one. The WHERE clause keeps an already-assigned number immutable.
func (r *accountRepository) SetVIPNumber(ctx context.Context, id uuid.UUID, number string) error {
	query := `
		UPDATE accounts
		SET vip_number = $2, updated_at = NOW()
		WHERE id = $1 AND vip_number IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, number)
	if err != nil {
		if isUniqueViolation(err, "accounts_vip_number_key") {
			return ErrVIPNumberTaken
		}
		return fmt.Errorf("failed to set vip number: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// VIPNumberExists reports whether a membership number is already assigned
func (r *accountRepository) VIPNumberExists(ctx context.Context, number string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE vip_number = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, number).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check vip number: %w", err)
	}

	return exists, nil
}
