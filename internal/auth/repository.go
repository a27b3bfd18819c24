package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mesikahq/hospital-api/internal/database"
)

// Repository persists accounts.
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
	Update(ctx context.Context, account *Account) error
	Delete(ctx context.Context, id string) error
}

type postgresRepository struct {
	db database.DBTX
}

func NewPostgresRepository(db database.DBTX) Repository {
	return &postgresRepository{db: db}
}

const accountColumns = `id, email, password_hash, name, roles, created_at, updated_at`

func (r *postgresRepository) Create(ctx context.Context, a *Account) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Email, a.PasswordHash, a.Name, rolesToStrings(a.Roles), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "accounts_email_key") {
			return ErrEmailInUse
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email)
}

func (r *postgresRepository) getOne(ctx context.Context, query string, arg string) (*Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return a, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]*Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *postgresRepository) Update(ctx context.Context, a *Account) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET email = $2, password_hash = $3, name = $4, roles = $5, updated_at = $6
		WHERE id = $1`,
		a.ID, a.Email, a.PasswordHash, a.Name, rolesToStrings(a.Roles), a.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "accounts_email_key") {
			return ErrEmailInUse
		}
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrAccountInUse
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	var roles []string
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &roles, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	for _, r := range roles {
		if role, err := ParseRole(r); err == nil {
			a.Roles = append(a.Roles, role)
		}
	}
	return &a, nil
}

func rolesToStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
