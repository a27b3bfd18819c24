package nurse

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mesikahq/hospital-api/internal/database"
)

type Repository interface {
	Create(ctx context.Context, n *Nurse) error
	GetByID(ctx context.Context, id string) (*Nurse, error)
	GetByAccountID(ctx context.Context, accountID string) (*Nurse, error)
	List(ctx context.Context) ([]*Nurse, error)
	Update(ctx context.Context, n *Nurse) error
}

type postgresRepository struct {
	db database.DBTX
}

func NewPostgresRepository(db database.DBTX) Repository {
	return &postgresRepository{db: db}
}

const selectNurse = `
	SELECT n.id, n.account_id, a.name, a.email, n.years_of_experience, n.phone_number
	FROM nurses n
	JOIN accounts a ON a.id = n.account_id`

func (r *postgresRepository) Create(ctx context.Context, n *Nurse) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO nurses (id, account_id, years_of_experience, phone_number)
		VALUES ($1, $2, $3, $4)`,
		n.ID, n.AccountID, n.YearsOfExperience, n.PhoneNumber)
	if err != nil {
		if database.IsUniqueViolation(err, "nurses_account_id_key") {
			return ErrProfileExists
		}
		return fmt.Errorf("failed to create nurse: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*Nurse, error) {
	return r.getOne(ctx, selectNurse+` WHERE n.id = $1`, id)
}

func (r *postgresRepository) GetByAccountID(ctx context.Context, accountID string) (*Nurse, error) {
	return r.getOne(ctx, selectNurse+` WHERE n.account_id = $1`, accountID)
}

func (r *postgresRepository) getOne(ctx context.Context, query, arg string) (*Nurse, error) {
	var n Nurse
	err := r.db.QueryRow(ctx, query, arg).Scan(&n.ID, &n.AccountID, &n.Name, &n.Email, &n.YearsOfExperience, &n.PhoneNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNurseNotFound
		}
		return nil, fmt.Errorf("failed to load nurse: %w", err)
	}
	return &n, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]*Nurse, error) {
	rows, err := r.db.Query(ctx, selectNurse+` ORDER BY a.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nurses: %w", err)
	}
	defer rows.Close()

	var nurses []*Nurse
	for rows.Next() {
		var n Nurse
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Name, &n.Email, &n.YearsOfExperience, &n.PhoneNumber); err != nil {
			return nil, fmt.Errorf("failed to scan nurse: %w", err)
		}
		nurses = append(nurses, &n)
	}
	return nurses, rows.Err()
}

func (r *postgresRepository) Update(ctx context.Context, n *Nurse) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE nurses SET years_of_experience = $2, phone_number = $3 WHERE id = $1`,
		n.ID, n.YearsOfExperience, n.PhoneNumber)
	if err != nil {
		return fmt.Errorf("failed to update nurse: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNurseNotFound
	}
	return nil
}
