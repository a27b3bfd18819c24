package doctor

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mesikahq/hospital-api/internal/database"
)

type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id string) (*Doctor, error)
	GetByAccountID(ctx context.Context, accountID string) (*Doctor, error)
	List(ctx context.Context) ([]*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id string) error
}

type postgresRepository struct {
	db database.DBTX
}

func NewPostgresRepository(db database.DBTX) Repository {
	return &postgresRepository{db: db}
}

const selectDoctor = `
	SELECT d.id, d.account_id, a.name, a.email, d.specialization,
		d.years_of_experience, d.charges::float8, d.phone_number
	FROM doctors d
	JOIN accounts a ON a.id = d.account_id`

func (r *postgresRepository) Create(ctx context.Context, d *Doctor) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO doctors (id, account_id, specialization, years_of_experience, charges, phone_number)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.AccountID, d.Specialization, d.YearsOfExperience, d.Charges, d.PhoneNumber)
	if err != nil {
		if database.IsUniqueViolation(err, "doctors_account_id_key") {
			return ErrProfileExists
		}
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*Doctor, error) {
	return r.getOne(ctx, selectDoctor+` WHERE d.id = $1`, id)
}

func (r *postgresRepository) GetByAccountID(ctx context.Context, accountID string) (*Doctor, error) {
	return r.getOne(ctx, selectDoctor+` WHERE d.account_id = $1`, accountID)
}

func (r *postgresRepository) getOne(ctx context.Context, query, arg string) (*Doctor, error) {
	d, err := scanDoctor(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("failed to load doctor: %w", err)
	}
	return d, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]*Doctor, error) {
	rows, err := r.db.Query(ctx, selectDoctor+` ORDER BY a.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query doctors: %w", err)
	}
	defer rows.Close()

	var doctors []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan doctor: %w", err)
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

func (r *postgresRepository) Update(ctx context.Context, d *Doctor) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE doctors
		SET specialization = $2, years_of_experience = $3, charges = $4, phone_number = $5
		WHERE id = $1`,
		d.ID, d.Specialization, d.YearsOfExperience, d.Charges, d.PhoneNumber)
	if err != nil {
		return fmt.Errorf("failed to update doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrDoctorInUse
		}
		return fmt.Errorf("failed to delete doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.AccountID, &d.Name, &d.Email, &d.Specialization,
		&d.YearsOfExperience, &d.Charges, &d.PhoneNumber)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
