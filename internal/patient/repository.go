package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mesikahq/hospital-api/internal/database"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id string) (*Patient, error)
	GetByAccountID(ctx context.Context, accountID string) (*Patient, error)
	List(ctx context.Context) ([]*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id string) error
}

type postgresRepository struct {
	db database.DBTX
}

func NewPostgresRepository(db database.DBTX) Repository {
	return &postgresRepository{db: db}
}

const selectPatient = `
	SELECT p.id, p.account_id, a.name, a.email, p.date_of_birth, p.gender,
		p.phone_number, p.address, p.blood_group, p.emergency_contact
	FROM patients p
	JOIN accounts a ON a.id = p.account_id`

func (r *postgresRepository) Create(ctx context.Context, p *Patient) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO patients (id, account_id, date_of_birth, gender, phone_number, address, blood_group, emergency_contact)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.AccountID, p.DateOfBirth, p.Gender, p.PhoneNumber, p.Address, p.BloodGroup, p.EmergencyContact)
	if err != nil {
		if database.IsUniqueViolation(err, "patients_account_id_key") {
			return ErrProfileExists
		}
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*Patient, error) {
	return r.getOne(ctx, selectPatient+` WHERE p.id = $1`, id)
}

func (r *postgresRepository) GetByAccountID(ctx context.Context, accountID string) (*Patient, error) {
	return r.getOne(ctx, selectPatient+` WHERE p.account_id = $1`, accountID)
}

func (r *postgresRepository) getOne(ctx context.Context, query, arg string) (*Patient, error) {
	p, err := scanPatient(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]*Patient, error) {
	rows, err := r.db.Query(ctx, selectPatient+` ORDER BY a.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (r *postgresRepository) Update(ctx context.Context, p *Patient) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE patients
		SET date_of_birth = $2, gender = $3, phone_number = $4, address = $5,
			blood_group = $6, emergency_contact = $7
		WHERE id = $1`,
		p.ID, p.DateOfBirth, p.Gender, p.PhoneNumber, p.Address, p.BloodGroup, p.EmergencyContact)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrPatientInUse
		}
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.AccountID, &p.Name, &p.Email, &p.DateOfBirth, &p.Gender,
		&p.PhoneNumber, &p.Address, &p.BloodGroup, &p.EmergencyContact)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
