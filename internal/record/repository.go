package record

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/mesikahq/hospital-api/internal/database"
)

type Repository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	Get(ctx context.Context, id string) (*MedicalRecord, error)
	List(ctx context.Context, f Filter) ([]*MedicalRecord, error)
	Update(ctx context.Context, r *MedicalRecord) error
	Delete(ctx context.Context, id string) error
}

type postgresRepository struct {
	db database.DBTX
}

func NewPostgresRepository(db database.DBTX) Repository {
	return &postgresRepository{db: db}
}

const selectRecord = `
	SELECT mr.id, mr.patient_id, pa.name, mr.doctor_id, da.name, mr.visit_date,
		mr.diagnosis, mr.prescription, mr.status, mr.created_at
	FROM medical_records mr
	JOIN patients p ON p.id = mr.patient_id
	JOIN accounts pa ON pa.id = p.account_id
	JOIN doctors d ON d.id = mr.doctor_id
	JOIN accounts da ON da.id = d.account_id`

func (r *postgresRepository) Create(ctx context.Context, rec *MedicalRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO medical_records (id, patient_id, doctor_id, visit_date, diagnosis, prescription, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.PatientID, rec.DoctorID, rec.VisitDate, rec.Diagnosis, rec.Prescription, string(rec.Status), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create medical record: %w", err)
	}
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, id string) (*MedicalRecord, error) {
	rec, err := scanRecord(r.db.QueryRow(ctx, selectRecord+` WHERE mr.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to load medical record: %w", err)
	}
	return rec, nil
}

func (r *postgresRepository) List(ctx context.Context, f Filter) ([]*MedicalRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.PatientID != "" {
		args = append(args, f.PatientID)
		where = append(where, fmt.Sprintf("mr.patient_id = $%d", len(args)))
	}
	if f.DoctorID != "" {
		args = append(args, f.DoctorID)
		where = append(where, fmt.Sprintf("mr.doctor_id = $%d", len(args)))
	}

	query := selectRecord
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY mr.visit_date DESC, mr.created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query medical records: %w", err)
	}
	defer rows.Close()

	var records []*MedicalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medical record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *postgresRepository) Update(ctx context.Context, rec *MedicalRecord) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE medical_records
		SET visit_date = $2, diagnosis = $3, prescription = $4, status = $5
		WHERE id = $1`,
		rec.ID, rec.VisitDate, rec.Diagnosis, rec.Prescription, string(rec.Status))
	if err != nil {
		return fmt.Errorf("failed to update medical record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM medical_records WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrRecordInUse
		}
		return fmt.Errorf("failed to delete medical record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var (
		rec    MedicalRecord
		status string
	)
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.PatientName, &rec.DoctorID, &rec.DoctorName,
		&rec.VisitDate, &rec.Diagnosis, &rec.Prescription, &status, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = Status(status)
	return &rec, nil
}
