package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mesikahq/hospital-api/internal/database"
	"github.com/mesikahq/hospital-api/internal/dates"
)

const scheduledSlotIndex = "appointments_doctor_day_scheduled_key"

type Repository interface {
	// WithSlotLock runs fn while holding an exclusive lock on the
	// (doctor, day) slot. Reads and writes made through the Repository
	// passed to fn commit atomically when fn returns nil.
	WithSlotLock(ctx context.Context, doctorID string, day time.Time, fn func(Repository) error) error
	Create(ctx context.Context, a *Appointment) error
	Get(ctx context.Context, id string) (*Appointment, error)
	List(ctx context.Context, f Filter) ([]*Appointment, error)
	ListScheduled(ctx context.Context, doctorID string, day time.Time) ([]*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id string) error
}

type postgresRepository struct {
	db database.DBTX
	// locking is set inside WithSlotLock; Get then locks the row.
	locking bool
}

func NewPostgresRepository(db database.DBTX) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) WithSlotLock(ctx context.Context, doctorID string, day time.Time, fn func(Repository) error) error {
	return database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		key := doctorID + "|" + dates.Format(day)
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("failed to lock appointment slot: %w", err)
		}
		return fn(&postgresRepository{db: tx, locking: true})
	})
}

const selectAppointment = `
	SELECT ap.id, ap.patient_id, pa.name, pa.email, ap.doctor_id, da.name,
		ap.appointment_date, ap.notes, ap.status, COALESCE(ap.created_by::text, ''),
		ap.created_at, ap.updated_at, ap.updated_by
	FROM appointments ap
	JOIN patients p ON p.id = ap.patient_id
	JOIN accounts pa ON pa.id = p.account_id
	JOIN doctors d ON d.id = ap.doctor_id
	JOIN accounts da ON da.id = d.account_id`

func (r *postgresRepository) Create(ctx context.Context, a *Appointment) error {
	var createdBy *string
	if a.CreatedBy != "" {
		createdBy = &a.CreatedBy
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, appointment_date, notes, status,
			created_by, created_at, updated_at, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.PatientID, a.DoctorID, a.Date, a.Notes, string(a.Status),
		createdBy, a.CreatedAt, a.UpdatedAt, a.UpdatedBy)
	if err != nil {
		return mapWriteError(err, "failed to create appointment")
	}
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	query := selectAppointment + ` WHERE ap.id = $1`
	if r.locking {
		query += ` FOR UPDATE OF ap`
	}
	a, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("failed to load appointment: %w", err)
	}
	return a, nil
}

func (r *postgresRepository) List(ctx context.Context, f Filter) ([]*Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.PatientID != "" {
		add("ap.patient_id = $%d", f.PatientID)
	}
	if f.DoctorID != "" {
		add("ap.doctor_id = $%d", f.DoctorID)
	}
	if f.Status != "" {
		add("ap.status = $%d", string(f.Status))
	}
	if f.On != nil {
		add("ap.appointment_date = $%d", dates.Day(*f.On))
	}
	if f.From != nil {
		add("ap.appointment_date >= $%d", dates.Day(*f.From))
	}

	query := selectAppointment
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Newest {
		query += " ORDER BY ap.appointment_date DESC, ap.created_at DESC"
	} else {
		query += " ORDER BY ap.appointment_date, ap.created_at"
	}

	return r.query(ctx, query, args...)
}

func (r *postgresRepository) ListScheduled(ctx context.Context, doctorID string, day time.Time) ([]*Appointment, error) {
	return r.query(ctx, selectAppointment+`
		WHERE ap.doctor_id = $1 AND ap.appointment_date = $2 AND ap.status = $3`,
		doctorID, dates.Day(day), string(StatusScheduled))
}

func (r *postgresRepository) query(ctx context.Context, query string, args ...any) ([]*Appointment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var appointments []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, a)
	}
	return appointments, rows.Err()
}

func (r *postgresRepository) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET appointment_date = $2, notes = $3, status = $4, updated_at = $5, updated_by = $6
		WHERE id = $1`,
		a.ID, a.Date, a.Notes, string(a.Status), a.UpdatedAt, a.UpdatedBy)
	if err != nil {
		return mapWriteError(err, "failed to update appointment")
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func mapWriteError(err error, msg string) error {
	if database.IsUniqueViolation(err, scheduledSlotIndex) {
		return ErrConflict
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		switch pgErr.ConstraintName {
		case "appointments_patient_id_fkey":
			return fmt.Errorf("%s: %w", msg, errPatientMissing)
		case "appointments_doctor_id_fkey":
			return fmt.Errorf("%s: %w", msg, errDoctorMissing)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a      Appointment
		status string
	)
	err := row.Scan(&a.ID, &a.PatientID, &a.PatientName, &a.PatientEmail, &a.DoctorID, &a.DoctorName,
		&a.Date, &a.Notes, &status, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt, &a.UpdatedBy)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}
