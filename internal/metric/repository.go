package metric

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mesikahq/hospital-api/internal/database"
)

type Repository interface {
	// CreateAll inserts every metric in one transaction.
	CreateAll(ctx context.Context, metrics []*Metric) error
	ListByPatient(ctx context.Context, patientID string, t Type) ([]*Metric, error)
}

type postgresRepository struct {
	db database.DBTX
}

func NewPostgresRepository(db database.DBTX) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateAll(ctx context.Context, metrics []*Metric) error {
	return database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		for _, m := range metrics {
			var (
				weight              *float64
				systolic, diastolic *int
				heartRate           *int
			)
			switch v := m.Value.(type) {
			case Weight:
				weight = &v.Kg
			case BloodPressure:
				systolic, diastolic = &v.Systolic, &v.Diastolic
			case HeartRate:
				heartRate = &v.BPM
			default:
				return fmt.Errorf("unsupported metric value %T", m.Value)
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO health_metrics (
					id, patient_id, doctor_id, record_id, record_date, measurement_date,
					kind, weight_kg, systolic, diastolic, heart_rate, notes, created_at
				) VALUES ($1, $2, NULLIF($3, '')::uuid, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
				m.ID, m.PatientID, m.DoctorID, m.RecordID, m.RecordDate, m.MeasurementDate,
				string(m.Value.Type()), weight, systolic, diastolic, heartRate, m.Notes, m.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to create health metric: %w", err)
			}
		}
		return nil
	})
}

// ListByPatient returns the patient's metrics ordered by measurement date.
// An empty t matches every type.
func (r *postgresRepository) ListByPatient(ctx context.Context, patientID string, t Type) ([]*Metric, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, patient_id, COALESCE(doctor_id::text, ''), COALESCE(record_id::text, ''),
			record_date, measurement_date, kind, weight_kg, systolic, diastolic, heart_rate,
			notes, created_at
		FROM health_metrics
		WHERE patient_id = $1 AND ($2 = '' OR kind = $2)
		ORDER BY measurement_date, created_at`,
		patientID, string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to query health metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*Metric
	for rows.Next() {
		var (
			m                   Metric
			kind                string
			weight              *float64
			systolic, diastolic *int
			heartRate           *int
		)
		if err := rows.Scan(&m.ID, &m.PatientID, &m.DoctorID, &m.RecordID, &m.RecordDate,
			&m.MeasurementDate, &kind, &weight, &systolic, &diastolic, &heartRate,
			&m.Notes, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan health metric: %w", err)
		}

		switch Type(kind) {
		case TypeWeight:
			m.Value = Weight{Kg: deref(weight)}
		case TypeBloodPressure:
			m.Value = BloodPressure{Systolic: deref(systolic), Diastolic: deref(diastolic)}
		case TypeHeartRate:
			m.Value = HeartRate{BPM: deref(heartRate)}
		default:
			return nil, fmt.Errorf("unknown health metric kind %q", kind)
		}
		metrics = append(metrics, &m)
	}
	return metrics, rows.Err()
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
