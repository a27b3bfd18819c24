package metric

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/apperr"
	"github.com/mesikahq/hospital-api/internal/dates"
	"github.com/mesikahq/hospital-api/internal/patient"
)

const defaultWindowDays = 90

var (
	ErrNoValues                = apperr.Validation("At least one health metric value is required")
	ErrIncompleteBloodPressure = apperr.Validation("Blood pressure requires both systolic and diastolic values")
	ErrInvalidValue            = apperr.Validation("Health metric values must be positive")
	ErrUnknownChart            = apperr.Validation("Chart must be one of weight, blood-pressure, heart-rate")
	ErrNoData                  = apperr.NotFound("No health metric data available for chart")
)

type PatientFinder interface {
	Get(ctx context.Context, id string) (*patient.Patient, error)
}

type Service interface {
	Add(ctx context.Context, patientID string, in AddInput) ([]*Metric, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Metric, error)
	// Latest returns the newest metric of each type the patient has.
	Latest(ctx context.Context, patientID string) ([]*Metric, error)
	ChartData(ctx context.Context, patientID string) (*ChartData, error)
	// Chart renders and stores a PNG of one metric type. A zero window
	// covers the last 90 days, falling back to all data when that is empty.
	Chart(ctx context.Context, patientID string, t Type, w Window, thumb bool) ([]byte, error)
}

type service struct {
	repo     Repository
	patients PatientFinder
	store    Store
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients PatientFinder, store Store, logger *zap.Logger) Service {
	return &service{
		repo:     repo,
		patients: patients,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *service) Add(ctx context.Context, patientID string, in AddInput) ([]*Metric, error) {
	values, err := in.values()
	if err != nil {
		return nil, err
	}

	p, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}

	recordDate := dates.Day(s.now())
	if in.RecordDate != nil {
		recordDate = dates.Day(*in.RecordDate)
	}
	measured := recordDate
	if in.MeasurementDate != nil {
		measured = dates.Day(*in.MeasurementDate)
	}

	created := s.now().UTC()
	metrics := make([]*Metric, 0, len(values))
	for _, v := range values {
		metrics = append(metrics, &Metric{
			ID:              uuid.New().String(),
			PatientID:       p.ID,
			DoctorID:        in.DoctorID,
			RecordID:        in.RecordID,
			RecordDate:      recordDate,
			MeasurementDate: measured,
			Value:           v,
			Notes:           strings.TrimSpace(in.Notes),
			CreatedAt:       created,
		})
	}

	if err := s.repo.CreateAll(ctx, metrics); err != nil {
		return nil, err
	}

	s.logger.Info("Health metrics recorded",
		zap.String("patient_id", p.ID),
		zap.Int("count", len(metrics)),
	)
	return metrics, nil
}

func (s *service) ListByPatient(ctx context.Context, patientID string) ([]*Metric, error) {
	return s.repo.ListByPatient(ctx, patientID, "")
}

func (s *service) Latest(ctx context.Context, patientID string) ([]*Metric, error) {
	all, err := s.repo.ListByPatient(ctx, patientID, "")
	if err != nil {
		return nil, err
	}

	latest := map[Type]*Metric{}
	for _, m := range all {
		latest[m.Value.Type()] = m
	}

	var out []*Metric
	for _, t := range []Type{TypeWeight, TypeBloodPressure, TypeHeartRate} {
		if m, ok := latest[t]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *service) ChartData(ctx context.Context, patientID string) (*ChartData, error) {
	all, err := s.repo.ListByPatient(ctx, patientID, "")
	if err != nil {
		return nil, err
	}

	data := &ChartData{
		WeightDates: []string{},
		Weights:     []float64{},
		BPDates:     []string{},
		Systolic:    []int{},
		Diastolic:   []int{},
		HRDates:     []string{},
		HeartRates:  []int{},
	}
	for _, m := range all {
		day := dates.Format(m.MeasurementDate)
		switch v := m.Value.(type) {
		case Weight:
			data.WeightDates = append(data.WeightDates, day)
			data.Weights = append(data.Weights, v.Kg)
		case BloodPressure:
			data.BPDates = append(data.BPDates, day)
			data.Systolic = append(data.Systolic, v.Systolic)
			data.Diastolic = append(data.Diastolic, v.Diastolic)
		case HeartRate:
			data.HRDates = append(data.HRDates, day)
			data.HeartRates = append(data.HeartRates, v.BPM)
		}
	}
	return data, nil
}

func (s *service) Chart(ctx context.Context, patientID string, t Type, w Window, thumb bool) ([]byte, error) {
	name, ok := chartName(t)
	if !ok {
		return nil, ErrUnknownChart
	}

	p, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}

	all, err := s.repo.ListByPatient(ctx, p.ID, t)
	if err != nil {
		return nil, err
	}

	defaulted := w.From == nil && w.To == nil
	if defaulted {
		today := dates.Day(s.now())
		from := today.AddDate(0, 0, -defaultWindowDays)
		w = Window{From: &from, To: &today}
	}

	points := make([]*Metric, 0, len(all))
	for _, m := range all {
		if w.contains(m.MeasurementDate) {
			points = append(points, m)
		}
	}
	if len(points) == 0 && defaulted {
		points = all
	}
	if len(points) == 0 {
		return nil, ErrNoData
	}

	img, err := renderChart(t, points)
	if err != nil {
		return nil, err
	}
	s.persist(ctx, p.ID+"/"+name+".png", img)

	if !thumb {
		return img, nil
	}

	small, err := thumbnail(img, ThumbnailWidth)
	if err != nil {
		return nil, err
	}
	s.persist(ctx, p.ID+"/"+name+"_thumb.png", small)
	return small, nil
}

// persist stores a rendered chart. The image is still served when storage
// fails.
func (s *service) persist(ctx context.Context, key string, data []byte) {
	if s.store == nil {
		return
	}
	if err := s.store.Put(ctx, key, data); err != nil {
		s.logger.Warn("Failed to store chart", zap.String("key", key), zap.Error(err))
	}
}

func chartName(t Type) (string, bool) {
	for name, typ := range ChartNames {
		if typ == t {
			return name, true
		}
	}
	return "", false
}
