package metric

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/mesikahq/hospital-api/internal/dates"
)

type Type string

const (
	TypeWeight        Type = "WEIGHT"
	TypeBloodPressure Type = "BLOOD_PRESSURE"
	TypeHeartRate     Type = "HEART_RATE"
)

// Value is one measurement. Exactly one of Weight, BloodPressure or
// HeartRate.
type Value interface {
	Type() Type
}

type Weight struct {
	Kg float64
}

type BloodPressure struct {
	Systolic  int
	Diastolic int
}

type HeartRate struct {
	BPM int
}

func (Weight) Type() Type        { return TypeWeight }
func (BloodPressure) Type() Type { return TypeBloodPressure }
func (HeartRate) Type() Type     { return TypeHeartRate }

type Metric struct {
	ID              string
	PatientID       string
	DoctorID        string
	RecordID        string
	RecordDate      time.Time
	MeasurementDate time.Time
	Value           Value
	Notes           string
	CreatedAt       time.Time
}

func (m *Metric) MarshalJSON() ([]byte, error) {
	out := struct {
		ID              string    `json:"id"`
		PatientID       string    `json:"patientId"`
		DoctorID        string    `json:"doctorId,omitempty"`
		RecordID        string    `json:"recordId,omitempty"`
		RecordDate      string    `json:"recordDate"`
		MeasurementDate string    `json:"measurementDate"`
		Type            Type      `json:"type"`
		Weight          *float64  `json:"weight,omitempty"`
		Systolic        *int      `json:"systolic,omitempty"`
		Diastolic       *int      `json:"diastolic,omitempty"`
		HeartRate       *int      `json:"heartRate,omitempty"`
		Notes           string    `json:"notes"`
		CreatedAt       time.Time `json:"createdAt"`
	}{
		ID:              m.ID,
		PatientID:       m.PatientID,
		DoctorID:        m.DoctorID,
		RecordID:        m.RecordID,
		RecordDate:      dates.Format(m.RecordDate),
		MeasurementDate: dates.Format(m.MeasurementDate),
		Notes:           m.Notes,
		CreatedAt:       m.CreatedAt,
	}

	switch v := m.Value.(type) {
	case Weight:
		out.Type = TypeWeight
		out.Weight = &v.Kg
	case BloodPressure:
		out.Type = TypeBloodPressure
		out.Systolic = &v.Systolic
		out.Diastolic = &v.Diastolic
	case HeartRate:
		out.Type = TypeHeartRate
		out.HeartRate = &v.BPM
	}
	return json.Marshal(out)
}

// AddInput may carry several values; each becomes its own Metric.
type AddInput struct {
	DoctorID        string
	RecordID        string
	RecordDate      *time.Time
	MeasurementDate *time.Time
	Weight          *float64
	Systolic        *int
	Diastolic       *int
	HeartRate       *int
	Notes           string
}

func (in AddInput) values() ([]Value, error) {
	var values []Value
	if in.Weight != nil {
		if *in.Weight <= 0 {
			return nil, ErrInvalidValue
		}
		values = append(values, Weight{Kg: *in.Weight})
	}
	if in.Systolic != nil || in.Diastolic != nil {
		if in.Systolic == nil || in.Diastolic == nil {
			return nil, ErrIncompleteBloodPressure
		}
		if *in.Systolic <= 0 || *in.Diastolic <= 0 {
			return nil, ErrInvalidValue
		}
		values = append(values, BloodPressure{Systolic: *in.Systolic, Diastolic: *in.Diastolic})
	}
	if in.HeartRate != nil {
		if *in.HeartRate <= 0 {
			return nil, ErrInvalidValue
		}
		values = append(values, HeartRate{BPM: *in.HeartRate})
	}
	if len(values) == 0 {
		return nil, ErrNoValues
	}
	return values, nil
}

// ChartData holds per-type series ordered by measurement date.
type ChartData struct {
	WeightDates []string  `json:"weightDates"`
	Weights     []float64 `json:"weights"`
	BPDates     []string  `json:"bpDates"`
	Systolic    []int     `json:"systolic"`
	Diastolic   []int     `json:"diastolic"`
	HRDates     []string  `json:"hrDates"`
	HeartRates  []int     `json:"heartRates"`
}

// Window bounds a chart by measurement date. Nil ends are open.
type Window struct {
	From *time.Time
	To   *time.Time
}

func (w Window) contains(t time.Time) bool {
	if w.From != nil && dates.Before(t, *w.From) {
		return false
	}
	if w.To != nil && dates.Before(*w.To, t) {
		return false
	}
	return true
}

// ChartNames maps URL chart names to metric types.
var ChartNames = map[string]Type{
	"weight":         TypeWeight,
	"blood-pressure": TypeBloodPressure,
	"heart-rate":     TypeHeartRate,
}

func ParseChartName(name string) (Type, error) {
	t, ok := ChartNames[strings.ToLower(name)]
	if !ok {
		return "", ErrUnknownChart
	}
	return t, nil
}
