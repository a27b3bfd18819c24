package record

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/apperr"
	"github.com/mesikahq/hospital-api/internal/doctor"
	"github.com/mesikahq/hospital-api/internal/patient"
)

type memoryRepo map[string]*MedicalRecord

func (m memoryRepo) Create(_ context.Context, r *MedicalRecord) error {
	cp := *r
	m[r.ID] = &cp
	return nil
}

func (m memoryRepo) Get(_ context.Context, id string) (*MedicalRecord, error) {
	r, ok := m[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (m memoryRepo) List(_ context.Context, f Filter) ([]*MedicalRecord, error) {
	var out []*MedicalRecord
	for _, r := range m {
		if (f.PatientID != "" && r.PatientID != f.PatientID) || (f.DoctorID != "" && r.DoctorID != f.DoctorID) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VisitDate.After(out[j].VisitDate) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m memoryRepo) Update(_ context.Context, r *MedicalRecord) error {
	if _, ok := m[r.ID]; !ok {
		return ErrRecordNotFound
	}
	cp := *r
	m[r.ID] = &cp
	return nil
}

func (m memoryRepo) Delete(_ context.Context, id string) error {
	if _, ok := m[id]; !ok {
		return ErrRecordNotFound
	}
	delete(m, id)
	return nil
}

type patients map[string]*patient.Patient

func (p patients) Get(_ context.Context, id string) (*patient.Patient, error) {
	if v, ok := p[id]; ok {
		return v, nil
	}
	return nil, patient.ErrPatientNotFound
}

type doctors map[string]*doctor.Doctor

func (d doctors) Get(_ context.Context, id string) (*doctor.Doctor, error) {
	if v, ok := d[id]; ok {
		return v, nil
	}
	return nil, doctor.ErrDoctorNotFound
}

var now = time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)

func newTestService() Service {
	svc := NewService(memoryRepo{},
		patients{"p1": {ID: "p1", Name: "Ama"}},
		doctors{"d1": {ID: "d1", Name: "Kofi"}},
		nil, zap.NewNop()).(*service)
	svc.now = func() time.Time { return now }
	return svc
}

func TestCreate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	rec, err := svc.Create(ctx, CreateInput{PatientID: "p1", DoctorID: "d1", Diagnosis: " Malaria ", Prescription: "ACT"}, "acc-d1")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, rec.Status)
	assert.Equal(t, "Malaria", rec.Diagnosis)
	assert.Equal(t, time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC), rec.VisitDate)

	followUp, err := svc.Create(ctx, CreateInput{PatientID: "p1", DoctorID: "d1", Status: "follow_up"}, "acc-d1")
	require.NoError(t, err)
	assert.Equal(t, StatusFollowUp, followUp.Status)

	_, err = svc.Create(ctx, CreateInput{PatientID: "p1", DoctorID: "d1", Status: "CLOSED"}, "acc-d1")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Create(ctx, CreateInput{PatientID: "p9", DoctorID: "d1"}, "acc-d1")
	assert.ErrorIs(t, err, patient.ErrPatientNotFound)

	_, err = svc.Create(ctx, CreateInput{PatientID: "p1", DoctorID: "d9"}, "acc-d1")
	assert.ErrorIs(t, err, doctor.ErrDoctorNotFound)
}

func TestUpdateAndList(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	older, err := svc.Create(ctx, CreateInput{PatientID: "p1", DoctorID: "d1", VisitDate: now.AddDate(0, -1, 0)}, "acc-d1")
	require.NoError(t, err)
	newer, err := svc.Create(ctx, CreateInput{PatientID: "p1", DoctorID: "d1"}, "acc-d1")
	require.NoError(t, err)

	resolved := "RESOLVED"
	updated, err := svc.Update(ctx, older.ID, UpdateInput{Status: &resolved}, "acc-d1")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, updated.Status)

	// Any valid status may follow any other.
	active := "ACTIVE"
	_, err = svc.Update(ctx, older.ID, UpdateInput{Status: &active}, "acc-d1")
	require.NoError(t, err)

	bogus := "DONE"
	_, err = svc.Update(ctx, older.ID, UpdateInput{Status: &bogus}, "acc-d1")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	recent, err := svc.List(ctx, Filter{PatientID: "p1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, newer.ID, recent[0].ID)

	_, err = svc.Update(ctx, "missing", UpdateInput{}, "acc-d1")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	require.NoError(t, svc.Delete(ctx, newer.ID, "acc-admin"))
	all, err := svc.List(ctx, Filter{DoctorID: "d1"})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
