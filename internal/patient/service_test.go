package patient

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/apperr"
)

type memoryRepo map[string]*Patient

func (r memoryRepo) Create(_ context.Context, p *Patient) error {
	cp := *p
	r[p.ID] = &cp
	return nil
}

func (r memoryRepo) GetByID(_ context.Context, id string) (*Patient, error) {
	p, ok := r[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (r memoryRepo) GetByAccountID(_ context.Context, accountID string) (*Patient, error) {
	for _, p := range r {
		if p.AccountID == accountID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (r memoryRepo) List(context.Context) ([]*Patient, error) {
	var out []*Patient
	for _, p := range r {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r memoryRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := r[p.ID]; !ok {
		return ErrPatientNotFound
	}
	cp := *p
	r[p.ID] = &cp
	return nil
}

func (r memoryRepo) Delete(_ context.Context, id string) error {
	if _, ok := r[id]; !ok {
		return ErrPatientNotFound
	}
	delete(r, id)
	return nil
}

func newTestService(now time.Time) Service {
	svc := NewService(memoryRepo{}, nil, zap.NewNop()).(*service)
	svc.now = func() time.Time { return now }
	return svc
}

func strPtr(s string) *string { return &s }

func TestCreate_DerivesAge(t *testing.T) {
	svc := newTestService(time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	p, err := svc.Create(ctx, "acc-1", Profile{
		DateOfBirth: strPtr("1990-03-15"),
		BloodGroup:  strPtr(" o+ "),
	})
	require.NoError(t, err)
	assert.Equal(t, 34, p.Age)
	assert.Equal(t, "O+", p.BloodGroup)

	byAccount, err := svc.GetByAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byAccount.ID)
	assert.Equal(t, 34, byAccount.Age)
}

func TestCreate_RejectsBadDateOfBirth(t *testing.T) {
	svc := newTestService(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := svc.Create(ctx, "acc-1", Profile{DateOfBirth: strPtr("2025-03-15")})
	assert.ErrorIs(t, err, ErrFutureDateOfBirth)

	_, err = svc.Create(ctx, "acc-1", Profile{DateOfBirth: strPtr("15/03/1990")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUpdateAndDelete(t *testing.T) {
	svc := newTestService(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	p, err := svc.Create(ctx, "acc-1", Profile{DateOfBirth: strPtr("2000-01-01"), Gender: strPtr("F")})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, p.ID, Profile{DateOfBirth: strPtr(""), Address: strPtr("12 Ring Road")}, "acc-admin")
	require.NoError(t, err)
	assert.Nil(t, updated.DateOfBirth)
	assert.Equal(t, 0, updated.Age)
	assert.Equal(t, "F", updated.Gender)
	assert.Equal(t, "12 Ring Road", updated.Address)

	require.NoError(t, svc.Delete(ctx, p.ID, "acc-admin"))
	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrPatientNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, p.ID, "acc-admin"), ErrPatientNotFound)
}

func TestPatient_MarshalJSON(t *testing.T) {
	dob := time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC)
	data, err := json.Marshal(&Patient{ID: "p1", DateOfBirth: &dob, Age: 35})
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "1990-03-15", out["dateOfBirth"])
	assert.Equal(t, float64(35), out["age"])

	data, err = json.Marshal(&Patient{ID: "p2"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dateOfBirth")
}
