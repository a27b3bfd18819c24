package doctor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryRepo struct {
	doctors map[string]*Doctor
}

func (r *memoryRepo) Create(_ context.Context, d *Doctor) error {
	for _, existing := range r.doctors {
		if existing.AccountID == d.AccountID {
			return ErrProfileExists
		}
	}
	cp := *d
	cp.Name = "Dr " + d.AccountID
	r.doctors[d.ID] = &cp
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*Doctor, error) {
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memoryRepo) GetByAccountID(_ context.Context, accountID string) (*Doctor, error) {
	for _, d := range r.doctors {
		if d.AccountID == accountID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (r *memoryRepo) List(context.Context) ([]*Doctor, error) {
	var out []*Doctor
	for _, d := range r.doctors {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memoryRepo) Update(_ context.Context, d *Doctor) error {
	if _, ok := r.doctors[d.ID]; !ok {
		return ErrDoctorNotFound
	}
	cp := *d
	r.doctors[d.ID] = &cp
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.doctors[id]; !ok {
		return ErrDoctorNotFound
	}
	delete(r.doctors, id)
	return nil
}

func TestService(t *testing.T) {
	repo := &memoryRepo{doctors: map[string]*Doctor{}}
	svc := NewService(repo, nil, zap.NewNop())
	ctx := context.Background()

	spec := "Cardiology"
	d, err := svc.Create(ctx, "acc-1", Profile{Specialization: &spec})
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", d.Specialization)
	assert.Equal(t, "Dr acc-1", d.Name)

	_, err = svc.Create(ctx, "acc-1", Profile{})
	assert.ErrorIs(t, err, ErrProfileExists)

	byAccount, err := svc.GetByAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, d.ID, byAccount.ID)

	years := 12
	charges := 150.5
	updated, err := svc.Update(ctx, d.ID, Profile{YearsOfExperience: &years, Charges: &charges}, "admin")
	require.NoError(t, err)
	assert.Equal(t, 12, updated.YearsOfExperience)
	assert.Equal(t, 150.5, updated.Charges)
	assert.Equal(t, "Cardiology", updated.Specialization)

	negative := -1
	_, err = svc.Update(ctx, d.ID, Profile{YearsOfExperience: &negative}, "admin")
	assert.ErrorIs(t, err, ErrInvalidExperience)

	require.NoError(t, svc.Delete(ctx, d.ID, "admin"))
	_, err = svc.Get(ctx, d.ID)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}
