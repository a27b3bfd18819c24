package nurse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo map[string]*Nurse

func (r memoryRepo) Create(_ context.Context, n *Nurse) error {
	cp := *n
	r[n.ID] = &cp
	return nil
}

func (r memoryRepo) GetByID(_ context.Context, id string) (*Nurse, error) {
	n, ok := r[id]
	if !ok {
		return nil, ErrNurseNotFound
	}
	cp := *n
	return &cp, nil
}

func (r memoryRepo) GetByAccountID(_ context.Context, accountID string) (*Nurse, error) {
	for _, n := range r {
		if n.AccountID == accountID {
			cp := *n
			return &cp, nil
		}
	}
	return nil, ErrNurseNotFound
}

func (r memoryRepo) List(context.Context) ([]*Nurse, error) {
	var out []*Nurse
	for _, n := range r {
		out = append(out, n)
	}
	return out, nil
}

func (r memoryRepo) Update(_ context.Context, n *Nurse) error {
	cp := *n
	r[n.ID] = &cp
	return nil
}

func TestService(t *testing.T) {
	svc := NewService(memoryRepo{})
	ctx := context.Background()

	phone := "+233201234567"
	n, err := svc.Create(ctx, "acc-9", Profile{PhoneNumber: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, n.PhoneNumber)

	got, err := svc.GetByAccount(ctx, "acc-9")
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)

	years := 4
	updated, err := svc.Update(ctx, n.ID, Profile{YearsOfExperience: &years})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.YearsOfExperience)
	assert.Equal(t, phone, updated.PhoneNumber)

	negative := -3
	_, err = svc.Update(ctx, n.ID, Profile{YearsOfExperience: &negative})
	assert.ErrorIs(t, err, ErrInvalidExperience)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNurseNotFound)
}
