package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/apperr"
	"github.com/mesikahq/hospital-api/internal/dates"
	"github.com/mesikahq/hospital-api/internal/doctor"
	"github.com/mesikahq/hospital-api/internal/notification"
	"github.com/mesikahq/hospital-api/internal/patient"
)

type memoryRepo struct {
	mu    sync.Mutex
	slots sync.Map
	rows  map[string]*Appointment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[string]*Appointment)}
}

func (r *memoryRepo) WithSlotLock(_ context.Context, doctorID string, day time.Time, fn func(Repository) error) error {
	m, _ := r.slots.LoadOrStore(doctorID+"|"+dates.Format(day), &sync.Mutex{})
	slot := m.(*sync.Mutex)
	slot.Lock()
	defer slot.Unlock()
	return fn(r)
}

func (r *memoryRepo) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.rows[a.ID] = &cp
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memoryRepo) List(_ context.Context, f Filter) ([]*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Appointment
	for _, a := range r.rows {
		switch {
		case f.PatientID != "" && a.PatientID != f.PatientID,
			f.DoctorID != "" && a.DoctorID != f.DoctorID,
			f.Status != "" && a.Status != f.Status,
			f.On != nil && !a.Date.Equal(dates.Day(*f.On)),
			f.From != nil && a.Date.Before(dates.Day(*f.From)):
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if f.Newest {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (r *memoryRepo) ListScheduled(ctx context.Context, doctorID string, day time.Time) ([]*Appointment, error) {
	return r.List(ctx, Filter{DoctorID: doctorID, On: &day, Status: StatusScheduled})
}

func (r *memoryRepo) Update(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[a.ID]; !ok {
		return ErrAppointmentNotFound
	}
	cp := *a
	r.rows[a.ID] = &cp
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.rows, id)
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

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	last   notification.Notice
}

func (n *recordingNotifier) record(kind string, notice notification.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, kind)
	n.last = notice
}

func (n *recordingNotifier) AppointmentScheduled(v notification.Notice)   { n.record("scheduled", v) }
func (n *recordingNotifier) AppointmentRescheduled(v notification.Notice) { n.record("rescheduled", v) }
func (n *recordingNotifier) AppointmentCancelled(v notification.Notice)   { n.record("cancelled", v) }
func (n *recordingNotifier) AppointmentReminder(v notification.Notice)    { n.record("reminder", v) }

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

type fixture struct {
	svc      Service
	repo     *memoryRepo
	notifier *recordingNotifier
}

var (
	clock = time.Date(2025, 5, 20, 14, 30, 0, 0, time.UTC)
	june1 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	june2 = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	staff = Actor{AccountID: "acc-d", Name: "Kofi Boateng"}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pts := patients{}
	for i := 1; i <= 30; i++ {
		id := fmt.Sprintf("P%d", i)
		pts[id] = &patient.Patient{ID: id, Name: "Patient " + id, Email: id + "@example.com"}
	}
	docs := doctors{
		"D":  {ID: "D", Name: "Kofi Boateng"},
		"D2": {ID: "D2", Name: "Abena Owusu"},
	}

	repo := newMemoryRepo()
	notifier := &recordingNotifier{}
	svc := NewService(repo, pts, docs, notifier, nil, zap.NewNop()).(*service)
	svc.now = func() time.Time { return clock }

	return &fixture{svc: svc, repo: repo, notifier: notifier}
}

func (f *fixture) schedule(t *testing.T, patientID, doctorID string, day time.Time) *Appointment {
	t.Helper()
	a, err := f.svc.Schedule(context.Background(), ScheduleRequest{
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      day,
		CreatedBy: "acc-" + patientID,
	})
	require.NoError(t, err)
	return a
}

func TestSchedule(t *testing.T) {
	f := newFixture(t)

	a := f.schedule(t, "P1", "D", june1)
	assert.Equal(t, StatusScheduled, a.Status)
	assert.Equal(t, june1, a.Date)
	assert.Equal(t, "acc-P1", a.CreatedBy)

	assert.Equal(t, []string{"scheduled"}, f.notifier.kinds())
	assert.Equal(t, "P1@example.com", f.notifier.last.PatientEmail)
	assert.Equal(t, "Kofi Boateng", f.notifier.last.DoctorName)
	assert.Equal(t, "2025-06-01", f.notifier.last.Date)
}

func TestSchedule_PastDateAlwaysFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, day := range []time.Time{
		clock.AddDate(0, 0, -1),
		clock.AddDate(-1, 0, 0),
		time.Date(2025, 5, 19, 23, 59, 0, 0, time.UTC),
	} {
		_, err := f.svc.Schedule(ctx, ScheduleRequest{PatientID: "P1", DoctorID: "D", Date: day})
		assert.ErrorIs(t, err, ErrPastDate, day.String())
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	}

	_, err := f.svc.Schedule(ctx, ScheduleRequest{PatientID: "missing", DoctorID: "D", Date: clock.AddDate(0, 0, -3)})
	assert.ErrorIs(t, err, ErrPastDate)

	// Today is bookable.
	f.schedule(t, "P1", "D", clock)
}

func TestSchedule_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Schedule(ctx, ScheduleRequest{PatientID: "P1", DoctorID: "D"})
	assert.ErrorIs(t, err, ErrMissingDate)

	long := make([]byte, maxNotesLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = f.svc.Schedule(ctx, ScheduleRequest{PatientID: "P1", DoctorID: "D", Date: june1, Notes: string(long)})
	assert.ErrorIs(t, err, ErrNotesTooLong)

	_, err = f.svc.Schedule(ctx, ScheduleRequest{PatientID: "nobody", DoctorID: "D", Date: june1})
	assert.ErrorIs(t, err, patient.ErrPatientNotFound)

	_, err = f.svc.Schedule(ctx, ScheduleRequest{PatientID: "P1", DoctorID: "nobody", Date: june1})
	assert.ErrorIs(t, err, doctor.ErrDoctorNotFound)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	assert.Empty(t, f.notifier.kinds())
}

func TestSchedule_NotesCountCharacters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	accented := strings.Repeat("é", maxNotesLength)
	require.Greater(t, len(accented), maxNotesLength)

	a, err := f.svc.Schedule(ctx, ScheduleRequest{PatientID: "P1", DoctorID: "D", Date: june1, Notes: accented})
	require.NoError(t, err)
	assert.Equal(t, accented, a.Notes)

	_, err = f.svc.Schedule(ctx, ScheduleRequest{PatientID: "P2", DoctorID: "D", Date: june1.AddDate(0, 0, 1), Notes: accented + "é"})
	assert.ErrorIs(t, err, ErrNotesTooLong)
}

func TestSchedule_SequentialConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.schedule(t, "P1", "D", june1)

	_, err := f.svc.Schedule(ctx, ScheduleRequest{PatientID: "P2", DoctorID: "D", Date: june1})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "Doctor already has an appointment scheduled on this date", apperr.Message(err))

	// Another doctor or another day is free.
	f.schedule(t, "P2", "D2", june1)
	f.schedule(t, "P2", "D", june2)
}

func TestSchedule_ConcurrentBookingsKeepOneScheduled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 1; i <= attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Schedule(ctx, ScheduleRequest{
				PatientID: fmt.Sprintf("P%d", i),
				DoctorID:  "D",
				Date:      june1,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)

	scheduled, err := f.repo.ListScheduled(ctx, "D", june1)
	require.NoError(t, err)
	assert.Len(t, scheduled, 1)
}

func TestScenario_RescheduleAndCancelFreeTheSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p1 := f.schedule(t, "P1", "D", june1)

	_, err := f.svc.Schedule(ctx, ScheduleRequest{PatientID: "P2", DoctorID: "D", Date: june1})
	require.ErrorIs(t, err, ErrConflict)

	moved, err := f.svc.Reschedule(ctx, p1.ID, june2, staff)
	require.NoError(t, err)
	assert.Equal(t, june2, moved.Date)
	assert.Equal(t, "Kofi Boateng", moved.UpdatedBy)
	assert.Equal(t, StatusScheduled, moved.Status)

	conflict, err := f.svc.HasConflict(ctx, "D", june1, "")
	require.NoError(t, err)
	assert.False(t, conflict)

	conflict, err = f.svc.HasConflict(ctx, "D", june2, "")
	require.NoError(t, err)
	assert.True(t, conflict)

	f.schedule(t, "P2", "D", june1)

	_, err = f.svc.Cancel(ctx, p1.ID, staff)
	require.NoError(t, err)

	conflict, err = f.svc.HasConflict(ctx, "D", june2, "")
	require.NoError(t, err)
	assert.False(t, conflict, "cancelled appointments never conflict")

	assert.Equal(t, []string{"scheduled", "rescheduled", "scheduled", "cancelled"}, f.notifier.kinds())
}

func TestReschedule_ExcludesItself(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.schedule(t, "P1", "D", june1)
	moved, err := f.svc.Reschedule(ctx, a.ID, june1, staff)
	require.NoError(t, err)
	assert.Equal(t, june1, moved.Date)

	f.schedule(t, "P2", "D", june2)
	_, err = f.svc.Reschedule(ctx, a.ID, june2, staff)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.Reschedule(ctx, a.ID, clock.AddDate(0, 0, -1), staff)
	assert.ErrorIs(t, err, ErrPastDate)

	_, err = f.svc.Reschedule(ctx, "missing", june2, staff)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestReschedule_ClosedAppointmentsFail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cancelled := f.schedule(t, "P1", "D", june1)
	_, err := f.svc.Cancel(ctx, cancelled.ID, staff)
	require.NoError(t, err)

	completed := f.schedule(t, "P2", "D", june2)
	_, err = f.svc.Complete(ctx, completed.ID, staff)
	require.NoError(t, err)

	for _, id := range []string{cancelled.ID, completed.ID} {
		_, err := f.svc.Reschedule(ctx, id, june2.AddDate(0, 0, 7), staff)
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Equal(t, "Only scheduled appointments can be rescheduled", apperr.Message(err))
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Cancel(ctx, "missing", staff)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	a := f.schedule(t, "P1", "D", june1)
	cancelled, err := f.svc.Cancel(ctx, a.ID, Actor{AccountID: "acc-P1", Name: "Patient P1"})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "Patient P1", cancelled.UpdatedBy)
	assert.Equal(t, clock, cancelled.UpdatedAt)

	_, err = f.svc.Cancel(ctx, a.ID, staff)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.Complete(ctx, a.ID, staff)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestHasConflict_ExcludesExactlyOneID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Seed two SCHEDULED rows directly so exclusion can be observed.
	for _, id := range []string{"a1", "a2"} {
		require.NoError(t, f.repo.Create(ctx, &Appointment{ID: id, DoctorID: "D", Date: june1, Status: StatusScheduled}))
	}
	require.NoError(t, f.repo.Create(ctx, &Appointment{ID: "a3", DoctorID: "D", Date: june2, Status: StatusScheduled}))

	tests := []struct {
		day     time.Time
		exclude string
		want    bool
	}{
		{june1, "", true},
		{june1, "a1", true},
		{june1, "a2", true},
		{june1, "unknown", true},
		{june2, "a3", false},
		{june2, "a1", true},
		{june2, "", true},
	}
	for _, tt := range tests {
		got, err := f.svc.HasConflict(ctx, "D", tt.day, tt.exclude)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s exclude %q", dates.Format(tt.day), tt.exclude)
	}
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	today := f.schedule(t, "P1", "D", clock)
	later := f.schedule(t, "P1", "D", june2)
	soon := f.schedule(t, "P1", "D2", june1)
	other := f.schedule(t, "P2", "D", june1)

	old := &Appointment{ID: "old", PatientID: "P1", DoctorID: "D", Date: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), Status: StatusCompleted}
	require.NoError(t, f.repo.Create(ctx, old))
	_, err := f.svc.Cancel(ctx, later.ID, staff)
	require.NoError(t, err)

	todays, err := f.svc.Today(ctx, "D")
	require.NoError(t, err)
	require.Len(t, todays, 1)
	assert.Equal(t, today.ID, todays[0].ID)

	upcoming, err := f.svc.Upcoming(ctx, Filter{PatientID: "P1"})
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, today.ID, upcoming[0].ID)
	assert.Equal(t, soon.ID, upcoming[1].ID)

	past, err := f.svc.Past(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, past, 2)
	assert.Equal(t, later.ID, past[0].ID)
	assert.Equal(t, "old", past[1].ID)

	byDoctor, err := f.svc.List(ctx, Filter{DoctorID: "D", Status: StatusScheduled})
	require.NoError(t, err)
	assert.Len(t, byDoctor, 2)

	require.NoError(t, f.svc.Delete(ctx, other.ID, staff))
	_, err = f.svc.Get(ctx, other.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestSendReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.schedule(t, "P1", "D", june1)
	f.schedule(t, "P2", "D2", june1)
	c := f.schedule(t, "P3", "D", june2)
	f.schedule(t, "P4", "D2", june2)
	_, err := f.svc.Cancel(ctx, c.ID, staff)
	require.NoError(t, err)

	sent, err := f.svc.SendReminders(ctx, june2)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	sent, err = f.svc.SendReminders(ctx, june1)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
}

func TestNextRun(t *testing.T) {
	offset, err := ParseReminderTime("08:00")
	require.NoError(t, err)

	before := time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), nextRun(before, offset))

	after := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), nextRun(after, offset))

	_, err = ParseReminderTime("8am")
	assert.Error(t, err)
}

func TestReminderLoop_StopsWithContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		ReminderLoop(ctx, f.svc, time.Hour, zap.NewNop())
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reminder loop did not stop")
	}
}
