package document

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/apperr"
	"github.com/mesikahq/hospital-api/internal/audit"
	"github.com/mesikahq/hospital-api/internal/encryption"
	"github.com/mesikahq/hospital-api/internal/patient"
	"github.com/mesikahq/hospital-api/internal/record"
)

type memoryRepo struct {
	docs     map[string]Document
	payloads map[string][]byte
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{docs: map[string]Document{}, payloads: map[string][]byte{}}
}

func (r *memoryRepo) Create(_ context.Context, doc *Document, payload []byte) error {
	r.docs[doc.ID] = *doc
	r.payloads[doc.ID] = payload
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (*Document, error) {
	doc, ok := r.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return &doc, nil
}

func (r *memoryRepo) Payload(_ context.Context, id string) ([]byte, error) {
	p, ok := r.payloads[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListByPatient(_ context.Context, patientID string) ([]*Document, error) {
	var out []*Document
	for _, d := range r.docs {
		if d.PatientID == patientID {
			d := d
			out = append(out, &d)
		}
	}
	return out, nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.docs[id]; !ok {
		return ErrDocumentNotFound
	}
	delete(r.docs, id)
	delete(r.payloads, id)
	return nil
}

type patients map[string]*patient.Patient

func (p patients) Get(_ context.Context, id string) (*patient.Patient, error) {
	if v, ok := p[id]; ok {
		return v, nil
	}
	return nil, patient.ErrPatientNotFound
}

type records map[string]*record.MedicalRecord

func (r records) Get(_ context.Context, id string) (*record.MedicalRecord, error) {
	if v, ok := r[id]; ok {
		return v, nil
	}
	return nil, record.ErrRecordNotFound
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.AuditEvent
}

func (a *recordingAudit) LogEvent(_ context.Context, e *audit.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, *e)
	return nil
}

func (a *recordingAudit) Search(context.Context, audit.Query) (*audit.Page, error) {
	return nil, audit.ErrSearchUnavailable
}

func newTestService(t *testing.T, repo Repository, auditSvc audit.Service) Service {
	t.Helper()
	sealer, err := encryption.NewService("")
	require.NoError(t, err)

	svc := NewService(repo,
		patients{"p1": {ID: "p1"}, "p2": {ID: "p2"}},
		records{"r1": {ID: "r1", PatientID: "p1"}},
		sealer, 64, auditSvc, zap.NewNop()).(*service)
	svc.now = func() time.Time { return time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestUploadDownload(t *testing.T) {
	repo := newMemoryRepo()
	events := &recordingAudit{}
	svc := newTestService(t, repo, events)
	ctx := context.Background()

	payload := []byte("%PDF-1.4 lab results")
	doc, err := svc.Upload(ctx, UploadInput{
		PatientID: "p1",
		RecordID:  "r1",
		Type:      "LAB_RESULT",
		Filename:  "../results.PDF",
		Data:      payload,
	}, "acc-p1")
	require.NoError(t, err)
	assert.Equal(t, "results.PDF", doc.Filename)
	assert.Equal(t, "results.PDF", doc.Name)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, int64(len(payload)), doc.Size)

	// Stored sealed.
	assert.False(t, bytes.Contains(repo.payloads[doc.ID], payload))

	got, data, err := svc.Download(ctx, doc.ID, "acc-d1")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, payload, data)

	require.Len(t, events.events, 2)
	assert.Equal(t, "UPLOAD", events.events[0].Action)
	assert.Equal(t, audit.EventAccess, events.events[1].EventType)

	list, err := svc.ListByPatient(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, doc.ID, "acc-admin"))
	_, _, err = svc.Download(ctx, doc.ID, "acc-d1")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestUpload_Validation(t *testing.T) {
	svc := newTestService(t, newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.Upload(ctx, UploadInput{PatientID: "p1", Filename: "a.txt"}, "u")
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = svc.Upload(ctx, UploadInput{PatientID: "p1", Filename: "a.txt", Data: make([]byte, 65)}, "u")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Upload(ctx, UploadInput{PatientID: "p9", Filename: "a.txt", Data: []byte("x")}, "u")
	assert.ErrorIs(t, err, patient.ErrPatientNotFound)

	_, err = svc.Upload(ctx, UploadInput{PatientID: "p2", RecordID: "r1", Filename: "a.txt", Data: []byte("x")}, "u")
	assert.ErrorIs(t, err, ErrRecordMismatch)

	_, err = svc.Upload(ctx, UploadInput{PatientID: "p1", RecordID: "r9", Filename: "a.txt", Data: []byte("x")}, "u")
	assert.ErrorIs(t, err, record.ErrRecordNotFound)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType("scan.pdf"))
	assert.Equal(t, "image/png", ContentType("xray.PNG"))
	assert.Equal(t, defaultContentType, ContentType("notes.zzq"))
	assert.Equal(t, defaultContentType, ContentType("README"))
}
