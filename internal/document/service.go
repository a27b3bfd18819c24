package document

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/apperr"
	"github.com/mesikahq/hospital-api/internal/audit"
	"github.com/mesikahq/hospital-api/internal/encryption"
	"github.com/mesikahq/hospital-api/internal/patient"
	"github.com/mesikahq/hospital-api/internal/record"
)

const defaultContentType = "application/octet-stream"

var (
	ErrDocumentNotFound = apperr.NotFound("Document not found")
	ErrEmptyFile        = apperr.Validation("Please select a file to upload")
	ErrRecordMismatch   = apperr.Validation("Medical record does not belong to this patient")
)

type PatientFinder interface {
	Get(ctx context.Context, id string) (*patient.Patient, error)
}

type RecordFinder interface {
	Get(ctx context.Context, id string) (*record.MedicalRecord, error)
}

type Service interface {
	Upload(ctx context.Context, in UploadInput, uploader string) (*Document, error)
	Get(ctx context.Context, id string) (*Document, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Document, error)
	// Download returns the metadata and the decrypted payload.
	Download(ctx context.Context, id, actor string) (*Document, []byte, error)
	Delete(ctx context.Context, id, actor string) error
}

type service struct {
	repo     Repository
	patients PatientFinder
	records  RecordFinder
	sealer   encryption.Service
	maxSize  int64
	audit    audit.Service
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients PatientFinder, records RecordFinder, sealer encryption.Service, maxSize int64, auditSvc audit.Service, logger *zap.Logger) Service {
	return &service{
		repo:     repo,
		patients: patients,
		records:  records,
		sealer:   sealer,
		maxSize:  maxSize,
		audit:    auditSvc,
		logger:   logger,
		now:      time.Now,
	}
}

// ContentType infers a MIME type from the filename extension.
func ContentType(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return defaultContentType
}

func (s *service) Upload(ctx context.Context, in UploadInput, uploader string) (*Document, error) {
	if len(in.Data) == 0 {
		return nil, ErrEmptyFile
	}
	if s.maxSize > 0 && int64(len(in.Data)) > s.maxSize {
		return nil, apperr.Validation(fmt.Sprintf("File exceeds the maximum upload size of %d bytes", s.maxSize))
	}

	p, err := s.patients.Get(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if in.RecordID != "" {
		rec, err := s.records.Get(ctx, in.RecordID)
		if err != nil {
			return nil, err
		}
		if rec.PatientID != p.ID {
			return nil, ErrRecordMismatch
		}
	}

	filename := filepath.Base(in.Filename)
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = filename
	}

	sealed, err := s.sealer.Seal(in.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt document: %w", err)
	}

	doc := &Document{
		ID:          uuid.New().String(),
		RecordID:    in.RecordID,
		PatientID:   p.ID,
		Name:        name,
		Type:        strings.TrimSpace(in.Type),
		Description: strings.TrimSpace(in.Description),
		Filename:    filename,
		ContentType: ContentType(filename),
		Size:        int64(len(in.Data)),
		UploadedBy:  uploader,
		UploadDate:  s.now().UTC(),
	}

	if err := s.repo.Create(ctx, doc, sealed); err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventModify, uploader, "UPLOAD", doc.ID)
	return doc, nil
}

func (s *service) Get(ctx context.Context, id string) (*Document, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) ListByPatient(ctx context.Context, patientID string) ([]*Document, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *service) Download(ctx context.Context, id, actor string) (*Document, []byte, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	sealed, err := s.repo.Payload(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.sealer.Open(sealed)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt document %s: %w", id, err)
	}

	s.logAudit(ctx, audit.EventAccess, actor, "DOWNLOAD", doc.ID)
	return doc, data, nil
}

func (s *service) Delete(ctx context.Context, id, actor string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, audit.EventDelete, actor, "DELETE", id)
	return nil
}

func (s *service) logAudit(ctx context.Context, eventType audit.EventType, actor, action, id string) {
	if s.audit == nil {
		return
	}
	err := s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:   eventType,
		UserID:      actor,
		Action:      action,
		Resource:    "document",
		ResourceID:  id,
		Status:      "success",
		Sensitivity: "PHI",
	})
	if err != nil {
		s.logger.Warn("failed to record audit event", zap.String("action", action), zap.Error(err))
	}
}
