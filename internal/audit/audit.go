// Package audit records who touched which resource. Every event is mirrored
// to a JSON logrus stream and, when a cluster is configured, indexed into a
// monthly Elasticsearch index.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventAccess EventType = "ACCESS"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
	EventLogin  EventType = "LOGIN"
)

type AuditEvent struct {
	Timestamp   time.Time       `json:"timestamp"`
	EventType   EventType       `json:"event_type"`
	UserID      string          `json:"user_id"`
	Action      string          `json:"action"`
	Resource    string          `json:"resource"`
	ResourceID  string          `json:"resource_id,omitempty"`
	IPAddress   string          `json:"ip_address,omitempty"`
	UserAgent   string          `json:"user_agent,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
	Status      string          `json:"status"`
	Details     json.RawMessage `json:"details,omitempty"`
	Sensitivity string          `json:"sensitivity"`
}

func (e *AuditEvent) fields() logrus.Fields {
	f := logrus.Fields{
		"event_type":  e.EventType,
		"user_id":     e.UserID,
		"action":      e.Action,
		"resource":    e.Resource,
		"status":      e.Status,
		"sensitivity": e.Sensitivity,
	}
	for k, v := range map[string]string{
		"resource_id": e.ResourceID,
		"ip_address":  e.IPAddress,
		"request_id":  e.RequestID,
	} {
		if v != "" {
			f[k] = v
		}
	}
	return f
}

type Service interface {
	LogEvent(ctx context.Context, event *AuditEvent) error
	// Search pages through indexed events, newest first. It returns
	// ErrSearchUnavailable when no cluster is configured.
	Search(ctx context.Context, q Query) (*Page, error)
}

type service struct {
	es     *elasticsearch.Client
	index  string
	logger *logrus.Logger
	now    func() time.Time
}

// NewService writes the JSON mirror to out. es may be nil.
func NewService(es *elasticsearch.Client, index string, out io.Writer) Service {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	logger.SetOutput(out)

	return &service{
		es:     es,
		index:  index,
		logger: logger,
		now:    time.Now,
	}
}

// monthlyIndex names the index holding events of t's month.
func (s *service) monthlyIndex(t time.Time) string {
	return s.index + "_" + t.UTC().Format("2006.01")
}

func (s *service) LogEvent(ctx context.Context, event *AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}

	s.logger.WithFields(event.fields()).Info("Audit event logged")

	if s.es == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}

	res, err := s.es.Index(
		s.monthlyIndex(event.Timestamp),
		bytes.NewReader(payload),
		s.es.Index.WithContext(ctx),
	)
	if err != nil {
		s.logger.WithError(err).Error("Failed to index audit event")
		return fmt.Errorf("index audit event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		err := fmt.Errorf("index audit event: %s", res.Status())
		s.logger.WithError(err).Error("Failed to index audit event")
		return err
	}
	return nil
}

// Details marshals v for AuditEvent.Details, dropping it on failure.
func Details(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
