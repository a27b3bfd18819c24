package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrSearchUnavailable = errors.New("audit search is not configured")

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Query selects events by exact field values and an optional time range.
// Empty fields are ignored.
type Query struct {
	UserID     string
	EventType  EventType
	Resource   string
	ResourceID string
	Action     string
	Since      *time.Time
	Until      *time.Time
	From       int
	Size       int
}

type Page struct {
	Total  int          `json:"total"`
	From   int          `json:"from"`
	Size   int          `json:"size"`
	Events []AuditEvent `json:"events"`
}

func (q Query) normalized() Query {
	if q.From < 0 {
		q.From = 0
	}
	switch {
	case q.Size <= 0:
		q.Size = DefaultPageSize
	case q.Size > MaxPageSize:
		q.Size = MaxPageSize
	}
	return q
}

// body renders q as an Elasticsearch bool query. String fields are matched
// on their keyword sub-field.
func (q Query) body() map[string]interface{} {
	filter := []map[string]interface{}{}
	for field, value := range map[string]string{
		"user_id":     q.UserID,
		"event_type":  string(q.EventType),
		"resource":    q.Resource,
		"resource_id": q.ResourceID,
		"action":      q.Action,
	} {
		if value == "" {
			continue
		}
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{field + ".keyword": value},
		})
	}

	if q.Since != nil || q.Until != nil {
		bounds := map[string]interface{}{}
		if q.Since != nil {
			bounds["gte"] = q.Since.UTC().Format(time.RFC3339)
		}
		if q.Until != nil {
			bounds["lt"] = q.Until.UTC().Format(time.RFC3339)
		}
		filter = append(filter, map[string]interface{}{
			"range": map[string]interface{}{"timestamp": bounds},
		})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filter},
		},
		"sort": []map[string]interface{}{
			{"timestamp": map[string]interface{}{"order": "desc"}},
		},
		"from":             q.From,
		"size":             q.Size,
		"track_total_hits": true,
	}
}

func (s *service) Search(ctx context.Context, q Query) (*Page, error) {
	if s.es == nil {
		return nil, ErrSearchUnavailable
	}
	q = q.normalized()

	body, err := json.Marshal(q.body())
	if err != nil {
		return nil, err
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index+"_*"),
		s.es.Search.WithBody(bytes.NewReader(body)),
		s.es.Search.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return nil, fmt.Errorf("search audit events: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search audit events: %s", res.Status())
	}

	var result struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source AuditEvent `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode audit search response: %w", err)
	}

	page := &Page{
		Total:  result.Hits.Total.Value,
		From:   q.From,
		Size:   q.Size,
		Events: make([]AuditEvent, 0, len(result.Hits.Hits)),
	}
	for _, hit := range result.Hits.Hits {
		page.Events = append(page.Events, hit.Source)
	}
	return page, nil
}
