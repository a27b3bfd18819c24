package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/audit"
)

// AccessLog records every request as an ACCESS audit event without
// delaying the response.
type AccessLog struct {
	audit   audit.Service
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAccessLog(auditSvc audit.Service, logger *zap.Logger) *AccessLog {
	return &AccessLog{
		audit:   auditSvc,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

func (l *AccessLog) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		outcome := "success"
		if status >= 400 {
			outcome = "failure"
		}

		resource := c.FullPath()
		if resource == "" {
			resource = c.Request.URL.Path
		}

		event := &audit.AuditEvent{
			EventType:   audit.EventAccess,
			UserID:      c.GetString("user_id"),
			Action:      c.Request.Method,
			Resource:    resource,
			IPAddress:   c.ClientIP(),
			UserAgent:   c.Request.UserAgent(),
			RequestID:   c.GetString("request_id"),
			Status:      outcome,
			Details:     audit.Details(map[string]string{"path": c.Request.URL.Path, "status": strconv.Itoa(status)}),
			Sensitivity: "LOW",
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
			defer cancel()

			if err := l.audit.LogEvent(ctx, event); err != nil {
				l.logger.Warn("Failed to record access event",
					zap.String("request_id", event.RequestID),
					zap.Error(err),
				)
			}
		}()
	}
}

// Wait blocks until in-flight access events are written.
func (l *AccessLog) Wait() {
	l.wg.Wait()
}
