package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mesikahq/hospital-api/internal/audit"
	"github.com/mesikahq/hospital-api/internal/dates"
	"github.com/mesikahq/hospital-api/internal/stats"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) AdminDashboard(c *gin.Context) {
	s, err := h.svc.Stats.AdminDashboard(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) Reports(c *gin.Context) {
	s, err := h.svc.Stats.AdminDashboard(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"statistics":    s,
		"generatedDate": s.GeneratedAt,
	})
}

// ReportStatistics groups the dashboard figures by subject.
func (h *Handler) ReportStatistics(c *gin.Context) {
	s, err := h.svc.Stats.AdminDashboard(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"adminStats": s,
		"userStats": gin.H{
			"doctors":  s.DoctorCount,
			"nurses":   s.NurseCount,
			"patients": s.PatientCount,
			"admins":   s.AdminCount,
			"total":    s.DoctorCount + s.NurseCount + s.PatientCount + s.AdminCount,
		},
		"appointmentStats": gin.H{
			"total":    s.TotalAppointments,
			"today":    s.TodayAppointments,
			"byStatus": s.AppointmentStatusCounts,
		},
		"reportDate": dates.Format(s.GeneratedAt),
	})
}

// ExportReport answers the statistics as an XLSX workbook.
func (h *Handler) ExportReport(c *gin.Context) {
	s, err := h.svc.Stats.AdminDashboard(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := stats.WriteWorkbook(&buf, s); err != nil {
		h.respondError(c, err)
		return
	}

	name := fmt.Sprintf("hospital-statistics-%s.xlsx", dates.Format(s.GeneratedAt))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// AuditLogs pages through audit events. Query: user_id, event_type,
// resource, resource_id, action, since, until (YYYY-MM-DD), from, size.
func (h *Handler) AuditLogs(c *gin.Context) {
	q := audit.Query{
		UserID:     c.Query("user_id"),
		EventType:  audit.EventType(strings.ToUpper(c.Query("event_type"))),
		Resource:   c.Query("resource"),
		ResourceID: c.Query("resource_id"),
		Action:     c.Query("action"),
		From:       intQuery(c, "from", 0, 0),
		Size:       intQuery(c, "size", audit.DefaultPageSize, audit.MaxPageSize),
	}

	var err error
	if q.Since, err = dateQuery(c, "since"); err != nil {
		h.respondError(c, err)
		return
	}
	until, err := dateQuery(c, "until")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if until != nil {
		// inclusive of the whole day
		end := until.AddDate(0, 0, 1)
		q.Until = &end
	}

	page, err := h.svc.Audit.Search(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
