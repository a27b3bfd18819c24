package api

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mesikahq/hospital-api/internal/auth"
	"github.com/mesikahq/hospital-api/internal/metric"
)

type metricRequest struct {
	RecordID        string   `json:"recordId"`
	RecordDate      string   `json:"recordDate"`
	MeasurementDate string   `json:"measurementDate"`
	Weight          *float64 `json:"weight"`
	Systolic        *int     `json:"systolic"`
	Diastolic       *int     `json:"diastolic"`
	HeartRate       *int     `json:"heartRate"`
	Notes           string   `json:"notes"`
}

func (r metricRequest) input() (metric.AddInput, error) {
	in := metric.AddInput{
		RecordID:  r.RecordID,
		Weight:    r.Weight,
		Systolic:  r.Systolic,
		Diastolic: r.Diastolic,
		HeartRate: r.HeartRate,
		Notes:     r.Notes,
	}
	for _, d := range []struct {
		field string
		value string
		dst   **time.Time
	}{
		{"recordDate", r.RecordDate, &in.RecordDate},
		{"measurementDate", r.MeasurementDate, &in.MeasurementDate},
	} {
		if d.value == "" {
			continue
		}
		t, err := parseDate(d.field, d.value)
		if err != nil {
			return in, err
		}
		*d.dst = &t
	}
	return in, nil
}

func (h *Handler) canReadMetrics(c *gin.Context, patientID string) bool {
	if principal(c).CanReachPatient(auth.PermMetricRead, auth.PermMetricReadOwn, patientID) {
		return true
	}
	h.respondError(c, errForbidden)
	return false
}

func (h *Handler) ListMetrics(c *gin.Context) {
	patientID := c.Param("patientId")
	if !h.canReadMetrics(c, patientID) {
		return
	}
	metrics, err := h.svc.Metrics.ListByPatient(c.Request.Context(), patientID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func (h *Handler) MetricChartData(c *gin.Context) {
	patientID := c.Param("patientId")
	if !h.canReadMetrics(c, patientID) {
		return
	}
	data, err := h.svc.Metrics.ChartData(c.Request.Context(), patientID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// AddMetrics records one metric per supplied value. A doctor is recorded as
// the measuring clinician.
func (h *Handler) AddMetrics(c *gin.Context) {
	var req metricRequest
	if !h.bind(c, &req) {
		return
	}

	p := principal(c)
	patientID := c.Param("patientId")
	if !p.CanReachPatient(auth.PermMetricWrite, auth.PermMetricWriteOwn, patientID) {
		h.respondError(c, errForbidden)
		return
	}

	in, err := req.input()
	if err != nil {
		h.respondError(c, err)
		return
	}
	if p.Is(auth.RoleDoctor) {
		in.DoctorID = p.ProfileID
	}

	metrics, err := h.svc.Metrics.Add(c.Request.Context(), patientID, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Health metrics recorded successfully", gin.H{"metrics": metrics})
}

// MetricChart streams a PNG chart. Query: from, to, thumbnail.
func (h *Handler) MetricChart(c *gin.Context) {
	patientID := c.Param("patientId")
	if !h.canReadMetrics(c, patientID) {
		return
	}

	t, err := metric.ParseChartName(c.Param("metric"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	var w metric.Window
	if w.From, err = dateQuery(c, "from"); err != nil {
		h.respondError(c, err)
		return
	}
	if w.To, err = dateQuery(c, "to"); err != nil {
		h.respondError(c, err)
		return
	}
	thumb, _ := strconv.ParseBool(c.Query("thumbnail"))

	png, err := h.svc.Metrics.Chart(c.Request.Context(), patientID, t, w, thumb)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// VisualizeMetrics lists chart URLs for the metric types the patient has.
func (h *Handler) VisualizeMetrics(c *gin.Context) {
	patientID := c.Param("patientId")
	if !h.canReadMetrics(c, patientID) {
		return
	}

	latest, err := h.svc.Metrics.Latest(c.Request.Context(), patientID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	present := map[metric.Type]bool{}
	for _, m := range latest {
		present[m.Value.Type()] = true
	}

	names := make([]string, 0, len(metric.ChartNames))
	for name, t := range metric.ChartNames {
		if present[t] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	charts := make([]gin.H, 0, len(names))
	for _, name := range names {
		url := fmt.Sprintf("/api/health-metrics/chart/%s/%s", patientID, name)
		charts = append(charts, gin.H{
			"metric":       name,
			"url":          url,
			"thumbnailUrl": url + "?thumbnail=true",
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"patientId": patientID,
		"charts":    charts,
		"chartData": "/api/health-metrics/patient/" + patientID + "/chart-data",
	})
}
