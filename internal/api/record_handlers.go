package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mesikahq/hospital-api/internal/auth"
	"github.com/mesikahq/hospital-api/internal/record"
)

type recordRequest struct {
	PatientID    string  `json:"patientId"`
	DoctorID     string  `json:"doctorId"`
	VisitDate    string  `json:"visitDate"`
	Diagnosis    *string `json:"diagnosis"`
	Prescription *string `json:"prescription"`
	Status       *string `json:"status"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ListRecords returns all records to staff and only their own to patients.
func (h *Handler) ListRecords(c *gin.Context) {
	p := principal(c)
	f := record.Filter{
		PatientID: c.Query("patientId"),
		DoctorID:  c.Query("doctorId"),
	}
	if !p.Can(auth.PermRecordRead) {
		id, err := ownProfile(p, auth.RolePatient)
		if err != nil {
			h.respondError(c, err)
			return
		}
		f.PatientID = id
	}

	records, err := h.svc.Records.List(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) PatientRecords(c *gin.Context) {
	patientID := c.Param("patientId")
	if !principal(c).CanReachPatient(auth.PermRecordRead, auth.PermRecordReadOwn, patientID) {
		h.respondError(c, errForbidden)
		return
	}
	records, err := h.svc.Records.List(c.Request.Context(), record.Filter{PatientID: patientID})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) GetRecord(c *gin.Context) {
	rec, err := h.svc.Records.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !principal(c).CanReachPatient(auth.PermRecordRead, auth.PermRecordReadOwn, rec.PatientID) {
		h.respondError(c, errForbidden)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// CreateRecord files a visit. Doctors always file under their own profile.
func (h *Handler) CreateRecord(c *gin.Context) {
	var req recordRequest
	if !h.bind(c, &req) {
		return
	}

	p := principal(c)
	in := record.CreateInput{
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		Diagnosis:    deref(req.Diagnosis),
		Prescription: deref(req.Prescription),
		Status:       deref(req.Status),
	}
	if p.Is(auth.RoleDoctor) {
		id, err := ownProfile(p, auth.RoleDoctor)
		if err != nil {
			h.respondError(c, err)
			return
		}
		in.DoctorID = id
	}
	if req.VisitDate != "" {
		d, err := parseDate("visitDate", req.VisitDate)
		if err != nil {
			h.respondError(c, err)
			return
		}
		in.VisitDate = d
	}

	rec, err := h.svc.Records.Create(c.Request.Context(), in, p.AccountID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Medical record created successfully", gin.H{"record": rec})
}

// UpdateRecord lets a doctor edit only the records they filed.
func (h *Handler) UpdateRecord(c *gin.Context) {
	var req recordRequest
	if !h.bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	p := principal(c)
	id := c.Param("id")

	if p.Is(auth.RoleDoctor) {
		rec, err := h.svc.Records.Get(ctx, id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if rec.DoctorID != p.ProfileID {
			h.respondError(c, errForbidden)
			return
		}
	}

	in := record.UpdateInput{
		Diagnosis:    req.Diagnosis,
		Prescription: req.Prescription,
		Status:       req.Status,
	}
	if req.VisitDate != "" {
		d, err := parseDate("visitDate", req.VisitDate)
		if err != nil {
			h.respondError(c, err)
			return
		}
		in.VisitDate = &d
	}

	rec, err := h.svc.Records.Update(ctx, id, in, p.AccountID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Medical record updated successfully", gin.H{"record": rec})
}

func (h *Handler) DeleteRecord(c *gin.Context) {
	if err := h.svc.Records.Delete(c.Request.Context(), c.Param("id"), principal(c).AccountID); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Medical record deleted successfully", nil)
}
