package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mesikahq/hospital-api/internal/apperr"
	"github.com/mesikahq/hospital-api/internal/appointment"
	"github.com/mesikahq/hospital-api/internal/auth"
)

type bookRequest struct {
	DoctorID        string `json:"doctorId" binding:"required"`
	PatientID       string `json:"patientId"`
	AppointmentDate string `json:"appointmentDate" binding:"required"`
	Notes           string `json:"notes" binding:"max=1000"`
}

type rescheduleRequest struct {
	AppointmentDate string `json:"appointmentDate" binding:"required"`
}

// scopeFilter narrows f to what the caller may see.
func scopeFilter(p *auth.Principal, f appointment.Filter) (appointment.Filter, error) {
	if p.Can(auth.PermAppointmentViewAny) {
		return f, nil
	}
	switch p.Role {
	case auth.RoleDoctor:
		id, err := ownProfile(p, auth.RoleDoctor)
		if err != nil {
			return f, err
		}
		f.DoctorID = id
	case auth.RolePatient:
		id, err := ownProfile(p, auth.RolePatient)
		if err != nil {
			return f, err
		}
		f.PatientID = id
	default:
		return f, errForbidden
	}
	return f, nil
}

func (h *Handler) ListAppointments(c *gin.Context) {
	f := appointment.Filter{
		PatientID: c.Query("patientId"),
		DoctorID:  c.Query("doctorId"),
	}
	if s := c.Query("status"); s != "" {
		st, ok := appointment.ParseStatus(strings.ToUpper(s))
		if !ok {
			h.respondError(c, apperr.Validation("Unknown appointment status"))
			return
		}
		f.Status = st
	}
	on, err := dateQuery(c, "date")
	if err != nil {
		h.respondError(c, err)
		return
	}
	f.On = on

	f, err = scopeFilter(principal(c), f)
	if err != nil {
		h.respondError(c, err)
		return
	}

	appointments, err := h.svc.Appointments.List(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointments)
}

// BookAppointment schedules an appointment for the calling patient.
func (h *Handler) BookAppointment(c *gin.Context) {
	var req bookRequest
	if !h.bind(c, &req) {
		return
	}

	p := principal(c)
	patientID, err := ownProfile(p, auth.RolePatient)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if req.PatientID != "" && req.PatientID != patientID {
		h.respondError(c, errForbidden)
		return
	}
	date, err := parseDate("appointmentDate", req.AppointmentDate)
	if err != nil {
		h.respondError(c, err)
		return
	}

	a, err := h.svc.Appointments.Schedule(c.Request.Context(), appointment.ScheduleRequest{
		PatientID: patientID,
		DoctorID:  req.DoctorID,
		Date:      date,
		Notes:     req.Notes,
		CreatedBy: p.AccountID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Appointment booked successfully", gin.H{"appointment": a})
}

func (h *Handler) CheckConflicts(c *gin.Context) {
	doctorID := c.Query("doctorId")
	if doctorID == "" {
		h.respondError(c, apperr.Validation("doctorId is required"))
		return
	}
	date, err := parseDate("date", c.Query("date"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	conflict, err := h.svc.Appointments.HasConflict(c.Request.Context(), doctorID, date, c.Query("excludeId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hasConflict": conflict})
}

// TodayAppointments lists today's appointments: a doctor's own, or every
// doctor's (optionally one via ?doctorId) for staff.
func (h *Handler) TodayAppointments(c *gin.Context) {
	p := principal(c)
	doctorID := c.Query("doctorId")
	if !p.Can(auth.PermAppointmentViewAny) {
		id, err := ownProfile(p, auth.RoleDoctor)
		if err != nil {
			h.respondError(c, err)
			return
		}
		doctorID = id
	}

	appointments, err := h.svc.Appointments.Today(c.Request.Context(), doctorID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointments)
}

func (h *Handler) UpcomingAppointments(c *gin.Context) {
	f, err := scopeFilter(principal(c), appointment.Filter{
		PatientID: c.Query("patientId"),
		DoctorID:  c.Query("doctorId"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	appointments, err := h.svc.Appointments.Upcoming(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointments)
}

// loadAppointment fetches :id and checks access. With owner set only the
// booked doctor or patient passes.
func (h *Handler) loadAppointment(c *gin.Context, owner bool) (*appointment.Appointment, bool) {
	a, err := h.svc.Appointments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}

	p := principal(c)
	allowed := canSeeAppointment(p, a)
	if owner {
		allowed = ownsAppointment(p, a)
	}
	if !allowed {
		h.respondError(c, errForbidden)
		return nil, false
	}
	return a, true
}

func (h *Handler) GetAppointment(c *gin.Context) {
	a, ok := h.loadAppointment(c, false)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	var req rescheduleRequest
	if !h.bind(c, &req) {
		return
	}
	date, err := parseDate("appointmentDate", req.AppointmentDate)
	if err != nil {
		h.respondError(c, err)
		return
	}

	a, ok := h.loadAppointment(c, true)
	if !ok {
		return
	}

	updated, err := h.svc.Appointments.Reschedule(c.Request.Context(), a.ID, date, actorOf(principal(c)))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Appointment rescheduled successfully", gin.H{"appointment": updated})
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	a, ok := h.loadAppointment(c, true)
	if !ok {
		return
	}

	updated, err := h.svc.Appointments.Cancel(c.Request.Context(), a.ID, actorOf(principal(c)))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Appointment cancelled successfully", gin.H{"appointment": updated})
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	a, ok := h.loadAppointment(c, true)
	if !ok {
		return
	}

	updated, err := h.svc.Appointments.Complete(c.Request.Context(), a.ID, actorOf(principal(c)))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Appointment completed successfully", gin.H{"appointment": updated})
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	if err := h.svc.Appointments.Delete(c.Request.Context(), c.Param("id"), actorOf(principal(c))); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Appointment deleted successfully", nil)
}
