package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mesikahq/hospital-api/internal/appointment"
	"github.com/mesikahq/hospital-api/internal/auth"
	"github.com/mesikahq/hospital-api/internal/doctor"
	"github.com/mesikahq/hospital-api/internal/nurse"
	"github.com/mesikahq/hospital-api/internal/patient"
	"github.com/mesikahq/hospital-api/internal/record"
)

const recentRecordsLimit = 5

// Doctors

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.svc.Doctors.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctors)
}

func (h *Handler) DoctorProfile(c *gin.Context) {
	id, err := ownProfile(principal(c), auth.RoleDoctor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	d, err := h.svc.Doctors.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateDoctorProfile(c *gin.Context) {
	var req doctor.Profile
	if !h.bind(c, &req) {
		return
	}

	p := principal(c)
	id, err := ownProfile(p, auth.RoleDoctor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	d, err := h.svc.Doctors.Update(c.Request.Context(), id, req, p.AccountID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Profile updated successfully", gin.H{"doctor": d})
}

// DoctorPatients lists the distinct patients the calling doctor has
// appointments with.
func (h *Handler) DoctorPatients(c *gin.Context) {
	id, err := ownProfile(principal(c), auth.RoleDoctor)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	appointments, err := h.svc.Appointments.List(ctx, appointment.Filter{DoctorID: id})
	if err != nil {
		h.respondError(c, err)
		return
	}

	seen := map[string]bool{}
	patients := []*patient.Patient{}
	for _, a := range appointments {
		if seen[a.PatientID] {
			continue
		}
		seen[a.PatientID] = true

		pt, err := h.svc.Patients.Get(ctx, a.PatientID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		patients = append(patients, pt)
	}
	c.JSON(http.StatusOK, patients)
}

func (h *Handler) DoctorAppointments(c *gin.Context) {
	id, err := ownProfile(principal(c), auth.RoleDoctor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	appointments, err := h.svc.Appointments.List(c.Request.Context(), appointment.Filter{DoctorID: id})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointments)
}

// PatientDetails is the staff view of one patient.
func (h *Handler) PatientDetails(c *gin.Context) {
	ctx := c.Request.Context()
	p := principal(c)

	pt, err := h.svc.Patients.Get(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	f := appointment.Filter{PatientID: pt.ID, Newest: true}
	if p.Is(auth.RoleDoctor) {
		f.DoctorID = p.ProfileID
	}
	appointments, err := h.svc.Appointments.List(ctx, f)
	if err != nil {
		h.respondError(c, err)
		return
	}

	records, err := h.svc.Records.List(ctx, record.Filter{PatientID: pt.ID})
	if err != nil {
		h.respondError(c, err)
		return
	}

	metrics, err := h.svc.Metrics.Latest(ctx, pt.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"patient":        pt,
		"appointments":   appointments,
		"medicalRecords": records,
		"healthMetrics":  metrics,
	})
}

// Nurses

func (h *Handler) NurseProfile(c *gin.Context) {
	id, err := ownProfile(principal(c), auth.RoleNurse)
	if err != nil {
		h.respondError(c, err)
		return
	}
	n, err := h.svc.Nurses.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *Handler) UpdateNurseProfile(c *gin.Context) {
	var req nurse.Profile
	if !h.bind(c, &req) {
		return
	}

	id, err := ownProfile(principal(c), auth.RoleNurse)
	if err != nil {
		h.respondError(c, err)
		return
	}
	n, err := h.svc.Nurses.Update(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Profile updated successfully", gin.H{"nurse": n})
}

func (h *Handler) NurseAppointments(c *gin.Context) {
	appointments, err := h.svc.Appointments.List(c.Request.Context(), appointment.Filter{})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointments)
}

// Patients

func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.svc.Patients.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, patients)
}

func (h *Handler) GetPatient(c *gin.Context) {
	id := c.Param("id")
	if !principal(c).CanReachPatient(auth.PermPatientView, auth.PermPatientViewOwn, id) {
		h.respondError(c, errForbidden)
		return
	}
	pt, err := h.svc.Patients.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pt)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	var req patient.Profile
	if !h.bind(c, &req) {
		return
	}

	p := principal(c)
	id := c.Param("id")
	if !p.CanReachPatient(auth.PermPatientUpdate, auth.PermPatientUpdateOwn, id) {
		h.respondError(c, errForbidden)
		return
	}
	pt, err := h.svc.Patients.Update(c.Request.Context(), id, req, p.AccountID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Patient updated successfully", gin.H{"patient": pt})
}

func (h *Handler) DeletePatient(c *gin.Context) {
	if err := h.svc.Patients.Delete(c.Request.Context(), c.Param("id"), principal(c).AccountID); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Patient deleted successfully", nil)
}

// PatientDashboard summarizes the calling patient's profile, upcoming
// appointments, recent records and latest metrics.
func (h *Handler) PatientDashboard(c *gin.Context) {
	id, err := ownProfile(principal(c), auth.RolePatient)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ctx := c.Request.Context()

	pt, err := h.svc.Patients.Get(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	upcoming, err := h.svc.Appointments.Upcoming(ctx, appointment.Filter{PatientID: id})
	if err != nil {
		h.respondError(c, err)
		return
	}
	records, err := h.svc.Records.List(ctx, record.Filter{PatientID: id, Limit: recentRecordsLimit})
	if err != nil {
		h.respondError(c, err)
		return
	}
	metrics, err := h.svc.Metrics.Latest(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"patient":              pt,
		"upcomingAppointments": upcoming,
		"recentRecords":        records,
		"latestMetrics":        metrics,
	})
}

func (h *Handler) PatientAppointments(c *gin.Context) {
	id, err := ownProfile(principal(c), auth.RolePatient)
	if err != nil {
		h.respondError(c, err)
		return
	}
	upcoming, past, err := h.patientAppointments(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upcoming": upcoming, "past": past})
}

func (h *Handler) patientAppointments(ctx context.Context, patientID string) ([]*appointment.Appointment, []*appointment.Appointment, error) {
	upcoming, err := h.svc.Appointments.Upcoming(ctx, appointment.Filter{PatientID: patientID})
	if err != nil {
		return nil, nil, err
	}
	past, err := h.svc.Appointments.Past(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	return upcoming, past, nil
}

func (h *Handler) PatientHealthMetrics(c *gin.Context) {
	id, err := ownProfile(principal(c), auth.RolePatient)
	if err != nil {
		h.respondError(c, err)
		return
	}
	metrics, err := h.svc.Metrics.ListByPatient(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func (h *Handler) PatientMedicalRecords(c *gin.Context) {
	id, err := ownProfile(principal(c), auth.RolePatient)
	if err != nil {
		h.respondError(c, err)
		return
	}
	records, err := h.svc.Records.List(c.Request.Context(), record.Filter{PatientID: id})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}
