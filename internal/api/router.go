package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mesikahq/hospital-api/internal/auth"
	"github.com/mesikahq/hospital-api/internal/middleware"
)

// RouterOptions tunes the global middleware chain. Zero values disable the
// rate limiter and the request timeout.
type RouterOptions struct {
	RateLimit   float64
	RateBurst   int
	CORSOrigins []string
	Timeout     time.Duration
	AccessLog   *middleware.AccessLog
}

type Router struct {
	handler        *Handler
	authMiddleware *auth.Middleware
	opts           RouterOptions
}

func NewRouter(handler *Handler, authMiddleware *auth.Middleware, opts RouterOptions) *Router {
	return &Router{
		handler:        handler,
		authMiddleware: authMiddleware,
		opts:           opts,
	}
}

func (r *Router) SetupRouter(logger *zap.Logger) *gin.Engine {
	router := gin.New()

	// Apply global middleware
	router.Use(
		middleware.RequestIDMiddleware(),
		middleware.SecurityHeadersMiddleware(),
		middleware.RecoveryMiddleware(logger),
		middleware.LoggerMiddleware(logger),
		middleware.CORSMiddleware(r.opts.CORSOrigins),
	)
	if r.opts.RateLimit > 0 {
		router.Use(middleware.RateLimitMiddleware(rate.Limit(r.opts.RateLimit), r.opts.RateBurst))
	}
	if r.opts.AccessLog != nil {
		router.Use(r.opts.AccessLog.Handler())
	}
	if r.opts.Timeout > 0 {
		router.Use(middleware.TimeoutMiddleware(r.opts.Timeout))
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	h := r.handler
	need := r.authMiddleware.Require

	api := router.Group("/api")
	{
		// Registration is the only public API route
		api.POST("/auth/register/:role", h.Register)

		protected := api.Group("")
		protected.Use(r.authMiddleware.Authenticate())
		{
			protected.POST("/auth/token", h.IssueToken)
			protected.GET("/dashboard", h.Dashboard)
			protected.GET("/home", h.Home)
			protected.GET("/profile", h.Profile)
			protected.PUT("/profile", h.UpdateProfile)

			users := protected.Group("/users")
			{
				users.GET("/profile", h.CurrentUser)
				users.PUT("/password", h.ChangePassword)
				users.GET("", need(auth.PermUserManage), h.ListUsers)
				users.GET("/:id", need(auth.PermUserManage), h.GetUser)
				users.PUT("/:id", need(auth.PermUserManage), h.UpdateUser)
				users.DELETE("/:id", need(auth.PermUserManage), h.DeleteUser)
			}

			doctors := protected.Group("/doctors")
			{
				doctors.GET("", need(auth.PermDoctorDirectory), h.ListDoctors)
				doctors.GET("/profile", need(auth.PermDoctorPortal), h.DoctorProfile)
				doctors.PUT("/profile", need(auth.PermDoctorPortal), h.UpdateDoctorProfile)
				doctors.GET("/patients", need(auth.PermDoctorPortal), h.DoctorPatients)
				doctors.GET("/patients/:id", need(auth.PermDoctorPortal), h.PatientDetails)
				doctors.GET("/appointments", need(auth.PermDoctorPortal), h.DoctorAppointments)
				doctors.POST("/records", need(auth.PermDoctorPortal), h.CreateRecord)
			}

			nurses := protected.Group("/nurses")
			nurses.Use(need(auth.PermNursePortal))
			{
				nurses.GET("/profile", h.NurseProfile)
				nurses.PUT("/profile", h.UpdateNurseProfile)
				nurses.GET("/patients", h.ListPatients)
				nurses.GET("/patients/:id", h.PatientDetails)
				nurses.GET("/appointments", h.NurseAppointments)
			}

			patients := protected.Group("/patients")
			{
				patients.GET("", need(auth.PermPatientList), h.ListPatients)
				patients.GET("/dashboard", need(auth.PermPatientPortal), h.PatientDashboard)
				patients.GET("/appointments", need(auth.PermPatientPortal), h.PatientAppointments)
				patients.GET("/health-metrics", need(auth.PermPatientPortal), h.PatientHealthMetrics)
				patients.GET("/medical-records", need(auth.PermPatientPortal), h.PatientMedicalRecords)
				patients.GET("/:id", need(auth.PermPatientView, auth.PermPatientViewOwn), h.GetPatient)
				patients.PUT("/:id", need(auth.PermPatientUpdate, auth.PermPatientUpdateOwn), h.UpdatePatient)
				patients.DELETE("/:id", need(auth.PermPatientDelete), h.DeletePatient)
			}

			appointments := protected.Group("/appointments")
			{
				appointments.GET("", need(auth.PermAppointmentList), h.ListAppointments)
				appointments.POST("/book", need(auth.PermAppointmentBook), h.BookAppointment)
				appointments.GET("/conflicts", need(auth.PermAppointmentList), h.CheckConflicts)
				appointments.GET("/today", need(auth.PermAppointmentList), h.TodayAppointments)
				appointments.GET("/upcoming", need(auth.PermAppointmentList), h.UpcomingAppointments)
				appointments.GET("/:id", need(auth.PermAppointmentView), h.GetAppointment)
				appointments.PUT("/:id", need(auth.PermAppointmentReschedule), h.RescheduleAppointment)
				appointments.POST("/:id/cancel", need(auth.PermAppointmentCancel), h.CancelAppointment)
				appointments.POST("/:id/complete", need(auth.PermAppointmentComplete), h.CompleteAppointment)
				appointments.DELETE("/:id", need(auth.PermAppointmentDelete), h.DeleteAppointment)
			}

			records := protected.Group("/medical-records")
			{
				read := need(auth.PermRecordRead, auth.PermRecordReadOwn)
				records.GET("", read, h.ListRecords)
				records.GET("/patient/:patientId", read, h.PatientRecords)
				records.GET("/:id", read, h.GetRecord)
				records.POST("", need(auth.PermRecordWrite), h.CreateRecord)
				records.PUT("/:id", need(auth.PermRecordWrite), h.UpdateRecord)
				records.DELETE("/:id", need(auth.PermRecordDelete), h.DeleteRecord)
			}

			documents := protected.Group("/documents")
			{
				documents.POST("/upload", need(auth.PermDocumentUpload), h.UploadDocument)
				documents.GET("/patient/:patientId", need(auth.PermDocumentListByPatient), h.PatientDocuments)
				documents.GET("/download/:id", need(auth.PermDocumentDownload, auth.PermDocumentDownloadOwn), h.DownloadDocument)
				documents.DELETE("/:id", need(auth.PermDocumentDelete), h.DeleteDocument)
			}

			metrics := protected.Group("/health-metrics")
			{
				read := need(auth.PermMetricRead, auth.PermMetricReadOwn)
				metrics.GET("/patient/:patientId", read, h.ListMetrics)
				metrics.GET("/patient/:patientId/chart-data", read, h.MetricChartData)
				metrics.POST("/patient/:patientId", need(auth.PermMetricWrite, auth.PermMetricWriteOwn), h.AddMetrics)
				metrics.GET("/chart/:patientId/:metric", read, h.MetricChart)
				metrics.GET("/visualize/:patientId", read, h.VisualizeMetrics)
			}

			stats := need(auth.PermStatisticsView)
			protected.GET("/admin/dashboard", stats, h.AdminDashboard)
			protected.GET("/admin/statistics", stats, h.AdminDashboard)
			protected.GET("/reports", stats, h.Reports)
			protected.GET("/reports/statistics", stats, h.ReportStatistics)
			protected.GET("/reports/export", stats, h.ExportReport)

			protected.GET("/audit/logs", need(auth.PermAuditRead), h.AuditLogs)
		}
	}

	// NoRoute handler for 404
	router.NoRoute(func(c *gin.Context) {
		message := "Resource not found"
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			message = "API endpoint not found"
		}
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": message})
	})

	return router
}
