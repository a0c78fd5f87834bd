package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"opd-desk/internal/handlers"
	"opd-desk/internal/middleware"
)

// Options holds the global middleware settings.
type Options struct {
	Logger      zerolog.Logger
	CORSOrigins []string
	RateLimiter *middleware.IPRateLimiter
	Gatherer    prometheus.Gatherer
}

func SetupRoutes(r *gin.Engine, h *handlers.Handler, opts Options) {
	r.Use(middleware.RequestID())
	r.Use(middleware.TerminalMiddleware())
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.CORSMiddleware(opts.CORSOrigins))

	r.GET("/ping", h.Ping)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1")
	if opts.RateLimiter != nil {
		api.Use(middleware.RateLimitMiddleware(opts.RateLimiter))
	}
	{
		directory := api.Group("/directory")
		{
			directory.GET("/doctors", h.GetDoctors)
			directory.GET("/places", h.GetPlaces)
			directory.GET("/district", h.GetDistrict)
		}

		patients := api.Group("/patients")
		{
			patients.GET("/search", h.SearchPatients)
			patients.POST("/:id/load", h.LoadPatient)
			patients.PUT("/loaded", h.UpdateLoadedPatient)
		}

		deskGroup := api.Group("/desk")
		{
			deskGroup.GET("/session", h.GetSession)
			deskGroup.POST("/clear", h.ClearDesk)
		}

		api.POST("/visits", h.CreateVisit)
		api.GET("/visits/today", h.GetTodayVisits)
		api.GET("/stats", h.GetDashboardStats)
		api.GET("/slips/:opdId", h.PrintSlip)
		api.GET("/ws/today", h.StreamToday)
	}
}
