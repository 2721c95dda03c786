package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/tesla-ce/trust-backend/internal/handlers"
	"github.com/tesla-ce/trust-backend/internal/middleware"
	"github.com/tesla-ce/trust-backend/internal/services"
)

type RouterConfig struct {
	AuthHandler     *handlers.AuthHandler
	AuthMiddleware  *middleware.AuthMiddleware
	LearnerHandler  *handlers.LearnerHandler
	ProviderHandler *handlers.ProviderHandler
	ReportHandler   *handlers.ReportHandler
	AllowOrigins    []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/api/v2/auth/provider", cfg.AuthHandler.LoginProvider)
	router.POST("/api/v1/auth/vle", cfg.AuthHandler.LoginVLE)

	// VLE surface: captures, samples, gates, consent, reports.
	vle := router.Group("/")
	vle.Use(cfg.AuthMiddleware.RequireScope(services.ScopeVLE))
	{
		vle.POST("/api/v1/learner/:lid/verification", cfg.LearnerHandler.SubmitVerification)
		vle.POST("/api/v1/learner/:lid/enrolment", cfg.LearnerHandler.SubmitEnrolmentSample)
		vle.GET("/api/v1/learner/:lid/enrolment/status", cfg.LearnerHandler.EnrolmentStatus)
		vle.GET("/api/v1/learner/:lid/activity/:aid/missing", cfg.LearnerHandler.MissingEnrolment)
		vle.POST("/api/v1/learner/:lid/activity/:aid/session", cfg.LearnerHandler.OpenSession)
		vle.POST("/api/v1/session/:sid/close", cfg.LearnerHandler.CloseSession)
		vle.POST("/api/v1/learner/:lid/consent/accept", cfg.LearnerHandler.AcceptConsent)
		vle.POST("/api/v1/learner/:lid/consent/reject", cfg.LearnerHandler.RejectConsent)
		vle.GET("/api/v1/learner/:lid/consent/status", cfg.LearnerHandler.ConsentStatus)
		vle.GET("/api/v1/learner/:lid/send", cfg.LearnerHandler.SENDStatus)
		vle.GET("/api/v2/report/activity/:aid/learner/:lid", cfg.ReportHandler.GetActivityReport)
	}

	// Provider surface: answers, validations, models, notifications.
	provider := router.Group("/api/v2/provider/:pid")
	provider.Use(cfg.AuthMiddleware.RequireScope(services.ScopeProvider))
	{
		provider.PUT("/request/:rid", cfg.ProviderHandler.PutResult)
		provider.PUT("/validation/:vid", cfg.ProviderHandler.PutValidation)
		provider.POST("/notification", cfg.ProviderHandler.CreateNotification)
		provider.GET("/notification", cfg.ProviderHandler.ListNotifications)
		provider.DELETE("/notification/:key", cfg.ProviderHandler.DeleteNotification)
		provider.POST("/enrolment/:lid/lock", cfg.ProviderHandler.LockEnrolment)
		provider.PUT("/enrolment/:lid", cfg.ProviderHandler.CommitEnrolment)
		provider.POST("/enrolment/:lid/unlock", cfg.ProviderHandler.UnlockEnrolment)
		provider.GET("/enrolment/:lid/available_samples", cfg.ProviderHandler.AvailableSamples)
		provider.GET("/enrolment/:lid/used_samples", cfg.ProviderHandler.UsedSamples)
	}

	return router
}
