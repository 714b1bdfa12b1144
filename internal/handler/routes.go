package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campushub/campus-hub-api/internal/middleware"
	"github.com/campushub/campus-hub-api/internal/models"
	"github.com/campushub/campus-hub-api/internal/repository"
	"github.com/campushub/campus-hub-api/internal/service"
)

// Handlers bundles all HTTP handlers for route registration.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Announcements *AnnouncementHandler
	Complaints    *ComplaintHandler
	Bookings      *BookingHandler
	Reports       *ReportHandler
	Metrics       *MetricsHandler

	AuthService *service.AuthService
	UserRepo    *repository.UserRepository
}

// Register mounts every route group under the given prefix. Auth routes are
// public; everything else sits behind the JWT identity resolver, with role
// gates where a whole route is staff-only.
func (h *Handlers) Register(r *gin.Engine, prefix string) {
	api := r.Group(prefix + "/v1")

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)

		authed := auth.Group("", middleware.JWT(h.AuthService))
		authed.POST("/logout", h.Auth.Logout)
		authed.POST("/change-password", h.Auth.ChangePassword)
		authed.GET("/me", h.Auth.Me)
	}

	users := api.Group("/users", middleware.JWT(h.AuthService))
	{
		users.GET("", middleware.RequireRoles(models.RoleStaff), h.Users.List)
		users.PUT("/me", h.Users.UpdateMe)
		users.GET("/:id", h.Users.Get)
		users.POST("/:id/deactivate", middleware.RequireSenior(), middleware.Audit(h.UserRepo, models.AuditActionUserDeactivate, "user"), h.Users.Deactivate)
		users.POST("/:id/reactivate", middleware.RequireSenior(), h.Users.Reactivate)
	}

	announcements := api.Group("/announcements", middleware.JWT(h.AuthService))
	{
		announcements.GET("", h.Announcements.List)
		announcements.POST("", middleware.RequireRoles(models.RoleStaff), h.Announcements.Create)
		announcements.GET("/:id", h.Announcements.Get)
		announcements.PUT("/:id", middleware.RequireRoles(models.RoleStaff), middleware.Audit(h.UserRepo, models.AuditActionAnnouncementEdit, "announcement"), h.Announcements.Update)
		announcements.DELETE("/:id", middleware.RequireRoles(models.RoleStaff), h.Announcements.Delete)
		announcements.POST("/:id/publish", middleware.RequireRoles(models.RoleStaff), h.Announcements.Publish)
		announcements.POST("/:id/archive", middleware.RequireRoles(models.RoleStaff), h.Announcements.Archive)
		announcements.POST("/:id/read", h.Announcements.MarkRead)
		announcements.POST("/:id/bookmark", h.Announcements.ToggleBookmark)
	}

	complaints := api.Group("/complaints", middleware.JWT(h.AuthService))
	{
		complaints.GET("", h.Complaints.List)
		complaints.POST("", middleware.RequireRoles(models.RoleStudent), h.Complaints.Create)
		complaints.GET("/:id", h.Complaints.Get)
		// PUT and PATCH both drive the transition; older clients use PUT.
		statusHandlers := []gin.HandlerFunc{middleware.RequireRoles(models.RoleStaff), h.Complaints.UpdateStatus}
		complaints.PUT("/:id/status", statusHandlers...)
		complaints.PATCH("/:id/status", statusHandlers...)
		complaints.POST("/:id/escalate", middleware.RequireRoles(models.RoleStaff), h.Complaints.Escalate)
		complaints.GET("/:id/responses", h.Complaints.Responses)
		complaints.POST("/:id/responses", h.Complaints.Respond)
		complaints.POST("/:id/rate", middleware.RequireRoles(models.RoleStudent), h.Complaints.Rate)
	}

	bookings := api.Group("/bookings", middleware.JWT(h.AuthService))
	{
		bookings.GET("", h.Bookings.List)
		bookings.POST("", h.Bookings.Create)
		bookings.GET("/:id", h.Bookings.Get)
		bookings.POST("/:id/decide", middleware.RequireRoles(models.RoleStaff), h.Bookings.Decide)
		bookings.POST("/:id/complete", middleware.RequireRoles(models.RoleStaff), h.Bookings.Complete)
		bookings.POST("/:id/cancel", h.Bookings.Cancel)
	}

	if h.Reports != nil {
		reports := api.Group("/reports")
		{
			// Download authenticates through the signed token itself.
			reports.GET("/download/:token", h.Reports.Download)

			authed := reports.Group("", middleware.JWT(h.AuthService), middleware.RequireRoles(models.RoleStaff))
			authed.POST("", h.Reports.Create)
			authed.GET("/:id", h.Reports.Get)
		}
	}

	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/ready", h.Metrics.Ready)
		r.GET("/metrics", h.Metrics.Prometheus)
		api.GET("/system/stats", middleware.JWT(h.AuthService), middleware.RequireSenior(), h.Metrics.Stats)
	}
}
