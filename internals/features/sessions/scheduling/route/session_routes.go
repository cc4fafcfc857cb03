// file: internals/features/sessions/scheduling/route/session_routes.go
package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	schedCtrl "halaqat_backend/internals/features/sessions/scheduling/controller"
	"halaqat_backend/internals/features/sessions/scheduling/service"
)

// SchedulingRoutes mounts session CRUD plus recurring generation.
// The caller decides which auth group the router carries.
func SchedulingRoutes(r fiber.Router, db *gorm.DB, scheduler *service.SchedulerService) {
	ctrl := schedCtrl.NewSessionController(db, scheduler)

	// =====================
	// Sessions
	// =====================
	sGroup := r.Group("/sessions")
	sGroup.Post("/individual", ctrl.CreateIndividual)
	sGroup.Post("/group", ctrl.CreateGroup)
	sGroup.Post("/trial", ctrl.CreateTrial)
	sGroup.Delete("/:id", ctrl.Delete)

	// =====================
	// Recurring generation
	// =====================
	sGroup.Post("/bulk", ctrl.BulkCreate)
	sGroup.Post("/generate", ctrl.GenerateExact)
	sGroup.Post("/schedule", ctrl.CreateIndividualSchedule)

	// =====================
	// Circles
	// =====================
	cGroup := r.Group("/circles")
	cGroup.Delete("/:id/sessions", ctrl.ResetCircle)
	cGroup.Get("/:id/quota", ctrl.RemainingQuota)
	cGroup.Get("/:id/sessions", ctrl.MonthSessions)
	cGroup.Get("/:id/progress", ctrl.MonthlyProgress)

	// =====================
	// Teachers
	// =====================
	tGroup := r.Group("/teachers")
	tGroup.Get("/:id/session-stats", ctrl.TeacherStats)
}
