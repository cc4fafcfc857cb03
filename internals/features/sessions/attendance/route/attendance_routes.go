// file: internals/features/sessions/attendance/route/attendance_routes.go
package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	attCtrl "halaqat_backend/internals/features/sessions/attendance/controller"
	"halaqat_backend/internals/features/sessions/attendance/service"
	"halaqat_backend/internals/constants"
	"halaqat_backend/internals/helpers/clock"
	authMw "halaqat_backend/internals/middlewares/auth"
)

// ParticipantRoutes mounts the live tracking endpoints used from the
// meeting client (students and teachers alike).
func ParticipantRoutes(r fiber.Router, db *gorm.DB, tracker *service.TrackerService, stats *service.StatsService, clk clock.Clock) {
	ctrl := attCtrl.NewAttendanceController(db, tracker, nil, stats, clk)

	aGroup := r.Group("/attendance")
	aGroup.Post("/join", ctrl.Join)
	aGroup.Post("/leave", ctrl.Leave)
	aGroup.Post("/reconnect", ctrl.Reconnect)
	aGroup.Post("/heartbeat", ctrl.Heartbeat)
	aGroup.Get("/sessions/:session_id/duration", ctrl.CurrentDuration)
}

// StaffRoutes mounts classification, evaluation and reporting. Kept on
// a separate group so role checks stay at the mount site.
func StaffRoutes(r fiber.Router, db *gorm.DB, tracker *service.TrackerService, classifier *service.ClassifierService, stats *service.StatsService, clk clock.Clock) {
	ctrl := attCtrl.NewAttendanceController(db, tracker, classifier, stats, clk)

	staff := r.Group("/attendance", authMw.RequireRole(constants.TeacherAndAbove...))
	staff.Post("/sessions/:session_id/classify", ctrl.ClassifySession)
	staff.Post("/classify-completed", ctrl.ClassifyCompleted)
	staff.Post("/sessions/:session_id/students/:student_id/recalculate", ctrl.Recalculate)
	staff.Patch("/reports/:report_id/evaluation", ctrl.Evaluate)
	staff.Get("/sessions/:session_id/stats", ctrl.SessionStats)
	staff.Post("/students/stats", ctrl.StudentStats)
	staff.Get("/export", ctrl.Export)
}
