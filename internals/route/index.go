// file: internals/route/index.go
package routes

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	attRoute "halaqat_backend/internals/features/sessions/attendance/route"
	attService "halaqat_backend/internals/features/sessions/attendance/service"
	schedRoute "halaqat_backend/internals/features/sessions/scheduling/route"
	schedService "halaqat_backend/internals/features/sessions/scheduling/service"
	"halaqat_backend/internals/constants"
	"halaqat_backend/internals/helpers/clock"
	authMw "halaqat_backend/internals/middlewares/auth"
)

var startTime time.Time

// Deps carries the shared service instances. The tracker in particular
// must be the same instance the maintenance scheduler uses, so its
// per-participant locks cover both paths.
type Deps struct {
	Scheduler  *schedService.SchedulerService
	Tracker    *attService.TrackerService
	Classifier *attService.ClassifierService
	Stats      *attService.StatsService
	Clock      clock.Clock
}

func SetupRoutes(app *fiber.App, db *gorm.DB, deps Deps) {
	startTime = time.Now()

	log.Println("[INFO] Setting up base routes...")
	BaseRoutes(app, db)

	// ===================== GROUPS =====================

	log.Println("[INFO] Setting up authenticated group...")
	api := app.Group("/api", authMw.AuthJWT())

	// ===================== MOUNT ROUTES =====================

	log.Println("[INFO] Mounting scheduling routes...")
	staff := api.Group("", authMw.RequireRole(constants.TeacherAndAbove...))
	schedRoute.SchedulingRoutes(staff, db, deps.Scheduler)

	log.Println("[INFO] Mounting attendance routes...")
	attRoute.ParticipantRoutes(api, db, deps.Tracker, deps.Stats, deps.Clock)
	attRoute.StaffRoutes(api, db, deps.Tracker, deps.Classifier, deps.Stats, deps.Clock)
}
