package scheduler

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"halaqat_backend/internals/configs"
	attService "halaqat_backend/internals/features/sessions/attendance/service"
)

// StartAttendanceMaintenanceScheduler runs the attendance housekeeping
// loop: auto-close dangling cycles, classify freshly completed
// sessions, and purge stale unfinalized records once a day.
func StartAttendanceMaintenanceScheduler(db *gorm.DB, tracker *attService.TrackerService, classifier *attService.ClassifierService) {
	go func() {
		cleanup := attService.NewCleanupService(db, tracker.Clock)
		lastPurge := time.Time{}

		for {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)

			if _, err := tracker.AutoCloseStaleCycles(ctx); err != nil {
				log.Printf("[CLEANUP ERROR] auto-close: %v", err)
			}
			if _, err := classifier.ClassifyCompletedSessions(ctx); err != nil {
				log.Printf("[CLEANUP ERROR] classify sweep: %v", err)
			}

			if time.Since(lastPurge) >= 24*time.Hour {
				days := configs.AttendanceCleanupDays()
				if removed, err := cleanup.CleanupStaleUnclassifiedRecords(ctx, days); err != nil {
					log.Printf("[CLEANUP ERROR] purge: %v", err)
				} else if removed > 0 {
					log.Printf("[CLEANUP] %d stale attendance rows removed", removed)
				}
				lastPurge = time.Now()
			}

			cancel()
			time.Sleep(5 * time.Minute)
		}
	}()
}
