// file: internals/features/sessions/attendance/service/attendance_cleanup_service.go
package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"halaqat_backend/internals/features/sessions/attendance/model"
	"halaqat_backend/internals/helpers/clock"
)

// CleanupService removes attendance rows that were opened but never
// finalized. Finalized reports are never touched.
type CleanupService struct {
	DB    *gorm.DB
	Clock clock.Clock
}

func NewCleanupService(db *gorm.DB, clk clock.Clock) *CleanupService {
	if clk == nil {
		clk = clock.System()
	}
	return &CleanupService{DB: db, Clock: clk}
}

// CleanupStaleUnclassifiedRecords drops unfinalized reports and tracker
// records older than the given age and returns how many rows went away.
func (s *CleanupService) CleanupStaleUnclassifiedRecords(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		olderThanDays = 7
	}
	before := s.Clock.Now().Add(-time.Duration(olderThanDays) * 24 * time.Hour)

	var removed int64
	res := s.DB.WithContext(ctx).
		Where("session_report_is_calculated = ? AND session_report_created_at < ?", false, before).
		Delete(&model.SessionReportModel{})
	if res.Error != nil {
		return removed, res.Error
	}
	removed += res.RowsAffected

	res = s.DB.WithContext(ctx).
		Where("meeting_attendance_is_calculated = ? AND meeting_attendance_created_at < ?", false, before).
		Delete(&model.MeetingAttendanceModel{})
	if res.Error != nil {
		return removed, res.Error
	}
	removed += res.RowsAffected
	return removed, nil
}
