// file: internals/features/sessions/attendance/service/attendance_cleanup_service_test.go
package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"halaqat_backend/internals/features/sessions/attendance/model"
	schedModel "halaqat_backend/internals/features/sessions/scheduling/model"
	"halaqat_backend/internals/helpers/clock"
)

func TestCleanupStaleUnclassifiedRecords(t *testing.T) {
	db := newTestDB(t)
	now := sessionStart.AddDate(0, 0, 30)
	svc := NewCleanupService(db, clock.NewFixed(now))

	session := seedSession(t, db, schedModel.SessionCompleted, 60)

	// stale and unclassified: removed
	stale := seedTracker(t, db, session, uuid.New(), sessionStart, 30)
	require.NoError(t, db.Model(&model.MeetingAttendanceModel{}).
		Where("meeting_attendance_id = ?", stale.MeetingAttendanceID).
		Update("meeting_attendance_created_at", now.AddDate(0, 0, -10)).Error)

	// stale but finalized: kept
	done := seedTracker(t, db, session, uuid.New(), sessionStart, 30)
	require.NoError(t, db.Model(&model.MeetingAttendanceModel{}).
		Where("meeting_attendance_id = ?", done.MeetingAttendanceID).
		Updates(map[string]any{
			"meeting_attendance_created_at":   now.AddDate(0, 0, -10),
			"meeting_attendance_is_calculated": true,
		}).Error)

	// recent and unclassified: kept
	seedTracker(t, db, session, uuid.New(), sessionStart, 30)

	// stale unfinalized report: removed
	report := model.SessionReportModel{
		SessionReportAcademyID: session.QuranSessionAcademyID,
		SessionReportSessionID: session.QuranSessionID,
		SessionReportStudentID: uuid.New(),
		SessionReportTeacherID: session.QuranSessionTeacherID,
	}
	require.NoError(t, db.Create(&report).Error)
	require.NoError(t, db.Model(&model.SessionReportModel{}).
		Where("session_report_id = ?", report.SessionReportID).
		Update("session_report_created_at", now.AddDate(0, 0, -10)).Error)

	removed, err := svc.CleanupStaleUnclassifiedRecords(context.Background(), 7)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	var trackers int64
	require.NoError(t, db.Model(&model.MeetingAttendanceModel{}).Count(&trackers).Error)
	assert.EqualValues(t, 2, trackers)

	var reports int64
	require.NoError(t, db.Model(&model.SessionReportModel{}).Count(&reports).Error)
	assert.EqualValues(t, 0, reports)
}

func TestCleanupDefaultsWindow(t *testing.T) {
	db := newTestDB(t)
	now := sessionStart.AddDate(0, 0, 30)
	svc := NewCleanupService(db, clock.NewFixed(now))

	session := seedSession(t, db, schedModel.SessionCompleted, 60)
	rec := seedTracker(t, db, session, uuid.New(), sessionStart, 30)
	require.NoError(t, db.Model(&model.MeetingAttendanceModel{}).
		Where("meeting_attendance_id = ?", rec.MeetingAttendanceID).
		Update("meeting_attendance_created_at", now.AddDate(0, 0, -8)).Error)

	removed, err := svc.CleanupStaleUnclassifiedRecords(context.Background(), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
}
