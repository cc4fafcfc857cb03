// file: internals/features/sessions/attendance/service/attendance_stats_service_test.go
package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"halaqat_backend/internals/features/sessions/attendance/model"
	schedModel "halaqat_backend/internals/features/sessions/scheduling/model"
	"halaqat_backend/internals/helpers/clock"
)

func seedReport(t *testing.T, db *gorm.DB, academyID, sessionID, studentID uuid.UUID, status model.AttendanceStatus, pct float64, minutes int, score *float64, createdAt time.Time) {
	t.Helper()
	row := model.SessionReportModel{
		SessionReportAcademyID:               academyID,
		SessionReportSessionID:               sessionID,
		SessionReportStudentID:               studentID,
		SessionReportTeacherID:               uuid.New(),
		SessionReportAttendanceStatus:        status,
		SessionReportAttendancePercentage:    pct,
		SessionReportActualAttendanceMinutes: minutes,
		SessionReportPerformanceScore:        score,
		SessionReportIsCalculated:            true,
	}
	require.NoError(t, db.Create(&row).Error)
	// autoCreateTime stamps "now"; the trend needs a controlled order
	require.NoError(t, db.Model(&model.SessionReportModel{}).
		Where("session_report_id = ?", row.SessionReportID).
		Update("session_report_created_at", createdAt).Error)
}

func f(v float64) *float64 { return &v }

func TestGetSessionStats(t *testing.T) {
	db := newTestDB(t)
	svc := NewStatsService(db)
	academyID := uuid.New()
	sessionID := uuid.New()
	at := sessionStart

	seedReport(t, db, academyID, sessionID, uuid.New(), model.AttendanceAttended, 90, 54, f(8.0), at)
	seedReport(t, db, academyID, sessionID, uuid.New(), model.AttendanceLeaved, 40, 24, f(6.0), at)
	seedReport(t, db, academyID, sessionID, uuid.New(), model.AttendanceAbsent, 0, 0, nil, at)

	stats, err := svc.GetSessionStats(context.Background(), academyID, sessionID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalReports)
	assert.Equal(t, 1, stats.Attended)
	assert.Equal(t, 1, stats.Leaved)
	assert.Equal(t, 1, stats.Absent)
	assert.Equal(t, 3, stats.AutoEvaluated)
	assert.InDelta(t, 43.3, stats.AverageAttendance, 0.001)
	assert.Equal(t, 2, stats.ScoredReports)
	assert.InDelta(t, 7.0, stats.AveragePerformance, 0.001)
}

func TestGetSessionStatsEmpty(t *testing.T) {
	db := newTestDB(t)
	svc := NewStatsService(db)

	stats, err := svc.GetSessionStats(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalReports)
	assert.Zero(t, stats.AverageAttendance)
}

func TestGetStudentStatsRate(t *testing.T) {
	db := newTestDB(t)
	svc := NewStatsService(db)
	academyID := uuid.New()
	studentID := uuid.New()
	at := sessionStart

	// late and leaved count toward the attendance rate
	seedReport(t, db, academyID, uuid.New(), studentID, model.AttendanceAttended, 90, 54, nil, at)
	seedReport(t, db, academyID, uuid.New(), studentID, model.AttendanceLate, 70, 42, nil, at)
	seedReport(t, db, academyID, uuid.New(), studentID, model.AttendanceLeaved, 40, 24, nil, at)
	seedReport(t, db, academyID, uuid.New(), studentID, model.AttendanceAbsent, 0, 0, nil, at)

	stats, err := svc.GetStudentStats(context.Background(), academyID, studentID, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalSessions)
	assert.Equal(t, 3, stats.AttendedSessions)
	assert.Equal(t, 1, stats.AbsentSessions)
	assert.InDelta(t, 75.0, stats.AttendanceRate, 0.001)
	assert.Equal(t, 120, stats.TotalMinutes)
	assert.InDelta(t, 50.0, stats.AverageAttendance, 0.001)
	assert.Equal(t, TrendInsufficientData, stats.ImprovementTrend)
}

func TestGetStudentStatsSessionFilter(t *testing.T) {
	db := newTestDB(t)
	svc := NewStatsService(db)
	academyID := uuid.New()
	studentID := uuid.New()
	keep := uuid.New()

	seedReport(t, db, academyID, keep, studentID, model.AttendanceAttended, 90, 54, nil, sessionStart)
	seedReport(t, db, academyID, uuid.New(), studentID, model.AttendanceAbsent, 0, 0, nil, sessionStart)

	stats, err := svc.GetStudentStats(context.Background(), academyID, studentID, []uuid.UUID{keep})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalSessions)
	assert.Equal(t, 1, stats.AttendedSessions)
}

func TestImprovementTrend(t *testing.T) {
	db := newTestDB(t)
	svc := NewStatsService(db)

	run := func(scores []float64) ImprovementTrend {
		academyID := uuid.New()
		studentID := uuid.New()
		for i, score := range scores {
			seedReport(t, db, academyID, uuid.New(), studentID, model.AttendanceAttended,
				90, 54, f(score), sessionStart.Add(time.Duration(i)*24*time.Hour))
		}
		stats, err := svc.GetStudentStats(context.Background(), academyID, studentID, nil)
		require.NoError(t, err)
		return stats.ImprovementTrend
	}

	improving := run([]float64{5, 5, 5, 5, 5, 9, 9, 9, 9, 9})
	assert.Equal(t, TrendImproving, improving)

	declining := run([]float64{9, 9, 9, 9, 9, 5, 5, 5, 5, 5})
	assert.Equal(t, TrendDeclining, declining)

	stable := run([]float64{7.5, 7.5, 7.5, 7.5, 7.5, 7.5, 7.5, 7.5, 7.5, 7.5})
	assert.Equal(t, TrendStable, stable)

	// exactly at the threshold is stable, not improving
	edge := run([]float64{7.0, 7.0, 7.5, 7.5})
	assert.Equal(t, TrendStable, edge)

	single := run([]float64{8})
	assert.Equal(t, TrendInsufficientData, single)
}

func TestExportAttendanceData(t *testing.T) {
	db := newTestDB(t)
	svc := NewStatsService(db)

	session := seedSession(t, db, schedModel.SessionCompleted, 60)
	studentID := uuid.New()
	seedReport(t, db, session.QuranSessionAcademyID, session.QuranSessionID, studentID,
		model.AttendanceAttended, 75, 45, f(8.0), sessionStart)

	// outside the window
	old := seedSession(t, db, schedModel.SessionCompleted, 60)
	require.NoError(t, db.Model(&schedModel.QuranSessionModel{}).
		Where("quran_session_id = ?", old.QuranSessionID).
		Updates(map[string]any{
			"quran_session_academy_id":   session.QuranSessionAcademyID,
			"quran_session_scheduled_at": sessionStart.AddDate(0, -2, 0),
		}).Error)
	seedReport(t, db, session.QuranSessionAcademyID, old.QuranSessionID, studentID,
		model.AttendanceAttended, 100, 60, nil, sessionStart)

	rows, err := svc.ExportAttendanceData(context.Background(), session.QuranSessionAcademyID,
		sessionStart.AddDate(0, 0, -7), sessionStart.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, session.QuranSessionID, rows[0].SessionID)
	assert.Equal(t, session.QuranSessionCode, rows[0].SessionCode)
	assert.Equal(t, studentID, rows[0].StudentID)
	assert.InDelta(t, 75.0, rows[0].AttendancePercentage, 0.001)
	assert.Equal(t, 45, rows[0].ActualMinutes)
	require.NotNil(t, rows[0].PerformanceScore)
	assert.Equal(t, 8.0, *rows[0].PerformanceScore)
}

func TestStudentWeeklyRateAndTypeCounts(t *testing.T) {
	db := newTestDB(t)
	svc := NewStatsService(db)
	svc.Clock = clock.NewFixed(sessionStart)
	academyID := uuid.New()
	studentID := uuid.New()

	individualA := seedSession(t, db, schedModel.SessionCompleted, 60)
	individualB := seedSession(t, db, schedModel.SessionCompleted, 60)
	group := seedSession(t, db, schedModel.SessionCompleted, 60)
	require.NoError(t, db.Model(&schedModel.QuranSessionModel{}).
		Where("quran_session_id = ?", group.QuranSessionID).
		Update("quran_session_type", schedModel.SessionTypeGroup).Error)

	// two reports inside the rolling week, one attended and one absent
	seedReport(t, db, academyID, individualA.QuranSessionID, studentID, model.AttendanceAttended, 90, 54, nil, sessionStart)
	seedReport(t, db, academyID, group.QuranSessionID, studentID, model.AttendanceAbsent, 0, 0, nil, sessionStart.Add(-2*24*time.Hour))
	// an attended report ten days back only counts in the overall rate
	seedReport(t, db, academyID, individualB.QuranSessionID, studentID, model.AttendanceAttended, 80, 48, nil, sessionStart.Add(-10*24*time.Hour))

	stats, err := svc.GetStudentStats(context.Background(), academyID, studentID, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalSessions)
	assert.InDelta(t, 66.7, stats.AttendanceRate, 0.001)
	assert.InDelta(t, 50.0, stats.RateThisWeek, 0.001)
	assert.Equal(t, 2, stats.SessionTypeCounts[string(schedModel.SessionTypeIndividual)])
	assert.Equal(t, 1, stats.SessionTypeCounts[string(schedModel.SessionTypeGroup)])
}
