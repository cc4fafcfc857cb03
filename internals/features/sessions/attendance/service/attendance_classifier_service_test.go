// file: internals/features/sessions/attendance/service/attendance_classifier_service_test.go
package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"halaqat_backend/internals/errs"
	circleModel "halaqat_backend/internals/features/circles/model"
	notifModel "halaqat_backend/internals/features/notifications/model"
	notifService "halaqat_backend/internals/features/notifications/service"
	"halaqat_backend/internals/features/sessions/attendance/model"
	schedModel "halaqat_backend/internals/features/sessions/scheduling/model"
	"halaqat_backend/internals/helpers/clock"
)

func seedCompletedIndividualSession(t *testing.T, db *gorm.DB) (*schedModel.QuranSessionModel, uuid.UUID) {
	t.Helper()
	studentID := uuid.New()
	session := seedSession(t, db, schedModel.SessionCompleted, 60)
	require.NoError(t, db.Model(&schedModel.QuranSessionModel{}).
		Where("quran_session_id = ?", session.QuranSessionID).
		Update("quran_session_student_id", studentID).Error)
	session.QuranSessionStudentID = &studentID
	return session, studentID
}

func seedTracker(t *testing.T, db *gorm.DB, session *schedModel.QuranSessionModel, studentID uuid.UUID, joinedAt time.Time, totalMinutes int) *model.MeetingAttendanceModel {
	t.Helper()
	leftAt := joinedAt.Add(time.Duration(totalMinutes) * time.Minute)
	rec := model.MeetingAttendanceModel{
		MeetingAttendanceAcademyID:            session.QuranSessionAcademyID,
		MeetingAttendanceSessionID:            session.QuranSessionID,
		MeetingAttendanceUserID:               studentID,
		MeetingAttendanceUserRole:             model.ParticipantStudent,
		MeetingAttendanceSessionType:          session.QuranSessionType,
		MeetingAttendanceFirstJoinTime:        &joinedAt,
		MeetingAttendanceLastLeaveTime:        &leftAt,
		MeetingAttendanceJoinCount:            1,
		MeetingAttendanceLeaveCount:           1,
		MeetingAttendanceTotalDurationMinutes: totalMinutes,
		MeetingAttendanceStatus:               model.AttendanceAbsent,
	}
	require.NoError(t, rec.SetCycles(model.CycleLog{{
		JoinedAt:        joinedAt,
		LeftAt:          &leftAt,
		DurationMinutes: &totalMinutes,
	}}))
	require.NoError(t, db.Create(&rec).Error)
	return &rec
}

func TestClassifyVerdicts(t *testing.T) {
	base := seedSessionModel(60)

	cases := []struct {
		name        string
		joinOffset  time.Duration
		total       int
		grace       int
		noTracker   bool
		wantStatus  model.AttendanceStatus
		wantPct     float64
		wantLate    bool
		wantLateMin int
	}{
		{name: "never joined", noTracker: true, wantStatus: model.AttendanceAbsent},
		{name: "full attendance", total: 45, grace: 10, wantStatus: model.AttendanceAttended, wantPct: 75.0},
		{name: "below thirty percent", total: 15, grace: 10, wantStatus: model.AttendanceAbsent, wantPct: 25.0},
		{name: "between thirty and fifty", total: 25, grace: 10, wantStatus: model.AttendanceLeaved, wantPct: 41.7},
		{name: "at fifty percent", total: 30, grace: 10, wantStatus: model.AttendanceAttended, wantPct: 50.0},
		{name: "late past grace", joinOffset: 15 * time.Minute, total: 45, grace: 10, wantStatus: model.AttendanceAbsent, wantPct: 75.0, wantLate: true, wantLateMin: 15},
		{name: "late within grace", joinOffset: 8 * time.Minute, total: 45, grace: 10, wantStatus: model.AttendanceAttended, wantPct: 75.0, wantLateMin: 8},
		{name: "joined but zero minutes", total: 0, grace: 10, wantStatus: model.AttendanceAbsent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var tracker *model.MeetingAttendanceModel
			if !tc.noTracker {
				joined := base.QuranSessionScheduledAt.Add(tc.joinOffset)
				tracker = &model.MeetingAttendanceModel{
					MeetingAttendanceFirstJoinTime:        &joined,
					MeetingAttendanceTotalDurationMinutes: tc.total,
				}
			}
			v := Classify(base, tracker, tc.grace)
			assert.Equal(t, tc.wantStatus, v.Status)
			assert.InDelta(t, tc.wantPct, v.Percentage, 0.001)
			assert.Equal(t, tc.wantLate, v.IsLate)
			assert.Equal(t, tc.wantLateMin, v.LateMinutes)
			if v.Status == model.AttendanceAbsent {
				assert.Nil(t, v.EnterTime)
				assert.Nil(t, v.LeaveTime)
			} else {
				assert.NotNil(t, v.EnterTime)
			}
		})
	}
}

func seedSessionModel(durationMinutes int) *schedModel.QuranSessionModel {
	return &schedModel.QuranSessionModel{
		QuranSessionID:              uuid.New(),
		QuranSessionScheduledAt:     sessionStart,
		QuranSessionDurationMinutes: durationMinutes,
	}
}

func TestClassifySessionWritesReport(t *testing.T) {
	db := newTestDB(t)
	clk := clock.NewFixed(sessionStart.Add(2 * time.Hour))
	svc := NewClassifierService(db, clk, nil)
	session, studentID := seedCompletedIndividualSession(t, db)
	seedTracker(t, db, session, studentID, sessionStart.Add(5*time.Minute), 45)

	out, err := svc.ClassifySession(context.Background(), session.QuranSessionAcademyID, session.QuranSessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, out.ProcessedSessions)
	assert.Equal(t, 1, out.ReportsWritten)
	assert.Empty(t, out.Errors)

	var report model.SessionReportModel
	require.NoError(t, db.First(&report,
		"session_report_session_id = ? AND session_report_student_id = ?",
		session.QuranSessionID, studentID).Error)
	assert.Equal(t, model.AttendanceAttended, report.SessionReportAttendanceStatus)
	assert.InDelta(t, 75.0, report.SessionReportAttendancePercentage, 0.001)
	assert.Equal(t, 45, report.SessionReportActualAttendanceMinutes)
	assert.False(t, report.SessionReportIsLate)
	assert.Equal(t, 5, report.SessionReportLateMinutes)
	assert.True(t, report.SessionReportIsCalculated)
	require.NotNil(t, report.SessionReportMeetingEnterTime)
	require.NotNil(t, report.SessionReportMeetingLeaveTime)

	var tracker model.MeetingAttendanceModel
	require.NoError(t, db.First(&tracker,
		"meeting_attendance_session_id = ? AND meeting_attendance_user_id = ?",
		session.QuranSessionID, studentID).Error)
	assert.True(t, tracker.MeetingAttendanceIsCalculated)
	assert.Equal(t, model.AttendanceAttended, tracker.MeetingAttendanceStatus)
	require.NotNil(t, tracker.MeetingAttendanceSessionDurationMinutes)
	assert.Equal(t, 60, *tracker.MeetingAttendanceSessionDurationMinutes)

	var reloaded schedModel.QuranSessionModel
	require.NoError(t, db.First(&reloaded, "quran_session_id = ?", session.QuranSessionID).Error)
	assert.Equal(t, 1, reloaded.QuranSessionParticipantsCount)
}

func TestClassifyAbsentWithoutTracker(t *testing.T) {
	db := newTestDB(t)
	svc := NewClassifierService(db, clock.NewFixed(sessionStart.Add(2*time.Hour)), nil)
	session, studentID := seedCompletedIndividualSession(t, db)

	out, err := svc.ClassifySession(context.Background(), session.QuranSessionAcademyID, session.QuranSessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, out.ReportsWritten)

	var report model.SessionReportModel
	require.NoError(t, db.First(&report, "session_report_student_id = ?", studentID).Error)
	assert.Equal(t, model.AttendanceAbsent, report.SessionReportAttendanceStatus)
	assert.Zero(t, report.SessionReportAttendancePercentage)
	assert.Nil(t, report.SessionReportMeetingEnterTime)
	assert.Nil(t, report.SessionReportMeetingLeaveTime)
}

func TestReclassifyUpdatesInPlace(t *testing.T) {
	db := newTestDB(t)
	clk := clock.NewFixed(sessionStart.Add(2 * time.Hour))
	svc := NewClassifierService(db, clk, nil)
	session, studentID := seedCompletedIndividualSession(t, db)
	tracker := seedTracker(t, db, session, studentID, sessionStart, 20)

	_, err := svc.ClassifySession(context.Background(), session.QuranSessionAcademyID, session.QuranSessionID)
	require.NoError(t, err)

	var report model.SessionReportModel
	require.NoError(t, db.First(&report, "session_report_student_id = ?", studentID).Error)
	assert.Equal(t, model.AttendanceLeaved, report.SessionReportAttendanceStatus)

	// correct the tracker upward, then recalculate the single student
	require.NoError(t, db.Model(&model.MeetingAttendanceModel{}).
		Where("meeting_attendance_id = ?", tracker.MeetingAttendanceID).
		Update("meeting_attendance_total_duration_minutes", 50).Error)

	updated, err := svc.RecalculateAttendance(context.Background(),
		session.QuranSessionAcademyID, session.QuranSessionID, studentID)
	require.NoError(t, err)
	assert.Equal(t, model.AttendanceAttended, updated.SessionReportAttendanceStatus)

	var n int64
	require.NoError(t, db.Model(&model.SessionReportModel{}).
		Where("session_report_student_id = ?", studentID).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestClassifyUsesCircleGraceOverride(t *testing.T) {
	db := newTestDB(t)
	svc := NewClassifierService(db, clock.NewFixed(sessionStart.Add(2*time.Hour)), nil)
	session, studentID := seedCompletedIndividualSession(t, db)

	grace := 20
	ic := circleModel.IndividualCircleModel{
		IndividualCircleAcademyID:      session.QuranSessionAcademyID,
		IndividualCircleTeacherID:      session.QuranSessionTeacherID,
		IndividualCircleStudentID:      studentID,
		IndividualCircleSubscriptionID: uuid.New(),
		IndividualCircleTotalSessions:  8,
		IndividualCircleMaxLateMinutes: &grace,
		IndividualCircleStatus:         "enrolled",
	}
	require.NoError(t, db.Create(&ic).Error)
	require.NoError(t, db.Model(&schedModel.QuranSessionModel{}).
		Where("quran_session_id = ?", session.QuranSessionID).
		Update("quran_session_individual_circle_id", ic.IndividualCircleID).Error)

	// 15 minutes late: past the 10 minute default, inside the override
	seedTracker(t, db, session, studentID, sessionStart.Add(15*time.Minute), 40)

	_, err := svc.ClassifySession(context.Background(), session.QuranSessionAcademyID, session.QuranSessionID)
	require.NoError(t, err)

	var report model.SessionReportModel
	require.NoError(t, db.First(&report, "session_report_student_id = ?", studentID).Error)
	assert.Equal(t, model.AttendanceAttended, report.SessionReportAttendanceStatus)
	assert.False(t, report.SessionReportIsLate)
	assert.Equal(t, 15, report.SessionReportLateMinutes)
}

func TestClassifyCompletedSessionsBatch(t *testing.T) {
	db := newTestDB(t)
	svc := NewClassifierService(db, clock.NewFixed(sessionStart.Add(2*time.Hour)), nil)

	okSession, okStudent := seedCompletedIndividualSession(t, db)
	seedTracker(t, db, okSession, okStudent, sessionStart, 45)

	// a group session whose circle is gone classifies with an error entry
	broken := seedSession(t, db, schedModel.SessionCompleted, 60)
	missingCircle := uuid.New()
	require.NoError(t, db.Model(&schedModel.QuranSessionModel{}).
		Where("quran_session_id = ?", broken.QuranSessionID).
		Updates(map[string]any{
			"quran_session_type":      schedModel.SessionTypeGroup,
			"quran_session_circle_id": missingCircle,
		}).Error)

	// this one already has its report and stays untouched
	done, doneStudent := seedCompletedIndividualSession(t, db)
	tr := seedTracker(t, db, done, doneStudent, sessionStart, 45)
	require.NoError(t, db.Model(&model.MeetingAttendanceModel{}).
		Where("meeting_attendance_id = ?", tr.MeetingAttendanceID).
		Update("meeting_attendance_is_calculated", true).Error)
	require.NoError(t, db.Create(&model.SessionReportModel{
		SessionReportAcademyID:        done.QuranSessionAcademyID,
		SessionReportSessionID:        done.QuranSessionID,
		SessionReportStudentID:        doneStudent,
		SessionReportTeacherID:        done.QuranSessionTeacherID,
		SessionReportAttendanceStatus: model.AttendanceAttended,
		SessionReportIsCalculated:     true,
	}).Error)

	out, err := svc.ClassifyCompletedSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, out.ProcessedSessions)
	assert.Equal(t, 1, out.ReportsWritten)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, broken.QuranSessionID, out.Errors[0].SessionID)
}

func TestClassificationNotifiesStudentAndGuardian(t *testing.T) {
	db := newTestDB(t)
	notifier := notifService.NewOutboxNotifier(db)
	svc := NewClassifierService(db, clock.NewFixed(sessionStart.Add(2*time.Hour)), notifier)
	session, studentID := seedCompletedIndividualSession(t, db)
	seedTracker(t, db, session, studentID, sessionStart, 45)

	guardianID := uuid.New()
	require.NoError(t, db.Create(&circleModel.StudentGuardianModel{
		StudentGuardianAcademyID:  session.QuranSessionAcademyID,
		StudentGuardianStudentID:  studentID,
		StudentGuardianGuardianID: guardianID,
	}).Error)

	_, err := svc.ClassifySession(context.Background(), session.QuranSessionAcademyID, session.QuranSessionID)
	require.NoError(t, err)

	var rows []notifModel.NotificationOutboxModel
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 2)
	recipients := map[uuid.UUID]string{}
	for _, row := range rows {
		recipients[row.NotificationOutboxUserID] = string(row.NotificationOutboxType)
	}
	assert.Equal(t, string(notifModel.TypeReportFinalized), recipients[studentID])
	assert.Equal(t, string(notifModel.TypeGuardianSummary), recipients[guardianID])

	// re-runs do not re-notify
	_, err = svc.ClassifySession(context.Background(), session.QuranSessionAcademyID, session.QuranSessionID)
	require.NoError(t, err)
	var n int64
	require.NoError(t, db.Model(&notifModel.NotificationOutboxModel{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)
}

func TestRecordTeacherEvaluation(t *testing.T) {
	db := newTestDB(t)
	clk := clock.NewFixed(sessionStart.Add(2 * time.Hour))
	svc := NewClassifierService(db, clk, nil)
	session, studentID := seedCompletedIndividualSession(t, db)
	seedTracker(t, db, session, studentID, sessionStart, 45)
	_, err := svc.ClassifySession(context.Background(), session.QuranSessionAcademyID, session.QuranSessionID)
	require.NoError(t, err)

	var report model.SessionReportModel
	require.NoError(t, db.First(&report, "session_report_student_id = ?", studentID).Error)

	bad := 11.0
	_, err = svc.RecordTeacherEvaluation(context.Background(), TeacherEvaluationInput{
		AcademyID:        session.QuranSessionAcademyID,
		ReportID:         report.SessionReportID,
		PerformanceScore: &bad,
	})
	require.Error(t, err)

	override := model.AttendanceAbsent
	_, err = svc.RecordTeacherEvaluation(context.Background(), TeacherEvaluationInput{
		AcademyID:      session.QuranSessionAcademyID,
		ReportID:       report.SessionReportID,
		OverrideStatus: &override,
	})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindStateConflict))

	score := 8.5
	notes := "حفظ متقن"
	reason := "حضر بهوية أخرى"
	updated, err := svc.RecordTeacherEvaluation(context.Background(), TeacherEvaluationInput{
		AcademyID:        session.QuranSessionAcademyID,
		ReportID:         report.SessionReportID,
		PerformanceScore: &score,
		Notes:            &notes,
		OverrideStatus:   &override,
		OverrideReason:   &reason,
	})
	require.NoError(t, err)
	assert.True(t, updated.SessionReportManuallyEvaluated)
	assert.Equal(t, model.AttendanceAbsent, updated.SessionReportAttendanceStatus)
	require.NotNil(t, updated.SessionReportPerformanceScore)
	assert.Equal(t, 8.5, *updated.SessionReportPerformanceScore)
	require.NotNil(t, updated.SessionReportOverrideReason)
}

func TestClassifyClosesDanglingOpenCycle(t *testing.T) {
	db := newTestDB(t)
	session, studentID := seedCompletedIndividualSession(t, db)

	// joined at the start, leave event never arrived
	joined := session.QuranSessionScheduledAt
	rec := model.MeetingAttendanceModel{
		MeetingAttendanceAcademyID:     session.QuranSessionAcademyID,
		MeetingAttendanceSessionID:     session.QuranSessionID,
		MeetingAttendanceUserID:        studentID,
		MeetingAttendanceUserRole:      model.ParticipantStudent,
		MeetingAttendanceSessionType:   session.QuranSessionType,
		MeetingAttendanceFirstJoinTime: &joined,
		MeetingAttendanceJoinCount:     1,
		MeetingAttendanceStatus:        model.AttendanceAbsent,
	}
	require.NoError(t, rec.SetCycles(model.CycleLog{{JoinedAt: joined}}))
	require.NoError(t, db.Create(&rec).Error)

	svc := NewClassifierService(db, clock.NewFixed(sessionStart.Add(2*time.Hour)), nil)
	res, err := svc.ClassifySession(context.Background(), session.QuranSessionAcademyID, session.QuranSessionID)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 1, res.ReportsWritten)

	var report model.SessionReportModel
	require.NoError(t, db.First(&report,
		"session_report_session_id = ? AND session_report_student_id = ?",
		session.QuranSessionID, studentID).Error)
	assert.Equal(t, model.AttendanceAttended, report.SessionReportAttendanceStatus)
	assert.Equal(t, 60, report.SessionReportActualAttendanceMinutes)
	assert.InDelta(t, 100.0, report.SessionReportAttendancePercentage, 0.001)

	var reloaded model.MeetingAttendanceModel
	require.NoError(t, db.First(&reloaded, "meeting_attendance_user_id = ?", studentID).Error)
	assert.Equal(t, 60, reloaded.MeetingAttendanceTotalDurationMinutes)
	assert.Equal(t, 1, reloaded.MeetingAttendanceLeaveCount)
	assert.False(t, reloaded.MeetingAttendanceHasOpenCycle)

	cycles, err := reloaded.Cycles()
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.True(t, cycles[0].AutoClosed)
	require.NotNil(t, cycles[0].LeftAt)
	assert.True(t, cycles[0].LeftAt.Equal(session.EndsAt()))
}
