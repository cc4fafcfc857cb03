// file: internals/features/sessions/attendance/service/attendance_classifier_service.go
package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"halaqat_backend/internals/configs"
	"halaqat_backend/internals/errs"
	circleModel "halaqat_backend/internals/features/circles/model"
	notifModel "halaqat_backend/internals/features/notifications/model"
	notifService "halaqat_backend/internals/features/notifications/service"
	"halaqat_backend/internals/features/sessions/attendance/model"
	schedModel "halaqat_backend/internals/features/sessions/scheduling/model"
	"halaqat_backend/internals/helpers/clock"
)

// Status bands, in percent of the session duration.
const (
	absentBelowPercentage = 30.0
	leavedBelowPercentage = 50.0
)

/*
=========================================================

	Classifier

	Turns tracker records into reports once a session
	completes. Re-running updates existing reports in place.
	=========================================================
*/
type ClassifierService struct {
	DB       *gorm.DB
	Clock    clock.Clock
	Notifier notifService.Notifier
}

func NewClassifierService(db *gorm.DB, clk clock.Clock, notifier notifService.Notifier) *ClassifierService {
	if clk == nil {
		clk = clock.System()
	}
	return &ClassifierService{DB: db, Clock: clk, Notifier: notifier}
}

// ClassifyResult collects a batch outcome; per-unit failures never
// abort the remainder.
type ClassifyResult struct {
	ProcessedSessions int             `json:"processed_sessions"`
	ReportsWritten    int             `json:"reports_written"`
	Errors            []ClassifyError `json:"errors"`
}

type ClassifyError struct {
	SessionID uuid.UUID  `json:"session_id"`
	StudentID *uuid.UUID `json:"student_id,omitempty"`
	Reason    string     `json:"reason"`
}

/* =========================
   Session-level entry points
========================= */

// ClassifySession writes one report per student participant of the
// session: roster members who never joined become absent reports.
func (s *ClassifierService) ClassifySession(ctx context.Context, academyID, sessionID uuid.UUID) (*ClassifyResult, error) {
	var session schedModel.QuranSessionModel
	err := s.DB.WithContext(ctx).
		Where("quran_session_id = ? AND quran_session_academy_id = ?", sessionID, academyID).
		Take(&session).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.NotFound("الجلسة غير موجودة")
	}
	if err != nil {
		return nil, err
	}

	out := &ClassifyResult{ProcessedSessions: 1}
	s.classifyOne(ctx, &session, out)
	return out, nil
}

// ClassifyCompletedSessions sweeps every completed session that still
// has unclassified tracker records or no reports at all.
func (s *ClassifierService) ClassifyCompletedSessions(ctx context.Context) (*ClassifyResult, error) {
	unclassified := s.DB.Model(&model.MeetingAttendanceModel{}).
		Select("meeting_attendance_session_id").
		Where("meeting_attendance_is_calculated = ?", false)
	reported := s.DB.Model(&model.SessionReportModel{}).
		Select("session_report_session_id")

	var sessions []schedModel.QuranSessionModel
	err := s.DB.WithContext(ctx).
		Where("quran_session_status = ?", schedModel.SessionCompleted).
		Where(s.DB.
			Where("quran_session_id IN (?)", unclassified).
			Or("quran_session_id NOT IN (?)", reported)).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	out := &ClassifyResult{}
	for i := range sessions {
		out.ProcessedSessions++
		s.classifyOne(ctx, &sessions[i], out)
	}
	if out.ProcessedSessions > 0 {
		log.Printf("🧮 Classified %d sessions, %d reports, %d errors",
			out.ProcessedSessions, out.ReportsWritten, len(out.Errors))
	}
	return out, nil
}

func (s *ClassifierService) classifyOne(ctx context.Context, session *schedModel.QuranSessionModel, out *ClassifyResult) {
	s.closeDanglingCycles(ctx, session)

	students, err := s.resolveStudents(ctx, session)
	if err != nil {
		out.Errors = append(out.Errors, ClassifyError{SessionID: session.QuranSessionID, Reason: err.Error()})
		return
	}

	grace, err := s.resolveGrace(ctx, session)
	if err != nil {
		grace = configs.DefaultMaxLateMinutes()
	}

	written := 0
	for _, studentID := range students {
		if err := s.classifyParticipant(ctx, session, studentID, grace); err != nil {
			sid := studentID
			out.Errors = append(out.Errors, ClassifyError{
				SessionID: session.QuranSessionID,
				StudentID: &sid,
				Reason:    err.Error(),
			})
			continue
		}
		written++
	}
	out.ReportsWritten += written

	if err := s.DB.WithContext(ctx).Model(&schedModel.QuranSessionModel{}).
		Where("quran_session_id = ?", session.QuranSessionID).
		Update("quran_session_participants_count", written).Error; err != nil {
		log.Println("[ERROR] update participants count:", err)
	}
}

// closeDanglingCycles seals any still-open cycle at the session end so
// a participant whose leave event never arrived keeps the accumulated
// minutes instead of finalizing at zero.
func (s *ClassifierService) closeDanglingCycles(ctx context.Context, session *schedModel.QuranSessionModel) {
	var records []model.MeetingAttendanceModel
	if err := s.DB.WithContext(ctx).
		Where("meeting_attendance_session_id = ?", session.QuranSessionID).
		Where("meeting_attendance_is_calculated = ?", false).
		Where("meeting_attendance_has_open_cycle = ?", true).
		Find(&records).Error; err != nil {
		log.Println("[ERROR] load dangling cycles:", err)
		return
	}

	end := session.EndsAt()
	for i := range records {
		record := &records[i]
		cycles, err := record.Cycles()
		if err != nil {
			continue
		}
		idx := cycles.OpenIndex()
		if idx < 0 {
			continue
		}
		duration := clippedMinutes(cycles[idx].JoinedAt, end, session)
		cycles[idx].LeftAt = &end
		cycles[idx].DurationMinutes = &duration
		cycles[idx].AutoClosed = true
		if err := record.SetCycles(cycles); err != nil {
			continue
		}
		record.MeetingAttendanceLastLeaveTime = &end
		record.MeetingAttendanceLeaveCount++
		record.MeetingAttendanceTotalDurationMinutes += duration
		if err := s.DB.WithContext(ctx).Save(record).Error; err != nil {
			log.Println("[ERROR] close dangling cycle:", err)
		}
	}
}

/* =========================
   Per-participant classification
========================= */

func (s *ClassifierService) classifyParticipant(ctx context.Context, session *schedModel.QuranSessionModel, studentID uuid.UUID, graceMinutes int) error {
	var tracker *model.MeetingAttendanceModel
	var rec model.MeetingAttendanceModel
	err := s.DB.WithContext(ctx).
		Where("meeting_attendance_session_id = ? AND meeting_attendance_user_id = ?", session.QuranSessionID, studentID).
		Take(&rec).Error
	switch err {
	case nil:
		tracker = &rec
	case gorm.ErrRecordNotFound:
		tracker = nil
	default:
		return err
	}

	verdict := Classify(session, tracker, graceMinutes)

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var report model.SessionReportModel
		firstTime := false
		err := tx.
			Where("session_report_session_id = ? AND session_report_student_id = ?", session.QuranSessionID, studentID).
			Take(&report).Error
		if err == gorm.ErrRecordNotFound {
			firstTime = true
			report = model.SessionReportModel{
				SessionReportAcademyID: session.QuranSessionAcademyID,
				SessionReportSessionID: session.QuranSessionID,
				SessionReportStudentID: studentID,
				SessionReportTeacherID: session.QuranSessionTeacherID,
			}
		} else if err != nil {
			return err
		}

		now := s.Clock.Now()
		report.SessionReportAttendanceStatus = verdict.Status
		report.SessionReportAttendancePercentage = verdict.Percentage
		report.SessionReportActualAttendanceMinutes = verdict.ActualMinutes
		report.SessionReportIsLate = verdict.IsLate
		report.SessionReportLateMinutes = verdict.LateMinutes
		report.SessionReportMeetingEnterTime = verdict.EnterTime
		report.SessionReportMeetingLeaveTime = verdict.LeaveTime
		report.SessionReportIsCalculated = true
		report.SessionReportCalculatedAt = &now
		if tracker != nil {
			report.SessionReportMeetingEvents = tracker.MeetingAttendanceCycles
		}

		if err := tx.Save(&report).Error; err != nil {
			return err
		}

		if tracker != nil {
			duration := session.QuranSessionDurationMinutes
			if err := tx.Model(&model.MeetingAttendanceModel{}).
				Where("meeting_attendance_id = ?", tracker.MeetingAttendanceID).
				Updates(map[string]any{
					"meeting_attendance_is_calculated":            true,
					"meeting_attendance_status":                   verdict.Status,
					"meeting_attendance_percentage":               verdict.Percentage,
					"meeting_attendance_session_duration_minutes": duration,
					"meeting_attendance_calculated_at":            now,
				}).Error; err != nil {
				return err
			}
		}

		if firstTime {
			s.notifyFinalized(ctx, tx, session, studentID, verdict)
		}
		return nil
	})
}

// Verdict is the pure classification outcome.
type Verdict struct {
	Status        model.AttendanceStatus
	Percentage    float64
	ActualMinutes int
	IsLate        bool
	LateMinutes   int
	EnterTime     *time.Time
	LeaveTime     *time.Time
}

// Classify derives the verdict from scheduled timing and the tracker's
// accumulated presence. A nil tracker means the student never joined.
func Classify(session *schedModel.QuranSessionModel, tracker *model.MeetingAttendanceModel, graceMinutes int) Verdict {
	v := Verdict{Status: model.AttendanceAbsent}
	if tracker == nil || tracker.MeetingAttendanceFirstJoinTime == nil {
		return v
	}

	if late := tracker.MeetingAttendanceFirstJoinTime.Sub(session.QuranSessionScheduledAt); late > 0 {
		v.LateMinutes = int(late.Minutes())
	}
	v.IsLate = v.LateMinutes > graceMinutes

	v.ActualMinutes = tracker.MeetingAttendanceTotalDurationMinutes
	if session.QuranSessionDurationMinutes > 0 {
		pct := float64(v.ActualMinutes) / float64(session.QuranSessionDurationMinutes) * 100
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		v.Percentage = math.Round(pct*10) / 10
	}

	switch {
	case v.ActualMinutes == 0:
		v.Status = model.AttendanceAbsent
	case v.LateMinutes > graceMinutes:
		v.Status = model.AttendanceAbsent
	case v.Percentage < absentBelowPercentage:
		v.Status = model.AttendanceAbsent
	case v.Percentage < leavedBelowPercentage:
		v.Status = model.AttendanceLeaved
	default:
		v.Status = model.AttendanceAttended
	}

	if v.Status != model.AttendanceAbsent {
		v.EnterTime = tracker.MeetingAttendanceFirstJoinTime
		v.LeaveTime = tracker.MeetingAttendanceLastLeaveTime
	}
	return v
}

/* =========================
   Re-runs and evaluation
========================= */

// RecalculateAttendance re-derives a single student's report after a
// manual tracker correction.
func (s *ClassifierService) RecalculateAttendance(ctx context.Context, academyID, sessionID, studentID uuid.UUID) (*model.SessionReportModel, error) {
	var session schedModel.QuranSessionModel
	err := s.DB.WithContext(ctx).
		Where("quran_session_id = ? AND quran_session_academy_id = ?", sessionID, academyID).
		Take(&session).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.NotFound("الجلسة غير موجودة")
	}
	if err != nil {
		return nil, err
	}

	grace, err := s.resolveGrace(ctx, &session)
	if err != nil {
		grace = configs.DefaultMaxLateMinutes()
	}
	if err := s.classifyParticipant(ctx, &session, studentID, grace); err != nil {
		return nil, err
	}

	var report model.SessionReportModel
	if err := s.DB.WithContext(ctx).
		Where("session_report_session_id = ? AND session_report_student_id = ?", sessionID, studentID).
		Take(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

type TeacherEvaluationInput struct {
	AcademyID        uuid.UUID
	ReportID         uuid.UUID
	PerformanceScore *float64
	Notes            *string
	OverrideStatus   *model.AttendanceStatus
	OverrideReason   *string
}

// RecordTeacherEvaluation attaches the teacher's judgement to a report
// without disturbing the derived attendance fields, except when an
// explicit status override (with reason) is given.
func (s *ClassifierService) RecordTeacherEvaluation(ctx context.Context, in TeacherEvaluationInput) (*model.SessionReportModel, error) {
	if in.PerformanceScore != nil && (*in.PerformanceScore < 0 || *in.PerformanceScore > 10) {
		return nil, errs.InvalidSchedule("درجة التقييم يجب أن تكون بين 0 و 10")
	}
	if in.OverrideStatus != nil && (in.OverrideReason == nil || *in.OverrideReason == "") {
		return nil, errs.StateConflict("تغيير حالة الحضور يتطلب ذكر السبب")
	}

	var report model.SessionReportModel
	err := s.DB.WithContext(ctx).
		Where("session_report_id = ? AND session_report_academy_id = ?", in.ReportID, in.AcademyID).
		Take(&report).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.NotFound("التقرير غير موجود")
	}
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	report.SessionReportManuallyEvaluated = true
	report.SessionReportEvaluatedAt = &now
	if in.PerformanceScore != nil {
		report.SessionReportPerformanceScore = in.PerformanceScore
	}
	if in.Notes != nil {
		report.SessionReportNotes = in.Notes
	}
	if in.OverrideStatus != nil {
		report.SessionReportAttendanceStatus = *in.OverrideStatus
		report.SessionReportOverrideReason = in.OverrideReason
	}
	if err := s.DB.WithContext(ctx).Save(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

/* =========================
   Internals
========================= */

// resolveStudents lists the student ids a completed session must report
// on: the roster (or single student) plus anyone with a tracker record.
func (s *ClassifierService) resolveStudents(ctx context.Context, session *schedModel.QuranSessionModel) ([]uuid.UUID, error) {
	set := map[uuid.UUID]struct{}{}

	switch session.QuranSessionType {
	case schedModel.SessionTypeGroup:
		if session.QuranSessionCircleID == nil {
			return nil, fmt.Errorf("group session %s has no circle", session.QuranSessionID)
		}
		var circle circleModel.QuranCircleModel
		err := s.DB.WithContext(ctx).
			Where("quran_circle_id = ?", *session.QuranSessionCircleID).
			Take(&circle).Error
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("circle %s no longer exists", *session.QuranSessionCircleID)
		}
		if err != nil {
			return nil, err
		}
		var roster []uuid.UUID
		if err := s.DB.WithContext(ctx).Model(&circleModel.QuranCircleStudentModel{}).
			Where("quran_circle_student_circle_id = ?", circle.QuranCircleID).
			Pluck("quran_circle_student_student_id", &roster).Error; err != nil {
			return nil, err
		}
		for _, id := range roster {
			set[id] = struct{}{}
		}
	default:
		if session.QuranSessionStudentID != nil {
			set[*session.QuranSessionStudentID] = struct{}{}
		}
	}

	var joined []uuid.UUID
	if err := s.DB.WithContext(ctx).Model(&model.MeetingAttendanceModel{}).
		Where("meeting_attendance_session_id = ? AND meeting_attendance_user_role = ?",
			session.QuranSessionID, model.ParticipantStudent).
		Pluck("meeting_attendance_user_id", &joined).Error; err != nil {
		return nil, err
	}
	for _, id := range joined {
		set[id] = struct{}{}
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("session %s has no student participants", session.QuranSessionID)
	}
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out, nil
}

// resolveGrace returns the circle's lateness threshold, falling back to
// the academy default.
func (s *ClassifierService) resolveGrace(ctx context.Context, session *schedModel.QuranSessionModel) (int, error) {
	switch session.QuranSessionType {
	case schedModel.SessionTypeGroup:
		if session.QuranSessionCircleID != nil {
			var circle circleModel.QuranCircleModel
			if err := s.DB.WithContext(ctx).
				Where("quran_circle_id = ?", *session.QuranSessionCircleID).
				Take(&circle).Error; err != nil {
				return 0, err
			}
			if circle.QuranCircleMaxLateMinutes != nil {
				return *circle.QuranCircleMaxLateMinutes, nil
			}
		}
	case schedModel.SessionTypeIndividual:
		if session.QuranSessionIndividualCircleID != nil {
			var ic circleModel.IndividualCircleModel
			if err := s.DB.WithContext(ctx).
				Where("individual_circle_id = ?", *session.QuranSessionIndividualCircleID).
				Take(&ic).Error; err != nil {
				return 0, err
			}
			if ic.IndividualCircleMaxLateMinutes != nil {
				return *ic.IndividualCircleMaxLateMinutes, nil
			}
		}
	}
	return configs.DefaultMaxLateMinutes(), nil
}

func (s *ClassifierService) notifyFinalized(ctx context.Context, tx *gorm.DB, session *schedModel.QuranSessionModel, studentID uuid.UUID, verdict Verdict) {
	if s.Notifier == nil {
		return
	}
	payload := map[string]any{
		"session_id":            session.QuranSessionID.String(),
		"session_code":          session.QuranSessionCode,
		"attendance_status":     string(verdict.Status),
		"attendance_percentage": verdict.Percentage,
	}
	if err := s.Notifier.Notify(tx, notifService.Notification{
		AcademyID: session.QuranSessionAcademyID,
		UserID:    studentID,
		Type:      notifModel.TypeReportFinalized,
		Payload:   payload,
	}); err != nil {
		log.Println("[ERROR] notify student:", err)
	}

	guardians, err := s.Notifier.GuardiansForStudent(ctx, session.QuranSessionAcademyID, studentID)
	if err != nil {
		log.Println("[ERROR] guardian lookup:", err)
		return
	}
	for _, g := range guardians {
		if err := s.Notifier.Notify(tx, notifService.Notification{
			AcademyID: session.QuranSessionAcademyID,
			UserID:    g,
			Type:      notifModel.TypeGuardianSummary,
			Payload:   payload,
		}); err != nil {
			log.Println("[ERROR] notify guardian:", err)
		}
	}
}
