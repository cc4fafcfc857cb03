// file: internals/features/sessions/attendance/model/session_report_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/*
=========================================================

	Finalized attendance outcome, one row per
	(session, student); re-classification updates in place.
	=========================================================
*/
type SessionReportModel struct {
	// PK
	SessionReportID uuid.UUID `gorm:"type:uuid;primaryKey;column:session_report_id" json:"session_report_id"`

	// FKs
	SessionReportAcademyID uuid.UUID `gorm:"type:uuid;not null;column:session_report_academy_id;index:idx_session_report_academy" json:"session_report_academy_id"`
	SessionReportSessionID uuid.UUID `gorm:"type:uuid;not null;column:session_report_session_id;uniqueIndex:uq_session_report_session_student;index:idx_session_report_session" json:"session_report_session_id"`
	SessionReportStudentID uuid.UUID `gorm:"type:uuid;not null;column:session_report_student_id;uniqueIndex:uq_session_report_session_student;index:idx_session_report_student" json:"session_report_student_id"`
	SessionReportTeacherID uuid.UUID `gorm:"type:uuid;not null;column:session_report_teacher_id" json:"session_report_teacher_id"`

	// Attendance verdict
	SessionReportAttendanceStatus        AttendanceStatus `gorm:"type:varchar(16);not null;default:'absent';column:session_report_attendance_status" json:"session_report_attendance_status"`
	SessionReportAttendancePercentage    float64          `gorm:"type:numeric(5,1);not null;default:0;column:session_report_attendance_percentage" json:"session_report_attendance_percentage"`
	SessionReportActualAttendanceMinutes int              `gorm:"not null;default:0;column:session_report_actual_attendance_minutes" json:"session_report_actual_attendance_minutes"`
	SessionReportIsLate                  bool             `gorm:"not null;default:false;column:session_report_is_late" json:"session_report_is_late"`
	SessionReportLateMinutes             int              `gorm:"not null;default:0;column:session_report_late_minutes" json:"session_report_late_minutes"`

	// Null when absent
	SessionReportMeetingEnterTime *time.Time `gorm:"column:session_report_meeting_enter_time" json:"session_report_meeting_enter_time,omitempty"`
	SessionReportMeetingLeaveTime *time.Time `gorm:"column:session_report_meeting_leave_time" json:"session_report_meeting_leave_time,omitempty"`

	// Audit copy of the join/leave cycle log
	SessionReportMeetingEvents datatypes.JSON `gorm:"type:jsonb;column:session_report_meeting_events" json:"session_report_meeting_events"`

	SessionReportIsCalculated bool       `gorm:"not null;default:false;column:session_report_is_calculated;index:idx_session_report_calculated" json:"session_report_is_calculated"`
	SessionReportCalculatedAt *time.Time `gorm:"column:session_report_calculated_at" json:"session_report_calculated_at,omitempty"`

	// Teacher evaluation, settable later without touching attendance fields
	SessionReportManuallyEvaluated bool       `gorm:"not null;default:false;column:session_report_manually_evaluated" json:"session_report_manually_evaluated"`
	SessionReportEvaluatedAt       *time.Time `gorm:"column:session_report_evaluated_at" json:"session_report_evaluated_at,omitempty"`
	SessionReportNotes             *string    `gorm:"type:text;column:session_report_notes" json:"session_report_notes,omitempty"`
	SessionReportOverrideReason    *string    `gorm:"type:text;column:session_report_override_reason" json:"session_report_override_reason,omitempty"`

	// Performance score on the 0..10 scale; feeds the improvement trend
	SessionReportPerformanceScore *float64 `gorm:"type:numeric(4,1);column:session_report_performance_score" json:"session_report_performance_score,omitempty"`

	// Audit
	SessionReportCreatedAt time.Time `gorm:"column:session_report_created_at;autoCreateTime" json:"session_report_created_at"`
	SessionReportUpdatedAt time.Time `gorm:"column:session_report_updated_at;autoUpdateTime" json:"session_report_updated_at"`
}

func (SessionReportModel) TableName() string { return "session_reports" }

func (m *SessionReportModel) BeforeCreate(tx *gorm.DB) error {
	if m.SessionReportID == uuid.Nil {
		m.SessionReportID = uuid.New()
	}
	return nil
}
