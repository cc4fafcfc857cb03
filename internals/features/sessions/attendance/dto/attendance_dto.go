// file: internals/features/sessions/attendance/dto/attendance_dto.go
package dto

import (
	"time"

	"github.com/google/uuid"

	"halaqat_backend/internals/features/sessions/attendance/model"
)

type AttendanceEventRequest struct {
	SessionID uuid.UUID             `json:"session_id" validate:"required"`
	UserID    *uuid.UUID            `json:"user_id,omitempty"`
	Role      model.ParticipantRole `json:"role,omitempty" validate:"omitempty,oneof=student teacher"`
}

type TeacherEvaluationRequest struct {
	PerformanceScore *float64                `json:"performance_score,omitempty" validate:"omitempty,min=0,max=10"`
	Notes            *string                 `json:"notes,omitempty"`
	OverrideStatus   *model.AttendanceStatus `json:"override_status,omitempty" validate:"omitempty,oneof=attended late leaved absent"`
	OverrideReason   *string                 `json:"override_reason,omitempty"`
}

type StudentStatsRequest struct {
	StudentID  uuid.UUID   `json:"student_id" validate:"required"`
	SessionIDs []uuid.UUID `json:"session_ids,omitempty"`
}

type TrackerResponse struct {
	SessionID            uuid.UUID  `json:"session_id"`
	UserID               uuid.UUID  `json:"user_id"`
	FirstJoinTime        *time.Time `json:"first_join_time,omitempty"`
	LastLeaveTime        *time.Time `json:"last_leave_time,omitempty"`
	JoinCount            int        `json:"join_count"`
	LeaveCount           int        `json:"leave_count"`
	TotalDurationMinutes int        `json:"total_duration_minutes"`
	IsCurrentlyInMeeting bool       `json:"is_currently_in_meeting"`
}

func FromTrackerModel(m *model.MeetingAttendanceModel, now, sessionEnd time.Time) TrackerResponse {
	return TrackerResponse{
		SessionID:            m.MeetingAttendanceSessionID,
		UserID:               m.MeetingAttendanceUserID,
		FirstJoinTime:        m.MeetingAttendanceFirstJoinTime,
		LastLeaveTime:        m.MeetingAttendanceLastLeaveTime,
		JoinCount:            m.MeetingAttendanceJoinCount,
		LeaveCount:           m.MeetingAttendanceLeaveCount,
		TotalDurationMinutes: m.MeetingAttendanceTotalDurationMinutes,
		IsCurrentlyInMeeting: m.IsCurrentlyInMeeting(now, sessionEnd),
	}
}

type ReportResponse struct {
	ID                   uuid.UUID              `json:"id"`
	SessionID            uuid.UUID              `json:"session_id"`
	StudentID            uuid.UUID              `json:"student_id"`
	AttendanceStatus     model.AttendanceStatus `json:"attendance_status"`
	AttendancePercentage float64                `json:"attendance_percentage"`
	ActualMinutes        int                    `json:"actual_attendance_minutes"`
	IsLate               bool                   `json:"is_late"`
	LateMinutes          int                    `json:"late_minutes"`
	MeetingEnterTime     *time.Time             `json:"meeting_enter_time,omitempty"`
	MeetingLeaveTime     *time.Time             `json:"meeting_leave_time,omitempty"`
	ManuallyEvaluated    bool                   `json:"manually_evaluated"`
	PerformanceScore     *float64               `json:"performance_score,omitempty"`
	Notes                *string                `json:"notes,omitempty"`
}

func FromReportModel(m *model.SessionReportModel) ReportResponse {
	return ReportResponse{
		ID:                   m.SessionReportID,
		SessionID:            m.SessionReportSessionID,
		StudentID:            m.SessionReportStudentID,
		AttendanceStatus:     m.SessionReportAttendanceStatus,
		AttendancePercentage: m.SessionReportAttendancePercentage,
		ActualMinutes:        m.SessionReportActualAttendanceMinutes,
		IsLate:               m.SessionReportIsLate,
		LateMinutes:          m.SessionReportLateMinutes,
		MeetingEnterTime:     m.SessionReportMeetingEnterTime,
		MeetingLeaveTime:     m.SessionReportMeetingLeaveTime,
		ManuallyEvaluated:    m.SessionReportManuallyEvaluated,
		PerformanceScore:     m.SessionReportPerformanceScore,
		Notes:                m.SessionReportNotes,
	}
}
