// file: internals/features/sessions/attendance/model/meeting_attendance_model.go
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	schedModel "halaqat_backend/internals/features/sessions/scheduling/model"
)

/*
=========================================================

	Enums
	=========================================================
*/
type AttendanceStatus string

const (
	AttendanceAttended AttendanceStatus = "attended"
	AttendanceLate     AttendanceStatus = "late"
	AttendanceLeaved   AttendanceStatus = "leaved"
	AttendanceAbsent   AttendanceStatus = "absent"
)

type ParticipantRole string

const (
	ParticipantStudent ParticipantRole = "student"
	ParticipantTeacher ParticipantRole = "teacher"
)

/*
=========================================================

	Presence cycle log

	Closed cycles carry left_at + duration; at most one open
	cycle (left_at == nil) exists per record.
	=========================================================
*/
type AttendanceCycle struct {
	JoinedAt        time.Time  `json:"joined_at"`
	LeftAt          *time.Time `json:"left_at,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	AutoClosed      bool       `json:"auto_closed,omitempty"`
	Merged          bool       `json:"merged,omitempty"`
}

func (c AttendanceCycle) IsOpen() bool { return c.LeftAt == nil }

type CycleLog []AttendanceCycle

// OpenIndex returns the index of the open cycle, or -1.
func (l CycleLog) OpenIndex() int {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].IsOpen() {
			return i
		}
	}
	return -1
}

/*
=========================================================

	Model (one record per participant per session)
	=========================================================
*/
type MeetingAttendanceModel struct {
	// PK
	MeetingAttendanceID uuid.UUID `gorm:"type:uuid;primaryKey;column:meeting_attendance_id" json:"meeting_attendance_id"`

	// Tenant guard
	MeetingAttendanceAcademyID uuid.UUID `gorm:"type:uuid;not null;column:meeting_attendance_academy_id;index:idx_meeting_attendance_academy" json:"meeting_attendance_academy_id"`

	// Keys
	MeetingAttendanceSessionID uuid.UUID `gorm:"type:uuid;not null;column:meeting_attendance_session_id;uniqueIndex:uq_meeting_attendance_session_user;index:idx_meeting_attendance_session" json:"meeting_attendance_session_id"`
	MeetingAttendanceUserID    uuid.UUID `gorm:"type:uuid;not null;column:meeting_attendance_user_id;uniqueIndex:uq_meeting_attendance_session_user" json:"meeting_attendance_user_id"`

	MeetingAttendanceUserRole    ParticipantRole         `gorm:"type:varchar(16);not null;default:'student';column:meeting_attendance_user_role" json:"meeting_attendance_user_role"`
	MeetingAttendanceSessionType schedModel.SessionType  `gorm:"type:varchar(16);not null;column:meeting_attendance_session_type" json:"meeting_attendance_session_type"`

	// Derived fields, recomputed on every event
	MeetingAttendanceFirstJoinTime        *time.Time `gorm:"column:meeting_attendance_first_join_time" json:"meeting_attendance_first_join_time,omitempty"`
	MeetingAttendanceLastLeaveTime        *time.Time `gorm:"column:meeting_attendance_last_leave_time" json:"meeting_attendance_last_leave_time,omitempty"`
	MeetingAttendanceLastHeartbeatAt      *time.Time `gorm:"column:meeting_attendance_last_heartbeat_at" json:"meeting_attendance_last_heartbeat_at,omitempty"`
	MeetingAttendanceJoinCount            int        `gorm:"not null;default:0;column:meeting_attendance_join_count" json:"meeting_attendance_join_count"`
	MeetingAttendanceLeaveCount           int        `gorm:"not null;default:0;column:meeting_attendance_leave_count" json:"meeting_attendance_leave_count"`
	MeetingAttendanceTotalDurationMinutes int        `gorm:"not null;default:0;column:meeting_attendance_total_duration_minutes" json:"meeting_attendance_total_duration_minutes"`

	// Mirrors the cycle log so sweeps can find dangling cycles without
	// decoding JSON. Kept in sync by SetCycles.
	MeetingAttendanceHasOpenCycle bool `gorm:"not null;default:false;column:meeting_attendance_has_open_cycle;index:idx_meeting_attendance_open_cycle" json:"meeting_attendance_has_open_cycle"`

	// Ordered join/leave cycles
	MeetingAttendanceCycles datatypes.JSON `gorm:"type:jsonb;column:meeting_attendance_cycles" json:"meeting_attendance_cycles"`

	// Finalization
	MeetingAttendanceIsCalculated           bool             `gorm:"not null;default:false;column:meeting_attendance_is_calculated;index:idx_meeting_attendance_calculated" json:"meeting_attendance_is_calculated"`
	MeetingAttendanceStatus                 AttendanceStatus `gorm:"type:varchar(16);not null;default:'absent';column:meeting_attendance_status" json:"meeting_attendance_status"`
	MeetingAttendancePercentage             float64          `gorm:"type:numeric(5,2);not null;default:0;column:meeting_attendance_percentage" json:"meeting_attendance_percentage"`
	MeetingAttendanceSessionDurationMinutes *int             `gorm:"column:meeting_attendance_session_duration_minutes" json:"meeting_attendance_session_duration_minutes,omitempty"`
	MeetingAttendanceCalculatedAt           *time.Time       `gorm:"column:meeting_attendance_calculated_at" json:"meeting_attendance_calculated_at,omitempty"`

	// Audit
	MeetingAttendanceCreatedAt time.Time `gorm:"column:meeting_attendance_created_at;autoCreateTime" json:"meeting_attendance_created_at"`
	MeetingAttendanceUpdatedAt time.Time `gorm:"column:meeting_attendance_updated_at;autoUpdateTime" json:"meeting_attendance_updated_at"`
}

func (MeetingAttendanceModel) TableName() string { return "meeting_attendances" }

func (m *MeetingAttendanceModel) BeforeCreate(tx *gorm.DB) error {
	if m.MeetingAttendanceID == uuid.Nil {
		m.MeetingAttendanceID = uuid.New()
	}
	return nil
}

// Cycles decodes the stored cycle log.
func (m *MeetingAttendanceModel) Cycles() (CycleLog, error) {
	if len(m.MeetingAttendanceCycles) == 0 {
		return nil, nil
	}
	var log CycleLog
	if err := json.Unmarshal(m.MeetingAttendanceCycles, &log); err != nil {
		return nil, err
	}
	return log, nil
}

// SetCycles encodes the cycle log into the JSON column.
func (m *MeetingAttendanceModel) SetCycles(log CycleLog) error {
	if log == nil {
		log = CycleLog{}
	}
	raw, err := json.Marshal(log)
	if err != nil {
		return err
	}
	m.MeetingAttendanceCycles = datatypes.JSON(raw)
	m.MeetingAttendanceHasOpenCycle = log.OpenIndex() >= 0
	return nil
}

// IsCurrentlyInMeeting reports whether an open cycle exists. An open
// cycle left dangling past the session end (plus a 5 minute staleness
// margin) no longer counts as present.
func (m *MeetingAttendanceModel) IsCurrentlyInMeeting(now, sessionEnd time.Time) bool {
	log, err := m.Cycles()
	if err != nil {
		return false
	}
	idx := log.OpenIndex()
	if idx < 0 {
		return false
	}
	if now.Sub(log[idx].JoinedAt) > 5*time.Minute && now.After(sessionEnd) {
		return false
	}
	return true
}
