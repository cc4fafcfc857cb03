// file: internals/features/sessions/scheduling/model/sessions_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*
=========================================================

	Enums
	=========================================================
*/
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionReady     SessionStatus = "ready"
	SessionOngoing   SessionStatus = "ongoing"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
	SessionMissed    SessionStatus = "missed"
)

type SessionType string

const (
	SessionTypeIndividual SessionType = "individual"
	SessionTypeGroup      SessionType = "group"
	SessionTypeTrial      SessionType = "trial"
)

/*
=========================================================

	Model

	Shared core (identity, timing, status) plus a per-variant
	payload selected by the type tag: individual → individual
	circle + student, group → circle, trial → trial request.
	=========================================================
*/
type QuranSessionModel struct {
	// PK
	QuranSessionID uuid.UUID `gorm:"type:uuid;primaryKey;column:quran_session_id" json:"quran_session_id"`

	// Tenant guard
	QuranSessionAcademyID uuid.UUID `gorm:"type:uuid;not null;column:quran_session_academy_id;index:idx_quran_session_academy" json:"quran_session_academy_id"`

	// Owning teacher; the no-overlap invariant is scoped to this id
	QuranSessionTeacherID uuid.UUID `gorm:"type:uuid;not null;column:quran_session_teacher_id;index:idx_quran_session_teacher" json:"quran_session_teacher_id"`

	// Variant tag + payload
	QuranSessionType               SessionType `gorm:"type:varchar(16);not null;column:quran_session_type" json:"quran_session_type"`
	QuranSessionCircleID           *uuid.UUID  `gorm:"type:uuid;column:quran_session_circle_id;index:idx_quran_session_circle" json:"quran_session_circle_id,omitempty"`
	QuranSessionIndividualCircleID *uuid.UUID  `gorm:"type:uuid;column:quran_session_individual_circle_id;index:idx_quran_session_individual_circle" json:"quran_session_individual_circle_id,omitempty"`
	QuranSessionStudentID          *uuid.UUID  `gorm:"type:uuid;column:quran_session_student_id" json:"quran_session_student_id,omitempty"`
	QuranSessionSubscriptionID     *uuid.UUID  `gorm:"type:uuid;column:quran_session_subscription_id" json:"quran_session_subscription_id,omitempty"`
	QuranSessionTrialRequestID     *uuid.UUID  `gorm:"type:uuid;column:quran_session_trial_request_id" json:"quran_session_trial_request_id,omitempty"`

	// Bookkeeping
	QuranSessionCode                 string    `gorm:"type:varchar(64);not null;uniqueIndex:uq_quran_session_code;column:quran_session_code" json:"quran_session_code"`
	QuranSessionMonth                time.Time `gorm:"type:date;not null;column:quran_session_month;index:idx_quran_session_month" json:"quran_session_month"`
	QuranSessionMonthlySessionNumber int       `gorm:"not null;column:quran_session_monthly_session_number" json:"quran_session_monthly_session_number"`

	QuranSessionTitle       string  `gorm:"type:text;not null;default:'';column:quran_session_title" json:"quran_session_title"`
	QuranSessionDescription *string `gorm:"type:text;column:quran_session_description" json:"quran_session_description,omitempty"`

	// Timing
	QuranSessionScheduledAt     time.Time `gorm:"not null;column:quran_session_scheduled_at;index:idx_quran_session_scheduled_at" json:"quran_session_scheduled_at"`
	QuranSessionDurationMinutes int       `gorm:"not null;column:quran_session_duration_minutes" json:"quran_session_duration_minutes"`

	// Lifecycle
	QuranSessionStatus SessionStatus `gorm:"type:varchar(16);not null;default:'scheduled';column:quran_session_status;index:idx_quran_session_status" json:"quran_session_status"`

	// Meeting room (assigned when the session becomes ready)
	QuranSessionRoomName *string `gorm:"type:varchar(160);column:quran_session_room_name" json:"quran_session_room_name,omitempty"`

	// Rekap
	QuranSessionParticipantsCount int `gorm:"not null;default:0;column:quran_session_participants_count" json:"quran_session_participants_count"`

	QuranSessionCreatedBy *uuid.UUID `gorm:"type:uuid;column:quran_session_created_by" json:"quran_session_created_by,omitempty"`

	// Audit & soft delete
	QuranSessionCreatedAt time.Time      `gorm:"column:quran_session_created_at;autoCreateTime" json:"quran_session_created_at"`
	QuranSessionUpdatedAt time.Time      `gorm:"column:quran_session_updated_at;autoUpdateTime" json:"quran_session_updated_at"`
	QuranSessionDeletedAt gorm.DeletedAt `gorm:"column:quran_session_deleted_at;index" json:"quran_session_deleted_at,omitempty"`
}

func (QuranSessionModel) TableName() string { return "quran_sessions" }

func (m *QuranSessionModel) BeforeCreate(tx *gorm.DB) error {
	if m.QuranSessionID == uuid.Nil {
		m.QuranSessionID = uuid.New()
	}
	return nil
}

// EndsAt is the exclusive end of the booked interval.
func (m *QuranSessionModel) EndsAt() time.Time {
	return m.QuranSessionScheduledAt.Add(time.Duration(m.QuranSessionDurationMinutes) * time.Minute)
}

// IsPreOngoing reports whether the session may still be deleted.
func (m *QuranSessionModel) IsPreOngoing() bool {
	return m.QuranSessionStatus == SessionScheduled || m.QuranSessionStatus == SessionReady
}

// CountsAgainstQuota reports whether the session consumes a
// subscription slot: scheduled, ongoing and completed all count.
func (s SessionStatus) CountsAgainstQuota() bool {
	return s == SessionScheduled || s == SessionReady || s == SessionOngoing || s == SessionCompleted
}

// BlocksInterval reports whether the session participates in the
// teacher no-overlap invariant. Cancelled and missed sessions free
// their window.
func (s SessionStatus) BlocksInterval() bool {
	return s == SessionScheduled || s == SessionReady || s == SessionOngoing
}

var allSessionStatuses = []SessionStatus{
	SessionScheduled, SessionReady, SessionOngoing,
	SessionCompleted, SessionCancelled, SessionMissed,
}

// QuotaStatuses lists the statuses for which CountsAgainstQuota holds,
// for use in IN() filters.
func QuotaStatuses() []SessionStatus {
	out := make([]SessionStatus, 0, len(allSessionStatuses))
	for _, st := range allSessionStatuses {
		if st.CountsAgainstQuota() {
			out = append(out, st)
		}
	}
	return out
}

// BlockingStatuses lists the statuses for which BlocksInterval holds.
func BlockingStatuses() []SessionStatus {
	out := make([]SessionStatus, 0, len(allSessionStatuses))
	for _, st := range allSessionStatuses {
		if st.BlocksInterval() {
			out = append(out, st)
		}
	}
	return out
}

// MonthOf truncates an instant to its first-of-month date (UTC).
func MonthOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
