// file: internals/features/circles/model/individual_circle_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*
=========================================================

	Individual circle (one teacher + one student, quota-backed)
	=========================================================

The owning subscription's quota lives here: remaining sessions =
total − count(scheduled|ongoing|completed).
*/
type IndividualCircleModel struct {
	// PK
	IndividualCircleID uuid.UUID `gorm:"type:uuid;primaryKey;column:individual_circle_id" json:"individual_circle_id"`

	// Tenant guard
	IndividualCircleAcademyID uuid.UUID `gorm:"type:uuid;not null;column:individual_circle_academy_id;index:idx_individual_circle_academy" json:"individual_circle_academy_id"`

	IndividualCircleTeacherID uuid.UUID `gorm:"type:uuid;not null;column:individual_circle_teacher_id;index:idx_individual_circle_teacher" json:"individual_circle_teacher_id"`
	IndividualCircleStudentID uuid.UUID `gorm:"type:uuid;not null;column:individual_circle_student_id;index:idx_individual_circle_student" json:"individual_circle_student_id"`

	// Subscription quota
	IndividualCircleSubscriptionID uuid.UUID `gorm:"type:uuid;not null;column:individual_circle_subscription_id" json:"individual_circle_subscription_id"`
	IndividualCircleTotalSessions  int       `gorm:"not null;default:0;column:individual_circle_total_sessions" json:"individual_circle_total_sessions"`

	// Default duration from subscription package; nil → hard fallback
	IndividualCircleSessionDurationMinutes *int `gorm:"column:individual_circle_session_duration_minutes" json:"individual_circle_session_duration_minutes,omitempty"`

	IndividualCircleMaxLateMinutes *int `gorm:"column:individual_circle_max_late_minutes" json:"individual_circle_max_late_minutes,omitempty"`

	IndividualCircleStatus string `gorm:"type:varchar(24);not null;default:'enrolled';column:individual_circle_status" json:"individual_circle_status"`

	// Audit & soft delete
	IndividualCircleCreatedAt time.Time      `gorm:"column:individual_circle_created_at;autoCreateTime" json:"individual_circle_created_at"`
	IndividualCircleUpdatedAt time.Time      `gorm:"column:individual_circle_updated_at;autoUpdateTime" json:"individual_circle_updated_at"`
	IndividualCircleDeletedAt gorm.DeletedAt `gorm:"column:individual_circle_deleted_at;index" json:"individual_circle_deleted_at,omitempty"`
}

func (IndividualCircleModel) TableName() string { return "individual_circles" }

func (m *IndividualCircleModel) BeforeCreate(tx *gorm.DB) error {
	if m.IndividualCircleID == uuid.Nil {
		m.IndividualCircleID = uuid.New()
	}
	return nil
}
