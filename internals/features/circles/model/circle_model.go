// file: internals/features/circles/model/circle_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*
=========================================================

	Group circle (one teacher + a roster)
	=========================================================
*/
type QuranCircleModel struct {
	// PK
	QuranCircleID uuid.UUID `gorm:"type:uuid;primaryKey;column:quran_circle_id" json:"quran_circle_id"`

	// Tenant guard
	QuranCircleAcademyID uuid.UUID `gorm:"type:uuid;not null;column:quran_circle_academy_id;index:idx_quran_circle_academy" json:"quran_circle_academy_id"`

	// Owning teacher
	QuranCircleTeacherID uuid.UUID `gorm:"type:uuid;not null;column:quran_circle_teacher_id;index:idx_quran_circle_teacher" json:"quran_circle_teacher_id"`

	QuranCircleName string `gorm:"type:varchar(160);not null;column:quran_circle_name" json:"quran_circle_name"`

	// Informational monthly target; scheduling beyond it is allowed
	QuranCircleMonthlySessionsCount int `gorm:"not null;default:8;column:quran_circle_monthly_sessions_count" json:"quran_circle_monthly_sessions_count"`

	// Default duration for group sessions
	QuranCircleSessionDurationMinutes *int `gorm:"column:quran_circle_session_duration_minutes" json:"quran_circle_session_duration_minutes,omitempty"`

	// Lateness threshold override (minutes); nil → academy default
	QuranCircleMaxLateMinutes *int `gorm:"column:quran_circle_max_late_minutes" json:"quran_circle_max_late_minutes,omitempty"`

	QuranCircleStatus string `gorm:"type:varchar(24);not null;default:'active';column:quran_circle_status" json:"quran_circle_status"`

	// Audit & soft delete
	QuranCircleCreatedAt time.Time      `gorm:"column:quran_circle_created_at;autoCreateTime" json:"quran_circle_created_at"`
	QuranCircleUpdatedAt time.Time      `gorm:"column:quran_circle_updated_at;autoUpdateTime" json:"quran_circle_updated_at"`
	QuranCircleDeletedAt gorm.DeletedAt `gorm:"column:quran_circle_deleted_at;index" json:"quran_circle_deleted_at,omitempty"`
}

func (QuranCircleModel) TableName() string { return "quran_circles" }

func (m *QuranCircleModel) BeforeCreate(tx *gorm.DB) error {
	if m.QuranCircleID == uuid.Nil {
		m.QuranCircleID = uuid.New()
	}
	return nil
}

/*
=========================================================

	Circle roster membership
	=========================================================
*/
type QuranCircleStudentModel struct {
	QuranCircleStudentID        uuid.UUID `gorm:"type:uuid;primaryKey;column:quran_circle_student_id" json:"quran_circle_student_id"`
	QuranCircleStudentCircleID  uuid.UUID `gorm:"type:uuid;not null;column:quran_circle_student_circle_id;index:idx_circle_student_circle;uniqueIndex:uq_circle_student" json:"quran_circle_student_circle_id"`
	QuranCircleStudentStudentID uuid.UUID `gorm:"type:uuid;not null;column:quran_circle_student_student_id;uniqueIndex:uq_circle_student" json:"quran_circle_student_student_id"`
	QuranCircleStudentJoinedAt  time.Time `gorm:"column:quran_circle_student_joined_at;autoCreateTime" json:"quran_circle_student_joined_at"`
}

func (QuranCircleStudentModel) TableName() string { return "quran_circle_students" }

func (m *QuranCircleStudentModel) BeforeCreate(tx *gorm.DB) error {
	if m.QuranCircleStudentID == uuid.Nil {
		m.QuranCircleStudentID = uuid.New()
	}
	return nil
}
