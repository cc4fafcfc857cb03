// file: internals/features/circles/model/trial_request_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TrialRequestStatus string

const (
	TrialRequestPending   TrialRequestStatus = "pending"
	TrialRequestScheduled TrialRequestStatus = "scheduled"
	TrialRequestCompleted TrialRequestStatus = "completed"
)

type TrialRequestModel struct {
	// PK
	TrialRequestID uuid.UUID `gorm:"type:uuid;primaryKey;column:trial_request_id" json:"trial_request_id"`

	// Tenant guard
	TrialRequestAcademyID uuid.UUID `gorm:"type:uuid;not null;column:trial_request_academy_id;index:idx_trial_request_academy" json:"trial_request_academy_id"`

	TrialRequestTeacherID uuid.UUID `gorm:"type:uuid;not null;column:trial_request_teacher_id" json:"trial_request_teacher_id"`
	TrialRequestStudentID uuid.UUID `gorm:"type:uuid;not null;column:trial_request_student_id" json:"trial_request_student_id"`

	TrialRequestStudentName string `gorm:"type:varchar(160);not null;column:trial_request_student_name" json:"trial_request_student_name"`

	TrialRequestStatus      TrialRequestStatus `gorm:"type:varchar(24);not null;default:'pending';column:trial_request_status" json:"trial_request_status"`
	TrialRequestScheduledAt *time.Time         `gorm:"column:trial_request_scheduled_at" json:"trial_request_scheduled_at,omitempty"`

	// Audit
	TrialRequestCreatedAt time.Time `gorm:"column:trial_request_created_at;autoCreateTime" json:"trial_request_created_at"`
	TrialRequestUpdatedAt time.Time `gorm:"column:trial_request_updated_at;autoUpdateTime" json:"trial_request_updated_at"`
}

func (TrialRequestModel) TableName() string { return "trial_requests" }

func (m *TrialRequestModel) BeforeCreate(tx *gorm.DB) error {
	if m.TrialRequestID == uuid.Nil {
		m.TrialRequestID = uuid.New()
	}
	return nil
}
