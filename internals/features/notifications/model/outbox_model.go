// file: internals/features/notifications/model/outbox_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// Notification types emitted by the session lifecycle engine.
const (
	TypeAttendanceUpdate  = "attendance_update"
	TypeReportFinalized   = "attendance_report_finalized"
	TypeGuardianSummary   = "guardian_attendance_summary"
)

/*
=========================================================

	Outbox row: written in the same transaction as the
	domain change, drained asynchronously by the dispatcher.
	=========================================================
*/
type NotificationOutboxModel struct {
	// PK
	NotificationOutboxID uuid.UUID `gorm:"type:uuid;primaryKey;column:notification_outbox_id" json:"notification_outbox_id"`

	// Tenant guard
	NotificationOutboxAcademyID uuid.UUID `gorm:"type:uuid;not null;column:notification_outbox_academy_id" json:"notification_outbox_academy_id"`

	NotificationOutboxUserID uuid.UUID `gorm:"type:uuid;not null;column:notification_outbox_user_id;index:idx_notification_outbox_user" json:"notification_outbox_user_id"`

	NotificationOutboxType      string         `gorm:"type:varchar(64);not null;column:notification_outbox_type" json:"notification_outbox_type"`
	NotificationOutboxPayload   datatypes.JSON `gorm:"type:jsonb;column:notification_outbox_payload" json:"notification_outbox_payload"`
	NotificationOutboxURL       *string        `gorm:"type:text;column:notification_outbox_url" json:"notification_outbox_url,omitempty"`
	NotificationOutboxImportant bool           `gorm:"not null;default:false;column:notification_outbox_important" json:"notification_outbox_important"`

	NotificationOutboxStatus   OutboxStatus `gorm:"type:varchar(16);not null;default:'pending';column:notification_outbox_status;index:idx_notification_outbox_status" json:"notification_outbox_status"`
	NotificationOutboxAttempts int          `gorm:"not null;default:0;column:notification_outbox_attempts" json:"notification_outbox_attempts"`

	NotificationOutboxCreatedAt time.Time  `gorm:"column:notification_outbox_created_at;autoCreateTime" json:"notification_outbox_created_at"`
	NotificationOutboxSentAt    *time.Time `gorm:"column:notification_outbox_sent_at" json:"notification_outbox_sent_at,omitempty"`
}

func (NotificationOutboxModel) TableName() string { return "notification_outbox" }

func (m *NotificationOutboxModel) BeforeCreate(tx *gorm.DB) error {
	if m.NotificationOutboxID == uuid.Nil {
		m.NotificationOutboxID = uuid.New()
	}
	return nil
}
