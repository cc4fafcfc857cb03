// file: internals/features/circles/model/guardian_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StudentGuardianModel maps a student to the guardians who receive
// attendance summaries.
type StudentGuardianModel struct {
	StudentGuardianID         uuid.UUID `gorm:"type:uuid;primaryKey;column:student_guardian_id" json:"student_guardian_id"`
	StudentGuardianAcademyID  uuid.UUID `gorm:"type:uuid;not null;column:student_guardian_academy_id;index:idx_student_guardian_academy" json:"student_guardian_academy_id"`
	StudentGuardianStudentID  uuid.UUID `gorm:"type:uuid;not null;column:student_guardian_student_id;uniqueIndex:uq_student_guardian;index:idx_student_guardian_student" json:"student_guardian_student_id"`
	StudentGuardianGuardianID uuid.UUID `gorm:"type:uuid;not null;column:student_guardian_guardian_id;uniqueIndex:uq_student_guardian" json:"student_guardian_guardian_id"`
	StudentGuardianCreatedAt  time.Time `gorm:"column:student_guardian_created_at;autoCreateTime" json:"student_guardian_created_at"`
}

func (StudentGuardianModel) TableName() string { return "student_guardians" }

func (m *StudentGuardianModel) BeforeCreate(tx *gorm.DB) error {
	if m.StudentGuardianID == uuid.Nil {
		m.StudentGuardianID = uuid.New()
	}
	return nil
}
