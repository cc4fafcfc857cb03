// file: internals/features/circles/model/schedule_model.go
package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WeeklySlot is one recurring slot of a schedule, e.g. {"sunday","10:00"}.
type WeeklySlot struct {
	Day  string `json:"day"`
	Time string `json:"time"`
}

// Weekday resolves the slot day name; ok=false on unknown names.
func (s WeeklySlot) Weekday() (time.Weekday, bool) {
	switch strings.ToLower(strings.TrimSpace(s.Day)) {
	case "sunday":
		return time.Sunday, true
	case "monday":
		return time.Monday, true
	case "tuesday":
		return time.Tuesday, true
	case "wednesday":
		return time.Wednesday, true
	case "thursday":
		return time.Thursday, true
	case "friday":
		return time.Friday, true
	case "saturday":
		return time.Saturday, true
	}
	return time.Sunday, false
}

// ClockTime parses the "HH:MM" part; defaults to 10:00 like the legacy data.
func (s WeeklySlot) ClockTime() (hour, minute int) {
	t, err := time.Parse("15:04", strings.TrimSpace(s.Time))
	if err != nil {
		return 10, 0
	}
	return t.Hour(), t.Minute()
}

/*
=========================================================

	Weekly recurrence pattern for a circle
	=========================================================
*/
type CircleScheduleModel struct {
	// PK
	CircleScheduleID uuid.UUID `gorm:"type:uuid;primaryKey;column:circle_schedule_id" json:"circle_schedule_id"`

	// Tenant guard
	CircleScheduleAcademyID uuid.UUID `gorm:"type:uuid;not null;column:circle_schedule_academy_id;index:idx_circle_schedule_academy" json:"circle_schedule_academy_id"`

	// Target circle (nullable: schedule drafts may exist unbound, but
	// generation requires it)
	CircleScheduleCircleID *uuid.UUID `gorm:"type:uuid;column:circle_schedule_circle_id;index:idx_circle_schedule_circle" json:"circle_schedule_circle_id,omitempty"`

	// Ordered weekly slots, [{"day":"sunday","time":"10:00"}, ...]
	CircleScheduleWeeklySlots datatypes.JSON `gorm:"type:jsonb;column:circle_schedule_weekly_slots" json:"circle_schedule_weekly_slots"`

	CircleScheduleStartsAt               *time.Time `gorm:"column:circle_schedule_starts_at" json:"circle_schedule_starts_at,omitempty"`
	CircleScheduleDefaultDurationMinutes *int       `gorm:"column:circle_schedule_default_duration_minutes" json:"circle_schedule_default_duration_minutes,omitempty"`

	CircleScheduleStatus string `gorm:"type:varchar(24);not null;default:'active';column:circle_schedule_status" json:"circle_schedule_status"`

	// Audit
	CircleScheduleCreatedAt time.Time `gorm:"column:circle_schedule_created_at;autoCreateTime" json:"circle_schedule_created_at"`
	CircleScheduleUpdatedAt time.Time `gorm:"column:circle_schedule_updated_at;autoUpdateTime" json:"circle_schedule_updated_at"`
}

func (CircleScheduleModel) TableName() string { return "circle_schedules" }

func (m *CircleScheduleModel) BeforeCreate(tx *gorm.DB) error {
	if m.CircleScheduleID == uuid.Nil {
		m.CircleScheduleID = uuid.New()
	}
	return nil
}

// WeeklySlots decodes the stored slot list; an empty column yields nil.
func (m *CircleScheduleModel) WeeklySlots() ([]WeeklySlot, error) {
	if len(m.CircleScheduleWeeklySlots) == 0 {
		return nil, nil
	}
	var slots []WeeklySlot
	if err := json.Unmarshal(m.CircleScheduleWeeklySlots, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// SetWeeklySlots encodes the slot list into the JSON column.
func (m *CircleScheduleModel) SetWeeklySlots(slots []WeeklySlot) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	m.CircleScheduleWeeklySlots = datatypes.JSON(raw)
	return nil
}
