// file: internals/features/sessions/scheduling/dto/session_dto.go
package dto

import (
	"time"

	"github.com/google/uuid"

	circleModel "halaqat_backend/internals/features/circles/model"
	"halaqat_backend/internals/features/sessions/scheduling/model"
)

/* =========================
   Requests
========================= */

type CreateIndividualSessionRequest struct {
	IndividualCircleID uuid.UUID `json:"individual_circle_id" validate:"required"`
	ScheduledAt        time.Time `json:"scheduled_at" validate:"required"`
	DurationMinutes    *int      `json:"duration_minutes,omitempty" validate:"omitempty,min=5,max=240"`
	Title              string    `json:"title,omitempty"`
	Description        *string   `json:"description,omitempty"`
}

type CreateGroupSessionRequest struct {
	CircleID        uuid.UUID `json:"circle_id" validate:"required"`
	ScheduledAt     time.Time `json:"scheduled_at" validate:"required"`
	DurationMinutes *int      `json:"duration_minutes,omitempty" validate:"omitempty,min=5,max=240"`
	Title           string    `json:"title,omitempty"`
	Description     *string   `json:"description,omitempty"`
}

type CreateTrialSessionRequest struct {
	TrialRequestID  uuid.UUID `json:"trial_request_id" validate:"required"`
	ScheduledAt     time.Time `json:"scheduled_at" validate:"required"`
	DurationMinutes *int      `json:"duration_minutes,omitempty" validate:"omitempty,min=5,max=240"`
}

type WeeklySlotRequest struct {
	Day  string `json:"day" validate:"required,oneof=sunday monday tuesday wednesday thursday friday saturday"`
	Time string `json:"time" validate:"required"`
}

func (r WeeklySlotRequest) ToModel() circleModel.WeeklySlot {
	return circleModel.WeeklySlot{Day: r.Day, Time: r.Time}
}

func ToWeeklySlots(reqs []WeeklySlotRequest) []circleModel.WeeklySlot {
	out := make([]circleModel.WeeklySlot, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.ToModel())
	}
	return out
}

type BulkCreateSessionsRequest struct {
	CircleID        uuid.UUID           `json:"circle_id" validate:"required"`
	WeeklySlots     []WeeklySlotRequest `json:"weekly_slots" validate:"required,min=1,dive"`
	StartDate       time.Time           `json:"start_date" validate:"required"`
	EndDate         time.Time           `json:"end_date" validate:"required"`
	DurationMinutes *int                `json:"duration_minutes,omitempty" validate:"omitempty,min=5,max=240"`
}

type GenerateExactSessionsRequest struct {
	ScheduleID uuid.UUID `json:"schedule_id" validate:"required"`
	Count      int       `json:"count" validate:"required,min=1,max=100"`
}

type CreateIndividualScheduleRequest struct {
	IndividualCircleID uuid.UUID           `json:"individual_circle_id" validate:"required"`
	WeeklySlots        []WeeklySlotRequest `json:"weekly_slots" validate:"required,min=1,dive"`
	StartsAt           *time.Time          `json:"starts_at,omitempty"`
	DurationMinutes    *int                `json:"duration_minutes,omitempty" validate:"omitempty,min=5,max=240"`
}

/* =========================
   Responses
========================= */

type SessionResponse struct {
	ID                   uuid.UUID           `json:"id"`
	Type                 model.SessionType   `json:"type"`
	Code                 string              `json:"code"`
	Title                string              `json:"title"`
	TeacherID            uuid.UUID           `json:"teacher_id"`
	CircleID             *uuid.UUID          `json:"circle_id,omitempty"`
	IndividualCircleID   *uuid.UUID          `json:"individual_circle_id,omitempty"`
	StudentID            *uuid.UUID          `json:"student_id,omitempty"`
	ScheduledAt          time.Time           `json:"scheduled_at"`
	EndsAt               time.Time           `json:"ends_at"`
	DurationMinutes      int                 `json:"duration_minutes"`
	Status               model.SessionStatus `json:"status"`
	MonthlySessionNumber int                 `json:"monthly_session_number"`
	ParticipantsCount    int                 `json:"participants_count"`
}

func FromSessionModel(m *model.QuranSessionModel) SessionResponse {
	return SessionResponse{
		ID:                   m.QuranSessionID,
		Type:                 m.QuranSessionType,
		Code:                 m.QuranSessionCode,
		Title:                m.QuranSessionTitle,
		TeacherID:            m.QuranSessionTeacherID,
		CircleID:             m.QuranSessionCircleID,
		IndividualCircleID:   m.QuranSessionIndividualCircleID,
		StudentID:            m.QuranSessionStudentID,
		ScheduledAt:          m.QuranSessionScheduledAt,
		EndsAt:               m.EndsAt(),
		DurationMinutes:      m.QuranSessionDurationMinutes,
		Status:               m.QuranSessionStatus,
		MonthlySessionNumber: m.QuranSessionMonthlySessionNumber,
		ParticipantsCount:    m.QuranSessionParticipantsCount,
	}
}

func FromSessionModels(ms []model.QuranSessionModel) []SessionResponse {
	out := make([]SessionResponse, 0, len(ms))
	for i := range ms {
		out = append(out, FromSessionModel(&ms[i]))
	}
	return out
}
