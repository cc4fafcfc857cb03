// file: internals/features/sessions/attendance/service/attendance_tracker_service.go
package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"halaqat_backend/internals/configs"
	"halaqat_backend/internals/errs"
	meetingService "halaqat_backend/internals/features/meetings/service"
	"halaqat_backend/internals/features/sessions/attendance/model"
	schedModel "halaqat_backend/internals/features/sessions/scheduling/model"
	helper "halaqat_backend/internals/helpers"
	"halaqat_backend/internals/helpers/clock"
)

// StatusTransitioner promotes a session to ongoing on first join.
type StatusTransitioner interface {
	TransitionToOngoing(ctx context.Context, session *schedModel.QuranSessionModel) error
}

// Broadcaster fans presence events out to live observers.
type Broadcaster interface {
	Broadcast(sessionID uuid.UUID, event string, payload any)
}

/*
=========================================================

	Tracker

	Events for one (session, user) pair are serialized by a
	per-key mutex; different keys run fully in parallel.
	=========================================================
*/
type TrackerService struct {
	DB         *gorm.DB
	Clock      clock.Clock
	Transition StatusTransitioner
	Hub        Broadcaster

	// Optional meeting-room provider; rooms are re-ensured on every
	// join because the provider drops rooms left empty.
	Rooms meetingService.RoomService

	keys keyedMutex
}

func NewTrackerService(db *gorm.DB, clk clock.Clock, transition StatusTransitioner, hub Broadcaster) *TrackerService {
	if clk == nil {
		clk = clock.System()
	}
	if transition == nil {
		transition = &GormStatusTransitioner{DB: db}
	}
	return &TrackerService{DB: db, Clock: clk, Transition: transition, Hub: hub}
}

type AttendanceEvent struct {
	AcademyID uuid.UUID
	SessionID uuid.UUID
	UserID    uuid.UUID
	Role      model.ParticipantRole
}

/* =========================
   Join
========================= */

func (s *TrackerService) HandleJoin(ctx context.Context, ev AttendanceEvent) (*model.MeetingAttendanceModel, error) {
	unlock := s.keys.Lock(ev.SessionID, ev.UserID)
	defer unlock()

	session, err := s.loadSession(ctx, ev.AcademyID, ev.SessionID)
	if err != nil {
		return nil, err
	}
	switch session.QuranSessionStatus {
	case schedModel.SessionCancelled, schedModel.SessionMissed, schedModel.SessionCompleted:
		return nil, errs.StateConflict("لا يمكن الانضمام إلى جلسة منتهية")
	}

	now := s.Clock.Now()
	record, created, err := s.loadOrCreateRecord(ctx, ev, session)
	if err != nil {
		return nil, err
	}

	s.ensureRoom(ctx, session)

	// First join of a ready session flips it to ongoing, exactly once.
	if created && session.QuranSessionStatus == schedModel.SessionReady {
		if err := s.Transition.TransitionToOngoing(ctx, session); err != nil {
			log.Println("[ERROR] transition to ongoing:", err)
		}
	}

	cycles, err := record.Cycles()
	if err != nil {
		return nil, err
	}
	if cycles.OpenIndex() >= 0 {
		// Duplicated join from a flaky stream; the open cycle stands.
		return record, nil
	}

	merged := record.MeetingAttendanceLastLeaveTime != nil &&
		now.Sub(*record.MeetingAttendanceLastLeaveTime) <= s.reconnectWindow()

	cycles = append(cycles, model.AttendanceCycle{JoinedAt: now, Merged: merged})
	if err := record.SetCycles(cycles); err != nil {
		return nil, err
	}
	if record.MeetingAttendanceFirstJoinTime == nil {
		record.MeetingAttendanceFirstJoinTime = &now
	}
	record.MeetingAttendanceJoinCount++
	if merged {
		record.MeetingAttendanceLastLeaveTime = nil
	}
	record.MeetingAttendanceLastHeartbeatAt = &now

	if err := s.DB.WithContext(ctx).Save(record).Error; err != nil {
		return nil, err
	}
	s.broadcast(ev, "joined", true)
	return record, nil
}

// HandleReconnection is the explicit rejoin signal from the meeting
// provider. Unlike HandleJoin it demands an existing record.
func (s *TrackerService) HandleReconnection(ctx context.Context, ev AttendanceEvent) (*model.MeetingAttendanceModel, error) {
	var existing model.MeetingAttendanceModel
	err := s.DB.WithContext(ctx).
		Where("meeting_attendance_session_id = ? AND meeting_attendance_user_id = ?", ev.SessionID, ev.UserID).
		Take(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.StateConflict("لا يوجد حضور سابق لإعادة الاتصال")
	}
	if err != nil {
		return nil, err
	}
	return s.HandleJoin(ctx, ev)
}

/* =========================
   Leave
========================= */

func (s *TrackerService) HandleLeave(ctx context.Context, ev AttendanceEvent) (*model.MeetingAttendanceModel, error) {
	unlock := s.keys.Lock(ev.SessionID, ev.UserID)
	defer unlock()

	session, err := s.loadSession(ctx, ev.AcademyID, ev.SessionID)
	if err != nil {
		return nil, err
	}

	var record model.MeetingAttendanceModel
	err = s.DB.WithContext(ctx).
		Where("meeting_attendance_session_id = ? AND meeting_attendance_user_id = ?", ev.SessionID, ev.UserID).
		Take(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.StateConflict("لا يوجد انضمام مسجل لهذا المشارك")
	}
	if err != nil {
		return nil, err
	}
	if record.MeetingAttendanceIsCalculated {
		return nil, errs.StateConflict("تم احتساب الحضور لهذه الجلسة")
	}

	cycles, err := record.Cycles()
	if err != nil {
		return nil, err
	}
	idx := cycles.OpenIndex()
	if idx < 0 {
		return nil, errs.StateConflict("لا توجد دورة حضور مفتوحة")
	}

	now := s.Clock.Now()
	duration := clippedMinutes(cycles[idx].JoinedAt, now, session)
	cycles[idx].LeftAt = &now
	cycles[idx].DurationMinutes = &duration
	if err := record.SetCycles(cycles); err != nil {
		return nil, err
	}
	record.MeetingAttendanceLastLeaveTime = &now
	record.MeetingAttendanceLeaveCount++
	record.MeetingAttendanceTotalDurationMinutes += duration

	if err := s.DB.WithContext(ctx).Save(&record).Error; err != nil {
		return nil, err
	}
	s.broadcast(ev, "left", false)
	return &record, nil
}

/* =========================
   Heartbeat / live duration
========================= */

func (s *TrackerService) Heartbeat(ctx context.Context, ev AttendanceEvent) error {
	now := s.Clock.Now()
	res := s.DB.WithContext(ctx).Model(&model.MeetingAttendanceModel{}).
		Where("meeting_attendance_session_id = ? AND meeting_attendance_user_id = ?", ev.SessionID, ev.UserID).
		Update("meeting_attendance_last_heartbeat_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("لا يوجد سجل حضور")
	}
	return nil
}

// GetCurrentSessionDuration reports accumulated minutes including the
// open cycle, clipped to the session window.
func (s *TrackerService) GetCurrentSessionDuration(ctx context.Context, academyID, sessionID, userID uuid.UUID) (int, error) {
	session, err := s.loadSession(ctx, academyID, sessionID)
	if err != nil {
		return 0, err
	}
	var record model.MeetingAttendanceModel
	err = s.DB.WithContext(ctx).
		Where("meeting_attendance_session_id = ? AND meeting_attendance_user_id = ?", sessionID, userID).
		Take(&record).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	total := record.MeetingAttendanceTotalDurationMinutes
	cycles, err := record.Cycles()
	if err != nil {
		return total, nil
	}
	if idx := cycles.OpenIndex(); idx >= 0 {
		total += clippedMinutes(cycles[idx].JoinedAt, s.Clock.Now(), session)
	}
	return total, nil
}

/* =========================
   Auto-close
========================= */

// AutoCloseStaleCycles closes cycles left open past the session end.
// The close is stamped at the session end so dangling connections do
// not inflate attendance.
func (s *TrackerService) AutoCloseStaleCycles(ctx context.Context) (int, error) {
	now := s.Clock.Now()

	var records []model.MeetingAttendanceModel
	err := s.DB.WithContext(ctx).
		Where("meeting_attendance_is_calculated = ?", false).
		Where("meeting_attendance_has_open_cycle = ?", true).
		Find(&records).Error
	if err != nil {
		return 0, err
	}

	closed := 0
	for i := range records {
		record := &records[i]
		var session schedModel.QuranSessionModel
		if err := s.DB.WithContext(ctx).
			Where("quran_session_id = ?", record.MeetingAttendanceSessionID).
			Take(&session).Error; err != nil {
			continue
		}
		end := session.EndsAt()
		if now.Before(end.Add(5 * time.Minute)) {
			continue
		}

		unlock := s.keys.Lock(record.MeetingAttendanceSessionID, record.MeetingAttendanceUserID)
		cycles, err := record.Cycles()
		if err != nil {
			unlock()
			continue
		}
		idx := cycles.OpenIndex()
		if idx < 0 {
			unlock()
			continue
		}
		duration := clippedMinutes(cycles[idx].JoinedAt, end, &session)
		cycles[idx].LeftAt = &end
		cycles[idx].DurationMinutes = &duration
		cycles[idx].AutoClosed = true
		if err := record.SetCycles(cycles); err != nil {
			unlock()
			continue
		}
		record.MeetingAttendanceLastLeaveTime = &end
		record.MeetingAttendanceLeaveCount++
		record.MeetingAttendanceTotalDurationMinutes += duration
		if err := s.DB.WithContext(ctx).Save(record).Error; err != nil {
			unlock()
			continue
		}
		unlock()
		closed++
	}
	if closed > 0 {
		log.Printf("⏱️ Auto-closed %d stale attendance cycles", closed)
	}
	return closed, nil
}

/* =========================
   Internals
========================= */

func (s *TrackerService) loadSession(ctx context.Context, academyID, sessionID uuid.UUID) (*schedModel.QuranSessionModel, error) {
	var session schedModel.QuranSessionModel
	err := s.DB.WithContext(ctx).
		Where("quran_session_id = ? AND quran_session_academy_id = ?", sessionID, academyID).
		Take(&session).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.NotFound("الجلسة غير موجودة")
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *TrackerService) loadOrCreateRecord(ctx context.Context, ev AttendanceEvent, session *schedModel.QuranSessionModel) (*model.MeetingAttendanceModel, bool, error) {
	var record model.MeetingAttendanceModel
	err := s.DB.WithContext(ctx).
		Where("meeting_attendance_session_id = ? AND meeting_attendance_user_id = ?", ev.SessionID, ev.UserID).
		Take(&record).Error
	if err == nil {
		if record.MeetingAttendanceIsCalculated {
			return nil, false, errs.StateConflict("تم احتساب الحضور لهذه الجلسة")
		}
		return &record, false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, false, err
	}

	role := ev.Role
	if role == "" {
		role = model.ParticipantStudent
	}
	record = model.MeetingAttendanceModel{
		MeetingAttendanceAcademyID:   ev.AcademyID,
		MeetingAttendanceSessionID:   ev.SessionID,
		MeetingAttendanceUserID:      ev.UserID,
		MeetingAttendanceUserRole:    role,
		MeetingAttendanceSessionType: session.QuranSessionType,
		MeetingAttendanceStatus:      model.AttendanceAbsent,
	}
	if err := record.SetCycles(model.CycleLog{}); err != nil {
		return nil, false, err
	}
	if err := s.DB.WithContext(ctx).Create(&record).Error; err != nil {
		// Concurrent join on another node lost the race; reload theirs.
		if helper.IsDuplicateKey(err) {
			if err := s.DB.WithContext(ctx).
				First(&record, "meeting_attendance_session_id = ? AND meeting_attendance_user_id = ?", ev.SessionID, ev.UserID).Error; err != nil {
				return nil, false, err
			}
			return &record, false, nil
		}
		return nil, false, err
	}
	return &record, true, nil
}

// ensureRoom keeps the provider room alive and records its name on the
// session row. Failures are logged; presence tracking never blocks on
// the meeting provider.
func (s *TrackerService) ensureRoom(ctx context.Context, session *schedModel.QuranSessionModel) {
	if s.Rooms == nil {
		return
	}
	info, err := meetingService.EnsureMeetingRoom(ctx, s.Rooms, session)
	if err != nil {
		log.Println("[ERROR] ensure meeting room:", err)
		return
	}
	if session.QuranSessionRoomName == nil || *session.QuranSessionRoomName != info.Name {
		session.QuranSessionRoomName = &info.Name
		if err := s.DB.WithContext(ctx).Model(&schedModel.QuranSessionModel{}).
			Where("quran_session_id = ?", session.QuranSessionID).
			Update("quran_session_room_name", info.Name).Error; err != nil {
			log.Println("[ERROR] persist room name:", err)
		}
	}
}

func (s *TrackerService) reconnectWindow() time.Duration {
	return time.Duration(configs.ReconnectWindowSeconds()) * time.Second
}

func (s *TrackerService) broadcast(ev AttendanceEvent, status string, inMeeting bool) {
	if s.Hub == nil {
		return
	}
	s.Hub.Broadcast(ev.SessionID, "attendance_update", map[string]any{
		"user_id":                 ev.UserID.String(),
		"status":                  status,
		"is_currently_in_meeting": inMeeting,
	})
}

// clippedMinutes measures presence inside [scheduled_at, ends_at) only.
func clippedMinutes(from, to time.Time, session *schedModel.QuranSessionModel) int {
	start := session.QuranSessionScheduledAt
	end := session.EndsAt()
	if from.Before(start) {
		from = start
	}
	if to.After(end) {
		to = end
	}
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from).Minutes())
}

/* =========================
   Per-key serialization
========================= */

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(sessionID, userID uuid.UUID) func() {
	key := fmt.Sprintf("%s/%s", sessionID, userID)
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*entry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

/* =========================
   Default status transitioner
========================= */

// GormStatusTransitioner flips ready to ongoing with a conditional
// update, so concurrent first joins race harmlessly.
type GormStatusTransitioner struct {
	DB *gorm.DB
}

func (t *GormStatusTransitioner) TransitionToOngoing(ctx context.Context, session *schedModel.QuranSessionModel) error {
	res := t.DB.WithContext(ctx).Model(&schedModel.QuranSessionModel{}).
		Where("quran_session_id = ? AND quran_session_status = ?", session.QuranSessionID, schedModel.SessionReady).
		Update("quran_session_status", schedModel.SessionOngoing)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		session.QuranSessionStatus = schedModel.SessionOngoing
		log.Printf("▶️ Session %s is now ongoing", session.QuranSessionCode)
	}
	return nil
}
