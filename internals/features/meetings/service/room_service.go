// file: internals/features/meetings/service/room_service.go
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"halaqat_backend/internals/errs"
	schedModel "halaqat_backend/internals/features/sessions/scheduling/model"
)

// RoomInfo describes a live meeting room at the provider.
type RoomInfo struct {
	Name             string    `json:"name"`
	URL              string    `json:"url"`
	ParticipantCount int       `json:"participant_count"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

// RoomService talks to the meeting provider. CreateOrInspectRoom with
// create=false returns (nil, nil) when the room does not exist.
type RoomService interface {
	CreateOrInspectRoom(ctx context.Context, name string, create bool) (*RoomInfo, error)
	EndRoom(ctx context.Context, name string) error
}

// RoomNameFor derives the deterministic provider room name of a session.
func RoomNameFor(s *schedModel.QuranSessionModel) string {
	academy := strings.ReplaceAll(s.QuranSessionAcademyID.String(), "-", "")[:8]
	return fmt.Sprintf("%s-%s-%s", academy, s.QuranSessionType, s.QuranSessionID)
}

// EnsureMeetingRoom makes sure the session's room exists, recreating it
// when the provider has dropped it (rooms vanish after being empty for
// a while).
func EnsureMeetingRoom(ctx context.Context, rooms RoomService, s *schedModel.QuranSessionModel) (*RoomInfo, error) {
	name := RoomNameFor(s)
	info, err := rooms.CreateOrInspectRoom(ctx, name, false)
	if err != nil {
		return nil, errs.TransientUpstream("تعذر الوصول إلى خدمة الاجتماعات", err)
	}
	if info != nil {
		return info, nil
	}
	info, err = rooms.CreateOrInspectRoom(ctx, name, true)
	if err != nil {
		return nil, errs.TransientUpstream("تعذر إنشاء غرفة الاجتماع", err)
	}
	log.Printf("🎥 Meeting room recreated: %s", name)
	return info, nil
}

/*
=========================================================

	In-process provider: backs local and test runs; a real
	deployment swaps in an HTTP client with the same shape.
	=========================================================
*/
type InProcessRoomService struct {
	mu    sync.Mutex
	rooms map[string]*RoomInfo
	base  string
}

func NewInProcessRoomService(baseURL string) *InProcessRoomService {
	if baseURL == "" {
		baseURL = "https://meet.local"
	}
	return &InProcessRoomService{
		rooms: make(map[string]*RoomInfo),
		base:  baseURL,
	}
}

func (s *InProcessRoomService) CreateOrInspectRoom(_ context.Context, name string, create bool) (*RoomInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.rooms[name]; ok {
		return info, nil
	}
	if !create {
		return nil, nil
	}
	info := &RoomInfo{
		Name:      name,
		URL:       fmt.Sprintf("%s/%s", s.base, name),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	s.rooms[name] = info
	return info, nil
}

func (s *InProcessRoomService) EndRoom(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, name)
	return nil
}

// Drop simulates provider-side expiry in tests.
func (s *InProcessRoomService) Drop(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, name)
}

var _ RoomService = (*InProcessRoomService)(nil)
