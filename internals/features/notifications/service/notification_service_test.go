// file: internals/features/notifications/service/notification_service_test.go
package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	circleModel "halaqat_backend/internals/features/circles/model"
	"halaqat_backend/internals/features/notifications/model"
	"halaqat_backend/internals/helpers/clock"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.NotificationOutboxModel{},
		&circleModel.StudentGuardianModel{},
	))
	return db
}

func TestNotifyWritesPendingRow(t *testing.T) {
	db := newTestDB(t)
	n := NewOutboxNotifier(db)

	err := n.Notify(nil, Notification{
		AcademyID: uuid.New(),
		UserID:    uuid.New(),
		Type:      model.TypeReportFinalized,
		Payload:   map[string]any{"attendance_status": "attended"},
	})
	require.NoError(t, err)

	var row model.NotificationOutboxModel
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, model.OutboxPending, row.NotificationOutboxStatus)
	assert.Equal(t, model.TypeReportFinalized, row.NotificationOutboxType)
	assert.Contains(t, string(row.NotificationOutboxPayload), "attended")
}

func TestGuardiansForStudent(t *testing.T) {
	db := newTestDB(t)
	n := NewOutboxNotifier(db)
	academyID := uuid.New()
	studentID := uuid.New()

	g1, g2 := uuid.New(), uuid.New()
	for _, g := range []uuid.UUID{g1, g2} {
		require.NoError(t, db.Create(&circleModel.StudentGuardianModel{
			StudentGuardianAcademyID:  academyID,
			StudentGuardianStudentID:  studentID,
			StudentGuardianGuardianID: g,
		}).Error)
	}

	ids, err := n.GuardiansForStudent(context.Background(), academyID, studentID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{g1, g2}, ids)

	// unknown student yields an empty list, not an error
	ids, err = n.GuardiansForStudent(context.Background(), academyID, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

type flakySender struct {
	failures int
	sent     []uuid.UUID
}

func (s *flakySender) Send(_ context.Context, row *model.NotificationOutboxModel) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("push channel down")
	}
	s.sent = append(s.sent, row.NotificationOutboxID)
	return nil
}

func TestDispatchPending(t *testing.T) {
	db := newTestDB(t)
	n := NewOutboxNotifier(db)
	for i := 0; i < 3; i++ {
		require.NoError(t, n.Notify(nil, Notification{
			AcademyID: uuid.New(),
			UserID:    uuid.New(),
			Type:      model.TypeAttendanceUpdate,
		}))
	}

	sender := &flakySender{failures: 1}
	d := NewDispatcher(db, sender, clock.NewFixed(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)))

	sent, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	// the failed row stays pending with one attempt recorded
	var pending []model.NotificationOutboxModel
	require.NoError(t, db.Where("notification_outbox_status = ?", model.OutboxPending).Find(&pending).Error)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].NotificationOutboxAttempts)

	// the retry drains it
	sent, err = d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	var sentRows []model.NotificationOutboxModel
	require.NoError(t, db.Where("notification_outbox_status = ?", model.OutboxSent).Find(&sentRows).Error)
	assert.Len(t, sentRows, 3)
	for _, row := range sentRows {
		require.NotNil(t, row.NotificationOutboxSentAt)
	}
}

func TestDispatchGivesUpAfterMaxAttempts(t *testing.T) {
	db := newTestDB(t)
	n := NewOutboxNotifier(db)
	require.NoError(t, n.Notify(nil, Notification{
		AcademyID: uuid.New(),
		UserID:    uuid.New(),
		Type:      model.TypeAttendanceUpdate,
	}))

	sender := &flakySender{failures: 100}
	d := NewDispatcher(db, sender, nil)
	d.MaxAttempts = 3

	for i := 0; i < 4; i++ {
		_, err := d.DispatchPending(context.Background())
		require.NoError(t, err)
	}

	var row model.NotificationOutboxModel
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, model.OutboxFailed, row.NotificationOutboxStatus)
	assert.Equal(t, 3, row.NotificationOutboxAttempts)
}
