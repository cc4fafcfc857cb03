// file: internals/features/notifications/service/notification_service.go
package service

import (
	"context"
	"log"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"halaqat_backend/internals/features/notifications/model"
	"halaqat_backend/internals/helpers/clock"
)

// Notifier enqueues user notifications. Implementations must be safe to
// call inside a database transaction.
type Notifier interface {
	Notify(tx *gorm.DB, n Notification) error
	GuardiansForStudent(ctx context.Context, academyID, studentID uuid.UUID) ([]uuid.UUID, error)
}

type Notification struct {
	AcademyID uuid.UUID
	UserID    uuid.UUID
	Type      string
	Payload   map[string]any
	URL       *string
	Important bool
}

/*
=========================================================

	Outbox notifier: the row is written with the domain
	change and delivered later by the dispatcher, so a dead
	push channel never fails attendance writes.
	=========================================================
*/
type OutboxNotifier struct {
	DB *gorm.DB
}

func NewOutboxNotifier(db *gorm.DB) *OutboxNotifier { return &OutboxNotifier{DB: db} }

func (o *OutboxNotifier) Notify(tx *gorm.DB, n Notification) error {
	if tx == nil {
		tx = o.DB
	}
	payload, err := sonic.Marshal(n.Payload)
	if err != nil {
		return err
	}
	row := model.NotificationOutboxModel{
		NotificationOutboxAcademyID: n.AcademyID,
		NotificationOutboxUserID:    n.UserID,
		NotificationOutboxType:      n.Type,
		NotificationOutboxPayload:   datatypes.JSON(payload),
		NotificationOutboxURL:       n.URL,
		NotificationOutboxImportant: n.Important,
		NotificationOutboxStatus:    model.OutboxPending,
	}
	return tx.Create(&row).Error
}

// GuardiansForStudent resolves guardian user ids from the roster
// mapping table. Missing mappings are not an error.
func (o *OutboxNotifier) GuardiansForStudent(ctx context.Context, academyID, studentID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := o.DB.WithContext(ctx).
		Table("student_guardians").
		Where("student_guardian_academy_id = ? AND student_guardian_student_id = ?", academyID, studentID).
		Pluck("student_guardian_guardian_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

/* =========================
   Dispatcher
========================= */

// Sender pushes one notification to the delivery channel (FCM, email,
// in-app). The default logs only.
type Sender interface {
	Send(ctx context.Context, row *model.NotificationOutboxModel) error
}

type LogSender struct{}

func (LogSender) Send(_ context.Context, row *model.NotificationOutboxModel) error {
	log.Printf("[NOTIFY] user=%s type=%s", row.NotificationOutboxUserID, row.NotificationOutboxType)
	return nil
}

// Dispatcher drains pending outbox rows in the background.
type Dispatcher struct {
	DB     *gorm.DB
	Sender Sender
	Clock  clock.Clock

	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

func NewDispatcher(db *gorm.DB, sender Sender, clk clock.Clock) *Dispatcher {
	if sender == nil {
		sender = LogSender{}
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Dispatcher{
		DB:          db,
		Sender:      sender,
		Clock:       clk,
		Interval:    15 * time.Second,
		BatchSize:   100,
		MaxAttempts: 5,
	}
}

// Start loops until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	log.Println("📮 Notification dispatcher started")
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("📮 Notification dispatcher stopped")
			return
		case <-ticker.C:
			if n, err := d.DispatchPending(ctx); err != nil {
				log.Println("[ERROR] outbox dispatch:", err)
			} else if n > 0 {
				log.Printf("📮 Dispatched %d notifications", n)
			}
		}
	}
}

// DispatchPending sends one batch and returns how many rows went out.
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, error) {
	var rows []model.NotificationOutboxModel
	err := d.DB.WithContext(ctx).
		Where("notification_outbox_status = ?", model.OutboxPending).
		Order("notification_outbox_created_at ASC").
		Limit(d.BatchSize).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range rows {
		row := &rows[i]
		attempts := row.NotificationOutboxAttempts + 1
		if sendErr := d.Sender.Send(ctx, row); sendErr != nil {
			status := model.OutboxPending
			if attempts >= d.MaxAttempts {
				status = model.OutboxFailed
			}
			d.DB.WithContext(ctx).Model(row).Updates(map[string]any{
				"notification_outbox_attempts": attempts,
				"notification_outbox_status":   status,
			})
			continue
		}
		now := d.Clock.Now()
		if err := d.DB.WithContext(ctx).Model(row).Updates(map[string]any{
			"notification_outbox_attempts": attempts,
			"notification_outbox_status":   model.OutboxSent,
			"notification_outbox_sent_at":  now,
		}).Error; err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
