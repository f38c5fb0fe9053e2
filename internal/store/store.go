// Package store owns the scheduled_challenges and owner_credentials tables.
// All status transitions out of pending go through conditional updates so the
// database, not the caller, decides who finalizes a row.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/google/wire"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/challenges/scheduler/internal/models"
)

var Provider = wire.NewSet(New)

type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func New(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

type CreateParams struct {
	OwnerID       string
	ScheduledTime time.Time
	RoomConfig    models.JSONMap
	ChatMessages  models.StringList
}

func (s *Store) Create(ctx context.Context, p CreateParams) (*models.ScheduledChallenge, error) {
	if !p.ScheduledTime.After(time.Now()) {
		return nil, ErrScheduledTimeNotFuture
	}

	challenge := &models.ScheduledChallenge{
		ID:            uuid.NewString(),
		OwnerID:       p.OwnerID,
		ScheduledTime: p.ScheduledTime,
		RoomConfig:    p.RoomConfig,
		ChatMessages:  p.ChatMessages,
		Status:        models.ChallengeStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(challenge).Error; err != nil {
		return nil, err
	}

	s.logger.Info("schedule created",
		zap.String("schedule_id", challenge.ID),
		zap.String("owner_id", challenge.OwnerID),
		zap.Time("scheduled_time", challenge.ScheduledTime))

	return challenge, nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.ScheduledChallenge, error) {
	var challenge models.ScheduledChallenge
	err := s.db.WithContext(ctx).First(&challenge, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

// List returns schedules, optionally filtered by owner and status. Cancelled
// and other terminal rows are included; they are kept for audit.
func (s *Store) List(ctx context.Context, ownerID string, status models.ChallengeStatus) ([]models.ScheduledChallenge, error) {
	query := s.db.WithContext(ctx).Order("scheduled_time ASC")
	if ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var challenges []models.ScheduledChallenge
	if err := query.Find(&challenges).Error; err != nil {
		return nil, err
	}
	return challenges, nil
}

type UpdateParams struct {
	ScheduledTime *time.Time
	RoomConfig    models.JSONMap
	ChatMessages  *models.StringList
}

// Update mutates a pending row's configuration. Terminal rows are immutable;
// a moved scheduled_time must still be strictly future.
func (s *Store) Update(ctx context.Context, id string, p UpdateParams) (*models.ScheduledChallenge, error) {
	challenge, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if challenge.Status.Terminal() {
		return nil, ErrNotPending
	}

	fields := map[string]any{}
	if p.ScheduledTime != nil {
		if !p.ScheduledTime.After(time.Now()) {
			return nil, ErrScheduledTimeNotFuture
		}
		fields["scheduled_time"] = *p.ScheduledTime
	}
	if p.RoomConfig != nil {
		fields["room_config"] = p.RoomConfig
	}
	if p.ChatMessages != nil {
		fields["chat_messages"] = *p.ChatMessages
	}
	if len(fields) == 0 {
		return challenge, nil
	}

	res := s.db.WithContext(ctx).
		Model(&models.ScheduledChallenge{}).
		Where("id = ? AND status = ?", id, models.ChallengeStatusPending).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// lost the race against a terminal transition
		return nil, ErrNotPending
	}

	return s.Get(ctx, id)
}

// Cancel moves a pending row to cancelled. Rows are never hard-deleted.
func (s *Store) Cancel(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Model(&models.ScheduledChallenge{}).
		Where("id = ? AND status = ?", id, models.ChallengeStatusPending).
		Update("status", models.ChallengeStatusCancelled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotPending
	}

	s.logger.Info("schedule cancelled", zap.String("schedule_id", id))
	return nil
}

// ListDue returns pending schedules with scheduled_time in [from, to],
// oldest first. Pending rows older than the window stay untouched; work that
// is wildly late is not executed silently.
func (s *Store) ListDue(ctx context.Context, from, to time.Time) ([]models.ScheduledChallenge, error) {
	var challenges []models.ScheduledChallenge
	err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_time >= ? AND scheduled_time <= ?",
			models.ChallengeStatusPending, from, to).
		Order("scheduled_time ASC").
		Find(&challenges).Error
	if err != nil {
		return nil, err
	}
	return challenges, nil
}

// GetStatus re-reads just the current status of a row.
func (s *Store) GetStatus(ctx context.Context, id string) (models.ChallengeStatus, error) {
	var challenge models.ScheduledChallenge
	err := s.db.WithContext(ctx).Select("status").First(&challenge, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return challenge.Status, nil
}

// MarkCompleted finalizes a pending row as completed. The update is
// conditional on the row still being pending; false means another actor got
// there first and nothing was written.
func (s *Store) MarkCompleted(ctx context.Context, id, roomID, annotation string) (bool, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).
		Model(&models.ScheduledChallenge{}).
		Where("id = ? AND status = ?", id, models.ChallengeStatusPending).
		Updates(map[string]any{
			"status":          models.ChallengeStatusCompleted,
			"created_room_id": roomID,
			"error_message":   annotation,
			"executed_at":     now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkFailed finalizes a pending row as failed. countAttempt increments
// retry_count; it is set only when an actual execution attempt was made
// against the room service, not for failures before the external call.
func (s *Store) MarkFailed(ctx context.Context, id, message string, countAttempt bool) (bool, error) {
	now := time.Now()
	fields := map[string]any{
		"status":        models.ChallengeStatusFailed,
		"error_message": message,
		"executed_at":   now,
	}
	if countAttempt {
		fields["retry_count"] = gorm.Expr("retry_count + 1")
	}

	res := s.db.WithContext(ctx).
		Model(&models.ScheduledChallenge{}).
		Where("id = ? AND status = ?", id, models.ChallengeStatusPending).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetCredential returns the stored credential for an owner, or nil when the
// owner has none.
func (s *Store) GetCredential(ctx context.Context, ownerID string) (*models.OwnerCredential, error) {
	var cred models.OwnerCredential
	err := s.db.WithContext(ctx).First(&cred, "owner_id = ?", ownerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// UpsertCredential stores the encrypted triple for an owner, one row per
// owner, replacing any previous value.
func (s *Store) UpsertCredential(ctx context.Context, ownerID, encryptedToken string) error {
	cred := models.OwnerCredential{
		OwnerID:        ownerID,
		EncryptedToken: encryptedToken,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"encrypted_token", "updated_at"}),
		}).
		Create(&cred).Error
}

// UpdateEmbeddedCredential writes a refreshed triple back onto a legacy row
// that carries its credential inline.
func (s *Store) UpdateEmbeddedCredential(ctx context.Context, id, encryptedToken string) error {
	return s.db.WithContext(ctx).
		Model(&models.ScheduledChallenge{}).
		Where("id = ?", id).
		Update("embedded_credential", encryptedToken).Error
}
