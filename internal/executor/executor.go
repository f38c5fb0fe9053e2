// Package executor runs one bounded batch of due schedules per invocation.
// It is not a daemon: an external timer (or the optional in-process cron)
// calls Run, and Run returns a summary covering every selected schedule.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/challenges/scheduler/internal/models"
	"github.com/challenges/scheduler/internal/platform"
	"github.com/challenges/scheduler/internal/store"
	"github.com/challenges/scheduler/internal/vault"
)

var Provider = wire.NewSet(New)

type Config struct {
	// GracePeriod bounds how far past its scheduled time a pending row is
	// still executed. Older rows are left pending rather than run wildly
	// late.
	GracePeriod time.Duration
	// RefreshBuffer is how close to expiry an access token gets refreshed.
	RefreshBuffer time.Duration
	// MaxAttempts is the total number of room-creation attempts per
	// schedule, first try included.
	MaxAttempts int
	// BackoffBase is the wait after the first failed attempt; it doubles
	// per further attempt.
	BackoffBase time.Duration
}

type Executor struct {
	store     *store.Store
	vault     *vault.Vault
	rooms     RoomService
	chat      ChatService
	directory OwnerDirectory
	refresher TokenRefresher
	cfg       Config
	logger    *zap.Logger

	// sleep is swapped in tests to keep backoff waits out of the test clock.
	sleep func(time.Duration)
}

func New(
	st *store.Store,
	v *vault.Vault,
	rooms RoomService,
	chat ChatService,
	directory OwnerDirectory,
	refresher TokenRefresher,
	cfg Config,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		store:     st,
		vault:     v,
		rooms:     rooms,
		chat:      chat,
		directory: directory,
		refresher: refresher,
		cfg:       cfg,
		logger:    logger,
		sleep:     time.Sleep,
	}
}

// Run selects schedules due within [now - grace, now] and processes them
// sequentially, oldest first. Sequential on purpose: the platform rate-limits
// room creation and chat, and a burst of parallel calls would trip it.
func (e *Executor) Run(ctx context.Context) (*Summary, error) {
	now := time.Now()
	from := now.Add(-e.cfg.GracePeriod)

	due, err := e.store.ListDue(ctx, from, now)
	if err != nil {
		return nil, fmt.Errorf("failed to select due schedules: %w", err)
	}

	e.logger.Info("batch started",
		zap.Int("due", len(due)),
		zap.Time("window_from", from),
		zap.Time("window_to", now))

	summary := &Summary{Results: []Result{}}
	for i := range due {
		summary.add(e.processSchedule(ctx, &due[i]))
	}

	e.logger.Info("batch finished",
		zap.Int("processed", summary.Processed),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))

	return summary, nil
}

// processSchedule drives one schedule to a terminal outcome. It never panics
// out: any failure, expected or not, becomes a persisted terminal state and a
// Result entry, so one bad schedule cannot abort the batch.
func (e *Executor) processSchedule(ctx context.Context, schedule *models.ScheduledChallenge) (result Result) {
	log := e.logger.With(
		zap.String("schedule_id", schedule.ID),
		zap.String("owner_id", schedule.OwnerID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing schedule", zap.Any("panic", r))
			result = e.finalizeFailed(ctx, schedule, fmt.Sprintf("internal error: %v", r), false)
		}
	}()

	// Re-check pending-ness right before acting; a concurrent invocation or
	// an admin cancel may have beaten this pass to the row. Advisory only:
	// the conditional terminal updates below are the real guard.
	status, err := e.store.GetStatus(ctx, schedule.ID)
	if err != nil {
		log.Warn("failed to re-read schedule status", zap.Error(err))
		return Result{ScheduleID: schedule.ID, Outcome: OutcomeSkipped, Error: err.Error()}
	}
	if status != models.ChallengeStatusPending {
		log.Info("skipping schedule, already processed", zap.String("status", string(status)))
		return Result{ScheduleID: schedule.ID, Outcome: OutcomeSkipped}
	}

	// Credential resolution. No credential means no external call at all.
	source, err := resolveSource(ctx, e.store, schedule)
	if err != nil {
		return e.finalizeFailed(ctx, schedule, fmt.Sprintf("credential resolution failed: %v", err), false)
	}

	envelope, err := source.Read(ctx)
	if err != nil {
		return e.finalizeFailed(ctx, schedule, fmt.Sprintf("credential resolution failed: %v", err), false)
	}
	plaintext, err := e.vault.Decrypt(envelope)
	if err != nil {
		return e.finalizeFailed(ctx, schedule, fmt.Sprintf("credential corrupt: %v", err), false)
	}
	triple, err := vault.ParseTriple(plaintext)
	if err != nil {
		return e.finalizeFailed(ctx, schedule, fmt.Sprintf("credential corrupt: %v", err), false)
	}

	// Refresh when close to expiry and persist back to wherever the triple
	// came from. A refresh failure is terminal for this schedule; it is not
	// retried within the pass.
	if triple.ExpiredWithin(e.cfg.RefreshBuffer) {
		log.Info("access token near expiry, refreshing", zap.String("credential", triple.Masked()))

		refreshed, err := e.refresher.Refresh(ctx, triple.RefreshToken)
		if err != nil {
			return e.finalizeFailed(ctx, schedule, fmt.Sprintf("token refresh failed: %v", err), false)
		}

		triple = &vault.Triple{
			AccessToken:  refreshed.AccessToken,
			ExpiresAt:    time.Now().Add(time.Duration(refreshed.ExpiresIn) * time.Second),
			RefreshToken: refreshed.RefreshToken,
		}

		sealed, err := e.vault.Encrypt(triple.Encode())
		if err != nil {
			return e.finalizeFailed(ctx, schedule, fmt.Sprintf("failed to re-encrypt credential: %v", err), false)
		}
		if err := source.Write(ctx, sealed); err != nil {
			return e.finalizeFailed(ctx, schedule, fmt.Sprintf("failed to persist refreshed credential: %v", err), false)
		}
	}

	// The owner's privileges may have been revoked since scheduling.
	owner, err := e.directory.GetOwner(ctx, schedule.OwnerID)
	if err != nil {
		return e.finalizeFailed(ctx, schedule, fmt.Sprintf("failed to fetch owner: %v", err), false)
	}
	if !owner.IsAuthorized {
		return e.finalizeFailed(ctx, schedule, "owner is no longer authorized to schedule challenges", false)
	}

	room, err := e.createRoomWithRetry(ctx, schedule, triple.AccessToken, log)
	if err != nil {
		return e.finalizeFailed(ctx, schedule,
			fmt.Sprintf("room creation failed after %d attempts: %v", e.cfg.MaxAttempts, err), true)
	}

	// Chat delivery is best effort; the room exists either way.
	annotation := ""
	if len(schedule.ChatMessages) > 0 {
		if err := e.chat.SendMessages(ctx, room.ID, schedule.OwnerID, schedule.ChatMessages, triple.AccessToken); err != nil {
			log.Warn("chat delivery failed", zap.String("room_id", room.ID), zap.Error(err))
			annotation = fmt.Sprintf("room created but chat delivery failed: %v", err)
		}
	}

	finalized, err := e.store.MarkCompleted(ctx, schedule.ID, room.ID, annotation)
	if err != nil {
		log.Error("failed to finalize schedule", zap.Error(err))
		return Result{ScheduleID: schedule.ID, Outcome: OutcomeFailed, RoomID: room.ID, Error: err.Error()}
	}
	if !finalized {
		log.Warn("schedule was finalized elsewhere mid-processing", zap.String("room_id", room.ID))
		return Result{ScheduleID: schedule.ID, Outcome: OutcomeSkipped, RoomID: room.ID}
	}

	log.Info("schedule completed", zap.String("room_id", room.ID))
	return Result{ScheduleID: schedule.ID, Outcome: OutcomeCompleted, RoomID: room.ID, Error: annotation}
}

// createRoomWithRetry makes up to MaxAttempts calls with exponential backoff
// between them (2s, 4s with the default base). The wait blocks the current
// schedule only; later schedules in the batch just run later.
func (e *Executor) createRoomWithRetry(ctx context.Context, schedule *models.ScheduledChallenge, accessToken string, log *zap.Logger) (*platform.Room, error) {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		room, err := e.rooms.CreateRoom(ctx, schedule.RoomConfig, accessToken)
		if err == nil {
			return room, nil
		}
		lastErr = err

		if attempt < e.cfg.MaxAttempts {
			backoff := e.cfg.BackoffBase << uint(attempt-1)
			log.Warn("room creation attempt failed, backing off",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			e.sleep(backoff)
		}
	}
	return nil, lastErr
}

// finalizeFailed persists the failure and reports it. countAttempt bumps
// retry_count only when the room service was actually tried.
func (e *Executor) finalizeFailed(ctx context.Context, schedule *models.ScheduledChallenge, message string, countAttempt bool) Result {
	e.logger.Error("schedule failed",
		zap.String("schedule_id", schedule.ID),
		zap.String("reason", message))

	finalized, err := e.store.MarkFailed(ctx, schedule.ID, message, countAttempt)
	if err != nil {
		e.logger.Error("failed to persist failure",
			zap.String("schedule_id", schedule.ID),
			zap.Error(err))
	} else if !finalized {
		return Result{ScheduleID: schedule.ID, Outcome: OutcomeSkipped, Error: message}
	}

	return Result{ScheduleID: schedule.ID, Outcome: OutcomeFailed, Error: message}
}
