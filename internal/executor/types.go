package executor

import (
	"context"

	"github.com/challenges/scheduler/internal/platform"
)

// The executor consumes the platform through narrow interfaces so tests can
// substitute fakes. *platform.Client satisfies the first three,
// *platform.Refresher the last.

type RoomService interface {
	CreateRoom(ctx context.Context, roomConfig map[string]any, accessToken string) (*platform.Room, error)
}

type ChatService interface {
	SendMessages(ctx context.Context, roomID, ownerID string, messages []string, accessToken string) error
}

type OwnerDirectory interface {
	GetOwner(ctx context.Context, ownerID string) (*platform.Owner, error)
}

type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*platform.RefreshResult, error)
}

type Outcome string

const (
	// OutcomeCompleted: the room was created and the row finalized.
	OutcomeCompleted Outcome = "completed"
	// OutcomeFailed: the row was finalized as failed.
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped: the row was no longer pending when this pass reached
	// it. Not an error.
	OutcomeSkipped Outcome = "skipped"
)

// Result is the per-schedule entry in a batch summary.
type Result struct {
	ScheduleID string  `json:"schedule_id"`
	Outcome    Outcome `json:"outcome"`
	RoomID     string  `json:"room_id,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Summary aggregates one batch invocation. It is returned even when every
// schedule in the batch failed.
type Summary struct {
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	Results    []Result `json:"results"`
}

func (s *Summary) add(r Result) {
	s.Processed++
	switch r.Outcome {
	case OutcomeCompleted:
		s.Successful++
	case OutcomeFailed:
		s.Failed++
	case OutcomeSkipped:
		s.Skipped++
	}
	s.Results = append(s.Results, r)
}
