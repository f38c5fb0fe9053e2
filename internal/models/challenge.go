package models

import (
	"time"
)

// ScheduledChallenge is one unit of deferred room creation. Rows are only
// mutable while Status is pending; the executor and the cancel endpoint move
// them into exactly one terminal state, after which nothing changes again.
type ScheduledChallenge struct {
	ID            string          `gorm:"primaryKey;size:64" json:"id"`
	OwnerID       string          `gorm:"size:64;not null;index" json:"owner_id"`
	ScheduledTime time.Time       `gorm:"not null;index" json:"scheduled_time"`
	RoomConfig    JSONMap         `gorm:"type:json" json:"room_config"`
	ChatMessages  StringList      `gorm:"type:json" json:"chat_messages"`
	Status        ChallengeStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	CreatedRoomID string          `gorm:"size:128" json:"created_room_id,omitempty"`
	ErrorMessage  string          `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount    int             `gorm:"default:0" json:"retry_count"`

	// EmbeddedCredential is the encrypted triple stored on the row itself.
	// Only legacy rows created before credentials moved to owner_credentials
	// carry it; new rows leave it empty.
	EmbeddedCredential string `gorm:"type:text" json:"-"`

	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
}

func (ScheduledChallenge) TableName() string {
	return "scheduled_challenges"
}
