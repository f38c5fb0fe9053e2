package models

import (
	"time"
)

// OwnerCredential holds the encrypted OAuth triple for one owner. One row per
// owner, upserted on every token exchange or refresh.
type OwnerCredential struct {
	OwnerID        string    `gorm:"primaryKey;size:64" json:"owner_id"`
	EncryptedToken string    `gorm:"type:text;not null" json:"-"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OwnerCredential) TableName() string {
	return "owner_credentials"
}
