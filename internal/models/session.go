package models

import "time"

// RenewalToken is a persisted renewal credential. Only the sha256 of the
// opaque token is stored; the row is deleted at logout or rotation.
type RenewalToken struct {
	TokenHash string    `gorm:"primaryKey;size:64"`
	UserID    uint      `gorm:"index;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time

	User User `gorm:"constraint:OnDelete:CASCADE"`
}
