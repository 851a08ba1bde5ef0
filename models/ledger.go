package models

import (
	"time"
)

type TransactionType string

const (
	TransactionEarn  TransactionType = "earn"
	TransactionSpend TransactionType = "spend"
)

// KineticsTransaction is one append-only ledger row. Amount is signed:
// positive for earn, negative for spend, so SUM(amount) equals the balance.
type KineticsTransaction struct {
	ID              string          `gorm:"primaryKey;type:uuid" json:"id"`
	CharacterID     string          `gorm:"type:uuid;index;not null" json:"character_id"`
	Amount          int64           `gorm:"not null" json:"amount"`
	TransactionType TransactionType `gorm:"type:varchar(8);not null" json:"transaction_type"`
	Source          string          `gorm:"type:varchar(32);not null" json:"source"`
	Description     string          `json:"description"`
	CreatedBy       string          `json:"created_by,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

// CharacterNotification is an in-app message shown to the character's owner.
type CharacterNotification struct {
	ID               string    `gorm:"primaryKey;type:uuid" json:"id"`
	CharacterID      string    `gorm:"type:uuid;index;not null" json:"character_id"`
	Title            string    `gorm:"not null" json:"title"`
	Message          string    `gorm:"type:text" json:"message"`
	NotificationType string    `gorm:"type:varchar(32);not null" json:"notification_type"`
	IsRead           bool      `gorm:"default:false;index" json:"is_read"`
	Data             JSONB     `gorm:"type:jsonb" json:"data,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
