package models

import (
	"time"
)

const (
	TournamentStatusActive   = "active"
	TournamentStatusFinished = "finished"
)

// Tournament is one weekly competition. WeekStart is a Monday and is unique,
// so there is at most one tournament per week.
type Tournament struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	WeekStart time.Time `json:"week_start" gorm:"type:date;uniqueIndex;not null"`
	WeekEnd   time.Time `json:"week_end" gorm:"type:date;not null"`
	MonthKey  string    `json:"month_key" gorm:"type:varchar(7);index;not null"`
	EntryFee  int64     `json:"entry_fee" gorm:"not null;default:0"`
	Status    string    `json:"status" gorm:"type:varchar(16);default:'active'"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	ParticipantsCount int64 `json:"participants_count" gorm:"-"`
}
