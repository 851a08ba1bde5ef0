package models

import (
	"time"
)

// Customization item types a character may buy.
const (
	ItemHairstyle = "hairstyle"
	ItemHairColor = "hair_color"
	ItemBodyType  = "body_type"
	ItemName      = "name"
	ItemAvatarURL = "avatar_url"
	ItemSportType = "sport_type"
)

// PurchasedItem is unique per (character, item_type, item_value).
type PurchasedItem struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	CharacterID string    `gorm:"type:uuid;not null;uniqueIndex:idx_purchase" json:"character_id"`
	ItemType    string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_purchase" json:"item_type"`
	ItemValue   string    `gorm:"not null;uniqueIndex:idx_purchase" json:"item_value"`
	ItemName    string    `json:"item_name"`
	Cost        int64     `gorm:"not null" json:"cost"`
	PurchasedAt time.Time `gorm:"autoCreateTime" json:"purchased_at"`
}

type Accessory struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Price       int64     `gorm:"not null" json:"price"`
	Rarity      string    `gorm:"type:varchar(16);default:'common'" json:"rarity"`
	ImageURL    string    `gorm:"type:text" json:"image_url"`
	IsAvailable bool      `gorm:"default:true" json:"is_available"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type CharacterAccessory struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	CharacterID string    `gorm:"type:uuid;not null;uniqueIndex:idx_character_accessory" json:"character_id"`
	AccessoryID string    `gorm:"type:uuid;not null;uniqueIndex:idx_character_accessory" json:"accessory_id"`
	IsEquipped  bool      `gorm:"default:false" json:"is_equipped"`
	AcquiredAt  time.Time `gorm:"autoCreateTime" json:"acquired_at"`
}
