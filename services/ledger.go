package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dima260208d-dot/kinetik-energy-project/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var clauseForUpdate = clause.Locking{Strength: "UPDATE"}

// Ledger sources.
const (
	SourceWelcome     = "welcome"
	SourceAdmin       = "admin"
	SourceGame        = "game"
	SourceTrick       = "trick"
	SourceAchievement = "achievement"
	SourceTournament  = "tournament"
	SourceShop        = "shop"
	SourceSport       = "sport"
	SourceAccessory   = "accessory"
)

// ledgerEntry describes one balance movement; Amount is always positive here.
type ledgerEntry struct {
	CharacterID string
	Amount      int64
	Source      string
	Description string
	CreatedBy   string
}

// credit adds to the balance and appends an earn row in the same transaction.
func credit(tx *gorm.DB, e ledgerEntry) (*models.KineticsTransaction, error) {
	if !isUUID(e.CharacterID) {
		return nil, errCharacterNotFound(e.CharacterID)
	}
	if e.Amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %d", e.Amount)
	}
	res := tx.Model(&models.Character{}).
		Where("id = ?", e.CharacterID).
		Update("kinetics", gorm.Expr("kinetics + ?", e.Amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, errCharacterNotFound(e.CharacterID)
	}
	return appendLedger(tx, e, models.TransactionEarn)
}

// debit is the conditional decrement: the balance only changes when it covers
// the amount, so concurrent spends cannot drive it negative.
func debit(tx *gorm.DB, e ledgerEntry) (*models.KineticsTransaction, error) {
	if !isUUID(e.CharacterID) {
		return nil, errCharacterNotFound(e.CharacterID)
	}
	if e.Amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %d", e.Amount)
	}
	res := tx.Model(&models.Character{}).
		Where("id = ? AND kinetics >= ?", e.CharacterID, e.Amount).
		Update("kinetics", gorm.Expr("kinetics - ?", e.Amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var ch models.Character
		err := tx.Select("id", "kinetics").Where("id = ?", e.CharacterID).First(&ch).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errCharacterNotFound(e.CharacterID)
		}
		if err != nil {
			return nil, err
		}
		return nil, InsufficientFundsError(e.Amount, ch.Kinetics)
	}
	return appendLedger(tx, e, models.TransactionSpend)
}

func appendLedger(tx *gorm.DB, e ledgerEntry, kind models.TransactionType) (*models.KineticsTransaction, error) {
	amount := e.Amount
	direction := "earned"
	if kind == models.TransactionSpend {
		amount = -amount
		direction = "spent"
	}
	row := models.KineticsTransaction{
		ID:              uuid.NewString(),
		CharacterID:     e.CharacterID,
		Amount:          amount,
		TransactionType: kind,
		Source:          e.Source,
		Description:     e.Description,
		CreatedBy:       e.CreatedBy,
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to append ledger row: %w", err)
	}
	tallyOf(tx).flow(direction, e.Source, e.Amount)
	return &row, nil
}

// Notification types.
const (
	NotifyWelcome       = "welcome"
	NotifyKinetics      = "kinetics"
	NotifyTrick         = "trick"
	NotifyAchievement   = "achievement"
	NotifyTournament    = "tournament"
	NotifyWeeklyResults = "weekly_results"
	NotifyPurchase      = "purchase"
	NotifyTraining      = "training"
)

// notify appends a notification row. data may be nil.
func notify(tx *gorm.DB, characterID, ntype, title, message string, data map[string]interface{}) error {
	n, err := buildNotification(characterID, ntype, title, message, data)
	if err != nil {
		return err
	}
	return tx.Create(n).Error
}

func buildNotification(characterID, ntype, title, message string, data map[string]interface{}) (*models.CharacterNotification, error) {
	n := &models.CharacterNotification{
		ID:               uuid.NewString(),
		CharacterID:      characterID,
		Title:            title,
		Message:          message,
		NotificationType: ntype,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode notification data: %w", err)
		}
		n.Data = raw
	}
	return n, nil
}

// lockCharacter loads a character row FOR UPDATE.
func lockCharacter(tx *gorm.DB, id string) (*models.Character, error) {
	if !isUUID(id) {
		return nil, errCharacterNotFound(id)
	}
	var ch models.Character
	err := tx.Clauses(clauseForUpdate).Where("id = ?", id).First(&ch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errCharacterNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func loadCharacter(tx *gorm.DB, id string) (*models.Character, error) {
	if !isUUID(id) {
		return nil, errCharacterNotFound(id)
	}
	var ch models.Character
	err := tx.Where("id = ?", id).First(&ch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errCharacterNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// isUUID guards queries against ids the uuid columns would reject.
func isUUID(id string) bool {
	return uuid.Validate(id) == nil
}

// requireCharacterID rejects a missing id and reports a malformed one as not found.
func requireCharacterID(id string) error {
	if id == "" {
		return ValidationError("missing_character_id", "character_id is required")
	}
	if !isUUID(id) {
		return errCharacterNotFound(id)
	}
	return nil
}
