package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dima260208d-dot/kinetik-energy-project/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ShopService struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewShopService(db *gorm.DB, log *zap.Logger) *ShopService {
	return &ShopService{DB: db, Log: log}
}

type PurchaseInput struct {
	CharacterID string `json:"character_id"`
	ItemType    string `json:"item_type"`
	ItemValue   string `json:"item_value"`
	ItemName    string `json:"item_name"`
	Cost        int64  `json:"cost"`
}

// PurchaseResult is returned by both purchase operations.
type PurchaseResult struct {
	Character *models.Character     `json:"character"`
	Item      *models.PurchasedItem `json:"item,omitempty"`
	WasFree   bool                  `json:"was_free"`
}

// customizationColumns validates a customization and returns the character
// columns it sets. It never touches the database.
func customizationColumns(ch *models.Character, itemType, itemValue string) (map[string]interface{}, error) {
	switch itemType {
	case models.ItemHairstyle, models.ItemBodyType:
		n, err := strconv.Atoi(strings.TrimSpace(itemValue))
		if err != nil || n < 1 {
			return nil, ValidationError("invalid_item_value", "%s must be a positive number", itemType)
		}
		return map[string]interface{}{itemType: n}, nil
	case models.ItemHairColor:
		if strings.TrimSpace(itemValue) == "" {
			return nil, ValidationError("invalid_item_value", "hair_color must not be empty")
		}
		return map[string]interface{}{"hair_color": strings.TrimSpace(itemValue)}, nil
	case models.ItemName:
		name := strings.TrimSpace(itemValue)
		if name == "" {
			return nil, ValidationError("invalid_item_value", "name must not be empty")
		}
		cols := map[string]interface{}{"name": name}
		if ch != nil {
			cols["handle"] = handleFor(name, ch.ID)
		}
		return cols, nil
	case models.ItemAvatarURL:
		return map[string]interface{}{"avatar_url": strings.TrimSpace(itemValue)}, nil
	case models.ItemSportType:
		sport := strings.TrimSpace(itemValue)
		if sport == "" {
			return nil, ValidationError("invalid_item_value", "sport_type must not be empty")
		}
		if ch == nil || ch.HasSport(sport) {
			return map[string]interface{}{}, nil
		}
		sports := append(pq.StringArray{}, ch.SportTypes...)
		if len(sports) == 0 && ch.SportType != "" {
			sports = append(sports, ch.SportType)
		}
		return map[string]interface{}{"sport_types": append(sports, sport)}, nil
	}
	return nil, ValidationError("invalid_item_type", "unknown item type %q", itemType)
}

func (in PurchaseInput) validate() error {
	if err := requireCharacterID(in.CharacterID); err != nil {
		return err
	}
	if in.Cost < 0 {
		return ValidationError("invalid_cost", "cost cannot be negative")
	}
	_, err := customizationColumns(nil, in.ItemType, in.ItemValue)
	return err
}

// Purchase is the strict purchase: it fails with already_purchased when the
// character owns the item.
func (s *ShopService) Purchase(ctx context.Context, in PurchaseInput) (*PurchaseResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var out PurchaseResult
	err := transact(ctx, s.DB, func(tx *gorm.DB) error {
		ch, err := lockCharacter(tx, in.CharacterID)
		if err != nil {
			return err
		}
		if ch.Kinetics < in.Cost {
			return InsufficientFundsError(in.Cost, ch.Kinetics)
		}
		owned, err := findPurchase(tx, in)
		if err != nil {
			return err
		}
		if owned != nil {
			return ConflictError("already_purchased", "%s %q already purchased", in.ItemType, in.ItemValue)
		}
		out.Item, err = s.buy(tx, ch, in)
		if err != nil {
			return err
		}
		out.Character, err = loadCharacter(tx, ch.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ApplyCustomization re-applies an owned customization for free, or buys it
// first when the character does not own it yet.
func (s *ShopService) ApplyCustomization(ctx context.Context, in PurchaseInput) (*PurchaseResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var out PurchaseResult
	err := transact(ctx, s.DB, func(tx *gorm.DB) error {
		ch, err := lockCharacter(tx, in.CharacterID)
		if err != nil {
			return err
		}
		owned, err := findPurchase(tx, in)
		if err != nil {
			return err
		}
		if owned != nil {
			if err := applyCustomization(tx, ch, in.ItemType, in.ItemValue); err != nil {
				return err
			}
			out.Item = owned
			out.WasFree = true
		} else {
			if ch.Kinetics < in.Cost {
				return InsufficientFundsError(in.Cost, ch.Kinetics)
			}
			if out.Item, err = s.buy(tx, ch, in); err != nil {
				return err
			}
		}
		out.Character, err = loadCharacter(tx, ch.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func findPurchase(tx *gorm.DB, in PurchaseInput) (*models.PurchasedItem, error) {
	var item models.PurchasedItem
	err := tx.Where("character_id = ? AND item_type = ? AND item_value = ?", in.CharacterID, in.ItemType, in.ItemValue).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// buy records the purchase, debits the cost and applies the attribute.
func (s *ShopService) buy(tx *gorm.DB, ch *models.Character, in PurchaseInput) (*models.PurchasedItem, error) {
	name := in.ItemName
	if name == "" {
		name = in.ItemType
	}
	item := models.PurchasedItem{
		ID:          uuid.NewString(),
		CharacterID: ch.ID,
		ItemType:    in.ItemType,
		ItemValue:   in.ItemValue,
		ItemName:    name,
		Cost:        in.Cost,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&item)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ConflictError("already_purchased", "%s %q already purchased", in.ItemType, in.ItemValue)
	}
	if in.Cost > 0 {
		if _, err := debit(tx, ledgerEntry{
			CharacterID: ch.ID,
			Amount:      in.Cost,
			Source:      SourceShop,
			Description: fmt.Sprintf("Purchase: %s", name),
		}); err != nil {
			return nil, err
		}
	}
	if err := applyCustomization(tx, ch, in.ItemType, in.ItemValue); err != nil {
		return nil, err
	}
	if err := notify(tx, ch.ID, NotifyPurchase, fmt.Sprintf("Purchased: %s", name),
		fmt.Sprintf("-%d kinetics", in.Cost),
		map[string]interface{}{"item_type": in.ItemType, "item_value": in.ItemValue}); err != nil {
		return nil, err
	}
	if s.Log != nil {
		s.Log.Info("customization purchased",
			zap.String("character_id", ch.ID),
			zap.String("item_type", in.ItemType),
			zap.Int64("cost", in.Cost))
	}
	return &item, nil
}

func applyCustomization(tx *gorm.DB, ch *models.Character, itemType, itemValue string) error {
	cols, err := customizationColumns(ch, itemType, itemValue)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}
	return tx.Model(&models.Character{}).Where("id = ?", ch.ID).Updates(cols).Error
}

func (s *ShopService) ListPurchases(ctx context.Context, characterID string) ([]models.PurchasedItem, error) {
	if err := requireCharacterID(characterID); err != nil {
		return nil, err
	}
	var items []models.PurchasedItem
	err := s.DB.WithContext(ctx).
		Where("character_id = ?", characterID).
		Order("purchased_at DESC").
		Find(&items).Error
	return items, err
}

// AccessoryListing is an available accessory with the caller's ownership flags.
type AccessoryListing struct {
	models.Accessory
	Owned    bool `json:"owned"`
	Equipped bool `json:"equipped"`
}

// ListAccessories returns available accessories by price; ownership flags are
// filled when characterID is given.
func (s *ShopService) ListAccessories(ctx context.Context, characterID string) ([]AccessoryListing, error) {
	db := s.DB.WithContext(ctx)
	var items []models.Accessory
	if err := db.Where("is_available = ?", true).Order("price, name").Find(&items).Error; err != nil {
		return nil, err
	}
	owned := map[string]bool{}
	if characterID != "" {
		if err := requireCharacterID(characterID); err != nil {
			return nil, err
		}
		var rows []models.CharacterAccessory
		if err := db.Where("character_id = ?", characterID).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			owned[r.AccessoryID] = r.IsEquipped
		}
	}
	out := make([]AccessoryListing, 0, len(items))
	for _, it := range items {
		equipped, has := owned[it.ID]
		out = append(out, AccessoryListing{Accessory: it, Owned: has, Equipped: equipped})
	}
	return out, nil
}

type BuyAccessoryInput struct {
	CharacterID string `json:"character_id"`
	AccessoryID string `json:"accessory_id"`
}

type AccessoryPurchase struct {
	Character *models.Character `json:"character"`
	Accessory *models.Accessory `json:"accessory"`
}

// BuyAccessory debits the accessory price and records ownership.
func (s *ShopService) BuyAccessory(ctx context.Context, in BuyAccessoryInput) (*AccessoryPurchase, error) {
	if err := requireCharacterID(in.CharacterID); err != nil {
		return nil, err
	}
	if in.AccessoryID == "" {
		return nil, ValidationError("missing_accessory_id", "accessory_id is required")
	}
	if !isUUID(in.AccessoryID) {
		return nil, NotFoundError("accessory_not_found", "accessory %s not found", in.AccessoryID)
	}

	var out AccessoryPurchase
	err := transact(ctx, s.DB, func(tx *gorm.DB) error {
		if _, err := lockCharacter(tx, in.CharacterID); err != nil {
			return err
		}
		var acc models.Accessory
		err := tx.Where("id = ? AND is_available = ?", in.AccessoryID, true).First(&acc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFoundError("accessory_not_found", "accessory %s not found", in.AccessoryID)
		}
		if err != nil {
			return err
		}

		row := models.CharacterAccessory{
			ID:          uuid.NewString(),
			CharacterID: in.CharacterID,
			AccessoryID: acc.ID,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ConflictError("already_owned", "accessory %s already owned", acc.ID)
		}
		if acc.Price > 0 {
			if _, err := debit(tx, ledgerEntry{
				CharacterID: in.CharacterID,
				Amount:      acc.Price,
				Source:      SourceAccessory,
				Description: fmt.Sprintf("Accessory: %s", acc.Name),
			}); err != nil {
				return err
			}
		}
		if err := notify(tx, in.CharacterID, NotifyPurchase, fmt.Sprintf("New accessory: %s!", acc.Name), acc.Description,
			map[string]interface{}{"accessory_id": acc.ID}); err != nil {
			return err
		}
		out.Accessory = &acc
		out.Character, err = loadCharacter(tx, in.CharacterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
