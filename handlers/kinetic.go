// handlers/kinetic.go
package handlers

import (
	"strings"
	"time"

	"github.com/dima260208d-dot/kinetik-energy-project/middleware"
	"github.com/dima260208d-dot/kinetik-energy-project/services"

	"github.com/gofiber/fiber/v2"
)

// Action names one Kinetic Universe operation.
type Action string

const (
	ActionMyCharacter       Action = "my_character"
	ActionAllCharacters     Action = "all_characters"
	ActionTricks            Action = "tricks"
	ActionMasteredTricks    Action = "mastered_tricks"
	ActionTransactions      Action = "transactions"
	ActionNotifications     Action = "notifications"
	ActionAchievements      Action = "achievements"
	ActionPurchasedItems    Action = "purchased_items"
	ActionCurrentTournament Action = "current_tournament"
	ActionLeaderboard       Action = "leaderboard"
	ActionPublicProfile     Action = "public_profile"
	ActionTrainingVisits    Action = "training_visits"
	ActionAccessories       Action = "accessories"

	ActionCreateCharacter       Action = "create_character"
	ActionUpdateCharacter       Action = "update_character"
	ActionAddKinetics           Action = "add_kinetics"
	ActionConfirmTricks         Action = "confirm_tricks"
	ActionGameComplete          Action = "game_complete"
	ActionMarkNotificationsRead Action = "mark_notifications_read"
	ActionPurchaseItem          Action = "purchase_item"
	ActionPurchaseCustomization Action = "purchase_customization"
	ActionApplyCustomization    Action = "apply_customization"
	ActionAddSport              Action = "add_sport"
	ActionJoinTournament        Action = "join_tournament"
	ActionAddTrainingVisit      Action = "add_training_visit"
	ActionSetTrainer            Action = "set_trainer"
	ActionSetAge                Action = "set_age"
	ActionSendWeeklyResults     Action = "send_weekly_results"
	ActionBuyAccessory          Action = "buy_accessory"
)

// KineticHandler serves every Kinetic Universe action from one endpoint.
type KineticHandler struct {
	Characters    *services.CharacterService
	Tricks        *services.TrickService
	Shop          *services.ShopService
	Notifications *services.NotificationService
	Achievements  *services.AchievementService
	Tournaments   *services.TournamentService
	Location      *time.Location
	Now           func() time.Time
}

func (h *KineticHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

type kineticRoute struct {
	method    string
	staffOnly bool
	handle    func(h *KineticHandler, c *fiber.Ctx) error
}

var kineticRoutes = map[Action]kineticRoute{
	ActionMyCharacter:       {method: fiber.MethodGet, handle: (*KineticHandler).myCharacter},
	ActionAllCharacters:     {method: fiber.MethodGet, handle: (*KineticHandler).allCharacters},
	ActionTricks:            {method: fiber.MethodGet, handle: (*KineticHandler).tricks},
	ActionMasteredTricks:    {method: fiber.MethodGet, handle: (*KineticHandler).masteredTricks},
	ActionTransactions:      {method: fiber.MethodGet, handle: (*KineticHandler).transactions},
	ActionNotifications:     {method: fiber.MethodGet, handle: (*KineticHandler).notifications},
	ActionAchievements:      {method: fiber.MethodGet, handle: (*KineticHandler).achievements},
	ActionPurchasedItems:    {method: fiber.MethodGet, handle: (*KineticHandler).purchasedItems},
	ActionCurrentTournament: {method: fiber.MethodGet, handle: (*KineticHandler).currentTournament},
	ActionLeaderboard:       {method: fiber.MethodGet, handle: (*KineticHandler).leaderboard},
	ActionPublicProfile:     {method: fiber.MethodGet, handle: (*KineticHandler).publicProfile},
	ActionTrainingVisits:    {method: fiber.MethodGet, handle: (*KineticHandler).trainingVisits},
	ActionAccessories:       {method: fiber.MethodGet, handle: (*KineticHandler).accessories},

	ActionCreateCharacter:       {method: fiber.MethodPost, handle: (*KineticHandler).createCharacter},
	ActionUpdateCharacter:       {method: fiber.MethodPost, staffOnly: true, handle: (*KineticHandler).updateCharacter},
	ActionAddKinetics:           {method: fiber.MethodPost, staffOnly: true, handle: (*KineticHandler).addKinetics},
	ActionConfirmTricks:         {method: fiber.MethodPost, staffOnly: true, handle: (*KineticHandler).confirmTricks},
	ActionGameComplete:          {method: fiber.MethodPost, handle: (*KineticHandler).gameComplete},
	ActionMarkNotificationsRead: {method: fiber.MethodPost, handle: (*KineticHandler).markNotificationsRead},
	ActionPurchaseItem:          {method: fiber.MethodPost, handle: (*KineticHandler).purchase},
	ActionPurchaseCustomization: {method: fiber.MethodPost, handle: (*KineticHandler).applyCustomization},
	ActionApplyCustomization:    {method: fiber.MethodPost, handle: (*KineticHandler).applyCustomization},
	ActionAddSport:              {method: fiber.MethodPost, handle: (*KineticHandler).addSport},
	ActionJoinTournament:        {method: fiber.MethodPost, handle: (*KineticHandler).joinTournament},
	ActionAddTrainingVisit:      {method: fiber.MethodPost, staffOnly: true, handle: (*KineticHandler).addTrainingVisit},
	ActionSetTrainer:            {method: fiber.MethodPost, handle: (*KineticHandler).setTrainer},
	ActionSetAge:                {method: fiber.MethodPost, handle: (*KineticHandler).setAge},
	ActionSendWeeklyResults:     {method: fiber.MethodPost, staffOnly: true, handle: (*KineticHandler).sendWeeklyResults},
	ActionBuyAccessory:          {method: fiber.MethodPost, handle: (*KineticHandler).buyAccessory},
}

// SetupKineticRoutes mounts the action dispatcher at /kinetic.
func SetupKineticRoutes(app *fiber.App, h *KineticHandler) {
	app.All("/kinetic", middleware.UserContextMiddleware(), h.Dispatch)
}

// actionOf reads ?action=, falling back to the "action" field of a JSON body.
func actionOf(c *fiber.Ctx) Action {
	if a := strings.TrimSpace(c.Query("action")); a != "" {
		return Action(a)
	}
	var probe struct {
		Action string `json:"action"`
	}
	if err := decodeBody(c, &probe); err != nil {
		return ""
	}
	return Action(strings.TrimSpace(probe.Action))
}

func unknownAction(a Action) error {
	err := services.NotFoundError("unknown_action", "unknown action %q", string(a))
	err.Details = map[string]interface{}{"action": string(a)}
	return err
}

// Dispatch looks the action up in the route table and enforces its method and role.
func (h *KineticHandler) Dispatch(c *fiber.Ctx) error {
	action := actionOf(c)
	middleware.SetAction(c, string(action))

	route, ok := kineticRoutes[action]
	if !ok || route.method != c.Method() {
		return unknownAction(action)
	}
	if route.staffOnly && !middleware.IsStaff(c) {
		return services.ForbiddenError("%s requires trainer or director role", action)
	}
	return route.handle(h, c)
}

// callerOrParam prefers the trusted X-User-Id and falls back to an explicit value.
func callerOrParam(c *fiber.Ctx, explicit string) string {
	if id := middleware.UserID(c); id != "" {
		return id
	}
	return strings.TrimSpace(explicit)
}

// ---- GET actions ----

func (h *KineticHandler) myCharacter(c *fiber.Ctx) error {
	userID := callerOrParam(c, c.Query("user_id"))
	if userID == "" {
		return services.ValidationError("missing_user_id", "X-User-Id header or user_id is required")
	}
	ch, err := h.Characters.GetByUser(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"character": ch})
}

func (h *KineticHandler) allCharacters(c *fiber.Ctx) error {
	list, err := h.Characters.List(c.UserContext(), c.Query("q"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"characters": list})
}

func (h *KineticHandler) tricks(c *fiber.Ctx) error {
	list, err := h.Tricks.List(c.UserContext(), c.Query("sport_type"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"tricks": list})
}

func (h *KineticHandler) masteredTricks(c *fiber.Ctx) error {
	list, err := h.Tricks.Mastered(c.UserContext(), c.Query("character_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"mastered_tricks": list})
}

func (h *KineticHandler) transactions(c *fiber.Ctx) error {
	list, err := h.Characters.ListTransactions(c.UserContext(), c.Query("character_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"transactions": list})
}

func (h *KineticHandler) notifications(c *fiber.Ctx) error {
	list, unread, err := h.Notifications.List(c.UserContext(), c.Query("character_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"notifications": list, "unread_count": unread})
}

func (h *KineticHandler) achievements(c *fiber.Ctx) error {
	list, err := h.Achievements.List(c.UserContext(), c.Query("character_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"achievements": list})
}

func (h *KineticHandler) purchasedItems(c *fiber.Ctx) error {
	list, err := h.Shop.ListPurchases(c.UserContext(), c.Query("character_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": list})
}

func (h *KineticHandler) currentTournament(c *fiber.Ctx) error {
	t, entries, err := h.Tournaments.Current(c.UserContext(), h.now())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"tournament": t, "entries": entries})
}

func (h *KineticHandler) leaderboard(c *fiber.Ctx) error {
	period := c.Query("period", services.PeriodWeekly)
	rows, err := h.Tournaments.Leaderboard(c.UserContext(), period, h.now())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"entries": rows, "period": period})
}

func (h *KineticHandler) publicProfile(c *fiber.Ctx) error {
	ch, stats, err := h.Characters.PublicProfile(c.UserContext(), c.Query("character_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"character": ch, "stats": stats})
}

func (h *KineticHandler) trainingVisits(c *fiber.Ctx) error {
	list, err := h.Characters.ListTrainingVisits(c.UserContext(), c.Query("character_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"visits": list})
}

func (h *KineticHandler) accessories(c *fiber.Ctx) error {
	list, err := h.Shop.ListAccessories(c.UserContext(), c.Query("character_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"accessories": list})
}

// ---- POST actions ----

func (h *KineticHandler) createCharacter(c *fiber.Ctx) error {
	var in services.CreateCharacterInput
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	in.UserID = callerOrParam(c, in.UserID)
	ch, awarded, err := h.Characters.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"character": ch, "new_achievements": awarded})
}

func (h *KineticHandler) updateCharacter(c *fiber.Ctx) error {
	var in struct {
		CharacterID string `json:"character_id"`
		services.UpdateCharacterInput
	}
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	ch, err := h.Characters.Update(c.UserContext(), in.CharacterID, in.UpdateCharacterInput)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"character": ch})
}

func (h *KineticHandler) addKinetics(c *fiber.Ctx) error {
	var in services.GrantKineticsInput
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	in.CreatedBy = callerOrParam(c, in.CreatedBy)
	ch, tx, err := h.Characters.GrantKinetics(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"character": ch, "transaction": tx})
}

func (h *KineticHandler) confirmTricks(c *fiber.Ctx) error {
	var in services.ConfirmTricksInput
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	in.ConfirmedBy = callerOrParam(c, in.ConfirmedBy)
	res, err := h.Tricks.Confirm(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *KineticHandler) gameComplete(c *fiber.Ctx) error {
	var in services.GameCompleteInput
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	res, err := h.Characters.CompleteGame(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *KineticHandler) markNotificationsRead(c *fiber.Ctx) error {
	var in struct {
		CharacterID     string   `json:"character_id"`
		NotificationIDs []string `json:"notification_ids"`
	}
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	n, err := h.Notifications.MarkRead(c.UserContext(), in.CharacterID, in.NotificationIDs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "updated": n})
}

func (h *KineticHandler) purchase(c *fiber.Ctx) error {
	var in services.PurchaseInput
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	res, err := h.Shop.Purchase(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *KineticHandler) applyCustomization(c *fiber.Ctx) error {
	var in services.PurchaseInput
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	res, err := h.Shop.ApplyCustomization(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *KineticHandler) addSport(c *fiber.Ctx) error {
	var in services.AddSportInput
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	ch, err := h.Characters.AddSport(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"character": ch})
}

func (h *KineticHandler) joinTournament(c *fiber.Ctx) error {
	var in struct {
		CharacterID string `json:"character_id"`
	}
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	res, err := h.Tournaments.Join(c.UserContext(), in.CharacterID, h.now())
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *KineticHandler) addTrainingVisit(c *fiber.Ctx) error {
	var in services.TrainingVisitInput
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	in.ConfirmedBy = callerOrParam(c, in.ConfirmedBy)
	visit, err := h.Characters.AddTrainingVisit(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"visit": visit})
}

func (h *KineticHandler) setTrainer(c *fiber.Ctx) error {
	var in struct {
		CharacterID string `json:"character_id"`
		TrainerName string `json:"trainer_name"`
	}
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	ch, err := h.Characters.SetTrainer(c.UserContext(), in.CharacterID, in.TrainerName)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"character": ch})
}

func (h *KineticHandler) setAge(c *fiber.Ctx) error {
	var in struct {
		CharacterID string `json:"character_id"`
		Age         *int   `json:"age"`
	}
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	if in.Age == nil {
		return services.ValidationError("missing_age", "age is required")
	}
	ch, err := h.Characters.SetAge(c.UserContext(), in.CharacterID, *in.Age)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"character": ch})
}

func (h *KineticHandler) sendWeeklyResults(c *fiber.Ctx) error {
	var in struct {
		AsOf string `json:"as_of"`
	}
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	asOf, err := parseAsOf(in.AsOf, h.now(), h.Location)
	if err != nil {
		return err
	}
	sent, err := h.Tournaments.SendWeeklyResults(c.UserContext(), asOf)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "sent": sent})
}

func (h *KineticHandler) buyAccessory(c *fiber.Ctx) error {
	var in services.BuyAccessoryInput
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	res, err := h.Shop.BuyAccessory(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(res)
}
