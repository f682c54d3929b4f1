package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-blackjack-bot/internal/model"
	"telegram-blackjack-bot/internal/service"
)

// AdminHandler handles balance administration.
type AdminHandler struct {
	accountService *service.AccountService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accountService *service.AccountService) *AdminHandler {
	return &AdminHandler{accountService: accountService}
}

var errAdminArgs = errors.New("bad admin arguments")

// parseAdminArgs reads "<user_id> <amount>", or "<amount>" when target is
// already known from a reply or mention.
func parseAdminArgs(target *tele.User, args []string) (int64, int64, error) {
	switch {
	case len(args) >= 2:
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return 0, 0, errAdminArgs
		}
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return 0, 0, errAdminArgs
		}
		return id, amount, nil
	case len(args) == 1 && target != nil:
		amount, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return 0, 0, errAdminArgs
		}
		return target.ID, amount, nil
	}
	return 0, 0, errAdminArgs
}

func adminUsage(cmd string) string {
	return fmt.Sprintf("Usage: /%s <user_id> <amount>, or reply with /%s <amount>", cmd, cmd)
}

// HandleGive handles /give_coins.
func (h *AdminHandler) HandleGive(c tele.Context) error {
	return h.adjust(c, "give_coins", 1, model.TxTypeAdminAdd)
}

// HandleTake handles /take_coins.
func (h *AdminHandler) HandleTake(c tele.Context) error {
	return h.adjust(c, "take_coins", -1, model.TxTypeAdminSub)
}

func (h *AdminHandler) adjust(c tele.Context, cmd string, sign int64, txType string) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	targetID, amount, err := parseAdminArgs(targetUser(c.Message()), c.Args())
	if err != nil {
		return c.Reply(adminUsage(cmd))
	}
	if amount <= 0 {
		return c.Reply("❌ The amount must be positive.")
	}

	desc := fmt.Sprintf("admin %d", sender.ID)
	res, err := h.accountService.AdjustBalance(context.Background(), targetID, sign*amount, txType, &desc)
	if err != nil {
		log.Error().Err(err).Int64("target_id", targetID).Msg("Admin balance change failed")
		return c.Reply("❌ Something went wrong, please try again.")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", targetID).
		Int64("amount", sign*amount).
		Str("operation", txType).
		Msg("Admin operation executed")

	verb := "Gave"
	if sign < 0 {
		verb = "Took"
	}
	return c.Reply(fmt.Sprintf("✅ %s %d coins, user %d\nBalance: %d → %d",
		verb, amount, targetID, res.OldBalance, res.User.Balance))
}

// HandleSet handles /set_balance.
func (h *AdminHandler) HandleSet(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	targetID, balance, err := parseAdminArgs(targetUser(c.Message()), c.Args())
	if err != nil {
		return c.Reply(adminUsage("set_balance"))
	}

	desc := fmt.Sprintf("admin %d", sender.ID)
	res, err := h.accountService.SetBalance(context.Background(), targetID, balance, &desc)
	if err != nil {
		if errors.Is(err, service.ErrNegativeBalance) {
			return c.Reply("❌ The balance cannot be negative.")
		}
		log.Error().Err(err).Int64("target_id", targetID).Msg("Admin balance set failed")
		return c.Reply("❌ Something went wrong, please try again.")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", targetID).
		Int64("old_balance", res.OldBalance).
		Int64("new_balance", res.User.Balance).
		Str("operation", model.TxTypeAdminSet).
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf("✅ Balance of user %d set to %d (was %d)", targetID, res.User.Balance, res.OldBalance))
}

// HandleGiftAll handles /gift_all <amount>.
func (h *AdminHandler) HandleGiftAll(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("Usage: /gift_all <amount>")
	}
	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || amount <= 0 {
		return c.Reply("❌ The amount must be a positive number.")
	}

	desc := fmt.Sprintf("admin %d gift", sender.ID)
	count, err := h.accountService.GiftAll(context.Background(), amount, &desc)
	if err != nil {
		log.Error().Err(err).Msg("Admin gift failed")
		return c.Reply("❌ Something went wrong, please try again.")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("amount", amount).
		Int("user_count", count).
		Str("operation", model.TxTypeAdminGift).
		Msg("Admin gift all operation executed")

	return c.Reply(fmt.Sprintf("🎁 Gave %d coins to %d users", amount, count))
}
