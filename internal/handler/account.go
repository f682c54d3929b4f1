package handler

import (
	"context"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-blackjack-bot/internal/service"
)

const (
	topLimit     = 10
	historyLimit = 10
)

// AccountHandler handles account-related commands.
type AccountHandler struct {
	accountService *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// ensure creates the sender's account on first contact.
func (h *AccountHandler) ensure(ctx context.Context, sender *tele.User) (int64, error) {
	user, created, err := h.accountService.EnsureUser(ctx, sender.ID, displayName(sender))
	if err != nil {
		return 0, err
	}
	if created {
		log.Info().Int64("user_id", sender.ID).Msg("Account created")
	}
	return user.Balance, nil
}

// HandleBalance handles the /balance command.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	balance, err := h.ensure(context.Background(), sender)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to get balance")
		return c.Reply("❌ Could not read your balance, please try again")
	}
	return c.Reply(balanceText(balance))
}

// HandleDaily handles the /daily command.
func (h *AccountHandler) HandleDaily(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if _, err := h.ensure(ctx, sender); err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to ensure user")
		return c.Reply("❌ Something went wrong, please try again")
	}

	res, err := h.accountService.ClaimDaily(ctx, sender.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to claim daily reward")
		return c.Reply("❌ Something went wrong, please try again")
	}
	return c.Reply(dailyText(res))
}

// HandleTop handles the /top command.
func (h *AccountHandler) HandleTop(c tele.Context) error {
	users, err := h.accountService.GetTopUsers(context.Background(), topLimit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get top users")
		return c.Reply("❌ Could not load the ranking, please try again")
	}
	return c.Reply(topText(users))
}

// HandleHistory handles the /history command.
func (h *AccountHandler) HandleHistory(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	txs, err := h.accountService.History(ctx, sender.ID, historyLimit)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to load history")
		return c.Reply("❌ Could not load your history, please try again")
	}
	net, err := h.accountService.BlackjackNet(ctx, sender.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to sum blackjack results")
		return c.Reply("❌ Could not load your history, please try again")
	}
	return c.Reply(historyText(txs, net))
}
