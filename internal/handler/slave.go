package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-blackjack-bot/internal/service"
)

// SlaveHandler handles the slave market commands.
type SlaveHandler struct {
	slaveService *service.SlaveService
}

// NewSlaveHandler creates a new SlaveHandler.
func NewSlaveHandler(slaveService *service.SlaveService) *SlaveHandler {
	return &SlaveHandler{slaveService: slaveService}
}

// targetUser finds who a command points at: the author of the replied-to
// message, or a user mentioned by link in the text.
func targetUser(msg *tele.Message) *tele.User {
	if msg == nil {
		return nil
	}
	if msg.ReplyTo != nil && msg.ReplyTo.Sender != nil {
		return msg.ReplyTo.Sender
	}
	for _, e := range msg.Entities {
		if e.Type == tele.EntityTMention && e.User != nil {
			return e.User
		}
	}
	return nil
}

// HandleBuy handles /slave: buys the target user.
func (h *SlaveHandler) HandleBuy(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	target := targetUser(c.Message())
	if target == nil {
		return c.Reply("Reply to a message of the user you want to buy with /slave")
	}
	if target.IsBot {
		return c.Reply("❌ Bots cannot be bought.")
	}

	name := displayName(target)
	p, err := h.slaveService.Buy(context.Background(), sender.ID, target.ID, name)
	if err != nil {
		return h.replyErr(c, err)
	}

	log.Info().Int64("user_id", sender.ID).Int64("slave_id", target.ID).Int64("price", p.Price).Msg("Slave bought")
	return c.Reply(fmt.Sprintf(
		"⛓ %s now belongs to %s\n💰 Price: %d\n💵 Your balance: %d\n\n%s can buy themselves out for %d with /buyout",
		name, displayName(sender), p.Price, p.Balance, name, p.Price,
	))
}

// HandleBuyout handles /buyout: the sender pays to go free.
func (h *SlaveHandler) HandleBuyout(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	rec, balance, err := h.slaveService.Buyout(context.Background(), sender.ID)
	if err != nil {
		return h.replyErr(c, err)
	}

	log.Info().Int64("user_id", sender.ID).Int64("owner_id", rec.OwnerID).Int64("price", rec.PurchasePrice).Msg("Slave bought out")
	return c.Reply(fmt.Sprintf("🕊 You are free!\n💰 Paid: %d\n💵 Balance: %d", rec.PurchasePrice, balance))
}

// HandleFree handles /free_slave (admin): releases the slave of the replied-to
// user, or of the owner id given as argument.
func (h *SlaveHandler) HandleFree(c tele.Context) error {
	var ownerID int64
	if target := targetUser(c.Message()); target != nil {
		ownerID = target.ID
	} else if args := c.Args(); len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Reply("Usage: /free_slave <owner_id>, or reply to the owner's message")
		}
		ownerID = id
	} else {
		return c.Reply("Usage: /free_slave <owner_id>, or reply to the owner's message")
	}

	freed, err := h.slaveService.Free(context.Background(), ownerID)
	if err != nil {
		return h.replyErr(c, err)
	}
	if !freed {
		return c.Reply(fmt.Sprintf("User %d owns no slave.", ownerID))
	}
	log.Info().Int64("admin_id", c.Sender().ID).Int64("owner_id", ownerID).Msg("Admin freed slave")
	return c.Reply(fmt.Sprintf("✅ The slave of user %d is free.", ownerID))
}

// HandleInfo handles /slave_info.
func (h *SlaveHandler) HandleInfo(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	info, err := h.slaveService.Info(context.Background(), sender.ID)
	if err != nil {
		return h.replyErr(c, err)
	}
	return c.Reply(slaveInfoText(info))
}

func (h *SlaveHandler) replyErr(c tele.Context, err error) error {
	text, known := slaveErrorText(err)
	if !known {
		log.Error().Err(err).Int64("user_id", c.Sender().ID).Msg("Slave command failed")
	}
	return c.Reply(text)
}
