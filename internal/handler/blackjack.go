package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-blackjack-bot/internal/cooldown"
	"telegram-blackjack-bot/internal/game/blackjack"
)

// BlackjackHandler handles blackjack commands and table buttons.
type BlackjackHandler struct {
	controller *blackjack.Controller
	cooldowns  cooldown.Store
	settings   BlackjackSettings
}

// BlackjackSettings holds handler-level knobs.
type BlackjackSettings struct {
	StartCooldown time.Duration
}

// NewBlackjackHandler creates a new BlackjackHandler.
func NewBlackjackHandler(controller *blackjack.Controller, cooldowns cooldown.Store, settings BlackjackSettings) *BlackjackHandler {
	return &BlackjackHandler{
		controller: controller,
		cooldowns:  cooldowns,
		settings:   settings,
	}
}

func isGroup(chat *tele.Chat) bool {
	return chat != nil && (chat.Type == tele.ChatGroup || chat.Type == tele.ChatSuperGroup)
}

// HandleStart handles /blackjack: opens signup in a group chat.
func (h *BlackjackHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}
	if !isGroup(chat) {
		return c.Reply("❌ Blackjack can only be played in groups.")
	}
	if _, ok := h.controller.Registry().Get(chat.ID); ok {
		text, _ := gameErrorText(blackjack.ErrGameActive)
		return c.Reply(text)
	}

	key := cooldown.ChatKey(chat.ID)
	acquired, remaining, err := h.cooldowns.Acquire(ctx, key, h.settings.StartCooldown)
	if err != nil {
		// A broken cooldown store must not block games.
		log.Warn().Err(err).Int64("chat_id", chat.ID).Msg("Cooldown check failed")
	} else if !acquired {
		return c.Reply(fmt.Sprintf("⏳ Next game can start in %s", formatWait(remaining)))
	}

	_, err = h.controller.Start(ctx, chat.ID, blackjack.User{ID: sender.ID, Name: displayName(sender)})
	if err != nil {
		if acquired {
			if rerr := h.cooldowns.Release(ctx, key); rerr != nil {
				log.Warn().Err(rerr).Int64("chat_id", chat.ID).Msg("Failed to release start cooldown")
			}
		}
		text, known := gameErrorText(err)
		if !known {
			log.Error().Err(err).Int64("chat_id", chat.ID).Msg("Failed to start blackjack")
		}
		return c.Reply(text)
	}
	return nil
}

// HandleExtend handles /bj_extend: adds time to the signup countdown.
func (h *BlackjackHandler) HandleExtend(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	deadline, err := h.controller.ExtendSignup(context.Background(), chat.ID)
	if err != nil {
		return h.replyErr(c, err)
	}
	log.Info().Int64("chat_id", chat.ID).Int64("admin_id", c.Sender().ID).Time("deadline", deadline).Msg("Admin extended blackjack signup")
	h.deleteCommand(c)
	return nil
}

// HandleForceStart handles /bj_start: ends signup early.
func (h *BlackjackHandler) HandleForceStart(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	if err := h.controller.ForceStart(context.Background(), chat.ID); err != nil {
		return h.replyErr(c, err)
	}
	log.Info().Int64("chat_id", chat.ID).Int64("admin_id", c.Sender().ID).Msg("Admin force-started blackjack")
	h.deleteCommand(c)
	return nil
}

func (h *BlackjackHandler) replyErr(c tele.Context, err error) error {
	text, known := gameErrorText(err)
	if !known {
		log.Error().Err(err).Msg("Blackjack command failed")
	}
	return c.Reply(text)
}

// deleteCommand removes the admin's command message to keep the table tidy.
func (h *BlackjackHandler) deleteCommand(c tele.Context) {
	if err := c.Delete(); err != nil {
		log.Debug().Err(err).Msg("Failed to delete admin command")
	}
}

// HandleCallback handles every table button.
func (h *BlackjackHandler) HandleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil || c.Sender() == nil {
		return nil
	}

	action, err := blackjack.DecodeAction(cb.Data)
	if err != nil {
		log.Debug().Err(err).Str("data", cb.Data).Msg("Malformed blackjack callback")
		return respondAlert(c, err)
	}
	// Buttons only act on the chat they were posted in.
	if cb.Message != nil && cb.Message.Chat != nil && cb.Message.Chat.ID != action.ChatID {
		return respondAlert(c, blackjack.ErrMalformedAction)
	}

	user := blackjack.User{ID: c.Sender().ID, Name: displayName(c.Sender())}
	text, err := h.controller.Handle(context.Background(), action, user)
	if err != nil {
		return respondAlert(c, err)
	}
	return c.Respond(&tele.CallbackResponse{Text: text})
}

func respondAlert(c tele.Context, err error) error {
	text, known := gameErrorText(err)
	if !known {
		log.Error().Err(err).Int64("user_id", c.Sender().ID).Msg("Blackjack action failed")
	}
	return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
}

