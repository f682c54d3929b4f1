// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-blackjack-bot/internal/config"
	"telegram-blackjack-bot/internal/game/blackjack"
	"telegram-blackjack-bot/internal/handler"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot     *tele.Bot
	cfg     *config.Config
	private *PrivateUsers

	accountHandler   *handler.AccountHandler
	adminHandler     *handler.AdminHandler
	slaveHandler     *handler.SlaveHandler
	blackjackHandler *handler.BlackjackHandler
}

// Dependencies holds the handlers the bot routes to.
type Dependencies struct {
	Config           *config.Config
	AccountHandler   *handler.AccountHandler
	AdminHandler     *handler.AdminHandler
	SlaveHandler     *handler.SlaveHandler
	BlackjackHandler *handler.BlackjackHandler
}

// NewTelebot creates the Telegram client. It is separate from New because the
// game messenger needs the client before the handlers exist.
func NewTelebot(cfg *config.Config) (*tele.Bot, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	teleBot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Telegram update failed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return teleBot, nil
}

// New registers middleware and handlers on teleBot.
func New(teleBot *tele.Bot, deps *Dependencies) *Bot {
	b := &Bot{
		bot:              teleBot,
		cfg:              deps.Config,
		private:          NewPrivateUsers(),
		accountHandler:   deps.AccountHandler,
		adminHandler:     deps.AdminHandler,
		slaveHandler:     deps.SlaveHandler,
		blackjackHandler: deps.BlackjackHandler,
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg, b.private))
	b.bot.Use(LoggingMiddleware())
}

func (b *Bot) registerHandlers() {
	// Account handlers
	b.bot.Handle("/start", b.accountHandler.HandleBalance)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/daily", b.accountHandler.HandleDaily)
	b.bot.Handle("/top", b.accountHandler.HandleTop)
	b.bot.Handle("/history", b.accountHandler.HandleHistory)

	// Slave market
	b.bot.Handle("/slave", b.slaveHandler.HandleBuy)
	b.bot.Handle("/buyout", b.slaveHandler.HandleBuyout)
	b.bot.Handle("/slave_info", b.slaveHandler.HandleInfo)

	// Admin handlers
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/blackjack", b.blackjackHandler.HandleStart)
	adminGroup.Handle("/bj_extend", b.blackjackHandler.HandleExtend)
	adminGroup.Handle("/bj_start", b.blackjackHandler.HandleForceStart)
	adminGroup.Handle("/free_slave", b.slaveHandler.HandleFree)
	adminGroup.Handle("/give_coins", b.adminHandler.HandleGive)
	adminGroup.Handle("/take_coins", b.adminHandler.HandleTake)
	adminGroup.Handle("/set_balance", b.adminHandler.HandleSet)
	adminGroup.Handle("/gift_all", b.adminHandler.HandleGiftAll)

	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleCallback routes button presses.
func (b *Bot) handleCallback(c tele.Context) error {
	return routeCallback(c, b.blackjackHandler.HandleCallback)
}

func routeCallback(c tele.Context, table tele.HandlerFunc) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	if blackjack.IsAction(cb.Data) {
		return table(c)
	}
	log.Debug().Str("data", cb.Data).Msg("Unknown callback")
	return c.Respond()
}

// Start starts the bot polling. It blocks until Stop.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
