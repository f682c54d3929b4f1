package bot

import (
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-blackjack-bot/internal/config"
)

// PrivateUsers tracks users seen in whitelisted groups. They may also talk to
// the bot in private chat (for /balance, /slave_info and so on).
type PrivateUsers struct {
	mu    sync.RWMutex
	users map[int64]bool
}

// NewPrivateUsers creates an empty set.
func NewPrivateUsers() *PrivateUsers {
	return &PrivateUsers{users: make(map[int64]bool)}
}

// Allow marks a user as allowed to use private chat.
func (p *PrivateUsers) Allow(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[userID] = true
}

// Allowed checks if a user is allowed to use private chat.
func (p *PrivateUsers) Allowed(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.users[userID]
}

// WhitelistMiddleware drops updates from chats that are not whitelisted.
func WhitelistMiddleware(cfg *config.Config, private *PrivateUsers) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			sender := c.Sender()

			if chat == nil || sender == nil {
				return nil
			}

			if chat.Type == tele.ChatPrivate {
				if len(cfg.Whitelist.Chats) == 0 || private.Allowed(sender.ID) {
					return next(c)
				}
				log.Debug().
					Int64("user_id", sender.ID).
					Msg("Ignoring private chat from user not seen in a whitelisted group")
				return nil
			}

			if !cfg.IsChatAllowed(chat.ID) {
				log.Debug().
					Int64("chat_id", chat.ID).
					Msg("Ignoring update from non-whitelisted chat")
				return nil
			}

			private.Allow(sender.ID)
			return next(c)
		}
	}
}

// AdminMiddleware rejects non-admins.
func AdminMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}

			if !cfg.IsAdmin(sender.ID) {
				log.Warn().
					Int64("user_id", sender.ID).
					Str("command", c.Text()).
					Msg("Non-admin attempted admin command")
				return c.Reply("❌ This command is for admins only.")
			}

			return next(c)
		}
	}
}

// LoggingMiddleware logs all incoming updates.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			chat := c.Chat()

			logEvent := log.Debug()
			if sender != nil {
				logEvent = logEvent.
					Int64("user_id", sender.ID).
					Str("username", sender.Username)
			}
			if chat != nil {
				logEvent = logEvent.
					Int64("chat_id", chat.ID).
					Str("chat_type", string(chat.Type))
			}
			if cb := c.Callback(); cb != nil {
				logEvent = logEvent.Str("callback", cb.Data)
			}
			logEvent.
				Str("text", c.Text()).
				Msg("Received update")

			err := next(c)
			if err != nil {
				log.Warn().Err(err).Msg("Handler returned error")
			}
			return err
		}
	}
}

// RecoveryMiddleware recovers from handler panics.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Msg("Recovered from panic in handler")
					err = nil
					if c.Callback() != nil {
						_ = c.Respond(&tele.CallbackResponse{Text: "❌ Internal error, please try again", ShowAlert: true})
						return
					}
					_ = c.Reply("❌ Internal error, please try again")
				}
			}()
			return next(c)
		}
	}
}
