package blackjack

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

// Messenger delivers game messages. Failures are the caller's to log.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (int, error)
	Edit(ctx context.Context, chatID int64, msgID int, text string, markup *tele.ReplyMarkup) error
	Delete(ctx context.Context, chatID int64, msgID int) error
}

// Frame is one render step shown after Delay.
type Frame struct {
	Delay  time.Duration
	Text   string
	Markup *tele.ReplyMarkup
}

// Timeline is an animation described as data.
type Timeline []Frame

// Sleeper pauses between frames.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper waits on the wall clock.
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoopSleeper skips every pause.
type NoopSleeper struct{}

func (NoopSleeper) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

// ErrAnimationStopped means the game went away while frames were playing.
var ErrAnimationStopped = errors.New("animation stopped")

// Animator plays timelines into a single message.
type Animator struct {
	Messenger Messenger
	Sleeper   Sleeper
}

// Play shows each frame in turn, editing msgID (or sending a new message when
// it is 0). alive is checked before every frame. It returns the message id in use.
func (a *Animator) Play(ctx context.Context, chatID int64, msgID int, tl Timeline, alive func() bool) (int, error) {
	for _, f := range tl {
		if err := a.Sleeper.Sleep(ctx, f.Delay); err != nil {
			return msgID, err
		}
		if alive != nil && !alive() {
			return msgID, ErrAnimationStopped
		}
		if msgID == 0 {
			id, err := a.Messenger.Send(ctx, chatID, f.Text, f.Markup)
			if err != nil {
				log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send animation frame")
				continue
			}
			msgID = id
			continue
		}
		if err := a.Messenger.Edit(ctx, chatID, msgID, f.Text, f.Markup); err != nil {
			log.Debug().Err(err).Int64("chat_id", chatID).Int("message_id", msgID).Msg("Failed to edit animation frame")
		}
	}
	return msgID, nil
}
