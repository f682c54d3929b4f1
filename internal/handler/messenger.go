package handler

import (
	"context"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-blackjack-bot/internal/game/blackjack"
)

// teleAPI is the part of *tele.Bot the messenger uses.
type teleAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// Messenger sends, edits and deletes game messages through Telegram.
type Messenger struct {
	api teleAPI
}

var _ blackjack.Messenger = (*Messenger)(nil)

// NewMessenger wraps a telebot instance.
func NewMessenger(api teleAPI) *Messenger {
	return &Messenger{api: api}
}

func options(markup *tele.ReplyMarkup) []interface{} {
	if markup == nil {
		return nil
	}
	return []interface{}{markup}
}

func stored(chatID int64, msgID int) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(msgID), ChatID: chatID}
}

func (m *Messenger) Send(_ context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (int, error) {
	msg, err := m.api.Send(&tele.Chat{ID: chatID}, text, options(markup)...)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// Edit replaces the message text. Editing to identical content is not an error.
func (m *Messenger) Edit(_ context.Context, chatID int64, msgID int, text string, markup *tele.ReplyMarkup) error {
	if msgID == 0 {
		return nil
	}
	_, err := m.api.Edit(stored(chatID, msgID), text, options(markup)...)
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

func (m *Messenger) Delete(_ context.Context, chatID int64, msgID int) error {
	if msgID == 0 {
		return nil
	}
	return m.api.Delete(stored(chatID, msgID))
}
