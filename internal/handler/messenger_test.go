package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

type call struct {
	op     string
	chatID int64
	msgID  string
	what   interface{}
	opts   []interface{}
}

type fakeAPI struct {
	calls  []call
	nextID int
	err    error
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	chat := to.(*tele.Chat)
	f.calls = append(f.calls, call{op: "send", chatID: chat.ID, what: what, opts: opts})
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	return &tele.Message{ID: f.nextID, Chat: chat}, nil
}

func (f *fakeAPI) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	id, chatID := msg.MessageSig()
	f.calls = append(f.calls, call{op: "edit", chatID: chatID, msgID: id, what: what, opts: opts})
	return nil, f.err
}

func (f *fakeAPI) Delete(msg tele.Editable) error {
	id, chatID := msg.MessageSig()
	f.calls = append(f.calls, call{op: "delete", chatID: chatID, msgID: id})
	return f.err
}

func TestMessengerSendEditDelete(t *testing.T) {
	api := &fakeAPI{}
	m := NewMessenger(api)
	ctx := context.Background()
	markup := &tele.ReplyMarkup{}

	id, err := m.Send(ctx, -100, "hello", markup)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	require.NoError(t, m.Edit(ctx, -100, id, "bye", nil))
	require.NoError(t, m.Delete(ctx, -100, id))

	require.Len(t, api.calls, 3)
	assert.Equal(t, call{op: "send", chatID: -100, what: "hello", opts: []interface{}{markup}}, api.calls[0])
	assert.Equal(t, call{op: "edit", chatID: -100, msgID: "1", what: "bye"}, api.calls[1])
	assert.Equal(t, call{op: "delete", chatID: -100, msgID: "1"}, api.calls[2])
}

func TestMessengerSkipsUnsentMessages(t *testing.T) {
	api := &fakeAPI{}
	m := NewMessenger(api)

	require.NoError(t, m.Edit(context.Background(), 1, 0, "x", nil))
	require.NoError(t, m.Delete(context.Background(), 1, 0))
	assert.Empty(t, api.calls)
}

func TestMessengerErrors(t *testing.T) {
	api := &fakeAPI{err: errors.New("Bad Request: message is not modified")}
	m := NewMessenger(api)
	assert.NoError(t, m.Edit(context.Background(), 1, 5, "same", nil))

	api.err = errors.New("Forbidden: bot was kicked")
	_, err := m.Send(context.Background(), 1, "x", nil)
	assert.Error(t, err)
	assert.Error(t, m.Edit(context.Background(), 1, 5, "x", nil))
	assert.Error(t, m.Delete(context.Background(), 1, 5))
}
