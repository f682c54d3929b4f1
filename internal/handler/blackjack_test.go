package handler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"telegram-blackjack-bot/internal/cooldown"
	"telegram-blackjack-bot/internal/game/blackjack"
)

const tableChat int64 = -100

// tgContext implements the tele.Context methods the blackjack handler uses.
type tgContext struct {
	tele.Context
	chat      *tele.Chat
	sender    *tele.User
	callback  *tele.Callback
	replies   []string
	responses []*tele.CallbackResponse
}

func (f *tgContext) Chat() *tele.Chat { return f.chat }
func (f *tgContext) Sender() *tele.User { return f.sender }
func (f *tgContext) Callback() *tele.Callback { return f.callback }
func (f *tgContext) Delete() error { return nil }
func (f *tgContext) Reply(what interface{}, _ ...interface{}) error {
	f.replies = append(f.replies, what.(string))
	return nil
}
func (f *tgContext) Respond(resp ...*tele.CallbackResponse) error {
	f.responses = append(f.responses, resp...)
	return nil
}

func (f *tgContext) lastResponse(t *testing.T) *tele.CallbackResponse {
	t.Helper()
	require.NotEmpty(t, f.responses)
	return f.responses[len(f.responses)-1]
}

func groupChat(id int64) *tele.Chat { return &tele.Chat{ID: id, Type: tele.ChatSuperGroup} }

// stubEconomy gives every user 1000 coins and no slaves.
type stubEconomy struct{}

func (stubEconomy) Balance(context.Context, int64) (int64, error) { return 1000, nil }
func (stubEconomy) AddBalance(context.Context, int64, int64, string) (int64, error) {
	return 1000, nil
}
func (stubEconomy) Slave(context.Context, int64) (*blackjack.Stake, error) { return nil, nil }
func (stubEconomy) SetSlave(context.Context, int64, blackjack.Stake) error { return nil }
func (stubEconomy) RemoveSlave(context.Context, int64) error { return nil }
func (stubEconomy) SlaveOwner(context.Context, int64) (int64, bool, error) { return 0, false, nil }

type lockedAPI struct {
	mu sync.Mutex
	fakeAPI
}

func (a *lockedAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fakeAPI.Send(to, what, opts...)
}

func (a *lockedAPI) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fakeAPI.Edit(msg, what, opts...)
}

func (a *lockedAPI) Delete(msg tele.Editable) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fakeAPI.Delete(msg)
}

func newTestBlackjackHandler(t *testing.T, store cooldown.Store) (*BlackjackHandler, *blackjack.Controller) {
	t.Helper()
	settings := blackjack.DefaultSettings()
	settings.Pace = 0
	ctrl := blackjack.NewController(blackjack.NewRegistry(), NewMessenger(&lockedAPI{}), stubEconomy{}, nil, settings, blackjack.NoopSleeper{})
	t.Cleanup(ctrl.Close)
	return NewBlackjackHandler(ctrl, store, BlackjackSettings{StartCooldown: 30 * time.Second}), ctrl
}

func startCtx(chat *tele.Chat) *tgContext {
	return &tgContext{chat: chat, sender: &tele.User{ID: 1, FirstName: "Alice"}}
}

func TestHandleStartGroupOnly(t *testing.T) {
	h, ctrl := newTestBlackjackHandler(t, cooldown.NewMemoryStore(nil))
	c := startCtx(&tele.Chat{ID: 5, Type: tele.ChatPrivate})

	require.NoError(t, h.HandleStart(c))
	require.Len(t, c.replies, 1)
	assert.Contains(t, c.replies[0], "only be played in groups")
	assert.Zero(t, ctrl.Registry().Count())
}

func TestHandleStartOpensSignupOnce(t *testing.T) {
	h, ctrl := newTestBlackjackHandler(t, cooldown.NewMemoryStore(nil))

	first := startCtx(groupChat(tableChat))
	require.NoError(t, h.HandleStart(first))
	assert.Empty(t, first.replies)
	assert.Equal(t, 1, ctrl.Registry().Count())

	second := startCtx(groupChat(tableChat))
	require.NoError(t, h.HandleStart(second))
	require.Len(t, second.replies, 1)
	assert.Contains(t, second.replies[0], "already running")
}

func TestHandleStartCooldown(t *testing.T) {
	h, ctrl := newTestBlackjackHandler(t, cooldown.NewMemoryStore(nil))
	require.NoError(t, h.HandleStart(startCtx(groupChat(tableChat))))

	g, ok := ctrl.Registry().Get(tableChat)
	require.True(t, ok)
	ctrl.Registry().End(tableChat, g)

	c := startCtx(groupChat(tableChat))
	require.NoError(t, h.HandleStart(c))
	require.Len(t, c.replies, 1)
	assert.Contains(t, c.replies[0], "Next game can start in")
	assert.Zero(t, ctrl.Registry().Count())
}

type failingStore struct{}

func (failingStore) Acquire(context.Context, string, time.Duration) (bool, time.Duration, error) {
	return false, 0, errors.New("redis down")
}
func (failingStore) Release(context.Context, string) error { return nil }

func TestHandleStartIgnoresBrokenCooldownStore(t *testing.T) {
	h, ctrl := newTestBlackjackHandler(t, failingStore{})
	c := startCtx(groupChat(tableChat))

	require.NoError(t, h.HandleStart(c))
	assert.Empty(t, c.replies)
	assert.Equal(t, 1, ctrl.Registry().Count())
}

// racingStore lets another start win between the cooldown and the game.
type racingStore struct {
	*cooldown.MemoryStore
	onAcquire func()
	released  []string
}

func (s *racingStore) Acquire(ctx context.Context, key string, d time.Duration) (bool, time.Duration, error) {
	if s.onAcquire != nil {
		s.onAcquire()
		s.onAcquire = nil
	}
	return s.MemoryStore.Acquire(ctx, key, d)
}

func (s *racingStore) Release(ctx context.Context, key string) error {
	s.released = append(s.released, key)
	return s.MemoryStore.Release(ctx, key)
}

func TestHandleStartReleasesCooldownWhenStartFails(t *testing.T) {
	store := &racingStore{MemoryStore: cooldown.NewMemoryStore(nil)}
	h, ctrl := newTestBlackjackHandler(t, store)
	store.onAcquire = func() {
		_, err := ctrl.Start(context.Background(), tableChat, blackjack.User{ID: 2, Name: "Bob"})
		require.NoError(t, err)
	}

	c := startCtx(groupChat(tableChat))
	require.NoError(t, h.HandleStart(c))
	require.Len(t, c.replies, 1)
	assert.Contains(t, c.replies[0], "already running")
	assert.Equal(t, []string{cooldown.ChatKey(tableChat)}, store.released)

	ok, _, err := store.Acquire(context.Background(), cooldown.ChatKey(tableChat), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "a failed start leaves the chat without a cooldown")
}

func callbackCtx(user int64, msgChat int64, data string) *tgContext {
	return &tgContext{
		chat:   groupChat(msgChat),
		sender: &tele.User{ID: user, FirstName: "Player"},
		callback: &tele.Callback{
			Data:    data,
			Message: &tele.Message{Chat: groupChat(msgChat)},
		},
	}
}

func joinData(chatID int64) string {
	return blackjack.Action{Kind: blackjack.ActionJoin, ChatID: chatID}.Encode()
}

func playerCount(ctrl *blackjack.Controller) int {
	g, ok := ctrl.Registry().Get(tableChat)
	if !ok {
		return -1
	}
	g.Lock()
	defer g.Unlock()
	return len(g.Players)
}

func TestHandleCallbackJoin(t *testing.T) {
	h, ctrl := newTestBlackjackHandler(t, cooldown.NewMemoryStore(nil))
	require.NoError(t, h.HandleStart(startCtx(groupChat(tableChat))))

	c := callbackCtx(1, tableChat, "\f"+joinData(tableChat))
	require.NoError(t, h.HandleCallback(c))
	resp := c.lastResponse(t)
	assert.Equal(t, "You joined the game", resp.Text)
	assert.False(t, resp.ShowAlert)
	assert.Equal(t, 1, playerCount(ctrl))

	again := callbackCtx(1, tableChat, joinData(tableChat))
	require.NoError(t, h.HandleCallback(again))
	resp = again.lastResponse(t)
	assert.True(t, resp.ShowAlert)
	assert.Equal(t, "You are already at the table.", resp.Text)
	assert.Equal(t, 1, playerCount(ctrl))

	hit := callbackCtx(1, tableChat, blackjack.Action{Kind: blackjack.ActionHit, ChatID: tableChat}.Encode())
	require.NoError(t, h.HandleCallback(hit))
	resp = hit.lastResponse(t)
	assert.True(t, resp.ShowAlert)
	assert.Equal(t, "Not now: the game is in another phase.", resp.Text)
}

func TestHandleCallbackRejectsButtonFromAnotherChat(t *testing.T) {
	h, ctrl := newTestBlackjackHandler(t, cooldown.NewMemoryStore(nil))
	require.NoError(t, h.HandleStart(startCtx(groupChat(tableChat))))

	c := callbackCtx(1, -200, joinData(tableChat))
	require.NoError(t, h.HandleCallback(c))
	resp := c.lastResponse(t)
	assert.True(t, resp.ShowAlert)
	assert.Equal(t, "Unknown button.", resp.Text)
	assert.Zero(t, playerCount(ctrl))
}

func TestHandleCallbackAlerts(t *testing.T) {
	h, _ := newTestBlackjackHandler(t, cooldown.NewMemoryStore(nil))

	tests := []struct {
		name string
		data string
		want string
	}{
		{"malformed", "bj:zz:1", "Unknown button."},
		{"no game", joinData(tableChat), "This game is over."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := callbackCtx(1, tableChat, tt.data)
			require.NoError(t, h.HandleCallback(c))
			resp := c.lastResponse(t)
			assert.True(t, resp.ShowAlert)
			assert.Equal(t, tt.want, resp.Text)
		})
	}
}
