package blackjack

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v3"
)

// fakeClock fires timers only when Advance is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward, firing due timers in order, including timers
// scheduled by the callbacks themselves.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var due []*fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
		next := due[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

type sentMessage struct {
	ID     int
	Text   string
	Markup *tele.ReplyMarkup
}

type fakeMessenger struct {
	mu      sync.Mutex
	nextID  int
	live    map[int]*sentMessage
	sent    []sentMessage
	deleted []int
	failAll bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{live: make(map[int]*sentMessage)}
}

var errTransport = errors.New("transport down")

func (m *fakeMessenger) Send(_ context.Context, _ int64, text string, markup *tele.ReplyMarkup) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return 0, errTransport
	}
	m.nextID++
	msg := sentMessage{ID: m.nextID, Text: text, Markup: markup}
	m.live[msg.ID] = &msg
	m.sent = append(m.sent, msg)
	return msg.ID, nil
}

func (m *fakeMessenger) Edit(_ context.Context, _ int64, id int, text string, markup *tele.ReplyMarkup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errTransport
	}
	msg, ok := m.live[id]
	if !ok {
		return errors.New("message not found")
	}
	msg.Text, msg.Markup = text, markup
	return nil
}

func (m *fakeMessenger) Delete(_ context.Context, _ int64, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errTransport
	}
	delete(m.live, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *fakeMessenger) text(id int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.live[id]; ok {
		return msg.Text
	}
	return ""
}

func (m *fakeMessenger) lastSent() sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMessage{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *fakeMessenger) anySent(substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sent {
		if strings.Contains(s.Text, substr) {
			return true
		}
	}
	for _, s := range m.live {
		if strings.Contains(s.Text, substr) {
			return true
		}
	}
	return false
}

type ledgerEntry struct {
	UserID int64
	Delta  int64
	Type   string
}

type fakeEconomy struct {
	mu       sync.Mutex
	balances map[int64]int64
	slaves   map[int64]Stake
	ledger   []ledgerEntry
	failSet  bool
}

func newFakeEconomy() *fakeEconomy {
	return &fakeEconomy{balances: make(map[int64]int64), slaves: make(map[int64]Stake)}
}

func (e *fakeEconomy) Balance(_ context.Context, id int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[id], nil
}

func (e *fakeEconomy) AddBalance(_ context.Context, id, delta int64, txType string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balances[id] += delta
	e.ledger = append(e.ledger, ledgerEntry{UserID: id, Delta: delta, Type: txType})
	return e.balances[id], nil
}

func (e *fakeEconomy) Slave(_ context.Context, owner int64) (*Stake, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.slaves[owner]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (e *fakeEconomy) SetSlave(_ context.Context, owner int64, s Stake) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failSet {
		return errors.New("store down")
	}
	e.slaves[owner] = s
	return nil
}

func (e *fakeEconomy) RemoveSlave(_ context.Context, owner int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.slaves, owner)
	return nil
}

func (e *fakeEconomy) SlaveOwner(_ context.Context, slave int64) (int64, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for owner, s := range e.slaves {
		if s.CollateralID == slave {
			return owner, true, nil
		}
	}
	return 0, false, nil
}

func (e *fakeEconomy) balance(id int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[id]
}

func (e *fakeEconomy) slave(owner int64) (Stake, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.slaves[owner]
	return s, ok
}

func card(r Rank, s Suit) Card { return Card{Suit: s, Rank: r} }

func seededShuffler(seed int64) Shuffler { return rand.New(rand.NewSource(seed)) }
