package blackjack

import (
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Phase is one state of a game.
type Phase int

const (
	PhaseSignup Phase = iota
	PhaseBetting
	PhaseDealing
	PhasePlayerTurns
	PhaseDealerTurn
	PhaseSettlement
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseSignup:
		return "signup"
	case PhaseBetting:
		return "betting"
	case PhaseDealing:
		return "dealing"
	case PhasePlayerTurns:
		return "player_turns"
	case PhaseDealerTurn:
		return "dealer_turn"
	case PhaseSettlement:
		return "settlement"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// DealerStandsOn is the score at which the dealer stops drawing.
const DealerStandsOn = 17

// Options configures a new game.
type Options struct {
	SignupDuration time.Duration
	MinPlayers     int
	MaxPlayers     int
	Chips          []int64
	Clock          Clock
	Shuffler       Shuffler
	// Deck overrides the shuffled deck. Used by tests.
	Deck *Deck
}

// DefaultOptions mirrors the shipped configuration defaults.
func DefaultOptions() Options {
	return Options{
		SignupDuration: 60 * time.Second,
		MinPlayers:     2,
		MaxPlayers:     5,
		Chips:          []int64{10, 50, 100, 500},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SignupDuration <= 0 {
		o.SignupDuration = d.SignupDuration
	}
	if o.MinPlayers <= 0 {
		o.MinPlayers = d.MinPlayers
	}
	if o.MaxPlayers <= 0 {
		o.MaxPlayers = d.MaxPlayers
	}
	if len(o.Chips) == 0 {
		o.Chips = d.Chips
	}
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
	return o
}

// Pledge is what a player commits when accepting a bet.
type Pledge struct {
	UserID int64
	Amount int64
	Stake  *Stake
}

// Game is one blackjack round in one chat.
//
// Exported methods do not lock; the caller holds the game via Lock/Unlock.
// The Controller does this for every action and timer.
type Game struct {
	mu sync.Mutex

	ID          string
	ChatID      int64
	InitiatorID int64
	CreatedAt   time.Time

	Phase        Phase
	Players      []*Player
	Dealer       []Card
	DealerScore  int
	HoleRevealed bool
	CurrentIndex int
	BettorIndex  int

	deck           *Deck
	opts           Options
	signupDeadline time.Time

	// seq changes whenever the acting seat or the phase changes.
	// Timers capture it and do nothing if it moved on.
	seq uint64

	// Message bookkeeping owned by the controller.
	signupMsg  int
	bettingMsg int
	tableMsg   int
	transient  []int
	timers     []Timer
}

func newGame(chatID, initiatorID int64, opts Options) *Game {
	opts = opts.withDefaults()
	now := opts.Clock.Now()
	deck := opts.Deck
	if deck == nil {
		deck = NewShuffledDeck(opts.Shuffler)
	}
	return &Game{
		ID:             ulid.Make().String(),
		ChatID:         chatID,
		InitiatorID:    initiatorID,
		CreatedAt:      now,
		Phase:          PhaseSignup,
		deck:           deck,
		opts:           opts,
		signupDeadline: now.Add(opts.SignupDuration),
	}
}

// Lock acquires exclusive access to the game.
func (g *Game) Lock() { g.mu.Lock() }

// Unlock releases the game.
func (g *Game) Unlock() { g.mu.Unlock() }

// Options returns the effective configuration.
func (g *Game) Options() Options { return g.opts }

// Seq identifies the current acting seat for stale-timer detection.
func (g *Game) Seq() uint64 { return g.seq }

func (g *Game) bump() { g.seq++ }

// SignupDeadline is when signup closes unless extended or force-started.
func (g *Game) SignupDeadline() time.Time { return g.signupDeadline }

// Player returns the seat at idx.
func (g *Game) Player(idx int) (*Player, error) {
	if idx < 0 || idx >= len(g.Players) {
		return nil, ErrBadIndex
	}
	return g.Players[idx], nil
}

// PlayerByUser finds a seat by user id.
func (g *Game) PlayerByUser(userID int64) (int, *Player) {
	for i, p := range g.Players {
		if p.UserID == userID {
			return i, p
		}
	}
	return -1, nil
}

// Join seats a user at the end of the turn order.
func (g *Game) Join(userID int64, name string) (*Player, error) {
	if g.Phase != PhaseSignup {
		return nil, ErrWrongPhase
	}
	if _, p := g.PlayerByUser(userID); p != nil {
		return nil, ErrAlreadyJoined
	}
	if len(g.Players) >= g.opts.MaxPlayers {
		return nil, ErrGameFull
	}
	p := &Player{UserID: userID, Name: name}
	g.Players = append(g.Players, p)
	return p, nil
}

// ExtendSignup pushes the signup deadline back by d.
func (g *Game) ExtendSignup(d time.Duration) (time.Time, error) {
	if g.Phase != PhaseSignup {
		return time.Time{}, ErrWrongPhase
	}
	g.signupDeadline = g.signupDeadline.Add(d)
	return g.signupDeadline, nil
}

// ForceStart closes signup early. It requires the minimum roster.
func (g *Game) ForceStart() error {
	if g.Phase != PhaseSignup {
		return ErrWrongPhase
	}
	if len(g.Players) < g.opts.MinPlayers {
		return ErrNotEnoughPlayers
	}
	_, err := g.CloseSignup()
	return err
}

// CloseSignup ends signup. Too few players cancels the game.
func (g *Game) CloseSignup() (cancelled bool, err error) {
	if g.Phase != PhaseSignup {
		return false, ErrWrongPhase
	}
	g.bump()
	if len(g.Players) < g.opts.MinPlayers {
		g.Phase = PhaseFinished
		return true, nil
	}
	g.Phase = PhaseBetting
	g.BettorIndex = 0
	return false, nil
}

// Bettor returns the seat whose turn it is to bet.
func (g *Game) Bettor() *Player {
	if g.Phase != PhaseBetting || g.BettorIndex >= len(g.Players) {
		return nil
	}
	return g.Players[g.BettorIndex]
}

func (g *Game) checkBettor(idx int, userID int64) (*Player, error) {
	if g.Phase != PhaseBetting {
		return nil, ErrWrongPhase
	}
	p, err := g.Player(idx)
	if err != nil {
		return nil, ErrNotYourTurn
	}
	if idx != g.BettorIndex || p.UserID != userID {
		return nil, ErrNotYourTurn
	}
	return p, nil
}

// AddChip adds one chip to the pending bet. balance is the player's current balance.
func (g *Game) AddChip(idx int, userID, amount, balance int64) error {
	p, err := g.checkBettor(idx, userID)
	if err != nil {
		return err
	}
	if !slices.Contains(g.opts.Chips, amount) {
		return ErrInvalidChip
	}
	if p.PendingStake != nil {
		return ErrMoneyAndCollateral
	}
	if p.PendingBet+amount > balance {
		return ErrInsufficientBalance
	}
	p.PendingBet += amount
	return nil
}

// PledgeCollateral stakes the player's slave instead of money.
func (g *Game) PledgeCollateral(idx int, userID int64, stake *Stake) error {
	p, err := g.checkBettor(idx, userID)
	if err != nil {
		return err
	}
	if p.PendingBet > 0 {
		return ErrMoneyAndCollateral
	}
	if stake == nil {
		return ErrNoCollateral
	}
	s := *stake
	p.PendingStake = &s
	return nil
}

// ResetBet clears the pending bet and stake.
func (g *Game) ResetBet(idx int, userID int64) error {
	p, err := g.checkBettor(idx, userID)
	if err != nil {
		return err
	}
	p.clearPending()
	return nil
}

// AcceptBet finalizes the pending wager. commit moves the money or the slave
// out of the player's holdings; if it fails nothing changes.
func (g *Game) AcceptBet(idx int, userID int64, commit func(Pledge) error) (Pledge, error) {
	p, err := g.checkBettor(idx, userID)
	if err != nil {
		return Pledge{}, err
	}
	if p.PendingBet == 0 && p.PendingStake == nil {
		return Pledge{}, ErrMustBetFirst
	}
	pl := Pledge{UserID: p.UserID, Amount: p.PendingBet, Stake: p.PendingStake}
	if commit != nil {
		if err := commit(pl); err != nil {
			return Pledge{}, err
		}
	}
	p.Bet, p.Stake = pl.Amount, pl.Stake
	p.BetAccepted = true
	p.clearPending()
	g.advanceBettor()
	return pl, nil
}

// TimeoutBettor resolves the current bettor after inactivity: a pending
// pledge is accepted, otherwise the player sits the round out with no stake.
func (g *Game) TimeoutBettor(commit func(Pledge) error) (Pledge, error) {
	p := g.Bettor()
	if p == nil {
		return Pledge{}, ErrWrongPhase
	}
	if p.PendingStake != nil {
		pl, err := g.AcceptBet(g.BettorIndex, p.UserID, commit)
		if err == nil {
			return pl, nil
		}
	}
	p.clearPending()
	p.SatOut = true
	p.BetAccepted = true
	g.advanceBettor()
	return Pledge{UserID: p.UserID}, nil
}

func (g *Game) advanceBettor() {
	g.bump()
	g.BettorIndex++
	if g.BettorIndex >= len(g.Players) {
		g.Phase = PhaseDealing
	}
}

// Deal runs the two-round opening deal. The dealer's second card is the hole card.
func (g *Game) Deal() error {
	if g.Phase != PhaseDealing {
		return ErrWrongPhase
	}
	seated := g.Seated()
	if len(seated) == 0 {
		return ErrNoWagers
	}
	for _, p := range seated {
		c, err := g.deck.Deal()
		if err != nil {
			return err
		}
		p.take(c)
	}
	c, err := g.deck.Deal()
	if err != nil {
		return err
	}
	g.Dealer = append(g.Dealer, c)

	for _, p := range seated {
		c, err := g.deck.Deal()
		if err != nil {
			return err
		}
		p.take(c)
		if p.Score == 21 {
			p.Blackjack = true
		}
	}
	hole, err := g.deck.Deal()
	if err != nil {
		return err
	}
	g.Dealer = append(g.Dealer, hole)
	g.DealerScore = Score(g.Dealer)

	g.Phase = PhasePlayerTurns
	g.CurrentIndex = -1
	g.nextPlayer()
	return nil
}

// Seated returns the players who took part in betting, in turn order.
func (g *Game) Seated() []*Player {
	out := make([]*Player, 0, len(g.Players))
	for _, p := range g.Players {
		if !p.SatOut {
			out = append(out, p)
		}
	}
	return out
}

// Current returns the seat whose turn it is.
func (g *Game) Current() *Player {
	if g.Phase != PhasePlayerTurns || g.CurrentIndex < 0 || g.CurrentIndex >= len(g.Players) {
		return nil
	}
	return g.Players[g.CurrentIndex]
}

func (g *Game) checkTurn(idx int, userID int64) (*Player, error) {
	if g.Phase != PhasePlayerTurns {
		return nil, ErrWrongPhase
	}
	p, err := g.Player(idx)
	if err != nil {
		return nil, ErrNotYourTurn
	}
	if idx != g.CurrentIndex || p.UserID != userID {
		return nil, ErrNotYourTurn
	}
	return p, nil
}

// Hit deals one card to the acting player. Going over 21 busts and passes the turn.
func (g *Game) Hit(idx int, userID int64) (Card, error) {
	p, err := g.checkTurn(idx, userID)
	if err != nil {
		return Card{}, err
	}
	c, err := g.deck.Deal()
	if err != nil {
		return Card{}, err
	}
	p.take(c)
	if p.Score > 21 {
		p.Bust = true
		g.nextPlayer()
		return c, nil
	}
	g.bump()
	return c, nil
}

// Stand ends the acting player's turn.
func (g *Game) Stand(idx int, userID int64) error {
	p, err := g.checkTurn(idx, userID)
	if err != nil {
		return err
	}
	p.Stand = true
	g.nextPlayer()
	return nil
}

// nextPlayer moves to the next seat that can still act. It returns false and
// hands over to the dealer when nobody is left.
func (g *Game) nextPlayer() bool {
	g.bump()
	g.CurrentIndex++
	for g.CurrentIndex < len(g.Players) && g.Players[g.CurrentIndex].Done() {
		g.CurrentIndex++
	}
	if g.CurrentIndex >= len(g.Players) {
		g.Phase = PhaseDealerTurn
		return false
	}
	return true
}

// PlayDealer reveals the hole card and draws below 17. It returns the drawn cards.
func (g *Game) PlayDealer() ([]Card, error) {
	if g.Phase != PhaseDealerTurn {
		return nil, ErrWrongPhase
	}
	g.HoleRevealed = true
	g.DealerScore = Score(g.Dealer)
	var drawn []Card
	for g.DealerScore < DealerStandsOn {
		c, err := g.deck.Deal()
		if err != nil {
			return drawn, err
		}
		g.Dealer = append(g.Dealer, c)
		g.DealerScore = Score(g.Dealer)
		drawn = append(drawn, c)
	}
	g.bump()
	g.Phase = PhaseSettlement
	return drawn, nil
}

// Pledges lists every accepted wager, in seat order.
func (g *Game) Pledges() []Pledge {
	var out []Pledge
	for _, p := range g.Players {
		if p.BetAccepted && p.Wagered() {
			out = append(out, Pledge{UserID: p.UserID, Amount: p.Bet, Stake: p.Stake})
		}
	}
	return out
}

func (g *Game) track(msgID int) {
	if msgID != 0 {
		g.transient = append(g.transient, msgID)
	}
}

func (g *Game) addTimer(t Timer) {
	g.timers = append(g.timers, t)
}

func (g *Game) stopTimers() {
	for _, t := range g.timers {
		t.Stop()
	}
	g.timers = nil
}
