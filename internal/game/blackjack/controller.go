package blackjack

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"telegram-blackjack-bot/internal/model"
)

// signupRefresh is how often the signup countdown is redrawn.
const signupRefresh = 10 * time.Second

// User is the acting Telegram user.
type User struct {
	ID   int64
	Name string
}

// Settings configures the controller.
type Settings struct {
	Game        Options
	ExtendBy    time.Duration
	BetTimeout  time.Duration
	TurnTimeout time.Duration
	// Pace is the delay between animation frames. Zero plays them back to back.
	Pace time.Duration
}

// DefaultSettings mirrors the shipped configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		Game:        DefaultOptions(),
		ExtendBy:    30 * time.Second,
		BetTimeout:  60 * time.Second,
		TurnTimeout: 60 * time.Second,
		Pace:        2 * time.Second,
	}
}

// Controller runs games: it turns commands, button presses and timers into
// state machine calls and renders the results.
type Controller struct {
	registry *Registry
	msg      Messenger
	eco      Economy
	policy   JoinPolicy
	settings Settings
	clock    Clock
	animator *Animator

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// NewController wires a controller. A nil policy admits everyone and a nil
// sleeper waits on the wall clock.
func NewController(registry *Registry, msg Messenger, eco Economy, policy JoinPolicy, settings Settings, sleeper Sleeper) *Controller {
	if sleeper == nil {
		sleeper = RealSleeper{}
	}
	clock := settings.Game.Clock
	if clock == nil {
		clock = SystemClock{}
		settings.Game.Clock = clock
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		registry: registry,
		msg:      msg,
		eco:      eco,
		policy:   policy,
		settings: settings,
		clock:    clock,
		animator: &Animator{Messenger: msg, Sleeper: sleeper},
		ctx:      ctx,
		stop:     cancel,
	}
}

// Registry returns the session registry the controller works on.
func (c *Controller) Registry() *Registry { return c.registry }

// Wait blocks until background dealing and dealer animations have finished.
func (c *Controller) Wait() { c.wg.Wait() }

// Close stops background work and waits for it.
func (c *Controller) Close() {
	c.stop()
	for _, g := range c.registry.Games() {
		g.Lock()
		g.stopTimers()
		g.Unlock()
	}
	c.wg.Wait()
}

func (c *Controller) spawn(fn func(ctx context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(c.ctx)
	}()
}

func (c *Controller) alive(g *Game) bool {
	return g.Phase != PhaseFinished && c.registry.IsCurrent(g.ChatID, g)
}

func gameLog(g *Game) *zerolog.Logger {
	l := log.With().
		Int64("chat_id", g.ChatID).
		Str("game_id", g.ID).
		Str("phase", g.Phase.String()).
		Logger()
	return &l
}

// Start opens signup in chatID.
func (c *Controller) Start(ctx context.Context, chatID int64, initiator User) (*Game, error) {
	g, err := c.registry.Create(chatID, initiator.ID, c.settings.Game)
	if err != nil {
		return nil, err
	}
	g.Lock()
	defer g.Unlock()

	id, err := c.msg.Send(ctx, chatID, SignupText(g, c.clock.Now()), SignupKeyboard(g))
	if err != nil {
		gameLog(g).Warn().Err(err).Msg("Failed to send signup message")
	}
	g.signupMsg = id
	g.track(id)
	c.scheduleSignup(g)

	gameLog(g).Info().Int64("user_id", initiator.ID).Msg("Blackjack signup opened")
	return g, nil
}

// ExtendSignup adds the configured extension to the signup countdown.
func (c *Controller) ExtendSignup(ctx context.Context, chatID int64) (time.Time, error) {
	g, err := c.lockGame(chatID)
	if err != nil {
		return time.Time{}, err
	}
	defer g.Unlock()

	deadline, err := g.ExtendSignup(c.settings.ExtendBy)
	if err != nil {
		return time.Time{}, err
	}
	c.refreshSignup(ctx, g)
	gameLog(g).Info().Time("deadline", deadline).Msg("Blackjack signup extended")
	return deadline, nil
}

// ForceStart closes signup immediately.
func (c *Controller) ForceStart(ctx context.Context, chatID int64) error {
	g, err := c.lockGame(chatID)
	if err != nil {
		return err
	}
	defer g.Unlock()

	if err := g.ForceStart(); err != nil {
		return err
	}
	gameLog(g).Info().Int("players", len(g.Players)).Msg("Blackjack force-started")
	c.beginBetting(ctx, g)
	return nil
}

func (c *Controller) lockGame(chatID int64) (*Game, error) {
	g, ok := c.registry.Get(chatID)
	if !ok {
		return nil, ErrNoGame
	}
	g.Lock()
	if !c.alive(g) {
		g.Unlock()
		return nil, ErrNoGame
	}
	return g, nil
}

// Handle applies a button press. The returned text is a short confirmation
// for the acting user; errors are rejections with game state unchanged.
func (c *Controller) Handle(ctx context.Context, a Action, u User) (string, error) {
	g, err := c.lockGame(a.ChatID)
	if err != nil {
		return "", err
	}
	defer g.Unlock()

	switch a.Kind {
	case ActionJoin:
		return c.join(ctx, g, u)

	case ActionAddChip:
		if _, err := g.checkBettor(a.PlayerIndex, u.ID); err != nil {
			return "", err
		}
		bal, err := c.eco.Balance(ctx, u.ID)
		if err != nil {
			return "", fmt.Errorf("failed to read balance: %w", err)
		}
		if err := g.AddChip(a.PlayerIndex, u.ID, a.Amount, bal); err != nil {
			return "", err
		}
		c.refreshBetting(ctx, g)
		return fmt.Sprintf("Bet: %d", g.Players[a.PlayerIndex].PendingBet), nil

	case ActionPledgeCollateral:
		if _, err := g.checkBettor(a.PlayerIndex, u.ID); err != nil {
			return "", err
		}
		s, err := c.eco.Slave(ctx, u.ID)
		if err != nil {
			return "", fmt.Errorf("failed to read slave: %w", err)
		}
		if err := g.PledgeCollateral(a.PlayerIndex, u.ID, s); err != nil {
			return "", err
		}
		c.refreshBetting(ctx, g)
		return fmt.Sprintf("Staked %s", s.CollateralName), nil

	case ActionResetBet:
		if err := g.ResetBet(a.PlayerIndex, u.ID); err != nil {
			return "", err
		}
		c.refreshBetting(ctx, g)
		return "Bet cleared", nil

	case ActionAcceptBet:
		pl, err := g.AcceptBet(a.PlayerIndex, u.ID, c.commitPledge(ctx, g))
		if err != nil {
			return "", err
		}
		gameLog(g).Info().Int64("user_id", u.ID).Int64("amount", pl.Amount).Bool("collateral", pl.Stake != nil).Msg("Bet accepted")
		c.advance(ctx, g)
		return "Bet accepted", nil

	case ActionHit:
		card, err := g.Hit(a.PlayerIndex, u.ID)
		if err != nil {
			if errors.Is(err, ErrDeckExhausted) {
				c.fail(ctx, g, err)
			}
			return "", err
		}
		c.advance(ctx, g)
		return fmt.Sprintf("You drew %s", card), nil

	case ActionStand:
		if err := g.Stand(a.PlayerIndex, u.ID); err != nil {
			return "", err
		}
		c.advance(ctx, g)
		return "You stand", nil
	}
	return "", ErrMalformedAction
}

func (c *Controller) join(ctx context.Context, g *Game, u User) (string, error) {
	if g.Phase != PhaseSignup {
		return "", ErrWrongPhase
	}
	if _, p := g.PlayerByUser(u.ID); p != nil {
		return "", ErrAlreadyJoined
	}
	if c.policy != nil {
		ok, err := c.policy.CanJoin(ctx, u.ID)
		if err != nil {
			return "", fmt.Errorf("failed to check join policy: %w", err)
		}
		if !ok {
			return "", ErrJoinDenied
		}
	}
	if _, err := g.Join(u.ID, u.Name); err != nil {
		return "", err
	}
	c.refreshSignup(ctx, g)
	gameLog(g).Info().Int64("user_id", u.ID).Int("players", len(g.Players)).Msg("Player joined")
	return "You joined the game", nil
}

// commitPledge moves the wager out of the player's holdings.
func (c *Controller) commitPledge(ctx context.Context, g *Game) func(Pledge) error {
	return func(pl Pledge) error {
		if pl.Stake != nil {
			s, err := c.eco.Slave(ctx, pl.UserID)
			if err != nil {
				return fmt.Errorf("failed to read slave: %w", err)
			}
			if s == nil || s.CollateralID != pl.Stake.CollateralID {
				return ErrNoCollateral
			}
			// Held before the record goes so the market never sees the slave as free.
			c.registry.hold(g, pl.UserID, s.CollateralID)
			if err := c.eco.RemoveSlave(ctx, pl.UserID); err != nil {
				c.registry.release(g, pl.UserID, s.CollateralID)
				return fmt.Errorf("failed to take slave: %w", err)
			}
			return nil
		}
		bal, err := c.eco.Balance(ctx, pl.UserID)
		if err != nil {
			return fmt.Errorf("failed to read balance: %w", err)
		}
		if bal < pl.Amount {
			return ErrInsufficientBalance
		}
		if _, err := c.eco.AddBalance(ctx, pl.UserID, -pl.Amount, model.TxTypeBlackjackBet); err != nil {
			return fmt.Errorf("failed to debit bet: %w", err)
		}
		return nil
	}
}

// advance reacts to the phase the last transition left g in. Caller holds g.
func (c *Controller) advance(ctx context.Context, g *Game) {
	switch g.Phase {
	case PhaseBetting:
		c.refreshBetting(ctx, g)
		c.scheduleBetTimeout(g)
	case PhaseDealing:
		c.spawn(func(ctx context.Context) { c.runDealing(ctx, g) })
	case PhasePlayerTurns:
		c.refreshTable(ctx, g)
		c.scheduleTurnTimeout(g)
	case PhaseDealerTurn:
		c.spawn(func(ctx context.Context) { c.runDealer(ctx, g) })
	}
}

func (c *Controller) scheduleSignup(g *Game) {
	wait := g.SignupDeadline().Sub(c.clock.Now())
	if wait > signupRefresh {
		wait = signupRefresh
	}
	g.addTimer(c.clock.AfterFunc(wait, func() { c.onSignupTimer(g) }))
}

func (c *Controller) onSignupTimer(g *Game) {
	g.Lock()
	defer g.Unlock()
	if !c.alive(g) || g.Phase != PhaseSignup {
		return
	}
	ctx := c.ctx
	if g.SignupDeadline().After(c.clock.Now()) {
		c.refreshSignup(ctx, g)
		c.scheduleSignup(g)
		return
	}

	cancelled, err := g.CloseSignup()
	if err != nil {
		return
	}
	if cancelled {
		gameLog(g).Info().Int("players", len(g.Players)).Msg("Blackjack cancelled, not enough players")
		c.untrack(g, g.signupMsg)
		if err := c.msg.Edit(ctx, g.ChatID, g.signupMsg, CancelText(g, CancelNotEnoughPlayers), nil); err != nil {
			gameLog(g).Debug().Err(err).Msg("Failed to edit signup message")
			if _, err := c.msg.Send(ctx, g.ChatID, CancelText(g, CancelNotEnoughPlayers), nil); err != nil {
				gameLog(g).Warn().Err(err).Msg("Failed to send cancellation")
			}
		}
		c.teardown(ctx, g)
		return
	}
	c.beginBetting(ctx, g)
}

func (c *Controller) beginBetting(ctx context.Context, g *Game) {
	c.refreshSignup(ctx, g)
	gameLog(g).Info().Int("players", len(g.Players)).Msg("Betting started")
	c.advance(ctx, g)
}

func (c *Controller) scheduleBetTimeout(g *Game) {
	if c.settings.BetTimeout <= 0 {
		return
	}
	seq := g.Seq()
	g.addTimer(c.clock.AfterFunc(c.settings.BetTimeout, func() {
		g.Lock()
		defer g.Unlock()
		if !c.alive(g) || g.Phase != PhaseBetting || g.Seq() != seq {
			return
		}
		pl, _ := g.TimeoutBettor(c.commitPledge(c.ctx, g))
		gameLog(g).Info().Int64("user_id", pl.UserID).Bool("collateral", pl.Stake != nil).Msg("Bettor timed out")
		c.advance(c.ctx, g)
	}))
}

func (c *Controller) scheduleTurnTimeout(g *Game) {
	if c.settings.TurnTimeout <= 0 {
		return
	}
	seq := g.Seq()
	g.addTimer(c.clock.AfterFunc(c.settings.TurnTimeout, func() {
		g.Lock()
		defer g.Unlock()
		if !c.alive(g) || g.Phase != PhasePlayerTurns || g.Seq() != seq {
			return
		}
		p := g.Current()
		if p == nil {
			return
		}
		if err := g.Stand(g.CurrentIndex, p.UserID); err != nil {
			return
		}
		gameLog(g).Info().Int64("user_id", p.UserID).Msg("Player timed out, standing")
		c.advance(c.ctx, g)
	}))
}

func (c *Controller) runDealing(ctx context.Context, g *Game) {
	g.Lock()
	if !c.alive(g) || g.Phase != PhaseDealing {
		g.Unlock()
		return
	}
	c.drop(ctx, g, g.signupMsg, g.bettingMsg)
	g.signupMsg, g.bettingMsg = 0, 0
	if err := g.Deal(); err != nil {
		if errors.Is(err, ErrNoWagers) {
			c.cancel(ctx, g, CancelNoWagers)
		} else {
			c.fail(ctx, g, err)
		}
		g.Unlock()
		return
	}
	chatID, tl := g.ChatID, DealingTimeline(g, c.settings.Pace)
	g.Unlock()

	msgID, _ := c.animator.Play(ctx, chatID, 0, tl, func() bool { return c.registry.IsCurrent(chatID, g) })

	g.Lock()
	defer g.Unlock()
	if msgID != 0 {
		g.tableMsg = msgID
		g.track(msgID)
	}
	if !c.alive(g) {
		return
	}
	c.advance(ctx, g)
}

func (c *Controller) runDealer(ctx context.Context, g *Game) {
	g.Lock()
	if !c.alive(g) || g.Phase != PhaseDealerTurn {
		g.Unlock()
		return
	}
	drawn, err := g.PlayDealer()
	if err != nil {
		c.fail(ctx, g, err)
		g.Unlock()
		return
	}
	chatID, msgID, tl := g.ChatID, g.tableMsg, DealerTimeline(g, drawn, c.settings.Pace)
	g.Unlock()

	newID, _ := c.animator.Play(ctx, chatID, msgID, tl, func() bool { return c.registry.IsCurrent(chatID, g) })

	g.Lock()
	defer g.Unlock()
	if newID != msgID {
		g.tableMsg = newID
		g.track(newID)
	}
	if !c.alive(g) {
		return
	}
	c.settle(ctx, g)
}

// settle pays out and tears the game down. Teardown runs even if paying fails.
func (c *Controller) settle(ctx context.Context, g *Game) {
	defer c.teardown(ctx, g)

	enslaved := make(map[int64]bool, len(g.Players))
	for _, p := range g.Players {
		_, owned, err := c.eco.SlaveOwner(ctx, p.UserID)
		if err != nil {
			gameLog(g).Warn().Err(err).Int64("user_id", p.UserID).Msg("Failed to look up slave owner")
		}
		enslaved[p.UserID] = owned
	}

	res := Settle(SettleInput{
		Players:     seatResults(g),
		DealerScore: g.DealerScore,
		Enslaved:    enslaved,
	})
	if err := ApplyEffects(ctx, c.eco, res.Effects); err != nil {
		gameLog(g).Error().Err(err).Msg("Failed to apply some settlement effects")
	}

	if _, err := c.msg.Send(ctx, g.ChatID, ResultsText(g, res), nil); err != nil {
		gameLog(g).Warn().Err(err).Msg("Failed to send results")
	}
	gameLog(g).Info().
		Int("dealer_score", g.DealerScore).
		Int("winners", len(res.Winners)).
		Int("effects", len(res.Effects)).
		Msg("Blackjack settled")
}

// fail cancels g after an internal error, returning every committed wager.
func (c *Controller) fail(ctx context.Context, g *Game, cause error) {
	gameLog(g).Error().Err(cause).Msg("Blackjack game failed, refunding")
	for _, p := range g.Players {
		if !p.BetAccepted {
			continue
		}
		if p.Bet > 0 {
			if _, err := c.eco.AddBalance(ctx, p.UserID, p.Bet, model.TxTypeBlackjackRefund); err != nil {
				gameLog(g).Error().Err(err).Int64("user_id", p.UserID).Msg("Failed to refund bet")
			}
		}
		if p.Stake != nil {
			if err := c.eco.SetSlave(ctx, p.UserID, *p.Stake); err != nil {
				gameLog(g).Error().Err(err).Int64("user_id", p.UserID).Msg("Failed to restore slave")
			}
		}
	}
	if _, err := c.msg.Send(ctx, g.ChatID, CancelText(g, CancelInternalError), nil); err != nil {
		gameLog(g).Warn().Err(err).Msg("Failed to send cancellation")
	}
	c.teardown(ctx, g)
}

// cancel ends g without settlement. Nothing was committed, so nothing is refunded.
func (c *Controller) cancel(ctx context.Context, g *Game, reason CancelReason) {
	gameLog(g).Info().Msg("Blackjack cancelled, nobody placed a bet")
	if _, err := c.msg.Send(ctx, g.ChatID, CancelText(g, reason), nil); err != nil {
		gameLog(g).Warn().Err(err).Msg("Failed to send cancellation")
	}
	c.teardown(ctx, g)
}

// teardown deregisters g and removes its transient messages. Idempotent.
func (c *Controller) teardown(ctx context.Context, g *Game) {
	g.stopTimers()
	g.Phase = PhaseFinished
	ids := g.transient
	g.transient = nil
	for _, id := range ids {
		if err := c.msg.Delete(ctx, g.ChatID, id); err != nil {
			gameLog(g).Debug().Err(err).Int("message_id", id).Msg("Failed to delete game message")
		}
	}
	if c.registry.End(g.ChatID, g) {
		gameLog(g).Info().Dur("duration", c.clock.Now().Sub(g.CreatedAt)).Msg("Blackjack game ended")
	}
}

func (c *Controller) refreshSignup(ctx context.Context, g *Game) {
	if g.signupMsg == 0 {
		return
	}
	markup := SignupKeyboard(g)
	if g.Phase != PhaseSignup {
		markup = nil
	}
	if err := c.msg.Edit(ctx, g.ChatID, g.signupMsg, SignupText(g, c.clock.Now()), markup); err != nil {
		gameLog(g).Debug().Err(err).Msg("Failed to edit signup message")
	}
}

func (c *Controller) refreshBetting(ctx context.Context, g *Game) {
	if g.Phase != PhaseBetting {
		return
	}
	if g.bettingMsg == 0 {
		id, err := c.msg.Send(ctx, g.ChatID, BettingText(g), BettingKeyboard(g))
		if err != nil {
			gameLog(g).Warn().Err(err).Msg("Failed to send betting panel")
			return
		}
		g.bettingMsg = id
		g.track(id)
		return
	}
	if err := c.msg.Edit(ctx, g.ChatID, g.bettingMsg, BettingText(g), BettingKeyboard(g)); err != nil {
		gameLog(g).Debug().Err(err).Msg("Failed to edit betting panel")
	}
}

func (c *Controller) refreshTable(ctx context.Context, g *Game) {
	if g.tableMsg == 0 {
		id, err := c.msg.Send(ctx, g.ChatID, TableText(g), TurnKeyboard(g))
		if err != nil {
			gameLog(g).Warn().Err(err).Msg("Failed to send table")
			return
		}
		g.tableMsg = id
		g.track(id)
		return
	}
	if err := c.msg.Edit(ctx, g.ChatID, g.tableMsg, TableText(g), TurnKeyboard(g)); err != nil {
		gameLog(g).Debug().Err(err).Msg("Failed to edit table")
	}
}

// drop deletes messages now rather than at teardown.
func (c *Controller) drop(ctx context.Context, g *Game, ids ...int) {
	for _, id := range ids {
		if id == 0 {
			continue
		}
		c.untrack(g, id)
		if err := c.msg.Delete(ctx, g.ChatID, id); err != nil {
			gameLog(g).Debug().Err(err).Int("message_id", id).Msg("Failed to delete game message")
		}
	}
}

func (c *Controller) untrack(g *Game, id int) {
	kept := g.transient[:0]
	for _, t := range g.transient {
		if t != id {
			kept = append(kept, t)
		}
	}
	g.transient = kept
}
