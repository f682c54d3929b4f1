package blackjack

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testGame(t *testing.T, deck *Deck, players ...int64) *Game {
	t.Helper()
	g := newGame(-100, 1, Options{Clock: newFakeClock(), Deck: deck})
	for _, id := range players {
		_, err := g.Join(id, "p")
		require.NoError(t, err)
	}
	return g
}

// betAll moves every player through betting with a money bet.
func betAll(t *testing.T, g *Game, amount int64) {
	t.Helper()
	for i, p := range g.Players {
		require.NoError(t, g.AddChip(i, p.UserID, amount, 1_000_000))
		_, err := g.AcceptBet(i, p.UserID, nil)
		require.NoError(t, err)
	}
}

func TestJoin(t *testing.T) {
	g := testGame(t, nil)

	_, err := g.Join(1, "a")
	require.NoError(t, err)
	_, err = g.Join(1, "a")
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	for id := int64(2); id <= 5; id++ {
		_, err := g.Join(id, "p")
		require.NoError(t, err)
	}
	_, err = g.Join(6, "late")
	assert.ErrorIs(t, err, ErrGameFull)
	assert.Len(t, g.Players, 5)

	for i, p := range g.Players {
		assert.Equal(t, int64(i+1), p.UserID, "turn order follows join order")
	}
}

func TestCloseSignup(t *testing.T) {
	g := testGame(t, nil, 1)
	cancelled, err := g.CloseSignup()
	require.NoError(t, err)
	assert.True(t, cancelled)
	assert.Equal(t, PhaseFinished, g.Phase)

	g = testGame(t, nil, 1, 2)
	cancelled, err = g.CloseSignup()
	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.Equal(t, PhaseBetting, g.Phase)

	_, err = g.Join(3, "late")
	assert.ErrorIs(t, err, ErrWrongPhase)
	_, err = g.CloseSignup()
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestExtendAndForceStart(t *testing.T) {
	g := testGame(t, nil, 1)
	before := g.SignupDeadline()
	after, err := g.ExtendSignup(30 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, before.Add(30*time.Second), after)

	assert.ErrorIs(t, g.ForceStart(), ErrNotEnoughPlayers)
	assert.Equal(t, PhaseSignup, g.Phase)

	_, err = g.Join(2, "b")
	require.NoError(t, err)
	require.NoError(t, g.ForceStart())
	assert.Equal(t, PhaseBetting, g.Phase)

	_, err = g.ExtendSignup(time.Second)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestBettingRules(t *testing.T) {
	g := testGame(t, nil, 1, 2)
	_, _ = g.CloseSignup()
	slave := &Stake{CollateralID: 9, CollateralName: "Bob", Price: 200}

	assert.ErrorIs(t, g.AddChip(1, 2, 10, 1000), ErrNotYourTurn, "second player cannot bet first")
	assert.ErrorIs(t, g.AddChip(0, 2, 10, 1000), ErrNotYourTurn, "wrong user at the index")
	assert.ErrorIs(t, g.AddChip(0, 1, 7, 1000), ErrInvalidChip)

	require.NoError(t, g.AddChip(0, 1, 50, 60))
	assert.ErrorIs(t, g.AddChip(0, 1, 50, 60), ErrInsufficientBalance)
	assert.Equal(t, int64(50), g.Players[0].PendingBet)

	assert.ErrorIs(t, g.PledgeCollateral(0, 1, slave), ErrMoneyAndCollateral)

	require.NoError(t, g.ResetBet(0, 1))
	_, err := g.AcceptBet(0, 1, nil)
	assert.ErrorIs(t, err, ErrMustBetFirst)

	assert.ErrorIs(t, g.PledgeCollateral(0, 1, nil), ErrNoCollateral)
	require.NoError(t, g.PledgeCollateral(0, 1, slave))
	assert.ErrorIs(t, g.AddChip(0, 1, 10, 1000), ErrMoneyAndCollateral)

	commitErr := errors.New("store down")
	_, err = g.AcceptBet(0, 1, func(Pledge) error { return commitErr })
	assert.ErrorIs(t, err, commitErr)
	assert.Equal(t, 0, g.BettorIndex, "failed commit keeps the turn")

	pl, err := g.AcceptBet(0, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, slave.CollateralID, pl.Stake.CollateralID)
	assert.Equal(t, 1, g.BettorIndex)
	assert.True(t, g.Players[0].BetAccepted)

	require.NoError(t, g.AddChip(1, 2, 100, 1000))
	_, err = g.AcceptBet(1, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, PhaseDealing, g.Phase)
	assert.Len(t, g.Pledges(), 2)
}

func TestTimeoutBettor(t *testing.T) {
	g := testGame(t, nil, 1, 2)
	_, _ = g.CloseSignup()

	require.NoError(t, g.AddChip(0, 1, 10, 1000))
	pl, err := g.TimeoutBettor(nil)
	require.NoError(t, err)
	assert.Zero(t, pl.Amount, "unaccepted chips are not taken")
	assert.True(t, g.Players[0].SatOut)

	require.NoError(t, g.PledgeCollateral(1, 2, &Stake{CollateralID: 9, Price: 5}))
	pl, err = g.TimeoutBettor(nil)
	require.NoError(t, err)
	require.NotNil(t, pl.Stake, "a pending pledge is accepted")
	assert.Equal(t, PhaseDealing, g.Phase)
}

func TestDealTwoRounds(t *testing.T) {
	deck := NewStackedDeck(
		card(Ten, Spades), card(Ace, Clubs), card(Six, Clubs),
		card(Nine, Hearts), card(King, Hearts), card(Ten, Diamonds),
	)
	g := testGame(t, deck, 1, 2)
	_, _ = g.CloseSignup()
	betAll(t, g, 10)

	require.NoError(t, g.Deal())
	assert.Equal(t, []Card{card(Ten, Spades), card(Nine, Hearts)}, g.Players[0].Hand)
	assert.Equal(t, 19, g.Players[0].Score)
	assert.False(t, g.Players[0].Blackjack)

	assert.Equal(t, []Card{card(Ace, Clubs), card(King, Hearts)}, g.Players[1].Hand)
	assert.True(t, g.Players[1].Blackjack)

	assert.Equal(t, []Card{card(Six, Clubs), card(Ten, Diamonds)}, g.Dealer)
	assert.False(t, g.HoleRevealed)
	assert.Equal(t, PhasePlayerTurns, g.Phase)
	assert.Equal(t, 0, g.CurrentIndex)
}

func TestDealAllBlackjackSkipsToDealer(t *testing.T) {
	deck := NewStackedDeck(
		card(Ace, Spades), card(Ace, Hearts), card(Two, Clubs),
		card(King, Spades), card(Queen, Hearts), card(Three, Clubs),
	)
	g := testGame(t, deck, 1, 2)
	_, _ = g.CloseSignup()
	betAll(t, g, 10)

	require.NoError(t, g.Deal())
	assert.Equal(t, PhaseDealerTurn, g.Phase)
	assert.Nil(t, g.Current())
}

func TestDealSkipsSatOutSeats(t *testing.T) {
	deck := NewStackedDeck(
		card(Ten, Spades), card(Six, Clubs),
		card(Nine, Hearts), card(Ten, Diamonds),
	)
	g := testGame(t, deck, 1, 2)
	_, _ = g.CloseSignup()
	_, err := g.TimeoutBettor(nil)
	require.NoError(t, err)
	require.NoError(t, g.AddChip(1, 2, 10, 1000))
	_, err = g.AcceptBet(1, 2, nil)
	require.NoError(t, err)

	require.NoError(t, g.Deal())
	assert.Empty(t, g.Players[0].Hand)
	assert.True(t, g.Players[0].Done())
	assert.Equal(t, []Card{card(Ten, Spades), card(Nine, Hearts)}, g.Players[1].Hand)
	assert.Equal(t, 1, g.CurrentIndex, "turns start at the first seated player")

	seats := seatResults(g)
	require.Len(t, seats, 1)
	assert.Equal(t, int64(2), seats[0].UserID)
}

func TestDealWithNobodySeated(t *testing.T) {
	g := testGame(t, nil, 1, 2)
	_, _ = g.CloseSignup()
	for range g.Players {
		_, err := g.TimeoutBettor(nil)
		require.NoError(t, err)
	}
	assert.ErrorIs(t, g.Deal(), ErrNoWagers)
}

func TestHitBumpsSeq(t *testing.T) {
	deck := NewStackedDeck(
		card(Two, Spades), card(Six, Clubs),
		card(Three, Hearts), card(Ten, Diamonds),
		card(Four, Clubs),
	)
	g := testGame(t, deck, 1)
	g.opts.MinPlayers = 1
	_, _ = g.CloseSignup()
	betAll(t, g, 10)
	require.NoError(t, g.Deal())

	before := g.Seq()
	_, err := g.Hit(0, 1)
	require.NoError(t, err)
	assert.Greater(t, g.Seq(), before)
	assert.Equal(t, 0, g.CurrentIndex)
}

func TestDealExhaustedDeck(t *testing.T) {
	g := testGame(t, NewStackedDeck(card(Two, Spades), card(Three, Spades)), 1, 2)
	_, _ = g.CloseSignup()
	betAll(t, g, 10)
	assert.ErrorIs(t, g.Deal(), ErrDeckExhausted)
}

func TestHitStandTurnOrder(t *testing.T) {
	deck := NewStackedDeck(
		card(Ten, Spades), card(Five, Clubs), card(Six, Clubs),
		card(Nine, Hearts), card(Six, Diamonds), card(Ten, Diamonds),
		card(King, Clubs), card(Two, Spades),
	)
	g := testGame(t, deck, 1, 2)
	_, _ = g.CloseSignup()
	betAll(t, g, 10)
	require.NoError(t, g.Deal())

	_, err := g.Hit(1, 2)
	assert.ErrorIs(t, err, ErrNotYourTurn)
	_, err = g.Hit(0, 2)
	assert.ErrorIs(t, err, ErrNotYourTurn)
	assert.ErrorIs(t, g.Stand(7, 1), ErrNotYourTurn)

	c, err := g.Hit(0, 1)
	require.NoError(t, err)
	assert.Equal(t, card(King, Clubs), c)
	assert.True(t, g.Players[0].Bust)
	assert.Equal(t, 1, g.CurrentIndex, "bust passes the turn")

	c, err = g.Hit(1, 2)
	require.NoError(t, err)
	assert.Equal(t, card(Two, Spades), c)
	assert.Equal(t, 13, g.Players[1].Score)
	assert.Equal(t, 1, g.CurrentIndex, "no bust keeps the turn")

	require.NoError(t, g.Stand(1, 2))
	assert.Equal(t, PhaseDealerTurn, g.Phase)
	_, err = g.Hit(1, 2)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestNextPlayerLandsOnEligibleProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(t, "players")
		g := &Game{Phase: PhasePlayerTurns, CurrentIndex: -1}
		for i := 0; i < n; i++ {
			g.Players = append(g.Players, &Player{
				UserID:    int64(i + 1),
				Bust:      rapid.Bool().Draw(t, "bust"),
				Blackjack: rapid.Bool().Draw(t, "blackjack"),
				Stand:     rapid.Bool().Draw(t, "stand"),
			})
		}
		start := rapid.IntRange(-1, n-1).Draw(t, "start")
		g.CurrentIndex = start

		ok := g.nextPlayer()
		if ok {
			if g.CurrentIndex <= start || g.CurrentIndex >= n {
				t.Fatalf("index %d out of range after %d", g.CurrentIndex, start)
			}
			if g.Players[g.CurrentIndex].Done() {
				t.Fatalf("landed on finished player %d", g.CurrentIndex)
			}
			for i := start + 1; i < g.CurrentIndex; i++ {
				if !g.Players[i].Done() {
					t.Fatalf("skipped eligible player %d", i)
				}
			}
			return
		}
		if g.Phase != PhaseDealerTurn {
			t.Fatalf("phase %s after roster end", g.Phase)
		}
		for i := start + 1; i < n; i++ {
			if !g.Players[i].Done() {
				t.Fatalf("eligible player %d left behind", i)
			}
		}
	})
}

func TestPlayDealerDrawsToSeventeen(t *testing.T) {
	// Dealer [6♣, 10♦] = 16 must draw; a 5 makes 21 and the dealer stands.
	deck := NewStackedDeck(
		card(Ten, Spades), card(Nine, Clubs), card(Six, Clubs),
		card(Nine, Hearts), card(Nine, Diamonds), card(Ten, Diamonds),
		card(Five, Hearts), card(Two, Hearts),
	)
	g := testGame(t, deck, 1, 2)
	_, _ = g.CloseSignup()
	betAll(t, g, 10)
	require.NoError(t, g.Deal())
	require.NoError(t, g.Stand(0, 1))
	require.NoError(t, g.Stand(1, 2))

	drawn, err := g.PlayDealer()
	require.NoError(t, err)
	assert.Equal(t, []Card{card(Five, Hearts)}, drawn)
	assert.Equal(t, 21, g.DealerScore)
	assert.True(t, g.HoleRevealed)
	assert.Equal(t, PhaseSettlement, g.Phase)
	assert.Equal(t, 1, deck.Len(), "dealer stops at 21")
}

func TestPlayDealerStopsAtOrAboveSeventeenProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")
		g := newGame(1, 1, Options{Clock: newFakeClock(), Shuffler: seededShuffler(seed)})
		g.Dealer = []Card{}
		for i := 0; i < 2; i++ {
			c, _ := g.deck.Deal()
			g.Dealer = append(g.Dealer, c)
		}
		g.Phase = PhaseDealerTurn

		drawn, err := g.PlayDealer()
		if err != nil {
			t.Fatalf("dealer: %v", err)
		}
		if g.DealerScore < DealerStandsOn {
			t.Fatalf("dealer stopped at %d", g.DealerScore)
		}
		if len(drawn) > 0 && Score(g.Dealer[:len(g.Dealer)-1]) >= DealerStandsOn {
			t.Fatalf("dealer drew past %d", DealerStandsOn)
		}
	})
}
