package blackjack

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestScoreHands(t *testing.T) {
	tests := []struct {
		name string
		hand []Card
		want int
	}{
		{"ten nine", []Card{card(Ten, Spades), card(Nine, Hearts)}, 19},
		{"ace king", []Card{card(Ace, Spades), card(King, Hearts)}, 21},
		{"two aces and nine", []Card{card(Ace, Spades), card(Ace, Hearts), card(Nine, Clubs)}, 21},
		{"four aces", []Card{card(Ace, Spades), card(Ace, Hearts), card(Ace, Clubs), card(Ace, Diamonds)}, 14},
		{"hard bust", []Card{card(King, Spades), card(Queen, Hearts), card(Two, Clubs)}, 22},
		{"soft to hard", []Card{card(Ace, Spades), card(Six, Hearts), card(Ten, Clubs)}, 17},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.hand))
		})
	}
}

func TestCardValueAndString(t *testing.T) {
	assert.Equal(t, 11, card(Ace, Spades).Value())
	assert.Equal(t, 10, card(Jack, Hearts).Value())
	assert.Equal(t, 10, card(King, Hearts).Value())
	assert.Equal(t, 7, card(Seven, Clubs).Value())
	assert.Equal(t, "A♠", card(Ace, Spades).String())
	assert.Equal(t, "10♦", card(Ten, Diamonds).String())
}

func genHand(t *rapid.T) []Card {
	deck := FullDeck()
	idx := rapid.SliceOfNDistinct(rapid.IntRange(0, 51), 0, 12, rapid.ID[int]).Draw(t, "cards")
	hand := make([]Card, len(idx))
	for i, j := range idx {
		hand[i] = deck[j]
	}
	return hand
}

// The score is the best total not over 21 that Ace reinterpretation allows.
func TestScoreBestTotalProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		hand := genHand(t)
		hard, aces := 0, 0
		for _, c := range hand {
			if c.Rank == Ace {
				hard++
				aces++
			} else {
				hard += c.Value()
			}
		}

		best := hard
		for k := 1; k <= aces; k++ {
			if hard+10*k <= 21 {
				best = hard + 10*k
			}
		}

		got := Score(hand)
		if got != best {
			t.Fatalf("Score(%v) = %d, want %d", hand, got, best)
		}
		if hard <= 21 && got > 21 {
			t.Fatalf("Score(%v) = %d busts although %d was reachable", hand, got, hard)
		}
	})
}

func TestShuffledDeckDistinctProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")
		d := NewShuffledDeck(rand.New(rand.NewSource(seed)))
		if d.Len() != 52 {
			t.Fatalf("deck has %d cards", d.Len())
		}
		seen := make(map[Card]bool, 52)
		for d.Len() > 0 {
			c, err := d.Deal()
			if err != nil {
				t.Fatalf("deal: %v", err)
			}
			if seen[c] {
				t.Fatalf("card %s dealt twice", c)
			}
			seen[c] = true
		}
		if len(seen) != 52 {
			t.Fatalf("dealt %d distinct cards", len(seen))
		}
		if _, err := d.Deal(); err != ErrDeckExhausted {
			t.Fatalf("dealing from empty deck: %v", err)
		}
	})
}

func TestShuffledDecksIndependent(t *testing.T) {
	a := NewShuffledDeck(nil)
	b := NewShuffledDeck(nil)
	_, err := a.Deal()
	require.NoError(t, err)
	assert.Equal(t, 51, a.Len())
	assert.Equal(t, 52, b.Len())
}

func TestStackedDeckOrder(t *testing.T) {
	d := NewStackedDeck(card(Ace, Spades), card(Two, Hearts))
	c, err := d.Deal()
	require.NoError(t, err)
	assert.Equal(t, card(Ace, Spades), c)
	c, err = d.Deal()
	require.NoError(t, err)
	assert.Equal(t, card(Two, Hearts), c)
	_, err = d.Deal()
	assert.ErrorIs(t, err, ErrDeckExhausted)
}
