package blackjack

import (
	"math/rand"
	"strconv"
)

// Suit of a playing card.
type Suit uint8

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

var suitSymbols = [...]string{"♠", "♥", "♦", "♣"}

func (s Suit) String() string {
	if int(s) < len(suitSymbols) {
		return suitSymbols[s]
	}
	return "?"
}

// Rank of a playing card. Number ranks hold their face value.
type Rank uint8

const (
	Two   Rank = 2
	Three Rank = 3
	Four  Rank = 4
	Five  Rank = 5
	Six   Rank = 6
	Seven Rank = 7
	Eight Rank = 8
	Nine  Rank = 9
	Ten   Rank = 10
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
	Ace   Rank = 14
)

func (r Rank) String() string {
	switch r {
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	default:
		return strconv.Itoa(int(r))
	}
}

// Card is an immutable playing card.
type Card struct {
	Suit Suit
	Rank Rank
}

// Value is the nominal blackjack value: faces count 10, an Ace counts 11.
func (c Card) Value() int {
	switch {
	case c.Rank == Ace:
		return 11
	case c.Rank >= Jack:
		return 10
	default:
		return int(c.Rank)
	}
}

func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// Score sums the hand and then takes 10 off per Ace while the total is over 21.
func Score(hand []Card) int {
	total, aces := 0, 0
	for _, c := range hand {
		total += c.Value()
		if c.Rank == Ace {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// Shuffler permutes n elements. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// DefaultShuffler uses the process-wide math/rand source, which is safe for concurrent use.
var DefaultShuffler Shuffler = globalShuffler{}

// Deck is an ordered pile of cards dealt from the end.
type Deck struct {
	cards []Card
}

// FullDeck returns the 52 cards in suit-major order.
func FullDeck() []Card {
	cards := make([]Card, 0, 52)
	for s := Spades; s <= Clubs; s++ {
		for r := Two; r <= Ace; r++ {
			cards = append(cards, Card{Suit: s, Rank: r})
		}
	}
	return cards
}

// NewShuffledDeck returns a fresh 52-card deck shuffled by rng.
func NewShuffledDeck(rng Shuffler) *Deck {
	if rng == nil {
		rng = DefaultShuffler
	}
	cards := FullDeck()
	rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	return &Deck{cards: cards}
}

// NewStackedDeck builds a deck whose next card is the first argument.
func NewStackedDeck(next ...Card) *Deck {
	cards := make([]Card, len(next))
	for i, c := range next {
		cards[len(next)-1-i] = c
	}
	return &Deck{cards: cards}
}

// Deal removes and returns the last card.
func (d *Deck) Deal() (Card, error) {
	if len(d.cards) == 0 {
		return Card{}, ErrDeckExhausted
	}
	c := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return c, nil
}

// Len reports how many cards remain.
func (d *Deck) Len() int {
	return len(d.cards)
}
