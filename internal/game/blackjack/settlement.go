package blackjack

import (
	"context"
	"errors"
	"fmt"

	"telegram-blackjack-bot/internal/model"
)

// Outcome of one player against the dealer.
type Outcome int

const (
	OutcomeLoss Outcome = iota
	OutcomeWin
	OutcomeBlackjack
	OutcomeDraw
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "win"
	case OutcomeBlackjack:
		return "blackjack"
	case OutcomeDraw:
		return "draw"
	default:
		return "loss"
	}
}

// Won reports whether the outcome counts as a win.
func (o Outcome) Won() bool {
	return o == OutcomeWin || o == OutcomeBlackjack
}

// SeatResult is the final state of one player as settlement sees it.
type SeatResult struct {
	UserID    int64
	Name      string
	Score     int
	Bust      bool
	Blackjack bool
	Bet       int64
	Stake     *Stake
}

// Classify applies the outcome precedence: bust, natural blackjack,
// dealer bust, higher score, tie, otherwise loss.
func Classify(p SeatResult, dealerScore int) Outcome {
	switch {
	case p.Bust:
		return OutcomeLoss
	case p.Blackjack && dealerScore != 21:
		return OutcomeBlackjack
	case dealerScore > 21:
		return OutcomeWin
	case p.Score > dealerScore:
		return OutcomeWin
	case p.Score == dealerScore:
		return OutcomeDraw
	default:
		return OutcomeLoss
	}
}

// Payout is the gross amount credited for a money bet. Bets are debited on
// accept, so a draw returns the stake and a loss pays nothing.
func Payout(o Outcome, bet int64) int64 {
	switch o {
	case OutcomeWin:
		return bet * 2
	case OutcomeBlackjack:
		return bet * 5 / 2
	case OutcomeDraw:
		return bet
	default:
		return 0
	}
}

// EffectKind is one instruction for the economy.
type EffectKind int

const (
	// EffectPayout credits a money win.
	EffectPayout EffectKind = iota
	// EffectRefund returns a drawn stake.
	EffectRefund
	// EffectFine debits the owner when the dealer beat everyone.
	EffectFine
	// EffectShare credits a winner's cut of a forfeited slave's price.
	EffectShare
	// EffectReturnSlave gives the collateral back to its owner.
	EffectReturnSlave
	// EffectTransferSlave gives the collateral to a new owner.
	EffectTransferSlave
	// EffectFreeSlave frees a collateral who won the round.
	EffectFreeSlave
	// EffectReleaseSlave clears ownership after the price was shared out.
	EffectReleaseSlave
)

// Effect targets UserID. Collateral is set for slave effects.
type Effect struct {
	Kind       EffectKind
	UserID     int64
	Amount     int64
	Collateral *Stake
	// OwnerID is the pledging player for slave-derived effects.
	OwnerID int64
}

// PlayerOutcome is one line of the results table.
type PlayerOutcome struct {
	SeatResult
	Outcome Outcome
	Payout  int64
}

// SettleInput is everything settlement depends on.
type SettleInput struct {
	Players     []SeatResult
	DealerScore int
	// Enslaved marks users owned by someone, read before settlement.
	Enslaved map[int64]bool
}

// SettleResult lists outcomes in seat order and the effects to apply, money first.
type SettleResult struct {
	Outcomes []PlayerOutcome
	Winners  []int64
	Effects  []Effect
}

// Settle is a pure function of its input.
func Settle(in SettleInput) SettleResult {
	var res SettleResult
	outcome := make(map[int64]Outcome, len(in.Players))

	for _, p := range in.Players {
		o := Classify(p, in.DealerScore)
		outcome[p.UserID] = o
		po := PlayerOutcome{SeatResult: p, Outcome: o}
		if p.Stake == nil && p.Bet > 0 {
			po.Payout = Payout(o, p.Bet)
			switch {
			case o.Won():
				res.Effects = append(res.Effects, Effect{Kind: EffectPayout, UserID: p.UserID, Amount: po.Payout})
			case o == OutcomeDraw:
				res.Effects = append(res.Effects, Effect{Kind: EffectRefund, UserID: p.UserID, Amount: po.Payout})
			}
		}
		if o.Won() {
			res.Winners = append(res.Winners, p.UserID)
		}
		res.Outcomes = append(res.Outcomes, po)
	}

	for _, p := range in.Players {
		if p.Stake != nil {
			res.Effects = append(res.Effects, settleStake(p.UserID, *p.Stake, res.Winners, outcome, in.Enslaved)...)
		}
	}
	return res
}

func settleStake(owner int64, s Stake, winners []int64, outcome map[int64]Outcome, enslaved map[int64]bool) []Effect {
	c := s.CollateralID
	stake := &s
	ret := Effect{Kind: EffectReturnSlave, UserID: owner, Collateral: stake, OwnerID: owner}

	if o, playing := outcome[c]; playing && o == OutcomeDraw {
		return []Effect{ret}
	}
	if len(winners) == 0 {
		return []Effect{ret, {Kind: EffectFine, UserID: owner, Amount: s.Price, Collateral: stake, OwnerID: owner}}
	}
	if containsID(winners, c) {
		out := []Effect{{Kind: EffectFreeSlave, UserID: c, Collateral: stake, OwnerID: owner}}
		var others []int64
		for _, w := range winners {
			if w != c {
				others = append(others, w)
			}
		}
		return append(out, share(others, s.Price, stake, owner)...)
	}
	if len(winners) == 1 {
		w := winners[0]
		if w == owner {
			return []Effect{ret}
		}
		if !enslaved[w] {
			return []Effect{{Kind: EffectTransferSlave, UserID: w, Collateral: stake, OwnerID: owner}}
		}
	}
	out := share(winners, s.Price, stake, owner)
	return append(out, Effect{Kind: EffectReleaseSlave, UserID: c, Collateral: stake, OwnerID: owner})
}

// share splits price evenly; the remainder of the integer division is dropped.
func share(to []int64, price int64, stake *Stake, owner int64) []Effect {
	if len(to) == 0 {
		return nil
	}
	each := price / int64(len(to))
	if each <= 0 {
		return nil
	}
	out := make([]Effect, 0, len(to))
	for _, w := range to {
		out = append(out, Effect{Kind: EffectShare, UserID: w, Amount: each, Collateral: stake, OwnerID: owner})
	}
	return out
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// ApplyEffects executes effects in order. A failing effect does not stop the rest;
// all failures are returned joined.
func ApplyEffects(ctx context.Context, eco Economy, effects []Effect) error {
	var errs []error
	for _, e := range effects {
		var err error
		switch e.Kind {
		case EffectPayout:
			_, err = eco.AddBalance(ctx, e.UserID, e.Amount, model.TxTypeBlackjackWin)
		case EffectRefund:
			_, err = eco.AddBalance(ctx, e.UserID, e.Amount, model.TxTypeBlackjackRefund)
		case EffectShare:
			_, err = eco.AddBalance(ctx, e.UserID, e.Amount, model.TxTypeBlackjackShare)
		case EffectFine:
			_, err = eco.AddBalance(ctx, e.UserID, -e.Amount, model.TxTypeBlackjackFine)
		case EffectReturnSlave, EffectTransferSlave:
			err = eco.SetSlave(ctx, e.UserID, *e.Collateral)
		case EffectFreeSlave, EffectReleaseSlave:
			// The pledge already removed the record.
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("effect %d for user %d: %w", e.Kind, e.UserID, err))
		}
	}
	return errors.Join(errs...)
}

func seatResults(g *Game) []SeatResult {
	out := make([]SeatResult, 0, len(g.Players))
	for _, p := range g.Seated() {
		out = append(out, SeatResult{
			UserID:    p.UserID,
			Name:      p.Name,
			Score:     p.Score,
			Bust:      p.Bust,
			Blackjack: p.Blackjack,
			Bet:       p.Bet,
			Stake:     p.Stake,
		})
	}
	return out
}
