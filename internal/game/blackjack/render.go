package blackjack

import (
	"fmt"
	"strings"
	"time"
)

// CancelReason distinguishes why a game ended without settlement.
type CancelReason int

const (
	CancelNotEnoughPlayers CancelReason = iota
	CancelNoWagers
	CancelInternalError
)

func formatHand(hand []Card) string {
	parts := make([]string, len(hand))
	for i, c := range hand {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

func formatWager(p *Player) string {
	switch {
	case p.Stake != nil:
		return fmt.Sprintf("slave %s (%d)", p.Stake.CollateralName, p.Stake.Price)
	case p.Bet > 0:
		return fmt.Sprintf("%d coins", p.Bet)
	case p.SatOut:
		return "sat out"
	default:
		return "no bet"
	}
}

// SignupText renders the signup announcement with the remaining time.
func SignupText(g *Game, now time.Time) string {
	remaining := g.signupDeadline.Sub(now).Round(time.Second)
	if remaining < 0 {
		remaining = 0
	}
	secs := int(remaining / time.Second)

	var b strings.Builder
	b.WriteString("🎰 BLACKJACK - signup\n\n")
	fmt.Fprintf(&b, "⏰ Time left: %02d:%02d\n", secs/60, secs%60)
	fmt.Fprintf(&b, "👥 Players: %d/%d (minimum %d)\n\n", len(g.Players), g.opts.MaxPlayers, g.opts.MinPlayers)
	b.WriteString("Rules: one 52-card deck, get closer to 21 than the dealer.\n")
	b.WriteString("Ace = 1 or 11, faces = 10, over 21 loses. Blackjack pays 2.5x.\n")
	if len(g.Players) > 0 {
		b.WriteString("\nPlayers:\n")
		for i, p := range g.Players {
			fmt.Fprintf(&b, "%d. %s\n", i+1, p.Name)
		}
	}
	return b.String()
}

// BettingText renders the betting panel for the current bettor.
func BettingText(g *Game) string {
	var b strings.Builder
	b.WriteString("💰 BLACKJACK - bets\n\n")
	for i, p := range g.Players {
		marker := "  "
		status := ""
		switch {
		case p.BetAccepted:
			marker = "✅"
			status = formatWager(p)
		case i == g.BettorIndex:
			marker = "👉"
			switch {
			case p.PendingStake != nil:
				status = fmt.Sprintf("pending: slave %s (%d)", p.PendingStake.CollateralName, p.PendingStake.Price)
			case p.PendingBet > 0:
				status = fmt.Sprintf("pending: %d coins", p.PendingBet)
			default:
				status = "choosing"
			}
		default:
			status = "waiting"
		}
		fmt.Fprintf(&b, "%s %s: %s\n", marker, p.Name, status)
	}
	if p := g.Bettor(); p != nil {
		fmt.Fprintf(&b, "\n%s, add chips or stake your slave, then accept.", p.Name)
	}
	return b.String()
}

func playerIcon(p *Player, current bool) string {
	switch {
	case p.Blackjack:
		return "🎯"
	case p.Bust:
		return "💥"
	case p.Stand:
		return "✋"
	case current:
		return "👉"
	default:
		return "▫️"
	}
}

// tableText renders the table. cards limits how many cards of each hand are
// shown (0 shows all); the hole card stays hidden until revealed.
func tableText(g *Game, title string, cards int, dealer []Card, reveal bool) string {
	clip := func(h []Card) []Card {
		if cards > 0 && len(h) > cards {
			return h[:cards]
		}
		return h
	}

	var b strings.Builder
	b.WriteString(title + "\n\n")
	switch {
	case len(dealer) == 0:
		b.WriteString("🏦 Dealer: -\n\n")
	case !reveal:
		shown := clip(dealer)
		hidden := ""
		if len(shown) >= 2 {
			shown, hidden = shown[:1], " 🂠"
		}
		fmt.Fprintf(&b, "🏦 Dealer: %s%s (%d+?)\n\n", formatHand(shown), hidden, Score(shown))
	default:
		fmt.Fprintf(&b, "🏦 Dealer: %s (%d)\n\n", formatHand(dealer), Score(dealer))
	}

	for i, p := range g.Players {
		if p.SatOut {
			fmt.Fprintf(&b, "⏸ %s: sat out\n", p.Name)
			continue
		}
		hand := clip(p.Hand)
		current := g.Phase == PhasePlayerTurns && i == g.CurrentIndex
		fmt.Fprintf(&b, "%s %s: %s (%d)\n", playerIcon(p, current), p.Name, formatHand(hand), Score(hand))
	}
	if p := g.Current(); p != nil {
		fmt.Fprintf(&b, "\n🎯 Turn: %s", p.Name)
	}
	return b.String()
}

// TableText renders the live table.
func TableText(g *Game) string {
	return tableText(g, "🎰 BLACKJACK", 0, g.Dealer, g.HoleRevealed)
}

// DealingTimeline animates the opening deal already applied to g.
func DealingTimeline(g *Game, pace time.Duration) Timeline {
	return Timeline{
		{Text: "🎰 BLACKJACK\n\n🃏 Shuffling the deck..."},
		{Delay: pace, Text: tableText(g, "🎰 BLACKJACK - first round", 1, g.Dealer[:1], false)},
		{Delay: pace, Text: tableText(g, "🎰 BLACKJACK - second round", 2, g.Dealer, false)},
	}
}

// DealerTimeline animates the dealer's reveal and draws already applied to g.
func DealerTimeline(g *Game, drawn []Card, pace time.Duration) Timeline {
	base := len(g.Dealer) - len(drawn)
	tl := Timeline{{
		Delay: pace,
		Text:  tableText(g, "🏦 Dealer reveals the hole card", 0, g.Dealer[:base], true),
	}}
	for i := range drawn {
		tl = append(tl, Frame{
			Delay: pace,
			Text:  tableText(g, fmt.Sprintf("🏦 Dealer draws %s", drawn[i]), 0, g.Dealer[:base+i+1], true),
		})
	}
	verdict := "🏦 Dealer stands"
	if g.DealerScore > 21 {
		verdict = "💥 Dealer busts"
	}
	tl = append(tl, Frame{Delay: pace, Text: tableText(g, verdict, 0, g.Dealer, true)})
	return tl
}

var outcomeLabels = map[Outcome]string{
	OutcomeLoss:      "😞 loss",
	OutcomeWin:       "🏆 win",
	OutcomeBlackjack: "🎯 blackjack",
	OutcomeDraw:      "🤝 draw",
}

// ResultsText renders the final table and what each effect did.
func ResultsText(g *Game, res SettleResult) string {
	names := make(map[int64]string, len(g.Players))
	hands := make(map[int64][]Card, len(g.Players))
	for _, p := range g.Players {
		names[p.UserID] = p.Name
		hands[p.UserID] = p.Hand
	}
	name := func(id int64, fallback string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return fallback
	}

	var b strings.Builder
	b.WriteString("🎰 BLACKJACK - results\n\n")
	verdict := ""
	if g.DealerScore > 21 {
		verdict = " bust"
	}
	fmt.Fprintf(&b, "🏦 Dealer: %s (%d%s)\n\n", formatHand(g.Dealer), g.DealerScore, verdict)

	for _, o := range res.Outcomes {
		line := fmt.Sprintf("%s: %s (%d) - %s", o.Name, formatHand(hands[o.UserID]), o.Score, outcomeLabels[o.Outcome])
		if o.Bust {
			line += " (bust)"
		}
		switch {
		case o.Stake != nil:
			line += fmt.Sprintf(", staked %s", o.Stake.CollateralName)
		case o.Bet > 0 && o.Payout > 0:
			line += fmt.Sprintf(", bet %d, paid %d", o.Bet, o.Payout)
		case o.Bet > 0:
			line += fmt.Sprintf(", lost %d", o.Bet)
		}
		b.WriteString(line + "\n")
	}

	var slaves []string
	for _, e := range res.Effects {
		if e.Collateral == nil {
			continue
		}
		c := e.Collateral.CollateralName
		owner := name(e.OwnerID, "owner")
		switch e.Kind {
		case EffectReturnSlave:
			slaves = append(slaves, fmt.Sprintf("⛓ %s returns to %s", c, owner))
		case EffectFine:
			slaves = append(slaves, fmt.Sprintf("💸 %s is fined %d", owner, e.Amount))
		case EffectFreeSlave:
			slaves = append(slaves, fmt.Sprintf("🕊 %s won and is free", c))
		case EffectReleaseSlave:
			slaves = append(slaves, fmt.Sprintf("🕊 %s is released", c))
		case EffectTransferSlave:
			slaves = append(slaves, fmt.Sprintf("⛓ %s now belongs to %s", c, name(e.UserID, "winner")))
		case EffectShare:
			slaves = append(slaves, fmt.Sprintf("💰 %s gets %d for %s", name(e.UserID, "winner"), e.Amount, c))
		}
	}
	if len(slaves) > 0 {
		b.WriteString("\nSlave stakes:\n")
		b.WriteString(strings.Join(slaves, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// CancelText renders the message for a game that ended without settlement.
func CancelText(g *Game, reason CancelReason) string {
	switch reason {
	case CancelNotEnoughPlayers:
		return fmt.Sprintf("🎰 BLACKJACK - cancelled\n\nNot enough players: %d joined, %d needed.", len(g.Players), g.opts.MinPlayers)
	case CancelNoWagers:
		return "🎰 BLACKJACK - cancelled\n\nNobody placed a bet."
	default:
		return "🎰 BLACKJACK - cancelled\n\nSomething went wrong at the table. All stakes were returned."
	}
}
