package blackjack

import (
	"fmt"

	tele "gopkg.in/telebot.v3"
)

func button(text string, a Action) tele.InlineButton {
	return tele.InlineButton{Text: text, Data: a.Encode()}
}

// SignupKeyboard has the single join button.
func SignupKeyboard(g *Game) *tele.ReplyMarkup {
	join := button(
		fmt.Sprintf("🎰 Join %d/%d", len(g.Players), g.opts.MaxPlayers),
		Action{Kind: ActionJoin, ChatID: g.ChatID},
	)
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{join}}}
}

// BettingKeyboard is the panel for the current bettor.
// Layout:
//   - Row 1: one button per chip
//   - Row 2: [pledge slave]
//   - Row 3: [reset] [accept]
func BettingKeyboard(g *Game) *tele.ReplyMarkup {
	idx := g.BettorIndex
	chips := make([]tele.InlineButton, 0, len(g.opts.Chips))
	for _, c := range g.opts.Chips {
		chips = append(chips, button(
			fmt.Sprintf("+%d", c),
			Action{Kind: ActionAddChip, ChatID: g.ChatID, PlayerIndex: idx, Amount: c},
		))
	}
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		chips,
		{button("⛓ Stake my slave", Action{Kind: ActionPledgeCollateral, ChatID: g.ChatID, PlayerIndex: idx})},
		{
			button("↩️ Reset", Action{Kind: ActionResetBet, ChatID: g.ChatID, PlayerIndex: idx}),
			button("✅ Accept", Action{Kind: ActionAcceptBet, ChatID: g.ChatID, PlayerIndex: idx}),
		},
	}}
}

// TurnKeyboard offers hit and stand to the acting player.
func TurnKeyboard(g *Game) *tele.ReplyMarkup {
	idx := g.CurrentIndex
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{
		button("🃏 Hit", Action{Kind: ActionHit, ChatID: g.ChatID, PlayerIndex: idx}),
		button("✋ Stand", Action{Kind: ActionStand, ChatID: g.ChatID, PlayerIndex: idx}),
	}}}
}
