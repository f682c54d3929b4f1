// Package handler provides Telegram bot command handlers.
package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"telegram-blackjack-bot/internal/game/blackjack"
	"telegram-blackjack-bot/internal/model"
	"telegram-blackjack-bot/internal/service"
)

// displayName is what other players see for u.
func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return fmt.Sprintf("User%d", u.ID)
}

// formatWait renders a remaining duration like "1h 05m 03s".
func formatWait(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// gameErrorText maps a rejected game action to what the user is told.
// Unknown errors get a generic text and should be logged by the caller.
func gameErrorText(err error) (string, bool) {
	switch {
	case errors.Is(err, blackjack.ErrGameActive):
		return "🎰 A game is already running in this chat.", true
	case errors.Is(err, blackjack.ErrNoGame):
		return "This game is over.", true
	case errors.Is(err, blackjack.ErrWrongPhase):
		return "Not now: the game is in another phase.", true
	case errors.Is(err, blackjack.ErrAlreadyJoined):
		return "You are already at the table.", true
	case errors.Is(err, blackjack.ErrGameFull):
		return "The table is full.", true
	case errors.Is(err, blackjack.ErrNotEnoughPlayers):
		return "Not enough players to start.", true
	case errors.Is(err, blackjack.ErrNotYourTurn):
		return "It is not your turn.", true
	case errors.Is(err, blackjack.ErrInsufficientBalance):
		return "You do not have enough coins.", true
	case errors.Is(err, blackjack.ErrMoneyAndCollateral):
		return "Bet coins or a slave, not both.", true
	case errors.Is(err, blackjack.ErrNoCollateral):
		return "You have no slave to stake.", true
	case errors.Is(err, blackjack.ErrMustBetFirst):
		return "Place a bet first.", true
	case errors.Is(err, blackjack.ErrInvalidChip):
		return "That chip is not on the table.", true
	case errors.Is(err, blackjack.ErrJoinDenied):
		return "You need more coins to join.", true
	case errors.Is(err, blackjack.ErrMalformedAction):
		return "Unknown button.", true
	case errors.Is(err, blackjack.ErrDeckExhausted):
		return "The deck ran out. The game was cancelled.", true
	}
	return "❌ Something went wrong, please try again.", false
}

// slaveErrorText maps slave market rejections.
func slaveErrorText(err error) (string, bool) {
	var funds *service.InsufficientFundsError
	switch {
	case errors.As(err, &funds):
		return fmt.Sprintf("❌ Not enough coins: need %d, you have %d.", funds.Need, funds.Have), true
	case errors.Is(err, service.ErrSelfPurchase):
		return "❌ You cannot buy yourself.", true
	case errors.Is(err, service.ErrAlreadyOwner):
		return "❌ You already own a slave. One per owner.", true
	case errors.Is(err, service.ErrBuyerEnslaved):
		return "❌ Slaves cannot own slaves. Buy yourself out first.", true
	case errors.Is(err, service.ErrTargetEnslaved):
		return "❌ This user already has an owner.", true
	case errors.Is(err, service.ErrPledged):
		return "❌ That slave is on the table in a running blackjack game. Try again after it ends.", true
	case errors.Is(err, service.ErrNotEnslaved):
		return "You are free. Nobody owns you.", true
	}
	return "❌ Something went wrong, please try again.", false
}

func balanceText(balance int64) string {
	return fmt.Sprintf("💰 Balance: %d", balance)
}

func dailyText(res *service.DailyClaim) string {
	if res.Claimed {
		return fmt.Sprintf("✅ Daily reward: +%d. Balance: %d", res.Reward, res.Balance)
	}
	return fmt.Sprintf("⏰ Come back in %s", formatWait(res.Remaining))
}

func topText(users []*model.User) string {
	if len(users) == 0 {
		return "📊 Nobody is ranked yet"
	}

	var b strings.Builder
	b.WriteString("🏆 Top balances\n")
	medals := []string{"🥇", "🥈", "🥉"}
	for i, u := range users {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		name := u.Username
		if name == "" {
			name = fmt.Sprintf("User%d", u.TelegramID)
		}
		fmt.Fprintf(&b, "%s %s: %d\n", rank, name, u.Balance)
	}
	return strings.TrimRight(b.String(), "\n")
}

var txLabels = map[string]string{
	model.TxTypeInitial:         "start",
	model.TxTypeDaily:           "daily",
	model.TxTypeBlackjackBet:    "bet",
	model.TxTypeBlackjackWin:    "win",
	model.TxTypeBlackjackRefund: "refund",
	model.TxTypeBlackjackFine:   "fine",
	model.TxTypeBlackjackShare:  "share",
	model.TxTypeSlavePurchase:   "slave bought",
	model.TxTypeSlaveBuyout:     "buyout",
	model.TxTypeAdminAdd:        "admin credit",
	model.TxTypeAdminSub:        "admin debit",
	model.TxTypeAdminSet:        "admin set",
	model.TxTypeAdminGift:       "gift",
}

func historyText(txs []*model.Transaction, net int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🃏 Blackjack net: %+d\n", net)
	if len(txs) == 0 {
		b.WriteString("No transactions yet")
		return b.String()
	}
	b.WriteString("Recent:\n")
	for _, tx := range txs {
		label, ok := txLabels[tx.Type]
		if !ok {
			label = tx.Type
		}
		fmt.Fprintf(&b, "%s %+d %s\n", tx.CreatedAt.Format("01-02 15:04"), tx.Amount, label)
	}
	return strings.TrimRight(b.String(), "\n")
}

func slaveInfoText(info *service.SlaveInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💵 Balance: %d\n💎 Your price: %d", info.Balance, info.Price)
	if info.Owned != nil {
		fmt.Fprintf(&b, "\n\n👑 Your slave: %s\n💰 Bought for: %d\n💵 Their balance: %d\n"+
			"They can buy themselves out for %d with /buyout",
			info.Owned.SlaveName, info.Owned.PurchasePrice, info.OwnedBalance, info.Owned.PurchasePrice)
	}
	if info.OwnedBy != nil {
		fmt.Fprintf(&b, "\n\n⛓ You are owned by user %d\n💰 Buyout price: %d\nSlaves cannot own slaves.",
			info.OwnedBy.OwnerID, info.OwnedBy.PurchasePrice)
	}
	if info.Owned == nil && info.OwnedBy == nil {
		b.WriteString("\n\nYou own nobody and nobody owns you.")
	}
	return b.String()
}
