// Package model defines the persisted records of the blackjack bot.
package model

import "time"

// User is a Telegram user's wallet.
type User struct {
	TelegramID     int64     `db:"telegram_id"`
	Username       string    `db:"username"`
	Balance        int64     `db:"balance"`
	LastDailyClaim int64     `db:"last_daily_claim"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Transaction is one balance change in the ledger.
type Transaction struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Amount      int64     `db:"amount"`
	Type        string    `db:"type"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// Slave records that OwnerID owns SlaveID. An owner has at most one slave
// and a user is owned by at most one owner.
type Slave struct {
	OwnerID       int64     `db:"owner_id"`
	SlaveID       int64     `db:"slave_id"`
	PurchasePrice int64     `db:"purchase_price"`
	SlaveName     string    `db:"slave_name"`
	CreatedAt     time.Time `db:"created_at"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypeInitial = "initial" // Initial balance on account creation
	TxTypeDaily   = "daily"   // Daily reward claim

	TxTypeBlackjackBet    = "blackjack_bet"    // Stake debited on accept
	TxTypeBlackjackWin    = "blackjack_win"    // Win or blackjack payout
	TxTypeBlackjackRefund = "blackjack_refund" // Draw, or cancelled game
	TxTypeBlackjackFine   = "blackjack_fine"   // Slave pledge lost to the dealer
	TxTypeBlackjackShare  = "blackjack_share"  // Cut of a forfeited slave's price

	TxTypeSlavePurchase = "slave_purchase"
	TxTypeSlaveBuyout   = "slave_buyout"

	TxTypeAdminAdd  = "admin_add"
	TxTypeAdminSub  = "admin_sub"
	TxTypeAdminSet  = "admin_set"
	TxTypeAdminGift = "admin_gift"
)

// BlackjackTransactionTypes returns the ledger types produced by the game.
func BlackjackTransactionTypes() []string {
	return []string{
		TxTypeBlackjackBet,
		TxTypeBlackjackWin,
		TxTypeBlackjackRefund,
		TxTypeBlackjackFine,
		TxTypeBlackjackShare,
	}
}
