// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"telegram-blackjack-bot/internal/model"
	"telegram-blackjack-bot/internal/pkg/lock"
	"telegram-blackjack-bot/internal/repository"
)

// Common errors for account operations.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrNegativeBalance = errors.New("balance cannot be negative")
	ErrInvalidAmount   = errors.New("amount must be positive")
)

// AccountService handles user account operations.
type AccountService struct {
	store       *repository.Store
	locks       *lock.KeyedLock
	dailyReward int64
	cooldown    time.Duration
	now         func() time.Time
}

// NewAccountService creates a new AccountService instance.
// locks is shared with every other service that mutates balances.
func NewAccountService(store *repository.Store, locks *lock.KeyedLock, dailyReward int64, cooldown time.Duration) *AccountService {
	return &AccountService{
		store:       store,
		locks:       locks,
		dailyReward: dailyReward,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// EnsureUser ensures a user exists, creating one if necessary.
// Returns the user and whether it was newly created.
func (s *AccountService) EnsureUser(ctx context.Context, telegramID int64, username string) (*model.User, bool, error) {
	user, created, err := s.store.Users.GetOrCreate(ctx, telegramID, username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}

	if !created && user.Username != username && username != "" {
		if err := s.store.Users.UpdateUsername(ctx, telegramID, username); err != nil {
			log.Warn().Err(err).Int64("user_id", telegramID).Msg("Failed to update username")
		} else {
			user.Username = username
		}
	}

	return user, created, nil
}

// GetBalance retrieves a user's current balance.
func (s *AccountService) GetBalance(ctx context.Context, telegramID int64) (int64, error) {
	user, err := s.GetUser(ctx, telegramID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// GetUser retrieves a user by their Telegram ID.
func (s *AccountService) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.store.Users.GetByID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateBalance adds amount (negative to subtract) and records the ledger row
// in the same database transaction.
func (s *AccountService) UpdateBalance(ctx context.Context, telegramID int64, amount int64, txType string, description *string) (*model.User, error) {
	var user *model.User
	err := s.locks.WithLock(telegramID, func() error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			var err error
			user, err = tx.Users.UpdateBalance(ctx, telegramID, amount)
			if err != nil {
				return err
			}
			_, err = tx.Transactions.Create(ctx, telegramID, amount, txType, description)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	return user, nil
}

// BalanceChange is an admin edit of one balance.
type BalanceChange struct {
	User       *model.User
	OldBalance int64
}

// AdjustBalance adds delta to a user's balance on an admin's behalf, creating
// the user first. The balance may go negative, as with any debit.
func (s *AccountService) AdjustBalance(ctx context.Context, telegramID, delta int64, txType string, description *string) (*BalanceChange, error) {
	return s.adminEdit(ctx, telegramID, txType, description, func(int64) int64 { return delta })
}

// SetBalance overwrites a user's balance, recording the difference in the ledger.
func (s *AccountService) SetBalance(ctx context.Context, telegramID, balance int64, description *string) (*BalanceChange, error) {
	if balance < 0 {
		return nil, ErrNegativeBalance
	}
	return s.adminEdit(ctx, telegramID, model.TxTypeAdminSet, description, func(old int64) int64 { return balance - old })
}

func (s *AccountService) adminEdit(ctx context.Context, telegramID int64, txType string, description *string, delta func(old int64) int64) (*BalanceChange, error) {
	var res *BalanceChange
	err := s.locks.WithLock(telegramID, func() error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			user, _, err := tx.Users.GetOrCreate(ctx, telegramID, "")
			if err != nil {
				return err
			}
			old := user.Balance
			d := delta(old)
			user, err = tx.Users.UpdateBalance(ctx, telegramID, d)
			if err != nil {
				return err
			}
			if _, err := tx.Transactions.Create(ctx, telegramID, d, txType, description); err != nil {
				return err
			}
			res = &BalanceChange{User: user, OldBalance: old}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to edit balance: %w", err)
	}
	return res, nil
}

// GiftAll credits amount to every known user and returns how many were paid.
func (s *AccountService) GiftAll(ctx context.Context, amount int64, description *string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var count int
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		ids, err := tx.Users.AddBalanceAll(ctx, amount)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := tx.Transactions.Create(ctx, id, amount, model.TxTypeAdminGift, description); err != nil {
				return err
			}
		}
		count = len(ids)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to gift all users: %w", err)
	}
	return count, nil
}

// DailyClaim is the outcome of a /daily request.
type DailyClaim struct {
	Claimed   bool
	Reward    int64
	Balance   int64
	Remaining time.Duration
}

// ClaimDaily pays the daily reward if the cooldown has passed.
func (s *AccountService) ClaimDaily(ctx context.Context, telegramID int64) (*DailyClaim, error) {
	now := s.now()
	res := &DailyClaim{}

	err := s.locks.WithLock(telegramID, func() error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			ok, remaining, err := tx.Users.CanClaimDaily(ctx, telegramID, s.cooldown, now)
			if err != nil {
				return err
			}
			if !ok {
				res.Remaining = remaining
				return nil
			}

			user, err := tx.Users.UpdateBalance(ctx, telegramID, s.dailyReward)
			if err != nil {
				return err
			}
			if _, err := tx.Users.UpdateDailyClaim(ctx, telegramID, now.Unix()); err != nil {
				return err
			}
			desc := "daily reward"
			if _, err := tx.Transactions.Create(ctx, telegramID, s.dailyReward, model.TxTypeDaily, &desc); err != nil {
				return err
			}
			res.Claimed = true
			res.Reward = s.dailyReward
			res.Balance = user.Balance
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to claim daily reward: %w", err)
	}
	return res, nil
}

// GetTopUsers retrieves the top users by balance.
func (s *AccountService) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	return s.store.Users.GetTopUsers(ctx, limit)
}

// History returns the user's most recent ledger rows.
func (s *AccountService) History(ctx context.Context, telegramID int64, limit int) ([]*model.Transaction, error) {
	return s.store.Transactions.GetByUserID(ctx, telegramID, limit)
}

// BlackjackNet is the user's lifetime result at the blackjack table.
func (s *AccountService) BlackjackNet(ctx context.Context, telegramID int64) (int64, error) {
	return s.store.Transactions.SumByTypes(ctx, telegramID, model.BlackjackTransactionTypes())
}
