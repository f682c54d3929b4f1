package service

import (
	"context"
	"errors"
	"fmt"

	"telegram-blackjack-bot/internal/game/blackjack"
	"telegram-blackjack-bot/internal/pkg/lock"
	"telegram-blackjack-bot/internal/repository"
)

// EconomyService is the balance and slave store blackjack games settle against.
type EconomyService struct {
	store *repository.Store
	locks *lock.KeyedLock
}

var _ blackjack.Economy = (*EconomyService)(nil)

// NewEconomyService creates a new EconomyService instance.
func NewEconomyService(store *repository.Store, locks *lock.KeyedLock) *EconomyService {
	return &EconomyService{store: store, locks: locks}
}

// Balance returns the user's balance. Unknown users have the starting balance.
func (s *EconomyService) Balance(ctx context.Context, userID int64) (int64, error) {
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return repository.InitialBalance, nil
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return user.Balance, nil
}

// AddBalance applies delta and writes a ledger row of txType.
// A missing user is created first, so a payout never disappears.
func (s *EconomyService) AddBalance(ctx context.Context, userID, delta int64, txType string) (int64, error) {
	var balance int64
	err := s.locks.WithLock(userID, func() error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			if _, _, err := tx.Users.GetOrCreate(ctx, userID, ""); err != nil {
				return err
			}
			user, err := tx.Users.UpdateBalance(ctx, userID, delta)
			if err != nil {
				return err
			}
			if _, err := tx.Transactions.Create(ctx, userID, delta, txType, nil); err != nil {
				return err
			}
			balance = user.Balance
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add %d to user %d: %w", delta, userID, err)
	}
	return balance, nil
}

// Slave returns the owner's slave, or nil when they have none.
func (s *EconomyService) Slave(ctx context.Context, ownerID int64) (*blackjack.Stake, error) {
	rec, err := s.store.Slaves.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrSlaveNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get slave: %w", err)
	}
	return &blackjack.Stake{
		CollateralID:   rec.SlaveID,
		CollateralName: rec.SlaveName,
		Price:          rec.PurchasePrice,
	}, nil
}

// SetSlave records st as the owner's slave, replacing any previous one.
func (s *EconomyService) SetSlave(ctx context.Context, ownerID int64, st blackjack.Stake) error {
	return s.locks.WithLock(ownerID, func() error {
		if _, err := s.store.Slaves.Set(ctx, ownerID, st.CollateralID, st.Price, st.CollateralName); err != nil {
			return fmt.Errorf("failed to set slave: %w", err)
		}
		return nil
	})
}

// RemoveSlave frees the owner's slave. Owners without one are left alone.
func (s *EconomyService) RemoveSlave(ctx context.Context, ownerID int64) error {
	return s.locks.WithLock(ownerID, func() error {
		if _, err := s.store.Slaves.RemoveByOwner(ctx, ownerID); err != nil {
			return fmt.Errorf("failed to remove slave: %w", err)
		}
		return nil
	})
}

// SlaveOwner reports who owns slaveID.
func (s *EconomyService) SlaveOwner(ctx context.Context, slaveID int64) (int64, bool, error) {
	rec, err := s.store.Slaves.GetBySlave(ctx, slaveID)
	if err != nil {
		if errors.Is(err, repository.ErrSlaveNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get slave owner: %w", err)
	}
	return rec.OwnerID, true, nil
}
