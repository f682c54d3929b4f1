package service

import (
	"context"
	"errors"
	"fmt"

	"telegram-blackjack-bot/internal/model"
	"telegram-blackjack-bot/internal/pkg/lock"
	"telegram-blackjack-bot/internal/repository"
)

// Slave market errors.
var (
	ErrSelfPurchase      = errors.New("cannot buy yourself")
	ErrAlreadyOwner      = errors.New("buyer already owns a slave")
	ErrBuyerEnslaved     = errors.New("a slave cannot own slaves")
	ErrTargetEnslaved    = errors.New("target already has an owner")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrNotEnslaved       = errors.New("user is not a slave")
	ErrPledged           = errors.New("user is staked in a running game")
)

// LifeValue is the flat part of every slave price.
const LifeValue int64 = 1000

// SlavePrice is what it costs to buy a user holding balance coins:
// the balance, a flat life value and a 30% premium on the balance.
func SlavePrice(balance int64) int64 {
	return balance + LifeValue + balance*3/10
}

// PledgeBook knows which users are tied up in a live slave pledge. A pledged
// slave has no ownership record until its game settles.
type PledgeBook interface {
	Pledged(userID int64) bool
}

type noPledges struct{}

func (noPledges) Pledged(int64) bool { return false }

// SlaveService runs the slave market: purchases, buyouts and releases.
type SlaveService struct {
	store   *repository.Store
	locks   *lock.KeyedLock
	pledges PledgeBook
}

// NewSlaveService creates a new SlaveService instance. pledges may be nil.
func NewSlaveService(store *repository.Store, locks *lock.KeyedLock, pledges PledgeBook) *SlaveService {
	if pledges == nil {
		pledges = noPledges{}
	}
	return &SlaveService{store: store, locks: locks, pledges: pledges}
}

func (s *SlaveService) checkPledged(ids ...int64) error {
	for _, id := range ids {
		if s.pledges.Pledged(id) {
			return ErrPledged
		}
	}
	return nil
}

// Purchase describes a completed purchase.
type Purchase struct {
	Slave   *model.Slave
	Price   int64
	Balance int64
}

// InsufficientFundsError carries how much was needed.
type InsufficientFundsError struct {
	Need int64
	Have int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: need %d, have %d", e.Need, e.Have)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// Buy makes targetID the buyer's slave for the target's current price.
func (s *SlaveService) Buy(ctx context.Context, buyerID, targetID int64, targetName string) (*Purchase, error) {
	if buyerID == targetID {
		return nil, ErrSelfPurchase
	}

	var res *Purchase
	err := s.locks.WithLocks([]int64{buyerID, targetID}, func() error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			// Checked on both sides of the reads: a pledge is registered before
			// its record is removed and released only after it is restored.
			if err := s.checkPledged(buyerID, targetID); err != nil {
				return err
			}
			if err := ensureFree(ctx, tx, buyerID, targetID); err != nil {
				return err
			}
			if err := s.checkPledged(buyerID, targetID); err != nil {
				return err
			}

			buyer, _, err := tx.Users.GetOrCreate(ctx, buyerID, "")
			if err != nil {
				return err
			}
			target, _, err := tx.Users.GetOrCreate(ctx, targetID, targetName)
			if err != nil {
				return err
			}

			price := SlavePrice(target.Balance)
			if buyer.Balance < price {
				return &InsufficientFundsError{Need: price, Have: buyer.Balance}
			}

			rec, err := tx.Slaves.Set(ctx, buyerID, targetID, price, targetName)
			if err != nil {
				return err
			}
			buyer, err = tx.Users.UpdateBalance(ctx, buyerID, -price)
			if err != nil {
				return err
			}
			desc := fmt.Sprintf("bought %s", targetName)
			if _, err := tx.Transactions.Create(ctx, buyerID, -price, model.TxTypeSlavePurchase, &desc); err != nil {
				return err
			}

			res = &Purchase{Slave: rec, Price: price, Balance: buyer.Balance}
			return nil
		})
	})
	if err != nil {
		return nil, wrapMarketErr("failed to buy slave", err)
	}
	return res, nil
}

// ensureFree checks the one-slave-per-owner and one-owner-per-slave rules.
func ensureFree(ctx context.Context, tx *repository.Store, buyerID, targetID int64) error {
	checks := []struct {
		lookup func(context.Context, int64) (*model.Slave, error)
		id     int64
		err    error
	}{
		{tx.Slaves.GetByOwner, buyerID, ErrAlreadyOwner},
		{tx.Slaves.GetBySlave, buyerID, ErrBuyerEnslaved},
		{tx.Slaves.GetBySlave, targetID, ErrTargetEnslaved},
	}
	for _, c := range checks {
		_, err := c.lookup(ctx, c.id)
		if err == nil {
			return c.err
		}
		if !errors.Is(err, repository.ErrSlaveNotFound) {
			return err
		}
	}
	return nil
}

// Buyout lets a slave pay their recorded purchase price to go free.
func (s *SlaveService) Buyout(ctx context.Context, slaveID int64) (*model.Slave, int64, error) {
	if err := s.checkPledged(slaveID); err != nil {
		return nil, 0, err
	}
	rec, err := s.store.Slaves.GetBySlave(ctx, slaveID)
	if err != nil {
		if errors.Is(err, repository.ErrSlaveNotFound) {
			return nil, 0, ErrNotEnslaved
		}
		return nil, 0, fmt.Errorf("failed to get owner: %w", err)
	}

	var balance int64
	err = s.locks.WithLocks([]int64{slaveID, rec.OwnerID}, func() error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			// The record may have changed while waiting for the locks.
			cur, err := tx.Slaves.GetBySlave(ctx, slaveID)
			if err != nil {
				if errors.Is(err, repository.ErrSlaveNotFound) {
					return ErrNotEnslaved
				}
				return err
			}
			rec = cur

			user, _, err := tx.Users.GetOrCreate(ctx, slaveID, "")
			if err != nil {
				return err
			}
			if user.Balance < rec.PurchasePrice {
				return &InsufficientFundsError{Need: rec.PurchasePrice, Have: user.Balance}
			}

			if _, err := tx.Slaves.RemoveByOwner(ctx, rec.OwnerID); err != nil {
				return err
			}
			user, err = tx.Users.UpdateBalance(ctx, slaveID, -rec.PurchasePrice)
			if err != nil {
				return err
			}
			if _, err := tx.Transactions.Create(ctx, slaveID, -rec.PurchasePrice, model.TxTypeSlaveBuyout, nil); err != nil {
				return err
			}
			balance = user.Balance
			return nil
		})
	})
	if err != nil {
		return nil, 0, wrapMarketErr("failed to buy out", err)
	}
	return rec, balance, nil
}

// Free releases the owner's slave without payment. Reports whether one existed.
func (s *SlaveService) Free(ctx context.Context, ownerID int64) (bool, error) {
	var removed bool
	err := s.locks.WithLock(ownerID, func() error {
		var err error
		removed, err = s.store.Slaves.RemoveByOwner(ctx, ownerID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to free slave: %w", err)
	}
	return removed, nil
}

// SlaveInfo is a user's position in the slave market.
type SlaveInfo struct {
	Balance int64
	Price   int64
	// Owned is the user's slave, if any.
	Owned        *model.Slave
	OwnedBalance int64
	// OwnedBy is set when the user is someone's slave.
	OwnedBy *model.Slave
}

// Info describes what userID owns and who owns userID.
func (s *SlaveService) Info(ctx context.Context, userID int64) (*SlaveInfo, error) {
	info := &SlaveInfo{}

	user, err := s.store.Users.GetByID(ctx, userID)
	switch {
	case err == nil:
		info.Balance = user.Balance
	case errors.Is(err, repository.ErrUserNotFound):
		info.Balance = repository.InitialBalance
	default:
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	info.Price = SlavePrice(info.Balance)

	owned, err := s.store.Slaves.GetByOwner(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrSlaveNotFound) {
		return nil, fmt.Errorf("failed to get slave: %w", err)
	}
	if owned != nil {
		info.Owned = owned
		if u, err := s.store.Users.GetByID(ctx, owned.SlaveID); err == nil {
			info.OwnedBalance = u.Balance
		}
	}

	ownedBy, err := s.store.Slaves.GetBySlave(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrSlaveNotFound) {
		return nil, fmt.Errorf("failed to get owner: %w", err)
	}
	info.OwnedBy = ownedBy

	return info, nil
}

func wrapMarketErr(msg string, err error) error {
	for _, sentinel := range []error{
		ErrAlreadyOwner, ErrBuyerEnslaved, ErrTargetEnslaved, ErrInsufficientFunds, ErrNotEnslaved, ErrPledged,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
