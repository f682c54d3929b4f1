package blackjack

import "context"

// Economy is the balance and slave store the game settles against.
// AddBalance must report every failure; a silently dropped mutation is a bug.
type Economy interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	AddBalance(ctx context.Context, userID, delta int64, txType string) (int64, error)
	Slave(ctx context.Context, ownerID int64) (*Stake, error)
	SetSlave(ctx context.Context, ownerID int64, s Stake) error
	RemoveSlave(ctx context.Context, ownerID int64) error
	SlaveOwner(ctx context.Context, slaveID int64) (ownerID int64, ok bool, err error)
}

// JoinPolicy decides whether a user may take a seat.
type JoinPolicy interface {
	CanJoin(ctx context.Context, userID int64) (bool, error)
}

// MinBalancePolicy admits users holding at least Min coins.
type MinBalancePolicy struct {
	Economy Economy
	Min     int64
}

func (p MinBalancePolicy) CanJoin(ctx context.Context, userID int64) (bool, error) {
	if p.Min <= 0 {
		return true, nil
	}
	bal, err := p.Economy.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return bal >= p.Min, nil
}
