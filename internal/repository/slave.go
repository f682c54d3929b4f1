package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-blackjack-bot/internal/model"
)

// ErrSlaveNotFound is returned when no ownership record matches.
var ErrSlaveNotFound = errors.New("slave not found")

const slaveColumns = `owner_id, slave_id, purchase_price, slave_name, created_at`

// SlaveRepository persists ownership records. owner_id is the primary key,
// so an owner holds at most one slave, and slave_id is unique.
type SlaveRepository struct {
	db DBTX
}

// NewSlaveRepository creates a new SlaveRepository instance.
func NewSlaveRepository(pool *pgxpool.Pool) *SlaveRepository {
	return &SlaveRepository{db: pool}
}

func scanSlave(row pgx.Row) (*model.Slave, error) {
	var s model.Slave
	err := row.Scan(&s.OwnerID, &s.SlaveID, &s.PurchasePrice, &s.SlaveName, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlaveNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetByOwner returns the slave owned by ownerID.
func (r *SlaveRepository) GetByOwner(ctx context.Context, ownerID int64) (*model.Slave, error) {
	query := `SELECT ` + slaveColumns + ` FROM slaves WHERE owner_id = $1`

	s, err := scanSlave(r.db.QueryRow(ctx, query, ownerID))
	if err != nil && !errors.Is(err, ErrSlaveNotFound) {
		return nil, fmt.Errorf("failed to get slave: %w", err)
	}
	return s, err
}

// GetBySlave returns the record in which slaveID is owned.
func (r *SlaveRepository) GetBySlave(ctx context.Context, slaveID int64) (*model.Slave, error) {
	query := `SELECT ` + slaveColumns + ` FROM slaves WHERE slave_id = $1`

	s, err := scanSlave(r.db.QueryRow(ctx, query, slaveID))
	if err != nil && !errors.Is(err, ErrSlaveNotFound) {
		return nil, fmt.Errorf("failed to get slave owner: %w", err)
	}
	return s, err
}

// Set makes ownerID the owner of slaveID, replacing any slave ownerID held.
func (r *SlaveRepository) Set(ctx context.Context, ownerID, slaveID, price int64, name string) (*model.Slave, error) {
	query := `
		INSERT INTO slaves (owner_id, slave_id, purchase_price, slave_name, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (owner_id) DO UPDATE
		SET slave_id = EXCLUDED.slave_id,
		    purchase_price = EXCLUDED.purchase_price,
		    slave_name = EXCLUDED.slave_name,
		    created_at = NOW()
		RETURNING ` + slaveColumns

	s, err := scanSlave(r.db.QueryRow(ctx, query, ownerID, slaveID, price, name))
	if err != nil {
		return nil, fmt.Errorf("failed to set slave: %w", err)
	}
	return s, nil
}

// RemoveByOwner deletes ownerID's record. It reports whether one existed.
func (r *SlaveRepository) RemoveByOwner(ctx context.Context, ownerID int64) (bool, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM slaves WHERE owner_id = $1`, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to remove slave: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
