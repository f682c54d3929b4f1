package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-blackjack-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
)

// InitialBalance is credited to every new account.
const InitialBalance int64 = 1000

const userColumns = `telegram_id, username, balance, last_daily_claim, created_at, updated_at`

// UserRepository handles user data persistence.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.TelegramID,
		&user.Username,
		&user.Balance,
		&user.LastDailyClaim,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create creates a user with the initial balance.
func (r *UserRepository) Create(ctx context.Context, telegramID int64, username string) (*model.User, error) {
	query := `
		INSERT INTO users (telegram_id, username, balance, last_daily_claim, created_at, updated_at)
		VALUES ($1, $2, $3, 0, NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, telegramID, username, InitialBalance))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by their Telegram ID.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, telegramID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user, creating one if it doesn't exist.
// The bool reports whether the user was created.
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID int64, username string) (*model.User, bool, error) {
	query := `
		INSERT INTO users (telegram_id, username, balance, last_daily_claim, created_at, updated_at)
		VALUES ($1, $2, $3, 0, NOW(), NOW())
		ON CONFLICT (telegram_id) DO NOTHING
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, telegramID, username, InitialBalance))
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	// Conflict: the row already existed.
	user, err = r.GetByID(ctx, telegramID)
	if err != nil {
		return nil, false, err
	}
	return user, false, nil
}

// UpdateBalance adds amount (which may be negative) to the balance.
func (r *UserRepository) UpdateBalance(ctx context.Context, telegramID int64, amount int64) (*model.User, error) {
	query := `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE telegram_id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, telegramID, amount))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	return user, nil
}

// UpdateDailyClaim records when the daily reward was last claimed.
func (r *UserRepository) UpdateDailyClaim(ctx context.Context, telegramID int64, claimTime int64) (*model.User, error) {
	query := `
		UPDATE users
		SET last_daily_claim = $2, updated_at = NOW()
		WHERE telegram_id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, telegramID, claimTime))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update daily claim: %w", err)
	}
	return user, nil
}

// CanClaimDaily reports whether cooldown has passed since the last claim at now,
// and otherwise how long remains.
func (r *UserRepository) CanClaimDaily(ctx context.Context, telegramID int64, cooldown time.Duration, now time.Time) (bool, time.Duration, error) {
	user, err := r.GetByID(ctx, telegramID)
	if err != nil {
		return false, 0, err
	}
	wait := DailyWait(user.LastDailyClaim, cooldown, now)
	return wait == 0, wait, nil
}

// DailyWait is how long a user who last claimed at lastClaim (unix seconds,
// zero for never) must still wait at now.
func DailyWait(lastClaim int64, cooldown time.Duration, now time.Time) time.Duration {
	if lastClaim == 0 {
		return 0
	}
	next := time.Unix(lastClaim, 0).Add(cooldown)
	if !now.Before(next) {
		return 0
	}
	return next.Sub(now)
}

// UpdateUsername stores the user's current Telegram name.
func (r *UserRepository) UpdateUsername(ctx context.Context, telegramID int64, username string) error {
	const query = `
		UPDATE users
		SET username = $2, updated_at = NOW()
		WHERE telegram_id = $1
	`

	result, err := r.db.Exec(ctx, query, telegramID, username)
	if err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetTopUsers retrieves the richest users.
func (r *UserRepository) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY balance DESC LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// AddBalanceAll credits every user and returns the credited IDs.
func (r *UserRepository) AddBalanceAll(ctx context.Context, amount int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE users
		SET balance = balance + $1, updated_at = NOW()
		RETURNING telegram_id`, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to credit users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to collect credited users: %w", err)
	}
	return ids, nil
}
