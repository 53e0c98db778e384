package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/verse-scribe/internal/credit"
	apperrors "github.com/verse-scribe/internal/errors"
)

// querier is satisfied by both the pool and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreditRepository handles the per-user, per-date credit ledger
type CreditRepository struct {
	db *PostgresDB
}

// NewCreditRepository creates a new credit repository
func NewCreditRepository(db *PostgresDB) *CreditRepository {
	return &CreditRepository{db: db}
}

// AddEarned increments credits_earned for (user, date) and returns the new
// total for the day
func (r *CreditRepository) AddEarned(ctx context.Context, userID, date string, amount int) (int, error) {
	return addEarned(ctx, r.db.Pool(), userID, date, amount, 0)
}

// addEarned is an atomic add-and-return. With limit > 0 the increment is
// applied only while the new total stays within limit; otherwise a
// DAILY_LIMIT_REACHED error is returned and the row is unchanged.
func addEarned(ctx context.Context, q querier, userID, date string, amount, limit int) (int, error) {
	if amount < 0 {
		return 0, apperrors.NewInvalidParameterError("amount", "cannot be negative")
	}
	if limit > 0 && amount > limit {
		return 0, apperrors.NewDailyLimitError(date, 0, limit)
	}

	query := `
		INSERT INTO daily_credits (user_id, date, credits_earned)
		VALUES ($1, $2::date, $3)
		ON CONFLICT (user_id, date) DO UPDATE SET
			credits_earned = daily_credits.credits_earned + EXCLUDED.credits_earned,
			updated_at     = NOW()
		WHERE $4 <= 0 OR daily_credits.credits_earned + EXCLUDED.credits_earned <= $4
		RETURNING credits_earned
	`

	var total int
	err := q.QueryRow(ctx, query, userID, date, amount, limit).Scan(&total)
	if err == nil {
		return total, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to add earned credits: %w", err)
	}

	// The conditional update matched nothing: the cap would be exceeded
	var current int
	if err := q.QueryRow(ctx,
		`SELECT credits_earned FROM daily_credits WHERE user_id = $1 AND date = $2::date`,
		userID, date,
	).Scan(&current); err != nil {
		return 0, fmt.Errorf("failed to read daily credits: %w", err)
	}
	return 0, apperrors.NewDailyLimitError(date, current, limit)
}

// GetDaily returns the ledger row for one date. A date without a row reads
// as zero.
func (r *CreditRepository) GetDaily(ctx context.Context, userID, date string) (credit.DailyRow, error) {
	row := credit.DailyRow{Date: date}

	query := `
		SELECT credits_earned, credits_spent
		FROM daily_credits
		WHERE user_id = $1 AND date = $2::date
	`

	err := r.db.Pool().QueryRow(ctx, query, userID, date).Scan(&row.Earned, &row.Spent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return row, nil
		}
		return row, fmt.Errorf("failed to get daily credits: %w", err)
	}

	return row, nil
}

// GetMonth returns every row of a "YYYY-MM" month, ordered by date. The
// range is half-open so the last day of the month is included exactly once.
func (r *CreditRepository) GetMonth(ctx context.Context, userID, yearMonth string) ([]credit.DailyRow, error) {
	start, end, err := credit.MonthRange(yearMonth)
	if err != nil {
		return nil, apperrors.NewInvalidParameterError("month", err.Error())
	}

	query := `
		SELECT to_char(date, 'YYYY-MM-DD'), credits_earned, credits_spent
		FROM daily_credits
		WHERE user_id = $1 AND date >= $2::date AND date < $3::date
		ORDER BY date
	`

	rows, err := r.db.Pool().Query(ctx, query, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly credits: %w", err)
	}
	defer rows.Close()

	var out []credit.DailyRow
	for rows.Next() {
		var row credit.DailyRow
		if err := rows.Scan(&row.Date, &row.Earned, &row.Spent); err != nil {
			return nil, fmt.Errorf("failed to scan monthly credits: %w", err)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monthly credits: %w", err)
	}

	return out, nil
}
