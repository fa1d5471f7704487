package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"prediction-arena/internal/identity"
)

const (
	getProfileSQL = `SELECT id, username, wins, losses, total_score
    FROM profiles
    WHERE id = $1;`

	upsertProfileSQL = `INSERT INTO profiles (id, username, wins, losses, total_score)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (id) DO UPDATE
    SET
        username    = EXCLUDED.username,
        wins        = EXCLUDED.wins,
        losses      = EXCLUDED.losses,
        total_score = EXCLUDED.total_score;`

	leaderboardSQL = `SELECT username, wins, total_score
    FROM profiles
    ORDER BY total_score DESC, wins DESC
    LIMIT $1;`
)

// ProfileRepository implements the external persistence port over pgx.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository wraps an existing pool.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// Close releases the underlying pool.
func (r *ProfileRepository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// GetProfile fetches a profile by user id, returning nil when absent.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*identity.Profile, error) {
	row := r.pool.QueryRow(ctx, getProfileSQL, userID)

	var p identity.Profile
	if err := row.Scan(&p.ID, &p.Username, &p.Wins, &p.Losses, &p.TotalScore); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// UpsertProfile writes a profile record.
func (r *ProfileRepository) UpsertProfile(ctx context.Context, profile identity.Profile) error {
	_, err := r.pool.Exec(ctx, upsertProfileSQL,
		profile.ID, profile.Username, profile.Wins, profile.Losses, profile.TotalScore)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// Leaderboard lists the top profiles by total score.
func (r *ProfileRepository) Leaderboard(ctx context.Context, limit int) ([]identity.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, leaderboardSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []identity.LeaderboardEntry
	for rows.Next() {
		var e identity.LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.Wins, &e.TotalScore); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ identity.ProfileStore = (*ProfileRepository)(nil)
