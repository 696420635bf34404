package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"dodolink/internal/types"
)

// ProfileRepo manages the user_profiles table, keyed by the identity
// provider's user id. Rows are written once at registration; there is no
// update path.
type ProfileRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewProfileRepo creates a ProfileRepo backed by the given database
// connection (pool or transaction).
func NewProfileRepo(db DBTX, logger *slog.Logger) *ProfileRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileRepo{db: db, logger: logger}
}

// Create inserts the profile row for a freshly registered user.
func (r *ProfileRepo) Create(ctx context.Context, profile *types.Profile) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO user_profiles (id, full_name, email, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		profile.ID,
		profile.FullName,
		profile.Email,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create user profile", err)
	}
	return nil
}

// Get fetches a profile by user id. A missing row is ErrCodeNotFoundProfile.
func (r *ProfileRepo) Get(ctx context.Context, userID string) (*types.Profile, error) {
	var profile types.Profile
	err := r.db.QueryRow(ctx,
		`SELECT id, full_name, email, created_at
		 FROM user_profiles
		 WHERE id = $1`,
		userID,
	).Scan(&profile.ID, &profile.FullName, &profile.Email, &profile.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(
				types.ErrCodeNotFoundProfile,
				fmt.Sprintf("profile %s not found", userID),
				nil,
			)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch user profile", err)
	}
	return &profile, nil
}
