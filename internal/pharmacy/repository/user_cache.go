package repository

import (
	"context"
	"database/sql"

	"github.com/agricare/agricare-backend/pkg/actor"
	"github.com/agricare/agricare-backend/pkg/database"
)

// UserCacheRepository stores the event-synced user cache used to resolve
// actor display names without calling the user service.
type UserCacheRepository struct {
	db *database.DB
}

// NewUserCacheRepository creates a new user cache repository
func NewUserCacheRepository(db *database.DB) *UserCacheRepository {
	return &UserCacheRepository{db: db}
}

// Upsert inserts or refreshes a cached user
func (r *UserCacheRepository) Upsert(ctx context.Context, user *actor.UserCache) error {
	query := `
		INSERT INTO user_cache (user_id, first_name, last_name, email, role_name, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			role_name = EXCLUDED.role_name,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		user.UserID, user.FirstName, user.LastName, user.Email, user.RoleName)
	return err
}

// GetByID gets a cached user. Returns nil without error when the user is
// not cached yet; callers fall back to the bare user ID.
func (r *UserCacheRepository) GetByID(ctx context.Context, userID string) (*actor.UserCache, error) {
	var user actor.UserCache
	query := `SELECT user_id, first_name, last_name, email, role_name FROM user_cache WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &user, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Delete removes a cached user
func (r *UserCacheRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_cache WHERE user_id = $1`, userID)
	return err
}
