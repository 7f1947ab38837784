package repository

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/eaglebank/user-accounts/internal/models"
	sharedredis "github.com/eaglebank/user-accounts/internal/redis"
	goredis "github.com/redis/go-redis/v9"
)

const userViewKeyPrefix = "user:view:"

// UserReadRepository serves single-user views from Redis, falling back to
// PostgreSQL on a miss.
type UserReadRepository struct {
	store *UserRepository
	cache *sharedredis.ViewCache[models.UserView]
}

func NewUserReadRepository(store *UserRepository, redisClient *goredis.Client, ttl time.Duration, logger *slog.Logger) *UserReadRepository {
	return &UserReadRepository{
		store: store,
		cache: sharedredis.NewViewCache[models.UserView](redisClient, ttl, logger),
	}
}

// GetByID returns a UserView from Redis first, then PostgreSQL.
func (r *UserReadRepository) GetByID(ctx context.Context, id int64) (*models.UserView, error) {
	if view, ok := r.cache.Get(ctx, userViewKey(id)); ok {
		return view, nil
	}

	user, err := r.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := user.View()
	r.CacheUserView(ctx, view)
	return view, nil
}

// ListSummaries reads the list projection straight from the store.
func (r *UserReadRepository) ListSummaries(ctx context.Context) ([]models.UserSummary, error) {
	users, err := r.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.UserSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, users[i].Summary())
	}
	return summaries, nil
}

// CacheUserView stores the Redis read model for a user.
func (r *UserReadRepository) CacheUserView(ctx context.Context, view *models.UserView) {
	r.cache.Set(ctx, userViewKey(view.ID), view)
}

// InvalidateUserView drops the cached view so the next read goes to the store.
// Called by the command service after every mutation.
func (r *UserReadRepository) InvalidateUserView(ctx context.Context, id int64) {
	r.cache.Delete(ctx, userViewKey(id))
}

func userViewKey(id int64) string {
	return userViewKeyPrefix + strconv.FormatInt(id, 10)
}
