package query

import (
	"context"

	"github.com/eaglebank/user-accounts/internal/cqrs"
	"github.com/eaglebank/user-accounts/internal/models"
)

// UserViewReader is the read model behind the query service.
type UserViewReader interface {
	GetByID(ctx context.Context, id int64) (*models.UserView, error)
	ListSummaries(ctx context.Context) ([]models.UserSummary, error)
}

// PresenceReader reports which users are ONLINE.
type PresenceReader interface {
	Online(ctx context.Context) ([]int64, error)
}

// UserQueryService reads user views from the Redis cache (with a Postgres
// fallback) and online ids from the presence projection.
type UserQueryService struct {
	readRepo UserViewReader
	presence PresenceReader
}

func NewUserQueryService(readRepo UserViewReader, presence PresenceReader) *UserQueryService {
	return &UserQueryService{readRepo: readRepo, presence: presence}
}

func (s *UserQueryService) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	return s.readRepo.ListSummaries(ctx)
}

func (s *UserQueryService) GetUser(ctx context.Context, q cqrs.GetUserQuery) (*models.UserView, error) {
	return s.readRepo.GetByID(ctx, q.UserID)
}

func (s *UserQueryService) OnlineUsers(ctx context.Context) ([]int64, error) {
	return s.presence.Online(ctx)
}
