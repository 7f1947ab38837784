package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eaglebank/user-accounts/internal/apperr"
	"github.com/eaglebank/user-accounts/internal/cqrs"
	"github.com/eaglebank/user-accounts/internal/dates"
	"github.com/eaglebank/user-accounts/internal/events"
	"github.com/eaglebank/user-accounts/internal/models"
	"github.com/eaglebank/user-accounts/internal/repository"
	"github.com/eaglebank/user-accounts/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the write-side persistence used by the command service.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByName(ctx context.Context, name string) (*models.User, error)
	Save(ctx context.Context, user *models.User) (*models.User, error)
}

// ViewInvalidator drops a user's cached read model after a mutation so the
// next read is served from the store.
type ViewInvalidator interface {
	InvalidateUserView(ctx context.Context, id int64)
}

type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// UserCommandService writes user state to PostgreSQL and evicts the Redis
// read model of every user it changes.
type UserCommandService struct {
	store     UserStore
	views     ViewInvalidator
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewUserCommandService(store UserStore, views ViewInvalidator, publisher EventPublisher, logger *slog.Logger) *UserCommandService {
	return &UserCommandService{
		store:     store,
		views:     views,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateUser registers a user as ONLINE with a fresh token. Duplicate
// username and/or name is a Conflict naming the colliding field(s).
func (s *UserCommandService) CreateUser(ctx context.Context, cmd cqrs.CreateUserCommand) (*models.User, error) {
	passwordHash, err := utils.HashPassword(cmd.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperr.Validation(fmt.Sprintf("Password must be at most %d bytes", utils.MaxPasswordBytes), err)
	}
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}
	user := &models.User{
		Name:         cmd.Name,
		Username:     cmd.Username,
		PasswordHash: passwordHash,
		Token:        utils.NewToken(),
		Status:       models.StatusOnline,
		CreationDate: dates.Format(s.now()),
	}

	if err := s.checkUnique(ctx, user); err != nil {
		return nil, err
	}

	// The unique constraints still decide when two registrations race past
	// checkUnique; Save reports that as a Conflict too.
	saved, err := s.store.Save(ctx, user)
	if err != nil {
		return nil, err
	}

	s.views.InvalidateUserView(ctx, saved.ID)
	s.publish(ctx, events.UserCreated, events.UserCreatedEvent{
		UserID:   saved.ID,
		Username: saved.Username,
		Name:     saved.Name,
		Status:   string(saved.Status),
	})
	s.logger.DebugContext(ctx, "created user", "userId", saved.ID, "username", saved.Username)
	return saved, nil
}

func (s *UserCommandService) checkUnique(ctx context.Context, user *models.User) error {
	usernameTaken, err := s.exists(s.store.FindByUsername(ctx, user.Username))
	if err != nil {
		return err
	}
	nameTaken, err := s.exists(s.store.FindByName(ctx, user.Name))
	if err != nil {
		return err
	}
	return repository.ConflictError("created", usernameTaken, nameTaken)
}

func (s *UserCommandService) exists(_ *models.User, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// LoginUser verifies credentials and reissues the token in memory. ok is
// false, with a nil error, for an unknown username or a wrong password alike.
// Nothing is persisted; callers follow up with UpdateStatus.
func (s *UserCommandService) LoginUser(ctx context.Context, cmd cqrs.LoginCommand) (*models.User, bool, error) {
	user, err := s.store.FindByUsername(ctx, cmd.Username)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !utils.CheckPassword(cmd.Password, user.PasswordHash) {
		return nil, false, nil
	}
	user.Token = utils.NewToken()
	return user, true, nil
}

// GetUserByID loads the full write model.
func (s *UserCommandService) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.store.FindByID(ctx, id)
}

// UpdateStatus sets and persists the user's status, together with any other
// in-memory change such as a token reissued by LoginUser.
func (s *UserCommandService) UpdateStatus(ctx context.Context, user *models.User, status models.Status) error {
	if !status.Valid() {
		return apperr.Validation(fmt.Sprintf("invalid status %q", status), nil)
	}
	user.Status = status
	if _, err := s.store.Save(ctx, user); err != nil {
		return err
	}

	s.views.InvalidateUserView(ctx, user.ID)
	s.publish(ctx, events.UserStatusChanged, events.UserStatusChangedEvent{
		UserID: user.ID,
		Status: string(status),
	})
	return nil
}

// UpdateUser applies the non-empty fields of cmd and persists the result.
// On error user is left unchanged.
func (s *UserCommandService) UpdateUser(ctx context.Context, user *models.User, cmd cqrs.UpdateUserCommand) error {
	updated := *user
	if cmd.Username != "" {
		updated.Username = cmd.Username
	}
	if cmd.BirthDate != "" {
		birthDate, err := dates.Reformat(cmd.BirthDate)
		if err != nil {
			return apperr.Validation("Invalid birth date, expected yyyy-MM-dd", err)
		}
		updated.BirthDate = birthDate
	}

	if _, err := s.store.Save(ctx, &updated); err != nil {
		return err
	}
	*user = updated

	s.views.InvalidateUserView(ctx, user.ID)
	s.publish(ctx, events.UserUpdated, events.UserUpdatedEvent{
		UserID:    user.ID,
		Username:  user.Username,
		BirthDate: user.BirthDate,
	})
	return nil
}

func (s *UserCommandService) publish(ctx context.Context, eventType string, data any) {
	if err := s.publisher.Publish(ctx, events.UserEventsStream, eventType, data); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "type", eventType, "error", err)
	}
}
