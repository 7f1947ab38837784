package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eaglebank/user-accounts/internal/apperr"
	"github.com/eaglebank/user-accounts/internal/dates"
	"github.com/eaglebank/user-accounts/internal/models"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// constraint name -> user field
var uniqueConstraints = map[string]string{
	"users_username_key": "username",
	"users_name_key":     "name",
}

const userColumns = `id, name, username, password_hash, token, status, creation_date, birth_date`

// UserRepository is the PostgreSQL store for users and the source of truth.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindAll returns every user in insertion order.
func (r *UserRepository) FindAll(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return r.findOne(ctx, "id", id, fmt.Sprintf("User with ID %d not found", id))
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username", username, "user not found")
}

func (r *UserRepository) FindByName(ctx context.Context, name string) (*models.User, error) {
	return r.findOne(ctx, "name", name, "user not found")
}

// column is one of the fixed names above, never client input.
func (r *UserRepository) findOne(ctx context.Context, column string, value any, notFound string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(notFound)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Save inserts a user with ID 0 and updates any other. The stored user is
// returned with the assigned ID.
func (r *UserRepository) Save(ctx context.Context, user *models.User) (*models.User, error) {
	created, err := dates.ParseStored(user.CreationDate)
	if err != nil {
		return nil, apperr.Validation("invalid creation date", err)
	}
	birth, err := nullDate(user.BirthDate)
	if err != nil {
		return nil, apperr.Validation("invalid birth date", err)
	}

	if user.ID == 0 {
		query := `
			INSERT INTO users (name, username, password_hash, token, status, creation_date, birth_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`
		err := r.db.QueryRowContext(ctx, query,
			user.Name, user.Username, user.PasswordHash, user.Token, string(user.Status), created, birth,
		).Scan(&user.ID)
		if err != nil {
			return nil, translateWriteError("created", "failed to create user", err)
		}
		return user, nil
	}

	query := `
		UPDATE users
		SET name = $2, username = $3, password_hash = $4, token = $5, status = $6,
			creation_date = $7, birth_date = $8
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Username, user.PasswordHash, user.Token, string(user.Status), created, birth,
	)
	if err != nil {
		return nil, translateWriteError("updated", "failed to update user", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperr.NotFound(fmt.Sprintf("User with ID %d not found", user.ID))
	}
	return user, nil
}

// Ping reports whether the database is reachable.
func (r *UserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ConflictError builds the uniqueness failure for the given colliding fields.
// action is "created" or "updated".
func ConflictError(action string, usernameTaken, nameTaken bool) error {
	var fields, verb string
	switch {
	case usernameTaken && nameTaken:
		fields, verb = "username and the name", "are"
	case usernameTaken:
		fields, verb = "username", "is"
	case nameTaken:
		fields, verb = "name", "is"
	default:
		return nil
	}
	return apperr.Conflict(fmt.Sprintf(
		"The %s provided %s not unique. Therefore, the user could not be %s!", fields, verb, action))
}

func translateWriteError(action, msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		field := uniqueConstraints[pqErr.Constraint]
		if field == "" {
			field = constraintFieldFromDetail(pqErr.Detail)
		}
		return ConflictError(action, field == "username", field != "username")
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Detail looks like `Key (username)=(bob) already exists.`
func constraintFieldFromDetail(detail string) string {
	if strings.HasPrefix(detail, "Key (username)") {
		return "username"
	}
	return "name"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user    models.User
		status  string
		created time.Time
		birth   sql.NullTime
	)
	err := row.Scan(
		&user.ID, &user.Name, &user.Username, &user.PasswordHash, &user.Token,
		&status, &created, &birth,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.Status = models.Status(status)
	user.CreationDate = dates.Format(created)
	if birth.Valid {
		user.BirthDate = dates.Format(birth.Time)
	}
	return &user, nil
}

func nullDate(s string) (sql.NullTime, error) {
	if s == "" {
		return sql.NullTime{}, nil
	}
	t, err := dates.ParseStored(s)
	if err != nil {
		return sql.NullTime{}, err
	}
	return sql.NullTime{Time: t, Valid: true}, nil
}
