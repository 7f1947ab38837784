package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/eaglebank/user-accounts/internal/apperr"
	"github.com/eaglebank/user-accounts/internal/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{"id", "name", "username", "password_hash", "token", "status", "creation_date", "birth_date"}

func newRepoWithMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(db), mock
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFindAll(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows(userRowColumns).
		AddRow(1, "Alice", "alice", "h1", "t1", "ONLINE", day(2026, time.October, 1), nil).
		AddRow(2, "Bob", "bob", "h2", "t2", "OFFLINE", day(2026, time.October, 2), day(1990, time.May, 1))
	mock.ExpectQuery(`(?s)^SELECT\s+id, name, username.*FROM users ORDER BY id$`).WillReturnRows(rows)

	users, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, models.StatusOnline, users[0].Status)
	assert.Equal(t, "01.10.2026", users[0].CreationDate)
	assert.Empty(t, users[0].BirthDate)
	assert.Equal(t, "01.05.1990", users[1].BirthDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAll_Empty(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM users ORDER BY id`).WillReturnRows(sqlmock.NewRows(userRowColumns))

	users, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestFindByID_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM users WHERE id = \$1$`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(7, "Test User", "testUsername", "hash", "tok", "ONLINE", day(2026, time.October, 14), nil))

	user, err := repo.FindByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, "14.10.2026", user.CreationDate)
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM users WHERE id = \$1$`).WithArgs(int64(9999)).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 9999)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "User with ID 9999 not found", err.Error())
}

func TestFindByUsernameAndName(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM users WHERE username = \$1$`).WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(1, "Alice", "alice", "h", "t", "ONLINE", day(2026, time.October, 1), nil))
	mock.ExpectQuery(`FROM users WHERE name = \$1$`).WithArgs("Nobody").WillReturnError(sql.ErrNoRows)

	user, err := repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)

	_, err = repo.FindByName(context.Background(), "Nobody")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByUsername_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`WHERE username = \$1`).WithArgs("alice").WillReturnError(errors.New("db down"))

	_, err := repo.FindByUsername(context.Background(), "alice")
	require.Error(t, err)
	assert.Regexp(t, `failed to get user: .*db down`, err.Error())
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestSave_InsertAssignsID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+users\s*\(name, username, password_hash, token, status, creation_date, birth_date\).*RETURNING\s+id\s*$`).
		WithArgs("Test User", "testUsername", "hash", "tok", "ONLINE", day(2026, time.October, 14), nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	user := &models.User{
		Name: "Test User", Username: "testUsername", PasswordHash: "hash",
		Token: "tok", Status: models.StatusOnline, CreationDate: "14.10.2026",
	}
	saved, err := repo.Save(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, int64(42), saved.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_InsertUniqueViolation(t *testing.T) {
	tests := []struct {
		name    string
		pqErr   *pq.Error
		message string
	}{
		{
			name:    "username constraint",
			pqErr:   &pq.Error{Code: "23505", Constraint: "users_username_key"},
			message: "The username provided is not unique. Therefore, the user could not be created!",
		},
		{
			name:    "name constraint",
			pqErr:   &pq.Error{Code: "23505", Constraint: "users_name_key"},
			message: "The name provided is not unique. Therefore, the user could not be created!",
		},
		{
			name:    "unnamed constraint falls back to detail",
			pqErr:   &pq.Error{Code: "23505", Detail: "Key (username)=(bob) already exists."},
			message: "The username provided is not unique. Therefore, the user could not be created!",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			mock.ExpectQuery(`INSERT\s+INTO\s+users`).WillReturnError(tt.pqErr)

			_, err := repo.Save(context.Background(), &models.User{
				Name: "n", Username: "bob", Status: models.StatusOnline, CreationDate: "14.10.2026",
			})
			require.Error(t, err)
			assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestSave_Update(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)^\s*UPDATE users\s+SET name = \$2, username = \$3.*WHERE id = \$1\s*$`).
		WithArgs(int64(5), "Alice", "alice2", "hash", "tok2", "OFFLINE", day(2026, time.October, 1), day(1990, time.May, 1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := repo.Save(context.Background(), &models.User{
		ID: 5, Name: "Alice", Username: "alice2", PasswordHash: "hash", Token: "tok2",
		Status: models.StatusOffline, CreationDate: "01.10.2026", BirthDate: "01.05.1990",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_UpdateMissingRow(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`UPDATE users`).WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Save(context.Background(), &models.User{ID: 9, Status: models.StatusOffline, CreationDate: "01.10.2026"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSave_UpdateUsernameCollision(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`UPDATE users`).WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})

	_, err := repo.Save(context.Background(), &models.User{ID: 9, Username: "taken", Status: models.StatusOnline, CreationDate: "01.10.2026"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "could not be updated")
}

func TestSave_RejectsMalformedDates(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	_, err := repo.Save(context.Background(), &models.User{CreationDate: "2026-10-14"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = repo.Save(context.Background(), &models.User{CreationDate: "14.10.2026", BirthDate: "1990-05-01"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictError(t *testing.T) {
	assert.NoError(t, ConflictError("created", false, false))
	assert.EqualError(t, ConflictError("created", true, true),
		"The username and the name provided are not unique. Therefore, the user could not be created!")
	assert.EqualError(t, ConflictError("created", false, true),
		"The name provided is not unique. Therefore, the user could not be created!")
}
