package directory

import (
	"context"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-user-directory/config"
	"github.com/FACorreiaa/go-user-directory/internal/api"
)

var userRowColumns = []string{"id", "name", "email", "phone", "password_hash", "status", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresUserRepo) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return mockPool, NewPostgresUserRepo(mockPool, slog.Default())
}

func userRow(phone *string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(userRowColumns).
		AddRow(int64(1), "Ana", "ana@example.com", phone, "$2a$10$hash", true, now, now)
}

func TestPostgresUserRepoCreateUser(t *testing.T) {
	params := api.CreateUserParams{
		Name:  "Ana",
		Email: "ana@example.com",
		Phone: strPtr("+15550001"),
	}

	t.Run("Success", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		mockPool.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (name, email, phone, password_hash)")).
			WithArgs(params.Name, params.Email, params.Phone, "hashed").
			WillReturnRows(userRow(strPtr("+15550001")))

		user, err := repo.CreateUser(context.Background(), params, "hashed")

		assert.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
		assert.Equal(t, "ana@example.com", user.Email)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UniqueViolationNamesTheField", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		mockPool.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs(params.Name, params.Email, params.Phone, "hashed").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

		user, err := repo.CreateUser(context.Background(), params, "hashed")

		assert.Nil(t, user)
		var cErr *api.ConflictError
		assert.ErrorAs(t, err, &cErr)
		assert.Equal(t, "email", cErr.Field)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("PhoneViolation", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		mockPool.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs(params.Name, params.Email, params.Phone, "hashed").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_phone_key"})

		_, err := repo.CreateUser(context.Background(), params, "hashed")

		var cErr *api.ConflictError
		assert.ErrorAs(t, err, &cErr)
		assert.Equal(t, "phone", cErr.Field)
	})
}

func TestPostgresUserRepoGetUserByID(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		mockPool.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
			WithArgs(int64(1)).
			WillReturnRows(userRow(nil))

		user, err := repo.GetUserByID(context.Background(), 1)

		assert.NoError(t, err)
		assert.Equal(t, "Ana", user.Name)
		assert.Nil(t, user.Phone)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		mockPool.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
			WithArgs(int64(42)).
			WillReturnError(pgx.ErrNoRows)

		user, err := repo.GetUserByID(context.Background(), 42)

		assert.Nil(t, user)
		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}

func TestPostgresUserRepoUpdateUser(t *testing.T) {
	t.Run("DynamicSetOnlyIncludesProvidedFields", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		status := false
		mockPool.ExpectQuery(regexp.QuoteMeta("UPDATE users SET status = $1, updated_at = $2 WHERE id = $3")).
			WithArgs(status, pgxmock.AnyArg(), int64(1)).
			WillReturnRows(userRow(strPtr("+15550001")))

		user, err := repo.UpdateUser(context.Background(), 1, api.UpdateUserParams{Status: &status}, nil)

		assert.NoError(t, err)
		assert.NotNil(t, user)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("PasswordHashIncludedWhenPresent", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		hash := "$2a$10$newhash"
		mockPool.ExpectQuery(regexp.QuoteMeta("UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3")).
			WithArgs(hash, pgxmock.AnyArg(), int64(1)).
			WillReturnRows(userRow(strPtr("+15550001")))

		_, err := repo.UpdateUser(context.Background(), 1, api.UpdateUserParams{}, &hash)

		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NoFieldsFallsBackToRead", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		mockPool.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
			WithArgs(int64(1)).
			WillReturnRows(userRow(strPtr("+15550001")))

		user, err := repo.UpdateUser(context.Background(), 1, api.UpdateUserParams{}, nil)

		assert.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		name := "Bea"
		mockPool.ExpectQuery(regexp.QuoteMeta("UPDATE users SET name = $1, updated_at = $2 WHERE id = $3")).
			WithArgs(name, pgxmock.AnyArg(), int64(42)).
			WillReturnError(pgx.ErrNoRows)

		user, err := repo.UpdateUser(context.Background(), 42, api.UpdateUserParams{Name: &name}, nil)

		assert.Nil(t, user)
		assert.ErrorIs(t, err, api.ErrNotFound)
	})

	t.Run("UniqueViolation", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		email := "taken@example.com"
		mockPool.ExpectQuery(regexp.QuoteMeta("UPDATE users SET email = $1, updated_at = $2 WHERE id = $3")).
			WithArgs(email, pgxmock.AnyArg(), int64(1)).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

		_, err := repo.UpdateUser(context.Background(), 1, api.UpdateUserParams{Email: &email}, nil)

		var cErr *api.ConflictError
		assert.ErrorAs(t, err, &cErr)
		assert.Equal(t, "email", cErr.Field)
	})
}

func TestPostgresUserRepoDeleteUser(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		mockPool.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
			WithArgs(int64(1)).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		assert.NoError(t, repo.DeleteUser(context.Background(), 1))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		mockPool.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
			WithArgs(int64(42)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := repo.DeleteUser(context.Background(), 42)
		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}

func TestPostgresUserRepoSearchUsers(t *testing.T) {
	t.Run("KeywordMatchesAcrossFields", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		mockPool.ExpectQuery(regexp.QuoteMeta("WHERE name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1")).
			WithArgs("%ana%").
			WillReturnRows(userRow(strPtr("+15550001")))

		users, err := repo.SearchUsers(context.Background(), api.SearchFilters{Keyword: "ana"}, config.SearchModeKeyword)

		assert.NoError(t, err)
		assert.Len(t, users, 1)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("FacetedCombinesFiltersWithAnd", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		mockPool.ExpectQuery(regexp.QuoteMeta("WHERE name ILIKE $1 AND email ILIKE $2")).
			WithArgs("%ana%", "%example.com%").
			WillReturnRows(userRow(strPtr("+15550001")))

		users, err := repo.SearchUsers(context.Background(),
			api.SearchFilters{Name: "ana", Email: "example.com"}, config.SearchModeFaceted)

		assert.NoError(t, err)
		assert.Len(t, users, 1)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NoMatchesIsEmptyNotError", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		mockPool.ExpectQuery(regexp.QuoteMeta("WHERE name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1")).
			WithArgs("%nobody%").
			WillReturnRows(pgxmock.NewRows(userRowColumns))

		users, err := repo.SearchUsers(context.Background(), api.SearchFilters{Keyword: "nobody"}, config.SearchModeKeyword)

		assert.NoError(t, err)
		assert.Empty(t, users)
	})
}

func TestPostgresUserRepoFieldTaken(t *testing.T) {
	t.Run("Taken", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		mockPool.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)")).
			WithArgs("ana@example.com", int64(0)).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		taken, err := repo.FieldTaken(context.Background(), "email", "ana@example.com", 0)

		assert.NoError(t, err)
		assert.True(t, taken)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("ExcludesOwnRecord", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		mockPool.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM users WHERE phone = $1 AND id <> $2)")).
			WithArgs("+15550001", int64(7)).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

		taken, err := repo.FieldTaken(context.Background(), "phone", "+15550001", 7)

		assert.NoError(t, err)
		assert.False(t, taken)
	})

	t.Run("UnknownFieldRejected", func(t *testing.T) {
		_, repo := newMockRepo(t)

		_, err := repo.FieldTaken(context.Background(), "password", "x", 0)
		assert.Error(t, err)
	})
}
