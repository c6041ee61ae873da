package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-user-directory/config"
	"github.com/FACorreiaa/go-user-directory/internal/api"
)

var _ UserRepo = (*PostgresUserRepo)(nil)

// PGXPool is the subset of pgxpool.Pool the repository needs. Declared
// here so tests can substitute a pgxmock pool.
type PGXPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepo defines the contract for user record persistence.
type UserRepo interface {
	// CreateUser inserts a new record and returns it with the assigned id.
	// A storage-level unique violation surfaces as *api.ConflictError.
	CreateUser(ctx context.Context, params api.CreateUserParams, passwordHash string) (*api.User, error)

	// GetUserByID returns api.ErrNotFound when no record holds the id.
	GetUserByID(ctx context.Context, id int64) (*api.User, error)

	// ListUsers returns all records in insertion order.
	ListUsers(ctx context.Context) ([]api.User, error)

	// UpdateUser overwrites only the fields present in params. passwordHash,
	// when non-nil, replaces the stored hash. Returns the updated record.
	UpdateUser(ctx context.Context, id int64, params api.UpdateUserParams, passwordHash *string) (*api.User, error)

	// DeleteUser hard-deletes the record. Returns api.ErrNotFound if absent.
	DeleteUser(ctx context.Context, id int64) error

	// SearchUsers matches records by substring. Keyword mode ORs the term
	// across name/email/phone; faceted mode ANDs the supplied filters.
	// No match is an empty result, not an error.
	SearchUsers(ctx context.Context, filters api.SearchFilters, mode string) ([]api.User, error)

	// FieldTaken reports whether another record (id <> excludeID) already
	// holds value in the given field. Pass excludeID 0 on create.
	FieldTaken(ctx context.Context, field, value string, excludeID int64) (bool, error)
}

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewPostgresUserRepo(pgpool PGXPool, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = "id, name, email, phone, password_hash, status, created_at, updated_at"

func scanUser(row pgx.Row) (*api.User, error) {
	var u api.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// conflictField maps a unique-index violation to the offending field so
// races that slip past the pre-check still report the same conflict.
func conflictField(pgErr *pgconn.PgError) string {
	switch pgErr.ConstraintName {
	case "users_email_key":
		return "email"
	case "users_phone_key":
		return "phone"
	case "users_name_key":
		return "name"
	}
	return ""
}

func (r *PostgresUserRepo) CreateUser(ctx context.Context, params api.CreateUserParams, passwordHash string) (*api.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "CreateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateUser"))

	query := `
        INSERT INTO users (name, email, phone, password_hash)
        VALUES ($1, $2, $3, $4)
        RETURNING ` + userColumns

	user, err := scanUser(r.pgpool.QueryRow(ctx, query, params.Name, params.Email, params.Phone, passwordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique violation
			field := conflictField(pgErr)
			l.WarnContext(ctx, "Unique constraint violated on insert",
				slog.String("constraint", pgErr.ConstraintName), slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Unique constraint violated")
			if field == "" {
				return nil, fmt.Errorf("user insert violated constraint %s: %w", pgErr.ConstraintName, api.ErrConflict)
			}
			return nil, &api.ConflictError{Field: field}
		}
		l.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating user: %w", err)
	}

	l.InfoContext(ctx, "User created", slog.Int64("userID", user.ID))
	span.SetAttributes(attribute.Int64("db.user.id", user.ID))
	span.SetStatus(codes.Ok, "User created")
	return user, nil
}

func (r *PostgresUserRepo) GetUserByID(ctx context.Context, id int64) (*api.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "GetUserByID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "users"),
		attribute.Int64("db.user.id", id),
	))
	defer span.End()

	query := "SELECT " + userColumns + " FROM users WHERE id = $1"
	user, err := scanUser(r.pgpool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "User not found")
			return nil, fmt.Errorf("user %d: %w", id, api.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}

	span.SetStatus(codes.Ok, "User fetched")
	return user, nil
}

func (r *PostgresUserRepo) ListUsers(ctx context.Context) ([]api.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "ListUsers", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "ListUsers"))

	query := "SELECT " + userColumns + " FROM users ORDER BY id"
	rows, err := r.pgpool.Query(ctx, query)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query users", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error listing users: %w", err)
	}
	defer rows.Close()

	users, err := collectUsers(rows)
	if err != nil {
		l.ErrorContext(ctx, "Failed to scan user rows", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading users: %w", err)
	}

	span.SetAttributes(attribute.Int("db.result.count", len(users)))
	span.SetStatus(codes.Ok, "Users listed")
	return users, nil
}

func (r *PostgresUserRepo) UpdateUser(ctx context.Context, id int64, params api.UpdateUserParams, passwordHash *string) (*api.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "UpdateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.Int64("db.user.id", id),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "UpdateUser"), slog.Int64("userID", id))

	// Build the SET clause only from fields present in the payload.
	var setClauses []string
	var args []interface{}
	argID := 1

	if params.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argID))
		args = append(args, *params.Name)
		argID++
		span.SetAttributes(attribute.Bool("update.name", true))
	}
	if params.Email != nil {
		setClauses = append(setClauses, fmt.Sprintf("email = $%d", argID))
		args = append(args, *params.Email)
		argID++
		span.SetAttributes(attribute.Bool("update.email", true))
	}
	if params.Phone != nil {
		setClauses = append(setClauses, fmt.Sprintf("phone = $%d", argID))
		args = append(args, *params.Phone)
		argID++
		span.SetAttributes(attribute.Bool("update.phone", true))
	}
	if params.Status != nil {
		setClauses = append(setClauses, fmt.Sprintf("status = $%d", argID))
		args = append(args, *params.Status)
		argID++
		span.SetAttributes(attribute.Bool("update.status", true))
	}
	if passwordHash != nil {
		setClauses = append(setClauses, fmt.Sprintf("password_hash = $%d", argID))
		args = append(args, *passwordHash)
		argID++
		span.SetAttributes(attribute.Bool("update.password", true))
	}

	if len(setClauses) == 0 {
		// Nothing to change; answer with the current record.
		l.WarnContext(ctx, "UpdateUser called with no fields to update")
		span.SetStatus(codes.Ok, "No update fields provided")
		return r.GetUserByID(ctx, id)
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argID))
	args = append(args, time.Now())
	argID++

	args = append(args, id)

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d RETURNING %s",
		strings.Join(setClauses, ", "), argID, userColumns)

	l.DebugContext(ctx, "Executing dynamic update query", slog.String("query", query), slog.Int("arg_count", len(args)))

	user, err := scanUser(r.pgpool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "User not found")
			return nil, fmt.Errorf("user %d: %w", id, api.ErrNotFound)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique violation
			field := conflictField(pgErr)
			l.WarnContext(ctx, "Unique constraint violated on update",
				slog.String("constraint", pgErr.ConstraintName), slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Unique constraint violated")
			if field == "" {
				return nil, fmt.Errorf("user update violated constraint %s: %w", pgErr.ConstraintName, api.ErrConflict)
			}
			return nil, &api.ConflictError{Field: field}
		}
		l.ErrorContext(ctx, "Failed to execute update query", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return nil, fmt.Errorf("database error updating user: %w", err)
	}

	l.InfoContext(ctx, "User updated")
	span.SetStatus(codes.Ok, "User updated")
	return user, nil
}

func (r *PostgresUserRepo) DeleteUser(ctx context.Context, id int64) error {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "DeleteUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "users"),
		attribute.Int64("db.user.id", id),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "DeleteUser"), slog.Int64("userID", id))

	tag, err := r.pgpool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		l.ErrorContext(ctx, "Failed to delete user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("database error deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "User not found")
		return fmt.Errorf("user %d: %w", id, api.ErrNotFound)
	}

	l.InfoContext(ctx, "User deleted")
	span.SetStatus(codes.Ok, "User deleted")
	return nil
}

func (r *PostgresUserRepo) SearchUsers(ctx context.Context, filters api.SearchFilters, mode string) ([]api.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "SearchUsers", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "users"),
		attribute.String("search.mode", mode),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "SearchUsers"), slog.String("mode", mode))

	var query string
	var args []interface{}

	if mode == config.SearchModeFaceted {
		var where []string
		argID := 1
		for _, f := range []struct {
			column, value string
		}{
			{"name", filters.Name},
			{"email", filters.Email},
			{"phone", filters.Phone},
		} {
			if f.value == "" {
				continue
			}
			where = append(where, fmt.Sprintf("%s ILIKE $%d", f.column, argID))
			args = append(args, "%"+f.value+"%")
			argID++
		}
		query = fmt.Sprintf("SELECT %s FROM users WHERE %s ORDER BY id", userColumns, strings.Join(where, " AND "))
	} else {
		query = "SELECT " + userColumns + " FROM users WHERE name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1 ORDER BY id"
		args = append(args, "%"+filters.Keyword+"%")
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query users", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error searching users: %w", err)
	}
	defer rows.Close()

	users, err := collectUsers(rows)
	if err != nil {
		l.ErrorContext(ctx, "Failed to scan user rows", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading search results: %w", err)
	}

	// Zero matches is a successful outcome; the service decides how to
	// report it.
	span.SetAttributes(attribute.Int("db.result.count", len(users)))
	span.SetStatus(codes.Ok, "Search completed")
	return users, nil
}

func (r *PostgresUserRepo) FieldTaken(ctx context.Context, field, value string, excludeID int64) (bool, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "FieldTaken", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "users"),
		attribute.String("uniqueness.field", field),
	))
	defer span.End()

	var column string
	switch field {
	case "name":
		column = "name"
	case "email":
		column = "email"
	case "phone":
		column = "phone"
	default:
		return false, fmt.Errorf("field %q is not uniqueness-governed", field)
	}

	var taken bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM users WHERE %s = $1 AND id <> $2)", column)
	err := r.pgpool.QueryRow(ctx, query, value, excludeID).Scan(&taken)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to check field uniqueness",
			slog.String("field", field), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return false, fmt.Errorf("database error checking %s uniqueness: %w", field, err)
	}

	span.SetStatus(codes.Ok, "Uniqueness checked")
	return taken, nil
}

func collectUsers(rows pgx.Rows) ([]api.User, error) {
	var users []api.User
	for rows.Next() {
		var u api.User
		err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
