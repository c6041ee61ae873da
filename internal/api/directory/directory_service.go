package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-user-directory/app/tracer"
	"github.com/FACorreiaa/go-user-directory/config"
	"github.com/FACorreiaa/go-user-directory/internal/api"
)

// Ensure implementation satisfies the interface
var _ DirectoryService = (*DirectoryServiceImpl)(nil)

// DirectoryService defines the business logic contract for directory
// operations. Each request is independent; no cross-request state.
type DirectoryService interface {
	// CreateUser validates the candidate, enforces uniqueness, hashes the
	// password and persists the record.
	CreateUser(ctx context.Context, params api.CreateUserParams) (*api.User, error)

	// GetUser retrieves a single record by id.
	GetUser(ctx context.Context, id int64) (*api.User, error)

	// ListUsers returns every record; always succeeds, possibly empty.
	ListUsers(ctx context.Context) ([]api.User, error)

	// UpdateUser applies a partial update after re-checking uniqueness for
	// every changed governed field, excluding the record itself.
	UpdateUser(ctx context.Context, id int64, params api.UpdateUserParams) (*api.User, error)

	// DeleteUser hard-deletes the record.
	DeleteUser(ctx context.Context, id int64) error

	// SearchUsers runs a keyword or faceted search per the configured mode.
	SearchUsers(ctx context.Context, filters api.SearchFilters) ([]api.User, error)
}

// DirectoryServiceImpl provides the implementation for DirectoryService.
type DirectoryServiceImpl struct {
	logger *slog.Logger
	repo   UserRepo
	hasher Hasher
	policy config.DirectoryConfig
	cache  *cache.Cache
}

// NewDirectoryService creates a new directory service instance.
func NewDirectoryService(repo UserRepo, hasher Hasher, policy config.DirectoryConfig, logger *slog.Logger) *DirectoryServiceImpl {
	ttl := policy.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DirectoryServiceImpl{
		logger: logger,
		repo:   repo,
		hasher: hasher,
		policy: policy,
		cache:  cache.New(ttl, 10*time.Minute),
	}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

// checkUnique walks the uniqueness-governed fields present in the
// candidate in the fixed order name, email, phone and reports the first
// conflict. excludeID skips the record being updated; pass 0 on create.
func (s *DirectoryServiceImpl) checkUnique(ctx context.Context, name, email, phone *string, excludeID int64) error {
	if s.policy.UniqueName && name != nil {
		taken, err := s.repo.FieldTaken(ctx, "name", *name, excludeID)
		if err != nil {
			return err
		}
		if taken {
			return &api.ConflictError{Field: "name"}
		}
	}
	if email != nil {
		taken, err := s.repo.FieldTaken(ctx, "email", *email, excludeID)
		if err != nil {
			return err
		}
		if taken {
			return &api.ConflictError{Field: "email"}
		}
	}
	if phone != nil && *phone != "" {
		taken, err := s.repo.FieldTaken(ctx, "phone", *phone, excludeID)
		if err != nil {
			return err
		}
		if taken {
			return &api.ConflictError{Field: "phone"}
		}
	}
	return nil
}

// CreateUser creates a new user record. Order of checks: field
// validation, uniqueness, hashing, persistence. A conflict aborts before
// hashing and before any write.
func (s *DirectoryServiceImpl) CreateUser(ctx context.Context, params api.CreateUserParams) (*api.User, error) {
	ctx, span := otel.Tracer("DirectoryService").Start(ctx, "CreateUser")
	defer span.End()
	start := time.Now()
	defer func() { tracer.ObserveOperation(ctx, "create", time.Since(start).Seconds()) }()

	l := s.logger.With(slog.String("method", "CreateUser"))
	l.DebugContext(ctx, "Creating user", slog.String("email", params.Email))

	if vErr := ValidateCreate(params); vErr != nil {
		l.WarnContext(ctx, "User creation failed validation", slog.Any("fields", vErr.Fields))
		tracer.Metrics().ValidationFailuresTotal.Add(ctx, 1)
		span.SetStatus(codes.Error, "Validation failed")
		return nil, vErr
	}

	if err := s.checkUnique(ctx, &params.Name, &params.Email, params.Phone, 0); err != nil {
		return nil, s.reportConflict(ctx, l, span, err, "create")
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Hashing failed")
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, params, hash)
	if err != nil {
		// A racing write may still violate the unique index; the storage
		// layer surfaces it as the same conflict the pre-check produces.
		return nil, s.reportConflict(ctx, l, span, err, "create")
	}

	tracer.Metrics().UsersCreatedTotal.Add(ctx, 1)
	l.InfoContext(ctx, "User created", slog.Int64("userID", user.ID))
	span.SetAttributes(attribute.Int64("user.id", user.ID))
	span.SetStatus(codes.Ok, "User created")
	return user, nil
}

// GetUser retrieves a user record, serving recent reads from the cache.
func (s *DirectoryServiceImpl) GetUser(ctx context.Context, id int64) (*api.User, error) {
	ctx, span := otel.Tracer("DirectoryService").Start(ctx, "GetUser", trace.WithAttributes(
		attribute.Int64("user.id", id),
	))
	defer span.End()

	key := cacheKey(id)
	if cached, found := s.cache.Get(key); found {
		if u, ok := cached.(api.User); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			span.SetStatus(codes.Ok, "User fetched from cache")
			copied := u
			return &copied, nil
		}
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch user")
		return nil, fmt.Errorf("error fetching user: %w", err)
	}

	s.cache.Set(key, *user, cache.DefaultExpiration)
	span.SetStatus(codes.Ok, "User fetched")
	return user, nil
}

// ListUsers returns all user records.
func (s *DirectoryServiceImpl) ListUsers(ctx context.Context) ([]api.User, error) {
	ctx, span := otel.Tracer("DirectoryService").Start(ctx, "ListUsers")
	defer span.End()

	l := s.logger.With(slog.String("method", "ListUsers"))

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list users")
		return nil, fmt.Errorf("error listing users: %w", err)
	}

	span.SetAttributes(attribute.Int("result.count", len(users)))
	span.SetStatus(codes.Ok, "Users listed")
	return users, nil
}

// UpdateUser applies a partial update. The record must exist; uniqueness
// is re-checked only for governed fields whose value actually changes,
// excluding this record's id, so updating a field to its current value
// never conflicts.
func (s *DirectoryServiceImpl) UpdateUser(ctx context.Context, id int64, params api.UpdateUserParams) (*api.User, error) {
	ctx, span := otel.Tracer("DirectoryService").Start(ctx, "UpdateUser", trace.WithAttributes(
		attribute.Int64("user.id", id),
	))
	defer span.End()
	start := time.Now()
	defer func() { tracer.ObserveOperation(ctx, "update", time.Since(start).Seconds()) }()

	l := s.logger.With(slog.String("method", "UpdateUser"), slog.Int64("userID", id))

	current, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "User not found")
		return nil, fmt.Errorf("error fetching user for update: %w", err)
	}

	if vErr := ValidateUpdate(params); vErr != nil {
		l.WarnContext(ctx, "User update failed validation", slog.Any("fields", vErr.Fields))
		tracer.Metrics().ValidationFailuresTotal.Add(ctx, 1)
		span.SetStatus(codes.Error, "Validation failed")
		return nil, vErr
	}

	// Only changed values need a uniqueness check.
	var name, email, phone *string
	if params.Name != nil && *params.Name != current.Name {
		name = params.Name
	}
	if params.Email != nil && *params.Email != current.Email {
		email = params.Email
	}
	if params.Phone != nil && (current.Phone == nil || *params.Phone != *current.Phone) {
		phone = params.Phone
	}
	if err := s.checkUnique(ctx, name, email, phone, id); err != nil {
		return nil, s.reportConflict(ctx, l, span, err, "update")
	}

	var passwordHash *string
	if params.Password != nil {
		hash, err := s.hasher.Hash(*params.Password)
		if err != nil {
			l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Hashing failed")
			return nil, fmt.Errorf("error hashing password: %w", err)
		}
		passwordHash = &hash
	}

	user, err := s.repo.UpdateUser(ctx, id, params, passwordHash)
	if err != nil {
		return nil, s.reportConflict(ctx, l, span, err, "update")
	}

	s.cache.Delete(cacheKey(id))
	l.InfoContext(ctx, "User updated")
	span.SetStatus(codes.Ok, "User updated")
	return user, nil
}

// DeleteUser hard-deletes a user record.
func (s *DirectoryServiceImpl) DeleteUser(ctx context.Context, id int64) error {
	ctx, span := otel.Tracer("DirectoryService").Start(ctx, "DeleteUser", trace.WithAttributes(
		attribute.Int64("user.id", id),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "DeleteUser"), slog.Int64("userID", id))

	if err := s.repo.DeleteUser(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete user")
		return fmt.Errorf("error deleting user: %w", err)
	}

	s.cache.Delete(cacheKey(id))
	tracer.Metrics().UsersDeletedTotal.Add(ctx, 1)
	l.InfoContext(ctx, "User deleted")
	span.SetStatus(codes.Ok, "User deleted")
	return nil
}

// SearchUsers runs a case-insensitive substring search. Zero matches is
// a successful, empty result.
func (s *DirectoryServiceImpl) SearchUsers(ctx context.Context, filters api.SearchFilters) ([]api.User, error) {
	ctx, span := otel.Tracer("DirectoryService").Start(ctx, "SearchUsers", trace.WithAttributes(
		attribute.String("search.mode", s.policy.SearchMode),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "SearchUsers"), slog.String("mode", s.policy.SearchMode))

	if s.policy.SearchMode == config.SearchModeFaceted {
		if filters.Name == "" && filters.Email == "" && filters.Phone == "" {
			span.SetStatus(codes.Error, "No filters provided")
			return nil, fmt.Errorf("at least one of name, email or phone is required: %w", api.ErrBadRequest)
		}
	} else if filters.Keyword == "" {
		span.SetStatus(codes.Error, "Keyword missing")
		return nil, fmt.Errorf("keyword is required: %w", api.ErrBadRequest)
	}

	users, err := s.repo.SearchUsers(ctx, filters, s.policy.SearchMode)
	if err != nil {
		l.ErrorContext(ctx, "Failed to search users", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Search failed")
		return nil, fmt.Errorf("error searching users: %w", err)
	}

	tracer.Metrics().SearchRequestsTotal.Add(ctx, 1)
	l.InfoContext(ctx, "Search completed", slog.Int("count", len(users)))
	span.SetAttributes(attribute.Int("result.count", len(users)))
	span.SetStatus(codes.Ok, "Search completed")
	return users, nil
}

// reportConflict records conflict metrics/spans once for both the
// pre-check and the storage-race paths, passing other errors through.
func (s *DirectoryServiceImpl) reportConflict(ctx context.Context, l *slog.Logger, span trace.Span, err error, op string) error {
	var cErr *api.ConflictError
	if errors.As(err, &cErr) {
		l.WarnContext(ctx, "Uniqueness conflict", slog.String("field", cErr.Field), slog.String("operation", op))
		tracer.RecordConflict(ctx, cErr.Field)
		span.SetStatus(codes.Error, "Uniqueness conflict")
		return cErr
	}
	l.ErrorContext(ctx, "Operation failed", slog.String("operation", op), slog.Any("error", err))
	span.RecordError(err)
	span.SetStatus(codes.Error, "Operation failed")
	return fmt.Errorf("error during %s: %w", op, err)
}
