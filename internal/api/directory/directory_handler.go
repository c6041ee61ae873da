package directory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/go-user-directory/config"
	"github.com/FACorreiaa/go-user-directory/internal/api"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	CreateUser(w http.ResponseWriter, r *http.Request)
	GetUser(w http.ResponseWriter, r *http.Request)
	ListUsers(w http.ResponseWriter, r *http.Request)
	UpdateUser(w http.ResponseWriter, r *http.Request)
	DeleteUser(w http.ResponseWriter, r *http.Request)
	SearchUsers(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	service DirectoryService
	policy  config.DirectoryConfig
	logger  *slog.Logger
}

// NewHandlerImpl creates a new directory HandlerImpl instance.
func NewHandlerImpl(service DirectoryService, policy config.DirectoryConfig, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		service: service,
		policy:  policy,
		logger:  logger,
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// writeUserError maps domain failures onto HTTP statuses. Validation,
// conflict, not-found and malformed-request outcomes stay distinguishable;
// everything else is a server error.
func (h *HandlerImpl) writeUserError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var vErr *api.ValidationError
	var cErr *api.ConflictError
	switch {
	case errors.As(err, &vErr):
		api.WriteJSONResponse(w, r, http.StatusUnprocessableEntity, map[string]interface{}{
			"success": false,
			"errors":  vErr.Fields,
		})
	case errors.As(err, &cErr):
		api.WriteJSONResponse(w, r, http.StatusConflict, map[string]interface{}{
			"success": false,
			"field":   cErr.Field,
			"error":   cErr.Error(),
		})
	case errors.Is(err, api.ErrConflict):
		api.ErrorResponse(w, r, http.StatusConflict, "Conflict with an existing record")
	case errors.Is(err, api.ErrNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
	case errors.Is(err, api.ErrBadRequest):
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
	default:
		api.ErrorResponse(w, r, http.StatusInternalServerError, fallback)
	}
}

// CreateUser handles POST /users.
func (h *HandlerImpl) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "CreateUser"))

	var params api.CreateUserParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.CreateUser(ctx, params)
	if err != nil {
		l.WarnContext(ctx, "Failed to create user", slog.Any("error", err))
		h.writeUserError(w, r, err, "Failed to create user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, user)
}

// GetUser handles GET /users/{id}.
func (h *HandlerImpl) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetUser"))

	id, err := parseID(r)
	if err != nil {
		l.WarnContext(ctx, "Invalid user ID format", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	user, err := h.service.GetUser(ctx, id)
	if err != nil {
		l.WarnContext(ctx, "Failed to get user", slog.Any("error", err))
		h.writeUserError(w, r, err, "Failed to retrieve user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

// ListUsers handles GET /users.
func (h *HandlerImpl) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "ListUsers"))

	users, err := h.service.ListUsers(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		h.writeUserError(w, r, err, "Failed to list users")
		return
	}

	if users == nil {
		users = []api.User{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, users)
}

// UpdateUser handles PATCH /users/{id}.
func (h *HandlerImpl) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "UpdateUser"))

	id, err := parseID(r)
	if err != nil {
		l.WarnContext(ctx, "Invalid user ID format", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	var params api.UpdateUserParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.UpdateUser(ctx, id, params)
	if err != nil {
		l.WarnContext(ctx, "Failed to update user", slog.Any("error", err))
		h.writeUserError(w, r, err, "Failed to update user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

// DeleteUser handles DELETE /users/{id}.
func (h *HandlerImpl) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "DeleteUser"))

	id, err := parseID(r)
	if err != nil {
		l.WarnContext(ctx, "Invalid user ID format", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	if err := h.service.DeleteUser(ctx, id); err != nil {
		l.WarnContext(ctx, "Failed to delete user", slog.Any("error", err))
		h.writeUserError(w, r, err, "Failed to delete user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: "User deleted",
	})
}

// SearchUsers handles GET /users/search.
func (h *HandlerImpl) SearchUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "SearchUsers"))

	q := r.URL.Query()
	filters := api.SearchFilters{
		Keyword: q.Get("keyword"),
		Name:    q.Get("name"),
		Email:   q.Get("email"),
		Phone:   q.Get("phone"),
	}

	users, err := h.service.SearchUsers(ctx, filters)
	if err != nil {
		l.WarnContext(ctx, "Failed to search users", slog.Any("error", err))
		h.writeUserError(w, r, err, "Failed to search users")
		return
	}

	if len(users) == 0 && h.policy.EmptySearchNotFound {
		api.ErrorResponse(w, r, http.StatusNotFound, "No users found")
		return
	}

	if users == nil {
		users = []api.User{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, users)
}
