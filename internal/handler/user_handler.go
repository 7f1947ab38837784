package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/eaglebank/user-accounts/internal/apperr"
	"github.com/eaglebank/user-accounts/internal/cqrs"
	"github.com/eaglebank/user-accounts/internal/middleware"
	"github.com/eaglebank/user-accounts/internal/models"
	"github.com/gin-gonic/gin"
)

// UserCommander defines the write-side operations used by UserHandler.
type UserCommander interface {
	CreateUser(context.Context, cqrs.CreateUserCommand) (*models.User, error)
	LoginUser(context.Context, cqrs.LoginCommand) (*models.User, bool, error)
	GetUserByID(context.Context, int64) (*models.User, error)
	UpdateStatus(context.Context, *models.User, models.Status) error
	UpdateUser(context.Context, *models.User, cqrs.UpdateUserCommand) error
}

// UserQuerier defines the read-side operations used by UserHandler.
type UserQuerier interface {
	ListUsers(context.Context) ([]models.UserSummary, error)
	GetUser(context.Context, cqrs.GetUserQuery) (*models.UserView, error)
	OnlineUsers(context.Context) ([]int64, error)
}

// UserHandler routes requests to the command or query service as appropriate.
type UserHandler struct {
	commands UserCommander
	queries  UserQuerier
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest fields are not validated; empty credentials simply do not match.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UpdateUserRequest fields are optional; empty values leave the profile as is.
type UpdateUserRequest struct {
	Username  string `json:"username"`
	BirthDate string `json:"birthDate"`
}

type PresenceResponse struct {
	Online []int64 `json:"online"`
}

func NewUserHandler(commands UserCommander, queries UserQuerier) *UserHandler {
	return &UserHandler{commands: commands, queries: queries}
}

func (h *UserHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/users", h.ListUsers)
	r.POST("/users", h.CreateUser)
	r.GET("/users/:userId", h.GetUser)
	r.PUT("/users/:userId", h.UpdateUser)
	r.POST("/users/:userId/logout", h.LogoutUser)
	r.POST("/login", h.Login)
	r.GET("/presence", h.Presence)
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.queries.ListUsers(c.Request.Context())
	if err != nil {
		respondWithAppError(c, err, "Failed to list users")
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	user, err := h.commands.CreateUser(c.Request.Context(), cqrs.CreateUserCommand{
		Name:     req.Name,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		respondWithAppError(c, err, "Failed to create user")
		return
	}

	c.JSON(http.StatusCreated, user.Session())
}

func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	user, ok, err := h.commands.LoginUser(ctx, cqrs.LoginCommand{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		respondWithAppError(c, err, "Failed to log in")
		return
	}
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	if err := h.commands.UpdateStatus(ctx, user, models.StatusOnline); err != nil {
		respondWithAppError(c, err, "Failed to log in")
		return
	}

	c.JSON(http.StatusOK, user.Session())
}

func (h *UserHandler) LogoutUser(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user, err := h.commands.GetUserByID(ctx, userID)
	if err != nil {
		_ = c.Error(err)
		if apperr.KindOf(err) == apperr.KindNotFound {
			c.String(http.StatusNotFound, "User not found.")
			return
		}
		c.String(http.StatusInternalServerError, "Error during logout.")
		return
	}

	if err := h.commands.UpdateStatus(ctx, user, models.StatusOffline); err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "Error during logout.")
		return
	}

	c.String(http.StatusOK, "User logged out successfully.")
}

func (h *UserHandler) GetUser(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	view, err := h.queries.GetUser(c.Request.Context(), cqrs.GetUserQuery{UserID: userID})
	if err != nil {
		respondWithAppError(c, err, "Failed to get user")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	ctx := c.Request.Context()
	user, err := h.commands.GetUserByID(ctx, userID)
	if err != nil {
		respondWithAppError(c, err, "Failed to update user")
		return
	}

	if err := h.commands.UpdateUser(ctx, user, cqrs.UpdateUserCommand{
		Username:  req.Username,
		BirthDate: req.BirthDate,
	}); err != nil {
		respondWithAppError(c, err, "Failed to update user")
		return
	}

	c.String(http.StatusAccepted, "Changes saved successfully.")
}

func (h *UserHandler) Presence(c *gin.Context) {
	ids, err := h.queries.OnlineUsers(c.Request.Context())
	if err != nil {
		respondWithAppError(c, err, "Failed to read presence")
		return
	}
	c.JSON(http.StatusOK, PresenceResponse{Online: ids})
}

func parseUserID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil || id <= 0 {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid user id")
		return 0, false
	}
	return id, true
}

// respondWithAppError picks the status from the error's kind. Internal
// failures answer with fallback so driver details never reach the client.
func respondWithAppError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	kind := apperr.KindOf(err)
	message := fallback
	if kind != apperr.KindInternal {
		message = apperr.MessageOf(err, fallback)
	}
	middleware.RespondWithError(c, apperr.HTTPStatus(kind), message)
}
