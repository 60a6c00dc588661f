package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/service"
)

// UserHandler handles HTTP requests for accounts.
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// CreateUserRequest is the HTTP request body for creating an account.
type CreateUserRequest struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Password    string `json:"password"`
}

// Create handles POST /v1/users
func (h *UserHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := h.userService.Create(c.Request.Context(), service.CreateUserRequest{
		Actor:       actor(c),
		Login:       req.Login,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		Password:    req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, userResponse(user))
}

// GetAll handles GET /v1/users?role=
func (h *UserHandler) GetAll(c *gin.Context) {
	users, err := h.userService.List(c.Request.Context(), actor(c), c.Query("role"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, userResponses(users))
}

// Delete handles DELETE /v1/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.userService.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
