package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realtime-chat/internal/domain"
	"realtime-chat/internal/service"
)

// TokenIssuer signs chat tokens.
type TokenIssuer interface {
	Issue(user *domain.User) (string, error)
}

type AuthHandler struct {
	userService service.UserService
	issuer      TokenIssuer
	logger      *zap.Logger
}

func NewAuthHandler(userService service.UserService, issuer TokenIssuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		issuer:      issuer,
		logger:      logger,
	}
}

// Login godoc
// @Summary      Log in by username
// @Description  Returns a token for the user, creating the user on first login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body handler.LoginRequest true "Login request"
// @Success      200 {object} handler.LoginResponse
// @Failure      400 {object} handler.ErrorResponse
// @Failure      500 {object} handler.ErrorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username required"})
		return
	}

	user, err := h.userService.Login(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid username"})
			return
		}
		h.logger.Error("Failed to login", zap.String("username", req.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "server error"})
		return
	}

	token, err := h.issuer.Issue(user)
	if err != nil {
		h.logger.Error("Failed to issue token", zap.String("userId", user.ID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "server error"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token: token,
		User:  ToUserResponse(user),
	})
}
