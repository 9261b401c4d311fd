package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-chat/internal/domain"
)

// OnlineLister reports the users with at least one open connection.
type OnlineLister interface {
	OnlineUsers() []domain.Identity
}

type PresenceHandler struct {
	presence OnlineLister
}

func NewPresenceHandler(presence OnlineLister) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// GetOnlineUsers godoc
// @Summary      Online users
// @Description  Lists users connected to this server, sorted by username
// @Tags         presence
// @Produce      json
// @Success      200 {object} handler.OnlineUsersResponse
// @Failure      401 {object} map[string]interface{}
// @Router       /presence/online [get]
// @Security     BearerAuth
func (h *PresenceHandler) GetOnlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, ToOnlineUsersResponse(h.presence.OnlineUsers()))
}
