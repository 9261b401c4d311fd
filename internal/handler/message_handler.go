package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realtime-chat/internal/domain"
	"realtime-chat/internal/event"
	"realtime-chat/internal/middleware"
	"realtime-chat/internal/service"
)

type MessageHandler struct {
	messageService service.MessageService
	logger         *zap.Logger
}

func NewMessageHandler(messageService service.MessageService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		logger:         logger,
	}
}

// GetMessages godoc
// @Summary      Room history
// @Description  Returns the most recent messages of a room, oldest first
// @Tags         message
// @Produce      json
// @Param        room path string true "Room id" example:"global"
// @Param        limit query int false "Page size (max 200)" default(200)
// @Success      200 {object} handler.MessagesResponse
// @Failure      400 {object} handler.ErrorResponse
// @Failure      401 {object} map[string]interface{}
// @Failure      403 {object} handler.ErrorResponse
// @Failure      500 {object} handler.ErrorResponse
// @Router       /rooms/{room}/messages [get]
// @Security     BearerAuth
func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "user not authenticated"})
		return
	}

	room := c.Param("room")
	if err := domain.CanJoin(room, userID); err != nil {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "room not accessible"})
		return
	}

	limit := service.MaxHistory
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	messages, err := h.messageService.Recent(c.Request.Context(), room, limit)
	if err != nil {
		h.logger.Error("Failed to load room history", zap.String("room", room), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "server error"})
		return
	}

	c.JSON(http.StatusOK, MessagesResponse{
		Room:     room,
		Messages: event.ToMessageViews(messages),
	})
}
