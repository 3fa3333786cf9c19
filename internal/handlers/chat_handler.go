package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alexrendlerCS/aicademy-sub000/internal/services"
	"github.com/alexrendlerCS/aicademy-sub000/internal/utils"
)

type ChatHandler struct {
	BaseHandler
	chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService, logger utils.Logger) *ChatHandler {
	return &ChatHandler{
		BaseHandler: NewBaseHandler(logger),
		chatService: chatService,
	}
}

// Chat forwards a tutoring conversation to the completion server
// @Summary Chat with the tutor
// @Description The tutor sees the student's name, the optional module and lesson, module progress and recent quiz results. When the completion server is down the fallback reply is returned with 503.
// @Tags chat
// @Accept json
// @Produce json
// @Param request body services.ChatRequest true "Conversation"
// @Success 200 {object} services.ChatResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse "Module not assigned"
// @Failure 502 {object} ErrorResponse
// @Failure 503 {object} services.ChatResponse "Fallback reply"
// @Router /chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	studentID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req services.ChatRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Chat request", "messages", len(req.Messages))

	resp, err := h.chatService.Chat(c.Request.Context(), studentID, &req)
	if err != nil {
		if errors.Is(err, services.ErrChatUnavailable) && resp != nil {
			h.requestLogger(c).Warn("Chat tutor unavailable, serving fallback", "error", err)
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
