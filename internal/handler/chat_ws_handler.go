package handler

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"studymate-be/internal/dto"
	"studymate-be/internal/pkg/logger"
	"studymate-be/internal/pkg/serverutils"
	"studymate-be/internal/service"
	internalWS "studymate-be/internal/websocket"
	"studymate-be/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const wsModule = "CHAT_WS"

// ChatWsHandler serves chat over a websocket: {query, document_session_id} in, {message} or
// {error} out. The same socket receives ingestion status pushes from the hub.
type ChatWsHandler struct {
	chat        service.IChatService
	hub         *internalWS.Hub
	logger      logger.ILogger
	turnTimeout time.Duration
}

func NewChatWsHandler(chat service.IChatService, hub *internalWS.Hub, log logger.ILogger, turnTimeout time.Duration) *ChatWsHandler {
	if turnTimeout <= 0 {
		turnTimeout = 3 * time.Minute
	}
	return &ChatWsHandler{chat: chat, hub: hub, logger: log, turnTimeout: turnTimeout}
}

func (h *ChatWsHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/chat", h.ServeWs)
}

// ServeWs authenticates the handshake (query token or bearer header) and upgrades.
func (h *ChatWsHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
	}

	userID, err := serverutils.ParseUserID(tokenStr, []byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		h.logger.Warn(wsModule, "Invalid token in websocket handshake", map[string]interface{}{"error": err})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, err.Error()))
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info(wsModule, "Chat socket opened", map[string]interface{}{"user_id": userID})
		internalWS.ServeWs(h.hub, conn, userID, h.HandleFrame)
		h.logger.Info(wsModule, "Chat socket closed", map[string]interface{}{"user_id": userID})
	})(c)
}

// HandleFrame runs one chat turn for a raw frame and returns the encoded reply.
func (h *ChatWsHandler) HandleFrame(ctx context.Context, userID string, frame []byte) []byte {
	var in dto.WsChatFrame
	if err := json.Unmarshal(frame, &in); err != nil {
		return encodeReply(dto.WsChatReply{Error: "Malformed message"})
	}
	if in.Query == "" || in.DocumentSessionId == "" {
		return encodeReply(dto.WsChatReply{Error: "Missing query or document_session_id"})
	}

	tctx, cancel := context.WithTimeout(ctx, h.turnTimeout)
	defer cancel()
	res, err := h.chat.SendChat(tctx, userID, &dto.SendChatRequest{
		DocumentSessionId: in.DocumentSessionId,
		Query:             in.Query,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) || errors.Is(err, apperr.ErrNotFound) {
			return encodeReply(dto.WsChatReply{Error: err.Error()})
		}
		h.logger.Error(wsModule, "Chat turn failed", map[string]interface{}{
			"user_id":    userID,
			"session_id": in.DocumentSessionId,
			"error":      err,
		})
		if errors.Is(err, apperr.ErrProvider) || errors.Is(err, apperr.ErrTierUnavailable) {
			return encodeReply(dto.WsChatReply{Error: "Service temporarily unavailable, try again"})
		}
		return encodeReply(dto.WsChatReply{Error: "Internal server error"})
	}
	return encodeReply(dto.WsChatReply{Message: res.Message})
}

func encodeReply(r dto.WsChatReply) []byte {
	out, _ := json.Marshal(r)
	return out
}
