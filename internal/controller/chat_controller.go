package controller

import (
	"studymate-be/internal/dto"
	"studymate-be/internal/pkg/serverutils"
	"studymate-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	SendChat(ctx *fiber.Ctx) error
	GetChatHistory(ctx *fiber.Ctx) error
	ClearChatHistory(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("send", c.SendChat)
	h.Get("history/:session", c.GetChatHistory)
	h.Delete("history/:session", c.ClearChatHistory)
}

func (c *chatController) SendChat(ctx *fiber.Ctx) error {
	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SendChat(ctx.Context(), serverutils.UserID(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success send chat", res))
}

func (c *chatController) GetChatHistory(ctx *fiber.Ctx) error {
	res, err := c.service.GetChatHistory(ctx.Context(), serverutils.UserID(ctx), ctx.Params("session"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", res))
}

func (c *chatController) ClearChatHistory(ctx *fiber.Ctx) error {
	if err := c.service.ClearChatHistory(ctx.Context(), serverutils.UserID(ctx), ctx.Params("session")); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success clear chat history", nil))
}
