package controller

import (
	"studymate-be/internal/pkg/serverutils"
	"studymate-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IStudyToolsController interface {
	RegisterRoutes(r fiber.Router)
	Summarize(ctx *fiber.Ctx) error
	GenerateQuestions(ctx *fiber.Ctx) error
	GenerateCards(ctx *fiber.Ctx) error
}

type studyToolsController struct {
	service service.IStudyToolsService
}

func NewStudyToolsController(service service.IStudyToolsService) IStudyToolsController {
	return &studyToolsController{service: service}
}

func (c *studyToolsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/study-tools/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post(":id/summary", c.Summarize)
	h.Post(":id/generate-q", c.GenerateQuestions)
	h.Post(":id/generate-c", c.GenerateCards)
}

func (c *studyToolsController) Summarize(ctx *fiber.Ctx) error {
	id, err := sessionParam(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.Summarize(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success summarize study session", res))
}

func (c *studyToolsController) GenerateQuestions(ctx *fiber.Ctx) error {
	id, err := sessionParam(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.GenerateQuestions(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success generate questions", res))
}

func (c *studyToolsController) GenerateCards(ctx *fiber.Ctx) error {
	id, err := sessionParam(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.GenerateCards(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success generate study cards", res))
}
