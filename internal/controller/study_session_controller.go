package controller

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"studymate-be/internal/dto"
	"studymate-be/internal/pkg/serverutils"
	"studymate-be/internal/service"
	"studymate-be/pkg/apperr"
	"studymate-be/pkg/loader"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IStudySessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Upload(ctx *fiber.Ctx) error
	GetAll(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Reconcile(ctx *fiber.Ctx) error
}

type studySessionController struct {
	service   service.IStudySessionService
	uploadDir string
}

func NewStudySessionController(service service.IStudySessionService, uploadDir string) IStudySessionController {
	return &studySessionController{service: service, uploadDir: uploadDir}
}

func (c *studySessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/study-session/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.GetAll)
	h.Post("", c.Create)
	h.Post("upload", c.Upload)
	h.Get(":id", c.Show)
	h.Get(":id/embeddings", c.Status)
	h.Post(":id/reconcile", c.Reconcile)
	h.Delete(":id", c.Delete)
}

func (c *studySessionController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateStudySessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.Context(), serverutils.UserID(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Study session queued for ingestion", res))
}

// Upload stores a multipart "file" under the upload dir and ingests it.
func (c *studySessionController) Upload(ctx *fiber.Ctx) error {
	file, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Missing file")
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !loader.Supported(ext) {
		return fmt.Errorf("%w: %q", apperr.ErrUnsupportedFormat, ext)
	}

	if err := os.MkdirAll(c.uploadDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(c.uploadDir, uuid.NewString()+ext)
	if err := ctx.SaveFile(file, path); err != nil {
		return err
	}

	name := ctx.FormValue("name")
	if name == "" {
		name = file.Filename
	}
	res, err := c.service.Create(ctx.Context(), serverutils.UserID(ctx), &dto.CreateStudySessionRequest{Name: name, Source: path})
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Study session queued for ingestion", res))
}

func (c *studySessionController) GetAll(ctx *fiber.Ctx) error {
	res, err := c.service.GetAll(ctx.Context(), serverutils.UserID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get all study sessions", res))
}

func (c *studySessionController) Show(ctx *fiber.Ctx) error {
	id, err := sessionParam(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.Show(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show study session", res))
}

func (c *studySessionController) Status(ctx *fiber.Ctx) error {
	id, err := sessionParam(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.Status(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success check embeddings", res))
}

func (c *studySessionController) Delete(ctx *fiber.Ctx) error {
	id, err := sessionParam(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.Delete(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	message := "Success delete study session"
	if !res.Complete {
		message = "Study session partially deleted"
	}
	return ctx.JSON(serverutils.SuccessResponse(message, res))
}

func (c *studySessionController) Reconcile(ctx *fiber.Ctx) error {
	id, err := sessionParam(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.Reconcile(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success reconcile study session", res))
}

func sessionParam(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, apperr.Invalid("study session id must be a uuid")
	}
	return id, nil
}
