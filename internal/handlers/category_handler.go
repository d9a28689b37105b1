package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pengaduan/pengaduan-backend/internal/dto"
	"github.com/pengaduan/pengaduan-backend/internal/services"
)

type CategoryHandler struct {
	dispositionService *services.DispositionService
}

func NewCategoryHandler(dispositionService *services.DispositionService) *CategoryHandler {
	return &CategoryHandler{dispositionService: dispositionService}
}

func (h *CategoryHandler) List(c *fiber.Ctx) error {
	categories, err := h.dispositionService.ListCategories(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.CategoryResponse, 0, len(categories))
	for _, cat := range categories {
		out = append(out, dto.ProjectCategory(cat))
	}
	return c.JSON(out)
}

// Admins lists the admins a category can be assigned to.
func (h *CategoryHandler) Admins(c *fiber.Ctx) error {
	admins, err := h.dispositionService.ListAdmins(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.AdminResponse, 0, len(admins))
	for _, u := range admins {
		out = append(out, dto.AdminResponse{ID: u.ID, Name: u.Name})
	}
	return c.JSON(out)
}

func (h *CategoryHandler) Create(c *fiber.Ctx) error {
	a, ok := currentActor(c)
	if !ok {
		return unauthorized(c)
	}
	var req dto.CategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := dto.Validate(req); err != nil {
		return respondError(c, err)
	}
	category, err := h.dispositionService.CreateCategory(c.UserContext(), a, services.CategoryInput{Name: req.Name, AdminIDs: req.AdminIDs})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ProjectCategory(*category))
}

func (h *CategoryHandler) Update(c *fiber.Ctx) error {
	a, ok := currentActor(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req dto.CategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := dto.Validate(req); err != nil {
		return respondError(c, err)
	}
	category, err := h.dispositionService.UpdateCategory(c.UserContext(), a, id, services.CategoryInput{Name: req.Name, AdminIDs: req.AdminIDs})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ProjectCategory(*category))
}

// AssignAdmin replaces the responsible admin; an empty list hands the category
// back to the superadmin.
func (h *CategoryHandler) AssignAdmin(c *fiber.Ctx) error {
	a, ok := currentActor(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req dto.AssignAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	category, err := h.dispositionService.AssignAdmin(c.UserContext(), a, id, req.AdminIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ProjectCategory(*category))
}

func (h *CategoryHandler) Delete(c *fiber.Ctx) error {
	a, ok := currentActor(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.dispositionService.DeleteCategory(c.UserContext(), a, id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "Category deleted"})
}
