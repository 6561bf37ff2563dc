package api

import (
	domain "github.com/example/catalog-service/domain/catalog"
	"github.com/example/catalog-service/modules/catalog"
	"github.com/gofiber/fiber/v2"
)

// MainCategories handles GET /api/v1/categories.
func (h *Handlers) MainCategories(c *fiber.Ctx) error {
	categories, err := h.catalog.MainCategories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"categories": categories})
}

// Menu handles GET /api/v1/categories/menu.
func (h *Handlers) Menu(c *fiber.Ctx) error {
	menu, err := h.catalog.Menu(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"menu": menu})
}

// CategoryDetails handles GET /api/v1/categories/:id.
func (h *Handlers) CategoryDetails(c *fiber.Ctx) error {
	details, err := h.catalog.CategoryDetails(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"category": details})
}

// Subcategories handles GET /api/v1/categories/:id/subcategories.
func (h *Handlers) Subcategories(c *fiber.Ctx) error {
	subs, err := h.catalog.Subcategories(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"subcategories": subs})
}

// CategoryProducts handles GET /api/v1/categories/:id/products.
func (h *Handlers) CategoryProducts(c *fiber.Ctx) error {
	page, err := h.catalog.CategoryProducts(c.UserContext(), catalog.CategoryProductsQuery{
		CategoryID: c.Params("id"),
		Page:       c.QueryInt("page", 1),
		Limit:      c.QueryInt("limit", catalog.DefaultLimit),
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// ListAllCategories handles GET /api/v1/admin/categories.
func (h *Handlers) ListAllCategories(c *fiber.Ctx) error {
	categories, err := h.catalog.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"categories": categories})
}

// GetCategory handles GET /api/v1/admin/categories/:id.
func (h *Handlers) GetCategory(c *fiber.Ctx) error {
	category, err := h.catalog.GetCategory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"category": category})
}

// CreateCategory handles POST /api/v1/admin/categories.
func (h *Handlers) CreateCategory(c *fiber.Ctx) error {
	var req domain.CreateCategoryRequest
	images, err := h.decodeForm(c, &req)
	if err != nil {
		return err
	}
	category, err := h.catalog.CreateCategory(c.UserContext(), req, images)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"category": category,
		"message":  "Category created successfully",
	})
}

// UpdateCategory handles PUT /api/v1/admin/categories/:id.
func (h *Handlers) UpdateCategory(c *fiber.Ctx) error {
	var req domain.UpdateCategoryRequest
	images, err := h.decodeForm(c, &req)
	if err != nil {
		return err
	}
	category, err := h.catalog.UpdateCategory(c.UserContext(), c.Params("id"), req, images)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"category": category,
		"message":  "Category updated successfully",
	})
}

// DeleteCategory handles DELETE /api/v1/admin/categories/:id.
func (h *Handlers) DeleteCategory(c *fiber.Ctx) error {
	ids, err := h.catalog.DeleteCategory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"deleted": ids,
		"message": "Category deleted successfully",
	})
}

// RestoreCategory handles POST /api/v1/admin/categories/:id/restore.
func (h *Handlers) RestoreCategory(c *fiber.Ctx) error {
	ids, err := h.catalog.RestoreCategory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"restored": ids,
		"message":  "Category restored successfully",
	})
}
