package api

import (
	"time"

	domain "github.com/example/catalog-service/domain/catalog"
	"github.com/example/catalog-service/modules/catalog"
	"github.com/gofiber/fiber/v2"
)

// ListProducts handles GET /api/v1/products.
func (h *Handlers) ListProducts(c *fiber.Ctx) error {
	q := catalog.ProductListingQuery{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Hot:      c.QueryBool("hot", false),
		Best:     c.QueryBool("best", false),
		Featured: c.QueryBool("featured", false),
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", catalog.DefaultLimit),
	}

	start := time.Now()
	page, fromCache, err := h.catalog.ListProducts(c.UserContext(), q)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"products":    page.Products,
		"pagination":  page.Pagination,
		"from_cache":  fromCache,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// Suggestions handles GET /api/v1/products/suggestions.
func (h *Handlers) Suggestions(c *fiber.Ctx) error {
	out, err := h.catalog.Suggestions(c.UserContext(), catalog.SuggestionQuery{
		Search: c.Query("search"),
		Limit:  c.QueryInt("limit", catalog.DefaultSuggestionLimit),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"suggestions": out})
}

// GetProductBySlug handles GET /api/v1/products/slug/:slug.
func (h *Handlers) GetProductBySlug(c *fiber.Ctx) error {
	p, err := h.catalog.GetProductBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"product": p})
}

// GetProduct handles GET /api/v1/admin/products/:id.
func (h *Handlers) GetProduct(c *fiber.Ctx) error {
	p, err := h.catalog.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"product": p})
}

// CountProducts handles GET /api/v1/admin/products/count.
func (h *Handlers) CountProducts(c *fiber.Ctx) error {
	n, err := h.catalog.CountProducts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"count": n})
}

// CreateProduct handles POST /api/v1/admin/products.
func (h *Handlers) CreateProduct(c *fiber.Ctx) error {
	var req domain.CreateProductRequest
	images, err := h.decodeForm(c, &req)
	if err != nil {
		return err
	}
	p, err := h.catalog.CreateProduct(c.UserContext(), req, images)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"product": p,
		"message": "Product created successfully",
	})
}

// UpdateProduct handles PUT /api/v1/admin/products/:id.
func (h *Handlers) UpdateProduct(c *fiber.Ctx) error {
	var req domain.UpdateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}
	p, err := h.catalog.UpdateProduct(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"product": p,
		"message": "Product updated successfully, cache invalidated",
	})
}

// ReplaceProductImages handles PUT /api/v1/admin/products/:id/images.
func (h *Handlers) ReplaceProductImages(c *fiber.Ctx) error {
	images, err := h.imagesOnly(c)
	if err != nil {
		return err
	}
	p, err := h.catalog.ReplaceProductImages(c.UserContext(), c.Params("id"), images)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"product": p,
		"message": "Product images replaced successfully",
	})
}

// DeleteProduct handles DELETE /api/v1/admin/products/:id.
func (h *Handlers) DeleteProduct(c *fiber.Ctx) error {
	if err := h.catalog.DeleteProduct(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(MessageResponse{Message: "Product deleted successfully, cache invalidated"})
}
