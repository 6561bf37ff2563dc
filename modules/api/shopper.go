package api

import (
	domain "github.com/example/catalog-service/domain/catalog"
	"github.com/example/catalog-service/modules/catalog"
	"github.com/gofiber/fiber/v2"
)

// GetCart handles GET /api/v1/cart.
func (h *Handlers) GetCart(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	view, err := h.catalog.GetCart(c.UserContext(), a.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"cart": view})
}

// AddToCart handles POST /api/v1/cart/items.
func (h *Handlers) AddToCart(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req domain.AddCartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}
	view, err := h.catalog.AddToCart(c.UserContext(), a.UserID, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"cart": view})
}

// UpdateCartItem handles PUT /api/v1/cart/items.
func (h *Handlers) UpdateCartItem(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req domain.UpdateCartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}
	view, err := h.catalog.UpdateCartItem(c.UserContext(), a.UserID, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"cart": view})
}

// RemoveCartItem handles DELETE /api/v1/cart/items.
func (h *Handlers) RemoveCartItem(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req domain.RemoveCartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}
	view, err := h.catalog.RemoveCartItem(c.UserContext(), a.UserID, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"cart": view})
}

// ClearCart handles DELETE /api/v1/cart.
func (h *Handlers) ClearCart(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	if err := h.catalog.ClearCart(c.UserContext(), a.UserID); err != nil {
		return err
	}
	return c.JSON(MessageResponse{Message: "Cart cleared"})
}

// ListReviews handles GET /api/v1/products/:id/reviews.
func (h *Handlers) ListReviews(c *fiber.Ctx) error {
	page, err := h.catalog.ListReviews(c.UserContext(), catalog.ReviewListQuery{
		ProductID: c.Params("id"),
		Page:      c.QueryInt("page", 1),
		Limit:     c.QueryInt("limit", catalog.DefaultLimit),
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// CreateReview handles POST /api/v1/products/:id/reviews.
func (h *Handlers) CreateReview(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req domain.CreateReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}
	review, err := h.catalog.CreateReview(c.UserContext(), a, c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"review": review})
}

// UpdateReview handles PUT /api/v1/reviews/:id.
func (h *Handlers) UpdateReview(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req domain.UpdateReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}
	review, err := h.catalog.UpdateReview(c.UserContext(), a, c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"review": review})
}

// DeleteReview handles DELETE /api/v1/reviews/:id.
func (h *Handlers) DeleteReview(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	if err := h.catalog.DeleteReview(c.UserContext(), a, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(MessageResponse{Message: "Review deleted"})
}
