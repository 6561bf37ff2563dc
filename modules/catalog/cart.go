package catalog

import (
	"context"

	domain "github.com/example/catalog-service/domain/catalog"
)

// GetCart returns the priced view of the user's cart. Carts are never
// cached.
func (s *Service) GetCart(ctx context.Context, userID string) (*domain.CartView, error) {
	cart, err := s.store.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.priceCart(ctx, cart)
}

// AddToCart adds a quantity of an active product variant, merging with an
// existing line. The resulting quantity may not exceed the variant stock.
func (s *Service) AddToCart(ctx context.Context, userID string, req domain.AddCartItemRequest) (*domain.CartView, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	_, v, err := s.purchasableVariant(ctx, req.ProductID, req.VariantID)
	if err != nil {
		return nil, err
	}
	cart, err := s.store.AddCartItem(ctx, userID, domain.CartItem{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	}, v.StockQty)
	if err != nil {
		return nil, err
	}
	return s.priceCart(ctx, cart)
}

// UpdateCartItem sets the quantity of an existing line.
func (s *Service) UpdateCartItem(ctx context.Context, userID string, req domain.UpdateCartItemRequest) (*domain.CartView, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	_, v, err := s.purchasableVariant(ctx, req.ProductID, req.VariantID)
	if err != nil {
		return nil, err
	}
	cart, err := s.store.SetCartItemQuantity(ctx, userID, req.ProductID, req.VariantID, req.Quantity, v.StockQty)
	if err != nil {
		return nil, err
	}
	return s.priceCart(ctx, cart)
}

// RemoveCartItem deletes one line.
func (s *Service) RemoveCartItem(ctx context.Context, userID string, req domain.RemoveCartItemRequest) (*domain.CartView, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	cart, err := s.store.RemoveCartItem(ctx, userID, req.ProductID, req.VariantID)
	if err != nil {
		return nil, err
	}
	return s.priceCart(ctx, cart)
}

// ClearCart removes every line of the user's cart.
func (s *Service) ClearCart(ctx context.Context, userID string) error {
	return s.store.ClearCart(ctx, userID)
}

func (s *Service) purchasableVariant(ctx context.Context, productID, variantID string) (*domain.Product, *domain.Variant, error) {
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if p.Status != domain.StatusActive {
		return nil, nil, domain.Validation("product %q is not available", p.Name)
	}
	v, ok := p.Variant(variantID)
	if !ok {
		return nil, nil, domain.NotFound("variant")
	}
	return p, v, nil
}

func (s *Service) priceCart(ctx context.Context, cart *domain.Cart) (*domain.CartView, error) {
	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	view := domain.PriceCart(cart, products)
	return &view, nil
}
