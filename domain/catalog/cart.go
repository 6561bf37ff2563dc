package catalog

import (
	"math"
	"time"
)

// Cart is the single shopping cart of a user.
type Cart struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	UserID    string     `gorm:"size:64;not null;uniqueIndex" json:"userId"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// CartItem references one product variant. Lines are ordered by Position.
type CartItem struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CartID    string    `gorm:"size:36;not null;uniqueIndex:idx_cart_items_line" json:"-"`
	ProductID string    `gorm:"size:36;not null;uniqueIndex:idx_cart_items_line;index" json:"productId"`
	VariantID string    `gorm:"size:36;not null;uniqueIndex:idx_cart_items_line" json:"variantId"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	Position  int       `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// AddCartItemRequest adds quantity of a variant to the caller's cart.
type AddCartItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	VariantID string `json:"variantId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"omitempty,gte=1"`
}

// UpdateCartItemRequest sets the quantity of an existing line.
type UpdateCartItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	VariantID string `json:"variantId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// RemoveCartItemRequest identifies a cart line.
type RemoveCartItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	VariantID string `json:"variantId" validate:"required,uuid"`
}

// CartLine is a cart item joined with its product and variant snapshot.
type CartLine struct {
	ProductID string   `json:"productId"`
	VariantID string   `json:"variantId"`
	Name      string   `json:"name"`
	Slug      string   `json:"slug"`
	Image     string   `json:"image,omitempty"`
	Variant   Variant  `json:"variant"`
	Quantity  int      `json:"quantity"`
	UnitPrice float64  `json:"unitPrice"`
	LineTotal float64  `json:"lineTotal"`
	Available bool     `json:"available"`
	Warnings  []string `json:"warnings,omitempty"`
}

// CartView is the derived, priced view of a cart. Totals are never stored.
type CartView struct {
	UserID     string     `json:"userId"`
	Lines      []CartLine `json:"items"`
	TotalItems int        `json:"totalItems"`
	TotalPrice float64    `json:"totalPrice"`
}

// PriceCart joins cart items with the current products. Lines whose product
// or variant no longer exists are reported unavailable and priced at zero.
func PriceCart(cart *Cart, products map[string]*Product) CartView {
	view := CartView{UserID: cart.UserID, Lines: make([]CartLine, 0, len(cart.Items))}
	var total float64
	for _, item := range cart.Items {
		line := CartLine{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		}
		p, ok := products[item.ProductID]
		if !ok {
			line.Warnings = append(line.Warnings, "product no longer available")
			view.Lines = append(view.Lines, line)
			continue
		}
		line.Name = p.Name
		line.Slug = p.Slug
		if len(p.Images) > 0 {
			line.Image = p.Images[0]
		}
		v, ok := p.Variant(item.VariantID)
		if !ok {
			line.Warnings = append(line.Warnings, "variant no longer available")
			view.Lines = append(view.Lines, line)
			continue
		}
		line.Variant = *v
		line.UnitPrice = PriceAfterDiscount(v.Price, p.Discount)
		line.LineTotal = math.Round(line.UnitPrice*float64(item.Quantity)*100) / 100
		line.Available = p.Status == StatusActive && v.StockQty >= item.Quantity
		if p.Status != StatusActive {
			line.Warnings = append(line.Warnings, "product is inactive")
		} else if v.StockQty < item.Quantity {
			line.Warnings = append(line.Warnings, "insufficient stock")
		}
		total += line.LineTotal
		view.TotalItems += item.Quantity
		view.Lines = append(view.Lines, line)
	}
	view.TotalPrice = math.Round(total*100) / 100
	return view
}
