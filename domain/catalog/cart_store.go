package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// GetCart returns the user's cart. A user without a cart gets an empty,
// unsaved one.
func (s *Store) GetCart(ctx context.Context, userID string) (*Cart, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	return loadCart(db, userID)
}

func loadCart(db *gorm.DB, userID string) (*Cart, error) {
	var cart Cart
	err := db.Preload("Items", orderedItems).Where("user_id = ?", userID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Cart{UserID: userID, Items: []CartItem{}}, nil
	}
	if err != nil {
		return nil, translate("get cart", err)
	}
	return &cart, nil
}

// ensureCart returns the user's cart row, creating it when missing. A
// concurrent creator wins through the unique user index.
func ensureCart(tx *gorm.DB, userID string) (*Cart, error) {
	cart := Cart{ID: uuid.NewString(), UserID: userID}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&cart).Error; err != nil {
		return nil, err
	}
	var stored Cart
	if err := tx.Where("user_id = ?", userID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// AddCartItem adds item.Quantity to the matching line, creating the cart
// and the line as needed. The resulting quantity may not exceed maxQty.
func (s *Store) AddCartItem(ctx context.Context, userID string, item CartItem, maxQty int) (*Cart, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	err := db.Transaction(func(tx *gorm.DB) error {
		cart, err := ensureCart(tx, userID)
		if err != nil {
			return err
		}
		var line CartItem
		err = tx.Where("cart_id = ? AND product_id = ? AND variant_id = ?", cart.ID, item.ProductID, item.VariantID).
			First(&line).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if item.Quantity > maxQty {
				return Validation("only %d in stock", maxQty)
			}
			var maxPos int64
			if err := tx.Model(&CartItem{}).Where("cart_id = ?", cart.ID).
				Select("COALESCE(MAX(position), -1)").Row().Scan(&maxPos); err != nil {
				return err
			}
			item.ID = uuid.NewString()
			item.CartID = cart.ID
			item.Position = int(maxPos) + 1
			return tx.Create(&item).Error
		case err != nil:
			return err
		}
		qty := line.Quantity + item.Quantity
		if qty > maxQty {
			return Validation("only %d in stock", maxQty)
		}
		return tx.Model(&line).Update("quantity", qty).Error
	})
	if err != nil {
		return nil, translate("add cart item", err)
	}
	return loadCart(db, userID)
}

// SetCartItemQuantity overwrites the quantity of an existing line.
func (s *Store) SetCartItemQuantity(ctx context.Context, userID, productID, variantID string, qty, maxQty int) (*Cart, error) {
	if qty > maxQty {
		return nil, Validation("only %d in stock", maxQty)
	}
	db, cancel := s.conn(ctx)
	defer cancel()

	err := db.Transaction(func(tx *gorm.DB) error {
		line, err := findLine(tx, userID, productID, variantID)
		if err != nil {
			return err
		}
		return tx.Model(line).Update("quantity", qty).Error
	})
	if err != nil {
		return nil, translate("update cart item", err)
	}
	return loadCart(db, userID)
}

// RemoveCartItem deletes one line.
func (s *Store) RemoveCartItem(ctx context.Context, userID, productID, variantID string) (*Cart, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	err := db.Transaction(func(tx *gorm.DB) error {
		line, err := findLine(tx, userID, productID, variantID)
		if err != nil {
			return err
		}
		return tx.Delete(line).Error
	})
	if err != nil {
		return nil, translate("remove cart item", err)
	}
	return loadCart(db, userID)
}

// ClearCart deletes every line of the user's cart.
func (s *Store) ClearCart(ctx context.Context, userID string) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	err := db.Where("cart_id IN (?)", db.Model(&Cart{}).Select("id").Where("user_id = ?", userID)).
		Delete(&CartItem{}).Error
	return translate("clear cart", err)
}

func findLine(tx *gorm.DB, userID, productID, variantID string) (*CartItem, error) {
	var line CartItem
	err := tx.Where("cart_id IN (?)", tx.Model(&Cart{}).Select("id").Where("user_id = ?", userID)).
		Where("product_id = ? AND variant_id = ?", productID, variantID).
		First(&line).Error
	if err != nil {
		return nil, notFoundOr("cart item", "get cart item", err)
	}
	return &line, nil
}
