package catalog

import (
	"math"
	"time"
)

// Review is a user's rating of a product. One per (product, user).
type Review struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ProductID string    `gorm:"size:36;not null;uniqueIndex:idx_reviews_product_user;index" json:"productId"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_reviews_product_user" json:"userId"`
	Rating    int       `gorm:"not null" json:"rating"`
	Comment   string    `gorm:"size:2000;not null" json:"comment"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateReviewRequest is the input for reviewing a product.
type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"required,min=10,max=2000"`
}

// UpdateReviewRequest is a partial update of a review.
type UpdateReviewRequest struct {
	Rating  *int    `json:"rating,omitempty" validate:"omitempty,gte=1,lte=5"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,min=10,max=2000"`
}

// ReviewPage is a paginated review listing.
type ReviewPage struct {
	Reviews    []Review   `json:"reviews"`
	Pagination Pagination `json:"pagination"`
}

// AverageRating rounds the mean rating to one decimal. Zero reviews rate 0.
func AverageRating(sum int64, count int64) float64 {
	if count == 0 {
		return 0
	}
	return math.Round(float64(sum)/float64(count)*10) / 10
}
