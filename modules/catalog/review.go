package catalog

import (
	"context"

	domain "github.com/example/catalog-service/domain/catalog"
	"github.com/example/catalog-service/modules/cache"
	"go.uber.org/zap"
)

// CreateReview records the actor's review of a product. A user reviews a
// product once.
func (s *Service) CreateReview(ctx context.Context, actor Actor, productID string, req domain.CreateReviewRequest) (*domain.Review, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	exists, err := s.store.ReviewExists(ctx, productID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.DuplicateIdentifier("review", nil)
	}

	r := &domain.Review{
		ID:        s.newID(),
		ProductID: productID,
		UserID:    actor.UserID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := s.store.CreateReview(ctx, r); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.ReviewScope(productID, p.Slug))
	return r, nil
}

// UpdateReview edits a review. Only its author may update it.
func (s *Service) UpdateReview(ctx context.Context, actor Actor, reviewID string, req domain.UpdateReviewRequest) (*domain.Review, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	r, err := s.store.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if r.UserID != actor.UserID {
		return nil, domain.Forbidden("only the author may update a review")
	}
	if req.Rating != nil {
		r.Rating = *req.Rating
	}
	if req.Comment != nil {
		r.Comment = *req.Comment
	}
	if err := s.store.UpdateReview(ctx, r); err != nil {
		return nil, err
	}
	s.invalidateReview(ctx, r.ProductID)
	return r, nil
}

// DeleteReview removes a review. The author or an admin may delete it.
func (s *Service) DeleteReview(ctx context.Context, actor Actor, reviewID string) error {
	r, err := s.store.GetReview(ctx, reviewID)
	if err != nil {
		return err
	}
	if r.UserID != actor.UserID && !actor.Admin {
		return domain.Forbidden("only the author or an admin may delete a review")
	}
	if err := s.store.DeleteReview(ctx, reviewID); err != nil {
		return err
	}
	s.invalidateReview(ctx, r.ProductID)
	return nil
}

// ListReviews returns one page of a product's reviews, newest first.
func (s *Service) ListReviews(ctx context.Context, q ReviewListQuery) (*domain.ReviewPage, error) {
	q = q.Normalize()
	return resolve(ctx, s, q.Key(), func(ctx context.Context) (*domain.ReviewPage, error) {
		if _, err := s.store.GetProduct(ctx, q.ProductID); err != nil {
			return nil, err
		}
		reviews, total, err := s.store.ListReviews(ctx, q.ProductID, q.Offset(), q.Limit)
		if err != nil {
			return nil, err
		}
		return &domain.ReviewPage{
			Reviews:    nonNil(reviews),
			Pagination: domain.NewPagination(total, q.Page, q.Limit),
		}, nil
	})
}

// invalidateReview clears the review scope of a product whose slug must be
// looked up.
func (s *Service) invalidateReview(ctx context.Context, productID string) {
	slug := ""
	if p, err := s.store.GetProduct(ctx, productID); err == nil {
		slug = p.Slug
	} else {
		s.logger.Warn("failed to load product for review invalidation; slug key left to expire",
			zap.String("product_id", productID),
			zap.Error(err))
	}
	s.invalidate(ctx, cache.ReviewScope(productID, slug))
}
