package service

import (
	"context"
	"strings"

	"toolhub/internal/models"
	"toolhub/internal/repository"
)

// ReviewService owns item reviews. A patron may review an item once, and
// only after a completed borrow.
type ReviewService struct {
	reviewRepo  repository.ReviewRepository
	itemRepo    repository.ItemRepository
	requestRepo repository.BorrowRequestRepository
}

// NewReviewService returns a new ReviewService.
func NewReviewService(reviewRepo repository.ReviewRepository, itemRepo repository.ItemRepository, requestRepo repository.BorrowRequestRepository) *ReviewService {
	return &ReviewService{
		reviewRepo:  reviewRepo,
		itemRepo:    itemRepo,
		requestRepo: requestRepo,
	}
}

// CreateReviewInput carries the fields for a new review.
type CreateReviewInput struct {
	ItemID  uint
	UserID  uint
	Rating  int
	Comment string
}

// Create validates and stores a review.
func (s *ReviewService) Create(ctx context.Context, in CreateReviewInput) (*models.ItemReview, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, models.NewValidationError("Rating must be between 1 and 5")
	}
	if len(in.Comment) > 2000 {
		return nil, models.NewValidationError("Comment too long (max 2000 characters)")
	}

	if _, err := s.itemRepo.GetByID(ctx, in.ItemID); err != nil {
		return nil, err
	}

	borrowed, err := s.requestRepo.HasCompletedBorrow(ctx, in.ItemID, in.UserID)
	if err != nil {
		return nil, err
	}
	if !borrowed {
		return nil, models.NewPermissionError("You can only review items you have borrowed and returned")
	}

	exists, err := s.reviewRepo.ExistsForItemAndUser(ctx, in.ItemID, in.UserID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.NewValidationError("You have already reviewed this item")
	}

	review := &models.ItemReview{
		ItemID:  in.ItemID,
		UserID:  in.UserID,
		Rating:  in.Rating,
		Comment: strings.TrimSpace(in.Comment),
	}
	if err := s.reviewRepo.Create(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// ListForItem returns an item's reviews, newest first.
func (s *ReviewService) ListForItem(ctx context.Context, itemID uint, limit, offset int) ([]models.ItemReview, error) {
	if _, err := s.itemRepo.GetByID(ctx, itemID); err != nil {
		return nil, err
	}
	return s.reviewRepo.ListByItem(ctx, itemID, limit, offset)
}

// Delete removes a review. The author or a librarian may delete.
func (s *ReviewService) Delete(ctx context.Context, actor *models.User, reviewID uint) error {
	review, err := s.reviewRepo.GetByID(ctx, reviewID)
	if err != nil {
		return err
	}
	if !actor.IsLibrarian() && review.UserID != actor.ID {
		return models.NewPermissionError("Only the author or a librarian can delete a review")
	}
	return s.reviewRepo.Delete(ctx, reviewID)
}
