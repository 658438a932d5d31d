package repository

import (
	"context"
	"errors"

	"toolhub/internal/cache"
	"toolhub/internal/models"

	"gorm.io/gorm"
)

// ReviewRepository defines persistence operations for item reviews.
type ReviewRepository interface {
	GetByID(ctx context.Context, id uint) (*models.ItemReview, error)
	Create(ctx context.Context, review *models.ItemReview) error
	Delete(ctx context.Context, id uint) error
	ListByItem(ctx context.Context, itemID uint, limit, offset int) ([]models.ItemReview, error)
	ExistsForItemAndUser(ctx context.Context, itemID, userID uint) (bool, error)
}

type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository returns a new ReviewRepository implementation.
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) GetByID(ctx context.Context, id uint) (*models.ItemReview, error) {
	var review models.ItemReview
	if err := readDB(r.db).WithContext(ctx).Preload("User").First(&review, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Review", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &review, nil
}

func (r *reviewRepository) Create(ctx context.Context, review *models.ItemReview) error {
	if err := r.db.WithContext(ctx).Create(review).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateItemReviews(ctx, review.ItemID)
	return nil
}

func (r *reviewRepository) Delete(ctx context.Context, id uint) error {
	review, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Delete(&models.ItemReview{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateItemReviews(ctx, review.ItemID)
	return nil
}

func (r *reviewRepository) ListByItem(ctx context.Context, itemID uint, limit, offset int) ([]models.ItemReview, error) {
	var reviews []models.ItemReview
	if err := readDB(r.db).WithContext(ctx).
		Preload("User").
		Where("item_id = ?", itemID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&reviews).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reviews, nil
}

func (r *reviewRepository) ExistsForItemAndUser(ctx context.Context, itemID, userID uint) (bool, error) {
	var count int64
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.ItemReview{}).
		Where("item_id = ? AND user_id = ?", itemID, userID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}
