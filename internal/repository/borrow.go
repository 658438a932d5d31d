package repository

import (
	"context"
	"errors"

	"toolhub/internal/cache"
	"toolhub/internal/models"

	"gorm.io/gorm"
)

// BorrowRequestRepository defines persistence operations for borrow requests.
// State transitions run inside service-owned transactions; this interface
// covers reads and the non-transactional writes.
type BorrowRequestRepository interface {
	GetByID(ctx context.Context, id uint) (*models.BorrowRequest, error)
	Create(ctx context.Context, request *models.BorrowRequest) error
	Delete(ctx context.Context, id uint) error
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.BorrowRequest, error)
	ListByStatus(ctx context.Context, status models.BorrowRequestStatus, limit, offset int) ([]models.BorrowRequest, error)
	ListForItem(ctx context.Context, itemID uint, limit, offset int) ([]models.BorrowRequest, error)
	ActiveForItemAndUser(ctx context.Context, itemID, userID uint) (*models.BorrowRequest, error)
	HasCompletedBorrow(ctx context.Context, itemID, userID uint) (bool, error)
}

type borrowRequestRepository struct {
	db *gorm.DB
}

// NewBorrowRequestRepository returns a new BorrowRequestRepository implementation.
func NewBorrowRequestRepository(db *gorm.DB) BorrowRequestRepository {
	return &borrowRequestRepository{db: db}
}

func (r *borrowRequestRepository) GetByID(ctx context.Context, id uint) (*models.BorrowRequest, error) {
	var request models.BorrowRequest
	if err := readDB(r.db).WithContext(ctx).
		Preload("Item").
		Preload("User").
		Preload("ReviewedByUser").
		First(&request, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Borrow request", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &request, nil
}

func (r *borrowRequestRepository) Create(ctx context.Context, request *models.BorrowRequest) error {
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewStateConflictError("An outstanding request for this item already exists")
		}
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.BorrowHistoryKey(request.ItemID))
	return nil
}

func (r *borrowRequestRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.BorrowRequest{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *borrowRequestRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.BorrowRequest, error) {
	var requests []models.BorrowRequest
	if err := readDB(r.db).WithContext(ctx).
		Preload("Item").
		Where("user_id = ?", userID).
		Order("requested_at DESC").
		Limit(limit).Offset(offset).
		Find(&requests).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}

func (r *borrowRequestRepository) ListByStatus(ctx context.Context, status models.BorrowRequestStatus, limit, offset int) ([]models.BorrowRequest, error) {
	var requests []models.BorrowRequest
	if err := readDB(r.db).WithContext(ctx).
		Preload("Item").
		Preload("User").
		Where("status = ?", status).
		Order("requested_at ASC").
		Limit(limit).Offset(offset).
		Find(&requests).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}

func (r *borrowRequestRepository) ListForItem(ctx context.Context, itemID uint, limit, offset int) ([]models.BorrowRequest, error) {
	var requests []models.BorrowRequest
	if err := readDB(r.db).WithContext(ctx).
		Preload("User").
		Preload("ReviewedByUser").
		Where("item_id = ?", itemID).
		Order("requested_at DESC").
		Limit(limit).Offset(offset).
		Find(&requests).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}

// ActiveForItemAndUser returns the pending or approved request a user holds
// on an item, or nil when none exists.
func (r *borrowRequestRepository) ActiveForItemAndUser(ctx context.Context, itemID, userID uint) (*models.BorrowRequest, error) {
	var request models.BorrowRequest
	if err := readDB(r.db).WithContext(ctx).
		Where("item_id = ? AND user_id = ? AND status IN ?", itemID, userID, models.ActiveBorrowStatuses).
		First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &request, nil
}

// HasCompletedBorrow reports whether the user has ever returned this item.
// Reviews are gated on a completed borrow.
func (r *borrowRequestRepository) HasCompletedBorrow(ctx context.Context, itemID, userID uint) (bool, error) {
	var count int64
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.BorrowRequest{}).
		Where("item_id = ? AND user_id = ? AND status IN ?", itemID, userID,
			[]models.BorrowRequestStatus{models.BorrowStatusReturnedOnTime, models.BorrowStatusReturnedOverdue}).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}
