// Package service contains the business logic for the lending system.
package service

import (
	"context"
	"errors"
	"time"

	"toolhub/internal/cache"
	"toolhub/internal/models"
	"toolhub/internal/observability"
	"toolhub/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BorrowService owns the borrow request lifecycle. Every transition runs
// inside a transaction with the request row locked, so concurrent reviews of
// the same request cannot both succeed.
type BorrowService struct {
	db          *gorm.DB
	itemRepo    repository.ItemRepository
	requestRepo repository.BorrowRequestRepository
	loanDays    int
}

// NewBorrowService returns a BorrowService with the given default loan period.
func NewBorrowService(db *gorm.DB, itemRepo repository.ItemRepository, requestRepo repository.BorrowRequestRepository, loanDays int) *BorrowService {
	if loanDays <= 0 {
		loanDays = 14
	}
	return &BorrowService{
		db:          db,
		itemRepo:    itemRepo,
		requestRepo: requestRepo,
		loanDays:    loanDays,
	}
}

// lockForUpdate applies a row lock on PostgreSQL. SQLite serializes writes on
// its own and rejects FOR UPDATE, so the test databases skip the clause.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// RequestItem creates a pending borrow request for the calling patron.
// The item must be available and the caller must not already hold an
// outstanding request on it.
func (s *BorrowService) RequestItem(ctx context.Context, userID, itemID uint, note string) (*models.BorrowRequest, error) {
	if len(note) > 500 {
		return nil, models.NewValidationError("Note too long (max 500 characters)")
	}

	var created models.BorrowRequest
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.Item
		if err := lockForUpdate(tx).First(&item, itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Item", itemID)
			}
			return err
		}

		// The legacy requested status is another user's speculative hold
		// and does not block further requests.
		if item.Status != models.ItemStatusAvailable && item.Status != models.ItemStatusRequested {
			observability.RecordBorrowConflict("request")
			return models.NewStateConflictError("Item is not available for borrowing")
		}

		var activeCount int64
		if err := tx.Model(&models.BorrowRequest{}).
			Where("item_id = ? AND user_id = ? AND status IN ?", itemID, userID, models.ActiveBorrowStatuses).
			Count(&activeCount).Error; err != nil {
			return err
		}
		if activeCount > 0 {
			observability.RecordBorrowConflict("request")
			return models.NewStateConflictError("You already have an outstanding request for this item")
		}

		created = models.BorrowRequest{
			ItemID: itemID,
			UserID: userID,
			Status: models.BorrowStatusPending,
			Note:   note,
		}
		return tx.Create(&created).Error
	})
	if txErr != nil {
		var appErr *models.AppError
		if errors.As(txErr, &appErr) {
			return nil, appErr
		}
		return nil, models.NewInternalError(txErr)
	}

	observability.RecordBorrowTransition(string(models.BorrowStatusPending))
	return &created, nil
}

// CancelRequest removes a pending request. Only the requester may cancel,
// and only while the request is still pending. The row is deleted so the
// patron can request the item again later.
func (s *BorrowService) CancelRequest(ctx context.Context, userID, requestID uint) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request models.BorrowRequest
		if err := lockForUpdate(tx).First(&request, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Borrow request", requestID)
			}
			return err
		}

		if request.UserID != userID {
			return models.NewPermissionError("You may only cancel your own requests")
		}
		if request.Status != models.BorrowStatusPending {
			observability.RecordBorrowConflict("cancel")
			return models.NewStateConflictError("Only pending requests can be cancelled")
		}

		return tx.Delete(&request).Error
	})
	if txErr != nil {
		var appErr *models.AppError
		if errors.As(txErr, &appErr) {
			return appErr
		}
		return models.NewInternalError(txErr)
	}
	return nil
}

// ApproveRequest transitions a pending request to approved, stamps the loan
// window, and marks the item borrowed by the requester. A librarian may
// supply a due date, which must be strictly in the future; otherwise the
// default loan period applies.
func (s *BorrowService) ApproveRequest(ctx context.Context, librarianID, requestID uint, dueDate *time.Time) (*models.BorrowRequest, error) {
	now := time.Now().UTC()

	if dueDate != nil && !dueDate.After(now) {
		return nil, models.NewValidationError("Due date must be in the future")
	}

	var approved models.BorrowRequest
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&approved, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Borrow request", requestID)
			}
			return err
		}

		if approved.Status != models.BorrowStatusPending {
			observability.RecordBorrowConflict("approve")
			return models.NewStateConflictError("Borrow request is not pending")
		}

		var item models.Item
		if err := lockForUpdate(tx).First(&item, approved.ItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Item", approved.ItemID)
			}
			return err
		}

		if item.Status != models.ItemStatusAvailable && item.Status != models.ItemStatusRequested {
			observability.RecordBorrowConflict("approve")
			return models.NewStateConflictError("Item is no longer available")
		}

		due := now.AddDate(0, 0, s.loanDays)
		if dueDate != nil {
			due = dueDate.UTC()
		}

		approved.Status = models.BorrowStatusApproved
		approved.BorrowStartDate = &now
		approved.ReturnDueDate = &due
		approved.ReviewedByUserID = &librarianID
		if err := tx.Save(&approved).Error; err != nil {
			return err
		}

		item.Status = models.ItemStatusBorrowed
		item.BorrowerID = &approved.UserID
		return tx.Save(&item).Error
	})
	if txErr != nil {
		var appErr *models.AppError
		if errors.As(txErr, &appErr) {
			return nil, appErr
		}
		return nil, models.NewInternalError(txErr)
	}

	// The item row changed under the repository, so drop its cached copy.
	cache.InvalidateItem(ctx, approved.ItemID)
	observability.RecordBorrowTransition(string(models.BorrowStatusApproved))
	return &approved, nil
}

// DenyRequest transitions a pending request to denied. If the item still
// carries the legacy requested status it is reset to available; nothing ever
// writes that status anymore, but old rows may hold it.
func (s *BorrowService) DenyRequest(ctx context.Context, librarianID, requestID uint) (*models.BorrowRequest, error) {
	var denied models.BorrowRequest
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&denied, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Borrow request", requestID)
			}
			return err
		}

		if denied.Status != models.BorrowStatusPending {
			observability.RecordBorrowConflict("deny")
			return models.NewStateConflictError("Borrow request is not pending")
		}

		denied.Status = models.BorrowStatusDenied
		denied.ReviewedByUserID = &librarianID
		if err := tx.Save(&denied).Error; err != nil {
			return err
		}

		var item models.Item
		if err := lockForUpdate(tx).First(&item, denied.ItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if item.Status == models.ItemStatusRequested {
			item.Status = models.ItemStatusAvailable
			return tx.Save(&item).Error
		}
		return nil
	})
	if txErr != nil {
		var appErr *models.AppError
		if errors.As(txErr, &appErr) {
			return nil, appErr
		}
		return nil, models.NewInternalError(txErr)
	}

	cache.InvalidateItem(ctx, denied.ItemID)
	observability.RecordBorrowTransition(string(models.BorrowStatusDenied))
	return &denied, nil
}

// ReturnItem closes an approved request. Only the borrower on record may
// return the item; librarians may record a return on their behalf, for
// example when the item comes back over the desk. The terminal status
// depends on whether the item came back by the due date. The item becomes
// available again and its borrower link is cleared.
func (s *BorrowService) ReturnItem(ctx context.Context, caller *models.User, requestID uint) (*models.BorrowRequest, error) {
	now := time.Now().UTC()

	var returned models.BorrowRequest
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&returned, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Borrow request", requestID)
			}
			return err
		}

		if !caller.IsLibrarian() && returned.UserID != caller.ID {
			return models.NewPermissionError("Only the borrower may return this item")
		}
		if returned.Status != models.BorrowStatusApproved {
			observability.RecordBorrowConflict("return")
			return models.NewStateConflictError("Only approved requests can be returned")
		}

		returned.Status = models.BorrowStatusReturnedOnTime
		if returned.ReturnDueDate != nil && now.After(*returned.ReturnDueDate) {
			returned.Status = models.BorrowStatusReturnedOverdue
		}
		returned.ReviewedByUserID = &caller.ID
		if err := tx.Save(&returned).Error; err != nil {
			return err
		}

		var item models.Item
		if err := lockForUpdate(tx).First(&item, returned.ItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		item.Status = models.ItemStatusAvailable
		item.BorrowerID = nil
		return tx.Save(&item).Error
	})
	if txErr != nil {
		var appErr *models.AppError
		if errors.As(txErr, &appErr) {
			return nil, appErr
		}
		return nil, models.NewInternalError(txErr)
	}

	cache.InvalidateItem(ctx, returned.ItemID)
	observability.RecordBorrowTransition(string(returned.Status))
	return &returned, nil
}

// GetRequest loads a single request. Patrons may only see their own;
// librarians may see any.
func (s *BorrowService) GetRequest(ctx context.Context, viewer *models.User, requestID uint) (*models.BorrowRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !viewer.IsLibrarian() && request.UserID != viewer.ID {
		return nil, models.NewPermissionError("You may only view your own requests")
	}
	return request, nil
}

// ListMyRequests returns the caller's requests, newest first.
func (s *BorrowService) ListMyRequests(ctx context.Context, userID uint, limit, offset int) ([]models.BorrowRequest, error) {
	return s.requestRepo.ListByUser(ctx, userID, limit, offset)
}

// ListByStatus returns requests in the given state for librarian review.
func (s *BorrowService) ListByStatus(ctx context.Context, status models.BorrowRequestStatus, limit, offset int) ([]models.BorrowRequest, error) {
	return s.requestRepo.ListByStatus(ctx, status, limit, offset)
}

// ItemHistory returns the full request history of an item, newest first.
func (s *BorrowService) ItemHistory(ctx context.Context, itemID uint, limit, offset int) ([]models.BorrowRequest, error) {
	if _, err := s.itemRepo.GetByID(ctx, itemID); err != nil {
		return nil, err
	}
	return s.requestRepo.ListForItem(ctx, itemID, limit, offset)
}
