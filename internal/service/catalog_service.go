package service

import (
	"context"
	"strings"

	"toolhub/internal/models"
	"toolhub/internal/repository"

	"github.com/google/uuid"
)

// Display status shown to viewers with an outstanding request. This is a
// projection computed per request, never stored on the item.
const DisplayAlreadyRequested = "Already requested"

// ItemView is the read model for a catalog item: the stored fields plus the
// viewer-dependent display status.
type ItemView struct {
	models.Item
	DisplayStatus string `json:"display_status"`
	CanRequest    bool   `json:"can_request"`
}

// CatalogService owns item CRUD and the per-viewer catalog projection.
type CatalogService struct {
	itemRepo    repository.ItemRepository
	requestRepo repository.BorrowRequestRepository
}

// NewCatalogService returns a new CatalogService.
func NewCatalogService(itemRepo repository.ItemRepository, requestRepo repository.BorrowRequestRepository) *CatalogService {
	return &CatalogService{itemRepo: itemRepo, requestRepo: requestRepo}
}

// ItemInput carries create and update fields for an item.
type ItemInput struct {
	Name        string
	Identifier  string
	Description string
	Location    models.ItemLocation
}

func validateItemInput(in ItemInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return models.NewValidationError("Name is required")
	}
	if strings.TrimSpace(in.Identifier) == "" {
		return models.NewValidationError("Identifier is required")
	}
	if len(in.Identifier) > 120 {
		return models.NewValidationError("Identifier too long (max 120 characters)")
	}
	if in.Location != "" && !in.Location.Valid() {
		return models.NewValidationError("Unknown location")
	}
	return nil
}

// CreateItem adds an item to the catalog. Librarian only; the handler layer
// gates the route.
func (s *CatalogService) CreateItem(ctx context.Context, in ItemInput) (*models.Item, error) {
	if err := validateItemInput(in); err != nil {
		return nil, err
	}

	location := in.Location
	if location == "" {
		location = models.LocationMainWarehouse
	}

	item := &models.Item{
		UUID:        uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Identifier:  strings.TrimSpace(in.Identifier),
		Description: in.Description,
		Status:      models.ItemStatusAvailable,
		Location:    location,
	}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem edits the descriptive fields of an item. Status changes go
// through SetItemStatus or the borrow transitions.
func (s *CatalogService) UpdateItem(ctx context.Context, itemID uint, in ItemInput) (*models.Item, error) {
	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := validateItemInput(in); err != nil {
		return nil, err
	}

	item.Name = strings.TrimSpace(in.Name)
	item.Identifier = strings.TrimSpace(in.Identifier)
	item.Description = in.Description
	if in.Location != "" {
		item.Location = in.Location
	}
	if err := s.itemRepo.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// SetItemStatus applies a librarian status override, used for repairs, loss,
// and archival. Borrow-driven states are owned by the borrow transitions and
// cannot be set by hand.
func (s *CatalogService) SetItemStatus(ctx context.Context, itemID uint, status models.ItemStatus) (*models.Item, error) {
	if !status.Valid() {
		return nil, models.NewValidationError("Unknown status")
	}
	if status == models.ItemStatusBorrowed || status == models.ItemStatusRequested {
		return nil, models.NewValidationError("Borrow statuses are managed through borrow requests")
	}

	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status == models.ItemStatusBorrowed {
		return nil, models.NewStateConflictError("Item is out with a borrower; process the return first")
	}

	item.Status = status
	if err := s.itemRepo.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem soft-deletes an item. Items with a current borrower are
// protected; their request history keeps pointing at the soft-deleted row.
func (s *CatalogService) DeleteItem(ctx context.Context, itemID uint) error {
	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Status == models.ItemStatusBorrowed {
		return models.NewStateConflictError("Item is out with a borrower and cannot be deleted")
	}
	return s.itemRepo.Delete(ctx, itemID)
}

// GetItem loads one item and projects it for the viewer.
func (s *CatalogService) GetItem(ctx context.Context, viewer *models.User, itemID uint) (*ItemView, error) {
	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	view, err := s.project(ctx, viewer, *item)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ListItems returns the catalog projected for the viewer. Patrons see only
// available items; librarians see everything, optionally filtered.
func (s *CatalogService) ListItems(ctx context.Context, viewer *models.User, filter repository.ItemFilter) ([]ItemView, error) {
	if viewer == nil || !viewer.IsLibrarian() {
		filter.Statuses = []models.ItemStatus{models.ItemStatusAvailable}
	}

	items, err := s.itemRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		view, err := s.project(ctx, viewer, item)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// project computes the display status for one viewer:
//   - the viewer holds an outstanding (pending or approved) request:
//     "Already requested"
//   - the stored status is the legacy requested hold of some other user:
//     "Available", and the item may still be requested
//   - otherwise the stored status label.
func (s *CatalogService) project(ctx context.Context, viewer *models.User, item models.Item) (ItemView, error) {
	view := ItemView{
		Item:          item,
		DisplayStatus: item.Status.Label(),
		CanRequest:    item.Status == models.ItemStatusAvailable,
	}
	// A legacy speculative hold reads as available to everyone but its
	// holder, who is caught by the outstanding-request check below.
	if item.Status == models.ItemStatusRequested {
		view.DisplayStatus = models.ItemStatusAvailable.Label()
		view.CanRequest = true
	}
	if viewer == nil {
		return view, nil
	}

	active, err := s.requestRepo.ActiveForItemAndUser(ctx, item.ID, viewer.ID)
	if err != nil {
		return ItemView{}, err
	}
	if active != nil {
		switch active.Status {
		case models.BorrowStatusPending, models.BorrowStatusApproved:
			view.DisplayStatus = DisplayAlreadyRequested
			view.CanRequest = false
		}
	}
	return view, nil
}
