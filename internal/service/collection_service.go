package service

import (
	"context"
	"fmt"
	"strings"

	"toolhub/internal/models"
	"toolhub/internal/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// CollectionService owns collection CRUD, visibility, and the membership
// rules: an item sits in at most one private collection, and an item in a
// private collection never appears in a public one.
type CollectionService struct {
	collectionRepo repository.CollectionRepository
	itemRepo       repository.ItemRepository
	userRepo       repository.UserRepository
}

// NewCollectionService returns a new CollectionService.
func NewCollectionService(collectionRepo repository.CollectionRepository, itemRepo repository.ItemRepository, userRepo repository.UserRepository) *CollectionService {
	return &CollectionService{
		collectionRepo: collectionRepo,
		itemRepo:       itemRepo,
		userRepo:       userRepo,
	}
}

// CollectionInput carries create and update fields for a collection.
type CollectionInput struct {
	Title          string
	Description    string
	Visibility     models.Visibility
	ItemIDs        []uint
	AllowedUserIDs []uint
}

func (s *CollectionService) validateInput(in CollectionInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return models.NewValidationError("Title is required")
	}
	if len(in.Title) > 255 {
		return models.NewValidationError("Title too long (max 255 characters)")
	}
	if !in.Visibility.Valid() {
		return models.NewValidationError("Visibility must be public or private")
	}
	return nil
}

// CanView reports whether the viewer may read the collection. Public
// collections are world-readable; private ones are limited to the creator,
// librarians, and the allowed-users list.
func (s *CollectionService) CanView(collection *models.Collection, viewer *models.User) bool {
	if collection.Visibility == models.VisibilityPublic {
		return true
	}
	if viewer == nil {
		return false
	}
	if viewer.IsLibrarian() {
		return true
	}
	if collection.CreatorID != nil && *collection.CreatorID == viewer.ID {
		return true
	}
	for _, allowed := range collection.AllowedUsers {
		if allowed.ID == viewer.ID {
			return true
		}
	}
	return false
}

func (s *CollectionService) canManage(collection *models.Collection, actor *models.User) bool {
	if actor.IsLibrarian() {
		return true
	}
	return collection.CreatorID != nil && *collection.CreatorID == actor.ID
}

// validateMembership enforces the exclusivity rules for placing the given
// items in a collection with the given visibility. selfID excludes the
// collection being edited from the checks.
func (s *CollectionService) validateMembership(ctx context.Context, selfID uint, visibility models.Visibility, items []models.Item) error {
	if len(items) == 0 {
		return nil
	}

	itemIDs := make([]uint, 0, len(items))
	itemNames := make(map[uint]string, len(items))
	for _, item := range items {
		itemIDs = append(itemIDs, item.ID)
		itemNames[item.ID] = item.Name
	}

	others, err := s.collectionRepo.CollectionsContainingItems(ctx, itemIDs)
	if err != nil {
		return err
	}

	wanted := make(map[uint]bool, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = true
	}

	for _, other := range others {
		if other.ID == selfID {
			continue
		}
		for _, member := range other.Items {
			if !wanted[member.ID] {
				continue
			}
			switch {
			case visibility == models.VisibilityPrivate && other.Visibility == models.VisibilityPrivate:
				return models.NewValidationError(fmt.Sprintf(
					"Item %q already belongs to another private collection", itemNames[member.ID]))
			case visibility == models.VisibilityPrivate && other.Visibility == models.VisibilityPublic:
				return models.NewValidationError(fmt.Sprintf(
					"Item %q belongs to a public collection and cannot join a private one", itemNames[member.ID]))
			case visibility == models.VisibilityPublic && other.Visibility == models.VisibilityPrivate:
				return models.NewValidationError(fmt.Sprintf(
					"Item %q belongs to a private collection and cannot join a public one", itemNames[member.ID]))
			}
		}
	}
	return nil
}

func (s *CollectionService) resolveItems(ctx context.Context, itemIDs []uint) ([]models.Item, error) {
	items := make([]models.Item, 0, len(itemIDs))
	for _, id := range itemIDs {
		item, err := s.itemRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

func (s *CollectionService) resolveAllowedUsers(ctx context.Context, userIDs []uint) ([]models.User, error) {
	users, err := s.userRepo.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	if len(users) != len(dedupeIDs(userIDs)) {
		return nil, models.NewValidationError("One or more allowed users do not exist")
	}
	return users, nil
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// uniqueSlug derives a URL slug from the title, suffixing with a short UUID
// fragment when the plain slug is taken.
func (s *CollectionService) uniqueSlug(ctx context.Context, title string) (string, error) {
	base := slug.Make(title)
	if len(base) > 70 {
		base = base[:70]
	}
	existing, err := s.collectionRepo.GetBySlug(ctx, base)
	if err != nil {
		if appErr, ok := err.(*models.AppError); ok && appErr.Code == "NOT_FOUND" {
			return base, nil
		}
		return "", err
	}
	if existing != nil {
		return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8]), nil
	}
	return base, nil
}

// Create builds a collection for the actor. Patrons may only create public
// collections; librarians may create either kind.
func (s *CollectionService) Create(ctx context.Context, actor *models.User, in CollectionInput) (*models.Collection, error) {
	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	if in.Visibility == models.VisibilityPrivate && !actor.IsLibrarian() {
		return nil, models.NewPermissionError("Only librarians can create private collections")
	}
	if in.Visibility == models.VisibilityPublic && len(in.AllowedUserIDs) > 0 {
		return nil, models.NewValidationError("Allowed users only apply to private collections")
	}

	items, err := s.resolveItems(ctx, dedupeIDs(in.ItemIDs))
	if err != nil {
		return nil, err
	}
	if err := s.validateMembership(ctx, 0, in.Visibility, items); err != nil {
		return nil, err
	}

	allowedUsers, err := s.resolveAllowedUsers(ctx, in.AllowedUserIDs)
	if err != nil {
		return nil, err
	}

	collectionSlug, err := s.uniqueSlug(ctx, in.Title)
	if err != nil {
		return nil, err
	}

	creatorID := actor.ID
	collection := &models.Collection{
		UUID:        uuid.NewString(),
		Slug:        collectionSlug,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Visibility:  in.Visibility,
		CreatorID:   &creatorID,
	}
	if err := s.collectionRepo.Create(ctx, collection); err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := s.collectionRepo.ReplaceItems(ctx, collection, items); err != nil {
			return nil, err
		}
	}
	if len(allowedUsers) > 0 {
		if err := s.collectionRepo.ReplaceAllowedUsers(ctx, collection, allowedUsers); err != nil {
			return nil, err
		}
	}

	return s.collectionRepo.GetByID(ctx, collection.ID)
}

// Update edits a collection. Only the creator or a librarian may edit, and
// visibility changes re-run the membership checks against the new state.
func (s *CollectionService) Update(ctx context.Context, actor *models.User, slugOrUUID string, in CollectionInput) (*models.Collection, error) {
	collection, err := s.collectionRepo.GetBySlug(ctx, slugOrUUID)
	if err != nil {
		return nil, err
	}
	if !s.canManage(collection, actor) {
		return nil, models.NewPermissionError("Only the creator or a librarian can edit this collection")
	}
	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	if in.Visibility == models.VisibilityPrivate && !actor.IsLibrarian() &&
		collection.Visibility == models.VisibilityPublic {
		return nil, models.NewPermissionError("Only librarians can make collections private")
	}
	if in.Visibility == models.VisibilityPublic && len(in.AllowedUserIDs) > 0 {
		return nil, models.NewValidationError("Allowed users only apply to private collections")
	}

	items, err := s.resolveItems(ctx, dedupeIDs(in.ItemIDs))
	if err != nil {
		return nil, err
	}
	if err := s.validateMembership(ctx, collection.ID, in.Visibility, items); err != nil {
		return nil, err
	}

	allowedUsers, err := s.resolveAllowedUsers(ctx, in.AllowedUserIDs)
	if err != nil {
		return nil, err
	}

	collection.Title = strings.TrimSpace(in.Title)
	collection.Description = in.Description
	collection.Visibility = in.Visibility
	if err := s.collectionRepo.Update(ctx, collection); err != nil {
		return nil, err
	}
	if err := s.collectionRepo.ReplaceItems(ctx, collection, items); err != nil {
		return nil, err
	}
	if err := s.collectionRepo.ReplaceAllowedUsers(ctx, collection, allowedUsers); err != nil {
		return nil, err
	}

	return s.collectionRepo.GetByID(ctx, collection.ID)
}

// Delete removes a collection. Memberships go with it; items survive.
func (s *CollectionService) Delete(ctx context.Context, actor *models.User, slugValue string) error {
	collection, err := s.collectionRepo.GetBySlug(ctx, slugValue)
	if err != nil {
		return err
	}
	if !s.canManage(collection, actor) {
		return models.NewPermissionError("Only the creator or a librarian can delete this collection")
	}
	return s.collectionRepo.Delete(ctx, collection.ID)
}

// Get loads a collection and enforces visibility for the viewer. A private
// collection the viewer cannot read surfaces as not found rather than
// forbidden, so its existence leaks nothing.
func (s *CollectionService) Get(ctx context.Context, viewer *models.User, slugValue string) (*models.Collection, error) {
	collection, err := s.collectionRepo.GetBySlug(ctx, slugValue)
	if err != nil {
		return nil, err
	}
	if !s.CanView(collection, viewer) {
		return nil, models.NewNotFoundError("Collection", slugValue)
	}
	return collection, nil
}

// List returns the collections the viewer may see.
func (s *CollectionService) List(ctx context.Context, viewer *models.User, limit, offset int) ([]models.Collection, error) {
	if viewer == nil {
		return s.collectionRepo.ListPublic(ctx, limit, offset)
	}
	if viewer.IsLibrarian() {
		return s.collectionRepo.ListAll(ctx, limit, offset)
	}
	return s.collectionRepo.ListVisibleTo(ctx, viewer.ID, limit, offset)
}
