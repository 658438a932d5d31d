package repository

import (
	"context"
	"errors"

	"toolhub/internal/cache"
	"toolhub/internal/models"

	"gorm.io/gorm"
)

// CollectionRepository defines persistence operations for collections.
type CollectionRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Collection, error)
	GetBySlug(ctx context.Context, slug string) (*models.Collection, error)
	Create(ctx context.Context, collection *models.Collection) error
	Update(ctx context.Context, collection *models.Collection) error
	Delete(ctx context.Context, id uint) error
	ListPublic(ctx context.Context, limit, offset int) ([]models.Collection, error)
	ListVisibleTo(ctx context.Context, userID uint, limit, offset int) ([]models.Collection, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.Collection, error)
	ReplaceItems(ctx context.Context, collection *models.Collection, items []models.Item) error
	ReplaceAllowedUsers(ctx context.Context, collection *models.Collection, users []models.User) error
	CollectionsContainingItems(ctx context.Context, itemIDs []uint) ([]models.Collection, error)
}

type collectionRepository struct {
	db *gorm.DB
}

// NewCollectionRepository returns a new CollectionRepository implementation.
func NewCollectionRepository(db *gorm.DB) CollectionRepository {
	return &collectionRepository{db: db}
}

func (r *collectionRepository) GetByID(ctx context.Context, id uint) (*models.Collection, error) {
	var collection models.Collection
	if err := readDB(r.db).WithContext(ctx).
		Preload("Items").
		Preload("AllowedUsers").
		Preload("Creator").
		First(&collection, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Collection", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &collection, nil
}

func (r *collectionRepository) GetBySlug(ctx context.Context, slug string) (*models.Collection, error) {
	var collection models.Collection
	if err := readDB(r.db).WithContext(ctx).
		Preload("Items").
		Preload("AllowedUsers").
		Preload("Creator").
		Where("slug = ?", slug).
		First(&collection).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Collection", slug)
		}
		return nil, models.NewInternalError(err)
	}
	return &collection, nil
}

func (r *collectionRepository) Create(ctx context.Context, collection *models.Collection) error {
	if err := r.db.WithContext(ctx).Create(collection).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("Collection slug already exists")
		}
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.PublicCollectionsKey)
	return nil
}

func (r *collectionRepository) Update(ctx context.Context, collection *models.Collection) error {
	if err := r.db.WithContext(ctx).
		Omit("Items", "AllowedUsers").
		Save(collection).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("Collection slug already exists")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateCollection(ctx, collection.Slug)
	return nil
}

func (r *collectionRepository) Delete(ctx context.Context, id uint) error {
	collection, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Select("Items", "AllowedUsers").Delete(collection).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateCollection(ctx, collection.Slug)
	return nil
}

func (r *collectionRepository) ListPublic(ctx context.Context, limit, offset int) ([]models.Collection, error) {
	var collections []models.Collection
	if err := readDB(r.db).WithContext(ctx).
		Where("visibility = ?", models.VisibilityPublic).
		Order("title ASC").
		Limit(limit).Offset(offset).
		Find(&collections).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return collections, nil
}

// ListVisibleTo returns public collections plus private ones the user created
// or was granted access to. Librarians bypass this through ListAll.
func (r *collectionRepository) ListVisibleTo(ctx context.Context, userID uint, limit, offset int) ([]models.Collection, error) {
	var collections []models.Collection
	if err := readDB(r.db).WithContext(ctx).
		Where("visibility = ?", models.VisibilityPublic).
		Or("creator_id = ?", userID).
		Or("id IN (?)", readDB(r.db).
			Table("collection_allowed_users").
			Select("collection_id").
			Where("user_id = ?", userID)).
		Order("title ASC").
		Limit(limit).Offset(offset).
		Find(&collections).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return collections, nil
}

func (r *collectionRepository) ListAll(ctx context.Context, limit, offset int) ([]models.Collection, error) {
	var collections []models.Collection
	if err := readDB(r.db).WithContext(ctx).
		Order("title ASC").
		Limit(limit).Offset(offset).
		Find(&collections).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return collections, nil
}

func (r *collectionRepository) ReplaceItems(ctx context.Context, collection *models.Collection, items []models.Item) error {
	if err := r.db.WithContext(ctx).Model(collection).Association("Items").Replace(items); err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateCollection(ctx, collection.Slug)
	return nil
}

func (r *collectionRepository) ReplaceAllowedUsers(ctx context.Context, collection *models.Collection, users []models.User) error {
	if err := r.db.WithContext(ctx).Model(collection).Association("AllowedUsers").Replace(users); err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateCollection(ctx, collection.Slug)
	return nil
}

// CollectionsContainingItems returns every collection holding any of the given
// items, with memberships preloaded. The collection service walks the result
// to enforce the private membership rules.
func (r *collectionRepository) CollectionsContainingItems(ctx context.Context, itemIDs []uint) ([]models.Collection, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	var collections []models.Collection
	if err := readDB(r.db).WithContext(ctx).
		Preload("Items").
		Where("id IN (?)", readDB(r.db).
			Table("collection_items").
			Select("collection_id").
			Where("item_id IN ?", itemIDs)).
		Find(&collections).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return collections, nil
}
